package terminal

import (
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sfncore/frankentui/event"
)

// escapeTimeout distinguishes a standalone ESC keypress from the start of an
// escape sequence: if no byte follows within this window, ESC is released.
const escapeTimeout = 50 * time.Millisecond

// Reader pumps raw bytes from the terminal through the parser and delivers
// canonical events on a bounded channel.
type Reader struct {
	fd      int
	parser  *Parser
	eventCh chan event.Event
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewReader creates a reader for the given input descriptor.
func NewReader(fd int) *Reader {
	return &Reader{
		fd:      fd,
		parser:  NewParser(),
		eventCh: make(chan event.Event, 64),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins reading input. The loop runs under the session's crash
// recovery so a parser panic (which must never happen) still restores the
// terminal.
func (r *Reader) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	Go(r.readLoop)
}

// Stop signals the reader to stop and waits briefly for it to drain.
func (r *Reader) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopCh)
	// Wait with timeout; don't block forever if the read is stuck.
	select {
	case <-r.doneCh:
	case <-time.After(100 * time.Millisecond):
	}
}

// Events returns the event channel.
func (r *Reader) Events() <-chan event.Event {
	return r.eventCh
}

func (r *Reader) readLoop() {
	defer close(r.doneCh)

	buf := make([]byte, 4096)
	idleArmed := false

	for {
		select {
		case <-r.stopCh:
			r.send(event.Event{Kind: event.KindClosed})
			return
		default:
		}

		// Poll with a timeout so stopCh is honored and a lone ESC can be
		// released once the stream goes quiet.
		timeout := 100
		if idleArmed {
			timeout = int(escapeTimeout / time.Millisecond)
		}
		ready, err := r.pollRead(timeout)
		if err != nil {
			select {
			case <-r.stopCh:
				r.send(event.Event{Kind: event.KindClosed})
				return
			case r.eventCh <- event.Event{Kind: event.KindError, Err: err}:
			}
			return
		}

		if !ready {
			if idleArmed {
				for _, ev := range r.parser.Idle() {
					r.send(ev)
				}
				idleArmed = false
			}
			continue
		}

		n, err := unix.Read(r.fd, buf)
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			select {
			case <-r.stopCh:
				r.send(event.Event{Kind: event.KindClosed})
				return
			case r.eventCh <- event.Event{Kind: event.KindError, Err: err}:
			}
			return
		}

		if n == 0 {
			// EOF implies closure
			r.send(event.Event{Kind: event.KindClosed})
			continue
		}

		for _, ev := range r.parser.Feed(buf[:n]) {
			r.send(ev)
		}
		// Arm the escape timeout only when the parser stopped mid-escape.
		idleArmed = !r.parser.inGround()
	}
}

// pollRead checks if data is available on fd with a timeout in milliseconds.
func (r *Reader) pollRead(timeoutMs int) (bool, error) {
	fds := []unix.PollFd{
		{Fd: int32(r.fd), Events: unix.POLLIN},
	}

	n, err := unix.Poll(fds, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return false, nil // interrupted, treat as timeout
		}
		return false, err
	}

	return n > 0 && (fds[0].Revents&unix.POLLIN) != 0, nil
}

// send delivers an event without blocking; the channel is sized so drops only
// happen when the consumer has stalled far past the input rate.
func (r *Reader) send(ev event.Event) {
	select {
	case r.eventCh <- ev:
	default:
	}
}
