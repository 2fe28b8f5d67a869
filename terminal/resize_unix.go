//go:build unix

package terminal

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/sfncore/frankentui/event"
)

// ResizeWatcher converts SIGWINCH into resize events. The channel holds one
// pending event; a newer size replaces an unconsumed older one (latest wins).
// Regime detection and coalescing happen downstream in the runtime.
type ResizeWatcher struct {
	fd      int
	sigCh   chan os.Signal
	eventCh chan event.Event
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewResizeWatcher creates a watcher for the given output descriptor.
func NewResizeWatcher(fd int) *ResizeWatcher {
	return &ResizeWatcher{
		fd:      fd,
		sigCh:   make(chan os.Signal, 1),
		eventCh: make(chan event.Event, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start begins listening for SIGWINCH.
func (r *ResizeWatcher) Start() {
	signal.Notify(r.sigCh, syscall.SIGWINCH)
	Go(r.watchLoop)
}

// Stop stops the watcher.
func (r *ResizeWatcher) Stop() {
	signal.Stop(r.sigCh)
	close(r.stopCh)
	<-r.doneCh
}

// Events returns the resize event channel.
func (r *ResizeWatcher) Events() <-chan event.Event {
	return r.eventCh
}

func (r *ResizeWatcher) watchLoop() {
	defer close(r.doneCh)

	for {
		select {
		case <-r.stopCh:
			return
		case <-r.sigCh:
			w, h := r.size()
			if w > 0 && h > 0 {
				ev := event.Resize(w, h)
				select {
				case r.eventCh <- ev:
				default:
					// Replace the unconsumed older event.
					select {
					case <-r.eventCh:
					default:
					}
					r.eventCh <- ev
				}
			}
		}
	}
}

func (r *ResizeWatcher) size() (int, int) {
	ws, err := unix.IoctlGetWinsize(r.fd, unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0
	}
	return int(ws.Col), int(ws.Row)
}
