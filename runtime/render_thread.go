package runtime

import (
	"sync"
	"time"

	"github.com/sfncore/frankentui/render"
	"github.com/sfncore/frankentui/terminal"
)

// renderThreadShutdown is the hard deadline for the render thread to drain on
// shutdown; past it the caller proceeds and presenter state is abandoned
// (session cleanup still runs on the main thread).
const renderThreadShutdown = 100 * time.Millisecond

// renderThread moves presentation off the main loop. The main thread
// prepares frames and hands them over through a single-slot channel where
// the most recent frame wins; the render thread drives the writer (and with
// it the presenter state) exclusively and runs the periodic pool GC.
type renderThread struct {
	writer *terminal.Writer

	mu   sync.Mutex
	next *render.Frame // single slot, latest wins

	kick   chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}

	lastErr   error
	lastFrame time.Duration
	statMu    sync.Mutex

	lastGC time.Time
}

func newRenderThread(w *terminal.Writer) *renderThread {
	rt := &renderThread{
		writer: w,
		kick:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		lastGC: time.Now(),
	}
	terminal.Go(rt.run)
	return rt
}

// submit replaces any undisplayed frame with this one (latest wins) and
// wakes the thread. Never blocks the main loop.
func (rt *renderThread) submit(f *render.Frame) {
	rt.mu.Lock()
	rt.next = f
	rt.mu.Unlock()

	select {
	case rt.kick <- struct{}{}:
	default:
	}
}

// take returns the pending frame, nil when none.
func (rt *renderThread) take() *render.Frame {
	rt.mu.Lock()
	f := rt.next
	rt.next = nil
	rt.mu.Unlock()
	return f
}

// stats returns the last present error and duration.
func (rt *renderThread) stats() (error, time.Duration) {
	rt.statMu.Lock()
	defer rt.statMu.Unlock()
	return rt.lastErr, rt.lastFrame
}

func (rt *renderThread) run() {
	defer close(rt.doneCh)

	for {
		select {
		case <-rt.stopCh:
			// Final drain: present the freshest frame if one is waiting.
			if f := rt.take(); f != nil {
				rt.present(f)
			}
			return
		case <-rt.kick:
			if f := rt.take(); f != nil {
				rt.present(f)
			}
			if time.Since(rt.lastGC) >= gcMaxInterval {
				rt.writer.GC()
				rt.lastGC = time.Now()
			}
		}
	}
}

func (rt *renderThread) present(f *render.Frame) {
	start := time.Now()
	err := rt.writer.PresentUI(f)
	rt.statMu.Lock()
	rt.lastErr = err
	rt.lastFrame = time.Since(start)
	rt.statMu.Unlock()
}

// stop signals shutdown and waits up to the hard deadline.
func (rt *renderThread) stop() {
	close(rt.stopCh)
	select {
	case <-rt.doneCh:
	case <-time.After(renderThreadShutdown):
	}
}
