package runtime

import (
	"strings"
	"testing"
	"time"

	"github.com/sfncore/frankentui/event"
)

func TestRenderThreadPresents(t *testing.T) {
	m := &testModel{}
	l, out, input := newTestLoop(m, WithRenderThread())

	input <- event.KeyRuneEvent('h', event.ModNone)
	input <- event.KeyRuneEvent('i', event.ModNone)
	go func() {
		time.Sleep(150 * time.Millisecond)
		input <- event.KeyRuneEvent('q', event.ModNone)
	}()

	if err := l.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The shutdown drain presents the final frame before Run returns.
	if !strings.Contains(out.String(), "hi") {
		t.Errorf("Expected render thread to present 'hi', got %q", out.String())
	}
}

func TestRenderThreadLatestWins(t *testing.T) {
	m := &testModel{}
	l, _, _ := newTestLoop(m)
	rt := newRenderThread(l.writer)
	// Stop the consumer so the slot can be observed directly.
	rt.stop()

	a := l.writer.NewFrame()
	b := l.writer.NewFrame()
	rt.submit(a)
	rt.submit(b)

	if got := rt.take(); got != b {
		t.Errorf("Expected the newest frame to win the slot")
	}
	if got := rt.take(); got != nil {
		t.Errorf("Expected the slot drained, got %v", got)
	}
}

func TestRenderThreadStopDeadline(t *testing.T) {
	m := &testModel{}
	l, _, _ := newTestLoop(m)
	rt := newRenderThread(l.writer)

	start := time.Now()
	rt.stop()
	if elapsed := time.Since(start); elapsed > renderThreadShutdown+50*time.Millisecond {
		t.Errorf("Expected stop within the deadline, took %v", elapsed)
	}
}
