package runtime

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sfncore/frankentui/event"
	"github.com/sfncore/frankentui/render"
	"github.com/sfncore/frankentui/terminal"
)

// testModel counts updates and renders a line of text; quits on 'q'.
type testModel struct {
	mu      sync.Mutex
	updates []Msg
	text    string
	initRan bool
	subs    []Subscription
}

func (m *testModel) Init() Cmd {
	m.mu.Lock()
	m.initRan = true
	m.mu.Unlock()
	return nil
}

func (m *testModel) Update(msg Msg) Cmd {
	m.mu.Lock()
	m.updates = append(m.updates, msg)
	m.mu.Unlock()

	if ev, ok := msg.(EventMsg); ok && ev.Event.Kind == event.KindKey {
		if ev.Event.Key.Rune == 'q' {
			return Quit()
		}
		m.mu.Lock()
		m.text += string(ev.Event.Key.Rune)
		m.mu.Unlock()
	}
	return nil
}

func (m *testModel) View(f *render.Frame) {
	m.mu.Lock()
	text := m.text
	m.mu.Unlock()
	f.DrawText(0, 0, text, render.DefaultStyle)
}

func (m *testModel) Subscriptions() []Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs
}

func (m *testModel) messages() []Msg {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Msg, len(m.updates))
	copy(out, m.updates)
	return out
}

func newTestLoop(m Model, opts ...LoopOption) (*Loop, *bytes.Buffer, chan event.Event) {
	var out bytes.Buffer
	w := terminal.NewWriter(terminal.WriterConfig{
		Output:     &out,
		Mode:       terminal.ModeInline,
		TermWidth:  40,
		TermHeight: 10,
		UIHeight:   2,
	})
	input := make(chan event.Event, 64)
	opts = append([]LoopOption{WithInput(input)}, opts...)
	return NewLoop(m, w, opts...), &out, input
}

func TestLoopProcessesInputAndQuits(t *testing.T) {
	m := &testModel{}
	l, out, input := newTestLoop(m)

	input <- event.KeyRuneEvent('h', event.ModNone)
	input <- event.KeyRuneEvent('i', event.ModNone)
	go func() {
		// Give the loop a frame to render before quitting.
		time.Sleep(100 * time.Millisecond)
		input <- event.KeyRuneEvent('q', event.ModNone)
	}()

	done := make(chan error, 1)
	go func() { done <- l.Run() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Loop did not quit")
	}

	if !m.initRan {
		t.Errorf("Expected Init to run")
	}
	if !strings.Contains(out.String(), "hi") {
		t.Errorf("Expected 'hi' rendered, got %q", out.String())
	}
}

func TestLoopEventOrder(t *testing.T) {
	m := &testModel{}
	l, _, input := newTestLoop(m)

	for _, r := range "abc" {
		input <- event.KeyRuneEvent(r, event.ModNone)
	}
	input <- event.KeyRuneEvent('q', event.ModNone)

	if err := l.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var runes []rune
	for _, msg := range m.messages() {
		if ev, ok := msg.(EventMsg); ok && ev.Event.Kind == event.KindKey && ev.Event.Key.Rune != 'q' {
			runes = append(runes, ev.Event.Key.Rune)
		}
	}
	if string(runes) != "abc" {
		t.Errorf("Expected arrival order preserved, got %q", string(runes))
	}
}

func TestLoopResizeCoalesced(t *testing.T) {
	m := &testModel{}
	l, _, input := newTestLoop(m)
	l.coalescer.SetDelays(30*time.Millisecond, 5*time.Millisecond, 100*time.Millisecond)

	go func() {
		for i := 0; i < 5; i++ {
			input <- event.Resize(80+i, 24)
			time.Sleep(10 * time.Millisecond)
		}
		time.Sleep(250 * time.Millisecond)
		input <- event.KeyRuneEvent('q', event.ModNone)
	}()

	if err := l.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var resizes []ResizeAppliedMsg
	for _, msg := range m.messages() {
		if r, ok := msg.(ResizeAppliedMsg); ok {
			resizes = append(resizes, r)
		}
	}
	if len(resizes) == 0 {
		t.Fatalf("Expected an applied resize")
	}
	last := resizes[len(resizes)-1]
	if last.Width != 84 {
		t.Errorf("Expected final width 84, got %d", last.Width)
	}
	if len(resizes) > 2 {
		t.Errorf("Expected the storm coalesced, got %d applications", len(resizes))
	}
}

func TestLoopCommands(t *testing.T) {
	m := &testModel{}
	l, out, input := newTestLoop(m)

	type quitMsg struct{}

	go func() {
		l.Post(quitMsg{})
		time.Sleep(100 * time.Millisecond)
		input <- event.KeyRuneEvent('q', event.ModNone)
	}()

	l.execute(Batch(Log([]byte("log-entry\n")), nil))
	if err := l.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "log-entry") {
		t.Errorf("Expected log routed through the writer, got %q", out.String())
	}

	found := false
	for _, msg := range m.messages() {
		if _, ok := msg.(quitMsg); ok {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected posted message delivered")
	}
}

func TestLoopPerformTimeout(t *testing.T) {
	m := &testModel{}
	l, _, input := newTestLoop(m)

	type timedOut struct{}
	l.execute(PerformCmd{
		Run: func(ctx context.Context) Msg {
			time.Sleep(200 * time.Millisecond)
			return nil
		},
		Timeout:  20 * time.Millisecond,
		TimedOut: timedOut{},
	})

	go func() {
		time.Sleep(150 * time.Millisecond)
		input <- event.KeyRuneEvent('q', event.ModNone)
	}()
	if err := l.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	found := false
	for _, msg := range m.messages() {
		if _, ok := msg.(timedOut); ok {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected TimedOut message after deadline")
	}
}

func TestLoopSubscriptionLifecycle(t *testing.T) {
	started := make(chan struct{}, 1)
	stopped := make(chan struct{}, 1)

	m := &testModel{}
	m.subs = []Subscription{{
		ID: "ticker",
		Start: func(post func(Msg)) func() {
			started <- struct{}{}
			return func() { stopped <- struct{}{} }
		},
	}}

	l, _, input := newTestLoop(m)
	go func() {
		time.Sleep(50 * time.Millisecond)
		input <- event.KeyRuneEvent('q', event.ModNone)
	}()
	if err := l.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	select {
	case <-started:
	default:
		t.Errorf("Expected subscription started")
	}
	select {
	case <-stopped:
	default:
		t.Errorf("Expected subscription stopped on exit")
	}
}

// A panic in update is caught at the loop boundary and surfaces as an error.
type panicModel struct{ testModel }

func (m *panicModel) Update(msg Msg) Cmd {
	panic("boom")
}

func TestLoopPanicRecovered(t *testing.T) {
	m := &panicModel{}
	l, _, input := newTestLoop(m)
	input <- event.KeyRuneEvent('x', event.ModNone)

	err := l.Run()
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("Expected recovered panic error, got %v", err)
	}
}

func TestJainIndex(t *testing.T) {
	if f := jainIndex(10, 10); f < 0.999 {
		t.Errorf("Expected perfect fairness, got %f", f)
	}
	if f := jainIndex(100, 1); f > 0.6 {
		t.Errorf("Expected poor fairness, got %f", f)
	}
	if f := jainIndex(0, 0); f != 1 {
		t.Errorf("Expected idle to count as fair, got %f", f)
	}
}
