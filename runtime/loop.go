package runtime

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sfncore/frankentui/event"
	"github.com/sfncore/frankentui/evidence"
	"github.com/sfncore/frankentui/terminal"
)

// Loop defaults.
const (
	defaultPerformTimeout = 10 * time.Second
	defaultLatencyBudget  = 50 * time.Millisecond
	defaultMaxBatch       = 256
	minBatch              = 8

	// GC cadence: whichever comes first. The iteration mask keeps the test
	// branch-free.
	gcIterationMask = 1023
	gcMaxInterval   = time.Second

	// fairnessWindow is how many iterations between fairness checks.
	fairnessWindow = 64
	// fairnessFloor is the Jain index below which the loop yields.
	fairnessFloor = 0.8

	idleWait = 50 * time.Millisecond
)

// Loop is the single-threaded runtime: drain input, drain messages, update,
// run commands, view, present. Input processing is prioritized over
// rendering; a fairness check forces a render yield when one source starves
// the other.
type Loop struct {
	model   Model
	writer  *terminal.Writer
	session *terminal.Session

	inputCh  <-chan event.Event
	resizeCh <-chan event.Event
	msgCh    chan Msg

	coalescer *Coalescer
	degrader  *Degrader
	sink      *evidence.Sink

	performTimeout time.Duration
	latencyBudget  time.Duration
	catchPanics    bool

	maxBatch  int
	latencies []time.Duration

	subs map[string]func()

	useRenderThread bool
	rt              *renderThread

	quit  bool
	dirty bool

	iter   uint64
	lastGC time.Time

	inputServiced int
	msgServiced   int
}

// LoopOption adjusts loop construction.
type LoopOption func(*Loop)

// WithSession hands the loop the session to close on every exit path.
func WithSession(s *terminal.Session) LoopOption {
	return func(l *Loop) { l.session = s }
}

// WithInput wires the canonical input event channel.
func WithInput(ch <-chan event.Event) LoopOption {
	return func(l *Loop) { l.inputCh = ch }
}

// WithResize wires a dedicated resize event channel.
func WithResize(ch <-chan event.Event) LoopOption {
	return func(l *Loop) { l.resizeCh = ch }
}

// WithEvidence wires the decision ledger.
func WithEvidence(s *evidence.Sink) LoopOption {
	return func(l *Loop) {
		l.sink = s
		l.coalescer = NewCoalescer(s)
		l.degrader = NewDegrader(s)
	}
}

// WithPerformTimeout sets the async command deadline.
func WithPerformTimeout(d time.Duration) LoopOption {
	return func(l *Loop) {
		if d > 0 {
			l.performTimeout = d
		}
	}
}

// WithoutPanicRecovery disables the loop-boundary recover, letting panics
// propagate after session cleanup (useful under test harnesses).
func WithoutPanicRecovery() LoopOption {
	return func(l *Loop) { l.catchPanics = false }
}

// WithRenderThread moves presentation onto a dedicated thread. The main loop
// hands finished frames through a single-slot channel (most recent wins) and
// never blocks on terminal I/O; the render thread owns the presenter state
// and the periodic pool GC.
func WithRenderThread() LoopOption {
	return func(l *Loop) { l.useRenderThread = true }
}

// NewLoop builds a runtime loop around a model and writer.
func NewLoop(model Model, writer *terminal.Writer, opts ...LoopOption) *Loop {
	l := &Loop{
		model:          model,
		writer:         writer,
		msgCh:          make(chan Msg, 256),
		coalescer:      NewCoalescer(nil),
		degrader:       NewDegrader(nil),
		performTimeout: defaultPerformTimeout,
		latencyBudget:  defaultLatencyBudget,
		catchPanics:    true,
		maxBatch:       defaultMaxBatch,
		subs:           map[string]func(){},
		lastGC:         time.Now(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post delivers a message into the loop from any goroutine. Non-blocking;
// messages are dropped only if the application outruns the queue for a full
// buffer's worth.
func (l *Loop) Post(msg Msg) {
	select {
	case l.msgCh <- msg:
	default:
	}
}

// Degrader exposes the degradation controller (external gates plug in here).
func (l *Loop) Degrader() *Degrader {
	return l.degrader
}

// Run executes the loop until a Quit command or an escalated I/O error.
// Session teardown runs on every exit path, panics included.
func (l *Loop) Run() (err error) {
	if l.useRenderThread {
		l.rt = newRenderThread(l.writer)
	}

	defer func() {
		l.stopAllSubs()
		if l.rt != nil {
			l.rt.stop()
		}
		if l.session != nil {
			l.session.Close()
		}
		if l.catchPanics {
			if r := recover(); r != nil {
				err = fmt.Errorf("runtime: panic in update/view: %v", r)
			}
		}
	}()

	l.execute(l.model.Init())
	l.syncSubscriptions()
	l.dirty = true

	for !l.quit {
		l.iter++

		l.wait()

		yield := false

		// 1-2: drain pending input, then pending messages.
		l.drainInput()
		l.drainMsgs()

		// Resize application once the coalescer releases a size.
		if ev, ok := l.coalescer.Ready(time.Now()); ok {
			l.applyResize(ev)
		}

		// Fairness: when one source starves or keystroke latency blows the
		// budget, force a render yield and halve the batch size.
		if l.iter%fairnessWindow == 0 {
			if l.checkFairness() {
				yield = true
			}
			l.inputServiced, l.msgServiced = 0, 0
		}

		if l.dirty && !l.quit && !yield {
			if perr := l.present(); perr != nil {
				return perr
			}
		}

		l.maybeGC()
	}
	return nil
}

// wait blocks until there is work: input, a message, or a due deadline.
func (l *Loop) wait() {
	timeout := idleWait
	if dl, ok := l.coalescer.NextDeadline(); ok {
		if d := time.Until(dl); d < timeout {
			timeout = d
		}
	}
	if l.dirty || timeout < 0 {
		timeout = 0
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev, ok := <-l.inputCh:
		if !ok {
			l.inputCh = nil
			return
		}
		l.handleEvent(ev)
	case ev, ok := <-l.resizeCh:
		if !ok {
			l.resizeCh = nil
			return
		}
		l.handleEvent(ev)
	case msg := <-l.msgCh:
		l.dispatch(msg)
		l.msgServiced++
	case <-timer.C:
	}
}

func (l *Loop) drainInput() {
	for n := 0; n < l.maxBatch; n++ {
		select {
		case ev, ok := <-l.inputCh:
			if !ok {
				l.inputCh = nil
				return
			}
			l.handleEvent(ev)
		case ev, ok := <-l.resizeCh:
			if !ok {
				l.resizeCh = nil
				return
			}
			l.handleEvent(ev)
		default:
			return
		}
	}
}

func (l *Loop) drainMsgs() {
	for n := 0; n < l.maxBatch; n++ {
		select {
		case msg := <-l.msgCh:
			l.dispatch(msg)
			l.msgServiced++
		default:
			return
		}
	}
}

func (l *Loop) handleEvent(ev event.Event) {
	switch ev.Kind {
	case event.KindNone:
		return
	case event.KindResize:
		// Held back until the coalescer releases it; the view keeps
		// rendering at the current dimensions meanwhile.
		l.coalescer.Offer(ev, time.Now())
		return
	case event.KindClosed:
		return
	}
	start := time.Now()
	l.dispatch(EventMsg{Event: ev})
	l.inputServiced++
	if ev.Kind == event.KindKey {
		l.recordLatency(time.Since(start))
	}
}

// dispatch runs one update and executes its command.
func (l *Loop) dispatch(msg Msg) {
	if msg == nil {
		return
	}
	cmd := l.model.Update(msg)
	l.dirty = true
	l.execute(cmd)
	l.syncSubscriptions()
}

func (l *Loop) execute(cmd Cmd) {
	switch c := cmd.(type) {
	case nil:
	case QuitCmd:
		l.quit = true
	case BatchCmd:
		for _, sub := range c {
			l.execute(sub)
		}
	case SequenceCmd:
		for _, sub := range c {
			l.execute(sub)
		}
	case MsgCmd:
		l.dispatch(c.Msg)
	case TickCmd:
		fn := c.Fn
		time.AfterFunc(c.After, func() {
			if fn != nil {
				l.Post(fn(time.Now()))
			}
		})
	case LogCmd:
		l.writer.WriteLog([]byte(c))
	case PerformCmd:
		l.perform(c)
	}
}

// perform runs an async command off the critical path; the result (or the
// TimedOut message) comes back through the message queue.
func (l *Loop) perform(c PerformCmd) {
	if c.Run == nil {
		return
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = l.performTimeout
	}
	run := c.Run
	timedOut := c.TimedOut
	terminal.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		done := make(chan Msg, 1)
		go func() { done <- run(ctx) }()

		select {
		case msg := <-done:
			l.Post(msg)
		case <-ctx.Done():
			l.Post(timedOut)
		}
	})
}

// syncSubscriptions diffs the declared subscription set against the running
// one, starting and stopping the difference.
func (l *Loop) syncSubscriptions() {
	sub, ok := l.model.(Subscriber)
	if !ok {
		return
	}
	declared := sub.Subscriptions()

	want := map[string]Subscription{}
	for _, s := range declared {
		if s.ID != "" && s.Start != nil {
			want[s.ID] = s
		}
	}

	for id, stop := range l.subs {
		if _, keep := want[id]; !keep {
			if stop != nil {
				stop()
			}
			delete(l.subs, id)
		}
	}
	for id, s := range want {
		if _, running := l.subs[id]; !running {
			l.subs[id] = s.Start(l.Post)
		}
	}
}

func (l *Loop) stopAllSubs() {
	for id, stop := range l.subs {
		if stop != nil {
			stop()
		}
		delete(l.subs, id)
	}
}

func (l *Loop) applyResize(ev event.Event) {
	w, h := ev.Width, ev.Height
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	l.writer.Resize(w, h)
	l.dispatch(ResizeAppliedMsg{Width: w, Height: h})
	l.dirty = true
}

func (l *Loop) present() error {
	frame := l.writer.NewFrame()
	l.model.View(frame)

	l.writer.SetTier(l.degrader.Tier())

	if l.rt != nil {
		// Hand off; the degrader sees the render thread's last measurement.
		l.rt.submit(frame)
		err, d := l.rt.stats()
		if d > 0 {
			l.degrader.ObserveFrame(d)
		}
		if err != nil {
			return err
		}
		l.dirty = false
		return nil
	}

	start := time.Now()
	err := l.writer.PresentUI(frame)
	l.degrader.ObserveFrame(time.Since(start))
	if err != nil {
		return err
	}
	l.dirty = false
	return nil
}

func (l *Loop) maybeGC() {
	if l.rt != nil {
		return // the render thread owns the GC cadence
	}
	if l.iter&gcIterationMask != 0 && time.Since(l.lastGC) < gcMaxInterval {
		return
	}
	l.writer.GC()
	l.lastGC = time.Now()
}

func (l *Loop) recordLatency(d time.Duration) {
	l.latencies = append(l.latencies, d)
	if len(l.latencies) > 64 {
		l.latencies = l.latencies[len(l.latencies)-64:]
	}
}

// p95Latency returns the 95th percentile of recent keystroke latencies.
func (l *Loop) p95Latency() time.Duration {
	if len(l.latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(l.latencies))
	copy(sorted, l.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := len(sorted) * 95 / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// checkFairness computes the Jain index over serviced work per source and
// reports whether the loop should yield a render slot to catch up.
func (l *Loop) checkFairness() bool {
	unfair := false

	a, b := float64(l.inputServiced), float64(l.msgServiced)
	if a+b > 0 && (a > 0 || b > 0) && a != b {
		f := jainIndex(a, b)
		if f < fairnessFloor {
			unfair = true
		}
	}

	if l.p95Latency() > l.latencyBudget {
		unfair = true
	}

	if unfair {
		l.maxBatch /= 2
		if l.maxBatch < minBatch {
			l.maxBatch = minBatch
		}
		if l.sink != nil {
			l.sink.Record(evidence.KindBudgetAlert, evidence.Fields{
				"reason":    "fairness",
				"p95_ms":    l.p95Latency().Milliseconds(),
				"max_batch": l.maxBatch,
			})
		}
	} else if l.maxBatch < defaultMaxBatch {
		l.maxBatch *= 2
	}
	return unfair
}

// jainIndex is (Σx)² / (n·Σx²) over the serviced-work vector.
func jainIndex(xs ...float64) float64 {
	var sum, sumSq float64
	for _, x := range xs {
		sum += x
		sumSq += x * x
	}
	if sumSq == 0 {
		return 1
	}
	return sum * sum / (float64(len(xs)) * sumSq)
}
