// Package evidence is the append-only structured ledger of kernel decisions:
// diff strategy choices, resize regime calls, budget alerts, and remote
// attach transitions. One JSONL line per record, single writer, never
// blocking the render path.
package evidence

import (
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Record kinds the kernel emits. Consumers may define more; the sink only
// guarantees append-only, single-writer, well-formed JSON.
const (
	KindDiffDecision    = "diff_decision"
	KindResizeDecision  = "resize_decision"
	KindBudgetAlert     = "budget_alert"
	KindAttachState     = "attach_state_transition"
	KindCapabilityProbe = "capability_probe"
	KindTierChange      = "tier_change"
	KindDropped         = "dropped_records"
	KindWriteError      = "write_error"
)

// FlushPolicy controls when buffered records reach the underlying writer.
type FlushPolicy uint8

const (
	// FlushPerWrite flushes after every record.
	FlushPerWrite FlushPolicy = iota
	// FlushBatched flushes when the queue drains.
	FlushBatched
)

// Fields carries the event-specific payload of a record.
type Fields map[string]any

type pending struct {
	event  string
	ts     int64
	fields Fields
}

// Sink writes decision records as JSONL. Records are queued on a bounded
// channel consumed by a single writer goroutine; when the queue is full the
// oldest pending record is dropped and counted, and the writer emits a drop
// counter record once the queue idles or the sink closes, so the render path
// never blocks on ledger I/O.
type Sink struct {
	out    io.Writer
	runID  string
	policy FlushPolicy

	queue   chan pending
	dropped atomic.Uint64

	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once

	now func() time.Time
}

const queueDepth = 256

// Option adjusts sink construction.
type Option func(*Sink)

// WithFlushPolicy selects the flush cadence.
func WithFlushPolicy(p FlushPolicy) Option {
	return func(s *Sink) { s.policy = p }
}

// WithClock overrides the timestamp source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) { s.now = now }
}

// NewSink creates a sink writing to out and starts its writer goroutine.
func NewSink(out io.Writer, runID string, opts ...Option) *Sink {
	s := &Sink{
		out:    out,
		runID:  runID,
		queue:  make(chan pending, queueDepth),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.writeLoop()
	return s
}

// Record queues one decision record. Never blocks: on overflow the oldest
// pending record is evicted and counted so the newest decisions survive.
func (s *Sink) Record(event string, fields Fields) {
	p := pending{event: event, ts: s.now().UnixMilli(), fields: fields}
	for {
		select {
		case s.queue <- p:
			return
		default:
		}
		// Queue full: evict the head to make room for the new record.
		select {
		case <-s.queue:
			s.dropped.Add(1)
		default:
			// The writer drained it first; retry the enqueue.
		}
	}
}

// Dropped returns the number of records lost to overflow so far.
func (s *Sink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close drains the queue and stops the writer. Safe to call more than once.
func (s *Sink) Close() {
	s.once.Do(func() {
		close(s.stopCh)
		<-s.doneCh
	})
}

func (s *Sink) writeLoop() {
	defer close(s.doneCh)

	flusher, canFlush := s.out.(interface{ Flush() error })

	write := func(p pending) {
		line := make(map[string]any, len(p.fields)+3)
		for k, v := range p.fields {
			line[k] = v
		}
		line["event"] = p.event
		line["ts_ms"] = p.ts
		line["run_id"] = s.runID

		data, err := json.Marshal(line)
		if err != nil {
			return
		}
		data = append(data, '\n')
		s.out.Write(data)
		if canFlush && s.policy == FlushPerWrite {
			flusher.Flush()
		}
	}

	reportDrops := func() {
		if n := s.dropped.Swap(0); n > 0 {
			write(pending{
				event:  KindDropped,
				ts:     s.now().UnixMilli(),
				fields: Fields{"count": n},
			})
		}
	}

	for {
		select {
		case p := <-s.queue:
			write(p)
		case <-s.stopCh:
			for {
				select {
				case p := <-s.queue:
					write(p)
				default:
					reportDrops()
					if canFlush {
						flusher.Flush()
					}
					return
				}
			}
		default:
			// Queue idle: surface accumulated drops, then wait.
			reportDrops()
			if canFlush && s.policy == FlushBatched {
				flusher.Flush()
			}
			select {
			case p := <-s.queue:
				write(p)
			case <-s.stopCh:
			}
		}
	}
}
