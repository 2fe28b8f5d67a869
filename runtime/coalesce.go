package runtime

import (
	"math"
	"time"

	"github.com/sfncore/frankentui/event"
	"github.com/sfncore/frankentui/evidence"
)

// Coalescer parameters. The observation model is a two-regime Exponential
// over resize inter-arrival times; regime changes are tracked with Bayesian
// online change-point detection over a truncated run-length posterior.
const (
	DefaultSteadyMean   = 200 * time.Millisecond
	DefaultBurstMean    = 20 * time.Millisecond
	DefaultHazardLambda = 50.0
	DefaultRunLengthK   = 100

	// Release delays: a burst coalesces aggressively, a steady stream still
	// dwells one frame so the leading edge of a storm is not applied.
	DefaultBurstDelay  = 50 * time.Millisecond
	DefaultSteadyDwell = 25 * time.Millisecond

	// DefaultMaxCoalesce bounds how long any resize can stay pending.
	DefaultMaxCoalesce = 200 * time.Millisecond

	burstThreshold  = 0.7
	steadyThreshold = 0.3
)

const nRegimes = 2 // 0 = steady, 1 = burst

// Coalescer decides when to apply resize events. Arrivals supersede each
// other (latest wins); release timing follows the regime posterior, with a
// hard deadline so a pending resize is always applied within MaxCoalesce.
type Coalescer struct {
	steadyRate float64 // events per ms
	burstRate  float64
	hazard     float64
	k          int

	burstDelay  time.Duration
	steadyDwell time.Duration
	maxCoalesce time.Duration

	// Joint run-length/regime posterior: posterior[r*nRegimes+m].
	posterior []float64

	pending     *event.Event
	firstOffer  time.Time
	releaseAt   time.Time
	lastArrival time.Time
	hasArrival  bool

	lastAction string
	pBurst     float64
	logBF      float64

	sink *evidence.Sink
}

// NewCoalescer creates a coalescer with the default regime model.
func NewCoalescer(sink *evidence.Sink) *Coalescer {
	c := &Coalescer{
		steadyRate:  1.0 / float64(DefaultSteadyMean/time.Millisecond),
		burstRate:   1.0 / float64(DefaultBurstMean/time.Millisecond),
		hazard:      1.0 / DefaultHazardLambda,
		k:           DefaultRunLengthK,
		burstDelay:  DefaultBurstDelay,
		steadyDwell: DefaultSteadyDwell,
		maxCoalesce: DefaultMaxCoalesce,
		sink:        sink,
	}
	c.reset()
	return c
}

// SetDelays overrides the release timing.
func (c *Coalescer) SetDelays(burst, steady, maxCoalesce time.Duration) {
	if burst > 0 {
		c.burstDelay = burst
	}
	if steady >= 0 {
		c.steadyDwell = steady
	}
	if maxCoalesce > 0 {
		c.maxCoalesce = maxCoalesce
	}
}

func (c *Coalescer) reset() {
	c.posterior = make([]float64, c.k*nRegimes)
	// All mass at run length 0, regimes equiprobable.
	c.posterior[0] = 0.5
	c.posterior[1] = 0.5
	c.pBurst = 0.5
}

// expPDF is the Exponential density with the given rate, in 1/ms.
func expPDF(rate, dtMS float64) float64 {
	return rate * math.Exp(-rate*dtMS)
}

// observe folds one inter-arrival time into the run-length posterior and
// refreshes P(burst) and the log Bayes factor.
func (c *Coalescer) observe(dt time.Duration) {
	dtMS := float64(dt) / float64(time.Millisecond)
	if dtMS <= 0 {
		dtMS = 0.01
	}

	likSteady := expPDF(c.steadyRate, dtMS)
	likBurst := expPDF(c.burstRate, dtMS)
	lik := [nRegimes]float64{likSteady, likBurst}

	next := make([]float64, c.k*nRegimes)
	var cpMass float64

	for r := 0; r < c.k; r++ {
		for m := 0; m < nRegimes; m++ {
			p := c.posterior[r*nRegimes+m]
			if p == 0 {
				continue
			}
			weighted := p * lik[m]
			// Growth: the run continues in the same regime.
			if r+1 < c.k {
				next[(r+1)*nRegimes+m] += weighted * (1 - c.hazard)
			} else {
				next[r*nRegimes+m] += weighted * (1 - c.hazard)
			}
			// Change point: run length resets, regime redrawn uniformly.
			cpMass += weighted * c.hazard
		}
	}
	next[0] += cpMass / nRegimes
	next[1] += cpMass / nRegimes

	var total float64
	for _, p := range next {
		total += p
	}
	if total <= 0 {
		c.reset()
		return
	}
	for i := range next {
		next[i] /= total
	}
	c.posterior = next

	var burst float64
	for r := 0; r < c.k; r++ {
		burst += c.posterior[r*nRegimes+1]
	}
	c.pBurst = burst

	steady := 1 - burst
	if steady < 1e-12 {
		steady = 1e-12
	}
	if burst < 1e-12 {
		burst = 1e-12
	}
	c.logBF = math.Log10(burst / steady)
}

// PBurst returns the current burst-regime probability.
func (c *Coalescer) PBurst() float64 {
	return c.pBurst
}

// delayFor maps the regime posterior to a release delay: burst coalesces at
// the full delay, steady dwells minimally, in between interpolates.
func (c *Coalescer) delayFor() time.Duration {
	switch {
	case c.pBurst > burstThreshold:
		return c.burstDelay
	case c.pBurst < steadyThreshold:
		return c.steadyDwell
	}
	t := (c.pBurst - steadyThreshold) / (burstThreshold - steadyThreshold)
	return c.steadyDwell + time.Duration(t*float64(c.burstDelay-c.steadyDwell))
}

// Offer hands a resize event to the coalescer. A pending resize is
// superseded (latest wins) and the release clock restarts, bounded by the
// hard deadline from the first unapplied offer.
func (c *Coalescer) Offer(ev event.Event, now time.Time) {
	if ev.Kind != event.KindResize {
		return
	}

	if c.hasArrival {
		c.observe(now.Sub(c.lastArrival))
	}
	c.lastArrival = now
	c.hasArrival = true

	if c.pending == nil {
		c.firstOffer = now
	}
	evCopy := ev
	c.pending = &evCopy
	c.releaseAt = now.Add(c.delayFor())

	if c.lastAction != "coalesce" {
		c.lastAction = "coalesce"
		if c.sink != nil {
			c.sink.Record(evidence.KindResizeDecision, evidence.Fields{
				"chosen_action": "coalesce",
				"p_burst":       c.pBurst,
				"log10_bf":      c.logBF,
				"delay_ms":      c.delayFor().Milliseconds(),
			})
		}
	}
}

// Ready releases the pending resize once its delay elapsed or the hard
// deadline passed. ok is false while nothing is due.
func (c *Coalescer) Ready(now time.Time) (event.Event, bool) {
	if c.pending == nil {
		return event.Event{}, false
	}

	deadline := c.firstOffer.Add(c.maxCoalesce)
	if now.Before(c.releaseAt) && now.Before(deadline) {
		return event.Event{}, false
	}

	ev := *c.pending
	c.pending = nil
	c.lastAction = "apply"
	if c.sink != nil {
		c.sink.Record(evidence.KindResizeDecision, evidence.Fields{
			"chosen_action": "apply",
			"p_burst":       c.pBurst,
			"log10_bf":      c.logBF,
			"width":         ev.Width,
			"height":        ev.Height,
		})
	}
	return ev, true
}

// NextDeadline returns when Ready should next be polled; ok is false when
// nothing is pending.
func (c *Coalescer) NextDeadline() (time.Time, bool) {
	if c.pending == nil {
		return time.Time{}, false
	}
	deadline := c.firstOffer.Add(c.maxCoalesce)
	if c.releaseAt.Before(deadline) {
		return c.releaseAt, true
	}
	return deadline, true
}
