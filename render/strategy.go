package render

import (
	"math"
)

// Default cost-model constants: relative cost of scanning one cell versus
// emitting one changed cell. Emission dominates because every changed cell
// may carry an SGR transition on the wire.
const (
	DefaultScanCost = 1.0
	DefaultEmitCost = 12.0
)

// StrategyDecision captures one strategy choice for the evidence ledger.
type StrategyDecision struct {
	Chosen       DiffStrategy
	PosteriorP   float64
	PosteriorVar float64
	Conservative bool
	CostFull     float64
	CostDirty    float64
	CostRedraw   float64
}

// StrategySelector picks a diff strategy per frame by minimizing expected
// cost under a Beta posterior over the per-cell change rate. The posterior
// decays exponentially so the estimate tracks regime changes.
type StrategySelector struct {
	alpha float64
	beta  float64
	decay float64

	scanCost float64
	emitCost float64
}

// NewStrategySelector creates a selector with Beta(1, 19) priors and
// decay 0.95: a weak belief that ~5% of cells change per frame.
func NewStrategySelector() *StrategySelector {
	return &StrategySelector{
		alpha:    1,
		beta:     19,
		decay:    0.95,
		scanCost: DefaultScanCost,
		emitCost: DefaultEmitCost,
	}
}

// SetCosts overrides the cost-model constants.
func (s *StrategySelector) SetCosts(scan, emit float64) {
	if scan > 0 {
		s.scanCost = scan
	}
	if emit > 0 {
		s.emitCost = emit
	}
}

// Observe folds one frame's outcome into the posterior: changed cells out of
// total scanned.
func (s *StrategySelector) Observe(changed, total int) {
	if total <= 0 {
		return
	}
	// Batch Bernoulli update scaled to a single pseudo-observation, so the
	// decay horizon is measured in frames rather than cells.
	frac := float64(changed) / float64(total)
	s.alpha = s.decay*s.alpha + frac
	s.beta = s.decay*s.beta + (1 - frac)
}

// Mean returns the posterior mean change rate.
func (s *StrategySelector) Mean() float64 {
	return s.alpha / (s.alpha + s.beta)
}

// Variance returns the posterior variance.
func (s *StrategySelector) Variance() float64 {
	n := s.alpha + s.beta
	return s.alpha * s.beta / (n * n * (n + 1))
}

// quantile95 approximates the Beta 95th percentile with a normal tail.
func (s *StrategySelector) quantile95() float64 {
	q := s.Mean() + 1.645*math.Sqrt(s.Variance())
	if q > 1 {
		q = 1
	}
	return q
}

// highVariance is the threshold above which the posterior is considered too
// loose to trust its mean.
const highVariance = 0.01

// Select picks the cheapest strategy for a frame of the given dimensions.
// dirtyRows is the number of rows the dirty bitmap would let the diff scan.
// conservative forces the 95th-percentile change rate (used when the
// degradation tier is elevated); a high-variance posterior triggers the same
// substitution on its own.
func (s *StrategySelector) Select(width, height, dirtyRows int, conservative bool) StrategyDecision {
	n := float64(width * height)
	p := s.Mean()
	variance := s.Variance()
	useTail := conservative || variance > highVariance
	if useTail {
		p = s.quantile95()
	}

	costFull := s.scanCost*n + s.emitCost*p*n
	costDirty := s.scanCost*float64(dirtyRows*width) + s.emitCost*p*n
	costRedraw := s.emitCost * n

	d := StrategyDecision{
		PosteriorP:   p,
		PosteriorVar: variance,
		Conservative: useTail,
		CostFull:     costFull,
		CostDirty:    costDirty,
		CostRedraw:   costRedraw,
	}

	switch {
	case costRedraw <= costDirty && costRedraw <= costFull:
		d.Chosen = StrategyFullRedraw
	case costDirty <= costFull:
		d.Chosen = StrategyDirtySpan
	default:
		d.Chosen = StrategyFullScan
	}
	return d
}

// DirtyRowCount counts rows marked dirty in either buffer, the scan set of
// StrategyDirtySpan.
func DirtyRowCount(old, new *Buffer) int {
	if old == nil {
		return new.height
	}
	n := 0
	for y := 0; y < new.height; y++ {
		if old.RowDirty(y) || new.RowDirty(y) {
			n++
		}
	}
	return n
}
