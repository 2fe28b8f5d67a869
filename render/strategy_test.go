package render

import (
	"testing"
)

func TestSelectorPriorFavorsDirtySpan(t *testing.T) {
	s := NewStrategySelector()
	// Fresh prior, few dirty rows: scanning only dirty spans is cheapest.
	d := s.Select(80, 24, 2, false)
	if d.Chosen != StrategyDirtySpan {
		t.Errorf("Expected dirty_span under the prior, got %v", d.Chosen)
	}
	if d.CostDirty >= d.CostFull {
		t.Errorf("Expected dirty cost below full cost")
	}
}

func TestSelectorHighChangeRatePrefersRedraw(t *testing.T) {
	s := NewStrategySelector()
	for i := 0; i < 200; i++ {
		s.Observe(1900, 1920) // nearly every cell changes
	}
	d := s.Select(80, 24, 24, false)
	if d.Chosen != StrategyFullRedraw {
		t.Errorf("Expected full_redraw at high change rate, got %v (p=%f)", d.Chosen, d.PosteriorP)
	}
}

func TestObserveDecayTracksRegimeChange(t *testing.T) {
	s := NewStrategySelector()
	for i := 0; i < 100; i++ {
		s.Observe(1900, 1920)
	}
	high := s.Mean()
	for i := 0; i < 200; i++ {
		s.Observe(0, 1920)
	}
	low := s.Mean()
	if low >= high {
		t.Errorf("Expected decayed posterior to fall, %f -> %f", high, low)
	}
	if low > 0.1 {
		t.Errorf("Expected posterior to approach zero, got %f", low)
	}
}

func TestConservativeModeUsesTail(t *testing.T) {
	s := NewStrategySelector()
	mean := s.Select(80, 24, 4, false)
	tail := s.Select(80, 24, 4, true)
	if !tail.Conservative {
		t.Errorf("Expected conservative flag set")
	}
	if tail.PosteriorP <= mean.PosteriorP && !mean.Conservative {
		t.Errorf("Expected 95th percentile above mean: %f vs %f", tail.PosteriorP, mean.PosteriorP)
	}
}

func TestDirtyRowCount(t *testing.T) {
	a := NewBuffer(4, 4)
	b := NewBuffer(4, 4)
	a.ClearDirty()
	b.ClearDirty()
	b.Set(0, 1, CellFromRune('x'))
	a.Set(0, 3, CellFromRune('y'))
	if n := DirtyRowCount(a, b); n != 2 {
		t.Errorf("Expected 2 dirty rows, got %d", n)
	}
	if n := DirtyRowCount(nil, b); n != 4 {
		t.Errorf("Expected all rows with nil old, got %d", n)
	}
}
