package runtime

import (
	"testing"
	"time"

	"github.com/sfncore/frankentui/render"
)

func TestDegraderStaysFullOnBudget(t *testing.T) {
	d := NewDegrader(nil)
	for i := 0; i < 100; i++ {
		if tier := d.ObserveFrame(10 * time.Millisecond); tier != render.TierFull {
			t.Fatalf("Expected TierFull on budget, got %v", tier)
		}
	}
}

func TestDegraderShedsUnderLoad(t *testing.T) {
	d := NewDegrader(nil)
	tier := render.TierFull
	for i := 0; i < 50; i++ {
		tier = d.ObserveFrame(100 * time.Millisecond)
	}
	if tier == render.TierFull {
		t.Errorf("Expected degradation under sustained 100ms frames, got %v", tier)
	}
}

func TestDegraderHysteresis(t *testing.T) {
	d := NewDegrader(nil)
	// Push into degradation.
	for i := 0; i < 50; i++ {
		d.ObserveFrame(100 * time.Millisecond)
	}
	degraded := d.Tier()
	if degraded == render.TierFull {
		t.Fatalf("Expected a degraded tier")
	}

	// One fast frame must not flip the tier back.
	d.ObserveFrame(2 * time.Millisecond)
	if d.Tier() != degraded {
		t.Errorf("Expected hysteresis to hold after one good frame")
	}

	// A sustained run of fast frames recovers.
	for i := 0; i < 200; i++ {
		d.ObserveFrame(2 * time.Millisecond)
	}
	if d.Tier() != render.TierFull {
		t.Errorf("Expected recovery to TierFull, got %v", d.Tier())
	}
}

func TestDegraderOverride(t *testing.T) {
	d := NewDegrader(nil)
	d.SetTierOverride(render.TierTextOnly, "external risk gate")
	if d.Tier() != render.TierTextOnly {
		t.Errorf("Expected override tier")
	}
	if tier := d.ObserveFrame(time.Millisecond); tier != render.TierTextOnly {
		t.Errorf("Expected override to win over the PI loop, got %v", tier)
	}
	d.ClearTierOverride()
	if d.Tier() == render.TierTextOnly {
		t.Errorf("Expected PI tier after clearing the override")
	}
}

func TestTierForControlMapping(t *testing.T) {
	if tierForControl(1, 16) != render.TierFull {
		t.Errorf("Expected full with headroom")
	}
	if tierForControl(-4, 16) != render.TierSimpleBorders {
		t.Errorf("Expected simple borders at mild deficit")
	}
	if tierForControl(-12, 16) != render.TierNoColors {
		t.Errorf("Expected no colors at heavy deficit")
	}
	if tierForControl(-100, 16) != render.TierTextOnly {
		t.Errorf("Expected text only at extreme deficit")
	}
}
