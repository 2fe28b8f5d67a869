package render

import (
	"math/rand"
	"testing"
)

func TestDiffEmptyWhenIdentical(t *testing.T) {
	a := NewBuffer(8, 4)
	b := NewBuffer(8, 4)
	a.Set(2, 1, CellFromRune('x'))
	b.Set(2, 1, CellFromRune('x'))
	if runs := Diff(a, b); len(runs) != 0 {
		t.Errorf("Expected empty diff, got %v", runs)
	}
}

func TestDiffSingleCell(t *testing.T) {
	a := NewBuffer(3, 1)
	b := NewBuffer(3, 1)
	for x, r := range []rune{'A', 'B', 'C'} {
		a.Set(x, 0, CellFromRune(r))
	}
	for x, r := range []rune{'A', 'X', 'C'} {
		b.Set(x, 0, CellFromRune(r))
	}
	runs := Diff(a, b)
	if len(runs) != 1 {
		t.Fatalf("Expected one run, got %v", runs)
	}
	if runs[0] != (ChangeRun{Y: 0, X0: 1, X1: 1}) {
		t.Errorf("Expected run {0,1,1}, got %+v", runs[0])
	}
}

func TestDiffCoalescesRuns(t *testing.T) {
	a := NewBuffer(8, 1)
	b := NewBuffer(8, 1)
	for x := 2; x <= 5; x++ {
		b.Set(x, 0, CellFromRune('x'))
	}
	runs := Diff(a, b)
	if len(runs) != 1 {
		t.Fatalf("Expected one coalesced run, got %v", runs)
	}
	if runs[0].X0 != 2 || runs[0].X1 != 5 {
		t.Errorf("Expected run 2..5, got %+v", runs[0])
	}
}

func TestDiffSkipsCleanRows(t *testing.T) {
	a := NewBuffer(4, 4)
	b := NewBuffer(4, 4)
	a.ClearDirty()
	b.ClearDirty()
	b.Set(0, 2, CellFromRune('q'))
	runs := Diff(a, b)
	for _, r := range runs {
		if r.Y != 2 {
			t.Errorf("Expected changes confined to row 2, got %+v", r)
		}
	}
	if len(runs) != 1 {
		t.Errorf("Expected one run, got %v", runs)
	}
}

func TestDiffFullRedrawCoversEverything(t *testing.T) {
	b := NewBuffer(5, 3)
	runs := DiffWithStrategy(nil, b, StrategyFullRedraw)
	if len(runs) != 3 {
		t.Fatalf("Expected 3 full rows, got %d", len(runs))
	}
	for y, r := range runs {
		if r.Y != y || r.X0 != 0 || r.X1 != 4 {
			t.Errorf("Expected full row %d, got %+v", y, r)
		}
	}
}

// randomBuffer fills a buffer with narrow glyphs and colors from a seeded
// source so failures reproduce.
func randomBuffer(rng *rand.Rand, w, h int) *Buffer {
	b := NewBuffer(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if rng.Intn(3) == 0 {
				continue
			}
			b.Set(x, y, Cell{
				Content: ContentFromRune(rune('a' + rng.Intn(26))),
				Fg:      RGB(uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256))),
			})
		}
	}
	return b
}

// Diff soundness: applying the diff of (A, B) onto a copy of A reproduces B.
func TestDiffSoundness(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		w := 1 + rng.Intn(40)
		h := 1 + rng.Intn(20)
		a := randomBuffer(rng, w, h)
		b := randomBuffer(rng, w, h)

		applied := NewBuffer(w, h)
		applied.CopyFrom(a)
		runs := Diff(a, b)
		ApplyDiff(applied, b, runs)

		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if applied.Get(x, y) != b.Get(x, y) {
					t.Fatalf("trial %d: cell (%d,%d) differs after apply", trial, x, y)
				}
			}
		}
	}
}

// Diff completeness: a cell is covered by exactly one run iff it differs.
func TestDiffCompleteness(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 50; trial++ {
		w := 1 + rng.Intn(40)
		h := 1 + rng.Intn(20)
		a := randomBuffer(rng, w, h)
		b := randomBuffer(rng, w, h)
		runs := Diff(a, b)

		covered := make(map[[2]int]int)
		for _, r := range runs {
			for x := r.X0; x <= r.X1; x++ {
				covered[[2]int{x, r.Y}]++
			}
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				differs := a.Get(x, y) != b.Get(x, y)
				n := covered[[2]int{x, y}]
				if differs && n != 1 {
					t.Fatalf("trial %d: differing cell (%d,%d) covered %d times", trial, x, y, n)
				}
				if !differs && n != 0 {
					t.Fatalf("trial %d: unchanged cell (%d,%d) covered %d times", trial, x, y, n)
				}
			}
		}
	}
}

// Applying the same frame twice produces an empty diff the second time.
func TestDiffIdempotence(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	a := randomBuffer(rng, 20, 10)
	b := randomBuffer(rng, 20, 10)

	front := NewBuffer(20, 10)
	front.CopyFrom(a)
	ApplyDiff(front, b, Diff(front, b))
	front.ClearDirty()
	b.ClearDirty()

	if runs := Diff(front, b); len(runs) != 0 {
		t.Errorf("Expected empty second diff, got %v", runs)
	}
}

func TestCellCount(t *testing.T) {
	runs := []ChangeRun{{Y: 0, X0: 0, X1: 3}, {Y: 1, X0: 2, X1: 2}}
	if n := CellCount(runs); n != 5 {
		t.Errorf("Expected 5 cells, got %d", n)
	}
}
