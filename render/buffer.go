package render

// Rect is a half-open clip rectangle: x in [X, X+W), y in [Y, Y+H).
type Rect struct {
	X, Y, W, H int
}

// Intersect returns the overlap of two rectangles (possibly empty).
func (r Rect) Intersect(o Rect) Rect {
	x0 := max(r.X, o.X)
	y0 := max(r.Y, o.Y)
	x1 := min(r.X+r.W, o.X+o.W)
	y1 := min(r.Y+r.H, o.Y+o.H)
	if x1 <= x0 || y1 <= y0 {
		return Rect{X: x0, Y: y0}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Contains reports whether (x, y) lies inside the rectangle.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Empty reports whether the rectangle covers no cells.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Buffer is a row-major 2D cell grid with compositing stacks and a dirty-row
// bitmap. Dimensions are immutable after construction; a resize allocates a
// new buffer.
type Buffer struct {
	width  int
	height int
	cells  []Cell

	scissor []Rect
	opacity []float64

	dirty []uint64 // one bit per row
}

// NewBuffer creates a buffer of the given dimensions. Zero or negative
// dimensions are clamped to 1. All rows start dirty so a diff against a
// stale prior treats the buffer as fully changed.
func NewBuffer(width, height int) *Buffer {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	b := &Buffer{
		width:   width,
		height:  height,
		cells:   make([]Cell, width*height),
		scissor: []Rect{{W: width, H: height}},
		opacity: []float64{1.0},
		dirty:   make([]uint64, (height+63)/64),
	}
	b.MarkAllDirty()
	return b
}

// Width returns the buffer width.
func (b *Buffer) Width() int {
	return b.width
}

// Height returns the buffer height.
func (b *Buffer) Height() int {
	return b.height
}

func (b *Buffer) inBounds(x, y int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height
}

// Get returns the cell at (x, y), or the empty cell out of bounds.
func (b *Buffer) Get(x, y int) Cell {
	if !b.inBounds(x, y) {
		return EmptyCell
	}
	return b.cells[y*b.width+x]
}

// GetUnchecked returns the cell at (x, y) without bounds checks.
func (b *Buffer) GetUnchecked(x, y int) Cell {
	return b.cells[y*b.width+x]
}

// Set writes a cell through the scissor and opacity stacks. Out-of-scissor
// writes are dropped; translucent backgrounds blend over the existing cell;
// a wide cell at the right edge is clamped to empty. The row is marked dirty
// on every accepted write — coalescing identical writes is the diff's job,
// not Set's.
func (b *Buffer) Set(x, y int, c Cell) {
	if !b.inBounds(x, y) {
		return
	}
	if !b.scissor[len(b.scissor)-1].Contains(x, y) {
		return
	}

	if op := b.opacity[len(b.opacity)-1]; op < 1.0 {
		c.Fg = c.Fg.ScaleAlpha(op)
		c.Bg = c.Bg.ScaleAlpha(op)
	}

	idx := y*b.width + x
	if a := c.Bg.A(); a > 0 && a < 255 {
		c.Bg = c.Bg.Over(b.cells[idx].Bg)
	}

	if c.Width() == 2 {
		if x+1 >= b.width {
			// A wide glyph cannot straddle the right edge.
			c = EmptyCell
		} else {
			cont := c
			cont.Content = ContentContinuation
			b.cells[idx+1] = cont
		}
	}

	b.cells[idx] = c
	b.markRowDirty(y)
}

func (b *Buffer) markRowDirty(y int) {
	b.dirty[y>>6] |= 1 << (uint(y) & 63)
}

// RowDirty reports whether row y has been written since the last ClearDirty.
func (b *Buffer) RowDirty(y int) bool {
	if y < 0 || y >= b.height {
		return false
	}
	return b.dirty[y>>6]&(1<<(uint(y)&63)) != 0
}

// MarkAllDirty sets every row's dirty bit.
func (b *Buffer) MarkAllDirty() {
	for i := range b.dirty {
		b.dirty[i] = ^uint64(0)
	}
}

// ClearDirty resets the dirty bitmap. Called after a successful present.
func (b *Buffer) ClearDirty() {
	for i := range b.dirty {
		b.dirty[i] = 0
	}
}

// PushScissor intersects rect with the current clip and makes it current.
func (b *Buffer) PushScissor(r Rect) {
	top := b.scissor[len(b.scissor)-1]
	b.scissor = append(b.scissor, top.Intersect(r))
}

// PopScissor restores the previous clip. The root clip is never popped.
func (b *Buffer) PopScissor() {
	if len(b.scissor) > 1 {
		b.scissor = b.scissor[:len(b.scissor)-1]
	}
}

// PushOpacity multiplies the current opacity by a (clamped to [0,1]).
func (b *Buffer) PushOpacity(a float64) {
	if a < 0 {
		a = 0
	}
	if a > 1 {
		a = 1
	}
	b.opacity = append(b.opacity, b.opacity[len(b.opacity)-1]*a)
}

// PopOpacity restores the previous opacity. The root level is never popped.
func (b *Buffer) PopOpacity() {
	if len(b.opacity) > 1 {
		b.opacity = b.opacity[:len(b.opacity)-1]
	}
}

// Fill writes c to every cell inside the current scissor.
func (b *Buffer) Fill(c Cell) {
	clip := b.scissor[len(b.scissor)-1]
	for y := clip.Y; y < clip.Y+clip.H; y++ {
		for x := clip.X; x < clip.X+clip.W; x++ {
			b.Set(x, y, c)
		}
	}
}

// Clear resets every cell to empty and marks all rows dirty.
func (b *Buffer) Clear() {
	for i := range b.cells {
		b.cells[i] = EmptyCell
	}
	b.MarkAllDirty()
}

// CopyFrom bulk-copies cells and the dirty bitmap from an equally-sized
// buffer. Mismatched dimensions are ignored.
func (b *Buffer) CopyFrom(src *Buffer) {
	if b.width != src.width || b.height != src.height {
		return
	}
	copy(b.cells, src.cells)
	copy(b.dirty, src.dirty)
}
