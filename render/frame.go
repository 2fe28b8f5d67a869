package render

// Style is the drawing state applied by the Frame helpers.
type Style struct {
	Fg    PackedColor
	Bg    PackedColor
	Attrs CellAttrs
	Link  LinkID
}

// DefaultStyle draws with terminal default colors and no attributes.
var DefaultStyle = Style{}

func (s Style) attrs() CellAttrs {
	return s.Attrs.Flags().WithLink(s.Link)
}

// HitGrid maps cells to widget ids for mouse routing. Rebuilt per frame.
type HitGrid struct {
	width  int
	height int
	ids    []uint32
}

// NewHitGrid creates a grid matching the buffer dimensions.
func NewHitGrid(width, height int) *HitGrid {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return &HitGrid{width: width, height: height, ids: make([]uint32, width*height)}
}

// Mark claims a rectangle for a widget id.
func (h *HitGrid) Mark(r Rect, id uint32) {
	clip := r.Intersect(Rect{W: h.width, H: h.height})
	for y := clip.Y; y < clip.Y+clip.H; y++ {
		row := y * h.width
		for x := clip.X; x < clip.X+clip.W; x++ {
			h.ids[row+x] = id
		}
	}
}

// At returns the widget id at (x, y), 0 when unclaimed or out of bounds.
func (h *HitGrid) At(x, y int) uint32 {
	if x < 0 || x >= h.width || y < 0 || y >= h.height {
		return 0
	}
	return h.ids[y*h.width+x]
}

// Frame is one rendered picture: a buffer plus per-frame metadata. Produced
// by the application's view, consumed by diff and presenter.
type Frame struct {
	buffer        *Buffer
	hits          *HitGrid
	pool          *GraphemePool
	links         *LinkRegistry
	cursorX       int
	cursorY       int
	cursorSet     bool
	CursorVisible bool
}

// NewFrame wraps a buffer with the writer-owned pools.
func NewFrame(buf *Buffer, pool *GraphemePool, links *LinkRegistry) *Frame {
	return &Frame{buffer: buf, pool: pool, links: links}
}

// Buffer returns the frame's cell grid.
func (f *Frame) Buffer() *Buffer {
	return f.buffer
}

// Width returns the drawable width.
func (f *Frame) Width() int {
	return f.buffer.Width()
}

// Height returns the drawable height.
func (f *Frame) Height() int {
	return f.buffer.Height()
}

// GraphemePool exposes the shared cluster pool.
func (f *Frame) GraphemePool() *GraphemePool {
	return f.pool
}

// LinkRegistry exposes the shared link registry.
func (f *Frame) LinkRegistry() *LinkRegistry {
	return f.links
}

// HitGrid returns the frame's hit grid, allocating it on first use.
func (f *Frame) HitGrid() *HitGrid {
	if f.hits == nil {
		f.hits = NewHitGrid(f.buffer.Width(), f.buffer.Height())
	}
	return f.hits
}

// SetCursor places the terminal cursor for this frame.
func (f *Frame) SetCursor(x, y int) {
	f.cursorX, f.cursorY = x, y
	f.cursorSet = true
}

// Cursor returns the requested cursor position, ok=false when unset.
func (f *Frame) Cursor() (x, y int, ok bool) {
	return f.cursorX, f.cursorY, f.cursorSet
}

// Set writes a single cell.
func (f *Frame) Set(x, y int, c Cell) {
	f.buffer.Set(x, y, c)
}

// PushScissor narrows the clip for subsequent draws.
func (f *Frame) PushScissor(r Rect) {
	f.buffer.PushScissor(r)
}

// PopScissor restores the previous clip.
func (f *Frame) PopScissor() {
	f.buffer.PopScissor()
}

// PushOpacity multiplies the drawing opacity.
func (f *Frame) PushOpacity(a float64) {
	f.buffer.PushOpacity(a)
}

// PopOpacity restores the previous opacity.
func (f *Frame) PopOpacity() {
	f.buffer.PopOpacity()
}

// DrawText writes a string starting at (x, y) and returns the column after
// the last cell written. Multi-scalar clusters are interned in the pool;
// pool exhaustion degrades the cluster to U+FFFD.
func (f *Frame) DrawText(x, y int, text string, style Style) int {
	attrs := style.attrs()
	SegmentClusters(text, func(cluster string, width int) {
		if width <= 0 {
			return
		}
		cell := Cell{Fg: style.Fg, Bg: style.Bg, Attrs: attrs}

		r, single := singleScalar(cluster)
		if single {
			cell.Content = ContentFromRune(r)
		} else if id, ok := f.pool.Intern(cluster); ok {
			cell.Content = ContentFromGrapheme(id)
		} else {
			cell.Content = ContentFromRune('�')
			width = 1
		}

		f.buffer.Set(x, y, cell)
		x += width
	})
	return x
}

// singleScalar reports whether the cluster is exactly one rune.
func singleScalar(cluster string) (rune, bool) {
	var first rune
	n := 0
	for _, r := range cluster {
		if n > 0 {
			return 0, false
		}
		first = r
		n++
	}
	return first, n == 1
}
