package terminal

import (
	"bufio"

	"github.com/sfncore/frankentui/render"
)

// trackedStyle is the presenter's belief about the terminal's SGR state.
type trackedStyle struct {
	fg    render.PackedColor
	bg    render.PackedColor
	attrs render.CellAttrs
}

// Presenter converts change runs into one atomic byte stream, tracking the
// terminal's cursor, style, and hyperlink state so every emission is a
// minimal delta. Initial state is unknown: the first cell emits a full SGR
// and an absolute cursor position.
type Presenter struct {
	cursorX     int
	cursorY     int
	cursorValid bool

	style      trackedStyle
	styleValid bool

	link     render.LinkID
	linkOpen bool

	// origin offsets emitted rows: buffer row y lands on terminal row
	// y+origin. Inline UIs anchor below the log stream.
	origin int
}

// NewPresenter creates a presenter with unknown terminal state.
func NewPresenter() *Presenter {
	return &Presenter{}
}

// Invalidate forgets all tracked terminal state, forcing absolute positioning
// and a full SGR on the next present. Called after anything else wrote to the
// terminal (logs, mode changes).
func (p *Presenter) Invalidate() {
	p.cursorValid = false
	p.styleValid = false
	// A hyperlink left open by a previous frame still needs closing; keep
	// the flag so the next present terminates it.
}

// Cursor returns the tracked cursor position; ok is false when unknown.
func (p *Presenter) Cursor() (x, y int, ok bool) {
	return p.cursorX, p.cursorY, p.cursorValid
}

// Present writes the runs of buf to w following the emission protocol:
// optional sync open, cheapest-move positioning per run, SGR/OSC-8 deltas per
// cell, trailing SGR reset and link close, optional sync close. An empty run
// set emits only the sync bracket pair. The caller flushes w in a single
// write.
func (p *Presenter) Present(
	w *bufio.Writer,
	buf *render.Buffer,
	runs []render.ChangeRun,
	pool *render.GraphemePool,
	links *render.LinkRegistry,
	caps Capabilities,
	tier render.Tier,
) {
	if caps.SyncOutput {
		w.Write(csiSyncBegin)
	}

	if len(runs) > 0 {
		for _, run := range runs {
			p.presentRun(w, buf, run, pool, links, caps, tier)
		}

		if p.linkOpen {
			w.Write(oscLinkClose)
			p.linkOpen = false
			p.link = 0
		}
		w.Write(csiSGR0)
		// A reset leaves the terminal in the known default state.
		p.style = trackedStyle{}
		p.styleValid = true
	}

	if caps.SyncOutput {
		w.Write(csiSyncEnd)
	}
}

func (p *Presenter) presentRun(
	w *bufio.Writer,
	buf *render.Buffer,
	run render.ChangeRun,
	pool *render.GraphemePool,
	links *render.LinkRegistry,
	caps Capabilities,
	tier render.Tier,
) {
	p.moveCursor(w, run.X0, run.Y)

	for x := run.X0; x <= run.X1; x++ {
		cell := buf.GetUnchecked(x, run.Y)

		// The trailing column of a wide glyph is emitted by its parent.
		if cell.IsContinuation() {
			continue
		}

		p.applyStyle(w, cell, caps, tier)
		p.applyLink(w, cell.Attrs.Link(), links, caps, tier)

		adv := p.emitContent(w, cell, pool)
		p.cursorX += adv
		// Never track the cursor past the right edge; terminals differ on
		// last-column behavior, so the position becomes untrusted instead.
		if p.cursorX >= buf.Width() {
			p.cursorX = buf.Width() - 1
			p.cursorValid = false
		}
	}
}

// moveCursor picks the cheapest way to reach (x, y): plain advance when
// already there, CHA when on the target row, CUP otherwise. Costs in bytes:
// CUP = 4 + digits(row+1) + digits(col+1), CHA = 3 + digits(col+1).
func (p *Presenter) moveCursor(w *bufio.Writer, x, y int) {
	if p.cursorValid && p.cursorX == x && p.cursorY == y {
		return
	}

	if p.cursorValid && p.cursorY == y {
		chaCost := 3 + digits(x+1)
		cupCost := 4 + digits(y+p.origin+1) + digits(x+1)
		if chaCost <= cupCost {
			writeCHA(w, x)
			p.cursorX = x
			return
		}
	}

	writeCUP(w, x, y+p.origin)
	p.cursorX, p.cursorY = x, y
	p.cursorValid = true
}

// effectiveStyle projects a cell's style through the degradation tier.
func effectiveStyle(cell render.Cell, caps Capabilities, tier render.Tier) trackedStyle {
	if tier >= render.TierTextOnly {
		return trackedStyle{}
	}
	s := trackedStyle{fg: cell.Fg, bg: cell.Bg, attrs: cell.Attrs.Flags()}
	if tier >= render.TierNoColors || !caps.Colors256 {
		s.fg = render.DefaultColor
		s.bg = render.DefaultColor
	}
	return s
}

// applyStyle emits the SGR transition from the tracked style to the cell's.
// Attribute changes force the reset path (clearing an attribute has no
// reliable per-attribute off code across terminals); color-only changes take
// the minimal delta unless a full reset plus rebuild is projected cheaper.
func (p *Presenter) applyStyle(w *bufio.Writer, cell render.Cell, caps Capabilities, tier render.Tier) {
	target := effectiveStyle(cell, caps, tier)

	if p.styleValid && target == p.style {
		return
	}

	if !p.styleValid || target.attrs != p.style.attrs {
		p.emitFullStyle(w, target, caps)
		p.style = target
		p.styleValid = true
		return
	}

	fgChanged := target.fg != p.style.fg
	bgChanged := target.bg != p.style.bg

	deltaCost := 0
	if fgChanged {
		deltaCost += colorCost(target.fg, true, caps)
	}
	if bgChanged {
		deltaCost += colorCost(target.bg, false, caps)
	}
	if deltaCost > resetCost(target, caps) {
		p.emitFullStyle(w, target, caps)
	} else {
		if fgChanged {
			p.emitColor(w, target.fg, true, caps)
		}
		if bgChanged {
			p.emitColor(w, target.bg, false, caps)
		}
	}

	p.style = target
	p.styleValid = true
}

// colorCost is the byte cost of one standalone color sequence.
func colorCost(c render.PackedColor, fg bool, caps Capabilities) int {
	if c.IsDefault() {
		return 5 // CSI 39 m / CSI 49 m
	}
	if caps.Truecolor {
		// CSI 38;2;R;G;B m
		return 7 + digits(int(c.R())) + digits(int(c.G())) + digits(int(c.B())) + 3
	}
	// CSI 38;5;N m
	return 8 + digits(int(c.To256()))
}

// resetCost is the byte cost of CSI 0 m plus rebuilding the retained state.
func resetCost(s trackedStyle, caps Capabilities) int {
	cost := 4 // CSI 0 m
	for f := render.AttrBold; f != 0 && f <= render.AttrHidden; f <<= 1 {
		if s.attrs.Has(f) {
			cost += 2
		}
	}
	if !s.fg.IsDefault() {
		cost += colorCost(s.fg, true, caps)
	}
	if !s.bg.IsDefault() {
		cost += colorCost(s.bg, false, caps)
	}
	return cost
}

// sgrCodes maps attribute flags to their SGR parameters.
var sgrCodes = []struct {
	flag render.CellAttrs
	code byte
}{
	{render.AttrBold, '1'},
	{render.AttrDim, '2'},
	{render.AttrItalic, '3'},
	{render.AttrUnderline, '4'},
	{render.AttrBlink, '5'},
	{render.AttrReverse, '7'},
	{render.AttrHidden, '8'},
	{render.AttrStrike, '9'},
}

// emitFullStyle writes one combined SGR: reset, attributes, colors.
func (p *Presenter) emitFullStyle(w *bufio.Writer, s trackedStyle, caps Capabilities) {
	w.Write(csi)
	w.WriteByte('0')

	for _, sc := range sgrCodes {
		if s.attrs.Has(sc.flag) {
			w.WriteByte(';')
			w.WriteByte(sc.code)
		}
	}

	if !s.fg.IsDefault() {
		w.WriteByte(';')
		p.writeColorParams(w, s.fg, true, caps)
	}
	if !s.bg.IsDefault() {
		w.WriteByte(';')
		p.writeColorParams(w, s.bg, false, caps)
	}

	w.WriteByte('m')
}

// emitColor writes one standalone color sequence, using 39/49 for defaults
// rather than a full reset that would clobber retained attributes.
func (p *Presenter) emitColor(w *bufio.Writer, c render.PackedColor, fg bool, caps Capabilities) {
	if c.IsDefault() {
		if fg {
			w.Write(csiDefaultFg)
		} else {
			w.Write(csiDefaultBg)
		}
		return
	}
	w.Write(csi)
	p.writeColorParams(w, c, fg, caps)
	w.WriteByte('m')
}

// writeColorParams writes color parameters without the CSI prefix or final m.
func (p *Presenter) writeColorParams(w *bufio.Writer, c render.PackedColor, fg bool, caps Capabilities) {
	if c.IsDefault() {
		if fg {
			w.Write([]byte("39"))
		} else {
			w.Write([]byte("49"))
		}
		return
	}
	if caps.Truecolor {
		if fg {
			w.Write([]byte("38;2;"))
		} else {
			w.Write([]byte("48;2;"))
		}
		writeInt(w, int(c.R()))
		w.WriteByte(';')
		writeInt(w, int(c.G()))
		w.WriteByte(';')
		writeInt(w, int(c.B()))
		return
	}
	if fg {
		w.Write([]byte("38;5;"))
	} else {
		w.Write([]byte("48;5;"))
	}
	writeInt(w, int(c.To256()))
}

// applyLink emits the OSC-8 transition when the cell's link differs from the
// tracked link state.
func (p *Presenter) applyLink(w *bufio.Writer, id render.LinkID, links *render.LinkRegistry, caps Capabilities, tier render.Tier) {
	if !caps.OSC8 || tier >= render.TierTextOnly {
		id = 0
	}
	if id == p.link && (id != 0) == p.linkOpen {
		return
	}

	if p.linkOpen {
		w.Write(oscLinkClose)
		p.linkOpen = false
	}

	if id != 0 && links != nil {
		if url, ok := links.Get(id); ok {
			w.Write(oscLinkOpen)
			w.WriteString(url)
			w.Write(stTerminator)
			p.linkOpen = true
		}
	}
	p.link = id
	if !p.linkOpen {
		p.link = 0
	}
}

// emitContent writes the cell's glyph and returns the columns advanced.
// Empty cells paint a space; a non-empty zero-width cell becomes U+FFFD so
// the tracked cursor stays synchronized with the terminal.
func (p *Presenter) emitContent(w *bufio.Writer, cell render.Cell, pool *render.GraphemePool) int {
	c := cell.Content

	switch {
	case c == render.ContentEmpty:
		w.WriteByte(' ')
		return 1
	case c.IsGrapheme():
		if pool != nil {
			if text, ok := pool.Get(c.GraphemeID()); ok {
				width := c.Width()
				if width == 0 {
					w.WriteRune('�')
					return 1
				}
				w.WriteString(text)
				return width
			}
		}
		w.WriteRune('�')
		return 1
	default:
		r := c.Rune()
		width := c.Width()
		if width == 0 {
			w.WriteRune('�')
			return 1
		}
		w.WriteRune(r)
		return width
	}
}
