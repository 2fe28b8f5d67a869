package terminal

import (
	"github.com/gdamore/tcell/v2"

	"github.com/sfncore/frankentui/render"
)

// tcell bridge: conversions for applications embedding the kernel in a tcell
// host, and a buffer flush that drives a tcell.Screen directly. This is the
// supported migration path for tcell codebases adopting the kernel.

// AttrToTcell converts cell attribute flags to a tcell.AttrMask.
func AttrToTcell(a render.CellAttrs) tcell.AttrMask {
	var mask tcell.AttrMask
	if a.Has(render.AttrBold) {
		mask |= tcell.AttrBold
	}
	if a.Has(render.AttrDim) {
		mask |= tcell.AttrDim
	}
	if a.Has(render.AttrItalic) {
		mask |= tcell.AttrItalic
	}
	if a.Has(render.AttrUnderline) {
		mask |= tcell.AttrUnderline
	}
	if a.Has(render.AttrBlink) {
		mask |= tcell.AttrBlink
	}
	if a.Has(render.AttrReverse) {
		mask |= tcell.AttrReverse
	}
	if a.Has(render.AttrStrike) {
		mask |= tcell.AttrStrikeThrough
	}
	return mask
}

// AttrFromTcell converts a tcell.AttrMask to cell attribute flags.
func AttrFromTcell(mask tcell.AttrMask) render.CellAttrs {
	var a render.CellAttrs
	if mask&tcell.AttrBold != 0 {
		a = a.With(render.AttrBold)
	}
	if mask&tcell.AttrDim != 0 {
		a = a.With(render.AttrDim)
	}
	if mask&tcell.AttrItalic != 0 {
		a = a.With(render.AttrItalic)
	}
	if mask&tcell.AttrUnderline != 0 {
		a = a.With(render.AttrUnderline)
	}
	if mask&tcell.AttrBlink != 0 {
		a = a.With(render.AttrBlink)
	}
	if mask&tcell.AttrReverse != 0 {
		a = a.With(render.AttrReverse)
	}
	if mask&tcell.AttrStrikeThrough != 0 {
		a = a.With(render.AttrStrike)
	}
	return a
}

// ColorToTcell converts a packed color; the default sentinel maps to
// tcell.ColorDefault.
func ColorToTcell(c render.PackedColor) tcell.Color {
	if c.IsDefault() {
		return tcell.ColorDefault
	}
	return tcell.NewRGBColor(int32(c.R()), int32(c.G()), int32(c.B()))
}

// ColorFromTcell converts a tcell color to a packed color.
func ColorFromTcell(c tcell.Color) render.PackedColor {
	if c == tcell.ColorDefault {
		return render.DefaultColor
	}
	r, g, b := c.TrueColor().RGB()
	return render.RGB(uint8(r), uint8(g), uint8(b))
}

// FlushToTcell writes a kernel buffer onto a tcell.Screen. Continuation
// cells are skipped (tcell derives wide-cell placement itself); grapheme
// cells resolve their cluster through the pool.
func FlushToTcell(buf *render.Buffer, pool *render.GraphemePool, screen tcell.Screen) {
	for y := 0; y < buf.Height(); y++ {
		for x := 0; x < buf.Width(); x++ {
			c := buf.Get(x, y)
			if c.IsContinuation() {
				continue
			}

			style := tcell.StyleDefault.
				Foreground(ColorToTcell(c.Fg)).
				Background(ColorToTcell(c.Bg)).
				Attributes(AttrToTcell(c.Attrs))

			var mainRune rune = ' '
			var comb []rune
			switch {
			case c.Content == render.ContentEmpty:
			case c.Content.IsGrapheme():
				if pool != nil {
					if text, ok := pool.Get(c.Content.GraphemeID()); ok {
						runes := []rune(text)
						if len(runes) > 0 {
							mainRune = runes[0]
							comb = runes[1:]
						}
					}
				}
			default:
				mainRune = c.Content.Rune()
			}

			screen.SetContent(x, y, mainRune, comb, style)
		}
	}
}
