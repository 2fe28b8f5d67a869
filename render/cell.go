package render

import (
	"github.com/mattn/go-runewidth"
)

// CellContent is a tagged 32-bit encoding of what a cell displays.
//
//	0                     empty
//	high bit clear        direct Unicode scalar (value == scalar)
//	high bit set          grapheme: bits 0-23 pool slot, bits 24-30 display width
//	0x7FFFFFFF            continuation (trailing column of a wide cell)
//
// The continuation sentinel has the high bit clear but sits above the last
// valid scalar (0x10FFFF), so it never collides with real content.
type CellContent uint32

const (
	ContentEmpty        CellContent = 0
	ContentContinuation CellContent = 0x7FFFFFFF

	graphemeFlag  = 0x8000_0000
	graphemeSlot  = 0x00FF_FFFF
	graphemeWidth = 0x7F00_0000
)

// ContentFromRune encodes a direct Unicode scalar.
func ContentFromRune(r rune) CellContent {
	if r <= 0 || r > 0x10FFFF {
		return ContentEmpty
	}
	return CellContent(r)
}

// ContentFromGrapheme encodes a pool reference with its cached width.
func ContentFromGrapheme(id GraphemeID) CellContent {
	return CellContent(graphemeFlag | uint32(id.width)<<24 | uint32(id.slot)&graphemeSlot)
}

// IsGrapheme reports whether the content references the grapheme pool.
func (c CellContent) IsGrapheme() bool {
	return uint32(c)&graphemeFlag != 0
}

// IsContinuation reports whether the cell is the trailing half of a wide cell.
func (c CellContent) IsContinuation() bool {
	return c == ContentContinuation
}

// GraphemeID recovers the pool reference from grapheme content.
func (c CellContent) GraphemeID() GraphemeID {
	return GraphemeID{
		slot:  uint32(c) & graphemeSlot,
		width: uint8(uint32(c) & graphemeWidth >> 24),
	}
}

// Rune returns the direct scalar, or 0 for empty/grapheme/continuation content.
func (c CellContent) Rune() rune {
	if c == ContentEmpty || c == ContentContinuation || c.IsGrapheme() {
		return 0
	}
	return rune(c)
}

// Width returns the display width in columns: 0 for empty and continuation,
// the cached width for graphemes, the East Asian width for direct scalars.
func (c CellContent) Width() int {
	switch {
	case c == ContentEmpty, c == ContentContinuation:
		return 0
	case c.IsGrapheme():
		return int(uint32(c) & graphemeWidth >> 24)
	}
	w := runewidth.RuneWidth(rune(c))
	if w > 2 {
		w = 2
	}
	return w
}

// CellAttrs packs style flags in the top 8 bits and a link id in the low 24.
type CellAttrs uint32

const (
	AttrBold CellAttrs = 1 << (24 + iota)
	AttrDim
	AttrItalic
	AttrUnderline
	AttrBlink
	AttrReverse
	AttrStrike
	AttrHidden

	AttrNone CellAttrs = 0

	attrFlagMask CellAttrs = 0xFF00_0000
	linkMask     CellAttrs = 0x00FF_FFFF
)

// Has reports whether all bits of flag are set.
func (a CellAttrs) Has(flag CellAttrs) bool {
	return a&flag == flag
}

// With returns a with the given flags set.
func (a CellAttrs) With(flag CellAttrs) CellAttrs {
	return a | flag&attrFlagMask
}

// Without returns a with the given flags cleared.
func (a CellAttrs) Without(flag CellAttrs) CellAttrs {
	return a &^ (flag & attrFlagMask)
}

// Flags returns only the style bits.
func (a CellAttrs) Flags() CellAttrs {
	return a & attrFlagMask
}

// Link returns the link id (0 = none).
func (a CellAttrs) Link() LinkID {
	return LinkID(a & linkMask)
}

// WithLink replaces the link id.
func (a CellAttrs) WithLink(id LinkID) CellAttrs {
	return a&attrFlagMask | CellAttrs(id)&linkMask
}

// Cell is the 16-byte atomic display unit. Four cells share a cache line so
// the diff can compare them in 64-byte blocks; bitwise equality is the
// identity test.
type Cell struct {
	Content CellContent
	Fg      PackedColor
	Bg      PackedColor
	Attrs   CellAttrs
}

// EmptyCell is the zero cell: no content, default colors, no attributes.
var EmptyCell = Cell{}

// CellFromRune builds a cell showing a single scalar.
func CellFromRune(r rune) Cell {
	return Cell{Content: ContentFromRune(r)}
}

// CellFromGrapheme builds a cell referencing an interned cluster.
func CellFromGrapheme(id GraphemeID) Cell {
	return Cell{Content: ContentFromGrapheme(id)}
}

// BitsEq is bitwise cell equality. Equivalent to == but named for the
// identity contract it implements.
func (c Cell) BitsEq(o Cell) bool {
	return c == o
}

// Width returns the cell's display width.
func (c Cell) Width() int {
	return c.Content.Width()
}

// IsContinuation reports whether the cell is a wide-cell placeholder.
func (c Cell) IsContinuation() bool {
	return c.Content.IsContinuation()
}
