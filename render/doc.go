// Package render holds the cell grid data model: the 16-byte cell, packed
// colors with alpha compositing, the grapheme pool and link registry, the
// buffer with scissor/opacity stacks and dirty-row tracking, and the diff
// engine with its cost-modeled strategy selector.
package render
