package terminal

import (
	"bufio"
)

// Pre-allocated ANSI sequence fragments (avoid allocations during render)
var (
	// CSI sequences
	csi      = []byte("\x1b[")
	csiSGR0  = []byte("\x1b[0m")
	csiClear = []byte("\x1b[2J\x1b[H")
	csiRIS   = []byte("\x1bc") // Reset to Initial State (emergency)

	// Cursor control
	csiCursorHide = []byte("\x1b[?25l")
	csiCursorShow = []byte("\x1b[?25h")
	escCursorSave = []byte("\x1b7") // DECSC
	escCursorRest = []byte("\x1b8") // DECRC

	// Screen modes
	csiAltScreenEnter = []byte("\x1b[?1049h")
	csiAltScreenExit  = []byte("\x1b[?1049l")
	csiEraseLine      = []byte("\x1b[2K")
	csiScrollReset    = []byte("\x1b[r")

	// Synchronized output (DEC 2026)
	csiSyncBegin = []byte("\x1b[?2026h")
	csiSyncEnd   = []byte("\x1b[?2026l")

	// Mouse reporting
	csiMouseClickOn   = []byte("\x1b[?1000h")
	csiMouseClickOff  = []byte("\x1b[?1000l")
	csiMouseMotionOn  = []byte("\x1b[?1002h")
	csiMouseMotionOff = []byte("\x1b[?1002l")
	csiMouseSGROn     = []byte("\x1b[?1006h")
	csiMouseSGROff    = []byte("\x1b[?1006l")

	// Bracketed paste
	csiPasteOn  = []byte("\x1b[?2004h")
	csiPasteOff = []byte("\x1b[?2004l")

	// Focus reporting
	csiFocusOn  = []byte("\x1b[?1004h")
	csiFocusOff = []byte("\x1b[?1004l")

	// Kitty keyboard protocol
	csiKittyPush = []byte("\x1b[>1u")
	csiKittyPop  = []byte("\x1b[<u")

	// OSC 8 hyperlinks
	oscLinkOpen  = []byte("\x1b]8;;") // followed by URL + ST
	oscLinkClose = []byte("\x1b]8;;\x1b\\")
	stTerminator = []byte("\x1b\\")

	// Color prefixes
	csiFg256     = []byte("\x1b[38;5;") // followed by N m
	csiBg256     = []byte("\x1b[48;5;") // followed by N m
	csiFgRGB     = []byte("\x1b[38;2;") // followed by R;G;B m
	csiBgRGB     = []byte("\x1b[48;2;") // followed by R;G;B m
	csiDefaultFg = []byte("\x1b[39m")
	csiDefaultBg = []byte("\x1b[49m")
)

// writeInt writes an integer without allocation.
// Optimized for terminal values (0-255 common, 0-999 typical max).
func writeInt(w *bufio.Writer, n int) {
	if n < 0 {
		n = 0
	}
	if n < 10 {
		w.WriteByte(byte(n) + '0')
		return
	}
	if n < 100 {
		w.WriteByte(byte(n/10) + '0')
		w.WriteByte(byte(n%10) + '0')
		return
	}
	if n < 1000 {
		w.WriteByte(byte(n/100) + '0')
		w.WriteByte(byte(n/10%10) + '0')
		w.WriteByte(byte(n%10) + '0')
		return
	}
	// Fallback for >999 (rare)
	var buf [10]byte
	i := 9
	for n > 0 {
		buf[i] = byte(n%10) + '0'
		n /= 10
		i--
	}
	w.Write(buf[i+1:])
}

// digits returns the decimal digit count, the byte cost of a CSI parameter.
func digits(n int) int {
	switch {
	case n < 10:
		return 1
	case n < 100:
		return 2
	case n < 1000:
		return 3
	case n < 10000:
		return 4
	}
	return 5
}

// writeCUP writes absolute cursor positioning (0-indexed input, CSI r;cH).
func writeCUP(w *bufio.Writer, x, y int) {
	w.Write(csi)
	writeInt(w, y+1)
	w.WriteByte(';')
	writeInt(w, x+1)
	w.WriteByte('H')
}

// writeCHA writes column-absolute positioning on the current row
// (0-indexed input, CSI cG).
func writeCHA(w *bufio.Writer, x int) {
	w.Write(csi)
	writeInt(w, x+1)
	w.WriteByte('G')
}

// writeScrollRegion writes DECSTBM with 0-indexed inclusive rows.
func writeScrollRegion(w *bufio.Writer, top, bottom int) {
	w.Write(csi)
	writeInt(w, top+1)
	w.WriteByte(';')
	writeInt(w, bottom+1)
	w.WriteByte('r')
}
