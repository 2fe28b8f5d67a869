package terminal

import (
	"unicode/utf8"

	"github.com/sfncore/frankentui/event"
)

// Parser state machine states. Every state is reachable from Ground in O(1)
// bytes and every state returns to Ground within a bounded number of bytes.
type parserState uint8

const (
	stateGround parserState = iota
	stateEscape
	stateCsi
	stateCsiParam
	stateCsiIgnore
	stateOsc
	stateOscIgnore
	stateSs3
	statePaste
)

// Buffer bounds. A malformed stream can never grow parser state past these.
const (
	MaxCSI   = 256
	MaxOSC   = 4096
	MaxPaste = 1 << 20
)

// Parser converts raw terminal bytes into canonical events. It never panics
// and swallows malformed sequences by resetting to Ground. Feed may be called
// with arbitrary byte boundaries; sequences split across reads resume
// correctly.
type Parser struct {
	state parserState

	csiBuf   []byte
	oscBuf   []byte
	pasteBuf []byte

	utf8Buf  [4]byte
	utf8Len  int
	utf8Need int

	oscEsc   bool // saw ESC inside OSC, expecting '\' to complete ST
	pasteEsc int  // bytes of the paste terminator matched so far

	events []event.Event
}

// NewParser creates a parser in the Ground state.
func NewParser() *Parser {
	return &Parser{
		csiBuf: make([]byte, 0, MaxCSI),
	}
}

var pasteTerminator = []byte("\x1b[201~")

// Feed consumes data and returns the events it completed. The returned slice
// is reused by the next call.
func (p *Parser) Feed(data []byte) []event.Event {
	p.events = p.events[:0]
	for _, b := range data {
		p.step(b)
	}
	return p.events
}

// Idle signals that the input source paused with no pending bytes. A lone ESC
// waiting in the Escape state is released as a keypress; this is the
// escape-timeout hook the reader drives.
func (p *Parser) Idle() []event.Event {
	p.events = p.events[:0]
	if p.state == stateEscape {
		p.emit(event.KeyPress(event.KeyEscape, event.ModNone))
		p.state = stateGround
	}
	return p.events
}

// inGround reports whether the parser is idle in Ground with no partial
// sequence pending; the reader and tests use it.
func (p *Parser) inGround() bool {
	return p.state == stateGround && p.utf8Len == 0
}

func (p *Parser) emit(ev event.Event) {
	p.events = append(p.events, ev)
}

func (p *Parser) step(b byte) {
	switch p.state {
	case stateGround:
		p.stepGround(b)
	case stateEscape:
		p.stepEscape(b)
	case stateCsi, stateCsiParam:
		p.stepCsi(b)
	case stateCsiIgnore:
		if b >= 0x40 && b <= 0x7E {
			p.state = stateGround
		}
	case stateOsc:
		p.stepOsc(b)
	case stateOscIgnore:
		p.stepOscIgnore(b)
	case stateSs3:
		p.stepSs3(b)
	case statePaste:
		p.stepPaste(b)
	}
}

func (p *Parser) stepGround(b byte) {
	// Continuation of a multi-byte UTF-8 sequence
	if p.utf8Len > 0 {
		if b&0xC0 != 0x80 {
			// Malformed sequence: drop it and reprocess the byte.
			p.utf8Len, p.utf8Need = 0, 0
			p.stepGround(b)
			return
		}
		p.utf8Buf[p.utf8Len] = b
		p.utf8Len++
		if p.utf8Len == p.utf8Need {
			r, _ := utf8.DecodeRune(p.utf8Buf[:p.utf8Len])
			p.utf8Len, p.utf8Need = 0, 0
			p.emit(event.KeyRuneEvent(r, event.ModNone))
		}
		return
	}

	switch {
	case b == 0x1B:
		p.state = stateEscape
	case b == 0x7F:
		p.emit(event.KeyPress(event.KeyBackspace, event.ModNone))
	case b == 0x00:
		p.emit(event.KeyRuneEvent(' ', event.ModCtrl))
	case b == 0x09:
		p.emit(event.KeyPress(event.KeyTab, event.ModNone))
	case b == 0x0A, b == 0x0D:
		p.emit(event.KeyPress(event.KeyEnter, event.ModNone))
	case b == 0x08:
		p.emit(event.KeyPress(event.KeyBackspace, event.ModNone))
	case b < 0x20:
		// Ctrl+letter: 0x01..0x1A maps back to 'a'..'z'
		if b <= 0x1A {
			p.emit(event.KeyRuneEvent(rune('a'+b-1), event.ModCtrl))
		}
		// Remaining C0 bytes (FS/GS/RS/US) are dropped.
	case b < 0x80:
		p.emit(event.KeyRuneEvent(rune(b), event.ModNone))
	default:
		need := utf8ByteCount(b)
		if need == 0 {
			p.emit(event.KeyRuneEvent(utf8.RuneError, event.ModNone))
			return
		}
		p.utf8Buf[0] = b
		p.utf8Len = 1
		p.utf8Need = need
	}
}

func utf8ByteCount(b byte) int {
	switch {
	case b&0xE0 == 0xC0:
		return 2
	case b&0xF0 == 0xE0:
		return 3
	case b&0xF8 == 0xF0:
		return 4
	}
	return 0
}

func (p *Parser) stepEscape(b byte) {
	switch b {
	case '[':
		p.csiBuf = p.csiBuf[:0]
		p.state = stateCsi
	case 'O':
		p.state = stateSs3
	case ']':
		p.oscBuf = p.oscBuf[:0]
		p.oscEsc = false
		p.state = stateOsc
	case 0x7F:
		p.emit(event.KeyPress(event.KeyBackspace, event.ModAlt))
		p.state = stateGround
	default:
		// Any other byte is an Alt-modified keystroke, ESC ESC and control
		// or high bytes included; nothing is swallowed.
		p.emit(event.KeyRuneEvent(rune(b), event.ModAlt))
		p.state = stateGround
	}
}

func (p *Parser) stepCsi(b byte) {
	switch {
	case b >= 0x30 && b <= 0x3F: // 0-9 ; : < = > ?
		p.state = stateCsiParam
		if len(p.csiBuf) >= MaxCSI {
			p.state = stateCsiIgnore
			return
		}
		p.csiBuf = append(p.csiBuf, b)
	case b >= 0x20 && b <= 0x2F: // intermediates
		if len(p.csiBuf) >= MaxCSI {
			p.state = stateCsiIgnore
			return
		}
		p.csiBuf = append(p.csiBuf, b)
	case b >= 0x40 && b <= 0x7E: // final byte
		p.dispatchCsi(b)
		if p.state == stateCsi || p.state == stateCsiParam {
			p.state = stateGround
		}
	default:
		// Control byte inside a CSI: malformed, back to Ground.
		p.state = stateGround
	}
}

// csiParams splits the accumulated parameter bytes at ';'. Sub-parameters
// after ':' are ignored. Missing or empty fields decode as def.
func csiParams(buf []byte, def int) []int {
	params := []int{}
	cur := 0
	hasDigit := false
	skipSub := false
	for _, b := range buf {
		switch {
		case b == ';':
			if hasDigit {
				params = append(params, cur)
			} else {
				params = append(params, def)
			}
			cur, hasDigit, skipSub = 0, false, false
		case b == ':':
			skipSub = true
		case b >= '0' && b <= '9' && !skipSub:
			cur = cur*10 + int(b-'0')
			if cur > 1<<24 {
				cur = 1 << 24
			}
			hasDigit = true
		}
	}
	if hasDigit {
		params = append(params, cur)
	} else if len(buf) > 0 && buf[len(buf)-1] == ';' {
		params = append(params, def)
	}
	return params
}

// decodeModParam turns an xterm modifier parameter into a Modifier bitmask:
// (n-1) with 1=Shift, 2=Alt, 4=Ctrl.
func decodeModParam(n int) event.Modifier {
	if n < 2 {
		return event.ModNone
	}
	bits := n - 1
	var m event.Modifier
	if bits&1 != 0 {
		m |= event.ModShift
	}
	if bits&2 != 0 {
		m |= event.ModAlt
	}
	if bits&4 != 0 {
		m |= event.ModCtrl
	}
	return m
}

func (p *Parser) dispatchCsi(final byte) {
	buf := p.csiBuf

	// SGR mouse: CSI < cb ; x ; y (M|m)
	if len(buf) > 0 && buf[0] == '<' && (final == 'M' || final == 'm') {
		p.dispatchMouse(buf[1:], final)
		return
	}

	switch final {
	case 'I':
		p.emit(event.Event{Kind: event.KindFocusGained})
		return
	case 'O':
		p.emit(event.Event{Kind: event.KindFocusLost})
		return
	}

	params := csiParams(buf, 1)
	mods := event.ModNone
	if len(params) >= 2 {
		mods = decodeModParam(params[1])
	}

	switch final {
	case 'A':
		p.emit(event.KeyPress(event.KeyUp, mods))
	case 'B':
		p.emit(event.KeyPress(event.KeyDown, mods))
	case 'C':
		p.emit(event.KeyPress(event.KeyRight, mods))
	case 'D':
		p.emit(event.KeyPress(event.KeyLeft, mods))
	case 'H':
		p.emit(event.KeyPress(event.KeyHome, mods))
	case 'F':
		p.emit(event.KeyPress(event.KeyEnd, mods))
	case 'Z':
		p.emit(event.KeyPress(event.KeyTab, event.ModShift))
	case 'u':
		// CSI-u (kitty): codepoint ; modifiers u
		if len(params) >= 1 && params[0] > 0 && params[0] <= 0x10FFFF {
			p.emit(event.KeyRuneEvent(rune(params[0]), mods))
		}
	case '~':
		p.dispatchTilde(params, mods)
	}
	// Unknown finals are swallowed; the stream is already consumed.
}

var tildeKeys = map[int]event.Key{
	1:  event.KeyHome,
	2:  event.KeyInsert,
	3:  event.KeyDelete,
	4:  event.KeyEnd,
	5:  event.KeyPageUp,
	6:  event.KeyPageDown,
	7:  event.KeyHome,
	8:  event.KeyEnd,
	11: event.KeyF1,
	12: event.KeyF2,
	13: event.KeyF3,
	14: event.KeyF4,
	15: event.KeyF5,
	17: event.KeyF6,
	18: event.KeyF7,
	19: event.KeyF8,
	20: event.KeyF9,
	21: event.KeyF10,
	23: event.KeyF11,
	24: event.KeyF12,
}

func (p *Parser) dispatchTilde(params []int, mods event.Modifier) {
	if len(params) == 0 {
		return
	}
	switch params[0] {
	case 200:
		p.pasteBuf = p.pasteBuf[:0]
		p.pasteEsc = 0
		p.state = statePaste
	case 201:
		// Stray paste end without a start: ignore.
	default:
		if k, ok := tildeKeys[params[0]]; ok {
			p.emit(event.KeyPress(k, mods))
		}
	}
}

// dispatchMouse decodes SGR mouse mode 1006. cb bits: 0-1 button, 2 Shift,
// 3 Alt, 4 Ctrl, 5 drag, 6 scroll (button bit 0 picks up/down).
func (p *Parser) dispatchMouse(buf []byte, final byte) {
	params := csiParams(buf, 0)
	if len(params) < 3 {
		return
	}
	cb, x, y := params[0], params[1], params[2]
	if x < 1 || y < 1 {
		return
	}

	var mods event.Modifier
	if cb&0x04 != 0 {
		mods |= event.ModShift
	}
	if cb&0x08 != 0 {
		mods |= event.ModAlt
	}
	if cb&0x10 != 0 {
		mods |= event.ModCtrl
	}

	me := event.MouseEvent{Modifiers: mods, X: x - 1, Y: y - 1}

	switch {
	case cb&0x40 != 0: // scroll
		if cb&0x01 == 0 {
			me.Kind = event.MouseWheelUp
		} else {
			me.Kind = event.MouseWheelDown
		}
	case cb&0x20 != 0: // drag / motion
		me.Button = sgrButton(cb)
		if me.Button == event.MouseBtnNone {
			me.Kind = event.MouseMove
		} else {
			me.Kind = event.MouseDrag
		}
	case final == 'M':
		me.Kind = event.MousePress
		me.Button = sgrButton(cb)
	default: // 'm'
		me.Kind = event.MouseRelease
		me.Button = sgrButton(cb)
	}

	p.emit(event.Event{Kind: event.KindMouse, Mouse: me})
}

func sgrButton(cb int) event.MouseButton {
	switch cb & 0x03 {
	case 0:
		return event.MouseBtnLeft
	case 1:
		return event.MouseBtnMiddle
	case 2:
		return event.MouseBtnRight
	}
	return event.MouseBtnNone
}

func (p *Parser) stepSs3(b byte) {
	p.state = stateGround
	switch b {
	case 'A':
		p.emit(event.KeyPress(event.KeyUp, event.ModNone))
	case 'B':
		p.emit(event.KeyPress(event.KeyDown, event.ModNone))
	case 'C':
		p.emit(event.KeyPress(event.KeyRight, event.ModNone))
	case 'D':
		p.emit(event.KeyPress(event.KeyLeft, event.ModNone))
	case 'H':
		p.emit(event.KeyPress(event.KeyHome, event.ModNone))
	case 'F':
		p.emit(event.KeyPress(event.KeyEnd, event.ModNone))
	case 'P':
		p.emit(event.KeyPress(event.KeyF1, event.ModNone))
	case 'Q':
		p.emit(event.KeyPress(event.KeyF2, event.ModNone))
	case 'R':
		p.emit(event.KeyPress(event.KeyF3, event.ModNone))
	case 'S':
		p.emit(event.KeyPress(event.KeyF4, event.ModNone))
	}
}

func (p *Parser) stepOsc(b byte) {
	switch {
	case p.oscEsc:
		p.oscEsc = false
		if b == '\\' { // ST complete
			p.state = stateGround
			return
		}
		// ESC followed by anything else: malformed, drop the sequence.
		p.state = stateGround
	case b == 0x07: // BEL terminator
		p.state = stateGround
	case b == 0x1B:
		p.oscEsc = true
	case b < 0x20:
		// Control byte inside an OSC: malformed, abort.
		p.state = stateGround
	default:
		if len(p.oscBuf) >= MaxOSC {
			p.state = stateOscIgnore
			return
		}
		p.oscBuf = append(p.oscBuf, b)
	}
}

func (p *Parser) stepOscIgnore(b byte) {
	switch {
	case p.oscEsc:
		p.oscEsc = false
		p.state = stateGround
	case b == 0x07:
		p.state = stateGround
	case b == 0x1B:
		p.oscEsc = true
	case b < 0x20:
		// Control byte while ignoring aborts so a malformed stream cannot
		// swallow subsequent input.
		p.state = stateGround
	}
}

func (p *Parser) stepPaste(b byte) {
	// Match the CSI 201 ~ terminator incrementally.
	if b == pasteTerminator[p.pasteEsc] {
		p.pasteEsc++
		if p.pasteEsc == len(pasteTerminator) {
			p.emit(event.Event{Kind: event.KindPaste, Text: string(p.pasteBuf)})
			p.pasteBuf = p.pasteBuf[:0]
			p.pasteEsc = 0
			p.state = stateGround
		}
		return
	}

	// A partial terminator match turns out to be content.
	if p.pasteEsc > 0 {
		p.pasteBuf = append(p.pasteBuf, pasteTerminator[:p.pasteEsc]...)
		p.pasteEsc = 0
		// Re-examine the byte as a possible terminator start.
		if b == pasteTerminator[0] {
			p.pasteEsc = 1
			return
		}
	}

	p.pasteBuf = append(p.pasteBuf, b)
	if len(p.pasteBuf) >= MaxPaste {
		// Truncate and exit paste; the rest of the stream parses normally.
		p.emit(event.Event{Kind: event.KindPaste, Text: string(p.pasteBuf)})
		p.pasteBuf = p.pasteBuf[:0]
		p.pasteEsc = 0
		p.state = stateGround
	}
}
