package event

// Kind discriminates the Event union.
type Kind uint8

const (
	KindNone Kind = iota
	KindKey
	KindMouse
	KindResize
	KindPaste
	KindFocusGained
	KindFocusLost
	KindClipboard
	KindError
	KindClosed
)

// Modifier is a bitmask of held modifier keys.
type Modifier uint8

const (
	ModNone  Modifier = 0
	ModShift Modifier = 1 << 0
	ModAlt   Modifier = 1 << 1
	ModCtrl  Modifier = 1 << 2
)

// Key identifies a non-character key.
type Key uint8

const (
	KeyNone Key = iota
	KeyRune     // printable character in KeyEvent.Rune
	KeyEnter
	KeyTab
	KeyBackspace
	KeyEscape
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyInsert
	KeyDelete
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
)

// KeyEvent is a single decoded keystroke.
type KeyEvent struct {
	Key       Key
	Rune      rune
	Modifiers Modifier
}

// MouseKind distinguishes press, release, motion, and wheel events.
type MouseKind uint8

const (
	MouseNone MouseKind = iota
	MousePress
	MouseRelease
	MouseMove
	MouseDrag
	MouseWheelUp
	MouseWheelDown
)

// MouseButton identifies the button an event refers to.
type MouseButton uint8

const (
	MouseBtnNone MouseButton = iota
	MouseBtnLeft
	MouseBtnMiddle
	MouseBtnRight
)

// MouseEvent is a decoded SGR mouse report with 0-indexed coordinates.
type MouseEvent struct {
	Kind      MouseKind
	Button    MouseButton
	Modifiers Modifier
	X         int
	Y         int
}

// Event is the canonical input event union handed to the runtime.
type Event struct {
	Kind      Kind
	Key       KeyEvent
	Mouse     MouseEvent
	Width     int    // KindResize
	Height    int    // KindResize
	Text      string // KindPaste, KindClipboard
	Err       error  // KindError
}

// KeyRuneEvent builds a printable-character event.
func KeyRuneEvent(r rune, mods Modifier) Event {
	return Event{Kind: KindKey, Key: KeyEvent{Key: KeyRune, Rune: r, Modifiers: mods}}
}

// KeyPress builds a special-key event.
func KeyPress(k Key, mods Modifier) Event {
	return Event{Kind: KindKey, Key: KeyEvent{Key: k, Modifiers: mods}}
}

// Resize builds a resize event.
func Resize(w, h int) Event {
	return Event{Kind: KindResize, Width: w, Height: h}
}
