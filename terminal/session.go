package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// ErrNotTerminal is returned when raw mode is requested on a non-tty.
var ErrNotTerminal = errors.New("terminal: not a terminal")

// sessionMode enumerates the reversible terminal modes a session can enable.
type sessionMode uint8

const (
	modeRaw sessionMode = iota
	modeAltScreen
	modeCursorHidden
	modeMouse
	modePaste
	modeFocus
	modeKitty
	modeScrollRegion
)

// Session is the RAII guard owning the terminal's mode state for the life of
// the program. For every mode it enables there is exactly one disable path,
// and that path runs on every exit, panic included.
type Session struct {
	in  *os.File
	out io.Writer

	inFd  int
	outFd int

	oldState *term.State

	mu      sync.Mutex
	enabled []sessionMode // activation order; torn down in reverse
	closed  bool
}

// crashSession holds the active session for the panic path. HandleCrash tears
// it down through the ordinary Close, which takes the session lock and reads
// the recorded modes; no separate snapshot of teardown bytes is kept.
var crashSession atomic.Pointer[Session]

// SessionOption adjusts session construction.
type SessionOption func(*Session)

// WithOutput redirects emitted mode bytes, primarily for tests.
func WithOutput(w io.Writer) SessionOption {
	return func(s *Session) { s.out = w }
}

// WithInput overrides the input file.
func WithInput(f *os.File) SessionOption {
	return func(s *Session) {
		s.in = f
		s.inFd = int(f.Fd())
	}
}

// NewSession creates a session bound to stdin/stdout and arms the crash
// cleanup hook. No terminal state changes until a mode is enabled.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		in:    os.Stdin,
		out:   os.Stdout,
		inFd:  int(os.Stdin.Fd()),
		outFd: int(os.Stdout.Fd()),
	}
	for _, opt := range opts {
		opt(s)
	}
	crashSession.Store(s)
	return s
}

func (s *Session) record(m sessionMode) {
	s.enabled = append(s.enabled, m)
}

func (s *Session) has(m sessionMode) bool {
	for _, e := range s.enabled {
		if e == m {
			return true
		}
	}
	return false
}

// EnterRawMode switches the input tty to raw mode.
func (s *Session) EnterRawMode() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.has(modeRaw) {
		return nil
	}
	if !term.IsTerminal(s.inFd) {
		return ErrNotTerminal
	}
	oldState, err := term.MakeRaw(s.inFd)
	if err != nil {
		return fmt.Errorf("terminal: enter raw mode: %w", err)
	}
	s.oldState = oldState
	s.record(modeRaw)
	return nil
}

// EnterAltScreen switches to the alternate screen buffer.
func (s *Session) EnterAltScreen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.has(modeAltScreen) {
		return
	}
	s.out.Write(csiAltScreenEnter)
	s.record(modeAltScreen)
}

// HideCursor hides the cursor, restored on teardown.
func (s *Session) HideCursor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.has(modeCursorHidden) {
		return
	}
	s.out.Write(csiCursorHide)
	s.record(modeCursorHidden)
}

// EnableMouse turns on click+motion reporting with SGR encoding.
func (s *Session) EnableMouse() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.has(modeMouse) {
		return
	}
	s.out.Write(csiMouseClickOn)
	s.out.Write(csiMouseMotionOn)
	s.out.Write(csiMouseSGROn)
	s.record(modeMouse)
}

// EnableBracketedPaste turns on paste bracketing.
func (s *Session) EnableBracketedPaste() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.has(modePaste) {
		return
	}
	s.out.Write(csiPasteOn)
	s.record(modePaste)
}

// EnableFocusEvents turns on focus in/out reporting.
func (s *Session) EnableFocusEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.has(modeFocus) {
		return
	}
	s.out.Write(csiFocusOn)
	s.record(modeFocus)
}

// PushKittyKeyboard enables the kitty keyboard protocol's disambiguation.
func (s *Session) PushKittyKeyboard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.has(modeKitty) {
		return
	}
	s.out.Write(csiKittyPush)
	s.record(modeKitty)
}

// SetScrollRegion pins rows [top, bottom] (0-indexed) as the scrolling area;
// reset on teardown.
func (s *Session) SetScrollRegion(top, bottom int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	var buf [16]byte
	b := buf[:0]
	b = append(b, csi...)
	b = appendInt(b, top+1)
	b = append(b, ';')
	b = appendInt(b, bottom+1)
	b = append(b, 'r')
	s.out.Write(b)
	if !s.has(modeScrollRegion) {
		s.record(modeScrollRegion)
	}
}

func appendInt(b []byte, n int) []byte {
	if n <= 0 {
		return append(b, '0'+byte(max(n, 0)))
	}
	var scratch [10]byte
	i := len(scratch)
	for n > 0 {
		i--
		scratch[i] = byte('0' + n%10)
		n /= 10
	}
	return append(b, scratch[i:]...)
}

// Size returns the terminal dimensions, falling back to 80x24.
func (s *Session) Size() (width, height int) {
	ws, err := unix.IoctlGetWinsize(s.outFd, unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 || ws.Row == 0 {
		return 80, 24
	}
	return int(ws.Col), int(ws.Row)
}

// InputFd returns the input file descriptor for the reader.
func (s *Session) InputFd() int {
	return s.inFd
}

// Close tears the session down: the recorded disables in reverse order of
// enabling (termios restore among them, at raw mode's place), then SGR reset,
// cursor show and scroll-region reset. Idempotent and safe on every exit path.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true

	for i := len(s.enabled) - 1; i >= 0; i-- {
		switch s.enabled[i] {
		case modeScrollRegion:
			s.out.Write(csiScrollReset)
		case modeKitty:
			s.out.Write(csiKittyPop)
		case modeFocus:
			s.out.Write(csiFocusOff)
		case modePaste:
			s.out.Write(csiPasteOff)
		case modeMouse:
			s.out.Write(csiMouseSGROff)
			s.out.Write(csiMouseMotionOff)
			s.out.Write(csiMouseClickOff)
		case modeCursorHidden:
			s.out.Write(csiCursorShow)
		case modeAltScreen:
			s.out.Write(csiAltScreenExit)
		case modeRaw:
			if s.oldState != nil {
				term.Restore(s.inFd, s.oldState)
			}
		}
	}
	s.enabled = s.enabled[:0]

	s.out.Write(csiSGR0)
	s.out.Write(csiCursorShow)
	s.out.Write(csiScrollReset)

	if crashSession.Load() == s {
		crashSession.Store(nil)
	}
}

// EmergencyReset attempts to restore the terminal to a sane state.
// Called from panic recovery when Close cannot run normally.
func EmergencyReset(w io.Writer) {
	w.Write(csiCursorShow)
	w.Write(csiAltScreenExit)
	w.Write(csiSGR0)
	w.Write(csiSyncEnd)
	w.Write(csiMouseSGROff)
	w.Write(csiMouseMotionOff)
	w.Write(csiMouseClickOff)
	w.Write(csiPasteOff)
	w.Write(csiFocusOff)
	w.Write(csiScrollReset)
	w.Write(csiRIS) // full reset as last resort
}

// HandleCrash is the unified panic handler: terminal teardown first, then
// the stack trace to stderr.
func HandleCrash(r any) {
	if r == nil {
		return
	}

	if s := crashSession.Load(); s != nil {
		s.Close()
	} else {
		EmergencyReset(os.Stdout)
	}
	resetCookedMode()

	fmt.Fprintf(os.Stderr, "\n\x1b[31mCRASH DETECTED: %v\x1b[0m\n", r)
	fmt.Fprintf(os.Stderr, "Stack Trace:\n%s\n", debug.Stack())

	os.Exit(1)
}

// Go runs fn in a goroutine with panic recovery so a crash anywhere still
// cleans up the terminal.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				HandleCrash(r)
			}
		}()
		fn()
	}()
}

// resetCookedMode attempts to restore cooked mode via /dev/tty.
// Best-effort for crash recovery; errors ignored.
func resetCookedMode() {
	if tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0); err == nil {
		defer tty.Close()
		fd := int(tty.Fd())
		if termios, err := unix.IoctlGetTermios(fd, unix.TCGETS); err == nil {
			termios.Lflag |= unix.ECHO | unix.ICANON | unix.ISIG | unix.IEXTEN
			termios.Iflag |= unix.ICRNL
			unix.IoctlSetTermios(fd, unix.TCSETS, termios)
		}
	}
}
