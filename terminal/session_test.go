package terminal

import (
	"bytes"
	"strings"
	"testing"
)

// Teardown totality: every enable has its disable emitted on Close, in
// reverse order, then the final reset block.
func TestSessionTeardownTotality(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(WithOutput(&out))

	s.EnterAltScreen()
	s.HideCursor()
	s.EnableMouse()
	s.EnableBracketedPaste()
	s.EnableFocusEvents()
	out.Reset()

	s.Close()
	got := out.String()

	disables := []string{
		"\x1b[?1004l", // focus
		"\x1b[?2004l", // paste
		"\x1b[?1006l", // mouse SGR
		"\x1b[?1002l",
		"\x1b[?1000l",
		"\x1b[?25h",   // cursor
		"\x1b[?1049l", // alt screen
	}
	last := -1
	for _, d := range disables {
		idx := strings.Index(got, d)
		if idx < 0 {
			t.Errorf("Expected disable %q in teardown, got %q", d, got)
			continue
		}
		if idx < last {
			t.Errorf("Expected %q after previous disable (reverse order), got %q", d, got)
		}
		last = idx
	}
	if !strings.Contains(got, "\x1b[0m") {
		t.Errorf("Expected SGR reset in teardown")
	}
	if !strings.Contains(got, "\x1b[r") {
		t.Errorf("Expected scroll region reset in teardown")
	}
}

func TestSessionCloseIdempotent(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(WithOutput(&out))
	s.EnterAltScreen()
	s.Close()
	n := out.Len()
	s.Close()
	if out.Len() != n {
		t.Errorf("Expected second Close to emit nothing")
	}
}

func TestSessionOnlyEnabledModesDisabled(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(WithOutput(&out))
	s.EnableBracketedPaste()
	out.Reset()
	s.Close()
	got := out.String()

	if !strings.Contains(got, "\x1b[?2004l") {
		t.Errorf("Expected paste disable")
	}
	if strings.Contains(got, "\x1b[?1006l") || strings.Contains(got, "\x1b[?1049l") {
		t.Errorf("Expected no disables for modes never enabled, got %q", got)
	}
}

func TestSessionModesIdempotent(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(WithOutput(&out))
	s.EnableMouse()
	n := out.Len()
	s.EnableMouse()
	if out.Len() != n {
		t.Errorf("Expected repeated enable to be a no-op")
	}
	s.Close()
}

func TestSessionScrollRegion(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(WithOutput(&out))
	s.SetScrollRegion(0, 19)
	if !strings.Contains(out.String(), "\x1b[1;20r") {
		t.Errorf("Expected DECSTBM 1;20, got %q", out.String())
	}
	out.Reset()
	s.Close()
	if !strings.Contains(out.String(), "\x1b[r") {
		t.Errorf("Expected scroll region reset on close")
	}
}

func TestEmergencyReset(t *testing.T) {
	var out bytes.Buffer
	EmergencyReset(&out)
	got := out.String()
	for _, seq := range []string{"\x1b[?25h", "\x1b[?1049l", "\x1b[0m", "\x1b[?2026l", "\x1b[r"} {
		if !strings.Contains(got, seq) {
			t.Errorf("Expected %q in emergency reset, got %q", seq, got)
		}
	}
}

// The crash path still tears the session down when a wrapped goroutine
// panics is exercised indirectly: Close after mode changes is the same code
// path HandleCrash takes, minus the os.Exit.
func TestSessionCloseAfterPanicPathSetup(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(WithOutput(&out))
	s.EnterAltScreen()
	s.HideCursor()

	// Simulate the hook's view of the world.
	if crashSession.Load() != s {
		t.Fatalf("Expected session registered for crash handling")
	}
	s.Close()
	if crashSession.Load() != nil {
		t.Errorf("Expected crash registration cleared on close")
	}
}
