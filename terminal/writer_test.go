package terminal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sfncore/frankentui/render"
)

func newInlineWriter(out *bytes.Buffer, uiHeight int) *Writer {
	return NewWriter(WriterConfig{
		Output:     out,
		Mode:       ModeInline,
		TermWidth:  20,
		TermHeight: 10,
		UIHeight:   uiHeight,
	})
}

func drawFrame(w *Writer, text string) *render.Frame {
	f := w.NewFrame()
	f.DrawText(0, 0, text, render.DefaultStyle)
	return f
}

// Inline scrollback preservation: no full-screen clear ever reaches the
// output; the invalidated region is cleared line by line.
func TestInlineNeverFullScreenClears(t *testing.T) {
	var out bytes.Buffer
	w := newInlineWriter(&out, 3)

	if err := w.PresentUI(drawFrame(w, "hello")); err != nil {
		t.Fatalf("present: %v", err)
	}
	w.WriteLog([]byte("log line\n")) // invalidates the retained frame
	if err := w.PresentUI(drawFrame(w, "world")); err != nil {
		t.Fatalf("present: %v", err)
	}

	got := out.String()
	if strings.Contains(got, "\x1b[2J") {
		t.Errorf("Expected no CSI 2 J in inline mode, got %q", got)
	}
	if strings.Count(got, "\x1b[2K") < 3 {
		t.Errorf("Expected line-scoped erases for the invalidated region, got %q", got)
	}
}

// The inline present is bracketed by cursor save/restore.
func TestInlineCursorSaveRestore(t *testing.T) {
	var out bytes.Buffer
	w := newInlineWriter(&out, 3)
	w.PresentUI(drawFrame(w, "x"))

	got := out.String()
	saveIdx := strings.Index(got, "\x1b7")
	restIdx := strings.LastIndex(got, "\x1b8")
	if saveIdx < 0 || restIdx < 0 || restIdx < saveIdx {
		t.Errorf("Expected DECSC ... DECRC bracketing, got %q", got)
	}
}

// The inline UI is bottom-anchored: rows land at termHeight-uiHeight.
func TestInlineBottomAnchor(t *testing.T) {
	var out bytes.Buffer
	w := newInlineWriter(&out, 3) // rows 7..9 on a 10-row terminal
	w.PresentUI(drawFrame(w, "x"))

	if !strings.Contains(out.String(), "\x1b[8;1H") {
		t.Errorf("Expected UI row 0 at terminal row 8, got %q", out.String())
	}
}

// A second identical frame presents no cell bytes.
func TestPresentIdempotentFrame(t *testing.T) {
	var out bytes.Buffer
	w := newInlineWriter(&out, 3)
	w.PresentUI(drawFrame(w, "same"))
	out.Reset()
	w.PresentUI(drawFrame(w, "same"))

	got := out.String()
	if strings.Contains(got, "same") {
		t.Errorf("Expected no re-emission of unchanged cells, got %q", got)
	}
}

// Log writes without a scroll region invalidate the retained frame.
func TestLogInvalidatesWithoutScrollRegion(t *testing.T) {
	var out bytes.Buffer
	w := newInlineWriter(&out, 3)
	w.PresentUI(drawFrame(w, "abc"))
	if w.PrevBuffer() == nil {
		t.Fatalf("Expected retained frame after present")
	}
	w.WriteLog([]byte("hi\n"))
	if w.PrevBuffer() != nil {
		t.Errorf("Expected retained frame invalidated by log write")
	}
}

// With an active scroll region, logs scroll above the UI and the frame
// stays valid.
func TestLogKeepsFrameWithScrollRegion(t *testing.T) {
	var out bytes.Buffer
	w := newInlineWriter(&out, 3)
	w.EnableScrollRegion()
	if !strings.Contains(out.String(), "\x1b[1;7r") {
		t.Errorf("Expected DECSTBM pinning rows 1..7, got %q", out.String())
	}
	w.PresentUI(drawFrame(w, "abc"))
	w.WriteLog([]byte("hi\n"))
	if w.PrevBuffer() == nil {
		t.Errorf("Expected retained frame to survive log writes")
	}

	out.Reset()
	w.DisableScrollRegion()
	if !strings.Contains(out.String(), "\x1b[r") {
		t.Errorf("Expected scroll region reset, got %q", out.String())
	}
}

func TestResizeDropsRetainedFrame(t *testing.T) {
	var out bytes.Buffer
	w := newInlineWriter(&out, 3)
	w.PresentUI(drawFrame(w, "abc"))
	w.Resize(30, 12)
	if w.PrevBuffer() != nil {
		t.Errorf("Expected resize to drop the retained frame")
	}
	width, height := w.UISize()
	if width != 30 || height != 3 {
		t.Errorf("Expected 30x3 UI after resize, got %dx%d", width, height)
	}
}

func TestResizeClampsToOne(t *testing.T) {
	var out bytes.Buffer
	w := newInlineWriter(&out, 3)
	w.Resize(0, 0)
	width, height := w.UISize()
	if width != 1 || height != 1 {
		t.Errorf("Expected 1x1 clamp, got %dx%d", width, height)
	}
}

func TestAltScreenFrameFillsTerminal(t *testing.T) {
	var out bytes.Buffer
	w := NewWriter(WriterConfig{
		Output:     &out,
		Mode:       ModeAltScreen,
		TermWidth:  20,
		TermHeight: 10,
	})
	width, height := w.UISize()
	if width != 20 || height != 10 {
		t.Errorf("Expected full-terminal UI in alt mode, got %dx%d", width, height)
	}
	w.PresentUI(drawFrame(w, "x"))
	if !strings.Contains(out.String(), "\x1b[1;1H") {
		t.Errorf("Expected origin at row 1 in alt mode, got %q", out.String())
	}
}

func TestFrameCursorPlacement(t *testing.T) {
	var out bytes.Buffer
	w := newInlineWriter(&out, 3)
	f := drawFrame(w, "x")
	f.SetCursor(2, 1)
	f.CursorVisible = true
	w.PresentUI(f)
	// UI row 1 is terminal row 9 on a 10-row, 3-high inline UI.
	if !strings.Contains(out.String(), "\x1b[9;3H\x1b[?25h") {
		t.Errorf("Expected cursor placed and shown, got %q", out.String())
	}
}

func TestGCKeepsOnScreenClusters(t *testing.T) {
	var out bytes.Buffer
	w := newInlineWriter(&out, 3)

	f := w.NewFrame()
	f.DrawText(0, 0, "👍🏽", render.DefaultStyle)
	w.PresentUI(f)

	if w.Pool().Len() != 1 {
		t.Fatalf("Expected one interned cluster, got %d", w.Pool().Len())
	}
	w.GC()
	if w.Pool().Len() != 1 {
		t.Errorf("Expected on-screen cluster to survive GC, got %d", w.Pool().Len())
	}

	// Once the cluster leaves the screen, GC reclaims it.
	w.PresentUI(drawFrame(w, "plain"))
	w.GC()
	if w.Pool().Len() != 0 {
		t.Errorf("Expected off-screen cluster reclaimed, got %d", w.Pool().Len())
	}
}
