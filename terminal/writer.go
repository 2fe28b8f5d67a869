package terminal

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/sfncore/frankentui/evidence"
	"github.com/sfncore/frankentui/render"
)

// WriterMode selects how frames reach the terminal.
type WriterMode uint8

const (
	// ModeInline confines the UI to a bounded region and preserves native
	// scrollback: clears are line-scoped, never full-screen.
	ModeInline WriterMode = iota
	// ModeAltScreen owns the whole alternate screen; full clears allowed.
	ModeAltScreen
)

// Writer is the single serialization point for all terminal output. Log
// writes and UI presents are strictly ordered under one mutex; nothing else
// in the kernel writes to the terminal. The grapheme pool and link registry
// live here, shared across frames and never rebuilt per frame.
type Writer struct {
	mu  sync.Mutex
	out *bufio.Writer

	presenter *Presenter
	pool      *render.GraphemePool
	links     *render.LinkRegistry
	selector  *render.StrategySelector

	caps Capabilities
	mode WriterMode
	tier render.Tier

	termWidth  int
	termHeight int
	uiHeight   int // inline UI region height

	prev         *render.Buffer // retained prior frame; nil = invalidated
	multiplexed  bool
	scrollRegion bool
	cursorShown  bool
	sink         *evidence.Sink
	writeErrs    int
}

// WriterConfig bundles construction parameters.
type WriterConfig struct {
	Output      io.Writer
	Caps        Capabilities
	Mode        WriterMode
	TermWidth   int
	TermHeight  int
	UIHeight    int // inline mode only; clamped to the terminal height
	Sink        *evidence.Sink
	Multiplexed bool // inside tmux/zellij: keep hands off the scroll region
}

// NewWriter creates the terminal writer.
func NewWriter(cfg WriterConfig) *Writer {
	if cfg.TermWidth < 1 {
		cfg.TermWidth = 80
	}
	if cfg.TermHeight < 1 {
		cfg.TermHeight = 24
	}
	if cfg.UIHeight < 1 || cfg.UIHeight > cfg.TermHeight {
		cfg.UIHeight = cfg.TermHeight
	}
	w := &Writer{
		out:         bufio.NewWriterSize(cfg.Output, 128*1024),
		presenter:   NewPresenter(),
		pool:        render.NewGraphemePool(),
		links:       render.NewLinkRegistry(),
		selector:    render.NewStrategySelector(),
		caps:        cfg.Caps,
		mode:        cfg.Mode,
		termWidth:   cfg.TermWidth,
		termHeight:  cfg.TermHeight,
		uiHeight:    cfg.UIHeight,
		sink:        cfg.Sink,
		multiplexed: cfg.Multiplexed,
	}
	return w
}

// Pool returns the shared grapheme pool.
func (w *Writer) Pool() *render.GraphemePool {
	return w.pool
}

// Links returns the shared link registry.
func (w *Writer) Links() *render.LinkRegistry {
	return w.links
}

// SetTier updates the degradation tier applied to subsequent presents.
func (w *Writer) SetTier(tier render.Tier) {
	w.mu.Lock()
	w.tier = tier
	w.mu.Unlock()
}

// UISize returns the dimensions frames should be built at.
func (w *Writer) UISize() (width, height int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mode == ModeAltScreen {
		return w.termWidth, w.termHeight
	}
	return w.termWidth, w.uiHeight
}

// NewFrame allocates a frame sized to the UI region, wired to the shared
// pools.
func (w *Writer) NewFrame() *render.Frame {
	width, height := w.UISize()
	return render.NewFrame(render.NewBuffer(width, height), w.pool, w.links)
}

// anchorRow returns the terminal row of the UI region's first line.
// Inline UIs are bottom-anchored.
func (w *Writer) anchorRow() int {
	if w.mode == ModeAltScreen {
		return 0
	}
	return w.termHeight - w.uiHeight
}

// WriteLog appends bytes to the log stream. In inline mode without an active
// scroll region the log scrolled the UI region, so the retained frame is
// invalidated and the next present repaints from scratch.
func (w *Writer) WriteLog(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.out.Write(b); err != nil {
		return w.noteWriteErr(err)
	}
	if err := w.out.Flush(); err != nil {
		return w.noteWriteErr(err)
	}

	if w.mode == ModeInline && !w.scrollRegion {
		w.prev = nil
	}
	// The log moved the cursor and may have changed SGR state.
	w.presenter.Invalidate()
	return nil
}

// Bell rings the terminal bell through the same serialization point.
func (w *Writer) Bell() {
	w.mu.Lock()
	w.out.WriteByte(0x07)
	w.out.Flush()
	w.mu.Unlock()
}

// EnableScrollRegion pins the UI rows so the log stream scrolls above a
// stable region. Skipped in alt-screen mode and under multiplexers, whose
// DECSTBM handling is unreliable.
func (w *Writer) EnableScrollRegion() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mode != ModeInline || w.multiplexed || w.scrollRegion || w.uiHeight >= w.termHeight {
		return
	}
	writeScrollRegion(w.out, 0, w.termHeight-w.uiHeight-1)
	w.out.Flush()
	w.scrollRegion = true
	w.presenter.Invalidate()
}

// DisableScrollRegion resets the scrolling area to the full screen.
func (w *Writer) DisableScrollRegion() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.scrollRegion {
		return
	}
	w.out.Write(csiScrollReset)
	w.out.Flush()
	w.scrollRegion = false
	w.presenter.Invalidate()
}

// Resize tells the writer the terminal changed size. The retained frame is
// dropped; the next present runs as a first render. An active scroll region
// is re-pinned at the new height.
func (w *Writer) Resize(width, height int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	w.termWidth, w.termHeight = width, height
	if w.uiHeight > height {
		w.uiHeight = height
	}
	w.prev = nil
	w.presenter.Invalidate()
	if w.scrollRegion {
		if w.uiHeight >= w.termHeight {
			w.out.Write(csiScrollReset)
			w.scrollRegion = false
		} else {
			writeScrollRegion(w.out, 0, w.termHeight-w.uiHeight-1)
		}
		w.out.Flush()
	}
}

// PresentUI diffs the frame against the retained prior frame and drives the
// presenter, all inside the one-writer lock. In inline mode the present is
// bracketed by cursor save/restore and an invalidated region is cleared with
// line-scoped erases only; a full-screen clear would destroy scrollback.
func (w *Writer) PresentUI(frame *render.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	buf := frame.Buffer()

	strategy := render.StrategyDirtySpan
	firstPaint := w.prev == nil || w.prev.Width() != buf.Width() || w.prev.Height() != buf.Height()
	if firstPaint {
		strategy = render.StrategyFullRedraw
	} else {
		dirtyRows := render.DirtyRowCount(w.prev, buf)
		decision := w.selector.Select(buf.Width(), buf.Height(), dirtyRows, w.tier >= render.TierNoColors)
		strategy = decision.Chosen
		if w.sink != nil {
			w.sink.Record(evidence.KindDiffDecision, evidence.Fields{
				"chosen_strategy": decision.Chosen.String(),
				"posterior_p":     decision.PosteriorP,
				"posterior_var":   decision.PosteriorVar,
				"conservative":    decision.Conservative,
				"cost_full":       decision.CostFull,
				"cost_dirty":      decision.CostDirty,
				"cost_redraw":     decision.CostRedraw,
			})
		}
	}

	runs := render.DiffWithStrategy(w.prev, buf, strategy)
	w.selector.Observe(render.CellCount(runs), buf.Width()*buf.Height())

	inline := w.mode == ModeInline
	if inline {
		w.out.Write(escCursorSave)
	}

	w.presenter.origin = w.anchorRow()

	if inline && firstPaint {
		// Line-scoped clears for the whole UI region; never CSI 2 J here.
		for y := 0; y < w.uiHeight; y++ {
			writeCUP(w.out, 0, w.presenter.origin+y)
			w.out.Write(csiEraseLine)
		}
		w.presenter.Invalidate()
	}

	w.presenter.Present(w.out, buf, runs, w.pool, w.links, w.caps, w.tier)

	if x, y, ok := frame.Cursor(); ok && frame.CursorVisible {
		writeCUP(w.out, x, w.presenter.origin+y)
		w.out.Write(csiCursorShow)
		w.cursorShown = true
		w.presenter.Invalidate()
	} else if w.cursorShown {
		w.out.Write(csiCursorHide)
		w.cursorShown = false
	}

	if inline {
		w.out.Write(escCursorRest)
		// DECRC moved the cursor somewhere the presenter can't see.
		w.presenter.cursorValid = false
	}

	if err := w.out.Flush(); err != nil {
		return w.noteWriteErr(err)
	}
	w.writeErrs = 0

	buf.ClearDirty()
	if w.prev == nil || w.prev.Width() != buf.Width() || w.prev.Height() != buf.Height() {
		w.prev = render.NewBuffer(buf.Width(), buf.Height())
	}
	w.prev.CopyFrom(buf)
	w.prev.ClearDirty()
	return nil
}

// PrevBuffer returns the retained prior frame buffer (nil when invalidated).
// The GC passes mark against it.
func (w *Writer) PrevBuffer() *render.Buffer {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.prev
}

// GC runs a mark pass over the retained frame, freeing pool entries no
// longer on screen.
func (w *Writer) GC() {
	w.mu.Lock()
	prev := w.prev
	w.pool.GC(prev)
	w.links.GC(prev)
	w.mu.Unlock()
}

// noteWriteErr records a transient write failure; only a repeat escalates.
func (w *Writer) noteWriteErr(err error) error {
	w.writeErrs++
	if w.sink != nil {
		w.sink.Record(evidence.KindWriteError, evidence.Fields{
			"error":       err.Error(),
			"consecutive": w.writeErrs,
		})
	}
	if w.writeErrs > 1 {
		return fmt.Errorf("terminal: output write failed: %w", err)
	}
	return nil
}
