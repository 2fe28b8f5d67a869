package terminal

import (
	"os"
	"strings"
)

// Capabilities is the detected terminal feature set. Detection is pure:
// environment only, no terminal I/O, deterministic given the same variables.
type Capabilities struct {
	Truecolor      bool
	Colors256      bool
	SyncOutput     bool
	OSC8           bool
	KittyKeyboard  bool
	FocusEvents    bool
	BracketedPaste bool
	MouseSGR       bool
}

// EvidenceFactor names one weighted contribution to a capability decision.
// The trail is recorded through the evidence sink for auditability.
type EvidenceFactor struct {
	Capability string  `json:"capability"`
	Name       string  `json:"name"`
	Weight     float64 `json:"weight"`
}

// Environ resolves environment variables; injectable for tests.
type Environ func(key string) string

// Probe detects capabilities from the environment. Each capability is the
// sign of a log-odds sum over named evidence factors. Conservative defaults:
// sync output stays off under multiplexers, truecolor off under NO_COLOR.
func Probe(getenv Environ) (Capabilities, []EvidenceFactor) {
	if getenv == nil {
		getenv = os.Getenv
	}

	term := getenv("TERM")
	colorterm := getenv("COLORTERM")
	termProgram := getenv("TERM_PROGRAM")
	noColor := getenv("NO_COLOR") != ""
	inTmux := getenv("TMUX") != "" || strings.HasPrefix(term, "tmux")
	inZellij := getenv("ZELLIJ") != ""
	isKitty := getenv("KITTY_WINDOW_ID") != "" || term == "xterm-kitty"

	// Terminal programs with a modern escape-sequence surface.
	modern := isKitty ||
		getenv("WEZTERM_PANE") != "" ||
		getenv("KONSOLE_VERSION") != "" ||
		getenv("ITERM_SESSION_ID") != "" ||
		getenv("ALACRITTY_WINDOW_ID") != "" ||
		getenv("ALACRITTY_LOG") != "" ||
		termProgram == "WezTerm" || termProgram == "iTerm.app" || termProgram == "ghostty"

	var trail []EvidenceFactor
	sum := map[string]float64{}
	add := func(capName, factor string, w float64) {
		sum[capName] += w
		trail = append(trail, EvidenceFactor{Capability: capName, Name: factor, Weight: w})
	}

	// truecolor
	add("truecolor", "prior", -1)
	if colorterm == "truecolor" || colorterm == "24bit" {
		add("truecolor", "COLORTERM", 4)
	}
	if modern {
		add("truecolor", "terminal_program", 3)
	}
	if strings.Contains(term, "truecolor") || strings.Contains(term, "24bit") || strings.Contains(term, "direct") {
		add("truecolor", "TERM_direct", 3)
	}
	if noColor {
		add("truecolor", "NO_COLOR", -16)
	}

	// colors_256
	add("colors_256", "prior", -1)
	if strings.Contains(term, "256color") || modern || colorterm != "" {
		add("colors_256", "TERM_256", 3)
	}
	if term == "" || term == "dumb" {
		add("colors_256", "TERM_dumb", -8)
	}
	if noColor {
		add("colors_256", "NO_COLOR", -16)
	}

	// sync_output (DEC 2026)
	add("sync_output", "prior", -1)
	if modern {
		add("sync_output", "terminal_program", 3)
	}
	if inTmux {
		add("sync_output", "tmux", -4)
	}
	if inZellij {
		add("sync_output", "zellij", -4)
	}

	// osc8 hyperlinks
	add("osc8", "prior", -1)
	if modern || strings.Contains(term, "foot") {
		add("osc8", "terminal_program", 3)
	}
	if inTmux || inZellij {
		add("osc8", "multiplexer", -2)
	}

	// kitty keyboard protocol
	add("kitty_keyboard", "prior", -3)
	if isKitty {
		add("kitty_keyboard", "kitty", 6)
	}
	if inTmux || inZellij {
		add("kitty_keyboard", "multiplexer", -4)
	}

	// Universally supported xterm-era modes: on unless the terminal is dumb.
	for _, capName := range []string{"focus_events", "bracketed_paste", "mouse_sgr"} {
		add(capName, "prior", 1)
		if term == "" || term == "dumb" {
			add(capName, "TERM_dumb", -8)
		}
	}

	caps := Capabilities{
		Truecolor:      sum["truecolor"] > 0,
		Colors256:      sum["colors_256"] > 0,
		SyncOutput:     sum["sync_output"] > 0,
		OSC8:           sum["osc8"] > 0,
		KittyKeyboard:  sum["kitty_keyboard"] > 0,
		FocusEvents:    sum["focus_events"] > 0,
		BracketedPaste: sum["bracketed_paste"] > 0,
		MouseSGR:       sum["mouse_sgr"] > 0,
	}
	// Truecolor implies the 256-color fallback is safe too.
	if caps.Truecolor {
		caps.Colors256 = true
	}
	return caps, trail
}

// LocaleUTF8 reports whether the locale advertises UTF-8 output. Non-UTF-8
// locales get U+FFFD-safe output but wide-glyph width guesses may drift; the
// application can pre-translate in that case.
func LocaleUTF8(getenv Environ) bool {
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if v := getenv(key); v != "" {
			upper := strings.ToUpper(v)
			return strings.Contains(upper, "UTF-8") || strings.Contains(upper, "UTF8")
		}
	}
	// Modern terminal emulators default to UTF-8 even with an empty locale.
	return true
}

// mapEnviron builds an Environ from a fixed map; the test seam.
func mapEnviron(m map[string]string) Environ {
	return func(key string) string { return m[key] }
}
