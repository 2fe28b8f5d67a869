package terminal

import (
	"testing"
)

func TestProbeKitty(t *testing.T) {
	caps, trail := Probe(mapEnviron(map[string]string{
		"TERM":            "xterm-kitty",
		"COLORTERM":       "truecolor",
		"KITTY_WINDOW_ID": "1",
	}))
	if !caps.Truecolor || !caps.Colors256 {
		t.Errorf("Expected truecolor on kitty, got %+v", caps)
	}
	if !caps.SyncOutput || !caps.OSC8 || !caps.KittyKeyboard {
		t.Errorf("Expected modern feature set on kitty, got %+v", caps)
	}
	if len(trail) == 0 {
		t.Errorf("Expected an evidence trail")
	}
}

func TestProbeNoColor(t *testing.T) {
	caps, _ := Probe(mapEnviron(map[string]string{
		"TERM":      "xterm-kitty",
		"COLORTERM": "truecolor",
		"NO_COLOR":  "1",
	}))
	if caps.Truecolor {
		t.Errorf("Expected NO_COLOR to disable truecolor")
	}
	if caps.Colors256 {
		t.Errorf("Expected NO_COLOR to disable 256 colors")
	}
}

func TestProbeTmuxConservative(t *testing.T) {
	caps, _ := Probe(mapEnviron(map[string]string{
		"TERM":      "tmux-256color",
		"TMUX":      "/tmp/tmux-1000/default,123,0",
		"COLORTERM": "truecolor",
	}))
	if caps.SyncOutput {
		t.Errorf("Expected sync output disabled under tmux")
	}
	if !caps.Colors256 {
		t.Errorf("Expected 256 colors under tmux-256color")
	}
}

func TestProbeDumbTerminal(t *testing.T) {
	caps, _ := Probe(mapEnviron(map[string]string{"TERM": "dumb"}))
	if caps.Colors256 || caps.Truecolor || caps.MouseSGR || caps.BracketedPaste || caps.FocusEvents {
		t.Errorf("Expected everything off on a dumb terminal, got %+v", caps)
	}
}

func TestProbePlainXterm256(t *testing.T) {
	caps, _ := Probe(mapEnviron(map[string]string{"TERM": "xterm-256color"}))
	if !caps.Colors256 {
		t.Errorf("Expected 256 colors on xterm-256color")
	}
	if caps.Truecolor {
		t.Errorf("Expected no truecolor without COLORTERM")
	}
	if !caps.BracketedPaste || !caps.MouseSGR || !caps.FocusEvents {
		t.Errorf("Expected xterm-era modes on, got %+v", caps)
	}
	if caps.KittyKeyboard {
		t.Errorf("Expected kitty keyboard off, got %+v", caps)
	}
}

func TestLocaleUTF8(t *testing.T) {
	if !LocaleUTF8(mapEnviron(map[string]string{"LANG": "en_US.UTF-8"})) {
		t.Errorf("Expected UTF-8 locale detected")
	}
	if LocaleUTF8(mapEnviron(map[string]string{"LANG": "C"})) {
		t.Errorf("Expected C locale rejected")
	}
	if !LocaleUTF8(mapEnviron(map[string]string{"LC_ALL": "de_DE.utf8", "LANG": "C"})) {
		t.Errorf("Expected LC_ALL to take precedence")
	}
	if !LocaleUTF8(mapEnviron(map[string]string{})) {
		t.Errorf("Expected empty environment to default to UTF-8")
	}
}

func TestProbeDeterministic(t *testing.T) {
	env := mapEnviron(map[string]string{"TERM": "xterm-256color", "COLORTERM": "truecolor"})
	a, _ := Probe(env)
	b, _ := Probe(env)
	if a != b {
		t.Errorf("Expected identical results for identical environments")
	}
}
