// Package config carries the kernel's tuning knobs. Defaults mirror the
// constants each component ships with; a TOML file can override any of them.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Frame is the degradation controller's budget.
type Frame struct {
	TargetMS int     `toml:"target_ms"`
	Kp       float64 `toml:"kp"`
	Ki       float64 `toml:"ki"`
}

// Diff is the strategy selector's cost model.
type Diff struct {
	ScanCost float64 `toml:"scan_cost"`
	EmitCost float64 `toml:"emit_cost"`
}

// Coalesce is the resize regime model.
type Coalesce struct {
	SteadyMeanMS int     `toml:"steady_mean_ms"`
	BurstMeanMS  int     `toml:"burst_mean_ms"`
	HazardLambda float64 `toml:"hazard_lambda"`
	RunLengthK   int     `toml:"run_length_k"`
	BurstDelayMS int     `toml:"burst_delay_ms"`
	MaxDelayMS   int     `toml:"max_delay_ms"`
}

// Parser bounds the input state machine's buffers.
type Parser struct {
	MaxCSI   int `toml:"max_csi"`
	MaxOSC   int `toml:"max_osc"`
	MaxPaste int `toml:"max_paste"`
}

// Evidence is the decision ledger policy.
type Evidence struct {
	Path          string `toml:"path"`
	FlushPerWrite bool   `toml:"flush_per_write"`
}

// Runtime is the loop's scheduling policy.
type Runtime struct {
	PerformTimeoutMS int     `toml:"perform_timeout_ms"`
	LatencyBudgetMS  int     `toml:"latency_budget_ms"`
	FairnessFloor    float64 `toml:"fairness_floor"`
}

// Config is the full kernel configuration.
type Config struct {
	Frame    Frame    `toml:"frame"`
	Diff     Diff     `toml:"diff"`
	Coalesce Coalesce `toml:"coalesce"`
	Parser   Parser   `toml:"parser"`
	Evidence Evidence `toml:"evidence"`
	Runtime  Runtime  `toml:"runtime"`
}

// Default returns the kernel's built-in tuning.
func Default() Config {
	return Config{
		Frame:    Frame{TargetMS: 16, Kp: 0.5, Ki: 0.05},
		Diff:     Diff{ScanCost: 1.0, EmitCost: 12.0},
		Coalesce: Coalesce{SteadyMeanMS: 200, BurstMeanMS: 20, HazardLambda: 50, RunLengthK: 100, BurstDelayMS: 50, MaxDelayMS: 200},
		Parser:   Parser{MaxCSI: 256, MaxOSC: 4096, MaxPaste: 1 << 20},
		Evidence: Evidence{FlushPerWrite: false},
		Runtime:  Runtime{PerformTimeoutMS: 10000, LatencyBudgetMS: 50, FairnessFloor: 0.8},
	}
}

// Load reads a TOML file over the defaults. Unset keys keep their default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.clamp()
	return cfg, nil
}

// Parse decodes TOML bytes over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse: %w", err)
	}
	cfg.clamp()
	return cfg, nil
}

// clamp pulls out-of-range values back to safe bounds rather than failing.
func (c *Config) clamp() {
	if c.Frame.TargetMS < 1 {
		c.Frame.TargetMS = 1
	}
	if c.Frame.Kp <= 0 {
		c.Frame.Kp = 0.5
	}
	if c.Frame.Ki < 0 {
		c.Frame.Ki = 0.05
	}
	if c.Coalesce.RunLengthK < 2 {
		c.Coalesce.RunLengthK = 2
	}
	if c.Coalesce.RunLengthK > 1000 {
		c.Coalesce.RunLengthK = 1000
	}
	if c.Coalesce.MaxDelayMS < 1 {
		c.Coalesce.MaxDelayMS = 200
	}
	if c.Parser.MaxCSI < 16 {
		c.Parser.MaxCSI = 16
	}
	if c.Parser.MaxOSC < 64 {
		c.Parser.MaxOSC = 64
	}
	if c.Parser.MaxPaste < 1024 {
		c.Parser.MaxPaste = 1024
	}
	if c.Runtime.FairnessFloor <= 0 || c.Runtime.FairnessFloor > 1 {
		c.Runtime.FairnessFloor = 0.8
	}
}
