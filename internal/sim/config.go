package sim

import (
	"os"
	"time"

	yaml "github.com/goccy/go-yaml"
	"trafficsig/internal/phase"
)

// Config mirrors config.yml.
type Config struct {
	Lights     int    `yaml:"lights"`       // 1 (by default)
	MinCycleMS int    `yaml:"min_cycle_ms"` // 4000 (by default)
	MaxCycleMS int    `yaml:"max_cycle_ms"` // 6000 (by default)
	PollMS     int    `yaml:"poll_ms"`      // 1 (by default)
	CrossMS    int    `yaml:"cross_ms"`     // 500 (by default)
	RunSeconds int    `yaml:"run_seconds"`  // 0 = run until interrupted
	CSVPath    string `yaml:"csv_path"`     // empty = no CSV output
	LogLevel   string `yaml:"log_level"`    // "info" (by default)
}

// If the config file is not found, we use default values
func defaultConfig() Config {
	return Config{
		Lights:     1,
		MinCycleMS: 4000,
		MaxCycleMS: 6000,
		PollMS:     1,
		CrossMS:    500,
		LogLevel:   "info",
	}
}

// Load reads YAML and overrides defaults; empty path = defaults only
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return defaultConfig()
	}

	// sanity clamps
	if cfg.Lights <= 0 {
		cfg.Lights = 1
	}
	if cfg.MinCycleMS <= 0 {
		cfg.MinCycleMS = 4000
	}
	if cfg.MaxCycleMS <= cfg.MinCycleMS {
		cfg.MaxCycleMS = cfg.MinCycleMS + 2000
	}
	if cfg.PollMS <= 0 {
		cfg.PollMS = 1
	}
	if cfg.CrossMS < 0 {
		cfg.CrossMS = 0
	}
	if cfg.RunSeconds < 0 {
		cfg.RunSeconds = 0
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg
}

// Phase returns the cycler timing described by cfg.
func (cfg Config) Phase() phase.Config {
	return phase.Config{
		MinCycle:     time.Duration(cfg.MinCycleMS) * time.Millisecond,
		MaxCycle:     time.Duration(cfg.MaxCycleMS) * time.Millisecond,
		PollInterval: time.Duration(cfg.PollMS) * time.Millisecond,
	}
}

// CrossTime returns how long a crossing takes once the light is green.
func (cfg Config) CrossTime() time.Duration {
	return time.Duration(cfg.CrossMS) * time.Millisecond
}

// RunTime returns how long to run, or zero to run until interrupted.
func (cfg Config) RunTime() time.Duration {
	return time.Duration(cfg.RunSeconds) * time.Second
}
