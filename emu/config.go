package emu

import (
	"github.com/BurntSushi/toml"

	"kclock/drv"
	"kclock/emu/log"
)

type Config struct {
	Timer TimerConfig `toml:"timer"`
	Run   RunConfig   `toml:"run"`
}

type TimerConfig struct {
	// Chip input clock in Hz.
	Frequency uint32 `toml:"frequency"`
	// Programmed period in chip ticks; must fit the 16-bit divisor.
	PeriodTicks uint32 `toml:"period_ticks"`
}

type RunConfig struct {
	// Cycles per emulation step. Steps longer than a period lose ticks.
	StepCycles uint32 `toml:"step_cycles"`
	// Total virtual seconds to emulate.
	Seconds uint32 `toml:"seconds"`
}

// DefaultConfig is a PC-faithful setup: 1.19 MHz chip clock with a 100 Hz
// heartbeat, stepped 1000 cycles at a time.
func DefaultConfig() Config {
	return Config{
		Timer: TimerConfig{
			Frequency:   drv.PITFrequency,
			PeriodTicks: drv.PITFrequency / 100,
		},
		Run: RunConfig{
			StepCycles: 1000,
			Seconds:    2,
		},
	}
}

// LoadConfigOrDefault loads the configuration from path, or provides the
// default one when path is empty.
func LoadConfigOrDefault(path string) Config {
	if path == "" {
		return DefaultConfig()
	}

	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		log.ModCore.Fatalf("failed to load config %s: %v", path, err)
	}
	return cfg
}
