// Package timer is the registry hardware timer drivers plug into. A driver
// publishes a descriptor with its capabilities and control entry points; the
// framework picks the best source, drives its lifecycle, and fans periodic
// triggers out to subscribers.
package timer

import (
	"errors"
	"fmt"

	"kclock/bintime"
	"kclock/emu/log"
)

type Flags uint8

const (
	Periodic Flags = 1 << iota
	Oneshot
)

func (f Flags) String() string {
	switch {
	case f&Periodic != 0 && f&Oneshot != 0:
		return "periodic|oneshot"
	case f&Periodic != 0:
		return "periodic"
	case f&Oneshot != 0:
		return "oneshot"
	}
	return "none"
}

var (
	ErrRunning    = errors.New("timer: already running")
	ErrNotRunning = errors.New("timer: not running")
	ErrCapability = errors.New("timer: requested mode not supported")
	ErrPeriod     = errors.New("timer: period out of range")
	ErrNoTimer    = errors.New("timer: no suitable timer registered")
)

// Timer describes one hardware timer source. The Fn entry points are supplied
// by the driver; everything else is read-only capability data.
type Timer struct {
	Name      string
	Flags     Flags // supported modes
	Quality   int   // tie-breaker among sources, higher wins
	Frequency uint64
	MinPeriod bintime.BT
	MaxPeriod bintime.BT

	StartFn   func(tm *Timer, flags Flags, period bintime.BT) error
	StopFn    func(tm *Timer) error
	GetTimeFn func(tm *Timer) bintime.BT

	Priv any // driver private data

	running bool
	onTick  []func()
}

// Subscribe adds a callback invoked once per elapsed period, from the
// interrupt path. Callbacks must be short and must not block.
func (tm *Timer) Subscribe(fn func()) {
	tm.onTick = append(tm.onTick, fn)
}

// Trigger notifies the framework that one period elapsed. Drivers call it
// from their interrupt filter.
func (tm *Timer) Trigger() {
	for _, fn := range tm.onTick {
		fn()
	}
}

// Start programs the timer for the requested mode and period and begins
// ticking. Valid only when stopped.
func (tm *Timer) Start(flags Flags, period bintime.BT) error {
	if tm.running {
		return ErrRunning
	}
	if flags&^tm.Flags != 0 {
		return fmt.Errorf("%w: have %s, want %s", ErrCapability, tm.Flags, flags)
	}
	if bintime.Less(period, tm.MinPeriod) || bintime.Less(tm.MaxPeriod, period) {
		return fmt.Errorf("%w: %s", ErrPeriod, period)
	}

	if err := tm.StartFn(tm, flags, period); err != nil {
		return err
	}
	tm.running = true

	log.ModTimer.InfoZ("timer started").
		String("name", tm.Name).
		Stringer("period", period).
		End()
	return nil
}

// Stop disables ticking. Valid only when running. Time values read before
// the stop are not advanced further and become meaningless until the next
// Start.
func (tm *Timer) Stop() error {
	if !tm.running {
		return ErrNotRunning
	}
	if err := tm.StopFn(tm); err != nil {
		return err
	}
	tm.running = false

	log.ModTimer.InfoZ("timer stopped").String("name", tm.Name).End()
	return nil
}

// GetTime returns the time elapsed since the last Start.
func (tm *Timer) GetTime() bintime.BT {
	return tm.GetTimeFn(tm)
}

// Running reports whether the timer is between a Start and a Stop.
func (tm *Timer) Running() bool { return tm.running }

// Registry holds the registered timer sources of a machine.
type Registry struct {
	timers []*Timer
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register publishes a timer source. Names must be unique.
func (r *Registry) Register(tm *Timer) error {
	for _, t := range r.timers {
		if t.Name == tm.Name {
			return fmt.Errorf("timer: %q already registered", tm.Name)
		}
	}
	r.timers = append(r.timers, tm)

	log.ModTimer.InfoZ("timer registered").
		String("name", tm.Name).
		Stringer("flags", tm.Flags).
		Int("quality", tm.Quality).
		Uint64("freq", tm.Frequency).
		End()
	return nil
}

// Select returns the highest-quality registered timer supporting all the
// requested modes.
func (r *Registry) Select(flags Flags) (*Timer, error) {
	var best *Timer
	for _, tm := range r.timers {
		if flags&^tm.Flags != 0 {
			continue
		}
		if best == nil || tm.Quality > best.Quality {
			best = tm
		}
	}
	if best == nil {
		return nil, ErrNoTimer
	}
	return best, nil
}

// ByName returns the registered timer with the given name.
func (r *Registry) ByName(name string) (*Timer, bool) {
	for _, tm := range r.timers {
		if tm.Name == name {
			return tm, true
		}
	}
	return nil, false
}
