// Package emu assembles the emulated machine: I/O bus, interrupt controller,
// the 8254 chip, and the device/driver plumbing that turns the chip into a
// registered timer source.
package emu

import (
	"kclock/bintime"
	"kclock/dev"
	"kclock/drv"
	"kclock/emu/log"
	"kclock/hw/hwio"
	"kclock/hw/pit"
	"kclock/intr"
	"kclock/timer"
)

// Platform wiring: where the 8254 lives on the ISA bus.
const (
	PITBase = 0x40
	PITIRQ  = 0
)

type Machine struct {
	Bus    *hwio.Table
	IC     *intr.Controller
	PIT    *pit.PIT
	Timers *timer.Registry

	dev *dev.Device
	sys *timer.Timer

	cycles uint64
	ticks  uint64
}

// New builds the machine and attaches the PIT driver. freq is the chip input
// clock in Hz (drv.PITFrequency for PC-faithful timing).
func New(freq uint32) (*Machine, error) {
	m := &Machine{
		Bus:    hwio.NewTable("io"),
		IC:     intr.NewController(),
		Timers: timer.NewRegistry(),
	}
	m.PIT = pit.New(func() { m.IC.Raise(PITIRQ) })
	m.PIT.MapAt(m.Bus, PITBase)

	d := dev.NewDevice(drv.PITUnit, m.IC)
	d.AddIOPorts(m.Bus, PITBase, pit.NumPorts)
	d.AddIRQ(PITIRQ)
	if err := dev.Attach(drv.NewPITDriver(m.Timers, freq), d); err != nil {
		return nil, err
	}
	m.dev = d

	sys, err := m.Timers.Select(timer.Periodic)
	if err != nil {
		return nil, err
	}
	m.sys = sys
	sys.Subscribe(func() { m.ticks++ })

	log.ModCore.InfoZ("machine ready").
		String("timer", sys.Name).
		Uint32("freq", freq).
		End()
	return m, nil
}

// StartTimer starts the system timer with the given period.
func (m *Machine) StartTimer(period bintime.BT) error {
	return m.sys.Start(timer.Periodic, period)
}

// StopTimer stops the system timer.
func (m *Machine) StopTimer() error {
	return m.sys.Stop()
}

// Now returns the virtual-clock reading of the system timer.
func (m *Machine) Now() bintime.BT {
	return m.sys.GetTime()
}

// Timer returns the selected system timer descriptor.
func (m *Machine) Timer() *timer.Timer {
	return m.sys
}

// Step advances the machine by the given number of chip clock cycles, then
// delivers any interrupt raised during the batch. Batches longer than a
// timer period coalesce their interrupts, which is exactly the lost-period
// situation the driver documents; callers wanting faithful timing step in
// sub-period batches.
func (m *Machine) Step(cycles uint32) {
	m.PIT.Tick(cycles)
	m.cycles += uint64(cycles)
	m.IC.Dispatch()
}

// Cycles returns the number of chip cycles stepped so far.
func (m *Machine) Cycles() uint64 { return m.cycles }

// Ticks returns the number of periodic triggers delivered by the system
// timer since the machine was built.
func (m *Machine) Ticks() uint64 { return m.ticks }
