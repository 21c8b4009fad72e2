// Package dev is a minimal device/resource model in the new-style kernel bus
// mold: a device owns the resources the platform assigned to it (I/O port
// windows, interrupt lines), and a driver claims them at attach time. A
// resource must be mapped before its registers can be accessed.
package dev

import (
	"errors"
	"fmt"

	"kclock/emu/log"
	"kclock/hw/hwio"
	"kclock/intr"
)

// ErrNoDevice is returned by Attach when the driver's probe rejects the
// device. The device is left untouched.
var ErrNoDevice = errors.New("dev: device not accepted by driver")

// ErrUnbacked is returned when mapping a resource that no bus backs.
var ErrUnbacked = errors.New("dev: resource has no backing bus")

// Resource is a window of consecutive I/O ports on a bus. Register access is
// only legal once the resource is mapped.
type Resource struct {
	bus    *hwio.Table
	base   uint16
	size   uint16
	mapped bool
}

func (r *Resource) Map() error {
	if r.bus == nil {
		return ErrUnbacked
	}
	r.mapped = true
	return nil
}

func (r *Resource) Read1(off uint16) uint8 {
	if !r.mapped {
		panic(fmt.Errorf("dev: read from unmapped resource at +%#x", off))
	}
	return r.bus.Read8(r.base + off)
}

func (r *Resource) Write1(off uint16, val uint8) {
	if !r.mapped {
		panic(fmt.Errorf("dev: write to unmapped resource at +%#x", off))
	}
	r.bus.Write8(r.base+off, val)
}

// Base returns the first port of the window.
func (r *Resource) Base() uint16 { return r.base }

// IRQ is an interrupt line resource.
type IRQ struct {
	Line int
}

// Device is one hardware unit enumerated by the platform.
type Device struct {
	Unit  int // platform-assigned unit number
	State any // driver private state, set at attach

	IC *intr.Controller

	ioports []*Resource
	irqs    []*IRQ
}

func NewDevice(unit int, ic *intr.Controller) *Device {
	return &Device{Unit: unit, IC: ic}
}

// AddIOPorts assigns an I/O port window resource to the device.
func (d *Device) AddIOPorts(bus *hwio.Table, base, size uint16) {
	d.ioports = append(d.ioports, &Resource{bus: bus, base: base, size: size})
}

// AddIRQ assigns an interrupt line resource to the device.
func (d *Device) AddIRQ(line int) {
	d.irqs = append(d.irqs, &IRQ{Line: line})
}

// TakeIOPorts returns the i-th I/O port resource, nil if absent.
func (d *Device) TakeIOPorts(i int) *Resource {
	if i >= len(d.ioports) {
		return nil
	}
	return d.ioports[i]
}

// TakeIRQ returns the i-th interrupt resource, nil if absent.
func (d *Device) TakeIRQ(i int) *IRQ {
	if i >= len(d.irqs) {
		return nil
	}
	return d.irqs[i]
}

// SetupIntr installs an interrupt filter on an IRQ resource of this device.
func (d *Device) SetupIntr(irq *IRQ, filter intr.Filter, data any, name string) {
	d.IC.Setup(d, irq.Line, filter, data, name)
}

// TeardownIntr removes the filter installed on an IRQ resource.
func (d *Device) TeardownIntr(irq *IRQ) {
	d.IC.Teardown(d, irq.Line)
}

// Driver couples a probe predicate with an attach routine.
type Driver struct {
	Desc   string
	Probe  func(*Device) bool
	Attach func(*Device) error
}

// Attach probes the device and, if accepted, runs the driver attach routine.
// A rejected probe has no side effects and reports ErrNoDevice.
func Attach(drv *Driver, d *Device) error {
	if !drv.Probe(d) {
		return ErrNoDevice
	}

	log.ModDev.InfoZ("attaching device").
		String("driver", drv.Desc).
		Int("unit", d.Unit).
		End()
	if err := drv.Attach(d); err != nil {
		log.ModDev.ErrorZ("attach failed").
			String("driver", drv.Desc).
			Int("unit", d.Unit).
			Error("err", err).
			End()
		return err
	}
	return nil
}
