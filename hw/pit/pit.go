// Package pit emulates channel 0 of an Intel 8254 programmable interval
// timer, the part of the chip a PC uses as its system heartbeat. The counter
// counts down at the chip clock rate; in rate-generator mode the OUT pin
// pulses every time the count expires, which the machine routes to an
// interrupt line.
package pit

import (
	"kclock/emu/log"
	"kclock/hw/hwio"
)

// Port offsets from the chip base address (0x40 on ISA).
const (
	PortCntr0 = 0x0
	PortCntr1 = 0x1
	PortCntr2 = 0x2
	PortMode  = 0x3

	NumPorts = 4
)

// Control word fields, written to PortMode.
const (
	SelCntr0 = 0x00 // counter select, bits 6-7
	SelCntr1 = 0x40
	SelCntr2 = 0x80

	AccessLatch = 0x00 // access mode, bits 4-5; 0 is the latch command
	AccessLSB   = 0x10
	AccessMSB   = 0x20
	Access16Bit = 0x30 // LSB then MSB

	ModeRateGen = 0x04 // mode 2, bits 1-3

	BCD = 0x01
)

type loadPhase uint8

const (
	phaseLo loadPhase = iota
	phaseHi
)

// PIT is the chip model. Only channel 0 is implemented: channels 1 (DRAM
// refresh) and 2 (speaker) have no consumer here and writes selecting them
// are ignored with a log entry.
type PIT struct {
	CNTR0 hwio.Reg8
	MODE  hwio.Reg8

	out func() // OUT0 pulse, fired once per count expiry

	access uint8  // programmed access mode (Access16Bit is the only one supported)
	mode   uint8  // programmed counting mode
	reload uint32 // programmed divisor; 0x10000 when 0 was written
	count  uint32 // live countdown value, in [1, reload]

	wrPhase loadPhase
	wrLo    uint8

	latched bool
	latch   uint16
	rdPhase loadPhase

	counting bool
}

func New(out func()) *PIT {
	p := &PIT{out: out}
	p.CNTR0 = hwio.Reg8{
		Name:    "CNTR0",
		ReadCb:  func(uint8) uint8 { return p.readCntr0() },
		WriteCb: func(_, val uint8) { p.writeCntr0(val) },
	}
	p.MODE = hwio.Reg8{
		Name:    "MODE",
		Flags:   hwio.WriteOnlyFlag,
		WriteCb: func(_, val uint8) { p.writeMode(val) },
	}
	p.Reset()
	return p
}

func (p *PIT) Reset() {
	p.access = 0
	p.mode = 0
	p.reload = 0
	p.count = 0
	p.wrPhase = phaseLo
	p.latched = false
	p.rdPhase = phaseLo
	p.counting = false
}

// MapAt maps the chip registers on an I/O bus at the given base port.
func (p *PIT) MapAt(bus *hwio.Table, base uint16) {
	bus.MapReg8(base+PortCntr0, &p.CNTR0)
	bus.MapReg8(base+PortMode, &p.MODE)
}

func (p *PIT) writeMode(val uint8) {
	if val&(SelCntr1|SelCntr2) != 0 {
		log.ModPIT.WarnZ("control word for unimplemented counter").
			Hex8("val", val).
			End()
		return
	}

	access := val & Access16Bit
	if access == AccessLatch {
		// Counter latch command: freeze a snapshot of the live count for
		// the next two reads.
		p.latch = uint16(p.count)
		p.latched = true
		p.rdPhase = phaseLo
		return
	}

	if access != Access16Bit {
		log.ModPIT.ErrorZ("unsupported access mode").Hex8("val", val).End()
		return
	}

	p.access = access
	p.mode = (val >> 1) & 0x7
	if hwio.GetBit8(val, 0) {
		log.ModPIT.ErrorZ("BCD counting not supported").End()
	}

	// A control word halts the counter until a new divisor is loaded.
	p.counting = false
	p.wrPhase = phaseLo
}

func (p *PIT) writeCntr0(val uint8) {
	switch p.wrPhase {
	case phaseLo:
		p.wrLo = val
		p.wrPhase = phaseHi
	case phaseHi:
		p.reload = uint32(val)<<8 | uint32(p.wrLo)
		if p.reload == 0 {
			p.reload = 0x10000
		}
		p.count = p.reload
		p.counting = true
		p.wrPhase = phaseLo

		log.ModPIT.DebugZ("counter 0 loaded").
			Uint32("reload", p.reload).
			Hex8("mode", p.mode).
			End()
	}
}

func (p *PIT) readCntr0() uint8 {
	cur := uint16(p.count)
	if p.latched {
		cur = p.latch
	}

	var b uint8
	switch p.rdPhase {
	case phaseLo:
		b = uint8(cur)
		p.rdPhase = phaseHi
	case phaseHi:
		b = uint8(cur >> 8)
		p.rdPhase = phaseLo
		p.latched = false
	}
	return b
}

// Reload returns the programmed divisor, 0 if none was loaded yet.
func (p *PIT) Reload() uint32 { return p.reload }

// Counting reports whether channel 0 is armed and counting down.
func (p *PIT) Counting() bool { return p.counting }

// Tick advances the chip clock by the given number of cycles. In
// rate-generator mode the count goes reload, reload-1, ..., 1 and then
// reloads; OUT pulses at each expiry.
func (p *PIT) Tick(cycles uint32) {
	if !p.counting || p.mode != ModeRateGen>>1 {
		return
	}

	for ; cycles > 0; cycles-- {
		if p.count <= 1 {
			p.count = p.reload
			if p.out != nil {
				p.out()
			}
		} else {
			p.count--
		}
	}
}
