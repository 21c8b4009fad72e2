package hwio

import (
	"fmt"

	"kclock/emu/log"
)

// log unmapped accesses (useful for debugging but verbose when software
// probes for absent hardware)
const logUnmapped = false

type BankIO8 interface {
	Read8(addr uint16) uint8
	Write8(addr uint16, val uint8)
}

func Write16(b BankIO8, addr uint16, val uint16) {
	lo := uint8(val & 0xff)
	hi := uint8(val >> 8)
	b.Write8(addr, lo)
	b.Write8(addr+1, hi)
}

func Read16(b BankIO8, addr uint16) uint16 {
	lo := b.Read8(addr)
	hi := b.Read8(addr + 1)
	return uint16(hi)<<8 | uint16(lo)
}

// Table dispatches port accesses to the devices mapped on an I/O bus. The
// port space is tiny compared to a memory bus, so a plain map does the job.
type Table struct {
	Name string

	ports map[uint16]BankIO8
}

func NewTable(name string) *Table {
	t := &Table{Name: name}
	t.Reset()
	return t
}

func (t *Table) Reset() {
	t.ports = make(map[uint16]BankIO8)
}

func (t *Table) mapBus8(addr, size uint16, io BankIO8) {
	for p := addr; p < addr+size; p++ {
		if _, ok := t.ports[p]; ok {
			panic(fmt.Errorf("%s: port %04x mapped twice", t.Name, p))
		}
		t.ports[p] = io
	}
}

func (t *Table) MapReg8(addr uint16, io *Reg8) {
	t.mapBus8(addr, 1, io)
}

func (t *Table) MapDevice(addr uint16, io *Device) {
	log.ModHwIo.DebugZ("mapping device").
		Hex16("addr", addr).
		Hex16("size", uint16(io.Size)).
		String("area", io.Name).
		String("bus", t.Name).
		End()

	t.mapBus8(addr, uint16(io.Size), io)
}

func (t *Table) Unmap(begin, end uint16) {
	for p := begin; p <= end; p++ {
		delete(t.ports, p)
	}
}

// Read8 searches in the table for the device mapped at the given port and
// forwards the read to it. Reads from unmapped ports float to 0xFF, like an
// undriven ISA data bus.
func (t *Table) Read8(addr uint16) uint8 {
	io, ok := t.ports[addr]
	if !ok {
		if logUnmapped {
			log.ModHwIo.ErrorZ("unmapped Read8").
				String("name", t.Name).
				Hex16("addr", addr).
				End()
		}
		return 0xFF
	}
	return io.Read8(addr)
}

func (t *Table) Write8(addr uint16, val uint8) {
	io, ok := t.ports[addr]
	if !ok {
		if logUnmapped {
			log.ModHwIo.ErrorZ("unmapped Write8").
				String("name", t.Name).
				Hex16("addr", addr).
				Hex8("val", val).
				End()
		}
		return
	}
	io.Write8(addr, val)
}
