package pit

import (
	"testing"

	"kclock/hw/hwio"
)

func program(t *testing.T, p *PIT, divisor uint16) {
	t.Helper()
	p.MODE.Write8(0, SelCntr0|Access16Bit|ModeRateGen)
	p.CNTR0.Write8(0, uint8(divisor))
	p.CNTR0.Write8(0, uint8(divisor>>8))
	if !p.Counting() {
		t.Fatal("chip not counting after divisor load")
	}
}

func latchRead(p *PIT) uint16 {
	p.MODE.Write8(0, SelCntr0|AccessLatch)
	lo := p.CNTR0.Read8(0)
	hi := p.CNTR0.Read8(0)
	return uint16(hi)<<8 | uint16(lo)
}

func TestCountdown(t *testing.T) {
	p := New(nil)
	program(t, p, 100)

	if got := latchRead(p); got != 100 {
		t.Errorf("initial count = %d, want 100", got)
	}

	p.Tick(30)
	if got := latchRead(p); got != 70 {
		t.Errorf("count after 30 cycles = %d, want 70", got)
	}
}

func TestReloadAndOut(t *testing.T) {
	fired := 0
	p := New(func() { fired++ })
	program(t, p, 100)

	p.Tick(99)
	if got := latchRead(p); got != 1 {
		t.Errorf("count after 99 cycles = %d, want 1", got)
	}
	if fired != 0 {
		t.Errorf("OUT fired %d times before expiry", fired)
	}

	p.Tick(1)
	if got := latchRead(p); got != 100 {
		t.Errorf("count after expiry = %d, want reload 100", got)
	}
	if fired != 1 {
		t.Errorf("OUT fired %d times, want 1", fired)
	}

	p.Tick(350)
	if fired != 4 {
		t.Errorf("OUT fired %d times after 4.5 periods, want 4", fired)
	}
}

func TestLatchIsStable(t *testing.T) {
	p := New(nil)
	program(t, p, 1000)
	p.Tick(123)

	// Latch, then keep counting: the two byte reads must still
	// return the latched snapshot.
	p.MODE.Write8(0, SelCntr0|AccessLatch)
	p.Tick(500)
	lo := p.CNTR0.Read8(0)
	hi := p.CNTR0.Read8(0)
	if got := uint16(hi)<<8 | uint16(lo); got != 877 {
		t.Errorf("latched count = %d, want 877", got)
	}

	// Once consumed, reads follow the live counter again.
	if got := latchRead(p); got != 377 {
		t.Errorf("live count = %d, want 377", got)
	}
}

func TestZeroDivisorMeans65536(t *testing.T) {
	p := New(nil)
	program(t, p, 0)
	if p.Reload() != 0x10000 {
		t.Errorf("reload = %d, want 65536", p.Reload())
	}
}

func TestControlWordHaltsCounting(t *testing.T) {
	fired := 0
	p := New(func() { fired++ })
	program(t, p, 10)

	p.MODE.Write8(0, SelCntr0|Access16Bit|ModeRateGen)
	p.Tick(100)
	if fired != 0 {
		t.Errorf("OUT fired %d times while halted", fired)
	}

	p.CNTR0.Write8(0, 10)
	p.CNTR0.Write8(0, 0)
	p.Tick(100)
	if fired != 10 {
		t.Errorf("OUT fired %d times, want 10", fired)
	}
}

func TestOtherCountersIgnored(t *testing.T) {
	p := New(nil)
	program(t, p, 100)
	p.MODE.Write8(0, SelCntr1|Access16Bit|ModeRateGen)
	if !p.Counting() {
		t.Error("control word for counter 1 disturbed counter 0")
	}
}

func TestMapAt(t *testing.T) {
	p := New(nil)
	bus := hwio.NewTable("testio")
	p.MapAt(bus, 0x40)

	bus.Write8(0x43, SelCntr0|Access16Bit|ModeRateGen)
	bus.Write8(0x40, 100)
	bus.Write8(0x40, 0)
	if !p.Counting() || p.Reload() != 100 {
		t.Errorf("counting=%v reload=%d after programming via bus", p.Counting(), p.Reload())
	}

	p.Tick(25)
	bus.Write8(0x43, SelCntr0|AccessLatch)
	lo := bus.Read8(0x40)
	hi := bus.Read8(0x40)
	if got := uint16(hi)<<8 | uint16(lo); got != 75 {
		t.Errorf("count read via bus = %d, want 75", got)
	}
}
