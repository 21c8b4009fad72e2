// Package drv contains the machine's device drivers.
package drv

import (
	"fmt"

	"kclock/bintime"
	"kclock/dev"
	"kclock/emu/log"
	"kclock/hw/pit"
	"kclock/intr"
	"kclock/timer"
)

// PITFrequency is the input clock of the 8254 on PC hardware, in Hz.
const PITFrequency = 1193182

// PITUnit is the unit number the platform wiring assigns to the 8254. The
// driver refuses any other unit.
const PITUnit = 0

// wrapState arbitrates who accounts for a counter wraparound. Both the
// interrupt filter and time readers reconcile the counter; whichever of them
// observes the wrap first credits the full period and moves the state to
// wrapNoticed, and the interrupt filter moves it back once its bookkeeping
// for that period is done.
type wrapState uint8

const (
	wrapNone    wrapState = iota // no wraparound pending acknowledgement
	wrapNoticed                  // wraparound credited, interrupt ack pending
)

func (s wrapState) String() string {
	if s == wrapNoticed {
		return "noticed"
	}
	return "none"
}

// pitState is the driver state for one 8254 unit. Everything below regs is
// shared with the interrupt filter and may only be touched with local
// interrupts disabled.
type pitState struct {
	regs   *dev.Resource
	irqRes *dev.IRQ
	ic     *intr.Controller
	freq   uint32 // nominal tick frequency programmed into the descriptor
	timer  timer.Timer

	wrap       wrapState
	periodCntr uint16 // number of counter ticks in a period
	// values since last counter read
	prevCntr16 uint16 // last ascending counter sample
	// values since timer start
	cntrModulo uint32 // number of counter ticks modulo freq
	sec        uint64 // seconds
}

func (p *pitState) setFrequency() {
	p.regs.Write1(pit.PortMode, pit.SelCntr0|pit.Access16Bit|pit.ModeRateGen)
	p.regs.Write1(pit.PortCntr0, uint8(p.periodCntr))
	p.regs.Write1(pit.PortCntr0, uint8(p.periodCntr>>8))
}

func (p *pitState) getCounter() uint16 {
	p.regs.Write1(pit.PortMode, pit.SelCntr0|pit.AccessLatch)
	count := uint16(p.regs.Read1(pit.PortCntr0))
	count |= uint16(p.regs.Read1(pit.PortCntr0)) << 8

	// The counter counts down from n to 1, we make it ascending from 0 to n-1.
	return p.periodCntr - count
}

func (p *pitState) incrCntr(ticks uint32) {
	p.cntrModulo += ticks
	for p.cntrModulo >= p.freq {
		p.cntrModulo -= p.freq
		p.sec++
	}
}

// updateTime samples the counter and folds the ticks elapsed since the
// previous sample into sec/cntrModulo. A sample below the previous one means
// the counter wrapped, in which case the uint16 subtraction already wrapped
// the delta and one full period is added to correct it. More than one whole
// period between calls cannot be detected and is silently lost.
func (p *pitState) updateTime() {
	if !p.ic.IntrDisabled() {
		panic("pit: updateTime called with interrupts enabled")
	}

	lastSec := p.sec
	lastCntr := p.cntrModulo

	nowCntr16 := p.getCounter()
	ticksPassed := nowCntr16 - p.prevCntr16

	if p.prevCntr16 > nowCntr16 {
		p.wrap = wrapNoticed
		ticksPassed += p.periodCntr
	}

	// Keep the last read counter value to detect future wraparounds.
	p.prevCntr16 = nowCntr16

	p.incrCntr(uint32(ticksPassed))

	if p.sec < lastSec || (p.sec == lastSec && p.cntrModulo < lastCntr) {
		panic(fmt.Sprintf("pit: time going backwards: %d.%d -> %d.%d",
			lastSec, lastCntr, p.sec, p.cntrModulo))
	}
	if p.cntrModulo >= p.freq {
		panic(fmt.Sprintf("pit: cntrModulo %d >= frequency %d", p.cntrModulo, p.freq))
	}
}

func pitIntr(data any) intr.Status {
	p := data.(*pitState)

	// It's still possible for periods to be lost. For example disabling
	// interrupts for a whole period without reading the time loses
	// periodCntr ticks. Time can also suddenly jump by periodCntr because
	// updateTime can't detect a wraparound when the current counter value is
	// greater than the previous one, while this filter can thanks to the
	// wrap state.
	p.updateTime()
	if p.wrap == wrapNone {
		p.incrCntr(uint32(p.periodCntr))
	}
	p.timer.Trigger()
	// Cleared here to let the next interrupt know whether the wraparound
	// was already considered.
	p.wrap = wrapNone
	return intr.Filtered
}

func deviceOf(tm *timer.Timer) *dev.Device {
	return tm.Priv.(*dev.Device)
}

func pitTimerStart(tm *timer.Timer, flags timer.Flags, period bintime.BT) error {
	if flags&timer.Periodic == 0 || flags&timer.Oneshot != 0 {
		panic(fmt.Sprintf("pit: only periodic mode is supported, got %s", flags))
	}

	d := deviceOf(tm)
	p := d.State.(*pitState)

	counter := bintime.Mul(period, uint64(p.freq)).Sec
	// Maximal counter value which we can store in the pit timer.
	if counter < 1 || counter > 0xFFFF {
		panic(fmt.Sprintf("pit: period of %d ticks does not fit the 16-bit counter", counter))
	}

	p.sec = 0
	p.cntrModulo = 0
	p.prevCntr16 = 0
	p.periodCntr = uint16(counter)
	p.wrap = wrapNone

	p.setFrequency()

	d.SetupIntr(p.irqRes, pitIntr, p, "i8254 timer")

	log.ModPIT.InfoZ("pit started").
		Uint16("periodCntr", p.periodCntr).
		Uint32("freq", p.freq).
		End()
	return nil
}

func pitTimerStop(tm *timer.Timer) error {
	d := deviceOf(tm)
	p := d.State.(*pitState)
	d.TeardownIntr(p.irqRes)
	return nil
}

func pitTimerGetTime(tm *timer.Timer) bintime.BT {
	d := deviceOf(tm)
	p := d.State.(*pitState)

	var sec uint64
	var cntrModulo uint32

	p.ic.WithDisabled(func() {
		p.updateTime()
		sec = p.sec
		cntrModulo = p.cntrModulo
	})

	bt := bintime.Mul(tm.MinPeriod, uint64(cntrModulo))
	if bt.Sec != 0 {
		panic("pit: sub-second ticks overflow one second")
	}
	bt.Sec = sec

	return bt
}

func pitProbe(d *dev.Device) bool {
	return d.Unit == PITUnit
}

func pitAttach(d *dev.Device, reg *timer.Registry, freq uint32) error {
	p := &pitState{
		ic:   d.IC,
		freq: freq,
	}

	p.regs = d.TakeIOPorts(0)
	if p.regs == nil {
		panic("pit: no ioports resource assigned")
	}
	if err := p.regs.Map(); err != nil {
		return err
	}

	p.irqRes = d.TakeIRQ(0)
	if p.irqRes == nil {
		panic("pit: no irq resource assigned")
	}

	onetick := bintime.FromHz(uint64(freq))
	p.timer = timer.Timer{
		Name:      "i8254",
		Flags:     timer.Periodic,
		Quality:   100,
		Frequency: uint64(freq),
		MinPeriod: onetick,
		MaxPeriod: bintime.Mul(onetick, 65535),
		StartFn:   pitTimerStart,
		StopFn:    pitTimerStop,
		GetTimeFn: pitTimerGetTime,
		Priv:      d,
	}
	d.State = p

	return reg.Register(&p.timer)
}

// NewPITDriver returns the i8254 interval-timer driver. The registered timer
// descriptor advertises periodic mode only: the chip does support one-shot
// counting, but not in a way this driver's clock reconstruction could
// survive. freq is the chip input clock (PITFrequency on PC hardware;
// tests use friendlier values).
func NewPITDriver(reg *timer.Registry, freq uint32) *dev.Driver {
	return &dev.Driver{
		Desc:  "i8254 PIT driver",
		Probe: pitProbe,
		Attach: func(d *dev.Device) error {
			return pitAttach(d, reg, freq)
		},
	}
}
