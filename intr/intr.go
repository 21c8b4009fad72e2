// Package intr models a flat interrupt controller for a single-processor
// machine. Handlers run with local interrupts masked, and masking local
// interrupts is the only mutual exclusion the machine offers: any state
// shared with a handler must be touched inside WithDisabled (or between
// Disabled and its restore).
package intr

import (
	"fmt"

	"kclock/emu/log"
)

// Status is returned by interrupt filters.
type Status uint8

const (
	Stray    Status = iota // interrupt not recognized by this filter
	Filtered               // interrupt recognized and fully serviced
)

// Filter services an interrupt. It runs with local interrupts disabled and
// must not block.
type Filter func(data any) Status

const NumLines = 16

type line struct {
	name    string
	filter  Filter
	data    any
	owner   any
	pending bool
}

// Controller dispatches latched interrupts to installed filters. All methods
// must be called from the machine loop goroutine; the controller itself adds
// no locking (see package doc).
type Controller struct {
	lines    [NumLines]line
	disabled int // nesting depth of critical sections

	strays uint64
}

func NewController() *Controller {
	return &Controller{}
}

// Setup installs a filter on an interrupt line. The owner is recorded so
// Teardown can check that lines are released by whoever claimed them.
func (ic *Controller) Setup(owner any, irq int, filter Filter, data any, name string) {
	if irq < 0 || irq >= NumLines {
		panic(fmt.Errorf("intr: line %d out of range", irq))
	}
	l := &ic.lines[irq]
	if l.filter != nil {
		panic(fmt.Errorf("intr: line %d already claimed by %q", irq, l.name))
	}
	*l = line{name: name, filter: filter, data: data, owner: owner}

	log.ModIntr.DebugZ("interrupt installed").
		Int("irq", irq).
		String("name", name).
		End()
}

// Teardown removes the filter installed on a line. Pending state is dropped.
func (ic *Controller) Teardown(owner any, irq int) {
	if irq < 0 || irq >= NumLines {
		panic(fmt.Errorf("intr: line %d out of range", irq))
	}
	l := &ic.lines[irq]
	if l.filter == nil || l.owner != owner {
		panic(fmt.Errorf("intr: line %d not claimed by caller", irq))
	}

	log.ModIntr.DebugZ("interrupt removed").
		Int("irq", irq).
		String("name", l.name).
		End()
	*l = line{}
}

// Raise latches an interrupt on a line. It may be called at any point of the
// machine loop (typically from a device Tick); delivery waits until the next
// Dispatch with interrupts enabled.
func (ic *Controller) Raise(irq int) {
	ic.lines[irq].pending = true
}

// Dispatch delivers every pending interrupt, masking local interrupts around
// each filter invocation. It is a no-op while interrupts are disabled.
func (ic *Controller) Dispatch() {
	if ic.disabled > 0 {
		return
	}
	for irq := range ic.lines {
		l := &ic.lines[irq]
		if !l.pending {
			continue
		}
		l.pending = false

		if l.filter == nil {
			ic.strays++
			log.ModIntr.WarnZ("stray interrupt").Int("irq", irq).End()
			continue
		}

		ic.withDisabled(func() {
			if l.filter(l.data) == Stray {
				ic.strays++
				log.ModIntr.WarnZ("filter rejected interrupt").
					Int("irq", irq).
					String("name", l.name).
					End()
			}
		})
	}
}

// Disabled enters a critical section and returns the closure that leaves it.
// Sections nest; interrupts are delivered again once the outermost section is
// left. The intended use keeps the pair on one line:
//
//	defer ic.Disabled()()
func (ic *Controller) Disabled() func() {
	ic.disabled++
	return func() {
		if ic.disabled == 0 {
			panic("intr: unbalanced critical section")
		}
		ic.disabled--
	}
}

// WithDisabled runs fn with local interrupts disabled, restoring them on
// every exit path including panics.
func (ic *Controller) WithDisabled(fn func()) {
	ic.withDisabled(fn)
}

func (ic *Controller) withDisabled(fn func()) {
	defer ic.Disabled()()
	fn()
}

// IntrDisabled reports whether the caller is inside a critical section.
func (ic *Controller) IntrDisabled() bool {
	return ic.disabled > 0
}

// Strays returns the number of interrupts that found no willing filter.
func (ic *Controller) Strays() uint64 {
	return ic.strays
}
