package intr

import "testing"

func TestDispatchRunsFilter(t *testing.T) {
	ic := NewController()

	calls := 0
	owner := "test"
	ic.Setup(owner, 3, func(data any) Status {
		if data != "ctx" {
			t.Errorf("filter data = %v, want ctx", data)
		}
		if !ic.IntrDisabled() {
			t.Error("filter ran with interrupts enabled")
		}
		calls++
		return Filtered
	}, "ctx", "testdev")

	ic.Raise(3)
	ic.Dispatch()
	ic.Dispatch() // pending state consumed by the first dispatch
	if calls != 1 {
		t.Errorf("filter ran %d times, want 1", calls)
	}
}

func TestDispatchWhileDisabled(t *testing.T) {
	ic := NewController()

	calls := 0
	ic.Setup("o", 0, func(any) Status { calls++; return Filtered }, nil, "dev")
	ic.Raise(0)

	restore := ic.Disabled()
	ic.Dispatch()
	if calls != 0 {
		t.Fatal("interrupt delivered inside critical section")
	}
	restore()

	ic.Dispatch()
	if calls != 1 {
		t.Errorf("filter ran %d times after restore, want 1", calls)
	}
}

func TestCriticalSectionsNest(t *testing.T) {
	ic := NewController()

	outer := ic.Disabled()
	inner := ic.Disabled()
	inner()
	if !ic.IntrDisabled() {
		t.Error("outer section ended by inner restore")
	}
	outer()
	if ic.IntrDisabled() {
		t.Error("interrupts still disabled after outermost restore")
	}
}

func TestWithDisabledRestoresOnPanic(t *testing.T) {
	ic := NewController()

	func() {
		defer func() { recover() }()
		ic.WithDisabled(func() { panic("boom") })
	}()

	if ic.IntrDisabled() {
		t.Error("interrupts left disabled after panic")
	}
}

func TestStrayInterrupts(t *testing.T) {
	ic := NewController()

	ic.Raise(5)
	ic.Dispatch()
	if ic.Strays() != 1 {
		t.Errorf("strays = %d, want 1 for unclaimed line", ic.Strays())
	}

	ic.Setup("o", 5, func(any) Status { return Stray }, nil, "dev")
	ic.Raise(5)
	ic.Dispatch()
	if ic.Strays() != 2 {
		t.Errorf("strays = %d, want 2 after rejected interrupt", ic.Strays())
	}
}

func TestTeardown(t *testing.T) {
	ic := NewController()

	calls := 0
	ic.Setup("o", 2, func(any) Status { calls++; return Filtered }, nil, "dev")
	ic.Teardown("o", 2)

	ic.Raise(2)
	ic.Dispatch()
	if calls != 0 {
		t.Error("filter ran after teardown")
	}

	// The line is free to claim again.
	ic.Setup("p", 2, func(any) Status { return Filtered }, nil, "dev2")
}

func TestDoubleClaimPanics(t *testing.T) {
	ic := NewController()
	ic.Setup("o", 1, func(any) Status { return Filtered }, nil, "dev")

	defer func() {
		if recover() == nil {
			t.Error("claiming a claimed line did not panic")
		}
	}()
	ic.Setup("p", 1, func(any) Status { return Filtered }, nil, "dev2")
}

func TestTeardownWrongOwnerPanics(t *testing.T) {
	ic := NewController()
	ic.Setup("o", 1, func(any) Status { return Filtered }, nil, "dev")

	defer func() {
		if recover() == nil {
			t.Error("teardown by non-owner did not panic")
		}
	}()
	ic.Teardown("p", 1)
}
