package timer

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"kclock/bintime"
)

func testTimer(name string, flags Flags, quality int) *Timer {
	onetick := bintime.FromHz(1000)
	return &Timer{
		Name:      name,
		Flags:     flags,
		Quality:   quality,
		Frequency: 1000,
		MinPeriod: onetick,
		MaxPeriod: bintime.Mul(onetick, 65535),
		StartFn:   func(*Timer, Flags, bintime.BT) error { return nil },
		StopFn:    func(*Timer) error { return nil },
		GetTimeFn: func(*Timer) bintime.BT { return bintime.BT{} },
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(testTimer("a", Periodic, 1)); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(testTimer("a", Periodic, 2)); err == nil {
		t.Error("duplicate registration accepted")
	}
}

func TestSelect(t *testing.T) {
	r := NewRegistry()
	r.Register(testTimer("slow", Periodic, 10))
	r.Register(testTimer("fast", Periodic, 100))
	r.Register(testTimer("oneshot-only", Oneshot, 200))

	tm, err := r.Select(Periodic)
	if err != nil {
		t.Fatal(err)
	}
	if tm.Name != "fast" {
		t.Errorf("selected %q, want fast (highest periodic quality)", tm.Name)
	}

	if _, err := r.Select(Periodic | Oneshot); !errors.Is(err, ErrNoTimer) {
		t.Errorf("Select(periodic|oneshot) = %v, want ErrNoTimer", err)
	}
}

func TestStartStopStateMachine(t *testing.T) {
	tm := testTimer("a", Periodic, 1)
	period := bintime.Mul(bintime.FromHz(1000), 10)

	if err := tm.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop while stopped = %v, want ErrNotRunning", err)
	}
	if err := tm.Start(Periodic, period); err != nil {
		t.Fatal(err)
	}
	if err := tm.Start(Periodic, period); !errors.Is(err, ErrRunning) {
		t.Errorf("Start while running = %v, want ErrRunning", err)
	}
	if err := tm.Stop(); err != nil {
		t.Fatal(err)
	}
	if tm.Running() {
		t.Error("timer still running after Stop")
	}
}

func TestStartValidation(t *testing.T) {
	tm := testTimer("a", Periodic, 1)
	onetick := bintime.FromHz(1000)

	if err := tm.Start(Oneshot, bintime.Mul(onetick, 10)); !errors.Is(err, ErrCapability) {
		t.Errorf("oneshot on periodic-only timer = %v, want ErrCapability", err)
	}
	if err := tm.Start(Periodic, bintime.Mul(onetick, 100000)); !errors.Is(err, ErrPeriod) {
		t.Errorf("oversized period = %v, want ErrPeriod", err)
	}
	if err := tm.Start(Periodic, bintime.BT{}); !errors.Is(err, ErrPeriod) {
		t.Errorf("zero period = %v, want ErrPeriod", err)
	}
	if tm.Running() {
		t.Error("timer running after rejected starts")
	}
}

func TestStartPassesThroughDriverArgs(t *testing.T) {
	var gotFlags Flags
	var gotPeriod bintime.BT

	tm := testTimer("a", Periodic|Oneshot, 1)
	tm.StartFn = func(_ *Timer, flags Flags, period bintime.BT) error {
		gotFlags = flags
		gotPeriod = period
		return nil
	}

	period := bintime.Mul(bintime.FromHz(1000), 42)
	if err := tm.Start(Periodic, period); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(period, gotPeriod); diff != "" {
		t.Errorf("driver period mismatch (-want +got):\n%s", diff)
	}
	if gotFlags != Periodic {
		t.Errorf("driver flags = %s, want periodic", gotFlags)
	}
}

func TestTriggerFansOut(t *testing.T) {
	tm := testTimer("a", Periodic, 1)

	a, b := 0, 0
	tm.Subscribe(func() { a++ })
	tm.Subscribe(func() { b++ })

	tm.Trigger()
	tm.Trigger()
	if a != 2 || b != 2 {
		t.Errorf("subscribers saw %d/%d triggers, want 2/2", a, b)
	}
}

func TestFlagsString(t *testing.T) {
	tests := []struct {
		flags Flags
		want  string
	}{
		{Periodic, "periodic"},
		{Oneshot, "oneshot"},
		{Periodic | Oneshot, "periodic|oneshot"},
		{0, "none"},
	}
	for _, tt := range tests {
		if got := tt.flags.String(); got != tt.want {
			t.Errorf("Flags(%d).String() = %q, want %q", tt.flags, got, tt.want)
		}
	}
}
