package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-faster/jx"
	"golang.org/x/sync/errgroup"

	"kclock/bintime"
	"kclock/emu"
)

func runMachine(opts Run) error {
	cfg := emu.LoadConfigOrDefault(opts.Config)

	m, err := emu.New(cfg.Timer.Frequency)
	if err != nil {
		return err
	}

	onetick := bintime.FromHz(uint64(cfg.Timer.Frequency))
	period := bintime.Mul(onetick, uint64(cfg.Timer.PeriodTicks))
	if err := m.StartTimer(period); err != nil {
		return err
	}

	total := uint64(cfg.Run.Seconds) * uint64(cfg.Timer.Frequency)
	readings := make(chan bintime.BT, 1)

	var final bintime.BT
	var g errgroup.Group

	// The machine is single-threaded: everything touching it happens on this
	// goroutine. The reporter only formats snapshots.
	g.Go(func() error {
		defer close(readings)

		var stepped uint64
		for stepped < total {
			step := uint64(cfg.Run.StepCycles)
			if left := total - stepped; left < step {
				step = left
			}
			m.Step(uint32(step))
			stepped += step

			select {
			case readings <- m.Now():
			default:
			}
		}

		final = m.Now()
		return m.StopTimer()
	})

	g.Go(func() error {
		last := time.Now()
		for bt := range readings {
			if time.Since(last) < 100*time.Millisecond {
				continue
			}
			last = time.Now()
			fmt.Printf("clock: %d.%020d (%s)\n", bt.Sec, bt.Frac, bt)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Printf("emulated %d cycles, %d periodic ticks, final clock %s\n",
		m.Cycles(), m.Ticks(), final)

	if opts.Stats != "" {
		w := io.Writer(os.Stdout)
		if opts.Stats != "-" {
			f, err := os.Create(opts.Stats)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return writeStats(w, m, final)
	}
	return nil
}

func writeStats(w io.Writer, m *emu.Machine, final bintime.BT) error {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("cycles")
	e.UInt64(m.Cycles())
	e.FieldStart("ticks")
	e.UInt64(m.Ticks())
	e.FieldStart("sec")
	e.UInt64(final.Sec)
	e.FieldStart("frac")
	e.UInt64(final.Frac)
	e.FieldStart("elapsed")
	e.Str(final.String())
	e.FieldStart("strays")
	e.UInt64(m.IC.Strays())
	e.ObjEnd()

	_, err := w.Write(append(e.Bytes(), '\n'))
	return err
}
