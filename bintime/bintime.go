// Package bintime implements 64.64 binary fixed-point time values, the
// representation kernels use for timer arithmetic: a whole-seconds count plus
// a fraction of a second scaled by 2^64. Unlike float math it is exact under
// addition and never loses monotonicity to rounding.
package bintime

import (
	"fmt"
	"math/bits"
	"time"
)

// BT is a point in (or a span of) time: Sec whole seconds plus Frac/2^64 of
// a second.
type BT struct {
	Sec  uint64
	Frac uint64
}

// FromHz returns the duration of one tick of a clock running at hz, that is
// 2^64/hz in the fraction field, rounded up so that hz ticks carry into
// exactly one whole second when multiplied back. hz must be at least 2.
func FromHz(hz uint64) BT {
	if hz < 2 {
		panic(fmt.Errorf("bintime: invalid frequency %d", hz))
	}
	frac, rem := bits.Div64(1, 0, hz)
	if rem != 0 {
		frac++
	}
	return BT{Sec: 0, Frac: frac}
}

// Mul scales a time value by an integer count, carrying fraction overflow
// into seconds.
func Mul(bt BT, x uint64) BT {
	hi, lo := bits.Mul64(bt.Frac, x)
	return BT{
		Sec:  bt.Sec*x + hi,
		Frac: lo,
	}
}

// Add returns a+b.
func Add(a, b BT) BT {
	frac, carry := bits.Add64(a.Frac, b.Frac, 0)
	return BT{Sec: a.Sec + b.Sec + carry, Frac: frac}
}

// Less reports whether a is strictly before b.
func Less(a, b BT) bool {
	if a.Sec != b.Sec {
		return a.Sec < b.Sec
	}
	return a.Frac < b.Frac
}

// Duration converts bt to a time.Duration, saturating on overflow.
func (bt BT) Duration() time.Duration {
	const nsPerSec = 1000000000
	if bt.Sec > (1<<63-1)/nsPerSec {
		return time.Duration(1<<63 - 1)
	}
	hi, _ := bits.Mul64(bt.Frac, nsPerSec)
	return time.Duration(bt.Sec*nsPerSec + hi)
}

func (bt BT) String() string {
	return bt.Duration().String()
}
