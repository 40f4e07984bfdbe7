// internal/timer/instant.go

package timer

import (
	"fmt"

	"fortio.org/safecast"
)

// Instant is an absolute point in kernel time: the number of completed
// counter cycles (Epoch) and the position within the current cycle (Tick).
type Instant struct {
	Epoch uint32 `msgpack:"epoch"`
	Tick  uint32 `msgpack:"tick"`
}

// Compare orders instants lexicographically by (Epoch, Tick).
func (i Instant) Compare(o Instant) int {
	switch {
	case i.Epoch < o.Epoch:
		return -1
	case i.Epoch > o.Epoch:
		return 1
	case i.Tick < o.Tick:
		return -1
	case i.Tick > o.Tick:
		return 1
	default:
		return 0
	}
}

// Due reports whether a wake target i has been reached at now.
func (i Instant) Due(now Instant) bool {
	return i.Compare(now) <= 0
}

// Ticks flattens the instant into a tick count for the given modulus.
func (i Instant) Ticks(modulus uint32) uint64 {
	return uint64(i.Epoch)*uint64(modulus) + uint64(i.Tick)
}

func (i Instant) String() string {
	return fmt.Sprintf("%d:%02d", i.Epoch, i.Tick)
}

// WakeTarget converts a relative sleep of d ticks, requested at now, into an
// absolute instant. The epoch saturates instead of wrapping.
func WakeTarget(now Instant, modulus uint32, d uint32) Instant {
	if modulus == 0 {
		modulus = 1
	}
	total := uint64(d) + uint64(now.Tick)
	carry := total / uint64(modulus)

	epoch, err := safecast.Conv[uint32](uint64(now.Epoch) + carry)
	if err != nil {
		epoch = ^uint32(0)
	}
	// total % modulus < modulus, always fits
	tick, _ := safecast.Conv[uint32](total % uint64(modulus))
	return Instant{Epoch: epoch, Tick: tick}
}
