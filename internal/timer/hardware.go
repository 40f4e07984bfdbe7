// internal/timer/hardware.go

package timer

import (
	"sync/atomic"
	"time"
)

// Hardware is a wall-clock timer: a ticker goroutine increments the counter
// at a fixed rate and bumps the epoch whenever the counter wraps.
type Hardware struct {
	modulus uint32
	word    atomic.Uint64 // epoch<<32 | counter, read as one unit
	pending atomic.Bool
	ticks   atomic.Int64
	wake    chan struct{}
	stop    chan struct{}
}

// NewHardware creates a timer but does not start it.
func NewHardware(modulus uint32) *Hardware {
	if modulus == 0 {
		modulus = 1
	}
	return &Hardware{
		modulus: modulus,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
}

// Start begins raising tick interrupts at the given interval.
func (h *Hardware) Start(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h.step()
			case <-h.stop:
				return
			}
		}
	}()
}

// Stop signals the timer to stop raising interrupts.
func (h *Hardware) Stop() {
	close(h.stop)
}

func (h *Hardware) step() {
	now := h.Now()
	now.Tick++
	if now.Tick >= h.modulus {
		// counter overflow interrupt
		now.Tick = 0
		now.Epoch++
	}
	h.word.Store(uint64(now.Epoch)<<32 | uint64(now.Tick))
	h.ticks.Add(1)
	h.pending.Store(true)

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *Hardware) Now() Instant {
	w := h.word.Load()
	return Instant{Epoch: uint32(w >> 32), Tick: uint32(w)}
}

func (h *Hardware) Modulus() uint32 { return h.modulus }

func (h *Hardware) Pending() bool { return h.pending.Swap(false) }

// Idle blocks until a tick raised after the call, or until the timer is
// stopped. A wake token left by a tick nobody waited for is discarded.
func (h *Hardware) Idle() {
	start := h.ticks.Load()
	for {
		select {
		case <-h.wake:
			if h.ticks.Load() > start {
				return
			}
		case <-h.stop:
			return
		}
	}
}

// Count returns the number of ticks raised so far.
func (h *Hardware) Count() int64 {
	return h.ticks.Load()
}
