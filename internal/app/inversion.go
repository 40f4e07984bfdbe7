// internal/app/inversion.go

package app

import (
	"fmt"

	"rtkern/internal/kernel"
)

const (
	invHigh kernel.Priority = 1
	invMid  kernel.Priority = 3
	invLow  kernel.Priority = 5
)

// Inversion runs three tasks at distinct priorities around one mutex. The
// low task holds the mutex for a while; the high task wants it just after
// the medium task wakes up to do unrelated work.
type Inversion struct {
	failures
	m kernel.MutexID

	HighAcquired int
	LowBoosted   int // hold periods in which low ran above its base priority
	MidRuns      int
}

func NewInversion() *Inversion { return &Inversion{} }

func (v *Inversion) Name() string { return "inversion" }

func (v *Inversion) Boot(sys *kernel.Sys) {
	var err error
	if v.m, err = sys.MutexInit(); !v.check("mutex", err) {
		return
	}
	_, err = sys.Create(v.low, invLow, 0)
	v.check("create low", err)
	_, err = sys.Create(v.mid, invMid, 0)
	v.check("create mid", err)
	_, err = sys.Create(v.high, invHigh, 0)
	v.check("create high", err)
	_, err = sys.Create(Idle, kernel.LowestPriority, 0)
	v.check("create idle", err)
}

func (v *Inversion) low(sys *kernel.Sys) {
	for {
		if !v.check("low lock", sys.Lock(v.m)) {
			return
		}
		boosted := false
		for i := 0; i < 4; i++ {
			Busy(sys, 1)
			if sys.Priority() < invLow {
				boosted = true
			}
		}
		if boosted {
			v.LowBoosted++
		}
		v.check("low unlock", sys.Unlock(v.m))
		sys.Sleep(3)
	}
}

func (v *Inversion) mid(sys *kernel.Sys) {
	for {
		sys.Sleep(2)
		v.MidRuns++
		Busy(sys, 2)
		sys.Sleep(5)
	}
}

func (v *Inversion) high(sys *kernel.Sys) {
	for {
		sys.Sleep(2)
		if !v.check("high lock", sys.Lock(v.m)) {
			return
		}
		v.HighAcquired++
		v.check("high unlock", sys.Unlock(v.m))
		sys.Sleep(5)
	}
}

func (v *Inversion) Report() string {
	return fmt.Sprintf("high acquired=%d low boosted=%d mid runs=%d", v.HighAcquired, v.LowBoosted, v.MidRuns)
}
