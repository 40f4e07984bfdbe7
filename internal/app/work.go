// internal/app/work.go

package app

import "rtkern/internal/kernel"

// Busy keeps the caller computing for the given number of ticks. The caller
// stays ready throughout, so each tick is a preemption point.
func Busy(sys *kernel.Sys, ticks int) {
	for i := 0; i < ticks; i++ {
		sys.Halt()
	}
}
