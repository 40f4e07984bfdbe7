// internal/timer/timer.go

// Package timer provides the timing peripherals the kernel sleeps against:
// a free-running counter that wraps at a fixed modulus and an overflow epoch
// bumped on every wrap.
package timer

// Timer is the timing peripheral seen by the kernel.
type Timer interface {
	// Now returns the current (epoch, counter) pair. Successive calls never
	// go backwards.
	Now() Instant
	// Modulus is the number of ticks in one epoch.
	Modulus() uint32
	// Pending acknowledges a latched tick interrupt and reports whether one
	// was raised since the previous call.
	Pending() bool
	// Idle halts the caller until the next tick interrupt.
	Idle()
}
