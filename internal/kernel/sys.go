// internal/kernel/sys.go

package kernel

import (
	"runtime"

	"rtkern/internal/cswitch"
	"rtkern/internal/timer"
)

// Sys is the system call surface handed to a task's entry function. Every
// call that changes kernel state records a request in the caller's own
// record and traps into the kernel; it returns once the kernel resumes the
// caller.
type Sys struct {
	k   *Kernel
	t   *Task
	ctx *cswitch.Context
}

func (s *Sys) trap(r Request) error {
	if s.ctx.Released() {
		// deferred call of a task that was already terminated; its slot may
		// belong to someone else by now
		runtime.Goexit()
	}
	s.t.request = r
	s.t.resp = response{}
	s.k.sw.Enter(s.ctx)
	return s.t.resp.err
}

// ID returns the caller's task id.
func (s *Sys) ID() TaskID { return s.t.ID }

// Arg returns the argument the caller was created with.
func (s *Sys) Arg() int { return s.t.arg }

// ArgOf returns the creation argument of any live task.
func (s *Sys) ArgOf(id TaskID) (int, bool) { return s.k.Argument(id) }

// Priority returns the caller's effective priority.
func (s *Sys) Priority() Priority { return s.t.eff }

// Now reads the timer.
func (s *Sys) Now() timer.Instant { return s.k.timer.Now() }

// Create starts a new task.
func (s *Sys) Create(entry Entry, priority Priority, arg int) (TaskID, error) {
	s.t.params = params{entry: entry, priority: priority, arg: arg}
	err := s.trap(ReqCreate)
	return s.t.resp.task, err
}

// Yield gives up the processor to any ready task at least as urgent.
func (s *Sys) Yield() {
	_ = s.trap(ReqYield)
}

// Sleep blocks the caller for at least ticks ticks.
func (s *Sys) Sleep(ticks uint32) {
	s.t.params = params{ticks: ticks}
	_ = s.trap(ReqSleep)
}

// Suspend keeps a task (NoTask or the caller's own id for itself) off the
// processor until it is resumed.
func (s *Sys) Suspend(id TaskID) error {
	s.t.target = id
	return s.trap(ReqSuspend)
}

// Resume lets a suspended task run again.
func (s *Sys) Resume(id TaskID) error {
	s.t.target = id
	return s.trap(ReqResume)
}

// Terminate ends the caller. It does not return.
func (s *Sys) Terminate() {
	_ = s.trap(ReqTerminate)
	// the kernel releases the context instead of resuming it
	panic("kernel: terminated task resumed")
}

// Halt waits for the next timer interrupt and then takes the tick trap.
// Idle tasks loop on it.
func (s *Sys) Halt() {
	s.k.timer.Idle()
	_ = s.trap(ReqNone)
}

// MutexInit allocates a mutex.
func (s *Sys) MutexInit() (MutexID, error) {
	err := s.trap(ReqMutexInit)
	return s.t.resp.mutex, err
}

// Lock acquires m, blocking while another task holds it. Locks nest.
func (s *Sys) Lock(m MutexID) error {
	s.t.params = params{mutex: m}
	return s.trap(ReqMutexLock)
}

// Unlock releases one level of m.
func (s *Sys) Unlock(m MutexID) error {
	s.t.params = params{mutex: m}
	return s.trap(ReqMutexUnlock)
}

// EventInit allocates an event.
func (s *Sys) EventInit() (EventID, error) {
	err := s.trap(ReqEventInit)
	return s.t.resp.event, err
}

// Wait blocks until e is signalled, or consumes a pending signal.
func (s *Sys) Wait(e EventID) error {
	s.t.params = params{event: e}
	return s.trap(ReqEventWait)
}

// Signal wakes e's waiter or leaves the signal pending.
func (s *Sys) Signal(e EventID) error {
	s.t.params = params{event: e}
	return s.trap(ReqEventSignal)
}
