// internal/kernel/status.go

package kernel

import (
	"rtkern/internal/timer"
)

// StatusKind represents the type of kernel status event.
type StatusKind uint8

const (
	StatusCreate StatusKind = iota
	StatusDispatch
	StatusYield
	StatusPreempt
	StatusSleep
	StatusWake
	StatusTick
	StatusBlock
	StatusAcquire
	StatusRelease
	StatusInherit
	StatusRestore
	StatusWait
	StatusSignal
	StatusSuspend
	StatusResume
	StatusTerminate
	StatusAbort
)

// StatusEvent is emitted on every scheduling decision and every tick.
type StatusEvent struct {
	Seq      uint64        `msgpack:"seq"`
	At       timer.Instant `msgpack:"at"`
	Kind     StatusKind    `msgpack:"kind"`
	TaskID   TaskID        `msgpack:"task"`
	Priority Priority      `msgpack:"prio"`
	Mutex    MutexID       `msgpack:"mutex,omitempty"`
	Event    EventID       `msgpack:"event,omitempty"`
	Detail   string        `msgpack:"detail,omitempty"`
}

// Observer receives status events. It runs inside the kernel's critical
// section and must not call back into the kernel.
type Observer func(StatusEvent)

func (sk StatusKind) String() string {
	switch sk {
	case StatusCreate:
		return "Create"
	case StatusDispatch:
		return "Dispatch"
	case StatusYield:
		return "Yield"
	case StatusPreempt:
		return "Preempt"
	case StatusSleep:
		return "Sleep"
	case StatusWake:
		return "Wake"
	case StatusTick:
		return "Tick"
	case StatusBlock:
		return "Block"
	case StatusAcquire:
		return "Acquire"
	case StatusRelease:
		return "Release"
	case StatusInherit:
		return "Inherit"
	case StatusRestore:
		return "Restore"
	case StatusWait:
		return "Wait"
	case StatusSignal:
		return "Signal"
	case StatusSuspend:
		return "Suspend"
	case StatusResume:
		return "Resume"
	case StatusTerminate:
		return "Terminate"
	case StatusAbort:
		return "Abort"
	default:
		return "Unknown"
	}
}

func (k *Kernel) record(ev StatusEvent) {
	if k.observe == nil {
		return
	}
	k.statusSeq++
	ev.Seq = k.statusSeq
	ev.At = k.timer.Now()
	k.observe(ev)
}

func (k *Kernel) emit(kind StatusKind, t *Task) {
	k.record(StatusEvent{Kind: kind, TaskID: t.ID, Priority: t.eff})
}

func (k *Kernel) emitMutex(kind StatusKind, t *Task, m MutexID) {
	k.record(StatusEvent{Kind: kind, TaskID: t.ID, Priority: t.eff, Mutex: m})
}

func (k *Kernel) emitSignal(kind StatusKind, t *Task, e EventID) {
	k.record(StatusEvent{Kind: kind, TaskID: t.ID, Priority: t.eff, Event: e})
}
