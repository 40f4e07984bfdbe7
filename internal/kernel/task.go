// internal/kernel/task.go

package kernel

import (
	"math"

	"rtkern/internal/cswitch"
	"rtkern/internal/timer"
)

// TaskID uniquely identifies a task within one kernel session.
type TaskID uint16

// NoTask is the "no task" sentinel.
const NoTask TaskID = 0

// Priority orders tasks; numerically smaller is more urgent.
type Priority uint8

const (
	HighestPriority Priority = 0
	LowestPriority  Priority = math.MaxUint8
)

// Entry is a task body. Returning from it terminates the task.
type Entry func(sys *Sys)

// State is a task record's lifecycle state.
type State uint8

const (
	Free State = iota
	Ready
	Running
	Sleeping
	BlockedOnMutex
	WaitingOnEvent
	Suspended
)

func (s State) String() string {
	switch s {
	case Free:
		return "free"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Sleeping:
		return "sleeping"
	case BlockedOnMutex:
		return "blocked"
	case WaitingOnEvent:
		return "waiting"
	case Suspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// params carries the arguments of the pending request.
type params struct {
	entry    Entry
	priority Priority
	arg      int
	ticks    uint32
	mutex    MutexID
	event    EventID
}

// response is the result slot filled in by the kernel.
type response struct {
	task  TaskID
	mutex MutexID
	event EventID
	err   error
}

// Task is one slot of the process table.
type Task struct {
	ID   TaskID
	slot int

	state     State
	base      Priority // priority given at creation
	eff       Priority // base, or a boost inherited through a mutex
	arg       int
	request   Request
	params    params
	resp      response
	mutex     MutexID // mutex blocked on
	event     EventID // event waited on
	suspended bool
	target    TaskID // subject of suspend/resume
	wake      timer.Instant

	stack []byte // owned for the life of the kernel, reused by the slot
	ctx   *cswitch.Context
	sys   *Sys

	queue *queue // queue currently holding the record, if any
	key   nodeKey
}

// TaskInfo is a read-only view of a task record.
type TaskInfo struct {
	ID        TaskID
	State     State
	Base      Priority
	Effective Priority
	Arg       int
	Suspended bool
	Mutex     MutexID
	Event     EventID
	Wake      timer.Instant
	SP        int
}

func (t *Task) info() TaskInfo {
	ti := TaskInfo{
		ID:        t.ID,
		State:     t.state,
		Base:      t.base,
		Effective: t.eff,
		Arg:       t.arg,
		Suspended: t.suspended,
		Mutex:     t.mutex,
		Event:     t.event,
		Wake:      t.wake,
	}
	if t.ctx != nil {
		ti.SP = t.ctx.SP
	}
	return ti
}
