package kernel

import "errors"

var (
	// resource exhaustion
	ErrTaskTableFull    = errors.New("task table full")
	ErrTaskIDsExhausted = errors.New("task id space exhausted")
	ErrMutexTableFull   = errors.New("mutex table full")
	ErrEventTableFull   = errors.New("event table full")
	ErrQueueFull        = errors.New("queue full")

	// invariant violations; the kernel halts
	ErrReadyQueueEmpty = errors.New("ready queue empty")
	ErrTrapContract    = errors.New("trap returned with interrupts enabled")

	// misuse
	ErrKernelActive = errors.New("kernel already started")
	ErrNoTasks      = errors.New("no tasks to run")
	ErrUnknownTask  = errors.New("unknown task")
	ErrUnknownMutex = errors.New("unknown mutex")
	ErrNotOwner     = errors.New("mutex not owned by caller")
	ErrUnknownEvent = errors.New("unknown event")
	ErrEventBusy    = errors.New("event already has a waiter")
)
