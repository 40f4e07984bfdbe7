package kernel

// Request is the system call code a task leaves in its record before it
// traps into the kernel.
type Request uint8

const (
	ReqNone Request = iota // also left behind by the tick trap
	ReqCreate
	ReqYield
	ReqSleep
	ReqSuspend
	ReqResume
	ReqTerminate
	ReqMutexInit
	ReqMutexLock
	ReqMutexUnlock
	ReqEventInit
	ReqEventWait
	ReqEventSignal
)

func (r Request) String() string {
	switch r {
	case ReqNone:
		return "none"
	case ReqCreate:
		return "create"
	case ReqYield:
		return "yield"
	case ReqSleep:
		return "sleep"
	case ReqSuspend:
		return "suspend"
	case ReqResume:
		return "resume"
	case ReqTerminate:
		return "terminate"
	case ReqMutexInit:
		return "mutex-init"
	case ReqMutexLock:
		return "mutex-lock"
	case ReqMutexUnlock:
		return "mutex-unlock"
	case ReqEventInit:
		return "event-init"
	case ReqEventWait:
		return "event-wait"
	case ReqEventSignal:
		return "event-signal"
	default:
		return "unknown"
	}
}
