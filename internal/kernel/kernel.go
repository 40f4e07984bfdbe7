// internal/kernel/kernel.go

// Package kernel is a small priority-scheduled real-time kernel. One Kernel
// owns the process, mutex and event tables and every queue; all of it is
// mutated from the request loop only, between a task's trap in and the
// kernel's trap out.
package kernel

import (
	"context"
	"fmt"

	"rtkern/internal/cswitch"
	"rtkern/internal/timer"
)

// Switcher is the context-switch primitive the kernel traps through.
type Switcher interface {
	// Install binds a code handle stored in initial frames to a body.
	Install(handle uint16, fn cswitch.Code)
	// Exit resumes c and blocks until it traps back in.
	Exit(c *cswitch.Context) error
	// Enter traps from the running task into the kernel and returns once
	// the kernel resumes it.
	Enter(c *cswitch.Context)
	// Release destroys a context that will never run again.
	Release(c *cswitch.Context)
	// InterruptsEnabled reports the interrupt flag.
	InterruptsEnabled() bool
}

// Options holds the kernel's collaborators. Zero values pick a virtual
// timer and the goroutine switch.
type Options struct {
	Timer    timer.Timer
	Switcher Switcher
	Observer Observer
}

// outcome tells the request loop whether the current task keeps the
// processor.
type outcome uint8

const (
	proceed outcome = iota
	reschedule
)

// terminateHandle is the code handle stored at the bottom of every stack.
const terminateHandle uint16 = 0

// Kernel is the single kernel context.
type Kernel struct {
	cfg     Config
	timer   timer.Timer
	sw      Switcher
	observe Observer

	store    *store
	ready    *queue
	sleeping *queue
	blocked  *queue // tasks waiting on any mutex
	mutexes  []Mutex
	events   []Event

	current   *Task
	active    bool
	fault     error
	statusSeq uint64
}

// New builds a kernel with empty tables.
func New(cfg Config, opts Options) *Kernel {
	cfg.clamp()

	k := &Kernel{
		cfg:     cfg,
		timer:   opts.Timer,
		sw:      opts.Switcher,
		observe: opts.Observer,
		store:   newStore(cfg.MaxTasks, cfg.StackSize, cfg.MaxTaskIDs),
		mutexes: make([]Mutex, cfg.MaxMutexes),
		events:  make([]Event, cfg.MaxEvents),
	}
	if k.timer == nil {
		k.timer = timer.NewVirtual(cfg.TickModulus)
	}
	if k.sw == nil {
		k.sw = cswitch.New()
	}

	// one slot is kept back as the full guard
	limit := cfg.MaxTasks - 1
	k.ready = newQueue("ready", k.store, limit, true, byPriority)
	k.sleeping = newQueue("sleep", k.store, limit, false, byWake)
	k.blocked = newQueue("mutex-wait", k.store, limit, true, byPriority)

	k.sw.Install(terminateHandle, func() {
		// runs on the goroutine of the task whose entry returned
		k.current.sys.Terminate()
	})
	return k
}

// Config returns the effective configuration.
func (k *Kernel) Config() Config { return k.cfg }

// Timer returns the kernel's timing peripheral.
func (k *Kernel) Timer() timer.Timer { return k.timer }

// Create adds a task before the kernel starts. Running tasks use Sys.Create.
func (k *Kernel) Create(entry Entry, priority Priority, arg int) (TaskID, error) {
	if k.active {
		return NoTask, ErrKernelActive
	}
	return k.create(entry, priority, arg)
}

// MutexInit allocates a mutex before the kernel starts.
func (k *Kernel) MutexInit() (MutexID, error) {
	if k.active {
		return NoMutex, ErrKernelActive
	}
	return k.mutexInit()
}

// EventInit allocates an event before the kernel starts.
func (k *Kernel) EventInit() (EventID, error) {
	if k.active {
		return NoEvent, ErrKernelActive
	}
	return k.eventInit()
}

// Argument returns the creation argument of a live task.
func (k *Kernel) Argument(id TaskID) (int, bool) {
	t := k.store.get(id)
	if t == nil {
		return 0, false
	}
	return t.arg, true
}

func (k *Kernel) create(entry Entry, priority Priority, arg int) (TaskID, error) {
	// every live task must fit the ready queue at once, guard slot aside
	if k.store.live >= k.ready.limit {
		return NoTask, fmt.Errorf("create: %w", ErrTaskTableFull)
	}
	t, err := k.store.alloc()
	if err != nil {
		return NoTask, fmt.Errorf("create: %w", err)
	}
	h, err := cswitch.Handle(t.slot + 1)
	if err != nil {
		k.store.release(t)
		return NoTask, fmt.Errorf("create: %w", err)
	}

	t.ctx = cswitch.NewContext(t.stack)
	t.ctx.SP, err = cswitch.Build(t.stack, terminateHandle, h, k.cfg.DebugFill)
	if err != nil {
		k.store.release(t)
		return NoTask, fmt.Errorf("create: %w", err)
	}

	t.base = priority
	t.eff = priority
	t.arg = arg
	t.sys = &Sys{k: k, t: t, ctx: t.ctx}

	sys := t.sys
	k.sw.Install(h, func() { entry(sys) })

	t.state = Ready
	k.makeReady(t)
	k.emit(StatusCreate, t)
	return t.ID, nil
}

// Run starts the kernel and drives the request loop until ctx is cancelled
// or an invariant is violated. A cancelled context is a clean stop and
// returns nil. Every task context is released on the way out.
func (k *Kernel) Run(ctx context.Context) error {
	if k.active {
		return ErrKernelActive
	}
	if k.store.live == 0 {
		return ErrNoTasks
	}
	k.active = true
	defer k.shutdown()

	if err := k.dispatch(); err != nil {
		return k.abort(err)
	}

	for {
		// 1) check shutdown
		if ctx.Err() != nil {
			return nil
		}

		// 2) trap out to the current task and wait for it to trap back in
		cur := k.current
		cur.request = ReqNone
		if err := k.sw.Exit(cur.ctx); err != nil {
			return k.abort(err)
		}
		if k.sw.InterruptsEnabled() {
			return k.abort(ErrTrapContract)
		}

		// 3) serve the trap
		if err := k.step(cur); err != nil {
			return k.abort(err)
		}
	}
}

// step serves one trap from cur: a tick raised while cur ran is taken
// first, then cur's request, then the dispatcher if cur lost the processor.
func (k *Kernel) step(cur *Task) error {
	ticked := k.timer.Pending()
	if ticked {
		k.tick()
	}

	next := k.handle(cur)
	if k.fault != nil {
		return k.fault
	}
	if next == proceed && ticked {
		k.makeReady(cur)
		k.emit(StatusPreempt, cur)
		next = reschedule
	}

	if next == reschedule {
		return k.dispatch()
	}
	return nil
}

// dispatch makes the most urgent ready task the current one.
func (k *Kernel) dispatch() error {
	t := k.ready.removeExtreme()
	if t == nil {
		k.current = nil
		return ErrReadyQueueEmpty
	}
	k.current = t
	t.state = Running
	k.emit(StatusDispatch, t)
	return nil
}

// handle routes the current task's request to its handler.
func (k *Kernel) handle(t *Task) outcome {
	p := t.params
	switch t.request {
	case ReqCreate:
		t.resp.task, t.resp.err = k.create(p.entry, p.priority, p.arg)
		return proceed
	case ReqYield, ReqNone:
		k.makeReady(t)
		k.emit(StatusYield, t)
		return reschedule
	case ReqSleep:
		k.sleep(t, p.ticks)
		return reschedule
	case ReqSuspend:
		return k.suspend(t)
	case ReqResume:
		return k.resume(t)
	case ReqTerminate:
		k.terminate(t)
		return reschedule
	case ReqMutexInit:
		t.resp.mutex, t.resp.err = k.mutexInit()
		return proceed
	case ReqMutexLock:
		return k.lock(t, p.mutex)
	case ReqMutexUnlock:
		return k.unlock(t, p.mutex)
	case ReqEventInit:
		t.resp.event, t.resp.err = k.eventInit()
		return proceed
	case ReqEventWait:
		return k.wait(t, p.event)
	case ReqEventSignal:
		return k.signal(t, p.event)
	default:
		// unreachable through Sys
		return proceed
	}
}

// makeReady puts t on the ready queue, or parks it if it is suspended.
func (k *Kernel) makeReady(t *Task) {
	if t.suspended {
		t.state = Suspended
		return
	}
	t.state = Ready
	if !k.ready.insert(t) {
		k.fail(k.ready)
	}
}

func (k *Kernel) fail(q *queue) {
	if k.fault == nil {
		k.fault = fmt.Errorf("%s: %w", q.name, ErrQueueFull)
	}
}

// sleep parks t until the (epoch, tick) target d ticks from now.
func (k *Kernel) sleep(t *Task, d uint32) {
	t.wake = timer.WakeTarget(k.timer.Now(), k.timer.Modulus(), d)
	t.state = Sleeping
	if !k.sleeping.insert(t) {
		k.fail(k.sleeping)
	}
	k.emit(StatusSleep, t)
}

// tick promotes every sleeper whose target has passed. The sleep queue is
// sorted by target, so the scan stops at the first one still pending.
func (k *Kernel) tick() {
	now := k.timer.Now()
	for {
		t := k.sleeping.peek()
		if t == nil || !t.wake.Due(now) {
			break
		}
		k.sleeping.remove(t)
		k.makeReady(t)
		k.emit(StatusWake, t)
	}
	k.record(StatusEvent{Kind: StatusTick})
}

func (k *Kernel) targetOf(t *Task) *Task {
	if t.target == NoTask || t.target == t.ID {
		return t
	}
	return k.store.get(t.target)
}

// suspend flags the target. A ready target leaves the ready queue at once;
// one that is sleeping or blocked is parked when it would next become ready.
func (k *Kernel) suspend(t *Task) outcome {
	target := k.targetOf(t)
	if target == nil {
		t.resp.err = ErrUnknownTask
		return proceed
	}
	if target.suspended {
		return proceed
	}
	target.suspended = true
	k.emit(StatusSuspend, target)

	switch target.state {
	case Running:
		target.state = Suspended
		return reschedule
	case Ready:
		k.ready.remove(target)
		target.state = Suspended
	}
	return proceed
}

// resume clears the flag and readies a parked target. The caller steps
// aside when the target is more urgent.
func (k *Kernel) resume(t *Task) outcome {
	target := k.targetOf(t)
	if target == nil {
		t.resp.err = ErrUnknownTask
		return proceed
	}
	if !target.suspended {
		return proceed
	}
	target.suspended = false
	k.emit(StatusResume, target)

	if target.state != Suspended {
		return proceed
	}
	k.makeReady(target)
	if target.eff < t.eff {
		k.makeReady(t)
		k.emit(StatusYield, t)
		return reschedule
	}
	return proceed
}

// terminate releases t's mutexes, then its slot.
func (k *Kernel) terminate(t *Task) {
	k.releaseAll(t)
	k.emit(StatusTerminate, t)

	k.sw.Release(t.ctx)
	k.store.release(t)
	if k.current == t {
		k.current = nil
	}
}

func (k *Kernel) abort(err error) error {
	k.record(StatusEvent{Kind: StatusAbort, Detail: err.Error()})
	return fmt.Errorf("kernel halted: %w", err)
}

// shutdown releases every task context so no task goroutine outlives Run.
func (k *Kernel) shutdown() {
	for i := range k.store.tasks {
		if t := &k.store.tasks[i]; t.state != Free && t.ctx != nil {
			k.sw.Release(t.ctx)
		}
	}
}
