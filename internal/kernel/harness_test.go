package kernel

import (
	"testing"

	"rtkern/internal/cswitch"
	"rtkern/internal/timer"
)

// stubSwitch never runs task code; tests drive requests through step.
type stubSwitch struct {
	code     map[uint16]cswitch.Code
	released int
}

func (s *stubSwitch) Install(h uint16, fn cswitch.Code) {
	if s.code == nil {
		s.code = make(map[uint16]cswitch.Code)
	}
	s.code[h] = fn
}
func (s *stubSwitch) Exit(*cswitch.Context) error { return nil }
func (s *stubSwitch) Enter(*cswitch.Context)      {}
func (s *stubSwitch) Release(*cswitch.Context)    { s.released++ }
func (s *stubSwitch) InterruptsEnabled() bool     { return false }

type harness struct {
	t      *testing.T
	k      *Kernel
	clock  *timer.Virtual
	sw     *stubSwitch
	events []StatusEvent
}

func nop(*Sys) {}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{t: t, clock: timer.NewVirtual(cfg.TickModulus), sw: &stubSwitch{}}
	h.k = New(cfg, Options{
		Timer:    h.clock,
		Switcher: h.sw,
		Observer: func(ev StatusEvent) { h.events = append(h.events, ev) },
	})
	return h
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxTasks = 8
	cfg.MaxMutexes = 4
	cfg.MaxEvents = 4
	return cfg
}

func (h *harness) spawn(prio Priority) TaskID {
	h.t.Helper()
	id, err := h.k.Create(nop, prio, int(prio))
	if err != nil {
		h.t.Fatalf("Create(prio %d): %v", prio, err)
	}
	return id
}

func (h *harness) start() {
	h.t.Helper()
	h.k.active = true
	if err := h.k.dispatch(); err != nil {
		h.t.Fatalf("first dispatch: %v", err)
	}
}

func (h *harness) current() TaskID {
	if h.k.current == nil {
		return NoTask
	}
	return h.k.current.ID
}

// trap makes the current task issue req and serves it like the request loop.
func (h *harness) trap(req Request, p params, target TaskID) (response, error) {
	h.t.Helper()
	cur := h.k.current
	if cur == nil {
		h.t.Fatalf("no current task for %v", req)
	}
	cur.request = req
	cur.params = p
	cur.target = target
	cur.resp = response{}
	err := h.k.step(cur)
	return cur.resp, err
}

func (h *harness) call(req Request, p params, target TaskID) response {
	h.t.Helper()
	resp, err := h.trap(req, p, target)
	if err != nil {
		h.t.Fatalf("%v: %v", req, err)
	}
	return resp
}

func (h *harness) yield()     { h.call(ReqYield, params{}, NoTask) }
func (h *harness) terminate() { h.call(ReqTerminate, params{}, NoTask) }

func (h *harness) lock(m MutexID) error {
	return h.call(ReqMutexLock, params{mutex: m}, NoTask).err
}

func (h *harness) unlock(m MutexID) error {
	return h.call(ReqMutexUnlock, params{mutex: m}, NoTask).err
}

func (h *harness) task(id TaskID) *Task {
	h.t.Helper()
	t := h.k.store.get(id)
	if t == nil {
		h.t.Fatalf("task %d not live", id)
	}
	return t
}

func (h *harness) count(kind StatusKind, id TaskID) int {
	n := 0
	for _, ev := range h.events {
		if ev.Kind == kind && ev.TaskID == id {
			n++
		}
	}
	return n
}
