// internal/kernel/mutex.go

package kernel

import "fortio.org/safecast"

// MutexID names a mutex record. NoMutex is never handed out.
type MutexID uint8

const NoMutex MutexID = 0

// MutexState is a mutex record's lifecycle state.
type MutexState uint8

const (
	MutexDisabled MutexState = iota
	MutexFree
	MutexLocked
)

func (s MutexState) String() string {
	switch s {
	case MutexDisabled:
		return "disabled"
	case MutexFree:
		return "free"
	case MutexLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// Mutex is one slot of the mutex table. Count > 0 iff State is MutexLocked;
// Owner means nothing otherwise.
type Mutex struct {
	ID    MutexID
	State MutexState
	Owner TaskID
	Count int
}

func (k *Kernel) mutexInit() (MutexID, error) {
	for i := range k.mutexes {
		m := &k.mutexes[i]
		if m.State != MutexDisabled {
			continue
		}
		id, err := safecast.Conv[MutexID](i + 1)
		if err != nil {
			break
		}
		*m = Mutex{ID: id, State: MutexFree}
		return id, nil
	}
	return NoMutex, ErrMutexTableFull
}

func (k *Kernel) mutexAt(id MutexID) *Mutex {
	i := int(id) - 1
	if i < 0 || i >= len(k.mutexes) || k.mutexes[i].State == MutexDisabled {
		return nil
	}
	return &k.mutexes[i]
}

// lock grants m to t, counts a recursive acquisition, or blocks t behind the
// owner. A blocked caller lends its priority to a less urgent owner.
func (k *Kernel) lock(t *Task, id MutexID) outcome {
	m := k.mutexAt(id)
	if m == nil {
		t.resp.err = ErrUnknownMutex
		return proceed
	}

	switch {
	case m.State == MutexFree:
		m.State = MutexLocked
		m.Owner = t.ID
		m.Count = 1
		k.emitMutex(StatusAcquire, t, id)
		return proceed
	case m.Owner == t.ID:
		m.Count++
		k.emitMutex(StatusAcquire, t, id)
		return proceed
	}

	if owner := k.store.get(m.Owner); owner != nil && owner.eff > t.eff {
		k.setEffective(owner, t.eff)
		k.emitMutex(StatusInherit, owner, id)
	}

	t.state = BlockedOnMutex
	t.mutex = id
	if !k.blocked.insert(t) {
		k.fail(k.blocked)
	}
	k.emitMutex(StatusBlock, t, id)
	return reschedule
}

// unlock is the system call path: only the owner may release.
func (k *Kernel) unlock(t *Task, id MutexID) outcome {
	m := k.mutexAt(id)
	if m == nil {
		t.resp.err = ErrUnknownMutex
		return proceed
	}
	if m.State != MutexLocked || m.Owner != t.ID {
		t.resp.err = ErrNotOwner
		return proceed
	}
	return k.release(t, m, false)
}

// release drops t's hold on m. A terminating owner gives the mutex up
// entirely whatever its count.
func (k *Kernel) release(t *Task, m *Mutex, terminating bool) outcome {
	if terminating {
		k.handOff(m)
		k.restore(t)
		return proceed
	}

	if m.Count > 1 {
		m.Count--
		k.emitMutex(StatusRelease, t, m.ID)
		return proceed
	}

	k.restore(t)
	if k.handOff(m) == nil {
		return proceed
	}
	// the new owner may be more urgent than the releaser
	k.makeReady(t)
	k.emit(StatusYield, t)
	return reschedule
}

// handOff gives m to its most urgent waiter, or frees it when nobody waits.
func (k *Kernel) handOff(m *Mutex) *Task {
	prev := m.Owner
	w := k.blocked.removeFirst(func(x *Task) bool { return x.mutex == m.ID })
	if w == nil {
		m.State = MutexFree
		m.Owner = NoTask
		m.Count = 0
		k.record(StatusEvent{Kind: StatusRelease, TaskID: prev, Mutex: m.ID})
		return nil
	}

	m.Owner = w.ID
	m.Count = 1
	w.mutex = NoMutex
	k.record(StatusEvent{Kind: StatusRelease, TaskID: prev, Mutex: m.ID})
	k.makeReady(w)
	k.emitMutex(StatusAcquire, w, m.ID)
	return w
}

// releaseAll frees every mutex owned by a terminating task.
func (k *Kernel) releaseAll(t *Task) {
	for i := range k.mutexes {
		m := &k.mutexes[i]
		if m.State == MutexLocked && m.Owner == t.ID {
			k.release(t, m, true)
		}
	}
}

// setEffective changes t's effective priority and re-sorts it if it sits in
// a priority ordered queue.
func (k *Kernel) setEffective(t *Task, p Priority) {
	t.eff = p
	if q := t.queue; q != nil && q.priority {
		q.rekey(t)
	}
}

// restore drops any inherited boost. Inheritance is not stacked: holding two
// mutexes with different boosts falls straight back to the base priority.
func (k *Kernel) restore(t *Task) {
	if t.eff == t.base {
		return
	}
	k.setEffective(t, t.base)
	k.emit(StatusRestore, t)
}
