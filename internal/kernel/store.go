package kernel

import "fortio.org/safecast"

// store is the fixed-capacity process table. Slots are reused; ids are not.
type store struct {
	tasks  []Task
	live   int
	nextID int
	maxID  int
}

func newStore(slots, stackSize, maxID int) *store {
	s := &store{
		tasks:  make([]Task, slots),
		nextID: 1,
		maxID:  maxID,
	}
	for i := range s.tasks {
		s.tasks[i].slot = i
		s.tasks[i].stack = make([]byte, stackSize)
	}
	return s
}

// alloc claims the first free slot and assigns it a fresh id.
func (s *store) alloc() (*Task, error) {
	if s.live >= len(s.tasks) {
		return nil, ErrTaskTableFull
	}
	if s.nextID > s.maxID {
		return nil, ErrTaskIDsExhausted
	}
	id, err := safecast.Conv[TaskID](s.nextID)
	if err != nil {
		return nil, ErrTaskIDsExhausted
	}

	for i := range s.tasks {
		t := &s.tasks[i]
		if t.state != Free {
			continue
		}
		stack := t.stack
		*t = Task{ID: id, slot: i, stack: stack}
		s.nextID++
		s.live++
		return t, nil
	}
	return nil, ErrTaskTableFull
}

// release returns t's slot to the free pool.
func (s *store) release(t *Task) {
	if t.state == Free && t.ID == NoTask {
		return
	}
	clear(t.stack)
	stack, slot := t.stack, t.slot
	*t = Task{slot: slot, stack: stack}
	s.live--
}

func (s *store) at(slot int) *Task {
	if slot < 0 || slot >= len(s.tasks) {
		return nil
	}
	return &s.tasks[slot]
}

// get finds a live task by id.
func (s *store) get(id TaskID) *Task {
	if id == NoTask {
		return nil
	}
	for i := range s.tasks {
		t := &s.tasks[i]
		if t.ID == id && t.state != Free {
			return t
		}
	}
	return nil
}
