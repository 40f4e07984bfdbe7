package kernel

import "rtkern/internal/timer"

// Snapshot is a copy of the kernel tables and queues.
type Snapshot struct {
	Now      timer.Instant
	Current  TaskID
	Live     int
	Tasks    []TaskInfo // live tasks, in slot order
	Ready    []TaskID   // in dispatch order
	Sleeping []TaskID   // nearest wake first
	Blocked  []TaskID   // most urgent first
	Mutexes  []Mutex
	Events   []Event
}

// Snapshot copies the kernel state. Call it before Run, after Run returns,
// or from a running task, never from another goroutine while a task runs.
func (k *Kernel) Snapshot() Snapshot {
	s := Snapshot{
		Now:      k.timer.Now(),
		Live:     k.store.live,
		Ready:    k.ready.ids(),
		Sleeping: k.sleeping.ids(),
		Blocked:  k.blocked.ids(),
		Mutexes:  append([]Mutex(nil), k.mutexes...),
		Events:   append([]Event(nil), k.events...),
	}
	if k.current != nil {
		s.Current = k.current.ID
	}
	for i := range k.store.tasks {
		if t := &k.store.tasks[i]; t.state != Free {
			s.Tasks = append(s.Tasks, t.info())
		}
	}
	return s
}

// Task looks up one task in the snapshot.
func (s Snapshot) Task(id TaskID) (TaskInfo, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return TaskInfo{}, false
}

// Mutex looks up one mutex in the snapshot.
func (s Snapshot) Mutex(id MutexID) (Mutex, bool) {
	for _, m := range s.Mutexes {
		if m.ID == id && m.State != MutexDisabled {
			return m, true
		}
	}
	return Mutex{}, false
}

// Snapshot copies the kernel state from inside a running task.
func (s *Sys) Snapshot() Snapshot { return s.k.Snapshot() }
