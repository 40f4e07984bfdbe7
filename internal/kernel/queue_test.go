package kernel

import "testing"

func queuedTasks(st *store, prios ...Priority) []*Task {
	out := make([]*Task, 0, len(prios))
	for _, p := range prios {
		t, err := st.alloc()
		if err != nil {
			panic(err)
		}
		t.base, t.eff, t.state = p, p, Ready
		out = append(out, t)
	}
	return out
}

func TestQueueOrderIsStable(t *testing.T) {
	st := newStore(8, 64, 100)
	q := newQueue("ready", st, 7, true, byPriority)
	ts := queuedTasks(st, 4, 1, 4, 0, 1)
	for _, task := range ts {
		if !q.insert(task) {
			t.Fatalf("insert %d refused", task.ID)
		}
	}

	want := []TaskID{ts[3].ID, ts[1].ID, ts[4].ID, ts[0].ID, ts[2].ID}
	for i, id := range want {
		got := q.removeExtreme()
		if got == nil || got.ID != id {
			t.Fatalf("removal %d: want %d, got %v", i, id, got)
		}
	}
	if !q.isEmpty() || q.removeExtreme() != nil {
		t.Fatalf("queue must be empty")
	}
}

func TestQueueFullGuard(t *testing.T) {
	st := newStore(4, 64, 100)
	q := newQueue("ready", st, 3, true, byPriority)
	ts := queuedTasks(st, 1, 1, 1, 1)
	for _, task := range ts[:3] {
		q.insert(task)
	}
	if !q.isFull() {
		t.Fatalf("queue with %d of %d slots must be full", q.Len(), 3)
	}
	if q.insert(ts[3]) {
		t.Fatalf("insert into a full queue must be refused")
	}
	if ts[3].queue != nil {
		t.Fatalf("refused task must not be marked queued")
	}
}

func TestQueueRekeyAndFilter(t *testing.T) {
	st := newStore(8, 64, 100)
	q := newQueue("mutex-wait", st, 7, true, byPriority)
	ts := queuedTasks(st, 5, 3, 7)
	ts[0].mutex, ts[1].mutex, ts[2].mutex = 2, 1, 2
	for _, task := range ts {
		q.insert(task)
	}

	ts[2].eff = 1
	q.rekey(ts[2])
	if got := q.peek(); got != ts[2] {
		t.Fatalf("rekeyed task must move to the front, got %+v", got)
	}

	got := q.removeFirst(func(x *Task) bool { return x.mutex == 1 })
	if got != ts[1] {
		t.Fatalf("filter must skip entries for other mutexes")
	}
	if q.removeFirst(func(x *Task) bool { return x.mutex == 9 }) != nil {
		t.Fatalf("no match must return nil")
	}
	if q.Len() != 2 {
		t.Fatalf("want 2 entries left, got %d", q.Len())
	}
}

func TestQueueSkipsRecycledSlot(t *testing.T) {
	st := newStore(4, 64, 100)
	q := newQueue("sleep", st, 3, false, byWake)
	ts := queuedTasks(st, 1, 1)
	ts[0].wake.Tick = 1
	ts[1].wake.Tick = 2
	q.insert(ts[0])
	q.insert(ts[1])

	// recycle slot 0 behind the queue's back
	st.release(ts[0])
	if got := q.removeExtreme(); got == nil || got.ID != ts[1].ID {
		t.Fatalf("stale handle must be skipped, got %v", got)
	}
}
