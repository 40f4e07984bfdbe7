// internal/kernel/queue.go

package kernel

import (
	"github.com/emirpasic/gods/trees/redblacktree"
)

// handle is a stable reference into the task table. A handle whose id no
// longer matches its slot points at a recycled record and is ignored.
type handle struct {
	slot int
	id   TaskID
}

// queue is an ordered container of task handles. The entry with the smallest
// key is the one to act on next; equal keys leave in insertion order.
type queue struct {
	name     string
	tree     *redblacktree.Tree // ordered by (major, minor, seq)
	limit    int                // usable slots
	seq      uint64
	store    *store
	key      func(t *Task) (major, minor uint32)
	priority bool // keyed by effective priority
}

func newQueue(name string, st *store, limit int, priority bool, key func(*Task) (uint32, uint32)) *queue {
	return &queue{
		name:     name,
		tree:     redblacktree.NewWith(cmp),
		limit:    limit,
		store:    st,
		key:      key,
		priority: priority,
	}
}

func byPriority(t *Task) (uint32, uint32) { return uint32(t.eff), 0 }

func byWake(t *Task) (uint32, uint32) { return t.wake.Epoch, t.wake.Tick }

func (q *queue) Len() int      { return q.tree.Size() }
func (q *queue) isEmpty() bool { return q.tree.Empty() }
func (q *queue) isFull() bool  { return q.tree.Size() >= q.limit }

// insert places t in sorted position. It refuses when the queue is full.
func (q *queue) insert(t *Task) bool {
	if q.isFull() {
		return false
	}
	major, minor := q.key(t)
	k := nodeKey{major: major, minor: minor, seq: q.seq}
	q.seq++
	q.tree.Put(k, handle{slot: t.slot, id: t.ID})
	t.queue = q
	t.key = k
	return true
}

// remove takes t out of the queue if it is queued here.
func (q *queue) remove(t *Task) {
	if t.queue != q {
		return
	}
	q.tree.Remove(t.key)
	t.queue = nil
}

// rekey re-sorts t after its key changed. The task goes behind entries
// that now share its key.
func (q *queue) rekey(t *Task) {
	if t.queue != q {
		return
	}
	q.remove(t)
	q.insert(t)
}

// peek returns the entry at the "act next" end without removing it.
func (q *queue) peek() *Task {
	for {
		node := q.tree.Left()
		if node == nil {
			return nil
		}
		if t := q.resolve(node.Value.(handle)); t != nil {
			return t
		}
		q.tree.Remove(node.Key)
	}
}

// removeExtreme removes and returns the entry at the "act next" end.
func (q *queue) removeExtreme() *Task {
	t := q.peek()
	if t != nil {
		q.remove(t)
	}
	return t
}

// removeFirst removes and returns the first entry, in queue order, that
// satisfies match. Other entries are left where they are.
func (q *queue) removeFirst(match func(*Task) bool) *Task {
	it := q.tree.Iterator()
	for it.Next() {
		t := q.resolve(it.Value().(handle))
		if t != nil && match(t) {
			q.remove(t)
			return t
		}
	}
	return nil
}

// ids lists the queued task ids in queue order.
func (q *queue) ids() []TaskID {
	out := make([]TaskID, 0, q.tree.Size())
	it := q.tree.Iterator()
	for it.Next() {
		if t := q.resolve(it.Value().(handle)); t != nil {
			out = append(out, t.ID)
		}
	}
	return out
}

func (q *queue) resolve(h handle) *Task {
	t := q.store.at(h.slot)
	if t == nil || t.ID != h.id || t.state == Free || t.queue != q {
		return nil
	}
	return t
}

// nodeKey is used as a key in the red-black tree.
type nodeKey struct {
	major uint32
	minor uint32
	seq   uint64
}

// cmp implements the Comparator for red-black tree ordering.
func cmp(a, b any) int {
	ka, kb := a.(nodeKey), b.(nodeKey)
	switch {
	case ka.major < kb.major:
		return -1
	case ka.major > kb.major:
		return 1
	case ka.minor < kb.minor:
		return -1
	case ka.minor > kb.minor:
		return 1
	case ka.seq < kb.seq:
		return -1
	case ka.seq > kb.seq:
		return 1
	default:
		return 0
	}
}
