// internal/kernel/event.go

package kernel

import "fortio.org/safecast"

// EventID names an event record. NoEvent doubles as "not waiting".
type EventID uint8

const NoEvent EventID = 0

// EventState is an event record's lifecycle state.
type EventState uint8

const (
	EventInactive EventState = iota
	EventUnsignalled
	EventSignalled
)

func (s EventState) String() string {
	switch s {
	case EventInactive:
		return "inactive"
	case EventUnsignalled:
		return "unsignalled"
	case EventSignalled:
		return "signalled"
	default:
		return "unknown"
	}
}

// Event is one slot of the event table. It holds at most one pending signal
// and at most one waiter, never both.
type Event struct {
	ID     EventID
	State  EventState
	Waiter TaskID
}

func (k *Kernel) eventInit() (EventID, error) {
	for i := range k.events {
		e := &k.events[i]
		if e.State != EventInactive {
			continue
		}
		id, err := safecast.Conv[EventID](i + 1)
		if err != nil {
			break
		}
		*e = Event{ID: id, State: EventUnsignalled}
		return id, nil
	}
	return NoEvent, ErrEventTableFull
}

func (k *Kernel) eventAt(id EventID) *Event {
	i := int(id) - 1
	if i < 0 || i >= len(k.events) || k.events[i].State == EventInactive {
		return nil
	}
	return &k.events[i]
}

// wait consumes a pending signal or parks t as the event's only waiter.
// A second waiter is turned away without blocking.
func (k *Kernel) wait(t *Task, id EventID) outcome {
	e := k.eventAt(id)
	if e == nil {
		t.resp.err = ErrUnknownEvent
		return proceed
	}
	if e.Waiter != NoTask {
		t.resp.err = ErrEventBusy
		return proceed
	}

	if e.State == EventSignalled {
		e.State = EventUnsignalled
		k.emitSignal(StatusWait, t, id)
		return proceed
	}

	e.Waiter = t.ID
	t.event = id
	t.state = WaitingOnEvent
	k.emitSignal(StatusWait, t, id)
	return reschedule
}

// signal wakes the waiter, or leaves the signal pending for the next wait.
// The signaler steps aside for a more urgent, runnable waiter.
func (k *Kernel) signal(t *Task, id EventID) outcome {
	e := k.eventAt(id)
	if e == nil {
		t.resp.err = ErrUnknownEvent
		return proceed
	}

	if e.Waiter == NoTask {
		e.State = EventSignalled
		k.emitSignal(StatusSignal, t, id)
		return proceed
	}

	w := k.store.get(e.Waiter)
	e.Waiter = NoTask
	e.State = EventUnsignalled
	k.emitSignal(StatusSignal, t, id)
	if w == nil {
		return proceed
	}

	w.event = NoEvent
	k.makeReady(w)
	k.emit(StatusWake, w)
	if w.eff < t.eff && !w.suspended {
		k.makeReady(t)
		k.emit(StatusYield, t)
		return reschedule
	}
	return proceed
}
