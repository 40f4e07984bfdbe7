package kernel

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"rtkern/internal/timer"
)

// runKernel drives k until it stops, failing the test if it hangs.
func runKernel(t *testing.T, k *Kernel, ctx context.Context) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- k.Run(ctx) }()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("kernel did not stop")
		return nil
	}
}

func idle(sys *Sys) {
	for {
		sys.Halt()
	}
}

func TestRunRoundRobin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	k := New(smallConfig(), Options{})
	var trace []string
	worker := func(sys *Sys) {
		for i := 0; i < 3; i++ {
			trace = append(trace, fmt.Sprintf("%c%d", 'a'+sys.Arg(), i))
			sys.Yield()
		}
	}
	k.Create(worker, 4, 0)
	k.Create(worker, 4, 1)
	k.Create(func(sys *Sys) {
		cancel()
		sys.Yield()
	}, LowestPriority, 0)

	if err := runKernel(t, k, ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"a0", "b0", "a1", "b1", "a2", "b2"}
	if fmt.Sprint(trace) != fmt.Sprint(want) {
		t.Fatalf("round robin: want %v, got %v", want, trace)
	}
	if live := k.Snapshot().Live; live != 1 {
		t.Fatalf("returned workers must be terminated, live %d", live)
	}
}

func TestRunPriorityInheritance(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	k := New(smallConfig(), Options{})
	m, err := k.MutexInit()
	if err != nil {
		t.Fatalf("MutexInit: %v", err)
	}

	var trace []string
	var boosted, after Priority
	k.Create(func(sys *Sys) {
		sys.Sleep(2)
		sys.Lock(m)
		trace = append(trace, "high:lock")
		sys.Unlock(m)
	}, 1, 0)
	k.Create(func(sys *Sys) {
		sys.Sleep(2)
		trace = append(trace, "mid:run")
	}, 3, 0)
	k.Create(func(sys *Sys) {
		sys.Lock(m)
		trace = append(trace, "low:lock")
		sys.Halt()
		sys.Halt()
		boosted = sys.Priority()
		trace = append(trace, "low:unlock")
		sys.Unlock(m)
		after = sys.Priority()
		cancel()
		sys.Yield()
	}, 5, 0)
	k.Create(idle, LowestPriority, 0)

	if err := runKernel(t, k, ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"low:lock", "low:unlock", "high:lock", "mid:run"}
	if fmt.Sprint(trace) != fmt.Sprint(want) {
		t.Fatalf("want %v, got %v", want, trace)
	}
	if boosted != 1 || after != 5 {
		t.Fatalf("holder priority: want 1 while blocking high and 5 after, got %d and %d", boosted, after)
	}
}

func TestRunSleepAcrossWraparound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := timer.NewVirtualAt(100, timer.Instant{Epoch: 0, Tick: 95})
	k := New(smallConfig(), Options{Timer: clock})
	if k.Timer() != clock {
		t.Fatalf("kernel must use the given timer")
	}

	var before, woke timer.Instant
	k.Create(func(sys *Sys) {
		before = sys.Now()
		sys.Sleep(10)
		woke = sys.Now()
		cancel()
		sys.Yield()
	}, 1, 0)
	k.Create(idle, LowestPriority, 0)

	if err := runKernel(t, k, ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if woke.Epoch != before.Epoch+1 {
		t.Fatalf("sleep must cross one epoch: %v -> %v", before, woke)
	}
	slept := woke.Ticks(100) - before.Ticks(100)
	if slept < 10 || slept > 11 {
		t.Fatalf("slept %d ticks, want 10 within one tick", slept)
	}
}

func TestRunEventHandOff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	k := New(smallConfig(), Options{})
	e, _ := k.EventInit()

	var got []int
	k.Create(func(sys *Sys) {
		for i := 0; i < 3; i++ {
			if err := sys.Wait(e); err != nil {
				t.Errorf("wait: %v", err)
			}
			got = append(got, i)
		}
		cancel()
		sys.Yield()
	}, 1, 0)
	k.Create(func(sys *Sys) {
		for {
			sys.Signal(e)
			sys.Sleep(1)
		}
	}, 2, 0)
	k.Create(idle, LowestPriority, 0)

	if err := runKernel(t, k, ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("consumer must see three signals, got %v", got)
	}
}

func TestRunCreateFromTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	k := New(smallConfig(), Options{})
	var childArg int
	var childID, seen TaskID
	var childInfo TaskInfo
	parent, _ := k.Create(func(sys *Sys) {
		id, err := sys.Create(func(child *Sys) {
			childArg = child.Arg()
			seen = child.ID()
			childInfo, _ = child.Snapshot().Task(child.ID())
			cancel()
			child.Yield()
		}, 2, 7)
		if err != nil {
			t.Errorf("create: %v", err)
		}
		childID = id
		if arg, ok := sys.ArgOf(id); !ok || arg != 7 {
			t.Errorf("ArgOf(%d): %d %v", id, arg, ok)
		}
	}, 1, 0)
	k.Create(idle, LowestPriority, 0)

	if err := runKernel(t, k, ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if childArg != 7 || seen != childID {
		t.Fatalf("child saw arg %d id %d, want 7 and %d", childArg, seen, childID)
	}
	if childInfo.ID != childID || childInfo.State != Running || childInfo.Base != 2 || childInfo.Arg != 7 {
		t.Fatalf("child snapshot: %+v", childInfo)
	}
	snap := k.Snapshot()
	// the child yielded last and, being more urgent than idle, was redispatched
	if info, ok := snap.Task(childID); !ok || info.State != Running || snap.Current != childID {
		t.Fatalf("want child current, got %+v %v (current %d)", info, ok, snap.Current)
	}
	if _, ok := snap.Task(parent); ok {
		t.Fatalf("returned parent %d must be gone", parent)
	}
}

func TestRunHaltsOnEmptyReadyQueue(t *testing.T) {
	var kinds []StatusKind
	k := New(smallConfig(), Options{Observer: func(ev StatusEvent) { kinds = append(kinds, ev.Kind) }})
	k.Create(func(*Sys) {}, 1, 0)

	err := runKernel(t, k, context.Background())
	if !errors.Is(err, ErrReadyQueueEmpty) {
		t.Fatalf("want ErrReadyQueueEmpty, got %v", err)
	}
	if kinds[len(kinds)-1] != StatusAbort {
		t.Fatalf("last status must be Abort, got %v", kinds[len(kinds)-1])
	}
	if err := k.Run(context.Background()); !errors.Is(err, ErrKernelActive) {
		t.Fatalf("second Run: want ErrKernelActive, got %v", err)
	}
}
