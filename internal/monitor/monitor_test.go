package monitor

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rtkern/internal/kernel"
	"rtkern/internal/timer"
)

func sample() []kernel.StatusEvent {
	return []kernel.StatusEvent{
		{Seq: 1, Kind: kernel.StatusCreate, TaskID: 1, Priority: 3},
		{Seq: 2, Kind: kernel.StatusDispatch, TaskID: 1, Priority: 3},
		{Seq: 3, At: timer.Instant{Tick: 1}, Kind: kernel.StatusTick},
		{Seq: 4, At: timer.Instant{Tick: 2}, Kind: kernel.StatusTick},
		{Seq: 5, At: timer.Instant{Tick: 2}, Kind: kernel.StatusAcquire, TaskID: 1, Priority: 3, Mutex: 2},
		{Seq: 6, At: timer.Instant{Tick: 2}, Kind: kernel.StatusAbort, Detail: "ready: queue full"},
	}
}

func TestHandleAccountsAndPrints(t *testing.T) {
	var out bytes.Buffer
	m, err := New(Options{Out: &out, Color: "off"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()

	for _, ev := range sample() {
		if err := m.Handle(ev); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}
	if m.Ticks() != 2 || m.Ran(1) != 2 {
		t.Fatalf("want 2 ticks charged to task 1, got ticks=%d ran=%d", m.Ticks(), m.Ran(1))
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("ticks must be hidden, got %d lines:\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[2], "[  Acquire  ]") || !strings.Contains(lines[2], "mutex=2") ||
		!strings.Contains(lines[2], "Total ran: 0002 ticks") {
		t.Fatalf("acquire line: %q", lines[2])
	}
	if !strings.HasSuffix(lines[3], ": ready: queue full") {
		t.Fatalf("abort line: %q", lines[3])
	}
	if strings.Contains(out.String(), "\x1b[") {
		t.Fatalf("color off must not emit escapes")
	}
}

func TestShowTicks(t *testing.T) {
	var out bytes.Buffer
	m, _ := New(Options{Out: &out, Color: "off", ShowTicks: true})
	for _, ev := range sample() {
		m.Handle(ev)
	}
	if n := strings.Count(out.String(), "Tick"); n != 2 {
		t.Fatalf("want 2 tick lines, got %d", n)
	}
}

func TestColorOn(t *testing.T) {
	var out bytes.Buffer
	m, _ := New(Options{Out: &out, Color: "on"})
	m.Handle(kernel.StatusEvent{Kind: kernel.StatusDispatch, TaskID: 1})
	if !strings.Contains(out.String(), "\x1b[") {
		t.Fatalf("color on must emit escapes: %q", out.String())
	}
}

func TestCSVLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	m, err := New(Options{Out: &bytes.Buffer{}, Color: "off", CSVPath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, ev := range sample() {
		if err := m.Handle(ev); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	// header plus every event, ticks included
	if len(recs) != 1+len(sample()) {
		t.Fatalf("want %d records, got %d", 1+len(sample()), len(recs))
	}
	acquire := recs[5]
	if acquire[3] != "Acquire" || acquire[4] != "1" || acquire[6] != "2" || acquire[8] != "2" {
		t.Fatalf("acquire record: %v", acquire)
	}
}

func TestTraceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.trace")
	m, err := New(Options{Out: &bytes.Buffer{}, Color: "off", TracePath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, ev := range sample() {
		m.Handle(ev)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	var got []kernel.StatusEvent
	if err := ReadTrace(f, func(ev kernel.StatusEvent) error {
		got = append(got, ev)
		return nil
	}); err != nil {
		t.Fatalf("ReadTrace: %v", err)
	}
	want := sample()
	if len(got) != len(want) {
		t.Fatalf("want %d events, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: want %+v, got %+v", i, want[i], got[i])
		}
	}

	// replay prints the same console lines as the live run
	var out bytes.Buffer
	r, _ := New(Options{Out: &out, Color: "off"})
	if err := Replay(path, r); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if n := strings.Count(out.String(), "\n"); n != 4 {
		t.Fatalf("replay printed %d lines", n)
	}
}

func TestReadTraceStops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.trace")
	w, err := CreateTrace(path)
	if err != nil {
		t.Fatalf("CreateTrace: %v", err)
	}
	for _, ev := range sample() {
		w.Write(ev)
	}
	w.Close()

	stop := errors.New("stop")
	n := 0
	f, _ := os.Open(path)
	defer f.Close()
	err = ReadTrace(f, func(kernel.StatusEvent) error {
		n++
		if n == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) || n != 2 {
		t.Fatalf("want stop after 2 events, got %v after %d", err, n)
	}
}

func TestRunDrainsOnCancel(t *testing.T) {
	var out bytes.Buffer
	m, _ := New(Options{Out: &out, Color: "off"})

	events := make(chan kernel.StatusEvent, 8)
	for _, ev := range sample() {
		events <- ev
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Run(ctx, events); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.Ticks() != 2 {
		t.Fatalf("buffered events must be drained, saw %d ticks", m.Ticks())
	}

	close(events)
	if err := m.Run(context.Background(), events); err != nil {
		t.Fatalf("Run on closed stream: %v", err)
	}
}
