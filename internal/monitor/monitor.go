// internal/monitor/monitor.go

// Package monitor renders the kernel's status stream: a console line per
// event, plus optional CSV and binary trace logs.
package monitor

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"rtkern/internal/kernel"
)

// Options selects what the monitor writes and where.
type Options struct {
	Out       io.Writer // console, os.Stdout when nil
	Color     string    // auto|on|off
	ShowTicks bool      // print Tick events too
	CSVPath   string
	TracePath string
}

// Monitor consumes kernel status events.
type Monitor struct {
	out       io.Writer
	showTicks bool
	palette   map[kernel.StatusKind]*color.Color

	current   kernel.TaskID            // last dispatched task
	ranTotals map[kernel.TaskID]int64 // ticks charged per task
	ticks     int64

	// logging-related
	csvFile   *os.File
	csvWriter *csv.Writer
	trace     *TraceWriter
}

// New opens the configured logs. Close releases them.
func New(opts Options) (*Monitor, error) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	m := &Monitor{
		out:       out,
		showTicks: opts.ShowTicks,
		palette:   newPalette(useColor(opts.Color, out)),
		ranTotals: make(map[kernel.TaskID]int64),
	}
	if opts.CSVPath != "" {
		if err := m.enableCSV(opts.CSVPath); err != nil {
			return nil, err
		}
	}
	if opts.TracePath != "" {
		tw, err := CreateTrace(opts.TracePath)
		if err != nil {
			m.Close()
			return nil, err
		}
		m.trace = tw
	}
	return m, nil
}

func useColor(mode string, out io.Writer) bool {
	switch strings.ToLower(mode) {
	case "on", "always":
		return true
	case "off", "never":
		return false
	}
	f, ok := out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newPalette(enabled bool) map[kernel.StatusKind]*color.Color {
	p := map[kernel.StatusKind]*color.Color{
		kernel.StatusDispatch:  color.New(color.FgGreen),
		kernel.StatusPreempt:   color.New(color.FgYellow),
		kernel.StatusBlock:     color.New(color.FgRed),
		kernel.StatusInherit:   color.New(color.FgMagenta, color.Bold),
		kernel.StatusRestore:   color.New(color.FgMagenta),
		kernel.StatusWake:      color.New(color.FgCyan),
		kernel.StatusSignal:    color.New(color.FgBlue),
		kernel.StatusTerminate: color.New(color.FgHiBlack),
		kernel.StatusAbort:     color.New(color.FgRed, color.Bold),
	}
	for _, c := range p {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// enableCSV opens the given file path for CSV logging of events.
func (m *Monitor) enableCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv log: %w", err)
	}
	w := csv.NewWriter(f)

	// write header
	if err := w.Write([]string{"seq", "epoch", "tick", "event", "task_id", "priority", "mutex", "event_id", "ran_ticks", "detail"}); err != nil {
		f.Close()
		return fmt.Errorf("csv log: %w", err)
	}
	w.Flush()
	m.csvFile = f
	m.csvWriter = w
	return nil
}

// Run consumes events until the channel is closed or ctx is done, then
// drains whatever is already buffered.
func (m *Monitor) Run(ctx context.Context, events <-chan kernel.StatusEvent) error {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := m.Handle(ev); err != nil {
				return err
			}
		case <-ctx.Done():
			for {
				select {
				case ev, ok := <-events:
					if !ok {
						return nil
					}
					if err := m.Handle(ev); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		}
	}
}

// Handle accounts, prints and logs a single event.
func (m *Monitor) Handle(ev kernel.StatusEvent) error {
	switch ev.Kind {
	case kernel.StatusDispatch:
		m.current = ev.TaskID
	case kernel.StatusTick:
		m.ticks++
		if m.current != kernel.NoTask {
			m.ranTotals[m.current]++
		}
	case kernel.StatusTerminate:
		if m.current == ev.TaskID {
			m.current = kernel.NoTask
		}
	}

	if m.trace != nil {
		if err := m.trace.Write(ev); err != nil {
			return err
		}
	}
	if m.csvWriter != nil {
		if err := m.writeCSV(ev); err != nil {
			return err
		}
	}

	// ticks are periodic; keep them out of the console unless asked
	if ev.Kind == kernel.StatusTick && !m.showTicks {
		return nil
	}
	_, err := fmt.Fprintln(m.out, m.Format(ev))
	return err
}

// Format renders one console line.
func (m *Monitor) Format(ev kernel.StatusEvent) string {
	kind := center(ev.Kind.String(), 11)
	if c, ok := m.palette[ev.Kind]; ok {
		kind = c.Sprint(kind)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%06d @ %10s [%s]", ev.Seq, ev.At, kind)
	if ev.TaskID != kernel.NoTask {
		fmt.Fprintf(&b, " => Task: %04d, prio=%03d, Total ran: %04d ticks",
			ev.TaskID, ev.Priority, m.ranTotals[ev.TaskID])
	}
	if ev.Mutex != kernel.NoMutex {
		fmt.Fprintf(&b, ", mutex=%d", ev.Mutex)
	}
	if ev.Event != kernel.NoEvent {
		fmt.Fprintf(&b, ", event=%d", ev.Event)
	}
	if ev.Detail != "" {
		fmt.Fprintf(&b, ": %s", ev.Detail)
	}
	return b.String()
}

func (m *Monitor) writeCSV(ev kernel.StatusEvent) error {
	rec := []string{
		strconv.FormatUint(ev.Seq, 10),
		strconv.FormatUint(uint64(ev.At.Epoch), 10),
		strconv.FormatUint(uint64(ev.At.Tick), 10),
		ev.Kind.String(),
		strconv.FormatUint(uint64(ev.TaskID), 10),
		strconv.FormatUint(uint64(ev.Priority), 10),
		strconv.FormatUint(uint64(ev.Mutex), 10),
		strconv.FormatUint(uint64(ev.Event), 10),
		strconv.FormatInt(m.ranTotals[ev.TaskID], 10),
		ev.Detail,
	}
	if err := m.csvWriter.Write(rec); err != nil {
		return fmt.Errorf("csv log: %w", err)
	}
	m.csvWriter.Flush()
	return m.csvWriter.Error()
}

// Ticks returns the number of Tick events seen.
func (m *Monitor) Ticks() int64 { return m.ticks }

// Ran returns the ticks charged to a task while it held the processor.
func (m *Monitor) Ran(id kernel.TaskID) int64 { return m.ranTotals[id] }

// Close flushes and closes the logs.
func (m *Monitor) Close() error {
	var first error
	if m.csvFile != nil {
		m.csvWriter.Flush()
		if err := m.csvWriter.Error(); err != nil {
			first = err
		}
		if err := m.csvFile.Close(); err != nil && first == nil {
			first = err
		}
		m.csvFile, m.csvWriter = nil, nil
	}
	if m.trace != nil {
		if err := m.trace.Close(); err != nil && first == nil {
			first = err
		}
		m.trace = nil
	}
	return first
}

// an auxiliary function to center the event kind in the output
func center(str string, width int) string {
	if len(str) >= width {
		return str
	}
	spaces := (width - len(str)) / 2
	return strings.Repeat(" ", spaces) + str + strings.Repeat(" ", width-(spaces+len(str)))
}
