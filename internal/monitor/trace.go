// internal/monitor/trace.go

package monitor

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"rtkern/internal/kernel"
)

// TraceWriter appends status events to a file as a stream of msgpack
// values, one per event.
type TraceWriter struct {
	f   *os.File
	buf *bufio.Writer
	enc *msgpack.Encoder
}

// CreateTrace truncates path and starts a new trace.
func CreateTrace(path string) (*TraceWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("trace: %w", err)
	}
	buf := bufio.NewWriter(f)
	return &TraceWriter{f: f, buf: buf, enc: msgpack.NewEncoder(buf)}, nil
}

func (w *TraceWriter) Write(ev kernel.StatusEvent) error {
	if err := w.enc.Encode(&ev); err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	return nil
}

// Close flushes buffered events and closes the file.
func (w *TraceWriter) Close() error {
	err := w.buf.Flush()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadTrace decodes events from r in order until end of input, calling fn
// for each. A non-nil error from fn stops the read and is returned.
func ReadTrace(r io.Reader, fn func(kernel.StatusEvent) error) error {
	dec := msgpack.NewDecoder(bufio.NewReader(r))
	for {
		var ev kernel.StatusEvent
		err := dec.Decode(&ev)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("trace: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

// Replay prints a trace file through a monitor.
func Replay(path string, m *Monitor) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	defer f.Close()
	return ReadTrace(f, m.Handle)
}
