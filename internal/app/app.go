// internal/app/app.go

// Package app holds the programs rtkern can boot. Each one is a plain kernel
// client: its Boot entry runs as the first, most urgent task, creates the
// rest of the program and terminates.
package app

import (
	"fmt"
	"sort"

	"rtkern/internal/kernel"
)

// Program is a bootable kernel client.
type Program interface {
	Name() string
	// Boot is the entry of the bootstrap task.
	Boot(sys *kernel.Sys)
	// Report summarizes what the program did so far.
	Report() string
	// Err returns the first system call failure the program saw.
	Err() error
}

var registry = map[string]func() Program{
	"pingpong":  func() Program { return NewPingPong() },
	"station":   func() Program { return NewStation() },
	"inversion": func() Program { return NewInversion() },
}

// New builds the named program.
func New(name string) (Program, error) {
	mk, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown app %q (have %v)", name, Names())
	}
	return mk(), nil
}

// Names lists the registered programs.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Launch creates p's bootstrap task on a kernel that has not started yet.
func Launch(k *kernel.Kernel, p Program) (kernel.TaskID, error) {
	id, err := k.Create(p.Boot, kernel.HighestPriority, 0)
	if err != nil {
		return kernel.NoTask, fmt.Errorf("launch %s: %w", p.Name(), err)
	}
	return id, nil
}

// Idle is the lowest priority task every program creates. It waits for the
// next tick forever.
func Idle(sys *kernel.Sys) {
	for {
		sys.Halt()
	}
}

// failures keeps the first error a program's tasks run into.
type failures struct {
	err error
}

func (f *failures) check(what string, err error) bool {
	if err == nil {
		return true
	}
	if f.err == nil {
		f.err = fmt.Errorf("%s: %w", what, err)
	}
	return false
}

func (f *failures) Err() error { return f.err }
