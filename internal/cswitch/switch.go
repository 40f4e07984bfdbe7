// internal/cswitch/switch.go

// Package cswitch implements the context-switch trap on top of goroutines.
//
// Every task body runs on its own goroutine, but only one side of the
// kernel/task boundary executes at a time: control moves through unbuffered
// channel hand-offs, which play the part of "interrupts disabled" on a real
// single-core part.
package cswitch

import (
	"fmt"
	"runtime"

	"fortio.org/safecast"
)

// Code is the body behind a code handle stored in a frame.
type Code func()

// Context is the saved execution context of one task.
type Context struct {
	Stack []byte
	SP    int

	resume   chan struct{}
	started  bool
	released bool
}

// NewContext creates a fresh context over stack. A context is never reused;
// a recycled task slot gets a new context over the same stack.
func NewContext(stack []byte) *Context {
	return &Context{
		Stack:  stack,
		resume: make(chan struct{}),
	}
}

// Switch is the goroutine-backed context-switch primitive.
type Switch struct {
	trap chan struct{}
	code map[uint16]Code
	irq  bool
}

// New creates a switch with an empty code table.
func New() *Switch {
	return &Switch{
		trap: make(chan struct{}),
		code: make(map[uint16]Code),
	}
}

// Install binds a code handle to a body.
func (s *Switch) Install(handle uint16, fn Code) {
	s.code[handle] = fn
}

// Handle converts a table index to a code handle.
func Handle(n int) (uint16, error) {
	return safecast.Conv[uint16](n)
}

// InterruptsEnabled reports the simulated interrupt flag. It is only true
// while a task is executing its own code.
func (s *Switch) InterruptsEnabled() bool { return s.irq }

// Exit traps out of the kernel into c and blocks until c traps back in.
// On the first resume the initial frame is popped to find the entry body
// and its return target.
func (s *Switch) Exit(c *Context) error {
	if c.released {
		return fmt.Errorf("resume of released context")
	}
	if !c.started {
		f, err := Unwind(c.Stack, c.SP)
		if err != nil {
			return err
		}
		entry, ok := s.code[f.Entry]
		if !ok {
			return fmt.Errorf("no code installed for entry handle %#04x", f.Entry)
		}
		terminate, ok := s.code[f.Terminate]
		if !ok {
			return fmt.Errorf("no code installed for terminate handle %#04x", f.Terminate)
		}
		c.SP = f.SP
		c.started = true

		resume := c.resume
		go func() {
			if _, ok := <-resume; !ok {
				return
			}
			entry()
			terminate()
			panic("cswitch: terminate target returned")
		}()
	}

	s.irq = true
	c.resume <- struct{}{}
	<-s.trap
	return nil
}

// Enter traps from the running task into the kernel and blocks until the
// kernel resumes c. Interrupts are left disabled for the kernel. If the
// kernel releases c instead of resuming it, the task's goroutine exits.
func (s *Switch) Enter(c *Context) {
	if c.released {
		runtime.Goexit()
	}
	s.irq = false
	s.trap <- struct{}{}
	if _, ok := <-c.resume; !ok {
		runtime.Goexit()
	}
}

// Released reports whether c was destroyed. Only the kernel side or a task
// woken by the release may call it.
func (c *Context) Released() bool { return c.released }

// Release destroys c. A goroutine parked inside Enter exits.
func (s *Switch) Release(c *Context) {
	if c.released {
		return
	}
	c.released = true
	close(c.resume)
}
