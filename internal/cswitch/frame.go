// internal/cswitch/frame.go

package cswitch

import (
	"errors"
	"fmt"
)

// RegisterBlock is the number of bytes a trap pushes for the general purpose
// registers and the status register.
const RegisterBlock = 34

// frameSize is the initial frame: two return targets, one pad byte for the
// extended program counter and the register block.
const frameSize = 2 + 2 + 1 + RegisterBlock

// ErrStackTooSmall is returned when a stack cannot hold the initial frame.
var ErrStackTooSmall = errors.New("stack too small for initial frame")

// Build lays out the initial frame of a task so that the first resume looks
// exactly like a return from a trap. The terminate target sits at the very
// bottom, guarding against an entry function that returns; above it the entry
// target and the register block. fill writes 0..33 into the register slots,
// which makes frames easy to spot in a dump.
//
// Targets are stored low byte first, the order a return instruction pops
// them back in. Build returns the saved stack pointer: the index of the next
// free byte below the frame.
func Build(stack []byte, terminate, entry uint16, fill bool) (int, error) {
	if len(stack) < frameSize+1 {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrStackTooSmall, frameSize+1, len(stack))
	}
	clear(stack)

	sp := len(stack) - 1
	push := func(b byte) {
		stack[sp] = b
		sp--
	}

	push(byte(terminate))
	push(byte(terminate >> 8))
	push(byte(entry))
	push(byte(entry >> 8))
	push(0)

	for r := 0; r < RegisterBlock; r++ {
		if fill {
			push(byte(r))
		} else {
			push(0)
		}
	}
	return sp, nil
}

// Frame is an initial frame read back from a stack.
type Frame struct {
	Registers [RegisterBlock]byte
	Entry     uint16
	Terminate uint16
	SP        int // stack pointer once the frame is popped
}

// Unwind pops the initial frame written by Build.
func Unwind(stack []byte, sp int) (Frame, error) {
	var f Frame
	if sp < 0 || sp+frameSize >= len(stack) {
		return f, fmt.Errorf("stack pointer %d outside frame bounds of %d byte stack", sp, len(stack))
	}
	pop := func() byte {
		sp++
		return stack[sp]
	}

	for r := RegisterBlock - 1; r >= 0; r-- {
		f.Registers[r] = pop()
	}
	_ = pop() // pad
	f.Entry = uint16(pop()) << 8
	f.Entry |= uint16(pop())
	f.Terminate = uint16(pop()) << 8
	f.Terminate |= uint16(pop())
	f.SP = sp
	return f, nil
}
