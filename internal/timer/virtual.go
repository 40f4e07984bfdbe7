package timer

// Virtual is a deterministic timer whose counter only moves when Advance or
// Idle is called. Not safe for concurrent use; the kernel's single control
// path is the only caller.
type Virtual struct {
	modulus uint32
	now     Instant
	pending bool
}

// NewVirtual creates a virtual timer that wraps every modulus ticks.
func NewVirtual(modulus uint32) *Virtual {
	if modulus == 0 {
		modulus = 1
	}
	return &Virtual{modulus: modulus}
}

// NewVirtualAt creates a virtual timer positioned at start.
func NewVirtualAt(modulus uint32, start Instant) *Virtual {
	v := NewVirtual(modulus)
	v.now = Instant{Epoch: start.Epoch, Tick: start.Tick % v.modulus}
	return v
}

func (v *Virtual) Now() Instant    { return v.now }
func (v *Virtual) Modulus() uint32 { return v.modulus }

func (v *Virtual) Pending() bool {
	p := v.pending
	v.pending = false
	return p
}

// Idle advances the counter by one tick.
func (v *Virtual) Idle() { v.Advance(1) }

// Advance moves the counter n ticks forward, bumping the epoch on every wrap,
// and latches a tick interrupt.
func (v *Virtual) Advance(n uint32) {
	if n == 0 {
		return
	}
	v.now = WakeTarget(v.now, v.modulus, n)
	v.pending = true
}
