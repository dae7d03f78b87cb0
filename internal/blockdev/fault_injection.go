package blockdev

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrInjectedReadError is returned when a read error is injected.
	ErrInjectedReadError = errors.New("blockdev: injected read error")

	// ErrInjectedWriteError is returned when a write error is injected.
	ErrInjectedWriteError = errors.New("blockdev: injected write error")
)

// FaultInjector wraps a Device and can inject errors on specific blocks, or
// simulate a torn program: a write that only partially lands before a
// simulated crash, used to exercise the "read after crash returns either the
// pre-write or post-write block, never a blend" invariant.
//
// Re-keyed from the teacher's FaultInjectionFS (path -> per-file unsynced
// byte tracking) to block-index -> per-block torn-write tracking: the same
// idea (hold back part of a pending write, drop it on simulated crash) at
// block rather than file granularity.
type FaultInjector struct {
	base Device

	mu sync.Mutex

	active bool

	readErrorBlock   uint32
	injectReadError  bool
	writeErrorBlock  uint32
	injectWriteError bool

	// tornAt, if armed, makes the next WriteBlock to tornBlock commit only
	// the first tornAt bytes, leaving the rest of the block as it was before
	// the write (simulating a program truncated mid-flight by power loss).
	tornBlock uint32
	tornAt    int
	tornArmed bool
}

// NewFaultInjector wraps base with fault-injection controls, active by default.
func NewFaultInjector(base Device) *FaultInjector {
	return &FaultInjector{base: base, active: true}
}

func (f *FaultInjector) BlockCount() uint32 { return f.base.BlockCount() }
func (f *FaultInjector) BlockSize() uint32  { return f.base.BlockSize() }

// SetActive enables or disables the device. When disabled, every operation
// fails, simulating a device that has lost power.
func (f *FaultInjector) SetActive(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active = active
}

// InjectReadError makes the next ReadBlock(index) fail.
func (f *FaultInjector) InjectReadError(index uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.injectReadError = true
	f.readErrorBlock = index
}

// InjectWriteError makes the next WriteBlock(index) fail.
func (f *FaultInjector) InjectWriteError(index uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.injectWriteError = true
	f.writeErrorBlock = index
}

// ClearErrors clears all pending error injections.
func (f *FaultInjector) ClearErrors() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.injectReadError = false
	f.injectWriteError = false
}

// ArmTornWrite arms a one-shot torn write: the next WriteBlock(index) commits
// only the first n bytes of buf, simulating a program interrupted by a crash
// partway through.
func (f *FaultInjector) ArmTornWrite(index uint32, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tornArmed = true
	f.tornBlock = index
	f.tornAt = n
}

func (f *FaultInjector) ReadBlock(ctx context.Context, index uint32, buf []byte) error {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return ErrInjectedReadError
	}
	if f.injectReadError && f.readErrorBlock == index {
		f.injectReadError = false
		f.mu.Unlock()
		return ErrInjectedReadError
	}
	f.mu.Unlock()

	return f.base.ReadBlock(ctx, index, buf)
}

func (f *FaultInjector) WriteBlock(ctx context.Context, index uint32, buf []byte) error {
	f.mu.Lock()
	if !f.active {
		f.mu.Unlock()
		return ErrInjectedWriteError
	}
	if f.injectWriteError && f.writeErrorBlock == index {
		f.injectWriteError = false
		f.mu.Unlock()
		return ErrInjectedWriteError
	}
	torn, tornAt := false, 0
	if f.tornArmed && f.tornBlock == index {
		torn, tornAt = true, f.tornAt
		f.tornArmed = false
	}
	f.mu.Unlock()

	if !torn || tornAt >= len(buf) {
		return f.base.WriteBlock(ctx, index, buf)
	}
	merged := make([]byte, len(buf))
	if err := f.base.ReadBlock(ctx, index, merged); err != nil {
		return err
	}
	copy(merged, buf[:tornAt])
	return f.base.WriteBlock(ctx, index, merged)
}
