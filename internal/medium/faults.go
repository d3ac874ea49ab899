package medium

import (
	"errors"
	"fmt"
	"sync"

	"github.com/deploymenttheory/go-smartmedia/internal/types"
)

// ErrInjected is wrapped by every transport failure produced by Faults.
var ErrInjected = errors.New("injected transport failure")

// Faults lets tests and diagnostics make a card misbehave the way worn or
// flaky media do: failed transfers, rejected programs, and silently
// substituted blocks.
type Faults struct {
	mu            sync.Mutex
	failReads     bool
	failOOBReads  bool
	failTransfers map[types.Pba]bool
	failPrograms  map[types.Pba]bool
	failErases    bool
	substitutes   map[types.Pba]types.Pba
}

func newFaults() *Faults {
	return &Faults{
		failTransfers: make(map[types.Pba]bool),
		failPrograms:  make(map[types.Pba]bool),
		substitutes:   make(map[types.Pba]types.Pba),
	}
}

// FailReads makes every page and block read fail.
func (f *Faults) FailReads(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failReads = on
}

// FailOOBReads makes the bulk spare area read fail.
func (f *Faults) FailOOBReads(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOOBReads = on
}

// FailTransfer makes the next write addressed to pba fail in transport.
func (f *Faults) FailTransfer(pba types.Pba) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failTransfers[pba] = true
}

// FailProgram makes the card report a program failure for pba.
func (f *Faults) FailProgram(pba types.Pba) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPrograms[pba] = true
}

// FailErases makes every block erase fail, as on a worn out card.
func (f *Faults) FailErases(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failErases = on
}

// Substitute makes the next write addressed to requested land on committed.
func (f *Faults) Substitute(requested, committed types.Pba) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.substitutes[requested] = committed
}

// Reset clears every injected fault.
func (f *Faults) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failReads = false
	f.failOOBReads = false
	f.failTransfers = make(map[types.Pba]bool)
	f.failPrograms = make(map[types.Pba]bool)
	f.failErases = false
	f.substitutes = make(map[types.Pba]types.Pba)
}

func (f *Faults) readError(address uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return fmt.Errorf("%w: read at 0x%x", ErrInjected, address)
	}
	return nil
}

func (f *Faults) oobError(start types.Pba) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOOBReads {
		return fmt.Errorf("%w: oob read at %s", ErrInjected, start)
	}
	return nil
}

func (f *Faults) writeError(pba types.Pba) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTransfers[pba] {
		delete(f.failTransfers, pba)
		return fmt.Errorf("%w: write at %s", ErrInjected, pba)
	}
	return nil
}

func (f *Faults) eraseError(pba types.Pba) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErases {
		return fmt.Errorf("%w: erase of %s", ErrInjected, pba)
	}
	return nil
}

// substitution consumes a pending substitution for pba.
func (f *Faults) substitution(pba types.Pba) types.Pba {
	f.mu.Lock()
	defer f.mu.Unlock()
	if committed, ok := f.substitutes[pba]; ok {
		delete(f.substitutes, pba)
		return committed
	}
	return pba
}

func (f *Faults) programFails(pba types.Pba) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failPrograms[pba]
}
