// Package section implements an interrupt-safe critical section
// abstraction: a guard that pairs a spinlock with an interrupt-level
// change so both are released on every exit path.
package section

import (
	"runtime"
	"sync/atomic"

	"github.com/concore/kernel/hal"
	"github.com/concore/kernel/kerr"
)

// Spinlock is a minimal test-and-CAS lock, used instead of sync.Mutex
// because section.Guard must be safe to acquire with interrupts raised
// (a blocking OS-level mutex would be unsafe there on a real kernel;
// the spin loop here preserves that shape even though Go's scheduler
// makes the distinction academic in-process).
type Spinlock struct {
	held atomic.Bool
}

// Lock spins until the lock is acquired.
func (s *Spinlock) Lock() {
	for !s.held.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

// Unlock releases the lock. Unlocking an already-unlocked Spinlock is a
// kernel invariant violation on a real kernel; here it is simply
// idempotent, since nothing downstream depends on detecting the misuse
// and a panic would make every guard's defer path fragile under test
// cleanup ordering.
func (s *Spinlock) Unlock() {
	s.held.Store(false)
}

// TryLock attempts to acquire the lock without spinning, returning
// whether it succeeded.
func (s *Spinlock) TryLock() bool {
	return s.held.CompareAndSwap(false, true)
}

// Guard is section_guard: entering it acquires lock and raises the
// interrupt level of coreID to level, but only if level is stricter
// (numerically greater) than the level already in effect; exiting
// releases the lock and, only if this Guard actually raised the level,
// restores the level observed on entry.
//
// Nesting is allowed provided inner guards target the same or a
// stricter level; Guard does not itself enforce that, since enforcing
// it would require tracking a per-core guard stack — callers (in this
// module, sched's core dispatch loop) are responsible for respecting
// the discipline.
type Guard struct {
	lock     *Spinlock
	ic       hal.InterruptController
	coreID   int
	level    int
	raised   bool
	prevLvl  int
	entered  bool
}

// New returns a Guard for lock, raising coreID's interrupt level to
// level on Enter.
func New(lock *Spinlock, ic hal.InterruptController, coreID int, level int) *Guard {
	return &Guard{lock: lock, ic: ic, coreID: coreID, level: level}
}

// Enter raises the interrupt level first, then acquires the lock, so
// the acquisition itself cannot be interrupted.
func (g *Guard) Enter() {
	if g.entered {
		kerr.Panicf("section.Guard.Enter called while already entered")
	}
	if g.ic != nil {
		cur := g.ic.Level(g.coreID)
		if g.level > cur {
			g.prevLvl = g.ic.SetLevel(g.coreID, g.level)
			g.raised = true
		} else {
			g.prevLvl = cur
			g.raised = false
		}
	}
	g.lock.Lock()
	g.entered = true
}

// Exit releases the lock and, if Enter raised the interrupt level,
// restores the prior level.
func (g *Guard) Exit() {
	if !g.entered {
		kerr.Panicf("section.Guard.Exit called without a matching Enter")
	}
	g.lock.Unlock()
	if g.raised && g.ic != nil {
		g.ic.SetLevel(g.coreID, g.prevLvl)
	}
	g.entered = false
	g.raised = false
}
