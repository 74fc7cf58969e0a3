// Package ksync implements synchronization primitives on top of
// sched's Sleep/Wakeup protocol: a FIFO ticket mutex, counting
// semaphores, and a monitor-style condition variable.
package ksync

import (
	"time"

	"github.com/concore/kernel/section"
	"github.com/concore/kernel/sched"
)

// Mutex is a strictly-FIFO ("ticket") lock: Unlock hands ownership
// directly to the longest-waiting blocked thread instead of letting
// every waiter race to reacquire, so no waiter can be starved by a
// thread that keeps relocking quickly.
type Mutex struct {
	s       *sched.Scheduler
	guard   section.Spinlock
	owned   bool
	waiters sched.WaitQueue
}

// New returns an unlocked Mutex bound to s.
func New(s *sched.Scheduler) *Mutex {
	return &Mutex{s: s}
}

// Lock acquires the mutex, blocking if it is already held. A caller
// that is not a scheduled thread cannot park, so it polls every
// millisecond instead and is not part of the FIFO hand-off.
func (m *Mutex) Lock() {
	m.guard.Lock()
	if m.s.CurrentThread() == nil {
		for m.owned {
			m.guard.Unlock()
			time.Sleep(time.Millisecond)
			m.guard.Lock()
		}
	}
	if !m.owned {
		m.owned = true
		m.guard.Unlock()
		return
	}
	cur := m.s.MarkSleeping()
	m.waiters.PushBack(cur)
	m.guard.Unlock()
	m.s.ParkCurrent()
	// Woken: Unlock already transferred ownership to us directly.
}

// TryLock acquires the mutex only if it is immediately available.
func (m *Mutex) TryLock() bool {
	m.guard.Lock()
	defer m.guard.Unlock()
	if !m.owned {
		m.owned = true
		return true
	}
	return false
}

// Unlock releases the mutex, handing it directly to the
// longest-waiting blocked thread if any, or marking it free.
func (m *Mutex) Unlock() {
	m.guard.Lock()
	if next := m.waiters.PopFront(); next != nil {
		m.guard.Unlock()
		m.s.Wakeup(next)
		return
	}
	m.owned = false
	m.guard.Unlock()
}
