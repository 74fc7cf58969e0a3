package ksync

import (
	"time"

	"github.com/concore/kernel/kerr"
	"github.com/concore/kernel/section"
	"github.com/concore/kernel/sched"
)

// Semaphore is a counting semaphore: Down blocks while the count is
// zero, Up releases one waiter directly if any are queued, otherwise
// increments the count.
type Semaphore struct {
	s       *sched.Scheduler
	guard   section.Spinlock
	count   int
	waiters sched.WaitQueue
}

// NewSemaphore returns a Semaphore initialized to count.
func NewSemaphore(s *sched.Scheduler, count int) *Semaphore {
	return &Semaphore{s: s, count: count}
}

// Down blocks until a unit is available, then consumes it. A caller
// that is not a scheduled thread cannot park, so it polls every
// millisecond instead.
func (sem *Semaphore) Down() {
	sem.guard.Lock()
	if sem.s.CurrentThread() == nil {
		for sem.count == 0 {
			sem.guard.Unlock()
			time.Sleep(time.Millisecond)
			sem.guard.Lock()
		}
	}
	if sem.count > 0 {
		sem.count--
		sem.guard.Unlock()
		return
	}
	cur := sem.s.MarkSleeping()
	sem.waiters.PushBack(cur)
	sem.guard.Unlock()
	sem.s.ParkCurrent()
}

// TryDown consumes a unit only if one is immediately available,
// returning kerr.EPROTO otherwise.
func (sem *Semaphore) TryDown() error {
	sem.guard.Lock()
	defer sem.guard.Unlock()
	if sem.count > 0 {
		sem.count--
		return nil
	}
	return kerr.New("sem_trydown", kerr.EPROTO)
}

// Up releases one unit, waking the longest-waiting blocked thread
// directly if any, otherwise incrementing the count.
func (sem *Semaphore) Up() {
	sem.guard.Lock()
	if next := sem.waiters.PopFront(); next != nil {
		sem.guard.Unlock()
		sem.s.Wakeup(next)
		return
	}
	sem.count++
	sem.guard.Unlock()
}

// Count returns the current number of immediately-available units.
func (sem *Semaphore) Count() int {
	sem.guard.Lock()
	defer sem.guard.Unlock()
	return sem.count
}
