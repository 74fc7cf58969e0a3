package ksync

import "github.com/concore/kernel/sched"

// Cond is a monitor-style condition variable associated with a Mutex.
// As with sync.Cond, L must be held by the caller of Wait, Signal, and
// Broadcast; Wait atomically releases L while parking and reacquires
// it before returning.
type Cond struct {
	s       *sched.Scheduler
	L       *Mutex
	waiters sched.WaitQueue
}

// NewCond returns a Cond whose Wait/Signal/Broadcast calls must be
// made while holding l.
func NewCond(s *sched.Scheduler, l *Mutex) *Cond {
	return &Cond{s: s, L: l}
}

// Wait releases L, blocks until woken by Signal or Broadcast, then
// reacquires L before returning. The caller must hold L.
func (c *Cond) Wait() {
	cur := c.s.MarkSleeping()
	c.waiters.PushBack(cur)
	c.L.Unlock()
	c.s.ParkCurrent()
	c.L.Lock()
}

// Signal wakes the single longest-waiting thread blocked in Wait, if
// any. The caller must hold L.
func (c *Cond) Signal() {
	if t := c.waiters.PopFront(); t != nil {
		c.s.Wakeup(t)
	}
}

// Broadcast wakes every thread currently blocked in Wait. The caller
// must hold L.
func (c *Cond) Broadcast() {
	for {
		t := c.waiters.PopFront()
		if t == nil {
			return
		}
		c.s.Wakeup(t)
	}
}
