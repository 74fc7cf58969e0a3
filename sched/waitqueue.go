package sched

// WaitQueue is an intrusive FIFO of blocked threads, exported so ksync's
// mutexes/condvars/semaphores can hold their own wait lists and decide
// themselves which thread a Wakeup targets. Scheduler.Wakeup trusts the
// caller to have already removed the thread from whatever WaitQueue it
// was on.
type WaitQueue struct {
	q readyQueue
}

// PushBack parks t at the tail of the queue.
func (w *WaitQueue) PushBack(t *Thread) { w.q.pushBack(t) }

// PushFront parks t at the head of the queue.
func (w *WaitQueue) PushFront(t *Thread) { w.q.pushFront(t) }

// PopFront removes and returns the thread at the head, or nil if empty.
func (w *WaitQueue) PopFront() *Thread { return w.q.pop() }

// Remove deletes t from the queue if present.
func (w *WaitQueue) Remove(t *Thread) bool { return w.q.remove(t) }

// Empty reports whether the queue has no waiters.
func (w *WaitQueue) Empty() bool { return w.q.empty() }

// Len returns the number of waiters.
func (w *WaitQueue) Len() int { return w.q.len }
