// Package hal declares the hooks the concurrency core consumes from its
// external collaborators: page/frame allocation, core control, a
// monotonic clock, interrupt-level tracking, and inter-processor event
// signalling. The core treats all of them as dependencies injected at
// construction time; package hal/simhal supplies one complete,
// in-process reference implementation built from goroutines and
// channels, the same way eventloop.Loop treats its OS poller as a
// pluggable dependency rather than inlining syscalls into the
// scheduler.
package hal

import (
	"context"
	"time"
)

// Page is an opaque handle to one kernel-page-sized stack allocation.
// Each user/dispatcher thread owns exactly two page-sized stacks,
// released when the thread reaches ZOMBIE.
type Page interface {
	// Bytes returns the backing storage. Implementations are free to
	// return nil for pure bookkeeping pages.
	Bytes() []byte
}

// PageAllocator models kpage_get/kpage_put: allocation of the two
// stacks (user + kernel) backing a non-service thread.
type PageAllocator interface {
	// Get allocates one page, returning kerr.EAGAIN-wrapped error on
	// exhaustion.
	Get() (Page, error)
	// Put returns a page to the pool. Calling Put on a page not
	// returned by Get is a kernel invariant violation.
	Put(Page)
}

// EntryPoint is the function a freshly created Context begins
// executing when first resumed.
type EntryPoint func()

// Context models a saved machine context. In this implementation a
// Context is backed by a dedicated goroutine and a
// pair of handshake channels: Resume wakes the goroutine to run (or
// continue running past its last suspension point), and the goroutine
// reports back on Parked when it next suspends or returns.
//
// Context is deliberately not safe for concurrent Resume calls: exactly
// one core may be resuming/parked-on a given Context at a time, mirroring
// "at most one thread per core has state=RUNNING" and "ctx is non-null
// iff the thread is currently suspended".
type Context struct {
	resume chan struct{}
	parked chan ParkReason
}

// ParkReason describes why a Context most recently returned control to
// its resumer.
type ParkReason int

const (
	// ParkYielded means the context voluntarily yielded and may be
	// resumed again later.
	ParkYielded ParkReason = iota
	// ParkFinished means the entry point returned; the context must
	// not be resumed again.
	ParkFinished
)

// ContextCreate builds a machine context that will run entry when first
// resumed. ustack/kstack are retained only for accounting symmetry
// with the two-stack-per-thread policy; this implementation does not
// address raw memory through them.
func ContextCreate(entry EntryPoint, ustack, kstack Page) *Context {
	_ = ustack
	_ = kstack
	c := &Context{
		resume: make(chan struct{}),
		parked: make(chan ParkReason, 1),
	}
	go func() {
		<-c.resume
		entry()
		c.parked <- ParkFinished
	}()
	return c
}

// Resume wakes the context's goroutine and blocks until it parks again
// (by calling Yield from within entry, or by entry returning). It is
// the Go-idiomatic analogue of context_switch_to: the caller (the
// outgoing thread, performing its own switch-away) is the one who
// invokes Resume on the incoming context.
func (c *Context) Resume() ParkReason {
	c.resume <- struct{}{}
	return <-c.parked
}

// Yield, called from inside the running entry function, suspends the
// calling goroutine until the owning Context is Resumed again. It
// reports ParkYielded to whoever is blocked in Resume.
func (c *Context) Yield() {
	c.parked <- ParkYielded
	<-c.resume
}

// Clock models clock_read: a monotonically-intended time source.
// Implementations may not be strictly monotonic across suspend/resume;
// callers must defend against that.
type Clock interface {
	Now() time.Time
}

// InterruptController models interrupts_{get,set}_level and
// interrupt_mask, scoped per core: an interrupt level is CPU-local
// state.
type InterruptController interface {
	// Level returns the current interrupt level of the given core.
	Level(coreID int) int
	// SetLevel sets the interrupt level of the given core, returning
	// the previous level.
	SetLevel(coreID int, level int) int
}

// EventKind identifies the reason an inter-processor event was raised.
type EventKind int

const (
	// EventSched asks the target core's scheduler to re-evaluate the
	// ready queue (quantum-exceeded aging IPI, or a wakeup targeting an
	// idle core).
	EventSched EventKind = iota
	// EventTask asks the target core to drain its per-core task
	// emission queue.
	EventTask
	// EventWakeup is delivered to an idle core to end its WAKEUP wait.
	EventWakeup
)

// EventSignaler models kevent_notify/kevent_wait/kevent_set_handler:
// per-core inter-processor event signalling.
type EventSignaler interface {
	// Notify raises kind on the target core. Implementations must
	// coalesce redundant notifications of the same kind the way a
	// hardware IPI line would.
	Notify(coreID int, kind EventKind)
	// Wait blocks the calling goroutine until any event kind is raised
	// on coreID, ctx is cancelled, or the signaler is shut down. It
	// returns the kind observed.
	Wait(ctx context.Context, coreID int) (EventKind, bool)
	// SetHandler registers fn to be invoked (on an arbitrary goroutine)
	// whenever kind is raised on coreID, in addition to waking any
	// blocked Wait call. fn must not block.
	SetHandler(coreID int, kind EventKind, fn func())
}

// CoreController models core_get_id/core_start/core_reset/core_release:
// lifecycle control of the physical (here: simulated) cores a
// single-thread-core cooperative-only fallback build multiplexes onto.
type CoreController interface {
	// NumCores returns the number of cores available.
	NumCores() int
	// Start launches fn as the sole body of core coreID and returns
	// once fn has been scheduled to run (not necessarily completed).
	Start(coreID int, fn func()) error
	// Reset terminates whatever is running on coreID and restarts it
	// idle, used by the singlethread build's thread_exit/thread_join
	// fallback.
	Reset(coreID int) error
	// Release parks coreID permanently; used during shutdown. Release
	// never returns control to the caller from the core's own
	// goroutine.
	Release(coreID int)
}
