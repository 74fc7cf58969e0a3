package simhal

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/concore/kernel/hal"
)

// perCore holds the wakeup channel and dedup flag for one core, the
// same shape as eventloop.Loop's fastWakeupCh + wakeUpSignalPending:
// a buffered, size-1 channel plus a CAS-guarded pending flag so that
// back-to-back Notify calls before the waiter wakes up coalesce into a
// single wakeup instead of queuing one per call.
type perCore struct {
	mu      sync.Mutex
	pending atomic.Bool
	ch      chan hal.EventKind
	handlers map[hal.EventKind][]func()
}

// Events is the default, portable EventSignaler: one buffered channel
// per core. It requires no platform-specific syscalls, mirroring
// eventloop's channel-based "fast mode" wakeup used when no OS-level
// I/O FDs are registered.
type Events struct {
	cores []*perCore
}

// NewEvents returns a signaler for numCores cores.
func NewEvents(numCores int) *Events {
	e := &Events{cores: make([]*perCore, numCores)}
	for i := range e.cores {
		e.cores[i] = &perCore{
			ch:       make(chan hal.EventKind, 1),
			handlers: make(map[hal.EventKind][]func()),
		}
	}
	return e
}

func (e *Events) Notify(coreID int, kind hal.EventKind) {
	c := e.cores[coreID]

	c.mu.Lock()
	hs := append([]func(){}, c.handlers[kind]...)
	c.mu.Unlock()
	for _, fn := range hs {
		fn()
	}

	if c.pending.CompareAndSwap(false, true) {
		select {
		case c.ch <- kind:
		default:
		}
	}
}

func (e *Events) Wait(ctx context.Context, coreID int) (hal.EventKind, bool) {
	c := e.cores[coreID]
	select {
	case kind := <-c.ch:
		c.pending.Store(false)
		return kind, true
	case <-ctx.Done():
		return 0, false
	}
}

func (e *Events) SetHandler(coreID int, kind hal.EventKind, fn func()) {
	c := e.cores[coreID]
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[kind] = append(c.handlers[kind], fn)
}
