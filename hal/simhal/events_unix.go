//go:build unix

package simhal

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/concore/kernel/hal"
)

// pipeCore is the per-core state backing PipeEvents: a blocking
// self-pipe, the same shape as eventloop.Loop's wakePipe/wakePipeWrite pair
// (fd_unix.go, loop.go's createWakeFd/drainWakeUpPipe), plus the same
// CAS-guarded pending flag used to avoid flooding the pipe with one
// byte per Notify call.
type pipeCore struct {
	readFD, writeFD int
	pending         atomic.Bool
	lastKind        atomic.Int32

	mu       sync.Mutex
	handlers map[hal.EventKind][]func()
}

// PipeEvents is a unix-specific EventSignaler backed by a pipe(2) pair
// per core, read with unix.Read and written with unix.Write. It exists
// to exercise the same kernel primitives eventloop.Loop uses for its
// wake-up mechanism, rather than a pure-Go channel, when the caller
// wants the core's Wait loop to be driven by a real file descriptor
// (e.g. so it can be multiplexed alongside other I/O in an external
// poller).
type PipeEvents struct {
	cores []*pipeCore
}

// NewPipeEvents opens numCores blocking (O_CLOEXEC only) pipes and
// returns a PipeEvents signaler; Wait relies on the read end blocking. Close must be called to release the
// descriptors.
func NewPipeEvents(numCores int) (*PipeEvents, error) {
	pe := &PipeEvents{cores: make([]*pipeCore, numCores)}
	for i := 0; i < numCores; i++ {
		var fds [2]int
		if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
			pe.Close()
			return nil, err
		}
		pe.cores[i] = &pipeCore{
			readFD:   fds[0],
			writeFD:  fds[1],
			handlers: make(map[hal.EventKind][]func()),
		}
	}
	return pe, nil
}

// Close releases every core's pipe descriptors.
func (pe *PipeEvents) Close() {
	for _, c := range pe.cores {
		if c == nil {
			continue
		}
		_ = unix.Close(c.readFD)
		_ = unix.Close(c.writeFD)
	}
}

func (pe *PipeEvents) Notify(coreID int, kind hal.EventKind) {
	c := pe.cores[coreID]

	c.mu.Lock()
	hs := append([]func(){}, c.handlers[kind]...)
	c.mu.Unlock()
	for _, fn := range hs {
		fn()
	}

	c.lastKind.Store(int32(kind))
	if c.pending.CompareAndSwap(false, true) {
		var one [1]byte
		_, _ = unix.Write(c.writeFD, one[:])
	}
}

func (pe *PipeEvents) Wait(ctx context.Context, coreID int) (hal.EventKind, bool) {
	c := pe.cores[coreID]
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			var dummy [1]byte
			_, _ = unix.Write(c.writeFD, dummy[:])
		case <-done:
		}
	}()

	var buf [64]byte
	n, err := unix.Read(c.readFD, buf[:])
	if err != nil || n == 0 {
		return 0, false
	}
	c.pending.Store(false)
	if ctx.Err() != nil {
		return 0, false
	}
	return hal.EventKind(c.lastKind.Load()), true
}

func (pe *PipeEvents) SetHandler(coreID int, kind hal.EventKind, fn func()) {
	c := pe.cores[coreID]
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[kind] = append(c.handlers[kind], fn)
}
