package simhal

import (
	"context"
	"sync"

	"github.com/concore/kernel/kerr"
)

// Cores is the reference hal.CoreController: each simulated core is a
// goroutine running whatever function Start gave it. Reset cancels the
// core's context and frees its slot so Start may be called again;
// Release does the same. The context is not passed to fn, so neither
// call stops a goroutine that is already running.
type Cores struct {
	mu     sync.Mutex
	n      int
	cancel []context.CancelFunc
}

// NewCores returns a controller for n cores, none running yet.
func NewCores(n int) *Cores {
	return &Cores{n: n, cancel: make([]context.CancelFunc, n)}
}

func (c *Cores) NumCores() int { return c.n }

func (c *Cores) Start(coreID int, fn func()) error {
	if coreID < 0 || coreID >= c.n {
		return kerr.New("core_start", kerr.EINVAL)
	}
	c.mu.Lock()
	if c.cancel[coreID] != nil {
		c.mu.Unlock()
		return kerr.New("core_start", kerr.EBUSY)
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel[coreID] = cancel
	c.mu.Unlock()

	go func() {
		_ = ctx
		fn()
	}()
	return nil
}

func (c *Cores) Reset(coreID int) error {
	if coreID < 0 || coreID >= c.n {
		return kerr.New("core_reset", kerr.EINVAL)
	}
	c.mu.Lock()
	cancel := c.cancel[coreID]
	c.cancel[coreID] = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (c *Cores) Release(coreID int) {
	_ = c.Reset(coreID)
}
