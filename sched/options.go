package sched

import (
	"time"

	"github.com/concore/kernel/hal"
	"github.com/concore/kernel/klog"
)

// Mode selects which of the three build personalities governs
// preemption and core usage.
type Mode int

const (
	// ModePreemptive runs one driver goroutine per core and lets Tick
	// raise a scheduling event for a core whose running thread has held
	// it past the quantum. Tick cannot suspend a running thread; the
	// thread gives up its core at its next Yield, Sleep, or exit.
	ModePreemptive Mode = iota
	// ModeCooperative never ages threads off the CPU; a thread runs until
	// it calls Yield, Sleep's, or exits.
	ModeCooperative
	// ModeSingleThread uses the same per-core driver loop as the other
	// modes and additionally resets a thread's core through the
	// hal.CoreController each time a thread on it is retired.
	ModeSingleThread
)

// schedOptions holds configuration assembled from Option values.
type schedOptions struct {
	coresNum       int
	threadMax      int
	threadQuantum  time.Duration
	statsEnabled   bool
	staticAffinity bool
	mode           Mode
	logger         klog.Logger
	clock          hal.Clock
	pages          hal.PageAllocator
	interrupts     hal.InterruptController
	events         hal.EventSignaler
	cores          hal.CoreController
}

// Option configures a Scheduler.
type Option interface {
	applySched(*schedOptions) error
}

type optionImpl struct {
	fn func(*schedOptions) error
}

func (o *optionImpl) applySched(opts *schedOptions) error { return o.fn(opts) }

// WithCoresNum sets the number of cores the scheduler drives.
func WithCoresNum(n int) Option {
	return &optionImpl{func(o *schedOptions) error { o.coresNum = n; return nil }}
}

// WithThreadMax sets the fixed capacity of the thread table.
func WithThreadMax(n int) Option {
	return &optionImpl{func(o *schedOptions) error { o.threadMax = n; return nil }}
}

// WithThreadQuantum sets the aging quantum after which a RUNNING thread
// becomes eligible for preemption in ModePreemptive.
func WithThreadQuantum(d time.Duration) Option {
	return &optionImpl{func(o *schedOptions) error { o.threadQuantum = d; return nil }}
}

// WithStats enables per-thread execution-time accounting.
func WithStats(enabled bool) Option {
	return &optionImpl{func(o *schedOptions) error { o.statsEnabled = enabled; return nil }}
}

// WithStaticAffinity makes SetAffinity reject any mask other than the
// thread's current one, matching a build that fixes affinity at
// thread-create time only.
func WithStaticAffinity(enabled bool) Option {
	return &optionImpl{func(o *schedOptions) error { o.staticAffinity = enabled; return nil }}
}

// WithMode selects the build personality.
func WithMode(m Mode) Option {
	return &optionImpl{func(o *schedOptions) error { o.mode = m; return nil }}
}

// WithLogger sets the structured logger used for scheduling events.
func WithLogger(l klog.Logger) Option {
	return &optionImpl{func(o *schedOptions) error { o.logger = l; return nil }}
}

// WithClock overrides the clock used for aging and stats.
func WithClock(c hal.Clock) Option {
	return &optionImpl{func(o *schedOptions) error { o.clock = c; return nil }}
}

// WithPageAllocator sets the allocator backing per-thread stacks.
func WithPageAllocator(p hal.PageAllocator) Option {
	return &optionImpl{func(o *schedOptions) error { o.pages = p; return nil }}
}

// WithInterruptController sets the per-core interrupt-level tracker.
func WithInterruptController(ic hal.InterruptController) Option {
	return &optionImpl{func(o *schedOptions) error { o.interrupts = ic; return nil }}
}

// WithEventSignaler sets the inter-core event transport.
func WithEventSignaler(e hal.EventSignaler) Option {
	return &optionImpl{func(o *schedOptions) error { o.events = e; return nil }}
}

// WithCoreController sets the underlying core driver.
func WithCoreController(c hal.CoreController) Option {
	return &optionImpl{func(o *schedOptions) error { o.cores = c; return nil }}
}

func resolveOptions(opts []Option) (*schedOptions, error) {
	cfg := &schedOptions{
		coresNum:      1,
		threadMax:     64,
		threadQuantum: 10 * time.Millisecond,
		mode:          ModePreemptive,
		logger:        klog.Global(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applySched(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
