package kernel

import (
	"time"

	"github.com/concore/kernel/klog"
	"github.com/concore/kernel/sched"
)

// Config is the resolved configuration a Kernel was built from. It
// aggregates sched's and task's own option sets into the one settings
// surface thread_init/task_init took as separate calls before.
type Config struct {
	CoresNum       int
	ThreadMax      int
	TaskMax        int
	ThreadQuantum  time.Duration
	StatsEnabled   bool
	StaticAffinity bool
	Mode           sched.Mode
	PageCapacity   int
	Logger         klog.Logger
}

// Option configures a Kernel.
type Option interface {
	applyKernel(*Config) error
}

type optionImpl struct {
	fn func(*Config) error
}

func (o *optionImpl) applyKernel(c *Config) error { return o.fn(c) }

// WithCoresNum sets the number of simulated cores driven by the
// scheduler.
func WithCoresNum(n int) Option {
	return &optionImpl{func(c *Config) error { c.CoresNum = n; return nil }}
}

// WithThreadMax sets the fixed capacity of the thread table.
func WithThreadMax(n int) Option {
	return &optionImpl{func(c *Config) error { c.ThreadMax = n; return nil }}
}

// WithTaskMax sets the fixed capacity of the task table.
func WithTaskMax(n int) Option {
	return &optionImpl{func(c *Config) error { c.TaskMax = n; return nil }}
}

// WithThreadQuantum sets the aging quantum used under ModePreemptive.
func WithThreadQuantum(d time.Duration) Option {
	return &optionImpl{func(c *Config) error { c.ThreadQuantum = d; return nil }}
}

// WithStats enables per-thread execution-time accounting.
func WithStats(enabled bool) Option {
	return &optionImpl{func(c *Config) error { c.StatsEnabled = enabled; return nil }}
}

// WithStaticAffinity pins every thread to its create-time affinity,
// rejecting later SetAffinity calls that ask for a different mask.
func WithStaticAffinity(enabled bool) Option {
	return &optionImpl{func(c *Config) error { c.StaticAffinity = enabled; return nil }}
}

// WithMode selects the build personality (preemptive, cooperative, or
// single-thread).
func WithMode(m sched.Mode) Option {
	return &optionImpl{func(c *Config) error { c.Mode = m; return nil }}
}

// WithPageCapacity sets how many stack pages hal/simhal's allocator
// carries; each user thread holds two (user and kernel stack) while
// alive.
func WithPageCapacity(n int) Option {
	return &optionImpl{func(c *Config) error { c.PageCapacity = n; return nil }}
}

// WithLogger sets the structured logger threaded through sched, ksync
// and task.
func WithLogger(l klog.Logger) Option {
	return &optionImpl{func(c *Config) error { c.Logger = l; return nil }}
}

func resolveOptions(opts []Option) (*Config, error) {
	cfg := &Config{
		CoresNum:      1,
		ThreadMax:     64,
		TaskMax:       256,
		ThreadQuantum: 10 * time.Millisecond,
		Mode:          sched.ModePreemptive,
		PageCapacity:  128,
		Logger:        klog.Global(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyKernel(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
