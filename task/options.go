package task

import (
	"github.com/concore/kernel/klog"
	"github.com/concore/kernel/sched"
)

type boardOptions struct {
	taskMax int
	coresNum int
	sched    *sched.Scheduler
	logger   klog.Logger
}

// Option configures a Board.
type Option interface{ applyBoard(*boardOptions) error }

type optionImpl struct{ fn func(*boardOptions) error }

func (o *optionImpl) applyBoard(opts *boardOptions) error { return o.fn(opts) }

// WithTaskMax sets the fixed capacity of the task table.
func WithTaskMax(n int) Option {
	return &optionImpl{func(o *boardOptions) error { o.taskMax = n; return nil }}
}

// WithCoresNum sets how many per-core emission queues to allocate.
func WithCoresNum(n int) Option {
	return &optionImpl{func(o *boardOptions) error { o.coresNum = n; return nil }}
}

// WithScheduler binds the Board to the scheduler its Dispatcher thread
// and emitted-task execution run on.
func WithScheduler(s *sched.Scheduler) Option {
	return &optionImpl{func(o *boardOptions) error { o.sched = s; return nil }}
}

// WithLogger sets the structured logger used for task-board events.
func WithLogger(l klog.Logger) Option {
	return &optionImpl{func(o *boardOptions) error { o.logger = l; return nil }}
}

func resolveOptions(opts []Option) (*boardOptions, error) {
	cfg := &boardOptions{taskMax: 256, coresNum: 1, logger: klog.Global()}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyBoard(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
