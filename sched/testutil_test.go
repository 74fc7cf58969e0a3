package sched_test

import (
	"github.com/concore/kernel/hal/simhal"
	"github.com/concore/kernel/sched"
)

func newTestScheduler(coresNum, threadMax int) *sched.Scheduler {
	s, err := sched.New(
		sched.WithCoresNum(coresNum),
		sched.WithThreadMax(threadMax),
		sched.WithCoreController(simhal.NewCores(coresNum)),
		sched.WithEventSignaler(simhal.NewEvents(coresNum)),
		sched.WithInterruptController(simhal.NewInterrupts(coresNum)),
		sched.WithPageAllocator(simhal.NewPageAllocator(2*threadMax)),
		sched.WithClock(simhal.SystemClock{}),
	)
	if err != nil {
		panic(err)
	}
	return s
}
