package task_test

import (
	"github.com/concore/kernel/hal/simhal"
	"github.com/concore/kernel/sched"
	"github.com/concore/kernel/task"
)

func newTestSystem(coresNum int) (*sched.Scheduler, *task.Board) {
	s, err := sched.New(
		sched.WithCoresNum(coresNum),
		sched.WithThreadMax(32),
		sched.WithCoreController(simhal.NewCores(coresNum)),
		sched.WithEventSignaler(simhal.NewEvents(coresNum)),
		sched.WithInterruptController(simhal.NewInterrupts(coresNum)),
		sched.WithPageAllocator(simhal.NewPageAllocator(64)),
		sched.WithClock(simhal.SystemClock{}),
	)
	if err != nil {
		panic(err)
	}
	b, err := task.NewBoard(task.WithScheduler(s), task.WithTaskMax(64), task.WithCoresNum(coresNum))
	if err != nil {
		panic(err)
	}
	return s, b
}
