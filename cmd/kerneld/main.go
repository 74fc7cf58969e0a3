// Command kerneld is a small demonstration host for the concurrency
// core: it sizes itself to the process's real CPU quota, starts a
// Kernel, runs a handful of threads and a tiny dependency-graph task
// pipeline, then shuts down cleanly.
package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/concore/kernel/kernel"
	"github.com/concore/kernel/klog"
	"github.com/concore/kernel/sched"
	"github.com/concore/kernel/task"
)

func main() {
	if _, err := maxprocs.Set(maxprocs.Logger(func(string, ...any) {})); err != nil {
		fmt.Fprintf(os.Stderr, "kerneld: maxprocs.Set: %v\n", err)
	}
	coresNum := runtime.GOMAXPROCS(0)
	if coresNum < 1 {
		coresNum = 1
	}

	k, err := kernel.New(
		kernel.WithCoresNum(coresNum),
		kernel.WithThreadMax(64),
		kernel.WithTaskMax(64),
		kernel.WithThreadQuantum(5*time.Millisecond),
		kernel.WithStats(true),
		kernel.WithLogger(klog.NewDefaultLogger(klog.LevelInfo)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kerneld: %v\n", err)
		os.Exit(1)
	}
	defer k.Shutdown()

	runWorkerThreads(k)
	runPipeline(k)

	st := k.Stats()
	fmt.Printf("kerneld: %d cores, %d threads used, %d ready\n",
		st.CoresNum, st.ThreadsUsed, st.ReadyLen)
}

// runWorkerThreads starts a handful of user threads that each sum a
// range and exit with the result, joining all of them.
func runWorkerThreads(k *kernel.Kernel) {
	const n = 4
	threads := make([]*sched.Thread, n)
	for i := 0; i < n; i++ {
		i := i
		th, err := k.CreateThread(func(arg any) {
			lo := arg.(int) * 1000
			var sum int64
			for v := lo; v < lo+1000; v++ {
				sum += int64(v)
				if v%97 == 0 {
					k.Yield()
				}
			}
			k.ExitThread(sum)
		}, i, sched.AffinityAll(k.Stats().CoresNum))
		if err != nil {
			fmt.Fprintf(os.Stderr, "kerneld: create thread %d: %v\n", i, err)
			continue
		}
		threads[i] = th
	}
	for i, th := range threads {
		if th == nil {
			continue
		}
		retval, err := k.JoinThread(th)
		if err != nil {
			fmt.Fprintf(os.Stderr, "kerneld: join thread %d: %v\n", i, err)
			continue
		}
		fmt.Printf("kerneld: worker %d summed to %d\n", i, retval)
	}
}

// runPipeline builds a three-stage task graph (fetch -> transform ->
// report) and runs it to completion.
func runPipeline(k *kernel.Kernel) {
	report, err := k.CreateTask(func(args task.Args) task.Exit {
		fmt.Printf("kerneld: pipeline result = %d\n", args[0])
		return task.Exit{Management: task.TriggerUser0}
	}, task.PriorityLow, task.ScheduleReady, 0, task.TriggerUser0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kerneld: create report task: %v\n", err)
		return
	}

	passThrough := func(parentArgs, childArgs task.Args) task.Args {
		childArgs[0] = parentArgs[0]
		return childArgs
	}

	transform, err := k.CreateTask(func(args task.Args) task.Exit {
		result := args[0] * 2
		return task.Exit{
			Retval:     result,
			Management: task.TriggerUser0,
			Merge:      passThrough,
			ExitArgs:   task.Args{result},
		}
	}, task.PriorityLow, task.ScheduleReady, 0, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kerneld: create transform task: %v\n", err)
		return
	}

	fetch, err := k.CreateTask(func(task.Args) task.Exit {
		return task.Exit{
			Retval:     21,
			Management: task.TriggerUser0,
			Merge:      passThrough,
			ExitArgs:   task.Args{21},
		}
	}, task.PriorityLow, task.ScheduleReady, 0, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kerneld: create fetch task: %v\n", err)
		return
	}

	if err := k.ConnectTasks(fetch, transform, false, false, task.TriggerUser0); err != nil {
		fmt.Fprintf(os.Stderr, "kerneld: connect fetch->transform: %v\n", err)
		return
	}
	if err := k.ConnectTasks(transform, report, false, false, task.TriggerUser0); err != nil {
		fmt.Fprintf(os.Stderr, "kerneld: connect transform->report: %v\n", err)
		return
	}

	if err := k.DispatchTask(fetch, task.Args{}); err != nil {
		fmt.Fprintf(os.Stderr, "kerneld: dispatch fetch: %v\n", err)
		return
	}
	report.Wait()
}
