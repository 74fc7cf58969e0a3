package kernel_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concore/kernel/kernel"
	"github.com/concore/kernel/sched"
	"github.com/concore/kernel/task"
)

func TestCreateThreadRunsAndJoinReturnsRetval(t *testing.T) {
	k, err := kernel.New(kernel.WithCoresNum(2), kernel.WithThreadMax(16))
	require.NoError(t, err)
	defer k.Shutdown()

	th, err := k.CreateThread(func(arg any) {
		k.ExitThread(int64(arg.(int) * 10))
	}, 4, sched.AffinityAll(2))
	require.NoError(t, err)

	retval, err := k.JoinThread(th)
	require.NoError(t, err)
	assert.Equal(t, int64(40), retval)
}

func TestTaskPipelineThroughKernelFacade(t *testing.T) {
	k, err := kernel.New(kernel.WithCoresNum(1), kernel.WithTaskMax(8))
	require.NoError(t, err)
	defer k.Shutdown()

	child, err := k.CreateTask(func(args task.Args) task.Exit {
		return task.Exit{Retval: args[0] + 1, Management: task.TriggerUser0}
	}, task.PriorityLow, task.ScheduleReady, 0, task.TriggerUser0)
	require.NoError(t, err)

	parent, err := k.CreateTask(func(task.Args) task.Exit {
		return task.Exit{
			Management: task.TriggerUser0,
			Merge: func(parentArgs, childArgs task.Args) task.Args {
				childArgs[0] = parentArgs[0]
				return childArgs
			},
			ExitArgs: task.Args{9},
		}
	}, task.PriorityLow, task.ScheduleReady, 0, 0)
	require.NoError(t, err)

	require.NoError(t, k.ConnectTasks(parent, child, false, false, task.TriggerUser0))
	require.NoError(t, k.DispatchTask(parent, task.Args{}))
	assert.Equal(t, int64(10), child.Wait())
}

func TestTickLoopAdvancesPeriodicTasks(t *testing.T) {
	k, err := kernel.New(
		kernel.WithCoresNum(1),
		kernel.WithThreadQuantum(2*time.Millisecond),
	)
	require.NoError(t, err)
	defer k.Shutdown()

	fired := make(chan struct{}, 8)
	pt, err := k.CreateTask(func(task.Args) task.Exit {
		select {
		case fired <- struct{}{}:
		default:
		}
		return task.Exit{Management: task.TriggerPeriodic}
	}, task.PriorityLow, task.SchedulePeriodic, 2, 0)
	require.NoError(t, err)

	require.NoError(t, k.DispatchTask(pt, task.Args{}))

	// The first run comes from DispatchTask itself; the second can only
	// come from the tick loop counting the period down.
	for i := 0; i < 2; i++ {
		select {
		case <-fired:
		case <-time.After(time.Second):
			t.Fatal("periodic task never fired via the kernel's own tick loop")
		}
	}
}

func TestStatsReportsConfiguredCores(t *testing.T) {
	k, err := kernel.New(kernel.WithCoresNum(3))
	require.NoError(t, err)
	defer k.Shutdown()

	st := k.Stats()
	assert.Equal(t, 3, st.CoresNum)
	assert.GreaterOrEqual(t, st.ReadyLen, 0)
}
