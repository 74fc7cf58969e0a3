package task_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concore/kernel/task"
)

func TestDispatchRunsTaskAndWaitReturnsRetval(t *testing.T) {
	_, b := newTestSystem(1)
	defer b.Shutdown()

	tk, err := b.Create(func(args task.Args) task.Exit {
		return task.Exit{Retval: args[0] * 2, Management: task.TriggerUser0}
	}, task.PriorityLow, task.ScheduleReady, 0, task.TriggerUser0)
	require.NoError(t, err)

	require.NoError(t, b.Dispatch(tk, task.Args{21}))
	assert.Equal(t, int64(42), tk.Wait())
}

func TestHardParentBlocksUntilAllFire(t *testing.T) {
	_, b := newTestSystem(1)
	defer b.Shutdown()

	var childRan atomic.Bool
	child, err := b.Create(func(task.Args) task.Exit {
		childRan.Store(true)
		return task.Exit{Management: task.TriggerUser0}
	}, task.PriorityLow, task.ScheduleReady, 0, task.TriggerUser0)
	require.NoError(t, err)

	mk := func() *task.Task {
		p, err := b.Create(func(task.Args) task.Exit {
			return task.Exit{Management: task.TriggerUser0}
		}, task.PriorityLow, task.ScheduleReady, 0, task.TriggerUser0)
		require.NoError(t, err)
		return p
	}
	p1, p2 := mk(), mk()
	require.NoError(t, b.Connect(p1, child, true, false, task.TriggerUser0))
	require.NoError(t, b.Connect(p2, child, true, false, task.TriggerUser0))

	require.NoError(t, b.Dispatch(p1, task.Args{}))
	time.Sleep(10 * time.Millisecond)
	assert.False(t, childRan.Load(), "child must not run until both hard parents have fired")

	require.NoError(t, b.Dispatch(p2, task.Args{}))
	time.Sleep(10 * time.Millisecond)
	assert.True(t, childRan.Load())
}

func TestFlowEdgeRunsWithoutWaitingOnOtherParents(t *testing.T) {
	_, b := newTestSystem(1)
	defer b.Shutdown()

	ranCh := make(chan struct{}, 1)
	child, err := b.Create(func(task.Args) task.Exit {
		ranCh <- struct{}{}
		return task.Exit{Management: task.TriggerUser0}
	}, task.PriorityLow, task.ScheduleReady, 0, task.TriggerUser0)
	require.NoError(t, err)

	parent, err := b.Create(func(task.Args) task.Exit {
		return task.Exit{Management: task.TriggerUser0}
	}, task.PriorityLow, task.ScheduleReady, 0, task.TriggerUser0)
	require.NoError(t, err)

	// flow (non-dependency) edge: child runs as soon as parent fires,
	// with no hard-parent count to satisfy.
	require.NoError(t, b.Connect(parent, child, false, false, task.TriggerUser0))
	require.NoError(t, b.Dispatch(parent, task.Args{}))

	select {
	case <-ranCh:
	case <-time.After(time.Second):
		t.Fatal("flow-edge child never ran")
	}
}

func TestDiamondErrorPropagationVisitsSinkOnce(t *testing.T) {
	_, b := newTestSystem(1)
	defer b.Shutdown()

	var sinkHits atomic.Int32
	sink, err := b.Create(func(task.Args) task.Exit {
		sinkHits.Add(1)
		return task.Exit{Management: task.TriggerUser0}
	}, task.PriorityLow, task.ScheduleReady, 0, task.TriggerUser0)
	require.NoError(t, err)

	// left and right are marked errored by root's own propagateError
	// walk before they ever reach the Dispatcher; once actually run
	// they just complete, so the cascade does not re-fire from here.
	left, err := b.Create(func(task.Args) task.Exit {
		return task.Exit{Management: task.TriggerUser0}
	}, task.PriorityLow, task.ScheduleReady, 0, 0)
	require.NoError(t, err)
	right, err := b.Create(func(task.Args) task.Exit {
		return task.Exit{Management: task.TriggerUser0}
	}, task.PriorityLow, task.ScheduleReady, 0, 0)
	require.NoError(t, err)

	root, err := b.Create(func(task.Args) task.Exit {
		return task.Exit{Management: task.TriggerErrorThrow}
	}, task.PriorityLow, task.ScheduleReady, 0, 0)
	require.NoError(t, err)

	require.NoError(t, b.Connect(root, left, false, false, task.TriggerErrorThrow))
	require.NoError(t, b.Connect(root, right, false, false, task.TriggerErrorThrow))
	require.NoError(t, b.Connect(left, sink, false, false, task.TriggerErrorThrow))
	require.NoError(t, b.Connect(right, sink, false, false, task.TriggerErrorThrow))

	require.NoError(t, b.Dispatch(root, task.Args{}))
	time.Sleep(30 * time.Millisecond)

	assert.EqualValues(t, 1, sinkHits.Load(), "diamond convergence must notify the sink exactly once per epoch")
}

func TestPeriodicTaskFiresEveryPeriodTicks(t *testing.T) {
	_, b := newTestSystem(1)
	defer b.Shutdown()

	var fires atomic.Int32
	pt, err := b.Create(func(task.Args) task.Exit {
		fires.Add(1)
		return task.Exit{Management: task.TriggerPeriodic}
	}, task.PriorityLow, task.SchedulePeriodic, 3, 0)
	require.NoError(t, err)

	require.NoError(t, b.Dispatch(pt, task.Args{}))

	for i := 0; i < 12; i++ {
		b.Tick()
		time.Sleep(2 * time.Millisecond)
	}
	assert.GreaterOrEqual(t, int(fires.Load()), 3)
}
