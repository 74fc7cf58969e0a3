package sched_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concore/kernel/hal/simhal"
	"github.com/concore/kernel/kerr"
	"github.com/concore/kernel/sched"
)

func TestCreateRunsEntryAndJoinReturnsExitValue(t *testing.T) {
	s := newTestScheduler(2, 16)
	defer s.Shutdown()

	var ran atomic.Bool
	th, err := s.Create(func(arg any) {
		ran.Store(true)
		s.Exit(arg.(int64))
	}, int64(42), 0)
	require.NoError(t, err)

	rv, err := s.Join(th)
	require.NoError(t, err)
	assert.Equal(t, int64(42), rv)
	assert.True(t, ran.Load())
}

func TestYieldLetsAnotherThreadRun(t *testing.T) {
	s := newTestScheduler(1, 16)
	defer s.Shutdown()

	order := make(chan string, 4)
	th1, _ := s.Create(func(any) {
		order <- "a1"
		s.Yield()
		order <- "a2"
		s.Exit(0)
	}, nil, 0)
	th2, _ := s.Create(func(any) {
		order <- "b1"
		s.Yield()
		order <- "b2"
		s.Exit(0)
	}, nil, 0)

	_, _ = s.Join(th1)
	_, _ = s.Join(th2)
	close(order)

	var got []string
	for v := range order {
		got = append(got, v)
	}
	assert.Len(t, got, 4)
	assert.Contains(t, got, "a1")
	assert.Contains(t, got, "b2")
}

func TestCreateExhaustionReturnsEAGAIN(t *testing.T) {
	s := newTestScheduler(1, 3) // reserved=2 (master+1 idle), so 1 usable slot
	defer s.Shutdown()

	block := make(chan struct{})
	th, err := s.Create(func(any) { <-block }, nil, 0)
	require.NoError(t, err)

	_, err = s.Create(func(any) {}, nil, 0)
	assert.Error(t, err)

	close(block)
	_, _ = s.Join(th)
}

func TestSetAffinityUpdatesRunningThreadWithoutError(t *testing.T) {
	s := newTestScheduler(2, 16)
	defer s.Shutdown()

	block := make(chan struct{})
	th, err := s.Create(func(any) { <-block }, nil, sched.AffinityCore(0))
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	err = s.SetAffinity(th, sched.AffinityCore(1))
	assert.NoError(t, err)
	assert.Equal(t, sched.AffinityCore(1), th.Affinity())

	close(block)
	_, _ = s.Join(th)
}

func TestCreateDefaultAffinityRoundRobinsAcrossNonMasterCores(t *testing.T) {
	s := newTestScheduler(4, 32)
	defer s.Shutdown()

	block := make(chan struct{})
	defer close(block)

	var got []sched.Affinity
	for i := 0; i < 6; i++ {
		th, err := s.Create(func(any) { <-block }, nil, 0)
		require.NoError(t, err)
		got = append(got, th.Affinity())
	}

	// cores-1 == 3 non-master cores; round robin cycles 1, 2, 3, 1, 2, 3.
	want := []sched.Affinity{
		sched.AffinityCore(1), sched.AffinityCore(2), sched.AffinityCore(3),
		sched.AffinityCore(1), sched.AffinityCore(2), sched.AffinityCore(3),
	}
	assert.Equal(t, want, got)
}

func TestReadyQueueSkipsMismatchedThreadForLaterMatchingCore(t *testing.T) {
	s := newTestScheduler(2, 16)
	defer s.Shutdown()

	holdCore0 := make(chan struct{})
	_, err := s.Create(func(any) { <-holdCore0 }, nil, sched.AffinityCore(0))
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond) // let it claim core 0 and go RUNNING

	// Queued ahead of the core-1-affine thread below, but only core 0
	// (busy) matches it; core 1's scan must skip over it rather than
	// stall waiting for its own head-of-queue entry to match.
	blockedOnCore0 := make(chan struct{})
	_, err = s.Create(func(any) { <-blockedOnCore0 }, nil, sched.AffinityCore(0))
	require.NoError(t, err)

	ran := make(chan struct{})
	_, err = s.Create(func(any) { close(ran); s.Exit(0) }, nil, sched.AffinityCore(1))
	require.NoError(t, err)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("core-1-affine thread never ran while a core-0-only thread sat ahead of it in the queue")
	}
	close(blockedOnCore0)
	close(holdCore0)
}

func TestSetAffinityUnderStaticBuildAcceptsSameMaskRejectsOther(t *testing.T) {
	s, err := sched.New(
		sched.WithCoresNum(2),
		sched.WithThreadMax(16),
		sched.WithCoreController(simhal.NewCores(2)),
		sched.WithEventSignaler(simhal.NewEvents(2)),
		sched.WithInterruptController(simhal.NewInterrupts(2)),
		sched.WithPageAllocator(simhal.NewPageAllocator(32)),
		sched.WithClock(simhal.SystemClock{}),
		sched.WithStaticAffinity(true),
	)
	require.NoError(t, err)
	defer s.Shutdown()

	block := make(chan struct{})
	defer close(block)
	th, err := s.Create(func(any) { <-block }, nil, sched.AffinityCore(0))
	require.NoError(t, err)

	assert.NoError(t, s.SetAffinity(th, sched.AffinityCore(0)))
	err = s.SetAffinity(th, sched.AffinityCore(1))
	assert.Error(t, err)
	assert.ErrorIs(t, err, kerr.ErrEINVAL)
}
