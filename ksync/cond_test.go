package ksync_test

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concore/kernel/ksync"
	"github.com/concore/kernel/sched"
)

func TestCondBroadcastWakesEveryWaiter(t *testing.T) {
	s := newTestScheduler(4, 32)
	defer s.Shutdown()

	m := ksync.New(s)
	cond := ksync.NewCond(s, m)
	ready := false
	var woken atomic.Int32
	const n = 5

	threads := make([]*sched.Thread, 0, n)
	for i := 0; i < n; i++ {
		th, err := s.Create(func(any) {
			m.Lock()
			for !ready {
				cond.Wait()
			}
			woken.Add(1)
			m.Unlock()
			s.Exit(0)
		}, nil, 0)
		require.NoError(t, err)
		threads = append(threads, th)
	}

	m.Lock()
	ready = true
	cond.Broadcast()
	m.Unlock()

	for _, th := range threads {
		_, _ = s.Join(th)
	}
	assert.EqualValues(t, n, woken.Load())
}
