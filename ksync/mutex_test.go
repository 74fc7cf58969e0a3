package ksync_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concore/kernel/ksync"
	"github.com/concore/kernel/sched"
)

func TestMutexGrantsInFIFOArrivalOrder(t *testing.T) {
	s := newTestScheduler(3, 16)
	defer s.Shutdown()

	m := ksync.New(s)
	m.Lock()

	order := make(chan string, 3)
	arrived := make(chan struct{}, 2)

	start := func(name string) *sched.Thread {
		th, err := s.Create(func(any) {
			arrived <- struct{}{}
			m.Lock()
			order <- name
			m.Unlock()
			s.Exit(0)
		}, nil, 0)
		require.NoError(t, err)
		return th
	}

	thB := start("b")
	<-arrived
	time.Sleep(5 * time.Millisecond) // let b queue up on the held mutex
	thC := start("c")
	<-arrived
	time.Sleep(5 * time.Millisecond)

	m.Unlock() // release the lock taken by the test goroutine itself

	_, _ = s.Join(thB)
	_, _ = s.Join(thC)
	close(order)

	var got []string
	for v := range order {
		got = append(got, v)
	}
	assert.Equal(t, []string{"b", "c"}, got)
}

func TestMutexTryLock(t *testing.T) {
	m := ksync.New(newTestScheduler(1, 16))
	assert.True(t, m.TryLock())
	assert.False(t, m.TryLock())
	m.Unlock()
	assert.True(t, m.TryLock())
}
