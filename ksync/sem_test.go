package ksync_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concore/kernel/ksync"
)

func TestSemaphoreProducerConsumerExact(t *testing.T) {
	s := newTestScheduler(2, 32)
	defer s.Shutdown()

	sem := ksync.NewSemaphore(s, 0)
	var consumed atomic.Int64
	const n = 20

	done := make(chan struct{})
	th, err := s.Create(func(any) {
		for i := 0; i < n; i++ {
			sem.Down()
			consumed.Add(1)
		}
		close(done)
		s.Exit(0)
	}, nil, 0)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		sem.Up()
	}

	<-done
	_, _ = s.Join(th)
	assert.EqualValues(t, n, consumed.Load())
	assert.Equal(t, 0, sem.Count())
}

func TestSemaphoreTryDown(t *testing.T) {
	s := newTestScheduler(1, 16)
	defer s.Shutdown()

	sem := ksync.NewSemaphore(s, 1)
	require.NoError(t, sem.TryDown())
	err := sem.TryDown()
	assert.Error(t, err)

	sem.Up()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, sem.Count())
}
