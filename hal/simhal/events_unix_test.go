//go:build unix

package simhal_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concore/kernel/hal"
	"github.com/concore/kernel/hal/simhal"
)

func TestPipeEventsNotifyWaitRoundTrip(t *testing.T) {
	pe, err := simhal.NewPipeEvents(2)
	require.NoError(t, err)
	defer pe.Close()

	pe.Notify(0, hal.EventTask)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	kind, ok := pe.Wait(ctx, 0)
	require.True(t, ok)
	assert.Equal(t, hal.EventTask, kind)
}

func TestPipeEventsSetHandlerFiresOnNotify(t *testing.T) {
	pe, err := simhal.NewPipeEvents(1)
	require.NoError(t, err)
	defer pe.Close()

	fired := make(chan hal.EventKind, 1)
	pe.SetHandler(0, hal.EventWakeup, func() { fired <- hal.EventWakeup })
	pe.Notify(0, hal.EventWakeup)

	select {
	case kind := <-fired:
		assert.Equal(t, hal.EventWakeup, kind)
	case <-time.After(time.Second):
		t.Fatal("handler never fired")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, _ = pe.Wait(ctx, 0)
}

func TestPipeEventsWaitCancelledByContext(t *testing.T) {
	pe, err := simhal.NewPipeEvents(1)
	require.NoError(t, err)
	defer pe.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok := pe.Wait(ctx, 0)
	assert.False(t, ok)
}
