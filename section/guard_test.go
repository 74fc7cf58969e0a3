package section

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/concore/kernel/hal/simhal"
)

func TestGuardRaisesAndRestoresLevel(t *testing.T) {
	ic := simhal.NewInterrupts(1)
	lock := &Spinlock{}
	g := New(lock, ic, 0, 5)

	g.Enter()
	assert.Equal(t, 5, ic.Level(0))
	assert.True(t, lock.TryLock() == false) // already held

	g.Exit()
	assert.Equal(t, 0, ic.Level(0))
	assert.True(t, lock.TryLock())
	lock.Unlock()
}

func TestGuardDoesNotLowerForWeakerLevel(t *testing.T) {
	ic := simhal.NewInterrupts(1)
	ic.SetLevel(0, 10)
	lock := &Spinlock{}
	g := New(lock, ic, 0, 3)

	g.Enter()
	assert.Equal(t, 10, ic.Level(0), "weaker requested level must not lower the current one")
	g.Exit()
	assert.Equal(t, 10, ic.Level(0), "guard that did not raise must not restore either")
}

func TestGuardNestingSameLevel(t *testing.T) {
	ic := simhal.NewInterrupts(1)
	outerLock := &Spinlock{}
	innerLock := &Spinlock{}
	outer := New(outerLock, ic, 0, 5)
	inner := New(innerLock, ic, 0, 5)

	outer.Enter()
	inner.Enter()
	assert.Equal(t, 5, ic.Level(0))
	inner.Exit()
	assert.Equal(t, 5, ic.Level(0), "inner guard at the same level must not have raised, so exiting it restores nothing")
	outer.Exit()
	assert.Equal(t, 0, ic.Level(0))
}
