package sched

import (
	"time"

	"github.com/concore/kernel/hal"
)

// Priority selects ready-queue insertion discipline on enqueue:
// head-insertion for PriorityHigh, tail-insertion otherwise.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

// Affinity is a bitmask over cores; bit i set means the thread may run
// on core i.
type Affinity uint64

// AffinityAll returns a mask with the low numCores bits set.
func AffinityAll(numCores int) Affinity {
	if numCores >= 64 {
		return ^Affinity(0)
	}
	return Affinity(1)<<uint(numCores) - 1
}

// AffinityCore returns a mask selecting only coreID.
func AffinityCore(coreID int) Affinity {
	return 1 << uint(coreID)
}

func (a Affinity) matches(coreID int) bool {
	return a&(1<<uint(coreID)) != 0
}

// Role distinguishes the reserved leading thread-table slots from
// ordinary user threads: MASTER at index 0, optional DISPATCHER at
// index 1, then one IDLE per core, then user slots.
type Role int

const (
	RoleUser Role = iota
	RoleMaster
	RoleDispatcher
	RoleIdle
)

// Thread is one row of the fixed-size thread table. Threads are never
// individually heap-allocated after sched.New: the Scheduler
// preallocates the whole table as a slice of ThreadMax Threads and
// hands out pointers into it, an intrusive-list arena keyed by table
// index rather than by pointer identity alone.
type Thread struct {
	tid      int64
	role     Role
	slot     int
	coreID   int
	state    atomicState
	affinity Affinity
	age      int64

	start func(arg any)
	arg   any

	ctx    *hal.Context
	gidKey uint64 // goroutine id bound to ctx's goroutine, for gidMap cleanup

	next *Thread // ready-queue intrusive link

	ustack, kstack hal.Page

	retval int64

	joinWaiters []*Thread // threads parked in Join, woken on Exit

	statsEnabled bool
	execStart    time.Time
	execTotal    time.Duration
}

// Tid returns the thread's monotonically-allocated id.
func (t *Thread) Tid() int64 { return t.tid }

// State returns the thread's current lifecycle state.
func (t *Thread) State() ThreadState { return t.state.Load() }

// CoreID returns the core the thread is currently assigned to (only
// meaningful while RUNNING or freshly scheduled).
func (t *Thread) CoreID() int { return t.coreID }

// Affinity returns the thread's current affinity mask.
func (t *Thread) Affinity() Affinity { return t.affinity }

// ExecTotal returns accumulated execution time, valid only when the
// Scheduler was constructed with stats enabled.
func (t *Thread) ExecTotal() time.Duration { return t.execTotal }
