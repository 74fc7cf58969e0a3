package sched

import "sync/atomic"

// ThreadState is one value of a thread's lifecycle:
// NOT_STARTED -> STARTED -> READY -> RUNNING <-> (STOPPED|SLEEPING|
// PERIODIC) -> TERMINATED -> ZOMBIE -> NOT_STARTED.
type ThreadState uint32

const (
	StateNotStarted ThreadState = iota
	StateStarted
	StateReady
	StateRunning
	StateStopped
	StateSleeping
	StatePeriodic
	StateTerminated
	StateZombie
)

func (s ThreadState) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateStarted:
		return "Started"
	case StateReady:
		return "Ready"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	case StateSleeping:
		return "Sleeping"
	case StatePeriodic:
		return "Periodic"
	case StateTerminated:
		return "Terminated"
	case StateZombie:
		return "Zombie"
	default:
		return "Unknown"
	}
}

// atomicState is a lock-free state cell, the same pattern
// eventloop.FastState uses for Loop's own state machine: pure CAS, no
// transition-table validation (callers are trusted to only ever request
// legal transitions), so that reading or writing a thread's state never
// requires the scheduler lock.
type atomicState struct {
	v atomic.Uint32
}

func (s *atomicState) Load() ThreadState {
	return ThreadState(s.v.Load())
}

func (s *atomicState) Store(state ThreadState) {
	s.v.Store(uint32(state))
}

func (s *atomicState) CAS(from, to ThreadState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
