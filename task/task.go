package task

import "github.com/concore/kernel/ksync"

// childEdge is one outgoing edge of a Task's children array slot.
// isTemporary edges are removed after they fire once.
type childEdge struct {
	child        *Task
	triggers     Trigger
	isDependency bool
	isTemporary  bool
	valid        bool
}

// Task is one node of the dependency graph. Tasks are never
// individually heap-allocated after NewBoard: the Board preallocates
// the whole table, the same fixed-arena discipline sched.Thread uses.
type Task struct {
	id    int64
	valid bool

	state        State
	scheduleType ScheduleType
	priority     Priority

	period      int64
	deltaFactor int64

	nparents    int    // currently-outstanding hard parents not yet satisfied
	rparents    int    // reload value: the configured hard-parent count
	parentTypes uint32 // one contiguous low bit per hard-parent edge: popcount == rparents; not shifted as parents fire, so it does not track nparents

	children  [ChildrenMax]childEdge
	nchildren int

	fn      Fn
	args    Args
	retval  int64
	releases Trigger

	sem *ksync.Semaphore

	color int
	// notifiedEpoch guards against a task being notified twice within
	// the same error-propagation DFS when it is reachable through two
	// parent edges that both fire in the same pass (Open Question
	// decision 1): the color gate alone only blocks re-expansion of a
	// node already visited, not a second independent notify of a node
	// still queued for its first visit in this epoch.
	notifiedEpoch int

	next *Task // intrusive link: active/waiting/periodic/emission queue

	periodRemaining int64 // periodic queue delta, valid only while queued there
	periodicNext    *Task
}

// ID returns the task's table-assigned identifier.
func (t *Task) ID() int64 { return t.id }

// State returns the task's current lifecycle state.
func (t *Task) State() State { return t.state }

// Wait blocks until the task completes (in any terminal sense) and
// returns its retval.
func (t *Task) Wait() int64 {
	t.sem.Down()
	return t.retval
}

// TryWait returns the retval without blocking, or an error if the
// task has not yet released its semaphore.
func (t *Task) TryWait() (int64, error) {
	if err := t.sem.TryDown(); err != nil {
		return 0, err
	}
	return t.retval, nil
}
