package task

import (
	"github.com/concore/kernel/hal"
	"github.com/concore/kernel/kerr"
	"github.com/concore/kernel/klog"
	"github.com/concore/kernel/ksync"
	"github.com/concore/kernel/sched"
	"github.com/concore/kernel/section"
)

// Board is the process-wide task board: a spinlock, a semaphore
// counting READY tasks for the Dispatcher, a monotonic color for
// error-propagation cycle-breaking, a shutdown flag, the three
// arrangements (active/waiting/periodic), one per-core emission
// arrangement, and the currently-running task's management output.
type Board struct {
	o *boardOptions

	lock section.Spinlock

	tasks   []Task
	free    []int32
	nextID  int64
	sem     *ksync.Semaphore
	color   int
	shutdown bool

	active   taskQueue
	waiting  taskQueue
	periodic periodicQueue

	emissions []taskQueue

	dispatcher *sched.Thread
	current    *Task
}

// NewBoard allocates the task table and starts the Dispatcher system
// thread on the bound scheduler.
func NewBoard(opts ...Option) (*Board, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	if cfg.sched == nil {
		return nil, kerr.New("task_init", kerr.EINVAL)
	}
	b := &Board{
		o:         cfg,
		tasks:     make([]Task, cfg.taskMax),
		emissions: make([]taskQueue, cfg.coresNum),
		sem:       ksync.NewSemaphore(cfg.sched, 0),
	}
	for i := cfg.taskMax - 1; i >= 0; i-- {
		b.free = append(b.free, int32(i))
	}
	th, err := cfg.sched.Create(func(any) { b.dispatcherLoop() }, nil, 0)
	if err != nil {
		return nil, kerr.Wrap("task_init", kerr.EAGAIN, err)
	}
	b.dispatcher = th
	return b, nil
}

func (b *Board) logf(level klog.Level, taskID int64, msg string) {
	if b.o.logger == nil || !b.o.logger.IsEnabled(level) {
		return
	}
	b.o.logger.Log(klog.Entry{Level: level, Category: klog.CategoryTask, TaskID: taskID, Message: msg})
}

// Create allocates a task slot and initializes its record.
func (b *Board) Create(fn Fn, priority Priority, schedType ScheduleType, period int64, releases Trigger) (*Task, error) {
	if fn == nil {
		return nil, kerr.New("task_create", kerr.EINVAL)
	}
	b.lock.Lock()
	if len(b.free) == 0 {
		b.lock.Unlock()
		return nil, kerr.New("task_create", kerr.EAGAIN)
	}
	slot := b.free[len(b.free)-1]
	b.free = b.free[:len(b.free)-1]
	b.nextID++
	id := b.nextID
	b.lock.Unlock()

	t := &b.tasks[slot]
	*t = Task{
		id:           id,
		valid:        true,
		state:        StateNotStarted,
		scheduleType: schedType,
		priority:     priority,
		period:       period,
		releases:     releases,
		fn:           fn,
		sem:          ksync.NewSemaphore(b.o.sched, 0),
	}
	return t, nil
}

// Unlink marks t INVALID and returns its slot to the free pool,
// provided it has no parents, no children, and is not executing.
func (b *Board) Unlink(t *Task) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if !t.valid {
		return kerr.New("task_unlink", kerr.EBADF)
	}
	if t.rparents != 0 || t.nchildren != 0 || t == b.current {
		return kerr.New("task_unlink", kerr.EBUSY)
	}
	t.valid = false
	t.state = StateInvalid
	for i := range b.tasks {
		if &b.tasks[i] == t {
			b.free = append(b.free, int32(i))
			break
		}
	}
	return nil
}

// Connect adds a typed edge from parent to child.
func (b *Board) Connect(parent, child *Task, isDependency, isTemporary bool, triggers Trigger) error {
	if triggers == 0 {
		return kerr.New("task_connect", kerr.EINVAL)
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	if !parent.valid || !child.valid {
		return kerr.New("task_connect", kerr.EINVAL)
	}
	if parent.nchildren >= ChildrenMax {
		return kerr.New("task_connect", kerr.EAGAIN)
	}
	if isDependency && child.rparents >= ParentsMax {
		return kerr.New("task_connect", kerr.EAGAIN)
	}
	parent.children[parent.nchildren] = childEdge{
		child: child, triggers: triggers,
		isDependency: isDependency, isTemporary: isTemporary, valid: true,
	}
	parent.nchildren++
	if isDependency {
		child.rparents++
		child.nparents++
		child.parentTypes = (child.parentTypes << 1) | 1
	}
	return nil
}

// Disconnect removes the edge from parent to child.
func (b *Board) Disconnect(parent, child *Task) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	idx := -1
	for i := 0; i < parent.nchildren; i++ {
		if parent.children[i].valid && parent.children[i].child == child {
			idx = i
			break
		}
	}
	if idx == -1 {
		return kerr.New("task_disconnect", kerr.EINVAL)
	}
	edge := parent.children[idx]
	// compact: shift the tail down over the removed slot, keeping
	// [0..nchildren) left-packed.
	copy(parent.children[idx:], parent.children[idx+1:parent.nchildren])
	parent.nchildren--
	parent.children[parent.nchildren] = childEdge{}
	if edge.isDependency {
		if child.nparents > 0 {
			child.nparents--
		}
		if child.rparents > 0 {
			child.rparents--
		}
		child.parentTypes >>= 1
	}
	return nil
}

// Dispatch sets t's args and moves it to READY, upping the board
// semaphore. A COMPLETED task may be redispatched: its hard-parent
// count reloads from rparents and its retval clears.
func (b *Board) Dispatch(t *Task, args Args) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if !t.valid {
		return kerr.New("task_dispatch", kerr.EINVAL)
	}
	switch t.state {
	case StateRunning:
		return kerr.New("task_dispatch", kerr.EBUSY)
	}
	t.args = args
	t.retval = 0
	t.nparents = t.rparents
	t.state = StateReady
	b.active.push(t, t.priority)
	b.sem.Up()
	return nil
}

// Stop moves t out of the active/periodic arrangement into the
// waiting arrangement.
func (b *Board) Stop(t *Task) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	switch t.state {
	case StateReady:
		b.active.remove(t)
	case StatePeriodic:
		b.periodic.remove(t)
	default:
		return kerr.New("task_stop", kerr.EBADF)
	}
	t.state = StateStopped
	b.waiting.pushBack(t)
	return nil
}

// Continue moves a STOPPED task back to READY.
func (b *Board) Continue(t *Task) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if t.state != StateStopped {
		return kerr.New("task_continue", kerr.EBADF)
	}
	b.waiting.remove(t)
	t.state = StateReady
	b.active.push(t, t.priority)
	b.sem.Up()
	return nil
}

// Complete forces t's run to conclude with the given management
// decision, the same machinery the Dispatcher uses after a Fn
// returns. It is the only cross-thread stop for a task.
func (b *Board) Complete(t *Task, management Trigger) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if t.state != StateRunning && t.state != StateReady {
		return kerr.New("task_complete", kerr.EBADF)
	}
	b.applyManagement(t, t.retval, Exit{Retval: t.retval, Management: management})
	return nil
}

// Tick is task_tick: a non-blocking, best-effort drain of the
// periodic delta queue. If the board lock is currently held (the
// Dispatcher or another API call is mid-transition), it returns
// immediately rather than spinning.
func (b *Board) Tick() {
	if !b.lock.TryLock() {
		return
	}
	defer b.lock.Unlock()
	b.periodic.tick(func(t *Task) {
		t.state = StateReady
		t.nparents = t.rparents
		b.active.pushBack(t)
		b.sem.Up()
	})
}

// Emit bypasses the Dispatcher entirely: t must have no dependencies,
// no children, and not be periodic. If the caller is on coreID it
// runs inline; otherwise it enqueues on that core's emission
// arrangement and raises a TASK event.
func (b *Board) Emit(t *Task, coreID int, args Args, signaler hal.EventSignaler, callerCoreID int) error {
	b.lock.Lock()
	if t.rparents != 0 || t.nchildren != 0 || t.scheduleType == SchedulePeriodic {
		b.lock.Unlock()
		return kerr.New("task_emit", kerr.EINVAL)
	}
	t.args = args
	b.emissions[coreID].pushBack(t)
	b.lock.Unlock()

	if coreID == callerCoreID {
		b.DrainEmissions(coreID)
		return nil
	}
	if signaler != nil {
		signaler.Notify(coreID, hal.EventTask)
	}
	return nil
}

// DrainEmissions runs every task currently queued in coreID's
// emission arrangement, one at a time, under the board lock released
// around each call.
func (b *Board) DrainEmissions(coreID int) {
	for {
		b.lock.Lock()
		t := b.emissions[coreID].pop()
		b.lock.Unlock()
		if t == nil {
			return
		}
		exit := t.fn(t.args)
		b.lock.Lock()
		t.retval = exit.Retval
		b.lock.Unlock()
		t.sem.Up()
	}
}

func (b *Board) dispatcherLoop() {
	for {
		b.sem.Down()
		b.lock.Lock()
		if b.shutdown {
			b.lock.Unlock()
			return
		}
		t := b.active.pop()
		if t == nil {
			b.lock.Unlock()
			continue
		}
		t.state = StateRunning
		t.nparents = t.rparents
		b.current = t
		args := t.args
		b.lock.Unlock()

		exit := t.fn(args)

		b.lock.Lock()
		b.applyManagement(t, exit.Retval, exit)
		b.current = nil
		b.lock.Unlock()
	}
}

// Shutdown stops the Dispatcher loop after its current task, if any,
// finishes.
func (b *Board) Shutdown() {
	b.lock.Lock()
	b.shutdown = true
	b.lock.Unlock()
	b.sem.Up()
	_, _ = b.o.sched.Join(b.dispatcher)
}
