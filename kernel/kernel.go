// Package kernel aggregates hal/simhal, section, sched, ksync and task
// into one initialized instance, the Go-idiomatic replacement for
// calling thread_init then task_init by hand and wiring their outputs
// together yourself. A Kernel owns its hal implementation: callers
// choose sizing and build personality through Option, not by handing
// in their own hal.CoreController, the same way eventloop.Loop owns
// its poller rather than accepting an injected one from callers.
package kernel

import (
	"time"

	"github.com/concore/kernel/hal/simhal"
	"github.com/concore/kernel/kerr"
	"github.com/concore/kernel/ksync"
	"github.com/concore/kernel/sched"
	"github.com/concore/kernel/task"
)

// Kernel is the facade for the public API: a bound Scheduler and Board
// sharing one hal/simhal realization, plus the ticking goroutine that
// drives both the quantum-aging check and the periodic task delta
// queue from a single timer, the same way a real kernel's timer
// interrupt handler fans out to both subsystems.
type Kernel struct {
	cfg *Config

	cores      *simhal.Cores
	events     *simhal.Events
	interrupts *simhal.Interrupts
	pages      *simhal.PageAllocator
	clock      simhal.SystemClock

	Sched *sched.Scheduler
	Tasks *task.Board

	tickStop chan struct{}
	tickDone chan struct{}
}

// New builds the hal/simhal realization, starts a Scheduler and Board
// on top of it, and launches the periodic ticker. The returned Kernel
// is ready to create threads and tasks immediately.
func New(opts ...Option) (*Kernel, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	if cfg.CoresNum <= 0 {
		return nil, kerr.New("kernel_init", kerr.EINVAL)
	}

	k := &Kernel{
		cfg:        cfg,
		cores:      simhal.NewCores(cfg.CoresNum),
		events:     simhal.NewEvents(cfg.CoresNum),
		interrupts: simhal.NewInterrupts(cfg.CoresNum),
		pages:      simhal.NewPageAllocator(cfg.PageCapacity),
	}

	s, err := sched.New(
		sched.WithCoresNum(cfg.CoresNum),
		sched.WithThreadMax(cfg.ThreadMax),
		sched.WithThreadQuantum(cfg.ThreadQuantum),
		sched.WithStats(cfg.StatsEnabled),
		sched.WithStaticAffinity(cfg.StaticAffinity),
		sched.WithMode(cfg.Mode),
		sched.WithLogger(cfg.Logger),
		sched.WithClock(k.clock),
		sched.WithPageAllocator(k.pages),
		sched.WithInterruptController(k.interrupts),
		sched.WithEventSignaler(k.events),
		sched.WithCoreController(k.cores),
	)
	if err != nil {
		return nil, err
	}
	k.Sched = s

	b, err := task.NewBoard(
		task.WithScheduler(s),
		task.WithTaskMax(cfg.TaskMax),
		task.WithCoresNum(cfg.CoresNum),
		task.WithLogger(cfg.Logger),
	)
	if err != nil {
		return nil, err
	}
	k.Tasks = b

	k.tickStop = make(chan struct{})
	k.tickDone = make(chan struct{})
	go k.tickLoop()

	return k, nil
}

// tickLoop is the stand-in for a real timer interrupt: every quantum it
// calls both Scheduler.Tick (quantum-aging check, a no-op outside
// ModePreemptive) and Board.Tick (periodic delta-queue countdown), the
// same way a single clock handler fans out to sched_tick and
// task_tick.
func (k *Kernel) tickLoop() {
	defer close(k.tickDone)
	interval := k.cfg.ThreadQuantum
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-k.tickStop:
			return
		case <-ticker.C:
			k.Sched.Tick()
			k.Tasks.Tick()
		}
	}
}

// CreateThread starts a new user thread (spec's thread_create).
func (k *Kernel) CreateThread(entry func(arg any), arg any, affinity sched.Affinity) (*sched.Thread, error) {
	return k.Sched.Create(entry, arg, affinity)
}

// Yield voluntarily gives up the calling thread's core (spec's
// thread_yield).
func (k *Kernel) Yield() { k.Sched.Yield() }

// ExitThread terminates the calling thread with retval (spec's
// thread_exit). It does not return.
func (k *Kernel) ExitThread(retval int64) { k.Sched.Exit(retval) }

// JoinThread blocks until target has exited and returns its retval
// (spec's thread_join).
func (k *Kernel) JoinThread(target *sched.Thread) (int64, error) {
	return k.Sched.Join(target)
}

// SetAffinity changes target's core mask (spec's thread_set_affinity).
func (k *Kernel) SetAffinity(target *sched.Thread, affinity sched.Affinity) error {
	return k.Sched.SetAffinity(target, affinity)
}

// CurrentThread returns the Thread the calling goroutine is bound to,
// or nil if the caller is not a kernel-managed thread.
func (k *Kernel) CurrentThread() *sched.Thread { return k.Sched.CurrentThread() }

// NewMutex returns a ticket mutex bound to this kernel's scheduler.
func (k *Kernel) NewMutex() *ksync.Mutex { return ksync.New(k.Sched) }

// NewSemaphore returns a counting semaphore with the given initial
// count, bound to this kernel's scheduler.
func (k *Kernel) NewSemaphore(count int) *ksync.Semaphore {
	return ksync.NewSemaphore(k.Sched, count)
}

// NewCond returns a condition variable guarded by l.
func (k *Kernel) NewCond(l *ksync.Mutex) *ksync.Cond { return ksync.NewCond(k.Sched, l) }

// CreateTask allocates a task record (spec's task_create).
func (k *Kernel) CreateTask(fn task.Fn, priority task.Priority, schedType task.ScheduleType, period int64, releases task.Trigger) (*task.Task, error) {
	return k.Tasks.Create(fn, priority, schedType, period, releases)
}

// ConnectTasks adds a typed edge from parent to child (spec's
// task_connect).
func (k *Kernel) ConnectTasks(parent, child *task.Task, isDependency, isTemporary bool, triggers task.Trigger) error {
	return k.Tasks.Connect(parent, child, isDependency, isTemporary, triggers)
}

// DisconnectTasks removes a previously-added edge (spec's
// task_disconnect).
func (k *Kernel) DisconnectTasks(parent, child *task.Task) error {
	return k.Tasks.Disconnect(parent, child)
}

// DispatchTask arms t to run with args (spec's task_dispatch).
func (k *Kernel) DispatchTask(t *task.Task, args task.Args) error {
	return k.Tasks.Dispatch(t, args)
}

// StopTask moves t into the waiting arrangement (spec's task_stop).
func (k *Kernel) StopTask(t *task.Task) error { return k.Tasks.Stop(t) }

// ContinueTask moves a stopped task back to ready (spec's
// task_continue).
func (k *Kernel) ContinueTask(t *task.Task) error { return k.Tasks.Continue(t) }

// CompleteTask forces t's run to conclude with management (spec's
// task_complete).
func (k *Kernel) CompleteTask(t *task.Task, management task.Trigger) error {
	return k.Tasks.Complete(t, management)
}

// UnlinkTask frees t's slot once it has no parents, no children and is
// not executing (spec's task_unlink).
func (k *Kernel) UnlinkTask(t *task.Task) error { return k.Tasks.Unlink(t) }

// EmitTask queues a childless, parentless, non-periodic task on
// coreID's emission queue, bypassing the Dispatcher (spec's task_emit).
// callerCoreID identifies the core the calling thread is currently
// pinned to; pass -1 if unknown. When callerCoreID equals coreID the
// queue is drained inline before EmitTask returns. Otherwise an
// EventTask is raised on coreID; Kernel registers no handler for that
// event, so the queued task runs only when Tasks.DrainEmissions(coreID)
// is called.
func (k *Kernel) EmitTask(t *task.Task, coreID int, args task.Args, callerCoreID int) error {
	return k.Tasks.Emit(t, coreID, args, k.events, callerCoreID)
}

// Stats returns scheduler occupancy: core count, used and free thread
// slots, and ready-queue length (spec §9's thread_get_curr-adjacent
// introspection). No context-switch count is kept.
func (k *Kernel) Stats() sched.Stats { return k.Sched.Stats() }

// Shutdown stops the ticker, the Dispatcher, and every core's driver
// loop. It blocks until the ticker goroutine has observed the stop
// signal.
func (k *Kernel) Shutdown() {
	close(k.tickStop)
	<-k.tickDone
	k.Tasks.Shutdown()
	k.Sched.Shutdown()
}
