// Package sched implements the thread scheduler: a fixed thread
// table, a single shared ready queue scanned by whichever core is
// picking its next thread, and affinity- and quantum-aware dispatch,
// built on the hal package's simulated contexts and cores.
package sched

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/concore/kernel/hal"
	"github.com/concore/kernel/kerr"
	"github.com/concore/kernel/klog"
	"github.com/concore/kernel/section"
)

// Scheduler owns the thread table and drives every core's dispatch
// loop. It is the Go analogue of the source design's global thread
// table plus a single run queue, bundled with the hal dependencies it
// was constructed with: the core treats its collaborators as injected
// dependencies.
type Scheduler struct {
	o *schedOptions

	lock section.Spinlock

	threads []Thread
	free    []int32

	nextTid       int64
	nextUserIndex int64

	ready   readyQueue
	current []*Thread
	idle    []*Thread
	master  *Thread

	gidMap sync.Map // uint64 goroutine id -> *Thread

	shutdownCh chan struct{}
	shutdownWg sync.WaitGroup
}

// New builds a Scheduler and starts one driver goroutine per core via
// opts' CoreController. The scheduler is immediately live: Create may
// be called as soon as New returns.
func New(opts ...Option) (*Scheduler, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	if cfg.cores == nil {
		return nil, kerr.New("sched_new", kerr.EINVAL)
	}
	if cfg.cores.NumCores() < cfg.coresNum {
		return nil, kerr.New("sched_new", kerr.EINVAL)
	}
	reserved := 1 + cfg.coresNum // slot 0 = master, one idle slot per core
	if cfg.threadMax <= reserved {
		return nil, kerr.New("sched_new", kerr.EINVAL)
	}

	s := &Scheduler{
		o:          cfg,
		threads:    make([]Thread, cfg.threadMax),
		current:    make([]*Thread, cfg.coresNum),
		idle:       make([]*Thread, cfg.coresNum),
		shutdownCh: make(chan struct{}),
	}
	for i := cfg.threadMax - 1; i >= reserved; i-- {
		s.free = append(s.free, int32(i))
	}

	s.master = &s.threads[0]
	s.master.role = RoleMaster
	s.master.slot = 0
	s.master.tid = s.allocTid()
	s.master.state.Store(StateRunning)
	s.master.affinity = AffinityAll(cfg.coresNum)

	for c := 0; c < cfg.coresNum; c++ {
		idle := &s.threads[1+c]
		idle.role = RoleIdle
		idle.slot = 1 + c
		idle.tid = s.allocTid()
		idle.coreID = c
		idle.affinity = AffinityCore(c)
		idle.state.Store(StateReady)
		idle.ctx = hal.ContextCreate(s.idleEntry(idle), hal.Page(nil), hal.Page(nil))
		s.idle[c] = idle
	}

	for c := 0; c < cfg.coresNum; c++ {
		coreID := c
		s.shutdownWg.Add(1)
		if err := cfg.cores.Start(coreID, func() { s.coreLoop(coreID) }); err != nil {
			return nil, kerr.Wrap("sched_new", kerr.EAGAIN, err)
		}
	}
	return s, nil
}

func (s *Scheduler) allocTid() int64 {
	s.nextTid++
	return s.nextTid
}

func (s *Scheduler) logf(level klog.Level, coreID int, threadID int64, msg string, err error) {
	if s.o.logger == nil || !s.o.logger.IsEnabled(level) {
		return
	}
	s.o.logger.Log(klog.Entry{
		Level: level, Category: klog.CategorySched,
		CoreID: coreID, ThreadID: threadID, Message: msg, Err: err,
	})
}

// idleEntry is the body run on a core whenever its scan of the ready
// queue turns up nothing it matches: wait for an event (a wakeup or a
// freshly created thread targeting this core) rather than spin.
func (s *Scheduler) idleEntry(idle *Thread) hal.EntryPoint {
	return func() {
		s.gidMap.Store(getGoroutineID(), idle)
		for {
			if s.o.events != nil {
				_, _ = s.o.events.Wait(context.Background(), idle.coreID)
			}
			idle.state.Store(StateReady)
			idle.ctx.Yield()
		}
	}
}

// dispatchLevel is the interrupt level coreLoop raises to around the
// thread-table bookkeeping that brackets a context switch: the
// scheduler's own dispatch step runs with interrupts raised to the
// scheduling level, not just under the lock.
const dispatchLevel = 1

// coreLoop is the per-core dispatch driver: it repeatedly resumes
// whichever thread is next-to-run on coreID, handles the reason it
// parked, and loops. It is the Go stand-in for the source design's
// core-resident scheduler invocation on every context switch.
func (s *Scheduler) coreLoop(coreID int) {
	defer s.shutdownWg.Done()
	for {
		select {
		case <-s.shutdownCh:
			return
		default:
		}

		t := s.pickNext(coreID)

		g := section.New(&s.lock, s.o.interrupts, coreID, dispatchLevel)
		g.Enter()
		s.current[coreID] = t
		t.coreID = coreID
		t.state.Store(StateRunning)
		t.execStart = s.now()
		g.Exit()

		reason := t.ctx.Resume()

		g = section.New(&s.lock, s.o.interrupts, coreID, dispatchLevel)
		g.Enter()
		if t.statsEnabled {
			if d := s.now().Sub(t.execStart); d > 0 {
				t.execTotal += d
			}
		}
		s.current[coreID] = nil
		switch reason {
		case hal.ParkFinished:
			s.handleFinished(t)
		case hal.ParkYielded:
			s.handleYielded(t, coreID)
		}
		g.Exit()
	}
}

func (s *Scheduler) now() time.Time {
	if s.o.clock != nil {
		return s.o.clock.Now()
	}
	return time.Time{}
}

// pickNext returns the next thread to run on coreID: the first thread
// in the shared ready queue, scanned head to tail, whose affinity
// matches coreID, or the core's idle thread if none does. A thread
// further back in the queue whose affinity excludes every currently
// scanning core is simply skipped and left in place for the next
// core's scan.
func (s *Scheduler) pickNext(coreID int) *Thread {
	s.lock.Lock()
	defer s.lock.Unlock()
	if t := s.ready.popMatching(coreID); t != nil {
		return t
	}
	return s.idle[coreID]
}

// handleFinished runs with s.lock held, after a thread's entry point
// has returned naturally (it did not call Exit itself).
func (s *Scheduler) handleFinished(t *Thread) {
	if t.role != RoleUser {
		kerr.Panicf("reserved thread %d finished its entry point", t.tid)
	}
	s.retireLocked(t, 0)
}

// handleYielded runs with s.lock held, after ctx.Yield returned
// control to the core driver. The thread's own state (set by Yield,
// Sleep, or Exit before calling into hal) decides what happens next.
func (s *Scheduler) handleYielded(t *Thread, coreID int) {
	switch t.state.Load() {
	case StateReady:
		if t == s.idle[coreID] {
			return // idle has nothing to requeue, it just loops
		}
		s.enqueueLocked(t, PriorityNormal)
	case StateSleeping:
		// already linked into some ksync WaitQueue by the caller of Sleep
	case StateTerminated:
		s.retireLocked(t, t.retval)
	default:
		kerr.Panicf("thread %d parked in unexpected state %s", t.tid, t.state.Load())
	}
}

// retireLocked moves t to ZOMBIE, wakes any Join waiters, and frees
// its backing pages and table slot. A thread cannot free its own
// stack while still running on it; here the free happens synchronously
// on the core driver goroutine instead of via a handoff to whichever
// thread runs next, since a driver goroutine resuming is never
// actually executing on t's stack the way a real kernel's exit path
// would be.
func (s *Scheduler) retireLocked(t *Thread, retval int64) {
	t.retval = retval
	t.state.Store(StateZombie)
	waiters := t.joinWaiters
	t.joinWaiters = nil
	for _, w := range waiters {
		s.enqueueLocked(w, PriorityHigh)
	}
	if s.o.pages != nil {
		s.o.pages.Put(t.ustack)
		s.o.pages.Put(t.kstack)
	}
	coreID := t.coreID
	t.free(s)
	s.maybeResetCoreAfterRetire(coreID)
}

// free returns t's slot to the freelist. Guarded by s.lock already
// held by the caller.
func (t *Thread) free(s *Scheduler) {
	t.state.Store(StateNotStarted)
	s.gidMap.Delete(t.gidKey)
	s.free = append(s.free, int32(t.slot))
}

// enqueueLocked pushes t onto the shared ready queue and wakes every
// core whose affinity matches it, since any one of them may be the
// core that ends up scanning it off the queue.
func (s *Scheduler) enqueueLocked(t *Thread, prio Priority) {
	t.state.Store(StateReady)
	s.ready.push(t, prio)
	s.notifyMatching(t.affinity)
}

func (s *Scheduler) notifyMatching(aff Affinity) {
	if s.o.events == nil {
		return
	}
	for c := 0; c < s.o.coresNum; c++ {
		if aff.matches(c) {
			s.o.events.Notify(c, hal.EventSched)
		}
	}
}

// roundRobinCore returns the next core in the round-robin rotation
// used to assign a default affinity at Create time: core
// (index mod (cores-1)) + 1, skipping the master's core (0) so newly
// created threads spread across the cores actually available for user
// work. With only one core, everything runs on it.
func (s *Scheduler) roundRobinCore() int {
	if s.o.coresNum <= 1 {
		return 0
	}
	s.nextUserIndex++
	return int((s.nextUserIndex-1)%int64(s.o.coresNum-1)) + 1
}

// Create allocates a thread table slot, builds its context around
// entry, and enqueues it READY. arg is passed to entry unmodified; if
// affinity is 0 the thread is pinned to the next core in the
// round-robin rotation rather than left free to run anywhere, so a
// burst of default-affinity creates actually spreads across cores
// instead of piling onto whichever core a head-to-tail scan favors.
func (s *Scheduler) Create(entry func(arg any), arg any, affinity Affinity) (*Thread, error) {
	if entry == nil {
		return nil, kerr.New("thread_create", kerr.EINVAL)
	}

	s.lock.Lock()
	if affinity == 0 {
		affinity = AffinityCore(s.roundRobinCore())
	}
	if len(s.free) == 0 {
		s.lock.Unlock()
		return nil, kerr.New("thread_create", kerr.EAGAIN)
	}
	slot := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]
	s.lock.Unlock()

	var ustack, kstack hal.Page
	if s.o.pages != nil {
		var err error
		if ustack, err = s.o.pages.Get(); err != nil {
			s.lock.Lock()
			s.free = append(s.free, slot)
			s.lock.Unlock()
			return nil, kerr.Wrap("thread_create", kerr.EAGAIN, err)
		}
		if kstack, err = s.o.pages.Get(); err != nil {
			s.o.pages.Put(ustack)
			s.lock.Lock()
			s.free = append(s.free, slot)
			s.lock.Unlock()
			return nil, kerr.Wrap("thread_create", kerr.EAGAIN, err)
		}
	}

	t := &s.threads[slot]
	*t = Thread{
		role:         RoleUser,
		slot:         int(slot),
		affinity:     affinity,
		start:        entry,
		arg:          arg,
		ustack:       ustack,
		kstack:       kstack,
		statsEnabled: s.o.statsEnabled,
	}

	s.lock.Lock()
	t.tid = s.allocTid()
	s.lock.Unlock()

	t.ctx = hal.ContextCreate(s.userEntry(t), ustack, kstack)

	s.lock.Lock()
	t.gidKey = 0 // bound lazily on first resume; see userEntry
	s.enqueueLocked(t, PriorityNormal)
	s.lock.Unlock()

	s.logf(klog.LevelDebug, -1, t.tid, "thread created", nil)
	return t, nil
}

func (s *Scheduler) userEntry(t *Thread) hal.EntryPoint {
	return func() {
		gid := getGoroutineID()
		t.gidKey = gid
		s.gidMap.Store(gid, t)
		t.start(t.arg)
		t.state.Store(StateTerminated)
	}
}

// CurrentThread returns the Thread bound to the calling goroutine, or
// nil if the caller is not running as a scheduled thread (e.g. a
// driver or idle goroutine, or code outside the scheduler entirely).
func (s *Scheduler) CurrentThread() *Thread {
	v, ok := s.gidMap.Load(getGoroutineID())
	if !ok {
		return nil
	}
	return v.(*Thread)
}

// Yield voluntarily relinquishes the calling thread's core, returning
// once it is scheduled again. Must be called from inside the thread's
// own entry function.
func (s *Scheduler) Yield() {
	t := s.CurrentThread()
	if t == nil {
		kerr.Panicf("sched.Yield called from a non-thread goroutine")
	}
	t.state.Store(StateReady)
	t.ctx.Yield()
}

// Exit terminates the calling thread with retval, waking any threads
// blocked in Join on it. It never returns.
func (s *Scheduler) Exit(retval int64) {
	t := s.CurrentThread()
	if t == nil {
		kerr.Panicf("sched.Exit called from a non-thread goroutine")
	}
	t.retval = retval
	t.state.Store(StateTerminated)
	t.ctx.Yield()
	kerr.Panicf("thread %d resumed after Exit", t.tid)
}

// Join blocks the calling thread until target has exited, then
// returns its exit value. A caller that is not a scheduled thread has
// nothing to park, so it polls every millisecond until target has been
// retired.
func (s *Scheduler) Join(target *Thread) (int64, error) {
	if target == nil {
		return 0, kerr.New("thread_join", kerr.EINVAL)
	}
	s.lock.Lock()
	caller := s.CurrentThread()
	for caller == nil && target.state.Load() != StateZombie && target.state.Load() != StateNotStarted {
		s.lock.Unlock()
		time.Sleep(time.Millisecond)
		s.lock.Lock()
	}
	if st := target.state.Load(); st == StateZombie || st == StateNotStarted {
		rv := target.retval
		s.lock.Unlock()
		return rv, nil
	}
	if caller == target {
		s.lock.Unlock()
		return 0, kerr.New("thread_join", kerr.EINVAL)
	}
	target.joinWaiters = append(target.joinWaiters, caller)
	caller.state.Store(StateSleeping)
	s.lock.Unlock()

	caller.ctx.Yield()
	return target.retval, nil
}

// SetAffinity changes t's affinity mask. Under a static-affinity build
// it only accepts a mask equal to t's existing one (a no-op a caller
// can safely issue without first reading the current mask back) and
// rejects anything else with EINVAL, rather than refusing every call
// outright.
func (s *Scheduler) SetAffinity(t *Thread, affinity Affinity) error {
	if affinity == 0 {
		return kerr.New("thread_set_affinity", kerr.EINVAL)
	}
	if s.o.staticAffinity && affinity != t.affinity {
		return kerr.New("thread_set_affinity", kerr.EINVAL)
	}
	s.lock.Lock()
	t.affinity = affinity
	s.lock.Unlock()
	s.notifyMatching(affinity)
	return nil
}

// MarkSleeping transitions the calling thread to SLEEPING without
// yet yielding its core, and returns it. ksync primitives call this
// while still holding their own internal lock, then push the returned
// thread onto their own WaitQueue, then release that lock, then call
// ParkCurrent — so the state transition and the enqueue happen
// atomically with respect to a concurrent Wakeup attempt, which can
// only proceed once it acquires the same internal lock.
func (s *Scheduler) MarkSleeping() *Thread {
	t := s.CurrentThread()
	if t == nil {
		kerr.Panicf("sched.MarkSleeping called from a non-thread goroutine")
	}
	t.state.Store(StateSleeping)
	return t
}

// ParkCurrent yields the calling thread's core. It is the second half
// of the MarkSleeping/ParkCurrent pair: call it only after the thread
// has already been linked into whatever WaitQueue will wake it.
func (s *Scheduler) ParkCurrent() {
	t := s.CurrentThread()
	if t == nil {
		kerr.Panicf("sched.ParkCurrent called from a non-thread goroutine")
	}
	t.ctx.Yield()
}

// Sleep is Sleep(wq) = MarkSleeping + wq.PushBack + ParkCurrent,
// combined for callers that do not need atomicity against a separate
// external lock.
func (s *Scheduler) Sleep(wq *WaitQueue) {
	t := s.MarkSleeping()
	wq.PushBack(t)
	s.ParkCurrent()
}

// Wakeup makes t READY again and enqueues it on the shared ready
// queue. The caller must already have removed t from whatever
// WaitQueue it was parked on.
func (s *Scheduler) Wakeup(t *Thread) {
	s.lock.Lock()
	if t.state.Load() != StateSleeping {
		s.lock.Unlock()
		return
	}
	s.enqueueLocked(t, PriorityHigh)
	s.lock.Unlock()
}

// Tick drives quantum aging: threads RUNNING longer than the
// configured quantum are marked for preemption at their next natural
// yield point. This implementation cannot force-suspend a running
// goroutine, so ModePreemptive's "preemption" is cooperative: Tick
// only raises the scheduling event for a core so its driver loop
// re-evaluates sooner, and the quantum is enforced the next time the
// running thread itself calls Yield, Sleep, or exits.
func (s *Scheduler) Tick() {
	if s.o.mode != ModePreemptive {
		return
	}
	s.lock.Lock()
	eligible := make(map[int]int64)
	for c, t := range s.current {
		if t == nil || t == s.idle[c] {
			continue
		}
		t.age++
		if s.now().Sub(t.execStart) >= s.o.threadQuantum {
			eligible[c] = t.age
		}
	}
	s.lock.Unlock()

	for _, c := range orderEligibleByAge(eligible) {
		if s.o.events != nil {
			s.o.events.Notify(c, hal.EventSched)
		}
	}
}

// Stats returns a snapshot of scheduler-wide occupancy, for diagnostics.
type Stats struct {
	CoresNum    int
	ThreadsFree int
	ThreadsUsed int
	ReadyLen    int
}

func (s *Scheduler) Stats() Stats {
	s.lock.Lock()
	defer s.lock.Unlock()
	return Stats{
		CoresNum:    s.o.coresNum,
		ThreadsFree: len(s.free),
		ThreadsUsed: len(s.threads) - len(s.free),
		ReadyLen:    s.ready.len,
	}
}

// Shutdown signals every core driver to stop after its current thread
// parks, and releases the underlying cores. It blocks until all
// drivers have returned or one second has passed, whichever is first.
func (s *Scheduler) Shutdown() {
	close(s.shutdownCh)
	for c := 0; c < s.o.coresNum; c++ {
		if s.o.events != nil {
			s.o.events.Notify(c, hal.EventSched)
		}
		s.o.cores.Release(c)
	}
	done := make(chan struct{})
	go func() { s.shutdownWg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}

func (s *Scheduler) String() string {
	return fmt.Sprintf("Scheduler{cores=%d threads=%d}", s.o.coresNum, len(s.threads))
}
