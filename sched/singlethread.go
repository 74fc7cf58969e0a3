package sched

// ModeSingleThread is the cooperative-only fallback: for a
// hal.CoreController that cannot multiplex a ready queue onto fewer
// native threads than cores, thread lifecycle rides directly on core
// lifecycle instead of being multiplexed through a ready queue at all.
// create starts a new core, exit resets it, join waits on that core's
// own completion. This implementation still keeps the thread table and
// ready queue (they are harmless overhead in-process), but
// retireLocked additionally resets the now-free core so the core's own
// goroutine returns to a clean state rather than being expected to
// keep running coreLoop's dispatch logic indefinitely on hardware that
// cannot truly context-switch.
func (s *Scheduler) maybeResetCoreAfterRetire(coreID int) {
	if s.o.mode != ModeSingleThread {
		return
	}
	_ = s.o.cores.Reset(coreID)
}
