package sched

// ModeCooperative uses the same per-core driver loop as ModePreemptive
// (coreLoop in scheduler.go; both are backed by one native core-thread
// per core) but Tick never raises a scheduling IPI under it — a thread
// keeps its core until it calls Yield, blocks in Sleep, or exits.
// There is no separate dispatch path to maintain: the distinction is
// entirely in what Tick does, which is why cooperative.go carries no
// additional type here beyond this note.
