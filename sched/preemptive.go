package sched

// This file documents ModePreemptive, one of the three build
// personalities Mode selects between: a core thread backing (coreLoop
// in scheduler.go) plus the quantum/aging IPI layer Tick implements on
// top of it. A thread running under ModePreemptive can be asked, via
// Tick, to yield before it otherwise would; ModeCooperative and
// ModeSingleThread never raise that request, so their threads only
// ever give up a core voluntarily.
