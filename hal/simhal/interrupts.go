package simhal

import "sync"

// Interrupts is a per-core interrupt-level tracker, modeling
// interrupts_{get,set}_level. Level 0 means interrupts fully enabled;
// higher levels are stricter, matching section.Guard's "raise only if
// the new level has higher priority than the current" rule.
type Interrupts struct {
	mu     sync.Mutex
	levels []int
}

// NewInterrupts returns a controller for numCores cores, all starting
// at level 0.
func NewInterrupts(numCores int) *Interrupts {
	return &Interrupts{levels: make([]int, numCores)}
}

func (ic *Interrupts) Level(coreID int) int {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.levels[coreID]
}

func (ic *Interrupts) SetLevel(coreID int, level int) int {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	prev := ic.levels[coreID]
	ic.levels[coreID] = level
	return prev
}
