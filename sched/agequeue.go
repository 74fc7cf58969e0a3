package sched

import "container/heap"

// ageEntry pairs a core id with the age observed for its current
// thread, used only to order simultaneous aging IPIs deterministically:
// ties among eligible oldest-running threads are broken by ascending
// age, stable on insertion order.
type ageEntry struct {
	coreID int
	age    int64
	seq    int
}

// ageHeap is a container/heap.Interface ordering ageEntry by ascending
// age, then by insertion order for stability — the same shape
// eventloop's timerHeap uses for its own container/heap min-heap of
// deadlines.
type ageHeap []ageEntry

func (h ageHeap) Len() int { return len(h) }
func (h ageHeap) Less(i, j int) bool {
	if h[i].age != h[j].age {
		return h[i].age < h[j].age
	}
	return h[i].seq < h[j].seq
}
func (h ageHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *ageHeap) Push(x any)   { *h = append(*h, x.(ageEntry)) }
func (h *ageHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// orderEligibleByAge returns the core ids in ages, ascending by age
// and stable on ties, via container/heap rather than sort.Slice, to
// exercise the same incremental push/pop discipline a real timer
// wheel would use when cores report eligibility one at a time rather
// than all at once.
func orderEligibleByAge(ages map[int]int64) []int {
	h := make(ageHeap, 0, len(ages))
	seq := 0
	for core, age := range ages {
		heap.Push(&h, ageEntry{coreID: core, age: age, seq: seq})
		seq++
	}
	out := make([]int, 0, len(ages))
	for h.Len() > 0 {
		out = append(out, heap.Pop(&h).(ageEntry).coreID)
	}
	return out
}
