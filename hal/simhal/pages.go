package simhal

import (
	"sync"

	"github.com/concore/kernel/hal"
	"github.com/concore/kernel/kerr"
)

const pageSize = 4096

// page is the concrete hal.Page used by PageAllocator.
type page struct {
	buf [pageSize]byte
}

func (p *page) Bytes() []byte { return p.buf[:] }

// PageAllocator is a fixed-capacity pool of pages, modeling kpage_get/
// kpage_put. Exhaustion returns EAGAIN, the same code thread_create
// returns when kpage_get fails.
type PageAllocator struct {
	mu       sync.Mutex
	free     []*page
	capacity int
	inUse    int
}

// NewPageAllocator returns an allocator with capacity pages available.
func NewPageAllocator(capacity int) *PageAllocator {
	return &PageAllocator{capacity: capacity}
}

func (p *PageAllocator) Get() (hal.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.free); n > 0 {
		pg := p.free[n-1]
		p.free = p.free[:n-1]
		p.inUse++
		return pg, nil
	}
	if p.inUse >= p.capacity {
		return nil, kerr.New("kpage_get", kerr.EAGAIN)
	}
	p.inUse++
	return &page{}, nil
}

func (p *PageAllocator) Put(pg hal.Page) {
	p.mu.Lock()
	defer p.mu.Unlock()
	concrete, ok := pg.(*page)
	if !ok || concrete == nil {
		kerr.Panicf("kpage_put: handle not owned by this allocator")
	}
	if p.inUse == 0 {
		kerr.Panicf("kpage_put: double free")
	}
	p.inUse--
	p.free = append(p.free, concrete)
}

// InUse returns the number of pages currently allocated (for tests and
// Scheduler.Stats()).
func (p *PageAllocator) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}
