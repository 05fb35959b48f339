// Package layers builds the renderable buffers for the point cloud and the
// trajectory overlay. Each layer owns exactly one buffer at a time; replacing
// it releases the previous one on the same call.
package layers

import "sync"

// Handle identifies a renderable buffer held by an Allocator.
type Handle uint64

// Allocator hands out and releases renderable buffer storage. A GPU backend
// would upload here; the software renderer only needs the accounting.
type Allocator interface {
	Alloc(label string, bytes int) Handle
	Free(h Handle)
}

type allocation struct {
	label string
	bytes int
}

// CountingAllocator tracks live allocations so leaks across frame changes are
// observable.
type CountingAllocator struct {
	mu     sync.Mutex
	next   Handle
	live   map[Handle]allocation
	allocs uint64
	frees  uint64
}

// NewCountingAllocator returns an empty CountingAllocator.
func NewCountingAllocator() *CountingAllocator {
	return &CountingAllocator{live: make(map[Handle]allocation)}
}

// Alloc records a new allocation and returns its handle. Handles start at 1.
func (a *CountingAllocator) Alloc(label string, bytes int) Handle {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next++
	a.live[a.next] = allocation{label: label, bytes: bytes}
	a.allocs++
	return a.next
}

// Free releases a handle. Freeing an unknown or zero handle is a no-op.
func (a *CountingAllocator) Free(h Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.live[h]; !ok {
		return
	}
	delete(a.live, h)
	a.frees++
}

// Live returns the number of outstanding allocations.
func (a *CountingAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// LiveBytes returns the total size of outstanding allocations.
func (a *CountingAllocator) LiveBytes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, al := range a.live {
		n += al.bytes
	}
	return n
}

// Stats returns the lifetime allocation and free counts.
func (a *CountingAllocator) Stats() (allocs, frees uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocs, a.frees
}
