package repository

import (
	"sync"
)

// VectorSize is the number of monitored refrigerators.
const VectorSize = 6

// VectorMemory holds the last-known 6-entry status vector, all zeros
// until the first realtime update arrives.
type VectorMemory struct {
	mu    sync.Mutex
	state []int
}

func NewVectorMemory() *VectorMemory {
	return &VectorMemory{
		state: make([]int, VectorSize),
	}
}

// Swap replaces the stored vector with next and returns the previous
// value. The read-modify-write is atomic with respect to interleaved
// vectors from the same feed.
func (r *VectorMemory) Swap(next []int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.state
	r.state = append([]int(nil), next...)
	return prev
}
