// Package timelapse captures periodic field snapshots into a bounded
// history and plays them back.
package timelapse

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jengzang/floq-field/internal/models"
)

// DefaultCapacity covers two hours at 30s intervals
const DefaultCapacity = 240

// ErrInvalidCapacity is returned for non-positive ring capacities
var ErrInvalidCapacity = errors.New("ring capacity must be positive")

// Ring is a fixed-capacity circular store of frames that silently
// overwrites the oldest frame once full. Only Push writes a slot, so a
// nil slot always means "never written".
type Ring struct {
	mu       sync.RWMutex
	frames   []*models.Frame
	capacity int
	head     int // next write position
}

// NewRing creates an empty ring
func NewRing(capacity int) (*Ring, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return &Ring{
		frames:   make([]*models.Frame, capacity),
		capacity: capacity,
	}, nil
}

// Push stores a frame at the head and advances it
func (r *Ring) Push(frame *models.Frame) {
	if frame == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frames[r.head] = frame
	r.head = (r.head + 1) % r.capacity
}

// GetBack returns the frame i steps behind the head; 0 is the newest.
// Reports false for out-of-range i or a slot that was never written.
func (r *Ring) GetBack(i int) (*models.Frame, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getBack(i)
}

func (r *Ring) getBack(i int) (*models.Frame, bool) {
	if i < 0 || i >= r.capacity {
		return nil, false
	}
	idx := (r.head - 1 - i + 2*r.capacity) % r.capacity
	f := r.frames[idx]
	return f, f != nil
}

// Newest returns the most recently pushed frame
func (r *Ring) Newest() (*models.Frame, bool) {
	return r.GetBack(0)
}

// Oldest returns the frame in the oldest slot, which is absent until the
// ring has filled once
func (r *Ring) Oldest() (*models.Frame, bool) {
	return r.GetBack(r.capacity - 1)
}

// Each visits frames newest to oldest and stops at the first absent slot
// or when fn returns false
func (r *Ring) Each(fn func(i int, frame *models.Frame) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := 0; i < r.capacity; i++ {
		f, ok := r.getBack(i)
		if !ok || !fn(i, f) {
			return
		}
	}
}

// Len returns the number of valid frames
func (r *Ring) Len() int {
	n := 0
	r.Each(func(int, *models.Frame) bool {
		n++
		return true
	})
	return n
}

// Capacity returns the fixed capacity
func (r *Ring) Capacity() int {
	return r.capacity
}

// Clear drops every frame
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frames = make([]*models.Frame, r.capacity)
	r.head = 0
}
