package tensor

import (
	"fmt"
	"lyrics-lab/errors"
	"sync/atomic"
)

// Backend hands out float64 buffers and keeps count of the live ones, the way a
// GPU backend accounts for device memory. Every tensor obtained from New must be
// released, otherwise Allocated never returns to its baseline.
type Backend struct {
	maxElements int64

	tensors  atomic.Int64
	elements atomic.Int64
	peak     atomic.Int64
}

// NewBackend creates a backend. maxElements <= 0 means no limit.
func NewBackend(maxElements int) *Backend {
	return &Backend{maxElements: int64(maxElements)}
}

type Stats struct {
	Tensors      int
	Elements     int
	PeakElements int
	MaxElements  int
}

// New allocates a zeroed tensor of the given shape.
// It fails with ErrResourceExhausted when the element limit would be crossed.
func (b *Backend) New(shape ...int) (*Tensor, error) {
	size := 1
	for _, d := range shape {
		if d <= 0 {
			return nil, fmt.Errorf("%w: non-positive dimension in shape %v", errors.ErrDimensionMismatch, shape)
		}
		size *= d
	}

	total := b.elements.Add(int64(size))
	if b.maxElements > 0 && total > b.maxElements {
		b.elements.Add(-int64(size))
		return nil, fmt.Errorf("%w: %d elements requested, %d of %d in use",
			errors.ErrResourceExhausted, size, total-int64(size), b.maxElements)
	}
	b.tensors.Add(1)
	for {
		peak := b.peak.Load()
		if total <= peak || b.peak.CompareAndSwap(peak, total) {
			break
		}
	}

	return &Tensor{
		shape:   append([]int(nil), shape...),
		data:    make([]float64, size),
		backend: b,
	}, nil
}

// Allocated is the number of live tensors.
func (b *Backend) Allocated() int {
	return int(b.tensors.Load())
}

func (b *Backend) Stats() Stats {
	return Stats{
		Tensors:      int(b.tensors.Load()),
		Elements:     int(b.elements.Load()),
		PeakElements: int(b.peak.Load()),
		MaxElements:  int(b.maxElements),
	}
}

func (b *Backend) release(size int) {
	b.tensors.Add(-1)
	b.elements.Add(-int64(size))
}
