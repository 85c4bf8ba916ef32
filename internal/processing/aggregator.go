package processing

import (
	"sync"

	"intrinsics-map-go/internal/types"
)

// Accumulator keeps a running element-wise sum of intrinsic matrices and the
// number of samples folded in. It is meant for a single producer; reads from
// other goroutines are safe.
type Accumulator struct {
	mu    sync.RWMutex
	sum   types.Matrix3x3
	count uint64
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Update adds sample into the sum and returns the new average.
func (a *Accumulator) Update(sample types.Matrix3x3) types.Matrix3x3 {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, v := range sample {
		a.sum[i] += v
	}
	a.count++
	return a.averageLocked()
}

// CurrentAverage returns false until the first sample arrives.
func (a *Accumulator) CurrentAverage() (types.Matrix3x3, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.count == 0 {
		return types.Matrix3x3{}, false
	}
	return a.averageLocked(), true
}

func (a *Accumulator) Count() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.count
}

// Sum returns a copy of the running sum.
func (a *Accumulator) Sum() types.Matrix3x3 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sum
}

// averageLocked scales the sum by 1/count in single precision.
func (a *Accumulator) averageLocked() types.Matrix3x3 {
	scale := 1 / float32(a.count)
	var avg types.Matrix3x3
	for i, v := range a.sum {
		avg[i] = v * scale
	}
	return avg
}
