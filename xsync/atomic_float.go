// Package xsync provides lock-free atomic numeric helpers used where many
// goroutines update shared counters concurrently, such as the predictor's
// per-driver ensemble tallies.
package xsync

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// AtomicFloat64 encapsulates a float64 for non-locking atomic operations.
// Beware the tight guidelines around unsafe.Pointer: the critical region
// between taking the pointer and using it must stay minimal, since the GC
// may relocate the backing variable between those two points.
type AtomicFloat64 struct {
	val float64
}

// NewAtomicFloat64 encapsulates a float64 for atomic operations.
func NewAtomicFloat64(val float64) *AtomicFloat64 {
	return &AtomicFloat64{val: val}
}

// AtomicRead atomically reads the float64, synchronized with main memory.
func (af *AtomicFloat64) AtomicRead() float64 {
	bits := atomic.LoadUint64((*uint64)(unsafe.Pointer(&af.val)))
	return math.Float64frombits(bits)
}

// AtomicAdd adds addend to the float64 via compare-and-swap. If the value
// changed between read and swap, succeeded is false and the caller decides
// whether to retry; we never loop silently, since a silent retry can hide
// lost updates under contention.
func (af *AtomicFloat64) AtomicAdd(addend float64) (newVal float64, succeeded bool) {
	old := af.AtomicRead()
	newVal = old + addend
	succeeded = atomic.CompareAndSwapUint64(
		(*uint64)(unsafe.Pointer(&af.val)),
		math.Float64bits(old),
		math.Float64bits(newVal))
	return
}

// AtomicSet sets the float64, returns true on success.
func (af *AtomicFloat64) AtomicSet(newVal float64) (succeeded bool) {
	old := af.AtomicRead()
	succeeded = atomic.CompareAndSwapUint64(
		(*uint64)(unsafe.Pointer(&af.val)),
		math.Float64bits(old),
		math.Float64bits(newVal))
	return
}
