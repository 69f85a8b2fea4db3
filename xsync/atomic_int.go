package xsync

import "sync/atomic"

// AtomicInt64 is a lock-free counter, used for the predictor's per-driver
// win/podium/points tallies which many ensemble-member goroutines increment
// concurrently.
type AtomicInt64 struct {
	val int64
}

// NewAtomicInt64 returns a counter initialized to val.
func NewAtomicInt64(val int64) *AtomicInt64 {
	return &AtomicInt64{val: val}
}

// Incr increments the counter by one and returns the new value.
func (ai *AtomicInt64) Incr() int64 {
	return atomic.AddInt64(&ai.val, 1)
}

// Add adds delta to the counter and returns the new value.
func (ai *AtomicInt64) Add(delta int64) int64 {
	return atomic.AddInt64(&ai.val, delta)
}

// Read atomically reads the counter.
func (ai *AtomicInt64) Read() int64 {
	return atomic.LoadInt64(&ai.val)
}
