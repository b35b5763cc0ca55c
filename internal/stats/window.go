// Package stats provides fixed-window statistics over numeric samples.
package stats

import "math"

// Number is the set of sample types a Window can hold.
type Number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// Window tracks the last n samples in a ring buffer and reports on their
// statistical properties.
//
// All aggregate operations run over every slot in the window, including slots
// that have not been written yet (those hold zero). Callers that care about
// warm-up should compare TotalSamples against Len.
type Window[T Number] struct {
	samples []T
	index   int
	total   int64

	// Sentinels for Min/Max scans.
	lowest  T
	highest T
}

// FloatWindow is the flavor used for real-valued signals.
type FloatWindow = Window[float64]

// IntWindow is the flavor used for integer and count signals.
type IntWindow = Window[int64]

// New creates a window with exactly size slots. lowest and highest are the
// extreme values of T, used as the starting points of Max and Min.
// It panics if size < 1.
func New[T Number](size int, lowest, highest T) *Window[T] {
	if size < 1 {
		panic("stats: window size must be positive")
	}
	return &Window[T]{
		samples: make([]T, size),
		lowest:  lowest,
		highest: highest,
	}
}

// NewFloat creates a float64 window.
func NewFloat(size int) *FloatWindow {
	return New[float64](size, -math.MaxFloat64, math.MaxFloat64)
}

// NewInt creates an int64 window.
func NewInt(size int) *IntWindow {
	return New[int64](size, math.MinInt64, math.MaxInt64)
}

// Add records one sample, overwriting the oldest slot.
func (w *Window[T]) Add(sample T) {
	w.samples[w.index] = sample
	w.index++
	if w.index == len(w.samples) {
		w.index = 0
	}
	w.total++
}

// Len returns the window size.
func (w *Window[T]) Len() int { return len(w.samples) }

// TotalSamples returns how many samples have ever been added.
func (w *Window[T]) TotalSamples() int64 { return w.total }

// Sum returns the sum of all slots.
func (w *Window[T]) Sum() T {
	var sum T
	for _, s := range w.samples {
		sum += s
	}
	return sum
}

// Average returns Sum divided by the window size. For integer windows the
// division truncates toward zero.
func (w *Window[T]) Average() T {
	return w.Sum() / T(len(w.samples))
}

// Min returns the smallest slot value.
func (w *Window[T]) Min() T {
	min := w.highest
	for _, s := range w.samples {
		if s < min {
			min = s
		}
	}
	return min
}

// Max returns the largest slot value.
func (w *Window[T]) Max() T {
	max := w.lowest
	for _, s := range w.samples {
		if s > max {
			max = s
		}
	}
	return max
}

// First returns the chronologically oldest slot in the window.
func (w *Window[T]) First() T {
	return w.samples[w.index]
}

// Last returns the most recently written slot.
func (w *Window[T]) Last() T {
	if w.index == 0 {
		return w.samples[len(w.samples)-1]
	}
	return w.samples[w.index-1]
}

// Values returns a copy of the window, oldest first.
func (w *Window[T]) Values() []T {
	out := make([]T, 0, len(w.samples))
	out = append(out, w.samples[w.index:]...)
	out = append(out, w.samples[:w.index]...)
	return out
}
