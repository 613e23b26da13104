package utils

import (
	"container/heap"
	"math"
)

// Magnitude calculates the Euclidean magnitude (L2 norm) of a float32 vector.
func Magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Magnitude64 calculates the L2 norm of a float64 vector.
func Magnitude64(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Translate returns h + r - t, computed in float64.
// Returns nil if the vectors have different lengths.
func Translate(h, r, t []float32) []float64 {
	if len(h) != len(r) || len(h) != len(t) {
		return nil
	}
	out := make([]float64, len(h))
	for i := range h {
		out[i] = float64(h[i]) + float64(r[i]) - float64(t[i])
	}
	return out
}

// L2Distance calculates ||a - b||. Returns +Inf if lengths differ.
func L2Distance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// AddVectors returns a + b. Returns nil if lengths differ.
func AddVectors(a, b []float32) []float32 {
	if len(a) != len(b) {
		return nil
	}
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

// Scale returns v / divisor as a new slice.
func Scale(v []float64, divisor float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / divisor
	}
	return out
}

// AXPY updates dst in place: dst[i] += alpha * x[i].
// dst and x must have the same length; extra elements of either are ignored.
func AXPY(dst []float32, alpha float64, x []float64) {
	n := len(dst)
	if len(x) < n {
		n = len(x)
	}
	for i := 0; i < n; i++ {
		dst[i] = float32(float64(dst[i]) + alpha*x[i])
	}
}

// ScoredItem represents an item with a score for top-K selection.
// Index is the item's position in the input and breaks ties.
type ScoredItem[T any] struct {
	Item  T
	Score float64
	Index int
}

// before reports whether a ranks ahead of b: smaller score first, then earlier index.
func before[T any](a, b ScoredItem[T]) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Index < b.Index
}

// maxHeap keeps the worst of the current best K at the root so it can be evicted.
type maxHeap[T any] []ScoredItem[T]

func (h maxHeap[T]) Len() int           { return len(h) }
func (h maxHeap[T]) Less(i, j int) bool { return before(h[j], h[i]) }
func (h maxHeap[T]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *maxHeap[T]) Push(x any) {
	*h = append(*h, x.(ScoredItem[T]))
}

func (h *maxHeap[T]) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// TopKSmallest returns the K items with the lowest scores in ascending order.
// Equal scores keep their input order (by Index). O(n log k).
func TopKSmallest[T any](items []ScoredItem[T], k int) []ScoredItem[T] {
	if k <= 0 || len(items) == 0 {
		return nil
	}
	if k > len(items) {
		k = len(items)
	}

	h := make(maxHeap[T], 0, k)
	for _, item := range items {
		if h.Len() < k {
			heap.Push(&h, item)
		} else if before(item, h[0]) {
			h[0] = item
			heap.Fix(&h, 0)
		}
	}

	result := make([]ScoredItem[T], h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&h).(ScoredItem[T])
	}
	return result
}
