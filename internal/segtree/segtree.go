// Package segtree provides fixed-size segment trees over an associative,
// commutative reduction with point update and range query in O(log n).
package segtree

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidSize indicates a tree size that is not a positive power of two.
	ErrInvalidSize = errors.New("segtree: size must be a positive power of two")
	// ErrIndexOutOfRange indicates a leaf index outside [0, Len()).
	ErrIndexOutOfRange = errors.New("segtree: index out of range")
	// ErrInvalidRange indicates lo > hi in a range query.
	ErrInvalidRange = errors.New("segtree: invalid range")
	// ErrMassOutOfRange indicates a prefix-sum lookup outside [0, Total()).
	ErrMassOutOfRange = errors.New("segtree: mass out of range")
)

// Tree is a segment tree with leaves stored at nodes[size:2*size] and the
// root at nodes[1]. Each internal node holds op applied to its children.
type Tree[T any] struct {
	size    int
	op      func(a, b T) T
	neutral T
	nodes   []T
}

// New builds a tree of the given number of leaves, all holding neutral.
func New[T any](size int, op func(a, b T) T, neutral T) (*Tree[T], error) {
	if size <= 0 || size&(size-1) != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}

	nodes := make([]T, 2*size)
	for i := range nodes {
		nodes[i] = neutral
	}

	return &Tree[T]{
		size:    size,
		op:      op,
		neutral: neutral,
		nodes:   nodes,
	}, nil
}

// Len returns the number of leaves.
func (t *Tree[T]) Len() int {
	return t.size
}

// Neutral returns the identity element of the reduction.
func (t *Tree[T]) Neutral() T {
	return t.neutral
}

// Set writes leaf i and recomputes its ancestors.
func (t *Tree[T]) Set(i int, v T) error {
	if i < 0 || i >= t.size {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, t.size)
	}

	pos := i + t.size
	t.nodes[pos] = v
	for pos > 1 {
		pos >>= 1
		t.nodes[pos] = t.op(t.nodes[2*pos], t.nodes[2*pos+1])
	}
	return nil
}

// Get returns the value stored at leaf i.
func (t *Tree[T]) Get(i int) (T, error) {
	if i < 0 || i >= t.size {
		return t.neutral, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, t.size)
	}
	return t.nodes[i+t.size], nil
}

// Reduce applies the reduction over leaves [lo, hi], both inclusive.
func (t *Tree[T]) Reduce(lo, hi int) (T, error) {
	if lo < 0 || hi >= t.size {
		return t.neutral, fmt.Errorf("%w: [%d, %d] not within [0, %d)", ErrIndexOutOfRange, lo, hi, t.size)
	}
	if lo > hi {
		return t.neutral, fmt.Errorf("%w: lo %d > hi %d", ErrInvalidRange, lo, hi)
	}

	res := t.neutral
	l, r := lo+t.size, hi+t.size+1
	for l < r {
		if l&1 == 1 {
			res = t.op(res, t.nodes[l])
			l++
		}
		if r&1 == 1 {
			r--
			res = t.op(res, t.nodes[r])
		}
		l >>= 1
		r >>= 1
	}
	return res, nil
}

// Total returns the reduction over every leaf.
func (t *Tree[T]) Total() T {
	return t.nodes[1]
}

// SumTree is a float64 tree under addition that also supports inverse
// prefix-sum lookup.
type SumTree struct {
	*Tree[float64]
}

// NewSum builds a sum tree with all leaves zero.
func NewSum(size int) (*SumTree, error) {
	tree, err := New(size, func(a, b float64) float64 { return a + b }, 0)
	if err != nil {
		return nil, err
	}
	return &SumTree{Tree: tree}, nil
}

// NewMin builds a min tree with all leaves +Inf.
func NewMin(size int) (*Tree[float64], error) {
	return New(size, math.Min, math.Inf(1))
}

// FindPrefixSum returns the smallest leaf i such that the sum of leaves
// [0, i] exceeds mass. mass must lie in [0, Total()).
func (s *SumTree) FindPrefixSum(mass float64) (int, error) {
	if mass < 0 || !(mass < s.Total()) {
		return 0, fmt.Errorf("%w: %g not in [0, %g)", ErrMassOutOfRange, mass, s.Total())
	}

	pos := 1
	for pos < s.size {
		left := 2 * pos
		if mass < s.nodes[left] {
			pos = left
		} else {
			mass -= s.nodes[left]
			pos = left + 1
		}
	}
	return pos - s.size, nil
}
