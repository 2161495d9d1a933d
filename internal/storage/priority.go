package storage

import (
	"errors"
	"fmt"
	"math"

	"github.com/cartridge/replaybuffer/internal/segtree"
)

// PriorityIndex keeps priority^alpha for every slot in a sum tree and a
// min tree that share leaf indices. Leaves [capacity, TreeSize()) are
// sentinels and never written.
type PriorityIndex struct {
	capacity int
	alpha    float64
	sum      *segtree.SumTree
	min      *segtree.Tree[float64]
}

// NewPriorityIndex sizes both trees to the next power of two >= capacity.
func NewPriorityIndex(capacity int, alpha float64) (*PriorityIndex, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidArgument, capacity)
	}
	if alpha < 0 || math.IsNaN(alpha) || math.IsInf(alpha, 0) {
		return nil, fmt.Errorf("%w: alpha must be finite and >= 0, got %g", ErrInvalidArgument, alpha)
	}

	treeSize := 1
	for treeSize < capacity {
		treeSize *= 2
	}

	sum, err := segtree.NewSum(treeSize)
	if err != nil {
		return nil, err
	}
	min, err := segtree.NewMin(treeSize)
	if err != nil {
		return nil, err
	}

	return &PriorityIndex{
		capacity: capacity,
		alpha:    alpha,
		sum:      sum,
		min:      min,
	}, nil
}

// Alpha returns the prioritization exponent.
func (p *PriorityIndex) Alpha() float64 {
	return p.alpha
}

// TreeSize returns the number of leaves in each tree.
func (p *PriorityIndex) TreeSize() int {
	return p.sum.Len()
}

// Update sets leaf i to priority^alpha in both trees.
func (p *PriorityIndex) Update(i int, priority float64) error {
	v, err := p.leafValue(priority)
	if err != nil {
		return err
	}
	if i < 0 || i >= p.TreeSize() {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, p.TreeSize())
	}
	if i >= p.capacity {
		return fmt.Errorf("%w: %d >= capacity %d", ErrInvalidIndex, i, p.capacity)
	}

	if err := p.sum.Set(i, v); err != nil {
		return err
	}
	return p.min.Set(i, v)
}

// Leaf returns the stored priority^alpha at i.
func (p *PriorityIndex) Leaf(i int) (float64, error) {
	return p.sum.Get(i)
}

// RangeSum sums leaves [lo, hi] inclusive.
func (p *PriorityIndex) RangeSum(lo, hi int) (float64, error) {
	return p.sum.Reduce(lo, hi)
}

// RangeMin returns the minimum over leaves [lo, hi] inclusive.
func (p *PriorityIndex) RangeMin(lo, hi int) (float64, error) {
	return p.min.Reduce(lo, hi)
}

// TotalSum is RangeSum over the whole tree.
func (p *PriorityIndex) TotalSum() float64 {
	return p.sum.Total()
}

// TotalMin is RangeMin over the whole tree; +Inf while nothing is written.
func (p *PriorityIndex) TotalMin() float64 {
	return p.min.Total()
}

// FindPrefixSum maps mass in [0, TotalSum()) to the smallest leaf whose
// inclusive prefix sum exceeds it. Any other mass yields ErrMassOutOfRange.
func (p *PriorityIndex) FindPrefixSum(mass float64) (int, error) {
	i, err := p.sum.FindPrefixSum(mass)
	if errors.Is(err, segtree.ErrMassOutOfRange) {
		return 0, fmt.Errorf("%w: %g not in [0, %g)", ErrMassOutOfRange, mass, p.sum.Total())
	}
	return i, err
}

// CheckPriority reports whether priority can be stored: it must be finite
// and positive, and so must priority^alpha.
func (p *PriorityIndex) CheckPriority(priority float64) error {
	_, err := p.leafValue(priority)
	return err
}

func (p *PriorityIndex) leafValue(priority float64) (float64, error) {
	if !(priority > 0) || math.IsInf(priority, 0) {
		return 0, fmt.Errorf("%w: got %g", ErrInvalidPriority, priority)
	}
	v := math.Pow(priority, p.alpha)
	if !(v > 0) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %g^%g = %g", ErrInvalidPriority, priority, p.alpha, v)
	}
	return v, nil
}
