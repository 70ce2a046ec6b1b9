// Package basis builds spline bases and smoothing penalty matrices.
package basis

import (
	"errors"
	"fmt"
	"math"
)

// ErrBasisSize indicates a basis too small for its degree.
var ErrBasisSize = errors.New("basis: number of functions must exceed degree")

// BSpline is a B-spline basis on evenly spaced knots covering [Lo, Hi].
// Knots extend degree steps beyond each end so every function in the
// range has full support, which keeps the rows a partition of unity.
type BSpline struct {
	Lo, Hi float64
	Degree int

	n     int
	h     float64
	knots []float64
}

func NewBSpline(lo, hi float64, n, degree int) (*BSpline, error) {
	if degree < 0 || n <= degree {
		return nil, fmt.Errorf("%w: n=%d degree=%d", ErrBasisSize, n, degree)
	}
	if !(hi > lo) {
		return nil, fmt.Errorf("basis: empty range [%v, %v]", lo, hi)
	}

	h := (hi - lo) / float64(n-degree)
	knots := make([]float64, n+degree+1)
	for j := range knots {
		knots[j] = lo + float64(j-degree)*h
	}
	return &BSpline{Lo: lo, Hi: hi, Degree: degree, n: n, h: h, knots: knots}, nil
}

// Dim is the number of basis functions.
func (b *BSpline) Dim() int { return b.n }

// Eval fills dst (length Dim) with the basis values at x. Values outside
// [Lo, Hi] are evaluated on the nearest end span.
func (b *BSpline) Eval(x float64, dst []float64) {
	for i := range dst {
		dst[i] = 0
	}

	p := b.Degree
	span := p + int(math.Floor((x-b.Lo)/b.h))
	if span < p {
		span = p
	}
	if span > b.n-1 {
		span = b.n - 1
	}

	// Cox-de Boor recursion on the active span
	k := b.knots
	vals := make([]float64, p+1)
	left := make([]float64, p+1)
	right := make([]float64, p+1)
	vals[0] = 1
	for d := 1; d <= p; d++ {
		left[d] = x - k[span+1-d]
		right[d] = k[span+d] - x
		saved := 0.0
		for r := 0; r < d; r++ {
			tmp := vals[r] / (right[r+1] + left[d-r])
			vals[r] = saved + right[r+1]*tmp
			saved = left[d-r] * tmp
		}
		vals[d] = saved
	}

	for r := 0; r <= p; r++ {
		dst[span-p+r] = vals[r]
	}
}
