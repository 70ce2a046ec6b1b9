package basis

import (
	"gonum.org/v1/gonum/mat"
)

// Difference returns the (n-order) x n matrix of order-th differences.
func Difference(n, order int) *mat.Dense {
	rows := n - order
	if rows < 1 {
		return mat.NewDense(1, n, nil)
	}

	// binomial coefficients with alternating sign
	coef := []float64{1}
	for k := 0; k < order; k++ {
		next := make([]float64, len(coef)+1)
		for i, c := range coef {
			next[i] -= c
			next[i+1] += c
		}
		coef = next
	}

	d := mat.NewDense(rows, n, nil)
	for r := 0; r < rows; r++ {
		for i, c := range coef {
			d.Set(r, r+i, c)
		}
	}
	return d
}

// DifferencePenalty is D'D for the order-th difference matrix D.
func DifferencePenalty(n, order int) *mat.SymDense {
	s := mat.NewSymDense(n, nil)
	s.SymOuterK(1, Difference(n, order).T())
	return s
}

// MRF builds a Markov random field penalty from a neighbourhood list:
// the diagonal holds neighbour counts and each neighbour pair gets -1.
func MRF(neighbours [][]int) *mat.SymDense {
	n := len(neighbours)
	s := mat.NewSymDense(n, nil)
	for i, nb := range neighbours {
		s.SetSym(i, i, float64(len(nb)))
		for _, j := range nb {
			if j != i {
				s.SetSym(i, j, -1)
			}
		}
	}
	return s
}

// Chain returns the neighbourhood of n ordered levels (i-1, i+1).
func Chain(n int) [][]int {
	nb := make([][]int, n)
	for i := range nb {
		if i > 0 {
			nb[i] = append(nb[i], i-1)
		}
		if i < n-1 {
			nb[i] = append(nb[i], i+1)
		}
	}
	return nb
}

// Identity returns the n x n identity as a symmetric matrix.
func Identity(n int) *mat.SymDense {
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		s.SetSym(i, i, 1)
	}
	return s
}

// Kron returns the Kronecker product of two symmetric matrices.
func Kron(a, b mat.Symmetric) *mat.SymDense {
	var k mat.Dense
	k.Kronecker(a, b)
	n, _ := k.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, k.At(i, j))
		}
	}
	return s
}

// Eigenvalues returns the eigenvalues of s in ascending order, with
// round-off below tol*max clamped to zero.
func Eigenvalues(s mat.Symmetric, tol float64) ([]float64, bool) {
	var eig mat.EigenSym
	if !eig.Factorize(s, false) {
		return nil, false
	}
	vals := eig.Values(nil)
	max := 0.0
	for _, v := range vals {
		if v > max {
			max = v
		}
	}
	for i, v := range vals {
		if v < tol*max {
			vals[i] = 0
		}
	}
	return vals, true
}
