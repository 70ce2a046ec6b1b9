// Package gp samples zero-mean Gaussian processes over integer time points.
package gp

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Jitter is added to the covariance diagonal before factorization.
const Jitter = 1e-9

var (
	// ErrParameterBounds indicates a kernel parameter outside its valid range.
	ErrParameterBounds = errors.New("gp: parameter out of valid bounds")

	// ErrNotPositiveDefinite indicates the jittered covariance has no Cholesky factor.
	ErrNotPositiveDefinite = errors.New("gp: covariance is not positive definite")
)

// Kernel is a stationary covariance function.
type Kernel interface {
	Cov(a, b float64) float64
}

// SquaredExponential is alpha^2 * exp(-0.5 * ((a-b)/rho)^2).
type SquaredExponential struct {
	Alpha float64
	Rho   float64
}

func (k SquaredExponential) Cov(a, b float64) float64 {
	d := (a - b) / k.Rho
	return k.Alpha * k.Alpha * math.Exp(-0.5*d*d)
}

func (k SquaredExponential) Validate() error {
	if k.Rho <= 0 || math.IsNaN(k.Rho) {
		return fmt.Errorf("%w: rho must be positive, got %v", ErrParameterBounds, k.Rho)
	}
	if k.Alpha < 0 || math.IsNaN(k.Alpha) {
		return fmt.Errorf("%w: alpha must be non-negative, got %v", ErrParameterBounds, k.Alpha)
	}
	return nil
}

// Covariance evaluates k over the time points 1..n, without jitter.
func Covariance(k Kernel, n int) *mat.SymDense {
	c := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c.SetSym(i, j, k.Cov(float64(i+1), float64(j+1)))
		}
	}
	return c
}

// Draw returns one sample of length n from the process defined by k.
func Draw(rng *rand.Rand, k Kernel, n int) ([]float64, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: n must be positive, got %d", ErrParameterBounds, n)
	}

	c := Covariance(k, n)
	for i := 0; i < n; i++ {
		c.SetSym(i, i, c.At(i, i)+Jitter)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(c); !ok {
		return nil, ErrNotPositiveDefinite
	}
	var l mat.TriDense
	chol.LTo(&l)

	z := make([]float64, n)
	for i := range z {
		z[i] = rng.NormFloat64()
	}
	var x mat.VecDense
	x.MulVec(&l, mat.NewVecDense(n, z))
	return x.RawVector().Data, nil
}

// Sample draws n values from a squared-exponential GP with the given
// amplitude and length-scale.
func Sample(rng *rand.Rand, n int, alpha, rho float64) ([]float64, error) {
	k := SquaredExponential{Alpha: alpha, Rho: rho}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return Draw(rng, k, n)
}
