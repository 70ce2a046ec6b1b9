package basis

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestBSplinePartitionOfUnity(t *testing.T) {
	b, err := NewBSpline(1, 50, 10, 3)
	if err != nil {
		t.Fatalf("new basis: %v", err)
	}
	row := make([]float64, b.Dim())
	for x := 1.0; x <= 50; x += 0.7 {
		b.Eval(x, row)
		sum := 0.0
		for _, v := range row {
			if v < -1e-12 {
				t.Fatalf("negative basis value %g at x=%f", v, x)
			}
			sum += v
		}
		if math.Abs(sum-1) > 1e-10 {
			t.Errorf("row sum at x=%f is %f", x, sum)
		}
	}

	b.Eval(50, row)
	sum := 0.0
	for _, v := range row {
		sum += v
	}
	if math.Abs(sum-1) > 1e-10 {
		t.Errorf("row sum at upper end is %f", sum)
	}
}

func TestBSplineLocalSupport(t *testing.T) {
	b, _ := NewBSpline(0, 10, 8, 3)
	row := make([]float64, b.Dim())
	b.Eval(0.1, row)
	nonzero := 0
	for _, v := range row {
		if v != 0 {
			nonzero++
		}
	}
	if nonzero > 4 {
		t.Errorf("cubic basis has %d active functions, want at most 4", nonzero)
	}
}

func TestBSplineErrors(t *testing.T) {
	if _, err := NewBSpline(0, 1, 3, 3); !errors.Is(err, ErrBasisSize) {
		t.Errorf("expected ErrBasisSize, got %v", err)
	}
	if _, err := NewBSpline(1, 1, 10, 3); err == nil {
		t.Error("expected error for empty range")
	}
}

func TestDifferencePenaltyNullSpace(t *testing.T) {
	n := 8
	for order := 1; order <= 3; order++ {
		s := DifferencePenalty(n, order)
		// polynomials of degree < order are annihilated
		for deg := 0; deg < order; deg++ {
			v := mat.NewVecDense(n, nil)
			for i := 0; i < n; i++ {
				v.SetVec(i, math.Pow(float64(i), float64(deg)))
			}
			var out mat.VecDense
			out.MulVec(s, v)
			if mat.Norm(&out, 2) > 1e-9 {
				t.Errorf("order %d does not annihilate degree %d", order, deg)
			}
		}
		vals, ok := Eigenvalues(s, 1e-10)
		if !ok {
			t.Fatal("eigen failed")
		}
		zeros := 0
		for _, v := range vals {
			if v == 0 {
				zeros++
			}
		}
		if zeros != order {
			t.Errorf("order %d: null space dimension %d", order, zeros)
		}
	}
}

func TestMRFChainMatchesFirstDifference(t *testing.T) {
	n := 6
	mrf := MRF(Chain(n))
	diff := DifferencePenalty(n, 1)
	if !mat.EqualApprox(mrf, diff, 1e-12) {
		t.Errorf("chain MRF differs from first-difference penalty:\n%v\n%v",
			mat.Formatted(mrf), mat.Formatted(diff))
	}
}

func TestKron(t *testing.T) {
	a := Identity(3)
	b := MRF(Chain(2))
	k := Kron(a, b)
	n, _ := k.Dims()
	if n != 6 {
		t.Fatalf("expected 6x6, got %d", n)
	}
	if k.At(0, 1) != -1 || k.At(1, 2) != 0 || k.At(4, 5) != -1 {
		t.Errorf("unexpected kronecker layout:\n%v", mat.Formatted(k))
	}
}
