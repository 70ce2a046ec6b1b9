package gam

import (
	"math"

	"github.com/san-kum/phylogam/internal/sim"
	"gonum.org/v1/gonum/mat"
)

// entry is one upper-triangle element of a penalty embedded in the full
// coefficient vector.
type entry struct {
	i, j int
	v    float64
}

// design holds the weighted cross products of one dataset, which are all
// the REML criterion needs.
type design struct {
	n, p    int
	offsets []int

	xtwx    *mat.SymDense
	xtwy    *mat.VecDense
	ytwy    float64
	sumLogW float64

	names     []string
	penalties [][]entry
	owner     []int // term index per penalty
	nullDim   int
}

func assemble(terms []Term, rows []sim.Row) (*design, error) {
	d := &design{n: len(rows), offsets: make([]int, len(terms))}
	for k, t := range terms {
		d.offsets[k] = d.p
		d.p += t.Dim()
		d.nullDim += t.NullSpaceDim()
	}

	xw := mat.NewDense(d.n, d.p, nil)
	yw := mat.NewVecDense(d.n, nil)
	for i, r := range rows {
		row := xw.RawRowView(i)
		for k, t := range terms {
			if err := t.Fill(r, row[d.offsets[k]:d.offsets[k]+t.Dim()]); err != nil {
				return nil, err
			}
		}
		sw := math.Sqrt(r.Weight)
		for c := range row {
			row[c] *= sw
		}
		yw.SetVec(i, sw*r.Y)
		d.ytwy += r.Weight * r.Y * r.Y
		d.sumLogW += math.Log(r.Weight)
	}

	d.xtwx = mat.NewSymDense(d.p, nil)
	d.xtwx.SymOuterK(1, xw.T())
	d.xtwy = mat.NewVecDense(d.p, nil)
	d.xtwy.MulVec(xw.T(), yw)

	for k, t := range terms {
		off := d.offsets[k]
		for _, pen := range t.Penalties() {
			if r, _ := pen.S.Dims(); r != t.Dim() {
				return nil, ErrPenaltyShape
			}
			var es []entry
			for i := 0; i < t.Dim(); i++ {
				for j := i; j < t.Dim(); j++ {
					if v := pen.S.At(i, j); v != 0 {
						es = append(es, entry{off + i, off + j, v})
					}
				}
			}
			d.names = append(d.names, pen.Name)
			d.penalties = append(d.penalties, es)
			d.owner = append(d.owner, k)
		}
	}
	return d, nil
}

// solution is the penalized fit at one set of smoothing parameters.
type solution struct {
	lambdas []float64
	chol    mat.Cholesky
	beta    mat.VecDense
	dev     float64
	reml    float64
}

// solve factors X'WX + sum(lambda_j S_j) and evaluates the REML criterion
// with the scale parameter profiled out.
func (d *design) solve(terms []Term, lambdas []float64) (*solution, error) {
	a := mat.NewSymDense(d.p, nil)
	a.CopySym(d.xtwx)
	for j, es := range d.penalties {
		for _, e := range es {
			a.SetSym(e.i, e.j, a.At(e.i, e.j)+lambdas[j]*e.v)
		}
	}

	s := &solution{lambdas: lambdas}
	if ok := s.chol.Factorize(a); !ok {
		return nil, ErrNotPositiveDefinite
	}
	if err := s.chol.SolveVecTo(&s.beta, d.xtwy); err != nil {
		return nil, err
	}

	// y'Wy - b'X'Wy equals the weighted residual sum of squares plus b'Sb
	s.dev = d.ytwy - mat.Dot(&s.beta, d.xtwy)
	if s.dev <= 0 {
		s.dev = math.SmallestNonzeroFloat64
	}

	logDetS := 0.0
	for k, t := range terms {
		var lk []float64
		for j, owner := range d.owner {
			if owner == k {
				lk = append(lk, lambdas[j])
			}
		}
		if len(lk) > 0 {
			logDetS += t.LogDet(lk)
		}
	}

	r := float64(d.n - d.nullDim)
	s.reml = 0.5 * (r*(1+math.Log(2*math.Pi*s.dev/r)) + s.chol.LogDet() - logDetS - d.sumLogW)
	return s, nil
}

// scale is the profiled REML estimate of the residual variance.
func (d *design) scale(s *solution) float64 {
	return s.dev / float64(d.n-d.nullDim)
}
