package phylo

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// VCV returns the phylogenetic variance-covariance matrix among leaves:
// entry (i, j) is the branch length shared by the root paths of leaves i
// and j, so the diagonal holds root-to-tip depths.
func (t *Tree) VCV() *mat.SymDense {
	leaves := t.Leaves()
	pos := make(map[int]int, len(leaves))
	for i, leaf := range leaves {
		pos[leaf] = i
	}

	// descendant leaf positions per node, filled bottom-up
	desc := make([][]int, len(t.Nodes))
	order := make([]int, 0, len(t.Nodes))
	t.Preorder(func(i int) { order = append(order, i) })
	for k := len(order) - 1; k >= 0; k-- {
		i := order[k]
		if p, ok := pos[i]; ok {
			desc[i] = []int{p}
			continue
		}
		for _, c := range t.Nodes[i].Children {
			desc[i] = append(desc[i], desc[c]...)
		}
	}

	n := len(leaves)
	c := mat.NewSymDense(n, nil)
	for i, node := range t.Nodes {
		if i == t.Root {
			continue
		}
		d := desc[i]
		for a := 0; a < len(d); a++ {
			for b := a; b < len(d); b++ {
				c.SetSym(d[a], d[b], c.At(d[a], d[b])+node.Length)
			}
		}
	}
	return c
}

// Precision inverts the VCV. A tree with two leaves at zero distance from
// each other (or zero depth) has no inverse.
func (t *Tree) Precision() (*mat.SymDense, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(t.VCV()); !ok {
		return nil, ErrSingular
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	return &inv, nil
}

// BrownianTraits evolves a trait from zero at the root, adding
// N(0, sigma^2 * length) along every branch, and returns the leaf values.
func BrownianTraits(rng *rand.Rand, t *Tree, sigma float64) []float64 {
	values := make([]float64, len(t.Nodes))
	t.Preorder(func(i int) {
		if i == t.Root {
			return
		}
		node := t.Nodes[i]
		values[i] = values[node.Parent] + sigma*math.Sqrt(node.Length)*rng.NormFloat64()
	})

	leaves := t.Leaves()
	out := make([]float64, len(leaves))
	for i, leaf := range leaves {
		out[i] = values[leaf]
	}
	return out
}
