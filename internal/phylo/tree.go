package phylo

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

var (
	// ErrTooFewLeaves indicates a tree request with fewer than two leaves.
	ErrTooFewLeaves = errors.New("phylo: tree needs at least two leaves")

	// ErrBranchLength indicates a negative or non-finite branch length.
	ErrBranchLength = errors.New("phylo: invalid branch length")

	// ErrSingular indicates a tree whose covariance matrix cannot be inverted.
	ErrSingular = errors.New("phylo: tree covariance is singular")

	// ErrMalformed indicates a broken arena (bad parent/child links).
	ErrMalformed = errors.New("phylo: malformed tree")
)

// Node is one arena slot. Parent is -1 for the root.
type Node struct {
	Parent   int
	Children []int
	Length   float64
	Label    string
}

// IsLeaf reports whether the node has no children.
func (n Node) IsLeaf() bool { return len(n.Children) == 0 }

type Tree struct {
	Nodes []Node
	Root  int

	leaves []int
}

// minBranch keeps terminal branches away from zero so that sister species
// never produce identical covariance rows.
const minBranch = 0.01

// Random grows a random bifurcating tree with n leaves. Each internal node
// splits its leaf count uniformly; branch lengths are uniform on
// [minBranch, 1). Leaves are labelled sp1..spN in preorder.
func Random(rng *rand.Rand, n int) (*Tree, error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewLeaves, n)
	}

	t := &Tree{Nodes: make([]Node, 0, 2*n-1)}
	t.Root = t.addNode(-1, 0)
	t.grow(rng, t.Root, n)
	t.index()

	for i, leaf := range t.leaves {
		t.Nodes[leaf].Label = fmt.Sprintf("sp%d", i+1)
	}
	return t, nil
}

func (t *Tree) grow(rng *rand.Rand, node, n int) {
	if n == 1 {
		return
	}
	left := 1 + rng.Intn(n-1)
	for _, k := range []int{left, n - left} {
		length := minBranch + (1-minBranch)*rng.Float64()
		child := t.addNode(node, length)
		t.grow(rng, child, k)
	}
}

func (t *Tree) addNode(parent int, length float64) int {
	idx := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{Parent: parent, Length: length})
	if parent >= 0 {
		t.Nodes[parent].Children = append(t.Nodes[parent].Children, idx)
	}
	return idx
}

// index caches the preorder leaf list.
func (t *Tree) index() {
	t.leaves = t.leaves[:0]
	t.Preorder(func(i int) {
		if t.Nodes[i].IsLeaf() {
			t.leaves = append(t.leaves, i)
		}
	})
}

// Preorder visits every node, parents before children.
func (t *Tree) Preorder(visit func(i int)) {
	stack := []int{t.Root}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visit(i)
		ch := t.Nodes[i].Children
		for k := len(ch) - 1; k >= 0; k-- {
			stack = append(stack, ch[k])
		}
	}
}

// Leaves returns the node indices of the leaves in preorder.
func (t *Tree) Leaves() []int {
	if t.leaves == nil {
		t.index()
	}
	return t.leaves
}

func (t *Tree) NumLeaves() int { return len(t.Leaves()) }

// Labels returns leaf labels in leaf order.
func (t *Tree) Labels() []string {
	leaves := t.Leaves()
	out := make([]string, len(leaves))
	for i, leaf := range leaves {
		out[i] = t.Nodes[leaf].Label
	}
	return out
}

// Depth is the summed branch length from the root to node i.
func (t *Tree) Depth(i int) float64 {
	d := 0.0
	for i != t.Root {
		d += t.Nodes[i].Length
		i = t.Nodes[i].Parent
	}
	return d
}

// Validate checks arena links and branch lengths.
func (t *Tree) Validate() error {
	if t.Root < 0 || t.Root >= len(t.Nodes) {
		return fmt.Errorf("%w: root index %d", ErrMalformed, t.Root)
	}
	if t.Nodes[t.Root].Parent != -1 {
		return fmt.Errorf("%w: root has a parent", ErrMalformed)
	}
	for i, n := range t.Nodes {
		for _, c := range n.Children {
			if c < 0 || c >= len(t.Nodes) || c == t.Root {
				return fmt.Errorf("%w: node %d has child index %d", ErrMalformed, i, c)
			}
			if t.Nodes[c].Parent != i {
				return fmt.Errorf("%w: child %d does not point back to %d", ErrMalformed, c, i)
			}
		}
		if i != t.Root && (n.Length < 0 || math.IsNaN(n.Length) || math.IsInf(n.Length, 0)) {
			return fmt.Errorf("%w: node %d has length %v", ErrBranchLength, i, n.Length)
		}
	}
	seen := 0
	t.Preorder(func(int) { seen++ })
	if seen != len(t.Nodes) {
		return fmt.Errorf("%w: %d of %d nodes reachable from root", ErrMalformed, seen, len(t.Nodes))
	}
	t.index()
	if t.NumLeaves() < 2 {
		return ErrTooFewLeaves
	}
	return nil
}
