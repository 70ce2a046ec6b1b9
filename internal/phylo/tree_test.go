package phylo

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestRandomTree(t *testing.T) {
	for _, n := range []int{2, 3, 12, 40} {
		tree, err := Random(rand.New(rand.NewSource(int64(n))), n)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if tree.NumLeaves() != n {
			t.Errorf("n=%d: expected %d leaves, got %d", n, n, tree.NumLeaves())
		}
		if len(tree.Nodes) != 2*n-1 {
			t.Errorf("n=%d: expected %d nodes, got %d", n, 2*n-1, len(tree.Nodes))
		}
		for i, node := range tree.Nodes {
			if !node.IsLeaf() && len(node.Children) != 2 {
				t.Errorf("n=%d: node %d has %d children", n, i, len(node.Children))
			}
		}
		if err := tree.Validate(); err != nil {
			t.Errorf("n=%d: validate: %v", n, err)
		}
	}
}

func TestRandomTreeTooSmall(t *testing.T) {
	_, err := Random(rand.New(rand.NewSource(1)), 1)
	if !errors.Is(err, ErrTooFewLeaves) {
		t.Fatalf("expected ErrTooFewLeaves, got %v", err)
	}
}

func TestRandomTreeDeterministic(t *testing.T) {
	a, _ := Random(rand.New(rand.NewSource(7)), 10)
	b, _ := Random(rand.New(rand.NewSource(7)), 10)
	if a.Newick() != b.Newick() {
		t.Error("same seed produced different trees")
	}
}

func TestVCV(t *testing.T) {
	tree, err := ParseNewick("((a:1,b:2):0.5,c:3);")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	c := tree.VCV()

	want := [][]float64{
		{1.5, 0.5, 0},
		{0.5, 2.5, 0},
		{0, 0, 3},
	}
	for i := range want {
		for j := range want[i] {
			if math.Abs(c.At(i, j)-want[i][j]) > 1e-12 {
				t.Errorf("vcv[%d][%d] = %f, want %f", i, j, c.At(i, j), want[i][j])
			}
		}
	}
}

func TestVCVProperties(t *testing.T) {
	tree, _ := Random(rand.New(rand.NewSource(3)), 12)
	c := tree.VCV()
	n := tree.NumLeaves()

	for i, leaf := range tree.Leaves() {
		if math.Abs(c.At(i, i)-tree.Depth(leaf)) > 1e-12 {
			t.Errorf("diag %d = %f, depth %f", i, c.At(i, i), tree.Depth(leaf))
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(c, false) {
		t.Fatal("eigen decomposition failed")
	}
	for _, v := range eig.Values(nil) {
		if v <= 0 {
			t.Errorf("non-positive eigenvalue %g", v)
		}
	}

	prec, err := tree.Precision()
	if err != nil {
		t.Fatalf("precision: %v", err)
	}
	var prod mat.Dense
	prod.Mul(c, prec)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			want := 0.0
			if i == j {
				want = 1
			}
			if math.Abs(prod.At(i, j)-want) > 1e-8 {
				t.Fatalf("vcv*precision[%d][%d] = %g", i, j, prod.At(i, j))
			}
		}
	}
}

func TestPrecisionSingular(t *testing.T) {
	tree, err := ParseNewick("((a:0,b:0):1,c:1);")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, err := tree.Precision(); !errors.Is(err, ErrSingular) {
		t.Fatalf("expected ErrSingular, got %v", err)
	}
}

func TestNewickRoundTrip(t *testing.T) {
	tree, _ := Random(rand.New(rand.NewSource(11)), 9)
	parsed, err := ParseNewick(tree.Newick())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	wantLabels, gotLabels := tree.Labels(), parsed.Labels()
	if len(wantLabels) != len(gotLabels) {
		t.Fatalf("expected %d labels, got %d", len(wantLabels), len(gotLabels))
	}
	for i := range wantLabels {
		if wantLabels[i] != gotLabels[i] {
			t.Errorf("label %d: %s != %s", i, gotLabels[i], wantLabels[i])
		}
	}

	a, b := tree.VCV(), parsed.VCV()
	for i := range wantLabels {
		for j := range wantLabels {
			if math.Abs(a.At(i, j)-b.At(i, j)) > 1e-5 {
				t.Errorf("vcv[%d][%d]: %f != %f", i, j, b.At(i, j), a.At(i, j))
			}
		}
	}
}

func TestParseNewickErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing semicolon", "(a:1,b:1)"},
		{"unbalanced", "((a:1,b:1);"},
		{"bad length", "(a:x,b:1);"},
		{"unlabelled leaf", "(:1,b:1);"},
		{"duplicate leaf", "(((a:0.3,a:0.3):0.4,b:0.7):0.2,c:0.9);"},
		{"single leaf", "a;"},
		{"trailing", "(a:1,b:1);x"},
	}
	for _, tt := range tests {
		if _, err := ParseNewick(tt.in); !errors.Is(err, ErrNewick) && !errors.Is(err, ErrTooFewLeaves) {
			t.Errorf("%s: expected a parse error, got %v", tt.name, err)
		}
	}
}

func TestBrownianTraits(t *testing.T) {
	tree, _ := Random(rand.New(rand.NewSource(5)), 8)

	a := BrownianTraits(rand.New(rand.NewSource(9)), tree, 1)
	b := BrownianTraits(rand.New(rand.NewSource(9)), tree, 1)
	if len(a) != 8 {
		t.Fatalf("expected 8 traits, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same seed produced different traits")
		}
	}

	zero := BrownianTraits(rand.New(rand.NewSource(9)), tree, 0)
	for i, v := range zero {
		if v != 0 {
			t.Errorf("trait %d = %f with sigma 0", i, v)
		}
	}
}
