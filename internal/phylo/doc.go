// Package phylo provides the phylogenetic tree used to correlate species.
//
// Trees are stored as an arena of nodes addressed by index:
//
//   - [Tree]: node slice with an explicit root index
//   - [Random]: random bifurcating topology with uniform branch lengths
//   - [Tree.VCV]: expected trait covariance among leaves (shared path length)
//   - [Tree.Precision]: inverse of the VCV, used as a smoothing penalty
//   - [BrownianTraits]: continuous trait evolved along the branches
//   - [ParseNewick], [Tree.Newick]: text serialization
//
// # Example
//
//	rng := rand.New(rand.NewSource(42))
//	tree, _ := phylo.Random(rng, 12)
//	prec, _ := tree.Precision()
//
// Leaves are numbered in preorder; leaf i is species i everywhere else in
// the module.
package phylo
