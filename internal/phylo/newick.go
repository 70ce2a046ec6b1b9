package phylo

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrNewick indicates an unparsable Newick string.
var ErrNewick = errors.New("phylo: invalid newick")

// Newick renders the tree as "(a:0.1,b:0.2):0.3;" with six decimals.
func (t *Tree) Newick() string {
	var sb strings.Builder
	t.writeNewick(&sb, t.Root)
	sb.WriteString(";")
	return sb.String()
}

func (t *Tree) writeNewick(sb *strings.Builder, i int) {
	node := t.Nodes[i]
	if !node.IsLeaf() {
		sb.WriteString("(")
		for k, c := range node.Children {
			if k > 0 {
				sb.WriteString(",")
			}
			t.writeNewick(sb, c)
		}
		sb.WriteString(")")
	}
	sb.WriteString(node.Label)
	if i != t.Root {
		sb.WriteString(":")
		sb.WriteString(strconv.FormatFloat(node.Length, 'f', 6, 64))
	}
}

// LoadNewick reads a single tree from a file.
func LoadNewick(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseNewick(string(data))
}

// ParseNewick parses one tree. Labels are optional on internal nodes,
// required on leaves; missing branch lengths are read as zero.
func ParseNewick(s string) (*Tree, error) {
	p := &newickParser{src: strings.TrimSpace(s)}
	t := &Tree{}
	root, err := p.node(t, -1)
	if err != nil {
		return nil, err
	}
	t.Root = root
	p.skipSpace()
	if !p.eat(';') {
		return nil, fmt.Errorf("%w: expected ';' at offset %d", ErrNewick, p.pos)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("%w: trailing data at offset %d", ErrNewick, p.pos)
	}
	t.Nodes[root].Length = 0
	if err := t.Validate(); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, t.NumLeaves())
	for _, leaf := range t.Leaves() {
		label := t.Nodes[leaf].Label
		if label == "" {
			return nil, fmt.Errorf("%w: unlabelled leaf", ErrNewick)
		}
		if seen[label] {
			return nil, fmt.Errorf("%w: duplicate leaf label %q", ErrNewick, label)
		}
		seen[label] = true
	}
	return t, nil
}

type newickParser struct {
	src string
	pos int
}

func (p *newickParser) node(t *Tree, parent int) (int, error) {
	idx := t.addNode(parent, 0)
	p.skipSpace()
	if p.eat('(') {
		for {
			if _, err := p.node(t, idx); err != nil {
				return 0, err
			}
			p.skipSpace()
			if p.eat(',') {
				continue
			}
			if p.eat(')') {
				break
			}
			return 0, fmt.Errorf("%w: expected ',' or ')' at offset %d", ErrNewick, p.pos)
		}
	}

	t.Nodes[idx].Label = p.label()
	p.skipSpace()
	if p.eat(':') {
		p.skipSpace()
		start := p.pos
		for p.pos < len(p.src) && strings.IndexByte("0123456789.eE+-", p.src[p.pos]) >= 0 {
			p.pos++
		}
		length, err := strconv.ParseFloat(p.src[start:p.pos], 64)
		if err != nil {
			return 0, fmt.Errorf("%w: bad branch length at offset %d", ErrNewick, start)
		}
		t.Nodes[idx].Length = length
	}
	return idx, nil
}

func (p *newickParser) label() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && strings.IndexByte("(),:; \t\n\r", p.src[p.pos]) < 0 {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *newickParser) eat(c byte) bool {
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *newickParser) skipSpace() {
	for p.pos < len(p.src) && strings.IndexByte(" \t\n\r", p.src[p.pos]) >= 0 {
		p.pos++
	}
}
