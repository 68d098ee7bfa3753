// Package lexnet wraps the static lexicon network of spec §4.4: a
// read-only, layer-partitioned directed graph the decoder scans in a fixed
// order every frame. The package owns no mutable per-utterance state (that
// belongs to internal/decoder's Instance type) — only graph-shape queries
// and the validation a decoder build-out needs before decoding can begin.
package lexnet

import (
	"fmt"

	"github.com/tanaris-labs/lvdecode/pkg/collab"
)

// Network is a validated view over a [collab.Lexicon].
type Network struct {
	lex collab.Lexicon
}

// New wraps lex without validating it; call [Network.Validate] once before
// decoding to catch a malformed build (spec §4.4 "consumed as an input").
func New(lex collab.Lexicon) *Network {
	return &Network{lex: lex}
}

// Lexicon returns the wrapped static graph.
func (n *Network) Lexicon() collab.Lexicon { return n.lex }

// NumLayers returns the number of scan layers.
func (n *Network) NumLayers() int { return len(n.lex.Layers) }

// Layer returns the ith layer in fixed scan order.
func (n *Network) Layer(i int) collab.Layer { return n.lex.Layers[i] }

// RoleLayer returns the layer index implementing role, or false if the
// lexicon has no dedicated layer for it (e.g. RoleSPSkip when
// SilenceDict is disabled).
func (n *Network) RoleLayer(role collab.LayerRole) (int, bool) {
	i, ok := n.lex.RoleOf[role]
	return i, ok
}

// Node returns the LexNode at index i.
func (n *Network) Node(i int) collab.LexNode { return n.lex.Nodes[i] }

// Successors returns the successor node indices of node i.
func (n *Network) Successors(i int) []int { return n.lex.Nodes[i].Succ }

// Start returns the network's start node index.
func (n *Network) Start() int { return n.lex.Start }

// End returns the network's sentence-end node index.
func (n *Network) End() int { return n.lex.End }

// SilenceDict reports whether sp-skip silence variants apply (spec §4.4,
// §4.6).
func (n *Network) SilenceDict() bool { return n.lex.SilenceDict }

// SPSkipForksSentenceEnd reports whether the sp-skip layer's sil branch
// should fork a path to the sentence-end node — true when that layer's
// nodes have 2 or more distinct successors (REDESIGN FLAGS: "the source hard-codes
// layer identifiers ... these must be declared in the lexicon interface,
// not inferred", so the branch decision is read off the declared layer
// shape rather than a magic node id comparison).
func (n *Network) SPSkipForksSentenceEnd(layerIdx int) bool {
	layer := n.lex.Layers[layerIdx]
	succCount := 0
	seen := make(map[int]bool)
	for _, nodeIdx := range layer.Nodes {
		for _, s := range n.lex.Nodes[nodeIdx].Succ {
			if !seen[s] {
				seen[s] = true
				succCount++
			}
		}
	}
	return succCount >= 2
}

// Validate checks the structural invariants the decoder relies on: every
// node/successor/role index is in range, Start and End are valid nodes,
// and every Model node's transition matrix is square and sized to
// NumStates.
func (n *Network) Validate() error {
	numNodes := len(n.lex.Nodes)
	inRange := func(i int) bool { return i >= 0 && i < numNodes }

	if !inRange(n.lex.Start) {
		return fmt.Errorf("lexnet: start node %d out of range [0,%d)", n.lex.Start, numNodes)
	}
	if !inRange(n.lex.End) {
		return fmt.Errorf("lexnet: end node %d out of range [0,%d)", n.lex.End, numNodes)
	}

	for idx, node := range n.lex.Nodes {
		for _, s := range node.Succ {
			if !inRange(s) {
				return fmt.Errorf("lexnet: node %d has out-of-range successor %d", idx, s)
			}
		}
		if node.Kind == collab.NodeModel {
			if node.NumStates < 3 {
				return fmt.Errorf("lexnet: model node %d has %d states, want >= 3", idx, node.NumStates)
			}
			if len(node.TransP) != node.NumStates {
				return fmt.Errorf("lexnet: model node %d TransP has %d rows, want %d", idx, len(node.TransP), node.NumStates)
			}
			for r, row := range node.TransP {
				if len(row) != node.NumStates {
					return fmt.Errorf("lexnet: model node %d TransP row %d has %d cols, want %d", idx, r, len(row), node.NumStates)
				}
			}
			if len(node.HMMRef) != node.NumStates {
				return fmt.Errorf("lexnet: model node %d HMMRef has %d entries, want %d", idx, len(node.HMMRef), node.NumStates)
			}
		}
	}

	for _, layer := range n.lex.Layers {
		for _, nodeIdx := range layer.Nodes {
			if !inRange(nodeIdx) {
				return fmt.Errorf("lexnet: layer %q references out-of-range node %d", layer.Name, nodeIdx)
			}
		}
	}

	for role, layerIdx := range n.lex.RoleOf {
		if layerIdx < 0 || layerIdx >= len(n.lex.Layers) {
			return fmt.Errorf("lexnet: role %d maps to out-of-range layer %d", role, layerIdx)
		}
	}

	for idx, la := range n.lex.LA.Nodes {
		if la.Complex {
			for _, child := range la.Children {
				if child < 0 || child >= len(n.lex.LA.Nodes) {
					return fmt.Errorf("lexnet: lookahead node %d has out-of-range child %d", idx, child)
				}
			}
		} else if la.LoWE > la.HiWE {
			return fmt.Errorf("lexnet: lookahead node %d has LoWE %d > HiWE %d", idx, la.LoWE, la.HiWE)
		}
	}

	return nil
}
