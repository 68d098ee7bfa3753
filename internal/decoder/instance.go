// Package decoder implements the time-synchronous Viterbi propagator (C5)
// and word-end handler (C6) of spec §4.5-§4.6: the per-frame scan over the
// lexicon network that advances every live Instance's token sets,
// propagates across word ends, and drives the pruning controller and
// traceback GC.
package decoder

import (
	"github.com/tanaris-labs/lvdecode/internal/token"
	"github.com/tanaris-labs/lvdecode/pkg/collab"
)

// Instance is a live activation of one LexNode (spec §3.1 GLOSSARY): it
// owns one TokenSet per HMM state for a Model node (one for everything
// else), a best-score cache, and a link to the next live Instance in its
// layer's activation list.
type Instance struct {
	Node int // index into the lexicon's Nodes

	// States holds one token.Set per HMM state (len == NumStates for a
	// Model node's Instance, len == 1 otherwise): States[0] is the entry
	// state, States[NumStates-1] the exit state.
	States []token.Set

	Best float64 // cached best score across States, for the histogram beam

	next   int // index of the next live Instance within its layer's scan, -1 if none
	active bool
}

// layerState tracks the set of live instances for one lexicon layer as a
// singly linked list threaded through Instance.next, per the "next-in-layer
// link" of the GLOSSARY — avoiding a full per-frame scan of every
// statically possible node when only a small fraction is ever live.
type layerState struct {
	head int // index into instances, -1 if the layer has no live instance
}

// InstancePool owns every Instance across all layers, indexed by lexicon
// node id (spec §4.4: "a pointer to an optional live Instance" per node).
type InstancePool struct {
	byNode []Instance // len == len(lexicon.Nodes); byNode[i].active == false means dormant
	layers []layerState
}

// NewInstancePool allocates a dormant instance slot for every node in lex
// and one layer-activation list per declared layer.
func NewInstancePool(lex collab.Lexicon) *InstancePool {
	p := &InstancePool{
		byNode: make([]Instance, len(lex.Nodes)),
		layers: make([]layerState, len(lex.Layers)),
	}
	for i := range p.byNode {
		p.byNode[i].Node = i
		p.byNode[i].next = -1
	}
	for i := range p.layers {
		p.layers[i].head = -1
	}
	return p
}

// Get returns the instance slot for node, whether or not it is active.
func (p *InstancePool) Get(node int) *Instance { return &p.byNode[node] }

// Active reports whether node currently has a live instance.
func (p *InstancePool) Active(node int) bool { return p.byNode[node].active }

// Activate brings node's instance to life within layer if it is currently
// dormant (spec §4.5 external pass: "activating successors if dormant"),
// allocating its per-state token sets. No-op if already active.
func (p *InstancePool) Activate(node, layer, numStates int) *Instance {
	inst := &p.byNode[node]
	if inst.active {
		return inst
	}
	inst.active = true
	inst.States = make([]token.Set, numStates)
	inst.next = p.layers[layer].head
	p.layers[layer].head = node
	return inst
}

// Deactivate removes node's instance from its layer's activation list and
// clears its token sets (spec §4.5 external pass: "deactivate instances
// that fell under the beam").
func (p *InstancePool) Deactivate(layer int, node int) {
	inst := &p.byNode[node]
	inst.active = false
	inst.States = nil
	inst.Best = 0

	headIdx := &p.layers[layer].head
	if *headIdx == node {
		*headIdx = inst.next
		inst.next = -1
		return
	}
	for cur := *headIdx; cur != -1; cur = p.byNode[cur].next {
		if p.byNode[cur].next == node {
			p.byNode[cur].next = inst.next
			inst.next = -1
			return
		}
	}
}

// LiveNodes returns the node indices of every active instance in layer, in
// activation-list order.
func (p *InstancePool) LiveNodes(layer int) []int {
	var out []int
	for cur := p.layers[layer].head; cur != -1; cur = p.byNode[cur].next {
		out = append(out, cur)
	}
	return out
}

// ResetAll deactivates every instance, used between utterances (spec §5
// "reuses them across utterances by resetting").
func (p *InstancePool) ResetAll() {
	for i := range p.byNode {
		p.byNode[i].active = false
		p.byNode[i].States = nil
		p.byNode[i].Best = 0
		p.byNode[i].next = -1
	}
	for i := range p.layers {
		p.layers[i].head = -1
	}
}
