// Package lattice implements spec §4.9's word-lattice construction and the
// on-disk arc fields of spec §6.3: every WordEndHyp reached either as a
// main path or via an AltWordEndHyp becomes a lattice node; every
// (predecessor, hyp) edge becomes an arc carrying its aclike/lmlike/prlike
// components recovered from the cumulative score.
//
// Numbering walks the traceback graph iteratively over arena handles
// (spec §9 supplemented feature, replacing the original's recursive
// `LatTraceBackCount`/`Paths2Lat` — an utterance can cross many thousands
// of words, and recursion here would risk unbounded native call-stack
// growth) using each WordEndHyp's `seen` stamp (internal/traceback.Graph)
// to number it exactly once.
package lattice

import (
	"github.com/tanaris-labs/lvdecode/internal/arena"
	"github.com/tanaris-labs/lvdecode/internal/traceback"
	"github.com/tanaris-labs/lvdecode/pkg/collab"
)

// Arc is one lattice edge (spec §6.3): a word hypothesis crossing from
// StartNode to EndNode with its score decomposed into the three likelihood
// components recoverable from the traceback graph's cumulative scores.
type Arc struct {
	StartNode, EndNode int
	Word               string
	Pron               int
	Variant            traceback.Variant
	AcLike             float64
	LMLike             float64
	PrLike             float64
	Align              []AlignStep // per-model alignment, present only when modAlign
}

// Score returns the arc's total log-probability, the sum of its three
// recovered likelihood components (used by internal/confnet's
// forward-backward posterior computation).
func (a Arc) Score() float64 { return a.AcLike + a.LMLike + a.PrLike }

// AlignStep is one per-model alignment record recovered from a ModendHyp
// chain (spec §4.9 "model-alignment records... by walking ModendHyp
// chains").
type AlignStep struct {
	LexNode    int
	StartFrame int
	EndFrame   int
}

// Header carries the scaling/identification metadata of spec §6.3.
type Header struct {
	LMScale     float64
	WordPenalty float64
	PronScale   float64
	FrameDur    float64
	VocabFile   string
	HMMSetFile  string
}

// Lattice is the full output lattice of spec §4.9/§6.3.
type Lattice struct {
	Header    Header
	NumNodes  int
	StartNode int
	EndNodes  []int
	Arcs      []Arc

	// NodeFrame[n] is the decode frame at which node n's word end was
	// reached (0 for the network's start node). Lattice nodes are numbered
	// in backward-discovery order, not frame order, so confusion-network
	// clustering (internal/confnet) uses this to recover a topological
	// (time-monotonic) processing order.
	NodeFrame []int
}

// Builder constructs a [Lattice] by numbering a traceback graph's reachable
// WordEndHyp/AltWordEndHyp nodes.
type Builder struct {
	g       *traceback.Graph
	dic     collab.Dictionary
	prScale float64
	modAlign bool
}

// NewBuilder returns a lattice Builder reading from g. prScale scales the
// per-arc pronunciation-probability component recovered from the
// dictionary (spec §4.9 "scaled pronunciation probability"); modAlign
// requests per-model alignment records on every arc.
func NewBuilder(g *traceback.Graph, dic collab.Dictionary, prScale float64, modAlign bool) *Builder {
	return &Builder{g: g, dic: dic, prScale: prScale, modAlign: modAlign}
}

// nodeRef is a lattice-node-to-be: the WordEndHyp that terminates it.
type nodeRef struct {
	hyp arena.Handle
}

// Build numbers every WordEndHyp/AltWordEndHyp reachable backward from
// endpoints and emits one node per hyp and one arc per (predecessor, hyp)
// edge (spec §4.9). endpoints are the sentence-end (or fallback/forced)
// token paths the traceback builder already resolved.
func (b *Builder) Build(header Header, endpoints []arena.Handle) Lattice {
	lat := Lattice{Header: header}

	// node 0 is the network start (no WordEndHyp owns it); every numbered
	// WordEndHyp occupies node index == its seen stamp.
	lat.NumNodes = 1
	var nodes []nodeRef
	nodes = append(nodes, nodeRef{hyp: arena.Nil})
	lat.NodeFrame = append(lat.NodeFrame, 0)

	var stack []arena.Handle
	stack = append(stack, endpoints...)
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h == arena.Nil || b.g.Seen(h) != 0 {
			continue
		}
		b.g.SetSeen(h, lat.NumNodes)
		nodes = append(nodes, nodeRef{hyp: h})
		lat.NodeFrame = append(lat.NodeFrame, b.g.WE.Get(h).Frame)
		lat.NumNodes++

		we := b.g.WE.Get(h)
		if we.Prev != arena.Nil {
			stack = append(stack, we.Prev)
		}
		for a := we.Alt; a != arena.Nil; {
			alt := b.g.Alt.Get(a)
			if alt.Prev != arena.Nil {
				stack = append(stack, alt.Prev)
			}
			a = alt.Next
		}
	}

	for _, ep := range endpoints {
		if ep != arena.Nil {
			lat.EndNodes = append(lat.EndNodes, b.g.Seen(ep))
		}
	}

	for _, nr := range nodes {
		if nr.hyp == arena.Nil {
			continue
		}
		we := b.g.WE.Get(nr.hyp)
		endNode := b.g.Seen(nr.hyp)
		startNode := 0
		if we.Prev != arena.Nil {
			startNode = b.g.Seen(we.Prev)
		}
		lat.Arcs = append(lat.Arcs, b.arcFor(startNode, endNode, we.Pron, we.Variant, we.Score, we.LM, we.Prev, we.ModPath))

		for a := we.Alt; a != arena.Nil; {
			alt := b.g.Alt.Get(a)
			altStart := 0
			if alt.Prev != arena.Nil {
				altStart = b.g.Seen(alt.Prev)
			}
			altScore := we.Score + alt.ScoreDelta
			lat.Arcs = append(lat.Arcs, b.arcFor(altStart, endNode, we.Pron, we.Variant, altScore, alt.LM, alt.Prev, alt.ModPath))
			a = alt.Next
		}
	}

	b.resetSeen(endpoints)
	return lat
}

// arcFor recovers the aclike/lmlike/prlike decomposition: lmlike and
// prlike come straight from the dictionary and cumulative LM score;
// aclike is whatever remains of the cumulative score once those two and
// the predecessor's cumulative score are subtracted out (spec §4.9).
func (b *Builder) arcFor(startNode, endNode, pron int, variant traceback.Variant, score, lm float64, prev, modPath arena.Handle) Arc {
	word, prLike := "", 0.0
	if b.dic != nil {
		p := b.dic.Pron(pron)
		word = p.Word
		prLike = p.LogProb * b.prScale
	}

	prevScore, prevLM := 0.0, 0.0
	if prev != arena.Nil {
		we := b.g.WE.Get(prev)
		prevScore, prevLM = we.Score, we.LM
	}

	acLike := (score - prevScore) - (lm - prevLM) - prLike

	arc := Arc{
		StartNode: startNode, EndNode: endNode,
		Word: word, Pron: pron, Variant: variant,
		AcLike: acLike, LMLike: lm - prevLM, PrLike: prLike,
	}
	if b.modAlign {
		arc.Align = b.walkAlign(modPath)
	}
	return arc
}

func (b *Builder) walkAlign(h arena.Handle) []AlignStep {
	var steps []AlignStep
	prevFrame := 0
	var chain []arena.Handle
	for cur := h; cur != arena.Nil; {
		mod := b.g.Mod.Get(cur)
		chain = append(chain, cur)
		cur = mod.Prev
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	for _, h := range chain {
		mod := b.g.Mod.Get(h)
		steps = append(steps, AlignStep{LexNode: mod.LexNode, StartFrame: prevFrame, EndFrame: mod.Frame})
		prevFrame = mod.Frame
	}
	return steps
}

func (b *Builder) resetSeen(endpoints []arena.Handle) {
	var stack []arena.Handle
	stack = append(stack, endpoints...)
	visited := map[arena.Handle]bool{}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h == arena.Nil || visited[h] {
			continue
		}
		visited[h] = true
		b.g.SetSeen(h, 0)
		we := b.g.WE.Get(h)
		if we.Prev != arena.Nil {
			stack = append(stack, we.Prev)
		}
		for a := we.Alt; a != arena.Nil; {
			alt := b.g.Alt.Get(a)
			if alt.Prev != arena.Nil {
				stack = append(stack, alt.Prev)
			}
			a = alt.Next
		}
	}
}
