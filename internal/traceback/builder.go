package traceback

import (
	"errors"

	"github.com/tanaris-labs/lvdecode/internal/arena"
	"github.com/tanaris-labs/lvdecode/pkg/collab"
)

// ErrNoSurvivingPath is returned by [Builder.Traceback] when no endpoint
// survived in any of the supplied candidate sets (spec §7 "pruning
// exhaustion").
var ErrNoSurvivingPath = errors.New("traceback: no surviving token reached any endpoint")

// Label is one word emitted by 1-best extraction (spec §4.9): times are
// propagated forward through the WordEndHyp chain so that a label's start
// equals the previous label's end.
type Label struct {
	Word       string
	Pron       int
	StartFrame int
	EndFrame   int
	AcLike     float64
	LMLike     float64
}

// Transcription is the 1-best hypothesis produced by [Builder.Traceback].
type Transcription struct {
	Labels []Label
}

// Endpoint names a live token to start a traceback walk from: the
// cumulative score it carries (for fallback best-token selection) and the
// WordEndHyp handle at its head.
type Endpoint struct {
	Path  arena.Handle
	Score float64
}

// Builder extracts the 1-best transcription from a traceback [Graph] (spec
// §4.9). It never allocates into the graph; it only walks existing chains.
type Builder struct {
	g   *Graph
	dic collab.Dictionary
}

// NewBuilder returns a Builder reading from g, resolving words and output
// symbols via dic.
func NewBuilder(g *Graph, dic collab.Dictionary) *Builder {
	return &Builder{g: g, dic: dic}
}

// Traceback implements spec §4.9's "Traceback / Lattice Builder" 1-best
// path: it first tries sentenceEnd (the sentence-end node's surviving
// endpoints, may be empty), falling back to fallbackBest (the best-scoring
// endpoint anywhere, per the original's `BestTokSet` — spec §9 supplemented
// feature), and finally — if forceOut is set and still nothing survives —
// to forceEndpoints (typically the best silence word-ends, supplied by the
// caller since the Builder has no notion of "silence" on its own).
func (b *Builder) Traceback(sentenceEnd, fallbackBest, forceEndpoints []Endpoint, forceOut bool) (Transcription, error) {
	ep, ok := bestOf(sentenceEnd)
	if !ok {
		ep, ok = bestOf(fallbackBest)
	}
	if !ok && forceOut {
		ep, ok = bestOf(forceEndpoints)
	}
	if !ok {
		return Transcription{}, ErrNoSurvivingPath
	}
	return b.walk(ep.Path), nil
}

func bestOf(eps []Endpoint) (Endpoint, bool) {
	var best Endpoint
	found := false
	for _, e := range eps {
		if !found || e.Score > best.Score {
			best = e
			found = true
		}
	}
	return best, found
}

// walk follows h's Prev chain back to the start, reversing it into
// chronological order, then forward-propagates frame boundaries: a label's
// StartFrame is the frame of the previous word end in the chain, including
// one dropped for an empty output symbol (spec §4.9).
func (b *Builder) walk(h arena.Handle) Transcription {
	var chain []arena.Handle
	for cur := h; cur != arena.Nil; {
		we := b.g.WE.Get(cur)
		chain = append(chain, cur)
		cur = we.Prev
	}
	// chain is newest-first; reverse to chronological order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	var out Transcription
	prevEnd := 0
	prevScore := 0.0
	prevLM := 0.0
	for _, hnd := range chain {
		we := b.g.WE.Get(hnd)
		acLike := we.Score - prevScore - (we.LM - prevLM)
		word := ""
		outSym := ""
		if b.dic != nil {
			p := b.dic.Pron(we.Pron)
			word, outSym = p.Word, p.OutSym
		}
		if b.dic == nil || outSym != "" {
			out.Labels = append(out.Labels, Label{
				Word:       word,
				Pron:       we.Pron,
				StartFrame: prevEnd,
				EndFrame:   we.Frame,
				AcLike:     acLike,
				LMLike:     we.LM - prevLM,
			})
		}
		prevEnd = we.Frame
		prevScore = we.Score
		prevLM = we.LM
	}
	return out
}
