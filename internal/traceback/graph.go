// Package traceback implements the traceback graph of spec §3.3: the
// backward-linked DAG of WordEndHyp / AltWordEndHyp / ModendHyp records from
// which the decoder's 1-best hypothesis and word lattice are reconstructed,
// plus the mark-and-sweep garbage collector of spec §4.8.
//
// Object identity is by [arena.Handle], not pointer, following the
// "arena-with-index handles" re-architecture spec §4.8 and §9 call for in
// place of the original C implementation's pointer-tagged mark bits. The
// pronunciation-variant and lattice-traversal "seen" index that the
// original packs into a single `user` field (spec §9 Open Questions) are
// kept as two separate fields here, as the spec recommends.
package traceback

import "github.com/tanaris-labs/lvdecode/internal/arena"

// Variant distinguishes which pronunciation form of a word a WordEndHyp
// represents, used by the silence-dictionary sp-skip layer (spec §4.6).
type Variant int

const (
	VariantMain Variant = iota // the dictionary's primary pronunciation ("-")
	VariantSP                  // the short-pause variant ("sp")
	VariantSIL                 // the silence variant ("sil")
)

// WordEndHyp is one node of the traceback DAG: a word boundary hypothesis
// carrying the cumulative score and LM contribution needed to recover
// per-arc acoustic/LM/pronunciation likelihoods during lattice building
// (spec §4.9).
type WordEndHyp struct {
	Prev    arena.Handle // previous WordEndHyp, or arena.Nil at the start of the network
	Pron    int          // pronunciation id
	Frame   int          // frame at which this word end was reached
	Score   float64      // cumulative acoustic+LM+insertion score
	LM      float64      // cumulative LM score contribution
	Variant Variant
	Alt     arena.Handle // head of the AltWordEndHyp list, or arena.Nil
	ModPath arena.Handle // optional ModendHyp chain, or arena.Nil when !modAlign

	// seen is a lattice-traversal visitation stamp assigned during lattice
	// numbering (internal/lattice). It is not part of the GC's concern and
	// is reset to 0 by the lattice builder at the end of each build.
	seen int
}

// AltWordEndHyp is a losing alternative at a word end that is kept only
// for lattice generation (spec §3.3, §4.6): its score is stored as a delta
// relative to the winning WordEndHyp it is attached to.
type AltWordEndHyp struct {
	Prev       arena.Handle // the WordEndHyp this alternative continues from
	ScoreDelta float64      // score relative to the owning WordEndHyp's Score
	LM         float64
	ModPath    arena.Handle
	Next       arena.Handle // next AltWordEndHyp in the owning list, or arena.Nil
}

// ModendHyp records a per-model alignment step, present only when
// per-model alignment output is requested (spec §3.3, §6.2 modAlign).
type ModendHyp struct {
	Prev    arena.Handle
	LexNode int // index into the lexicon's node array
	Frame   int
}

// Graph owns the three typed arenas backing the traceback DAG.
type Graph struct {
	WE  *arena.Arena[WordEndHyp]
	Alt *arena.Arena[AltWordEndHyp]
	Mod *arena.Arena[ModendHyp]
}

// NewGraph returns an empty traceback graph.
func NewGraph() *Graph {
	return &Graph{
		WE:  arena.New[WordEndHyp](),
		Alt: arena.New[AltWordEndHyp](),
		Mod: arena.New[ModendHyp](),
	}
}

// NewWordEnd allocates a new WordEndHyp and returns its handle.
func (g *Graph) NewWordEnd(prev arena.Handle, pron, frame int, score, lm float64, variant Variant, modPath arena.Handle) arena.Handle {
	return g.WE.Alloc(WordEndHyp{
		Prev:    prev,
		Pron:    pron,
		Frame:   frame,
		Score:   score,
		LM:      lm,
		Variant: variant,
		ModPath: modPath,
	})
}

// NewAlt allocates a new AltWordEndHyp and returns its handle. The caller
// is responsible for linking it into the owning WordEndHyp's Alt list.
func (g *Graph) NewAlt(prev arena.Handle, scoreDelta, lm float64, modPath, next arena.Handle) arena.Handle {
	return g.Alt.Alloc(AltWordEndHyp{
		Prev:       prev,
		ScoreDelta: scoreDelta,
		LM:         lm,
		ModPath:    modPath,
		Next:       next,
	})
}

// NewMod allocates a new ModendHyp and returns its handle.
func (g *Graph) NewMod(prev arena.Handle, lexNode, frame int) arena.Handle {
	return g.Mod.Alloc(ModendHyp{Prev: prev, LexNode: lexNode, Frame: frame})
}

// Reset empties all three arenas, used when a decoder instance is reused
// across utterances (spec §5).
func (g *Graph) Reset() {
	g.WE.Reset()
	g.Alt.Reset()
	g.Mod.Reset()
}

// Seen returns the lattice-traversal stamp for a WordEndHyp, separated (per
// spec §9 Open Questions) from the pronunciation Variant field that the
// original C implementation packed alongside it.
func (g *Graph) Seen(h arena.Handle) int {
	return g.WE.Get(h).seen
}

// SetSeen assigns the lattice-traversal stamp for a WordEndHyp.
func (g *Graph) SetSeen(h arena.Handle, n int) {
	g.WE.Get(h).seen = n
}
