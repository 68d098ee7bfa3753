package decoder

import (
	"testing"

	"github.com/tanaris-labs/lvdecode/internal/arena"
	"github.com/tanaris-labs/lvdecode/internal/lm"
	"github.com/tanaris-labs/lvdecode/internal/token"
	"github.com/tanaris-labs/lvdecode/internal/traceback"
	"github.com/tanaris-labs/lvdecode/pkg/collab"
)

// mergeLM sends every LM state to a single shared destination state
// ("merge"), so multiple incoming RelTokens collide at the same dest and
// exercise the winner/loser bookkeeping of ApplyWordEnd.
type mergeLM struct{}

func (mergeLM) TransProb(src collab.LMState, pron int) (collab.LMState, float64) {
	return "merged", -1.0
}
func (mergeLM) LookaheadMax(src collab.LMState, loWE, hiWE int) float64 { return 0 }
func (mergeLM) Less(a, b collab.LMState) bool                          { return a.(string) < b.(string) }
func (mergeLM) Equal(a, b collab.LMState) bool                         { return a.(string) == b.(string) }
func (mergeLM) FastState(src collab.LMState) collab.LMState            { return src }
func (mergeLM) InitialState() collab.LMState                           { return "start" }

// splitLM sends each distinct src state to its own distinct dest, so
// output tokens never collide.
type splitLM struct{}

func (splitLM) TransProb(src collab.LMState, pron int) (collab.LMState, float64) {
	return "dest-" + src.(string), -1.0
}
func (splitLM) LookaheadMax(src collab.LMState, loWE, hiWE int) float64 { return 0 }
func (splitLM) Less(a, b collab.LMState) bool                          { return a.(string) < b.(string) }
func (splitLM) Equal(a, b collab.LMState) bool                         { return a.(string) == b.(string) }
func (splitLM) FastState(src collab.LMState) collab.LMState            { return src }
func (splitLM) InitialState() collab.LMState                           { return "start" }

func tp() token.Params {
	return token.Params{
		K:    8,
		Less: func(a, b collab.LMState) bool { return a.(string) < b.(string) },
		Equal: func(a, b collab.LMState) bool {
			return a.(string) == b.(string)
		},
	}
}

func TestApplyWordEndKeepsBetterPathAtSharedDest(t *testing.T) {
	g := traceback.NewGraph()
	idc := token.NewIDCounter()
	c := lm.New(mergeLM{}, collab.LookaheadTree{}, 1.0)

	p1 := g.NewWordEnd(arena.Nil, 0, 1, -3, 0, traceback.VariantMain, arena.Nil)
	p2 := g.NewWordEnd(arena.Nil, 0, 1, -10, 0, traceback.VariantMain, arena.Nil)

	in := &token.Set{
		Score: -3,
		ID:    1,
		Tok: []token.RelToken{
			{LMState: "a", Path: p1, Delta: 0},
			{LMState: "b", Path: p2, Delta: -7},
		},
	}

	out := ApplyWordEnd(g, idc, c, tp(), Params{InsPen: 0}, 5, 1, in, true, -1000)

	if len(out.Tok) != 1 {
		t.Fatalf("expected the two candidates to collapse into one dest, got %d", len(out.Tok))
	}
	if out.Tok[0].Delta != 0 {
		t.Fatalf("winner's delta after renorm = %v, want 0", out.Tok[0].Delta)
	}
	we := g.WE.Get(out.Tok[0].Path)
	if we.Alt == arena.Nil {
		t.Fatalf("loser should be attached as an alt when latticeGen is true")
	}
	alt := g.Alt.Get(we.Alt)
	if alt.Prev != p2 {
		t.Fatalf("alt.Prev = %v, want the loser's source path %v", alt.Prev, p2)
	}
	if alt.ScoreDelta >= 0 {
		t.Fatalf("loser's alt ScoreDelta = %v, want strictly negative", alt.ScoreDelta)
	}
}

func TestApplyWordEndDropsAltsWhenLatticeGenDisabled(t *testing.T) {
	g := traceback.NewGraph()
	idc := token.NewIDCounter()
	c := lm.New(mergeLM{}, collab.LookaheadTree{}, 1.0)

	p1 := g.NewWordEnd(arena.Nil, 0, 1, -3, 0, traceback.VariantMain, arena.Nil)
	p2 := g.NewWordEnd(arena.Nil, 0, 1, -10, 0, traceback.VariantMain, arena.Nil)
	in := &token.Set{
		Score: -3, ID: 1,
		Tok: []token.RelToken{
			{LMState: "a", Path: p1, Delta: 0},
			{LMState: "b", Path: p2, Delta: -7},
		},
	}

	out := ApplyWordEnd(g, idc, c, tp(), Params{InsPen: 0}, 5, 1, in, false, -1000)
	we := g.WE.Get(out.Tok[0].Path)
	if we.Alt != arena.Nil {
		t.Fatalf("no alt should be recorded when latticeGen is false")
	}
}

func TestApplyWordEndDiscardsBelowRelCut(t *testing.T) {
	g := traceback.NewGraph()
	idc := token.NewIDCounter()
	c := lm.New(splitLM{}, collab.LookaheadTree{}, 1.0)

	p1 := g.NewWordEnd(arena.Nil, 0, 1, -3, 0, traceback.VariantMain, arena.Nil)
	in := &token.Set{
		Score: -3, ID: 1,
		Tok: []token.RelToken{{LMState: "a", Path: p1, Delta: 0}},
	}

	out := ApplyWordEnd(g, idc, c, tp(), Params{InsPen: -100}, 5, 1, in, true, -1)
	if len(out.Tok) != 0 {
		t.Fatalf("expected the heavily-penalised token to be discarded, got %d survivors", len(out.Tok))
	}
	if !out.Empty() {
		t.Fatalf("expected Empty() when all candidates are discarded")
	}
}

func TestApplyWordEndAppliesInsertionPenalty(t *testing.T) {
	g := traceback.NewGraph()
	idc := token.NewIDCounter()
	c := lm.New(splitLM{}, collab.LookaheadTree{}, 1.0)

	p1 := g.NewWordEnd(arena.Nil, 0, 1, -3, 0, traceback.VariantMain, arena.Nil)
	in := &token.Set{Score: -3, ID: 1, Tok: []token.RelToken{{LMState: "a", Path: p1, Delta: 0}}}

	out := ApplyWordEnd(g, idc, c, tp(), Params{InsPen: -2}, 5, 1, in, true, -1000)
	we := g.WE.Get(out.Tok[0].Path)
	if we.LM != -3 { // TransProb logP(-1) + InsPen(-2)
		t.Fatalf("we.LM = %v, want -3 (TransProb -1 + InsPen -2)", we.LM)
	}
}
