package decoder

import (
	"testing"

	"github.com/tanaris-labs/lvdecode/internal/acoustic"
	"github.com/tanaris-labs/lvdecode/internal/lexnet"
	"github.com/tanaris-labs/lvdecode/internal/lm"
	"github.com/tanaris-labs/lvdecode/internal/prune"
	"github.com/tanaris-labs/lvdecode/internal/token"
	"github.com/tanaris-labs/lvdecode/internal/traceback"
	"github.com/tanaris-labs/lvdecode/pkg/collab"
)

// constLM is a trivial single-state LM: every transition scores 0 and
// stays in the same state.
type constLM struct{}

func (constLM) TransProb(src collab.LMState, pron int) (collab.LMState, float64) { return src, 0 }
func (constLM) LookaheadMax(src collab.LMState, loWE, hiWE int) float64          { return 0 }
func (constLM) Less(a, b collab.LMState) bool                                    { return false }
func (constLM) Equal(a, b collab.LMState) bool                                   { return true }
func (constLM) FastState(src collab.LMState) collab.LMState                     { return src }
func (constLM) InitialState() collab.LMState                                    { return 0 }

// threeStateModelLex builds Start(context) -> Model(3 states, simple
// left-to-right transitions, 1 emitting state) -> WordEnd(pron 0) -> End.
func threeStateModelLex() collab.Lexicon {
	negInf := -1e10
	return collab.Lexicon{
		Nodes: []collab.LexNode{
			{Kind: collab.NodeContext, NumStates: 1, Succ: []int{1}},
			{
				Kind: collab.NodeModel, NumStates: 3, Succ: []int{2},
				TransP: [][]float64{
					{negInf, 0, negInf},
					{negInf, -0.1, 0},
					{negInf, negInf, negInf},
				},
				HMMRef: []int{0, 0, 0},
			},
			{Kind: collab.NodeWordEnd, NumStates: 1, Pron: 0, Succ: []int{3}},
			{Kind: collab.NodeContext, NumStates: 1, Succ: nil},
		},
		Layers: []collab.Layer{
			{Name: "start", Nodes: []int{0}},
			{Name: "model", Nodes: []int{1}},
			{Name: "wordend", Nodes: []int{2}},
			{Name: "end", Nodes: []int{3}},
		},
		RoleOf: map[collab.LayerRole]int{collab.RoleWordEnd: 2},
		Start:  0, End: 3,
	}
}

func constAcousticModel() collab.AcousticModel {
	return collab.AcousticModel{
		Dim: 1,
		Mixtures: func(s int) collab.MixtureSet {
			return collab.MixtureSet{
				LogWeight: []float64{0}, GConst: []float64{0},
				Mean: [][]float64{{0}}, InvVar: [][]float64{{1}},
			}
		},
	}
}

func TestPropagatorAdvancesTokenThroughModelToWordEnd(t *testing.T) {
	lex := threeStateModelLex()
	net := lexnet.New(lex)
	if err := net.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	pool := NewInstancePool(lex)
	ac := acoustic.New(constAcousticModel(), 1.0, 4)
	lmc := lm.New(constLM{}, lex.LA, 1.0)
	g := traceback.NewGraph()
	idc := token.NewIDCounter()
	pruner := prune.New(prune.Params{BeamWidth: 1000, RelBeamWidth: 1000, WEBeamWidth: 1000, ZSBeamWidth: 1000})

	less := func(a, b collab.LMState) bool { return false }
	equal := func(a, b collab.LMState) bool { return true }
	pr := New(net, pool, ac, lmc, g, idc, pruner, Params{K: 4, GCFreq: 0}, true, less, equal)

	// The start node has no predecessor in the network, so keeping it fed
	// every frame (re-entry for new word starts) is the public decoder
	// API's responsibility, not the Propagator's; the harness re-seeds it
	// directly here the way that driver would.
	start := pool.Activate(lex.Start, 0, 1)

	nFrames := 5
	obs := make([][]float64, nFrames)
	for i := range obs {
		obs[i] = []float64{0}
	}
	ac.SetWindow(1, obs)

	for i := 0; i < nFrames; i++ {
		if err := pr.StepInternal(); err != nil {
			t.Fatalf("StepInternal %d: %v", i, err)
		}
		start.States[0] = token.Set{
			Score: 0, ID: idc.Next(),
			Tok: []token.RelToken{{LMState: 0, Delta: 0}},
		}
		if err := pr.StepExternal(); err != nil {
			t.Fatalf("StepExternal %d: %v", i, err)
		}
	}

	if !pool.Active(lex.End) {
		t.Fatalf("expected the token to reach the end node within %d frames", nFrames)
	}
	if pr.BestScore() <= -1e9 {
		t.Fatalf("BestScore = %v, want a real (non-floor) score", pr.BestScore())
	}
}
