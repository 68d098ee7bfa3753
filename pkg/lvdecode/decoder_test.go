package lvdecode

import (
	"context"
	"testing"

	"github.com/tanaris-labs/lvdecode/pkg/collab"
)

// constLM is a trivial single-state LM: every transition scores 0 and stays
// in the same state (mirrors internal/decoder's propagate_test.go fixture).
type constLM struct{}

func (constLM) TransProb(src collab.LMState, pron int) (collab.LMState, float64) { return src, 0 }
func (constLM) LookaheadMax(src collab.LMState, loWE, hiWE int) float64          { return 0 }
func (constLM) Less(a, b collab.LMState) bool                                   { return false }
func (constLM) Equal(a, b collab.LMState) bool                                  { return true }
func (constLM) FastState(src collab.LMState) collab.LMState                     { return src }
func (constLM) InitialState() collab.LMState                                    { return 0 }

type constDict struct{}

func (constDict) Pron(id int) collab.Pronunciation {
	return collab.Pronunciation{Word: "HI", OutSym: "HI"}
}

// threeStateModelLex builds Start(context) -> Model(3 states, 1 emitting
// state) -> WordEnd(pron 0) -> End, the same shape internal/decoder's own
// propagator tests use.
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

func newTestDecoder(t *testing.T) *Decoder {
	t.Helper()
	lex := threeStateModelLex()
	d, err := Create(CreateParams{
		Acoustic:      constAcousticModel(),
		LM:            constLM{},
		Lexicon:       lex,
		LookaheadTree: lex.LA,
		Dictionary:    constDict{},
		K:             4,
		OutpBlockSize: 4,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := d.Init(InitParams{
		SampleRate:   16000,
		BeamWidth:    1000,
		RelBeamWidth: 1000,
		WEBeamWidth:  1000,
		ZSBeamWidth:  1000,
		AcScale:      1.0,
		LMScale:      1.0,
	}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return d
}

func TestDecoderProcessFrameReachesSentenceEnd(t *testing.T) {
	d := newTestDecoder(t)

	nFrames := 5
	obs := make([][]float64, nFrames)
	for i := range obs {
		obs[i] = []float64{0}
	}

	if err := d.ProcessFrame(context.Background(), collab.ObservationBlock{Vectors: obs, NObs: nFrames}, nFrames, nil); err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}

	tr, err := d.Traceback(nil)
	if err != nil {
		t.Fatalf("Traceback: %v", err)
	}
	if len(tr.Labels) != 1 || tr.Labels[0].Word != "HI" {
		t.Fatalf("Labels = %+v, want one HI label", tr.Labels)
	}
}

func TestDecoderProcessFrameBeforeInitErrors(t *testing.T) {
	lex := threeStateModelLex()
	d, err := Create(CreateParams{
		Acoustic:      constAcousticModel(),
		LM:            constLM{},
		Lexicon:       lex,
		LookaheadTree: lex.LA,
		Dictionary:    constDict{},
		K:             4,
		OutpBlockSize: 4,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	err = d.ProcessFrame(context.Background(), collab.ObservationBlock{Vectors: [][]float64{{0}}, NObs: 1}, 1, nil)
	if err == nil {
		t.Fatal("expected ProcessFrame before Init to error")
	}
}

func TestDecoderResetClearsLiveState(t *testing.T) {
	d := newTestDecoder(t)

	obs := [][]float64{{0}, {0}, {0}, {0}, {0}}
	if err := d.ProcessFrame(context.Background(), collab.ObservationBlock{Vectors: obs, NObs: len(obs)}, len(obs), nil); err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if _, err := d.Traceback(nil); err != nil {
		t.Fatalf("Traceback before reset: %v", err)
	}

	d.Reset()

	if _, err := d.Traceback(nil); err == nil {
		t.Fatal("expected Traceback to fail immediately after Reset with no frames processed")
	}
}

func TestDecoderIDIsStable(t *testing.T) {
	d := newTestDecoder(t)
	if d.ID() != d.ID() {
		t.Fatal("ID() should be stable across calls")
	}
}
