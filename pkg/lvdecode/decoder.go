// Package lvdecode is the decoder core's public surface (spec §6.2):
// create, init, processFrame, traceback, latticeTraceback, reset, destroy.
// It owns every collaborator-facing wiring step the internal packages
// deliberately leave to a driver: assembling the lexicon network, acoustic
// scorer, LM cache, pruning controller, and traceback graph behind one
// [Decoder] value, and re-seeding the network's start node every frame (a
// responsibility [internal/decoder.Propagator.Pool] documents as the API's
// to own, not the propagator's).
package lvdecode

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tanaris-labs/lvdecode/internal/acoustic"
	"github.com/tanaris-labs/lvdecode/internal/arena"
	decoderpkg "github.com/tanaris-labs/lvdecode/internal/decoder"
	"github.com/tanaris-labs/lvdecode/internal/lattice"
	"github.com/tanaris-labs/lvdecode/internal/lexnet"
	"github.com/tanaris-labs/lvdecode/internal/lm"
	"github.com/tanaris-labs/lvdecode/internal/observe"
	"github.com/tanaris-labs/lvdecode/internal/prune"
	"github.com/tanaris-labs/lvdecode/internal/token"
	"github.com/tanaris-labs/lvdecode/internal/traceback"
	"github.com/tanaris-labs/lvdecode/pkg/collab"
)

// CreateParams mirrors spec §6.2's create(acoustic, lm, lexicon, K,
// latticeGen, useHModel, outpBlockSize, doPhonePost, modAlign).
type CreateParams struct {
	Acoustic   collab.AcousticModel
	LM         collab.LanguageModel
	Lexicon    collab.Lexicon
	LookaheadTree collab.LookaheadTree
	Dictionary collab.Dictionary

	K             int  // max RelTokens retained per TokenSet
	LatticeGen    bool // build a word lattice alongside 1-best traceback
	UseHModel     bool // reserved: HMM-set-driven model selection, passed through to Acoustic
	OutpBlockSize int  // acoustic scorer's block-ahead size B (spec §4.1)
	DoPhonePost   bool // reserved: per-phone posterior reporting
	ModAlign      bool // request per-model alignment records on lattice arcs
}

// InitParams mirrors spec §6.2's init(sampleRate, beamWidth, relBeamWidth,
// weBeamWidth, zsBeamWidth, maxModel, insPen, acScale, pronScale, lmScale,
// fastLMLABeam).
type InitParams struct {
	SampleRate int

	BeamWidth    float64
	RelBeamWidth float64
	WEBeamWidth  float64
	ZSBeamWidth  float64
	MaxModel     int

	InsPen       float64
	AcScale      float64
	PronScale    float64
	LMScale      float64
	FastLMLABeam float64

	// MaxLNBeamFlr and DynBeamInc extend §4.5 step 5's dynamic beam
	// feedback (spec §6.5 MAXLNBEAMFLR/DYNBEAMINC); zero values fall back
	// to the package defaults also used by internal/config.
	MaxLNBeamFlr float64
	DynBeamInc   float64

	// GCFreq overrides the traceback GC cadence of §4.8; zero means
	// [decoderpkg.DefaultGCFreq].
	GCFreq int

	// ForceLatOut requests [Decoder.Traceback] fall through to a
	// caller-supplied silence endpoint when no sentence-end or
	// best-token survivor exists (spec §6.5 FORCELATOUT).
	ForceLatOut bool
}

// Decoder is one reusable decoding session (spec §5 "resource lifecycle"):
// arenas and caches are acquired once at Create and reused across
// utterances via Reset.
type Decoder struct {
	id uuid.UUID

	cp CreateParams

	lex    *lexnet.Network
	pool   *decoderpkg.InstancePool
	graph  *traceback.Graph
	idc    *token.IDCounter
	tbb    *traceback.Builder
	latb   *lattice.Builder

	ac     *acoustic.Scorer
	lmc    *lm.Cache
	pruner *prune.Controller
	prop   *decoderpkg.Propagator

	ip         InitParams
	forceOut   bool
	lastHeader lattice.Header

	metrics *observe.Metrics
}

// Create validates cp and assembles the static collaborator wiring (lexicon
// network, traceback graph, 1-best/lattice builders). [Decoder.Init] must be
// called before the first [Decoder.ProcessFrame].
func Create(cp CreateParams) (*Decoder, error) {
	lex := lexnet.New(cp.Lexicon)
	if err := lex.Validate(); err != nil {
		return nil, fmt.Errorf("lvdecode: create: %w", err)
	}
	if cp.K <= 0 {
		return nil, errors.New("lvdecode: create: K must be positive")
	}

	graph := traceback.NewGraph()
	d := &Decoder{
		id:      uuid.New(),
		cp:      cp,
		lex:     lex,
		pool:    decoderpkg.NewInstancePool(cp.Lexicon),
		graph:   graph,
		idc:     token.NewIDCounter(),
		tbb:     traceback.NewBuilder(graph, cp.Dictionary),
		metrics: observe.DefaultMetrics(),
	}
	return d, nil
}

// ID returns the decoder session's unique identifier, used to correlate
// structured log lines and traces across the lifetime of one utterance
// stream.
func (d *Decoder) ID() uuid.UUID { return d.id }

// Init (re-)applies tuning parameters (spec §6.2 init(...)) and (re)builds
// the per-utterance-class scoring stack: acoustic scorer, LM cache, pruning
// controller, and propagator. Init may be called again on an existing
// Decoder to change tuning between utterances without a full Create.
func (d *Decoder) Init(ip InitParams) error {
	if ip.BeamWidth <= 0 {
		return errors.New("lvdecode: init: beamWidth must be positive")
	}
	gcFreq := ip.GCFreq
	if gcFreq <= 0 {
		gcFreq = decoderpkg.DefaultGCFreq
	}

	d.ip = ip
	d.forceOut = ip.ForceLatOut

	d.ac = acoustic.New(d.cp.Acoustic, ip.AcScale, d.cp.OutpBlockSize)
	d.lmc = lm.New(d.cp.LM, d.cp.LookaheadTree, ip.LMScale)
	d.pruner = prune.New(prune.Params{
		BeamWidth:    ip.BeamWidth,
		RelBeamWidth: ip.RelBeamWidth,
		WEBeamWidth:  ip.WEBeamWidth,
		ZSBeamWidth:  ip.ZSBeamWidth,
		MaxModel:     ip.MaxModel,
		MaxLNBeamFlr: orDefault(ip.MaxLNBeamFlr, 0.5),
		DynBeamInc:   orDefault(ip.DynBeamInc, 1.1),
	})

	params := decoderpkg.Params{
		InsPen:       ip.InsPen,
		AcScale:      ip.AcScale,
		PronScale:    ip.PronScale,
		LMScale:      ip.LMScale,
		FastLMLABeam: ip.FastLMLABeam,
		GCFreq:       gcFreq,
		K:            d.cp.K,
	}

	d.prop = decoderpkg.New(d.lex, d.pool, d.ac, d.lmc, d.graph, d.idc, d.pruner, params,
		d.cp.LatticeGen, d.cp.LM.Less, d.cp.LM.Equal)

	d.latb = lattice.NewBuilder(d.graph, d.cp.Dictionary, ip.PronScale, d.cp.ModAlign)

	d.lastHeader = lattice.Header{
		LMScale:   ip.LMScale,
		WordPenalty: ip.InsPen,
		PronScale: ip.PronScale,
		FrameDur:  float64(time.Second) / float64(orDefaultInt(ip.SampleRate, 1)),
	}
	return nil
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// ProcessFrame advances the decoder by the observation vectors in block
// (spec §6.2 processFrame(observationBlock, nObs, optional xform)). xform,
// when non-nil, is applied to every vector before the acoustic scorer sees
// it (the rewrite's explicit replacement for the original's process-wide
// transform pointer — see DESIGN.md). Each call processes exactly nObs
// frames, re-seeding the network's start node before every one.
func (d *Decoder) ProcessFrame(ctx context.Context, block collab.ObservationBlock, nObs int, xform func([]float64) []float64) error {
	if d.prop == nil {
		return errors.New("lvdecode: ProcessFrame called before Init")
	}
	vectors := block.Vectors
	if xform != nil {
		vectors = make([][]float64, len(block.Vectors))
		for i, v := range block.Vectors {
			vectors[i] = xform(v)
		}
	}
	// StepInternal increments the frame counter before scoring (it scores at
	// the *new* frame, see internal/decoder.Propagator.StepInternal), so the
	// window installed here must start one frame ahead of Frame()'s current
	// value, not at it.
	startFrame := d.prop.Frame() + 1
	d.ac.SetWindow(startFrame, vectors)

	for i := 0; i < nObs; i++ {
		frameStart := time.Now()

		if err := d.prop.StepInternal(); err != nil {
			return err
		}
		d.seedStartNode()
		if err := d.prop.StepExternal(); err != nil {
			return err
		}

		if d.metrics != nil {
			d.metrics.FrameDuration.Record(ctx, time.Since(frameStart).Seconds())
			d.metrics.BeamWidth.Record(ctx, d.pruner.CurBeamWidth())
			d.metrics.LiveModelInstances.Record(ctx, int64(len(d.pool.LiveNodes(0))))
		}
	}
	return nil
}

// seedStartNode re-activates the network's start node and feeds it a fresh
// single-token entry state carrying the LM's initial state (boundary B2),
// as documented by [internal/decoder.Propagator.Pool]: the start node has
// no predecessor edge, so nothing ever fans tokens into it on its own.
func (d *Decoder) seedStartNode() {
	start := d.lex.Start()
	node := d.lex.Node(start)
	layer := 0
	for li, l := range d.cp.Lexicon.Layers {
		for _, n := range l.Nodes {
			if n == start {
				layer = li
			}
		}
	}
	inst := d.pool.Activate(start, layer, node.NumStates)
	inst.States[0] = token.Set{
		Score: 0,
		ID:    d.idc.Next(),
		Tok: []token.RelToken{{
			LMState: d.cp.LM.InitialState(),
			Delta:   0,
		}},
	}
}

// Traceback extracts the 1-best [traceback.Transcription] (spec §6.2
// traceback() → Transcription): sentence-end survivors first, falling back
// to the best-scoring live token anywhere, and finally — when ForceLatOut
// was set — to the endpoints argument (typically the caller's best silence
// word-ends; the Builder has no notion of "silence" on its own).
func (d *Decoder) Traceback(forceEndpoints []traceback.Endpoint) (traceback.Transcription, error) {
	return d.tbb.Traceback(d.sentenceEndEndpoints(), d.fallbackEndpoints(), forceEndpoints, d.forceOut)
}

// LatticeTraceback builds the full word [lattice.Lattice] (spec §6.2
// latticeTraceback() → Lattice) from the same endpoint set Traceback would
// use, requiring the Decoder to have been Created with LatticeGen true.
func (d *Decoder) LatticeTraceback(forceEndpoints []traceback.Endpoint) (lattice.Lattice, error) {
	if !d.cp.LatticeGen {
		return lattice.Lattice{}, errors.New("lvdecode: LatticeTraceback requires CreateParams.LatticeGen")
	}
	eps := d.sentenceEndEndpoints()
	if len(eps) == 0 {
		eps = d.fallbackEndpoints()
	}
	if len(eps) == 0 && d.forceOut {
		eps = forceEndpoints
	}
	return d.latb.Build(d.lastHeader, handlesOf(eps)), nil
}

func (d *Decoder) sentenceEndEndpoints() []traceback.Endpoint {
	inst := d.pool.Get(d.lex.End())
	if !d.pool.Active(d.lex.End()) || len(inst.States) == 0 {
		return nil
	}
	return endpointsOf(&inst.States[0])
}

func (d *Decoder) fallbackEndpoints() []traceback.Endpoint {
	var eps []traceback.Endpoint
	for li := 0; li < d.lex.NumLayers(); li++ {
		for _, nodeIdx := range d.pool.LiveNodes(li) {
			inst := d.pool.Get(nodeIdx)
			for si := range inst.States {
				eps = append(eps, endpointsOf(&inst.States[si])...)
			}
		}
	}
	return eps
}

func endpointsOf(set *token.Set) []traceback.Endpoint {
	eps := make([]traceback.Endpoint, 0, len(set.Tok))
	for _, t := range set.Tok {
		eps = append(eps, traceback.Endpoint{Path: t.Path, Score: set.Score + t.Delta})
	}
	return eps
}

func handlesOf(eps []traceback.Endpoint) []arena.Handle {
	out := make([]arena.Handle, len(eps))
	for i, e := range eps {
		out[i] = e.Path
	}
	return out
}

// Reset reuses this Decoder's arenas and caches for a new utterance (spec
// §5 "reuses them across utterances by resetting, not freeing"): every live
// instance, the traceback graph, the LM cache, and the acoustic scorer's
// window are cleared, but the underlying arenas keep their allocated
// capacity.
func (d *Decoder) Reset() {
	d.pool.ResetAll()
	d.graph.Reset()
	if d.lmc != nil {
		d.lmc.Reset()
	}
	if d.ac != nil {
		d.ac.Reset()
	}
	d.idc.Reset()
}

// Destroy releases this Decoder's resources. Per spec §5, explicit release
// is a process-shutdown concern rather than a per-utterance one; Destroy
// simply drops every collaborator-facing reference so the arenas become
// eligible for normal Go garbage collection.
func (d *Decoder) Destroy() {
	d.prop = nil
	d.ac = nil
	d.lmc = nil
	d.pruner = nil
	d.graph = nil
	d.pool = nil
	d.tbb = nil
	d.latb = nil
}
