// Package acoustic implements the acoustic scorer of spec §4.1 and the
// compact block layout of spec §3.5: per-frame, per-shared-state log
// probability with block-ahead caching, for both conventional GMM and
// hybrid (neural) acoustic models.
package acoustic

import (
	"fmt"
	"math"

	"golang.org/x/sync/singleflight"

	"github.com/tanaris-labs/lvdecode/internal/logscore"
	"github.com/tanaris-labs/lvdecode/pkg/collab"
)

// Scorer evaluates state output log-probabilities for one or many frames
// and caches per-frame per-state values (spec §4.1 contract).
//
// Scorer is intended for single-utterance, single-goroutine use per the
// decoder's concurrency model (spec §5); the internal singleflight group
// only guards against the case where a lookahead precomputation pass
// (enriched from [golang.org/x/sync]) and the main propagation loop
// request the same (state, frame) block concurrently.
type Scorer struct {
	model   collab.AcousticModel
	acScale float64
	block   int // B, the block-ahead scoring size

	window     [][]float64 // currently buffered observation vectors
	windowFrom int         // frame index of window[0]

	caches  map[int]*blockCache
	layouts map[int]packedMixtures
	sf      singleflight.Group
}

// packedMixtures is one state's Gaussian mixtures laid out per spec §3.5's
// compact block: M rows of F = layout.RowWidth() floats, built once per
// state and reused across frames (the mixture parameters themselves are
// static for the lifetime of the model).
type packedMixtures struct {
	layout BlockLayout
	numMix int
	rows   []float64 // numMix * layout.RowWidth() floats, row-major
}

type blockCache struct {
	startFrame int // -1 means "no block cached yet"
	scores     []float64
}

// New returns a Scorer for model, scaling every combined log-probability by
// acScale (spec §6.2 acScale) and caching up to blockSize frames ahead per
// state (spec §4.1 "block of up to B observation vectors").
func New(model collab.AcousticModel, acScale float64, blockSize int) *Scorer {
	if blockSize < 1 {
		blockSize = 1
	}
	return &Scorer{
		model:   model,
		acScale: acScale,
		block:   blockSize,
		caches:  make(map[int]*blockCache),
		layouts: make(map[int]packedMixtures),
	}
}

// SetWindow installs the observation vectors available starting at frame
// fromFrame. The decoder calls this once per processed block of
// observations (spec §6.2 processFrame(observationBlock, ...)); Score then
// serves any frame within [fromFrame, fromFrame+len(vectors)) from this
// window, computing fresh blocks lazily per shared state.
func (s *Scorer) SetWindow(fromFrame int, vectors [][]float64) {
	s.windowFrom = fromFrame
	s.window = vectors
}

// Reset clears all per-state caches, used when a decoder instance is
// reused across utterances.
func (s *Scorer) Reset() {
	s.caches = make(map[int]*blockCache)
	s.layouts = make(map[int]packedMixtures)
	s.window = nil
	s.windowFrom = 0
}

// Score returns acScale * ln p(o_t | s), using the per-state block cache.
// t is an absolute frame index that must fall within the currently
// installed window (see [Scorer.SetWindow]).
func (s *Scorer) Score(state, t int) (float64, error) {
	bc := s.caches[state]
	if bc == nil {
		bc = &blockCache{startFrame: -1}
		s.caches[state] = bc
	}

	if bc.startFrame >= 0 && t >= bc.startFrame && t-bc.startFrame < len(bc.scores) {
		return bc.scores[t-bc.startFrame], nil
	}

	key := fmt.Sprintf("%d:%d", state, t)
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		return s.computeBlock(state, t)
	})
	if err != nil {
		return 0, err
	}
	scores := v.([]float64)
	bc.startFrame = t
	bc.scores = scores
	return scores[0], nil
}

// computeBlock scores frames [t, t+B) (truncated at the end of the
// installed window — "boundary cases near end-of-utterance score fewer
// than B", spec §4.1) for one shared state in a single pass.
func (s *Scorer) computeBlock(state, t int) ([]float64, error) {
	avail := len(s.window) - (t - s.windowFrom)
	if avail <= 0 {
		return nil, fmt.Errorf("acoustic: frame %d outside installed window [%d, %d)", t, s.windowFrom, s.windowFrom+len(s.window))
	}
	n := s.block
	if avail < n {
		n = avail
	}

	out := make([]float64, n)
	if s.model.Hybrid {
		for i := 0; i < n; i++ {
			raw := s.model.Posterior(state, t+i-s.windowFrom)
			out[i] = logscore.Clamp(s.acScale * raw)
		}
		return out, nil
	}

	pm, ok := s.layouts[state]
	if !ok {
		pm = packMixtures(s.model.Mixtures(state))
		s.layouts[state] = pm
	}
	for i := 0; i < n; i++ {
		obs := s.window[(t+i)-s.windowFrom]
		raw := pm.logProb(obs)
		out[i] = logscore.Clamp(s.acScale * raw)
	}
	return out, nil
}

// packMixtures lays mix out per spec §3.5's compact block: one row per
// mixture component, each row holding [gConst, mixWeight, mixCount, ptrPad,
// mean[pad], invVar[pad]] with mean/invVar alignment-padded to a multiple of
// 4 floats so the per-mixture inner loop strides over a fixed-width,
// SIMD-friendly row instead of through separate mean/invVar slices.
func packMixtures(mix collab.MixtureSet) packedMixtures {
	n := len(mix.Mean)
	dim := 0
	if n > 0 {
		dim = len(mix.Mean[0])
	}
	layout := BlockLayout{Dim: dim, MinMix: n}
	f := layout.RowWidth()
	pad := Pad(dim)

	rows := make([]float64, n*f)
	for m := 0; m < n; m++ {
		row := rows[m*f : (m+1)*f]
		row[0] = mix.GConst[m]
		row[1] = mix.LogWeight[m]
		row[2] = float64(n)
		row[3] = 0 // ptrPad
		copy(row[4:4+dim], mix.Mean[m])
		copy(row[4+pad:4+pad+dim], mix.InvVar[m])
	}
	return packedMixtures{layout: layout, numMix: n, rows: rows}
}

// logProb evaluates the per-frame log probability for pm's Gaussian mixture
// (spec §4.1): for each mixture row, -0.5*(gConst + sum_i (x_i-mean_i)^2 *
// invVar_i), combined across rows by log-sum-exp with the row's log mixture
// weight added. pm.rows is read one fixed-width row at a time per pm.layout
// ("preserve the alignment contract", spec §3.5/§9) rather than through
// per-mixture slices.
func (pm packedMixtures) logProb(obs []float64) float64 {
	if pm.numMix == 1 {
		return pm.rowLogProb(0, obs)
	}
	terms := make([]float64, pm.numMix)
	f := pm.layout.RowWidth()
	for m := 0; m < pm.numMix; m++ {
		terms[m] = pm.rows[m*f+1] + pm.rowLogProb(m, obs)
	}
	return logscore.LogSumExp(terms)
}

func (pm packedMixtures) rowLogProb(m int, obs []float64) float64 {
	f := pm.layout.RowWidth()
	pad := Pad(pm.layout.Dim)
	row := pm.rows[m*f : (m+1)*f]

	mean := row[4 : 4+pad]
	invVar := row[4+pad : 4+2*pad]
	sum := row[0]
	for i := range obs {
		d := obs[i] - mean[i]
		sum += d * d * invVar[i]
	}
	return -0.5 * sum
}

// BlockLayout describes the compact state-block layout of spec §3.5: M rows
// of F floats each, where M (MinMix) is the mixture count the block was
// sized for and F = RowWidth(). A state with k*M mixtures occupies k
// consecutive block slots ([BlockLayout.Slots]).
type BlockLayout struct {
	Dim    int // observation vector dimensionality
	MinMix int // M: rows per block slot
}

// Pad rounds dim up to the next multiple of 4 floats, matching the
// alignment contract of spec §3.5 ("alignment padding makes each row
// SIMD-friendly").
func Pad(dim int) int {
	const align = 4
	return ((dim + align - 1) / align) * align
}

// RowWidth returns F, the number of floats in one block row.
func (b BlockLayout) RowWidth() int {
	return 2*Pad(b.Dim) + 4
}

// Slots returns how many consecutive block slots a state with k*M mixtures
// occupies (k = ceil(numMix / MinMix)).
func (b BlockLayout) Slots(numMix int) int {
	if b.MinMix <= 0 {
		return 1
	}
	return int(math.Ceil(float64(numMix) / float64(b.MinMix)))
}
