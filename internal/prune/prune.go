// Package prune implements the five-beam Pruning Controller of spec §4.7:
// main, relative, word-end, Z/S-layer, and histogram beams, plus the
// dynamic beam-width feedback loop of §4.5 steps 5-6.
package prune

// Params holds the five beam widths and the histogram-feedback knobs,
// all non-negative log-score widths (spec §4.7).
type Params struct {
	BeamWidth    float64 // main beam
	RelBeamWidth float64 // within-token-set relative beam
	WEBeamWidth  float64 // word-end layer beam
	ZSBeamWidth  float64 // Z/S-layer beam

	MaxModel     int     // target live Model instance count; 0 disables histogram feedback
	MaxLNBeamFlr float64 // curBeamWidth floor, expressed as a fraction of BeamWidth
	DynBeamInc   float64 // multiplicative relaxation factor applied when under target
}

// Controller tracks the dynamic main beam width across frames (spec §4.5
// step 5: "if fewer instances survive, relax curBeamWidth *= dynBeamInc,
// capped at beamWidth").
type Controller struct {
	p             Params
	curBeamWidth  float64
}

// New returns a Controller with curBeamWidth initialised to the full main
// beam.
func New(p Params) *Controller {
	return &Controller{p: p, curBeamWidth: p.BeamWidth}
}

// CurBeamWidth returns the dynamic beam width currently in effect.
func (c *Controller) CurBeamWidth() float64 { return c.curBeamWidth }

// BeamLimit returns beamLimit = bestScore - curBeamWidth (spec §4.5 step
// 3/6), the cut threshold for the main beam.
func (c *Controller) BeamLimit(bestScore float64) float64 {
	return bestScore - c.curBeamWidth
}

// WordEndLimit returns the cut threshold for the word-end layer beam
// against the frame's best word-end score.
func (c *Controller) WordEndLimit(bestWEScore float64) float64 {
	return bestWEScore - c.p.WEBeamWidth
}

// ZSLimit returns the cut threshold for the Z/S-layer beam against that
// layer's local best score.
func (c *Controller) ZSLimit(bestLayerScore float64) float64 {
	return bestLayerScore - c.p.ZSBeamWidth
}

// RelBeamWidth exposes the within-token-set relative beam, consumed
// directly by internal/token's Merge.
func (c *Controller) RelBeamWidth() float64 { return c.p.RelBeamWidth }

const histBins = 128

// AdjustHistogram re-targets curBeamWidth against the number of live Model
// instances (spec §4.5 step 5): if more than MaxModel instances survive,
// build a 128-bin histogram of (bestScore - inst.best) across liveDeltas
// and tighten curBeamWidth to the bin boundary needed to keep at most
// MaxModel, floored at MaxLNBeamFlr*BeamWidth; otherwise relax
// curBeamWidth by DynBeamInc, capped at BeamWidth. liveDeltas holds
// bestScore - inst.best for each live Model instance (each >= 0).
//
// A MaxModel of 0 disables histogram feedback entirely; curBeamWidth then
// stays pinned at BeamWidth.
func (c *Controller) AdjustHistogram(liveDeltas []float64) {
	if c.p.MaxModel <= 0 {
		return
	}

	if len(liveDeltas) <= c.p.MaxModel {
		c.curBeamWidth *= c.p.DynBeamInc
		if c.curBeamWidth > c.p.BeamWidth {
			c.curBeamWidth = c.p.BeamWidth
		}
		return
	}

	floor := c.p.MaxLNBeamFlr * c.p.BeamWidth
	boundary := histogramBoundary(liveDeltas, c.p.MaxModel, c.curBeamWidth)
	if boundary < floor {
		boundary = floor
	}
	c.curBeamWidth = boundary
}

// histogramBoundary buckets deltas into histBins bins spanning [0,
// curWidth], finds the bin containing the target-th smallest delta (i.e.
// the boundary admitting exactly target instances), and returns that
// bin's upper edge. If all deltas fall in bin 0 that edge is
// curWidth/histBins; curWidth is returned unchanged only when fewer than
// target deltas are given.
func histogramBoundary(deltas []float64, target int, curWidth float64) float64 {
	if curWidth <= 0 {
		return curWidth
	}
	counts := make([]int, histBins)
	binWidth := curWidth / histBins
	for _, d := range deltas {
		bin := int(d / binWidth)
		if bin < 0 {
			bin = 0
		}
		if bin >= histBins {
			bin = histBins - 1
		}
		counts[bin]++
	}

	cum := 0
	for b := 0; b < histBins; b++ {
		cum += counts[b]
		if cum >= target {
			return float64(b+1) * binWidth
		}
	}
	return curWidth
}
