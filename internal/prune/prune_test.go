package prune

import "testing"

func baseParams() Params {
	return Params{
		BeamWidth:    10,
		RelBeamWidth: 3,
		WEBeamWidth:  4,
		ZSBeamWidth:  2,
		MaxModel:     16,
		MaxLNBeamFlr: 0.2,
		DynBeamInc:   1.1,
	}
}

func TestBeamLimitSubtractsCurBeamWidth(t *testing.T) {
	c := New(baseParams())
	if got := c.BeamLimit(100); got != 90 {
		t.Fatalf("BeamLimit = %v, want 90", got)
	}
}

func TestWordEndAndZSLimits(t *testing.T) {
	c := New(baseParams())
	if got := c.WordEndLimit(50); got != 46 {
		t.Fatalf("WordEndLimit = %v, want 46", got)
	}
	if got := c.ZSLimit(50); got != 48 {
		t.Fatalf("ZSLimit = %v, want 48", got)
	}
}

func TestAdjustHistogramRelaxesWhenUnderTarget(t *testing.T) {
	c := New(baseParams())
	c.curBeamWidth = 5
	c.AdjustHistogram(make([]float64, 10)) // 10 <= MaxModel(16): relax
	want := 5 * 1.1
	if c.curBeamWidth != want {
		t.Fatalf("curBeamWidth = %v, want %v", c.curBeamWidth, want)
	}
}

func TestAdjustHistogramRelaxCapsAtBeamWidth(t *testing.T) {
	c := New(baseParams())
	c.curBeamWidth = 9.99
	c.AdjustHistogram(make([]float64, 1))
	if c.curBeamWidth != c.p.BeamWidth {
		t.Fatalf("curBeamWidth = %v, want capped at BeamWidth %v", c.curBeamWidth, c.p.BeamWidth)
	}
}

func TestAdjustHistogramTightensWhenOverTarget(t *testing.T) {
	c := New(baseParams())
	c.curBeamWidth = 10
	deltas := make([]float64, 64)
	for i := range deltas {
		deltas[i] = float64(i) / 63 * 10 // spread evenly across [0,10]
	}
	c.AdjustHistogram(deltas) // target=16 out of 64 live instances: must tighten
	if c.curBeamWidth >= 10 {
		t.Fatalf("curBeamWidth = %v, want tightened below 10", c.curBeamWidth)
	}
	if c.curBeamWidth < baseParams().MaxLNBeamFlr*baseParams().BeamWidth {
		t.Fatalf("curBeamWidth = %v fell below the MaxLNBeamFlr floor", c.curBeamWidth)
	}
}

func TestAdjustHistogramRespectsFloor(t *testing.T) {
	p := baseParams()
	p.MaxLNBeamFlr = 0.9
	c := New(p)
	c.curBeamWidth = 10
	deltas := make([]float64, 64)
	for i := range deltas {
		deltas[i] = float64(i) / 63 * 10
	}
	c.AdjustHistogram(deltas)
	floor := p.MaxLNBeamFlr * p.BeamWidth
	if c.curBeamWidth < floor-1e-9 {
		t.Fatalf("curBeamWidth = %v, want >= floor %v", c.curBeamWidth, floor)
	}
}

func TestAdjustHistogramDisabledWhenMaxModelZero(t *testing.T) {
	p := baseParams()
	p.MaxModel = 0
	c := New(p)
	c.curBeamWidth = 7
	c.AdjustHistogram(make([]float64, 1000))
	if c.curBeamWidth != 7 {
		t.Fatalf("curBeamWidth changed to %v despite MaxModel=0", c.curBeamWidth)
	}
}

func TestHistogramPruneDoesNotUnderPruneWithFewerThanBins(t *testing.T) {
	// B3: fewer live tokens than bins must not under-prune — i.e. the
	// boundary selected must still admit at least `target` of the given
	// deltas, never fewer.
	deltas := []float64{0.1, 0.5, 1.0}
	b := histogramBoundary(deltas, 2, 10)
	count := 0
	for _, d := range deltas {
		if d < b {
			count++
		}
	}
	if count < 2 {
		t.Fatalf("boundary %v admits only %d deltas, want >= 2", b, count)
	}
}
