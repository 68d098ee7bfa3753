package decoder

// Params bundles the per-utterance-class scoring constants of spec §6.2
// init(...): insPen, acScale, pronScale, lmScale, fastLMLABeam, plus the GC
// cadence of §4.8.
type Params struct {
	InsPen       float64 // word-insertion penalty added at every word end
	AcScale      float64
	PronScale    float64
	LMScale      float64
	FastLMLABeam float64 // delta below which fast-LMLA coarsening may be used, §4.2

	GCFreq int // invoke traceback GC every GCFreq frames; default 100 (§4.8)

	K int // max RelTokens retained per TokenSet (§3)
}

// DefaultGCFreq is the "default 100" cadence named in spec §4.8.
const DefaultGCFreq = 100
