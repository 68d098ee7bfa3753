// Package config provides the configuration schema, loader, and collaborator
// registry for the lvdecode LVCSR decoder.
package config

// Config is the root configuration structure for lvdecode. It is typically
// loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Init    InitConfig    `yaml:"init"`
	Pruning PruningConfig `yaml:"pruning"`
	Lattice LatticeConfig `yaml:"lattice"`
	ConfNet ConfNetConfig `yaml:"confnet"`
	Files   FilesConfig   `yaml:"files"`
}

// ServerConfig holds process-wide logging and metrics-listener settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the Prometheus metrics endpoint listens
	// on (e.g., ":9090"). Empty disables the listener.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls slog verbosity. Valid values: "debug", "info",
	// "warn", "error".
	LogLevel LogLevel `yaml:"log_level"`

	// Trace holds spec §6.5's TRACE key. It is loaded and validated only:
	// no code in this module reads it, and no token-set debug dumps are
	// emitted.
	Trace bool `yaml:"trace"`
}

// LogLevel is a validated slog level name.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is one of the recognised level names.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// InitConfig mirrors the parameters of spec §6.2's `init(...)` call: the
// beams, scales, and caps a decoder [pkg/collab] collaborator set is run
// with for the lifetime of a session.
type InitConfig struct {
	// SampleRate is the observation frame rate in Hz, used only to annotate
	// log/trace output with wall-clock-equivalent timings.
	SampleRate int `yaml:"sample_rate"`

	// BeamWidth is the primary global pruning beam (spec §4.7 "Main beam").
	BeamWidth float64 `yaml:"beam_width"`

	// RelBeamWidth is the within-token-set relative beam (spec §4.7
	// "Relative beam").
	RelBeamWidth float64 `yaml:"rel_beam_width"`

	// WEBeamWidth is the word-end layer beam (spec §4.7 "Word-end beam").
	WEBeamWidth float64 `yaml:"we_beam_width"`

	// ZSBeamWidth is the ZS/SA layer beam (spec §4.7 "Z/S-layer beam").
	ZSBeamWidth float64 `yaml:"zs_beam_width"`

	// MaxModel caps the number of live Model instances before histogram
	// pruning (spec §4.7 step 5) kicks in. Zero disables histogram pruning.
	MaxModel int `yaml:"max_model"`

	// InsPen is the word-insertion penalty added at every word-end
	// transition (spec §4.6 step "Fetch LM transition").
	InsPen float64 `yaml:"ins_pen"`

	// AcScale scales every acoustic log-likelihood (spec §4.1).
	AcScale float64 `yaml:"ac_scale"`

	// PronScale scales pronunciation-probability log-likelihoods.
	PronScale float64 `yaml:"pron_scale"`

	// LMScale scales every LM log-probability (spec §4.2, §4.6).
	LMScale float64 `yaml:"lm_scale"`

	// FastLMLABeam is the lookahead-pruning beam applied against a coarsened
	// fastState LM lookahead score (spec §6.5 MAXLMLA), used to skip full
	// lookahead evaluation for clearly-losing tree branches.
	FastLMLABeam float64 `yaml:"fast_lmla_beam"`
}

// PruningConfig collects the spec §6.5 flags that govern the pruning
// controller (C7, internal/prune) and the per-frame propagation loop.
type PruningConfig struct {
	// GCFreq is the number of frames between traceback GC cycles (spec
	// §6.5 GCFREQ, C8).
	GCFreq int `yaml:"gc_freq"`

	// PDE enables phone-deactivation-exploitation style skipping of
	// internal-only HMM states that cannot change the token set this frame
	// (spec §6.5 PDE).
	PDE bool `yaml:"pde"`

	// UseOldPrune selects the teacher-HTK-compatible single-pass pruning
	// order instead of the default histogram-then-relative order (spec
	// §6.5 USEOLDPRUNE).
	UseOldPrune bool `yaml:"use_old_prune"`

	// MergeTokOnly restricts [internal/token.Merge] to same-state token
	// merges, skipping the word-history-divergence check (spec §6.5
	// MERGETOKONLY) — a performance/accuracy tradeoff.
	MergeTokOnly bool `yaml:"merge_tok_only"`

	// MaxLNBeamFlr floors the histogram-adjusted curBeamWidth at
	// MaxLNBeamFlr*BeamWidth (spec §4.7 step 5, §6.5 MAXLNBEAMFLR).
	MaxLNBeamFlr float64 `yaml:"max_ln_beam_flr"`

	// DynBeamInc is the per-frame relaxation factor applied to
	// curBeamWidth when fewer than MaxModel instances survive (spec §4.7
	// step 5, §6.5 DYNBEAMINC).
	DynBeamInc float64 `yaml:"dyn_beam_inc"`
}

// LatticeConfig collects the spec §6.5 flags governing lattice/traceback
// construction (C9, internal/traceback, internal/lattice).
type LatticeConfig struct {
	// BuildLatSentEnd restricts lattice construction to endpoints that
	// reached the sentence-end node, skipping the best-token and forced
	// fallbacks of spec §4.9 (spec §6.5 BUILDLATSENTEND).
	BuildLatSentEnd bool `yaml:"build_lat_sent_end"`

	// ForceLatOut forces at least one arc to the final node even when no
	// token survived to sentence-end (spec §8 B4, §6.5 FORCELATOUT).
	ForceLatOut bool `yaml:"force_lat_out"`

	// ClampAcLike floors recovered per-arc acoustic likelihoods at this
	// value, guarding against the floating-point score-arithmetic
	// underflow spec §4.9/§7 calls out (spec §6.5 CLAMPACLIKE). Zero
	// disables clamping.
	ClampAcLike float64 `yaml:"clamp_ac_like"`

	// FixPronProb substitutes a fixed pronunciation-probability constant
	// for the dictionary's per-pronunciation probabilities when recovering
	// arc likelihoods (spec §6.5 FIXPRONPROB).
	FixPronProb bool `yaml:"fix_pron_prob"`

	// ScaleLatScore writes arc scores already multiplied by AcScale/LMScale
	// into the lattice header instead of leaving scale factors to the
	// reader (spec §6.3 lattice header fields, §6.5 SCALELATSCORE).
	ScaleLatScore bool `yaml:"scale_lat_score"`
}

// ConfNetConfig collects the spec §6.5 flags governing confusion-network
// clustering (C10, internal/confnet).
type ConfNetConfig struct {
	// Method selects CONFMETHOD (spec §6.5): GEOMEAN averages pairwise
	// phonetic-similarity x posterior products across an inter-word merge
	// candidate pair, MAX takes the single best pair.
	Method ConfMethod `yaml:"method"`

	// AddNullWord appends a residual [!NULL] entry to a cluster whenever
	// its listed posteriors sum to less than 1 (spec §6.5 ADDNULLWORD,
	// §4.10 step 10).
	AddNullWord bool `yaml:"add_null_word"`

	// ConfNetPrune is the log-posterior floor applied during cluster
	// pruning (spec §6.5 CONFNETPRUNE, §4.10 steps 4/6). Zero selects the
	// package defaults (-10 for pass 1, -5 for pass 2).
	ConfNetPrune float64 `yaml:"conf_net_prune"`
}

// ConfMethod is the CONFMETHOD enum of spec §6.5.
type ConfMethod string

const (
	ConfMethodGeoMean ConfMethod = "GEOMEAN"
	ConfMethodMax     ConfMethod = "MAX"
)

// IsValid reports whether m is one of the recognised CONFMETHOD values.
func (m ConfMethod) IsValid() bool {
	switch m {
	case ConfMethodGeoMean, ConfMethodMax:
		return true
	}
	return false
}

// FilesConfig collects the output filename-mask templates of spec §6.5,
// each interpreted the way HTK-style tools expand a mask: `%%` is replaced
// with the utterance base name.
type FilesConfig struct {
	// LabFileMask is the 1-best label output path template (LABFILEMASK).
	LabFileMask string `yaml:"lab_file_mask"`

	// LabOFileMask is the 1-best label output directory override
	// (LABOFILEMASK).
	LabOFileMask string `yaml:"lab_o_file_mask"`

	// LatFileMask is the lattice output path template (LATFILEMASK).
	LatFileMask string `yaml:"lat_file_mask"`

	// LatOFileMask is the lattice output directory override
	// (LATOFILEMASK).
	LatOFileMask string `yaml:"lat_o_file_mask"`
}
