// Package collab declares the external-collaborator interfaces the decoder
// core consumes (spec §6.1): acoustic model, language model, lexicon
// network, dictionary, and observation source. None of these are
// implemented here — model I/O, training, and file formats are explicitly
// out of scope for this module. Callers supply concrete implementations
// (e.g. loading an HTK-style HMM set, an ARPA n-gram, or a neural acoustic
// model) that satisfy these contracts.
package collab

// MixtureSet describes the Gaussian mixture layout of one shared HMM state,
// as consumed by an [AcousticModel] for non-hybrid decoding. Vectors are
// diagonal-covariance (inverse variance stored directly, as in §3.5).
type MixtureSet struct {
	// LogWeight is ln(mixture weight) for each component.
	LogWeight []float64
	// GConst is the per-mixture normalisation constant folded into the
	// quadratic form (2*ln(2*pi)*dim + ln(det(cov))).
	GConst []float64
	// Mean is the per-mixture mean vector, one slice per component.
	Mean [][]float64
	// InvVar is the per-mixture inverse-diagonal-covariance vector.
	InvVar [][]float64
}

// AcousticModel supplies per-state Gaussian mixture parameters, or (in
// hybrid/neural mode) per-state softmax posteriors. An implementation
// chooses one of the two; [AcousticModel.Hybrid] tells the scorer which.
type AcousticModel struct {
	// Hybrid is true when Posterior returns softmax posteriors (already
	// normalised probabilities) rather than GMM parameters, and Mixtures
	// must not be called.
	Hybrid bool

	// Dim is the observation vector dimensionality.
	Dim int

	// Mixtures returns the Gaussian mixture parameters for shared state s.
	// Only valid when Hybrid is false.
	Mixtures func(s int) MixtureSet

	// Posterior returns ln(softmax posterior) for state s at frame t, when
	// Hybrid is true. The caller (the acoustic scorer) supplies t relative
	// to the start of the current scoring block.
	Posterior func(s, t int) float64
}

// LMState is an opaque handle into a language model's history space.
// Implementations may use it to represent an n-gram context, an FSA state,
// or any other backing representation; the decoder only ever compares
// LMStates for equality and orders them via [LanguageModel.Less] for the RelToken
// sort order required by invariant I2.
type LMState interface{}

// LanguageModel supplies LM transition probabilities and lookahead maxima
// over the lexicon tree (§4.2, §6.1).
type LanguageModel interface {
	// TransProb returns the destination LM state and ln P(w|src) for the
	// pronunciation pron crossing a word end from src.
	TransProb(src LMState, pron int) (dest LMState, logP float64)

	// LookaheadMax returns the maximum of ln P(w|src) over the contiguous
	// word-end pronunciation range [loWE, hiWE) reachable from a lexicon
	// node (the "simple" lookahead node case of §4.2).
	LookaheadMax(src LMState, loWE, hiWE int) float64

	// Less imposes the total order over LMState required by invariant I2
	// and the sorted-merge of §4.3. Implementations must provide a
	// consistent strict weak ordering.
	Less(a, b LMState) bool

	// Equal reports whether a and b denote the same LM state.
	Equal(a, b LMState) bool

	// FastState coarsens src into a grouped "fast LMLA" history, used by
	// the LM-lookahead cache's fast-LMLA variant (§4.2). Optional: a
	// LanguageModel that does not support coarsening may return src
	// unchanged; the cache then behaves as if fast-LMLA were disabled.
	FastState(src LMState) LMState

	// InitialState returns the LM state assigned to the decoder's start
	// node (boundary B2).
	InitialState() LMState
}

// NodeKind distinguishes the three LexNode variants of §3.1.
type NodeKind int

const (
	NodeModel NodeKind = iota
	NodeContext
	NodeWordEnd
)

// LexNode is one node of the static lexicon network (§3.1, §4.4). The
// decoder treats the network as read-only input; all node identity is by
// index into [Lexicon.Nodes].
type LexNode struct {
	Kind NodeKind

	// NumStates is the number of HMM states for a Model node (>= 3: entry,
	// one or more emitting states, exit); always 1 for Context/WordEnd.
	NumStates int

	// TransP is the NumStates x NumStates transition log-prob matrix for a
	// Model node. TransP[i][j] == collab.LSMALL (or more negative) marks a
	// structurally absent transition.
	TransP [][]float64

	// HMMRef identifies the acoustic model's shared-state indices for each
	// emitting state of a Model node (length NumStates, entry/exit unused).
	HMMRef []int

	// IsTee is true when TransP[0][NumStates-1] is a valid (non-absent)
	// transition — a direct entry-to-exit path consuming zero frames (the
	// "tee model" of the GLOSSARY).
	IsTee bool

	// Pron is the pronunciation id carried by a WordEnd node.
	Pron int

	// Succ lists successor node indices.
	Succ []int

	// LMLAIndex is this node's LM-lookahead tree index (§4.2); 0 means "no
	// lookahead" (used only by WordEnd nodes, which apply the LM
	// transition directly instead).
	LMLAIndex int
}

// Layer is a named, ordered partition of the lexicon network (§3.1, §4.4).
// The decoder scans layers in Lexicon.Layers order every frame.
type Layer struct {
	Name  string
	Nodes []int // indices into Lexicon.Nodes
}

// Designated layer roles referenced by the propagator and word-end handler
// (§4.4, §4.5, REDESIGN note on sp-skip).
type LayerRole int

const (
	RoleSilence LayerRole = iota
	RoleWordEnd
	RoleABJunction
	RoleBYJunction
	RoleSPSkip
	RoleZS // Z/S cross-word layer sharing the zsBeamWidth beam
	RoleSA // S-A cross-word layer sharing the zsBeamWidth beam
)

// LookaheadNode is one entry of the lexicon tree's LM-lookahead index
// (§4.2): either "simple" (a contiguous word-end pronunciation range) or
// "complex" (a union of other lookahead indices, evaluated recursively).
type LookaheadNode struct {
	Complex bool

	// LoWE, HiWE bound the contiguous word-end pronunciation range [LoWE,
	// HiWE) reachable from this tree node. Valid only when !Complex.
	LoWE, HiWE int

	// Children lists other lookahead indices whose max this node takes.
	// Valid only when Complex.
	Children []int
}

// LookaheadTree is the full set of LM-lookahead index nodes, addressed by
// LexNode.LMLAIndex.
type LookaheadTree struct {
	Nodes []LookaheadNode
}

// Lexicon is the static, read-only network consumed by the decoder (§4.4).
type Lexicon struct {
	Nodes  []LexNode
	Layers []Layer
	LA     LookaheadTree

	// RoleOf maps a LayerRole to the layer index implementing it; a missing
	// entry means the role has no dedicated layer (e.g. SilenceDict off
	// disables RoleSPSkip).
	RoleOf map[LayerRole]int

	Start int // node index of the network's start node
	End   int // node index of the sentence-end node

	// SilenceDict is true when every word carries `-`, `sp`, `sil`
	// pronunciation variants applied at the sp-skip layer (§4.4, §4.6).
	SilenceDict bool
}

// Pronunciation describes one dictionary entry (§6.1).
type Pronunciation struct {
	Word      string
	OutSym    string // empty means the word is deleted from the transcription (§4.9)
	LogProb   float64
	HasSP     bool // has a `sp` (short-pause) variant
	HasSIL    bool // has a `sil` variant
}

// Dictionary supplies pronunciation metadata keyed by pronunciation id.
type Dictionary interface {
	Pron(id int) Pronunciation
}

// ObservationBlock is a contiguous block of observation vectors (or, in
// hybrid mode, nothing — posteriors are read directly from the
// [AcousticModel]) delivered to [pkg/lvdecode.Decoder.ProcessFrame].
type ObservationBlock struct {
	Vectors [][]float64 // len == NObs; each of length AcousticModel.Dim
	NObs    int
}
