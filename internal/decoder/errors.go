package decoder

import "errors"

// Error taxonomy for the decoder core (spec §6.2). Sentinel errors are
// wrapped with %w so callers can match via errors.Is while still getting a
// frame/node-scoped message.
var (
	// ErrNoObservations is returned by ProcessFrame when called with an
	// empty observation block.
	ErrNoObservations = errors.New("decoder: empty observation block")

	// ErrNotInitialized is returned when ProcessFrame, Traceback, or
	// LatticeTraceback is called before Init.
	ErrNotInitialized = errors.New("decoder: Init not called")

	// ErrNoSurvivingTokens is returned by Traceback when every token set in
	// the network has been pruned to empty — decoding has diverged (e.g.
	// beams too tight for the acoustic evidence).
	ErrNoSurvivingTokens = errors.New("decoder: no surviving tokens to trace back")

	// ErrAlreadyActive is returned by Init if called on a decoder already
	// mid-utterance; callers must Reset first.
	ErrAlreadyActive = errors.New("decoder: decoder already initialised; call Reset first")

	// ErrLMCacheInconsistent is surfaced when the LM lookahead cache detects
	// a monotonicity violation (spec §4.2/§7): a recomputed lookahead score
	// exceeded the previously observed score for the same slot by more than
	// the cache's slack, indicating a non-deterministic or mis-specified
	// LanguageModel.
	ErrLMCacheInconsistent = errors.New("decoder: LM lookahead cache inconsistency")
)
