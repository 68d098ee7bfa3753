// Package token implements the token-set container of spec §3.2 and §4.3:
// the per-HMM-state container of relative-scored partial hypotheses, its
// sorted-merge, identity-fast-path, and histogram-pruning operations.
package token

import (
	"sort"

	"github.com/tanaris-labs/lvdecode/internal/arena"
	"github.com/tanaris-labs/lvdecode/pkg/collab"
)

// RelToken is one competing partial hypothesis within a [Set] (spec §3.2).
// Delta is always <= 0 up to a small floating-point slack (invariant I3 /
// property P3).
type RelToken struct {
	LMState     collab.LMState
	Path        arena.Handle // traceback.WordEndHyp handle
	ModPath     arena.Handle // optional traceback.ModendHyp handle
	Delta       float64      // relative to the owning Set's Score; <= 0.01
	LMLookahead float64      // cached LM-lookahead score already folded into Delta
}

// Set is the TokenSet of spec §3.2: a bounded, LM-state-sorted collection
// of [RelToken] scored relative to Score, the set's best absolute score.
// ID is a monotonically increasing stamp; ID == 0 means empty (invariant
// I4). A non-empty Set's Tok slice is always sorted by LMState under the
// ordering supplied to package functions (invariant I2) and contains no
// duplicate LMState (forbidden by I2).
type Set struct {
	Score float64
	ID    uint64
	Tok   []RelToken
}

// Empty reports whether the set currently holds no tokens.
func (s *Set) Empty() bool {
	return s.ID == 0 || len(s.Tok) == 0
}

// Clear resets the set to the empty state (I4).
func (s *Set) Clear() {
	s.Score = 0
	s.ID = 0
	s.Tok = s.Tok[:0]
}

// Best returns the absolute score of the best token in the set (P1):
// Score + the maximum Delta across Tok. Returns LZERO-equivalent behaviour
// (the caller's sentinel) is the caller's concern; Best returns Score
// itself for an empty set since there is no token to add a delta from.
func (s *Set) Best() float64 {
	best := s.Score
	for _, t := range s.Tok {
		if v := s.Score + t.Delta; v > best {
			best = v
		}
	}
	return best
}

// IDCounter hands out the monotonically increasing TokenSet identity
// stamps used by the merge identity optimisation (spec §4.3). One
// IDCounter is owned per decoder instance; IDs are never reused within an
// utterance, and 0 is reserved to mean "empty set" so the counter starts
// at 1.
type IDCounter struct {
	next uint64
}

// NewIDCounter returns a counter whose first issued ID is 1.
func NewIDCounter() *IDCounter {
	return &IDCounter{next: 1}
}

// Next returns a fresh monotonic ID.
func (c *IDCounter) Next() uint64 {
	id := c.next
	c.next++
	return id
}

// Reset restarts the counter at 1, used when a decoder instance is reused
// across utterances.
func (c *IDCounter) Reset() {
	c.next = 1
}

// Params bundles the beam/LM-ordering parameters [Merge] needs.
type Params struct {
	// K is the maximum number of RelTokens kept per set.
	K int
	// RelBeamWidth is the within-set relative beam (spec §4.7
	// relBeamWidth); must be >= 0.
	RelBeamWidth float64
	// BeamLimit is the current global beamLimit = bestScore - curBeamWidth
	// (spec §4.5 step 3); used only when Prune is true.
	BeamLimit float64
	// Less provides the total order over LMState required by I2.
	Less func(a, b collab.LMState) bool
	// Equal reports LMState equality.
	Equal func(a, b collab.LMState) bool
}

// deltaLimit computes the discard threshold of spec §4.3: tokens with
// Delta below this value are dropped during merge.
func deltaLimit(p Params, prune bool, winScore float64) float64 {
	relBeamDelta := -p.RelBeamWidth
	if !prune {
		return float64(p.K) * relBeamDelta
	}
	fromGlobal := p.BeamLimit - winScore
	if relBeamDelta > fromGlobal {
		return relBeamDelta
	}
	return fromGlobal
}

// Merge forms the union of src and dest into dest's storage, adding
// addScore to every token in src before comparison, keeping the better
// score per LM-state, then retaining the up-to-K globally-best survivors
// sorted by LMState (spec §4.3). dest is mutated in place and returned.
//
// The identity optimisation (I2, P6) short-circuits when src.ID == dest.ID
// and both are non-zero: the two sets are identical by construction, so
// only the scalar best-scores are compared and dest keeps its own id.
func Merge(idc *IDCounter, src, dest *Set, addScore float64, prune bool, p Params) *Set {
	if src.ID != 0 && src.ID == dest.ID {
		// Identity fast path (P6): reltoken arrays are pointwise identical;
		// only the absolute score can differ (addScore + whichever
		// propagation path scored higher upstream).
		if src.Score+addScore > dest.Score {
			dest.Score = src.Score + addScore
		}
		return dest
	}

	if dest.Empty() && addScore == 0 {
		// Pure copy from src: identity is inherited (spec §4.3 ID
		// assignment rule). A non-zero addScore still shifts every delta
		// uniformly, so the reltoken *set* is unchanged in shape, but we
		// only call it "pure" (and keep the id) when nothing at all
		// changed about the absolute scores either.
		copyInto(dest, src)
		dest.ID = src.ID
		return dest
	}

	merged := sortedUnion(src, dest, addScore, p)

	winScore := merged.Score
	limit := deltaLimit(p, prune, winScore)
	merged.Tok = filterByDelta(merged.Tok, limit)

	if len(merged.Tok) > p.K {
		merged.Tok = histogramPrune(merged.Tok, p.K)
	}

	if len(merged.Tok) == 0 {
		dest.Clear()
		return dest
	}

	dest.Score = merged.Score
	dest.Tok = merged.Tok
	dest.ID = idc.Next()
	return dest
}

func copyInto(dest, src *Set) {
	dest.Score = src.Score
	if cap(dest.Tok) < len(src.Tok) {
		dest.Tok = make([]RelToken, len(src.Tok))
	} else {
		dest.Tok = dest.Tok[:len(src.Tok)]
	}
	copy(dest.Tok, src.Tok)
}

// sortedUnion performs the single linear pass merge of spec §4.3 "Sorted
// merge": both inputs are assumed sorted by LMState; wherever both carry
// the same LMState the higher score wins; src's deltas are offset by
// addScore before comparison. Ties (equal score) keep dest's token ahead
// of src's, i.e. dest beats src on a tie, matching "a defined order...
// original-source first on ties" from spec §5.
func sortedUnion(src, dest *Set, addScore float64, p Params) *Set {
	out := &Set{}
	winAbs := dest.Score
	if v := src.Score + addScore; v > winAbs {
		winAbs = v
	}
	out.Score = winAbs

	i, j := 0, 0
	for i < len(dest.Tok) || j < len(src.Tok) {
		switch {
		case j >= len(src.Tok):
			out.Tok = append(out.Tok, rebase(dest.Tok[i], dest.Score, winAbs))
			i++
		case i >= len(dest.Tok):
			out.Tok = append(out.Tok, rebase(offsetTok(src.Tok[j], addScore), src.Score, winAbs))
			j++
		case p.Equal(dest.Tok[i].LMState, src.Tok[j].LMState):
			dt := rebase(dest.Tok[i], dest.Score, winAbs)
			st := rebase(offsetTok(src.Tok[j], addScore), src.Score, winAbs)
			if st.Delta > dt.Delta {
				out.Tok = append(out.Tok, st)
			} else {
				out.Tok = append(out.Tok, dt)
			}
			i++
			j++
		case p.Less(dest.Tok[i].LMState, src.Tok[j].LMState):
			out.Tok = append(out.Tok, rebase(dest.Tok[i], dest.Score, winAbs))
			i++
		default:
			out.Tok = append(out.Tok, rebase(offsetTok(src.Tok[j], addScore), src.Score, winAbs))
			j++
		}
	}
	return out
}

func offsetTok(t RelToken, addScore float64) RelToken {
	t.Delta += addScore
	return t
}

// rebase re-expresses a token's delta (currently relative to fromScore)
// relative to toScore, the new set-wide best absolute score.
func rebase(t RelToken, fromScore, toScore float64) RelToken {
	if fromScore != toScore {
		t.Delta += fromScore - toScore
	}
	return t
}

func filterByDelta(toks []RelToken, limit float64) []RelToken {
	out := toks[:0]
	for _, t := range toks {
		if t.Delta >= limit {
			out = append(out, t)
		}
	}
	return out
}

// histogramPrune implements the 64-bin bucket sort of spec §4.3: bucket
// deltas into 64 bins spanning [minDelta, 0], find the bin containing the
// K-th best token, then keep exactly K tokens using that bin boundary
// (relaxing it if undershooting, demoting ties to break overshoot).
func histogramPrune(toks []RelToken, k int) []RelToken {
	const nBins = 64

	minDelta := 0.0
	for _, t := range toks {
		if t.Delta < minDelta {
			minDelta = t.Delta
		}
	}
	if minDelta == 0 {
		// All tokens share delta 0 (shouldn't happen outside degenerate
		// single-token sets, but guard division by zero below).
		sortByDeltaDesc(toks)
		if len(toks) > k {
			toks = toks[:k]
		}
		return toks
	}

	binWidth := -minDelta / nBins
	counts := make([]int, nBins+1)
	binOf := func(delta float64) int {
		b := int((0 - delta) / binWidth)
		if b < 0 {
			b = 0
		}
		if b > nBins {
			b = nBins
		}
		return b
	}
	for _, t := range toks {
		counts[binOf(t.Delta)]++
	}

	cum := 0
	boundaryBin := nBins
	for b := 0; b <= nBins; b++ {
		cum += counts[b]
		if cum >= k {
			boundaryBin = b
			break
		}
	}
	boundaryDelta := 0 - float64(boundaryBin)*binWidth

	selected := make([]RelToken, 0, k)
	var tie []RelToken
	for _, t := range toks {
		if t.Delta > boundaryDelta {
			selected = append(selected, t)
		} else if binOf(t.Delta) == boundaryBin {
			tie = append(tie, t)
		}
	}

	if len(selected) < k {
		// Undershoot: relax the boundary by admitting tie-bin members,
		// best-first, until we reach exactly k (or run out).
		sortByDeltaDesc(tie)
		need := k - len(selected)
		if need > len(tie) {
			need = len(tie)
		}
		selected = append(selected, tie[:need]...)
	} else if len(selected) > k {
		// Overshoot within the exact boundary delta itself: demote the
		// excess ties (stable by original order) rather than lose
		// arbitrary survivors from a tighter bin.
		sortByDeltaDesc(selected)
		selected = selected[:k]
	}

	return selected
}

func sortByDeltaDesc(toks []RelToken) {
	sort.SliceStable(toks, func(i, j int) bool { return toks[i].Delta > toks[j].Delta })
}

// SortByLMState re-establishes the I2 ordering invariant; used by callers
// that build a Set by appending tokens out of order (e.g. word-end
// handling, §4.6) before handing it to [Merge].
func SortByLMState(s *Set, less func(a, b collab.LMState) bool) {
	sort.SliceStable(s.Tok, func(i, j int) bool { return less(s.Tok[i].LMState, s.Tok[j].LMState) })
}
