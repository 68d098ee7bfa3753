package decoder

import (
	"github.com/tanaris-labs/lvdecode/internal/arena"
	"github.com/tanaris-labs/lvdecode/internal/lm"
	"github.com/tanaris-labs/lvdecode/internal/token"
	"github.com/tanaris-labs/lvdecode/internal/traceback"
	"github.com/tanaris-labs/lvdecode/pkg/collab"
)

// weCandidate is the in-progress winner for one destination LM state while
// a WordEnd node's incoming token set is processed (spec §4.6 step 2:
// "insert or replace in the output set keyed by dest LMState").
type weCandidate struct {
	dest       collab.LMState
	delta      float64 // relative to in.Score
	lmScore    float64
	srcPath    arena.Handle
	srcModPath arena.Handle
	altHead    arena.Handle
}

// ApplyWordEnd implements spec §4.6 Word-End Handling: crosses every
// surviving RelToken of in through the LM transition for pron, merges
// candidates keyed by destination LM state (losers are kept as
// AltWordEndHyp chains when latticeGen is set), and returns the
// renormalised output TokenSet with a freshly allocated ID.
//
// relCut is the discard threshold applied to each candidate's newDelta
// (spec §4.6 step 1 "if newDelta < deltaLimit discard"); the propagator
// passes the node's beam limit (main, word-end or Z/S layer) minus in's
// best score.
func ApplyWordEnd(g *traceback.Graph, idc *token.IDCounter, lmc *lm.Cache, tp token.Params, p Params, frame, pron int, in *token.Set, latticeGen bool, relCut float64) *token.Set {
	var candidates []weCandidate

	find := func(dest collab.LMState) int {
		for i := range candidates {
			if tp.Equal(candidates[i].dest, dest) {
				return i
			}
		}
		return -1
	}

	for _, t := range in.Tok {
		dest, lmRaw := lmc.TransProb(t.LMState, pron)
		lmScore := lmRaw + p.InsPen
		newDelta := t.Delta + (lmScore - t.LMLookahead)
		if newDelta < relCut {
			continue
		}

		idx := find(dest)
		if idx < 0 {
			candidates = append(candidates, weCandidate{
				dest: dest, delta: newDelta, lmScore: lmScore,
				srcPath: t.Path, srcModPath: t.ModPath, altHead: arena.Nil,
			})
			continue
		}

		c := &candidates[idx]
		switch {
		case newDelta > c.delta:
			if latticeGen {
				shift := c.delta - newDelta // old winner's abs - new winner's abs
				rebaseAltChain(g, c.altHead, shift)
				oldAlt := g.NewAlt(c.srcPath, shift, c.lmScore, c.srcModPath, c.altHead)
				c.altHead = oldAlt
			}
			c.delta = newDelta
			c.lmScore = lmScore
			c.srcPath = t.Path
			c.srcModPath = t.ModPath
		case latticeGen:
			alt := g.NewAlt(t.Path, newDelta-c.delta, lmScore, t.ModPath, c.altHead)
			c.altHead = alt
		}
	}

	out := &token.Set{}
	if len(candidates) == 0 {
		out.Clear()
		return out
	}

	bestDelta := candidates[0].delta
	for _, c := range candidates[1:] {
		if c.delta > bestDelta {
			bestDelta = c.delta
		}
	}
	out.Score = in.Score + bestDelta

	for _, c := range candidates {
		weHandle := g.NewWordEnd(c.srcPath, pron, frame, in.Score+c.delta, c.lmScore, traceback.VariantMain, c.srcModPath)
		g.WE.Get(weHandle).Alt = c.altHead
		out.Tok = append(out.Tok, token.RelToken{
			LMState: c.dest,
			Path:    weHandle,
			ModPath: arena.Nil,
			Delta:   c.delta - bestDelta,
		})
	}
	token.SortByLMState(out, tp.Less)
	out.ID = idc.Next()
	return out
}

// rebaseAltChain adds shift to every AltWordEndHyp.ScoreDelta in the list
// headed by h, preserving the "deltas relative to the main hyp" invariant
// when the main hyp itself changes (spec §4.6 step 3).
func rebaseAltChain(g *traceback.Graph, h arena.Handle, shift float64) {
	for cur := h; cur != arena.Nil; {
		alt := g.Alt.Get(cur)
		alt.ScoreDelta += shift
		cur = alt.Next
	}
}

// ApplySilenceDictFanOut implements spec §4.6 "sp-skip layer": fans a
// single incoming token set out into the `-`, `sp`, `sil` pronunciation
// variants, each scaled by prScale and added to the token's delta. The
// returned three sets share in's tokens' traceback paths (no WordEndHyp is
// allocated here; that happens when each variant's resulting tokens next
// cross an actual WordEnd node).
func ApplySilenceDictFanOut(in *token.Set, mainLogProb, spLogProb, silLogProb, prScale float64) (mainOut, spOut, silOut *token.Set) {
	shift := func(lp float64) *token.Set {
		if lp == 0 {
			return in
		}
		out := &token.Set{Score: in.Score, ID: in.ID, Tok: make([]token.RelToken, len(in.Tok))}
		copy(out.Tok, in.Tok)
		delta := lp * prScale
		for i := range out.Tok {
			out.Tok[i].Delta += delta
		}
		return out
	}
	return shift(mainLogProb), shift(spLogProb), shift(silLogProb)
}
