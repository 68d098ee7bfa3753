// Package lm implements the LM lookahead cache of spec §4.2: a per-lmla-node
// bounded cache of (LMState, score) entries backed by
// [github.com/hashicorp/golang-lru/v2], replacing the hand-rolled ring
// buffer of the original implementation with a real LRU eviction policy
// that still honours "evict the oldest" semantics.
package lm

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tanaris-labs/lvdecode/internal/logscore"
	"github.com/tanaris-labs/lvdecode/pkg/collab"
)

// defaultRingCapacity is the number of (LMState, score) entries kept per
// lookahead tree node before the least-recently-used entry is evicted.
const defaultRingCapacity = 32

// lookaheadSlack is the spec §4.2/§7 monotonicity tolerance: a recomputed
// lookahead score may exceed the last score observed for the same
// (lmState, lmlaIdx) slot by at most this much before it is treated as a
// cache inconsistency.
const lookaheadSlack = 0.1

type laSlot struct {
	lmlaIdx int
	state   collab.LMState
}

// Cache caches LM transition probabilities and lookahead maxima over the
// lexicon tree (spec §4.2).
type Cache struct {
	lm       collab.LanguageModel
	tree     collab.LookaheadTree
	lmScale  float64
	capacity int

	rings map[int]*lru.Cache[collab.LMState, float64]

	// lastScore remembers the last score ever computed for a (lmlaIdx,
	// lmState) slot, independent of ring eviction, so a recompute forced by
	// an LRU eviction can still be checked for monotonicity drift against
	// what was previously observed (spec §4.2/§7).
	lastScore map[laSlot]float64

	laHit, laMiss       int
	transHit, transMiss int

	// err is sticky once a lookahead monotonicity violation is detected
	// (spec §7 "cache inconsistency... fatal"); mirrors the Propagator's own
	// sticky-error pattern so a caller can check it once per frame rather
	// than threading an error return through every Lookahead call site.
	err error
}

// New returns a Cache evaluating lookahead over tree, scaling every LM
// score by lmScale (spec §6.2 lmScale).
func New(lmModel collab.LanguageModel, tree collab.LookaheadTree, lmScale float64) *Cache {
	return NewWithCapacity(lmModel, tree, lmScale, defaultRingCapacity)
}

// NewWithCapacity is [New] with an explicit per-node ring capacity.
func NewWithCapacity(lmModel collab.LanguageModel, tree collab.LookaheadTree, lmScale float64, capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		lm:        lmModel,
		tree:      tree,
		lmScale:   lmScale,
		capacity:  capacity,
		rings:     make(map[int]*lru.Cache[collab.LMState, float64]),
		lastScore: make(map[laSlot]float64),
	}
}

// Reset empties every per-node ring, used when a decoder instance is reused
// across utterances.
func (c *Cache) Reset() {
	c.rings = make(map[int]*lru.Cache[collab.LMState, float64])
	c.lastScore = make(map[laSlot]float64)
	c.laHit, c.laMiss = 0, 0
	c.transHit, c.transMiss = 0, 0
	c.err = nil
}

// Err returns the first lookahead monotonicity violation detected, if any
// (spec §7 "cache inconsistency... detected by assertion; fatal"). Sticky:
// once set, it is cleared only by [Cache.Reset].
func (c *Cache) Err() error { return c.err }

func (c *Cache) ring(lmlaIdx int) *lru.Cache[collab.LMState, float64] {
	r, ok := c.rings[lmlaIdx]
	if !ok {
		r, _ = lru.New[collab.LMState, float64](c.capacity)
		c.rings[lmlaIdx] = r
	}
	return r
}

// Lookahead returns the scaled LM lookahead score for (lmState, lmlaIdx)
// (spec §4.2). When fastLMLA is true, lmState is first coarsened via
// [collab.LanguageModel.FastState] (the "fast-LMLA variant" of spec §4.2)
// before both the cache lookup and, on a miss, the computation — widening
// cache hits at the cost of the coarsened state's accuracy, exactly as the
// original's LMCacheLookaheadProb does.
//
// On a miss, the freshly computed score is checked against the last score
// ever observed for this (lmlaIdx, key) slot (spec §4.2/§7 monotonicity):
// exceeding it by more than lookaheadSlack sets [Cache.Err] rather than
// panicking, since a single bad LM response should not crash decoding
// mid-utterance — the caller decides when to treat it as fatal. Per spec
// §9's open question on the fastlmla/monotonicity interplay, the check is
// skipped entirely when fastLMLA is set: distinct true LM states
// deliberately collide on the same coarsened key, so a jump in the
// coarsened estimate is expected, not an inconsistency.
func (c *Cache) Lookahead(lmState collab.LMState, lmlaIdx int, fastLMLA bool) float64 {
	key := lmState
	if fastLMLA {
		key = c.lm.FastState(lmState)
	}

	ring := c.ring(lmlaIdx)
	if v, ok := ring.Get(key); ok {
		c.laHit++
		return v
	}

	c.laMiss++
	score := c.computeNoCache(key, lmlaIdx)
	if score < logscore.LSMALL {
		score = logscore.LZERO
	}

	slot := laSlot{lmlaIdx: lmlaIdx, state: key}
	if !fastLMLA && c.err == nil {
		if prev, ok := c.lastScore[slot]; ok && score > prev+lookaheadSlack {
			c.err = fmt.Errorf("lm: lookahead(lmlaIdx=%d) recomputed to %v, exceeds prior %v by more than slack %v", lmlaIdx, score, prev, lookaheadSlack)
		}
	}
	c.lastScore[slot] = score

	ring.Add(key, score)
	return score
}

// computeNoCache evaluates the lookahead recursively: a simple node takes
// the LM's own lookahead maximum over its word-end range; a complex node
// takes the max of its children's (cached) lookahead scores.
func (c *Cache) computeNoCache(lmState collab.LMState, lmlaIdx int) float64 {
	node := c.tree.Nodes[lmlaIdx]
	if !node.Complex {
		return c.lmScale * c.lm.LookaheadMax(lmState, node.LoWE, node.HiWE)
	}

	best := logscore.LZERO
	for _, child := range node.Children {
		if v := c.Lookahead(lmState, child, false); v > best {
			best = v
		}
	}
	return best
}

// TransProb returns the scaled LM transition score and destination state
// for crossing a word end with pronunciation pron from src (spec §4.2
// LMCacheTransProb — a direct pass-through to the collaborator, scaled by
// lmScale; transition lookups are not cached the way lookahead is, since
// each word end is visited at most once per frame per LM-state).
func (c *Cache) TransProb(src collab.LMState, pron int) (dest collab.LMState, logP float64) {
	dest, raw := c.lm.TransProb(src, pron)
	c.transMiss++
	return dest, c.lmScale * raw
}

// Stats reports cumulative hit/miss counters for health logging.
type Stats struct {
	LookaheadHits, LookaheadMisses int
	TransLookups                  int
}

func (c *Cache) Stats() Stats {
	return Stats{LookaheadHits: c.laHit, LookaheadMisses: c.laMiss, TransLookups: c.transMiss}
}
