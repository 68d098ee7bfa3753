package traceback

import "github.com/tanaris-labs/lvdecode/internal/arena"

// GCStats summarises one garbage-collection cycle across all three arenas;
// the tests use it for scenario 4 (GC reclaim) of spec §8.
type GCStats struct {
	WordEnd    arena.SweepStats
	AltWordEnd arena.SweepStats
	Modend     arena.SweepStats
}

// Freed returns the total number of reclaimed objects across all arenas.
func (s GCStats) Freed() int {
	return s.WordEnd.Freed + s.AltWordEnd.Freed + s.Modend.Freed
}

// GC runs a mark-and-sweep pass over the traceback graph. roots must be
// every RelToken.Path handle currently held by a live TokenSet in a live
// Instance across all layers (spec §4.8's mark-phase root set); roots may
// contain arena.Nil entries (ignored) and duplicates (idempotent).
//
// Invariants upheld (spec §4.8, P4/P5): after GC, every handle reachable
// from roots remains valid and its Prev/Alt/ModPath chain is fully
// walkable; every object unreachable from roots is reclaimed.
func (g *Graph) GC(roots []arena.Handle) GCStats {
	return g.GCWithModRoots(roots, nil)
}

// GCWithModRoots is [GC] extended with an additional root set of
// standalone ModendHyp chains (spec §4.8 mark phase: "every RelToken in
// every TokenSet" — a RelToken's ModPath is tracked independently of its
// Path when per-model alignment has advanced beyond the most recent word
// crossing, so it needs marking even when not yet hung off a WordEndHyp).
func (g *Graph) GCWithModRoots(weRoots, modRoots []arena.Handle) GCStats {
	for _, r := range weRoots {
		g.markWordEnd(r)
	}
	for _, r := range modRoots {
		g.markMod(r)
	}
	return GCStats{
		WordEnd:    g.WE.Sweep(),
		AltWordEnd: g.Alt.Sweep(),
		Modend:     g.Mod.Sweep(),
	}
}

// markWordEnd marks h and everything reachable from it (its Prev chain,
// its ModPath chain, and every AltWordEndHyp hanging off it together with
// each alternative's own Prev chain). Implemented with an explicit work
// stack rather than recursion: traceback chains grow one link per word
// crossed and an utterance may cross many thousands of words, which would
// otherwise risk unbounded native call-stack growth.
func (g *Graph) markWordEnd(root arena.Handle) {
	stack := []arena.Handle{root}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if h == arena.Nil || !g.WE.Valid(h) || g.WE.Marked(h) {
			continue
		}
		g.WE.Mark(h)

		we := g.WE.Get(h)
		g.markMod(we.ModPath)

		for a := we.Alt; a != arena.Nil; {
			if !g.Alt.Valid(a) || g.Alt.Marked(a) {
				break
			}
			g.Alt.Mark(a)
			alt := g.Alt.Get(a)
			g.markMod(alt.ModPath)
			if alt.Prev != arena.Nil {
				stack = append(stack, alt.Prev)
			}
			a = alt.Next
		}

		if we.Prev != arena.Nil {
			stack = append(stack, we.Prev)
		}
	}
}

// markMod marks a ModendHyp chain starting at h, stopping early once it
// reaches an already-marked (and therefore already-walked) link.
func (g *Graph) markMod(h arena.Handle) {
	for h != arena.Nil {
		if !g.Mod.Valid(h) || g.Mod.Marked(h) {
			return
		}
		g.Mod.Mark(h)
		h = g.Mod.Get(h).Prev
	}
}

// Walkable reports whether h's entire Prev/Alt/ModPath chain consists of
// valid handles. Used by tests asserting P4 (GC soundness): after GC, every
// live RelToken's path chain is intact.
func (g *Graph) Walkable(h arena.Handle) bool {
	for h != arena.Nil {
		if !g.WE.Valid(h) {
			return false
		}
		we := g.WE.Get(h)
		if !g.walkableMod(we.ModPath) {
			return false
		}
		for a := we.Alt; a != arena.Nil; {
			if !g.Alt.Valid(a) {
				return false
			}
			alt := g.Alt.Get(a)
			if alt.Prev != arena.Nil && !g.Walkable(alt.Prev) {
				return false
			}
			if !g.walkableMod(alt.ModPath) {
				return false
			}
			a = alt.Next
		}
		h = we.Prev
	}
	return true
}

func (g *Graph) walkableMod(h arena.Handle) bool {
	for h != arena.Nil {
		if !g.Mod.Valid(h) {
			return false
		}
		h = g.Mod.Get(h).Prev
	}
	return true
}
