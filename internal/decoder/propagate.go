package decoder

import (
	"fmt"

	"github.com/tanaris-labs/lvdecode/internal/acoustic"
	"github.com/tanaris-labs/lvdecode/internal/arena"
	"github.com/tanaris-labs/lvdecode/internal/lexnet"
	"github.com/tanaris-labs/lvdecode/internal/lm"
	"github.com/tanaris-labs/lvdecode/internal/logscore"
	"github.com/tanaris-labs/lvdecode/internal/prune"
	"github.com/tanaris-labs/lvdecode/internal/token"
	"github.com/tanaris-labs/lvdecode/internal/traceback"
	"github.com/tanaris-labs/lvdecode/pkg/collab"
)

// Propagator drives the per-frame scan of spec §4.5: the internal pass
// (HMM transition propagation), the external pass (layer-specific
// pruning, word-end handling, successor activation), the dynamic
// histogram pruning feedback of §4.5 step 5, and the traceback GC cadence
// of §4.8.
type Propagator struct {
	lex    *lexnet.Network
	pool   *InstancePool
	ac     *acoustic.Scorer
	lmc    *lm.Cache
	g      *traceback.Graph
	idc    *token.IDCounter
	pruner *prune.Controller
	params Params
	tp     token.Params

	latticeGen bool
	nodeLayer  []int // nodeLayer[nodeIdx] = its declared layer index

	frame     int
	bestScore float64

	err error
}

// New returns a Propagator wired over the given collaborators and tuning
// parameters. less/equal impose the LM-state order required by invariant
// I2 (spec §4.3).
func New(lex *lexnet.Network, pool *InstancePool, ac *acoustic.Scorer, lmc *lm.Cache, g *traceback.Graph, idc *token.IDCounter, pruner *prune.Controller, params Params, latticeGen bool, less, equal func(a, b collab.LMState) bool) *Propagator {
	nodeLayer := make([]int, len(lex.Lexicon().Nodes))
	for i := range nodeLayer {
		nodeLayer[i] = -1
	}
	for li, layer := range lex.Lexicon().Layers {
		for _, n := range layer.Nodes {
			nodeLayer[n] = li
		}
	}

	return &Propagator{
		lex: lex, pool: pool, ac: ac, lmc: lmc, g: g, idc: idc, pruner: pruner,
		params:     params,
		latticeGen: latticeGen,
		nodeLayer:  nodeLayer,
		bestScore:  logscore.LZERO,
		tp: token.Params{
			K:    params.K,
			Less: less,
			Equal: equal,
		},
	}
}

// Frame returns the current frame index (0 before the first Step).
func (pr *Propagator) Frame() int { return pr.frame }

// BestScore returns the best live token score observed during the most
// recent frame.
func (pr *Propagator) BestScore() float64 { return pr.bestScore }

// Err returns the first error encountered by Step, if any (sticky: once
// set, subsequent Steps are no-ops).
func (pr *Propagator) Err() error { return pr.err }

// Pool exposes the live-instance pool so a driver (pkg/lvdecode) can
// re-seed the network's start node between [Propagator.StepInternal] and
// [Propagator.StepExternal] every frame — the start node has no
// predecessor edge in the network, so nothing ever fans tokens into it
// during the external pass; feeding new-word-start hypotheses into it is
// the decoder API's bootstrap responsibility, not the propagator's.
func (pr *Propagator) Pool() *InstancePool { return pr.pool }

// Step advances the decoder by exactly one frame (spec §4.5 steps 1-6),
// equivalent to StepInternal followed immediately by StepExternal. The
// acoustic scorer's window must already cover this frame (see
// [acoustic.Scorer.SetWindow]).
func (pr *Propagator) Step() error {
	if err := pr.StepInternal(); err != nil {
		return err
	}
	return pr.StepExternal()
}

// StepInternal advances the frame counter, runs GC if due, and performs
// spec §4.5's internal pass. Callers needing to re-seed the start node's
// entry state for this frame (see [Propagator.Pool]) must do so after
// StepInternal returns and before calling [Propagator.StepExternal].
func (pr *Propagator) StepInternal() error {
	if pr.err != nil {
		return pr.err
	}

	pr.frame++
	if pr.params.GCFreq > 0 && pr.frame%pr.params.GCFreq == 0 {
		pr.runGC()
	}

	pr.internalPass()
	return pr.err
}

// StepExternal performs spec §4.5 steps 3-6: the external pass, the
// histogram pruning feedback, and the beamLimit recompute.
func (pr *Propagator) StepExternal() error {
	if pr.err != nil {
		return pr.err
	}

	pr.tp.BeamLimit = pr.pruner.BeamLimit(pr.bestScore)
	pr.tp.RelBeamWidth = pr.pruner.RelBeamWidth()

	pr.bestScore = logscore.LZERO
	pr.externalPass()

	pr.adjustHistogram()
	pr.tp.BeamLimit = pr.pruner.BeamLimit(pr.bestScore)
	return pr.err
}

// internalPass runs spec §4.5's "Internal pass": Model instances propagate
// through their HMM transition matrix (general case; the left-to-right
// specialisation is a pure performance optimisation over the same
// arithmetic and is not separately implemented — see DESIGN.md). Every
// other live instance has its entry state cleared in preparation for
// external propagation.
func (pr *Propagator) internalPass() {
	for layerIdx := 0; layerIdx < pr.lex.NumLayers(); layerIdx++ {
		for _, nodeIdx := range pr.pool.LiveNodes(layerIdx) {
			node := pr.lex.Node(nodeIdx)
			inst := pr.pool.Get(nodeIdx)
			if node.Kind == collab.NodeModel {
				pr.propagateModelInternal(node, inst)
			} else {
				inst.States[0].Clear()
			}
		}
	}
}

// propagateModelInternal implements spec §4.5's "General case": for each
// emitting state j, union merge(ts[i]*trP[i][j]) over predecessors i with
// a non-absent transition, add the output probability, then build the
// exit state last from the freshly emitted states.
func (pr *Propagator) propagateModelInternal(node collab.LexNode, inst *Instance) {
	n := node.NumStates
	next := make([]token.Set, n)

	for j := 1; j <= n-2; j++ {
		for i := 0; i <= n-2; i++ {
			if node.TransP[i][j] > logscore.LSMALL {
				token.Merge(pr.idc, &inst.States[i], &next[j], node.TransP[i][j], true, pr.tp)
			}
		}
		if !next[j].Empty() {
			score, err := pr.ac.Score(node.HMMRef[j], pr.frame)
			if err != nil {
				pr.err = err
				return
			}
			next[j].Score += score
		}
	}

	for i := 1; i <= n-2; i++ {
		if node.TransP[i][n-1] > logscore.LSMALL {
			token.Merge(pr.idc, &next[i], &next[n-1], node.TransP[i][n-1], true, pr.tp)
		}
	}

	next[0].Clear()
	inst.States = next
}

// externalPass implements spec §4.5's "External pass": per layer,
// layer-specific pruning (word-end / Z-S beams), word-end handling, and
// fan-out into successor entry states, deactivating instances that fall
// under the beam.
func (pr *Propagator) externalPass() {
	for layerIdx := 0; layerIdx < pr.lex.NumLayers(); layerIdx++ {
		pr.externalPassLayer(layerIdx)
	}
}

func (pr *Propagator) externalPassLayer(layerIdx int) {
	live := pr.pool.LiveNodes(layerIdx)

	layerBest := logscore.LZERO
	for _, nodeIdx := range live {
		node := pr.lex.Node(nodeIdx)
		inst := pr.pool.Get(nodeIdx)
		if s := pr.exitSet(node, inst); !s.Empty() {
			if b := s.Best(); b > layerBest {
				layerBest = b
			}
		}
	}

	limit := pr.pruner.BeamLimit(pr.bestScore)
	for role, li := range pr.lex.Lexicon().RoleOf {
		if li != layerIdx {
			continue
		}
		switch role {
		case collab.RoleWordEnd:
			limit = pr.pruner.WordEndLimit(layerBest)
		case collab.RoleZS, collab.RoleSA:
			limit = pr.pruner.ZSLimit(layerBest)
		}
	}

	for _, nodeIdx := range live {
		pr.processExternalNode(layerIdx, nodeIdx, limit)
	}
}

// exitSet returns the TokenSet a node contributes to its layer's external
// propagation: the exit state for a Model node, or its sole state
// otherwise.
func (pr *Propagator) exitSet(node collab.LexNode, inst *Instance) *token.Set {
	if node.Kind == collab.NodeModel {
		return &inst.States[node.NumStates-1]
	}
	return &inst.States[0]
}

func (pr *Propagator) processExternalNode(layerIdx, nodeIdx int, limit float64) {
	node := pr.lex.Node(nodeIdx)
	inst := pr.pool.Get(nodeIdx)

	if node.Kind == collab.NodeModel && node.IsTee {
		exit := &inst.States[node.NumStates-1]
		token.Merge(pr.idc, &inst.States[0], exit, node.TransP[0][node.NumStates-1], true, pr.tp)
	}

	set := pr.exitSet(node, inst)

	if node.Kind == collab.NodeWordEnd && !set.Empty() {
		out := ApplyWordEnd(pr.g, pr.idc, pr.lmc, pr.tp, pr.params, pr.frame, node.Pron, set, pr.latticeGen, limit-set.Best())
		*set = *out
	}

	// A Model instance stays alive as long as ANY of its states (not just
	// the exit state, which is naturally still empty on the very frame an
	// instance is activated — internal propagation from entry to exit
	// takes effect starting the following frame) carries a survivor above
	// the beam; Context/WordEnd nodes have only the one state, which IS
	// their external-pass contribution, so the two checks coincide there.
	instBest := pr.instanceBest(node, inst)
	if instBest < limit {
		for i := range inst.States {
			inst.States[i].Clear()
		}
		pr.pool.Deactivate(layerIdx, nodeIdx)
		return
	}
	inst.Best = instBest

	if set.Empty() || set.Best() < limit {
		set.Clear()
		return
	}

	if b := set.Best(); b > pr.bestScore {
		pr.bestScore = b
	}

	pr.propagateToSuccessors(node, set)

	if node.Kind != collab.NodeModel {
		set.Clear()
	}
}

// instanceBest returns the best absolute score across every state an
// instance holds, used to decide whether the instance as a whole survives
// the main beam (spec §4.5 "best-instance tracking").
func (pr *Propagator) instanceBest(node collab.LexNode, inst *Instance) float64 {
	best := logscore.LZERO
	for i := range inst.States {
		if !inst.States[i].Empty() {
			if b := inst.States[i].Best(); b > best {
				best = b
			}
		}
	}
	return best
}

// propagateToSuccessors fans set into every successor's entry state,
// activating dormant successors (spec §4.5 external pass), folding each
// successor's LM-lookahead estimate into the fanned tokens on the way in
// (spec §4.5 step 4 "update LM-lookahead where needed").
func (pr *Propagator) propagateToSuccessors(node collab.LexNode, set *token.Set) {
	for _, succIdx := range node.Succ {
		succ := pr.lex.Node(succIdx)
		succLayer := pr.nodeLayer[succIdx]
		succInst := pr.pool.Activate(succIdx, succLayer, succ.NumStates)

		fanned := pr.applyLookahead(succ, set)
		token.Merge(pr.idc, fanned, &succInst.States[0], 0, true, pr.tp)
	}
}

// applyLookahead implements spec §4.5 step 4 for the destination node succ:
// each token's Delta has succ's previously-cached lookahead estimate
// ([token.RelToken.LMLookahead]) replaced by succ's own lookahead score —
// the same "subtract the stale estimate, add the fresh one" adjustment spec
// §4.6 step 1 performs when a word end later supersedes the estimate with
// the real LM transition score. A WordEnd destination applies its LM
// transition directly instead ([ApplyWordEnd]) and carries no lookahead
// index (LMLAIndex == 0), so it is passed through unmodified.
//
// Tokens whose Delta already falls below Params.FastLMLABeam consult the
// cache's fast-LMLA variant (spec §4.2 "tokens with relative-delta below a
// configured threshold substitute a coarsened LM-state"): they are far
// enough under the beam that the coarser, more cache-friendly estimate's
// extra inaccuracy is an acceptable trade for the wider cache hit rate.
func (pr *Propagator) applyLookahead(succ collab.LexNode, set *token.Set) *token.Set {
	if succ.LMLAIndex == 0 || set.Empty() {
		return set
	}

	out := &token.Set{Score: set.Score, ID: pr.idc.Next(), Tok: make([]token.RelToken, len(set.Tok))}
	for i, t := range set.Tok {
		fast := t.Delta < pr.params.FastLMLABeam
		la := pr.lmc.Lookahead(t.LMState, succ.LMLAIndex, fast)
		if err := pr.lmc.Err(); err != nil && pr.err == nil {
			pr.err = fmt.Errorf("%w: %v", ErrLMCacheInconsistent, err)
		}
		t.Delta += la - t.LMLookahead
		t.LMLookahead = la
		out.Tok[i] = t
	}
	return out
}

// adjustHistogram implements spec §4.5 step 5: retarget curBeamWidth
// against the number of live Model instances.
func (pr *Propagator) adjustHistogram() {
	var deltas []float64
	for layerIdx := 0; layerIdx < pr.lex.NumLayers(); layerIdx++ {
		for _, nodeIdx := range pr.pool.LiveNodes(layerIdx) {
			if pr.lex.Node(nodeIdx).Kind == collab.NodeModel {
				inst := pr.pool.Get(nodeIdx)
				deltas = append(deltas, pr.bestScore-inst.Best)
			}
		}
	}
	pr.pruner.AdjustHistogram(deltas)
}

// runGC invokes the traceback GC over the roots reachable from every live
// instance's token sets (spec §4.8 mark phase roots).
func (pr *Propagator) runGC() {
	var weRoots, modRoots []arena.Handle
	for layerIdx := 0; layerIdx < pr.lex.NumLayers(); layerIdx++ {
		for _, nodeIdx := range pr.pool.LiveNodes(layerIdx) {
			inst := pr.pool.Get(nodeIdx)
			for i := range inst.States {
				for _, t := range inst.States[i].Tok {
					weRoots = append(weRoots, t.Path)
					modRoots = append(modRoots, t.ModPath)
				}
			}
		}
	}
	pr.g.GCWithModRoots(weRoots, modRoots)
}
