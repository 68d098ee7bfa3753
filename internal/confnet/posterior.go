package confnet

import (
	"math"
	"sort"

	"github.com/tanaris-labs/lvdecode/internal/lattice"
)

const logZero = -1e10

func logAdd(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if a <= logZero {
		return logZero
	}
	return a + math.Log1p(math.Exp(b-a))
}

// posteriors runs forward-backward over lat (spec §4.10 step 1) and
// returns, for each arc index, its log-posterior `exp(α(src)+arcTotal+
// β(dst)-logZ)` kept in log domain, plus the total forward log-probability
// logZ = α(end).
//
// lat's nodes are numbered in backward-discovery order rather than
// topological (frame) order (see [lattice.Lattice.NodeFrame]), so this
// first derives a frame-sorted processing order — valid because the
// decoder is time-synchronous: every arc's end-node frame is >= its
// start-node frame, so sorting by frame is a valid topological order.
func posteriors(lat lattice.Lattice) (arcPost []float64, logZ float64) {
	order := make([]int, lat.NumNodes)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return lat.NodeFrame[order[i]] < lat.NodeFrame[order[j]] })

	succ := make([][]int, lat.NumNodes) // arc indices leaving each node
	for ai, a := range lat.Arcs {
		succ[a.StartNode] = append(succ[a.StartNode], ai)
	}

	alpha := make([]float64, lat.NumNodes)
	for i := range alpha {
		alpha[i] = logZero
	}
	alpha[lat.StartNode] = 0
	for _, n := range order {
		if alpha[n] <= logZero {
			continue
		}
		for _, ai := range succ[n] {
			a := lat.Arcs[ai]
			v := alpha[n] + a.Score()
			alpha[a.EndNode] = logAdd(alpha[a.EndNode], v)
		}
	}

	beta := make([]float64, lat.NumNodes)
	for i := range beta {
		beta[i] = logZero
	}
	for _, e := range lat.EndNodes {
		beta[e] = 0
	}
	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		for _, ai := range succ[n] {
			a := lat.Arcs[ai]
			if beta[a.EndNode] <= logZero {
				continue
			}
			v := a.Score() + beta[a.EndNode]
			beta[n] = logAdd(beta[n], v)
		}
	}

	logZ = logZero
	for _, e := range lat.EndNodes {
		logZ = logAdd(logZ, alpha[e])
	}

	arcPost = make([]float64, len(lat.Arcs))
	for ai, a := range lat.Arcs {
		arcPost[ai] = alpha[a.StartNode] + a.Score() + beta[a.EndNode] - logZ
	}
	return arcPost, logZ
}
