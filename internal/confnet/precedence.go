package confnet

import (
	"sort"

	"github.com/tanaris-labs/lvdecode/internal/lattice"
)

// nodeReach[n] is the set of lattice node indices reachable from n via one
// or more arcs (spec §4.10 step 3 "topologically sort the lattice").
type nodeReach []bitvector

// buildNodeReach computes forward reachability over lat's arc graph, once
// per [Build] call. Nodes are processed in reverse topological order using
// NodeFrame as the topological key: every arc advances from an earlier (or
// equal) frame to a later one (spec §9 "propagation is strictly forward"),
// so frame order is a valid topological order of the lattice DAG.
func buildNodeReach(lat lattice.Lattice) nodeReach {
	n := lat.NumNodes
	succ := make([][]int, n)
	for _, a := range lat.Arcs {
		succ[a.StartNode] = append(succ[a.StartNode], a.EndNode)
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return lat.NodeFrame[order[i]] > lat.NodeFrame[order[j]]
	})

	reach := make(nodeReach, n)
	for i := range reach {
		reach[i] = newBitvector(n)
	}
	for _, node := range order {
		for _, s := range succ[node] {
			reach[node].set(s)
			reach[node].orWith(reach[s])
		}
	}
	return reach
}

// graphPrecedes reports whether a strictly precedes b: some arc endpoint of
// a reaches (or is) some arc origin of b in the lattice's arc graph. This is
// exact as long as a and b still carry the node sets they were built from;
// [precedesIndex] covers the case where merges have since blurred them.
func graphPrecedes(a, b *SCluster, reach nodeReach) bool {
	for _, en := range a.endNodes {
		for _, sn := range b.startNodes {
			if en == sn || reach[en].has(sn) {
				return true
			}
		}
	}
	return false
}

// precedesIndex reports whether a strictly precedes b using the
// OR-accumulated original-cluster-id bit-sets every merge maintains (spec
// §9): true when some initial cluster a has absorbed is known to precede
// some initial cluster b has absorbed.
func precedesIndex(a, b *SCluster) bool {
	return a.precedeIDs.intersects(b.memberIDs)
}

// unordered reports whether neither a nor b is known to strictly precede
// the other — the merge gate of spec §4.10 steps 5/7/8 ("two clusters may
// only be merged if neither precedes the other"). It consults both the
// exact graph reachability (valid while a/b's node sets are still close to
// the lattice) and the OR-accumulated id relation (valid after merges).
func unordered(a, b *SCluster, reach nodeReach) bool {
	if graphPrecedes(a, b, reach) || graphPrecedes(b, a, reach) {
		return false
	}
	return !precedesIndex(a, b) && !precedesIndex(b, a)
}

// assignInitialIdentity gives each of the freshly built initial clusters a
// stable bit position in the shared memberIDs/precedeIDs space (spec §4.10
// step 3) and fills in precedeIDs from graph reachability.
func assignInitialIdentity(clusters []*SCluster, reach nodeReach) {
	n := len(clusters)
	for i, c := range clusters {
		c.memberIDs = newBitvector(n)
		c.memberIDs.set(i)
		c.precedeIDs = newBitvector(n)
	}
	for i, ci := range clusters {
		for j, cj := range clusters {
			if i != j && graphPrecedes(ci, cj, reach) {
				ci.precedeIDs.set(j)
			}
		}
	}
}

// topoSortByPrecedence implements spec §4.10 step 9 ("sort clusters in
// precedence order"): repeatedly remove a cluster no remaining cluster is
// known to still precede. Pass 4 (step 8) is expected to have related every
// pair by the time this runs, making the result a total order (P8); ties
// (and any pair Pass 4 left unrelated) break on start frame so the sort
// always terminates and stays deterministic.
func topoSortByPrecedence(clusters []*SCluster) []*SCluster {
	remaining := append([]*SCluster{}, clusters...)
	out := make([]*SCluster, 0, len(remaining))
	for len(remaining) > 0 {
		pick := -1
		for i, c := range remaining {
			blocked := false
			for j, other := range remaining {
				if i != j && precedesIndex(other, c) {
					blocked = true
					break
				}
			}
			if blocked {
				continue
			}
			if pick < 0 || c.Start < remaining[pick].Start {
				pick = i
			}
		}
		if pick < 0 {
			// No cluster is free of a remaining predecessor: Pass 4 left an
			// unordered pair. Fall back to frame order to make progress
			// rather than loop forever.
			sort.SliceStable(remaining, func(i, j int) bool { return remaining[i].Start < remaining[j].Start })
			pick = 0
		}
		out = append(out, remaining[pick])
		remaining = append(remaining[:pick], remaining[pick+1:]...)
	}
	return out
}

// finalizePrecedence overwrites every cluster's exported Precedes bitvector
// to index into clusters' own (now final) order, translated from the
// OR-accumulated original-cluster-id relation.
func finalizePrecedence(clusters []*SCluster) {
	n := len(clusters)
	for i, ci := range clusters {
		ci.Precedes = newBitvector(n)
		for j, cj := range clusters {
			if i != j && precedesIndex(ci, cj) {
				ci.Precedes.set(j)
			}
		}
	}
}
