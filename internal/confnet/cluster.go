package confnet

import (
	"math"

	"github.com/tanaris-labs/lvdecode/internal/lattice"
)

// ConfMethod selects how Pass 3/4 priority combines phonetic similarity
// with posteriors (config key CONFMETHOD, spec §6.5).
type ConfMethod int

const (
	MethodGeoMean ConfMethod = iota
	MethodMax
)

// Options bundles the tunables of spec §4.10.
type Options struct {
	// Pass1Floor/Pass2Floor are the two pruning floors of steps 4 and 6.
	// Zero values default to -10 and -5 respectively (spec defaults).
	Pass1Floor, Pass2Floor float64
	Method                 ConfMethod
}

func (o Options) pass1Floor() float64 {
	if o.Pass1Floor == 0 {
		return -10
	}
	return o.Pass1Floor
}

func (o Options) pass2Floor() float64 {
	if o.Pass2Floor == 0 {
		return -5
	}
	return o.Pass2Floor
}

// Build runs spec §4.10's full pipeline (steps 1-9) over lat and returns
// the resulting sorted [ConfNet].
func Build(lat lattice.Lattice, opts Options) ConfNet {
	arcPost, _ := posteriors(lat)

	clusters := initialClusters(lat, arcPost)
	reach := buildNodeReach(lat)
	assignInitialIdentity(clusters, reach)

	clusters = pruneFloor(clusters, opts.pass1Floor())

	sim := NewSimCache()

	clusters = passIntraWord(clusters, reach)
	clusters = pruneFloor(clusters, opts.pass2Floor())
	clusters = passInterWord(clusters, reach, sim, opts.Method, false)
	clusters = passInterWord(clusters, reach, sim, opts.Method, true)

	clusters = topoSortByPrecedence(clusters)
	finalizePrecedence(clusters)
	return ConfNet{Clusters: clusters}
}

type clusterKey struct {
	start, end int
	word       string
}

// initialClusters implements spec §4.10 step 2: one cluster per distinct
// (start, end, word) triple, with matching arcs' posteriors log-summed.
func initialClusters(lat lattice.Lattice, arcPost []float64) []*SCluster {
	index := map[clusterKey]*SCluster{}
	var order []clusterKey

	for ai, a := range lat.Arcs {
		start, end := lat.NodeFrame[a.StartNode], lat.NodeFrame[a.EndNode]
		key := clusterKey{start, end, a.Word}
		if c, ok := index[key]; ok {
			c.Words[0].Posterior = logAdd(c.Words[0].Posterior, arcPost[ai])
			c.startNodes = append(c.startNodes, a.StartNode)
			c.endNodes = append(c.endNodes, a.EndNode)
			continue
		}
		c := &SCluster{
			Start: start, End: end,
			Words:      []SCWord{{Word: a.Word, Posterior: arcPost[ai], Start: start, End: end}},
			startNodes: []int{a.StartNode},
			endNodes:   []int{a.EndNode},
		}
		index[key] = c
		order = append(order, key)
	}

	clusters := make([]*SCluster, 0, len(order))
	for _, k := range order {
		clusters = append(clusters, index[k])
	}
	return clusters
}

// pruneFloor drops SCWords below floor (spec §4.10 steps 4/6); a cluster
// left with no surviving word is dropped entirely.
func pruneFloor(clusters []*SCluster, floor float64) []*SCluster {
	out := clusters[:0]
	for _, c := range clusters {
		keep := c.Words[:0]
		for _, w := range c.Words {
			if w.Posterior >= floor {
				keep = append(keep, w)
			}
		}
		if len(keep) == 0 {
			continue
		}
		c.Words = keep
		out = append(out, c)
	}
	return out
}

func shareWord(a, b *SCluster) bool {
	for _, wa := range a.Words {
		for _, wb := range b.Words {
			if wa.Word == wb.Word {
				return true
			}
		}
	}
	return false
}

func overlap(a, b *SCluster) int {
	lo := a.Start
	if b.Start > lo {
		lo = b.Start
	}
	hi := a.End
	if b.End < hi {
		hi = b.End
	}
	return hi - lo
}

func combineWords(a, b []SCWord) []SCWord {
	out := make([]SCWord, len(a))
	copy(out, a)
	for _, wb := range b {
		merged := false
		for i := range out {
			if out[i].Word == wb.Word {
				out[i].Posterior = logAdd(out[i].Posterior, wb.Posterior)
				if wb.Start < out[i].Start {
					out[i].Start = wb.Start
				}
				if wb.End > out[i].End {
					out[i].End = wb.End
				}
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, wb)
		}
	}
	return out
}

// mergeClusters combines a and b's time bounds, words, and node sets, and
// OR-accumulates their original-cluster-id membership/precedence bit-sets
// (spec §4.10 step 5 "update precedence by OR-ing bitvectors", §9
// "OR-accumulated bitvectors").
func mergeClusters(a, b *SCluster) *SCluster {
	start, end := a.Start, a.End
	if b.Start < start {
		start = b.Start
	}
	if b.End > end {
		end = b.End
	}
	return &SCluster{
		Start:      start,
		End:        end,
		Words:      combineWords(a.Words, b.Words),
		startNodes: append(append([]int{}, a.startNodes...), b.startNodes...),
		endNodes:   append(append([]int{}, a.endNodes...), b.endNodes...),
		memberIDs:  orBitvectors(a.memberIDs, b.memberIDs),
		precedeIDs: orBitvectors(a.precedeIDs, b.precedeIDs),
	}
}

// passIntraWord implements spec §4.10 step 5: repeatedly merge the
// unordered, time-overlapping pair sharing a word with the largest
// overlap, until no candidate remains.
func passIntraWord(clusters []*SCluster, reach nodeReach) []*SCluster {
	for {
		bi, bj, best := -1, -1, -1
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				if !shareWord(clusters[i], clusters[j]) {
					continue
				}
				if !unordered(clusters[i], clusters[j], reach) {
					continue
				}
				ov := overlap(clusters[i], clusters[j])
				if ov <= 0 {
					continue
				}
				if ov > best {
					bi, bj, best = i, j, ov
				}
			}
		}
		if bi < 0 {
			return clusters
		}
		merged := mergeClusters(clusters[bi], clusters[bj])
		clusters = removeMerge(clusters, bi, bj, merged)
	}
}

// passInterWord implements spec §4.10 steps 7/8: merge any unordered
// time-overlapping pair (or, when allowZeroOverlap, any unordered pair at
// all, ordered/gated by true lattice precedence rather than time overlap)
// by descending phonetic-similarity-weighted priority, until none remain —
// pass 4 is pass 3 with allowZeroOverlap set, producing the fully linear
// ordering spec §4.10 step 8 calls for.
func passInterWord(clusters []*SCluster, reach nodeReach, sim *SimCache, method ConfMethod, allowZeroOverlap bool) []*SCluster {
	for {
		bi, bj, best := -1, -1, math.Inf(-1)
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				if !unordered(clusters[i], clusters[j], reach) {
					continue
				}
				ov := overlap(clusters[i], clusters[j])
				if !allowZeroOverlap && ov <= 0 {
					continue
				}
				p := priority(clusters[i], clusters[j], sim, method)
				if p > best {
					bi, bj, best = i, j, p
				}
			}
		}
		if bi < 0 {
			return clusters
		}
		merged := mergeClusters(clusters[bi], clusters[bj])
		clusters = removeMerge(clusters, bi, bj, merged)
	}
}

// priority is the average pairwise phonetic-similarity x posterior product
// across every (word-in-a, word-in-b) pair (spec §4.10 step 7 "average
// pairwise phonetic-similarity x posteriors"). MethodMax takes the maximum
// pairwise product instead of the average, for CONFMETHOD=MAX.
func priority(a, b *SCluster, sim *SimCache, method ConfMethod) float64 {
	var sum, maxV float64
	var n int
	for _, wa := range a.Words {
		for _, wb := range b.Words {
			s := sim.Similarity(wa.Word, wb.Word) * math.Exp(wa.Posterior) * math.Exp(wb.Posterior)
			sum += s
			n++
			if s > maxV {
				maxV = s
			}
		}
	}
	if n == 0 {
		return 0
	}
	if method == MethodMax {
		return maxV
	}
	return sum / float64(n)
}

func removeMerge(clusters []*SCluster, i, j int, merged *SCluster) []*SCluster {
	out := make([]*SCluster, 0, len(clusters)-1)
	for k, c := range clusters {
		if k == i || k == j {
			continue
		}
		out = append(out, c)
	}
	return append(out, merged)
}

