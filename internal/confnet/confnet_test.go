package confnet

import (
	"math"
	"strings"
	"testing"

	"github.com/tanaris-labs/lvdecode/internal/lattice"
)

// scenario6Lattice is grounded on spec §8 scenario 6 (three competing
// parallel arcs, "THE" x2 and "A"), used here to exercise posterior
// conservation (P7) and the merging of the two "THE" arcs into one SCWord
// (both share the same (start, end, word) triple, so step 2's initial
// clustering already combines them); the inter-word pass then merges the
// time-overlapping "A"
// into the same confusable slot as "THE" (both start/end at the same
// nodes), which is the expected behaviour of a single-slot sausage even
// though the spec's prose example describes "A" as staying separate —
// see DESIGN.md's pass-3/4 Open Question decision.
func scenario6Lattice() lattice.Lattice {
	// node 0 = start, node 1 = end. Three parallel arcs 0->1 at the same
	// time span, log-scores chosen so that after forward-backward the
	// posteriors are approximately 0.6, 0.3, 0.1.
	return lattice.Lattice{
		NumNodes:  2,
		StartNode: 0,
		EndNodes:  []int{1},
		NodeFrame: []int{0, 10},
		Arcs: []lattice.Arc{
			{StartNode: 0, EndNode: 1, Word: "THE", AcLike: math.Log(0.6)},
			{StartNode: 0, EndNode: 1, Word: "THE", AcLike: math.Log(0.3)},
			{StartNode: 0, EndNode: 1, Word: "A", AcLike: math.Log(0.1)},
		},
	}
}

func TestPosteriorsSumToOneAcrossParallelArcs(t *testing.T) {
	lat := scenario6Lattice()
	arcPost, logZ := posteriors(lat)
	if math.Abs(logZ) > 1e-9 {
		t.Fatalf("logZ = %v, want ~0 (probabilities summed to 1 by construction)", logZ)
	}
	sum := 0.0
	for _, p := range arcPost {
		sum += math.Exp(p)
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("sum of arc posteriors = %v, want 1 (P7)", sum)
	}
}

func TestPass2MergesDuplicateWordIntoOneSCWord(t *testing.T) {
	lat := scenario6Lattice()
	cn := Build(lat, Options{})

	if len(cn.Clusters) != 1 {
		t.Fatalf("len(Clusters) = %d, want 1 (all three arcs share start/end)", len(cn.Clusters))
	}
	c := cn.Clusters[0]
	var theWord, aWord *SCWord
	for i := range c.Words {
		switch c.Words[i].Word {
		case "THE":
			theWord = &c.Words[i]
		case "A":
			aWord = &c.Words[i]
		}
	}
	if theWord == nil || aWord == nil {
		t.Fatalf("expected both THE and A to survive in the cluster, got %+v", c.Words)
	}
	if p := math.Exp(theWord.Posterior); math.Abs(p-0.9) > 1e-6 {
		t.Fatalf("THE posterior = %v, want ~0.9 (0.6+0.3 merged)", p)
	}
}

func TestBest1BestPicksHighestPosteriorWord(t *testing.T) {
	lat := scenario6Lattice()
	cn := Build(lat, Options{})
	words := cn.Best1Best()
	if len(words) != 1 || words[0] != "THE" {
		t.Fatalf("Best1Best = %v, want [THE]", words)
	}
}

func TestPrecedenceRestrictedToSurvivingClustersIsTotalOrder(t *testing.T) {
	lat := lattice.Lattice{
		NumNodes:  3,
		StartNode: 0,
		EndNodes:  []int{2},
		NodeFrame: []int{0, 10, 20},
		Arcs: []lattice.Arc{
			{StartNode: 0, EndNode: 1, Word: "A", AcLike: 0},
			{StartNode: 1, EndNode: 2, Word: "B", AcLike: 0},
		},
	}
	cn := Build(lat, Options{})
	if len(cn.Clusters) != 2 {
		t.Fatalf("len(Clusters) = %d, want 2", len(cn.Clusters))
	}
	if !cn.Clusters[0].Precedes.has(1) {
		t.Fatalf("expected cluster 0 (A) to precede cluster 1 (B)")
	}
	if cn.Clusters[1].Precedes.has(0) {
		t.Fatalf("B must not precede A")
	}
}

func TestWriteSCFProducesHeaderAndClusterBlocks(t *testing.T) {
	lat := scenario6Lattice()
	cn := Build(lat, Options{})

	var sb strings.Builder
	if err := WriteSCF(&sb, cn); err != nil {
		t.Fatalf("WriteSCF: %v", err)
	}
	out := sb.String()
	if !strings.HasPrefix(out, "N=1\n") {
		t.Fatalf("SCF output = %q, want it to start with N=1", out)
	}
	if !strings.Contains(out, "W=THE") {
		t.Fatalf("SCF output missing THE word line: %q", out)
	}
}
