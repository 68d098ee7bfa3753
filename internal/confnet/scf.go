package confnet

import (
	"fmt"
	"io"
	"math"
)

// NullWord is the residual-probability placeholder emitted when a
// cluster's listed posteriors don't sum to (close to) 1 (spec §6.4, §4.10
// step 10 "ADDNULLWORD").
const NullWord = "!NULL"

// Best1Best implements spec §4.10 step 10: per cluster, pick the word with
// the highest posterior; collapse the cluster to a deletion (no word
// emitted) when the residual probability `1 - sum(posteriors)` exceeds the
// best word's own posterior.
func (cn ConfNet) Best1Best() []string {
	var words []string
	for _, c := range cn.Clusters {
		best, bestP, sum := "", math.Inf(-1), 0.0
		for _, w := range c.Words {
			p := math.Exp(w.Posterior)
			sum += p
			if w.Posterior > bestP {
				best, bestP = w.Word, w.Posterior
			}
		}
		residual := 1 - sum
		if residual > math.Exp(bestP) {
			continue
		}
		if best != "" {
			words = append(words, best)
		}
	}
	return words
}

// WriteSCF writes cn in the plain-text SCF format of spec §6.4: a
// `N=<numClusters>` header, then per cluster a `k=<numWords>` line
// followed by one `W=<word> s=<start> e=<end> p=<logPosterior>` line per
// word, appending a residual [NullWord] entry whenever a cluster's listed
// posteriors sum to less than 1.
func WriteSCF(w io.Writer, cn ConfNet) error {
	if _, err := fmt.Fprintf(w, "N=%d\n", len(cn.Clusters)); err != nil {
		return err
	}
	for _, c := range cn.Clusters {
		sum := 0.0
		for _, word := range c.Words {
			sum += math.Exp(word.Posterior)
		}
		k := len(c.Words)
		residual := 1 - sum
		if residual > 1e-6 {
			k++
		}
		if _, err := fmt.Fprintf(w, "k=%d\n", k); err != nil {
			return err
		}
		for _, word := range c.Words {
			if _, err := fmt.Fprintf(w, "W=%s s=%d e=%d p=%g\n", word.Word, word.Start, word.End, word.Posterior); err != nil {
				return err
			}
		}
		if residual > 1e-6 {
			if _, err := fmt.Fprintf(w, "W=%s s=%d e=%d p=%g\n", NullWord, c.Start, c.End, math.Log(residual)); err != nil {
				return err
			}
		}
	}
	return nil
}
