package confnet

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// SimCache memoises pairwise word phonetic-similarity scores (spec §4.10
// "Phonetic-similarity caching"), grounded on the same
// github.com/antzucaro/matchr Double-Metaphone/Jaro-Winkler combination
// the teacher's internal/transcript/phonetic package uses for entity
// matching — here repurposed to score word *pairs* instead of ranking
// candidates against a fixed entity list.
type SimCache struct {
	cache map[[2]string]float64
}

// NewSimCache returns an empty phonetic-similarity cache.
func NewSimCache() *SimCache {
	return &SimCache{cache: make(map[[2]string]float64)}
}

// Similarity returns the phonetic similarity of two words in [0, 1] (spec
// §4.10 step 7): `1 - weightedEditDistance(phones_a, phones_b) /
// (len(phones_a)+len(phones_b))` over each word's primary Double-Metaphone
// code as a phone-string proxy (this package has no phoneme inventory of
// its own — collab.Dictionary carries no pronunciation-phone sequence —
// so the metaphone code stands in for it, same adaptation the teacher's
// phonetic matcher makes). Falls back to Jaro-Winkler on the raw spelling
// when either word's metaphone code is empty (too short / no consonants).
func (c *SimCache) Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	key := [2]string{a, b}
	if key[0] > key[1] {
		key[0], key[1] = key[1], key[0]
	}
	if v, ok := c.cache[key]; ok {
		return v
	}

	pa, _ := matchr.DoubleMetaphone(strings.ToLower(a))
	pb, _ := matchr.DoubleMetaphone(strings.ToLower(b))

	var v float64
	if pa == "" || pb == "" {
		v = matchr.JaroWinkler(strings.ToLower(a), strings.ToLower(b), false)
	} else {
		dist := weightedEditDistance(pa, pb)
		v = 1 - dist/float64(len(pa)+len(pb))
		if v < 0 {
			v = 0
		}
	}

	c.cache[key] = v
	return v
}

// weightedEditDistance computes the weighted Levenshtein distance between
// two phone-code strings using the conventional weights spec §4.10 names:
// substitution=2, deletion=1, insertion=1.
func weightedEditDistance(a, b string) float64 {
	const subCost, delCost, insCost = 2.0, 1.0, 1.0

	ra, rb := []rune(a), []rune(b)
	prev := make([]float64, len(rb)+1)
	cur := make([]float64, len(rb)+1)
	for j := range prev {
		prev[j] = float64(j) * insCost
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = float64(i) * delCost
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1]
				continue
			}
			sub := prev[j-1] + subCost
			del := prev[j] + delCost
			ins := cur[j-1] + insCost
			cur[j] = min3(sub, del, ins)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
