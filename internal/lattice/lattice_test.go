package lattice

import (
	"testing"

	"github.com/tanaris-labs/lvdecode/internal/arena"
	"github.com/tanaris-labs/lvdecode/internal/traceback"
	"github.com/tanaris-labs/lvdecode/pkg/collab"
)

type dict map[int]collab.Pronunciation

func (d dict) Pron(id int) collab.Pronunciation { return d[id] }

func TestBuildNumbersMainPathAndRecoversLikelihoods(t *testing.T) {
	g := traceback.NewGraph()
	h0 := g.NewWordEnd(arena.Nil, 0, 10, -5, -1, traceback.VariantMain, arena.Nil)
	h1 := g.NewWordEnd(h0, 1, 20, -12, -3, traceback.VariantMain, arena.Nil)

	d := dict{0: {Word: "THE"}, 1: {Word: "CAT"}}
	b := NewBuilder(g, d, 1.0, false)
	lat := b.Build(Header{}, []arena.Handle{h1})

	if lat.NumNodes != 3 {
		t.Fatalf("NumNodes = %d, want 3 (start + 2 word ends)", lat.NumNodes)
	}
	if len(lat.Arcs) != 2 {
		t.Fatalf("len(Arcs) = %d, want 2", len(lat.Arcs))
	}

	var arcFor = func(pron int) Arc {
		for _, a := range lat.Arcs {
			if a.Pron == pron {
				return a
			}
		}
		t.Fatalf("no arc for pron %d", pron)
		return Arc{}
	}
	a0 := arcFor(0)
	if a0.StartNode != 0 || a0.Word != "THE" {
		t.Fatalf("arc0 = %+v", a0)
	}
	if a0.LMLike != -1 || a0.AcLike != -4 { // score-5, lm-1 -> ac = -5 - (-1) - 0
		t.Fatalf("arc0 likelihoods = %+v, want LMLike=-1 AcLike=-4", a0)
	}

	a1 := arcFor(1)
	if a1.StartNode != a0.EndNode {
		t.Fatalf("arc1.StartNode = %d, want %d (chained from arc0)", a1.StartNode, a0.EndNode)
	}
	if a1.LMLike != -2 { // cumulative lm -3 - (-1)
		t.Fatalf("arc1.LMLike = %v, want -2", a1.LMLike)
	}
}

func TestBuildIncludesAltWordEndHypAsASeparateArc(t *testing.T) {
	g := traceback.NewGraph()
	loser := g.NewWordEnd(arena.Nil, 2, 8, -9, -1, traceback.VariantMain, arena.Nil)
	winner := g.NewWordEnd(arena.Nil, 0, 10, -5, -1, traceback.VariantMain, arena.Nil)
	alt := g.NewAlt(loser, -4, -1, arena.Nil, arena.Nil)
	g.WE.Get(winner).Alt = alt

	b := NewBuilder(g, nil, 1.0, false)
	lat := b.Build(Header{}, []arena.Handle{winner})

	if len(lat.Arcs) != 3 {
		t.Fatalf("len(Arcs) = %d, want 3 (winner main + alt, loser's own main arc from start)", len(lat.Arcs))
	}
	if lat.NumNodes != 3 {
		t.Fatalf("NumNodes = %d, want 3 (start, loser, winner)", lat.NumNodes)
	}
}

func TestBuildResetsSeenStampsForReuse(t *testing.T) {
	g := traceback.NewGraph()
	h0 := g.NewWordEnd(arena.Nil, 0, 10, -5, -1, traceback.VariantMain, arena.Nil)

	b := NewBuilder(g, nil, 1.0, false)
	b.Build(Header{}, []arena.Handle{h0})
	if g.Seen(h0) != 0 {
		t.Fatalf("Seen(h0) = %d after Build, want reset to 0", g.Seen(h0))
	}
}
