package abstraction

import (
	"sort"

	"github.com/lox/holdem-solver/internal/game"
	"github.com/lox/holdem-solver/poker"
)

// cardsPerRound is the number of hole+board cards seen by the time round r
// closes: two hole cards, plus three/four/five board cards from Flop on.
func cardsPerRound(r game.Round) int {
	switch r {
	case game.Preflop:
		return 2
	case game.Flop:
		return 5
	case game.Turn:
		return 6
	default:
		return 7
	}
}

// CanonicalIndexer is a reference Indexer: Preflop collapses to the
// conventional 169 starting-hand classes (pair, suited, offsuit); Flop
// through River use a combinatorial-number-system rank over the 52-card
// bit positions, which is a true bijection and therefore trivially satisfies
// the indexer-inverse invariant, at the cost of not folding suit-isomorphic
// boards onto the same index the way a production perfect-recall indexer
// would (see DESIGN.md).
type CanonicalIndexer struct{}

// binom[n][k] = C(n, k) for n, k <= 52.
var binom = buildBinomial(52)

func buildBinomial(n int) [][]uint64 {
	b := make([][]uint64, n+1)
	for i := range b {
		b[i] = make([]uint64, n+1)
		b[i][0] = 1
		for j := 1; j <= i; j++ {
			b[i][j] = b[i-1][j-1] + b[i-1][j]
		}
	}
	return b
}

func choose(n, k int) uint64 {
	if k < 0 || n < 0 || k > n {
		return 0
	}
	return binom[n][k]
}

// colexRank computes the combinatorial-number-system rank of a strictly
// increasing sequence of values drawn from [0, 52).
func colexRank(sorted []int) uint64 {
	var rank uint64
	for i, v := range sorted {
		rank += choose(v, i+1)
	}
	return rank
}

// colexUnrank is colexRank's inverse: given a rank and the combination size
// n, returns the strictly increasing sequence of n values in [0, 52) whose
// colex rank is idx.
func colexUnrank(idx uint64, n int) []int {
	out := make([]int, n)
	for i := n - 1; i >= 0; i-- {
		v := i
		for choose(v+1, i+1) <= idx {
			v++
		}
		out[i] = v
		idx -= choose(v, i+1)
	}
	return out
}

// IndexLast implements Indexer.
func (CanonicalIndexer) IndexLast(round game.Round, cards poker.Hand) uint64 {
	if round == game.Preflop {
		return preflopIndex(cards)
	}
	positions := bitPositions(cards)
	sort.Ints(positions)
	return colexRank(positions)
}

// Unindex implements Indexer.
func (CanonicalIndexer) Unindex(round game.Round, idx uint64) poker.Hand {
	if round == game.Preflop {
		return preflopUnindex(idx)
	}
	positions := colexUnrank(idx, cardsPerRound(round))
	cards := make([]poker.Card, len(positions))
	for i, p := range positions {
		cards[i] = poker.Card(1) << uint(p)
	}
	return poker.NewHand(cards...)
}

// Count implements Indexer.
func (CanonicalIndexer) Count(round game.Round) uint64 {
	if round == game.Preflop {
		return 169
	}
	return choose(52, cardsPerRound(round))
}

func bitPositions(h poker.Hand) []int {
	cards := h.Cards()
	out := make([]int, len(cards))
	for i, c := range cards {
		out[i] = int(c.GetBitPosition())
	}
	return out
}

// preflopHighLow canonicalizes the two hole cards are returns (highRank,
// lowRank, suited).
func preflopHighLow(h poker.Hand) (uint8, uint8, bool) {
	cards := h.Cards()
	r0, r1 := cards[0].Rank(), cards[1].Rank()
	suited := cards[0].Suit() == cards[1].Suit()
	if r0 < r1 {
		r0, r1 = r1, r0
	}
	return r0, r1, suited
}

// preflopOrder enumerates the 169 canonical starting hands once, in a fixed
// deterministic order: pairs first (low to high), then for each unordered
// rank pair, suited before offsuit.
var preflopOrder = buildPreflopOrder()

type preflopClass struct {
	high, low uint8
	suited    bool
}

func buildPreflopOrder() []preflopClass {
	var classes []preflopClass
	for r := uint8(0); r < 13; r++ {
		classes = append(classes, preflopClass{high: r, low: r, suited: false})
	}
	for high := uint8(1); high < 13; high++ {
		for low := uint8(0); low < high; low++ {
			classes = append(classes, preflopClass{high: high, low: low, suited: true})
			classes = append(classes, preflopClass{high: high, low: low, suited: false})
		}
	}
	return classes
}

var preflopIndexOf = buildPreflopIndexOf()

func buildPreflopIndexOf() map[preflopClass]uint64 {
	m := make(map[preflopClass]uint64, len(preflopOrder))
	for i, c := range preflopOrder {
		m[c] = uint64(i)
	}
	return m
}

func preflopIndex(h poker.Hand) uint64 {
	high, low, suited := preflopHighLow(h)
	if high == low {
		suited = false
	}
	return preflopIndexOf[preflopClass{high: high, low: low, suited: suited}]
}

func preflopUnindex(idx uint64) poker.Hand {
	c := preflopOrder[idx]
	if c.high == c.low {
		return poker.NewHand(poker.NewCard(c.high, poker.Clubs), poker.NewCard(c.low, poker.Diamonds))
	}
	if c.suited {
		return poker.NewHand(poker.NewCard(c.high, poker.Clubs), poker.NewCard(c.low, poker.Clubs))
	}
	return poker.NewHand(poker.NewCard(c.high, poker.Clubs), poker.NewCard(c.low, poker.Diamonds))
}
