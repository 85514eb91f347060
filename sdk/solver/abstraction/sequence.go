package abstraction

import (
	"math"

	"github.com/lox/holdem-solver/internal/game"
)

// LEAF marks a next() slot whose action ends the hand (fold, showdown, or an
// all-in that closes every remaining pot contribution). ILLEGAL marks a slot
// the abstraction never offers at that state, so regret/strategy code can
// fold it out of policy/sampling without special-casing round boundaries.
const (
	LEAF    uint32 = math.MaxUint32 - 1
	ILLEGAL uint32 = math.MaxUint32
)

// SequenceTable is the materialised abstracted game tree: for every round, a
// dense table of states reachable under a fixed action vector, and for every
// (state, action) pair the id of the state reached by taking it, or one of
// the two sentinels above. States are numbered per round in the order the
// depth-first walk from the root first reaches them, so state 0 of a round
// is always that round's first decision point.
type SequenceTable struct {
	actions [4][]AbstractAction
	next    [4][]uint32
	states  [4]uint32
	offset  [4][]uint64 // offset[r][seq] = legal-action slots before (r, seq)
}

// NewSequenceTable builds the abstracted tree reachable from root under
// actionVec via depth-first enumeration, applying each candidate action to a
// scratch copy of the node to discover its legality and destination. The
// construction is a single recursive walk rather than the original design's
// separate count-then-allocate passes: Go slices grow on demand, so nothing
// is gained here by counting states before allocating their rows.
func NewSequenceTable(root *game.Node, actionVec []AbstractAction) *SequenceTable {
	t := &SequenceTable{}
	for r := game.Preflop; r <= game.River; r++ {
		for _, a := range actionVec {
			if a.roundInWindow(r) {
				t.actions[r] = append(t.actions[r], a)
			}
		}
	}
	b := &sequenceBuilder{table: t}
	b.build(root, root.Round, 0)
	t.buildOffsets()
	return t
}

type sequenceBuilder struct {
	table *SequenceTable
}

// build assigns the next free sequence id for round to n, fills in its
// row of the next table by trying every abstract action available in that
// round, and returns the id assigned to n.
func (b *sequenceBuilder) build(n *game.Node, round game.Round, raisesThisRound int) uint32 {
	actions := b.table.actions[round]
	seq := b.table.states[round]
	b.table.states[round]++
	base := uint64(seq) * uint64(len(actions))
	b.table.next[round] = append(b.table.next[round], make([]uint32, len(actions))...)

	seenSizes := make(map[uint32]bool)
	for i, a := range actions {
		b.table.next[round][base+uint64(i)] = b.transition(n, round, a, raisesThisRound, seenSizes)
	}
	return seq
}

// transition decides whether a is legal for n and, if so, applies it to a
// scratch copy and recurses, returning the child's sequence id (or LEAF if
// the hand ends there). It returns ILLEGAL without touching n otherwise.
func (b *sequenceBuilder) transition(n *game.Node, round game.Round, a AbstractAction, raisesThisRound int, seenSizes map[uint32]bool) uint32 {
	if !n.InProgress {
		return ILLEGAL
	}
	switch a.Play {
	case Fold:
		if !n.CanFold() {
			return ILLEGAL
		}
		if n.Bets[n.ActingPlayer] >= n.MaxBet {
			// Nothing to call: folding isn't offered when checking is free.
			return ILLEGAL
		}
		return b.apply(n, game.Move{Play: game.Fold}, round, raisesThisRound)

	case CheckCall:
		// CheckCall is always legal while the hand is in progress; an
		// exact-stack call is indistinguishable at the abstraction level
		// from choosing AllIn, so it's applied that way underneath.
		move := game.Move{Play: game.CheckCall}
		if !n.CanCheckCall() {
			move = game.Move{Play: game.AllIn}
		}
		return b.apply(n, move, round, raisesThisRound)

	case AllIn:
		return b.apply(n, game.Move{Play: game.AllIn}, round, raisesThisRound)

	case Bet:
		if !a.roundInWindow(round) {
			return ILLEGAL
		}
		if raisesThisRound >= a.MaxRaiseNumber {
			return ILLEGAL
		}
		if a.MaxPlayers > 0 && n.PlayersLeft > a.MaxPlayers {
			return ILLEGAL
		}
		if n.Pot < a.MinPot {
			return ILLEGAL
		}
		chips := a.chipsForFraction(n.Pot)
		if !n.CanBet(chips) {
			return ILLEGAL
		}
		totalBet := chips + n.Bets[n.ActingPlayer]
		if seenSizes[totalBet] {
			// Two abstract sizes resolving to the same chip amount at this
			// node would otherwise split probability mass across duplicate
			// edges; only the first occurrence in actionVec order survives.
			return ILLEGAL
		}
		seenSizes[totalBet] = true
		return b.apply(n, game.Move{Play: game.Bet, Size: chips}, round, raisesThisRound+1)

	default:
		return ILLEGAL
	}
}

// apply runs move on a scratch clone of n and either returns LEAF (the hand
// ended), ILLEGAL (the engine itself rejected the move, which should not
// happen for a transition already checked legal), or recurses into build for
// the resulting state.
func (b *sequenceBuilder) apply(n *game.Node, move game.Move, round game.Round, raisesThisRound int) uint32 {
	child := n.Clone()
	inProgress, err := child.Apply(move)
	if err != nil {
		return ILLEGAL
	}
	if !inProgress {
		return LEAF
	}
	nextRaises := raisesThisRound
	if child.Round != round {
		nextRaises = 0
	}
	return b.build(child, child.Round, nextRaises)
}

// buildOffsets computes, for every round, the cumulative count of legal
// action slots preceding each state, so legal_offset(round, seq) is an O(1)
// lookup into a packed legal-actions-only index space.
func (t *SequenceTable) buildOffsets() {
	for r := game.Preflop; r <= game.River; r++ {
		n := t.states[r]
		t.offset[r] = make([]uint64, n+1)
		var cum uint64
		for seq := uint32(0); seq < n; seq++ {
			t.offset[r][seq] = cum
			cum += uint64(t.NumLegalActions(r, seq))
		}
		t.offset[r][n] = cum
	}
}

// States reports how many distinct decision states round contains.
func (t *SequenceTable) States(round game.Round) uint32 { return t.states[round] }

// ActionCount reports how many of actionVec's entries are materialised for
// round (those whose [MinRound, MaxRound] window includes it).
func (t *SequenceTable) ActionCount(round game.Round) int { return len(t.actions[round]) }

// Actions returns the action vector materialised for round, in table-column
// order; index i here is the action index Next and NumLegalActions expect.
func (t *SequenceTable) Actions(round game.Round) []AbstractAction {
	return t.actions[round]
}

// Next returns the state reached by taking actions(round)[action] from
// state seq, or LEAF/ILLEGAL.
func (t *SequenceTable) Next(round game.Round, seq uint32, action int) uint32 {
	width := len(t.actions[round])
	return t.next[round][uint64(seq)*uint64(width)+uint64(action)]
}

// NumLegalActions counts the non-ILLEGAL columns for (round, seq).
func (t *SequenceTable) NumLegalActions(round game.Round, seq uint32) int {
	width := t.ActionCount(round)
	n := 0
	for a := 0; a < width; a++ {
		if t.Next(round, seq, a) != ILLEGAL {
			n++
		}
	}
	return n
}

// LegalOffset returns the number of legal action slots, across every state
// of round that precedes seq, that a packed (state, legal-action) addressing
// scheme would need to skip to reach seq's own slots.
func (t *SequenceTable) LegalOffset(round game.Round, seq uint32) uint64 {
	return t.offset[round][seq]
}
