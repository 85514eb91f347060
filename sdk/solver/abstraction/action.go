// Package abstraction builds the action and card abstractions the MCCFR
// trainer traverses: canonical hand indexing and cluster lookup (Indexer,
// ClusterTable) and the materialised abstracted game tree (SequenceTable).
package abstraction

import "github.com/lox/holdem-solver/internal/game"

// Play identifies the kind of abstract action, mirroring game.Action plus
// the bet-sizing dimension AbstractAction adds on top.
type Play uint8

const (
	Fold Play = iota
	CheckCall
	Bet
	AllIn
)

func (p Play) String() string {
	switch p {
	case Fold:
		return "fold"
	case CheckCall:
		return "check/call"
	case Bet:
		return "bet"
	case AllIn:
		return "all-in"
	default:
		return "unknown"
	}
}

// AbstractAction is one entry in the fixed vector the SequenceTable is built
// from. A Bet action is admitted into the abstraction at a given node only
// if the current round falls within [MinRound, MaxRound], the number of
// raises already seen this round is within MaxRaiseNumber, the number of
// still-active players is within MaxPlayers (0 = no limit), and the pot is
// at least MinPot.
type AbstractAction struct {
	Play              Play
	SizeAsPotFraction float64
	MaxRaiseNumber    int
	MinRound          game.Round
	MaxRound          game.Round
	MaxPlayers        int
	MinPot            uint32
}

// roundInWindow reports whether round r falls within [a.MinRound, a.MaxRound].
func (a AbstractAction) roundInWindow(r game.Round) bool {
	return r >= a.MinRound && r <= a.MaxRound
}

// chipsForFraction converts the action's pot-fraction sizing into a concrete
// chip amount to bet, given the pot size at the decision point.
func (a AbstractAction) chipsForFraction(pot uint32) uint32 {
	return uint32(a.SizeAsPotFraction * float64(pot))
}
