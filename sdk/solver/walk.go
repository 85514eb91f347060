package solver

import (
	"github.com/lox/holdem-solver/internal/game"
	"github.com/lox/holdem-solver/sdk/solver/abstraction"
)

// actionMove reconstructs the concrete Move an AbstractAction resolves to at
// node n's current state. It is only ever called for an action the
// SequenceTable has already certified legal (Next(...) != ILLEGAL), so it
// just recomputes the chip-sizing formula sequence.go's builder used rather
// than re-validating legality.
func actionMove(n *game.Node, a abstraction.AbstractAction) game.Move {
	switch a.Play {
	case abstraction.Fold:
		return game.Move{Play: game.Fold}
	case abstraction.CheckCall:
		if !n.CanCheckCall() {
			return game.Move{Play: game.AllIn}
		}
		return game.Move{Play: game.CheckCall}
	case abstraction.AllIn:
		return game.Move{Play: game.AllIn}
	case abstraction.Bet:
		chips := uint32(a.SizeAsPotFraction * float64(n.Pot))
		return game.Move{Play: game.Bet, Size: chips}
	default:
		return game.Move{Play: game.Fold}
	}
}

// step applies seq.Actions(round)[action] to a clone of n and returns the
// resulting node together with the SequenceTable state it lands on (LEAF
// when the action ends the hand).
func step(seq *abstraction.SequenceTable, n *game.Node, round game.Round, seqID uint32, action int) (*game.Node, game.Round, uint32, error) {
	a := seq.Actions(round)[action]
	move := actionMove(n, a)
	child := n.Clone()
	if _, err := child.Apply(move); err != nil {
		return nil, 0, 0, err
	}
	return child, child.Round, seq.Next(round, seqID, action), nil
}

// recomputeClusters returns old unchanged within a round (only the acting
// seat's cluster is consumed between decisions of the same street) and a
// freshly computed cluster array the moment the round advances and new
// board cards change every seat's bucket.
func recomputeClusters(clusters abstraction.ClusterCapability, old []uint32, oldRound, newRound game.Round, n *game.Node) []uint32 {
	if newRound == oldRound {
		return old
	}
	return clusters.ClusterArray(n)
}
