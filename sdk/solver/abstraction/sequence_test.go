package abstraction

import (
	"testing"

	"github.com/lox/holdem-solver/internal/game"
)

func newHeadsUpRoot(t *testing.T) *game.Node {
	t.Helper()
	cfg := game.Config{Players: 2, SmallBlind: 50, BigBlind: 100, DefaultStack: 10000}
	n := game.NewNode(cfg, game.WithButton(0))
	if err := n.NewHand(0); err != nil {
		t.Fatalf("NewHand: %v", err)
	}
	return n
}

var foldCheckCallActions = []AbstractAction{
	{Play: Fold, MinRound: game.Preflop, MaxRound: game.River},
	{Play: CheckCall, MinRound: game.Preflop, MaxRound: game.River},
}

// TestSequenceTableCheckDownShape walks a heads-up fold/check-call-only
// abstraction by hand: every street is a limp/check until the river closes
// the hand, so the tree is small enough to count exactly. Preflop holds
// three states (the opener, the closer after a fold, and the closer after a
// limp-in); every later street holds two (first actor, second actor).
func TestSequenceTableCheckDownShape(t *testing.T) {
	root := newHeadsUpRoot(t)
	table := NewSequenceTable(root, foldCheckCallActions)

	want := map[game.Round]uint32{
		game.Preflop: 3,
		game.Flop:    2,
		game.Turn:    2,
		game.River:   2,
	}
	for round, n := range want {
		if got := table.States(round); got != n {
			t.Errorf("States(%s) = %d, want %d", round, got, n)
		}
	}

	// Root: seat 0 (SB) may fold or limp. Folding does not end the hand
	// (the closer still has to act), so it must name a real state.
	foldChild := table.Next(game.Preflop, 0, 0)
	if foldChild == LEAF || foldChild == ILLEGAL {
		t.Fatalf("root fold = %v, want a concrete state", foldChild)
	}
	limpChild := table.Next(game.Preflop, 0, 1)
	if limpChild == LEAF || limpChild == ILLEGAL {
		t.Fatalf("root check/call = %v, want a concrete state", limpChild)
	}
	if foldChild == limpChild {
		t.Fatalf("fold and limp must not collapse onto the same state")
	}

	// At the state reached after seat 0 folds, seat 1 is facing nothing to
	// call (their own blind already matches max_bet), so Fold is withheld,
	// and the closing check ends the hand outright.
	if got := table.Next(game.Preflop, foldChild, 0); got != ILLEGAL {
		t.Errorf("fold-then-fold = %v, want ILLEGAL", got)
	}
	if got := table.Next(game.Preflop, foldChild, 1); got != LEAF {
		t.Errorf("fold-then-check = %v, want LEAF", got)
	}

	// At the state reached after seat 0 limps, seat 1 is also facing
	// nothing extra to call, so their check/call advances to Flop's own
	// first state rather than ending the hand.
	if got := table.Next(game.Preflop, limpChild, 0); got != ILLEGAL {
		t.Errorf("limp-then-fold = %v, want ILLEGAL", got)
	}
	flopRoot := table.Next(game.Preflop, limpChild, 1)
	if flopRoot == LEAF || flopRoot == ILLEGAL {
		t.Fatalf("limp-then-check = %v, want a concrete Flop state", flopRoot)
	}
}

// TestSequenceTableActionWindowFiltering checks that an action restricted to
// a subset of rounds is materialised only for those rounds.
func TestSequenceTableActionWindowFiltering(t *testing.T) {
	root := newHeadsUpRoot(t)
	actions := append([]AbstractAction{}, foldCheckCallActions...)
	actions = append(actions, AbstractAction{
		Play:              Bet,
		SizeAsPotFraction: 1.0,
		MaxRaiseNumber:    1,
		MinRound:          game.Flop,
		MaxRound:          game.Flop,
	})
	table := NewSequenceTable(root, actions)

	if got, want := table.ActionCount(game.Preflop), 2; got != want {
		t.Errorf("ActionCount(Preflop) = %d, want %d", got, want)
	}
	if got, want := table.ActionCount(game.Flop), 3; got != want {
		t.Errorf("ActionCount(Flop) = %d, want %d", got, want)
	}
	if got, want := table.ActionCount(game.Turn), 2; got != want {
		t.Errorf("ActionCount(Turn) = %d, want %d", got, want)
	}
	for _, a := range table.Actions(game.Preflop) {
		if a.Play == Bet {
			t.Fatalf("Bet action leaked into Preflop's action list")
		}
	}
}

// TestSequenceTableLegalOffsetsMonotonic checks the packed legal-action
// addressing helper: offsets must be non-decreasing, and the span between
// consecutive states' offsets must equal that state's own legal action
// count.
func TestSequenceTableLegalOffsetsMonotonic(t *testing.T) {
	root := newHeadsUpRoot(t)
	table := NewSequenceTable(root, foldCheckCallActions)

	for round := game.Preflop; round <= game.River; round++ {
		states := table.States(round)
		var prev uint64
		for seq := uint32(0); seq < states; seq++ {
			off := table.LegalOffset(round, seq)
			if off < prev {
				t.Fatalf("%s: LegalOffset(%d) = %d, decreased from %d", round, seq, off, prev)
			}
			next := table.LegalOffset(round, seq+1)
			if want := uint64(table.NumLegalActions(round, seq)); next-off != want {
				t.Errorf("%s seq %d: offset span = %d, want %d legal actions", round, seq, next-off, want)
			}
			prev = off
		}
	}
}

// TestSequenceTableDuplicateBetSizeSuppressed checks that two abstract bet
// sizes resolving to the same chip amount at a node only ever produce one
// legal edge between them.
func TestSequenceTableDuplicateBetSizeSuppressed(t *testing.T) {
	root := newHeadsUpRoot(t)
	actions := []AbstractAction{
		{Play: Fold, MinRound: game.Preflop, MaxRound: game.River},
		{Play: CheckCall, MinRound: game.Preflop, MaxRound: game.River},
		{Play: Bet, SizeAsPotFraction: 1.0, MaxRaiseNumber: 4, MinRound: game.Preflop, MaxRound: game.River},
		{Play: Bet, SizeAsPotFraction: 1.0, MaxRaiseNumber: 4, MinRound: game.Preflop, MaxRound: game.River},
	}
	table := NewSequenceTable(root, actions)

	legalBets := 0
	for a := 2; a < 4; a++ {
		if table.Next(game.Preflop, 0, a) != ILLEGAL {
			legalBets++
		}
	}
	if legalBets != 1 {
		t.Errorf("identical bet-fraction actions at the root produced %d legal edges, want 1", legalBets)
	}
}
