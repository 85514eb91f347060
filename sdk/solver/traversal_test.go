package solver

import (
	"math/rand"
	"testing"

	"github.com/lox/holdem-solver/internal/game"
	"github.com/lox/holdem-solver/sdk/solver/abstraction"
)

func buildFoldedHeadsUp(t *testing.T) *game.Node {
	t.Helper()
	cfg := game.Config{Players: 2, SmallBlind: 50, BigBlind: 100, DefaultStack: 10000}
	n := game.NewNode(cfg, game.WithButton(0))
	if err := n.NewHand(0); err != nil {
		t.Fatalf("NewHand: %v", err)
	}
	if _, err := n.Apply(game.Move{Play: game.Fold}); err != nil {
		t.Fatalf("fold: %v", err)
	}
	if _, err := n.Apply(game.Move{Play: game.CheckCall}); err != nil {
		t.Fatalf("closing check: %v", err)
	}
	if n.InProgress {
		t.Fatalf("expected hand to be over once the only contestant remains")
	}
	return n
}

// TestTraverserTerminalUtilityMatchesAwardDelta pins down terminalUtility's
// contract: it reports the chip delta AwardPot produces from this point
// forward, not the hand's full profit/loss relative to a player's starting
// stack. Seat 0 folded preflop after posting its blind, so the award step
// itself moves none of its chips; seat 1 is the sole remaining contestant
// and collects the whole pot.
func TestTraverserTerminalUtilityMatchesAwardDelta(t *testing.T) {
	tv := &traverser{}

	n0 := buildFoldedHeadsUp(t)
	if got, want := tv.terminalUtility(n0, 0), 0.0; got != want {
		t.Errorf("terminalUtility(seat 0) = %v, want %v", got, want)
	}

	n1 := buildFoldedHeadsUp(t)
	if got, want := tv.terminalUtility(n1, 1), 150.0; got != want {
		t.Errorf("terminalUtility(seat 1) = %v, want %v", got, want)
	}
}

// TestTraverseAtTerminalNodeReturnsTerminalUtility checks that traverse,
// called directly on a node whose hand has already ended, short-circuits to
// terminalUtility without touching the strategy tensors, while still
// recording the per-iteration instrumentation counters.
func TestTraverseAtTerminalNodeReturnsTerminalUtility(t *testing.T) {
	n := buildFoldedHeadsUp(t)
	seq := newTestSequenceTable(t)
	strategy := NewStrategy(seq, testClusters(), -1000)
	tv := &traverser{strategy: strategy, rng: rand.New(rand.NewSource(1))}

	got := tv.traverse(n, game.Preflop, 0, []uint32{0, 0}, 1)
	if want := 150.0; got != want {
		t.Errorf("traverse at terminal node = %v, want %v", got, want)
	}
	if tv.terminalNodes != 1 {
		t.Errorf("terminalNodes = %d, want 1", tv.terminalNodes)
	}
	if tv.nodesVisited != 1 {
		t.Errorf("nodesVisited = %d, want 1", tv.nodesVisited)
	}
}

func newHeadsUpGame(t *testing.T) (*game.Node, *abstraction.SequenceTable) {
	t.Helper()
	cfg := game.Config{Players: 2, SmallBlind: 50, BigBlind: 100, DefaultStack: 10000}
	root := game.NewNode(cfg, game.WithButton(0))
	if err := root.NewHand(0); err != nil {
		t.Fatalf("NewHand: %v", err)
	}
	seq := abstraction.NewSequenceTable(root, twoActionAbstraction)
	return root, seq
}

// TestUpdateStrategyRecordsExactlyOneCountForOwnDecision checks the
// preflop strategy-update pass at the traversing player's own decision: it
// samples a single action and records exactly one count, rather than
// branching over every legal action the way it does at an opponent's
// decision.
func TestUpdateStrategyRecordsExactlyOneCountForOwnDecision(t *testing.T) {
	root, seq := newHeadsUpGame(t)
	clusters := testClusters()
	strategy := NewStrategy(seq, clusters, -1000)
	clusterArr := clusters.ClusterArray(root)

	tv := &traverser{strategy: strategy, rng: rand.New(rand.NewSource(5))}
	tv.updateStrategy(root, root.Round, 0, clusterArr, int(root.ActingPlayer))

	cluster := clusterArr[root.ActingPlayer]
	total := strategy.Counts.Get(cluster, 0, 0) + strategy.Counts.Get(cluster, 0, 1)
	if total != 1 {
		t.Fatalf("expected exactly one sampled action recorded, got total count %d", total)
	}
}

// TestUpdateStrategyNeverWritesRegret checks that the strategy-update pass
// only ever touches ActionCounts (preflop-only), never the regret tensor
// postflop play depends on.
func TestUpdateStrategyNeverWritesRegret(t *testing.T) {
	root, seq := newHeadsUpGame(t)
	clusters := testClusters()
	strategy := NewStrategy(seq, clusters, -1000)
	clusterArr := clusters.ClusterArray(root)

	tv := &traverser{strategy: strategy, rng: rand.New(rand.NewSource(9))}
	tv.updateStrategy(root, root.Round, 0, clusterArr, int(root.ActingPlayer))

	for round := game.Flop; round <= game.River; round++ {
		states := seq.States(round)
		width := seq.ActionCount(round)
		numClusters := clusters.NumClusters(round)
		for c := uint32(0); c < numClusters; c++ {
			for s := uint32(0); s < states; s++ {
				for a := 0; a < width; a++ {
					if got := strategy.Regret.Get(round, c, s, a); got != 0 {
						t.Fatalf("regret(%s,%d,%d,%d) = %d, want 0: strategy-update must never descend past preflop", round, c, s, a, got)
					}
				}
			}
		}
	}
}

// TestTraverseNeverWritesPreflopRegret checks the converse invariant in
// traverse itself: preflop policy is driven by ActionCounts, so the regret
// tensor's preflop rows must stay untouched even after a full traversal of a
// real dealt hand under the reference abstraction.
func TestTraverseNeverWritesPreflopRegret(t *testing.T) {
	abs := DefaultAbstraction()
	cfg := DefaultTrainingConfig()
	cfg.Players = 2
	cfg.SmallBlind = 1
	cfg.BigBlind = 2
	cfg.StartingStack = 20

	trainer, err := NewTrainer(abs, cfg)
	if err != nil {
		t.Fatalf("new trainer: %v", err)
	}

	rng := rand.New(rand.NewSource(99))
	n := trainer.newHand(rng)
	clusters := trainer.clusters.ClusterArray(n)
	tv := &traverser{strategy: trainer.strategy, rng: rng}
	tv.traverse(n, n.Round, 0, clusters, 0)

	if tv.nodesVisited == 0 {
		t.Fatalf("expected traverse to visit at least one node")
	}

	numClusters := trainer.clusters.NumClusters(game.Preflop)
	states := trainer.seq.States(game.Preflop)
	width := trainer.seq.ActionCount(game.Preflop)
	for c := uint32(0); c < numClusters; c++ {
		for s := uint32(0); s < states; s++ {
			for a := 0; a < width; a++ {
				if got := trainer.strategy.Regret.Get(game.Preflop, c, s, a); got != 0 {
					t.Fatalf("regret(preflop,%d,%d,%d) = %d, want 0", c, s, a, got)
				}
			}
		}
	}
}
