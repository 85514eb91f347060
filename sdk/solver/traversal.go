package solver

import (
	"math"
	"math/rand"

	"github.com/lox/holdem-solver/internal/game"
	"github.com/lox/holdem-solver/sdk/solver/abstraction"
)

// traverser carries the per-goroutine state a single MCCFR walk needs: its
// own RNG stream (workers never share one) and the running node/terminal
// counts folded back into the trainer's aggregate TraversalStats once the
// walk returns.
type traverser struct {
	strategy      *Strategy
	rng           *rand.Rand
	prune         bool
	pruneConstant int32

	depth         int
	nodesVisited  int64
	terminalNodes int64
	maxDepth      int
}

// traverse implements the external-sampling MCCFR walk of §4.5: at the
// traversing player p's own decisions every legal action is explored and its
// regret updated from the counterfactual value difference against the
// node's mixed value; at every other seat's decision a single action is
// sampled from the current regret-matching policy and only that branch is
// recursed into. When prune is set, p's own actions whose postflop regret
// has fallen to or below pruneConstant are skipped entirely, matching §4.5's
// negative-regret pruning (never applied preflop, where counts rather than
// regret drive the policy).
func (tv *traverser) traverse(n *game.Node, round game.Round, seqID uint32, clusters []uint32, p int) float64 {
	tv.nodesVisited++
	tv.depth++
	defer func() { tv.depth-- }()
	if tv.depth > tv.maxDepth {
		tv.maxDepth = tv.depth
	}

	if !n.InProgress {
		tv.terminalNodes++
		return tv.terminalUtility(n, p)
	}

	acting := int(n.ActingPlayer)
	cluster := clusters[acting]
	policy := tv.strategy.Policy(round, cluster, seqID)
	width := len(policy)

	if acting != p {
		action := Sample(policy, tv.rng.Float64())
		return tv.recurse(n, round, seqID, clusters, p, action)
	}

	values := make([]float64, width)
	explored := make([]bool, width)
	var nodeValue float64
	for a := 0; a < width; a++ {
		if tv.strategy.Seq.Next(round, seqID, a) == abstraction.ILLEGAL {
			continue
		}
		if tv.prune && round != game.Preflop {
			if tv.strategy.Regret.Get(round, cluster, seqID, a) <= tv.pruneConstant {
				continue
			}
		}
		values[a] = tv.recurse(n, round, seqID, clusters, p, a)
		explored[a] = true
		nodeValue += policy[a] * values[a]
	}

	if round != game.Preflop {
		for a := 0; a < width; a++ {
			if !explored[a] {
				continue
			}
			delta := values[a] - nodeValue
			tv.strategy.Regret.Add(round, cluster, seqID, a, int32(math.Round(delta)))
		}
	}

	return nodeValue
}

// recurse applies actions(round)[action] to n and continues the walk into
// the resulting state, or resolves the terminal utility directly when the
// SequenceTable marks the transition a LEAF.
func (tv *traverser) recurse(n *game.Node, round game.Round, seqID uint32, clusters []uint32, p, action int) float64 {
	next := tv.strategy.Seq.Next(round, seqID, action)
	child, nextRound, nextSeq, err := step(tv.strategy.Seq, n, round, seqID, action)
	if err != nil {
		return 0
	}
	if next == abstraction.LEAF {
		tv.terminalNodes++
		return tv.terminalUtility(child, p)
	}
	nextClusters := recomputeClusters(tv.strategy.Clusters, clusters, round, nextRound, child)
	return tv.traverse(child, nextRound, nextSeq, nextClusters, p)
}

// terminalUtility awards the pot on a scratch terminal node and returns
// player p's stack delta, the node's counterfactual value for p.
func (tv *traverser) terminalUtility(n *game.Node, p int) float64 {
	before := n.Stacks[p]
	if _, err := n.AwardPot(game.SingleRun, 0); err != nil {
		return 0
	}
	return float64(n.Stacks[p]) - float64(before)
}

// updateStrategy implements §4.5's preflop strategy-update pass: at p's own
// decisions it samples one action from the current policy and records the
// sample into ActionCounts (these counts ARE the average preflop strategy,
// normalised); at every other seat it branches over every legal action so
// every preflop line the opponents could take gets its count pass, not just
// a sampled one. It never descends past preflop; postflop play is left
// entirely to traverse's own sampling.
func (tv *traverser) updateStrategy(n *game.Node, round game.Round, seqID uint32, clusters []uint32, p int) {
	if !n.InProgress || round != game.Preflop {
		return
	}

	acting := int(n.ActingPlayer)
	cluster := clusters[acting]
	policy := tv.strategy.Policy(round, cluster, seqID)
	width := len(policy)

	if acting == p {
		action := Sample(policy, tv.rng.Float64())
		if tv.strategy.Seq.Next(round, seqID, action) == abstraction.ILLEGAL {
			return
		}
		tv.strategy.Counts.Add(cluster, seqID, action, 1)
		tv.descendStrategy(n, round, seqID, clusters, p, action)
		return
	}

	for a := 0; a < width; a++ {
		if tv.strategy.Seq.Next(round, seqID, a) == abstraction.ILLEGAL {
			continue
		}
		tv.descendStrategy(n, round, seqID, clusters, p, a)
	}
}

func (tv *traverser) descendStrategy(n *game.Node, round game.Round, seqID uint32, clusters []uint32, p, action int) {
	next := tv.strategy.Seq.Next(round, seqID, action)
	if next == abstraction.LEAF {
		return
	}
	child, nextRound, nextSeq, err := step(tv.strategy.Seq, n, round, seqID, action)
	if err != nil {
		return
	}
	nextClusters := recomputeClusters(tv.strategy.Clusters, clusters, round, nextRound, child)
	tv.updateStrategy(child, nextRound, nextSeq, nextClusters, p)
}
