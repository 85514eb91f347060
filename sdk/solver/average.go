package solver

import (
	"math/rand"

	"github.com/lox/holdem-solver/internal/game"
	"github.com/lox/holdem-solver/sdk/solver/abstraction"
)

// Average is the same-shape storage as Strategy but float-valued (§4.6): an
// elementwise accumulation of policy snapshots taken over the course of
// training, normalised into a genuine probability distribution once
// training completes.
type Average struct {
	seq        *abstraction.SequenceTable
	clusters   abstraction.ClusterCapability
	data       [4][]float64
	width      [4]int
	states     [4]uint32
	normalized bool
}

// NewAverage allocates a zeroed accumulator shaped by seq and clusters.
func NewAverage(seq *abstraction.SequenceTable, clusters abstraction.ClusterCapability) *Average {
	a := &Average{seq: seq, clusters: clusters}
	for round := game.Preflop; round <= game.River; round++ {
		a.width[round] = seq.ActionCount(round)
		a.states[round] = seq.States(round)
		size := uint64(clusters.NumClusters(round)) * uint64(a.states[round]) * uint64(a.width[round])
		a.data[round] = make([]float64, size)
	}
	return a
}

func (a *Average) index(round game.Round, cluster, seqID uint32, action int) uint64 {
	return (uint64(cluster)*uint64(a.states[round])+uint64(seqID))*uint64(a.width[round]) + uint64(action)
}

// InitialAverage resets the accumulator to a single snapshot of strategy's
// current policy, discarding any prior accumulation.
func (a *Average) InitialAverage(strategy *Strategy) {
	a.normalized = false
	a.forEachRow(func(round game.Round, cluster, seqID uint32, base uint64) {
		policy := strategy.Policy(round, cluster, seqID)
		for action, p := range policy {
			a.data[round][base+uint64(action)] = p
		}
	})
}

// AddAssign accumulates another snapshot of strategy's current policy
// elementwise into the running sum.
func (a *Average) AddAssign(strategy *Strategy) {
	a.normalized = false
	a.forEachRow(func(round game.Round, cluster, seqID uint32, base uint64) {
		policy := strategy.Policy(round, cluster, seqID)
		for action, p := range policy {
			a.data[round][base+uint64(action)] += p
		}
	})
}

// Normalize divides every (round, cluster, seq) action vector by its own
// sum so Policy reads a valid probability distribution directly.
func (a *Average) Normalize() {
	a.forEachRow(func(round game.Round, cluster, seqID uint32, base uint64) {
		row := a.data[round][base : base+uint64(a.width[round])]
		var sum float64
		for _, v := range row {
			sum += v
		}
		if sum <= 0 {
			return
		}
		for i := range row {
			row[i] /= sum
		}
	})
	a.normalized = true
}

// Policy returns the averaged distribution at (round, cluster, seq). When
// the accumulator has not been normalised yet, it normalises the requested
// row on read rather than mutating shared state, so inference never needs
// to assume Normalize has already run.
func (a *Average) Policy(round game.Round, cluster, seqID uint32) []float64 {
	base := a.index(round, cluster, seqID, 0)
	row := a.data[round][base : base+uint64(a.width[round])]
	out := append([]float64(nil), row...)
	if a.normalized {
		return out
	}
	var sum float64
	legal := 0
	for action, v := range out {
		if a.seq.Next(round, seqID, action) == abstraction.ILLEGAL {
			out[action] = 0
			continue
		}
		legal++
		sum += v
	}
	if sum <= 0 {
		if legal == 0 {
			return out
		}
		uniform := 1.0 / float64(legal)
		for action := range out {
			if a.seq.Next(round, seqID, action) != abstraction.ILLEGAL {
				out[action] = uniform
			}
		}
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func (a *Average) forEachRow(fn func(round game.Round, cluster, seqID uint32, base uint64)) {
	for round := game.Preflop; round <= game.River; round++ {
		clusters := a.clusters.NumClusters(round)
		for cluster := uint32(0); cluster < clusters; cluster++ {
			for seqID := uint32(0); seqID < a.states[round]; seqID++ {
				fn(round, cluster, seqID, a.index(round, cluster, seqID, 0))
			}
		}
	}
}

// BattleStats plays means*trials self-play hands under cfg, with a holding
// seat 0 and other holding every other seat, and reports the mean chip
// differential for seat 0 across each batch of trials hands (§4.6). This is
// C6's call into C1 (internal/game.Node) for battle simulation.
func (a *Average) BattleStats(other *Average, cfg game.Config, rng *rand.Rand, means, trials int) []float64 {
	results := make([]float64, means)
	for batch := 0; batch < means; batch++ {
		var total float64
		for h := 0; h < trials; h++ {
			total += a.playHand(other, cfg, rng)
		}
		results[batch] = total / float64(trials)
	}
	return results
}

func (a *Average) playHand(other *Average, cfg game.Config, rng *rand.Rand) float64 {
	root := game.NewNode(cfg, game.WithRNG(rng))
	if err := root.NewHand(0); err != nil {
		return 0
	}
	root.Deal()

	start := append([]uint32(nil), root.Stacks...)
	clusterOf := a.clusters.ClusterArray(root)

	n, round, seqID := root, root.Round, uint32(0)
	for n.InProgress {
		acting := int(n.ActingPlayer)
		policy := other.Policy(round, clusterOf[acting], seqID)
		if acting == 0 {
			policy = a.Policy(round, clusterOf[acting], seqID)
		}
		action := Sample(policy, rng.Float64())

		next := a.seq.Next(round, seqID, action)
		child, nextRound, nextSeq, err := step(a.seq, n, round, seqID, action)
		if err != nil {
			break
		}
		if next == abstraction.LEAF {
			n = child
			break
		}
		clusterOf = recomputeClusters(a.clusters, clusterOf, round, nextRound, child)
		n, round, seqID = child, nextRound, nextSeq
	}

	if _, err := n.AwardPot(game.SingleRun, 0); err != nil {
		return 0
	}
	return float64(n.Stacks[0]) - float64(start[0])
}
