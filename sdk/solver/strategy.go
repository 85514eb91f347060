package solver

import (
	"github.com/lox/holdem-solver/internal/game"
	"github.com/lox/holdem-solver/sdk/solver/abstraction"
)

// Strategy bundles the two tensors a live MCCFR run mutates: postflop
// regrets and the preflop-only action counts the strategy-update pass
// accumulates. Policy dispatches to whichever one the round calls for:
// normalised action counts for the preflop round, regret matching over the
// stored regrets for later rounds.
type Strategy struct {
	Seq      *abstraction.SequenceTable
	Clusters abstraction.ClusterCapability
	Regret   *Regret
	Counts   *ActionCounts
}

// NewStrategy allocates a zeroed Strategy shaped by seq and clusters.
func NewStrategy(seq *abstraction.SequenceTable, clusters abstraction.ClusterCapability, regretFloor int32) *Strategy {
	return &Strategy{
		Seq:      seq,
		Clusters: clusters,
		Regret:   NewRegret(seq, clusters, regretFloor),
		Counts:   NewActionCounts(seq, clusters),
	}
}

// Policy returns the current action distribution at (round, cluster, seq).
func (s *Strategy) Policy(round game.Round, cluster, seqID uint32) []float64 {
	if round == game.Preflop {
		return s.Counts.Policy(cluster, seqID)
	}
	return s.Regret.Policy(round, cluster, seqID)
}

// Discount applies the linear-CFR discount factor to both tensors.
func (s *Strategy) Discount(factor float64) {
	s.Regret.Discount(factor)
	s.Counts.Discount(factor)
}
