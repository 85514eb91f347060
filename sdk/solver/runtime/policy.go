package runtime

import (
	"errors"

	"github.com/lox/holdem-solver/internal/game"
	"github.com/lox/holdem-solver/sdk/solver"
	"github.com/lox/holdem-solver/sdk/solver/abstraction"
)

// Policy exposes read-only access to a trained blueprint for sampling
// actions during live play: the averaged policy tensor plus the
// SequenceTable/ClusterCapability pair needed to address it from a live
// game.Node.
type Policy struct {
	blueprint *solver.Blueprint
	seq       *abstraction.SequenceTable
	clusters  abstraction.ClusterCapability
}

// Load constructs a runtime policy from a stored blueprint file. It first
// peeks the blueprint's metadata sidecar to rebuild a matching
// SequenceTable/ClusterCapability pair (via solver.NewTrainer, which derives
// both deterministically from the same abstraction config the blueprint was
// trained with), then decodes the averaged-policy tensor against that shape.
func Load(path string) (*Policy, error) {
	absCfg, trainCfg, err := solver.PeekBlueprintConfig(path)
	if err != nil {
		return nil, err
	}
	trainer, err := solver.NewTrainer(absCfg, trainCfg)
	if err != nil {
		return nil, err
	}
	bp, err := solver.LoadBlueprint(path, trainer.SequenceTable(), trainer.Clusters())
	if err != nil {
		return nil, err
	}
	return &Policy{blueprint: bp, seq: trainer.SequenceTable(), clusters: trainer.Clusters()}, nil
}

// Blueprint returns the underlying blueprint metadata (read-only).
func (p *Policy) Blueprint() *solver.Blueprint {
	if p == nil {
		return nil
	}
	return p.blueprint
}

// SequenceTable returns the abstracted game tree the policy is addressed
// against, so a caller can walk its own live node through the same
// abstraction the policy was trained under.
func (p *Policy) SequenceTable() *abstraction.SequenceTable {
	if p == nil {
		return nil
	}
	return p.seq
}

// Clusters returns the card-abstraction lookup the policy is addressed
// against.
func (p *Policy) Clusters() abstraction.ClusterCapability {
	if p == nil {
		return nil
	}
	return p.clusters
}

// ClusterOf returns the abstraction cluster for every seat at n's current
// street, the index ActionWeights expects for whichever seat is acting.
func (p *Policy) ClusterOf(n *game.Node) ([]uint32, error) {
	if p == nil || p.clusters == nil {
		return nil, errors.New("runtime: nil policy")
	}
	return p.clusters.ClusterArray(n), nil
}

// ActionWeights returns the averaged probability distribution over
// actions(round) at the given cluster and abstracted sequence state. The
// result always sums to 1 over the legal columns, even for a state the
// training run happened never to visit, since Average.Policy falls back to
// uniform over legal actions for an all-zero row.
func (p *Policy) ActionWeights(round game.Round, cluster, seqID uint32) ([]float64, error) {
	if p == nil || p.blueprint == nil {
		return nil, errors.New("runtime: nil policy")
	}
	return p.blueprint.Average().Policy(round, cluster, seqID), nil
}

// SampleAction draws an action index from ActionWeights(round, cluster, seqID)
// using x, a uniform draw in [0, 1) supplied by the caller's own RNG.
func (p *Policy) SampleAction(round game.Round, cluster, seqID uint32, x float64) (int, error) {
	weights, err := p.ActionWeights(round, cluster, seqID)
	if err != nil {
		return 0, err
	}
	return solver.Sample(weights, x), nil
}
