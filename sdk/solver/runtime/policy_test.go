package runtime

import (
	"path/filepath"
	"testing"

	"github.com/lox/holdem-solver/internal/game"
	"github.com/lox/holdem-solver/sdk/solver"
)

func TestPolicyActionWeightsErrors(t *testing.T) {
	var p *Policy
	if _, err := p.ActionWeights(game.Preflop, 0, 0); err == nil {
		t.Fatalf("expected error for nil policy")
	}

	p = &Policy{}
	if _, err := p.ActionWeights(game.Preflop, 0, 0); err == nil {
		t.Fatalf("expected error for policy with nil blueprint")
	}
}

func TestLoadRoundTripsActionWeights(t *testing.T) {
	absCfg := solver.DefaultAbstraction()
	trainCfg := solver.DefaultTrainingConfig()
	trainCfg.Players = 2
	trainCfg.Iterations = 1

	trainer, err := solver.NewTrainer(absCfg, trainCfg)
	if err != nil {
		t.Fatalf("new trainer: %v", err)
	}

	// Seed the average tensor with one snapshot of the (uniform, freshly
	// allocated) strategy so Save has something non-degenerate to persist.
	trainer.Average().AddAssign(trainer.Strategy())

	path := filepath.Join(t.TempDir(), "blueprint.bin")
	if err := solver.NewBlueprint(trainer).Save(path); err != nil {
		t.Fatalf("save blueprint: %v", err)
	}

	policy, err := Load(path)
	if err != nil {
		t.Fatalf("load policy: %v", err)
	}

	weights, err := policy.ActionWeights(game.Preflop, 0, 0)
	if err != nil {
		t.Fatalf("action weights: %v", err)
	}
	if len(weights) == 0 {
		t.Fatalf("expected at least one action weight")
	}
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if diff(sum, 1.0) > 1e-6 {
		t.Fatalf("expected weights to sum to 1, got %v", sum)
	}

	if _, err := policy.SampleAction(game.Preflop, 0, 0, 0.0); err != nil {
		t.Fatalf("sample action: %v", err)
	}
}

func diff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
