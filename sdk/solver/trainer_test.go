package solver_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lox/holdem-solver/internal/game"
	"github.com/lox/holdem-solver/sdk/solver"
	solverRuntime "github.com/lox/holdem-solver/sdk/solver/runtime"
)

func smallTrainingConfig() solver.TrainingConfig {
	cfg := solver.DefaultTrainingConfig()
	cfg.Players = 2
	cfg.Workers = 1
	cfg.Iterations = 4
	cfg.Seed = 123
	cfg.SmallBlind = 1
	cfg.BigBlind = 2
	cfg.StartingStack = 6
	cfg.StrategyInterval = 2
	cfg.DiscountIntervalMi = 0
	cfg.SnapshotIntervalMi = 0
	return cfg
}

func TestTrainerRunReachesConfiguredIterations(t *testing.T) {
	abs := solver.DefaultAbstraction()
	cfg := smallTrainingConfig()

	trainer, err := solver.NewTrainer(abs, cfg)
	if err != nil {
		t.Fatalf("new trainer: %v", err)
	}
	if err := trainer.Run(context.Background(), nil); err != nil {
		t.Fatalf("run training: %v", err)
	}

	if got, want := trainer.Iteration(), int64(cfg.Iterations); got != want {
		t.Fatalf("Iteration() = %d, want %d", got, want)
	}
	stats := trainer.Stats()
	if stats.NodesVisited == 0 || stats.TerminalNodes == 0 {
		t.Fatalf("expected non-zero traversal stats, got %+v", stats)
	}
}

func TestTrainerRunDeterministic(t *testing.T) {
	abs := solver.DefaultAbstraction()
	cfg := smallTrainingConfig()

	trainerA, err := solver.NewTrainer(abs, cfg)
	if err != nil {
		t.Fatalf("new trainer A: %v", err)
	}
	if err := trainerA.Run(context.Background(), nil); err != nil {
		t.Fatalf("trainer A run: %v", err)
	}
	statsA := trainerA.Stats()

	trainerB, err := solver.NewTrainer(abs, cfg)
	if err != nil {
		t.Fatalf("new trainer B: %v", err)
	}
	if err := trainerB.Run(context.Background(), nil); err != nil {
		t.Fatalf("trainer B run: %v", err)
	}
	statsB := trainerB.Stats()

	statsA.IterationTime = 0
	statsB.IterationTime = 0
	if statsA != statsB {
		t.Fatalf("expected deterministic stats, got %+v vs %+v", statsA, statsB)
	}
}

func TestTrainerCheckpointRoundTrip(t *testing.T) {
	abs := solver.DefaultAbstraction()
	cfg := smallTrainingConfig()

	trainer, err := solver.NewTrainer(abs, cfg)
	if err != nil {
		t.Fatalf("new trainer: %v", err)
	}
	if err := trainer.Run(context.Background(), nil); err != nil {
		t.Fatalf("trainer run: %v", err)
	}

	ckpt := filepath.Join(t.TempDir(), "trainer.ckpt")
	if err := trainer.SaveCheckpoint(ckpt); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}

	resumed, err := solver.LoadTrainerFromCheckpoint(ckpt)
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	if resumed.Iteration() != trainer.Iteration() {
		t.Fatalf("iteration mismatch resume=%d original=%d", resumed.Iteration(), trainer.Iteration())
	}

	resumedPolicy := resumed.Strategy().Policy(game.Preflop, 0, 0)
	originalPolicy := trainer.Strategy().Policy(game.Preflop, 0, 0)
	if len(resumedPolicy) != len(originalPolicy) {
		t.Fatalf("resumed policy width = %d, want %d", len(resumedPolicy), len(originalPolicy))
	}
	for a := range originalPolicy {
		if diffFloatTest(resumedPolicy[a], originalPolicy[a]) > 1e-9 {
			t.Fatalf("resumed policy[%d] = %v, want %v", a, resumedPolicy[a], originalPolicy[a])
		}
	}
}

func TestTrainerBlueprintFeedsRuntimePolicy(t *testing.T) {
	abs := solver.DefaultAbstraction()
	cfg := smallTrainingConfig()

	trainer, err := solver.NewTrainer(abs, cfg)
	if err != nil {
		t.Fatalf("new trainer: %v", err)
	}
	if err := trainer.Run(context.Background(), nil); err != nil {
		t.Fatalf("trainer run: %v", err)
	}
	trainer.Average().AddAssign(trainer.Strategy())
	trainer.Average().Normalize()

	path := filepath.Join(t.TempDir(), "blueprint.bin")
	if err := solver.NewBlueprint(trainer).Save(path); err != nil {
		t.Fatalf("save blueprint: %v", err)
	}

	policy, err := solverRuntime.Load(path)
	if err != nil {
		t.Fatalf("load runtime policy: %v", err)
	}
	weights, err := policy.ActionWeights(game.Preflop, 0, 0)
	if err != nil {
		t.Fatalf("action weights: %v", err)
	}
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if diffFloatTest(sum, 1.0) > 1e-6 {
		t.Fatalf("expected action weights to sum to 1, got %v", sum)
	}
}

func diffFloatTest(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
