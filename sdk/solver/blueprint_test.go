package solver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lox/holdem-solver/internal/game"
)

func newTestTrainer(t *testing.T) *Trainer {
	t.Helper()
	absCfg := DefaultAbstraction()
	trainCfg := DefaultTrainingConfig()
	trainCfg.Players = 2
	trainCfg.Iterations = 1
	trainer, err := NewTrainer(absCfg, trainCfg)
	if err != nil {
		t.Fatalf("new trainer: %v", err)
	}
	return trainer
}

func TestBlueprintSaveLoadRoundTrip(t *testing.T) {
	trainer := newTestTrainer(t)
	trainer.Average().AddAssign(trainer.Strategy())

	path := filepath.Join(t.TempDir(), "blueprint.bin")
	bp := NewBlueprint(trainer)
	if err := bp.Save(path); err != nil {
		t.Fatalf("save blueprint: %v", err)
	}

	absCfg, trainCfg, err := PeekBlueprintConfig(path)
	if err != nil {
		t.Fatalf("peek blueprint config: %v", err)
	}
	if trainCfg.Players != 2 {
		t.Errorf("peeked players = %d, want 2", trainCfg.Players)
	}

	loadedTrainer, err := NewTrainer(absCfg, trainCfg)
	if err != nil {
		t.Fatalf("new trainer from peeked config: %v", err)
	}

	loaded, err := LoadBlueprint(path, loadedTrainer.SequenceTable(), loadedTrainer.Clusters())
	if err != nil {
		t.Fatalf("load blueprint: %v", err)
	}
	if loaded.Iterations() != bp.Iterations() {
		t.Errorf("loaded iterations = %d, want %d", loaded.Iterations(), bp.Iterations())
	}

	policy := loaded.Average().Policy(game.Preflop, 0, 0)
	if len(policy) == 0 {
		t.Fatalf("expected a non-empty preflop policy")
	}
}

func TestLoadBlueprintRejectsVersionMismatch(t *testing.T) {
	trainer := newTestTrainer(t)
	path := filepath.Join(t.TempDir(), "version-mismatch.bin")

	bp := NewBlueprint(trainer)
	bp.meta.Version = blueprintFileVersion + 1
	if err := bp.Save(path); err != nil {
		t.Fatalf("save blueprint: %v", err)
	}

	if _, _, err := PeekBlueprintConfig(path); err != nil {
		t.Fatalf("peek blueprint config: %v", err)
	}
	if _, err := LoadBlueprint(path, trainer.SequenceTable(), trainer.Clusters()); err == nil {
		t.Fatalf("expected version mismatch to fail")
	}
}

func TestLoadBlueprintRejectsShapeMismatch(t *testing.T) {
	trainer := newTestTrainer(t)
	path := filepath.Join(t.TempDir(), "shape-mismatch.bin")
	if err := NewBlueprint(trainer).Save(path); err != nil {
		t.Fatalf("save blueprint: %v", err)
	}

	otherCfg := DefaultAbstraction()
	otherCfg.ClusterMod = 7
	otherTrainCfg := DefaultTrainingConfig()
	otherTrainer, err := NewTrainer(otherCfg, otherTrainCfg)
	if err != nil {
		t.Fatalf("new trainer with mismatched abstraction: %v", err)
	}

	if _, err := LoadBlueprint(path, otherTrainer.SequenceTable(), otherTrainer.Clusters()); err == nil {
		t.Fatalf("expected shape mismatch to fail")
	}
}

func TestLoadBlueprintRejectsCorruptedFile(t *testing.T) {
	trainer := newTestTrainer(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupted.bin")

	if err := os.WriteFile(path+".json", []byte("{not-json"), 0o644); err != nil {
		t.Fatalf("write corrupted file: %v", err)
	}

	if _, err := LoadBlueprint(path, trainer.SequenceTable(), trainer.Clusters()); err == nil {
		t.Fatalf("expected corrupted blueprint to fail")
	}
}
