package solver

import (
	"fmt"
	"time"

	"github.com/lox/holdem-solver/internal/game"
)

const checkpointFileVersion = 2

// checkpointMeta is the JSON sidecar (path + ".json") describing a
// checkpoint: enough to reconstruct a Trainer with matching tensor shapes
// via NewTrainer before the gob-encoded payload is decoded into it.
type checkpointMeta struct {
	Version     int               `json:"version"`
	SavedAt     time.Time         `json:"saved_at"`
	Iteration   int64             `json:"iteration"`
	RNGSeed     int64             `json:"rng_seed"`
	Training    TrainingConfig    `json:"training"`
	Abstraction AbstractionConfig `json:"abstraction"`
}

// checkpointPayload bundles the trainer's three mutable tensors, gob-encoded
// to path itself. Keeping them in one payload (rather than three separate
// archives) means a checkpoint is restored from exactly one rename-atomic
// file pair, never a half-written mix of old and new tensors.
type checkpointPayload struct {
	Regret  [4][]int32
	Counts  []uint32
	Average [4][]float64
}

// SaveCheckpoint writes a full snapshot of the trainer's tensors and
// progress to path (metadata at path+".json", tensors at path). It does not
// itself take t.quiesce; callers such as the scheduler hold that lock around
// the call while training workers may be running, since a worker
// genuinely running an iteration concurrently with the gob encode below
// would race the very slices being copied.
func (t *Trainer) SaveCheckpoint(path string) error {
	meta := checkpointMeta{
		Version:     checkpointFileVersion,
		SavedAt:     t.clock.Now(),
		Iteration:   t.iteration.Load(),
		RNGSeed:     t.rngSeed,
		Training:    t.trainCfg,
		Abstraction: t.absCfg,
	}
	payload := checkpointPayload{
		Regret:  t.strategy.Regret.data,
		Counts:  t.strategy.Counts.data,
		Average: t.average.data,
	}
	if err := writeJSONAtomic(path+".json", meta); err != nil {
		return err
	}
	return writeGobAtomic(path, payload)
}

// LoadTrainerFromCheckpoint reconstructs a Trainer from a checkpoint written
// by SaveCheckpoint. The trainer is rebuilt from the checkpoint's own
// Abstraction/Training config via NewTrainer, which guarantees the decoded
// tensors' shapes match what the fresh Regret/ActionCounts/Average
// allocations expect; a length mismatch is reported as a deserialisation
// error rather than risking an out-of-bounds tensor access later.
func LoadTrainerFromCheckpoint(path string) (*Trainer, error) {
	var meta checkpointMeta
	if err := readJSON(path+".json", &meta); err != nil {
		return nil, err
	}
	if meta.Version != checkpointFileVersion {
		return nil, &game.Error{Kind: game.DeserializationError, Msg: fmt.Sprintf("checkpoint %q: unsupported version %d (want %d)", path, meta.Version, checkpointFileVersion)}
	}

	trainer, err := NewTrainer(meta.Abstraction, meta.Training)
	if err != nil {
		return nil, err
	}

	var payload checkpointPayload
	if err := readGob(path, &payload); err != nil {
		return nil, err
	}
	for round := game.Preflop; round <= game.River; round++ {
		if len(payload.Regret[round]) != len(trainer.strategy.Regret.data[round]) {
			return nil, &game.Error{Kind: game.DeserializationError, Msg: fmt.Sprintf("checkpoint %q: %s regret tensor has %d entries, abstraction expects %d", path, round, len(payload.Regret[round]), len(trainer.strategy.Regret.data[round]))}
		}
		if len(payload.Average[round]) != len(trainer.average.data[round]) {
			return nil, &game.Error{Kind: game.DeserializationError, Msg: fmt.Sprintf("checkpoint %q: %s average tensor has %d entries, abstraction expects %d", path, round, len(payload.Average[round]), len(trainer.average.data[round]))}
		}
	}
	if len(payload.Counts) != len(trainer.strategy.Counts.data) {
		return nil, &game.Error{Kind: game.DeserializationError, Msg: fmt.Sprintf("checkpoint %q: action-count tensor has %d entries, abstraction expects %d", path, len(payload.Counts), len(trainer.strategy.Counts.data))}
	}

	trainer.strategy.Regret.data = payload.Regret
	trainer.strategy.Counts.data = payload.Counts
	trainer.average.data = payload.Average
	trainer.iteration.Store(meta.Iteration)
	trainer.rngSeed = meta.RNGSeed
	return trainer, nil
}
