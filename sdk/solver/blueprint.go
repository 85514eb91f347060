package solver

import (
	"fmt"
	"time"

	"github.com/lox/holdem-solver/internal/game"
	"github.com/lox/holdem-solver/sdk/solver/abstraction"
)

const blueprintFileVersion = 2

// blueprintMeta is the small human-readable JSON sidecar a blueprint writes
// next to its gob-encoded tensor payload (path + ".json"): enough to
// validate compatibility and rebuild the SequenceTable/ClusterCapability the
// payload is shaped by, without ever needing to deserialise the
// (potentially large) averaged-policy tensors just to inspect metadata.
type blueprintMeta struct {
	Version     int               `json:"version"`
	GeneratedAt time.Time         `json:"generated_at"`
	Iterations  int64             `json:"iterations"`
	Training    TrainingConfig    `json:"training"`
	Abstraction AbstractionConfig `json:"abstraction"`
}

// Blueprint is a trained Average policy together with the metadata needed
// to address it.
type Blueprint struct {
	meta    blueprintMeta
	average *Average
}

// NewBlueprint snapshots a Trainer's current average policy into a Blueprint
// ready to Save.
func NewBlueprint(t *Trainer) *Blueprint {
	return &Blueprint{
		meta: blueprintMeta{
			Version:     blueprintFileVersion,
			GeneratedAt: time.Now().UTC(),
			Iterations:  t.Iteration(),
			Training:    t.trainCfg,
			Abstraction: t.absCfg,
		},
		average: t.average,
	}
}

// Average returns the blueprint's averaged policy.
func (b *Blueprint) Average() *Average { return b.average }

// AbstractionConfig returns the abstraction the blueprint's tensors are
// shaped by.
func (b *Blueprint) AbstractionConfig() AbstractionConfig { return b.meta.Abstraction }

// TrainingConfig returns the training configuration that produced this
// blueprint (player count, blinds and stack size the GameConfig it was
// trained against describes).
func (b *Blueprint) TrainingConfig() TrainingConfig { return b.meta.Training }

// Iterations reports how many training iterations produced this blueprint.
func (b *Blueprint) Iterations() int64 { return b.meta.Iterations }

// Save writes the blueprint as a JSON metadata sidecar (path + ".json") and
// the averaged-policy tensors gob-encoded to path itself, following the
// small-metadata/large-binary-archive split §6 calls for.
func (b *Blueprint) Save(path string) error {
	if err := writeJSONAtomic(path+".json", b.meta); err != nil {
		return err
	}
	return writeGobAtomic(path, b.average.data)
}

// PeekBlueprintConfig reads only a blueprint's JSON metadata sidecar,
// returning the abstraction and training configuration it was produced
// with. Callers use this to rebuild a matching SequenceTable/
// ClusterCapability (typically via NewTrainer) before calling LoadBlueprint
// itself, without first paying the cost of decoding the tensor payload.
func PeekBlueprintConfig(path string) (AbstractionConfig, TrainingConfig, error) {
	var meta blueprintMeta
	if err := readJSON(path+".json", &meta); err != nil {
		return AbstractionConfig{}, TrainingConfig{}, err
	}
	return meta.Abstraction, meta.Training, nil
}

// LoadBlueprint reads a blueprint written by Save. seq and clusters must be
// built from the same abstraction/cluster configuration the blueprint was
// trained with (typically by calling NewTrainer with the loaded metadata's
// Abstraction/Training and taking its SequenceTable()/Clusters()) before the
// decoded tensors can be addressed meaningfully; LoadBlueprint itself only
// checks that their shapes agree with what the file actually contains.
func LoadBlueprint(path string, seq *abstraction.SequenceTable, clusters abstraction.ClusterCapability) (*Blueprint, error) {
	var meta blueprintMeta
	if err := readJSON(path+".json", &meta); err != nil {
		return nil, err
	}
	if meta.Version != blueprintFileVersion {
		return nil, &game.Error{Kind: game.DeserializationError, Msg: fmt.Sprintf("blueprint %q: unsupported version %d (want %d)", path, meta.Version, blueprintFileVersion)}
	}

	average := NewAverage(seq, clusters)
	if err := readGob(path, &average.data); err != nil {
		return nil, err
	}
	for round := game.Preflop; round <= game.River; round++ {
		want := len(average.data[round])
		got := uint64(clusters.NumClusters(round)) * uint64(average.states[round]) * uint64(average.width[round])
		if uint64(want) != got {
			return nil, &game.Error{Kind: game.DeserializationError, Msg: fmt.Sprintf("blueprint %q: %s tensor has %d entries, abstraction expects %d", path, round, want, got)}
		}
	}
	average.normalized = false
	return &Blueprint{meta: meta, average: average}, nil
}
