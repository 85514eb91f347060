package solver

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/holdem-solver/internal/game"
	"github.com/lox/holdem-solver/sdk/solver/abstraction"
)

// ActionConfig is one HCL `action` block describing a single entry in the
// fixed abstraction vector the SequenceTable is built from.
type ActionConfig struct {
	Name            string  `hcl:"name,label"`
	Play            string  `hcl:"play"`
	SizePotFraction float64 `hcl:"size_pot_fraction,optional"`
	MaxRaiseNumber  int     `hcl:"max_raise_number,optional"`
	MinRound        string  `hcl:"min_round,optional"`
	MaxRound        string  `hcl:"max_round,optional"`
	MaxPlayers      int     `hcl:"max_players,optional"`
	MinPot          int     `hcl:"min_pot,optional"`
}

// AbstractionConfig is the decoded `abstraction` HCL block: the action
// vector plus the bucket files a production run loads its ClusterTable
// from. Leaving the bucket paths empty falls back to a ModuloClusterTable
// test double, which is what Default/smoke runs use.
type AbstractionConfig struct {
	Actions      []ActionConfig `hcl:"action,block"`
	FlopBuckets  string         `hcl:"flop_buckets,optional"`
	TurnBuckets  string         `hcl:"turn_buckets,optional"`
	RiverBuckets string         `hcl:"river_buckets,optional"`
	ClusterMod   int            `hcl:"cluster_mod,optional"`
}

func parseRound(s string, fallback game.Round) (game.Round, error) {
	switch s {
	case "":
		return fallback, nil
	case "preflop":
		return game.Preflop, nil
	case "flop":
		return game.Flop, nil
	case "turn":
		return game.Turn, nil
	case "river":
		return game.River, nil
	default:
		return 0, fmt.Errorf("solver: unknown round %q", s)
	}
}

// AbstractActions converts the decoded HCL blocks into the []AbstractAction
// vector abstraction.NewSequenceTable expects.
func (c AbstractionConfig) AbstractActions() ([]abstraction.AbstractAction, error) {
	out := make([]abstraction.AbstractAction, 0, len(c.Actions))
	for _, a := range c.Actions {
		minRound, err := parseRound(a.MinRound, game.Preflop)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", a.Name, err)
		}
		maxRound, err := parseRound(a.MaxRound, game.River)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", a.Name, err)
		}
		var play abstraction.Play
		switch a.Play {
		case "fold":
			play = abstraction.Fold
		case "checkcall":
			play = abstraction.CheckCall
		case "bet":
			play = abstraction.Bet
		case "allin":
			play = abstraction.AllIn
		default:
			return nil, fmt.Errorf("action %q: unknown play %q", a.Name, a.Play)
		}
		maxRaises := a.MaxRaiseNumber
		if play == abstraction.Bet && maxRaises == 0 {
			maxRaises = 1
		}
		out = append(out, abstraction.AbstractAction{
			Play:              play,
			SizeAsPotFraction: a.SizePotFraction,
			MaxRaiseNumber:    maxRaises,
			MinRound:          minRound,
			MaxRound:          maxRound,
			MaxPlayers:        a.MaxPlayers,
			MinPot:            uint32(a.MinPot),
		})
	}
	return out, nil
}

// Validate checks that the abstraction config names a usable action vector.
func (c AbstractionConfig) Validate() error {
	if len(c.Actions) == 0 {
		return fmt.Errorf("solver: abstraction must define at least one action")
	}
	hasFold, hasCheckCall := false, false
	for _, a := range c.Actions {
		switch a.Play {
		case "fold":
			hasFold = true
		case "checkcall":
			hasCheckCall = true
		}
	}
	if !hasFold || !hasCheckCall {
		return fmt.Errorf("solver: abstraction must include both fold and checkcall actions")
	}
	return nil
}

// DefaultAbstraction returns the reference five-action vector from the
// specification's scenario (e): fold, all-in, check/call, a turn-only 2x-pot
// raise capped at heads-up and one raise, and a quarter-pot bet available
// from flop through river once the pot reaches 10000 chips.
func DefaultAbstraction() AbstractionConfig {
	return AbstractionConfig{
		Actions: []ActionConfig{
			{Name: "fold", Play: "fold", MinRound: "preflop", MaxRound: "river"},
			{Name: "allin", Play: "allin", MinRound: "preflop", MaxRound: "river"},
			{Name: "checkcall", Play: "checkcall", MinRound: "preflop", MaxRound: "river"},
			{Name: "turn_overbet", Play: "bet", SizePotFraction: 2.0, MaxRaiseNumber: 1, MaxPlayers: 2, MinRound: "turn", MaxRound: "turn"},
			{Name: "quarter_pot", Play: "bet", SizePotFraction: 0.25, MaxRaiseNumber: 4, MinPot: 10000, MinRound: "flop", MaxRound: "river"},
		},
		ClusterMod: 50,
	}
}

// SamplingMode selects the MCCFR sampling scheme; external sampling (§4.5)
// is the only scheme the traversal implements, but the CLI still names it
// explicitly so config files are self-documenting.
type SamplingMode int

const (
	SamplingModeExternal SamplingMode = iota
)

func (m SamplingMode) String() string {
	switch m {
	case SamplingModeExternal:
		return "external"
	default:
		return "unknown"
	}
}

// TrainingConfig is the decoded `training` HCL block: the hyperparameters
// §6 lists as compile-time/static-config constants (kPlayers, kActions,
// kPruneConstant, kRegretFloor, kPruneThreshold, kStrategyDelay,
// kLCFRThreshold, kDiscountInterval, kSnapshotInterval, kStrategyInterval,
// kBattleMeans, kBattleTrials, kTrainingTime, kSaveDir).
type TrainingConfig struct {
	Players            int     `hcl:"players,optional"`
	SmallBlind         int     `hcl:"small_blind,optional"`
	BigBlind           int     `hcl:"big_blind,optional"`
	StartingStack      int     `hcl:"starting_stack,optional"`
	Seed               int64   `hcl:"seed,optional"`
	Workers            int     `hcl:"workers,optional"`
	Iterations         int     `hcl:"iterations,optional"`
	TrainingMinutes    int     `hcl:"training_minutes,optional"`
	StrategyInterval   int     `hcl:"strategy_interval,optional"`
	PruneThresholdMin  int     `hcl:"prune_threshold_minutes,optional"`
	PruneProbability   float64 `hcl:"prune_probability,optional"`
	PruneConstant      int     `hcl:"prune_constant,optional"`
	RegretFloor        int     `hcl:"regret_floor,optional"`
	LCFRThresholdMin   int     `hcl:"lcfr_threshold_minutes,optional"`
	DiscountIntervalMi int     `hcl:"discount_interval_minutes,optional"`
	SnapshotIntervalMi int     `hcl:"snapshot_interval_minutes,optional"`
	BattleMeans        int     `hcl:"battle_means,optional"`
	BattleTrials       int     `hcl:"battle_trials,optional"`
	SaveDir            string  `hcl:"save_dir,optional"`
	ProgressEvery      int     `hcl:"progress_every,optional"`
}

// TrainingTime returns the configured training budget as a Duration.
func (c TrainingConfig) TrainingTime() time.Duration {
	return time.Duration(c.TrainingMinutes) * time.Minute
}

// PruneThreshold returns kPruneThreshold as a Duration.
func (c TrainingConfig) PruneThreshold() time.Duration {
	return time.Duration(c.PruneThresholdMin) * time.Minute
}

// LCFRThreshold returns kLCFRThreshold as a Duration.
func (c TrainingConfig) LCFRThreshold() time.Duration {
	return time.Duration(c.LCFRThresholdMin) * time.Minute
}

// DiscountInterval returns kDiscountInterval as a Duration.
func (c TrainingConfig) DiscountInterval() time.Duration {
	return time.Duration(c.DiscountIntervalMi) * time.Minute
}

// SnapshotInterval returns kSnapshotInterval as a Duration.
func (c TrainingConfig) SnapshotInterval() time.Duration {
	return time.Duration(c.SnapshotIntervalMi) * time.Minute
}

// Validate checks that the training config describes a playable game.
func (c TrainingConfig) Validate() error {
	if c.Players < 2 {
		return fmt.Errorf("solver: players must be >= 2, got %d", c.Players)
	}
	if c.SmallBlind <= 0 || c.BigBlind <= 0 || c.SmallBlind >= c.BigBlind {
		return fmt.Errorf("solver: invalid blinds %d/%d", c.SmallBlind, c.BigBlind)
	}
	if c.StartingStack <= 0 {
		return fmt.Errorf("solver: starting stack must be positive, got %d", c.StartingStack)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("solver: workers must be positive, got %d", c.Workers)
	}
	return nil
}

// DefaultTrainingConfig mirrors the original source's default 50/100 game
// with 100bb stacks and the Pluribus-style phase schedule named in §6.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Players:            2,
		SmallBlind:         50,
		BigBlind:           100,
		StartingStack:      10000,
		Workers:            4,
		StrategyInterval:   10000,
		PruneThresholdMin:  200,
		PruneProbability:   0.95,
		PruneConstant:      -300000000,
		RegretFloor:        -310000000,
		LCFRThresholdMin:   400,
		DiscountIntervalMi: 10,
		SnapshotIntervalMi: 60,
		BattleMeans:        10,
		BattleTrials:       1000,
		SaveDir:            "./blueprints",
		ProgressEvery:      1000,
	}
}

// GameConfig translates the training parameters into the internal/game Node
// configuration C1 consumes.
func (c TrainingConfig) GameConfig() game.Config {
	cfg := game.DefaultConfig(c.Players)
	cfg.SmallBlind = uint32(c.SmallBlind)
	cfg.BigBlind = uint32(c.BigBlind)
	cfg.DefaultStack = uint32(c.StartingStack)
	return cfg
}

// SolverConfig is the top-level HCL document: one `training` block and one
// `abstraction` block, following the same labelled-block-of-settings shape
// the original source's server configuration uses.
type SolverConfig struct {
	Training    TrainingConfig    `hcl:"training,block"`
	Abstraction AbstractionConfig `hcl:"abstraction,block"`
}

// DefaultSolverConfig bundles the package defaults for both halves.
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{Training: DefaultTrainingConfig(), Abstraction: DefaultAbstraction()}
}

// LoadSolverConfig loads a solver configuration from an HCL file, falling
// back to DefaultSolverConfig when the file does not exist.
func LoadSolverConfig(filename string) (SolverConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultSolverConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return SolverConfig{}, fmt.Errorf("solver: parse HCL file: %s", diags.Error())
	}

	cfg := DefaultSolverConfig()
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return SolverConfig{}, fmt.Errorf("solver: decode HCL: %s", diags.Error())
	}
	if cfg.Training.Players == 0 {
		cfg.Training = DefaultTrainingConfig()
	}
	if len(cfg.Abstraction.Actions) == 0 {
		cfg.Abstraction = DefaultAbstraction()
	}
	return cfg, nil
}
