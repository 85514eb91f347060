package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime/pprof"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	charmlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lox/holdem-solver/internal/watchtui"
	"github.com/lox/holdem-solver/sdk/solver"
	"github.com/lox/holdem-solver/sdk/solver/bucketing"
	"github.com/lox/holdem-solver/sdk/solver/watch"
)

var cli struct {
	Debug bool `help:"enable debug logging"`

	Train  TrainCmd  `cmd:"" help:"run MCCFR training and emit a blueprint"`
	Eval   EvalCmd   `cmd:"" help:"battle-evaluate two blueprints against each other"`
	Bucket BucketCmd `cmd:"" help:"generate heuristic flop/turn/river cluster files"`
	Bench  BenchCmd  `cmd:"" help:"run a short timed training loop and report throughput"`
}

// TrainCmd mirrors the abstraction/training hyperparameters §6 documents as
// the reference defaults, each overridable from the command line.
type TrainCmd struct {
	Config          string `help:"HCL config file (training+abstraction blocks); falls back to built-in defaults"`
	AbstractionYAML string `help:"YAML action-abstraction file overriding Config's action list (see sdk/solver/abstraction_config.yaml)"`
	Out             string `help:"path to write the trained blueprint" required:""`

	Players          int    `help:"number of players in self-play"`
	SmallBlind       int    `help:"small blind size"`
	BigBlind         int    `help:"big blind size"`
	Stack            int    `help:"starting stack size"`
	Seed             int64  `help:"random seed; 0 keeps the config/default seed"`
	Workers          int    `help:"number of concurrent traversal goroutines"`
	Iterations       int    `help:"number of MCCFR iterations (0 keeps training until TrainingMinutes elapses)"`
	TrainingMinutes  int    `help:"wall-clock training budget in minutes (0 disables)"`
	PruneThreshold   int    `help:"minutes before negative-regret pruning is eligible"`
	StrategyInterval int    `help:"iterations between preflop strategy-update passes"`
	LCFRThreshold    int    `help:"minutes after which linear-CFR discounting stops"`
	DiscountInterval int    `help:"minutes between discount passes"`
	SnapshotInterval int    `help:"minutes between average-policy snapshots"`
	ProgressEvery    int    `help:"log progress every N iterations"`
	CheckpointPath   string `help:"path to write periodic checkpoints (empty disables)"`
	CheckpointMins   int    `help:"checkpoint interval in minutes" default:"10"`
	ResumeFrom       string `help:"resume training from a checkpoint file"`
	CPUProfile       string `help:"write a CPU profile to this path"`

	Watch  bool   `help:"show a live progress TUI instead of logging progress lines"`
	Listen string `help:"address to serve a websocket Progress stream on for cmd/solver-watch (empty disables)"`
}

// EvalCmd plays a blueprint against another (or itself) via self-play and
// reports the mean chip differential per batch, per §4.6's BattleStats.
type EvalCmd struct {
	Blueprint string `help:"path to the blueprint under evaluation" required:""`
	Opponent  string `help:"path to the opposing blueprint (defaults to Blueprint, i.e. self-play)"`
	Means     int    `help:"number of batches to report" default:"10"`
	Trials    int    `help:"hands per batch" default:"1000"`
	Seed      int64  `help:"random seed" default:"1"`
}

// BucketCmd generates the heuristic flop/turn/river cluster files, the same
// logic cmd/bucketgen runs standalone, exposed here so a single binary can
// both bucket and train.
type BucketCmd struct {
	OutDir   string `help:"directory to write flop_clusters.bin/turn_clusters.bin/river_clusters.bin" required:""`
	Clusters int    `help:"target number of distinct cluster ids per round" default:"200"`
}

// BenchCmd runs a short, timed training loop with no checkpointing or
// persistence and reports iteration/node throughput, a quick sanity check
// before committing to a full run.
type BenchCmd struct {
	Config   string `help:"HCL config file (training+abstraction blocks); falls back to built-in defaults"`
	Duration int    `help:"benchmark duration in seconds" default:"10"`
	Workers  int    `help:"override worker count"`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("solver"),
		kong.Description("holdem-solver MCCFR training and evaluation"),
		kong.UsageOnError(),
	)

	setupLogger(cli.Debug)

	var err error
	switch ctx.Command() {
	case "train":
		err = cli.Train.Run(context.Background())
	case "eval":
		err = cli.Eval.Run(context.Background())
	case "bucket":
		err = cli.Bucket.Run(context.Background())
	case "bench":
		err = cli.Bench.Run(context.Background())
	default:
		log.Fatal().Msgf("unknown command: %s", ctx.Command())
	}
	if err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func setupLogger(debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
}

func (cmd *TrainCmd) Run(ctx context.Context) error {
	if cmd.CPUProfile != "" {
		f, err := os.Create(cmd.CPUProfile)
		if err != nil {
			return fmt.Errorf("create cpu profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("start cpu profile: %w", err)
		}
		defer pprof.StopCPUProfile()
		log.Info().Str("path", cmd.CPUProfile).Msg("CPU profiling enabled")
	}

	var (
		trainer          *solver.Trainer
		targetIterations int64
	)
	if cmd.ResumeFrom != "" {
		t, err := solver.LoadTrainerFromCheckpoint(cmd.ResumeFrom)
		if err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}
		trainer = t
		log.Info().Str("checkpoint", cmd.ResumeFrom).Int64("resume_iteration", trainer.Iteration()).Msg("resuming training run")
	} else {
		cfg, err := solver.LoadSolverConfig(cmd.Config)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cmd.AbstractionYAML != "" {
			actions, err := solver.LoadActionAbstractionYAML(cmd.AbstractionYAML)
			if err != nil {
				return fmt.Errorf("load yaml abstraction: %w", err)
			}
			cfg.Abstraction.Actions = actions
		}
		cmd.applyOverrides(&cfg.Training)
		targetIterations = int64(cfg.Training.Iterations)

		trainer, err = solver.NewTrainer(cfg.Abstraction, cfg.Training)
		if err != nil {
			return fmt.Errorf("new trainer: %w", err)
		}
		log.Info().
			Int("players", cfg.Training.Players).
			Int("iterations", cfg.Training.Iterations).
			Int("workers", cfg.Training.Workers).
			Msg("starting training run")
	}

	if cmd.CheckpointPath != "" {
		trainer.EnableCheckpoints(cmd.CheckpointPath, time.Duration(cmd.CheckpointMins)*time.Minute)
	}

	var broadcaster *watch.Broadcaster
	if cmd.Listen != "" {
		broadcastLogger := charmlog.New(os.Stderr)
		broadcastLogger.SetColorProfile(termenv.TrueColor)
		broadcaster = watch.NewBroadcaster(broadcastLogger)
		mux := http.NewServeMux()
		mux.HandleFunc("/progress", broadcaster.ServeHTTP)
		server := &http.Server{Addr: cmd.Listen, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("progress listener stopped")
			}
		}()
		log.Info().Str("addr", cmd.Listen).Msg("serving progress websocket for cmd/solver-watch")
	}

	var watchProgram *tea.Program
	if cmd.Watch {
		watchProgram = tea.NewProgram(watchtui.New(targetIterations))
	}

	start := time.Now()
	progress := func(p solver.Progress) {
		if broadcaster != nil {
			broadcaster.Publish(p)
		}
		if watchProgram != nil {
			watchProgram.Send(watchtui.ProgressMsg(p))
			return
		}
		log.Info().
			Int64("iteration", p.Iteration).
			Bool("strategy_update", p.StrategyUpdate).
			Bool("pruning", p.Pruning).
			Int64("nodes", p.Stats.NodesVisited).
			Int64("terminals", p.Stats.TerminalNodes).
			Int("max_depth", p.Stats.MaxDepth).
			Dur("iter_time", p.Stats.IterationTime).
			Msg("progress")
	}

	runErr := make(chan error, 1)
	go func() {
		err := trainer.Run(ctx, progress)
		if watchProgram != nil {
			watchProgram.Send(watchtui.DoneMsg{Err: err})
		}
		runErr <- err
	}()

	if watchProgram != nil {
		if _, err := watchProgram.Run(); err != nil {
			log.Error().Err(err).Msg("watch TUI exited with error")
		}
	}
	if err := <-runErr; err != nil {
		return fmt.Errorf("run training: %w", err)
	}

	duration := time.Since(start)
	log.Info().Dur("duration", duration).Int64("iterations", trainer.Iteration()).Msg("training completed")

	trainer.Average().Normalize()
	if err := solver.NewBlueprint(trainer).Save(cmd.Out); err != nil {
		return fmt.Errorf("save blueprint: %w", err)
	}
	log.Info().Str("path", cmd.Out).Msg("blueprint saved")
	return nil
}

func (cmd *TrainCmd) applyOverrides(train *solver.TrainingConfig) {
	if cmd.Players > 0 {
		train.Players = cmd.Players
	}
	if cmd.SmallBlind > 0 {
		train.SmallBlind = cmd.SmallBlind
	}
	if cmd.BigBlind > 0 {
		train.BigBlind = cmd.BigBlind
	}
	if cmd.Stack > 0 {
		train.StartingStack = cmd.Stack
	}
	if cmd.Seed != 0 {
		train.Seed = cmd.Seed
	}
	if cmd.Workers > 0 {
		train.Workers = cmd.Workers
	}
	if cmd.Iterations > 0 {
		train.Iterations = cmd.Iterations
	}
	if cmd.TrainingMinutes > 0 {
		train.TrainingMinutes = cmd.TrainingMinutes
	}
	if cmd.PruneThreshold > 0 {
		train.PruneThresholdMin = cmd.PruneThreshold
	}
	if cmd.StrategyInterval > 0 {
		train.StrategyInterval = cmd.StrategyInterval
	}
	if cmd.LCFRThreshold > 0 {
		train.LCFRThresholdMin = cmd.LCFRThreshold
	}
	if cmd.DiscountInterval > 0 {
		train.DiscountIntervalMi = cmd.DiscountInterval
	}
	if cmd.SnapshotInterval > 0 {
		train.SnapshotIntervalMi = cmd.SnapshotInterval
	}
	if cmd.ProgressEvery > 0 {
		train.ProgressEvery = cmd.ProgressEvery
	}
}

func (cmd *EvalCmd) Run(ctx context.Context) error {
	opponentPath := cmd.Opponent
	if opponentPath == "" {
		opponentPath = cmd.Blueprint
	}

	underTest, trainCfg, err := loadEvalBlueprint(cmd.Blueprint)
	if err != nil {
		return fmt.Errorf("load blueprint: %w", err)
	}
	opponent, _, err := loadEvalBlueprint(opponentPath)
	if err != nil {
		return fmt.Errorf("load opponent: %w", err)
	}

	log.Info().
		Str("blueprint", cmd.Blueprint).
		Str("opponent", opponentPath).
		Int64("iterations", underTest.Iterations()).
		Msg("blueprints loaded")

	rng := solver.NewFastRandV2(cmd.Seed)
	results := underTest.Average().BattleStats(opponent.Average(), trainCfg.GameConfig(), rng, cmd.Means, cmd.Trials)

	var total float64
	for i, r := range results {
		total += r
		log.Info().Int("batch", i).Float64("mean_chips", r).Msg("battle batch")
	}
	log.Info().Float64("overall_mean_chips", total/float64(len(results))).Msg("evaluation complete")
	return nil
}

func loadEvalBlueprint(path string) (*solver.Blueprint, solver.TrainingConfig, error) {
	absCfg, trainCfg, err := solver.PeekBlueprintConfig(path)
	if err != nil {
		return nil, solver.TrainingConfig{}, err
	}
	trainer, err := solver.NewTrainer(absCfg, trainCfg)
	if err != nil {
		return nil, solver.TrainingConfig{}, err
	}
	bp, err := solver.LoadBlueprint(path, trainer.SequenceTable(), trainer.Clusters())
	if err != nil {
		return nil, solver.TrainingConfig{}, err
	}
	return bp, trainCfg, nil
}

func (cmd *BucketCmd) Run(ctx context.Context) error {
	return bucketing.GenerateAll(cmd.OutDir, cmd.Clusters, func(r bucketing.Round, path string, entries int) {
		log.Info().Str("round", r.Round.String()).Int("entries", entries).Str("path", path).Msg("generating cluster file")
	})
}

func (cmd *BenchCmd) Run(ctx context.Context) error {
	cfg, err := solver.LoadSolverConfig(cmd.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Workers > 0 {
		cfg.Training.Workers = cmd.Workers
	}
	// A bench run is duration-bounded by the caller's context, not by the
	// iteration/minute budget a real training run would use.
	cfg.Training.TrainingMinutes = 0
	cfg.Training.Iterations = 0

	trainer, err := solver.NewTrainer(cfg.Abstraction, cfg.Training)
	if err != nil {
		return fmt.Errorf("new trainer: %w", err)
	}

	benchCtx, cancel := context.WithTimeout(ctx, time.Duration(cmd.Duration)*time.Second)
	defer cancel()

	var nodes, terminals int64
	progress := func(p solver.Progress) {
		nodes += p.Stats.NodesVisited
		terminals += p.Stats.TerminalNodes
	}

	start := time.Now()
	if err := trainer.Run(benchCtx, progress); err != nil {
		return fmt.Errorf("run bench: %w", err)
	}
	elapsed := time.Since(start)

	log.Info().
		Int64("iterations", trainer.Iteration()).
		Float64("iterations_per_sec", float64(trainer.Iteration())/elapsed.Seconds()).
		Int64("nodes_visited", nodes).
		Float64("nodes_per_sec", float64(nodes)/elapsed.Seconds()).
		Int64("terminal_nodes", terminals).
		Dur("elapsed", elapsed).
		Msg("bench complete")
	return nil
}
