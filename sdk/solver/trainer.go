package solver

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/lox/holdem-solver/internal/game"
	"github.com/lox/holdem-solver/sdk/solver/abstraction"
)

// TraversalStats captures instrumentation metrics for a single MCCFR iteration.
type TraversalStats struct {
	NodesVisited  int64
	TerminalNodes int64
	MaxDepth      int
	IterationTime time.Duration
}

// Progress contains metadata emitted during long-running solver operations.
type Progress struct {
	Iteration      int64
	StrategyUpdate bool
	Pruning        bool
	Stats          TraversalStats
}

// Trainer orchestrates external-sampling MCCFR training (§4.5, §5) over a
// fixed abstraction: a pool of worker goroutines repeatedly deals a fresh
// hand and traverses it for each player in turn, while a separate scheduler
// goroutine periodically discounts regrets under linear-CFR and snapshots the
// running average policy, pausing the workers with a RWMutex while it does.
type Trainer struct {
	absCfg   AbstractionConfig
	trainCfg TrainingConfig
	gameCfg  game.Config

	seq      *abstraction.SequenceTable
	clusters abstraction.ClusterCapability
	strategy *Strategy
	average  *Average

	clock   quartz.Clock
	started time.Time

	iteration    atomic.Int64
	discountStep int64
	quiesce      sync.RWMutex

	statsMu sync.Mutex
	stats   TraversalStats

	rngSeed int64

	checkpointPath  string
	checkpointEvery time.Duration
}

// NewTrainer validates absCfg/trainCfg, builds the SequenceTable the
// abstraction materialises, and allocates the Strategy/Average storage it is
// shaped by.
func NewTrainer(absCfg AbstractionConfig, trainCfg TrainingConfig) (*Trainer, error) {
	if err := absCfg.Validate(); err != nil {
		return nil, err
	}
	if err := trainCfg.Validate(); err != nil {
		return nil, err
	}

	actions, err := absCfg.AbstractActions()
	if err != nil {
		return nil, err
	}

	seed := trainCfg.Seed
	if seed == 0 {
		seed = 1
	}

	gameCfg := trainCfg.GameConfig()

	// Scratch root used only to discover the abstracted tree's shape; it is
	// never reused once the table is built, so its own RNG stream doesn't
	// need to agree with any worker's.
	root := game.NewNode(gameCfg, game.WithRNG(rand.New(rand.NewSource(seed))))
	if err := root.NewHand(0); err != nil {
		return nil, fmt.Errorf("solver: seeding sequence table root: %w", err)
	}

	seqTable := abstraction.NewSequenceTable(root, actions)
	clusters, err := loadClusters(absCfg)
	if err != nil {
		return nil, err
	}

	return &Trainer{
		absCfg:   absCfg,
		trainCfg: trainCfg,
		gameCfg:  gameCfg,
		seq:      seqTable,
		clusters: clusters,
		strategy: NewStrategy(seqTable, clusters, int32(trainCfg.RegretFloor)),
		average:  NewAverage(seqTable, clusters),
		clock:    quartz.NewReal(),
		rngSeed:  seed,
	}, nil
}

// loadClusters builds the ClusterCapability training runs against: the
// production ClusterTable when all three bucket files are configured,
// otherwise the ModuloClusterTable test double sized by ClusterMod, which is
// what smoke runs and Default configs use.
func loadClusters(cfg AbstractionConfig) (abstraction.ClusterCapability, error) {
	indexer := abstraction.CanonicalIndexer{}
	if cfg.FlopBuckets == "" || cfg.TurnBuckets == "" || cfg.RiverBuckets == "" {
		mod := uint32(cfg.ClusterMod)
		if mod == 0 {
			mod = 200
		}
		return abstraction.ModuloClusterTable{Indexer: indexer, Mod: mod}, nil
	}
	flop, err := loadBucketFile(cfg.FlopBuckets)
	if err != nil {
		return nil, err
	}
	turn, err := loadBucketFile(cfg.TurnBuckets)
	if err != nil {
		return nil, err
	}
	river, err := loadBucketFile(cfg.RiverBuckets)
	if err != nil {
		return nil, err
	}
	table, err := abstraction.NewClusterTable(indexer, flop, turn, river)
	if err != nil {
		return nil, fmt.Errorf("solver: %w", err)
	}
	return table, nil
}

// loadBucketFile decodes a gob-encoded []uint32 bucket array written by
// cmd/bucketgen.
func loadBucketFile(path string) ([]uint32, error) {
	var buckets []uint32
	if err := readGob(path, &buckets); err != nil {
		return nil, err
	}
	return buckets, nil
}

// SetClock overrides the trainer's wall clock, for deterministic tests of
// the discount/snapshot schedule.
func (t *Trainer) SetClock(c quartz.Clock) { t.clock = c }

// EnableCheckpoints arms periodic checkpoint saves to path, one every
// `every` of wall-clock time (none when every is not positive). A failed
// save is logged and tried again at the next interval.
func (t *Trainer) EnableCheckpoints(path string, every time.Duration) {
	t.checkpointPath = path
	t.checkpointEvery = every
}

// SequenceTable, Clusters, Strategy and Average expose the trainer's
// internals to the persistence and CLI layers.
func (t *Trainer) SequenceTable() *abstraction.SequenceTable { return t.seq }
func (t *Trainer) Clusters() abstraction.ClusterCapability   { return t.clusters }
func (t *Trainer) Strategy() *Strategy                       { return t.strategy }
func (t *Trainer) Average() *Average                         { return t.average }
func (t *Trainer) TrainingConfig() TrainingConfig            { return t.trainCfg }
func (t *Trainer) AbstractionConfig() AbstractionConfig      { return t.absCfg }
func (t *Trainer) Iteration() int64                          { return t.iteration.Load() }

// Stats returns the most recently recorded per-iteration traversal stats.
func (t *Trainer) Stats() TraversalStats {
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	return t.stats
}

func (t *Trainer) setStats(s TraversalStats) {
	t.statsMu.Lock()
	t.stats = s
	t.statsMu.Unlock()
}

// Run drives the worker pool and the discount/snapshot scheduler until ctx
// is cancelled, TrainingMinutes of wall-clock time elapse (if set), or
// Iterations total iterations complete (if set and TrainingMinutes is not).
// At least one of ctx, TrainingMinutes or Iterations must eventually stop
// the run; Run blocks until it does.
func (t *Trainer) Run(ctx context.Context, progress func(Progress)) error {
	t.started = t.clock.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(t.scheduler(ctx))
	for i := 0; i < t.trainCfg.Workers; i++ {
		id := i
		g.Go(t.worker(ctx, id, progress))
	}
	return g.Wait()
}

func (t *Trainer) done() bool {
	if budget := t.trainCfg.TrainingTime(); budget > 0 {
		return t.clock.Since(t.started) >= budget
	}
	if t.trainCfg.Iterations > 0 {
		return t.iteration.Load() >= int64(t.trainCfg.Iterations)
	}
	return false
}

func (t *Trainer) worker(ctx context.Context, id int, progress func(Progress)) func() error {
	return func() error {
		// Each worker burns rng draws at every decision of every traversed
		// hand, so the per-worker stream uses the PCG-based generator
		// instead of the default math/rand source.
		rng := NewFastRandV2(t.rngSeed + int64(id) + 1)
		for {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if t.done() {
				return nil
			}
			t.runIteration(rng, progress)
		}
	}
}

func (t *Trainer) newHand(rng *rand.Rand) *game.Node {
	n := game.NewNode(t.gameCfg, game.WithRNG(rng))
	_ = n.NewHand(0)
	n.Deal()
	return n
}

func (t *Trainer) shouldPrune(rng *rand.Rand) bool {
	threshold := t.trainCfg.PruneThreshold()
	if threshold <= 0 {
		return false
	}
	if t.clock.Since(t.started) < threshold {
		return false
	}
	return rng.Float64() < t.trainCfg.PruneProbability
}

// runIteration plays one MCCFR iteration: for every player, on
// strategy-update ticks it first runs the preflop strategy-update pass on a
// fresh deal, then always runs the full traversal on a separate fresh deal.
// The whole iteration holds a read-lock against the scheduler's discount and
// snapshot passes, which need every worker quiesced before they touch the
// shared tensors.
func (t *Trainer) runIteration(rng *rand.Rand, progress func(Progress)) {
	t.quiesce.RLock()
	defer t.quiesce.RUnlock()

	iter := t.iteration.Add(1)
	start := time.Now()
	prune := t.shouldPrune(rng)
	strategyTick := t.trainCfg.StrategyInterval > 0 && iter%int64(t.trainCfg.StrategyInterval) == 0

	var stats TraversalStats
	for p := 0; p < t.trainCfg.Players; p++ {
		if strategyTick {
			n := t.newHand(rng)
			clusters := t.clusters.ClusterArray(n)
			(&traverser{strategy: t.strategy, rng: rng}).updateStrategy(n, n.Round, 0, clusters, p)
		}

		n := t.newHand(rng)
		clusters := t.clusters.ClusterArray(n)
		tv := &traverser{
			strategy:      t.strategy,
			rng:           rng,
			prune:         prune,
			pruneConstant: int32(t.trainCfg.PruneConstant),
		}
		tv.traverse(n, n.Round, 0, clusters, p)

		stats.NodesVisited += tv.nodesVisited
		stats.TerminalNodes += tv.terminalNodes
		if tv.maxDepth > stats.MaxDepth {
			stats.MaxDepth = tv.maxDepth
		}
	}
	stats.IterationTime = time.Since(start)
	t.setStats(stats)

	if progress != nil && t.trainCfg.ProgressEvery > 0 && iter%int64(t.trainCfg.ProgressEvery) == 0 {
		progress(Progress{Iteration: iter, StrategyUpdate: strategyTick, Pruning: prune, Stats: stats})
	}
}

// scheduler drains a heartbeat ticker and fires the discount and snapshot
// passes once their respective intervals have elapsed, each under an
// exclusive lock so no worker is mid-iteration while the shared tensors are
// rewritten.
func (t *Trainer) scheduler(ctx context.Context) func() error {
	return func() error {
		discountEvery := t.trainCfg.DiscountInterval()
		snapshotEvery := t.trainCfg.SnapshotInterval()
		checkpointEvery := t.checkpointEvery
		if t.checkpointPath == "" {
			checkpointEvery = 0
		}
		if discountEvery <= 0 && snapshotEvery <= 0 && checkpointEvery <= 0 {
			return nil
		}

		now := t.clock.Now()
		discountDue, snapshotDue, checkpointDue := now, now, now
		if discountEvery > 0 {
			discountDue = now.Add(discountEvery)
		}
		if snapshotEvery > 0 {
			snapshotDue = now.Add(snapshotEvery)
		}
		if checkpointEvery > 0 {
			checkpointDue = now.Add(checkpointEvery)
		}

		heartbeat := discountEvery
		if snapshotEvery > 0 && (heartbeat <= 0 || snapshotEvery < heartbeat) {
			heartbeat = snapshotEvery
		}
		if heartbeat <= 0 {
			heartbeat = time.Minute
		}
		if heartbeat > time.Second {
			heartbeat = time.Second
		}

		ticker := t.clock.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case now := <-ticker.C:
				if t.done() {
					return nil
				}
				if discountEvery > 0 && !now.Before(discountDue) {
					if t.trainCfg.LCFRThresholdMin <= 0 || now.Sub(t.started) < t.trainCfg.LCFRThreshold() {
						t.discount()
					}
					discountDue = now.Add(discountEvery)
				}
				if snapshotEvery > 0 && !now.Before(snapshotDue) {
					t.snapshot()
					snapshotDue = now.Add(snapshotEvery)
				}
				if checkpointEvery > 0 && !now.Before(checkpointDue) {
					t.quiesce.Lock()
					err := t.SaveCheckpoint(t.checkpointPath)
					t.quiesce.Unlock()
					if err != nil {
						log.Warn("checkpoint save failed; retrying at next interval", "path", t.checkpointPath, "err", err)
					}
					checkpointDue = now.Add(checkpointEvery)
				}
			}
		}
	}
}

// discount applies the linear-CFR discount factor d = t/(t+1), t counting
// how many discount ticks have fired so far, to the regret tensor and the
// preflop action counts.
func (t *Trainer) discount() {
	t.quiesce.Lock()
	defer t.quiesce.Unlock()
	t.discountStep++
	d := float64(t.discountStep) / float64(t.discountStep+1)
	t.strategy.Discount(d)
}

func (t *Trainer) snapshot() {
	t.quiesce.Lock()
	defer t.quiesce.Unlock()
	t.average.AddAssign(t.strategy)
}
