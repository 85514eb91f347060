// Package bucketing generates the heuristic flop/turn/river cluster files
// sdk/solver.AbstractionConfig's FlopBuckets/TurnBuckets/RiverBuckets point
// at: one cluster id per canonical card-abstraction index, built from
// sdk/classification's board-texture and draw-detection heuristics rather
// than the k-means-over-equity-histograms a production pipeline would run
// (see DESIGN.md for why that heavier pipeline is out of scope). Both
// cmd/bucketgen and cmd/solver's Bucket subcommand call this package so the
// heuristic lives in exactly one place.
package bucketing

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/lox/holdem-solver/internal/game"
	"github.com/lox/holdem-solver/poker"
	"github.com/lox/holdem-solver/sdk/classification"
	"github.com/lox/holdem-solver/sdk/solver/abstraction"
)

// Round pairs a betting street with the cluster file name it writes to.
type Round struct {
	Round game.Round
	File  string
}

// Rounds is the fixed postflop set a production run buckets: flop, turn and
// river, each against its own cluster file.
var Rounds = []Round{
	{game.Flop, "flop_clusters.bin"},
	{game.Turn, "turn_clusters.bin"},
	{game.River, "river_clusters.bin"},
}

// Generate scores every canonical hand index for round against board texture
// and draw strength, folding the heuristic score into [0, clusters).
func Generate(round game.Round, clusters int) []uint32 {
	indexer := abstraction.CanonicalIndexer{}
	n := indexer.Count(round)
	buckets := make([]uint32, n)
	for idx := uint64(0); idx < n; idx++ {
		hand := indexer.Unindex(round, idx)
		buckets[idx] = bucketFor(hand, clusters)
	}
	return buckets
}

// bucketFor scores a combined hole+board hand by board texture and draw
// strength. The first two cards (by ascending bit position) stand in for the
// hole cards and the rest for the board; CanonicalIndexer's colex
// enumeration carries no notion of deal order, so any fixed, deterministic
// split works equally well here — the heuristic only needs to be a function
// of the card set, not of who held which cards at the table.
func bucketFor(hand poker.Hand, clusters int) uint32 {
	cards := hand.Cards()
	if len(cards) < 2 {
		return 0
	}
	hole := poker.NewHand(cards[:2]...)
	board := poker.NewHand(cards[2:]...)

	texture := classification.AnalyzeBoardTexture(board)
	draws := classification.DetectDraws(hole, board)

	score := int(texture)*10 + draws.Outs
	if draws.HasStrongDraw() {
		score += 5
	}
	if clusters <= 0 {
		clusters = 1
	}
	return uint32(score % clusters)
}

// WriteFile gob-encodes buckets to path, the format the solver package's
// bucket-file loader expects.
func WriteFile(path string, buckets []uint32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("bucketing: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(buckets); err != nil {
		return fmt.Errorf("bucketing: encoding %s: %w", path, err)
	}
	return nil
}

// GenerateAll generates and writes every round's cluster file into dir,
// reporting each file's path through report before it is written.
func GenerateAll(dir string, clusters int, report func(r Round, path string, entries int)) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("bucketing: create output directory: %w", err)
	}
	for _, r := range Rounds {
		path := dir + "/" + r.File
		buckets := Generate(r.Round, clusters)
		if report != nil {
			report(r, path, len(buckets))
		}
		if err := WriteFile(path, buckets); err != nil {
			return fmt.Errorf("bucketing: round %s: %w", r.Round, err)
		}
	}
	return nil
}
