// Command bucketgen writes the flop/turn/river cluster files
// sdk/solver.AbstractionConfig's FlopBuckets/TurnBuckets/RiverBuckets point
// at. The heuristic itself lives in sdk/solver/bucketing, shared with
// cmd/solver's Bucket subcommand.
package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lox/holdem-solver/sdk/solver/bucketing"
)

var cli struct {
	OutDir   string `help:"directory to write flop_clusters.bin/turn_clusters.bin/river_clusters.bin" required:""`
	Clusters int    `help:"target number of distinct cluster ids per round" default:"200"`
	Debug    bool   `help:"enable debug logging"`
}

func main() {
	kong.Parse(&cli, kong.Name("bucketgen"), kong.Description("generate heuristic flop/turn/river cluster files"))

	level := zerolog.InfoLevel
	if cli.Debug {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)

	err := bucketing.GenerateAll(cli.OutDir, cli.Clusters, func(r bucketing.Round, path string, entries int) {
		log.Info().Str("round", r.Round.String()).Int("entries", entries).Str("path", path).Msg("generating cluster file")
	})
	if err != nil {
		log.Fatal().Err(err).Msg("generate cluster files")
	}

	log.Info().Msg("bucket generation complete")
}
