// Command solver-watch connects to a running cmd/solver --listen training
// process and prints its Progress telemetry as it streams in, the
// gorilla/websocket companion to cmd/solver's --watch terminal UI for
// watching a remote run instead of a local one.
package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/alecthomas/kong"
	"github.com/gorilla/websocket"

	"github.com/lox/holdem-solver/sdk/solver"
)

var cli struct {
	Addr string `help:"address of a cmd/solver --listen training process (host:port)" required:""`
	Path string `help:"websocket path the listener serves progress on" default:"/progress"`
}

func main() {
	kong.Parse(&cli,
		kong.Name("solver-watch"),
		kong.Description("stream live training progress from a cmd/solver --listen process"),
	)

	u := url.URL{Scheme: "ws", Host: cli.Addr, Path: cli.Path}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "solver-watch: dial %s: %v\n", u.String(), err)
		os.Exit(1)
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			fmt.Fprintf(os.Stderr, "solver-watch: connection closed: %v\n", err)
			return
		}
		var p solver.Progress
		if err := json.Unmarshal(data, &p); err != nil {
			continue
		}
		fmt.Printf(
			"iteration=%d nodes=%d terminals=%d max_depth=%d strategy_update=%v pruning=%v iter_time=%s\n",
			p.Iteration, p.Stats.NodesVisited, p.Stats.TerminalNodes, p.Stats.MaxDepth,
			p.StrategyUpdate, p.Pruning, p.Stats.IterationTime,
		)
	}
}
