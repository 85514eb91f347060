package abstraction

import (
	"fmt"

	"github.com/lox/holdem-solver/internal/game"
	"github.com/lox/holdem-solver/poker"
	"github.com/opencoff/go-chd"
)

// ClusterCapability is the polymorphism-over-clustering capability set spec
// design notes call for: the production table and any test double both
// implement it, and the trainer/average code depends only on this interface.
type ClusterCapability interface {
	NumClusters(round game.Round) uint32
	Cluster(n *game.Node, seat int) uint32
	ClusterArray(n *game.Node) []uint32
}

// ClusterTable is the production cluster lookup: Preflop uses the indexer's
// own 169-class identity mapping, Flop/Turn/River hold a flat []uint32
// loaded from the bucket files the bucketing package writes (one entry per
// canonical index).
type ClusterTable struct {
	indexer Indexer
	buckets [4][]uint32 // buckets[game.Preflop] is unused (identity mapping)
}

// NewClusterTable builds a ClusterTable from the three postflop bucket
// arrays (already deserialised from the flop_clusters/turn_clusters/
// river_clusters files). Each array's length must equal
// indexer.Count(round).
func NewClusterTable(indexer Indexer, flop, turn, river []uint32) (*ClusterTable, error) {
	t := &ClusterTable{indexer: indexer}
	rounds := []struct {
		r game.Round
		b []uint32
	}{{game.Flop, flop}, {game.Turn, turn}, {game.River, river}}
	for _, rb := range rounds {
		if want := indexer.Count(rb.r); uint64(len(rb.b)) != want {
			return nil, fmt.Errorf("abstraction: %s bucket table has %d entries, indexer reports %d", rb.r, len(rb.b), want)
		}
		t.buckets[rb.r] = rb.b
	}
	return t, nil
}

// NumClusters reports how many distinct cluster ids round can produce.
func (t *ClusterTable) NumClusters(round game.Round) uint32 {
	if round == game.Preflop {
		return uint32(t.indexer.Count(game.Preflop))
	}
	return uint32(len(uniqueClusterIDs(t.buckets[round])))
}

// Cluster returns seat's cluster id in node's current round.
func (t *ClusterTable) Cluster(n *game.Node, seat int) uint32 {
	cards := n.HoleCards[seat]
	if n.Round != game.Preflop {
		cards |= n.Board
	}
	idx := t.indexer.IndexLast(n.Round, cards)
	if n.Round == game.Preflop {
		return uint32(idx)
	}
	return t.buckets[n.Round][idx]
}

// ClusterArray returns the cluster id of every seat still in the hand
// (folded and all-in seats get the zero-value sentinel; they are never
// looked up by the trainer).
func (t *ClusterTable) ClusterArray(n *game.Node) []uint32 {
	out := make([]uint32, len(n.HoleCards))
	for seat := range out {
		if n.Folded[seat] {
			continue
		}
		out[seat] = t.Cluster(n, seat)
	}
	return out
}

func uniqueClusterIDs(buckets []uint32) map[uint32]struct{} {
	seen := make(map[uint32]struct{})
	for _, b := range buckets {
		seen[b] = struct{}{}
	}
	return seen
}

// ModuloClusterTable is the "test modulo-4 table" capability-set double from
// the design notes: every canonical index folds onto idx % Mod, useful for
// exercising the trainer/strategy machinery without real bucket files.
type ModuloClusterTable struct {
	Indexer Indexer
	Mod     uint32
}

func (m ModuloClusterTable) NumClusters(round game.Round) uint32 {
	if round == game.Preflop {
		n := uint32(m.Indexer.Count(game.Preflop))
		if n < m.Mod {
			return n
		}
	}
	return m.Mod
}

func (m ModuloClusterTable) Cluster(n *game.Node, seat int) uint32 {
	cards := n.HoleCards[seat]
	if n.Round != game.Preflop {
		cards |= n.Board
	}
	idx := m.Indexer.IndexLast(n.Round, cards)
	return uint32(idx % uint64(m.Mod))
}

func (m ModuloClusterTable) ClusterArray(n *game.Node) []uint32 {
	out := make([]uint32, len(n.HoleCards))
	for seat := range out {
		if n.Folded[seat] {
			continue
		}
		out[seat] = m.Cluster(n, seat)
	}
	return out
}

// CompactClusterTable backs the cluster lookup with a minimal perfect hash
// (opencoff/go-chd) over an explicit, possibly sparse, set of canonical
// keys, rather than a dense array sized to Indexer.Count(round). This is
// the storage a real suit-isomorphism-reducing indexer wants: its canonical
// ids are not contiguous, so a flat []uint32 indexed directly by id would
// waste most of its length on ids that are never produced.
type CompactClusterTable struct {
	hash    *chd.CHD
	buckets []uint32
}

// BuildCompactClusterTable constructs the minimal perfect hash from the
// observed (canonicalKey, clusterID) pairs a bucket-training pass produced.
func BuildCompactClusterTable(keys [][]byte, clusterIDs []uint32) (*CompactClusterTable, error) {
	if len(keys) != len(clusterIDs) {
		return nil, fmt.Errorf("abstraction: %d keys but %d cluster ids", len(keys), len(clusterIDs))
	}
	b := chd.NewBuilder()
	for _, k := range keys {
		b.Add(k)
	}
	h, err := b.Freeze()
	if err != nil {
		return nil, fmt.Errorf("abstraction: building perfect hash: %w", err)
	}
	buckets := make([]uint32, len(keys))
	for i, k := range keys {
		buckets[h.Find(k)] = clusterIDs[i]
	}
	return &CompactClusterTable{hash: h, buckets: buckets}, nil
}

// Lookup returns the cluster id stored for key, or false if key was never
// part of the training set the table was built from.
func (t *CompactClusterTable) Lookup(key []byte) (uint32, bool) {
	idx := t.hash.Find(key)
	if int(idx) >= len(t.buckets) {
		return 0, false
	}
	return t.buckets[idx], true
}

// CanonicalKey encodes a hand's sorted card bit positions as a compact byte
// key suitable for BuildCompactClusterTable's perfect hash.
func CanonicalKey(h poker.Hand) []byte {
	cards := h.Cards()
	key := make([]byte, len(cards))
	for i, c := range cards {
		key[i] = byte(c.GetBitPosition())
	}
	return key
}
