package solver

import (
	"math"
	"sync/atomic"

	"github.com/lox/holdem-solver/internal/game"
	"github.com/lox/holdem-solver/sdk/solver/abstraction"
)

// Regret holds the dense per-round regret tensor the MCCFR traversal reads
// and updates: regrets[round][cluster][sequence][action], addressed via the
// SequenceTable the trainer was built against. Storage is flat per round so
// a single 32-bit-aligned slice backs every atomic update; cluster/sequence
// counts come from the ClusterCapability and SequenceTable supplied at
// construction and never change for the lifetime of the table.
type Regret struct {
	seq      *abstraction.SequenceTable
	clusters abstraction.ClusterCapability
	data     [4][]int32
	width    [4]int
	states   [4]uint32
	floor    int32
}

// NewRegret allocates a zeroed regret tensor shaped by seq and clusters.
// floor is the clamp §5 calls for (kRegretFloor); regrets never fall below it.
func NewRegret(seq *abstraction.SequenceTable, clusters abstraction.ClusterCapability, floor int32) *Regret {
	r := &Regret{seq: seq, clusters: clusters, floor: floor}
	for round := game.Preflop; round <= game.River; round++ {
		r.width[round] = seq.ActionCount(round)
		r.states[round] = seq.States(round)
		size := uint64(clusters.NumClusters(round)) * uint64(r.states[round]) * uint64(r.width[round])
		r.data[round] = make([]int32, size)
	}
	return r
}

func (r *Regret) index(round game.Round, cluster, seqID uint32, action int) uint64 {
	return (uint64(cluster)*uint64(r.states[round])+uint64(seqID))*uint64(r.width[round]) + uint64(action)
}

// Get returns the current regret for (round, cluster, seq, action).
func (r *Regret) Get(round game.Round, cluster, seqID uint32, action int) int32 {
	return atomic.LoadInt32(&r.data[round][r.index(round, cluster, seqID, action)])
}

// Add applies a clamp(x+delta, floor, +inf) update. §5 permits either relaxed
// atomic adds with a post-clamp, or plain racy reads/writes; this uses a
// compare-and-swap retry loop, which gives the same benign-race tolerance
// (lost updates under contention, never a torn or corrupted value) while
// still enforcing the floor exactly rather than only approximately.
func (r *Regret) Add(round game.Round, cluster, seqID uint32, action int, delta int32) {
	slot := &r.data[round][r.index(round, cluster, seqID, action)]
	for {
		old := atomic.LoadInt32(slot)
		next := old + delta
		if next < r.floor {
			next = r.floor
		}
		if atomic.CompareAndSwapInt32(slot, old, next) {
			return
		}
	}
}

// Policy returns the regret-matching distribution at (round, cluster, seq):
// positive regret mass normalised to sum to one, uniform over legal actions
// when no action carries positive regret, and zero for every action the
// SequenceTable marks ILLEGAL at this state.
func (r *Regret) Policy(round game.Round, cluster, seqID uint32) []float64 {
	width := r.width[round]
	base := r.index(round, cluster, seqID, 0)
	slice := r.data[round]
	probs := make([]float64, width)
	var sum float64
	legal := 0
	for a := 0; a < width; a++ {
		if r.seq.Next(round, seqID, a) == abstraction.ILLEGAL {
			continue
		}
		legal++
		v := atomic.LoadInt32(&slice[base+uint64(a)])
		if v > 0 {
			probs[a] = float64(v)
			sum += probs[a]
		}
	}
	if sum <= 0 {
		if legal == 0 {
			return probs
		}
		uniform := 1.0 / float64(legal)
		for a := 0; a < width; a++ {
			if r.seq.Next(round, seqID, a) != abstraction.ILLEGAL {
				probs[a] = uniform
			}
		}
		return probs
	}
	for a := range probs {
		probs[a] /= sum
	}
	return probs
}

// Discount multiplies every regret by factor, rounding to the nearest
// integer, per §4.5's linear-CFR discounting pass. Callers must quiesce
// training workers first (§5): each cell is read and written with separate
// atomic operations, so a concurrent Add between the two would be lost.
func (r *Regret) Discount(factor float64) {
	for round := game.Preflop; round <= game.River; round++ {
		slice := r.data[round]
		for i := range slice {
			old := atomic.LoadInt32(&slice[i])
			next := int32(math.Round(float64(old) * factor))
			if next < r.floor {
				next = r.floor
			}
			atomic.StoreInt32(&slice[i], next)
		}
	}
}

// Sample picks an action index from a policy distribution for the uniform
// draw x in [0, 1), falling back to the last action carrying positive mass if rounding error
// leaves the cumulative sum short of one.
func Sample(policy []float64, x float64) int {
	var cum float64
	for i, p := range policy {
		cum += p
		if x < cum {
			return i
		}
	}
	for i := len(policy) - 1; i >= 0; i-- {
		if policy[i] > 0 {
			return i
		}
	}
	return 0
}

// ActionCounts holds the preflop-only counts[cluster][sequence][action]
// tensor the strategy-update pass accumulates (§4.5): `Average`'s preflop
// rows are these counts, normalised.
type ActionCounts struct {
	seq    *abstraction.SequenceTable
	data   []uint32
	states uint32
	width  int
}

// NewActionCounts allocates a zeroed preflop action-count tensor.
func NewActionCounts(seq *abstraction.SequenceTable, clusters abstraction.ClusterCapability) *ActionCounts {
	states := seq.States(game.Preflop)
	width := seq.ActionCount(game.Preflop)
	size := uint64(clusters.NumClusters(game.Preflop)) * uint64(states) * uint64(width)
	return &ActionCounts{seq: seq, data: make([]uint32, size), states: states, width: width}
}

func (c *ActionCounts) index(cluster, seqID uint32, action int) uint64 {
	return (uint64(cluster)*uint64(c.states)+uint64(seqID))*uint64(c.width) + uint64(action)
}

// Add increments the count for (cluster, seq, action) by delta.
func (c *ActionCounts) Add(cluster, seqID uint32, action int, delta uint32) {
	atomic.AddUint32(&c.data[c.index(cluster, seqID, action)], delta)
}

// Get returns the raw count for (cluster, seq, action).
func (c *ActionCounts) Get(cluster, seqID uint32, action int) uint32 {
	return atomic.LoadUint32(&c.data[c.index(cluster, seqID, action)])
}

// Policy normalises the accumulated counts at (cluster, seq) into a
// probability vector, falling back to uniform over legal actions when no
// visits have been recorded yet.
func (c *ActionCounts) Policy(cluster, seqID uint32) []float64 {
	base := c.index(cluster, seqID, 0)
	probs := make([]float64, c.width)
	var sum float64
	legal := 0
	for a := 0; a < c.width; a++ {
		if c.seq.Next(game.Preflop, seqID, a) == abstraction.ILLEGAL {
			continue
		}
		legal++
		probs[a] = float64(atomic.LoadUint32(&c.data[base+uint64(a)]))
		sum += probs[a]
	}
	if sum <= 0 {
		if legal == 0 {
			return probs
		}
		uniform := 1.0 / float64(legal)
		for a := 0; a < c.width; a++ {
			if c.seq.Next(game.Preflop, seqID, a) != abstraction.ILLEGAL {
				probs[a] = uniform
			}
		}
		return probs
	}
	for a := range probs {
		probs[a] /= sum
	}
	return probs
}

// Discount multiplies every count by factor, matching Regret.Discount.
func (c *ActionCounts) Discount(factor float64) {
	for i := range c.data {
		old := atomic.LoadUint32(&c.data[i])
		next := uint32(math.Round(float64(old) * factor))
		atomic.StoreUint32(&c.data[i], next)
	}
}
