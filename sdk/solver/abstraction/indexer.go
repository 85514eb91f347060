package abstraction

import (
	"github.com/lox/holdem-solver/internal/game"
	"github.com/lox/holdem-solver/poker"
)

// Indexer is the external-collaborator capability set spec.md treats as
// already available: a canonical integer index for an ordered card set, and
// its inverse up to suit isomorphism. The core only consumes this interface;
// production deployments plug in a real perfect-recall indexer backed by the
// K-means bucket files, while CanonicalIndexer below is a reference
// implementation sufficient to train and test against.
type Indexer interface {
	// IndexLast maps the hole cards (Preflop) or hole∪board cards (Flop,
	// Turn, River) to a dense canonical index in [0, Count(round)).
	IndexLast(round game.Round, cards poker.Hand) uint64
	// Unindex is IndexLast's inverse up to suit isomorphism: for any idx <
	// Count(round), IndexLast(round, Unindex(round, idx)) == idx.
	Unindex(round game.Round, idx uint64) poker.Hand
	// Count reports the number of distinct canonical indices for round.
	Count(round game.Round) uint64
}
