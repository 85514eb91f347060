// Package game implements the deterministic multi-player no-limit hold'em
// betting state machine (Node) that the solver traverses during training and
// that self-play evaluation drives directly.
package game

import (
	"math/rand"

	"github.com/charmbracelet/log"

	"github.com/lox/holdem-solver/poker"
)

// Round identifies a betting street. Values are dense 0..3 so they can
// address the solver's per-round tensors directly.
type Round uint8

const (
	Preflop Round = iota
	Flop
	Turn
	River
)

func (r Round) String() string {
	switch r {
	case Preflop:
		return "preflop"
	case Flop:
		return "flop"
	case Turn:
		return "turn"
	case River:
		return "river"
	default:
		return "unknown"
	}
}

// Action is a concrete play a Node can apply.
type Action uint8

const (
	Fold Action = iota
	CheckCall
	Bet
	AllIn
)

func (a Action) String() string {
	switch a {
	case Fold:
		return "fold"
	case CheckCall:
		return "checkcall"
	case Bet:
		return "bet"
	case AllIn:
		return "allin"
	default:
		return "unknown"
	}
}

// Move is an Action paired with the chip size it carries (meaningful only
// for Bet: the additional chips the player is contributing).
type Move struct {
	Play Action
	Size uint32
}

// Config holds a Node's static, hand-independent parameters.
type Config struct {
	Players         int
	BigBlind        uint32
	SmallBlind      uint32
	Ante            uint32
	BigBlindAnte    bool
	BlindBeforeAnte bool
	RakeFraction    float64
	RakeCap         uint32 // 0 = uncapped
	NoFlopNoDrop    bool
	DefaultStack    uint32
}

// DefaultConfig mirrors the original source's default 50/100 game with 100bb
// stacks and no rake.
func DefaultConfig(players int) Config {
	return Config{
		Players:         players,
		BigBlind:        100,
		SmallBlind:      50,
		BlindBeforeAnte: true,
		DefaultStack:    10000,
	}
}

// Node is a snapshot of a hand in progress: the deterministic betting state
// machine described by the specification's Node contract.
type Node struct {
	cfg Config

	// Progress
	Button       uint8
	InProgress   bool
	Round        Round
	Cycled       int
	ActingPlayer uint8
	potGood      int // players still required to act before the round advances
	noRaise      int // players facing a sub-minimum all-in: may only call or fold
	Folded       []bool
	Mucked       []bool
	PlayersLeft  int
	PlayersAllIn int

	// Chips
	Pot      uint32
	Bets     []uint32
	Stacks   []uint32
	MinRaise uint32
	MaxBet   uint32

	// Cards
	rng        *rand.Rand
	deck       *poker.Deck
	HoleCards  []poker.Hand
	boardCards [5]poker.Card // dealt order: flop x3, turn, river
	Board      poker.Hand

	// logger is nil in the hot MCCFR training path, where millions of Nodes
	// are cloned per second and even a disabled-level log call would add up;
	// WithLogger opts a single live/interactive Node into engine-level
	// tracing, mirroring the teacher's GameEngine.logger field.
	logger *log.Logger
}

// Option configures a Node at construction time.
type Option func(*Node)

// WithStacks overrides every seat's starting stack; len must equal players.
func WithStacks(stacks []uint32) Option {
	return func(n *Node) {
		copy(n.Stacks, stacks)
	}
}

// WithUniformStack sets every seat's starting stack to the same amount.
func WithUniformStack(chips uint32) Option {
	return func(n *Node) {
		for i := range n.Stacks {
			n.Stacks[i] = chips
		}
	}
}

// WithRNG supplies the deterministic per-thread RNG used for dealing.
func WithRNG(rng *rand.Rand) Option {
	return func(n *Node) { n.rng = rng }
}

// WithButton sets the initial button seat (NewHand advances it by one before
// use, matching the constructor semantics of the original source).
func WithButton(seat uint8) Option {
	return func(n *Node) { n.Button = seat }
}

// WithLogger attaches an engine-level debug logger to the Node, for
// interactive/demo callers that want human-readable hand-by-hand tracing.
// Training and evaluation leave this unset.
func WithLogger(logger *log.Logger) Option {
	return func(n *Node) { n.logger = logger }
}

// NewNode constructs a Node ready for NewHand to be called on it.
func NewNode(cfg Config, opts ...Option) *Node {
	n := &Node{
		cfg:       cfg,
		Folded:    make([]bool, cfg.Players),
		Mucked:    make([]bool, cfg.Players),
		Bets:      make([]uint32, cfg.Players),
		Stacks:    make([]uint32, cfg.Players),
		HoleCards: make([]poker.Hand, cfg.Players),
	}
	for i := range n.Stacks {
		n.Stacks[i] = cfg.DefaultStack
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.rng == nil {
		n.rng = rand.New(rand.NewSource(1))
	}
	// NewHand increments the button, so pre-offset by one less than configured.
	n.Button = uint8((int(n.Button) + cfg.Players - 1) % cfg.Players)
	return n
}

// Config returns the Node's static configuration.
func (n *Node) Config() Config { return n.cfg }

// Clone returns a deep copy safe to mutate independently, the scratch copy
// the sequence-table builder and the MCCFR traversal apply speculative moves
// to without disturbing the caller's Node.
func (n *Node) Clone() *Node {
	c := *n
	c.Folded = append([]bool(nil), n.Folded...)
	c.Mucked = append([]bool(nil), n.Mucked...)
	c.Bets = append([]uint32(nil), n.Bets...)
	c.Stacks = append([]uint32(nil), n.Stacks...)
	c.HoleCards = append([]poker.Hand(nil), n.HoleCards...)
	return &c
}

// PlayerIndex returns the seat index relative to the button, where 0 is the
// button, 1 is the small blind, 2 is the big blind, etc. Heads-up collapses
// positions 0 and 1 onto the same seat (button is also the small blind).
func (n *Node) PlayerIndex(defaultPosition int) uint8 {
	if n.cfg.Players == 2 && defaultPosition > 0 {
		defaultPosition--
	}
	return uint8((int(n.Button) + defaultPosition) % n.cfg.Players)
}

// Rotation reports how many full orbits of action have occurred this round.
func (n *Node) Rotation() int { return n.Cycled / n.cfg.Players }

// NewHand resets progress state for the start of a new hand: rotates the
// button, posts antes, blinds and straddles, and sets the first actor.
func (n *Node) NewHand(straddles int) error {
	if n.Pot != 0 {
		return newError(IllegalState, "NewHand called with non-empty pot; AwardPot must run first")
	}

	n.Button = uint8((int(n.Button) + 1) % n.cfg.Players)
	n.InProgress = true
	n.Round = Preflop
	n.Cycled = 0
	n.potGood = n.cfg.Players
	n.noRaise = 0
	for i := range n.Folded {
		n.Folded[i] = false
		n.Mucked[i] = false
	}
	n.PlayersLeft = n.cfg.Players
	n.PlayersAllIn = 0
	n.Board = 0
	for i := range n.HoleCards {
		n.HoleCards[i] = 0
	}

	effectiveAnte := n.cfg.Ante
	if n.cfg.Ante > 0 && !n.cfg.BlindBeforeAnte {
		effectiveAnte = n.postAntes()
	}
	n.postBlind(n.PlayerIndex(1), n.cfg.SmallBlind)
	n.postBlind(n.PlayerIndex(2), n.cfg.BigBlind)
	if n.cfg.Ante > 0 && n.cfg.BlindBeforeAnte {
		effectiveAnte = n.postAntes()
	}
	effectiveBlind := n.postStraddles(straddles)
	n.MinRaise = effectiveBlind
	n.MaxBet = effectiveBlind + effectiveAnte

	n.ActingPlayer = n.PlayerIndex(3)
	n.cyclePlayers(false)
	if n.logger != nil {
		n.logger.Debug("new hand dealt", "button", n.Button, "pot", n.Pot, "acting", n.ActingPlayer)
	}
	return nil
}

func (n *Node) postBlind(seat uint8, size uint32) uint32 {
	blind := size
	if n.Stacks[seat] < blind {
		blind = n.Stacks[seat]
	}
	n.Bets[seat] += blind
	n.Stacks[seat] -= blind
	n.Pot += blind
	if n.Stacks[seat] == 0 {
		n.PlayersAllIn++
	}
	return blind
}

func (n *Node) postAntes() uint32 {
	effectiveAnte := n.cfg.Ante
	if n.cfg.BigBlindAnte {
		bb := n.PlayerIndex(2)
		bbStack := n.Stacks[bb]
		effectiveAnteSum := n.cfg.Ante * uint32(n.cfg.Players)
		if bbStack < effectiveAnteSum {
			effectiveAnteSum = bbStack
		}
		effectiveAnte = effectiveAnteSum / uint32(n.cfg.Players)

		n.Bets[bb] += effectiveAnte
		n.Stacks[bb] -= effectiveAnteSum
		n.Pot += effectiveAnteSum
		if n.Stacks[bb] == 0 {
			n.PlayersAllIn++
		}
		n.Bets[bb] += effectiveAnteSum % uint32(n.cfg.Players)

		for i := 0; i < n.cfg.Players; i++ {
			if uint8(i) != bb {
				n.Bets[i] += effectiveAnte
			}
		}
	} else {
		for i := 0; i < n.cfg.Players; i++ {
			n.postBlind(uint8(i), effectiveAnte)
		}
	}
	return effectiveAnte
}

func (n *Node) postStraddles(count int) uint32 {
	maxStraddle := n.cfg.BigBlind
	for i := 0; i < count; i++ {
		seat := n.PlayerIndex(3 + i)
		size := n.cfg.BigBlind * (uint32(1) << uint(i+1))
		if size >= n.Stacks[seat] {
			break
		}
		n.postBlind(seat, size)
		if size > maxStraddle {
			maxStraddle = size
		}
	}
	return maxStraddle
}

// Deal draws two hole cards per seat, then five board cards, from a fresh
// shuffled 52-card deck seeded by the Node's RNG.
func (n *Node) Deal() {
	n.deck = poker.NewDeck(n.rng)
	for i := 0; i < n.cfg.Players; i++ {
		n.HoleCards[i] = poker.NewHand(n.deck.Deal(2)...)
	}
	copy(n.boardCards[:], n.deck.Deal(5))
	n.Board = 0
	n.revealBoard()
}

// revealBoard sets Board to exactly the community cards a player sitting at
// the table would have seen by now (zero preflop, three on the flop, one
// more each street after). The remaining board cards are dealt and fixed at
// Deal time so a single shuffle determines the whole hand, but they stay out
// of Board until nextRound exposes them, so cluster lookups never see a
// street's cards before the abstraction reaches that street.
func (n *Node) revealBoard() {
	count := 0
	switch n.Round {
	case Flop:
		count = 3
	case Turn:
		count = 4
	case River:
		count = 5
	}
	var board poker.Hand
	for i := 0; i < count; i++ {
		board |= poker.NewHand(n.boardCards[i])
	}
	n.Board = board
}

// CanFold reports whether folding is a structurally legal move right now.
func (n *Node) CanFold() bool {
	return n.InProgress && n.Bets[n.ActingPlayer] < n.MaxBet
}

// CanCheckCall reports whether the acting player can check or call without
// going all-in (an exact-stack call must use AllIn instead).
func (n *Node) CanCheckCall() bool {
	if !n.InProgress {
		return false
	}
	needed := n.MaxBet - n.Bets[n.ActingPlayer]
	return needed < n.Stacks[n.ActingPlayer]
}

// CanBet reports whether betting size additional chips is legal for the
// acting player.
func (n *Node) CanBet(size uint32) bool {
	if !n.InProgress || n.potGood == 0 {
		return false
	}
	prevBet := n.Bets[n.ActingPlayer]
	totalBet := size + prevBet
	if totalBet <= n.MaxBet {
		return false
	}
	raiseSize := totalBet - n.MaxBet
	return raiseSize >= n.MinRaise && size < n.Stacks[n.ActingPlayer]
}

// Apply advances the state by exactly one play. It reports whether the hand
// is still in progress afterward, or an error if the move was illegal.
func (n *Node) Apply(move Move) (bool, error) {
	if !n.InProgress {
		return false, newError(IllegalState, "Apply called when hand is not in progress")
	}
	if n.logger != nil {
		n.logger.Debug("applying move", "seat", n.ActingPlayer, "play", move.Play, "size", move.Size, "round", n.Round)
	}

	switch move.Play {
	case Fold:
		if !n.CanFold() {
			return false, newError(InvalidMove, "fold is not legal for seat %d", n.ActingPlayer)
		}
		n.fold()
	case AllIn:
		n.allIn()
	case CheckCall:
		if !n.CanCheckCall() {
			return false, newError(InvalidMove, "check/call is not legal for seat %d", n.ActingPlayer)
		}
		n.checkCall()
	case Bet:
		if !n.CanBet(move.Size) {
			return false, newError(InvalidMove, "betting %d is not legal for seat %d", move.Size, n.ActingPlayer)
		}
		n.bet(move.Size)
	default:
		return false, newError(InvalidArgument, "unknown action %v", move.Play)
	}

	n.cyclePlayers(true)
	return n.InProgress, nil
}

func (n *Node) fold() {
	n.Folded[n.ActingPlayer] = true
	n.PlayersLeft--
}

func (n *Node) allIn() {
	seat := n.ActingPlayer
	prevBet := n.Bets[seat]
	chips := n.Stacks[seat]
	totalBet := prevBet + chips

	switch {
	case totalBet < n.MaxBet:
		// Call for less: does not even cover the current bet.
	case totalBet < n.MaxBet+n.MinRaise:
		// Sub-minimum raise: call-plus-change. Seats still owed a turn
		// keep their full options; every seat that had already acted gets
		// one more turn (noRaise) on which it may only call or fold.
		alreadyActed := n.cfg.Players - n.potGood
		n.noRaise = alreadyActed
		n.MaxBet = totalBet
	default:
		raiseAmount := totalBet - n.MaxBet
		n.MinRaise = raiseAmount
		n.MaxBet = totalBet
		n.potGood = n.cfg.Players
		n.noRaise = 0
	}

	n.Pot += chips
	n.Stacks[seat] -= chips
	n.Bets[seat] += chips
	n.PlayersAllIn++
}

func (n *Node) checkCall() {
	seat := n.ActingPlayer
	additional := n.MaxBet - n.Bets[seat]
	if additional == 0 {
		return
	}
	n.Pot += additional
	n.Stacks[seat] -= additional
	n.Bets[seat] += additional
}

func (n *Node) bet(size uint32) {
	seat := n.ActingPlayer
	prevBet := n.Bets[seat]
	totalBet := size + prevBet
	raiseSize := totalBet - n.MaxBet
	n.MaxBet = totalBet
	n.MinRaise = raiseSize
	n.potGood = n.cfg.Players
	n.noRaise = 0
	n.Pot += size
	n.Stacks[seat] -= size
	n.Bets[seat] += size
}

// cyclePlayers advances ActingPlayer to the next seat that still needs to
// act, decrementing whichever of potGood/noRaise is still positive, and
// triggers the next round once both reach zero.
func (n *Node) cyclePlayers(cycleBeforeCheck bool) {
	for {
		if !cycleBeforeCheck {
			cycleBeforeCheck = true
		} else {
			if n.potGood > 0 {
				n.potGood--
			} else {
				n.noRaise--
			}
			n.Cycled++
			n.ActingPlayer = uint8((int(n.ActingPlayer) + 1) % n.cfg.Players)
		}
		if n.potGood+n.noRaise <= 0 {
			break
		}
		if !n.Folded[n.ActingPlayer] && n.Stacks[n.ActingPlayer] != 0 {
			break
		}
	}

	if n.potGood+n.noRaise == 0 {
		n.nextRound()
	}
}

func (n *Node) nextRound() {
	if n.PlayersLeft == 1 {
		n.InProgress = false
		return
	}
	if n.PlayersLeft-n.PlayersAllIn <= 1 {
		n.Round = River
		n.revealBoard()
	}

	switch n.Round {
	case Preflop:
		n.Round = Flop
	case Flop:
		n.Round = Turn
	case Turn:
		n.Round = River
	case River:
		n.InProgress = false
		return
	}
	n.revealBoard()
	n.Cycled = 0
	n.ActingPlayer = n.PlayerIndex(1)
	n.potGood = n.cfg.Players
	n.MinRaise = n.cfg.BigBlind
	n.cyclePlayers(false)
}
