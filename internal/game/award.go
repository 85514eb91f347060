package game

import (
	"math/rand"
	"sort"

	"github.com/lox/holdem-solver/poker"
)

// AwardMode selects how AwardPot resolves a finished hand.
type AwardMode int

const (
	// SameStackNoRake has no resolution path of its own: a contested pot is
	// resolved exactly as SingleRun. As in every mode, an uncontested pot
	// goes to the lone survivor less any configured rake.
	SameStackNoRake AwardMode = iota
	// SingleRun runs the full side-pot decomposition against one board.
	SingleRun
	// MultiRun splits the pot equally across Runs additional board
	// run-outs, each resolved independently, for "run it twice" equity.
	MultiRun
)

// AwardResult reports the chip movement AwardPot performed.
type AwardResult struct {
	Winnings  []uint32 // chips added to each seat's stack
	RakeTaken uint32
}

// AwardPot allocates the pot to the winner(s) once the hand is no longer in
// progress. For MultiRun, runs selects how many independent board run-outs
// split the pot; it is ignored for the other modes.
func (n *Node) AwardPot(mode AwardMode, runs int) (AwardResult, error) {
	if n.InProgress {
		return AwardResult{}, newError(IllegalState, "AwardPot called while hand is still in progress")
	}
	if n.Pot == 0 {
		return AwardResult{}, newError(IllegalState, "AwardPot called with an empty pot (already awarded)")
	}

	result := AwardResult{Winnings: make([]uint32, n.cfg.Players)}

	if n.PlayersLeft == 1 {
		winner := n.ActingPlayer
		for i := range n.Folded {
			if !n.Folded[i] {
				winner = uint8(i)
				break
			}
		}
		rake := n.rakeTaken(n.Pot)
		award := n.Pot - rake
		n.Stacks[winner] += award
		result.Winnings[winner] = award
		result.RakeTaken = rake
		n.resetAfterAward()
		if n.logger != nil {
			n.logger.Debug("pot awarded uncontested", "winner", winner, "amount", award, "rake", rake)
		}
		return result, nil
	}

	var (
		out AwardResult
		err error
	)
	switch mode {
	case MultiRun:
		if runs < 1 {
			runs = 1
		}
		out, err = n.awardMultiRun(runs)
	default:
		out, err = n.awardSingleRun(n.Board)
	}
	if err == nil && n.logger != nil {
		n.logger.Debug("pot awarded at showdown", "winnings", out.Winnings, "rake", out.RakeTaken)
	}
	return out, err
}

func (n *Node) rakeTaken(pot uint32) uint32 {
	if n.cfg.RakeFraction <= 0 {
		return 0
	}
	if n.cfg.NoFlopNoDrop && n.Round == Preflop {
		return 0
	}
	rake := uint32(float64(pot) * n.cfg.RakeFraction)
	if n.cfg.RakeCap > 0 && rake > n.cfg.RakeCap {
		rake = n.cfg.RakeCap
	}
	if rake > pot {
		rake = pot
	}
	return rake
}

func (n *Node) resetAfterAward() {
	n.Pot = 0
	for i := range n.Bets {
		n.Bets[i] = 0
	}
}

// sidePotTier is one rung of the all-in ladder: the chips contributed by
// every seat whose bet reaches at least this rung, and the seats among them
// still live to contest it. It is board-independent — who contributed what
// depends only on n.Bets, never on the cards — so both SingleRun and every
// MultiRun run-out share exactly the same ladder and differ only in who
// wins each rung.
type sidePotTier struct {
	amount     uint32
	contenders []int
}

// sidePotTiers peels off the smallest unclaimed contribution in bets
// repeatedly, accumulating each rung's total contribution and the seats
// still eligible to contest it, until every contestant has been fully
// processed.
func sidePotTiers(players int, bets []uint32, contestant []bool) []sidePotTier {
	b := append([]uint32(nil), bets...)
	processed := make([]bool, players)
	toProcess := 0
	for i := 0; i < players; i++ {
		if contestant[i] {
			toProcess++
		}
	}

	var tiers []sidePotTier
	for toProcess > 0 {
		minBet := uint32(0)
		found := false
		for i := 0; i < players; i++ {
			if b[i] > 0 && (!found || b[i] < minBet) {
				minBet = b[i]
				found = true
			}
		}
		if !found {
			break
		}

		var amount uint32
		var contenders []int
		for i := 0; i < players; i++ {
			if b[i] >= minBet {
				amount += minBet
				b[i] -= minBet
				if contestant[i] && !processed[i] {
					contenders = append(contenders, i)
				}
			}
		}
		tiers = append(tiers, sidePotTier{amount: amount, contenders: contenders})

		for i := 0; i < players; i++ {
			if b[i] == 0 && !processed[i] {
				processed[i] = true
				toProcess--
			}
		}
	}
	return tiers
}

// tierWinners picks the best-ranked contenders for one tier under a given
// board's ranks, sharing the tier on ties.
func tierWinners(contenders []int, ranks []uint16) []int {
	var best uint16
	have := false
	var winners []int
	for _, i := range contenders {
		if !have || ranks[i] > best {
			best = ranks[i]
			have = true
			winners = []int{i}
		} else if ranks[i] == best {
			winners = append(winners, i)
		}
	}
	return winners
}

// scaleSidePots scales each tier's raw amount by (1 - rakeRatio) using a
// largest-remainder allocation across tiers so the sum of scaled amounts
// exactly equals distributable.
func scaleSidePots(tiers []sidePotTier, distributable uint32, rakeRatio float64) []uint32 {
	scaled := make([]uint32, len(tiers))
	var scaledSum uint32
	type remainder struct {
		idx int
		rem float64
	}
	var remainders []remainder
	for i, t := range tiers {
		exact := float64(t.amount) * (1 - rakeRatio)
		floor := uint32(exact)
		scaled[i] = floor
		scaledSum += floor
		remainders = append(remainders, remainder{idx: i, rem: exact - float64(floor)})
	}
	if scaledSum > distributable || len(remainders) == 0 {
		return scaled
	}
	leftover := distributable - scaledSum
	sort.SliceStable(remainders, func(a, b int) bool { return remainders[a].rem > remainders[b].rem })
	for i := uint32(0); i < leftover; i++ {
		scaled[remainders[i%uint32(len(remainders))].idx]++
	}
	return scaled
}

// splitEqual divides amount into n shares as evenly as possible, handing the
// one-chip remainder to the lowest-indexed shares first.
func splitEqual(amount uint32, n int) []uint32 {
	parts := make([]uint32, n)
	if n == 0 {
		return parts
	}
	share := amount / uint32(n)
	remainder := amount % uint32(n)
	for i := range parts {
		parts[i] = share
	}
	for i := uint32(0); i < remainder; i++ {
		parts[i]++
	}
	return parts
}

// awardSingleRun implements the side-pot algorithm from the specification:
// peel off the smallest unclaimed bet as a side pot, split it among the best
// remaining hand(s) using Hamilton apportionment for indivisible remainders,
// and repeat until every contestant has been fully processed.
func (n *Node) awardSingleRun(board poker.Hand) (AwardResult, error) {
	players := n.cfg.Players
	result := AwardResult{Winnings: make([]uint32, players)}

	contestant := make([]bool, players)
	for i := 0; i < players; i++ {
		if !n.Folded[i] && !n.Mucked[i] {
			contestant[i] = true
		}
	}

	ranks := make([]uint16, players)
	for i := 0; i < players; i++ {
		if contestant[i] {
			ranks[i] = uint16(poker.Evaluate7Cards(n.HoleCards[i] | board))
		}
	}

	rake := n.rakeTaken(n.Pot)
	rakeRatio := 0.0
	if n.Pot > 0 {
		rakeRatio = float64(rake) / float64(n.Pot)
	}
	distributable := n.Pot - rake

	tiers := sidePotTiers(players, n.Bets, contestant)
	scaled := scaleSidePots(tiers, distributable, rakeRatio)
	for i, t := range tiers {
		awardHamilton(result.Winnings, tierWinners(t.contenders, ranks), scaled[i])
	}

	for i := 0; i < players; i++ {
		n.Stacks[i] += result.Winnings[i]
	}
	result.RakeTaken = rake
	n.resetAfterAward()
	return result, nil
}

// awardMultiRun splits the pot into `runs` equal shares, each resolved
// against its own board run-out, and sums the results. The all-in ladder is
// decomposed into side pots exactly once (it is board-independent), then
// every tier's rake-adjusted amount is itself split `runs` ways and awarded
// against that run's own board — so an uneven all-in still pays the correct
// side-pot winner on every run-out instead of handing a short all-in's
// excess to whoever wins the board overall. Every run after the first is
// dealt a fresh five-card board by runoutBoard, avoiding the hole cards and
// the original board; hole cards are untouched.
func (n *Node) awardMultiRun(runs int) (AwardResult, error) {
	players := n.cfg.Players
	total := AwardResult{Winnings: make([]uint32, players)}

	contestant := make([]bool, players)
	for i := 0; i < players; i++ {
		if !n.Folded[i] && !n.Mucked[i] {
			contestant[i] = true
		}
	}

	rake := n.rakeTaken(n.Pot)
	rakeRatio := 0.0
	if n.Pot > 0 {
		rakeRatio = float64(rake) / float64(n.Pot)
	}
	distributable := n.Pot - rake

	tiers := sidePotTiers(players, n.Bets, contestant)
	scaled := scaleSidePots(tiers, distributable, rakeRatio)
	tierRunShares := make([][]uint32, len(tiers))
	for i, amount := range scaled {
		tierRunShares[i] = splitEqual(amount, runs)
	}

	for run := 0; run < runs; run++ {
		board := n.Board
		if run > 0 && n.deck != nil {
			dealt := n.deck.Clone()
			used := n.Board
			for _, c := range n.HoleCards {
				used |= c
			}
			board = n.runoutBoard(dealt, used)
		}

		ranks := make([]uint16, players)
		for i := 0; i < players; i++ {
			if contestant[i] {
				ranks[i] = uint16(poker.Evaluate7Cards(n.HoleCards[i] | board))
			}
		}

		for i, t := range tiers {
			awardHamilton(total.Winnings, tierWinners(t.contenders, ranks), tierRunShares[i][run])
		}
	}

	for i := 0; i < players; i++ {
		n.Stacks[i] += total.Winnings[i]
	}
	total.RakeTaken = rake
	n.resetAfterAward()
	return total, nil
}

// runoutBoard shuffles a new deck from the Node's RNG (a fixed seed when the
// Node has none) and returns its first five cards not in used. The dealt
// deck is not read.
func (n *Node) runoutBoard(dealt *poker.Deck, used poker.Hand) poker.Hand {
	rng := n.rng
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	var fresh []poker.Card
	d := poker.NewDeck(rng)
	for _, c := range d.Deal(52) {
		if used.HasCard(c) {
			continue
		}
		fresh = append(fresh, c)
		if len(fresh) == 5 {
			break
		}
	}
	return poker.NewHand(fresh...)
}

// awardHamilton splits amount equally among winners, awarding the floor to
// each and then distributing the chip remainder one at a time in ascending
// seat-index order (stable tie-break) until fully allocated.
func awardHamilton(winnings []uint32, winners []int, amount uint32) {
	if len(winners) == 0 || amount == 0 {
		return
	}
	share := amount / uint32(len(winners))
	remainder := amount % uint32(len(winners))
	sorted := append([]int(nil), winners...)
	sort.Ints(sorted)
	for _, w := range sorted {
		winnings[w] += share
	}
	for i := uint32(0); i < remainder; i++ {
		winnings[sorted[i]]++
	}
}
