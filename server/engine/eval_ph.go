package engine

import (
	"math"

	poker "github.com/paulhankin/poker"
)

// Strength orders hands: higher is better, equal values tie. Strengths are
// only comparable for the same board.
type Strength int

const (
	// WorstStrength is below every evaluated hand; invalid input ranks here.
	WorstStrength Strength = 0
	// BestStrength bounds every evaluated hand from above.
	BestStrength Strength = 1 << 18
)

// HandEvaluator ranks a two-card hand against a board of 0..5 cards. It
// must be pure: same input, same strength, no side effects.
type HandEvaluator interface {
	Rank(board, hole []Card) Strength
}

// EvaluatorFunc adapts a plain function to HandEvaluator.
type EvaluatorFunc func(board, hole []Card) Strength

func (f EvaluatorFunc) Rank(board, hole []Card) Strength { return f(board, hole) }

// PokerEvaluator ranks hands with github.com/paulhankin/poker.
type PokerEvaluator struct{}

func (PokerEvaluator) Rank(board, hole []Card) Strength {
	if len(hole) != 2 || !distinctValid(board, hole) {
		return WorstStrength
	}
	all := append(append([]Card{}, hole...), board...)
	if len(all) < 5 {
		return partialStrength(all)
	}
	pcs := make([]poker.Card, len(all))
	for i, c := range all {
		pcs[i] = toPH(c)
	}
	switch len(pcs) {
	case 7:
		var a7 [7]poker.Card
		copy(a7[:], pcs)
		return normalize(poker.Eval7(&a7))
	case 6:
		return normalize(bestOfFiveSubsets(pcs))
	case 5:
		var a5 [5]poker.Card
		copy(a5[:], pcs)
		return normalize(poker.Eval5(&a5))
	}
	return WorstStrength
}

// DescribeHand names the made hand, e.g. "two pair, kings and fives".
func DescribeHand(board, hole []Card) string {
	all := append(append([]Card{}, hole...), board...)
	pcs := make([]poker.Card, len(all))
	for i, c := range all {
		pcs[i] = toPH(c)
	}
	d, err := poker.Describe(pcs)
	if err != nil {
		return ""
	}
	return d
}

// normalize shifts the library's int16 score into [1, BestStrength].
func normalize(score int16) Strength {
	return Strength(int(score) - math.MinInt16 + 1)
}

// partialStrength orders fewer than five cards, as with no board or a
// one- or two-card board: quads, trips, two pair, a pair, then high card,
// with ties broken by the grouped ranks in order.
func partialStrength(cs []Card) Strength {
	var counts [15]int
	for _, c := range cs {
		counts[c.Rank]++
	}
	var groups []int // ranks ordered by count, then rank, high first
	for n := 4; n >= 1; n-- {
		for r := 14; r >= 2; r-- {
			if counts[r] == n {
				groups = append(groups, r)
			}
		}
	}
	var category int
	switch top := counts[groups[0]]; {
	case top == 4:
		category = 4
	case top == 3:
		category = 3
	case top == 2 && len(groups) > 1 && counts[groups[1]] == 2:
		category = 2
	case top == 2:
		category = 1
	}
	score := category
	for i := 0; i < 4; i++ {
		score *= 13
		if i < len(groups) {
			score += groups[i] - 2
		}
	}
	return Strength(score + 1)
}

func distinctValid(board, hole []Card) bool {
	if len(board) > 5 {
		return false
	}
	seen := make(map[Card]bool, len(board)+len(hole))
	for _, cs := range [][]Card{board, hole} {
		for _, c := range cs {
			if !c.Valid() || seen[c] {
				return false
			}
			seen[c] = true
		}
	}
	return true
}

// Convert our engine.Card -> library card.
func toPH(c Card) poker.Card {
	var s poker.Suit
	switch c.Suit {
	case 'c':
		s = poker.Club
	case 'd':
		s = poker.Diamond
	case 'h':
		s = poker.Heart
	default:
		s = poker.Spade
	}
	// Our ranks: 2..14 (Ace=14). Library: 1..13 (Ace=1).
	r := poker.Rank(c.Rank)
	if c.Rank == 14 {
		r = poker.Rank(1)
	}
	card, _ := poker.MakeCard(s, r)
	return card
}

func bestOfFiveSubsets(pcs []poker.Card) int16 {
	n := len(pcs)
	best := int16(math.MinInt16)
	var five [5]poker.Card
	for skip := 0; skip < n; skip++ {
		k := 0
		for i := 0; i < n; i++ {
			if i != skip {
				five[k] = pcs[i]
				k++
			}
		}
		if score := poker.Eval5(&five); score > best {
			best = score
		}
	}
	return best
}
