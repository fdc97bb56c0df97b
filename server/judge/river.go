// Package judge scores river decisions against exact hand equity.
package judge

import (
	"errors"
	"math"

	"enigma-holdem/server/engine"
)

var ErrNotJudgeable = errors.New("judge: decision is not a complete river spot")

// Decision is one river choice as the actor saw it. Pot includes every
// chip committed so far, the opponent's live bet included.
type Decision struct {
	Board  []engine.Card
	Hole   []engine.Card
	Pot    int
	ToCall int
	BB     int
	Chosen engine.Verb
}

// Verdict compares the chosen verb with the better of the two candidates
// for the spot: call or fold when facing a bet, check or bet otherwise.
type Verdict struct {
	Equity   float64     `json:"equity"`
	Best     engine.Verb `json:"best"`
	Chosen   engine.Verb `json:"chosen"`
	EVBest   float64     `json:"ev_best"`
	EVChosen float64     `json:"ev_chosen"`
	GapBB    float64     `json:"ev_gap_bb"`
	Top      bool        `json:"is_top_action"`
}

type Judge struct {
	eval       engine.HandEvaluator
	betFrac    float64 // bet size as a share of the pot
	foldEquity float64 // assumed fold rate against that bet
	epsBB      float64 // EV slack, in big blinds, still counted as top
}

type Option func(*Judge)

func WithEvaluator(e engine.HandEvaluator) Option { return func(j *Judge) { j.eval = e } }

// WithBetModel sets the single bet size and fold rate used for unbet spots.
func WithBetModel(potFrac, foldEquity float64) Option {
	return func(j *Judge) {
		j.betFrac = potFrac
		j.foldEquity = foldEquity
	}
}

func New(opts ...Option) *Judge {
	j := &Judge{
		eval:       engine.PokerEvaluator{},
		betFrac:    0.66,
		foldEquity: 0.35,
		epsBB:      0.15,
	}
	for _, o := range opts {
		o(j)
	}
	return j
}

// Equity enumerates every opponent holding left in the deck and returns
// the hero's pot share, ties counting half.
func (j *Judge) Equity(board, hole []engine.Card) (float64, error) {
	if len(board) != 5 || len(hole) != 2 {
		return 0, ErrNotJudgeable
	}
	used := make(map[engine.Card]bool, 7)
	for _, c := range append(append([]engine.Card{}, board...), hole...) {
		if !c.Valid() || used[c] {
			return 0, ErrNotJudgeable
		}
		used[c] = true
	}
	avail := make([]engine.Card, 0, 45)
	for rank := 2; rank <= 14; rank++ {
		for _, suit := range []byte("shdc") {
			if c := (engine.Card{Rank: rank, Suit: suit}); !used[c] {
				avail = append(avail, c)
			}
		}
	}

	hero := j.eval.Rank(board, hole)
	var win, tie, total int
	villain := make([]engine.Card, 2)
	for a := 0; a < len(avail); a++ {
		for b := a + 1; b < len(avail); b++ {
			villain[0], villain[1] = avail[a], avail[b]
			v := j.eval.Rank(board, villain)
			switch {
			case hero > v:
				win++
			case hero == v:
				tie++
			}
			total++
		}
	}
	return (float64(win) + 0.5*float64(tie)) / float64(total), nil
}

// Review returns ErrNotJudgeable when the chosen verb is not one of the
// two candidates for the spot.
func (j *Judge) Review(d Decision) (Verdict, error) {
	eq, err := j.Equity(d.Board, d.Hole)
	if err != nil {
		return Verdict{}, err
	}
	bb := d.BB
	if bb <= 0 {
		bb = 1
	}
	p := float64(d.Pot)
	v := Verdict{Equity: eq, Chosen: d.Chosen}

	var evs map[engine.Verb]float64
	if d.ToCall > 0 {
		b := float64(d.ToCall)
		evs = map[engine.Verb]float64{
			engine.Fold: 0,
			engine.Call: eq*p - (1-eq)*b,
		}
		v.Best = engine.Call
		if evs[engine.Fold] > evs[engine.Call] {
			v.Best = engine.Fold
		}
	} else {
		b := math.Max(float64(bb), math.Round(j.betFrac*p))
		f := j.foldEquity
		evs = map[engine.Verb]float64{
			engine.Check: eq * p,
			engine.Raise: f*p + (1-f)*(eq*(p+2*b)-b),
		}
		v.Best = engine.Raise
		if evs[engine.Check] > evs[engine.Raise] {
			v.Best = engine.Check
		}
	}
	chosen, ok := evs[d.Chosen]
	if !ok {
		return Verdict{}, ErrNotJudgeable
	}
	v.EVBest = evs[v.Best]
	v.EVChosen = chosen
	v.GapBB = (v.EVBest - v.EVChosen) / float64(bb)
	v.Top = v.GapBB <= j.epsBB
	return v, nil
}

// FromState builds the decision facing id in s. ok is false off the
// river or when id is not the player to act.
func FromState(s engine.GameState, id engine.PlayerID, chosen engine.Verb) (Decision, bool) {
	if s.Stage != engine.River || s.Over() || s.CurrentPlayerID != id {
		return Decision{}, false
	}
	p, ok := s.Player(id)
	if !ok {
		return Decision{}, false
	}
	return Decision{
		Board:  s.CommunityCards,
		Hole:   p.Hand,
		Pot:    s.Pot,
		ToCall: s.ToCall(id),
		BB:     s.BigBlind,
		Chosen: chosen,
	}, true
}
