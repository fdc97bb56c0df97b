package agent

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"enigma-holdem/server/engine"
)

type Observation struct {
	HandID     string         `json:"hand_id"`
	HandNumber int            `json:"hand_number"`
	Player     string         `json:"player"`     // "user" | "bot"
	Position   string         `json:"position"`   // "dealer" | "big_blind"
	Street     string         `json:"street"`     // pre-flop|flop|turn|river
	HoleCards  []string       `json:"hole_cards"` // e.g. ["As","Kd"]
	Board      []string       `json:"board"`      // 0..5 cards
	Stacks     map[string]int `json:"stacks"`     // {hero, villain} chips behind
	Blinds     map[string]int `json:"blinds"`     // {sb, bb}
	Pot        int            `json:"pot"`
	ToCall     int            `json:"to_call"`
	MinRaiseTo int            `json:"min_raise_to"`  // absolute raise-to
	MaxRaiseTo int            `json:"max_raise_to"`  // absolute raise-to
	Legal      []string       `json:"legal_actions"` // subset of fold/check/call/raise
	HistoryLen int            `json:"history_len"`
}

type ActionOut struct {
	Action  string `json:"action"`           // fold|check|call|raise
	Amount  *int   `json:"amount,omitempty"` // required if raise
	Comment string `json:"comment,omitempty"`
}

// Verb returns the action as an engine verb and the raise target (0 when
// no amount was given).
func (a ActionOut) Verb() (engine.Verb, int) {
	amt := 0
	if a.Amount != nil {
		amt = *a.Amount
	}
	return engine.Verb(a.Action), amt
}

// BuildObservation converts engine state into what a seat driver sees. Only
// the hero's hole cards are included.
func BuildObservation(s engine.GameState, legal engine.LegalActions) Observation {
	seat, _ := s.Seat(legal.Player)
	p := s.Players[seat]
	o := s.Players[1-seat]

	pos := "big_blind"
	if seat == s.DealerPosition {
		pos = "dealer"
	}
	verbs := make([]string, 0, len(legal.Verbs))
	for _, v := range legal.Verbs {
		verbs = append(verbs, string(v))
	}

	return Observation{
		HandID:     s.GameID,
		HandNumber: s.HandNumber,
		Player:     string(p.ID),
		Position:   pos,
		Street:     string(s.Stage),
		HoleCards:  cardsToStr(p.Hand),
		Board:      cardsToStr(s.CommunityCards),
		Stacks:     map[string]int{"hero": p.Chips, "villain": o.Chips},
		Blinds:     map[string]int{"sb": s.SmallBlind, "bb": s.BigBlind},
		Pot:        s.Pot,
		ToCall:     legal.ToCall,
		MinRaiseTo: legal.MinRaiseTo,
		MaxRaiseTo: legal.MaxRaiseTo,
		Legal:      verbs,
		HistoryLen: len(s.History),
	}
}

func cardsToStr(cs []engine.Card) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return out
}

// Validate checks an action strictly against the observation. The engine
// itself coerces instead of rejecting; this is for clients that want to
// know their choice was off the menu.
func Validate(o Observation, a ActionOut) error {
	ok := false
	for _, la := range o.Legal {
		if la == a.Action {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("illegal action %q (legals: %v)", a.Action, o.Legal)
	}
	if a.Action == string(engine.Raise) {
		if a.Amount == nil {
			return fmt.Errorf("raise requires amount")
		}
		if *a.Amount < o.MinRaiseTo || *a.Amount > o.MaxRaiseTo {
			return fmt.Errorf("raise amount %d out of bounds [%d, %d]", *a.Amount, o.MinRaiseTo, o.MaxRaiseTo)
		}
	}
	return nil
}

// Decode parses a JSON action, e.g. {"action":"raise","amount":60}, and
// checks its shape: a known verb, and an amount with every raise.
func Decode(b []byte) (ActionOut, error) {
	var a ActionOut
	if err := json.Unmarshal(b, &a); err != nil {
		return ActionOut{}, fmt.Errorf("decode action: %w", err)
	}
	switch engine.Verb(a.Action) {
	case engine.Fold, engine.Check, engine.Call:
	case engine.Raise:
		if a.Amount == nil {
			return ActionOut{}, fmt.Errorf("decode action: raise requires amount")
		}
	default:
		return ActionOut{}, fmt.Errorf("decode action: unknown action %q", a.Action)
	}
	return a, nil
}

// Agent drives one seat.
type Agent interface {
	Name() string
	Act(o Observation) ActionOut
}

// Random picks uniformly among the legal verbs and, when raising, a
// uniform target inside the raise bounds.
type Random struct {
	rng *rand.Rand
}

func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) Name() string { return "random" }

func (r *Random) Act(o Observation) ActionOut {
	if len(o.Legal) == 0 {
		return ActionOut{Action: string(engine.Check)}
	}
	act := o.Legal[r.rng.Intn(len(o.Legal))]
	out := ActionOut{Action: act}
	if act == string(engine.Raise) {
		amt := o.MinRaiseTo
		if span := o.MaxRaiseTo - o.MinRaiseTo; span > 0 {
			amt += r.rng.Intn(span + 1)
		}
		out.Amount = &amt
	}
	return out
}

// CallingStation never folds and never raises.
type CallingStation struct{}

func (CallingStation) Name() string { return "calling-station" }

func (CallingStation) Act(o Observation) ActionOut {
	if o.ToCall > 0 {
		return ActionOut{Action: string(engine.Call)}
	}
	return ActionOut{Action: string(engine.Check)}
}

// ByName returns a fresh driver; seed only matters for "random".
func ByName(name string, seed int64) (Agent, error) {
	switch name {
	case "random":
		return NewRandom(seed), nil
	case "call", "calling-station":
		return CallingStation{}, nil
	}
	return nil, fmt.Errorf("unknown agent %q", name)
}
