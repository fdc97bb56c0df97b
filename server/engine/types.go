package engine

import "errors"

type PlayerID string

// The two fixed identities. User sits in seat 0, Bot in seat 1.
const (
	User PlayerID = "user"
	Bot  PlayerID = "bot"
)

// Tie is the winner value for a split pot.
const Tie = "tie"

type Stage string

const (
	PreFlop  Stage = "pre-flop"
	Flop     Stage = "flop"
	Turn     Stage = "turn"
	River    Stage = "river"
	Showdown Stage = "showdown"
)

// boardSize is the community card count for each stage.
func (s Stage) boardSize() int {
	switch s {
	case Flop:
		return 3
	case Turn:
		return 4
	case River, Showdown:
		return 5
	default:
		return 0
	}
}

type Verb string

const (
	Fold  Verb = "fold"
	Check Verb = "check"
	Call  Verb = "call"
	Raise Verb = "raise"
)

func (v Verb) valid() bool {
	switch v {
	case Fold, Check, Call, Raise:
		return true
	}
	return false
}

// Action is one applied decision, after coercion and clamping.
type Action struct {
	Player PlayerID `json:"player"`
	Stage  Stage    `json:"stage"`
	Verb   Verb     `json:"action"`
	Amount int      `json:"amount,omitempty"` // chips moved by this action
	To     int      `json:"to,omitempty"`     // current bet after a raise
}

// RandomDealer asks StartHand to pick the dealer seat with the game RNG.
const RandomDealer = -1

var (
	ErrInvalidTurn    = errors.New("not your turn to act")
	ErrGameOver       = errors.New("hand is over")
	ErrHandInProgress = errors.New("hand still in progress")
	ErrNegativeChips  = errors.New("chips must be >= 0")
	ErrUnknownPlayer  = errors.New("unknown player")
	ErrUnknownVerb    = errors.New("unknown action")
	ErrInvalidConfig  = errors.New("invalid config")
)
