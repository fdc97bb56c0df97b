package engine

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/charmbracelet/log"
)

// StartOptions describe the first hand of a game. UserChips and BotChips
// override StartingChips per seat when non-nil; Dealer is a seat index or
// RandomDealer. A zero Seed draws one from the clock. HandsPlayed continues
// the hand numbering of a resumed session.
type StartOptions struct {
	StartingChips int
	UserChips     *int
	BotChips      *int
	Dealer        int
	Seed          int64
	HandsPlayed   int
}

type Option func(*Game)

// WithLogger routes engine debug output to l.
func WithLogger(l *log.Logger) Option {
	return func(g *Game) { g.log = l }
}

// Game is the heads-up betting engine for one table. It is single-writer:
// callers serialize Apply and NextHand for one Game.
type Game struct {
	cfg   Config
	eval  HandEvaluator
	rng   *rand.Rand
	deck  []Card
	state GameState
	log   *log.Logger
}

// StartHand creates a game, deals the first hand and posts the blinds.
func StartHand(id string, cfg Config, eval HandEvaluator, opts StartOptions, o ...Option) (*Game, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	chips := [2]int{opts.StartingChips, opts.StartingChips}
	if opts.UserChips != nil {
		chips[0] = *opts.UserChips
	}
	if opts.BotChips != nil {
		chips[1] = *opts.BotChips
	}
	for _, c := range chips {
		if c < 0 {
			return nil, fmt.Errorf("start hand %s: %w", id, ErrNegativeChips)
		}
	}
	if opts.Dealer != RandomDealer && opts.Dealer != 0 && opts.Dealer != 1 {
		return nil, fmt.Errorf("start hand %s: %w: dealer seat %d", id, ErrInvalidConfig, opts.Dealer)
	}
	if eval == nil {
		eval = PokerEvaluator{}
	}

	g := &Game{
		cfg:  cfg,
		eval: eval,
		rng:  newRand(opts.Seed),
		log:  log.New(io.Discard),
	}
	for _, fn := range o {
		fn(g)
	}

	dealer := opts.Dealer
	if dealer == RandomDealer {
		dealer = g.rng.Intn(2)
	}
	g.state = GameState{
		GameID:         id,
		HandNumber:     max(opts.HandsPlayed, 0),
		Players:        [2]Player{{ID: User, Chips: chips[0]}, {ID: Bot, Chips: chips[1]}},
		SmallBlind:     cfg.SmallBlind,
		BigBlind:       cfg.BigBlind,
		DealerPosition: dealer,
	}
	g.startHand()
	return g, nil
}

// NextHand starts the following hand with carried-forward stacks and the
// dealer button moved to the other seat.
func (g *Game) NextHand() (GameState, error) {
	if !g.state.Over() {
		return g.State(), ErrHandInProgress
	}
	g.state.DealerPosition = 1 - g.state.DealerPosition
	g.startHand()
	return g.State(), nil
}

// State returns a deep copy of the current hand.
func (g *Game) State() GameState { return g.state.Clone() }

func (g *Game) Config() Config { return g.cfg }

func (g *Game) startHand() {
	s := &g.state
	for i := range s.Players {
		p := &s.Players[i]
		p.Hand = nil
		p.CurrentBet = 0
		p.HasActed = false
		p.Folded = false
		p.LastAction = ""
	}
	s.HandNumber++
	s.CommunityCards = nil
	s.Pot = 0
	s.Stage = PreFlop
	s.CurrentBetToMatch = 0
	s.RaisesThisRound = 0
	s.Winner = ""
	s.GameOver = false
	s.Payouts = nil
	s.History = nil

	g.deck = NewDeck(g.rng)

	sb := &s.Players[s.DealerPosition]
	bb := &s.Players[s.BigBlindSeat()]
	sb.Hand = []Card{g.pop(), g.pop()}
	bb.Hand = []Card{g.pop(), g.pop()}

	g.commit(sb, s.SmallBlind)
	g.commit(bb, s.BigBlind)
	s.LastRaiserID = bb.ID

	g.log.Debug("new hand", "game", s.GameID, "hand", s.HandNumber,
		"dealer", sb.ID, "sb", sb.CurrentBet, "bb", bb.CurrentBet, "pot", s.Pot)

	// Heads-up: the dealer posts the small blind and acts first pre-flop.
	g.settle(s.DealerPosition)
}

func (g *Game) pop() Card {
	c := g.deck[len(g.deck)-1]
	g.deck = g.deck[:len(g.deck)-1]
	return c
}

// commit moves up to amt chips from p's stack into the pot.
func (g *Game) commit(p *Player, amt int) int {
	if amt > p.Chips {
		amt = p.Chips
	}
	if amt < 0 {
		amt = 0
	}
	p.Chips -= amt
	p.CurrentBet += amt
	g.state.Pot += amt
	if p.CurrentBet > g.state.CurrentBetToMatch {
		g.state.CurrentBetToMatch = p.CurrentBet
	}
	return amt
}
