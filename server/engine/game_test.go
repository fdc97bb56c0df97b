package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

// tieEval makes every showdown a split pot.
var tieEval = EvaluatorFunc(func(board, hole []Card) Strength { return 1 })

// table wraps a Game with the chip total it must conserve.
type table struct {
	*Game
	t     *testing.T
	total int
}

func newTable(t *testing.T, cfg Config, user, bot, dealer int, eval HandEvaluator) *table {
	t.Helper()
	g, err := StartHand("test", cfg, eval, StartOptions{
		UserChips: intp(user),
		BotChips:  intp(bot),
		Dealer:    dealer,
		Seed:      7,
	})
	require.NoError(t, err)
	tb := &table{Game: g, t: t, total: user + bot}
	tb.check()
	return tb
}

func (tb *table) act(id PlayerID, v Verb, amount int) GameState {
	tb.t.Helper()
	s, err := tb.Apply(id, v, amount)
	require.NoError(tb.t, err)
	tb.check()
	return s
}

// toAct applies v for whichever seat is on turn.
func (tb *table) toAct(v Verb, amount int) GameState {
	tb.t.Helper()
	return tb.act(tb.State().CurrentPlayerID, v, amount)
}

func (tb *table) check() {
	tb.t.Helper()
	requireInvariants(tb.t, tb.Game, tb.total)
}

// requireInvariants checks what must hold after every transition.
func requireInvariants(t *testing.T, g *Game, startTotal int) {
	t.Helper()
	s := g.State()
	total := 0
	for _, p := range s.Players {
		require.GreaterOrEqual(t, p.Chips, 0, "chips of %s", p.ID)
		require.GreaterOrEqual(t, p.CurrentBet, 0)
		total += p.Chips
	}
	require.Equal(t, startTotal, total+s.Pot, "chip conservation")
	require.Len(t, s.CommunityCards, s.Stage.boardSize(), "board size at %s", s.Stage)
	if g.cfg.MaxRaisesPerStreet > 0 {
		require.LessOrEqual(t, s.RaisesThisRound, g.cfg.MaxRaisesPerStreet)
	}
	if !s.Over() {
		hi := 0
		for _, p := range s.Players {
			if !p.Folded && p.CurrentBet > hi {
				hi = p.CurrentBet
			}
		}
		require.Equal(t, hi, s.CurrentBetToMatch, "bet to match")
		require.NotEmpty(t, s.CurrentPlayerID)
	} else {
		require.Zero(t, s.Pot)
	}
}

func TestScenarioBlindsCallCheckToFlop(t *testing.T) {
	cfg := ClassicConfig()
	g := newTable(t, cfg, 1000, 1000, 0, nil)

	s := g.State()
	assert.Equal(t, 990, s.Players[0].Chips)
	assert.Equal(t, 10, s.Players[0].CurrentBet)
	assert.Equal(t, 980, s.Players[1].Chips)
	assert.Equal(t, 20, s.Players[1].CurrentBet)
	assert.Equal(t, 30, s.Pot)
	assert.Equal(t, PreFlop, s.Stage)
	assert.Equal(t, User, s.CurrentPlayerID)
	assert.Len(t, s.Players[0].Hand, 2)
	assert.Len(t, s.Players[1].Hand, 2)
	assert.Empty(t, s.CommunityCards)

	s = g.act(User, Call, 0)
	assert.Equal(t, 980, s.Players[0].Chips)
	assert.Equal(t, 20, s.Players[0].CurrentBet)
	assert.Equal(t, 40, s.Pot)
	assert.Equal(t, PreFlop, s.Stage)
	assert.Equal(t, Bot, s.CurrentPlayerID)
	assert.True(t, s.BigBlindOptionPending())

	s = g.act(Bot, Check, 0)
	assert.Equal(t, Flop, s.Stage)
	assert.Equal(t, 40, s.Pot)
	assert.Zero(t, s.CurrentBetToMatch)
	assert.Zero(t, s.Players[0].CurrentBet)
	assert.Zero(t, s.Players[1].CurrentBet)
	assert.Len(t, s.CommunityCards, 3)
	assert.Equal(t, User, s.CurrentPlayerID)
	assert.Empty(t, s.LastRaiserID)
}

func TestStartHandValidation(t *testing.T) {
	_, err := StartHand("g", ClassicConfig(), nil, StartOptions{UserChips: intp(-1), BotChips: intp(10)})
	assert.ErrorIs(t, err, ErrNegativeChips)

	_, err = StartHand("g", ClassicConfig(), nil, StartOptions{StartingChips: 100, Dealer: 2})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = StartHand("g", Config{SmallBlind: 20, BigBlind: 10}, nil, StartOptions{StartingChips: 100})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRandomDealerFollowsSeed(t *testing.T) {
	seen := map[int]bool{}
	for seed := int64(1); seed <= 40; seed++ {
		a, err := StartHand("g", ClassicConfig(), nil, StartOptions{StartingChips: 100, Dealer: RandomDealer, Seed: seed})
		require.NoError(t, err)
		b, err := StartHand("g", ClassicConfig(), nil, StartOptions{StartingChips: 100, Dealer: RandomDealer, Seed: seed})
		require.NoError(t, err)
		require.Equal(t, a.State().DealerPosition, b.State().DealerPosition)
		seen[a.State().DealerPosition] = true
	}
	assert.Len(t, seen, 2)
}

func TestDealingUsesDistinctCards(t *testing.T) {
	g := newTable(t, ClassicConfig(), 1000, 1000, 1, tieEval)
	for !g.State().Over() {
		g.toAct(Call, 0)
	}
	s := g.State()
	seen := map[Card]bool{}
	all := append(append(append([]Card{}, s.CommunityCards...), s.Players[0].Hand...), s.Players[1].Hand...)
	require.Len(t, all, 9)
	for _, c := range all {
		require.True(t, c.Valid())
		require.False(t, seen[c], "duplicate %s", c)
		seen[c] = true
	}
	// 4 hole cards, 3 burns and 5 board cards left the deck.
	assert.Len(t, g.deck, 52-12)
}

func TestNextHandRotatesDealerAndCarriesStacks(t *testing.T) {
	g := newTable(t, ClassicConfig(), 1000, 1000, 0, nil)

	_, err := g.NextHand()
	require.ErrorIs(t, err, ErrHandInProgress)

	g.act(User, Raise, 100)
	s := g.act(Bot, Fold, 0)
	require.Equal(t, string(User), s.Winner)
	require.Equal(t, 1020, s.Players[0].Chips)
	require.Equal(t, 980, s.Players[1].Chips)

	s, err = g.NextHand()
	require.NoError(t, err)
	assert.Equal(t, 2, s.HandNumber)
	assert.Equal(t, 1, s.DealerPosition)
	assert.Equal(t, Bot, s.CurrentPlayerID)
	assert.Equal(t, 1000, s.Players[0].Chips) // big blind from 1020
	assert.Equal(t, 970, s.Players[1].Chips)  // small blind from 980
	assert.Equal(t, 30, s.Pot)
	assert.Empty(t, s.Winner)
	assert.False(t, s.GameOver)
	assert.Nil(t, s.Payouts)
	assert.Empty(t, s.History)
	assert.Empty(t, s.CommunityCards)
	g.check()
}

func TestDeterministicReplay(t *testing.T) {
	script := []struct {
		verb   Verb
		amount int
	}{
		{Call, 0}, {Check, 0}, // pre-flop
		{Raise, 60}, {Call, 0}, // flop
		{Check, 0}, {Raise, 500}, {Raise, 2000}, {Call, 0}, // turn
		{Check, 0}, {Check, 0}, // river
	}
	play := func() GameState {
		g, err := StartHand("replay", ShapedConfig(), nil, StartOptions{StartingChips: 5000, Dealer: RandomDealer, Seed: 99})
		require.NoError(t, err)
		for _, step := range script {
			if g.State().Over() {
				break
			}
			_, err := g.Apply(g.State().CurrentPlayerID, step.verb, step.amount)
			require.NoError(t, err)
		}
		s, err := g.NextHand()
		require.NoError(t, err)
		return s
	}
	assert.Equal(t, play(), play())
}

func TestStateIsASnapshot(t *testing.T) {
	g := newTable(t, ClassicConfig(), 1000, 1000, 0, nil)
	s := g.State()
	s.Players[0].Hand[0] = Card{Rank: 2, Suit: 'c'}
	s.Players[0].Chips = 0
	s.History = append(s.History, Action{Player: Bot})

	fresh := g.State()
	assert.NotEqual(t, s.Players[0].Chips, fresh.Players[0].Chips)
	assert.Empty(t, fresh.History)
}

func TestRedactedHidesOpponentUntilShowdown(t *testing.T) {
	g := newTable(t, ClassicConfig(), 1000, 1000, 0, tieEval)
	r := g.State().Redacted(User)
	assert.Len(t, r.Players[0].Hand, 2)
	assert.Nil(t, r.Players[1].Hand)

	for !g.State().Over() {
		g.toAct(Check, 0)
	}
	r = g.State().Redacted(User)
	assert.Len(t, r.Players[1].Hand, 2)
}

// TestRandomPlayKeepsInvariants drives many hands with arbitrary verbs and
// amounts and checks the invariants after every step.
func TestRandomPlayKeepsInvariants(t *testing.T) {
	verbs := []Verb{Fold, Check, Call, Raise, Raise}
	for _, cfg := range []Config{ClassicConfig(), ShapedConfig()} {
		for seed := int64(1); seed <= 60; seed++ {
			r := rand.New(rand.NewSource(seed))
			g, err := StartHand("prop", cfg, nil, StartOptions{
				UserChips: intp(r.Intn(3000)),
				BotChips:  intp(r.Intn(3000)),
				Dealer:    RandomDealer,
				Seed:      seed,
			})
			require.NoError(t, err)
			total := g.State().TotalChips()
			requireInvariants(t, g, total)

			for hand := 0; hand < 5; hand++ {
				steps := 0
				for !g.State().Over() {
					s := g.State()
					amount := r.Intn(4000) - 500
					_, err := g.Apply(s.CurrentPlayerID, verbs[r.Intn(len(verbs))], amount)
					require.NoError(t, err)
					requireInvariants(t, g, total)
					steps++
					require.Less(t, steps, 500, "hand did not terminate")
				}
				require.NotEmpty(t, g.State().Winner)

				_, err = g.NextHand()
				require.NoError(t, err)
				requireInvariants(t, g, total)
			}
		}
	}
}
