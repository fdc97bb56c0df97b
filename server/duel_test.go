package main

import (
	"bytes"
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enigma-holdem/server/engine"
	"enigma-holdem/server/judge"
)

func smallDuel() duelPlan {
	cfg := engine.ClassicConfig()
	cfg.StartingChips = 400
	return duelPlan{cfg: cfg, hands: 60, tables: 3, parallel: 2, user: "random", bot: "call", seed: 77, judge: judge.New()}
}

func TestRunDuelIsZeroSum(t *testing.T) {
	res, err := runDuel(context.Background(), smallDuel(), nil)
	require.NoError(t, err)

	u, b := res.Players[engine.User], res.Players[engine.Bot]
	assert.Equal(t, "random", u.Agent)
	assert.Equal(t, "calling-station", b.Agent)
	assert.Equal(t, 180, u.Overall.Hands)
	assert.Equal(t, 180, b.Overall.Hands)
	assert.Equal(t, 0, u.Overall.NetChips+b.Overall.NetChips)
	assert.Equal(t, u.Overall.Ties, b.Overall.Ties)
	assert.Equal(t, 180, u.Overall.Wins+b.Overall.Wins+u.Overall.Ties)
	assert.Equal(t, 180, u.Dealer.Hands+u.BigBlind.Hands)
	assert.Len(t, u.NetBB, 180)

	// A calling station never raises or folds.
	assert.Zero(t, b.Overall.Aggr)
	assert.Zero(t, b.Overall.Folds)
	assert.Zero(t, b.Overall.PFR)

	// The station calls every river bet and checks behind otherwise.
	assert.Positive(t, b.Overall.JudgeTotal)
	assert.LessOrEqual(t, b.Overall.JudgeTop, b.Overall.JudgeTotal)
	assert.Equal(t, u.Overall.JudgeTotal, u.Dealer.JudgeTotal+u.BigBlind.JudgeTotal)

	assert.Equal(t, 180, res.Ratings.Elo.Games)
	assert.InDelta(t, 3000.0, res.Ratings.Elo.A+res.Ratings.Elo.B, 1e-6)
	assert.Equal(t, 3, res.Ratings.User.Games)
	assert.Equal(t, 3, res.Ratings.Bot.Games)
}

func TestRunDuelWithoutJudge(t *testing.T) {
	plan := smallDuel()
	plan.judge = nil
	res, err := runDuel(context.Background(), plan, nil)
	require.NoError(t, err)
	assert.Zero(t, res.Players[engine.User].Overall.JudgeTotal)
	assert.Zero(t, res.Players[engine.Bot].Overall.JudgeTotal)
}

func TestRunDuelIsDeterministic(t *testing.T) {
	a, err := runDuel(context.Background(), smallDuel(), nil)
	require.NoError(t, err)
	plan := smallDuel()
	plan.parallel = 0
	b, err := runDuel(context.Background(), plan, nil)
	require.NoError(t, err)
	assert.Equal(t, a.Players[engine.User].Overall, b.Players[engine.User].Overall)
	assert.Equal(t, a.Players[engine.Bot].Overall, b.Players[engine.Bot].Overall)
	assert.Equal(t, a.Ratings.Elo, b.Ratings.Elo)
}

func TestRunDuelErrors(t *testing.T) {
	plan := smallDuel()
	plan.user = "shark"
	_, err := runDuel(context.Background(), plan, nil)
	assert.Error(t, err)

	plan = smallDuel()
	plan.tables = 0
	_, err = runDuel(context.Background(), plan, nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = runDuel(ctx, smallDuel(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrintSummaryAndParticipants(t *testing.T) {
	res, err := runDuel(context.Background(), smallDuel(), nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	printSummary(&buf, res, 20, 100, rand.New(rand.NewSource(1)))
	out := buf.String()
	assert.Contains(t, out, "user random")
	assert.Contains(t, out, "bot  calling-station")
	assert.Contains(t, out, "bb/100=")
	assert.Contains(t, out, "river judge top=")
	assert.Contains(t, out, "elo=")

	parts := participants(res)
	require.Len(t, parts, 2)
	assert.Equal(t, "bot", parts[0].Player)
	assert.Equal(t, "user", parts[1].Player)
	assert.Equal(t, res.Players[engine.User].Overall.NetChips, parts[1].NetChips)
	assert.Equal(t, res.Ratings.Elo.A, parts[1].Elo)
	assert.Equal(t, res.Ratings.Bot.Rating, parts[0].Glicko)
}

func TestRebuyRefillsOnlyEmptyStacks(t *testing.T) {
	assert.Equal(t, [2]int{400, 800}, rebuy([2]int{0, 800}, 400))
	assert.Equal(t, [2]int{1500, 400}, rebuy([2]int{1500, 0}, 400))
	assert.Equal(t, [2]int{300, 500}, rebuy([2]int{300, 500}, 400))
}

func TestRunDuelBustedSeatRebuysAlone(t *testing.T) {
	// Short stacks against a station force busts; the table keeps the
	// winner's chips, so the per-hand chip check still holds.
	plan := smallDuel()
	plan.cfg.StartingChips = 60
	plan.hands = 200
	res, err := runDuel(context.Background(), plan, nil)
	require.NoError(t, err)
	u, b := res.Players[engine.User], res.Players[engine.Bot]
	assert.Equal(t, 600, u.Overall.Hands)
	assert.Equal(t, 0, u.Overall.NetChips+b.Overall.NetChips)
}

func TestSeedStream(t *testing.T) {
	a, b := newSeedStream(1), newSeedStream(1)
	for i := 0; i < 5; i++ {
		assert.Equal(t, a.next(), b.next())
	}
	assert.NotEqual(t, newSeedStream(1).next(), newSeedStream(2).next())
}
