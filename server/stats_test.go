package main

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"enigma-holdem/server/engine"
	"enigma-holdem/server/judge"
)

func TestWilsonCI95(t *testing.T) {
	lo, hi := WilsonCI95(0, 0, 0)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)

	lo, hi = WilsonCI95(50, 0, 100)
	assert.InDelta(t, 0.404, lo, 0.001)
	assert.InDelta(t, 0.596, hi, 0.001)

	// Ties count half.
	lo2, hi2 := WilsonCI95(40, 20, 100)
	assert.InDelta(t, lo, lo2, 1e-9)
	assert.InDelta(t, hi, hi2, 1e-9)

	lo, hi = WilsonCI95(100, 0, 100)
	assert.Less(t, lo, 1.0)
	assert.InDelta(t, 1.0, hi, 1e-9)
}

func TestBootstrapCI95(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	lo, hi := BootstrapCI95(nil, 100, rng)
	assert.Zero(t, lo)
	assert.Zero(t, hi)

	same := []float64{2, 2, 2, 2}
	lo, hi = BootstrapCI95(same, 200, rng)
	assert.Equal(t, 2.0, lo)
	assert.Equal(t, 2.0, hi)

	vals := make([]float64, 400)
	for i := range vals {
		vals[i] = float64(i%2) * 2 // mean 1
	}
	lo, hi = BootstrapCI95(vals, 500, rng)
	assert.Less(t, lo, 1.0)
	assert.Greater(t, hi, 1.0)
	assert.Greater(t, lo, 0.7)
	assert.Less(t, hi, 1.3)
}

func TestSeatStatsRatios(t *testing.T) {
	s := SeatStats{Hands: 200, NetChips: 400, Calls: 4, Aggr: 6}
	assert.InDelta(t, 10.0, s.BBPer100(20), 1e-9)
	assert.InDelta(t, 1.5, s.AF(), 1e-9)
	assert.Zero(t, (&SeatStats{}).BBPer100(20))
	assert.Equal(t, 3.0, (&SeatStats{Aggr: 3}).AF())
}

func TestRecordHand(t *testing.T) {
	g, err := engine.StartHand("s", engine.ClassicConfig(), engine.EvaluatorFunc(func(board, hole []engine.Card) engine.Strength { return 1 }),
		engine.StartOptions{StartingChips: 1000, Dealer: 0, Seed: 1})
	require.NoError(t, err)
	steps := []struct {
		id engine.PlayerID
		v  engine.Verb
		n  int
	}{
		{engine.User, engine.Raise, 60},
		{engine.Bot, engine.Call, 0},
		{engine.User, engine.Check, 0}, {engine.Bot, engine.Check, 0},
		{engine.User, engine.Check, 0}, {engine.Bot, engine.Check, 0},
		{engine.User, engine.Check, 0}, {engine.Bot, engine.Check, 0},
	}
	for _, st := range steps {
		_, err := g.Apply(st.id, st.v, st.n)
		require.NoError(t, err)
	}
	s := g.State()
	require.True(t, s.Over())

	var user, bot PlayerStats
	user.RecordHand(s, engine.User, 1000)
	bot.RecordHand(s, engine.Bot, 1000)

	assert.Equal(t, 1, user.Overall.Hands)
	assert.Equal(t, 1, user.Overall.Ties)
	assert.Equal(t, 1, user.Overall.VPIP)
	assert.Equal(t, 1, user.Overall.PFR)
	assert.Equal(t, 1, user.Overall.SawFlop)
	assert.Equal(t, 1, user.Overall.WTSD)
	assert.Zero(t, user.Overall.WSD)
	assert.Equal(t, 3, user.Overall.Checks)
	assert.Equal(t, 1, user.Dealer.Hands)
	assert.Zero(t, user.BigBlind.Hands)

	assert.Equal(t, 1, bot.Overall.VPIP)
	assert.Zero(t, bot.Overall.PFR)
	assert.Equal(t, 1, bot.BigBlind.Hands)
	assert.Equal(t, []float64{0}, bot.NetBB)

	var total PlayerStats
	total.Merge(&user)
	total.Merge(&user)
	assert.Equal(t, 2, total.Overall.Hands)
	assert.Len(t, total.NetBB, 2)
}

func TestRecordHandFold(t *testing.T) {
	g, err := engine.StartHand("f", engine.ClassicConfig(), nil, engine.StartOptions{StartingChips: 1000, Dealer: 0, Seed: 1})
	require.NoError(t, err)
	s, err := g.Apply(engine.User, engine.Fold, 0)
	require.NoError(t, err)

	var user, bot PlayerStats
	user.RecordHand(s, engine.User, 1000)
	bot.RecordHand(s, engine.Bot, 1000)
	assert.Zero(t, user.Overall.VPIP)
	assert.Equal(t, 1, user.Overall.Folds)
	assert.Equal(t, -10, user.Overall.NetChips)
	assert.Equal(t, 10, bot.Overall.NetChips)
	assert.Equal(t, 1, bot.Overall.Wins)
	assert.Zero(t, bot.Overall.WTSD)
	assert.Zero(t, bot.Overall.SawFlop)
	assert.Equal(t, []float64{0.5}, bot.NetBB)
}

func TestRecordVerdict(t *testing.T) {
	var ps PlayerStats
	ps.RecordVerdict(judge.Verdict{Top: true}, true)
	ps.RecordVerdict(judge.Verdict{GapBB: 2.5}, false)
	assert.Equal(t, 2, ps.Overall.JudgeTotal)
	assert.Equal(t, 1, ps.Overall.JudgeTop)
	assert.InDelta(t, 2.5, ps.Overall.JudgeGapBB, 1e-9)
	assert.Equal(t, 1, ps.Dealer.JudgeTop)
	assert.Equal(t, 1, ps.BigBlind.JudgeTotal)
	assert.Zero(t, ps.Overall.Hands)
}
