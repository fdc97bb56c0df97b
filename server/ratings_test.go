package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEloHandIsZeroSum(t *testing.T) {
	e := NewElo(1500, 16)
	dA, dB := e.UpdateHand(1, 0, 40, 20)
	assert.InDelta(t, 8.0, dA, 1e-9)
	assert.InDelta(t, -dA, dB, 1e-9)
	assert.InDelta(t, 3000.0, e.A+e.B, 1e-9)
	assert.Equal(t, 1, e.Games)

	// A bigger pot moves the ratings further.
	small, big := NewElo(1500, 16), NewElo(1500, 16)
	ds, _ := small.UpdateHand(1, 0, 40, 20)
	db, _ := big.UpdateHand(1, 0, 400, 20)
	assert.Greater(t, db, ds)
}

func TestPotScaleClamps(t *testing.T) {
	assert.Equal(t, 1.0, potScale(0, 20))
	assert.Equal(t, 0.5, potScale(10, 20))
	assert.Equal(t, 3.0, potScale(10000, 20))
}

func TestGlicko2ReferencePeriod(t *testing.T) {
	p := &Glicko2{Rating: 1500, RD: 200, Volatility: 0.06}
	p.UpdateBatch([]OpponentResult{
		{Opp: &Glicko2{Rating: 1400, RD: 30}, S: 1},
		{Opp: &Glicko2{Rating: 1550, RD: 100}, S: 0},
		{Opp: &Glicko2{Rating: 1700, RD: 300}, S: 0},
	}, 0.5)
	assert.InDelta(t, 1464.06, p.Rating, 0.1)
	assert.InDelta(t, 151.52, p.RD, 0.1)
	assert.InDelta(t, 0.05999, p.Volatility, 1e-4)
	assert.Equal(t, 1, p.Games)
}

func TestGlicko2AgeWidensRD(t *testing.T) {
	p := NewGlicko2()
	p.RD = 50
	p.Age()
	assert.Greater(t, p.RD, 50.0)
	assert.Equal(t, 1500.0, p.Rating)
}

func TestScoreFromMargin(t *testing.T) {
	assert.Equal(t, 0.5, ScoreFromMargin(100, 0, 1))
	assert.Equal(t, 0.5, ScoreFromMargin(0, 1000, 1))
	assert.Greater(t, ScoreFromMargin(500, 1000, 1), 0.5)
	assert.Less(t, ScoreFromMargin(-500, 1000, 1), 0.5)
}

func TestRateTableFavoursWinner(t *testing.T) {
	r := NewRatings()
	hands := make([]handResult, 20)
	for i := range hands {
		hands[i] = handResult{UserNet: 30, Pot: 60}
	}
	r.RateTable(hands, 20, 1000)
	assert.Greater(t, r.Elo.A, r.Elo.B)
	assert.Equal(t, 20, r.Elo.Games)
	assert.Greater(t, r.User.Rating, r.Bot.Rating)
	assert.Less(t, r.User.RD, 350.0)
}
