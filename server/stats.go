package main

import (
	"math"
	"math/rand"
	"sort"

	"enigma-holdem/server/engine"
	"enigma-holdem/server/judge"
)

type SeatStats struct {
	Hands    int
	Wins     int
	Ties     int
	VPIP     int
	PFR      int
	SawFlop  int
	WTSD     int
	WSD      int
	Checks   int
	Calls    int
	Aggr     int
	Folds    int
	NetChips int

	JudgeTop   int
	JudgeTotal int
	JudgeGapBB float64
}

func (s *SeatStats) AF() float64 {
	if s.Calls == 0 {
		if s.Aggr == 0 {
			return 0
		}
		return float64(s.Aggr)
	}
	return float64(s.Aggr) / float64(s.Calls)
}

func (s *SeatStats) BBPer100(bb int) float64 {
	h := s.Hands
	if h == 0 || bb <= 0 {
		return 0
	}
	return (float64(s.NetChips) / float64(bb)) / (float64(h) / 100.0)
}

func (s *SeatStats) merge(o SeatStats) {
	s.Hands += o.Hands
	s.Wins += o.Wins
	s.Ties += o.Ties
	s.VPIP += o.VPIP
	s.PFR += o.PFR
	s.SawFlop += o.SawFlop
	s.WTSD += o.WTSD
	s.WSD += o.WSD
	s.Checks += o.Checks
	s.Calls += o.Calls
	s.Aggr += o.Aggr
	s.Folds += o.Folds
	s.NetChips += o.NetChips
	s.JudgeTop += o.JudgeTop
	s.JudgeTotal += o.JudgeTotal
	s.JudgeGapBB += o.JudgeGapBB
}

// PlayerStats splits a player's results by position. NetBB holds the
// per-hand result in big blinds for the bootstrap interval.
type PlayerStats struct {
	Agent    string
	Overall  SeatStats
	Dealer   SeatStats
	BigBlind SeatStats
	NetBB    []float64
}

func (m *PlayerStats) seatBucket(dealer bool) *SeatStats {
	if dealer {
		return &m.Dealer
	}
	return &m.BigBlind
}

// RecordHand adds one finished hand for id. start is id's stack before
// the blinds were posted.
func (m *PlayerStats) RecordHand(s engine.GameState, id engine.PlayerID, start int) {
	seat, ok := s.Seat(id)
	if !ok || !s.Over() {
		return
	}
	var h SeatStats
	h.Hands = 1
	switch s.Winner {
	case string(id):
		h.Wins = 1
	case engine.Tie:
		h.Ties = 1
	}

	foldedPre := false
	for _, a := range s.History {
		if a.Player != id {
			continue
		}
		switch a.Verb {
		case engine.Check:
			h.Checks++
		case engine.Call:
			h.Calls++
		case engine.Raise:
			h.Aggr++
		case engine.Fold:
			h.Folds++
		}
		if a.Stage == engine.PreFlop {
			switch a.Verb {
			case engine.Call, engine.Raise:
				h.VPIP = 1
			case engine.Fold:
				foldedPre = true
			}
			if a.Verb == engine.Raise {
				h.PFR = 1
			}
		}
	}
	if !foldedPre && len(s.CommunityCards) >= 3 {
		h.SawFlop = 1
	}
	if s.Stage == engine.Showdown && !s.Players[seat].Folded {
		h.WTSD = 1
		h.WSD = h.Wins
	}
	h.NetChips = s.Players[seat].Chips - start

	m.Overall.merge(h)
	m.seatBucket(seat == s.DealerPosition).merge(h)
	if s.BigBlind > 0 {
		m.NetBB = append(m.NetBB, float64(h.NetChips)/float64(s.BigBlind))
	}
}

// RecordVerdict adds one judged river decision, taken from the dealer
// seat when dealer is set.
func (m *PlayerStats) RecordVerdict(v judge.Verdict, dealer bool) {
	var h SeatStats
	h.JudgeTotal = 1
	if v.Top {
		h.JudgeTop = 1
	}
	h.JudgeGapBB = v.GapBB
	m.Overall.merge(h)
	m.seatBucket(dealer).merge(h)
}

func (m *PlayerStats) Merge(o *PlayerStats) {
	if m.Agent == "" {
		m.Agent = o.Agent
	}
	m.Overall.merge(o.Overall)
	m.Dealer.merge(o.Dealer)
	m.BigBlind.merge(o.BigBlind)
	m.NetBB = append(m.NetBB, o.NetBB...)
}

// --------- CI helpers ---------

// WilsonCI95 for Bernoulli win rate using wins/ties/total; a tie counts
// as half a win.
func WilsonCI95(wins, ties, total int) (low, hi float64) {
	if total <= 0 {
		return 0, 1
	}
	z := 1.96
	n := float64(total)
	p := (float64(wins) + 0.5*float64(ties)) / n
	den := 1 + (z*z)/n
	center := p + (z*z)/(2*n)
	half := z * math.Sqrt((p*(1-p))/n+(z*z)/(4*n*n))
	return (center - half) / den, (center + half) / den
}

// BootstrapCI95 for the mean of values (e.g. net big blinds per hand).
func BootstrapCI95(vals []float64, B int, rng *rand.Rand) (low, hi float64) {
	n := len(vals)
	if n == 0 || B <= 1 {
		return 0, 0
	}
	res := make([]float64, B)
	for b := 0; b < B; b++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += vals[rng.Intn(n)]
		}
		res[b] = sum / float64(n)
	}
	sort.Float64s(res)
	l := int(0.025 * float64(B-1))
	h := int(0.975 * float64(B-1))
	return res[l], res[h]
}
