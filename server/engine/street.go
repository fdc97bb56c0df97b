package engine

// advanceStage sweeps the street's bets, resets the round counters and
// reveals the next community cards, each street preceded by one burn.
func (g *Game) advanceStage() {
	s := &g.state
	g.sweep()
	for i := range s.Players {
		if !s.Players[i].Folded {
			s.Players[i].HasActed = false
		}
	}
	s.LastRaiserID = ""
	s.RaisesThisRound = 0

	g.pop() // burn
	switch s.Stage {
	case PreFlop:
		s.CommunityCards = append(s.CommunityCards, g.pop(), g.pop(), g.pop())
		s.Stage = Flop
	case Flop:
		s.CommunityCards = append(s.CommunityCards, g.pop())
		s.Stage = Turn
	case Turn:
		s.CommunityCards = append(s.CommunityCards, g.pop())
		s.Stage = River
	}
	g.log.Debug("street", "game", s.GameID, "stage", s.Stage, "board", cardsString(s.CommunityCards), "pot", s.Pot)
}

// sweep zeroes the per-street bets. The chips already sit in Pot.
func (g *Game) sweep() {
	s := &g.state
	for i := range s.Players {
		s.Players[i].CurrentBet = 0
	}
	s.CurrentBetToMatch = 0
}

// awardUncontested pays the whole pot, both committed bets included, to
// the last player standing. No evaluator call is made.
func (g *Game) awardUncontested() {
	s := &g.state
	for i := range s.Players {
		if !s.Players[i].Folded {
			g.finish(map[int]int{i: s.Pot}, string(s.Players[i].ID))
			return
		}
	}
}

// showdown ranks both hands once each and settles the pot. A split pot
// is divided evenly; the odd chip goes to the dealer, who is out of
// position after the flop.
func (g *Game) showdown() {
	s := &g.state
	s.Stage = Showdown
	u := g.eval.Rank(s.CommunityCards, s.Players[0].Hand)
	b := g.eval.Rank(s.CommunityCards, s.Players[1].Hand)
	switch {
	case u > b:
		g.finish(map[int]int{0: s.Pot}, string(s.Players[0].ID))
	case b > u:
		g.finish(map[int]int{1: s.Pot}, string(s.Players[1].ID))
	default:
		g.finish(splitPot(s.Pot, s.DealerPosition), Tie)
	}
}

// splitPot halves pot between the seats; oddTo receives any remainder.
func splitPot(pot, oddTo int) map[int]int {
	half := pot / 2
	shares := map[int]int{0: half, 1: half}
	shares[oddTo] += pot - 2*half
	return shares
}

func (g *Game) finish(shares map[int]int, winner string) {
	s := &g.state
	g.sweep()
	s.Payouts = make(map[PlayerID]int, len(shares))
	for seat, amt := range shares {
		s.Players[seat].Chips += amt
		s.Payouts[s.Players[seat].ID] = amt
		s.Pot -= amt
	}
	s.Winner = winner
	s.GameOver = true
	s.CurrentPlayerID = ""
	g.log.Debug("hand over", "game", s.GameID, "hand", s.HandNumber, "winner", winner,
		"stage", s.Stage, "payouts", s.Payouts)
}
