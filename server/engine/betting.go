package engine

import "fmt"

// LegalActions is what the seat to act may choose. MinRaiseTo and
// MaxRaiseTo are absolute current-bet targets and are zero when raising
// is not offered.
type LegalActions struct {
	Player     PlayerID `json:"player"`
	Verbs      []Verb   `json:"legal_actions"`
	ToCall     int      `json:"to_call"`
	MinRaiseTo int      `json:"min_raise_to"`
	MaxRaiseTo int      `json:"max_raise_to"`
}

func (l LegalActions) Allows(v Verb) bool {
	for _, x := range l.Verbs {
		if x == v {
			return true
		}
	}
	return false
}

// Legal lists the offered verbs for id. Nothing is offered to a seat that
// is not on turn or once the hand is over.
func (g *Game) Legal(id PlayerID) LegalActions {
	s := &g.state
	out := LegalActions{Player: id}
	seat, ok := s.Seat(id)
	if !ok {
		return out
	}
	out.ToCall = s.toCall(seat)
	if s.Over() || s.CurrentPlayerID != id {
		return out
	}
	if out.ToCall > 0 {
		out.Verbs = append(out.Verbs, Fold, Call)
	} else {
		out.Verbs = append(out.Verbs, Check)
	}
	if g.canRaise(seat) {
		out.Verbs = append(out.Verbs, Raise)
		out.MinRaiseTo, out.MaxRaiseTo = g.raiseBounds(seat)
	}
	return out
}

// canRaise: under the per-street cap, chips beyond the call, and an
// opponent who still has chips behind.
func (g *Game) canRaise(seat int) bool {
	s := &g.state
	if s.Over() {
		return false
	}
	if g.cfg.MaxRaisesPerStreet > 0 && s.RaisesThisRound >= g.cfg.MaxRaisesPerStreet {
		return false
	}
	p := &s.Players[seat]
	opp := &s.Players[1-seat]
	return p.Chips > s.toCall(seat) && !opp.Folded && opp.Chips > 0
}

// raiseBounds returns the legal raise-to interval for seat.
func (g *Game) raiseBounds(seat int) (lo, hi int) {
	s := &g.state
	p := &s.Players[seat]
	toCall := s.toCall(seat)

	lo = p.CurrentBet + max(s.BigBlind, 2*toCall)
	hi = p.CurrentBet + p.Chips
	if g.cfg.PotMultiplier > 0 {
		potCap := p.CurrentBet + toCall + int(float64(s.Pot)*g.cfg.PotMultiplier)
		hi = min(hi, potCap)
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

// resolve coerces verb into the nearest legal one and clamps a raise
// target. The returned target is only meaningful for Raise.
func (g *Game) resolve(seat int, verb Verb, amount int) (Verb, int) {
	toCall := g.state.toCall(seat)
	passive := Check
	if toCall > 0 {
		passive = Call
	}
	switch verb {
	case Fold:
		if toCall == 0 {
			return Check, 0
		}
		return Fold, 0
	case Raise:
		if !g.canRaise(seat) {
			return passive, 0
		}
		lo, hi := g.raiseBounds(seat)
		target := min(max(amount, lo), hi)
		if target <= g.state.CurrentBetToMatch {
			return passive, 0
		}
		return Raise, target
	}
	return passive, 0
}

// Apply submits one action for id. It fails without touching the state
// when the hand is over, the player is unknown or not on turn, or the verb
// is not one of fold/check/call/raise. Out-of-range raise amounts are
// clamped, never rejected.
func (g *Game) Apply(id PlayerID, verb Verb, amount int) (GameState, error) {
	s := &g.state
	if s.Over() {
		return g.State(), ErrGameOver
	}
	seat, ok := s.Seat(id)
	if !ok {
		return g.State(), fmt.Errorf("%w: %q", ErrUnknownPlayer, id)
	}
	if id != s.CurrentPlayerID {
		return g.State(), fmt.Errorf("%w: %s to act", ErrInvalidTurn, s.CurrentPlayerID)
	}
	if !verb.valid() {
		return g.State(), fmt.Errorf("%w: %q", ErrUnknownVerb, verb)
	}

	p := &s.Players[seat]
	s.Players[1-seat].LastAction = ""
	applied, target := g.resolve(seat, verb, amount)
	act := Action{Player: id, Stage: s.Stage, Verb: applied}

	switch applied {
	case Fold:
		p.Folded = true
		p.LastAction = "Fold"
	case Check:
		p.LastAction = "Check"
	case Call:
		act.Amount = g.commit(p, s.toCall(seat))
		p.LastAction = "Call"
	case Raise:
		act.Amount = g.commit(p, target-p.CurrentBet)
		act.To = p.CurrentBet
		s.CurrentBetToMatch = p.CurrentBet
		s.LastRaiserID = id
		s.RaisesThisRound++
		for i := range s.Players {
			if i != seat && !s.Players[i].Folded {
				s.Players[i].HasActed = false
			}
		}
		p.LastAction = fmt.Sprintf("Raise to $%d", p.CurrentBet)
	}
	p.HasActed = true
	s.History = append(s.History, act)

	g.log.Debug("action", "game", s.GameID, "player", id, "requested", verb,
		"applied", applied, "amount", act.Amount, "pot", s.Pot, "stage", s.Stage)

	g.settle(1 - seat)
	return g.State(), nil
}

// settle runs after every transition: it ends the hand on a fold, hands
// the turn to the next seat while the street is open, and otherwise closes
// the street, advancing (or running out the board) until someone must act
// or the hand is decided. prefer is the seat that acts next if it can.
func (g *Game) settle(prefer int) {
	s := &g.state
	for {
		if s.activeCount() == 1 {
			g.awardUncontested()
			return
		}
		if !g.bettingClosed() {
			s.CurrentPlayerID = s.Players[g.nextToAct(prefer)].ID
			return
		}
		g.returnUncalled()
		if s.Stage == River {
			g.showdown()
			return
		}
		g.advanceStage()
		// Post-flop the dealer acts first on every street.
		prefer = s.DealerPosition
	}
}

// bettingClosed is the round-completion test. All-in players (no chips
// behind) never act and count as matched. With a single seat still able
// to act and nothing owed, no further betting is possible.
func (g *Game) bettingClosed() bool {
	s := &g.state
	actionable := 0
	for i := range s.Players {
		p := &s.Players[i]
		if p.Folded || p.Chips == 0 {
			continue
		}
		actionable++
		if p.CurrentBet < s.CurrentBetToMatch {
			return false
		}
	}
	if actionable <= 1 {
		return true
	}
	for i := range s.Players {
		p := &s.Players[i]
		if !p.Folded && !p.HasActed {
			return false
		}
	}
	return !s.BigBlindOptionPending()
}

func (g *Game) nextToAct(prefer int) int {
	s := &g.state
	for _, i := range [2]int{prefer, 1 - prefer} {
		p := &s.Players[i]
		if p.Folded || p.Chips == 0 {
			continue
		}
		if !p.HasActed || p.CurrentBet < s.CurrentBetToMatch {
			return i
		}
	}
	return prefer
}

// returnUncalled gives back the part of a bet the all-in opponent could
// not match.
func (g *Game) returnUncalled() {
	s := &g.state
	if s.activeCount() != 2 {
		return
	}
	hi, lo := &s.Players[0], &s.Players[1]
	if lo.CurrentBet > hi.CurrentBet {
		hi, lo = lo, hi
	}
	excess := hi.CurrentBet - lo.CurrentBet
	if excess <= 0 {
		return
	}
	hi.CurrentBet -= excess
	hi.Chips += excess
	s.Pot -= excess
	s.CurrentBetToMatch = hi.CurrentBet
	g.log.Debug("uncalled bet returned", "game", s.GameID, "player", hi.ID, "amount", excess)
}
