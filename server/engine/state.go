package engine

type Player struct {
	ID         PlayerID `json:"id"`
	Chips      int      `json:"chips"`
	Hand       []Card   `json:"hand"`
	CurrentBet int      `json:"current_bet"`
	HasActed   bool     `json:"has_acted"`
	IsAllIn    bool     `json:"is_all_in"`
	Folded     bool     `json:"folded"`
	LastAction string   `json:"last_action,omitempty"`
}

// GameState is the snapshot of one hand. Pot holds every chip committed
// this hand, the open street's CurrentBet values included, so
// sum(Chips)+Pot is constant for the whole hand.
type GameState struct {
	GameID            string           `json:"game_id"`
	HandNumber        int              `json:"hand_number"`
	Players           [2]Player        `json:"players"`
	CommunityCards    []Card           `json:"community_cards"`
	Pot               int              `json:"pot"`
	Stage             Stage            `json:"current_stage"`
	CurrentPlayerID   PlayerID         `json:"current_player_id,omitempty"`
	CurrentBetToMatch int              `json:"current_bet_to_match"`
	LastRaiserID      PlayerID         `json:"last_raiser_id,omitempty"`
	RaisesThisRound   int              `json:"raises_this_round"`
	SmallBlind        int              `json:"small_blind"`
	BigBlind          int              `json:"big_blind"`
	DealerPosition    int              `json:"dealer_position"`
	Winner            string           `json:"winner,omitempty"`
	GameOver          bool             `json:"game_over"`
	Payouts           map[PlayerID]int `json:"payouts,omitempty"`
	History           []Action         `json:"history"`
}

// Seat returns the seat index of id.
func (s GameState) Seat(id PlayerID) (int, bool) {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

// Player returns a copy of the player with id.
func (s GameState) Player(id PlayerID) (Player, bool) {
	i, ok := s.Seat(id)
	if !ok {
		return Player{}, false
	}
	return s.Players[i], true
}

// Opponent returns the id of the other seat.
func (s GameState) Opponent(id PlayerID) PlayerID {
	if s.Players[0].ID == id {
		return s.Players[1].ID
	}
	return s.Players[0].ID
}

func (s GameState) ToCall(id PlayerID) int {
	i, ok := s.Seat(id)
	if !ok {
		return 0
	}
	return s.toCall(i)
}

func (s GameState) toCall(seat int) int {
	if d := s.CurrentBetToMatch - s.Players[seat].CurrentBet; d > 0 {
		return d
	}
	return 0
}

// TotalChips is sum(chips) + pot, the quantity conserved within a hand.
func (s GameState) TotalChips() int {
	total := s.Pot
	for i := range s.Players {
		total += s.Players[i].Chips
	}
	return total
}

// Over reports whether the hand has a winner.
func (s GameState) Over() bool { return s.Winner != "" }

// BigBlindSeat is the seat opposite the dealer.
func (s GameState) BigBlindSeat() int { return 1 - s.DealerPosition }

// BigBlindOptionPending reports that the big blind still holds the right to
// act pre-flop because nobody has raised.
func (s GameState) BigBlindOptionPending() bool {
	if s.Stage != PreFlop || s.RaisesThisRound > 0 || s.Over() {
		return false
	}
	bb := &s.Players[s.BigBlindSeat()]
	return !bb.Folded && bb.Chips > 0 && !bb.HasActed
}

func (s GameState) activeCount() int {
	n := 0
	for i := range s.Players {
		if !s.Players[i].Folded {
			n++
		}
	}
	return n
}

// Clone deep-copies the state so callers never alias engine slices.
func (s GameState) Clone() GameState {
	out := s
	for i := range out.Players {
		out.Players[i].Hand = append([]Card(nil), s.Players[i].Hand...)
		p := &out.Players[i]
		p.IsAllIn = !p.Folded && p.Chips == 0 && len(p.Hand) > 0 && !s.Over()
	}
	out.CommunityCards = append([]Card(nil), s.CommunityCards...)
	out.History = append([]Action(nil), s.History...)
	if s.Payouts != nil {
		out.Payouts = make(map[PlayerID]int, len(s.Payouts))
		for k, v := range s.Payouts {
			out.Payouts[k] = v
		}
	}
	return out
}

// Redacted hides the hole cards of every player except viewer. Cards stay
// visible once the hand reached showdown.
func (s GameState) Redacted(viewer PlayerID) GameState {
	out := s.Clone()
	if out.Stage == Showdown {
		return out
	}
	for i := range out.Players {
		if out.Players[i].ID != viewer {
			out.Players[i].Hand = nil
		}
	}
	return out
}
