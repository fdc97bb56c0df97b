package engine

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"
)

const (
	rankChars = "  23456789TJQKA"
	suitChars = "shdc"
)

// Card is an immutable playing card. Rank runs 2..14 with the ace high,
// Suit is one of 's', 'h', 'd', 'c'.
type Card struct {
	Rank int
	Suit byte
}

func (c Card) String() string {
	if !c.Valid() {
		return "??"
	}
	return fmt.Sprintf("%c%c", rankChars[c.Rank], c.Suit)
}

func (c Card) Valid() bool {
	return c.Rank >= 2 && c.Rank <= 14 && strings.IndexByte(suitChars, c.Suit) >= 0
}

type cardJSON struct {
	Rank string `json:"rank"`
	Suit string `json:"suit"`
}

// MarshalJSON writes the card as {"rank":"A","suit":"s"}.
func (c Card) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid card rank=%d suit=%q", c.Rank, c.Suit)
	}
	return json.Marshal(cardJSON{Rank: string(rankChars[c.Rank]), Suit: string(c.Suit)})
}

func (c *Card) UnmarshalJSON(b []byte) error {
	var raw cardJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseCard(raw.Rank + raw.Suit)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCard reads the two-character form, e.g. "As" or "Td".
func ParseCard(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if len(s) != 2 {
		return Card{}, fmt.Errorf("parse card %q: want 2 characters", s)
	}
	r := strings.IndexByte(rankChars, strings.ToUpper(s[:1])[0])
	if r < 2 {
		return Card{}, fmt.Errorf("parse card %q: bad rank", s)
	}
	suit := strings.ToLower(s[1:])[0]
	if strings.IndexByte(suitChars, suit) < 0 {
		return Card{}, fmt.Errorf("parse card %q: bad suit", s)
	}
	return Card{Rank: r, Suit: suit}, nil
}

func ParseCards(ss ...string) ([]Card, error) {
	out := make([]Card, 0, len(ss))
	for _, s := range ss {
		c, err := ParseCard(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// NewDeck returns a uniformly shuffled standard deck. Cards are dealt by
// popping from the end.
func NewDeck(r *rand.Rand) []Card {
	deck := make([]Card, 0, 52)
	for rnk := 2; rnk <= 14; rnk++ {
		for s := 0; s < len(suitChars); s++ {
			deck = append(deck, Card{Rank: rnk, Suit: suitChars[s]})
		}
	}
	for i := len(deck) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
	return deck
}

// newRand seeds a private source; a zero seed falls back to the clock.
func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

func cardsString(cs []Card) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
