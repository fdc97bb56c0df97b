package engine

import "fmt"

// Config parameterizes the one betting engine. MaxRaisesPerStreet of 0
// allows unlimited raises; PotMultiplier of 0 removes the pot limit so only
// the stack caps a raise.
type Config struct {
	SmallBlind         int     `json:"small_blind"`
	BigBlind           int     `json:"big_blind"`
	StartingChips      int     `json:"starting_chips"`
	MaxRaisesPerStreet int     `json:"max_raises_per_street"`
	PotMultiplier      float64 `json:"pot_multiplier"`
}

// ClassicConfig is the plain engine: 10/20 blinds, no raise caps.
func ClassicConfig() Config {
	return Config{SmallBlind: 10, BigBlind: 20, StartingChips: 10000}
}

// ShapedConfig is the training engine: three raises per street, raises
// capped at twice the live pot.
func ShapedConfig() Config {
	return Config{
		SmallBlind:         10,
		BigBlind:           20,
		StartingChips:      10000,
		MaxRaisesPerStreet: 3,
		PotMultiplier:      2.0,
	}
}

// ConfigByName resolves the preset names used by the CLI and HTTP layer.
func ConfigByName(name string) (Config, bool) {
	switch name {
	case "", "classic":
		return ClassicConfig(), true
	case "shaped":
		return ShapedConfig(), true
	}
	return Config{}, false
}

func (c Config) Validate() error {
	switch {
	case c.SmallBlind < 0 || c.BigBlind < c.SmallBlind:
		return fmt.Errorf("%w: blinds sb=%d bb=%d", ErrInvalidConfig, c.SmallBlind, c.BigBlind)
	case c.StartingChips < 0:
		return fmt.Errorf("%w: starting chips %d", ErrInvalidConfig, c.StartingChips)
	case c.MaxRaisesPerStreet < 0:
		return fmt.Errorf("%w: max raises per street %d", ErrInvalidConfig, c.MaxRaisesPerStreet)
	case c.PotMultiplier < 0:
		return fmt.Errorf("%w: pot multiplier %g", ErrInvalidConfig, c.PotMultiplier)
	}
	return nil
}
