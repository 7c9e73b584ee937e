package game

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultWinThreshold = 3
	DefaultMaxBullets   = 5
	DefaultRoundTimeout = 10 * time.Second
	// DefaultRoundLeadIn covers the three step countdown shown before a round.
	DefaultRoundLeadIn = 3 * time.Second
)

// TimeoutPolicy decides how a round ends when its time budget runs out.
type TimeoutPolicy string

const (
	// TimeoutForfeit: a silent participant loses the round and keeps their ammo.
	// If both are silent the round is a tie.
	TimeoutForfeit TimeoutPolicy = "forfeit"
	// TimeoutTie: an expired round always ties.
	TimeoutTie TimeoutPolicy = "tie"
)

func ParseTimeoutPolicy(s string) (TimeoutPolicy, error) {
	switch p := TimeoutPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case TimeoutForfeit, TimeoutTie:
		return p, nil
	case "":
		return TimeoutForfeit, nil
	default:
		return "", fmt.Errorf("unknown timeout policy %q", s)
	}
}

// Config holds the tunable rules of a match.
type Config struct {
	WinThreshold int
	MaxBullets   int
	RoundTimeout time.Duration
	// RoundLeadIn is granted on top of RoundTimeout before a round can
	// expire. Zero means no lead-in.
	RoundLeadIn   time.Duration
	TimeoutPolicy TimeoutPolicy
}

var DefaultConfig = Config{
	WinThreshold:  DefaultWinThreshold,
	MaxBullets:    DefaultMaxBullets,
	RoundTimeout:  DefaultRoundTimeout,
	RoundLeadIn:   DefaultRoundLeadIn,
	TimeoutPolicy: TimeoutForfeit,
}

// RoundBudget is the time a round may stay open once started.
func (c Config) RoundBudget() time.Duration {
	return c.RoundLeadIn + c.RoundTimeout
}

func (c Config) Validate() error {
	if c.WinThreshold < 1 {
		return fmt.Errorf("win threshold must be at least 1, got %d", c.WinThreshold)
	}
	if c.MaxBullets < 1 {
		return fmt.Errorf("max bullets must be at least 1, got %d", c.MaxBullets)
	}
	if c.RoundTimeout <= 0 {
		return fmt.Errorf("round timeout must be positive, got %s", c.RoundTimeout)
	}
	if c.RoundLeadIn < 0 {
		return fmt.Errorf("round lead-in must not be negative, got %s", c.RoundLeadIn)
	}
	if _, err := ParseTimeoutPolicy(string(c.TimeoutPolicy)); err != nil {
		return err
	}
	return nil
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	if c.WinThreshold == 0 {
		c.WinThreshold = DefaultWinThreshold
	}
	if c.MaxBullets == 0 {
		c.MaxBullets = DefaultMaxBullets
	}
	if c.RoundTimeout == 0 {
		c.RoundTimeout = DefaultRoundTimeout
	}
	if c.TimeoutPolicy == "" {
		c.TimeoutPolicy = TimeoutForfeit
	}
	return c
}
