package game

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Difficulty selects the machine's heuristic.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case DifficultyEasy, DifficultyNormal, DifficultyHard:
		return d, nil
	case "":
		return DifficultyNormal, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownDifficulty, s)
	}
}

// AIState is what the machine can see before choosing.
type AIState struct {
	OwnBullets      int
	OpponentBullets int
	OpponentHistory []Action // most recent last
	RoundsPlayed    int
}

// Opponent is the scripted single-player adversary. Its choices always pass
// the same ledger check as a human move.
type Opponent struct {
	mu     sync.Mutex
	rng    *rand.Rand
	ledger Ledger
}

func NewOpponent(rng *rand.Rand, maxBullets int) *Opponent {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Opponent{rng: rng, ledger: NewLedger(maxBullets)}
}

// ChooseAction picks a legal action for the given difficulty.
func (o *Opponent) ChooseAction(d Difficulty, s AIState) Action {
	o.mu.Lock()
	defer o.mu.Unlock()

	var a Action
	switch d {
	case DifficultyEasy:
		a = o.easy(s)
	case DifficultyHard:
		a = o.hard(s)
	default:
		a = o.normal(s)
	}
	return o.legalize(s.OwnBullets, a)
}

func (o *Opponent) easy(s AIState) Action {
	if s.OwnBullets == 0 {
		return o.pick(0.5, ActionReload, ActionShield)
	}
	r := o.rng.Float64()
	switch {
	case r > 0.66:
		return ActionShoot
	case r > 0.33:
		return ActionShield
	}
	return ActionReload
}

func (o *Opponent) normal(s AIState) Action {
	if s.OwnBullets == 0 {
		return o.pick(0.5, ActionReload, ActionShield)
	}
	r := o.rng.Float64()
	switch {
	case r > 0.6:
		return ActionShoot
	case r > 0.3:
		return ActionShield
	}
	return ActionReload
}

// hard reads the opponent's ammo and the last few moves.
func (o *Opponent) hard(s AIState) Action {
	if s.OwnBullets == 0 {
		if s.OpponentBullets == 0 {
			return ActionReload
		}
		return ActionShield
	}

	recent := s.OpponentHistory
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	var last Action
	if len(recent) > 0 {
		last = recent[len(recent)-1]
	}
	counts := map[Action]int{}
	for _, a := range recent {
		counts[a]++
	}

	if s.OpponentBullets == 0 {
		// they have to reload; a fresh reload means a shot is coming
		if last == ActionReload {
			return ActionShield
		}
		return o.pick(0.7, ActionShoot, ActionReload)
	}

	if s.OpponentBullets >= 2 && s.OwnBullets >= 2 {
		if counts[ActionShoot] >= 2 {
			return o.pick(0.3, ActionShield, ActionShoot)
		}
		if counts[ActionShield] >= 2 {
			return o.pick(0.5, ActionReload, ActionShoot)
		}
	}

	if len(recent) >= 2 {
		prev := recent[len(recent)-2]
		switch {
		case prev == ActionShoot && last == ActionShoot:
			return o.pick(0.4, ActionShield, ActionShoot)
		case prev == ActionShoot && last == ActionShield:
			return o.pick(0.5, ActionReload, ActionShoot)
		}
	}

	r := o.rng.Float64()
	if s.OwnBullets >= 3 {
		switch {
		case r > 0.5:
			return ActionShoot
		case r > 0.3:
			return ActionShield
		}
		return ActionReload
	}
	switch {
	case r > 0.6:
		return ActionShield
	case r > 0.3:
		return ActionReload
	}
	return ActionShoot
}

// pick returns first when a uniform draw exceeds threshold, second otherwise.
func (o *Opponent) pick(threshold float64, first, second Action) Action {
	if o.rng.Float64() > threshold {
		return first
	}
	return second
}

// legalize projects a heuristic pick onto the legal set for bullets.
func (o *Opponent) legalize(bullets int, a Action) Action {
	if o.ledger.Legal(bullets, a) {
		return a
	}
	switch a {
	case ActionShoot:
		if o.ledger.Legal(bullets, ActionReload) {
			return ActionReload
		}
	case ActionReload:
		if o.ledger.Legal(bullets, ActionShoot) {
			return ActionShoot
		}
	}
	return ActionShield
}
