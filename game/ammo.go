package game

// Ledger validates actions against a bullet count and applies their effect.
type Ledger struct {
	MaxBullets int
}

func NewLedger(maxBullets int) Ledger {
	if maxBullets < 1 {
		maxBullets = DefaultMaxBullets
	}
	return Ledger{MaxBullets: maxBullets}
}

// Legal reports whether action may be played holding bullets.
func (l Ledger) Legal(bullets int, action Action) bool {
	switch action {
	case ActionShoot:
		return bullets >= 1
	case ActionReload:
		return bullets < l.MaxBullets
	case ActionShield:
		return true
	}
	return false
}

// LegalActions returns the actions playable holding bullets, in Actions order.
func (l Ledger) LegalActions(bullets int) []Action {
	out := make([]Action, 0, len(Actions))
	for _, a := range Actions {
		if l.Legal(bullets, a) {
			out = append(out, a)
		}
	}
	return out
}

// Apply returns the bullet count after playing action.
func (l Ledger) Apply(bullets int, action Action) (int, error) {
	if !action.Valid() {
		return bullets, ErrInvalidAction
	}
	if !l.Legal(bullets, action) {
		return bullets, &IllegalActionError{Action: action, Bullets: bullets}
	}
	switch action {
	case ActionShoot:
		return bullets - 1, nil
	case ActionReload:
		return min(l.MaxBullets, bullets+1), nil
	}
	return bullets, nil
}
