// Package game implements the authoritative rules of the pistola/escudo/recarga duel.
package game

import (
	"fmt"
	"strings"
)

// Action is what a participant plays in a round.
type Action string

const (
	ActionShoot  Action = "shoot"
	ActionShield Action = "shield"
	ActionReload Action = "reload"
)

// Actions lists every action in a stable order.
var Actions = []Action{ActionShoot, ActionShield, ActionReload}

// beats maps an action to the one it defeats.
var beats = map[Action]Action{
	ActionShoot:  ActionReload,
	ActionShield: ActionShoot,
	ActionReload: ActionShield,
}

// spanish names used by the web client
var aliases = map[string]Action{
	"pistola": ActionShoot,
	"escudo":  ActionShield,
	"recarga": ActionReload,
}

func (a Action) Valid() bool {
	_, ok := beats[a]
	return ok
}

func (a Action) String() string { return string(a) }

// ParseAction accepts the canonical names and the client's spanish aliases.
func ParseAction(s string) (Action, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if a := Action(s); a.Valid() {
		return a, nil
	}
	if a, ok := aliases[s]; ok {
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// Winner designates the side that took a round.
type Winner int

const (
	Tie Winner = iota
	WinnerA
	WinnerB
)

func (w Winner) String() string {
	switch w {
	case WinnerA:
		return "a"
	case WinnerB:
		return "b"
	default:
		return "tie"
	}
}

// Swap relabels A and B; Tie is preserved.
func (w Winner) Swap() Winner {
	switch w {
	case WinnerA:
		return WinnerB
	case WinnerB:
		return WinnerA
	}
	return Tie
}

// Resolve compares two actions. Shoot beats Reload, Shield beats Shoot,
// Reload beats Shield, equal actions tie.
func Resolve(a, b Action) Winner {
	if a == b {
		return Tie
	}
	if beats[a] == b {
		return WinnerA
	}
	if beats[b] == a {
		return WinnerB
	}
	return Tie
}

// Beats reports whether first defeats second.
func Beats(first, second Action) bool {
	return Resolve(first, second) == WinnerA
}

func (w Winner) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

func (w *Winner) UnmarshalText(b []byte) error {
	switch string(b) {
	case "a":
		*w = WinnerA
	case "b":
		*w = WinnerB
	case "tie", "":
		*w = Tie
	default:
		return fmt.Errorf("unknown winner %q", b)
	}
	return nil
}
