package physics

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MaxWarpFactor bounds the warp command.
	MaxWarpFactor = 10
	// warpUnit converts a warp factor into speed units.
	warpUnit = 1000.0
	// impulseUnit is the speed reached at full impulse.
	impulseUnit = 1000.0
)

var (
	// ErrUnknownCommand signals a navigation verb outside the supported set.
	ErrUnknownCommand = errors.New("unknown navigation command")
	// ErrInvalidWarp signals a warp factor outside the ship envelope.
	ErrInvalidWarp = errors.New("invalid warp factor")
	// ErrInvalidImpulse signals an impulse percentage outside 1-100.
	ErrInvalidImpulse = errors.New("invalid impulse power")
)

// CommandKind enumerates the navigation verbs.
type CommandKind string

const (
	CommandWarp    CommandKind = "warp"
	CommandImpulse CommandKind = "impulse"
	CommandRotate  CommandKind = "rotate"
	CommandStop    CommandKind = "stop"
)

// ParseCommandKind maps a textual verb onto the closed command set.
func ParseCommandKind(raw string) (CommandKind, error) {
	switch kind := CommandKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case CommandWarp, CommandImpulse, CommandRotate, CommandStop:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, raw)
	}
}

// NavigationCommand carries one helm order.
type NavigationCommand struct {
	Kind    CommandKind `json:"kind"`
	Warp    int         `json:"warp,omitempty"`
	Impulse int         `json:"impulse,omitempty"`
	Heading float64     `json:"heading,omitempty"`
	// MaxWarp is the class limit; zero falls back to MaxWarpFactor.
	MaxWarp int `json:"max_warp,omitempty"`
}

// WarpSpeed converts a warp factor into a target speed.
func WarpSpeed(factor, maxWarp int) (float64, error) {
	limit := MaxWarpFactor
	if maxWarp > 0 && maxWarp < limit {
		limit = maxWarp
	}
	if factor < 1 || factor > limit {
		return 0, fmt.Errorf("%w: %d (limit %d)", ErrInvalidWarp, factor, limit)
	}
	return float64(factor) * warpUnit, nil
}

// ImpulseSpeed converts an impulse percentage into a target speed.
func ImpulseSpeed(percent int) (float64, error) {
	if percent < 1 || percent > 100 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidImpulse, percent)
	}
	return float64(percent) / 100 * impulseUnit, nil
}

// ApplyNavigation validates the command and returns the adjusted state.
// Invalid commands leave the state untouched.
func ApplyNavigation(s MovementState, cmd NavigationCommand) (MovementState, error) {
	switch cmd.Kind {
	case CommandWarp:
		target, err := WarpSpeed(cmd.Warp, cmd.MaxWarp)
		if err != nil {
			return s, err
		}
		return SetSpeed(s, target), nil
	case CommandImpulse:
		target, err := ImpulseSpeed(cmd.Impulse)
		if err != nil {
			return s, err
		}
		return SetSpeed(s, target), nil
	case CommandRotate:
		return Rotate(s, cmd.Heading), nil
	case CommandStop:
		return Stop(s), nil
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
	}
}
