package physics

import (
	"errors"
	"math"
	"testing"

	"github.com/talktojer/ge-sub000/internal/galaxy"
)

func TestApplyNavigationCommands(t *testing.T) {
	state := NewMovementState(galaxy.Coordinate{}, 0)

	next, err := ApplyNavigation(state, NavigationCommand{Kind: CommandWarp, Warp: 4})
	if err != nil {
		t.Fatalf("warp: %v", err)
	}
	if next.TargetSpeed != 4000 {
		t.Fatalf("expected warp 4 target 4000, got %.0f", next.TargetSpeed)
	}

	next, err = ApplyNavigation(next, NavigationCommand{Kind: CommandImpulse, Impulse: 50})
	if err != nil || next.TargetSpeed != 500 {
		t.Fatalf("expected impulse 50 target 500, got %.0f (%v)", next.TargetSpeed, err)
	}

	next, err = ApplyNavigation(next, NavigationCommand{Kind: CommandRotate, Heading: -45})
	if err != nil || next.Heading != 315 {
		t.Fatalf("expected heading 315, got %.2f (%v)", next.Heading, err)
	}

	next, err = ApplyNavigation(next, NavigationCommand{Kind: CommandStop})
	if err != nil || next.TargetSpeed != 0 {
		t.Fatalf("expected stop target 0, got %.0f (%v)", next.TargetSpeed, err)
	}
}

func TestApplyNavigationRejectsInvalidCommands(t *testing.T) {
	state := NewMovementState(galaxy.Coordinate{X: 3}, 90)
	cases := []struct {
		cmd  NavigationCommand
		want error
	}{
		{NavigationCommand{Kind: "hyperjump"}, ErrUnknownCommand},
		{NavigationCommand{Kind: CommandWarp, Warp: 11}, ErrInvalidWarp},
		{NavigationCommand{Kind: CommandWarp, Warp: 6, MaxWarp: 5}, ErrInvalidWarp},
		{NavigationCommand{Kind: CommandImpulse, Impulse: 0}, ErrInvalidImpulse},
	}
	for _, tc := range cases {
		next, err := ApplyNavigation(state, tc.cmd)
		if !errors.Is(err, tc.want) {
			t.Fatalf("command %+v: expected %v, got %v", tc.cmd, tc.want, err)
		}
		if next != state {
			t.Fatalf("command %+v mutated state", tc.cmd)
		}
	}
	if _, err := ParseCommandKind("WARP"); err != nil {
		t.Fatalf("expected case insensitive parse, got %v", err)
	}
}

func TestPursuitAndEvasionHeadings(t *testing.T) {
	self := NewMovementState(galaxy.Coordinate{}, 0)
	target := NewMovementState(galaxy.Coordinate{X: 1, Y: 0}, 0)
	if got := PursuitHeading(self, target); math.Abs(got-90) > 1e-9 {
		t.Fatalf("expected pursuit heading 90, got %.2f", got)
	}
	//1.- A moving target pulls the lead point along its course.
	target.Speed = 10000
	if got := PursuitHeading(self, target); !(got > 0 && got < 90) {
		t.Fatalf("expected lead heading between 0 and 90, got %.2f", got)
	}
	if got := EvasionHeading(galaxy.Coordinate{}, galaxy.Coordinate{X: 0, Y: -1}); got != 180 {
		t.Fatalf("expected evasion heading 180, got %.2f", got)
	}
	if got := OrbitHeading(galaxy.Coordinate{}, galaxy.Coordinate{X: 1, Y: 0}); got != 180 {
		t.Fatalf("expected orbit heading 180, got %.2f", got)
	}
}
