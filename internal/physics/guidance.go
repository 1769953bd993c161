package physics

import (
	"math"

	"github.com/talktojer/ge-sub000/internal/galaxy"
)

// PursuitHeading returns the heading that closes on the target, leading it when it moves.
func PursuitHeading(self MovementState, target MovementState) float64 {
	//1.- Estimate how many ticks the chase takes at the pursuer's envelope.
	distance := galaxy.Distance(self.Position, target.Position)
	speed := math.Max(self.Speed, self.MaxSpeed)
	aim := target.Position
	if distance > 0 && speed > 0 && target.Speed > 0 {
		ticks := distance * positionScale / speed
		if ticks > maxLeadTicks {
			ticks = maxLeadTicks
		}
		//2.- Project the target along its own heading for the lead point.
		radians := target.Heading * math.Pi / 180
		aim = galaxy.Coordinate{
			X: target.Position.X + target.Speed*math.Sin(radians)/positionScale*ticks,
			Y: target.Position.Y - target.Speed*math.Cos(radians)/positionScale*ticks,
		}
	}
	return galaxy.HeadingTo(self.Position, aim)
}

// EvasionHeading points directly away from the threat.
func EvasionHeading(self galaxy.Coordinate, threat galaxy.Coordinate) float64 {
	if self == threat {
		return 0
	}
	return galaxy.NormalizeHeading(galaxy.HeadingTo(self, threat) + 180)
}

// OrbitHeading returns a tangent heading that circles the anchor clockwise.
func OrbitHeading(self galaxy.Coordinate, anchor galaxy.Coordinate) float64 {
	if self == anchor {
		return 0
	}
	return galaxy.NormalizeHeading(galaxy.HeadingTo(self, anchor) + 90)
}

const maxLeadTicks = 10.0
