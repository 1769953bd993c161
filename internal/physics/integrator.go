package physics

import (
	"math"

	"github.com/talktojer/ge-sub000/internal/galaxy"
)

const (
	// DefaultMaxSpeed caps ships that do not carry a class specific limit.
	DefaultMaxSpeed = 50000.0
	// DefaultAcceleration is the per tick speed change toward the target.
	DefaultAcceleration = 2000.0
	// DefaultDeceleration mirrors the acceleration when braking.
	DefaultDeceleration = 2000.0
	// positionScale converts speed units into coordinate units per tick.
	positionScale = 65000.0
)

// MovementState captures the kinematic state of a ship for one tick.
type MovementState struct {
	Position     galaxy.Coordinate `json:"position"`
	Heading      float64           `json:"heading"`
	Speed        float64           `json:"speed"`
	TargetSpeed  float64           `json:"target_speed"`
	Acceleration float64           `json:"acceleration"`
	Deceleration float64           `json:"deceleration"`
	MaxSpeed     float64           `json:"max_speed"`
}

// NewMovementState returns a stationary state with default tuning.
func NewMovementState(position galaxy.Coordinate, heading float64) MovementState {
	return MovementState{
		Position:     position,
		Heading:      galaxy.NormalizeHeading(heading),
		Acceleration: DefaultAcceleration,
		Deceleration: DefaultDeceleration,
		MaxSpeed:     DefaultMaxSpeed,
	}
}

func clampSpeed(value, limit float64) float64 {
	//1.- Fall back to the default ceiling when the limit disables the guard.
	if !(limit > 0) {
		limit = DefaultMaxSpeed
	}
	if value < 0 || math.IsNaN(value) {
		return 0
	}
	if value > limit {
		return limit
	}
	return value
}

// Accelerate moves the current speed one step toward the target speed.
func Accelerate(s MovementState) MovementState {
	//1.- Keep the target inside the ship envelope before comparing.
	s.TargetSpeed = clampSpeed(s.TargetSpeed, s.MaxSpeed)
	diff := s.TargetSpeed - s.Speed
	if diff == 0 {
		return s
	}
	//2.- Snap when the remaining gap fits inside a single step.
	rate := s.Acceleration
	if diff < 0 {
		rate = s.Deceleration
	}
	if !(rate > 0) {
		rate = DefaultAcceleration
	}
	if math.Abs(diff) <= rate {
		s.Speed = s.TargetSpeed
		return s
	}
	//3.- Otherwise apply the configured rate in the right direction.
	if diff > 0 {
		s.Speed += rate
	} else {
		s.Speed -= rate
	}
	s.Speed = clampSpeed(s.Speed, s.MaxSpeed)
	return s
}

// Integrate advances the position along the heading using the current speed.
func Integrate(s MovementState, boundary galaxy.Boundary) MovementState {
	//1.- Stationary ships keep their exact position.
	if !(s.Speed > 0) {
		return s
	}
	radians := s.Heading * math.Pi / 180
	//2.- Heading zero points toward negative Y.
	next := galaxy.Coordinate{
		X: s.Position.X + s.Speed*math.Sin(radians)/positionScale,
		Y: s.Position.Y - s.Speed*math.Cos(radians)/positionScale,
	}
	s.Position = boundary.Apply(next)
	return s
}

// Step accelerates and then integrates the state once.
func Step(s MovementState, boundary galaxy.Boundary) MovementState {
	return Integrate(Accelerate(s), boundary)
}

// Rotate turns the ship instantly to the requested heading.
func Rotate(s MovementState, heading float64) MovementState {
	s.Heading = galaxy.NormalizeHeading(heading)
	return s
}

// SetSpeed requests a new target speed inside the ship envelope.
func SetSpeed(s MovementState, target float64) MovementState {
	s.TargetSpeed = clampSpeed(target, s.MaxSpeed)
	return s
}

// Stop requests a full halt.
func Stop(s MovementState) MovementState {
	s.TargetSpeed = 0
	return s
}

// Moving reports whether the ship is travelling or still changing speed.
func Moving(s MovementState) bool {
	return s.Speed > 0 || s.TargetSpeed != s.Speed
}
