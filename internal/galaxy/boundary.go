package galaxy

import "math"

// Boundary keeps coordinates inside [-Max, Max] by wrapping or clamping.
type Boundary struct {
	Max  float64
	Wrap bool
}

// DefaultBoundary wraps at UniverseMax.
func DefaultBoundary() Boundary {
	return Boundary{Max: UniverseMax, Wrap: true}
}

// Apply returns the coordinate folded back into the galaxy. Non-finite axes fold to the centre.
func (b Boundary) Apply(c Coordinate) Coordinate {
	limit := b.Max
	if !(limit > boundaryMargin) {
		limit = UniverseMax
	}
	if b.Wrap {
		return Coordinate{X: wrapAxis(c.X, limit), Y: wrapAxis(c.Y, limit)}
	}
	return Coordinate{X: clampAxis(c.X, limit), Y: clampAxis(c.Y, limit)}
}

// Contains reports whether a coordinate already lies inside the galaxy.
func (b Boundary) Contains(c Coordinate) bool {
	limit := b.Max
	if !(limit > boundaryMargin) {
		limit = UniverseMax
	}
	return c.X >= -limit && c.X <= limit && c.Y >= -limit && c.Y <= limit
}

func wrapAxis(value, limit float64) float64 {
	if !finite(value) {
		return 0
	}
	if value >= -limit && value <= limit {
		return value
	}
	//1.- Fold by the full galaxy width so the value re-enters from the opposite edge.
	span := 2 * limit
	folded := math.Mod(value+limit, span)
	if folded < 0 {
		folded += span
	}
	return folded - limit
}

func clampAxis(value, limit float64) float64 {
	if math.IsNaN(value) {
		return 0
	}
	edge := limit - boundaryMargin
	if value > edge {
		return edge
	}
	if value < -edge {
		return -edge
	}
	return value
}
