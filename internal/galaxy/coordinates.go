// Package galaxy models absolute galactic positions, sectors and the geometry between them.
package galaxy

import "math"

const (
	// UniverseMax bounds the galaxy on both axes.
	UniverseMax = 300.0
	// SectorScale converts one coordinate unit into parsecs.
	SectorScale = 10000.0
	// boundaryMargin keeps clamped ships inside the playable edge.
	boundaryMargin = 2.0
)

// Coordinate is an absolute galactic position.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Finite reports whether both axes are real numbers.
func (c Coordinate) Finite() bool {
	return finite(c.X) && finite(c.Y)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Sector is the integer grid cell a coordinate falls into.
type Sector struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// SectorOf returns floor(coordinate) on both axes.
func SectorOf(c Coordinate) Sector {
	return Sector{X: int(math.Floor(c.X)), Y: int(math.Floor(c.Y))}
}

// SameSector reports whether both coordinates share a sector.
func SameSector(a, b Coordinate) bool {
	return SectorOf(a) == SectorOf(b)
}

// OffsetInSector returns the position inside the sector in parsecs.
func OffsetInSector(c Coordinate) (float64, float64) {
	sector := SectorOf(c)
	return (c.X - float64(sector.X)) * SectorScale, (c.Y - float64(sector.Y)) * SectorScale
}

// Distance returns the Euclidean distance in coordinate units.
func Distance(a, b Coordinate) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Range returns the distance between two coordinates in parsecs.
func Range(a, b Coordinate) float64 {
	return Distance(a, b) * SectorScale
}

// NormalizeHeading folds any angle into [0, 360).
func NormalizeHeading(heading float64) float64 {
	if math.IsNaN(heading) || math.IsInf(heading, 0) {
		return 0
	}
	h := math.Mod(heading, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h = 0
	}
	return h
}

// HeadingTo returns the absolute heading from one coordinate to another.
// Heading 0 points toward negative Y and angles grow clockwise.
func HeadingTo(from, to Coordinate) float64 {
	dx := to.X - from.X
	dy := to.Y - from.Y
	if dx == 0 && dy == 0 {
		return 0
	}
	return NormalizeHeading(math.Atan2(dx, -dy) * 180 / math.Pi)
}

// Bearing returns the angle to the target relative to the provided heading in (-180, 180].
func Bearing(from, to Coordinate, heading float64) float64 {
	//1.- Rotate the absolute heading into the observer frame.
	relative := NormalizeHeading(360 - NormalizeHeading(heading) + HeadingTo(from, to))
	//2.- Fold the upper half onto negative angles so port bearings read negative.
	if relative > 180 {
		relative -= 360
	}
	if relative <= -180 {
		relative += 360
	}
	return relative
}

// NormalizeBearing folds any angle into (-180, 180].
func NormalizeBearing(bearing float64) float64 {
	b := NormalizeHeading(bearing)
	if b > 180 {
		b -= 360
	}
	return b
}
