package galaxy

import (
	"math"
	"testing"
	"time"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSectorOfFloorsNegativeCoordinates(t *testing.T) {
	got := SectorOf(Coordinate{X: -0.5, Y: 12.99})
	if got != (Sector{X: -1, Y: 12}) {
		t.Fatalf("unexpected sector %+v", got)
	}
	if !SameSector(Coordinate{X: 3.1, Y: 4.2}, Coordinate{X: 3.9, Y: 4.0}) {
		t.Fatalf("expected coordinates to share a sector")
	}
	if SameSector(Coordinate{X: 3.1, Y: 4.2}, Coordinate{X: 2.9, Y: 4.0}) {
		t.Fatalf("expected coordinates in different sectors")
	}
}

func TestRangeScalesToParsecs(t *testing.T) {
	a := Coordinate{X: 0, Y: 0}
	b := Coordinate{X: 3, Y: 4}
	if !approx(Distance(a, b), 5) {
		t.Fatalf("unexpected distance %v", Distance(a, b))
	}
	if !approx(Range(a, b), 50000) {
		t.Fatalf("unexpected range %v", Range(a, b))
	}
	x, y := OffsetInSector(Coordinate{X: 10.25, Y: -0.5})
	if !approx(x, 2500) || !approx(y, 5000) {
		t.Fatalf("unexpected sector offset %v,%v", x, y)
	}
}

func TestHeadingAndBearing(t *testing.T) {
	origin := Coordinate{}
	cases := []struct {
		to      Coordinate
		heading float64
	}{
		{Coordinate{X: 0, Y: -1}, 0},
		{Coordinate{X: 1, Y: 0}, 90},
		{Coordinate{X: 0, Y: 1}, 180},
		{Coordinate{X: -1, Y: 0}, 270},
	}
	for _, tc := range cases {
		if got := HeadingTo(origin, tc.to); !approx(got, tc.heading) {
			t.Fatalf("heading to %+v: got %v want %v", tc.to, got, tc.heading)
		}
	}
	if got := Bearing(origin, Coordinate{X: 1, Y: 0}, 0); !approx(got, 90) {
		t.Fatalf("expected starboard bearing 90, got %v", got)
	}
	if got := Bearing(origin, Coordinate{X: -1, Y: 0}, 0); !approx(got, -90) {
		t.Fatalf("expected port bearing -90, got %v", got)
	}
	if got := Bearing(origin, Coordinate{X: 0, Y: 1}, 0); !approx(got, 180) {
		t.Fatalf("expected astern bearing 180, got %v", got)
	}
	if got := Bearing(origin, Coordinate{X: 1, Y: 0}, 90); !approx(got, 0) {
		t.Fatalf("expected dead-ahead bearing 0, got %v", got)
	}
}

func TestBoundaryWrapAndClamp(t *testing.T) {
	wrap := Boundary{Max: 300, Wrap: true}
	got := wrap.Apply(Coordinate{X: 301, Y: -305})
	if !approx(got.X, -299) || !approx(got.Y, 295) {
		t.Fatalf("unexpected wrapped coordinate %+v", got)
	}
	if !wrap.Contains(got) {
		t.Fatalf("wrapped coordinate escaped bounds: %+v", got)
	}

	clamp := Boundary{Max: 300}
	got = clamp.Apply(Coordinate{X: 450, Y: -299.5})
	if got.X != 298 || got.Y != -298 {
		t.Fatalf("unexpected clamped coordinate %+v", got)
	}
	inside := Coordinate{X: 12, Y: -40}
	if clamp.Apply(inside) != inside {
		t.Fatalf("clamp must not move coordinates inside the galaxy")
	}
}

func TestBoundaryFoldsDistantAndNonFiniteValues(t *testing.T) {
	wrap := DefaultBoundary()
	done := make(chan Coordinate, 1)
	go func() {
		done <- wrap.Apply(Coordinate{X: 1e11 + 0.5, Y: math.Inf(1)})
	}()
	select {
	case got := <-done:
		if !wrap.Contains(got) || got.Y != 0 {
			t.Fatalf("expected folded coordinate inside the galaxy, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("wrapping a distant coordinate did not return")
	}
	if got := wrap.Apply(Coordinate{X: math.NaN(), Y: math.Inf(-1)}); got != (Coordinate{}) {
		t.Fatalf("expected non-finite axes at the centre, got %+v", got)
	}
	if got := (Boundary{Max: 300}).Apply(Coordinate{X: math.NaN(), Y: math.Inf(1)}); got.X != 0 || got.Y != 298 {
		t.Fatalf("unexpected clamped coordinate %+v", got)
	}
	if (Coordinate{X: math.NaN()}).Finite() || !(Coordinate{X: 1, Y: 2}).Finite() {
		t.Fatalf("Finite misreports coordinates")
	}
}

func TestNormalizeHeading(t *testing.T) {
	if got := NormalizeHeading(-90); got != 270 {
		t.Fatalf("expected 270, got %v", got)
	}
	if got := NormalizeHeading(720); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := NormalizeBearing(270); got != -90 {
		t.Fatalf("expected -90, got %v", got)
	}
}
