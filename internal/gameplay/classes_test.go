package gameplay

import "testing"

func TestClassesMatchExpectedValues(t *testing.T) {
	//1.- Retrieve the cached catalog to validate the embedded payload.
	catalog := Classes()
	if len(catalog.Classes) != 12 {
		t.Fatalf("expected 12 ship classes, got %d", len(catalog.Classes))
	}
	//2.- Spot check documented constants so accidental edits trigger failures.
	cruiser, ok := catalog.Lookup(5)
	if !ok {
		t.Fatalf("star cruiser missing")
	}
	if cruiser.Name != "Star Cruiser" || cruiser.Type != ShipTypeUser {
		t.Fatalf("unexpected class 5: %+v", cruiser)
	}
	if cruiser.MaxPoints != 5000 || cruiser.MaxTons != 3000 || cruiser.DamageFactor != 90 {
		t.Fatalf("unexpected class 5 combat parameters: %+v", cruiser)
	}
	if !cruiser.HasCloaking || cruiser.MaxWarp != 25 || cruiser.MaxSpeed() != 25000 {
		t.Fatalf("unexpected class 5 movement parameters: %+v", cruiser)
	}
	freighter, _ := catalog.Lookup(3)
	if freighter.DamageFactor != 200 {
		t.Fatalf("unexpected freighter damage factor %.0f", freighter.DamageFactor)
	}
}

func TestClassesGroupByType(t *testing.T) {
	catalog := Classes()
	if got := len(catalog.OfType(ShipTypeUser)); got != 8 {
		t.Fatalf("expected 8 user classes, got %d", got)
	}
	cyborgs := catalog.OfType(ShipTypeCyborg)
	if len(cyborgs) != 2 || cyborgs[0].Number != 9 || cyborgs[1].Number != 10 {
		t.Fatalf("unexpected cyborg classes %+v", cyborgs)
	}
	droids := catalog.OfType(ShipTypeDroid)
	if len(droids) != 2 || droids[1].Name != "Scout Droid" {
		t.Fatalf("unexpected droid classes %+v", droids)
	}
}

func TestClassesReturnsDefensiveCopy(t *testing.T) {
	first := Classes()
	delete(first.Classes, 1)
	if _, ok := Lookup(1); !ok {
		t.Fatalf("mutating a clone must not affect the cached catalog")
	}
}

func TestParseCatalogRejectsDuplicates(t *testing.T) {
	payload := []byte("classes:\n  - number: 1\n    name: A\n  - number: 1\n    name: B\n")
	if _, err := parseCatalog(payload); err == nil {
		t.Fatalf("expected duplicate class error")
	}
}
