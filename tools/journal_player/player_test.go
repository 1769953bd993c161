package journalplayer

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/talktojer/ge-sub000/internal/events"
	"github.com/talktojer/ge-sub000/internal/replay"
)

func writeSession(t *testing.T) string {
	t.Helper()
	base := time.Date(2024, 7, 10, 15, 0, 0, 0, time.UTC)
	now := base
	clock := func() time.Time { return now }

	writer, _, err := replay.NewWriter(t.TempDir(), "Integration", clock)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	writer.SetHeaderMetadata("seed-int", nil)

	joined := events.Lifecycle(events.KindLifecycle, 1, base, "alpha", "joined")
	fire := events.New(events.KindCombat, 2, base.Add(time.Second))
	fire.ShipID, fire.TargetID = "beta", "alpha"
	other := events.New(events.KindCombat, 3, base.Add(2*time.Second))
	other.ShipID, other.TargetID = "gamma", "delta"
	for _, event := range []events.Event{joined, fire, other} {
		if err := writer.AppendEvent(event); err != nil {
			t.Fatalf("append event: %v", err)
		}
	}
	for tick, durationMs := range []float64{4, 9} {
		payload, _ := json.Marshal(replay.LoopFrame{Loop: "movement", Iteration: uint64(tick + 1), DurationMs: durationMs, Processed: 2})
		if err := writer.AppendFrame(uint64(tick+1), "movement", payload); err != nil {
			t.Fatalf("append frame: %v", err)
		}
		now = now.Add(time.Second)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return writer.Directory()
}

func TestInspectFiltersByShip(t *testing.T) {
	dir := writeSession(t)

	report, err := Inspect(filepath.Join(dir, "manifest.json"), Filter{ShipID: "alpha"})
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if report.Header == nil || report.Header.Seed != "seed-int" {
		t.Fatalf("expected header with seed, got %+v", report.Header)
	}
	if len(report.Events) != 2 {
		t.Fatalf("expected the two events involving alpha, got %d", len(report.Events))
	}
	if report.Counts[events.KindLifecycle] != 1 || report.Counts[events.KindCombat] != 1 {
		t.Fatalf("unexpected counts %+v", report.Counts)
	}
	movement := report.Loops["movement"]
	if movement.Frames != 2 || movement.Processed != 4 || movement.MaxMs != 9 {
		t.Fatalf("unexpected loop summary %+v", movement)
	}
}

func TestInspectFiltersByKind(t *testing.T) {
	report, err := Inspect(writeSession(t), Filter{Kinds: []events.Kind{events.KindCombat}})
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if len(report.Events) != 2 {
		t.Fatalf("expected both combat events, got %d", len(report.Events))
	}
	kinds := report.Kinds()
	if len(kinds) != 1 || kinds[0] != events.KindCombat {
		t.Fatalf("unexpected kinds %v", kinds)
	}
}

func TestInspectRequiresPath(t *testing.T) {
	if _, err := Inspect("", Filter{}); err == nil {
		t.Fatalf("expected missing path to fail")
	}
}
