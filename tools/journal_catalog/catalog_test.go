package journalcatalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/talktojer/ge-sub000/internal/replay"
)

func TestListCollectsClosedSessions(t *testing.T) {
	dir := t.TempDir()
	clock := func() time.Time { return time.Date(2024, 7, 10, 15, 0, 0, 0, time.UTC) }

	for _, session := range []string{"bravo", "alpha"} {
		writer, _, err := replay.NewWriter(dir, session, clock)
		if err != nil {
			t.Fatalf("NewWriter: %v", err)
		}
		writer.SetHeaderMetadata("seed-"+session, replay.Parameters{"lock_range": 150000})
		if err := writer.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	//1.- A session that never closed has no header and stays out of the catalog.
	if _, _, err := replay.NewWriter(dir, "charlie", clock); err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	entries, err := List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Header.SessionID != "alpha" || entry.Header.Seed != "seed-alpha" {
		t.Fatalf("unexpected first entry: %+v", entry.Header)
	}
	if entry.ManifestPath != filepath.Join(filepath.Dir(entry.HeaderPath), "manifest.json") {
		t.Fatalf("unexpected manifest path: %q", entry.ManifestPath)
	}

	payload, err := MarshalEntries(entries)
	if err != nil {
		t.Fatalf("MarshalEntries: %v", err)
	}
	if len(payload) == 0 {
		t.Fatalf("expected JSON payload to be non-empty")
	}
}

func TestListRejectsFiles(t *testing.T) {
	if _, err := List(""); err == nil {
		t.Fatalf("expected empty root to be rejected")
	}
	if _, err := List(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected missing root to be rejected")
	}
}
