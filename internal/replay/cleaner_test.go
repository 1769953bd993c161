package replay

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/talktojer/ge-sub000/internal/logging"
)

func TestCleanerEnforcesMaxSessions(t *testing.T) {
	tmp := t.TempDir()
	now := time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)
	writeSessionDirectory(t, tmp, "alpha-20240715T090000Z", now.Add(-3*time.Hour), 4)
	writeSessionDirectory(t, tmp, "bravo-20240715T100000Z", now.Add(-2*time.Hour), 2)
	writeSessionDirectory(t, tmp, "charlie-20240715T110000Z", now.Add(-time.Hour), 3)
	if err := os.WriteFile(filepath.Join(tmp, "notes.txt"), []byte("keep"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cleaner := NewCleaner(tmp, RetentionPolicy{MaxSessions: 2}, logging.NewTestLogger())
	cleaner.now = func() time.Time { return now }
	cleaner.RunOnce()

	remaining := listEntries(t, tmp)
	expected := []string{"bravo-20240715T100000Z", "charlie-20240715T110000Z", "notes.txt"}
	if fmt.Sprint(remaining) != fmt.Sprint(expected) {
		t.Fatalf("unexpected retained entries: %v", remaining)
	}

	stats := cleaner.Stats()
	if stats.Sessions != 2 {
		t.Fatalf("expected stats to report 2 sessions, got %d", stats.Sessions)
	}
	if stats.Bytes != 5 {
		t.Fatalf("expected byte total 5, got %d", stats.Bytes)
	}
	if !stats.LastSweep.Equal(now) {
		t.Fatalf("expected last sweep timestamp to be recorded")
	}
}

func TestCleanerPrunesByAgeAndProtectsActiveSession(t *testing.T) {
	tmp := t.TempDir()
	now := time.Date(2024, 7, 16, 9, 0, 0, 0, time.UTC)
	writeSessionDirectory(t, tmp, "delta-20240714T080000Z", now.Add(-72*time.Hour), 1)
	writeSessionDirectory(t, tmp, "echo-20240714T090000Z", now.Add(-70*time.Hour), 1)
	writeSessionDirectory(t, tmp, "foxtrot-20240716T070000Z", now.Add(-time.Hour), 1)

	cleaner := NewCleaner(tmp, RetentionPolicy{MaxAge: 36 * time.Hour, MaxSessions: 5}, logging.NewTestLogger())
	cleaner.now = func() time.Time { return now }
	cleaner.Protect(filepath.Join(tmp, "echo-20240714T090000Z"))
	cleaner.RunOnce()

	remaining := listEntries(t, tmp)
	expected := []string{"echo-20240714T090000Z", "foxtrot-20240716T070000Z"}
	if fmt.Sprint(remaining) != fmt.Sprint(expected) {
		t.Fatalf("unexpected retained sessions: %v", remaining)
	}
	if cleaner.Stats().Sessions != 2 {
		t.Fatalf("expected protected and fresh sessions to be counted")
	}
}

func writeSessionDirectory(t *testing.T, dir, name string, mod time.Time, files int) {
	t.Helper()
	sessionDir := filepath.Join(dir, name)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	for i := 0; i < files; i++ {
		path := filepath.Join(sessionDir, fmt.Sprintf("part-%d.bin", i))
		if err := os.WriteFile(path, []byte{byte(i)}, 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatalf("Chtimes file: %v", err)
		}
	}
	if err := os.Chtimes(sessionDir, mod, mod); err != nil {
		t.Fatalf("Chtimes dir: %v", err)
	}
}

func listEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}
