package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/talktojer/ge-sub000/internal/events"
	journalplayer "github.com/talktojer/ge-sub000/tools/journal_player"
)

func main() {
	path := flag.String("path", "", "Path to a journal session directory or manifest.json")
	kinds := flag.String("kinds", "", "Comma separated event kinds to keep, e.g. combat,battle")
	ship := flag.String("ship", "", "Only keep events involving this ship")
	summary := flag.Bool("summary", false, "Print counts instead of the full report")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "path flag is required")
		os.Exit(1)
	}

	filter := journalplayer.Filter{ShipID: strings.TrimSpace(*ship)}
	for _, kind := range strings.Split(*kinds, ",") {
		if trimmed := strings.TrimSpace(kind); trimmed != "" {
			filter.Kinds = append(filter.Kinds, events.Kind(trimmed))
		}
	}

	report, err := journalplayer.Inspect(*path, filter)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	if *summary {
		fmt.Printf("session %s\n", report.Manifest.SessionID)
		for _, kind := range report.Kinds() {
			fmt.Printf("  %-14s %d\n", kind, report.Counts[kind])
		}
		for loop, stats := range report.Loops {
			fmt.Printf("  loop %-12s frames=%d processed=%d errors=%d max=%.2fms\n", loop, stats.Frames, stats.Processed, stats.Errors, stats.MaxMs)
		}
		return
	}

	//1.- Render the report as JSON so callers can pipe the output elsewhere.
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintln(os.Stderr, "encode error:", err)
		os.Exit(3)
	}
}
