package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	journalcatalog "github.com/talktojer/ge-sub000/tools/journal_catalog"
)

func main() {
	root := flag.String("dir", "journal", "directory containing journal sessions")
	jsonFlag := flag.Bool("json", false, "emit JSON instead of human-readable output")
	flag.Parse()

	entries, err := journalcatalog.List(*root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *jsonFlag {
		payload, err := journalcatalog.MarshalEntries(entries)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(payload))
		return
	}

	for _, entry := range entries {
		fmt.Printf("%s (schema %d)\n", entry.Header.SessionID, entry.Header.SchemaVersion)
		if entry.Header.Seed != "" {
			fmt.Printf("  seed: %s\n", entry.Header.Seed)
		}
		if len(entry.Header.Parameters) > 0 {
			keys := make([]string, 0, len(entry.Header.Parameters))
			for key := range entry.Header.Parameters {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			fmt.Printf("  parameters:\n")
			for _, key := range keys {
				fmt.Printf("    %s: %.3f\n", key, entry.Header.Parameters[key])
			}
		}
		fmt.Printf("  manifest: %s\n", entry.ManifestPath)
	}
}
