package output

import (
	"fmt"
	"strings"
	"time"

	"medialink/internal/mirror"
)

// FormatSummary renders the end-of-run report for one library.
func FormatSummary(library string, stats *mirror.RunStats, dryRun bool) string {
	var b strings.Builder

	header := "Library"
	if dryRun {
		header = "Library (dry run)"
	}
	if library != "" {
		fmt.Fprintf(&b, "%s %s\n", header, library)
	}
	fmt.Fprintf(&b, "  Elapsed: %s\n", stats.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "  Processed: %d/%d (%.2f%%)\n", stats.ProcessedFiles, stats.TotalFiles, stats.Percent())

	linkedLabel := "Linked"
	if dryRun {
		linkedLabel = "Would link"
	}
	fmt.Fprintf(&b, "  %s: %d\n", linkedLabel, stats.Linked)
	fmt.Fprintf(&b, "  Already linked: %d\n", stats.AlreadyLinked)
	if stats.Skipped > 0 {
		fmt.Fprintf(&b, "  Skipped: %d\n", stats.Skipped)
	}

	if len(stats.Unprocessed) > 0 {
		fmt.Fprintf(&b, "  Unprocessed: %d\n", len(stats.Unprocessed))
		for _, path := range stats.Unprocessed {
			fmt.Fprintf(&b, "    %s\n", path)
		}
	}
	return b.String()
}

// Summary prints the end-of-run report. It is shown even in quiet mode.
func (o *Output) Summary(library string, stats *mirror.RunStats, dryRun bool) {
	o.Print("%s", FormatSummary(library, stats, dryRun))
}
