package shared

import "strings"

// MaxActivityEntries bounds the activity history kept by the monitor.
const MaxActivityEntries = 50

// AppendActivity adds entry to log and drops the oldest entries beyond
// MaxActivityEntries.
func AppendActivity(log []string, entry string) []string {
	log = append(log, entry)

	// Copy on trim so the dropped prefix can be collected
	if len(log) > MaxActivityEntries {
		log = append([]string(nil), log[len(log)-MaxActivityEntries:]...)
	}

	return log
}

// RenderActivityLog renders entries oldest first, each indented, under an
// optional title. maxEntries > 0 keeps only the most recent entries.
func RenderActivityLog(title string, entries []string, maxEntries int) string {
	// Keep the tail
	if maxEntries > 0 && maxEntries < len(entries) {
		entries = entries[len(entries)-maxEntries:]
	}

	lines := make([]string, 0, len(entries)+2) //nolint:mnd // title and blank line

	// Header, separated from the entries by a blank line
	if title = strings.TrimSpace(title); title != "" {
		lines = append(lines, RenderLabel(title))
		if len(entries) > 0 {
			lines = append(lines, "")
		}
	}

	// Entries, indented under the header
	for _, entry := range entries {
		lines = append(lines, "  "+entry)
	}

	return strings.Join(lines, "\n")
}
