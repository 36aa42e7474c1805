package widgets

import (
	"fmt"
	"strings"

	"github.com/joe/peersync/internal/syncengine"
	"github.com/joe/peersync/internal/tui/shared"
)

// NewProgressWidget creates a widget that summarizes how far a folder is
// from being fully synced.
func NewProgressWidget(getFolder func() *syncengine.Folder) func() string {
	return func() string {
		folder := getFolder()
		if folder == nil {
			return "Files: 0 / 0 synced (0%)\nSpeed: 0 B/s"
		}

		synced := 0
		for _, file := range folder.Files {
			if file.Status == syncengine.FileSynced {
				synced++
			}
		}

		var remaining int64
		for _, progress := range folder.SyncProgress {
			remaining += max(progress.TotalSize-progress.TransferredSize, 0)
		}

		metrics := folder.Metrics

		var builder strings.Builder

		fmt.Fprintf(&builder, "Files: %d / %d synced (%.1f%%)\nBytes: %.1f%%\nSpeed: %s (%d active)",
			synced,
			len(folder.Files),
			metrics.FilesPercent,
			metrics.BytesPercent,
			shared.FormatRate(metrics.BytesPerSecond),
			len(folder.SyncProgress))

		if eta := shared.FormatRemaining(remaining, metrics.BytesPerSecond); eta != "" {
			builder.WriteString("\nRemaining: ~" + eta)
		}

		return builder.String()
	}
}
