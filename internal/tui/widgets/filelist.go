package widgets

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/joe/peersync/internal/syncengine"
	"github.com/joe/peersync/internal/tui/shared"
)

const maxVisibleFiles = 20

// NewFileListWidget creates a widget that lists a folder's files. Files in
// transfer come first with a progress bar, then pending and failed files,
// then synced ones.
func NewFileListWidget(getFolder func() *syncengine.Folder) func() string {
	return func() string {
		folder := getFolder()
		if folder == nil || len(folder.Files) == 0 {
			return shared.RenderDim("No files")
		}

		files := orderForDisplay(folder.Files)

		var builder strings.Builder

		for i, file := range files {
			if i >= maxVisibleFiles {
				builder.WriteString(shared.RenderDim(fmt.Sprintf("... and %d more", len(files)-maxVisibleFiles)))
				break
			}

			line := shared.FileStatusSymbol(file.Status) + " " + file.Name

			if progress, ok := folder.SyncProgress[file.Name]; ok {
				var percent float64
				if progress.TotalSize > 0 {
					percent = float64(progress.TransferredSize) / float64(progress.TotalSize)
				}

				line = fmt.Sprintf("%s %s", shared.RenderASCIIProgress(percent, shared.FileProgressBarWidth), line)
			} else {
				line = fmt.Sprintf("%s (%s, %s)", line, shared.FormatBytes(file.Size), file.Status)
			}

			builder.WriteString(shared.FileStatusStyle(file.Status).Render(line))

			if i < len(files)-1 {
				builder.WriteString("\n")
			}
		}

		return builder.String()
	}
}

func displayRank(status syncengine.FileStatus) int {
	switch {
	case status.IsSyncing():
		return 0
	case status == syncengine.FileError:
		return 1
	case status.IsPending():
		return 2 //nolint:mnd // Rank order
	default:
		return 3 //nolint:mnd // Rank order
	}
}

// orderForDisplay returns a copy of files ordered by display rank and name.
func orderForDisplay(files []syncengine.FileEntry) []syncengine.FileEntry {
	ordered := slices.Clone(files)

	slices.SortFunc(ordered, func(a, b syncengine.FileEntry) int {
		if byRank := cmp.Compare(displayRank(a.Status), displayRank(b.Status)); byRank != 0 {
			return byRank
		}

		return strings.Compare(a.Name, b.Name)
	})

	return ordered
}
