//nolint:varnamelen // Test files use idiomatic short variable names
package widgets_test

import (
	"fmt"
	"strings"
	"testing"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/peersync/internal/syncengine"
	"github.com/joe/peersync/internal/tui/widgets"
)

func TestFileListWidget_TransfersFirstWithProgress(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	folder := &syncengine.Folder{
		Files: []syncengine.FileEntry{
			{Name: "a-synced.txt", Size: 10, Status: syncengine.FileSynced},
			{Name: "b-pending.txt", Size: 20, Status: syncengine.FileNeedsDownload},
			{Name: "c-active.txt", Size: 1000, Status: syncengine.FileSyncingUpload},
			{Name: "d-broken.txt", Size: 30, Status: syncengine.FileError},
		},
		SyncProgress: map[string]syncengine.SyncProgress{
			"c-active.txt": {TotalSize: 1000, TransferredSize: 250},
		},
	}

	lines := strings.Split(widgets.NewFileListWidget(func() *syncengine.Folder { return folder })(), "\n")

	g.Expect(lines).To(HaveLen(4))
	g.Expect(lines[0]).To(And(ContainSubstring("c-active.txt"), ContainSubstring("25%")))
	g.Expect(lines[1]).To(ContainSubstring("d-broken.txt"))
	g.Expect(lines[2]).To(And(ContainSubstring("b-pending.txt"), ContainSubstring("NeedsDownload")))
	g.Expect(lines[3]).To(And(ContainSubstring("a-synced.txt"), ContainSubstring("10 B")))
}

func TestFileListWidget_LimitsVisibleFiles(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	folder := &syncengine.Folder{}
	for i := range 25 {
		folder.Files = append(folder.Files, syncengine.FileEntry{Name: fmt.Sprintf("file-%02d", i)})
	}

	result := widgets.NewFileListWidget(func() *syncengine.Folder { return folder })()

	g.Expect(result).To(ContainSubstring("file-19"))
	g.Expect(result).NotTo(ContainSubstring("file-20"))
	g.Expect(result).To(ContainSubstring("and 5 more"))
}

func TestFileListWidget_Empty(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	g.Expect(widgets.NewFileListWidget(func() *syncengine.Folder { return nil })()).To(ContainSubstring("No files"))
}

func TestProgressWidget(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	folder := &syncengine.Folder{
		Files: []syncengine.FileEntry{
			{Name: "a", Status: syncengine.FileSynced},
			{Name: "b", Status: syncengine.FileSyncingDownload},
		},
		SyncProgress: map[string]syncengine.SyncProgress{"b": {TotalSize: 10, TransferredSize: 5}},
		Metrics:      syncengine.ProgressMetrics{FilesPercent: 50, BytesPercent: 75, BytesPerSecond: 2048},
	}

	result := widgets.NewProgressWidget(func() *syncengine.Folder { return folder })()

	g.Expect(result).To(ContainSubstring("Files: 1 / 2 synced (50.0%)"))
	g.Expect(result).To(ContainSubstring("Bytes: 75.0%"))
	g.Expect(result).To(ContainSubstring("Speed: 2.0 KB/s (1 active)"))
	g.Expect(widgets.NewProgressWidget(func() *syncengine.Folder { return nil })()).To(ContainSubstring("0 / 0"))
}

func TestPeersWidget(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	folder := &syncengine.Folder{Peers: []syncengine.Peer{
		{Name: "Device-aaaa", Status: syncengine.PeerConnected},
		{Name: "Device-bbbb", Status: syncengine.PeerDisconnected},
	}}

	result := widgets.NewPeersWidget(func() *syncengine.Folder { return folder })()

	g.Expect(result).To(ContainSubstring("Device-aaaa"))
	g.Expect(result).To(ContainSubstring("Device-bbbb (disconnected)"))
	g.Expect(widgets.NewPeersWidget(func() *syncengine.Folder { return &syncengine.Folder{} })()).
		To(ContainSubstring("Waiting for a peer"))
}

func TestActivityLogWidget(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	entries := make([]string, 0, 12)
	for i := range 12 {
		entries = append(entries, fmt.Sprintf("entry %02d", i))
	}

	result := widgets.NewActivityLogWidget(func() []string { return entries })()

	g.Expect(result).NotTo(ContainSubstring("entry 01"))
	g.Expect(result).To(ContainSubstring("entry 02"))
	g.Expect(result).To(HaveSuffix("entry 11"))
	g.Expect(widgets.NewActivityLogWidget(func() []string { return nil })()).To(ContainSubstring("No activity"))
}
