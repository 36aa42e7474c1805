//nolint:varnamelen // Test files use idiomatic short variable names (g, etc.)
package shared_test

import (
	"strings"
	"testing"
	"time"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/peersync/internal/syncengine"
	"github.com/joe/peersync/internal/tui/shared"
	pkgerrors "github.com/joe/peersync/pkg/errors"
)

func TestEventBridge_DeliversInOrder(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	bridge := shared.NewEventBridge()
	defer bridge.Close()

	var emitter syncengine.EventEmitter = bridge

	emitter.Emit(syncengine.FolderRemoved{FolderID: "a"})
	emitter.Emit(syncengine.FolderRemoved{FolderID: "b"})

	for _, want := range []string{"a", "b"} {
		msg := bridge.ListenCmd()()
		g.Expect(msg).To(Equal(shared.EngineEventMsg{Event: syncengine.FolderRemoved{FolderID: want}}))
	}
}

func TestEventBridge_NeverBlocksWhenFull(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	bridge := shared.NewEventBridge()
	defer bridge.Close()

	done := make(chan struct{})

	go func() {
		defer close(done)

		for range 300 {
			bridge.Emit(syncengine.FolderRemoved{FolderID: "x"})
		}
	}()

	g.Eventually(done, time.Second).Should(BeClosed())
	g.Expect(bridge.Dropped()).To(Equal(300 - 256))
}

func TestEventBridge_CloseEndsListening(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	bridge := shared.NewEventBridge()
	bridge.Close()
	bridge.Close()

	bridge.Emit(syncengine.FolderRemoved{FolderID: "late"})

	g.Expect(bridge.ListenCmd()()).To(BeNil())
}

func TestFormatBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{500, "500 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1.0 MB"},
		{5 * 1024 * 1024 * 1024, "5.0 GB"},
	}

	for _, tt := range tests {
		if got := shared.FormatBytes(tt.bytes); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	g.Expect(shared.FormatDuration(30 * time.Second)).To(Equal("30s"))
	g.Expect(shared.FormatDuration(150 * time.Second)).To(Equal("2m 30s"))
	g.Expect(shared.FormatDuration(time.Hour + 2*time.Minute + 3*time.Second)).To(Equal("1h 2m 3s"))
}

func TestFormatRate(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	g.Expect(shared.FormatRate(500)).To(Equal("500 B/s"))
	g.Expect(shared.FormatRate(1024)).To(Equal("1.0 KB/s"))
	g.Expect(shared.FormatRate(3 * 1024 * 1024)).To(Equal("3.0 MB/s"))
}

func TestFormatRemaining(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	g.Expect(shared.FormatRemaining(150*1024, 1024)).To(Equal("2m 30s"))
	g.Expect(shared.FormatRemaining(0, 1024)).To(BeEmpty())
	g.Expect(shared.FormatRemaining(1024, 0)).To(BeEmpty())
}

func TestRenderASCIIProgress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		percent float64
		want    string
	}{
		{0, "[          ] 0%"},
		{0.5, "[===>      ] 50%"},
		{1, "[==========] 100%"},
		{1.5, "[==========] 100%"},
		{-1, "[          ] 0%"},
	}

	for _, tt := range tests {
		if got := shared.RenderASCIIProgress(tt.percent, 10); got != tt.want {
			t.Errorf("RenderASCIIProgress(%v, 10) = %q, want %q", tt.percent, got, tt.want)
		}
	}
}

func TestAppendActivity_KeepsMostRecent(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	var log []string
	for i := range shared.MaxActivityEntries + 5 {
		log = shared.AppendActivity(log, strings.Repeat("x", i))
	}

	g.Expect(log).To(HaveLen(shared.MaxActivityEntries))
	g.Expect(log[0]).To(HaveLen(5))
}

func TestRenderActivityLog(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	entries := []string{"first", "second", "third"}

	g.Expect(shared.RenderActivityLog("", nil, 0)).To(BeEmpty())
	g.Expect(shared.RenderActivityLog("", entries, 2)).To(Equal("  second\n  third"))
	g.Expect(shared.RenderActivityLog("Activity", entries, 0)).To(And(
		ContainSubstring("Activity"),
		ContainSubstring("  first"),
	))
}

func TestRenderErrorList(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	occurred := func(file, peer string) syncengine.ErrorOccurred {
		return syncengine.ErrorOccurred{
			FileName: file,
			PeerID:   peer,
			Err: pkgerrors.NewActionableError("something broke", pkgerrors.CategoryIO,
				[]string{"Check the disk"}, file),
		}
	}

	g.Expect(shared.RenderErrorList(shared.ErrorListConfig{})).To(BeEmpty())

	rendered := shared.RenderErrorList(shared.ErrorListConfig{
		Errors: []syncengine.ErrorOccurred{
			occurred("old.txt", ""),
			occurred("a.txt", ""),
			occurred("", "peer-00c0ffee"),
			occurred("", ""),
		},
	})

	g.Expect(rendered).To(ContainSubstring("1 earlier error(s)"))
	g.Expect(rendered).NotTo(ContainSubstring("old.txt"))
	g.Expect(rendered).To(ContainSubstring("a.txt [io]"))
	g.Expect(rendered).To(ContainSubstring("Device-ffee [io]"))
	g.Expect(rendered).To(ContainSubstring("folder [io]"))
	g.Expect(rendered).To(ContainSubstring("Check the disk"))
}

func TestStatusRendering(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	g.Expect(shared.RenderFolderStatus(syncengine.FolderPermissionNeeded)).To(ContainSubstring("PermissionNeeded"))
	g.Expect(shared.RenderPeerStatus(syncengine.Peer{Name: "Device-0a0a", Status: syncengine.PeerFailed})).
		To(ContainSubstring("Device-0a0a (failed)"))
	g.Expect(shared.FileStatusSymbol(syncengine.FileSyncingUpload)).To(Equal(shared.UploadSymbol()))
	g.Expect(shared.FileStatusSymbol(syncengine.FileNeedsDownload)).To(Equal(shared.PendingSymbol()))
}

func TestRenderWidgetBox(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	box := shared.RenderWidgetBox("Peers", "Device-0001", 40)

	g.Expect(box).To(ContainSubstring("Peers"))
	g.Expect(box).To(ContainSubstring("Device-0001"))
	g.Expect(shared.RenderTwoColumnLayout("left", "right", 80, 3)).To(And(
		ContainSubstring("left"),
		ContainSubstring("right"),
	))
}
