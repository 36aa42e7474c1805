package syncengine_test

import (
	"fmt"
	"math/rand/v2"
	"testing"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/peersync/internal/protocol"
	"github.com/joe/peersync/internal/syncengine"
)

func entry(name string, size int64, lastModified int64) syncengine.FileEntry {
	return syncengine.FileEntry{Name: name, Size: size, LastModified: lastModified, Status: syncengine.FileSynced}
}

func meta(name string, size int64, lastModified int64) protocol.FileMeta {
	return protocol.FileMeta{Name: name, Size: size, LastModified: lastModified}
}

func TestReconcile_NewerTimestampWins(t *testing.T) {
	t.Parallel()

	local := []syncengine.FileEntry{entry("a.txt", 5, 100), entry("b.txt", 5, 200)}
	remote := []protocol.FileMeta{meta("b.txt", 9, 300), meta("c.txt", 7, 50)}

	tests := []struct {
		name string
		want syncengine.FileEntry
	}{
		{"local only uploads", syncengine.FileEntry{
			Name: "a.txt", Size: 5, LastModified: 100, Status: syncengine.FileNeedsUpload,
		}},
		{"remote newer downloads with remote metadata", syncengine.FileEntry{
			Name: "b.txt", Size: 9, LastModified: 300, Status: syncengine.FileNeedsDownload,
		}},
		{"remote only downloads", syncengine.FileEntry{
			Name: "c.txt", Size: 7, LastModified: 50, Status: syncengine.FileNeedsDownload,
		}},
	}

	plan := syncengine.Reconcile(local, remote)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewWithT(t)

			g.Expect(plan.Entries).To(ContainElement(tt.want))
		})
	}

	g := NewWithT(t)
	g.Expect(plan.ToUpload).To(Equal(1))
	g.Expect(plan.ToDownload).To(Equal(2))
	g.Expect(plan.Pending()).To(Equal(3))
}

func TestReconcile_EqualTimestampsAreSynced(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	local := []syncengine.FileEntry{{Name: "same.txt", Size: 3, LastModified: 10, Status: syncengine.FileError}}
	remote := []protocol.FileMeta{meta("same.txt", 4, 10)}

	plan := syncengine.Reconcile(local, remote)

	g.Expect(plan.Entries).To(Equal([]syncengine.FileEntry{
		{Name: "same.txt", Size: 3, LastModified: 10, Status: syncengine.FileSynced},
	}))
	g.Expect(plan.Pending()).To(BeZero())
}

func TestReconcile_OrdersNewestFirst(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	plan := syncengine.Reconcile(
		[]syncengine.FileEntry{entry("old.txt", 1, 1), entry("tie-b.txt", 1, 5)},
		[]protocol.FileMeta{meta("new.txt", 1, 9), meta("tie-a.txt", 1, 5)},
	)

	names := make([]string, 0, len(plan.Entries))
	for _, directive := range plan.Directives() {
		names = append(names, directive.Name)
	}

	g.Expect(names).To(Equal([]string{"new.txt", "tie-a.txt", "tie-b.txt", "old.txt"}))
}

func TestReconcile_IsSymmetric(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	left := []syncengine.FileEntry{entry("a", 1, 100), entry("b", 2, 200), entry("d", 4, 40)}
	right := []syncengine.FileEntry{entry("b", 3, 300), entry("c", 5, 50), entry("d", 4, 40)}

	fromLeft := syncengine.Reconcile(left, syncengine.ListingFromEntries(right))
	fromRight := syncengine.Reconcile(right, syncengine.ListingFromEntries(left))

	expectMirrored(g, fromLeft, fromRight, "fixed listings")
}

func TestReconcile_IsSymmetricForRandomListings(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	rng := rand.New(rand.NewPCG(7, 11))
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	randomListing := func() []syncengine.FileEntry {
		entries := make([]syncengine.FileEntry, 0, len(names))

		for _, name := range names {
			if rng.IntN(2) == 0 {
				continue
			}

			// A narrow timestamp range keeps ties common.
			entries = append(entries, entry(name, rng.Int64N(100), rng.Int64N(4)+1))
		}

		return entries
	}

	for round := range 200 {
		left, right := randomListing(), randomListing()
		desc := fmt.Sprintf("round %d: left=%v right=%v", round, left, right)

		fromLeft := syncengine.Reconcile(left, syncengine.ListingFromEntries(right))
		fromRight := syncengine.Reconcile(right, syncengine.ListingFromEntries(left))

		expectMirrored(g, fromLeft, fromRight, desc)

		again := syncengine.Reconcile(fromLeft.Entries, syncengine.ListingFromEntries(fromLeft.Entries))
		g.Expect(again.Pending()).To(BeZero(), desc)
	}
}

// expectMirrored checks that each side uploads what the other downloads.
func expectMirrored(g Gomega, fromLeft, fromRight syncengine.Plan, desc string) {
	g.Expect(fromLeft.ToUpload).To(Equal(fromRight.ToDownload), desc)
	g.Expect(fromLeft.ToDownload).To(Equal(fromRight.ToUpload), desc)
	g.Expect(fromLeft.Entries).To(HaveLen(len(fromRight.Entries)), desc)

	mirror := map[syncengine.FileStatus]syncengine.FileStatus{
		syncengine.FileNeedsUpload:   syncengine.FileNeedsDownload,
		syncengine.FileNeedsDownload: syncengine.FileNeedsUpload,
		syncengine.FileSynced:        syncengine.FileSynced,
	}

	rightStatus := make(map[string]syncengine.FileStatus)
	for _, directive := range fromRight.Directives() {
		rightStatus[directive.Name] = directive.Status
	}

	for _, directive := range fromLeft.Directives() {
		g.Expect(rightStatus).To(HaveKeyWithValue(directive.Name, mirror[directive.Status]), desc+": "+directive.Name)
	}
}

func TestReconcile_ConvergedListingsHaveNothingPending(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	local := []syncengine.FileEntry{entry("a.txt", 5, 100), entry("b.txt", 5, 200)}
	remote := []protocol.FileMeta{meta("b.txt", 9, 300), meta("c.txt", 7, 50)}

	plan := syncengine.Reconcile(local, remote)
	converged := syncengine.ListingFromEntries(plan.Entries)

	again := syncengine.Reconcile(plan.Entries, converged)
	g.Expect(again.Pending()).To(BeZero())

	for _, directive := range again.Directives() {
		g.Expect(directive.Status).To(Equal(syncengine.FileSynced))
	}
}

func TestReconcile_EmptyListings(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	plan := syncengine.Reconcile(nil, nil)

	g.Expect(plan.Entries).To(BeEmpty())
	g.Expect(plan.Pending()).To(BeZero())
}
