package syncengine

import (
	"sort"

	"github.com/joe/peersync/internal/protocol"
)

// Directive tells the transfer side what to do with one file.
type Directive struct {
	Name   string
	Status FileStatus
}

// Plan is the result of comparing a local listing with a remote one.
type Plan struct {
	// Entries is the union of both listings, newest first.
	Entries    []FileEntry
	ToUpload   int
	ToDownload int
}

// Directives returns one directive per file, in Entries order.
func (p Plan) Directives() []Directive {
	directives := make([]Directive, 0, len(p.Entries))
	for _, entry := range p.Entries {
		directives = append(directives, Directive{Name: entry.Name, Status: entry.Status})
	}

	return directives
}

// Pending returns the number of files that have to move.
func (p Plan) Pending() int {
	return p.ToUpload + p.ToDownload
}

// Reconcile compares a local listing with a remote one. The newer
// LastModified wins; equal timestamps mean the file is in sync. Local
// statuses are ignored.
func Reconcile(local []FileEntry, remote []protocol.FileMeta) Plan {
	remoteByName := make(map[string]protocol.FileMeta, len(remote))
	for _, meta := range remote {
		remoteByName[meta.Name] = meta
	}

	plan := Plan{Entries: make([]FileEntry, 0, len(local)+len(remote))}
	seen := make(map[string]struct{}, len(local))

	for _, entry := range local {
		seen[entry.Name] = struct{}{}
		meta, inRemote := remoteByName[entry.Name]

		switch {
		case !inRemote || entry.LastModified > meta.LastModified:
			entry.Status = FileNeedsUpload
			plan.ToUpload++
		case entry.LastModified < meta.LastModified:
			entry = entryFromMeta(meta, FileNeedsDownload)
			plan.ToDownload++
		default:
			entry.Status = FileSynced
		}

		plan.Entries = append(plan.Entries, entry)
	}

	for _, meta := range remote {
		if _, ok := seen[meta.Name]; ok {
			continue
		}

		seen[meta.Name] = struct{}{}

		plan.Entries = append(plan.Entries, entryFromMeta(meta, FileNeedsDownload))
		plan.ToDownload++
	}

	sortEntries(plan.Entries)

	return plan
}

// ListingFromEntries strips statuses for a FILE_LIST payload.
func ListingFromEntries(entries []FileEntry) []protocol.FileMeta {
	files := make([]protocol.FileMeta, 0, len(entries))
	for _, entry := range entries {
		files = append(files, protocol.FileMeta{
			Name:         entry.Name,
			Size:         entry.Size,
			LastModified: entry.LastModified,
		})
	}

	return files
}

func entryFromMeta(meta protocol.FileMeta, status FileStatus) FileEntry {
	return FileEntry{
		Name:         meta.Name,
		Size:         meta.Size,
		LastModified: meta.LastModified,
		Status:       status,
	}
}

// sortEntries orders entries newest first. Names break ties so the order
// is stable across runs.
func sortEntries(entries []FileEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LastModified != entries[j].LastModified {
			return entries[i].LastModified > entries[j].LastModified
		}

		return entries[i].Name < entries[j].Name
	})
}
