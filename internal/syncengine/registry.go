package syncengine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joe/peersync/internal/protocol"
	"github.com/joe/peersync/pkg/filesystem"
)

// Registry owns every folder. Each folder has its own lock and every
// mutation goes through a command that returns the updated snapshot.
type Registry struct {
	clock  TimeProvider
	filter FileFilter

	mu      sync.RWMutex
	folders map[string]*folderState
	order   []string
}

// folderState is the mutable state behind a Folder snapshot.
type folderState struct {
	mu sync.Mutex

	id       string
	name     string
	location string
	dest     filesystem.Destination
	paused   bool
	faulted  bool
	files    []FileEntry
	peers    []Peer
	// listings caches the latest FILE_LIST of each peer so a resumed or
	// re-granted folder can reconcile without waiting for a new one.
	listings map[string][]protocol.FileMeta
	progress *progressTracker
}

// NewRegistry creates an empty registry. A nil filter includes every file.
func NewRegistry(clock TimeProvider, filter FileFilter) *Registry {
	if clock == nil {
		clock = &RealTimeProvider{}
	}

	if filter == nil {
		filter = includeAll{}
	}

	return &Registry{
		clock:   clock,
		filter:  filter,
		folders: make(map[string]*folderState),
	}
}

// AddFolder registers a freshly picked directory. All of its files start
// Synced because there is nothing to compare them with yet.
func (r *Registry) AddFolder(name string, dest filesystem.Destination) (Folder, error) {
	return r.addFolder(uuid.NewString(), name, dest, FileSynced)
}

// AddRemoteFolder materializes a folder first announced by a peer. Local
// files start NeedsUpload so the peer receives them.
func (r *Registry) AddRemoteFolder(id, name string, dest filesystem.Destination) (Folder, error) {
	return r.addFolder(id, name, dest, FileNeedsUpload)
}

// AdvanceTransfer records n more bytes for an active transfer.
func (r *Registry) AdvanceTransfer(folderID, name string, n int64) (SyncProgress, error) {
	var progress SyncProgress

	_, err := r.update(folderID, func(state *folderState) error {
		var err error
		progress, err = state.progress.Advance(name, n)

		return err
	})

	return progress, err
}

// BeginDownload marks name SyncingDownload for peerID. The entry takes
// the announced size and timestamp until the finished file is stat'ed.
func (r *Registry) BeginDownload(folderID, peerID string, start protocol.StartFileTransfer) (Folder, error) {
	return r.update(folderID, func(state *folderState) error {
		if err := state.usable(); err != nil {
			return err
		}

		if !r.filter.ShouldInclude(start.FileName) {
			return fmt.Errorf("%w: %s", ErrIgnoredFile, start.FileName)
		}

		entry, _ := state.file(start.FileName)
		entry.Name = start.FileName
		entry.Size = start.FileSize

		if start.LastModified != 0 {
			entry.LastModified = start.LastModified
		}

		state.putFile(entry)
		state.setStatus(start.FileName, FileSyncingDownload)
		state.progress.Begin(start.FileName, peerID, Download, start.FileSize)

		return nil
	})
}

// BeginUpload marks name SyncingUpload for peerID, refreshing its size and
// timestamp from disk. It returns the entry that will be sent.
func (r *Registry) BeginUpload(folderID, peerID, name string) (FileEntry, Folder, error) {
	var entry FileEntry

	folder, err := r.update(folderID, func(state *folderState) error {
		if err := state.usable(); err != nil {
			return err
		}

		if !r.filter.ShouldInclude(name) {
			return fmt.Errorf("%w: %s", ErrIgnoredFile, name)
		}

		if current, ok := state.file(name); ok && current.Status == FileSyncingDownload {
			return fmt.Errorf("%w: %s is being downloaded", ErrTransferBusy, name)
		}

		info, err := state.dest.Stat(name)
		if err != nil {
			return err
		}

		entry = FileEntry{
			Name:         name,
			Size:         info.Size,
			LastModified: ToUnixMilli(info.ModTime),
		}
		state.putFile(entry)
		state.setStatus(name, FileSyncingUpload)
		state.progress.Begin(name, peerID, Upload, info.Size)
		entry.Status = FileSyncingUpload

		return nil
	})

	return entry, folder, err
}

// CachedListing returns the last listing received from peerID.
func (r *Registry) CachedListing(folderID, peerID string) ([]protocol.FileMeta, bool) {
	state, err := r.lookup(folderID)
	if err != nil {
		return nil, false
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	files, ok := state.listings[peerID]

	return files, ok
}

// ApplyListing records a peer's listing and reconciles it against the
// folder's directory. Files with an active transfer keep their entry. A
// paused folder or one without a destination only caches the listing and
// returns ErrFolderPaused or ErrAccessNeeded.
func (r *Registry) ApplyListing(folderID, peerID string, remote []protocol.FileMeta) (Plan, Folder, error) {
	var plan Plan

	folder, err := r.update(folderID, func(state *folderState) error {
		remote = r.filterListing(remote)
		state.listings[peerID] = remote

		if err := state.usable(); err != nil {
			return err
		}

		local, err := r.listDestination(state.dest)
		if err != nil {
			return err
		}

		plan = Reconcile(local, atPrecision(remote, state.dest.TimePrecision()))
		plan.ToUpload, plan.ToDownload = 0, 0

		for i, entry := range plan.Entries {
			if current, ok := state.file(entry.Name); ok && current.Status.IsSyncing() {
				plan.Entries[i] = current
				continue
			}

			switch entry.Status {
			case FileNeedsUpload:
				plan.ToUpload++
			case FileNeedsDownload:
				plan.ToDownload++
			}
		}

		state.replaceFiles(plan.Entries)

		return nil
	})

	return plan, folder, err
}

// DeleteFolder removes a folder and closes its destination.
func (r *Registry) DeleteFolder(id string) (Folder, error) {
	r.mu.Lock()

	state, ok := r.folders[id]
	if !ok {
		r.mu.Unlock()
		return Folder{}, fmt.Errorf("%w: %s", ErrUnknownFolder, id)
	}

	delete(r.folders, id)
	r.order = removeString(r.order, id)
	r.mu.Unlock()

	state.mu.Lock()
	defer state.mu.Unlock()

	if state.dest != nil {
		_ = state.dest.Close()
		state.dest = nil
	}

	return state.snapshot(), nil
}

// Destination returns the live destination of a usable folder.
func (r *Registry) Destination(folderID string) (filesystem.Destination, error) {
	state, err := r.lookup(folderID)
	if err != nil {
		return nil, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if err := state.usable(); err != nil {
		return nil, err
	}

	return state.dest, nil
}

// FailTransfer marks name Error and drops its progress.
func (r *Registry) FailTransfer(folderID, name string) (Folder, error) {
	return r.update(folderID, func(state *folderState) error {
		if _, ok := state.file(name); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownFile, name)
		}

		state.setStatus(name, FileError)

		return nil
	})
}

// FinishDownload replaces the entry with the stat'ed file and marks it Synced.
func (r *Registry) FinishDownload(folderID string, info filesystem.FileInfo) (Folder, error) {
	return r.update(folderID, func(state *folderState) error {
		precision := filesystem.DefaultTimePrecision
		if state.dest != nil {
			precision = state.dest.TimePrecision()
		}

		state.putFile(FileEntry{
			Name:         info.RelativePath,
			Size:         info.Size,
			LastModified: TruncateMillis(ToUnixMilli(info.ModTime), precision),
		})
		state.setStatus(info.RelativePath, FileSynced)

		return nil
	})
}

// FinishUpload marks an acknowledged upload Synced. Entries that are not
// SyncingUpload are left alone.
func (r *Registry) FinishUpload(folderID, name string) (Folder, error) {
	return r.update(folderID, func(state *folderState) error {
		entry, ok := state.file(name)
		if !ok || entry.Status != FileSyncingUpload {
			return fmt.Errorf("%w: no upload of %s awaits an ack", ErrNoTransfer, name)
		}

		state.setStatus(name, FileSynced)

		return nil
	})
}

// Folders returns snapshots of all folders in the order they were added.
func (r *Registry) Folders() []Folder {
	r.mu.RLock()
	states := make([]*folderState, 0, len(r.order))

	for _, id := range r.order {
		states = append(states, r.folders[id])
	}
	r.mu.RUnlock()

	folders := make([]Folder, 0, len(states))

	for _, state := range states {
		state.mu.Lock()
		folders = append(folders, state.snapshot())
		state.mu.Unlock()
	}

	return folders
}

// Get returns a snapshot of one folder.
func (r *Registry) Get(id string) (Folder, error) {
	return r.update(id, func(*folderState) error { return nil })
}

// GrantAccess attaches a directory to a folder and re-lists it. The
// directory must carry the folder's name or the base name of its recorded
// location. Pause is preserved.
func (r *Registry) GrantAccess(id string, dest filesystem.Destination) (Folder, error) {
	return r.update(id, func(state *folderState) error {
		base := baseName(dest.Location())
		if base != state.name && (state.location == "" || base != baseName(state.location)) {
			return fmt.Errorf("%w: picked %q for folder %q", ErrWrongDirectory, base, state.name)
		}

		local, err := r.listDestination(dest)
		if err != nil {
			return err
		}

		if state.dest != nil && state.dest != dest {
			_ = state.dest.Close()
		}

		state.dest = dest
		state.location = dest.Location()
		state.faulted = false
		state.progress = newProgressTracker(r.clock)
		state.replaceFiles(withStatus(local, FileSynced))

		return nil
	})
}

// Listing lists a usable folder's directory as a FILE_LIST message.
func (r *Registry) Listing(folderID string) (protocol.FileList, error) {
	state, err := r.lookup(folderID)
	if err != nil {
		return protocol.FileList{}, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if err := state.usable(); err != nil {
		return protocol.FileList{}, err
	}

	local, err := r.listDestination(state.dest)
	if err != nil {
		return protocol.FileList{}, err
	}

	return protocol.FileList{
		FolderID:   state.id,
		FolderName: state.name,
		Files:      ListingFromEntries(local),
	}, nil
}

// MarkFaulted moves a folder to Error after an unrecoverable local failure.
func (r *Registry) MarkFaulted(id string) (Folder, error) {
	return r.update(id, func(state *folderState) error {
		state.faulted = true
		return nil
	})
}

// Paused reports whether a folder is paused without building a snapshot.
func (r *Registry) Paused(id string) (bool, error) {
	state, err := r.lookup(id)
	if err != nil {
		return false, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	return state.paused, nil
}

// Records returns the persistable form of every folder.
func (r *Registry) Records() []FolderRecord {
	folders := r.Folders()
	records := make([]FolderRecord, 0, len(folders))

	for _, folder := range folders {
		records = append(records, FolderRecord{
			ID:       folder.ID,
			Name:     folder.Name,
			Location: folder.Location,
			Paused:   folder.Paused,
			Files:    folder.Files,
		})
	}

	return records
}

// RegisterPeer adds peerID to a folder, or refreshes its status. It
// reports whether the peer was new to the folder.
func (r *Registry) RegisterPeer(folderID, peerID string, status PeerStatus) (Folder, bool, error) {
	var added bool

	folder, err := r.update(folderID, func(state *folderState) error {
		for i := range state.peers {
			if state.peers[i].ID == peerID {
				added = state.peers[i].Status.IsGone()
				state.peers[i].Status = status

				return nil
			}
		}

		state.peers = append(state.peers, Peer{ID: peerID, Name: PeerName(peerID), Status: status})
		added = true

		return nil
	})

	return folder, added, err
}

// RenameFolder changes a folder's display name.
func (r *Registry) RenameFolder(id, name string) (Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Folder{}, ErrEmptyName
	}

	return r.update(id, func(state *folderState) error {
		state.name = name
		return nil
	})
}

// Restore loads persisted folders. They come back without a destination,
// peers, or progress, so every one of them needs permission again.
func (r *Registry) Restore(records []FolderRecord) []Folder {
	restored := make([]Folder, 0, len(records))

	for _, record := range records {
		state := r.newState(record.ID, record.Name)
		state.location = record.Location
		state.paused = record.Paused

		files := make([]FileEntry, 0, len(record.Files))
		for _, entry := range record.Files {
			entry.Status = entry.Status.pending()
			files = append(files, entry)
		}

		state.replaceFiles(files)

		if r.insert(state) {
			restored = append(restored, state.snapshot())
		}
	}

	return restored
}

// RevertTransfers puts every transfer owned by peerID back to its pending
// status. When names is non-empty only those files are considered.
// Transfers of other peers are untouched.
func (r *Registry) RevertTransfers(folderID, peerID string, names ...string) (Folder, error) {
	return r.update(folderID, func(state *folderState) error {
		candidates := names
		if len(candidates) == 0 {
			candidates = make([]string, 0, len(state.progress.active))
			for name := range state.progress.active {
				candidates = append(candidates, name)
			}
		}

		for _, name := range candidates {
			owner, _, ok := state.progress.Owner(name)
			if !ok || owner != peerID {
				continue
			}

			if entry, ok := state.file(name); ok {
				state.setStatus(name, entry.Status.pending())
			}
		}

		return nil
	})
}

// RevokeAccess drops a folder's destination after its permission went away.
func (r *Registry) RevokeAccess(id string) (Folder, error) {
	return r.update(id, func(state *folderState) error {
		if state.dest != nil {
			_ = state.dest.Close()
			state.dest = nil
		}

		for name := range state.progress.active {
			if entry, ok := state.file(name); ok {
				state.setStatus(name, entry.Status.pending())
			}
		}

		return nil
	})
}

// SetPaused pauses or resumes a folder.
func (r *Registry) SetPaused(id string, paused bool) (Folder, error) {
	return r.update(id, func(state *folderState) error {
		state.paused = paused
		return nil
	})
}

// SetPeerStatus updates a peer's connection status. Unknown peers are
// ignored.
func (r *Registry) SetPeerStatus(folderID, peerID string, status PeerStatus) (Folder, error) {
	return r.update(folderID, func(state *folderState) error {
		for i := range state.peers {
			if state.peers[i].ID == peerID {
				state.peers[i].Status = status
			}
		}

		if status.IsGone() {
			delete(state.listings, peerID)
		}

		return nil
	})
}

// Stalled lists transfers of a folder that made no progress for longer
// than timeout.
func (r *Registry) Stalled(folderID string, timeout time.Duration) []stalledTransfer {
	state, err := r.lookup(folderID)
	if err != nil {
		return nil
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	return state.progress.Stalled(timeout)
}

// TransferProgress returns the progress and rate of one transfer.
func (r *Registry) TransferProgress(folderID, name string) (SyncProgress, float64, bool) {
	state, err := r.lookup(folderID)
	if err != nil {
		return SyncProgress{}, 0, false
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	progress, ok := state.progress.Get(name)

	return progress, state.progress.Rate(name), ok
}

func (r *Registry) addFolder(id, name string, dest filesystem.Destination, status FileStatus) (Folder, error) {
	local, err := r.listDestination(dest)
	if err != nil {
		return Folder{}, err
	}

	if strings.TrimSpace(name) == "" {
		name = baseName(dest.Location())
	}

	state := r.newState(id, name)
	state.dest = dest
	state.location = dest.Location()
	state.replaceFiles(withStatus(local, status))

	if !r.insert(state) {
		return Folder{}, fmt.Errorf("%w: %s", ErrFolderExists, id)
	}

	return state.snapshot(), nil
}

// atPrecision copies a listing with timestamps cut to what the folder can
// store, so a received file compares equal to the sender's entry.
func atPrecision(remote []protocol.FileMeta, precision time.Duration) []protocol.FileMeta {
	truncated := make([]protocol.FileMeta, len(remote))

	for i, meta := range remote {
		meta.LastModified = TruncateMillis(meta.LastModified, precision)
		truncated[i] = meta
	}

	return truncated
}

func (r *Registry) filterListing(remote []protocol.FileMeta) []protocol.FileMeta {
	filtered := make([]protocol.FileMeta, 0, len(remote))

	for _, meta := range remote {
		if filesystem.ValidateName(meta.Name) != nil || !r.filter.ShouldInclude(meta.Name) {
			continue
		}

		filtered = append(filtered, meta)
	}

	return filtered
}

func (r *Registry) insert(state *folderState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.folders[state.id]; exists {
		return false
	}

	r.folders[state.id] = state
	r.order = append(r.order, state.id)

	return true
}

func (r *Registry) listDestination(dest filesystem.Destination) ([]FileEntry, error) {
	infos, err := dest.ListFiles()
	if err != nil {
		return nil, err
	}

	precision := dest.TimePrecision()
	entries := make([]FileEntry, 0, len(infos))

	for _, info := range infos {
		if !r.filter.ShouldInclude(info.RelativePath) {
			continue
		}

		entries = append(entries, FileEntry{
			Name:         info.RelativePath,
			Size:         info.Size,
			LastModified: TruncateMillis(ToUnixMilli(info.ModTime), precision),
		})
	}

	return entries, nil
}

func (r *Registry) lookup(id string) (*folderState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.folders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFolder, id)
	}

	return state, nil
}

func (r *Registry) newState(id, name string) *folderState {
	return &folderState{
		id:       id,
		name:     name,
		listings: make(map[string][]protocol.FileMeta),
		progress: newProgressTracker(r.clock),
	}
}

// update runs fn under the folder lock and returns the resulting snapshot,
// even when fn fails.
func (r *Registry) update(id string, fn func(*folderState) error) (Folder, error) {
	state, err := r.lookup(id)
	if err != nil {
		return Folder{}, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	err = fn(state)

	return state.snapshot(), err
}

func (s *folderState) file(name string) (FileEntry, bool) {
	for _, entry := range s.files {
		if entry.Name == name {
			return entry, true
		}
	}

	return FileEntry{}, false
}

func (s *folderState) flags() FolderFlags {
	return FolderFlags{
		HasDestination: s.dest != nil,
		Paused:         s.paused,
		Faulted:        s.faulted,
	}
}

// putFile inserts or replaces an entry, keeping its current status.
func (s *folderState) putFile(entry FileEntry) {
	for i := range s.files {
		if s.files[i].Name == entry.Name {
			entry.Status = s.files[i].Status
			s.files[i] = entry
			sortEntries(s.files)

			return
		}
	}

	s.files = append(s.files, entry)
	sortEntries(s.files)
}

func (s *folderState) replaceFiles(files []FileEntry) {
	s.files = append([]FileEntry(nil), files...)
	sortEntries(s.files)

	for name := range s.progress.active {
		if entry, ok := s.file(name); !ok || !entry.Status.IsSyncing() {
			s.progress.End(name)
		}
	}
}

// setStatus changes an entry's status and drops progress when the entry
// stops syncing.
func (s *folderState) setStatus(name string, status FileStatus) {
	for i := range s.files {
		if s.files[i].Name == name {
			s.files[i].Status = status
		}
	}

	if !status.IsSyncing() {
		s.progress.End(name)
	}
}

func (s *folderState) snapshot() Folder {
	progress := s.progress.Snapshot()

	return Folder{
		ID:           s.id,
		Name:         s.name,
		Location:     s.location,
		Status:       DeriveStatus(s.flags(), s.files),
		Paused:       s.paused,
		Files:        append([]FileEntry(nil), s.files...),
		Peers:        append([]Peer(nil), s.peers...),
		SyncProgress: progress,
		Metrics:      computeProgressMetrics(s.files, progress, s.progress.TotalRate()),
	}
}

func (s *folderState) usable() error {
	switch {
	case s.dest == nil:
		return fmt.Errorf("%w: %s", ErrAccessNeeded, s.name)
	case s.paused:
		return fmt.Errorf("%w: %s", ErrFolderPaused, s.name)
	default:
		return nil
	}
}

func baseName(location string) string {
	parsed, err := filesystem.ParsePath(location)
	if err != nil {
		return location
	}

	return parsed.BaseName()
}

func removeString(values []string, target string) []string {
	kept := values[:0]

	for _, value := range values {
		if value != target {
			kept = append(kept, value)
		}
	}

	return kept
}

func withStatus(entries []FileEntry, status FileStatus) []FileEntry {
	for i := range entries {
		entries[i].Status = status
	}

	return entries
}
