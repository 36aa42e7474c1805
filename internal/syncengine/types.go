package syncengine

import (
	"fmt"
	"strings"
	"time"
)

// FileStatus is the sync state of one file in a folder.
type FileStatus int

// FileStatus values.
const (
	FileSynced FileStatus = iota
	FileNeedsUpload
	FileNeedsDownload
	FileSyncingUpload
	FileSyncingDownload
	FileError
)

// IsPending reports whether the file still has to move in either direction.
func (s FileStatus) IsPending() bool {
	switch s {
	case FileNeedsUpload, FileNeedsDownload, FileSyncingUpload, FileSyncingDownload:
		return true
	default:
		return false
	}
}

// IsSyncing reports whether a transfer session owns the file.
func (s FileStatus) IsSyncing() bool {
	return s == FileSyncingUpload || s == FileSyncingDownload
}

// String returns the display name of the status.
func (s FileStatus) String() string {
	switch s {
	case FileSynced:
		return "Synced"
	case FileNeedsUpload:
		return "NeedsUpload"
	case FileNeedsDownload:
		return "NeedsDownload"
	case FileSyncingUpload:
		return "SyncingUpload"
	case FileSyncingDownload:
		return "SyncingDownload"
	case FileError:
		return "Error"
	default:
		return fmt.Sprintf("FileStatus(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s FileStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *FileStatus) UnmarshalText(text []byte) error {
	for candidate := FileSynced; candidate <= FileError; candidate++ {
		if strings.EqualFold(string(text), candidate.String()) {
			*s = candidate
			return nil
		}
	}

	return fmt.Errorf("%w: %q", ErrUnknownStatus, string(text))
}

// pending returns the status a syncing entry falls back to when its
// session goes away.
func (s FileStatus) pending() FileStatus {
	switch s {
	case FileSyncingUpload:
		return FileNeedsUpload
	case FileSyncingDownload:
		return FileNeedsDownload
	default:
		return s
	}
}

// FolderStatus is the derived state of a folder.
type FolderStatus int

// FolderStatus values.
const (
	FolderSynced FolderStatus = iota
	FolderSyncing
	FolderPaused
	FolderError
	FolderPermissionNeeded
)

// String returns the display name of the status.
func (s FolderStatus) String() string {
	switch s {
	case FolderSynced:
		return "Synced"
	case FolderSyncing:
		return "Syncing"
	case FolderPaused:
		return "Paused"
	case FolderError:
		return "Error"
	case FolderPermissionNeeded:
		return "PermissionNeeded"
	default:
		return fmt.Sprintf("FolderStatus(%d)", int(s))
	}
}

// PeerStatus is the connection state of a peer.
type PeerStatus int

// PeerStatus values.
const (
	PeerConnecting PeerStatus = iota
	PeerConnected
	PeerDisconnected
	PeerFailed
)

// IsGone reports whether the peer's channel is no longer usable.
func (s PeerStatus) IsGone() bool {
	return s == PeerDisconnected || s == PeerFailed
}

// String returns the display name of the status.
func (s PeerStatus) String() string {
	switch s {
	case PeerConnecting:
		return "Connecting"
	case PeerConnected:
		return "Connected"
	case PeerDisconnected:
		return "Disconnected"
	case PeerFailed:
		return "Failed"
	default:
		return fmt.Sprintf("PeerStatus(%d)", int(s))
	}
}

// Direction tells which way a transfer moves bytes.
type Direction int

// Direction values.
const (
	Upload Direction = iota
	Download
)

// String returns "upload" or "download".
func (d Direction) String() string {
	if d == Download {
		return "download"
	}

	return "upload"
}

// FileEntry is one file of a folder.
type FileEntry struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	// LastModified is Unix milliseconds, the unit used on the wire.
	LastModified int64      `json:"lastModified"`
	Status       FileStatus `json:"status"`
}

// Peer is a device connected for a folder.
type Peer struct {
	ID     string
	Name   string
	Status PeerStatus
}

// SyncProgress is the byte progress of one active transfer.
type SyncProgress struct {
	TotalSize       int64
	TransferredSize int64
}

// Folder is a snapshot of a synced folder. Snapshots are copies and never
// change after they are returned.
type Folder struct {
	ID       string
	Name     string
	Location string
	Status   FolderStatus
	Paused   bool
	Files    []FileEntry
	Peers    []Peer
	// SyncProgress holds an entry for every file in SyncingUpload or
	// SyncingDownload, keyed by file name.
	SyncProgress map[string]SyncProgress
	Metrics      ProgressMetrics
}

// File returns the entry called name.
func (f Folder) File(name string) (FileEntry, bool) {
	for _, entry := range f.Files {
		if entry.Name == name {
			return entry, true
		}
	}

	return FileEntry{}, false
}

// Peer returns the peer with the given id.
func (f Folder) Peer(id string) (Peer, bool) {
	for _, peer := range f.Peers {
		if peer.ID == id {
			return peer, true
		}
	}

	return Peer{}, false
}

// FolderRecord is the persisted form of a folder. Destinations and peers
// are never persisted.
type FolderRecord struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Location string      `json:"location"`
	Paused   bool        `json:"paused"`
	Files    []FileEntry `json:"files"`
}

// PeerName derives the display label for a peer id.
func PeerName(id string) string {
	const suffixLen = 4

	if len(id) > suffixLen {
		id = id[len(id)-suffixLen:]
	}

	return "Device-" + id
}

// ToUnixMilli converts a modification time to wire milliseconds.
func ToUnixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixMilli()
}

// FromUnixMilli converts wire milliseconds to a time. Zero stays zero.
func FromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}

	return time.UnixMilli(ms)
}

// TruncateMillis drops the part of a wire timestamp finer than precision.
func TruncateMillis(ms int64, precision time.Duration) int64 {
	step := precision.Milliseconds()
	if step <= 1 {
		return ms
	}

	return ms - ms%step
}
