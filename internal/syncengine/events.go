package syncengine

import (
	pkgerrors "github.com/joe/peersync/pkg/errors"
)

// Event is the interface implemented by all sync engine events.
type Event interface {
	isEvent()
}

// EventEmitter is the interface for emitting events.
type EventEmitter interface {
	Emit(event Event)
}

// Folder events

// FolderUpdated is emitted after any command or message changed a folder.
type FolderUpdated struct {
	Folder Folder
}

func (FolderUpdated) isEvent() {}

// FolderRemoved is emitted when a folder is deleted.
type FolderRemoved struct {
	FolderID string
}

func (FolderRemoved) isEvent() {}

// Peer events

// PeerStatusChanged is emitted when a peer connects, disconnects or fails.
type PeerStatusChanged struct {
	FolderID string // empty until the peer announced a folder
	Peer     Peer
}

func (PeerStatusChanged) isEvent() {}

// Transfer events

// TransferStarted is emitted when an upload or download session opens.
type TransferStarted struct {
	FolderID  string
	FileName  string
	PeerID    string
	Direction Direction
	Size      int64
}

func (TransferStarted) isEvent() {}

// TransferProgress is emitted after every chunk.
type TransferProgress struct {
	FolderID       string
	FileName       string
	Direction      Direction
	Progress       SyncProgress
	BytesPerSecond float64
}

func (TransferProgress) isEvent() {}

// TransferComplete is emitted when a download is stored or an upload is
// acknowledged.
type TransferComplete struct {
	FolderID  string
	FileName  string
	PeerID    string
	Direction Direction
	Size      int64
}

func (TransferComplete) isEvent() {}

// Error events

// ErrorOccurred is emitted when a failure was localized to a folder, file,
// peer or message.
type ErrorOccurred struct {
	FolderID string
	FileName string
	PeerID   string
	Err      pkgerrors.ActionableError
}

func (ErrorOccurred) isEvent() {}
