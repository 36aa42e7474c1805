// Package syncengine keeps folders identical across directly connected peers.
//
// A Registry owns the folders. Each connected peer gets a session whose
// dispatcher goroutine handles that peer's frames in arrival order and whose
// upload worker serves the peer's file requests one at a time. Listings are
// compared by Reconcile; the newer modification time wins.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joe/peersync/internal/transport"
	pkgerrors "github.com/joe/peersync/pkg/errors"
	"github.com/joe/peersync/pkg/filesystem"
)

// Exported constants.
const (
	// PeerQueueSize is the buffer of each peer's event queue.
	PeerQueueSize = 256
)

// Exported variables.
var (
	ErrAccessNeeded     = errors.New("folder needs access to a local directory")
	ErrEmptyName        = errors.New("folder name is empty")
	ErrFolderExists     = errors.New("folder already exists")
	ErrFolderPaused     = errors.New("folder is paused")
	ErrIgnoredFile      = errors.New("file is excluded by an ignore pattern")
	ErrInvalidPattern   = errors.New("invalid ignore pattern")
	ErrNoTransfer       = errors.New("no active transfer")
	ErrPeerExists       = errors.New("peer already connected")
	ErrProgressOverflow = errors.New("transfer progress exceeds declared size")
	ErrTransferBusy     = errors.New("file is busy")
	ErrUnknownFile      = errors.New("unknown file")
	ErrUnknownFolder    = errors.New("unknown folder")
	ErrUnknownPeer      = errors.New("unknown peer")
	ErrUnknownStatus    = errors.New("unknown status")
	ErrWrongDirectory   = errors.New("picked directory does not match the folder")
)

// DestinationAcquirer provides a local directory for a folder that a peer
// announced and this device does not know yet.
type DestinationAcquirer interface {
	Acquire(ctx context.Context, folderID, folderName string) (filesystem.Destination, error)
}

// FolderStore persists the folder list.
type FolderStore interface {
	Load() ([]FolderRecord, error)
	Save(records []FolderRecord) error
}

// MetricsRecorder receives counters about transfers and peers.
type MetricsRecorder interface {
	BytesTransferred(direction string, n int)
	PeerConnected()
	PeerDisconnected()
	ProtocolError()
	TransferFinished(direction, result string)
	TransferStarted(direction string)
}

// Options configures an Engine. Zero values select defaults.
type Options struct {
	Logger       *zap.Logger
	TimeProvider TimeProvider
	Filter       FileFilter
	// Acquirer handles folders first announced by a peer. Without one, such
	// peers are disconnected.
	Acquirer DestinationAcquirer
	Store    FolderStore
	Metrics  MetricsRecorder
	// LowWaterMark is the buffered amount above which chunk sends wait.
	LowWaterMark uint64
	// StallTimeout reverts transfers without progress for this long. Zero
	// disables the sweeper.
	StallTimeout time.Duration
}

// Engine runs folder sync for any number of peers.
type Engine struct {
	registry *Registry
	opts     Options
	log      *zap.Logger
	enricher pkgerrors.Enricher
	emitter  EventEmitter

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	sessions  map[string]*peerSession
	sweepDone chan struct{}
	saveMu    sync.Mutex
}

// NewEngine creates an engine with no folders and no peers.
func NewEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if opts.TimeProvider == nil {
		opts.TimeProvider = &RealTimeProvider{}
	}

	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}

	if opts.LowWaterMark == 0 {
		opts.LowWaterMark = transport.DefaultLowWaterMark
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		registry: NewRegistry(opts.TimeProvider, opts.Filter),
		opts:     opts,
		log:      opts.Logger,
		enricher: pkgerrors.NewEnricher(),
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*peerSession),
	}
}

// AddFolder registers a local directory as a new folder.
func (e *Engine) AddFolder(name string, dest filesystem.Destination) (Folder, error) {
	folder, err := e.registry.AddFolder(name, dest)
	if err != nil {
		return Folder{}, fmt.Errorf("failed to add folder %s: %w", dest.Location(), err)
	}

	e.log.Info("folder added", zap.String("folder", folder.ID), zap.String("name", folder.Name),
		zap.String("location", folder.Location), zap.Int("files", len(folder.Files)))
	e.persist()
	e.emit(FolderUpdated{Folder: folder})

	return folder, nil
}

// Close disconnects every peer and stops background work.
func (e *Engine) Close() {
	e.cancel()

	e.mu.RLock()
	sessions := make([]*peerSession, 0, len(e.sessions))
	for _, session := range e.sessions {
		sessions = append(sessions, session)
	}
	sweepDone := e.sweepDone
	e.mu.RUnlock()

	for _, session := range sessions {
		session.requestClose(PeerDisconnected)
		<-session.done
	}

	if sweepDone != nil {
		<-sweepDone
	}
}

// ClosePeer closes a peer's channel. Its transfers revert to pending.
func (e *Engine) ClosePeer(peerID string) {
	if session, ok := e.session(peerID); ok {
		session.requestClose(PeerDisconnected)
	}
}

// ConnectPeer starts a session for a new channel. folderID names the folder
// the local side offered; it is empty when the remote side will announce
// the folder. The returned Receiver must be attached to the channel.
func (e *Engine) ConnectPeer(peerID, folderID string, ch transport.Channel) (transport.Receiver, error) {
	if _, exists := e.session(peerID); exists {
		return nil, fmt.Errorf("%w: %s", ErrPeerExists, peerID)
	}

	if folderID != "" {
		folder, _, err := e.registry.RegisterPeer(folderID, peerID, PeerConnecting)
		if err != nil {
			return nil, err
		}

		e.emit(FolderUpdated{Folder: folder})
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.sessions[peerID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrPeerExists, peerID)
	}

	session := newPeerSession(e, peerID, folderID, transport.NewLink(ch, e.opts.LowWaterMark))
	e.sessions[peerID] = session

	go session.run()
	go session.uploadLoop()

	e.log.Info("peer session started", zap.String("peer", peerID), zap.String("folder", folderID))

	return session, nil
}

// DeleteFolder forgets a folder and disconnects its peers.
func (e *Engine) DeleteFolder(id string) error {
	folder, err := e.registry.DeleteFolder(id)
	if err != nil {
		return err
	}

	for _, session := range e.folderSessions(id) {
		session.requestClose(PeerDisconnected)
	}

	e.log.Info("folder deleted", zap.String("folder", id), zap.String("name", folder.Name))
	e.persist()
	e.emit(FolderRemoved{FolderID: id})

	return nil
}

// Folder returns a snapshot of one folder.
func (e *Engine) Folder(id string) (Folder, error) {
	return e.registry.Get(id)
}

// Folders returns snapshots of all folders.
func (e *Engine) Folders() []Folder {
	return e.registry.Folders()
}

// GetEventEmitter returns the current event emitter.
func (e *Engine) GetEventEmitter() EventEmitter {
	return e.emitter
}

// GrantAccess attaches a directory to a folder that needs permission. An
// unpaused folder re-announces its listing to connected peers and
// reconciles the listings they sent while it had no access.
func (e *Engine) GrantAccess(id string, dest filesystem.Destination) (Folder, error) {
	folder, err := e.registry.GrantAccess(id, dest)
	if err != nil {
		return folder, err
	}

	e.log.Info("folder access granted", zap.String("folder", id), zap.String("location", folder.Location))
	e.persist()
	e.emit(FolderUpdated{Folder: folder})

	if !folder.Paused {
		e.resync(id)
	}

	return folder, nil
}

// RenameFolder changes a folder's display name.
func (e *Engine) RenameFolder(id, name string) (Folder, error) {
	folder, err := e.registry.RenameFolder(id, name)
	if err != nil {
		return folder, err
	}

	e.persist()
	e.emit(FolderUpdated{Folder: folder})

	return folder, nil
}

// RevokeAccess drops a folder's directory, moving it to PermissionNeeded.
// Inbound transfers for the folder are aborted.
func (e *Engine) RevokeAccess(id string) (Folder, error) {
	return e.revokeAccess(id, nil)
}

// SessionState reports where a peer's protocol session stands.
func (e *Engine) SessionState(peerID string) (SessionState, bool) {
	session, ok := e.session(peerID)
	if !ok {
		return SessionIdle, false
	}

	return session.State(), true
}

// SetEventEmitter sets the event emitter for UI communication.
// The emitter is optional - if nil, no events will be emitted.
func (e *Engine) SetEventEmitter(emitter EventEmitter) {
	e.emitter = emitter
}

// SetPaused pauses or resumes a folder. Pausing aborts its inbound
// transfers; resuming re-announces the listing and reconciles cached peer
// listings.
func (e *Engine) SetPaused(id string, paused bool) (Folder, error) {
	folder, err := e.registry.SetPaused(id, paused)
	if err != nil {
		return folder, err
	}

	e.log.Info("folder pause changed", zap.String("folder", id), zap.Bool("paused", paused))
	e.persist()

	if paused {
		e.abortFolder(id, nil)
	} else {
		e.resync(id)
	}

	folder, err = e.registry.Get(id)
	e.emit(FolderUpdated{Folder: folder})

	return folder, err
}

// SetPeerStatus reports a transport state change. Connected triggers the
// listing exchange; Disconnected and Failed close the session.
func (e *Engine) SetPeerStatus(peerID string, status PeerStatus) {
	session, ok := e.session(peerID)
	if !ok {
		return
	}

	if status.IsGone() {
		session.requestClose(status)
		return
	}

	session.enqueue(peerEvent{kind: eventStatus, status: status})
}

// Start restores persisted folders and starts the stall sweeper. Restored
// folders need access before they sync.
func (e *Engine) Start() error {
	if e.opts.Store != nil {
		records, err := e.opts.Store.Load()
		if err != nil {
			return fmt.Errorf("failed to load folders: %w", err)
		}

		for _, folder := range e.registry.Restore(records) {
			e.emit(FolderUpdated{Folder: folder})
		}
	}

	if e.opts.StallTimeout > 0 {
		e.startSweeper()
	}

	return nil
}

// abortFolder tells every session to abandon its inbound transfers and
// unacknowledged uploads for a folder. origin, if set, is the session doing
// the asking; it handles the abort itself.
func (e *Engine) abortFolder(folderID string, origin *peerSession) {
	for _, session := range e.folderSessions(folderID) {
		if session == origin {
			session.abortFolder(folderID)
			continue
		}

		session.enqueue(peerEvent{kind: eventAbortFolder, folderID: folderID})
	}
}

// actionable wraps err with a category and suggestions.
func (e *Engine) actionable(err error, path string) pkgerrors.ActionableError {
	var actionableErr pkgerrors.ActionableError

	_ = errors.As(e.enricher.Enrich(err, path), &actionableErr)

	return actionableErr
}

// emit sends an event if an emitter is configured.
// Safe to call even when emitter is nil.
func (e *Engine) emit(event Event) {
	if e.emitter != nil {
		e.emitter.Emit(event)
	}
}

func (e *Engine) emitFolder(folderID string) {
	folder, err := e.registry.Get(folderID)
	if err == nil {
		e.emit(FolderUpdated{Folder: folder})
	}
}

// fail localizes err: permission loss revokes the folder's access and is
// reported; other errors are reported only.
func (e *Engine) fail(folderID, fileName, peerID string, err error, origin *peerSession) {
	actionable := e.actionable(err, fileName)

	e.log.Warn("sync failure",
		zap.String("folder", folderID),
		zap.String("file", fileName),
		zap.String("peer", peerID),
		zap.String("category", string(actionable.Category())),
		zap.Error(err))

	if actionable.Category() == pkgerrors.CategoryPermission && folderID != "" {
		_, _ = e.revokeAccess(folderID, origin)
	}

	e.emit(ErrorOccurred{FolderID: folderID, FileName: fileName, PeerID: peerID, Err: actionable})
}

func (e *Engine) folderSessions(folderID string) []*peerSession {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sessions := make([]*peerSession, 0)

	for _, session := range e.sessions {
		if session.FolderID() == folderID {
			sessions = append(sessions, session)
		}
	}

	return sessions
}

func (e *Engine) persist() {
	if e.opts.Store == nil {
		return
	}

	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	if err := e.opts.Store.Save(e.registry.Records()); err != nil {
		e.log.Error("failed to save folders", zap.Error(err))
	}
}

func (e *Engine) removeSession(session *peerSession) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sessions[session.id] == session {
		delete(e.sessions, session.id)
	}
}

// resync asks every session of a folder to re-send the listing and to
// reconcile the last listing it received.
func (e *Engine) resync(folderID string) {
	for _, session := range e.folderSessions(folderID) {
		session.enqueue(peerEvent{kind: eventResync, folderID: folderID})
	}
}

func (e *Engine) revokeAccess(id string, origin *peerSession) (Folder, error) {
	folder, err := e.registry.RevokeAccess(id)
	if err != nil {
		return folder, err
	}

	e.log.Warn("folder access revoked", zap.String("folder", id))
	e.abortFolder(id, origin)
	e.emit(FolderUpdated{Folder: folder})

	return folder, nil
}

func (e *Engine) session(peerID string) (*peerSession, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	session, ok := e.sessions[peerID]

	return session, ok
}

type nopMetrics struct{}

func (nopMetrics) BytesTransferred(string, int)     {}
func (nopMetrics) PeerConnected()                   {}
func (nopMetrics) PeerDisconnected()                {}
func (nopMetrics) ProtocolError()                   {}
func (nopMetrics) TransferFinished(string, string)  {}
func (nopMetrics) TransferStarted(string)           {}
