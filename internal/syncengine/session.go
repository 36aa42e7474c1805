package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/joe/peersync/internal/protocol"
	"github.com/joe/peersync/internal/transport"
	pkgerrors "github.com/joe/peersync/pkg/errors"
	"github.com/joe/peersync/pkg/fileops"
	"github.com/joe/peersync/pkg/filesystem"
)

// SessionState is the protocol state of one peer session.
type SessionState int

// SessionState values.
const (
	// SessionIdle: no listing received yet, or the channel is closed.
	SessionIdle SessionState = iota
	// SessionListExchanged: listings were exchanged and nothing is moving.
	SessionListExchanged
	// SessionReconciling: a received listing is being compared.
	SessionReconciling
	// SessionTransferring: at least one upload or download is open.
	SessionTransferring
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "Idle"
	case SessionListExchanged:
		return "ListExchanged"
	case SessionReconciling:
		return "Reconciling"
	case SessionTransferring:
		return "Transferring"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

type eventKind int

const (
	eventFrame eventKind = iota
	eventStatus
	eventAbortFolder
	eventResync
	eventStalled
)

// peerEvent is one item on a session's ordered queue.
type peerEvent struct {
	kind     eventKind
	frame    transport.Frame
	status   PeerStatus
	folderID string
	name     string
}

// inboundSession is one file being received.
type inboundSession struct {
	id       uint32
	folderID string
	name     string
	writer   filesystem.PartWriter
	chunks   *fileops.ChunkWriter
}

// peerSession owns one peer's channel. Its dispatcher goroutine handles
// frames in arrival order; uploads run on a separate worker so control
// messages keep flowing while a file is sent.
type peerSession struct {
	engine *Engine
	id     string
	link   *transport.Link
	log    *zap.Logger

	events      chan peerEvent
	closing     chan struct{}
	done        chan struct{}
	closeOnce   sync.Once
	closeStatus PeerStatus

	ctx        context.Context
	cancel     context.CancelFunc
	uploads    *uploadQueue
	workerDone chan struct{}

	mu          sync.Mutex
	folderID    string
	status      PeerStatus
	exchanged   bool
	reconciling bool
	inbound     map[uint32]*inboundSession
	outbound    map[string]*uploadJob
	nextID      uint32
}

func newPeerSession(engine *Engine, peerID, folderID string, link *transport.Link) *peerSession {
	ctx, cancel := context.WithCancel(engine.ctx)

	return &peerSession{
		engine:     engine,
		id:         peerID,
		link:       link,
		log:        engine.log.With(zap.String("peer", peerID)),
		events:     make(chan peerEvent, PeerQueueSize),
		closing:    make(chan struct{}),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		uploads:    newUploadQueue(),
		workerDone: make(chan struct{}),
		folderID:   folderID,
		status:     PeerConnecting,
		inbound:    make(map[uint32]*inboundSession),
		outbound:   make(map[string]*uploadJob),
	}
}

// Closed implements transport.Receiver.
func (s *peerSession) Closed() {
	s.requestClose(PeerDisconnected)
}

// FolderID returns the folder the peer is bound to, or "".
func (s *peerSession) FolderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.folderID
}

// Receive implements transport.Receiver.
func (s *peerSession) Receive(frame transport.Frame) {
	s.enqueue(peerEvent{kind: eventFrame, frame: frame})
}

// State derives the session state.
func (s *peerSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.closing:
		return SessionIdle
	default:
	}

	switch {
	case s.reconciling:
		return SessionReconciling
	case len(s.inbound) > 0 || len(s.outbound) > 0:
		return SessionTransferring
	case s.exchanged:
		return SessionListExchanged
	default:
		return SessionIdle
	}
}

// abortFolder abandons inbound transfers and unacknowledged uploads of a
// folder. Uploads still being sent finish on their own.
func (s *peerSession) abortFolder(folderID string) {
	s.mu.Lock()

	aborted := make([]*inboundSession, 0)

	for id, in := range s.inbound {
		if in.folderID == folderID {
			aborted = append(aborted, in)
			delete(s.inbound, id)
		}
	}

	names := make([]string, 0, len(aborted))

	for key, job := range s.outbound {
		if job.folderID == folderID && job.state == jobAwaitingAck {
			names = append(names, job.name)
			delete(s.outbound, key)
		}
	}
	s.mu.Unlock()

	for _, in := range aborted {
		_ = in.writer.Abort()
		names = append(names, in.name)
		s.engine.opts.Metrics.TransferFinished(Download.String(), "aborted")
	}

	if len(names) > 0 {
		_, _ = s.engine.registry.RevertTransfers(folderID, s.id, names...)
		s.log.Info("transfers abandoned", zap.String("folder", folderID), zap.Strings("files", names))
		s.engine.emitFolder(folderID)
	}
}

// bind attaches the session to a folder. A session serves one folder.
func (s *peerSession) bind(folderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.folderID == "" {
		s.folderID = folderID
	}

	if s.folderID != folderID {
		return fmt.Errorf("%w: peer is bound to folder %s, got %s", protocol.ErrMalformed, s.folderID, folderID)
	}

	return nil
}

func (s *peerSession) dispatch(event peerEvent) {
	switch event.kind {
	case eventFrame:
		if event.frame.Text {
			s.handleText(event.frame.Data)
		} else {
			s.handleChunk(event.frame.Data)
		}
	case eventStatus:
		s.handleStatus(event.status)
	case eventAbortFolder:
		s.abortFolder(event.folderID)
	case eventResync:
		s.handleResync(event.folderID)
	case eventStalled:
		s.handleStalled(event.folderID, event.name)
	}
}

func (s *peerSession) enqueue(event peerEvent) {
	select {
	case s.events <- event:
	case <-s.closing:
	}
}

// folderFor checks that a message targets the folder the peer announced
// and that the folder still exists.
func (s *peerSession) folderFor(folderID string) bool {
	if s.FolderID() != folderID {
		s.protocolError(fmt.Errorf("%w: message for folder %s the peer never announced", protocol.ErrMalformed, folderID))
		return false
	}

	if _, err := s.engine.registry.Paused(folderID); err != nil {
		s.log.Debug("message for unknown folder dropped", zap.String("folder", folderID))
		return false
	}

	return true
}

func (s *peerSession) handleAck(msg protocol.FileReceiveAck) {
	if !s.folderFor(msg.FolderID) {
		return
	}

	s.mu.Lock()
	job, tracked := s.outbound[outboundKey(msg.FolderID, msg.FileName)]
	if tracked && job.state == jobAwaitingAck {
		delete(s.outbound, outboundKey(msg.FolderID, msg.FileName))
	}
	s.mu.Unlock()

	if !tracked || job.state != jobAwaitingAck {
		s.log.Debug("ack without pending upload dropped", zap.String("file", msg.FileName))
		return
	}

	folder, err := s.engine.registry.FinishUpload(msg.FolderID, msg.FileName)
	if err != nil {
		s.log.Debug("ack ignored", zap.String("file", msg.FileName), zap.Error(err))
		return
	}

	s.log.Info("upload acknowledged", zap.String("folder", msg.FolderID), zap.String("file", msg.FileName))
	s.engine.opts.Metrics.TransferFinished(Upload.String(), "ok")
	s.engine.emit(TransferComplete{
		FolderID:  msg.FolderID,
		FileName:  msg.FileName,
		PeerID:    s.id,
		Direction: Upload,
		Size:      job.entry.Size,
	})
	s.engine.emit(FolderUpdated{Folder: folder})
}

func (s *peerSession) handleChunk(frame []byte) {
	sessionID, data, err := protocol.DecodeChunk(frame)
	if err != nil {
		s.protocolError(err)
		return
	}

	s.mu.Lock()
	in, ok := s.inbound[sessionID]
	s.mu.Unlock()

	if !ok {
		s.log.Debug("chunk for unknown session dropped", zap.Uint32("session", sessionID), zap.Int("bytes", len(data)))
		return
	}

	if s.folderPaused(in.folderID) {
		s.log.Debug("chunk for paused folder dropped", zap.Uint32("session", sessionID))
		return
	}

	if _, err := in.chunks.WriteChunk(data); err != nil {
		s.dropInbound(in)
		_, _ = s.engine.registry.FailTransfer(in.folderID, in.name)
		s.engine.opts.Metrics.TransferFinished(Download.String(), "failed")

		if errors.Is(err, fileops.ErrSizeExceeded) {
			s.protocolError(fmt.Errorf("%w: %w", pkgerrors.ErrProtocol, err))
			s.engine.emitFolder(in.folderID)

			return
		}

		s.engine.fail(in.folderID, in.name, s.id, err, s)
		s.engine.emitFolder(in.folderID)

		return
	}

	progress, err := s.engine.registry.AdvanceTransfer(in.folderID, in.name, int64(len(data)))
	if err != nil {
		s.log.Debug("progress not recorded", zap.String("file", in.name), zap.Error(err))
		return
	}

	s.engine.opts.Metrics.BytesTransferred(Download.String(), len(data))
	s.emitProgress(in.folderID, in.name, Download, progress)
}

func (s *peerSession) handleComplete(msg protocol.FileTransferComplete) {
	if !s.folderFor(msg.FolderID) {
		return
	}

	in, ok := s.takeInbound(msg)
	if !ok {
		s.log.Debug("completion for unknown session dropped", zap.String("file", msg.FileName))
		return
	}

	if !in.chunks.Complete() {
		_ = in.writer.Abort()
		_, _ = s.engine.registry.FailTransfer(in.folderID, in.name)
		s.engine.opts.Metrics.TransferFinished(Download.String(), "failed")
		s.protocolError(fmt.Errorf("%w: %s completed after %d of %d bytes",
			protocol.ErrMalformed, in.name, in.chunks.Written(), in.chunks.Total()))
		s.engine.emitFolder(in.folderID)

		return
	}

	info, err := s.finishInbound(in)
	if err != nil {
		_, _ = s.engine.registry.FailTransfer(in.folderID, in.name)
		s.engine.opts.Metrics.TransferFinished(Download.String(), "failed")
		s.engine.fail(in.folderID, in.name, s.id, err, s)
		s.engine.emitFolder(in.folderID)

		return
	}

	folder, err := s.engine.registry.FinishDownload(in.folderID, info)
	if err != nil {
		s.log.Warn("download finished for a folder that went away", zap.String("file", in.name), zap.Error(err))
		return
	}

	s.send(protocol.FileReceiveAck{FolderID: in.folderID, FileName: in.name})

	s.log.Info("download complete", zap.String("folder", in.folderID), zap.String("file", in.name),
		zap.Int64("bytes", info.Size))
	s.engine.opts.Metrics.TransferFinished(Download.String(), "ok")
	s.engine.emit(TransferComplete{
		FolderID:  in.folderID,
		FileName:  in.name,
		PeerID:    s.id,
		Direction: Download,
		Size:      info.Size,
	})
	s.engine.emit(FolderUpdated{Folder: folder})
}

func (s *peerSession) handleFileList(msg protocol.FileList) {
	s.setReconciling(true)
	defer s.setReconciling(false)

	if bound := s.FolderID(); bound != "" && bound != msg.FolderID {
		s.protocolError(fmt.Errorf("%w: peer is bound to folder %s, got %s", protocol.ErrMalformed, bound, msg.FolderID))
		return
	}

	if _, err := s.engine.registry.Paused(msg.FolderID); errors.Is(err, ErrUnknownFolder) {
		if !s.materialize(msg) {
			return
		}
	}

	if err := s.bind(msg.FolderID); err != nil {
		s.protocolError(err)
		return
	}

	folder, added, err := s.engine.registry.RegisterPeer(msg.FolderID, s.id, PeerConnected)
	if err != nil {
		return
	}

	if added {
		s.engine.emit(PeerStatusChanged{FolderID: msg.FolderID, Peer: Peer{ID: s.id, Name: PeerName(s.id), Status: PeerConnected}})

		if folder.Status != FolderPaused && folder.Status != FolderPermissionNeeded {
			s.sendListing(msg.FolderID)
		}
	}

	s.reconcile(msg.FolderID, msg.Files)
}

func (s *peerSession) handleRequest(msg protocol.RequestFile) {
	if !s.folderFor(msg.FolderID) {
		return
	}

	key := outboundKey(msg.FolderID, msg.FileName)

	s.mu.Lock()
	job, tracked := s.outbound[key]
	s.mu.Unlock()

	if tracked && job.state != jobAwaitingAck {
		s.log.Debug("duplicate request ignored", zap.String("file", msg.FileName))
		return
	}

	entry, folder, err := s.engine.registry.BeginUpload(msg.FolderID, s.id, msg.FileName)
	if err != nil {
		s.refuseUpload(msg, err)
		return
	}

	job = &uploadJob{folderID: msg.FolderID, name: msg.FileName, entry: entry}

	s.mu.Lock()
	s.outbound[key] = job
	s.mu.Unlock()

	s.uploads.push(job)
	s.engine.emit(FolderUpdated{Folder: folder})
}

// handleResync re-announces our listing and reconciles the peer's cached one.
func (s *peerSession) handleResync(folderID string) {
	if s.FolderID() != folderID {
		return
	}

	s.sendListing(folderID)

	if files, ok := s.engine.registry.CachedListing(folderID, s.id); ok {
		s.setReconciling(true)
		s.reconcile(folderID, files)
		s.setReconciling(false)
	}
}

func (s *peerSession) handleStalled(folderID, name string) {
	s.mu.Lock()

	var stalled *inboundSession

	for id, in := range s.inbound {
		if in.folderID == folderID && in.name == name {
			stalled = in
			delete(s.inbound, id)
		}
	}

	var (
		state  jobState
		cancel context.CancelFunc
	)

	job, tracked := s.outbound[outboundKey(folderID, name)]
	if tracked {
		state, cancel = job.state, job.cancel
	}

	if tracked && state == jobAwaitingAck {
		delete(s.outbound, outboundKey(folderID, name))
	}
	s.mu.Unlock()

	switch {
	case stalled != nil:
		_ = stalled.writer.Abort()
		s.engine.opts.Metrics.TransferFinished(Download.String(), "stalled")
	case tracked && state == jobSending:
		// The worker reverts the entry when its send is cancelled.
		cancel()
		return
	case tracked:
		s.engine.opts.Metrics.TransferFinished(Upload.String(), "stalled")
	}

	s.log.Warn("stalled transfer reverted", zap.String("folder", folderID), zap.String("file", name))
	_, _ = s.engine.registry.RevertTransfers(folderID, s.id, name)
	s.engine.emitFolder(folderID)
}

func (s *peerSession) handleStart(msg protocol.StartFileTransfer) {
	if !s.folderFor(msg.FolderID) {
		return
	}

	if err := filesystem.ValidateName(msg.FileName); err != nil {
		s.protocolError(fmt.Errorf("%w: %w", protocol.ErrMalformed, err))
		return
	}

	s.replaceInbound(msg)

	folder, err := s.engine.registry.BeginDownload(msg.FolderID, s.id, msg)
	if err != nil {
		s.log.Debug("inbound transfer refused", zap.String("file", msg.FileName), zap.Error(err))
		return
	}

	dest, err := s.engine.registry.Destination(msg.FolderID)
	if err == nil {
		var writer filesystem.PartWriter

		writer, err = dest.OpenForWrite(msg.FileName, FromUnixMilli(msg.LastModified))
		if err == nil {
			s.mu.Lock()
			s.inbound[msg.SessionID] = &inboundSession{
				id:       msg.SessionID,
				folderID: msg.FolderID,
				name:     msg.FileName,
				writer:   writer,
				chunks:   fileops.NewChunkWriter(writer, msg.FileSize, msg.FileName, nil),
			}
			s.mu.Unlock()
		}
	}

	if err != nil {
		_, _ = s.engine.registry.FailTransfer(msg.FolderID, msg.FileName)
		s.engine.fail(msg.FolderID, msg.FileName, s.id, err, s)
		s.engine.emitFolder(msg.FolderID)

		return
	}

	s.log.Info("download started", zap.String("folder", msg.FolderID), zap.String("file", msg.FileName),
		zap.Int64("bytes", msg.FileSize), zap.Uint32("session", msg.SessionID))
	s.engine.opts.Metrics.TransferStarted(Download.String())
	s.engine.emit(TransferStarted{
		FolderID:  msg.FolderID,
		FileName:  msg.FileName,
		PeerID:    s.id,
		Direction: Download,
		Size:      msg.FileSize,
	})
	s.engine.emit(FolderUpdated{Folder: folder})
}

func (s *peerSession) handleStatus(status PeerStatus) {
	s.mu.Lock()
	previous := s.status
	s.status = status
	folderID := s.folderID
	s.mu.Unlock()

	if previous == status {
		return
	}

	if status == PeerConnected {
		s.engine.opts.Metrics.PeerConnected()
	}

	s.engine.emit(PeerStatusChanged{FolderID: folderID, Peer: Peer{ID: s.id, Name: PeerName(s.id), Status: status}})

	if folderID == "" {
		return
	}

	folder, err := s.engine.registry.SetPeerStatus(folderID, s.id, status)
	if err != nil {
		return
	}

	s.engine.emit(FolderUpdated{Folder: folder})

	if status == PeerConnected && folder.Status != FolderPaused && folder.Status != FolderPermissionNeeded {
		s.sendListing(folderID)
	}
}

func (s *peerSession) handleText(data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		s.protocolError(err)
		return
	}

	if msg.Type() != protocol.TypeFileList && s.folderPaused(folderOf(msg)) {
		s.log.Debug("message for paused folder dropped", zap.String("type", string(msg.Type())))
		return
	}

	switch m := msg.(type) {
	case protocol.FileList:
		s.handleFileList(m)
	case protocol.RequestFile:
		s.handleRequest(m)
	case protocol.StartFileTransfer:
		s.handleStart(m)
	case protocol.FileTransferComplete:
		s.handleComplete(m)
	case protocol.FileReceiveAck:
		s.handleAck(m)
	}
}

func (s *peerSession) dropInbound(in *inboundSession) {
	s.mu.Lock()
	if s.inbound[in.id] == in {
		delete(s.inbound, in.id)
	}
	s.mu.Unlock()

	_ = in.writer.Abort()
}

func (s *peerSession) emitProgress(folderID, name string, direction Direction, progress SyncProgress) {
	_, rate, _ := s.engine.registry.TransferProgress(folderID, name)

	s.engine.emit(TransferProgress{
		FolderID:       folderID,
		FileName:       name,
		Direction:      direction,
		Progress:       progress,
		BytesPerSecond: rate,
	})
}

// finishInbound moves the received file into place and stats it.
func (s *peerSession) finishInbound(in *inboundSession) (filesystem.FileInfo, error) {
	if err := in.writer.Close(); err != nil {
		return filesystem.FileInfo{}, err
	}

	dest, err := s.engine.registry.Destination(in.folderID)
	if err != nil {
		return filesystem.FileInfo{}, err
	}

	return dest.Stat(in.name)
}

func (s *peerSession) folderPaused(folderID string) bool {
	paused, err := s.engine.registry.Paused(folderID)

	return err == nil && paused
}

// materialize creates a folder announced by the peer. When no directory
// can be acquired the peer is disconnected.
func (s *peerSession) materialize(msg protocol.FileList) bool {
	acquirer := s.engine.opts.Acquirer
	if acquirer == nil {
		s.log.Warn("peer announced an unknown folder and nothing can accept it", zap.String("folder", msg.FolderID))
		s.requestClose(PeerDisconnected)

		return false
	}

	dest, err := acquirer.Acquire(s.ctx, msg.FolderID, msg.FolderName)
	if err != nil {
		s.engine.fail(msg.FolderID, "", s.id, fmt.Errorf("failed to acquire a directory for %s: %w", msg.FolderName, err), s)
		s.requestClose(PeerDisconnected)

		return false
	}

	folder, err := s.engine.registry.AddRemoteFolder(msg.FolderID, msg.FolderName, dest)
	if err != nil && !errors.Is(err, ErrFolderExists) {
		_ = dest.Close()
		s.engine.fail(msg.FolderID, "", s.id, err, s)
		s.requestClose(PeerDisconnected)

		return false
	}

	s.log.Info("folder materialized from peer", zap.String("folder", msg.FolderID),
		zap.String("name", msg.FolderName), zap.String("location", dest.Location()))
	s.engine.persist()
	s.engine.emit(FolderUpdated{Folder: folder})

	return true
}

func (s *peerSession) protocolError(err error) {
	s.engine.opts.Metrics.ProtocolError()
	s.log.Warn("protocol error, message dropped", zap.Error(err))
	s.engine.emit(ErrorOccurred{PeerID: s.id, Err: s.engine.actionable(err, "")})
}

// reconcile applies a listing and requests every file the peer has newer.
func (s *peerSession) reconcile(folderID string, files []protocol.FileMeta) {
	plan, folder, err := s.engine.registry.ApplyListing(folderID, s.id, files)

	s.mu.Lock()
	s.exchanged = true
	s.mu.Unlock()

	switch {
	case errors.Is(err, ErrFolderPaused), errors.Is(err, ErrAccessNeeded):
		s.log.Debug("listing cached", zap.String("folder", folderID), zap.Error(err))
		s.engine.emit(FolderUpdated{Folder: folder})

		return
	case err != nil:
		s.engine.fail(folderID, "", s.id, err, s)

		if pkgerrors.Categorize(err) != pkgerrors.CategoryPermission {
			folder, _ = s.engine.registry.MarkFaulted(folderID)
		}

		s.engine.emit(FolderUpdated{Folder: folder})

		return
	}

	s.log.Info("listing reconciled", zap.String("folder", folderID),
		zap.Int("upload", plan.ToUpload), zap.Int("download", plan.ToDownload))

	for _, directive := range plan.Directives() {
		if directive.Status == FileNeedsDownload {
			s.send(protocol.RequestFile{FolderID: folderID, FileName: directive.Name})
		}
	}

	s.engine.emit(FolderUpdated{Folder: folder})
}

func (s *peerSession) refuseUpload(msg protocol.RequestFile, err error) {
	switch {
	case errors.Is(err, ErrAccessNeeded), errors.Is(err, ErrFolderPaused),
		errors.Is(err, ErrIgnoredFile), errors.Is(err, ErrTransferBusy):
		s.log.Debug("upload refused", zap.String("file", msg.FileName), zap.Error(err))
		return
	}

	if _, failErr := s.engine.registry.FailTransfer(msg.FolderID, msg.FileName); failErr != nil {
		s.log.Debug("request for a file that is not listed", zap.String("file", msg.FileName))
	}

	s.engine.fail(msg.FolderID, msg.FileName, s.id, err, s)
	s.engine.emitFolder(msg.FolderID)
}

// replaceInbound aborts a session that a new START supersedes: one for the
// same file, or one reusing the session id.
func (s *peerSession) replaceInbound(msg protocol.StartFileTransfer) {
	s.mu.Lock()

	replaced := make([]*inboundSession, 0)

	for id, in := range s.inbound {
		if id == msg.SessionID || (in.folderID == msg.FolderID && in.name == msg.FileName) {
			replaced = append(replaced, in)
			delete(s.inbound, id)
		}
	}
	s.mu.Unlock()

	for _, in := range replaced {
		_ = in.writer.Abort()

		if in.name != msg.FileName {
			_, _ = s.engine.registry.RevertTransfers(in.folderID, s.id, in.name)
		}

		s.log.Info("inbound session replaced", zap.String("file", in.name), zap.Uint32("session", in.id))
	}
}

func (s *peerSession) requestClose(status PeerStatus) {
	s.closeOnce.Do(func() {
		s.closeStatus = status
		close(s.closing)
	})
}

func (s *peerSession) run() {
	defer close(s.done)

	for {
		select {
		case <-s.closing:
			s.shutdown()
			return
		case event := <-s.events:
			s.dispatch(event)
		}
	}
}

func (s *peerSession) send(msg protocol.Message) {
	if err := s.link.SendMessage(msg); err != nil {
		s.log.Debug("send failed", zap.String("type", string(msg.Type())), zap.Error(err))
	}
}

func (s *peerSession) sendListing(folderID string) {
	listing, err := s.engine.registry.Listing(folderID)
	if err != nil {
		s.log.Debug("listing not sent", zap.String("folder", folderID), zap.Error(err))
		return
	}

	s.send(listing)
}

func (s *peerSession) setReconciling(reconciling bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reconciling = reconciling
}

// shutdown releases everything the session holds. Inbound part files are
// deleted and every transfer of this peer reverts to pending.
func (s *peerSession) shutdown() {
	s.cancel()
	_ = s.link.Close()
	<-s.workerDone

	s.mu.Lock()
	inbound := s.inbound
	s.inbound = make(map[uint32]*inboundSession)
	s.outbound = make(map[string]*uploadJob)
	folderID := s.folderID
	wasConnected := s.status == PeerConnected
	s.mu.Unlock()

	for _, in := range inbound {
		_ = in.writer.Abort()
		s.engine.opts.Metrics.TransferFinished(Download.String(), "aborted")
	}

	if wasConnected {
		s.engine.opts.Metrics.PeerDisconnected()
	}

	s.engine.removeSession(s)

	status := s.closeStatus
	s.log.Info("peer session closed", zap.String("folder", folderID), zap.String("status", status.String()),
		zap.Int("abandoned", len(inbound)))
	s.engine.emit(PeerStatusChanged{FolderID: folderID, Peer: Peer{ID: s.id, Name: PeerName(s.id), Status: status}})

	if folderID == "" {
		return
	}

	_, _ = s.engine.registry.RevertTransfers(folderID, s.id)

	if folder, err := s.engine.registry.SetPeerStatus(folderID, s.id, status); err == nil {
		s.engine.emit(FolderUpdated{Folder: folder})
	}
}

// takeInbound removes the session a completion refers to: by session id
// when the sender supplied one, else by file name.
func (s *peerSession) takeInbound(msg protocol.FileTransferComplete) (*inboundSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, in := range s.inbound {
		if in.folderID != msg.FolderID || in.name != msg.FileName {
			continue
		}

		if msg.SessionID != 0 && msg.SessionID != id {
			continue
		}

		delete(s.inbound, id)

		return in, true
	}

	return nil, false
}

func folderOf(msg protocol.Message) string {
	switch m := msg.(type) {
	case protocol.FileList:
		return m.FolderID
	case protocol.RequestFile:
		return m.FolderID
	case protocol.StartFileTransfer:
		return m.FolderID
	case protocol.FileTransferComplete:
		return m.FolderID
	case protocol.FileReceiveAck:
		return m.FolderID
	default:
		return ""
	}
}

func outboundKey(folderID, name string) string {
	return folderID + "/" + name
}
