package syncengine

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"sync"

	"go.uber.org/zap"

	"github.com/joe/peersync/internal/protocol"
	pkgerrors "github.com/joe/peersync/pkg/errors"
	"github.com/joe/peersync/pkg/fileops"
)

// Exported constants.
const (
	// DefaultFileType is announced when the extension has no known MIME type.
	DefaultFileType = "application/octet-stream"
)

type jobState int

const (
	jobQueued jobState = iota
	jobSending
	jobAwaitingAck
)

// uploadJob is one requested file. It stays in the session's outbound
// table from the request until the ack arrives or the upload is abandoned.
type uploadJob struct {
	folderID string
	name     string
	entry    FileEntry
	state    jobState
	cancel   context.CancelFunc
}

// uploadQueue is an unbounded FIFO so the dispatcher never blocks on a
// busy upload worker.
type uploadQueue struct {
	mu     sync.Mutex
	jobs   []*uploadJob
	notify chan struct{}
}

func newUploadQueue() *uploadQueue {
	return &uploadQueue{notify: make(chan struct{}, 1)}
}

func (q *uploadQueue) pop(ctx context.Context) (*uploadJob, bool) {
	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs = q.jobs[1:]
			q.mu.Unlock()

			return job, true
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, false
		}
	}
}

func (q *uploadQueue) push(job *uploadJob) {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// FileType guesses a MIME type from a file name.
func FileType(name string) string {
	guessed := mime.TypeByExtension(path.Ext(name))
	if guessed == "" {
		return DefaultFileType
	}

	mediaType, _, err := mime.ParseMediaType(guessed)
	if err != nil {
		return DefaultFileType
	}

	return mediaType
}

// abandonUpload drops a job and puts its entry back to NeedsUpload.
func (s *peerSession) abandonUpload(job *uploadJob, reason error) {
	s.forgetJob(job)
	_, _ = s.engine.registry.RevertTransfers(job.folderID, s.id, job.name)

	s.log.Info("upload abandoned", zap.String("folder", job.folderID), zap.String("file", job.name), zap.Error(reason))
	s.engine.opts.Metrics.TransferFinished(Upload.String(), "aborted")
	s.engine.emitFolder(job.folderID)
}

func (s *peerSession) allocateSessionID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	if s.nextID == 0 {
		s.nextID++
	}

	return s.nextID
}

func (s *peerSession) forgetJob(job *uploadJob) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := outboundKey(job.folderID, job.name)
	if s.outbound[key] == job {
		delete(s.outbound, key)
	}
}

func (s *peerSession) runUpload(job *uploadJob) {
	key := outboundKey(job.folderID, job.name)

	s.mu.Lock()
	if s.outbound[key] != job {
		s.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	job.cancel = cancel
	job.state = jobSending
	s.mu.Unlock()

	defer cancel()

	err := s.sendFile(ctx, job)

	switch {
	case err == nil:
		// Acks for a paused folder are dropped, so waiting would never end.
		if s.folderPaused(job.folderID) {
			s.abandonUpload(job, ErrFolderPaused)
		}
	case ctx.Err() != nil,
		pkgerrors.Categorize(err) == pkgerrors.CategoryChannel,
		errors.Is(err, ErrFolderPaused),
		errors.Is(err, ErrAccessNeeded):
		s.abandonUpload(job, err)
	default:
		s.forgetJob(job)
		_, _ = s.engine.registry.FailTransfer(job.folderID, job.name)
		s.engine.opts.Metrics.TransferFinished(Upload.String(), "failed")
		s.engine.fail(job.folderID, job.name, s.id, err, nil)
		s.engine.emitFolder(job.folderID)
	}
}

// sendFile streams one file: START, its chunks behind the backpressure
// wait, then COMPLETE. The entry stays SyncingUpload until the ack.
func (s *peerSession) sendFile(ctx context.Context, job *uploadJob) error {
	dest, err := s.engine.registry.Destination(job.folderID)
	if err != nil {
		return err
	}

	file, err := dest.OpenForRead(job.name)
	if err != nil {
		return err
	}
	defer file.Close()

	sessionID := s.allocateSessionID()

	err = s.link.SendMessage(protocol.StartFileTransfer{
		FolderID:     job.folderID,
		FileName:     job.name,
		FileSize:     job.entry.Size,
		FileType:     FileType(job.name),
		SessionID:    sessionID,
		LastModified: job.entry.LastModified,
	})
	if err != nil {
		return err
	}

	s.log.Info("upload started", zap.String("folder", job.folderID), zap.String("file", job.name),
		zap.Int64("bytes", job.entry.Size), zap.Uint32("session", sessionID))
	s.engine.opts.Metrics.TransferStarted(Upload.String())
	s.engine.emit(TransferStarted{
		FolderID:  job.folderID,
		FileName:  job.name,
		PeerID:    s.id,
		Direction: Upload,
		Size:      job.entry.Size,
	})

	sink := func(chunk []byte) error {
		if err := s.link.SendChunk(ctx, sessionID, chunk); err != nil {
			return err
		}

		s.engine.opts.Metrics.BytesTransferred(Upload.String(), len(chunk))

		progress, err := s.engine.registry.AdvanceTransfer(job.folderID, job.name, int64(len(chunk)))
		if err == nil {
			s.emitProgress(job.folderID, job.name, Upload, progress)
		}

		return nil
	}

	stats, err := fileops.SendChunks(ctx, file, job.entry.Size, job.name, sink, nil)
	if err != nil {
		return err
	}

	if stats.BytesCopied != job.entry.Size {
		return fmt.Errorf("%w: %s shrank while sending (%d of %d bytes)",
			pkgerrors.ErrIO, job.name, stats.BytesCopied, job.entry.Size)
	}

	// The ack may arrive before SendMessage returns.
	s.mu.Lock()
	if s.outbound[outboundKey(job.folderID, job.name)] == job {
		job.state = jobAwaitingAck
	}
	s.mu.Unlock()

	return s.link.SendMessage(protocol.FileTransferComplete{
		FolderID:  job.folderID,
		FileName:  job.name,
		SessionID: sessionID,
	})
}

func (s *peerSession) uploadLoop() {
	defer close(s.workerDone)

	for {
		job, ok := s.uploads.pop(s.ctx)
		if !ok {
			return
		}

		s.runUpload(job)
	}
}
