package main

import (
	"go.uber.org/zap"

	"github.com/joe/peersync/internal/syncengine"
)

// eventLogger reports engine events as log entries when no monitor runs.
type eventLogger struct {
	log *zap.Logger
}

func newEventLogger(log *zap.Logger) *eventLogger {
	return &eventLogger{log: log}
}

// Emit implements syncengine.EventEmitter.
func (l *eventLogger) Emit(event syncengine.Event) {
	switch event := event.(type) {
	case syncengine.FolderUpdated:
		l.log.Debug("folder updated",
			zap.String("folder", event.Folder.ID),
			zap.Stringer("status", event.Folder.Status),
			zap.Int("files", len(event.Folder.Files)),
			zap.Float64("percent", event.Folder.Metrics.OverallPercent))
	case syncengine.FolderRemoved:
		l.log.Info("folder removed", zap.String("folder", event.FolderID))
	case syncengine.PeerStatusChanged:
		l.log.Info("peer status",
			zap.String("folder", event.FolderID),
			zap.String("peer", event.Peer.Name),
			zap.Stringer("status", event.Peer.Status))
	case syncengine.TransferStarted:
		l.log.Info("transfer started",
			zap.String("folder", event.FolderID),
			zap.String("file", event.FileName),
			zap.Stringer("direction", event.Direction),
			zap.Int64("size", event.Size))
	case syncengine.TransferProgress:
		// Too frequent for the log.
	case syncengine.TransferComplete:
		l.log.Info("transfer complete",
			zap.String("folder", event.FolderID),
			zap.String("file", event.FileName),
			zap.Stringer("direction", event.Direction),
			zap.Int64("size", event.Size))
	case syncengine.ErrorOccurred:
		l.log.Warn("sync error",
			zap.String("folder", event.FolderID),
			zap.String("file", event.FileName),
			zap.String("peer", event.PeerID),
			zap.String("category", string(event.Err.Category())),
			zap.Strings("suggestions", event.Err.Suggestions()),
			zap.Error(event.Err))
	}
}
