package shared

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/joe/peersync/internal/syncengine"
)

// FileStatusSymbol returns the list marker for a file status.
func FileStatusSymbol(status syncengine.FileStatus) string {
	switch status {
	case syncengine.FileSynced:
		return SuccessSymbol()
	case syncengine.FileSyncingUpload:
		return UploadSymbol()
	case syncengine.FileSyncingDownload:
		return DownloadSymbol()
	case syncengine.FileError:
		return ErrorSymbol()
	case syncengine.FileNeedsUpload, syncengine.FileNeedsDownload:
		return PendingSymbol()
	default:
		return PendingSymbol()
	}
}

// FileStatusStyle returns the style for a file row.
func FileStatusStyle(status syncengine.FileStatus) lipgloss.Style {
	switch {
	case status == syncengine.FileSynced:
		return FileItemCompleteStyle()
	case status == syncengine.FileError:
		return FileItemErrorStyle()
	case status.IsSyncing():
		return FileItemSyncingStyle()
	default:
		return FileItemPendingStyle()
	}
}

// RenderFolderStatus renders a folder status with its marker.
func RenderFolderStatus(status syncengine.FolderStatus) string {
	var symbol string
	var style lipgloss.Style

	switch status {
	case syncengine.FolderSynced:
		symbol, style = SuccessSymbol(), SuccessStyle()
	case syncengine.FolderSyncing:
		symbol, style = ActiveSymbol(), LabelStyle()
	case syncengine.FolderPaused:
		symbol, style = PausedSymbol(), DimStyle()
	case syncengine.FolderPermissionNeeded:
		symbol, style = ErrorSymbol(), WarningStyle()
	default:
		symbol, style = ErrorSymbol(), ErrorStyle()
	}

	return style.Render(symbol + " " + status.String())
}

// RenderPeerStatus renders a peer name with a marker for its connection state.
func RenderPeerStatus(peer syncengine.Peer) string {
	switch peer.Status {
	case syncengine.PeerConnected:
		return SuccessStyle().Render(SuccessSymbol() + " " + peer.Name)
	case syncengine.PeerConnecting:
		return LabelStyle().Render(ActiveSymbol() + " " + peer.Name + " (connecting)")
	case syncengine.PeerFailed:
		return ErrorStyle().Render(ErrorSymbol() + " " + peer.Name + " (failed)")
	default:
		return DimStyle().Render(PendingSymbol() + " " + peer.Name + " (disconnected)")
	}
}
