package widgets

import (
	"strings"

	"github.com/joe/peersync/internal/syncengine"
	"github.com/joe/peersync/internal/tui/shared"
)

// NewPeersWidget creates a widget that lists the devices attached to a folder.
func NewPeersWidget(getFolder func() *syncengine.Folder) func() string {
	return func() string {
		folder := getFolder()
		if folder == nil || len(folder.Peers) == 0 {
			return shared.RenderDim("Waiting for a peer")
		}

		lines := make([]string, 0, len(folder.Peers))
		for _, peer := range folder.Peers {
			lines = append(lines, shared.RenderPeerStatus(peer))
		}

		return strings.Join(lines, "\n")
	}
}
