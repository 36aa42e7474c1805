package syncengine

import (
	"go.uber.org/zap"
)

// Exported constants.
const (
	// StallChecksPerTimeout is how many sweeps run per stall timeout.
	StallChecksPerTimeout = 2
)

// startSweeper runs the stall sweeper until the engine closes.
func (e *Engine) startSweeper() {
	done := make(chan struct{})

	e.mu.Lock()
	e.sweepDone = done
	e.mu.Unlock()

	ticker := e.opts.TimeProvider.NewTicker(e.opts.StallTimeout / StallChecksPerTimeout)

	go func() {
		defer close(done)
		defer ticker.Stop()

		for {
			select {
			case <-e.ctx.Done():
				return
			case _, ok := <-ticker.C():
				if !ok {
					return
				}

				e.sweepStalled()
			}
		}
	}()
}

// sweepStalled hands every transfer without recent progress back to the
// session that owns it. Transfers whose peer is gone are reverted here.
func (e *Engine) sweepStalled() {
	for _, folder := range e.registry.Folders() {
		for _, stalled := range e.registry.Stalled(folder.ID, e.opts.StallTimeout) {
			e.log.Debug("transfer stalled",
				zap.String("folder", folder.ID),
				zap.String("file", stalled.name),
				zap.String("peer", stalled.peerID),
				zap.Stringer("direction", stalled.direction))

			if session, ok := e.session(stalled.peerID); ok {
				session.enqueue(peerEvent{kind: eventStalled, folderID: folder.ID, name: stalled.name})
				continue
			}

			_, _ = e.registry.RevertTransfers(folder.ID, stalled.peerID, stalled.name)
			e.emitFolder(folder.ID)
		}
	}
}
