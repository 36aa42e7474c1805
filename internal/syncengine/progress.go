package syncengine

import (
	"fmt"
	"sort"
	"time"
)

// progressTracker keeps byte progress for the active transfers of one
// folder, keyed by file name. It is guarded by the folder lock.
type progressTracker struct {
	clock  TimeProvider
	active map[string]*transferProgress
}

type transferProgress struct {
	SyncProgress

	peerID    string
	direction Direction
	started   time.Time
	updated   time.Time
	samples   []RateSample
}

// stalledTransfer names a transfer that made no progress for too long.
type stalledTransfer struct {
	name      string
	peerID    string
	direction Direction
}

func newProgressTracker(clock TimeProvider) *progressTracker {
	return &progressTracker{
		clock:  clock,
		active: make(map[string]*transferProgress),
	}
}

// Advance adds n bytes to the transfer. Progress never moves past the
// total; an overflowing advance is rejected and leaves progress unchanged.
func (t *progressTracker) Advance(name string, n int64) (SyncProgress, error) {
	progress, ok := t.active[name]
	if !ok {
		return SyncProgress{}, fmt.Errorf("%w: %s", ErrNoTransfer, name)
	}

	if n < 0 || progress.TransferredSize+n > progress.TotalSize {
		return progress.SyncProgress, fmt.Errorf("%w: %s: %d + %d bytes exceeds %d",
			ErrProgressOverflow, name, progress.TransferredSize, n, progress.TotalSize)
	}

	now := t.clock.Now()
	progress.TransferredSize += n
	progress.updated = now
	progress.samples = append(progress.samples, RateSample{Timestamp: now, BytesTransferred: progress.TransferredSize})

	if len(progress.samples) > RateWindow {
		progress.samples = progress.samples[len(progress.samples)-RateWindow:]
	}

	return progress.SyncProgress, nil
}

// Begin starts tracking a transfer, replacing any earlier one for name.
func (t *progressTracker) Begin(name, peerID string, direction Direction, total int64) SyncProgress {
	now := t.clock.Now()
	t.active[name] = &transferProgress{
		SyncProgress: SyncProgress{TotalSize: total},
		peerID:       peerID,
		direction:    direction,
		started:      now,
		updated:      now,
		samples:      []RateSample{{Timestamp: now}},
	}

	return t.active[name].SyncProgress
}

// End stops tracking name.
func (t *progressTracker) End(name string) {
	delete(t.active, name)
}

// Get returns the progress of name.
func (t *progressTracker) Get(name string) (SyncProgress, bool) {
	progress, ok := t.active[name]
	if !ok {
		return SyncProgress{}, false
	}

	return progress.SyncProgress, true
}

// Owner returns the peer and direction of the transfer for name.
func (t *progressTracker) Owner(name string) (string, Direction, bool) {
	progress, ok := t.active[name]
	if !ok {
		return "", Upload, false
	}

	return progress.peerID, progress.direction, true
}

// Rate returns the recent transfer rate of name in bytes per second.
func (t *progressTracker) Rate(name string) float64 {
	progress, ok := t.active[name]
	if !ok || len(progress.samples) < 2 {
		return 0
	}

	first := progress.samples[0]
	last := progress.samples[len(progress.samples)-1]

	elapsed := last.Timestamp.Sub(first.Timestamp).Seconds()
	if elapsed <= 0 {
		return 0
	}

	return float64(last.BytesTransferred-first.BytesTransferred) / elapsed
}

// Snapshot copies the progress of all active transfers.
func (t *progressTracker) Snapshot() map[string]SyncProgress {
	snapshot := make(map[string]SyncProgress, len(t.active))
	for name, progress := range t.active {
		snapshot[name] = progress.SyncProgress
	}

	return snapshot
}

// Stalled lists transfers whose last progress is older than timeout.
func (t *progressTracker) Stalled(timeout time.Duration) []stalledTransfer {
	now := t.clock.Now()
	stalled := make([]stalledTransfer, 0)

	for name, progress := range t.active {
		if now.Sub(progress.updated) > timeout {
			stalled = append(stalled, stalledTransfer{
				name:      name,
				peerID:    progress.peerID,
				direction: progress.direction,
			})
		}
	}

	sort.Slice(stalled, func(i, j int) bool { return stalled[i].name < stalled[j].name })

	return stalled
}

// TotalRate sums the rates of all active transfers.
func (t *progressTracker) TotalRate() float64 {
	var total float64
	for name := range t.active {
		total += t.Rate(name)
	}

	return total
}
