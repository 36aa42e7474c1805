package syncengine

import "time"

// Exported constants.
const (
	// NumProgressDimensions is the number of dimensions (files, bytes) averaged for overall progress.
	NumProgressDimensions = 2.0
	// ProgressPercentageScale converts 0-1 range to 0-100 range.
	ProgressPercentageScale = 100.0
	// RateWindow is the number of recent samples used for transfer rates.
	RateWindow = 8
)

// ProgressMetrics summarizes how far a folder is from being in sync.
// The registry recomputes it on every mutation and the UI only reads it.
type ProgressMetrics struct {
	// FilesPercent is the share of files that are Synced.
	FilesPercent float64

	// BytesPercent counts Synced files in full plus the bytes already moved
	// for active transfers, out of the total size of all files.
	BytesPercent float64

	// OverallPercent is the average of FilesPercent and BytesPercent.
	OverallPercent float64

	// BytesPerSecond is the summed rate of all active transfers.
	BytesPerSecond float64
}

// RateSample is a point-in-time byte count for one transfer.
// Samples are kept in a rolling window so the rate follows recent
// throughput instead of the session average.
type RateSample struct {
	// Timestamp is when the sample was recorded.
	Timestamp time.Time

	// BytesTransferred is the cumulative byte count at Timestamp.
	BytesTransferred int64
}

// computeProgressMetrics derives folder metrics from its entries and the
// active transfers.
func computeProgressMetrics(files []FileEntry, active map[string]SyncProgress, rate float64) ProgressMetrics {
	metrics := ProgressMetrics{BytesPerSecond: rate}

	if len(files) == 0 {
		metrics.FilesPercent = ProgressPercentageScale
		metrics.BytesPercent = ProgressPercentageScale
		metrics.OverallPercent = ProgressPercentageScale

		return metrics
	}

	var (
		syncedFiles int
		totalBytes  int64
		doneBytes   int64
	)

	for _, entry := range files {
		totalBytes += entry.Size

		switch {
		case entry.Status == FileSynced:
			syncedFiles++
			doneBytes += entry.Size
		case entry.Status.IsSyncing():
			doneBytes += active[entry.Name].TransferredSize
		}
	}

	metrics.FilesPercent = float64(syncedFiles) / float64(len(files)) * ProgressPercentageScale

	if totalBytes > 0 {
		metrics.BytesPercent = float64(doneBytes) / float64(totalBytes) * ProgressPercentageScale
	} else {
		metrics.BytesPercent = metrics.FilesPercent
	}

	metrics.OverallPercent = (metrics.FilesPercent + metrics.BytesPercent) / NumProgressDimensions

	return metrics
}
