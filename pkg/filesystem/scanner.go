package filesystem

import (
	"fmt"
	"time"

	"github.com/kr/fs"
)

// FileScanner is an iterator over files in a directory.
// It provides a simple Next pattern for traversing directory contents.
type FileScanner interface {
	// Next advances to the next file and returns its info.
	// Returns (FileInfo{}, false) when done or on error.
	// Check Err() after Next() returns false to distinguish between end-of-scan and error.
	Next() (FileInfo, bool)

	// Err returns any error that occurred during scanning.
	// Should be checked after Next() returns false.
	Err() error
}

// FileInfo contains metadata about a file.
// This is our own type (not os.FileInfo) to make it easier to work with.
type FileInfo struct {
	// RelativePath is the path relative to the scan root. For a flat scan
	// this is the base name.
	RelativePath string

	// Size is the file size in bytes
	Size int64

	// ModTime is the modification time
	ModTime time.Time

	// IsDir indicates if this is a directory
	IsDir bool
}

// sliceScanner yields a pre-collected listing.
type sliceScanner struct {
	files []FileInfo
	index int
	err   error
}

func newSliceScanner(files []FileInfo, err error) *sliceScanner {
	return &sliceScanner{files: files, index: -1, err: err}
}

// Err returns any error that occurred during scanning.
func (s *sliceScanner) Err() error {
	return s.err
}

// Next advances to the next file and returns its info.
func (s *sliceScanner) Next() (FileInfo, bool) {
	if s.err != nil {
		return FileInfo{}, false
	}

	s.index++
	if s.index >= len(s.files) {
		return FileInfo{}, false
	}

	return s.files[s.index], true
}

// collectFlat drains a kr/fs walker, keeping only the direct children of root.
// Local and SFTP scans share it: sftp.Client.Walk hands out the same walker type.
func collectFlat(walker *fs.Walker, root string, rel func(root, target string) (string, error)) ([]FileInfo, error) {
	files := make([]FileInfo, 0)

	for walker.Step() {
		if err := walker.Err(); err != nil {
			return nil, fmt.Errorf("error scanning %s: %w", root, err)
		}

		fullPath := walker.Path()
		stat := walker.Stat()

		relPath, err := rel(root, fullPath)
		if err != nil {
			return nil, fmt.Errorf("failed to get relative path for %s: %w", fullPath, err)
		}

		if relPath == "." {
			continue
		}

		if stat.IsDir() {
			walker.SkipDir()
		}

		files = append(files, FileInfo{
			RelativePath: relPath,
			Size:         stat.Size(),
			ModTime:      stat.ModTime(),
			IsDir:        stat.IsDir(),
		})
	}

	return files, nil
}
