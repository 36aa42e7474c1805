// Package store persists the folder list between runs.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joe/peersync/internal/syncengine"
)

// Exported constants.
const (
	// FormatVersion is written into every file and checked on load.
	FormatVersion = 1
	// FileName is the default state file name.
	FileName = "folders.json"
)

// Exported variables.
var (
	ErrUnsupportedVersion = errors.New("unsupported state file version")
)

// JSONStore keeps folder records in a JSON file. Saves replace the file
// atomically so a crash never leaves half a list behind.
type JSONStore struct {
	path string
	now  func() time.Time
}

// stateFile is the on-disk layout.
type stateFile struct {
	Version int                       `json:"version"`
	SavedAt time.Time                 `json:"saved_at"`
	Folders []syncengine.FolderRecord `json:"folders"`
}

// NewJSONStore returns a store backed by path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path, now: time.Now}
}

// DefaultPath returns the state file under the user's config directory,
// creating the directory if needed.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(configDir, "peersync")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}

	return filepath.Join(dir, FileName), nil
}

// Load reads the saved folders. A missing file means no folders.
func (s *JSONStore) Load() ([]syncengine.FolderRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	var state stateFile
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}

	if state.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d in %s", ErrUnsupportedVersion, state.Version, s.path)
	}

	return state.Folders, nil
}

// Path is the state file location.
func (s *JSONStore) Path() string {
	return s.path
}

// Save writes records to a temporary file and renames it over the state
// file.
func (s *JSONStore) Save(records []syncengine.FolderRecord) error {
	if records == nil {
		records = []syncengine.FolderRecord{}
	}

	data, err := json.MarshalIndent(stateFile{
		Version: FormatVersion,
		SavedAt: s.now().UTC(),
		Folders: records,
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to save folders: %w", err)
	}

	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)

		return fmt.Errorf("failed to save folders: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save folders: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to save folders: %w", err)
	}

	return nil
}
