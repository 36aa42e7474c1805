package filesystem

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Exported constants.
const (
	// PartSuffix marks an incoming file that is still being received.
	// Part files never appear in folder listings.
	PartSuffix = ".peersync-part"
	// DefaultTimePrecision is the mtime granularity assumed for local folders.
	DefaultTimePrecision = time.Millisecond
	// SFTPTimePrecision is the mtime granularity of SFTP servers.
	SFTPTimePrecision = time.Second
)

// Exported variables.
var (
	ErrInvalidName = errors.New("invalid file name")
	ErrNotAFolder  = errors.New("location is not a directory")
)

// Destination is a live handle on a synced folder's directory.
type Destination interface {
	// Location is the path or sftp URL the destination was opened from.
	Location() string
	// ListFiles returns the regular files directly inside the folder.
	ListFiles() ([]FileInfo, error)
	// OpenForRead opens a folder file for reading.
	OpenForRead(name string) (File, error)
	// OpenForWrite starts receiving a file. The data lands in a part file
	// that replaces name when the writer is closed. A non-zero modTime is
	// applied to the finished file.
	OpenForWrite(name string, modTime time.Time) (PartWriter, error)
	// Stat reports size and modification time of a folder file.
	Stat(name string) (FileInfo, error)
	// TimePrecision is the granularity of the modification times the
	// folder stores. Finer timestamps are truncated on write.
	TimePrecision() time.Duration
	// Close releases connections held by the destination.
	Close() error
}

// PartWriter receives a file. Exactly one of Close or Abort must be called.
type PartWriter interface {
	io.Writer
	// Close finishes the file and moves it into place.
	Close() error
	// Abort discards everything written so far.
	Abort() error
}

// DestinationOption configures a FolderDestination.
type DestinationOption func(*FolderDestination)

// FolderDestination implements Destination on top of a FileSystem.
type FolderDestination struct {
	fsys      FileSystem
	root      string
	location  string
	precision time.Duration
	closer    func()
}

// NewDestination wraps root on fsys. root must be an existing directory.
func NewDestination(fsys FileSystem, root string, opts ...DestinationOption) (*FolderDestination, error) {
	info, err := fsys.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open folder %s: %w", root, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotAFolder, root)
	}

	dest := &FolderDestination{
		fsys:      fsys,
		root:      root,
		location:  root,
		precision: DefaultTimePrecision,
	}

	for _, opt := range opts {
		opt(dest)
	}

	return dest, nil
}

// ValidateName rejects names that would escape a flat folder.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return nil
}

// WithLocation overrides the location reported by the destination.
func WithLocation(location string) DestinationOption {
	return func(d *FolderDestination) {
		d.location = location
	}
}

// WithTimePrecision sets the mtime granularity of the folder.
func WithTimePrecision(precision time.Duration) DestinationOption {
	return func(d *FolderDestination) {
		if precision > 0 {
			d.precision = precision
		}
	}
}

// Close releases the underlying connection, if any.
func (d *FolderDestination) Close() error {
	if d.closer != nil {
		d.closer()
		d.closer = nil
	}

	return nil
}

// ListFiles returns the regular files directly inside the folder.
// Sub-directories and part files are skipped.
func (d *FolderDestination) ListFiles() ([]FileInfo, error) {
	scanner := d.fsys.Scan(d.root)
	files := make([]FileInfo, 0)

	for {
		info, ok := scanner.Next()
		if !ok {
			break
		}

		if info.IsDir || strings.HasSuffix(info.RelativePath, PartSuffix) {
			continue
		}

		files = append(files, info)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to list folder %s: %w", d.root, err)
	}

	return files, nil
}

// Location is the path or sftp URL the destination was opened from.
func (d *FolderDestination) Location() string {
	return d.location
}

// OpenForRead opens a folder file for reading.
func (d *FolderDestination) OpenForRead(name string) (File, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	return d.fsys.Open(d.fsys.Join(d.root, name))
}

// OpenForWrite creates the part file for name.
func (d *FolderDestination) OpenForWrite(name string, modTime time.Time) (PartWriter, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	final := d.fsys.Join(d.root, name)
	part := final + PartSuffix

	file, err := d.fsys.Create(part)
	if err != nil {
		return nil, err
	}

	return &partWriter{
		fsys:    d.fsys,
		file:    file,
		part:    part,
		final:   final,
		modTime: modTime,
	}, nil
}

// Root is the directory path on the underlying filesystem.
func (d *FolderDestination) Root() string {
	return d.root
}

// Stat reports size and modification time of a folder file.
func (d *FolderDestination) Stat(name string) (FileInfo, error) {
	if err := ValidateName(name); err != nil {
		return FileInfo{}, err
	}

	info, err := d.fsys.Stat(d.fsys.Join(d.root, name))
	if err != nil {
		return FileInfo{}, err
	}

	return FileInfo{
		RelativePath: name,
		Size:         info.Size(),
		ModTime:      info.ModTime(),
		IsDir:        info.IsDir(),
	}, nil
}

// TimePrecision is the granularity of the modification times the folder stores.
func (d *FolderDestination) TimePrecision() time.Duration {
	return d.precision
}

func withCloser(closer func()) DestinationOption {
	return func(d *FolderDestination) {
		d.closer = closer
	}
}

// partWriter writes into a part file and renames it into place on Close.
type partWriter struct {
	fsys    FileSystem
	file    File
	part    string
	final   string
	modTime time.Time
	done    bool
}

func (w *partWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true

	closeErr := w.file.Close()
	removeErr := w.fsys.Remove(w.part)

	return errors.Join(closeErr, removeErr)
}

func (w *partWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true

	if err := w.file.Close(); err != nil {
		_ = w.fsys.Remove(w.part)
		return fmt.Errorf("failed to finish %s: %w", w.final, err)
	}

	if err := w.fsys.Rename(w.part, w.final); err != nil {
		_ = w.fsys.Remove(w.part)
		return err
	}

	if !w.modTime.IsZero() {
		if err := w.fsys.Chtimes(w.final, w.modTime, w.modTime); err != nil {
			return err
		}
	}

	return nil
}

func (w *partWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, fmt.Errorf("write %s: %w", w.part, io.ErrClosedPipe)
	}

	return w.file.Write(p)
}
