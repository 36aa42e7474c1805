package filesystem

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockFileSystem is an in-memory filesystem implementation for testing.
//
// Paths always use forward slashes. Faults can be injected at any time and
// are observed by handles that are already open, which lets tests revoke
// access in the middle of a transfer.
type MockFileSystem struct {
	mu    sync.RWMutex
	files map[string]*mockFile

	denied     bool
	readErr    error
	writeErr   error
	renameErr  error
	readCalls  int
	writeCalls int

	// Now stamps files written through Create. Defaults to time.Now.
	Now func() time.Time
}

// mockFile represents a file in the mock filesystem.
type mockFile struct {
	path    string
	data    []byte
	modTime time.Time
	isDir   bool
	perm    os.FileMode
}

// mockFileInfo implements os.FileInfo for mock files.
type mockFileInfo struct {
	name    string
	size    int64
	modTime time.Time
	isDir   bool
	perm    os.FileMode
}

func (fi *mockFileInfo) Name() string       { return fi.name }
func (fi *mockFileInfo) Size() int64        { return fi.size }
func (fi *mockFileInfo) Mode() os.FileMode  { return fi.perm }
func (fi *mockFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *mockFileInfo) IsDir() bool        { return fi.isDir }
func (fi *mockFileInfo) Sys() interface{}   { return nil }

// mockFileHandle implements the File interface for reading/writing.
type mockFileHandle struct {
	fs     *MockFileSystem
	path   string
	reader *bytes.Reader
	writer *bytes.Buffer
	closed bool
}

func (f *mockFileHandle) Read(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}

	if err := f.fs.readFault(f.path); err != nil {
		return 0, err
	}

	if f.reader == nil {
		return 0, io.EOF
	}

	return f.reader.Read(p)
}

func (f *mockFileHandle) Write(p []byte) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}

	if err := f.fs.writeFault(f.path); err != nil {
		return 0, err
	}

	if f.writer == nil {
		f.writer = &bytes.Buffer{}
	}

	return f.writer.Write(p)
}

func (f *mockFileHandle) Close() error {
	if f.closed {
		return os.ErrClosed
	}
	f.closed = true

	if f.writer == nil {
		return nil
	}

	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if file, exists := f.fs.files[f.path]; exists {
		file.data = f.writer.Bytes()
		file.modTime = f.fs.now()
	} else {
		f.fs.files[f.path] = &mockFile{
			path:    f.path,
			data:    f.writer.Bytes(),
			modTime: f.fs.now(),
			perm:    0o644,
		}
	}

	return nil
}

func (f *mockFileHandle) Stat() (os.FileInfo, error) {
	if f.closed {
		return nil, os.ErrClosed
	}

	return f.fs.Stat(f.path)
}

// NewMockFileSystem creates a new in-memory filesystem.
func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		files: make(map[string]*mockFile),
		Now:   time.Now,
	}
}

// Chtimes changes the access and modification times of a file.
func (fs *MockFileSystem) Chtimes(name string, _, mtime time.Time) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.accessFaultLocked("chtimes", name); err != nil {
		return err
	}

	file, exists := fs.files[name]
	if !exists {
		return notExist("chtimes", name)
	}

	file.modTime = mtime

	return nil
}

// Create creates a file for writing.
func (fs *MockFileSystem) Create(name string) (File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.accessFaultLocked("create", name); err != nil {
		return nil, err
	}

	if fs.writeErr != nil {
		return nil, &os.PathError{Op: "create", Path: name, Err: fs.writeErr}
	}

	dir := path.Dir(name)
	if dir != "." && dir != "/" {
		_ = fs.mkdirAllLocked(dir, 0o755)
	}

	fs.files[name] = &mockFile{
		path:    name,
		data:    []byte{},
		modTime: fs.now(),
		perm:    0o644,
	}

	return &mockFileHandle{
		fs:     fs,
		path:   name,
		writer: &bytes.Buffer{},
	}, nil
}

// Join joins path elements with forward slashes.
func (fs *MockFileSystem) Join(elem ...string) string {
	return path.Join(elem...)
}

// MkdirAll creates a directory and all necessary parents.
func (fs *MockFileSystem) MkdirAll(name string, perm os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.accessFaultLocked("mkdir", name); err != nil {
		return err
	}

	return fs.mkdirAllLocked(name, perm)
}

// Open opens a file for reading.
func (fs *MockFileSystem) Open(name string) (File, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if err := fs.accessFaultLocked("open", name); err != nil {
		return nil, err
	}

	file, exists := fs.files[name]
	if !exists {
		return nil, notExist("open", name)
	}

	if file.isDir {
		return nil, fmt.Errorf("open %s: is a directory", name)
	}

	return &mockFileHandle{
		fs:     fs,
		path:   name,
		reader: bytes.NewReader(file.data),
	}, nil
}

// Remove removes a file or empty directory.
func (fs *MockFileSystem) Remove(name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.accessFaultLocked("remove", name); err != nil {
		return err
	}

	file, exists := fs.files[name]
	if !exists {
		return notExist("remove", name)
	}

	if file.isDir {
		for p := range fs.files {
			if strings.HasPrefix(p, name+"/") {
				return fmt.Errorf("remove %s: directory not empty", name)
			}
		}
	}

	delete(fs.files, name)

	return nil
}

// Rename moves a file, replacing the target if it exists.
func (fs *MockFileSystem) Rename(oldName, newName string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := fs.accessFaultLocked("rename", oldName); err != nil {
		return err
	}

	if fs.renameErr != nil {
		return &os.LinkError{Op: "rename", Old: oldName, New: newName, Err: fs.renameErr}
	}

	file, exists := fs.files[oldName]
	if !exists {
		return notExist("rename", oldName)
	}

	delete(fs.files, oldName)
	file.path = newName
	fs.files[newName] = file

	return nil
}

// Scan returns an iterator over the direct children of a directory.
func (fs *MockFileSystem) Scan(root string) FileScanner {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if err := fs.accessFaultLocked("scan", root); err != nil {
		return newSliceScanner(nil, err)
	}

	if dir, exists := fs.files[root]; !exists || !dir.isDir {
		return newSliceScanner(nil, notExist("scan", root))
	}

	files := make([]FileInfo, 0)

	for p, file := range fs.files {
		if path.Dir(p) != root || p == root {
			continue
		}

		files = append(files, FileInfo{
			RelativePath: path.Base(p),
			Size:         int64(len(file.data)),
			ModTime:      file.modTime,
			IsDir:        file.isDir,
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].RelativePath < files[j].RelativePath
	})

	return newSliceScanner(files, nil)
}

// Stat returns file information.
func (fs *MockFileSystem) Stat(name string) (os.FileInfo, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	if err := fs.accessFaultLocked("stat", name); err != nil {
		return nil, err
	}

	file, exists := fs.files[name]
	if !exists {
		return nil, notExist("stat", name)
	}

	return &mockFileInfo{
		name:    path.Base(name),
		size:    int64(len(file.data)),
		modTime: file.modTime,
		isDir:   file.isDir,
		perm:    file.perm,
	}, nil
}

// Helper methods for testing

// AddFile adds a file to the mock filesystem with the given content and modtime.
func (fs *MockFileSystem) AddFile(name string, content []byte, modTime time.Time) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	dir := path.Dir(name)
	if dir != "." && dir != "/" {
		_ = fs.mkdirAllLocked(dir, 0o755)
	}

	fs.files[name] = &mockFile{
		path:    name,
		data:    append([]byte(nil), content...),
		modTime: modTime,
		perm:    0o644,
	}
}

// AddDir adds a directory to the mock filesystem.
func (fs *MockFileSystem) AddDir(name string, modTime time.Time) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	_ = fs.mkdirAllLocked(name, 0o755)
	fs.files[name].modTime = modTime
}

// Exists checks if a path exists in the mock filesystem.
func (fs *MockFileSystem) Exists(name string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	_, exists := fs.files[name]

	return exists
}

// GetFile retrieves a file's content from the mock filesystem.
func (fs *MockFileSystem) GetFile(name string) ([]byte, time.Time, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	file, exists := fs.files[name]
	if !exists {
		return nil, time.Time{}, notExist("get", name)
	}

	if file.isDir {
		return nil, time.Time{}, fmt.Errorf("get %s: is a directory", name)
	}

	return append([]byte(nil), file.data...), file.modTime, nil
}

// ListFiles returns all paths in the mock filesystem.
func (fs *MockFileSystem) ListFiles() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	paths := make([]string, 0, len(fs.files))
	for p := range fs.files {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	return paths
}

// ReadCalls returns how many Read calls reached the filesystem.
func (fs *MockFileSystem) ReadCalls() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return fs.readCalls
}

// WriteCalls returns how many Write calls reached the filesystem.
func (fs *MockFileSystem) WriteCalls() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	return fs.writeCalls
}

// SetAccessDenied makes every operation fail with a permission error while set,
// the way a revoked folder grant behaves.
func (fs *MockFileSystem) SetAccessDenied(denied bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.denied = denied
}

// SetReadError makes reads fail with err (nil clears it).
func (fs *MockFileSystem) SetReadError(err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.readErr = err
}

// SetRenameError makes renames fail with err (nil clears it).
func (fs *MockFileSystem) SetRenameError(err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.renameErr = err
}

// SetWriteError makes creates and writes fail with err (nil clears it).
func (fs *MockFileSystem) SetWriteError(err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.writeErr = err
}

func (fs *MockFileSystem) accessFaultLocked(op, name string) error {
	if fs.denied {
		return &os.PathError{Op: op, Path: name, Err: os.ErrPermission}
	}

	return nil
}

// mkdirAllLocked is the internal implementation that assumes the lock is held.
func (fs *MockFileSystem) mkdirAllLocked(name string, perm os.FileMode) error {
	if name == "." || name == "/" || name == "" {
		return nil
	}

	dir := path.Dir(name)
	if dir != "." && dir != "/" {
		if err := fs.mkdirAllLocked(dir, perm); err != nil {
			return err
		}
	}

	if _, exists := fs.files[name]; !exists {
		fs.files[name] = &mockFile{
			path:    name,
			modTime: fs.now(),
			isDir:   true,
			perm:    perm,
		}
	}

	return nil
}

func (fs *MockFileSystem) now() time.Time {
	if fs.Now == nil {
		return time.Now()
	}

	return fs.Now()
}

func (fs *MockFileSystem) readFault(name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.readCalls++

	if err := fs.accessFaultLocked("read", name); err != nil {
		return err
	}

	if fs.readErr != nil {
		return &os.PathError{Op: "read", Path: name, Err: fs.readErr}
	}

	return nil
}

func (fs *MockFileSystem) writeFault(name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.writeCalls++

	if err := fs.accessFaultLocked("write", name); err != nil {
		return err
	}

	if fs.writeErr != nil {
		return &os.PathError{Op: "write", Path: name, Err: fs.writeErr}
	}

	return nil
}

func notExist(op, name string) error {
	return &os.PathError{Op: op, Path: name, Err: os.ErrNotExist}
}
