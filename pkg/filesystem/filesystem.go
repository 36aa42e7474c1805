// Package filesystem provides an abstraction layer for filesystem operations
// to enable dependency injection and testing without actual filesystem I/O.
//
// A synced folder is flat: only the regular files directly inside the folder
// root take part in a sync. Scan therefore lists a single directory level.
package filesystem

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// File is an open file on any FileSystem.
type File interface {
	io.Reader
	io.Writer
	io.Closer
	Stat() (os.FileInfo, error)
}

// FileSystem is the set of operations a folder destination needs. Local
// disks, SFTP servers and the in-memory mock implement it.
type FileSystem interface {
	// Scan returns an iterator over the entries directly inside a directory.
	// Sub-directories are reported (IsDir) but never descended into.
	Scan(path string) FileScanner

	Open(path string) (File, error)
	Create(path string) (File, error)
	MkdirAll(path string, perm os.FileMode) error
	Chtimes(path string, atime, mtime time.Time) error
	Remove(path string) error
	Rename(oldPath, newPath string) error
	Stat(path string) (os.FileInfo, error)

	// Join joins path elements using the separator of this filesystem.
	Join(elem ...string) string
}

// RealFileSystem is the local disk.
type RealFileSystem struct{}

// NewRealFileSystem creates a new RealFileSystem instance.
func NewRealFileSystem() *RealFileSystem {
	return &RealFileSystem{}
}

func (fs *RealFileSystem) Chtimes(path string, atime, mtime time.Time) error {
	return wrapOp("change times for", path, os.Chtimes(path, atime, mtime))
}

func (fs *RealFileSystem) Create(path string) (File, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, wrapOp("create", path, err)
	}

	return file, nil
}

func (fs *RealFileSystem) Join(elem ...string) string {
	return filepath.Join(elem...)
}

func (fs *RealFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return wrapOp("create directory", path, os.MkdirAll(path, perm))
}

func (fs *RealFileSystem) Open(path string) (File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, wrapOp("open", path, err)
	}

	return file, nil
}

func (fs *RealFileSystem) Remove(path string) error {
	return wrapOp("remove", path, os.Remove(path))
}

// Rename moves oldPath to newPath, replacing newPath if it exists.
func (fs *RealFileSystem) Rename(oldPath, newPath string) error {
	return wrapOp("rename", oldPath, os.Rename(oldPath, newPath))
}

func (fs *RealFileSystem) Scan(path string) FileScanner {
	return newRealFileScanner(path)
}

func (fs *RealFileSystem) Stat(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, wrapOp("stat", path, err)
	}

	return info, nil
}

// wrapOp names the failed operation. The cause stays reachable for
// errors.Is and the error enricher.
func wrapOp(op, path string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("failed to %s %s: %w", op, path, err)
}
