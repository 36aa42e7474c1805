package filesystem

import (
	"errors"
	"os"
	"path"
	"time"

	"github.com/pkg/sftp"
)

// SFTPFileSystem is a directory tree on an SFTP server.
type SFTPFileSystem struct {
	client *sftp.Client
}

// NewSFTPFileSystem creates a new SFTP filesystem using an established connection.
func NewSFTPFileSystem(conn *SFTPConnection) *SFTPFileSystem {
	return &SFTPFileSystem{client: conn.Client()}
}

func (fs *SFTPFileSystem) Chtimes(name string, atime, mtime time.Time) error {
	return wrapOp("change times for remote file", name, fs.client.Chtimes(name, atime, mtime))
}

func (fs *SFTPFileSystem) Create(name string) (File, error) {
	file, err := fs.client.Create(name)
	if err != nil {
		return nil, wrapOp("create remote file", name, err)
	}

	return newSFTPFile(file), nil
}

// Join joins path elements with forward slashes, as SFTP servers expect.
func (fs *SFTPFileSystem) Join(elem ...string) string {
	return path.Join(elem...)
}

// MkdirAll creates a remote directory and its parents. The server decides
// the permissions.
func (fs *SFTPFileSystem) MkdirAll(name string, _ os.FileMode) error {
	return wrapOp("create remote directory", name, fs.client.MkdirAll(name))
}

func (fs *SFTPFileSystem) Open(name string) (File, error) {
	file, err := fs.client.Open(name)
	if err != nil {
		return nil, wrapOp("open remote file", name, err)
	}

	return newSFTPFile(file), nil
}

func (fs *SFTPFileSystem) Remove(name string) error {
	return wrapOp("remove remote file", name, fs.client.Remove(name))
}

// Rename moves a remote file, replacing the target.
//
// Plain SFTP rename refuses to overwrite, so the posix-rename extension is
// tried first and a remove-then-rename is the fallback.
func (fs *SFTPFileSystem) Rename(oldName, newName string) error {
	if err := fs.client.PosixRename(oldName, newName); err == nil {
		return nil
	}

	if err := fs.client.Remove(newName); err != nil && !errors.Is(err, os.ErrNotExist) {
		return wrapOp("replace remote file", newName, err)
	}

	return wrapOp("rename remote file", oldName, fs.client.Rename(oldName, newName))
}

func (fs *SFTPFileSystem) Scan(root string) FileScanner {
	return newSFTPScanner(fs.client, root)
}

func (fs *SFTPFileSystem) Stat(name string) (os.FileInfo, error) {
	info, err := fs.client.Stat(name)
	if err != nil {
		return nil, wrapOp("stat remote file", name, err)
	}

	return info, nil
}
