package filesystem

import (
	"github.com/pkg/sftp"
)

// sftpFile is a remote file. Close errors name the remote path, since a
// failed close is where a short write on the server surfaces.
type sftpFile struct {
	*sftp.File
}

func newSFTPFile(file *sftp.File) *sftpFile {
	return &sftpFile{File: file}
}

func (f *sftpFile) Close() error {
	return wrapOp("close remote file", f.Name(), f.File.Close())
}
