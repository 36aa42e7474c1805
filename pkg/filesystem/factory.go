package filesystem

import (
	"fmt"
)

// CreateFileSystem resolves a location into the filesystem that holds it and
// the directory on that filesystem. The closer releases an SFTP connection
// and is nil for local paths.
func CreateFileSystem(location string) (FileSystem, string, func(), error) {
	parsed, err := ParsePath(location)
	if err != nil {
		return nil, "", nil, err
	}

	if !parsed.IsRemote {
		return NewRealFileSystem(), parsed.LocalPath, nil, nil
	}

	conn, err := Connect(parsed.Host, parsed.Port, parsed.User)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to connect to %s@%s: %w", parsed.User, parsed.Address(), err)
	}

	closer := func() {
		_ = conn.Close()
	}

	return NewSFTPFileSystem(conn), parsed.Path, closer, nil
}

// OpenDestination resolves a folder location (local path or sftp:// URL) into
// a Destination. The folder directory must already exist. Remote folders
// keep whole-second modification times.
func OpenDestination(location string, opts ...DestinationOption) (*FolderDestination, error) {
	fsys, root, closer, err := CreateFileSystem(location)
	if err != nil {
		return nil, err
	}

	if _, remote := fsys.(*SFTPFileSystem); remote {
		opts = append([]DestinationOption{WithTimePrecision(SFTPTimePrecision)}, opts...)
	}

	dest, err := NewDestination(fsys, root, append(opts, withCloser(closer), WithLocation(location))...)
	if err != nil {
		if closer != nil {
			closer()
		}

		return nil, err
	}

	return dest, nil
}
