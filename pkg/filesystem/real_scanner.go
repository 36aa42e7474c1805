package filesystem

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/kr/fs"
	"github.com/pkg/sftp"
)

// walkScanner lists one directory level with a kr/fs walker. The walk runs
// on the first call to Next.
type walkScanner struct {
	root  string
	walk  func() *fs.Walker
	rel   func(root, target string) (string, error)
	inner *sliceScanner
}

func newRealFileScanner(root string) *walkScanner {
	return &walkScanner{
		root: root,
		walk: func() *fs.Walker { return fs.Walk(root) },
		rel:  filepath.Rel,
	}
}

// newSFTPScanner walks a remote directory; sftp.Client.Walk hands out the
// same walker type as kr/fs.
func newSFTPScanner(client *sftp.Client, root string) *walkScanner {
	return &walkScanner{
		root: root,
		walk: func() *fs.Walker { return client.Walk(root) },
		rel:  relativePath,
	}
}

func (s *walkScanner) Err() error {
	if s.inner == nil {
		return nil
	}

	return s.inner.Err()
}

func (s *walkScanner) Next() (FileInfo, bool) {
	if s.inner == nil {
		s.inner = newSliceScanner(collectFlat(s.walk(), s.root, s.rel))
	}

	return s.inner.Next()
}

// relativePath is filepath.Rel for the forward-slash paths of SFTP servers.
func relativePath(root, target string) (string, error) {
	root = path.Clean(root)
	target = path.Clean(target)

	if target == root {
		return ".", nil
	}

	prefix := root
	if prefix != "/" {
		prefix += "/"
	}

	rel, found := strings.CutPrefix(target, prefix)
	if !found {
		return "", fmt.Errorf("target %s is not under root %s", target, root) //nolint:err113 // Path validation error with actual paths
	}

	return rel, nil
}
