package filesystem

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	sftpScheme      = "sftp://"
	defaultSFTPPort = 22
)

// ErrInvalidSFTPURL is returned for sftp:// locations that cannot be used.
var ErrInvalidSFTPURL = errors.New("invalid SFTP URL")

// ParsedPath is a folder location: a local directory or a directory on an
// SFTP server.
type ParsedPath struct {
	IsRemote bool

	LocalPath string

	Host string
	Port int
	User string
	// Path is relative to the user's home unless it starts with a slash.
	Path string
}

// Address is the host:port to dial for a remote location.
func (p *ParsedPath) Address() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// BaseName is the last element of the directory, the default name of a
// folder added from this location. The home directory of a remote user is
// named after the user.
func (p *ParsedPath) BaseName() string {
	if !p.IsRemote {
		return filepath.Base(filepath.Clean(p.LocalPath))
	}

	if base := path.Base(p.Path); base != "." && base != "/" {
		return base
	}

	return p.User
}

// ParsePath parses a folder location. Locations starting with sftp:// take
// the form sftp://user@host[:port]/dir, where a double slash after the host
// makes dir absolute. Anything else is a local path.
func ParsePath(location string) (*ParsedPath, error) {
	if !strings.HasPrefix(location, sftpScheme) {
		return &ParsedPath{LocalPath: location}, nil
	}

	parsed, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSFTPURL, err)
	}

	if parsed.User == nil || parsed.User.Username() == "" {
		return nil, fmt.Errorf("%w: a user is required (sftp://user@host/dir)", ErrInvalidSFTPURL)
	}

	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("%w: a host is required", ErrInvalidSFTPURL)
	}

	port := defaultSFTPPort

	if raw := parsed.Port(); raw != "" {
		port, err = strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("%w: bad port %q", ErrInvalidSFTPURL, raw)
		}
	}

	return &ParsedPath{
		IsRemote: true,
		Host:     parsed.Hostname(),
		Port:     port,
		User:     parsed.User.Username(),
		Path:     remoteDir(parsed.Path),
	}, nil
}

func remoteDir(urlPath string) string {
	switch {
	case urlPath == "" || urlPath == "/":
		return "."
	case strings.HasPrefix(urlPath, "//"):
		return urlPath[1:]
	default:
		return strings.TrimPrefix(urlPath, "/")
	}
}
