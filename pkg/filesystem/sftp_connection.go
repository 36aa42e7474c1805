package filesystem

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Exported variables.
var (
	ErrNoSSHAuth = errors.New("no SSH authentication methods available (tried SSH agent and default keys)")
)

// SFTPConnection holds an active SSH/SFTP connection.
type SFTPConnection struct {
	sshClient  closer
	sftpClient closer
	client     *sftp.Client
	host       string
	port       int
	user       string
}

// Connect establishes an SSH connection and opens an SFTP session.
// It uses SSH agent and default SSH keys for authentication, and verifies the
// host key against ~/.ssh/known_hosts when that file exists.
func Connect(host string, port int, user string) (*SFTPConnection, error) {
	authMethods := getSSHAuthMethods()
	if len(authMethods) == 0 {
		return nil, ErrNoSSHAuth
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback(),
	}

	addr := net.JoinHostPort(host, fmt.Sprint(port))

	sshClient, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("SSH connection failed: %w", err)
	}

	// One client serves every transfer of the folder; sftp.Client multiplexes
	// concurrent requests over the session.
	sftpClient, err := sftp.NewClient(sshClient,
		sftp.MaxPacket(sftpMaxPacket),
		sftp.UseConcurrentWrites(true),
	)
	if err != nil {
		_ = sshClient.Close()
		return nil, fmt.Errorf("SFTP session creation failed: %w", err)
	}

	return &SFTPConnection{
		sshClient:  sshClient,
		sftpClient: sftpClient,
		client:     sftpClient,
		host:       host,
		port:       port,
		user:       user,
	}, nil
}

// Client returns the underlying SFTP client.
func (c *SFTPConnection) Client() *sftp.Client {
	return c.client
}

// Close closes the SFTP session and SSH connection.
// The first error encountered is returned.
func (c *SFTPConnection) Close() error {
	var firstErr error

	if c.sftpClient != nil {
		if err := c.sftpClient.Close(); err != nil {
			firstErr = err
		}
	}

	if c.sshClient != nil {
		if err := c.sshClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// String identifies the remote endpoint.
func (c *SFTPConnection) String() string {
	return fmt.Sprintf("%s@%s:%d", c.user, c.host, c.port)
}

// unexported constants.
const (
	sftpMaxPacket = 64 * 1024
)

type closer interface {
	Close() error
}

// getSSHAuthMethods returns SSH authentication methods in priority order:
// 1. SSH agent
// 2. Default SSH keys
func getSSHAuthMethods() []ssh.AuthMethod {
	var authMethods []ssh.AuthMethod

	if agentAuth := trySSHAgent(); agentAuth != nil {
		authMethods = append(authMethods, agentAuth)
	}

	authMethods = append(authMethods, tryDefaultSSHKeys()...)

	return authMethods
}

func hostKeyCallback() ssh.HostKeyCallback {
	homeDir, err := os.UserHomeDir()
	if err == nil {
		callback, err := knownhosts.New(filepath.Join(homeDir, ".ssh", "known_hosts"))
		if err == nil {
			return callback
		}
	}

	//nolint:gosec // no known_hosts file to verify against
	return ssh.InsecureIgnoreHostKey()
}

// tryDefaultSSHKeys loads unencrypted keys from the default locations.
func tryDefaultSSHKeys() []ssh.AuthMethod {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	sshDir := filepath.Join(homeDir, ".ssh")

	var authMethods []ssh.AuthMethod

	for _, keyName := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		keyData, err := os.ReadFile(filepath.Join(sshDir, keyName))
		if err != nil {
			continue
		}

		// Password-protected keys are skipped.
		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			continue
		}

		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	return authMethods
}

// trySSHAgent attempts to connect to the SSH agent.
func trySSHAgent() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil
	}

	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers)
}
