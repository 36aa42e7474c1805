//nolint:varnamelen // Test files use idiomatic short variable names (t, tt, etc.)
package config_test

import (
	"strings"
	"testing"

	"github.com/joe/peersync/internal/config"
)

func TestValidateSFTPURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		folder  string
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid SFTP URL",
			folder: "sftp://user@host/path",
		},
		{
			name:   "valid SFTP URL with port",
			folder: "sftp://user@host:22/path/to/dir",
		},
		{
			name:   "absolute remote path",
			folder: "sftp://admin@server.com//srv/shared",
		},
		{
			name:   "trailing slash means the home directory",
			folder: "sftp://user@host/",
		},
		{
			name:    "missing username",
			folder:  "sftp://host/path",
			wantErr: true,
			errMsg:  "must include username",
		},
		{
			name:    "username only in the path",
			folder:  "sftp://host/user@path",
			wantErr: true,
			errMsg:  "must include username",
		},
		{
			name:    "missing path",
			folder:  "sftp://user@host",
			wantErr: true,
			errMsg:  "must include path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Config{Folder: tt.folder}

			err := cfg.ValidatePaths()

			if tt.wantErr {
				if err == nil {
					t.Error("Expected error but got nil")
				} else if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Error message %q does not contain %q", err.Error(), tt.errMsg)
				}
			} else if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}
