package errors_test

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"testing"

	"github.com/pkg/sftp"

	pkgerrors "github.com/joe/peersync/pkg/errors"
)

func TestCategorize(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		err      error
		expected pkgerrors.ErrorCategory
	}{
		{"nil", nil, pkgerrors.CategoryUnknown},
		{"fs permission", fs.ErrPermission, pkgerrors.CategoryPermission},
		{"wrapped path error", &os.PathError{Op: "open", Path: "/sync/a", Err: fs.ErrPermission}, pkgerrors.CategoryPermission},
		{"not exist", fmt.Errorf("stat a.txt: %w", fs.ErrNotExist), pkgerrors.CategoryNotFound},
		{"protocol sentinel", fmt.Errorf("%w: unknown session 7", pkgerrors.ErrProtocol), pkgerrors.CategoryProtocol},
		{"channel sentinel", fmt.Errorf("send chunk: %w", pkgerrors.ErrChannel), pkgerrors.CategoryChannel},
		{"io sentinel", fmt.Errorf("append: %w", pkgerrors.ErrIO), pkgerrors.CategoryIO},
		{"sftp permission", &sftp.StatusError{Code: uint32(sftp.ErrSSHFxPermissionDenied)}, pkgerrors.CategoryPermission},
		{"sftp no such file", &sftp.StatusError{Code: uint32(sftp.ErrSSHFxNoSuchFile)}, pkgerrors.CategoryNotFound},
		{"sftp failure", &sftp.StatusError{Code: uint32(sftp.ErrSSHFxFailure)}, pkgerrors.CategoryIO},
		{"message pattern", errors.New("write /sync/a: no space left on device"), pkgerrors.CategoryDiskSpace},
		{
			"actionable keeps category",
			pkgerrors.NewActionableError("x", pkgerrors.CategoryChannel, nil, ""),
			pkgerrors.CategoryChannel,
		},
		{"unknown", errors.New("boom"), pkgerrors.CategoryUnknown},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			if got := pkgerrors.Categorize(testCase.err); got != testCase.expected {
				t.Errorf("expected category %q, got %q", testCase.expected, got)
			}
		})
	}
}

func TestEnricher_EnrichAlreadyActionableError(t *testing.T) {
	t.Parallel()

	enricher := pkgerrors.NewEnricher()
	original := pkgerrors.NewActionableError(
		"permission denied",
		pkgerrors.CategoryPermission,
		[]string{"existing suggestion"},
		"/original/path",
	)

	enriched := enricher.Enrich(fmt.Errorf("upload: %w", original), "/new/path")

	var actionableErr pkgerrors.ActionableError
	if !errors.As(enriched, &actionableErr) {
		t.Fatalf("expected ActionableError, got %T", enriched)
	}

	if actionableErr != original {
		t.Error("expected the wrapped ActionableError to be returned unchanged")
	}
}

func TestEnricher_EnrichKeepsCause(t *testing.T) {
	t.Parallel()

	enricher := pkgerrors.NewEnricher()
	cause := &os.PathError{Op: "open", Path: "/sync/a.txt", Err: fs.ErrPermission}

	enriched := enricher.Enrich(cause, "")

	if !errors.Is(enriched, fs.ErrPermission) {
		t.Errorf("expected enriched error to unwrap to fs.ErrPermission")
	}

	var actionableErr pkgerrors.ActionableError
	if !errors.As(enriched, &actionableErr) {
		t.Fatalf("expected ActionableError, got %T", enriched)
	}

	if actionableErr.Category() != pkgerrors.CategoryPermission {
		t.Errorf("expected category %q, got %q", pkgerrors.CategoryPermission, actionableErr.Category())
	}

	if actionableErr.AffectedPath() != "/sync/a.txt" {
		t.Errorf("expected path extracted from message, got %q", actionableErr.AffectedPath())
	}

	if len(actionableErr.Suggestions()) == 0 {
		t.Error("expected suggestions, got none")
	}
}

func TestEnricher_ExtractPathFromErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		errorMsg     string
		providedPath string
		expectedPath string
		category     pkgerrors.ErrorCategory
	}{
		{
			name:         "open with absolute path",
			errorMsg:     "open /home/user/file.txt: permission denied",
			expectedPath: "/home/user/file.txt",
			category:     pkgerrors.CategoryPermission,
		},
		{
			name:         "stat missing file",
			errorMsg:     "stat /var/sync/app.log: no such file or directory",
			expectedPath: "/var/sync/app.log",
			category:     pkgerrors.CategoryNotFound,
		},
		{
			name:         "rename part file",
			errorMsg:     "rename /sync/a.txt.peersync-part: input/output error",
			expectedPath: "/sync/a.txt.peersync-part",
			category:     pkgerrors.CategoryIO,
		},
		{
			name:         "relative path",
			errorMsg:     "open ./notes.md: permission denied",
			expectedPath: "./notes.md",
			category:     pkgerrors.CategoryPermission,
		},
		{
			name:         "provided path wins",
			errorMsg:     "open /extracted/path.txt: permission denied",
			providedPath: "/provided/path.txt",
			expectedPath: "/provided/path.txt",
			category:     pkgerrors.CategoryPermission,
		},
		{
			name:         "no path in message",
			errorMsg:     "permission denied",
			expectedPath: "",
			category:     pkgerrors.CategoryPermission,
		},
		{
			name:         "windows path",
			errorMsg:     "open C:\\Users\\test\\file.txt: permission denied",
			expectedPath: "C:\\Users\\test\\file.txt",
			category:     pkgerrors.CategoryPermission,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			enricher := pkgerrors.NewEnricher()

			enriched := enricher.Enrich(errors.New(testCase.errorMsg), testCase.providedPath)

			var actionableErr pkgerrors.ActionableError
			if !errors.As(enriched, &actionableErr) {
				t.Fatalf("expected ActionableError, got %T", enriched)
			}

			if actionableErr.AffectedPath() != testCase.expectedPath {
				t.Errorf("expected path %q, got %q", testCase.expectedPath, actionableErr.AffectedPath())
			}

			if actionableErr.Category() != testCase.category {
				t.Errorf("expected category %q, got %q", testCase.category, actionableErr.Category())
			}
		})
	}
}
