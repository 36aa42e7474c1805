package errors_test

import (
	"strings"
	"testing"

	"github.com/joe/peersync/pkg/errors"
)

func TestSuggestionGenerator_Generate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		category errors.ErrorCategory
		path     string
		keywords []string
	}{
		{errors.CategoryPermission, "/sync", []string{"grant access", "ls -la /sync"}},
		{errors.CategoryPermission, "", []string{"grant access", "ls -la"}},
		{errors.CategoryNotFound, "/sync/gone.txt", []string{"removed", "/sync/gone.txt"}},
		{errors.CategoryIO, "/sync/a.txt", []string{"disk space", "/sync/a.txt"}},
		{errors.CategoryDiskSpace, "/sync", []string{"df -h", "/sync"}},
		{errors.CategoryChannel, "", []string{"online", "reconnect"}},
		{errors.CategoryProtocol, "", []string{"same version"}},
		{errors.CategoryUnknown, "/sync/x", []string{"more details", "/sync/x"}},
		{errors.ErrorCategory("bogus"), "", []string{"more details"}},
	}

	gen := errors.NewSuggestionGenerator()

	for _, testCase := range testCases {
		t.Run(string(testCase.category)+"_"+testCase.path, func(t *testing.T) {
			t.Parallel()

			suggestions := gen.Generate(testCase.category, testCase.path)
			if len(suggestions) == 0 {
				t.Fatalf("expected suggestions for %q, got none", testCase.category)
			}

			joined := strings.ToLower(strings.Join(suggestions, "\n"))
			for _, keyword := range testCase.keywords {
				if !strings.Contains(joined, strings.ToLower(keyword)) {
					t.Errorf("expected a suggestion mentioning %q, got: %v", keyword, suggestions)
				}
			}
		})
	}
}
