package errors

import (
	"errors"
	"io/fs"
	"regexp"
	"strings"

	"github.com/pkg/sftp"
)

// Exported variables.
var (
	// ErrChannel marks failures of the peer message channel.
	ErrChannel = errors.New("channel error")
	// ErrProtocol marks messages from a peer that could not be understood.
	ErrProtocol = errors.New("protocol error")
	// ErrIO marks local storage failures that are neither permission nor not-found problems.
	ErrIO = errors.New("i/o error")
)

// Enricher enriches standard errors with actionable suggestions.
type Enricher interface {
	Enrich(err error, affectedPath string) error
}

// Categorize classifies err without building suggestions.
//
// Typed errors win over message patterns: fs.ErrPermission and fs.ErrNotExist
// (which the sftp client also maps its status codes onto), raw sftp status
// codes, and the ErrChannel/ErrProtocol/ErrIO sentinels of this package.
func Categorize(err error) ErrorCategory {
	return categorize(err, defaultMatcher)
}

// NewEnricher creates a new Enricher with default pattern matcher and suggestion generator.
func NewEnricher() Enricher {
	return &enricher{
		matcher:   NewPatternMatcher(),
		generator: NewSuggestionGenerator(),
	}
}

// unexported variables.
var (
	//nolint:gochecknoglobals // Compiled regexes shared across all enricher instances for performance
	pathExtractionPatterns = []*regexp.Regexp{
		// Unix/Linux paths (absolute and relative)
		regexp.MustCompile(`\b\w+\s+([./][^\s:]+):`),
		// Windows paths with backslashes
		regexp.MustCompile(`\b\w+\s+([A-Za-z]:\\[^\s:]+):`),
		// Windows paths with forward slashes
		regexp.MustCompile(`\b\w+\s+([A-Za-z]:/[^\s:]+):`),
	}
	//nolint:gochecknoglobals // stateless
	defaultMatcher = NewPatternMatcher()
)

// enricher is the concrete implementation of Enricher.
type enricher struct {
	matcher   PatternMatcher
	generator SuggestionGenerator
}

// Enrich takes a standard error and enriches it with category and actionable suggestions.
// If the error is already an ActionableError, it is returned unchanged.
// If affectedPath is empty, attempts to extract a path from the error message.
func (e *enricher) Enrich(err error, affectedPath string) error {
	// If already actionable, return as-is
	var actionableErr ActionableError
	if errors.As(err, &actionableErr) {
		return actionableErr
	}

	errMsg := err.Error()

	// If no path provided, try to extract from error message
	if affectedPath == "" {
		affectedPath = extractPath(errMsg)
	}

	// Typed errors first, then the message patterns
	category := categorize(err, e.matcher)

	// Keep the cause so errors.Is still sees through the wrapper
	return &actionableError{
		originalError: errMsg,
		category:      category,
		suggestions:   e.generator.Generate(category, affectedPath),
		affectedPath:  affectedPath,
		cause:         err,
	}
}

func categorize(err error, matcher PatternMatcher) ErrorCategory {
	if err == nil {
		return CategoryUnknown
	}

	// Already categorized
	var actionableErr ActionableError
	if errors.As(err, &actionableErr) {
		return actionableErr.Category()
	}

	// Sentinels and fs errors
	switch {
	case errors.Is(err, fs.ErrPermission):
		return CategoryPermission
	case errors.Is(err, fs.ErrNotExist):
		return CategoryNotFound
	case errors.Is(err, ErrProtocol):
		return CategoryProtocol
	case errors.Is(err, ErrChannel):
		return CategoryChannel
	}

	// Raw SFTP status codes the client didn't map
	var statusErr *sftp.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.FxCode() {
		case sftp.ErrSSHFxPermissionDenied:
			return CategoryPermission
		case sftp.ErrSSHFxNoSuchFile:
			return CategoryNotFound
		default:
			return CategoryIO
		}
	}

	// Message patterns, which can be more specific than ErrIO
	if category := matcher.Match(err.Error()); category != CategoryUnknown {
		return category
	}

	if errors.Is(err, ErrIO) {
		return CategoryIO
	}

	return CategoryUnknown
}

// extractPath attempts to extract a file path from common Go error message formats.
// Returns empty string if no path is found.
//
// This function recognizes standard Go error formats like:
//   - "open /path/to/file: permission denied"
//   - "stat /var/log/app.log: no such file or directory"
//   - "rename /sync/a.txt.peersync-part: input/output error"
func extractPath(errorMsg string) string {
	// Common Go error shape: "operation /path/to/file: error description"
	for _, pattern := range pathExtractionPatterns {
		if matches := pattern.FindStringSubmatch(errorMsg); len(matches) > 1 {
			path := strings.TrimSpace(matches[1])
			if path != "" {
				return path
			}
		}
	}

	return ""
}
