package syncengine

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FileFilter decides which folder files take part in sync.
type FileFilter interface {
	// ShouldInclude returns true if the file with the given name should be synced.
	ShouldInclude(name string) bool
}

// IgnoreFilter excludes files matching any of a set of glob patterns.
// Matching is case-insensitive and uses doublestar syntax.
type IgnoreFilter struct {
	patterns []string
}

// NewIgnoreFilter validates patterns and builds the filter. No patterns
// means every file is included.
func NewIgnoreFilter(patterns []string) (*IgnoreFilter, error) {
	normalized := make([]string, 0, len(patterns))

	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}

		lower := strings.ToLower(pattern)
		if !doublestar.ValidatePattern(lower) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
		}

		normalized = append(normalized, lower)
	}

	return &IgnoreFilter{patterns: normalized}, nil
}

// Patterns returns the normalized patterns.
func (f *IgnoreFilter) Patterns() []string {
	return append([]string(nil), f.patterns...)
}

// ShouldInclude returns false when name matches an ignore pattern.
func (f *IgnoreFilter) ShouldInclude(name string) bool {
	normalizedName := strings.ToLower(name)

	for _, pattern := range f.patterns {
		// Patterns were validated, so Match cannot fail.
		if matched, _ := doublestar.Match(pattern, normalizedName); matched {
			return false
		}
	}

	return true
}

// includeAll is the filter used when none is configured.
type includeAll struct{}

func (includeAll) ShouldInclude(string) bool { return true }
