package errors

import "strings"

// PatternMatcher matches error messages to categories using string patterns.
type PatternMatcher interface {
	Match(errorMsg string) ErrorCategory
}

// NewPatternMatcher creates a new PatternMatcher with predefined patterns.
func NewPatternMatcher() PatternMatcher {
	return &patternMatcher{
		patterns: []categoryPatterns{
			{CategoryPermission, []string{
				"permission denied",
				"access denied",
				"operation not permitted",
				"notallowederror",
			}},
			{CategoryDiskSpace, []string{
				"no space left on device",
				"disk full",
				"quota exceeded",
			}},
			{CategoryNotFound, []string{
				"no such file or directory",
				"file not found",
				"path does not exist",
				"notfounderror",
			}},
			{CategoryChannel, []string{
				"channel closed",
				"data channel",
				"connection reset",
				"broken pipe",
				"use of closed network connection",
			}},
			{CategoryProtocol, []string{
				"malformed message",
				"unknown message type",
				"unknown session",
				"exceeds declared size",
			}},
			{CategoryIO, []string{
				"short write",
				"input/output error",
				"i/o error",
				"unexpected eof",
			}},
		},
	}
}

type categoryPatterns struct {
	category ErrorCategory
	patterns []string
}

// patternMatcher is the concrete implementation of PatternMatcher.
// Categories are checked in order, so a message mentioning both a permission
// problem and an I/O problem is classified as a permission problem.
type patternMatcher struct {
	patterns []categoryPatterns
}

// Match returns the error category based on pattern matching.
func (m *patternMatcher) Match(errorMsg string) ErrorCategory {
	// Case-insensitive substring match, first category wins
	lowerMsg := strings.ToLower(errorMsg)

	for _, group := range m.patterns {
		for _, pattern := range group.patterns {
			if strings.Contains(lowerMsg, pattern) {
				return group.category
			}
		}
	}

	return CategoryUnknown
}
