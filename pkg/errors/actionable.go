// Package errors classifies sync failures and attaches actionable suggestions.
//
// Every failure the sync engine reports falls into one of a small set of
// categories: the local folder denied access, a file vanished, local storage
// failed, the peer channel broke, or the peer sent something we could not
// understand. The category decides how far the failure spreads (entry,
// folder or peer) and which hints are shown to the user.
//
// Basic Usage:
//
//	enricher := errors.NewEnricher()
//	if _, err := dest.OpenForRead("notes.txt"); err != nil {
//	    actionable := enricher.Enrich(err, "notes.txt").(errors.ActionableError)
//	    fmt.Println(actionable.Error())
//	    fmt.Println(errors.FormatSuggestions(actionable))
//	}
//
// Categorize is the cheap form used on hot paths where only the category
// matters:
//
//	if errors.Categorize(err) == errors.CategoryPermission {
//	    // folder moves to PermissionNeeded
//	}
package errors

import "strings"

// Exported constants.
const (
	CategoryChannel    ErrorCategory = "channel"
	CategoryDiskSpace  ErrorCategory = "disk_space"
	CategoryIO         ErrorCategory = "io"
	CategoryNotFound   ErrorCategory = "not_found"
	CategoryPermission ErrorCategory = "permission_denied"
	CategoryProtocol   ErrorCategory = "protocol"
	CategoryUnknown    ErrorCategory = "unknown"
)

// ActionableError represents an error with actionable suggestions for the user.
type ActionableError interface {
	error
	OriginalError() string
	Category() ErrorCategory
	Suggestions() []string
	AffectedPath() string
}

// NewActionableError creates a new ActionableError with the given details.
func NewActionableError(
	originalError string,
	category ErrorCategory,
	suggestions []string,
	affectedPath string,
) ActionableError {
	return &actionableError{
		originalError: originalError,
		category:      category,
		suggestions:   suggestions,
		affectedPath:  affectedPath,
	}
}

// ErrorCategory represents the type of error that occurred.
type ErrorCategory string

// Scope reports how far a failure of this category spreads.
func (c ErrorCategory) Scope() Scope {
	switch c {
	case CategoryPermission:
		return ScopeFolder
	case CategoryChannel:
		return ScopePeer
	case CategoryProtocol:
		return ScopeMessage
	case CategoryNotFound, CategoryIO, CategoryDiskSpace, CategoryUnknown:
		return ScopeEntry
	default:
		return ScopeEntry
	}
}

// Scope is the blast radius of a failure.
type Scope int

// Scope values.
const (
	// ScopeMessage: the offending message is dropped, nothing else changes.
	ScopeMessage Scope = iota
	// ScopeEntry: a single file entry moves to Error.
	ScopeEntry
	// ScopeFolder: the folder loses its destination (PermissionNeeded).
	ScopeFolder
	// ScopePeer: the peer session is torn down.
	ScopePeer
)

// String returns a short label for the scope.
func (s Scope) String() string {
	switch s {
	case ScopeMessage:
		return "message"
	case ScopeEntry:
		return "entry"
	case ScopeFolder:
		return "folder"
	case ScopePeer:
		return "peer"
	default:
		return "unknown"
	}
}

// FormatSuggestions formats the suggestions from an ActionableError as a bulleted list
// for display in the TUI. Returns empty string if the error is nil or has no suggestions.
func FormatSuggestions(err error) string {
	if err == nil {
		return ""
	}

	actionable, ok := err.(ActionableError)
	if !ok {
		return ""
	}

	suggestions := actionable.Suggestions()
	if len(suggestions) == 0 {
		return ""
	}

	// Bulleted list with two-space indent
	var builder strings.Builder
	for i, suggestion := range suggestions {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString("  • ")
		builder.WriteString(suggestion)
	}

	return builder.String()
}

// actionableError is the concrete implementation of ActionableError.
type actionableError struct {
	originalError string
	category      ErrorCategory
	suggestions   []string
	affectedPath  string
	cause         error
}

// AffectedPath returns the file path affected by this error.
func (e *actionableError) AffectedPath() string {
	return e.affectedPath
}

// Category returns the error category.
func (e *actionableError) Category() ErrorCategory {
	return e.category
}

// Error implements the error interface.
func (e *actionableError) Error() string {
	return e.originalError
}

// OriginalError returns the original error message.
func (e *actionableError) OriginalError() string {
	return e.originalError
}

// Suggestions returns the list of actionable suggestions.
func (e *actionableError) Suggestions() []string {
	return e.suggestions
}

// Unwrap returns the enriched error, if any.
func (e *actionableError) Unwrap() error {
	return e.cause
}
