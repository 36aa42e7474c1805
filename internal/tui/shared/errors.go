package shared

import (
	"fmt"
	"strings"

	"github.com/joe/peersync/internal/syncengine"
	"github.com/joe/peersync/pkg/errors"
)

// ErrorLimit is how many recent errors the monitor shows.
const ErrorLimit = 3

// ErrorListConfig holds configuration for rendering error lists
type ErrorListConfig struct {
	// Errors is the list of reported failures, oldest first
	Errors []syncengine.ErrorOccurred

	// Limit caps how many of the most recent errors are shown. Zero means ErrorLimit.
	Limit int

	// MaxWidth is the maximum width for error message display
	MaxWidth int
}

// RenderErrorList renders the most recent errors with their suggestions.
func RenderErrorList(config ErrorListConfig) string {
	// Nothing to render
	if len(config.Errors) == 0 {
		return ""
	}

	limit := config.Limit
	if limit <= 0 {
		limit = ErrorLimit
	}

	// Show only the newest errors, with a count of the rest
	start := 0
	if len(config.Errors) > limit {
		start = len(config.Errors) - limit
	}

	var builder strings.Builder

	if start > 0 {
		fmt.Fprintf(&builder, "  ... %d earlier error(s)\n", start)
	}

	for _, occurred := range config.Errors[start:] {
		subject := errorSubject(occurred)
		fmt.Fprintf(&builder, "  %s %s\n", ErrorSymbol(), FileItemErrorStyle().Render(subject))

		// Truncate long messages to the available width
		errMsg := occurred.Err.Error()
		if config.MaxWidth > 3 && len(errMsg) > config.MaxWidth {
			errMsg = errMsg[:config.MaxWidth-3] + "..."
		}

		fmt.Fprintf(&builder, "    %s\n", errMsg)

		// Suggestions indented under their error
		if suggestions := errors.FormatSuggestions(occurred.Err); suggestions != "" {
			fmt.Fprintf(&builder, "    %s\n", strings.ReplaceAll(suggestions, "\n", "\n    "))
		}
	}

	return builder.String()
}

// errorSubject names what failed: a file, a peer, or the folder itself.
func errorSubject(occurred syncengine.ErrorOccurred) string {
	category := string(occurred.Err.Category())

	switch {
	case occurred.FileName != "":
		return fmt.Sprintf("%s [%s]", occurred.FileName, category)
	case occurred.PeerID != "":
		return fmt.Sprintf("%s [%s]", syncengine.PeerName(occurred.PeerID), category)
	default:
		return fmt.Sprintf("folder [%s]", category)
	}
}
