package errors

import "fmt"

// SuggestionGenerator generates actionable suggestions based on error category.
type SuggestionGenerator interface {
	Generate(category ErrorCategory, affectedPath string) []string
}

// NewSuggestionGenerator creates a new SuggestionGenerator.
func NewSuggestionGenerator() SuggestionGenerator {
	return &suggestionGenerator{}
}

// suggestionGenerator is the concrete implementation of SuggestionGenerator.
type suggestionGenerator struct{}

// Generate returns actionable suggestions based on the error category and affected path.
func (g *suggestionGenerator) Generate(category ErrorCategory, affectedPath string) []string {
	switch category {
	case CategoryPermission:
		return g.generatePermissionSuggestions(affectedPath)
	case CategoryDiskSpace:
		return g.generateDiskSpaceSuggestions(affectedPath)
	case CategoryNotFound:
		return g.generateNotFoundSuggestions(affectedPath)
	case CategoryIO:
		return g.generateIOSuggestions(affectedPath)
	case CategoryChannel:
		return g.generateChannelSuggestions()
	case CategoryProtocol:
		return g.generateProtocolSuggestions()
	case CategoryUnknown:
		return g.generateUnknownSuggestions(affectedPath)
	default:
		return g.generateUnknownSuggestions(affectedPath)
	}
}

func (g *suggestionGenerator) generateChannelSuggestions() []string {
	return []string{
		"Check that the other device is still online",
		"Reconnect the peer; pending files are retried after the next listing exchange",
		"If both devices are behind strict NATs, a direct connection may not be possible",
	}
}

func (g *suggestionGenerator) generateDiskSpaceSuggestions(path string) []string {
	suggestions := []string{
		"Free up space on the device holding the synced folder",
		"Check available space with 'df -h'",
	}

	if path != "" {
		suggestions = append(suggestions, "Verify disk usage for the filesystem containing "+path)
	}

	return suggestions
}

func (g *suggestionGenerator) generateIOSuggestions(path string) []string {
	suggestions := []string{
		"Check if there is sufficient disk space for the synced folder",
		"Verify the storage device is functioning correctly",
		"Pause and resume the folder to retry the transfer",
	}

	if path != "" {
		suggestions = append(suggestions, "Check that "+path+" is not locked by another program")
	}

	return suggestions
}

func (g *suggestionGenerator) generateNotFoundSuggestions(path string) []string {
	suggestions := []string{
		"The file may have been removed or renamed while it was being synced",
	}

	if path != "" {
		suggestions = append(suggestions, "Check if the path still exists: "+path)
	}

	suggestions = append(suggestions, "Pause and resume the folder to refresh its listing")

	return suggestions
}

func (g *suggestionGenerator) generatePermissionSuggestions(path string) []string {
	suggestions := []string{
		"Grant access to the folder again to resume syncing",
	}

	if path != "" {
		suggestions = append(suggestions, fmt.Sprintf("Check permissions with 'ls -la %s'", path))
	} else {
		suggestions = append(suggestions, "Check permissions with 'ls -la' on the synced folder")
	}

	suggestions = append(suggestions, "Ensure you have read/write permissions for the files in the folder")

	return suggestions
}

func (g *suggestionGenerator) generateProtocolSuggestions() []string {
	return []string{
		"The other device sent a message this version does not understand",
		"Make sure both devices run the same version of peersync",
	}
}

func (g *suggestionGenerator) generateUnknownSuggestions(path string) []string {
	suggestions := []string{
		"Check the error message for more details",
		"Verify file and directory permissions",
		"Ensure sufficient disk space is available",
	}

	if path != "" {
		suggestions = append(suggestions, "Verify the path is accessible: "+path)
	}

	return suggestions
}
