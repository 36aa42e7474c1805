package shared

import "os"

// Terminal capability flags, read once from the environment.
//
//nolint:gochecknoglobals // Process-wide terminal capabilities
var (
	colorsDisabled  = os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb"
	unicodeDisabled = os.Getenv("TERM") == "dumb" || os.Getenv("PEERSYNC_ASCII") != ""
)

// GetColorsDisabled reports whether styled output falls back to plain text.
func GetColorsDisabled() bool {
	return colorsDisabled
}

// SetColorsDisabledForTesting overrides color detection. Tests that call it
// must not run in parallel.
func SetColorsDisabledForTesting(disabled bool) {
	colorsDisabled = disabled
}

// SetUnicodeDisabledForTesting overrides unicode detection. Tests that call
// it must not run in parallel.
func SetUnicodeDisabledForTesting(disabled bool) {
	unicodeDisabled = disabled
}

// ActiveSymbol marks something in progress.
func ActiveSymbol() string {
	if unicodeDisabled {
		return "[*]"
	}

	return "◉"
}

// DownloadSymbol marks data coming from a peer.
func DownloadSymbol() string {
	if unicodeDisabled {
		return "<-"
	}

	return "↓"
}

// ErrorSymbol marks a failure.
func ErrorSymbol() string {
	if unicodeDisabled {
		return "[X]"
	}

	return "✗"
}

// PausedSymbol marks a paused folder.
func PausedSymbol() string {
	if unicodeDisabled {
		return "[=]"
	}

	return "⏸"
}

// PendingSymbol marks work that has not started.
func PendingSymbol() string {
	if unicodeDisabled {
		return "[ ]"
	}

	return "○"
}

// SuccessSymbol marks something finished.
func SuccessSymbol() string {
	if unicodeDisabled {
		return "[v]"
	}

	return "✓"
}

// UploadSymbol marks data going to a peer.
func UploadSymbol() string {
	if unicodeDisabled {
		return "->"
	}

	return "↑"
}
