package shared

import "github.com/charmbracelet/lipgloss"

// Exported constants organized by category.
const (
	// ============================================================================
	// UI Layout & Display
	// ============================================================================

	// ProgressBarWidth is the width of the folder progress bar
	ProgressBarWidth = 40
	// FileProgressBarWidth is the width of per-file progress bars
	FileProgressBarWidth = 20
	// ProgressPercentageScale converts a 0-1 fraction to a 0-100 percentage
	ProgressPercentageScale = 100

	// ============================================================================
	// Time Intervals
	// ============================================================================

	// TickIntervalMs is the interval for tick messages in milliseconds
	TickIntervalMs = 250

	// ============================================================================
	// Keys
	// ============================================================================

	// KeyCtrlC is the key binding for cancellation
	KeyCtrlC = "ctrl+c"
	// KeyQuit leaves the monitor
	KeyQuit = "q"
	// KeyPause toggles pause on the selected folder
	KeyPause = "p"
	// KeyNext and KeyPrev move the folder selection
	KeyNext = "tab"
	KeyPrev = "shift+tab"
)

// ANSI 256 palette.
const (
	accentColorCode    = "62"  // blue
	dimColorCode       = "240" // dark gray
	errorColorCode     = "196" // red
	highlightColorCode = "86"  // cyan
	primaryColorCode   = "205" // pink
	subtleColorCode    = "241" // medium gray
	successColorCode   = "42"  // green
	warningColorCode   = "226" // yellow
	boxPadding         = 2
)

// PrimaryColor is the title and progress bar color.
func PrimaryColor() lipgloss.Color { return lipgloss.Color(primaryColorCode) }

// ============================================================================
// Box and Container Styles
// ============================================================================

// BoxStyle frames a widget.
func BoxStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(accentColorCode)).
		Padding(0, boxPadding)
}

// ============================================================================
// Text Styles
// ============================================================================

func DimStyle() lipgloss.Style     { return foreground(dimColorCode, false) }
func ErrorStyle() lipgloss.Style   { return foreground(errorColorCode, true) }
func LabelStyle() lipgloss.Style   { return foreground(highlightColorCode, true) }
func SuccessStyle() lipgloss.Style { return foreground(successColorCode, true) }
func WarningStyle() lipgloss.Style { return foreground(warningColorCode, true) }

// ============================================================================
// File Item Styles (for file lists)
// ============================================================================

func FileItemCompleteStyle() lipgloss.Style { return foreground(successColorCode, false) }
func FileItemErrorStyle() lipgloss.Style    { return foreground(errorColorCode, false) }
func FileItemPendingStyle() lipgloss.Style  { return foreground(subtleColorCode, false) }
func FileItemSyncingStyle() lipgloss.Style  { return foreground(warningColorCode, false) }

// ============================================================================
// Rendering Helpers
// ============================================================================

func RenderDim(text string) string   { return DimStyle().Render(text) }
func RenderError(text string) string { return ErrorStyle().Render(text) }
func RenderLabel(text string) string { return LabelStyle().Render(text) }

// RenderSubtitle renders the line under the title.
func RenderSubtitle(text string) string {
	return foreground(subtleColorCode, false).MarginBottom(1).Render(text)
}

// RenderTitle renders the monitor title.
func RenderTitle(text string) string {
	return lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor()).MarginBottom(1).Render(text)
}

func foreground(code string, bold bool) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(code)).Bold(bold)
}
