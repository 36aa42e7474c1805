package shared

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
)

// NewProgressModel creates a progress bar with the monitor's colors.
// Every transfer row in the monitor uses one of these.
func NewProgressModel(width int) progress.Model {
	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.Width = width
	progressBar.ShowPercentage = false // rendered by the caller

	// Colors only when the terminal allows them
	if !colorsDisabled {
		progressBar.EmptyColor = dimColorCode
		progressBar.FullColor = accentColorCode
	}

	return progressBar
}

// RenderASCIIProgress renders a progress bar like "[=========>          ] 45%".
// percent is clamped to 0.0-1.0, width is the number of cells between the brackets.
func RenderASCIIProgress(percent float64, width int) string {
	// Out-of-range fractions come from files that grew mid-transfer
	percent = min(max(percent, 0), 1)

	// Percentage label and filled cell count
	pct := int(percent * ProgressPercentageScale)
	filled := int(percent * float64(width))

	var bar strings.Builder
	bar.WriteString("[")

	// Arrow placement
	const (
		minWideBarWidth    = 3 // filled cells needed before '=' runs ahead of the arrow
		arrowSpaceReserved = 2 // arrow plus one cell of slack in wide bars
	)

	switch {
	case filled >= width:
		// Complete: solid bar
		bar.WriteString(strings.Repeat("=", width))
	case percent > 0:
		// In flight: '=' for the finished part, '>' at the front.
		// Narrow bars keep at least the arrow visible.
		var equalsCount int
		if filled >= minWideBarWidth {
			equalsCount = filled - arrowSpaceReserved
		} else {
			equalsCount = max(0, filled-1)
		}

		bar.WriteString(strings.Repeat("=", equalsCount))
		bar.WriteString(">")
		bar.WriteString(strings.Repeat(" ", width-equalsCount-1))
	default:
		// Not started
		bar.WriteString(strings.Repeat(" ", width))
	}

	bar.WriteString("]")

	return fmt.Sprintf("%s %d%%", bar.String(), pct)
}

// RenderProgress renders with the bubbles progress bar, or the ASCII
// fallback when NO_COLOR is set or TERM=dumb.
func RenderProgress(model progress.Model, percent float64) string {
	if colorsDisabled {
		// Plain terminals get the ASCII bar at the same width
		return RenderASCIIProgress(percent, model.Width)
	}

	return model.ViewAs(percent)
}
