package shared

import "github.com/charmbracelet/lipgloss"

// RenderTwoColumnLayout renders content in two columns with a 60-40 width split.
// The folder list goes left and the peer and activity widgets go right.
func RenderTwoColumnLayout(leftContent, rightContent string, width, height int) string {
	// Left column takes the larger share
	leftWidth := int(float64(width) * 0.6)
	rightWidth := width - leftWidth

	// Fixed-size columns so uneven content doesn't shift the split
	leftStyle := lipgloss.NewStyle().Width(leftWidth).Height(height)
	rightStyle := lipgloss.NewStyle().Width(rightWidth).Height(height)

	// Top-aligned side by side
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		leftStyle.Render(leftContent),
		rightStyle.Render(rightContent),
	)
}

// RenderWidgetBox renders content in a titled box with borders.
// Width includes the border and padding.
func RenderWidgetBox(title, content string, width int) string {
	const widthOverhead = 2 + 2*boxPadding // borders and horizontal padding

	// Bold title in the primary color
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor())
	boxStyle := BoxStyle()

	// Too-narrow widths fall back to the content's own width
	if width > widthOverhead {
		boxStyle = boxStyle.Width(width - widthOverhead)
	}

	// Title line, then content, inside the box
	return boxStyle.Render(titleStyle.Render(title) + "\n" + content)
}
