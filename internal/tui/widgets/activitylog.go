package widgets

import "github.com/joe/peersync/internal/tui/shared"

const maxActivityEntries = 10

// NewActivityLogWidget creates a widget that shows the most recent activity
// entries, oldest first.
func NewActivityLogWidget(getActivities func() []string) func() string {
	return func() string {
		activities := getActivities()
		if len(activities) == 0 {
			return shared.RenderDim("No activity yet")
		}

		return shared.RenderActivityLog("", activities, maxActivityEntries)
	}
}
