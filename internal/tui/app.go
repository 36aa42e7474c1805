// Package tui is the terminal monitor for a running sync node. It shows each
// folder's files, transfers and peers as the engine reports them, and lets
// the user pause and resume folders.
package tui

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/joe/peersync/internal/syncengine"
	"github.com/joe/peersync/internal/tui/shared"
	"github.com/joe/peersync/internal/tui/widgets"
)

const (
	maxErrors        = 20
	defaultWidth     = 100
	activityTimeForm = "15:04:05"
)

// FolderController is the part of the engine the monitor drives.
type FolderController interface {
	Folders() []syncengine.Folder
	SetPaused(id string, paused bool) (syncengine.Folder, error)
}

// AppModel is the monitor's bubble tea model.
type AppModel struct {
	controller  FolderController
	bridge      *shared.EventBridge
	header      string
	folders     []syncengine.Folder
	selected    int
	activity    []string
	errors      []syncengine.ErrorOccurred
	progressBar progress.Model
	now         func() time.Time
	width       int
	height      int
	seenDropped int
	quitting    bool
}

// NewAppModel creates the monitor. header is shown under the title, e.g.
// the local device name.
func NewAppModel(controller FolderController, bridge *shared.EventBridge, header string) AppModel {
	return AppModel{
		controller:  controller,
		bridge:      bridge,
		header:      header,
		folders:     controller.Folders(),
		progressBar: shared.NewProgressModel(shared.ProgressBarWidth),
		now:         time.Now,
		width:       defaultWidth,
	}
}

// Activity returns the activity log, oldest first.
func (a AppModel) Activity() []string {
	return slices.Clone(a.activity)
}

// Errors returns the errors reported so far, oldest first.
func (a AppModel) Errors() []syncengine.ErrorOccurred {
	return slices.Clone(a.errors)
}

// Folders returns the folders as last reported.
func (a AppModel) Folders() []syncengine.Folder {
	return slices.Clone(a.folders)
}

// Init implements tea.Model
func (a AppModel) Init() tea.Cmd {
	return tea.Batch(a.bridge.ListenCmd(), shared.TickCmd())
}

// Selected returns the folder shown in detail, if any.
func (a AppModel) Selected() (syncengine.Folder, bool) {
	if a.selected < 0 || a.selected >= len(a.folders) {
		return syncengine.Folder{}, false
	}

	return a.folders[a.selected], true
}

// Update implements tea.Model
func (a AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

		return a, nil
	case tea.KeyMsg:
		return a.handleKey(msg)
	case shared.EngineEventMsg:
		a.applyEvent(msg.Event)

		return a, a.bridge.ListenCmd()
	case shared.PauseToggledMsg:
		if msg.Err != nil {
			a.log("%s pause failed: %v", shared.ErrorSymbol(), msg.Err)
			return a, nil
		}

		a.upsert(msg.Folder)

		return a, nil
	case shared.TickMsg:
		a.refresh()

		return a, shared.TickCmd()
	}

	return a, nil
}

// View implements tea.Model
func (a AppModel) View() string {
	if a.quitting {
		return ""
	}

	var builder strings.Builder

	builder.WriteString(shared.RenderTitle("peersync"))
	builder.WriteString("\n")

	if a.header != "" {
		builder.WriteString(shared.RenderSubtitle(a.header))
		builder.WriteString("\n")
	}

	folder, ok := a.Selected()
	if !ok {
		builder.WriteString(shared.RenderDim("No folders yet. Waiting for a peer to share one."))
		builder.WriteString("\n\n")
		builder.WriteString(a.helpLine())

		return builder.String()
	}

	builder.WriteString(a.renderTabs())
	builder.WriteString("\n\n")
	builder.WriteString(a.renderFolder(folder))

	if errs := shared.RenderErrorList(shared.ErrorListConfig{Errors: a.errors, MaxWidth: a.width - 8}); errs != "" {
		builder.WriteString("\n")
		builder.WriteString(shared.RenderError("Errors"))
		builder.WriteString("\n")
		builder.WriteString(errs)
	}

	builder.WriteString("\n")
	builder.WriteString(a.helpLine())

	return builder.String()
}

//nolint:cyclop // One case per engine event
func (a *AppModel) applyEvent(event syncengine.Event) {
	switch event := event.(type) {
	case syncengine.FolderUpdated:
		a.upsert(event.Folder)
	case syncengine.FolderRemoved:
		a.remove(event.FolderID)
	case syncengine.PeerStatusChanged:
		a.log("%s %s", event.Peer.Name, strings.ToLower(event.Peer.Status.String()))
	case syncengine.TransferStarted:
		verb, symbol := "sending", shared.UploadSymbol()
		if event.Direction == syncengine.Download {
			verb, symbol = "receiving", shared.DownloadSymbol()
		}

		a.log("%s %s %s (%s)", symbol, verb, event.FileName, shared.FormatBytes(event.Size))
	case syncengine.TransferProgress:
		a.applyProgress(event)
	case syncengine.TransferComplete:
		verb := "sent"
		if event.Direction == syncengine.Download {
			verb = "received"
		}

		a.log("%s %s %s", shared.SuccessSymbol(), verb, event.FileName)
	case syncengine.ErrorOccurred:
		a.errors = append(a.errors, event)
		if len(a.errors) > maxErrors {
			a.errors = slices.Clone(a.errors[len(a.errors)-maxErrors:])
		}

		a.log("%s %v", shared.ErrorSymbol(), event.Err)
	}
}

// applyProgress updates the cached snapshot between FolderUpdated events.
func (a *AppModel) applyProgress(event syncengine.TransferProgress) {
	idx := a.index(event.FolderID)
	if idx < 0 {
		return
	}

	folder := a.folders[idx]
	if _, active := folder.SyncProgress[event.FileName]; !active {
		return
	}

	// Snapshots are shared with earlier models, so nothing is changed in place.
	updated := maps.Clone(folder.SyncProgress)
	updated[event.FileName] = event.Progress
	folder.SyncProgress = updated

	a.folders = slices.Clone(a.folders)
	a.folders[idx] = folder
}

func (a AppModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case shared.KeyCtrlC, shared.KeyQuit:
		a.quitting = true

		return a, tea.Quit
	case shared.KeyNext:
		if len(a.folders) > 0 {
			a.selected = (a.selected + 1) % len(a.folders)
		}

		return a, nil
	case shared.KeyPrev:
		if len(a.folders) > 0 {
			a.selected = (a.selected - 1 + len(a.folders)) % len(a.folders)
		}

		return a, nil
	case shared.KeyPause:
		folder, ok := a.Selected()
		if !ok {
			return a, nil
		}

		return a, a.togglePauseCmd(folder)
	}

	return a, nil
}

func (a AppModel) helpLine() string {
	return shared.RenderDim("p pause/resume · tab next folder · q quit")
}

func (a AppModel) index(folderID string) int {
	return slices.IndexFunc(a.folders, func(f syncengine.Folder) bool { return f.ID == folderID })
}

func (a *AppModel) log(format string, args ...any) {
	entry := a.now().Format(activityTimeForm) + " " + fmt.Sprintf(format, args...)
	a.activity = shared.AppendActivity(a.activity, entry)
}

// refresh reloads folders from the engine in case events were dropped.
func (a *AppModel) refresh() {
	dropped := a.bridge.Dropped()
	if dropped == a.seenDropped {
		return
	}

	a.seenDropped = dropped

	selectedID := ""
	if folder, ok := a.Selected(); ok {
		selectedID = folder.ID
	}

	a.folders = a.controller.Folders()
	a.selected = max(a.index(selectedID), 0)
}

func (a *AppModel) remove(folderID string) {
	idx := a.index(folderID)
	if idx < 0 {
		return
	}

	a.log("folder %s removed", a.folders[idx].Name)
	a.folders = slices.Delete(slices.Clone(a.folders), idx, idx+1)

	if a.selected >= len(a.folders) {
		a.selected = max(len(a.folders)-1, 0)
	}
}

func (a AppModel) renderFolder(folder syncengine.Folder) string {
	getFolder := func() *syncengine.Folder { return &folder }
	leftWidth := a.width * 3 / 5 //nolint:mnd // 60-40 split
	rightWidth := a.width - leftWidth

	var summary strings.Builder

	summary.WriteString(shared.RenderFolderStatus(folder.Status))
	summary.WriteString("\n")
	summary.WriteString(shared.RenderDim(folder.Location))
	summary.WriteString("\n\n")
	summary.WriteString(shared.RenderProgress(a.progressBar, folder.Metrics.OverallPercent/shared.ProgressPercentageScale))
	summary.WriteString("\n")
	summary.WriteString(widgets.NewProgressWidget(getFolder)())

	left := shared.RenderWidgetBox("Files", widgets.NewFileListWidget(getFolder)(), leftWidth)
	right := strings.Join([]string{
		shared.RenderWidgetBox(folder.Name, summary.String(), rightWidth),
		shared.RenderWidgetBox("Peers", widgets.NewPeersWidget(getFolder)(), rightWidth),
		shared.RenderWidgetBox("Activity", widgets.NewActivityLogWidget(a.Activity)(), rightWidth),
	}, "\n")

	return shared.RenderTwoColumnLayout(left, right, a.width, 0)
}

func (a AppModel) renderTabs() string {
	tabs := make([]string, 0, len(a.folders))

	for i, folder := range a.folders {
		label := folder.Name
		if folder.Paused {
			label += " " + shared.PausedSymbol()
		}

		if i == a.selected {
			tabs = append(tabs, shared.RenderLabel("["+label+"]"))
		} else {
			tabs = append(tabs, shared.RenderDim(" "+label+" "))
		}
	}

	return strings.Join(tabs, " ")
}

func (a AppModel) togglePauseCmd(folder syncengine.Folder) tea.Cmd {
	controller := a.controller

	return func() tea.Msg {
		updated, err := controller.SetPaused(folder.ID, !folder.Paused)

		return shared.PauseToggledMsg{Folder: updated, Err: err}
	}
}

func (a *AppModel) upsert(folder syncengine.Folder) {
	if idx := a.index(folder.ID); idx >= 0 {
		a.folders = slices.Clone(a.folders)
		a.folders[idx] = folder

		return
	}

	a.folders = append(a.folders, folder)
	a.log("folder %s added", folder.Name)
}
