package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/tracker-engine/internal/events"
	"github.com/jwebster45206/tracker-engine/internal/handlers"
	"github.com/jwebster45206/tracker-engine/pkg/access"
	"github.com/jwebster45206/tracker-engine/pkg/engine"
	"github.com/jwebster45206/tracker-engine/pkg/location"
	"github.com/jwebster45206/tracker-engine/pkg/snapshot"
)

const PlaceHolderText = "item hookshot 1, collect links_house chest, /help..."

// newTrackerChoice is the first picker row.
const newTrackerChoice = "+ New tracker"

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config          *ConsoleConfig
	api             *apiClient
	tracker         *handlers.TrackerResponse
	locationsView   viewport.Model
	inventoryView   viewport.Model
	textarea        textarea.Model
	ready           bool
	width           int
	height          int
	err             error
	status          string
	loading         bool
	expandLocations bool

	// Tracker selection state
	showPicker     bool
	choices        []string
	selectedChoice int
	loadingChoices bool

	// Quit confirmation state
	showQuitModal bool

	events chan events.Event
	cancel context.CancelFunc
}

type trackersLoadedMsg struct {
	ids []uuid.UUID
	err error
}

type trackerMsg struct {
	tracker *handlers.TrackerResponse
	err     error
}

type mutationMsg struct {
	resp *handlers.MutationResponse
	err  error
}

type statusMsg struct {
	text string
	err  error
}

type trackerEventMsg struct {
	event events.Event
	ok    bool
}

var (
	locationsPanelStyle = lipgloss.NewStyle().
				PaddingTop(1).
				PaddingLeft(2)

	inventoryPanelStyle = lipgloss.NewStyle().
				PaddingTop(1).
				PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	modalSelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

// levelStyles colors locations the way map trackers do.
var levelStyles = map[access.Level]lipgloss.Style{
	access.None:          lipgloss.NewStyle().Foreground(lipgloss.Color("196")), // red
	access.Partial:       lipgloss.NewStyle().Foreground(lipgloss.Color("214")), // yellow
	access.Inspect:       lipgloss.NewStyle().Foreground(lipgloss.Color("39")),  // teal
	access.SequenceBreak: lipgloss.NewStyle().Foreground(lipgloss.Color("135")), // purple
	access.Normal:        lipgloss.NewStyle().Foreground(lipgloss.Color("86")),  // green
	access.Cleared:       lipgloss.NewStyle().Foreground(lipgloss.Color("240")), // grey
}

func NewConsoleUI(cfg *ConsoleConfig, api *apiClient) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 200
	ta.SetWidth(50)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false

	locVp := viewport.New(50, 20)
	locVp.MouseWheelEnabled = true

	invVp := viewport.New(20, 20)
	invVp.MouseWheelEnabled = true

	return ConsoleUI{
		config:         cfg,
		api:            api,
		textarea:       ta,
		locationsView:  locVp,
		inventoryView:  invVp,
		showPicker:     true,
		loadingChoices: true,
		events:         make(chan events.Event, 16),
	}
}

func renderLevel(l access.Level, text string) string {
	style, ok := levelStyles[l]
	if !ok {
		return text
	}
	return style.Render(text)
}

// writeLocations lists every location with its counts. Expanded mode also
// shows sections with their markings and prizes.
func writeLocations(locs []location.Summary, width int, expand bool) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("LOCATIONS") + "\n\n")
	for _, loc := range locs {
		line := fmt.Sprintf("%-30s %3d/%-3d %s", loc.Name, loc.Available, loc.Total, loc.Level)
		content.WriteString(renderLevel(loc.Level, line) + "\n")
		if !expand {
			continue
		}
		for _, s := range loc.Sections {
			detail := fmt.Sprintf("    %-26s %3d/%-3d %s", s.Name, s.Available, s.Total, s.Level)
			if s.Prize != "" {
				detail += " [" + string(s.Prize) + "]"
			}
			content.WriteString(renderLevel(s.Level, detail) + "\n")
			if s.Marking != "" {
				content.WriteString(promptStyle.Render(wordwrap.String("      "+s.Marking, width)) + "\n")
			}
		}
	}
	return content.String()
}

func writeInventory(tr *handlers.TrackerResponse) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("TRACKER") + "\n\n")
	content.WriteString("ID:\n" + tr.ID.String()[:8] + "...\n\n")
	content.WriteString("World:\n" + tr.World + "\n\n")

	content.WriteString("Items:\n")
	for _, it := range tr.Items {
		if it.Count == 0 {
			content.WriteString(promptStyle.Render(fmt.Sprintf("• %s", it.Name)) + "\n")
			continue
		}
		if it.Max > 1 {
			content.WriteString(fmt.Sprintf("• %s %d/%d\n", it.Name, it.Count, it.Max))
		} else {
			content.WriteString(fmt.Sprintf("• %s\n", it.Name))
		}
	}

	if len(tr.Settings) > 0 {
		content.WriteString("\nSettings:\n")
		for _, s := range tr.Settings {
			content.WriteString(fmt.Sprintf("• %s: %s\n", s.Name, s.Value))
		}
	}
	if len(tr.SequenceBreaks) > 0 {
		content.WriteString("\nSequence breaks:\n")
		for _, b := range tr.SequenceBreaks {
			mark := "off"
			if b.Enabled {
				mark = "on"
			}
			content.WriteString(fmt.Sprintf("• %s: %s\n", b.Name, mark))
		}
	}

	content.WriteString("\nKeys:\n")
	content.WriteString("• Ctrl+C: Quit\n")
	content.WriteString("• Tab: Sections\n")
	content.WriteString("• /help: Commands\n")
	return content.String()
}

func (m *ConsoleUI) layout() {
	locWidth := int(float64(m.width)*0.65) - 2
	invWidth := m.width - locWidth - 4
	m.locationsView.Width = locWidth - 2
	m.locationsView.Height = m.height - 6
	m.inventoryView.Width = invWidth
	m.inventoryView.Height = m.height - 2
	m.textarea.SetWidth(locWidth - 4)
}

func (m *ConsoleUI) render() {
	if m.tracker == nil {
		return
	}
	m.locationsView.SetContent(writeLocations(m.tracker.Locations, m.locationsView.Width-4, m.expandLocations))
	m.inventoryView.SetContent(writeInventory(m.tracker))
}

func (m ConsoleUI) Init() tea.Cmd {
	return m.loadTrackers()
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}
	if m.showPicker {
		return m.updatePicker(msg)
	}

	var (
		tiCmd tea.Cmd
		lvCmd tea.Cmd
		ivCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.locationsView, lvCmd = m.locationsView.Update(msg)
		m.inventoryView, ivCmd = m.inventoryView.Update(msg)
		return m, tea.Batch(lvCmd, ivCmd)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		m.render()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyTab:
			m.expandLocations = !m.expandLocations
			m.render()
			return m, nil
		case tea.KeyEnter:
			if m.loading {
				return m, nil
			}
			input := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if input == "" {
				return m, nil
			}
			if strings.HasPrefix(input, "/") {
				return m.handleCommand(input)
			}
			mut, err := parseCommand(input)
			if err != nil {
				m.err, m.status = err, ""
				return m, nil
			}
			m.loading = true
			return m, m.apply(mut)
		}

	case mutationMsg:
		m.loading = false
		if msg.err != nil {
			m.err, m.status = msg.err, ""
			return m, nil
		}
		m.err = nil
		if msg.resp.Change != nil && msg.resp.Change.Empty() {
			m.status = "No change."
		} else {
			m.status = "OK."
		}
		return m, m.refreshTracker()

	case trackerMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.tracker = msg.tracker
		m.render()

	case trackerEventMsg:
		if !msg.ok {
			m.status = "Live updates disconnected."
			return m, nil
		}
		switch msg.event.Type {
		case events.EventTypeTrackerDeleted:
			m.err = fmt.Errorf("tracker was deleted")
			return m, nil
		case events.EventTypeMutationFailed:
			m.err = fmt.Errorf("queued mutation failed: %s", msg.event.Error)
			return m, m.waitForEvent()
		}
		return m, tea.Batch(m.refreshTracker(), m.waitForEvent())

	case statusMsg:
		m.err, m.status = msg.err, msg.text
		if msg.err == nil {
			return m, m.refreshTracker()
		}
		return m, nil
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.locationsView, lvCmd = m.locationsView.Update(msg)
	m.inventoryView, ivCmd = m.inventoryView.Update(msg)

	return m, tea.Batch(tiCmd, lvCmd, ivCmd)
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	cmd := strings.ToLower(strings.TrimSpace(input))

	switch cmd {
	case "/help":
		m.err = nil
		m.status = commandHelp
	case "/copy":
		if err := clipboard.WriteAll(m.tracker.ID.String()); err != nil {
			m.err = fmt.Errorf("clipboard: %w", err)
			return m, nil
		}
		m.err, m.status = nil, "Tracker ID copied to clipboard."
	case "/snapshot":
		return m, m.copySnapshot()
	case "/paste":
		return m, m.pasteSnapshot()
	default:
		m.err = fmt.Errorf("unknown command %s", cmd)
	}
	return m, nil
}

func (m ConsoleUI) apply(mut engine.Mutation) tea.Cmd {
	id := m.tracker.ID
	return func() tea.Msg {
		resp, err := m.api.applyMutation(id, mut)
		return mutationMsg{resp, err}
	}
}

func (m ConsoleUI) refreshTracker() tea.Cmd {
	id := m.tracker.ID
	return func() tea.Msg {
		tr, err := m.api.getTracker(id)
		return trackerMsg{tr, err}
	}
}

func (m ConsoleUI) copySnapshot() tea.Cmd {
	id := m.tracker.ID
	return func() tea.Msg {
		snap, err := m.api.getSnapshot(id)
		if err != nil {
			return statusMsg{err: err}
		}
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return statusMsg{err: err}
		}
		if err := clipboard.WriteAll(string(data)); err != nil {
			return statusMsg{err: fmt.Errorf("clipboard: %w", err)}
		}
		return statusMsg{text: "Snapshot copied to clipboard."}
	}
}

func (m ConsoleUI) pasteSnapshot() tea.Cmd {
	id := m.tracker.ID
	return func() tea.Msg {
		text, err := clipboard.ReadAll()
		if err != nil {
			return statusMsg{err: fmt.Errorf("clipboard: %w", err)}
		}
		var snap snapshot.Snapshot
		if err := json.Unmarshal([]byte(text), &snap); err != nil {
			return statusMsg{err: fmt.Errorf("clipboard does not hold a snapshot: %w", err)}
		}
		if err := m.api.putSnapshot(id, &snap); err != nil {
			return statusMsg{err: err}
		}
		return statusMsg{text: "Snapshot restored."}
	}
}

func (m ConsoleUI) loadTrackers() tea.Cmd {
	return func() tea.Msg {
		ids, err := m.api.listTrackers()
		return trackersLoadedMsg{ids, err}
	}
}

func (m ConsoleUI) openTracker(choice string) tea.Cmd {
	world := m.config.World
	return func() tea.Msg {
		id, err := uuid.Parse(choice)
		if choice == newTrackerChoice {
			id, err = m.api.createTracker(world)
		}
		if err != nil {
			return trackerMsg{err: err}
		}
		tr, err := m.api.getTracker(id)
		return trackerMsg{tr, err}
	}
}

// listen starts the SSE reader for the open tracker. The channel is closed
// when the stream ends.
func (m *ConsoleUI) listen() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	id, ch := m.tracker.ID, m.events
	go func() {
		defer close(ch)
		_ = m.api.listenToSSE(ctx, id, ch)
	}()
}

func (m ConsoleUI) waitForEvent() tea.Cmd {
	ch := m.events
	return func() tea.Msg {
		ev, ok := <-ch
		return trackerEventMsg{ev, ok}
	}
}

func (m ConsoleUI) updatePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case trackersLoadedMsg:
		m.loadingChoices = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.choices = []string{newTrackerChoice}
		for _, id := range msg.ids {
			m.choices = append(m.choices, id.String())
		}

	case trackerMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.tracker = msg.tracker
		m.showPicker = false
		if m.width > 0 && m.height > 0 {
			m.layout()
		}
		m.render()
		m.listen()
		m.textarea.Focus()
		m.ready = true
		return m, tea.Batch(textarea.Blink, m.waitForEvent())

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		}
		if m.loadingChoices || m.loading || m.err != nil {
			return m, nil
		}
		switch msg.Type {
		case tea.KeyUp:
			if m.selectedChoice > 0 {
				m.selectedChoice--
			}
		case tea.KeyDown:
			if m.selectedChoice < len(m.choices)-1 {
				m.selectedChoice++
			}
		case tea.KeyEnter:
			if len(m.choices) > 0 {
				m.loading = true
				return m, m.openTracker(m.choices[m.selectedChoice])
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyEnter:
			return m.quit()
		default:
			switch msg.String() {
			case "y", "Y":
				return m.quit()
			case "n", "N":
				m.showQuitModal = false
				if m.showPicker {
					return m, nil
				}
				m.textarea.Focus()
				return m, textarea.Blink
			}
		}
	}

	return m, nil
}

func (m ConsoleUI) quit() (tea.Model, tea.Cmd) {
	if m.cancel != nil {
		m.cancel()
	}
	return m, tea.Quit
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Tracker state is saved on the server.")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderPicker() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder

	switch {
	case m.loadingChoices:
		content.WriteString(modalTitleStyle.Render("Loading Trackers..."))
	case m.err != nil:
		content.WriteString(modalTitleStyle.Render("Error"))
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render(wordwrap.String(m.err.Error(), 54)))
		content.WriteString("\n\n")
		content.WriteString("Press Ctrl+C to exit")
	case m.loading:
		content.WriteString(modalTitleStyle.Render("Opening Tracker..."))
		content.WriteString("\n\n")
		content.WriteString(loadingStyle.Render("Computing reachability..."))
	default:
		content.WriteString(modalTitleStyle.Render("Select a Tracker"))
		content.WriteString("\n\n")
		for i, choice := range m.choices {
			if i == m.selectedChoice {
				content.WriteString(modalSelectedItemStyle.Render("▶ " + choice))
			} else {
				content.WriteString(modalItemStyle.Render("  " + choice))
			}
			content.WriteString("\n")
		}
		content.WriteString("\n")
		content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Ctrl+C to exit"))
	}

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderStatus(width int) string {
	switch {
	case m.err != nil:
		return errorStyle.Render(wordwrap.String("Error: "+m.err.Error(), width))
	case m.loading:
		return loadingStyle.Render("Applying...")
	default:
		return promptStyle.Render(wordwrap.String(m.status, width))
	}
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if m.showPicker {
		return m.renderPicker()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	locWidth := int(float64(m.width)*0.65) - 2
	invWidth := m.width - locWidth - 4

	status := m.renderStatus(locWidth - 4)
	vp := m.locationsView
	// The status line grows for /help; give it room.
	vp.Height = max(3, m.locationsView.Height-strings.Count(status, "\n"))

	left := locationsPanelStyle.Width(locWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			vp.View(),
			separatorStyle.Render(strings.Repeat("─", max(1, locWidth-4))),
			status,
			m.textarea.View(),
		),
	)
	right := inventoryPanelStyle.Width(invWidth).Render(m.inventoryView.View())

	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}
