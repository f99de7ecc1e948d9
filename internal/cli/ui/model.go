// Package ui renders live stage progress for `honestroles run` with bubbletea.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hypertrial/honestroles-sub000/internal/cli/hooks"
	"github.com/hypertrial/honestroles-sub000/pkg/pipeline"
)

const listHeightMargin = 4

const (
	phaseInitializing = "Initializing..."
	phaseRunning      = "Running..."
	phaseComplete     = "Complete"
)

// statusRunning marks a stage that has started but not completed. It never
// reaches the pipeline.
const statusRunning pipeline.StageStatus = "running"

// Model is the bubbletea model of one run: one list row per stage.
type Model struct {
	list    list.Model
	spinner spinner.Model

	width, height int
	initialized   bool
	quitting      bool

	version      string
	phaseMessage string
	inputPath    string
	inputRows    int
	stageItems   []stageItem
	itemIndex    map[string]int
	summary      Summary
}

// Summary is the footer tally.
type Summary struct {
	FinalRows      int
	NonFatalErrors int
	PluginRuns     int
	PluginFailures int
	StartTime      time.Time
}

type stageItem struct {
	name           string
	status         pipeline.StageStatus
	rows           int
	duration       time.Duration
	plugins        int
	pluginFailures int
}

// NewModel returns a model with one pending row per stage name.
func NewModel(version string, stageNames []string) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorStatusRunning)

	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(0)
	delegate.ShowDescription = true
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorSelectedFg).
		Background(ColorSelectedBg).
		Bold(true).
		Padding(0, 0, 0, 1)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(ColorSelectedDescFg).
		Background(ColorSelectedBg).
		Padding(0, 0, 0, 1)
	delegate.Styles.NormalTitle = delegate.Styles.NormalTitle.Foreground(ColorNormalFg).Padding(0, 0, 0, 1)
	delegate.Styles.NormalDesc = delegate.Styles.NormalDesc.Foreground(ColorNormalDescFg).Padding(0, 0, 0, 1)

	m := &Model{
		spinner:      s,
		version:      version,
		phaseMessage: phaseInitializing,
		itemIndex:    make(map[string]int, len(stageNames)),
		summary:      Summary{StartTime: time.Now()},
	}
	for i, name := range stageNames {
		m.stageItems = append(m.stageItems, stageItem{name: name})
		m.itemIndex[name] = i
	}

	l := list.New(m.listItems(), delegate, 0, 0)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowTitle(false)
	l.SetShowFilter(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	m.list = l
	return m
}

// Init starts the spinner.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update folds hook messages and terminal events into the model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(m.width, max(m.height-listHeightMargin, 1))
		m.initialized = true

	case tea.KeyMsg:
		if m.quitting {
			return m, nil
		}
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}
		var listCmd tea.Cmd
		m.list, listCmd = m.list.Update(msg)
		cmds = append(cmds, listCmd)

	case spinner.TickMsg:
		if m.quitting {
			return m, nil
		}
		var spinnerCmd tea.Cmd
		m.spinner, spinnerCmd = m.spinner.Update(msg)
		cmds = append(cmds, spinnerCmd)

	case hooks.RunStartMsg:
		m.inputPath, m.inputRows = msg.InputPath, msg.Rows
		m.phaseMessage = phaseRunning

	case hooks.StageStartMsg:
		if item := m.item(msg.Stage); item != nil {
			item.status = statusRunning
			item.rows = msg.Rows
			cmds = append(cmds, m.list.SetItems(m.listItems()))
		}

	case hooks.PluginCompleteMsg:
		m.summary.PluginRuns++
		failed := msg.Status != pipeline.StatusCompleted
		if failed {
			m.summary.PluginFailures++
		}
		if item := m.item(msg.Stage); item != nil {
			item.plugins++
			if failed {
				item.pluginFailures++
			}
			cmds = append(cmds, m.list.SetItems(m.listItems()))
		}

	case hooks.StageCompleteMsg:
		if item := m.item(msg.Stage); item != nil {
			item.status = msg.Status
			item.rows = msg.Rows
			item.duration = msg.Duration
			cmds = append(cmds, m.list.SetItems(m.listItems()))
		}

	case hooks.RunCompleteMsg:
		m.phaseMessage = phaseComplete
		m.summary.FinalRows = msg.Diagnostics.FinalRows
		m.summary.NonFatalErrors = len(msg.Diagnostics.NonFatalErrors)
	}

	return m, tea.Batch(cmds...)
}

// View renders header, stage list and footer.
func (m *Model) View() string {
	if m.quitting {
		return "Exiting...\n"
	}
	if !m.initialized {
		return phaseInitializing
	}

	headerLeft := fmt.Sprintf("honestroles %s", m.version)
	if m.inputPath != "" {
		headerLeft += fmt.Sprintf(" | %s (%d rows)", m.inputPath, m.inputRows)
	}
	headerRight := m.phaseMessage
	if m.phaseMessage == phaseRunning {
		headerRight = m.spinner.View() + " " + m.phaseMessage
	}
	header := HeaderStyle.Width(m.width).Render(spread(m.width, headerLeft, headerRight, lipgloss.Top))

	elapsed := time.Since(m.summary.StartTime).Round(time.Millisecond)
	footerLeft := fmt.Sprintf("Plugins: %d (failed: %d) | Elapsed: %s",
		m.summary.PluginRuns, m.summary.PluginFailures, elapsed)
	if m.phaseMessage == phaseComplete {
		footerLeft = fmt.Sprintf("Final rows: %d | Non-fatal errors: %d | %s",
			m.summary.FinalRows, m.summary.NonFatalErrors, footerLeft)
	}
	footer := FooterStyle.Width(m.width).Render(spread(m.width, footerLeft, "q: quit", lipgloss.Bottom))

	return lipgloss.JoinVertical(lipgloss.Left, header, m.list.View(), footer)
}

func spread(width int, left, right string, pos lipgloss.Position) string {
	center := ""
	if gap := width - lipgloss.Width(left) - lipgloss.Width(right); gap > 0 {
		center = lipgloss.PlaceHorizontal(gap, lipgloss.Center, " ")
	}
	return lipgloss.JoinHorizontal(pos, left, center, right)
}

func (m *Model) item(stage string) *stageItem {
	i, ok := m.itemIndex[stage]
	if !ok {
		return nil
	}
	return &m.stageItems[i]
}

func (m *Model) listItems() []list.Item {
	items := make([]list.Item, len(m.stageItems))
	for i, it := range m.stageItems {
		items[i] = it
	}
	return items
}

// --- list.Item ---

func (i stageItem) FilterValue() string { return i.name }

func (i stageItem) Title() string { return i.name }

func (i stageItem) Description() string {
	var style lipgloss.Style
	icon := " "
	switch i.status {
	case pipeline.StatusCompleted:
		style, icon = StatusStyleCompleted, "✓"
	case pipeline.StatusFailed:
		style, icon = StatusStyleFailed, "!"
	case pipeline.StatusAborted:
		style, icon = StatusStyleFailed, "✗"
	case pipeline.StatusSkipped:
		style, icon = StatusStyleSkipped, "S"
	case statusRunning:
		style, icon = StatusStyleRunning, "…"
	default:
		style = StatusStylePending
	}

	var details []string
	if i.status != "" && i.status != pipeline.StatusSkipped {
		details = append(details, fmt.Sprintf("%d rows", i.rows))
	}
	if i.plugins > 0 {
		p := fmt.Sprintf("%d plugins", i.plugins)
		if i.pluginFailures > 0 {
			p += fmt.Sprintf(" (%d failed)", i.pluginFailures)
		}
		details = append(details, p)
	}
	if d := formatDuration(i.duration); d != "" {
		details = append(details, d)
	}
	return strings.TrimSpace(style.Render("["+icon+"]") + " " + strings.Join(details, ", "))
}

func formatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return ""
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

// --- Styles ---

const (
	ColorHeaderFg = lipgloss.Color("252")
	ColorHeaderBg = lipgloss.Color("62")

	ColorFooterFg = lipgloss.Color("252")
	ColorFooterBg = lipgloss.Color("56")

	ColorNormalFg     = lipgloss.Color("250")
	ColorNormalDescFg = lipgloss.Color("244")

	ColorSelectedFg     = lipgloss.Color("255")
	ColorSelectedBg     = lipgloss.Color("56")
	ColorSelectedDescFg = lipgloss.Color("248")

	ColorStatusCompleted = lipgloss.Color("40")
	ColorStatusFailed    = lipgloss.Color("196")
	ColorStatusSkipped   = lipgloss.Color("214")
	ColorStatusPending   = lipgloss.Color("244")
	ColorStatusRunning   = lipgloss.Color("205")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorHeaderFg).
			Background(ColorHeaderBg).
			Padding(0, 1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorFooterFg).
			Background(ColorFooterBg).
			Padding(0, 1)

	StatusStyleCompleted = lipgloss.NewStyle().Foreground(ColorStatusCompleted)
	StatusStyleFailed    = lipgloss.NewStyle().Foreground(ColorStatusFailed)
	StatusStyleSkipped   = lipgloss.NewStyle().Foreground(ColorStatusSkipped)
	StatusStylePending   = lipgloss.NewStyle().Foreground(ColorStatusPending)
	StatusStyleRunning   = lipgloss.NewStyle().Foreground(ColorStatusRunning)
)
