// Package tui provides a Bubble Tea terminal user interface for gofile-downloader.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/handiism/gofile-downloader/internal/download"
	"github.com/handiism/gofile-downloader/internal/task"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	fileStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateStarting
	StateDownloading
	StateComplete
	StateError
)

// Input fields of the start form, in focus order.
const (
	fieldURL = iota
	fieldPassword
	fieldDirectory
	fieldCount
)

// maxLogs is the number of log lines kept on screen.
const maxLogs = 100

// Downloads is what the TUI needs from the download manager.
type Downloads interface {
	NewRequest() download.StartRequest
	Start(ctx context.Context, req download.StartRequest) (string, error)
	Task(id string) (task.Snapshot, error)
	TogglePause(id string) (bool, task.Status, error)
	Cancel(id string) error
	BaseDir() string
}

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state    State
	inputs   []textinput.Model
	focus    int
	spinner  spinner.Model
	progress progress.Model
	logs     []LogEntry
	err      error

	ctx     context.Context
	manager Downloads
	events  <-chan download.ProgressEvent

	taskID   string
	snapshot task.Snapshot

	// Options
	incremental bool
	verbose     bool

	width  int
	height int
}

// NewModel creates a new TUI model. events may be nil; when set, the
// manager's progress events are read from it and shown in the log pane.
func NewModel(ctx context.Context, manager Downloads, events <-chan download.ProgressEvent) Model {
	inputs := make([]textinput.Model, fieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.CharLimit = 500
		ti.Width = 60
		inputs[i] = ti
	}
	inputs[fieldURL].Placeholder = "https://gofile.io/d/abc123"
	inputs[fieldURL].Focus()
	inputs[fieldPassword].Placeholder = "password (optional)"
	inputs[fieldPassword].EchoMode = textinput.EchoPassword
	inputs[fieldDirectory].Placeholder = "directory below " + manager.BaseDir() + " (optional)"

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	return Model{
		state:       StateInput,
		inputs:      inputs,
		spinner:     sp,
		progress:    prog,
		ctx:         ctx,
		manager:     manager,
		events:      events,
		incremental: manager.NewRequest().Incremental,
	}
}

// Messages

// ProgressMsg carries a progress event from the download manager.
type ProgressMsg download.ProgressEvent

// StartedMsg is sent when the manager accepted the download.
type StartedMsg struct {
	TaskID string
	Err    error
}

// TickMsg is sent periodically to refresh the task snapshot.
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-m.events
		if !ok {
			return nil
		}
		return ProgressMsg(event)
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.waitForEvent())
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(msg.Width-20, 80)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ProgressMsg:
		if msg.TaskID == m.taskID || m.state == StateStarting {
			m.addLog(msg.Message, msg.Level)
		}
		return m, m.waitForEvent()

	case StartedMsg:
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
			return m, nil
		}
		m.taskID = msg.TaskID
		m.state = StateDownloading
		return m, tickCmd()

	case TickMsg:
		if m.state != StateDownloading {
			return m, nil
		}
		return m, m.refresh()

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd
	}

	if m.state == StateInput {
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return m, cmd
	}

	return m, nil
}

// refresh reads the task snapshot and moves to a final state once the
// task has finished.
func (m *Model) refresh() tea.Cmd {
	snap, err := m.manager.Task(m.taskID)
	if err != nil {
		m.state = StateError
		m.err = err
		return nil
	}
	m.snapshot = snap

	cmd := m.progress.SetPercent(snap.OverallProgress / 100)
	switch snap.Status {
	case task.StatusCompleted:
		m.state = StateComplete
		return cmd
	case task.StatusError:
		m.state = StateError
		m.err = errors.New(snap.ErrorMessage)
		return cmd
	case task.StatusCancelled:
		m.state = StateError
		m.err = errors.New("download cancelled")
		return cmd
	}
	return tea.Batch(cmd, tickCmd())
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if m.state == StateDownloading {
			_ = m.manager.Cancel(m.taskID)
		}
		return m, tea.Quit
	}

	switch m.state {
	case StateInput:
		return m.handleInputKey(msg)

	case StateDownloading:
		switch msg.String() {
		case "p":
			paused, _, err := m.manager.TogglePause(m.taskID)
			if err != nil {
				m.addLog(err.Error(), download.LevelWarning)
			} else if paused {
				m.addLog("Paused", download.LevelInfo)
			} else {
				m.addLog("Resumed", download.LevelInfo)
			}
		case "c", "esc":
			if err := m.manager.Cancel(m.taskID); err != nil {
				m.addLog(err.Error(), download.LevelWarning)
			} else {
				m.addLog("Cancelling...", download.LevelWarning)
			}
		case "v":
			m.verbose = !m.verbose
		}

	case StateComplete, StateError:
		switch msg.String() {
		case "q", "esc":
			return m, tea.Quit
		case "r":
			return m.reset(), textinput.Blink
		}
	}

	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "tab", "down":
		return m, m.setFocus((m.focus + 1) % fieldCount)
	case "shift+tab", "up":
		return m, m.setFocus((m.focus + fieldCount - 1) % fieldCount)
	case "ctrl+t":
		m.incremental = !m.incremental
		return m, nil
	case "ctrl+v":
		m.verbose = !m.verbose
		return m, nil
	case "enter":
		url := strings.TrimSpace(m.inputs[fieldURL].Value())
		if url == "" {
			return m, nil
		}
		req := m.manager.NewRequest()
		req.URL = url
		req.Password = m.inputs[fieldPassword].Value()
		req.Directory = strings.TrimSpace(m.inputs[fieldDirectory].Value())
		req.Incremental = m.incremental

		m.state = StateStarting
		m.logs = nil
		return m, tea.Batch(m.spinner.Tick, m.start(req))
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) setFocus(i int) tea.Cmd {
	m.inputs[m.focus].Blur()
	m.focus = i
	return m.inputs[m.focus].Focus()
}

func (m Model) start(req download.StartRequest) tea.Cmd {
	return func() tea.Msg {
		id, err := m.manager.Start(m.ctx, req)
		return StartedMsg{TaskID: id, Err: err}
	}
}

// reset returns to the input screen, keeping the options.
func (m Model) reset() Model {
	for i := range m.inputs {
		m.inputs[i].Reset()
	}
	m.setFocus(fieldURL)
	m.state = StateInput
	m.taskID = ""
	m.snapshot = task.Snapshot{}
	m.logs = nil
	m.err = nil
	m.progress.SetPercent(0)
	return m
}

func (m *Model) addLog(message string, level download.ProgressLevel) {
	m.logs = append(m.logs, LogEntry{Message: message, Level: level})
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// View renders the UI.
func (m Model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("GoFile Downloader"))
	s.WriteString("\n")

	switch m.state {
	case StateInput:
		s.WriteString(subtitleStyle.Render("Enter a GoFile link:"))
		s.WriteString("\n\n")
		for _, in := range m.inputs {
			s.WriteString(in.View())
			s.WriteString("\n")
		}
		s.WriteString("\n")

		s.WriteString(dimStyle.Render("Options: "))
		s.WriteString(checkbox(m.incremental) + " Incremental (ctrl+t)  ")
		s.WriteString(checkbox(m.verbose) + " Verbose (ctrl+v)")
		s.WriteString("\n\n")

		s.WriteString(dimStyle.Render("tab: next field • enter: start • esc: quit"))

	case StateStarting:
		s.WriteString(m.spinner.View())
		s.WriteString(" Resolving content...\n\n")
		s.WriteString(m.renderLogs(5))

	case StateDownloading:
		s.WriteString(m.renderTask())
		s.WriteString("\n")
		s.WriteString(m.renderLogs(8))
		s.WriteString("\n")
		s.WriteString(dimStyle.Render("p: pause/resume • c: cancel • v: verbose • ctrl+c: quit"))

	case StateComplete:
		snap := m.snapshot
		s.WriteString(successStyle.Render("✨ Download complete!"))
		s.WriteString("\n\n")
		summary := fmt.Sprintf("%s\n%d files (%s) → %s",
			snap.Name, len(snap.Files), task.FormatBytes(snap.DoneBytes), snap.OutPath)
		if failed := countStatus(snap.Files, task.FileFailed); failed > 0 {
			summary += "\n" + warningStyle.Render(fmt.Sprintf("%d files failed", failed))
		}
		s.WriteString(boxStyle.Render(summary))
		s.WriteString("\n\n")
		s.WriteString(m.renderLogs(10))
		s.WriteString("\n")
		s.WriteString(dimStyle.Render("r: new download • q: quit"))

	case StateError:
		s.WriteString(errorStyle.Render("❌ Error"))
		s.WriteString("\n\n")
		if m.err != nil {
			s.WriteString(boxStyle.Render(m.err.Error()))
		}
		s.WriteString("\n\n")
		s.WriteString(m.renderLogs(10))
		s.WriteString("\n")
		s.WriteString(dimStyle.Render("r: try again • q: quit"))
	}

	return s.String()
}

func (m Model) renderTask() string {
	snap := m.snapshot
	var s strings.Builder

	name := snap.Name
	if name == "" {
		name = m.taskID
	}
	s.WriteString(fileStyle.Render("📁 " + name))
	if snap.Paused {
		s.WriteString("  " + warningStyle.Render("[paused]"))
	} else {
		s.WriteString("  " + m.spinner.View())
	}
	s.WriteString("\n\n")

	s.WriteString(m.progress.View())
	s.WriteString("\n")
	done := countStatus(snap.Files, task.FileCompleted) + countStatus(snap.Files, task.FileSkipped)
	s.WriteString(fmt.Sprintf("%s / %s • %d/%d files • %s/s • ETA %s",
		task.FormatBytes(snap.DoneBytes), task.FormatBytes(snap.TotalBytes),
		done, len(snap.Files), task.FormatBytes(int64(snap.Speed)), snap.ETA))
	s.WriteString("\n\n")

	for _, f := range snap.Files {
		if f.Status != task.FileDownloading {
			continue
		}
		s.WriteString(fmt.Sprintf("  %5.1f%% %s\n", f.Progress, f.File))
	}
	return s.String()
}

func (m Model) renderLogs(maxLines int) string {
	var lines []string

	for _, log := range m.logs {
		if log.Level == download.LevelVerbose && !m.verbose {
			continue
		}

		var style lipgloss.Style
		prefix := ""
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "✗ "
		case download.LevelWarning:
			style = warningStyle
			prefix = "⚠ "
		case download.LevelSuccess:
			style = successStyle
			prefix = "✓ "
		case download.LevelInfo:
			style = infoStyle
			prefix = "• "
		default:
			style = dimStyle
			prefix = "  "
		}

		lines = append(lines, style.Render(prefix+log.Message))
	}

	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}

	return strings.Join(lines, "\n")
}

func checkbox(checked bool) string {
	if checked {
		return "[✓]"
	}
	return "[ ]"
}

func countStatus(files []task.FileSnapshot, status task.FileStatus) int {
	n := 0
	for _, f := range files {
		if f.Status == status {
			n++
		}
	}
	return n
}

// Run starts the TUI application.
func Run(ctx context.Context, manager Downloads, events <-chan download.ProgressEvent) error {
	p := tea.NewProgram(NewModel(ctx, manager, events), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
