package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/handiism/gofile-downloader/internal/common"
	"github.com/handiism/gofile-downloader/internal/download"
	"github.com/handiism/gofile-downloader/internal/task"
)

type fakeDownloads struct {
	started   []download.StartRequest
	startErr  error
	snapshot  task.Snapshot
	paused    bool
	cancelled []string
}

func (f *fakeDownloads) NewRequest() download.StartRequest {
	return download.StartRequest{Retries: 5, Incremental: true}
}

func (f *fakeDownloads) Start(_ context.Context, req download.StartRequest) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, req)
	return "t1", nil
}

func (f *fakeDownloads) Task(id string) (task.Snapshot, error) {
	if id != "t1" {
		return task.Snapshot{}, common.ErrTaskNotFound
	}
	return f.snapshot, nil
}

func (f *fakeDownloads) TogglePause(string) (bool, task.Status, error) {
	f.paused = !f.paused
	if f.paused {
		return true, task.StatusPaused, nil
	}
	return false, task.StatusRunning, nil
}

func (f *fakeDownloads) Cancel(id string) error {
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeDownloads) BaseDir() string { return "/dl" }

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

// collect runs cmd and the commands of any batch it returns.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var msgs []tea.Msg
	for _, c := range batch {
		msgs = append(msgs, collect(c)...)
	}
	return msgs
}

func startDownload(t *testing.T, fake *fakeDownloads) Model {
	t.Helper()
	m := NewModel(context.Background(), fake, nil)
	m = typeText(t, m, "https://gofile.io/d/abc")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = typeText(t, m, "secret")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = typeText(t, m, "shows")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, StateStarting, m.state)
	require.NotNil(t, cmd)

	m, _ = update(t, m, StartedMsg{TaskID: "t1"})
	require.Equal(t, StateDownloading, m.state)
	return m
}

func TestModel_StartBuildsRequest(t *testing.T) {
	fake := &fakeDownloads{}
	m := NewModel(context.Background(), fake, nil)
	require.True(t, m.incremental)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	require.False(t, m.incremental)

	m = typeText(t, m, "https://gofile.io/d/abc")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = typeText(t, m, "pw")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = typeText(t, m, "shows")

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.Contains(t, collect(cmd), StartedMsg{TaskID: "t1"})

	require.Len(t, fake.started, 1)
	require.Equal(t, "https://gofile.io/d/abc", fake.started[0].URL)
	require.Equal(t, "pw", fake.started[0].Password)
	require.Equal(t, "shows", fake.started[0].Directory)
	require.False(t, fake.started[0].Incremental)
	require.Equal(t, 5, fake.started[0].Retries)
}

func TestModel_EmptyURLIsIgnored(t *testing.T) {
	m := NewModel(context.Background(), &fakeDownloads{}, nil)
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, StateInput, m.state)
	require.Nil(t, cmd)
}

func TestModel_StartError(t *testing.T) {
	fake := &fakeDownloads{startErr: common.ErrInvalidURL}
	m := NewModel(context.Background(), fake, nil)
	m, _ = update(t, m, StartedMsg{Err: fake.startErr})
	require.Equal(t, StateError, m.state)
	require.Contains(t, m.View(), common.ErrInvalidURL.Error())
}

func TestModel_PollsUntilComplete(t *testing.T) {
	fake := &fakeDownloads{snapshot: task.Snapshot{
		ID:              "t1",
		Name:            "Show",
		Status:          task.StatusRunning,
		OverallProgress: 25,
		TotalBytes:      4000,
		DoneBytes:       1000,
		ETA:             "3s",
		Files: []task.FileSnapshot{
			{File: "Show/A.bin", Status: task.FileCompleted, Progress: 100, Size: 1000, Bytes: 1000},
			{File: "Show/B.bin", Status: task.FileDownloading, Progress: 10, Size: 3000, Bytes: 300},
		},
	}}
	m := startDownload(t, fake)

	m, cmd := update(t, m, TickMsg{})
	require.Equal(t, StateDownloading, m.state)
	require.NotNil(t, cmd)
	view := m.View()
	require.Contains(t, view, "Show")
	require.Contains(t, view, "1/2 files")
	require.Contains(t, view, "ETA 3s")
	require.Contains(t, view, "Show/B.bin")

	fake.snapshot.Status = task.StatusCompleted
	fake.snapshot.OverallProgress = 100
	fake.snapshot.Files[1].Status = task.FileFailed
	m, _ = update(t, m, TickMsg{})
	require.Equal(t, StateComplete, m.state)
	require.Contains(t, m.View(), "1 files failed")
}

func TestModel_ErrorAndCancelledTasks(t *testing.T) {
	fake := &fakeDownloads{snapshot: task.Snapshot{Status: task.StatusError, ErrorMessage: "content not found"}}
	m := startDownload(t, fake)
	m, _ = update(t, m, TickMsg{})
	require.Equal(t, StateError, m.state)
	require.EqualError(t, m.err, "content not found")

	fake = &fakeDownloads{snapshot: task.Snapshot{Status: task.StatusCancelled}}
	m = startDownload(t, fake)
	m, _ = update(t, m, TickMsg{})
	require.Equal(t, StateError, m.state)
	require.EqualError(t, m.err, "download cancelled")
}

func TestModel_Controls(t *testing.T) {
	fake := &fakeDownloads{snapshot: task.Snapshot{Status: task.StatusRunning}}
	m := startDownload(t, fake)

	m = typeText(t, m, "p")
	require.True(t, fake.paused)
	require.Equal(t, "Paused", m.logs[len(m.logs)-1].Message)

	m = typeText(t, m, "p")
	require.False(t, fake.paused)
	require.Equal(t, "Resumed", m.logs[len(m.logs)-1].Message)

	m = typeText(t, m, "c")
	require.Equal(t, []string{"t1"}, fake.cancelled)

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	require.Equal(t, []string{"t1", "t1"}, fake.cancelled)
}

func TestModel_ProgressEventsAndVerbose(t *testing.T) {
	events := make(chan download.ProgressEvent, 4)
	fake := &fakeDownloads{snapshot: task.Snapshot{Status: task.StatusRunning}}
	m := NewModel(context.Background(), fake, events)
	m.taskID = "t1"
	m.state = StateDownloading

	events <- download.ProgressEvent{TaskID: "t1", Message: "Downloaded: Show/A.bin", Level: download.LevelSuccess}
	msg := m.waitForEvent()()
	m, cmd := update(t, m, msg)
	require.NotNil(t, cmd)

	m, _ = update(t, m, ProgressMsg{TaskID: "other", Message: "ignored"})
	m, _ = update(t, m, ProgressMsg{TaskID: "t1", Message: "Skipping existing: Show/B.bin", Level: download.LevelVerbose})
	require.Len(t, m.logs, 2)

	require.Contains(t, m.renderLogs(10), "Downloaded: Show/A.bin")
	require.NotContains(t, m.renderLogs(10), "Skipping existing")
	m = typeText(t, m, "v")
	require.Contains(t, m.renderLogs(10), "Skipping existing")
}

func TestModel_ResetKeepsOptions(t *testing.T) {
	fake := &fakeDownloads{snapshot: task.Snapshot{Status: task.StatusCompleted}}
	m := startDownload(t, fake)
	m, _ = update(t, m, TickMsg{})
	require.Equal(t, StateComplete, m.state)

	m = typeText(t, m, "r")
	require.Equal(t, StateInput, m.state)
	require.Empty(t, m.taskID)
	require.Empty(t, m.inputs[fieldURL].Value())
	require.Equal(t, fieldURL, m.focus)
	require.True(t, m.incremental)
}

func TestModel_UnknownTaskShowsError(t *testing.T) {
	m := NewModel(context.Background(), &fakeDownloads{}, nil)
	m.taskID = "missing"
	m.state = StateDownloading
	m, _ = update(t, m, TickMsg{})
	require.Equal(t, StateError, m.state)
	require.True(t, errors.Is(m.err, common.ErrTaskNotFound))
}
