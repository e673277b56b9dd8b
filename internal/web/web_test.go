package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/handiism/gofile-downloader/internal/common"
	"github.com/handiism/gofile-downloader/internal/config"
	"github.com/handiism/gofile-downloader/internal/download"
	ioutils "github.com/handiism/gofile-downloader/internal/io"
	"github.com/handiism/gofile-downloader/internal/task"
)

type fakeService struct {
	started []download.StartRequest
	tasks   map[string]task.Snapshot
	paused  bool
}

func newFakeService() *fakeService {
	return &fakeService{tasks: map[string]task.Snapshot{
		"t1": {ID: "t1", Name: "Show", Status: task.StatusRunning, ETA: task.ETAUnknown, Files: []task.FileSnapshot{
			{File: "Show/A.bin", Size: 100, Progress: 50, Status: task.FileDownloading},
		}},
		"t2": {ID: "t2", Name: "Done", Status: task.StatusCompleted, OverallProgress: 100},
	}}
}

func (f *fakeService) NewRequest() download.StartRequest {
	return download.StartRequest{Retries: 5, ThrottleKBs: 0, FolderPatterns: []string{"⭐"}}
}

func (f *fakeService) Start(_ context.Context, req download.StartRequest) (string, error) {
	if req.Directory == "../etc" {
		return "", fmt.Errorf("%w: /etc", common.ErrInvalidDirectory)
	}
	f.started = append(f.started, req)
	return "new-id", nil
}

func (f *fakeService) Tasks() []task.Snapshot {
	return []task.Snapshot{f.tasks["t1"], f.tasks["t2"]}
}

func (f *fakeService) Task(id string) (task.Snapshot, error) {
	s, ok := f.tasks[id]
	if !ok {
		return task.Snapshot{}, common.ErrTaskNotFound
	}
	return s, nil
}

func (f *fakeService) TogglePause(id string) (bool, task.Status, error) {
	s, err := f.Task(id)
	if err != nil {
		return false, "", err
	}
	if s.Status.IsFinished() {
		return false, s.Status, common.ErrTaskFinished
	}
	f.paused = !f.paused
	if f.paused {
		return true, task.StatusPaused, nil
	}
	return false, task.StatusRunning, nil
}

func (f *fakeService) Cancel(id string) error {
	_, err := f.Task(id)
	return err
}

func (f *fakeService) Delete(_ context.Context, id string) (int, error) {
	s, err := f.Task(id)
	if err != nil {
		return 0, err
	}
	if !s.Status.IsFinished() {
		return 0, common.ErrTaskNotFinished
	}
	return 2, nil
}

func (f *fakeService) Remove(id string) error {
	if _, err := f.Task(id); err != nil {
		return err
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeService) ListDirectories(path string) (*ioutils.Listing, error) {
	if strings.HasPrefix(path, "..") {
		return nil, common.ErrInvalidDirectory
	}
	return &ioutils.Listing{Current: "/dl", Directories: []string{"a", "b"}}, nil
}

func newTestServer(t *testing.T, srv TaskService, auth config.AuthSettings) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := NewRouter(srv, auth, log)
	require.NoError(t, err)
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestStart_Form(t *testing.T) {
	srv := newFakeService()
	ts := newTestServer(t, srv, config.AuthSettings{})

	resp, err := http.PostForm(ts.URL+"/start", url.Values{
		"url":         {"https://gofile.io/d/abc"},
		"directory":   {"shows"},
		"throttle":    {"256"},
		"incremental": {"on"},
		"pattern":     {"⭐NEW FILES in ,⭐"},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	require.Equal(t, "new-id", body["task_id"])

	require.Len(t, srv.started, 1)
	req := srv.started[0]
	require.Equal(t, "https://gofile.io/d/abc", req.URL)
	require.Equal(t, "shows", req.Directory)
	require.Equal(t, 256, req.ThrottleKBs)
	require.Equal(t, 5, req.Retries)
	require.True(t, req.Incremental)
	require.Equal(t, []string{"⭐NEW FILES in ", "⭐"}, req.FolderPatterns)
}

func TestStart_JSON(t *testing.T) {
	srv := newFakeService()
	ts := newTestServer(t, srv, config.AuthSettings{})

	resp, err := http.Post(ts.URL+"/start", "application/json",
		strings.NewReader(`{"url":"abc","retries":2,"incremental":true}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	require.Len(t, srv.started, 1)
	require.Equal(t, 2, srv.started[0].Retries)
	require.True(t, srv.started[0].Incremental)
	require.Equal(t, []string{"⭐"}, srv.started[0].FolderPatterns)
}

func TestStart_Errors(t *testing.T) {
	ts := newTestServer(t, newFakeService(), config.AuthSettings{})

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"missing url", url.Values{}, "URL is required"},
		{"bad throttle", url.Values{"url": {"abc"}, "throttle": {"fast"}}, "invalid throttle"},
		{"bad directory", url.Values{"url": {"abc"}, "directory": {"../etc"}}, "outside of base directory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.PostForm(ts.URL+"/start", tt.form)
			require.NoError(t, err)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var body map[string]string
			decode(t, resp, &body)
			require.Contains(t, body["error"], tt.want)
		})
	}
}

func TestTasksAndProgress(t *testing.T) {
	ts := newTestServer(t, newFakeService(), config.AuthSettings{})

	resp, err := http.Get(ts.URL + "/tasks")
	require.NoError(t, err)
	var tasks map[string]map[string]any
	decode(t, resp, &tasks)
	require.Len(t, tasks, 2)
	require.Equal(t, "Show", tasks["t1"]["name"])
	require.Equal(t, "running", tasks["t1"]["status"])
	require.Equal(t, "unknown", tasks["t1"]["eta"])
	files := tasks["t1"]["files"].([]any)
	require.Equal(t, "Show/A.bin", files[0].(map[string]any)["file"])

	resp, err = http.Get(ts.URL + "/progress/t2")
	require.NoError(t, err)
	var snap map[string]any
	decode(t, resp, &snap)
	require.Equal(t, 100.0, snap["overall_progress"])

	resp, err = http.Get(ts.URL + "/progress/nope")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTaskControls(t *testing.T) {
	ts := newTestServer(t, newFakeService(), config.AuthSettings{})
	post := func(path string) (*http.Response, map[string]any) {
		resp, err := http.Post(ts.URL+path, "", nil)
		require.NoError(t, err)
		var body map[string]any
		decode(t, resp, &body)
		return resp, body
	}

	resp, body := post("/pause/t1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["paused"])
	require.Equal(t, "paused", body["status"])

	resp, _ = post("/pause/t2")
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = post("/cancel/t1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["ok"])

	resp, _ = post("/delete/t1")
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = post("/delete/t2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Task t2: 2 files deleted.", body["message"])

	resp, body = post("/remove/t2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Task t2 removed.", body["message"])

	resp, body = post("/remove/t2")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotEmpty(t, body["error"])
}

func TestBrowse(t *testing.T) {
	ts := newTestServer(t, newFakeService(), config.AuthSettings{})

	resp, err := http.Get(ts.URL + "/browse?path=/")
	require.NoError(t, err)
	var listing ioutils.Listing
	decode(t, resp, &listing)
	require.Equal(t, "/dl", listing.Current)
	require.Equal(t, []string{"a", "b"}, listing.Directories)

	resp, err = http.Get(ts.URL + "/browse?path=../x")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPages(t *testing.T) {
	ts := newTestServer(t, newFakeService(), config.AuthSettings{})

	for path, want := range map[string]string{
		"/":        "GoFile Downloader",
		"/help":    "<title>GoFile Downloader help</title>",
		"/healthz": "ok",
	} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		require.Contains(t, string(data), want, path)
	}
}

func TestRenderHelp(t *testing.T) {
	page, err := renderHelp([]byte("---\ntitle: Manual\n---\n# Hello\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"))
	require.NoError(t, err)
	require.Contains(t, string(page), "<title>Manual</title>")
	require.Contains(t, string(page), "<h1>Hello</h1>")
	require.Contains(t, string(page), "<table>")
	require.NotContains(t, string(page), "title: Manual")
}

func TestBasicAuth(t *testing.T) {
	ts := newTestServer(t, newFakeService(), config.AuthSettings{Username: "me", Password: "pw"})

	resp, err := http.Get(ts.URL + "/tasks")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("WWW-Authenticate"))

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/tasks", nil)
	req.SetBasicAuth("me", "pw")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
