package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/handiism/gofile-downloader/internal/common"
	"github.com/handiism/gofile-downloader/internal/config"
	"github.com/handiism/gofile-downloader/internal/download"
	ioutils "github.com/handiism/gofile-downloader/internal/io"
	"github.com/handiism/gofile-downloader/internal/task"
)

// maxFormSize bounds start request bodies.
const maxFormSize = 64 << 10

// TaskService is the part of download.Manager the handlers use.
type TaskService interface {
	NewRequest() download.StartRequest
	Start(ctx context.Context, req download.StartRequest) (string, error)
	Tasks() []task.Snapshot
	Task(id string) (task.Snapshot, error)
	TogglePause(id string) (bool, task.Status, error)
	Cancel(id string) error
	Delete(ctx context.Context, id string) (int, error)
	Remove(id string) error
	ListDirectories(path string) (*ioutils.Listing, error)
}

// startForm is the JSON body accepted by the start handler. Form posts use
// the same field names.
type startForm struct {
	URL         string `json:"url"`
	Password    string `json:"password"`
	Directory   string `json:"directory"`
	Throttle    string `json:"throttle"`
	Retries     string `json:"retries"`
	Incremental string `json:"incremental"`
	Pattern     string `json:"pattern"`
}

func NewStartHandler(srv TaskService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "StartHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		form, err := readStartForm(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())

			return
		}

		req, err := buildRequest(srv.NewRequest(), form)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())

			return
		}

		id, err := srv.Start(r.Context(), req)
		if err != nil {
			log.Warn("Cannot start task", slog.String("url", req.URL), slog.Any("error", err))
			writeError(w, errorStatus(err), err.Error())

			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{"task_id": id})
	}
}

func readStartForm(w http.ResponseWriter, r *http.Request) (startForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)

	var form startForm
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "application/json" {
		// Booleans and numbers are accepted as JSON values too.
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return form, fmt.Errorf("cannot decode request: %w", err)
		}
		get := func(key string) string {
			switch v := raw[key].(type) {
			case nil:
				return ""
			case string:
				return v
			default:
				return fmt.Sprint(v)
			}
		}
		form = startForm{
			URL:         get("url"),
			Password:    get("password"),
			Directory:   get("directory"),
			Throttle:    get("throttle"),
			Retries:     get("retries"),
			Incremental: get("incremental"),
			Pattern:     get("pattern"),
		}
		return form, nil
	}

	if err := r.ParseMultipartForm(maxFormSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return form, fmt.Errorf("cannot parse form: %w", err)
	}
	return startForm{
		URL:         r.PostFormValue("url"),
		Password:    r.PostFormValue("password"),
		Directory:   r.PostFormValue("directory"),
		Throttle:    r.PostFormValue("throttle"),
		Retries:     r.PostFormValue("retries"),
		Incremental: r.PostFormValue("incremental"),
		Pattern:     r.PostFormValue("pattern"),
	}, nil
}

// buildRequest overlays the non-blank form fields on the defaults.
func buildRequest(req download.StartRequest, form startForm) (download.StartRequest, error) {
	req.URL = strings.TrimSpace(form.URL)
	if req.URL == "" {
		return req, errors.New("URL is required")
	}
	req.Password = form.Password
	req.Directory = strings.TrimSpace(form.Directory)

	if v := strings.TrimSpace(form.Throttle); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return req, fmt.Errorf("invalid throttle %q", v)
		}
		req.ThrottleKBs = n
	}
	if v := strings.TrimSpace(form.Retries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return req, fmt.Errorf("invalid retries %q", v)
		}
		req.Retries = n
	}
	if v := strings.TrimSpace(form.Incremental); v != "" {
		req.Incremental = v == "on" || v == "1" || strings.EqualFold(v, "true")
	}
	if form.Pattern != "" {
		req.FolderPatterns = config.SplitPatterns(form.Pattern)
	}
	return req, nil
}

func NewTasksHandler(srv TaskService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snaps := srv.Tasks()
		out := make(map[string]task.Snapshot, len(snaps))
		for _, s := range snaps {
			out[s.ID] = s
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func NewProgressHandler(srv TaskService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := srv.Task(r.PathValue("id"))
		if err != nil {
			writeError(w, errorStatus(err), "Invalid task id")

			return
		}

		writeJSON(w, http.StatusOK, snap)
	}
}

func NewPauseHandler(srv TaskService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "PauseHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		paused, status, err := srv.TogglePause(id)
		if err != nil {
			writeError(w, errorStatus(err), err.Error())

			return
		}

		log.Info("Pause toggled", slog.String("task", id), slog.Bool("paused", paused))
		writeJSON(w, http.StatusOK, map[string]any{"paused": paused, "status": status})
	}
}

func NewCancelHandler(srv TaskService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := srv.Cancel(r.PathValue("id")); err != nil {
			writeError(w, errorStatus(err), err.Error())

			return
		}

		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func NewDeleteHandler(srv TaskService, log *slog.Logger) http.HandlerFunc {
	log = log.With(slog.String("handler", "DeleteHandler"))

	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		removed, err := srv.Delete(r.Context(), id)
		if err != nil {
			log.Warn("Cannot delete task files", slog.String("task", id), slog.Any("error", err))
			writeError(w, errorStatus(err), err.Error())

			return
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"message": fmt.Sprintf("Task %s: %d files deleted.", id, removed),
		})
	}
}

func NewRemoveHandler(srv TaskService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := srv.Remove(id); err != nil {
			writeError(w, errorStatus(err), err.Error())

			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Task %s removed.", id)})
	}
}

func NewBrowseHandler(srv TaskService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("path")
		if strings.TrimSpace(path) == "/" {
			path = ""
		}

		listing, err := srv.ListDirectories(path)
		if err != nil {
			writeError(w, errorStatus(err), "Invalid path")

			return
		}

		writeJSON(w, http.StatusOK, listing)
	}
}

func NewHealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	}
}

// errorStatus maps an error to the HTTP status reported for it.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrTaskFinished), errors.Is(err, common.ErrTaskNotFinished):
		return http.StatusConflict
	case errors.Is(err, common.ErrInvalidURL), errors.Is(err, common.ErrInvalidDirectory):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
