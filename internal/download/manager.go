package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/handiism/gofile-downloader/internal/common"
	"github.com/handiism/gofile-downloader/internal/gofile"
	ioutils "github.com/handiism/gofile-downloader/internal/io"
	"github.com/handiism/gofile-downloader/internal/model"
	"github.com/handiism/gofile-downloader/internal/retry"
	"github.com/handiism/gofile-downloader/internal/task"
	"github.com/handiism/gofile-downloader/internal/tracker"
	"github.com/handiism/gofile-downloader/internal/transfer"
)

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a download progress update.
type ProgressEvent struct {
	TaskID  string
	Message string
	Level   ProgressLevel
}

// Resolver turns a content identifier into a content tree.
type Resolver interface {
	Resolve(ctx context.Context, contentID, password string) (*model.ContentNode, error)
}

// Config holds the process-wide settings of a Manager.
type Config struct {
	// BaseDir confines every task directory.
	BaseDir string

	// Workers bounds concurrent transfers, per task and for the process.
	// Default: 4
	Workers int

	// ChunkSize is passed to the transfer worker.
	ChunkSize int

	// Retry is the base policy; each task sets its own attempt count.
	Retry retry.Policy

	// Defaults for StartRequest fields, see NewRequest.
	ThrottleKBs    int
	Retries        int
	Incremental    bool
	FolderPatterns []string
}

// StartRequest describes a download to start.
type StartRequest struct {
	URL            string
	Password       string
	Directory      string
	ThrottleKBs    int
	Retries        int
	Incremental    bool
	FolderPatterns []string
}

// Manager owns the tasks of the process and runs them.
//
// Every Start spawns a goroutine that resolves the link, flattens the tree
// and fans file transfers out to a bounded pool. The pool is limited per
// task and by a semaphore shared by all tasks, so Workers is also the
// process-wide cap on concurrent transfers.
//
// Example usage:
//
//	m := download.NewManager(cfg, resolver, worker, store, afero.NewOsFs(), log, func(e download.ProgressEvent) {
//	    fmt.Println(e.Message)
//	})
//	defer m.Shutdown(context.Background())
//
//	req := m.NewRequest()
//	req.URL = "https://gofile.io/d/abc123"
//	id, err := m.Start(ctx, req)
//	if err != nil {
//	    return err
//	}
//	m.Wait()
//	snap, _ := m.Task(id)
type Manager struct {
	cfg      Config
	resolver Resolver
	worker   *transfer.Worker
	store    tracker.Store
	fs       afero.Fs
	registry *task.Registry
	notifier Notifier
	log      *slog.Logger

	onProgress func(ProgressEvent)

	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Manager with an empty registry. onProgress may be nil.
func NewManager(cfg Config, resolver Resolver, worker *transfer.Worker, store tracker.Store, fs afero.Fs, log *slog.Logger, onProgress func(ProgressEvent)) *Manager {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry = retry.DefaultPolicy()
	}

	ctx, cancel := context.WithCancel(context.Background())
	log = log.With(slog.String("component", "manager"))
	return &Manager{
		cfg:        cfg,
		resolver:   resolver,
		worker:     worker,
		store:      store,
		fs:         fs,
		registry:   task.NewRegistry(),
		notifier:   NewLogNotifier(log),
		log:        log,
		onProgress: onProgress,
		sem:        semaphore.NewWeighted(int64(cfg.Workers)),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SetNotifier replaces the notifier called when a task finishes. It must
// be called before the first Start.
func (m *Manager) SetNotifier(n Notifier) {
	m.notifier = n
}

// NewRequest returns a StartRequest filled with the configured defaults.
func (m *Manager) NewRequest() StartRequest {
	return StartRequest{
		ThrottleKBs:    m.cfg.ThrottleKBs,
		Retries:        m.cfg.Retries,
		Incremental:    m.cfg.Incremental,
		FolderPatterns: append([]string(nil), m.cfg.FolderPatterns...),
	}
}

// BaseDir returns the directory every task is confined to.
func (m *Manager) BaseDir() string {
	return m.cfg.BaseDir
}

// Start validates req, registers a running task and downloads it in the
// background. The run is bound to the Manager, not to ctx.
//
// Errors wrap common.ErrInvalidURL or common.ErrInvalidDirectory.
func (m *Manager) Start(ctx context.Context, req StartRequest) (string, error) {
	if strings.TrimSpace(req.URL) == "" {
		return "", fmt.Errorf("%w: url is required", common.ErrInvalidURL)
	}
	contentID, err := gofile.ExtractContentID(req.URL)
	if err != nil {
		return "", err
	}
	dir, err := ioutils.ResolveWithin(m.cfg.BaseDir, req.Directory)
	if err != nil {
		return "", err
	}
	if m.ctx.Err() != nil {
		return "", errors.New("manager is shut down")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("cannot generate task id: %w", err)
	}

	t := task.New(m.ctx, task.Params{
		ID:        id.String(),
		URL:       req.URL,
		Password:  req.Password,
		Directory: dir,
		Name:      initialName(req.URL, req.Directory),
		Options: task.Options{
			ThrottleKBs:    req.ThrottleKBs,
			Retries:        req.Retries,
			Incremental:    req.Incremental,
			FolderPatterns: req.FolderPatterns,
		},
	})
	m.registry.Add(t)

	m.log.InfoContext(ctx, "Task started",
		slog.String("task", t.ID()),
		slog.String("content", contentID),
		slog.String("directory", dir),
	)
	m.progress(ProgressEvent{TaskID: t.ID(), Message: fmt.Sprintf("Starting %s", req.URL), Level: LevelInfo})

	m.wg.Add(1)
	go m.run(t, contentID)
	return t.ID(), nil
}

// initialName names a task before its content is resolved: the last
// element of the requested directory, else the tail of the URL.
func initialName(link, directory string) string {
	if strings.TrimSpace(directory) != "" {
		name := filepath.Base(strings.TrimRight(directory, `/\`))
		if name == "." || name == ".." || name == string(filepath.Separator) {
			return "download"
		}
		return name
	}
	link = strings.TrimRight(strings.TrimSpace(link), "/")
	if i := strings.LastIndex(link, "/"); i >= 0 {
		return link[i+1:]
	}
	return link
}

func (m *Manager) run(t *task.Task, contentID string) {
	defer m.wg.Done()
	log := m.log.With(slog.String("task", t.ID()))

	status, msg := m.execute(t, contentID, log)
	if err := t.Finish(status, msg); err != nil {
		log.Warn("Cannot finish task", slog.Any("error", err))
	}

	snap := t.Snapshot()
	switch snap.Status {
	case task.StatusCompleted:
		m.progress(ProgressEvent{TaskID: t.ID(), Message: fmt.Sprintf("Finished %s", snap.Name), Level: LevelSuccess})
	case task.StatusCancelled:
		m.progress(ProgressEvent{TaskID: t.ID(), Message: fmt.Sprintf("Cancelled %s", snap.Name), Level: LevelWarning})
	default:
		m.progress(ProgressEvent{TaskID: t.ID(), Message: fmt.Sprintf("Failed %s: %s", snap.Name, snap.ErrorMessage), Level: LevelError})
	}
	log.Info("Task finished", slog.String("status", string(snap.Status)))

	if m.notifier != nil {
		if err := m.notifier.Notify(context.WithoutCancel(t.Context()), snap); err != nil {
			log.Warn("Cannot send completion notification", slog.Any("error", err))
		}
	}
}

// execute drives one task and returns the final state to move it to.
func (m *Manager) execute(t *task.Task, contentID string, log *slog.Logger) (task.Status, string) {
	ctx := t.Context()

	root, err := m.resolver.Resolve(ctx, contentID, t.Password())
	if err != nil {
		if t.IsCancelled() {
			return task.StatusCancelled, ""
		}
		log.Error("Cannot resolve content", slog.Any("error", err))
		return task.StatusError, err.Error()
	}

	rec, err := m.store.Load(ctx, contentID)
	if err != nil {
		if t.IsCancelled() {
			return task.StatusCancelled, ""
		}
		log.Warn("Cannot load tracker record, starting empty", slog.Any("error", err))
		rec = tracker.NewRecord(contentID)
	}

	opts := t.Options()
	folderName := func(name string) string {
		if opts.Incremental {
			name = rec.ReconcileFolderName(opts.FolderPatterns, name)
		}
		rec.RememberFolder(name)
		return name
	}

	jobs := model.Flatten(root, folderName)
	var outPath string
	switch {
	case root.IsFolder():
		outPath = filepath.Join(t.Directory(), folderName(root.Name))
	case len(jobs) == 1:
		outPath = filepath.Join(t.Directory(), filepath.FromSlash(jobs[0].RelPath))
	default:
		outPath = filepath.Join(t.Directory(), root.Name)
	}
	t.SetName(filepath.Base(outPath), outPath, contentID)
	t.SetFiles(jobs)

	m.progress(ProgressEvent{
		TaskID:  t.ID(),
		Message: fmt.Sprintf("Found %s: %d files (%s)", root.DisplayName, len(jobs), task.FormatBytes(root.TotalSize())),
		Level:   LevelInfo,
	})

	// One limiter per task keeps the throttle a task-wide rate no
	// matter how many files are in flight.
	var limiter *rate.Limiter
	if opts.ThrottleKBs > 0 {
		limiter = transfer.NewLimiter(opts.ThrottleKBs, m.cfg.ChunkSize)
	}

	failed := m.dispatch(ctx, t, rec, limiter, jobs, log)

	if err := m.store.Flush(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn("Cannot flush tracker record", slog.Any("error", err))
	}

	switch {
	case t.IsCancelled():
		return task.StatusCancelled, ""
	case len(jobs) > 0 && failed == len(jobs):
		return task.StatusError, fmt.Sprintf("all %d files failed", len(jobs))
	default:
		return task.StatusCompleted, ""
	}
}

// dispatch runs the jobs on the worker pool and returns how many failed.
// It waits while the task is paused and stops dispatching once it is
// cancelled; jobs never dispatched are marked cancelled.
func (m *Manager) dispatch(ctx context.Context, t *task.Task, rec *tracker.Record, limiter *rate.Limiter, jobs []model.FileJob, log *slog.Logger) int {
	var failed atomic.Int32

	g := new(errgroup.Group)
	g.SetLimit(m.cfg.Workers)

	for _, job := range jobs {
		if err := t.WaitResumed(ctx); err != nil || t.IsCancelled() {
			break
		}
		g.Go(func() error {
			// queued while the task was paused
			if err := t.WaitResumed(ctx); err != nil {
				t.CancelFile(job.RelPath)
				return nil
			}
			if err := m.sem.Acquire(ctx, 1); err != nil {
				t.CancelFile(job.RelPath)
				return nil
			}
			defer m.sem.Release(1)

			if !m.transferOne(ctx, t, rec, limiter, job, log) {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, path := range t.FilesWithStatus(task.FilePending) {
		t.CancelFile(path)
	}
	return int(failed.Load())
}

// transferOne downloads job and updates the task. It returns false if the
// file failed.
func (m *Manager) transferOne(ctx context.Context, t *task.Task, rec *tracker.Record, limiter *rate.Limiter, job model.FileJob, log *slog.Logger) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Transfer panicked", slog.String("file", job.RelPath), slog.Any("panic", r))
			t.FailFile(job.RelPath, fmt.Errorf("internal error: %v", r))
			ok = false
		}
	}()

	if t.IsCancelled() {
		t.CancelFile(job.RelPath)
		return true
	}

	opts := t.Options()
	dest := filepath.Join(t.Directory(), filepath.FromSlash(job.RelPath))
	res, err := m.worker.Transfer(ctx, job, dest, transfer.Options{
		ChunkSize:   m.cfg.ChunkSize,
		Limiter:     limiter,
		Retry:       m.cfg.Retry.WithRetries(opts.Retries),
		Incremental: opts.Incremental,
		Record:      rec,
	}, func(done, total int64) {
		t.UpdateFile(job.RelPath, done, total)
	}, t.IsCancelled)

	switch {
	case errors.Is(err, common.ErrCancelled):
		t.CancelFile(job.RelPath)
		return true
	case err != nil:
		log.Error("Download failed", slog.String("file", job.RelPath), slog.Any("error", err))
		t.FailFile(job.RelPath, err)
		m.progress(ProgressEvent{TaskID: t.ID(), Message: fmt.Sprintf("Error downloading %s: %v", job.RelPath, err), Level: LevelError})
		return false
	case res.Status == transfer.Skipped:
		t.SkipFile(job.RelPath)
		m.progress(ProgressEvent{TaskID: t.ID(), Message: fmt.Sprintf("Skipping existing: %s", job.RelPath), Level: LevelVerbose})
		return true
	}

	t.CompleteFile(job.RelPath, res.Bytes)
	rec.RecordDownload(job.ID, job.Name)
	if err := m.store.Flush(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn("Cannot flush tracker record", slog.String("file", job.RelPath), slog.Any("error", err))
	}
	m.progress(ProgressEvent{TaskID: t.ID(), Message: fmt.Sprintf("Downloaded: %s", job.RelPath), Level: LevelVerbose})
	return true
}

// Pause stops dispatching new files of task id.
func (m *Manager) Pause(id string) error {
	t, err := m.registry.Get(id)
	if err != nil {
		return err
	}
	return t.Pause()
}

// Resume continues a paused task.
func (m *Manager) Resume(id string) error {
	t, err := m.registry.Get(id)
	if err != nil {
		return err
	}
	return t.Resume()
}

// TogglePause pauses or resumes task id and returns whether it is now
// paused along with its status.
func (m *Manager) TogglePause(id string) (bool, task.Status, error) {
	t, err := m.registry.Get(id)
	if err != nil {
		return false, "", err
	}
	paused, err := t.TogglePause()
	return paused, t.Status(), err
}

// Cancel stops task id. Running transfers notice within one chunk.
// Cancelling a finished task does nothing.
func (m *Manager) Cancel(id string) error {
	t, err := m.registry.Get(id)
	if err != nil {
		return err
	}
	if t.Cancel() {
		m.log.Info("Task cancelled", slog.String("task", id))
	}
	return nil
}

// Delete removes the files a finished task downloaded, along with any
// leftover part files, and prunes the directories it left empty. Files
// skipped by incremental sync are kept, as is the task itself. It returns
// the number of files removed.
func (m *Manager) Delete(ctx context.Context, id string) (int, error) {
	t, err := m.registry.Get(id)
	if err != nil {
		return 0, err
	}
	if status := t.Status(); !status.IsFinished() {
		return 0, fmt.Errorf("%w: %s", common.ErrTaskNotFinished, status)
	}

	snap := t.Snapshot()
	dirs := make(map[string]struct{})
	removed := 0
	var errs []error
	for _, f := range snap.Files {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		path := filepath.Join(t.Directory(), filepath.FromSlash(f.File))
		dirs[filepath.Dir(path)] = struct{}{}

		if f.Status == task.FileCompleted {
			if err := m.fs.Remove(path); err == nil {
				removed++
			} else if !errors.Is(err, afero.ErrFileNotFound) {
				errs = append(errs, err)
			}
		}
		if err := m.fs.Remove(path + transfer.PartSuffix); err != nil && !errors.Is(err, afero.ErrFileNotFound) {
			errs = append(errs, err)
		}
	}

	outPath := t.OutPath()
	for dir := range dirs {
		if err := ioutils.RemoveEmptyDirs(m.fs, dir, outPath); err != nil {
			errs = append(errs, err)
		}
	}

	m.log.InfoContext(ctx, "Task files deleted", slog.String("task", id), slog.Int("files", removed))
	if err := errors.Join(errs...); err != nil {
		return removed, fmt.Errorf("%w: %w", common.ErrIO, err)
	}
	return removed, nil
}

// Remove drops task id from the registry, cancelling it first if it is
// still active.
func (m *Manager) Remove(id string) error {
	t, err := m.registry.Delete(id)
	if err != nil {
		return err
	}
	t.Cancel()
	return nil
}

// Tasks returns snapshots of every task, oldest first.
func (m *Manager) Tasks() []task.Snapshot {
	tasks := m.registry.List()
	snaps := make([]task.Snapshot, len(tasks))
	for i, t := range tasks {
		snaps[i] = t.Snapshot()
	}
	return snaps
}

// Task returns a snapshot of task id.
func (m *Manager) Task(id string) (task.Snapshot, error) {
	t, err := m.registry.Get(id)
	if err != nil {
		return task.Snapshot{}, err
	}
	return t.Snapshot(), nil
}

// ListDirectories lists the sub-directories of path inside the base directory.
func (m *Manager) ListDirectories(path string) (*ioutils.Listing, error) {
	return ioutils.ListDirectories(m.fs, m.cfg.BaseDir, path)
}

// Wait blocks until every started task has finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown cancels every task and waits for the runs to return, or for ctx
// to be done. Start fails afterwards.
func (m *Manager) Shutdown(ctx context.Context) error {
	for _, t := range m.registry.List() {
		t.Cancel()
	}
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) progress(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}
