package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/handiism/gofile-downloader/internal/common"
	"github.com/handiism/gofile-downloader/internal/model"
)

// ETAUnknown is reported until the throughput can be estimated.
const ETAUnknown = "unknown"

// Options are the per-task download settings chosen at start.
type Options struct {
	// ThrottleKBs caps each file transfer in KiB/s. Zero means no limit.
	ThrottleKBs int

	// Retries is the number of retries after a failed attempt.
	Retries int

	// Incremental skips files already recorded for the content root.
	Incremental bool

	// FolderPatterns are the rename patterns used to reconcile folders.
	FolderPatterns []string
}

// Params describe a task at creation time.
type Params struct {
	ID        string
	URL       string
	Password  string
	Directory string
	Name      string
	Options   Options
}

// FileProgress is the state of one file of a task.
type FileProgress struct {
	RelPath string
	Bytes   int64
	Total   int64
	Status  FileStatus
	Error   string
}

// Task is one download run.
//
// All methods are safe for concurrent use; each Task has its own lock, so
// progress on one task never blocks another. Overall progress is
// recomputed on every file update and never decreases.
type Task struct {
	mu sync.Mutex

	id        string
	url       string
	password  string
	directory string
	opts      Options

	name      string
	outPath   string
	contentID string

	status      Status
	createdAt   time.Time
	completedAt time.Time
	errMsg      string

	files []*FileProgress
	index map[string]int

	overall     float64
	transferred int64
	speed       throughput

	cancelled bool
	paused    bool
	resume    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	now func() time.Time
}

// New creates a running task. Its context derives from parent and is
// cancelled by Cancel.
func New(parent context.Context, p Params) *Task {
	return newTask(parent, p, time.Now)
}

func newTask(parent context.Context, p Params, now func() time.Time) *Task {
	ctx, cancel := context.WithCancel(parent)
	return &Task{
		id:        p.ID,
		url:       p.URL,
		password:  p.Password,
		directory: p.Directory,
		name:      p.Name,
		opts:      p.Options,
		status:    StatusRunning,
		createdAt: now(),
		index:     make(map[string]int),
		ctx:       ctx,
		cancel:    cancel,
		now:       now,
	}
}

func (t *Task) ID() string               { return t.id }
func (t *Task) URL() string              { return t.url }
func (t *Task) Password() string         { return t.password }
func (t *Task) Directory() string        { return t.directory }
func (t *Task) Options() Options         { return t.opts }
func (t *Task) Context() context.Context { return t.ctx }

// CreatedAt returns when the task was started.
func (t *Task) CreatedAt() time.Time {
	return t.createdAt
}

// SetName records the resolved root name and where its content goes.
func (t *Task) SetName(name, outPath, contentID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.name = name
	t.outPath = outPath
	t.contentID = contentID
}

// OutPath returns the root folder or file written by the task.
func (t *Task) OutPath() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outPath
}

// ContentID returns the resolved content identifier.
func (t *Task) ContentID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.contentID
}

// SetFiles registers the jobs of the run as pending files, in order.
func (t *Task) SetFiles(jobs []model.FileJob) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.files = make([]*FileProgress, 0, len(jobs))
	t.index = make(map[string]int, len(jobs))
	for _, job := range jobs {
		t.index[job.RelPath] = len(t.files)
		t.files = append(t.files, &FileProgress{
			RelPath: job.RelPath,
			Total:   job.Size,
			Status:  FilePending,
		})
	}
}

func (t *Task) file(path string) *FileProgress {
	i, ok := t.index[path]
	if !ok {
		return nil
	}
	return t.files[i]
}

// UpdateFile applies a progress report for path. Reports that do not
// increase the byte count are ignored.
func (t *Task) UpdateFile(path string, done, total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f := t.file(path)
	if f == nil || f.Status.IsFinished() || done <= f.Bytes {
		return
	}

	t.transferred += done - f.Bytes
	f.Bytes = done
	if total > 0 && f.Total == 0 {
		f.Total = total
	}
	f.Status = FileDownloading

	t.speed.add(t.now(), t.transferred)
	t.recompute()
}

// CompleteFile marks path as downloaded with size bytes on disk.
func (t *Task) CompleteFile(path string, size int64) {
	t.finishFile(path, FileCompleted, size, "")
}

// SkipFile marks path as already present from an earlier run.
func (t *Task) SkipFile(path string) {
	t.finishFile(path, FileSkipped, 0, "")
}

// FailFile marks path as failed with err.
func (t *Task) FailFile(path string, err error) {
	t.finishFile(path, FileFailed, 0, err.Error())
}

// CancelFile marks path as not downloaded because of cancellation.
func (t *Task) CancelFile(path string) {
	t.finishFile(path, FileCancelled, 0, "")
}

func (t *Task) finishFile(path string, status FileStatus, size int64, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f := t.file(path)
	if f == nil || f.Status.IsFinished() {
		return
	}
	f.Status = status
	f.Error = msg
	if status.IsDone() {
		if f.Total == 0 {
			f.Total = size
		}
		if f.Bytes < f.Total {
			f.Bytes = f.Total
		}
	}
	t.recompute()
}

// recompute derives overall progress from the files. Caller holds t.mu.
func (t *Task) recompute() {
	if len(t.files) == 0 {
		return
	}

	var done, total int64
	finished := 0
	for _, f := range t.files {
		total += f.Total
		if f.Status.IsDone() {
			done += f.Total
			finished++
			continue
		}
		done += min(f.Bytes, f.Total)
	}

	var p float64
	switch {
	case finished == len(t.files):
		p = 100
	case total > 0:
		p = float64(done) / float64(total) * 100
	default:
		p = float64(finished) / float64(len(t.files)) * 100
	}
	if p > t.overall {
		t.overall = p
	}
}

// FilesWithStatus returns the paths of files in the given state, in order.
func (t *Task) FilesWithStatus(status FileStatus) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var paths []string
	for _, f := range t.files {
		if f.Status == status {
			paths = append(paths, f.RelPath)
		}
	}
	return paths
}

// Status returns the current state.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Pause stops dispatch of further files. Transfers already running finish.
// Pausing a paused task does nothing.
func (t *Task) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.IsFinished() {
		return fmt.Errorf("%w: %s", common.ErrTaskFinished, t.status)
	}
	if t.paused {
		return nil
	}
	t.paused = true
	t.status = StatusPaused
	t.resume = make(chan struct{})
	return nil
}

// Resume lets dispatch continue. Resuming a running task does nothing.
func (t *Task) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.IsFinished() {
		return fmt.Errorf("%w: %s", common.ErrTaskFinished, t.status)
	}
	t.unpause()
	t.status = StatusRunning
	return nil
}

// unpause clears the pause flag and wakes waiters. Caller holds t.mu.
func (t *Task) unpause() {
	if !t.paused {
		return
	}
	t.paused = false
	close(t.resume)
	t.resume = nil
}

// TogglePause pauses a running task or resumes a paused one and returns
// whether the task is now paused.
func (t *Task) TogglePause() (bool, error) {
	t.mu.Lock()
	paused := t.paused
	t.mu.Unlock()

	if paused {
		return false, t.Resume()
	}
	return true, t.Pause()
}

// IsPaused reports whether the pause flag is set.
func (t *Task) IsPaused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}

// WaitResumed blocks while the task is paused. It returns ctx.Err() if ctx
// is done first.
func (t *Task) WaitResumed(ctx context.Context) error {
	for {
		t.mu.Lock()
		paused, ch := t.paused, t.resume
		t.mu.Unlock()

		if !paused {
			return ctx.Err()
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Cancel sets the cancellation flag and cancels the task context. It
// returns false if the task had already finished. The flag is never cleared.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.IsFinished() {
		return false
	}
	t.cancelled = true
	t.cancel()
	return true
}

// IsCancelled reports whether Cancel was called.
func (t *Task) IsCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Finish moves the task to a final state. msg is kept as the error message
// for StatusError. Finishing a finished task fails with common.ErrTaskFinished.
func (t *Task) Finish(status Status, msg string) error {
	if !status.IsFinished() {
		return fmt.Errorf("cannot finish task with status %s", status)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.IsFinished() {
		return fmt.Errorf("%w: %s", common.ErrTaskFinished, t.status)
	}
	t.unpause()
	t.status = status
	t.errMsg = msg
	t.completedAt = t.now()
	if status == StatusCompleted && len(t.files) == 0 {
		t.overall = 100
	}
	t.cancel()
	return nil
}

// Snapshot returns a copy of the task state for display.
func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		ID:              t.id,
		Name:            t.name,
		URL:             t.url,
		Directory:       t.directory,
		OutPath:         t.outPath,
		Status:          t.status,
		CreatedAt:       t.createdAt,
		CompletedAt:     t.completedAt,
		Timestamp:       float64(t.createdAt.UnixMilli()) / 1000,
		OverallProgress: t.overall,
		ETA:             ETAUnknown,
		Paused:          t.paused,
		Cancelled:       t.cancelled,
		ErrorMessage:    t.errMsg,
		Files:           make([]FileSnapshot, len(t.files)),
	}

	finished := 0
	for i, f := range t.files {
		fs := FileSnapshot{
			File:   f.RelPath,
			Size:   f.Total,
			Bytes:  f.Bytes,
			Status: f.Status,
			Error:  f.Error,
		}
		switch {
		case f.Status.IsDone():
			fs.Progress = 100
			finished++
		case f.Total > 0:
			fs.Progress = float64(min(f.Bytes, f.Total)) / float64(f.Total) * 100
		}
		s.Files[i] = fs
		s.TotalBytes += f.Total
		if f.Status.IsDone() {
			s.DoneBytes += f.Total
		} else {
			s.DoneBytes += min(f.Bytes, f.Total)
		}
	}
	if len(t.files) > 0 {
		s.Progress = float64(finished) / float64(len(t.files)) * 100
	} else if t.status == StatusCompleted {
		s.Progress = 100
	}

	switch {
	case t.status == StatusCompleted:
		s.ETA = formatDuration(0)
	case t.status == StatusRunning:
		if rate, ok := t.speed.rate(t.now()); ok {
			s.Speed = rate
			remaining := s.TotalBytes - s.DoneBytes
			if remaining < 0 {
				remaining = 0
			}
			s.ETA = formatDuration(time.Duration(float64(remaining) / rate * float64(time.Second)))
		}
	}
	return s
}

// Snapshot is a point-in-time copy of a Task, shaped for the task list API.
type Snapshot struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	URL             string         `json:"url"`
	Directory       string         `json:"directory"`
	OutPath         string         `json:"out_path,omitempty"`
	Status          Status         `json:"status"`
	CreatedAt       time.Time      `json:"-"`
	CompletedAt     time.Time      `json:"-"`
	Timestamp       float64        `json:"timestamp"`
	Progress        float64        `json:"progress"`
	OverallProgress float64        `json:"overall_progress"`
	ETA             string         `json:"eta"`
	Speed           float64        `json:"speed"`
	Paused          bool           `json:"paused"`
	Cancelled       bool           `json:"cancelled"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	TotalBytes      int64          `json:"total_bytes"`
	DoneBytes       int64          `json:"done_bytes"`
	Files           []FileSnapshot `json:"files"`
}

// FileSnapshot is the display state of one file.
type FileSnapshot struct {
	File     string     `json:"file"`
	Progress float64    `json:"progress"`
	Size     int64      `json:"size"`
	Bytes    int64      `json:"bytes"`
	Status   FileStatus `json:"status"`
	Error    string     `json:"error,omitempty"`
}
