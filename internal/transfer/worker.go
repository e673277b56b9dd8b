package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"github.com/handiism/gofile-downloader/internal/common"
	apihttp "github.com/handiism/gofile-downloader/internal/http"
	ioutils "github.com/handiism/gofile-downloader/internal/io"
	"github.com/handiism/gofile-downloader/internal/model"
	"github.com/handiism/gofile-downloader/internal/retry"
	"github.com/handiism/gofile-downloader/internal/tracker"
)

// DefaultChunkSize is the read/write unit of a transfer.
const DefaultChunkSize = 64 * 1024

// PartSuffix is appended to a file name while it is being downloaded.
const PartSuffix = ".part"

// Status is the outcome of a successful Transfer call.
type Status int

const (
	// Completed means the file was downloaded and moved into place.
	Completed Status = iota

	// Skipped means incremental sync found the file already downloaded.
	Skipped
)

func (s Status) String() string {
	if s == Skipped {
		return "skipped"
	}
	return "completed"
}

// Result describes a finished transfer.
type Result struct {
	Status Status

	// Bytes is the final size on disk. Zero for skipped files.
	Bytes int64

	// Duration is the wall time spent, retries included.
	Duration time.Duration
}

// Options controls a single transfer.
type Options struct {
	// ChunkSize is the number of bytes read and written at a time.
	// Default: DefaultChunkSize
	ChunkSize int

	// ThrottleKBs caps the write rate in KiB per second. Zero disables it.
	// Ignored when Limiter is set.
	ThrottleKBs int

	// Limiter paces writes and may be shared by several transfers so
	// their combined rate stays under one limit. See NewLimiter.
	Limiter *rate.Limiter

	// Retry is applied to network failures and non-2xx responses.
	Retry retry.Policy

	// Incremental enables skipping files already present in Record.
	Incremental bool

	// Record is the tracker record consulted when Incremental is set.
	Record *tracker.Record
}

// NewLimiter returns a write limiter for kbs KiB per second.
//
// The burst is one chunk, or one second's worth of bytes when that is
// smaller. The bucket starts empty, so even the first write of a file
// waits for its share of time.
func NewLimiter(kbs, chunk int) *rate.Limiter {
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	limit := kbs * 1024
	burst := min(chunk, limit)
	l := rate.NewLimiter(rate.Limit(limit), burst)
	l.ReserveN(time.Now(), burst)
	return l
}

// ProgressFunc receives the bytes on disk so far and the expected total.
type ProgressFunc func(done, total int64)

// TokenSource supplies the account token sent with download requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// FileError describes a failed transfer. It unwraps to the cause, so
// errors.Is(err, common.ErrCancelled) and friends keep working.
type FileError struct {
	Path string
	URL  string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("cannot download %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Worker downloads single files.
//
// Worker provides:
//   - Resumable downloads through a ".part" file and Range requests
//   - Retries with the injected retry.Policy
//   - Optional write-rate throttling
//   - Progress callbacks and a cancellation check after every chunk
//
// A Worker holds no per-transfer state and may be used by many goroutines.
//
// Example usage:
//
//	w := transfer.NewWorker(client, afero.NewOsFs(), resolver, log)
//
//	res, err := w.Transfer(ctx, job, "/downloads/Show/E01.mkv", transfer.Options{
//	    Retry:       retry.DefaultPolicy(),
//	    ThrottleKBs: 512,
//	}, func(done, total int64) {
//	    fmt.Printf("%d / %d\n", done, total)
//	}, task.IsCancelled)
type Worker struct {
	client *apihttp.Client
	fs     afero.Fs
	tokens TokenSource
	log    *slog.Logger
}

// NewWorker creates a Worker writing to fs. tokens may be nil when the
// storage server needs no account cookie.
func NewWorker(client *apihttp.Client, fs afero.Fs, tokens TokenSource, log *slog.Logger) *Worker {
	return &Worker{
		client: client,
		fs:     fs,
		tokens: tokens,
		log:    log.With(slog.String("component", "transfer")),
	}
}

// Transfer downloads job to dest.
//
// With opts.Incremental set and job.ID present in opts.Record, it returns
// a Skipped result without any I/O. Otherwise the file is streamed into
// dest+".part", resuming from whatever a previous attempt left there, and
// renamed to dest once complete.
//
// onProgress and cancelled may be nil. cancelled is checked after every
// chunk; when it reports true, or ctx is done, the part file is removed and
// the error wraps common.ErrCancelled.
//
// Errors are *FileError values wrapping common.ErrIO, common.ErrNetwork,
// common.ErrCancelled or the last HTTP status error.
func (w *Worker) Transfer(ctx context.Context, job model.FileJob, dest string, opts Options, onProgress ProgressFunc, cancelled func() bool) (Result, error) {
	if opts.Incremental && opts.Record != nil && opts.Record.IsDownloaded(job.ID) {
		return Result{Status: Skipped}, nil
	}

	start := time.Now()
	fail := func(err error) (Result, error) {
		return Result{}, &FileError{Path: job.RelPath, URL: job.Link, Err: err}
	}

	if err := ioutils.EnsureDir(w.fs, filepath.Dir(dest)); err != nil {
		return fail(fmt.Errorf("%w: %w", common.ErrIO, err))
	}

	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	s := &stream{
		w:          w,
		job:        job,
		part:       dest + PartSuffix,
		chunk:      chunk,
		onProgress: onProgress,
		cancelled:  cancelled,
	}
	switch {
	case opts.Limiter != nil:
		s.limiter = opts.Limiter
	case opts.ThrottleKBs > 0:
		s.limiter = NewLimiter(opts.ThrottleKBs, chunk)
	}

	policy := opts.Retry
	policy.Retryable = func(err error) bool {
		var se *apihttp.StatusError
		return retry.IsTransient(err) || errors.As(err, &se)
	}
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		w.log.Warn("Transfer failed, retrying",
			slog.String("file", job.RelPath),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.Any("error", err),
		)
	}

	err := policy.Do(ctx, s.attempt)
	if err != nil {
		if errors.Is(err, common.ErrCancelled) || ctx.Err() != nil {
			_ = w.fs.Remove(s.part)
			return fail(fmt.Errorf("%w: %w", common.ErrCancelled, err))
		}
		return fail(err)
	}

	_ = w.fs.Remove(dest)
	if err := w.fs.Rename(s.part, dest); err != nil {
		return fail(fmt.Errorf("%w: cannot move into place: %w", common.ErrIO, err))
	}

	size, _ := ioutils.FileSize(w.fs, dest)
	return Result{Status: Completed, Bytes: size, Duration: time.Since(start)}, nil
}

// stream is the state of one Transfer shared by its attempts.
type stream struct {
	w          *Worker
	job        model.FileJob
	part       string
	chunk      int
	limiter    *rate.Limiter
	onProgress ProgressFunc
	cancelled  func() bool
}

func (s *stream) isCancelled() bool {
	return s.cancelled != nil && s.cancelled()
}

// attempt downloads the rest of the file once.
func (s *stream) attempt(ctx context.Context, _ int) error {
	if s.isCancelled() {
		return common.ErrCancelled
	}

	fs := s.w.fs
	offset, _ := ioutils.FileSize(fs, s.part)
	if s.job.Size > 0 && offset > s.job.Size {
		_ = fs.Remove(s.part)
		offset = 0
	}
	if s.job.Size > 0 && offset == s.job.Size {
		return nil
	}

	header := http.Header{}
	if s.w.tokens != nil {
		token, err := s.w.tokens.Token(ctx)
		if err != nil {
			return err
		}
		header.Set("Cookie", "accountToken="+token)
	}

	resp, err := s.w.client.OpenRange(ctx, s.job.Link, header, offset)
	if err != nil {
		var se *apihttp.StatusError
		if offset > 0 && errors.As(err, &se) && se.Code == http.StatusRequestedRangeNotSatisfiable {
			if s.job.Size == 0 {
				return nil
			}
			// The part file does not match the remote file any more.
			_ = fs.Remove(s.part)
			return fmt.Errorf("%w: range rejected, restarting", common.ErrNetwork)
		}
		return err
	}
	defer resp.Body.Close()

	flag := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if resp.StatusCode == http.StatusOK {
		offset = 0
		flag = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}

	f, err := fs.OpenFile(s.part, flag, 0644)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrIO, err)
	}

	total := s.job.Size
	if total == 0 && resp.ContentLength > 0 {
		total = offset + resp.ContentLength
	}

	pw := &apihttp.ProgressWriter{Writer: f, Total: total, Written: offset, OnUpdate: s.onProgress}
	copyErr := s.copy(ctx, pw, resp.Body)
	closeErr := f.Close()
	if copyErr != nil {
		return copyErr
	}
	if closeErr != nil {
		return fmt.Errorf("%w: %w", common.ErrIO, closeErr)
	}

	if total > 0 && pw.Written < total {
		return fmt.Errorf("%w: connection closed after %d of %d bytes", common.ErrNetwork, pw.Written, total)
	}
	return nil
}

// copy moves body into pw one chunk at a time, honouring the throttle
// and the cancellation check between chunks.
func (s *stream) copy(ctx context.Context, pw *apihttp.ProgressWriter, body io.Reader) error {
	buf := make([]byte, s.chunk)
	for {
		n, readErr := io.ReadFull(body, buf)
		if n > 0 {
			if err := s.write(ctx, pw, buf[:n]); err != nil {
				return err
			}
		}
		if s.isCancelled() {
			return common.ErrCancelled
		}

		switch {
		case readErr == nil:
		case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return fmt.Errorf("%w: %w", common.ErrNetwork, readErr)
		}
	}
}

// write hands p to pw, paced by the limiter in slices no larger than its
// burst.
func (s *stream) write(ctx context.Context, pw *apihttp.ProgressWriter, p []byte) error {
	for len(p) > 0 {
		n := len(p)
		if s.limiter != nil {
			n = min(n, s.limiter.Burst())
			if err := s.limiter.WaitN(ctx, n); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
		}
		if _, err := pw.Write(p[:n]); err != nil {
			return fmt.Errorf("%w: %w", common.ErrIO, err)
		}
		p = p[n:]
	}
	return nil
}
