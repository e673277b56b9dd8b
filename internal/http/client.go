package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/handiism/gofile-downloader/internal/common"
)

// maxErrorBody bounds how much of an error response is kept for messages.
const maxErrorBody = 512

// Options configures the HTTP client.
type Options struct {
	// Timeout bounds API requests end to end.
	// Default: 30s
	Timeout time.Duration

	// UserAgent is sent with every request.
	// Default: "Mozilla/5.0 (compatible; gofile-downloader)"
	UserAgent string
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:   30 * time.Second,
		UserAgent: "Mozilla/5.0 (compatible; gofile-downloader)",
	}
}

// Client wraps HTTP operations used against the GoFile API and storage servers.
//
// Client provides:
//   - Configured User-Agent header
//   - A fixed timeout for API calls
//   - JSON helpers that map failures onto the common error taxonomy
//   - Ranged streaming for resumable downloads
//
// Transport failures, 5xx, 408 and 429 responses are reported as
// common.ErrNetwork so callers can retry them with a retry.Policy.
//
// Example usage:
//
//	client := NewClient(DefaultOptions())
//
//	var env dto.Envelope
//	err := client.GetJSON(ctx, "https://api.gofile.io/contents/abc", header, &env)
//
//	// Resume a partial download at byte 4096
//	resp, err := client.OpenRange(ctx, link, header, 4096)
//	defer resp.Body.Close()
type Client struct {
	httpClient   *http.Client
	streamClient *http.Client
	userAgent    string
}

// NewClient creates a new HTTP client.
//
// API calls use opts.Timeout. Streams opened by OpenRange have no overall
// timeout since large files can take hours; they are bounded by the
// caller's context instead.
func NewClient(opts Options) *Client {
	def := DefaultOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		streamClient: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: opts.Timeout,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		userAgent: opts.UserAgent,
	}
}

// StatusError is returned for responses with an unexpected status code.
//
// It unwraps to the matching common error, so both of these work:
//
//	var se *http.StatusError
//	errors.As(err, &se)              // se.Code == 404
//	errors.Is(err, common.ErrNotFound) // true
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("HTTP %d %s", e.Code, http.StatusText(e.Code))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap maps the status code onto the error taxonomy.
func (e *StatusError) Unwrap() error {
	return classifyStatus(e.Code)
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusNotFound || code == http.StatusGone:
		return common.ErrNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return common.ErrAuth
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests:
		return common.ErrNetwork
	case code >= 500:
		return common.ErrNetwork
	default:
		return nil
	}
}

// ProgressWriter wraps a writer to track download progress.
//
// Use this to monitor large downloads by providing an OnUpdate callback
// that receives the current bytes written and total expected bytes.
// Written may start above zero when a download is resumed.
//
// Example:
//
//	pw := &ProgressWriter{
//	    Writer:  file,
//	    Total:   size,
//	    Written: alreadyOnDisk,
//	    OnUpdate: func(written, total int64) {
//	        fmt.Printf("%d / %d bytes\n", written, total)
//	    },
//	}
//	io.Copy(pw, response.Body)
type ProgressWriter struct {
	// Writer is the underlying writer to write data to.
	Writer io.Writer

	// Total is the expected total bytes.
	Total int64

	// Written is the current number of bytes written.
	Written int64

	// OnUpdate is called after each Write with current progress.
	// Parameters are (bytesWritten, totalExpected).
	OnUpdate func(written, total int64)
}

// Write implements io.Writer, tracking progress and calling OnUpdate.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil && n > 0 {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}

// Do sends req with the configured User-Agent.
//
// Transport failures are wrapped in common.ErrNetwork. If the request
// context is done, its error is returned instead.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.do(c.httpClient, req)
}

func (c *Client) do(hc *http.Client, req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := hc.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", common.ErrNetwork, err)
	}
	return resp, nil
}

// GetJSON performs a GET request and decodes a JSON body into v.
//
// Returns a *StatusError for non-2xx responses and common.ErrAPI when the
// body is not valid JSON.
//
// Example:
//
//	var env dto.Envelope
//	err := client.GetJSON(ctx, url, http.Header{"Authorization": {"Bearer " + token}}, &env)
func (c *Client) GetJSON(ctx context.Context, url string, header http.Header, v any) error {
	req, err := newRequest(ctx, http.MethodGet, url, header, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, v)
}

// PostJSON sends body encoded as JSON (nil for an empty body) and decodes
// the response into v.
func (c *Client) PostJSON(ctx context.Context, url string, header http.Header, body, v any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("cannot encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := newRequest(ctx, http.MethodPost, url, header, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.doJSON(req, v)
}

func (c *Client) doJSON(req *http.Request, v any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}
	if v == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: truncated response from %s", common.ErrNetwork, req.URL.Path)
		}
		return fmt.Errorf("%w: cannot decode response from %s: %w", common.ErrAPI, req.URL.Path, err)
	}
	return nil
}

// GetString performs a GET request and returns the response body as a string.
//
// This is used for fetching text content like the site bootstrap script.
//
// Example:
//
//	script, err := client.GetString(ctx, "https://gofile.io/dist/js/config.js")
func (c *Client) GetString(ctx context.Context, url string) (string, error) {
	req, err := newRequest(ctx, http.MethodGet, url, nil, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return "", err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrNetwork, err)
	}
	return string(body), nil
}

// OpenRange starts a streaming GET of url from byte offset.
//
// A Range header is only sent when offset > 0. The caller must close the
// response body. 200 and 206 are returned as-is; the caller decides whether
// the server honoured the range by checking resp.StatusCode. Any other
// status, including 416, yields a *StatusError.
//
// Example:
//
//	resp, err := client.OpenRange(ctx, link, header, partSize)
//	if err != nil {
//	    return err
//	}
//	defer resp.Body.Close()
//	if resp.StatusCode == http.StatusOK {
//	    // server ignored the range, restart from zero
//	}
func (c *Client) OpenRange(ctx context.Context, url string, header http.Header, offset int64) (*http.Response, error) {
	req, err := newRequest(ctx, http.MethodGet, url, header, nil)
	if err != nil {
		return nil, err
	}
	if offset > 0 {
		req.Header.Set("Range", "bytes="+strconv.FormatInt(offset, 10)+"-")
	}

	resp, err := c.do(c.streamClient, req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		defer resp.Body.Close()
		return nil, checkResponse(resp)
	}
	return resp, nil
}

func newRequest(ctx context.Context, method, url string, header http.Header, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("cannot create request: %w", err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	return req, nil
}

// checkResponse returns a *StatusError for any non-2xx response.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Code: resp.StatusCode,
		URL:  resp.Request.URL.String(),
		Body: string(bytes.TrimSpace(body)),
	}
}
