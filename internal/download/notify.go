package download

import (
	"context"
	"fmt"
	"log/slog"

	apihttp "github.com/handiism/gofile-downloader/internal/http"
	"github.com/handiism/gofile-downloader/internal/task"
)

// Notifier is told about every task that reaches a final state.
type Notifier interface {
	Notify(ctx context.Context, snap task.Snapshot) error
}

// LogNotifier writes one log line per finished task.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, snap task.Snapshot) error {
	level := slog.LevelInfo
	if snap.Status == task.StatusError {
		level = slog.LevelWarn
	}
	n.log.Log(ctx, level, "Download "+statusWord(snap.Status),
		slog.String("task", snap.ID),
		slog.String("name", snap.Name),
		slog.String("status", string(snap.Status)),
		slog.Int("files", len(snap.Files)),
		slog.String("size", task.FormatBytes(snap.TotalBytes)),
	)
	return nil
}

// WebhookNotifier POSTs a JSON summary of each finished task to a URL.
type WebhookNotifier struct {
	client *apihttp.Client
	url    string
	next   Notifier
}

// NewWebhookNotifier creates a WebhookNotifier. next, if not nil, is
// notified as well, whatever the webhook returns.
func NewWebhookNotifier(client *apihttp.Client, url string, next Notifier) *WebhookNotifier {
	return &WebhookNotifier{client: client, url: url, next: next}
}

// WebhookPayload is the body sent by WebhookNotifier.
type WebhookPayload struct {
	Event   string        `json:"event"`
	Subject string        `json:"subject"`
	Task    task.Snapshot `json:"task"`
}

func (n *WebhookNotifier) Notify(ctx context.Context, snap task.Snapshot) error {
	if n.next != nil {
		_ = n.next.Notify(ctx, snap)
	}

	payload := WebhookPayload{
		Event:   "task." + string(snap.Status),
		Subject: fmt.Sprintf("Download %s: %s", statusWord(snap.Status), snap.Name),
		Task:    snap,
	}
	if err := n.client.PostJSON(ctx, n.url, nil, payload, nil); err != nil {
		return fmt.Errorf("cannot post webhook: %w", err)
	}
	return nil
}

func statusWord(s task.Status) string {
	switch s {
	case task.StatusCompleted:
		return "completed successfully"
	case task.StatusCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}
