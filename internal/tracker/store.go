package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Store persists one Record per content root.
type Store interface {
	// Load returns the record of contentID. A missing or unreadable
	// document yields an empty record, not an error.
	Load(ctx context.Context, contentID string) (*Record, error)

	// Flush writes rec. Entries already stored by someone else are merged
	// into rec first, so concurrent runs against the same root never drop
	// each other's entries. Flushes of the same root are serialized.
	Flush(ctx context.Context, rec *Record) error

	// Close releases the backend.
	Close() error
}

// Open returns the Store for stateURL.
//
// Supported forms:
//   - redis://host:6379/0, rediss://...  Redis backend
//   - file:///var/lib/gofile, mem://     gocloud blob backend
//   - /var/lib/gofile                    local directory, same as file://
func Open(ctx context.Context, stateURL string, log *slog.Logger) (Store, error) {
	u, err := url.Parse(stateURL)
	if err != nil || u.Scheme == "" {
		return openDir(ctx, stateURL, log)
	}

	switch u.Scheme {
	case "redis", "rediss":
		opt, err := redis.ParseURL(stateURL)
		if err != nil {
			return nil, fmt.Errorf("cannot parse redis url: %w", err)
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("cannot connect to redis: %w", err)
		}
		return NewRedisStore(rdb, log), nil
	case "file":
		if err := os.MkdirAll(u.Path, 0755); err != nil {
			return nil, fmt.Errorf("cannot create state directory: %w", err)
		}
	}
	return OpenBlobStore(ctx, stateURL, log)
}

func openDir(ctx context.Context, dir string, log *slog.Logger) (Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve state directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("cannot create state directory: %w", err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	return OpenBlobStore(ctx, u.String(), log)
}

// rootLocks hands out one mutex per content root.
type rootLocks struct {
	m sync.Map
}

func (l *rootLocks) lock(contentID string) func() {
	v, _ := l.m.LoadOrStore(contentID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
