package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "gofile:tracker:"

	// maxTxRetries bounds optimistic transaction retries on contention.
	maxTxRetries = 10
)

// RedisStore keeps each record as a JSON string under gofile:tracker:<id>.
//
// Flushes are serialized in-process with a per-root lock and across
// processes with WATCH/MULTI, so several downloaders can share one Redis.
type RedisStore struct {
	rdb   *redis.Client
	locks rootLocks
	log   *slog.Logger
}

// NewRedisStore creates a store on an existing client. The store takes
// ownership of the client.
func NewRedisStore(rdb *redis.Client, log *slog.Logger) *RedisStore {
	return &RedisStore{
		rdb: rdb,
		log: log.With(slog.String("component", "tracker"), slog.String("backend", "redis")),
	}
}

func redisKey(contentID string) string {
	return keyPrefix + contentID
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, contentID string) (*Record, error) {
	data, err := s.rdb.Get(ctx, redisKey(contentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewRecord(contentID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot get tracker document: %w", err)
	}

	doc, err := decodeDocument(data)
	if err != nil {
		s.log.Warn("Tracker document is corrupt, starting fresh",
			slog.String("content", contentID), slog.Any("error", err))
		return NewRecord(contentID), nil
	}
	return recordFromDocument(contentID, doc), nil
}

// Flush implements Store.
func (s *RedisStore) Flush(ctx context.Context, rec *Record) error {
	unlock := s.locks.lock(rec.ContentID())
	defer unlock()

	key := redisKey(rec.ContentID())
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if doc, derr := decodeDocument(data); derr == nil {
				rec.merge(doc)
			}
		}

		out, err := rec.marshal()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("cannot write tracker document: %w", err)
		}
		return nil
	}
	return fmt.Errorf("cannot write tracker document: too much contention on %s", key)
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
