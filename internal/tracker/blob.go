package tracker

import (
	"context"
	"fmt"
	"log/slog"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// buckets
	_ "gocloud.dev/blob/memblob"  // mem:// buckets
	"gocloud.dev/gcerrors"
)

// BlobStore keeps each record as <contentID>.json in a gocloud bucket.
// Writes become visible only when the writer is closed, so readers never
// see a half-written document.
type BlobStore struct {
	bucket *blob.Bucket
	locks  rootLocks
	log    *slog.Logger
}

// OpenBlobStore opens the bucket at bucketURL.
func OpenBlobStore(ctx context.Context, bucketURL string, log *slog.Logger) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("cannot open state bucket: %w", err)
	}
	return NewBlobStore(bucket, log), nil
}

// NewBlobStore wraps an open bucket. The store takes ownership of it.
func NewBlobStore(bucket *blob.Bucket, log *slog.Logger) *BlobStore {
	return &BlobStore{
		bucket: bucket,
		log:    log.With(slog.String("component", "tracker"), slog.String("backend", "blob")),
	}
}

func blobKey(contentID string) string {
	return contentID + ".json"
}

// Load implements Store.
func (s *BlobStore) Load(ctx context.Context, contentID string) (*Record, error) {
	doc, err := s.read(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return NewRecord(contentID), nil
	}
	return recordFromDocument(contentID, doc), nil
}

// read returns nil without error when the document is missing or corrupt.
func (s *BlobStore) read(ctx context.Context, contentID string) (*document, error) {
	data, err := s.bucket.ReadAll(ctx, blobKey(contentID))
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read tracker document: %w", err)
	}

	doc, err := decodeDocument(data)
	if err != nil {
		s.log.Warn("Tracker document is corrupt, starting fresh",
			slog.String("content", contentID), slog.Any("error", err))
		return nil, nil
	}
	return doc, nil
}

// Flush implements Store.
func (s *BlobStore) Flush(ctx context.Context, rec *Record) error {
	unlock := s.locks.lock(rec.ContentID())
	defer unlock()

	stored, err := s.read(ctx, rec.ContentID())
	if err != nil {
		return err
	}
	if stored != nil {
		rec.merge(stored)
	}

	data, err := rec.marshal()
	if err != nil {
		return fmt.Errorf("cannot encode tracker document: %w", err)
	}

	err = s.bucket.WriteAll(ctx, blobKey(rec.ContentID()), data, &blob.WriterOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("cannot write tracker document: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *BlobStore) Close() error {
	return s.bucket.Close()
}
