package tracker

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// FileEntry is what is remembered about one downloaded file.
type FileEntry struct {
	Name         string    `json:"name"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// Record is the incremental-sync state of one content root.
//
// A Record only grows during a run: entries are added, never changed or
// removed. It is safe for concurrent use.
type Record struct {
	mu sync.Mutex

	contentID string
	files     map[string]FileEntry
	folders   []string
	updatedAt time.Time
	now       func() time.Time
}

// document is the persisted JSON form of a Record.
type document struct {
	ContentID string               `json:"content_id"`
	Files     map[string]FileEntry `json:"files"`
	Folders   []string             `json:"folders"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// NewRecord returns an empty record for contentID.
func NewRecord(contentID string) *Record {
	return &Record{
		contentID: contentID,
		files:     make(map[string]FileEntry),
		now:       time.Now,
	}
}

// ContentID returns the content root the record belongs to.
func (r *Record) ContentID() string {
	return r.contentID
}

// IsDownloaded reports whether fileID was recorded. Names play no part, so a
// renamed file is still considered downloaded.
func (r *Record) IsDownloaded(fileID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.files[fileID]
	return ok
}

// RecordDownload marks fileID as downloaded under name. An existing entry
// is kept as-is.
func (r *Record) RecordDownload(fileID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[fileID]; ok {
		return
	}
	r.files[fileID] = FileEntry{Name: name, DownloadedAt: r.now().UTC()}
}

// Len returns the number of recorded files.
func (r *Record) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}

// Files returns a copy of the recorded files.
func (r *Record) Files() map[string]FileEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	files := make(map[string]FileEntry, len(r.files))
	for id, e := range r.files {
		files[id] = e
	}
	return files
}

// Folders returns the folder names seen so far, oldest first.
func (r *Record) Folders() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.folders...)
}

// RememberFolder adds name to the known folder names.
func (r *Record) RememberFolder(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rememberFolder(name)
}

func (r *Record) rememberFolder(name string) {
	for _, f := range r.folders {
		if f == name {
			return
		}
	}
	r.folders = append(r.folders, name)
}

// ReconcileFolderName returns the local name to use for a folder currently
// called candidate.
//
// The first pattern that matches is stripped from candidate and from every
// known folder name (see StripPattern). When the stripped forms are equal,
// the known name is returned so the existing directory is reused. Otherwise
// candidate is returned unchanged. An exact match always wins.
//
// Example:
//
//	rec.RememberFolder("⭐NEW FILES in Show S1 [10]")
//	rec.ReconcileFolderName([]string{"⭐NEW FILES in ", "⭐"}, "Show S1 [10]")
//	// Returns "⭐NEW FILES in Show S1 [10]"
func (r *Record) ReconcileFolderName(patterns []string, candidate string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range r.folders {
		if f == candidate {
			return candidate
		}
	}
	if len(patterns) == 0 {
		return candidate
	}

	want := StripPattern(patterns, candidate)
	if want == "" {
		return candidate
	}
	for _, f := range r.folders {
		if StripPattern(patterns, f) == want {
			return f
		}
	}
	return candidate
}

// StripPattern removes the first matching pattern from name and trims the
// result.
//
// A plain pattern is a literal prefix. A pattern starting with '*' matches
// its remainder anywhere in name, and everything up to the end of the first
// occurrence is removed. Empty patterns are ignored.
//
// Example:
//
//	StripPattern([]string{"⭐NEW FILES in "}, "⭐NEW FILES in Show")  // "Show"
//	StripPattern([]string{"*FILES in "}, "[2024] NEW FILES in Show")  // "Show"
func StripPattern(patterns []string, name string) string {
	for _, p := range patterns {
		if rest, ok := strings.CutPrefix(p, "*"); ok {
			if rest == "" {
				continue
			}
			if i := strings.Index(name, rest); i >= 0 {
				return strings.TrimSpace(name[i+len(rest):])
			}
			continue
		}
		if p == "" {
			continue
		}
		if strings.HasPrefix(name, p) {
			return strings.TrimSpace(name[len(p):])
		}
	}
	return strings.TrimSpace(name)
}

// merge adds every entry of other that r does not have yet.
func (r *Record) merge(other *document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range other.Files {
		if _, ok := r.files[id]; !ok {
			r.files[id] = e
		}
	}
	for _, f := range other.Folders {
		r.rememberFolder(f)
	}
}

func (r *Record) marshal() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updatedAt = r.now().UTC()
	return json.MarshalIndent(document{
		ContentID: r.contentID,
		Files:     r.files,
		Folders:   r.folders,
		UpdatedAt: r.updatedAt,
	}, "", "  ")
}

func decodeDocument(data []byte) (*document, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cannot decode tracker document: %w", err)
	}
	return &doc, nil
}

func recordFromDocument(contentID string, doc *document) *Record {
	rec := NewRecord(contentID)
	rec.merge(doc)
	rec.updatedAt = doc.UpdatedAt
	return rec
}
