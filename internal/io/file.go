package ioutils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/handiism/gofile-downloader/internal/common"
)

// ResolveWithin resolves target against base and makes sure the result
// stays inside base.
//
// A relative target is joined to base; an absolute one is used as-is. The
// result is cleaned, so "a/../b" becomes "b". An empty target means base.
// Anything that escapes base yields common.ErrInvalidDirectory.
//
// The check is lexical: it does not follow symlinks.
//
// Example:
//
//	ResolveWithin("/downloads", "shows/s1")   // "/downloads/shows/s1", nil
//	ResolveWithin("/downloads", "/downloads") // "/downloads", nil
//	ResolveWithin("/downloads", "../etc")     // "", ErrInvalidDirectory
func ResolveWithin(base, target string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("%w: base directory is not set", common.ErrInvalidDirectory)
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("cannot resolve base directory: %w", err)
	}

	target = strings.TrimSpace(target)
	if target == "" {
		return base, nil
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(base, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", common.ErrInvalidDirectory, target)
	}
	return target, nil
}

// EnsureDir creates a directory and all parent directories if they don't exist.
//
// Directories are created with mode 0755 (rwxr-xr-x).
// If the directory already exists, no error is returned.
//
// Example:
//
//	err := EnsureDir(fs, "/downloads/Show/Season 1")
func EnsureDir(fs afero.Fs, path string) error {
	return fs.MkdirAll(path, 0755)
}

// FileSize returns the size of the regular file at path, or false if there
// is no such file.
func FileSize(fs afero.Fs, path string) (int64, bool) {
	info, err := fs.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return 0, false
	}
	return info.Size(), true
}

// RemoveEmptyDirs removes dir and then each parent directory while they are
// empty, stopping at stop. stop itself is removed too when it ends up empty.
// dir must be stop or below it.
func RemoveEmptyDirs(fs afero.Fs, dir, stop string) error {
	dir, stop = filepath.Clean(dir), filepath.Clean(stop)
	for {
		rel, err := filepath.Rel(stop, dir)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil
		}

		exists, err := afero.DirExists(fs, dir)
		if err != nil {
			return err
		}
		if !exists {
			if dir == stop {
				return nil
			}
			dir = filepath.Dir(dir)
			continue
		}

		empty, err := afero.IsEmpty(fs, dir)
		if err != nil {
			return err
		}
		if !empty {
			return nil
		}
		if err := fs.Remove(dir); err != nil {
			return err
		}
		if dir == stop {
			return nil
		}
		dir = filepath.Dir(dir)
	}
}

// Listing is one level of the directory browser.
type Listing struct {
	// Current is the listed directory.
	Current string `json:"current"`

	// Parent is the directory above Current, empty at the base.
	Parent string `json:"parent,omitempty"`

	// Directories holds the names of the sub-directories, sorted.
	Directories []string `json:"directories"`
}

// ListDirectories lists the sub-directories of path, which must resolve
// inside base. Hidden entries (starting with '.') are left out.
//
// Example:
//
//	l, err := ListDirectories(fs, "/downloads", "shows")
//	// l.Current == "/downloads/shows", l.Parent == "/downloads"
func ListDirectories(fs afero.Fs, base, path string) (*Listing, error) {
	dir, err := ResolveWithin(base, path)
	if err != nil {
		return nil, err
	}

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", common.ErrInvalidDirectory, dir)
		}
		return nil, fmt.Errorf("cannot list directory: %w", err)
	}

	listing := &Listing{Current: dir, Directories: []string{}}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			listing.Directories = append(listing.Directories, e.Name())
		}
	}
	sort.Strings(listing.Directories)

	if absBase, err := filepath.Abs(base); err == nil && dir != absBase {
		listing.Parent = filepath.Dir(dir)
	}
	return listing, nil
}
