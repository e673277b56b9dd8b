// Package ioutils provides file system helpers for the downloader.
//
// This package contains functions for:
//   - Confining user supplied paths to the download base directory
//   - Directory creation and cleanup
//   - Read-only directory browsing
//
// Every function takes an afero.Fs, so callers use afero.NewOsFs() in
// production and afero.NewMemMapFs() in tests.
package ioutils
