// Package common holds the error values shared across the downloader.
//
// Callers match on these with errors.Is. Packages wrap them with context,
// e.g. fmt.Errorf("%w: folder %s", common.ErrNotFound, id).
package common

import "errors"

// Remote resolution errors.
var (
	ErrAuth              = errors.New("authentication failed")
	ErrNotFound          = errors.New("content not found")
	ErrPasswordRequired  = errors.New("password required")
	ErrPasswordIncorrect = errors.New("password incorrect")
	ErrAPI               = errors.New("unexpected api response")
	ErrInvalidURL        = errors.New("invalid content link")
)

// Transfer errors.
var (
	ErrNetwork   = errors.New("network error")
	ErrIO        = errors.New("local io error")
	ErrCancelled = errors.New("cancelled")
)

// Task errors.
var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrTaskFinished     = errors.New("task already finished")
	ErrTaskNotFinished  = errors.New("task is still active")
	ErrInvalidDirectory = errors.New("directory outside of base directory")
)
