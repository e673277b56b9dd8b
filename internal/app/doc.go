// Package app builds the process: it loads settings, sets up logging and
// the tracker store, and connects the resolver, transfer worker, download
// manager and web server. The commands under cmd/ are thin wrappers
// around it.
package app
