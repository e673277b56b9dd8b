// Package web is the HTTP adapter of the download manager: a small JSON
// API, the dashboard page that polls it, and a help page rendered from
// embedded Markdown.
//
// Handlers only translate between HTTP and download.Manager calls. Errors
// are mapped with errors.Is: unknown tasks give 404, state conflicts 409
// and invalid input 400.
package web
