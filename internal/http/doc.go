// Package http provides the HTTP client used for GoFile API calls and file
// downloads.
//
// The Client in this package handles:
//   - User-Agent headers
//   - JSON requests with status and decode error mapping
//   - Ranged streaming for resumable downloads
//   - Timeout handling
//
// # Basic Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	// Fetch the site bootstrap script
//	script, err := client.GetString(ctx, "https://gofile.io/dist/js/config.js")
//
//	// Decode an API response
//	var env dto.Envelope
//	err = client.GetJSON(ctx, apiURL, header, &env)
//
// # Errors
//
// Failures map onto internal/common:
//
//	errors.Is(err, common.ErrNetwork)  // transport error, 5xx, 408, 429
//	errors.Is(err, common.ErrNotFound) // 404, 410
//	errors.Is(err, common.ErrAuth)     // 401, 403
//	errors.Is(err, common.ErrAPI)      // body is not the expected JSON
//
// *StatusError carries the status code for callers that need it.
//
// # Progress Tracking
//
// The ProgressWriter type can be used to wrap any io.Writer for progress tracking:
//
//	pw := &http.ProgressWriter{
//	    Writer:   file,
//	    Total:    size,
//	    OnUpdate: func(written, total int64) { /* update UI */ },
//	}
package http
