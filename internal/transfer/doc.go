// Package transfer downloads single files for the orchestrator.
//
// A transfer streams into "<name>.part" and renames it on success. A
// failed attempt leaves the part file behind and the next attempt resumes
// it with a Range request; a cancelled transfer removes it.
//
// Throttling uses a token bucket from golang.org/x/time/rate sized to one
// chunk, so over any window of T seconds at most ThrottleKBs*1024*T bytes
// plus one chunk are written.
package transfer
