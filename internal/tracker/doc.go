// Package tracker remembers which files of a content root were already
// downloaded, so repeated runs only fetch what is new.
//
// # Records
//
// A Record maps remote file IDs to the name and time they were downloaded,
// and keeps every folder name seen for the root:
//
//	rec, _ := store.Load(ctx, "abc123")
//	if !rec.IsDownloaded(fileID) {
//	    // download, then
//	    rec.RecordDownload(fileID, "Show/E01.mkv")
//	    store.Flush(ctx, rec)
//	}
//
// # Renamed folders
//
// Uploaders often rename a folder to flag new content ("⭐NEW FILES in Show").
// ReconcileFolderName strips configured patterns from the current and the
// known names and, when they match, keeps using the known directory.
//
// # Backends
//
// Open picks a backend from the state URL: a gocloud blob bucket (local
// directory, file:// or mem://) or Redis (redis://).
package tracker
