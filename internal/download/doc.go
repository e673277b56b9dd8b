// Package download orchestrates GoFile downloads.
//
// # Manager
//
// The Manager owns one task.Task per start request and drives it through
// its life:
//
//  1. Resolve the link into a content tree
//  2. Load the tracker record of the content root
//  3. Flatten the tree into file jobs, reconciling renamed folders when
//     incremental sync is on
//  4. Download the files on a bounded worker pool
//  5. Record each finished file and flush the tracker record
//  6. Move the task to completed, error or cancelled and notify
//
// # Basic Usage
//
//	manager := download.NewManager(cfg, resolver, worker, store, fs, log, func(event download.ProgressEvent) {
//	    fmt.Println(event.Message)
//	})
//
//	req := manager.NewRequest()
//	req.URL = "https://gofile.io/d/abc123"
//	id, err := manager.Start(ctx, req)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	manager.Wait()
//
// # Concurrency
//
// Config.Workers limits the transfers of one task and, through a shared
// semaphore, the transfers of all tasks together. Each task is locked on
// its own; operations on one task never wait for another.
//
// # Control
//
// Pause takes effect at file boundaries: transfers already running finish,
// no new ones start. Cancel is observed by running transfers within one
// chunk. Delete and Remove act on finished tasks and on the registry.
//
// # Progress Tracking
//
// Progress is reported via a callback function that receives ProgressEvent:
//
//	type ProgressEvent struct {
//	    TaskID  string
//	    Message string
//	    Level   ProgressLevel // Info, Verbose, Warning, Error, Success
//	}
//
// Detailed per-file progress is read from task snapshots (Manager.Tasks).
//
// # Notifications
//
// A Notifier is called once per task when it reaches a final state. The
// default LogNotifier logs it; WebhookNotifier also POSTs it as JSON.
package download
