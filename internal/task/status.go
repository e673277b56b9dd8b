package task

// Status is the lifecycle state of a Task.
//
//	running -> paused -> running
//	running|paused -> completed|error|cancelled
//
// completed, error and cancelled are final.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// IsFinished reports whether s is a final state.
func (s Status) IsFinished() bool {
	switch s {
	case StatusCompleted, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether work may still happen in state s.
func (s Status) IsActive() bool {
	return s == StatusRunning || s == StatusPaused
}

// FileStatus is the state of one file of a Task.
type FileStatus string

const (
	FilePending     FileStatus = "pending"
	FileDownloading FileStatus = "downloading"
	FileCompleted   FileStatus = "completed"
	FileSkipped     FileStatus = "skipped"
	FileFailed      FileStatus = "failed"
	FileCancelled   FileStatus = "cancelled"
)

// IsDone reports whether the file's bytes are all on disk.
func (s FileStatus) IsDone() bool {
	return s == FileCompleted || s == FileSkipped
}

// IsFinished reports whether no more progress will be made on the file.
func (s FileStatus) IsFinished() bool {
	return s.IsDone() || s == FileFailed || s == FileCancelled
}
