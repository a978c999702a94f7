package entities

import "time"

// BuildRequest describes a build to run
type BuildRequest struct {
	Branch     string
	Commit     string
	Pusher     string
	Message    string
	Descriptor string // descriptor revision; empty selects the configured default
	BuildType  string
}

// BuildStatus is the lifecycle state of a build job
type BuildStatus string

// Build job states
const (
	BuildQueued    BuildStatus = "queued"
	BuildRunning   BuildStatus = "running"
	BuildSucceeded BuildStatus = "succeeded"
	BuildFailed    BuildStatus = "failed"
)

// Done reports whether the status is terminal
func (s BuildStatus) Done() bool {
	return s == BuildSucceeded || s == BuildFailed
}

// BuildJob is a queued or completed build
type BuildJob struct {
	ID         string
	Request    BuildRequest
	Status     BuildStatus
	QueuedAt   time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	LogPath    string
	Artifacts  []Artifact
	Error      string
}
