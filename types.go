package reach

import (
	"fmt"
	"strings"
	"time"
)

// Profile is a snapshot of an account as the provider reported it.
type Profile struct {
	ID             int64  `json:"user_id"`
	Handle         string `json:"username"`
	DisplayName    string `json:"full_name"`
	FollowerCount  int    `json:"follower_count"`
	FollowingCount int    `json:"following_count"`
	Private        bool   `json:"is_private"`
}

// ResultItem is an account that passed the follower threshold, tagged with
// the hop distance (1-based) at which it was discovered.
type ResultItem struct {
	Handle         string `json:"username"`
	DisplayName    string `json:"full_name"`
	FollowerCount  int    `json:"follower_count"`
	FollowingCount int    `json:"following_count"`
	Private        bool   `json:"is_private"`
	Depth          int    `json:"depth"`
}

func newResultItem(p Profile, depth int) ResultItem {
	return ResultItem{
		Handle:         p.Handle,
		DisplayName:    p.DisplayName,
		FollowerCount:  p.FollowerCount,
		FollowingCount: p.FollowingCount,
		Private:        p.Private,
		Depth:          depth,
	}
}

// NormalizeHandle returns the lookup form of a handle: trimmed, without a
// leading "@", lower-cased.
func NormalizeHandle(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is the durable record of one traversal request.
type Job struct {
	ID           string       `json:"job_id"`
	Status       JobStatus    `json:"status"`
	Target       string       `json:"target_username"`
	Depth        int          `json:"depth"`
	MinFollowers int          `json:"min_followers"`
	Results      []ResultItem `json:"results"`
	Progress     string       `json:"progress,omitempty"`
	Error        string       `json:"error,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// ProgressEvent is emitted once per node the traversal starts exploring.
type ProgressEvent struct {
	Handle string
	Depth  int
}

func (e ProgressEvent) String() string {
	return fmt.Sprintf("Analyzing %s at depth %d", e.Handle, e.Depth)
}

const (
	progressQueued = "Job created, waiting to start"
	progressFormat = "Completed: found %d accounts"
)
