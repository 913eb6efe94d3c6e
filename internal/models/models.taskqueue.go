// FilePath: internal/models/models.taskqueue.go
package models

import "time"

// TaskQueueName identifies a destination queue.
type TaskQueueName string

const (
	QueueUpload TaskQueueName = "UPLOAD"
)

// TaskState is the lifecycle state of a queue entry. Exactly one worker
// may transition an entry out of QUEUED.
type TaskState string

const (
	TaskQueued  TaskState = "QUEUED"
	TaskRunning TaskState = "RUNNING"
	TaskSuccess TaskState = "SUCCESS"
	TaskFailed  TaskState = "FAILED"
)

// TaskQueueEntry is one persisted job. Data holds the JSON-encoded
// JobPayload; StartedAt is the claim lease used by the stale reaper.
type TaskQueueEntry struct {
	ID        int64         `json:"id" db:"id"`
	Queue     TaskQueueName `json:"queue" db:"queue"`
	State     TaskState     `json:"state" db:"state"`
	Data      []byte        `json:"data" db:"data"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
	StartedAt *time.Time    `json:"started_at,omitempty" db:"started_at"`
}
