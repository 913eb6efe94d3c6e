// FilePath: internal/models/models.job.go
package models

import (
	"encoding/json"
	"fmt"
)

// JobAction tags the JobPayload variant.
type JobAction string

const (
	ActionUpload  JobAction = "upload"
	ActionMQTTPub JobAction = "mqttpub"
	ActionS3      JobAction = "s3"
	ActionSyncV1  JobAction = "syncv1"
)

// JobPayload is the opaque variant record carried by a TaskQueueEntry.
// Which fields are meaningful depends on Action:
//
//	upload:  Model, ID, AssetType, RemoteFile, RemoveLocal
//	mqttpub: LocalFile, Metadata, AssetType
//	s3:      Model, ID, AssetType, Metadata
//	syncv1:  Model, ID, AssetType, Metadata
//
// Model+ID must resolve to exactly one asset row at execution time;
// if not, the job fails permanently.
type JobPayload struct {
	Action      JobAction `json:"action"`
	Model       AssetType `json:"model,omitempty"`
	ID          int64     `json:"id,omitempty"`
	AssetType   AssetType `json:"asset_type,omitempty"`
	RemoteFile  string    `json:"remote_file,omitempty"`
	LocalFile   string    `json:"local_file,omitempty"`
	RemoveLocal bool      `json:"remove_local,omitempty"`
	Metadata    JSONMap   `json:"metadata,omitempty"`
}

// Encode serializes the payload for the task queue data column.
func (p *JobPayload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// DecodeJobPayload parses a task queue data column back into a payload
// and validates the action tag.
func DecodeJobPayload(data []byte) (*JobPayload, error) {
	var p JobPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("malformed job payload: %w", err)
	}
	switch p.Action {
	case ActionUpload, ActionMQTTPub, ActionS3, ActionSyncV1:
		return &p, nil
	default:
		return nil, fmt.Errorf("unknown job action %q", p.Action)
	}
}
