// FilePath: internal/models/models.asset.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AssetType discriminates the asset classes produced by the capture
// pipeline. The string values double as sync endpoint names.
type AssetType string

const (
	AssetImage          AssetType = "image"
	AssetVideo          AssetType = "video"
	AssetKeogram        AssetType = "keogram"
	AssetStarTrail      AssetType = "startrail"
	AssetStarTrailVideo AssetType = "startrailvideo"
	AssetRawImage       AssetType = "rawimage"
	AssetFitsImage      AssetType = "fitsimage"
	AssetPanoramaImage  AssetType = "panoramaimage"
	AssetPanoramaVideo  AssetType = "panoramavideo"
)

// ImageLike reports whether the asset class uses the partitioned
// camera/day/night/hour directory layout.
func (t AssetType) ImageLike() bool {
	switch t {
	case AssetImage, AssetRawImage, AssetFitsImage, AssetPanoramaImage:
		return true
	}
	return false
}

// Valid reports whether t is one of the known asset classes.
func (t AssetType) Valid() bool {
	switch t {
	case AssetImage, AssetVideo, AssetKeogram, AssetStarTrail,
		AssetStarTrailVideo, AssetRawImage, AssetFitsImage,
		AssetPanoramaImage, AssetPanoramaVideo:
		return true
	}
	return false
}

// JSONMap is an arbitrary metadata blob stored as a JSON column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = JSONMap{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported JSONMap source type %T", src)
	}
}

// Asset is the persisted record of one capture-pipeline artifact.
// Filename is the absolute local path and is unique per row; a replace
// operation must reconcile to exactly one live row per path.
type Asset struct {
	ID         int64     `json:"id" db:"id"`
	Type       AssetType `json:"type" db:"type"`
	CameraID   int64     `json:"camera_id" db:"camera_id"`
	Filename   string    `json:"filename" db:"filename"`
	DayDate    string    `json:"day_date" db:"day_date"` // YYYYMMDD logical capture day
	CreateDate time.Time `json:"create_date" db:"create_date"`
	Night      bool      `json:"night" db:"night"`
	Success    bool      `json:"success" db:"success"`
	RemoteURL  string    `json:"remote_url" db:"remote_url"`
	S3Key      string    `json:"s3_key" db:"s3_key"`
	Metadata   JSONMap   `json:"metadata" db:"metadata"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
