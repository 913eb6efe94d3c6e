// FilePath: api/resources/api.resource.sync.go
package resources

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/LowellObservatory/indi-allsky/api/middleware"
	"github.com/LowellObservatory/indi-allsky/internal/errors"
	"github.com/LowellObservatory/indi-allsky/internal/models"
)

// syncMetadata is the subset of the metadata document the handlers
// act on; the full document is stored verbatim on the asset row.
type syncMetadata struct {
	ID         int64   `json:"id"`
	CameraUUID string  `json:"camera_uuid"`
	FileSize   int64   `json:"file_size"`
	CreateDate float64 `json:"createDate"` // unix seconds
	DayDate    string  `json:"dayDate"`
	Night      bool    `json:"night"`
}

func (m *syncMetadata) createTime() time.Time {
	sec := int64(m.CreateDate)
	nsec := int64((m.CreateDate - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// SyncHandlers serves one asset class. Image-like classes are placed
// in hour buckets by capture time; video-like classes in flat day
// folders.
type SyncHandlers struct {
	res       *Resources
	assetType models.AssetType
}

func NewSyncHandlers(res *Resources, assetType models.AssetType) *SyncHandlers {
	return &SyncHandlers{res: res, assetType: assetType}
}

func (h *SyncHandlers) parseRequest(r *http.Request) (*syncMetadata, models.JSONMap, *errors.APIError) {
	syncReq := middleware.GetSyncRequest(r)
	if syncReq == nil {
		return nil, nil, errors.NewAuthError(errors.CodeAuthFailed, nil)
	}

	// Absent file_size must never match a media size, zero included.
	meta := syncMetadata{FileSize: -1}
	if err := json.Unmarshal(syncReq.Metadata, &meta); err != nil {
		return nil, nil, errors.NewValidationError("malformed metadata", err)
	}

	var full models.JSONMap
	if err := json.Unmarshal(syncReq.Metadata, &full); err != nil {
		return nil, nil, errors.NewValidationError("malformed metadata", err)
	}

	return &meta, full, nil
}

func (h *SyncHandlers) getCamera(r *http.Request, meta *syncMetadata) (*models.Camera, *errors.APIError) {
	camera, err := h.res.Cameras.GetByUUID(r.Context(), meta.CameraUUID)
	if err != nil {
		return nil, errors.NewValidationError(errors.CodeCameraNotFound, err)
	}
	return camera, nil
}

// saveMedia spools the media part to a temp file carrying the upload's
// extension.
func saveMedia(r *http.Request) (string, *errors.APIError) {
	media, header, err := r.FormFile("media")
	if err != nil {
		return "", errors.NewValidationError("missing media part", err)
	}
	defer media.Close()

	tmp, err := os.CreateTemp("", "sync_media_*"+filepath.Ext(header.Filename))
	if err != nil {
		return "", errors.NewInternalError("failed to create temp file", err)
	}

	if _, err := io.Copy(tmp, media); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", errors.NewInternalError("failed to spool media", err)
	}
	tmp.Close()

	return tmp.Name(), nil
}

// Create registers a new asset; an upload that lands on an existing
// path is refused so the sender can retry as a replace.
func (h *SyncHandlers) Create(w http.ResponseWriter, r *http.Request) {
	h.upsert(w, r, false)
}

// Replace is Create with permission to overwrite.
func (h *SyncHandlers) Replace(w http.ResponseWriter, r *http.Request) {
	h.upsert(w, r, true)
}

func (h *SyncHandlers) upsert(w http.ResponseWriter, r *http.Request, overwrite bool) {
	requestID := nuts.NID("req", 12)

	meta, full, apiErr := h.parseRequest(r)
	if apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	tmpFile, apiErr := saveMedia(r)
	if apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}
	// Place consumes the temp file on success; any earlier exit
	// discards it here.
	defer os.Remove(tmpFile)

	// The signature covers the metadata only; a media part whose size
	// disagrees with the signed file_size is treated as tampering.
	info, err := os.Stat(tmpFile)
	if err != nil || info.Size() != meta.FileSize {
		respondWithError(w, errors.NewAuthError(errors.CodeAuthFailed, fmt.Errorf("media size does not match metadata")).WithRequestID(requestID))
		return
	}

	camera, apiErr := h.getCamera(r, meta)
	if apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	finalPath, apiErr := h.finalPath(camera, meta, filepath.Ext(tmpFile))
	if apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	unlock := h.res.locks.Lock(finalPath)
	defer unlock()

	if _, err := os.Stat(finalPath); err == nil {
		if !overwrite {
			respondWithError(w, errors.NewConflictError(errors.CodeFileExists, nil).WithRequestID(requestID))
			return
		}

		nuts.L.Warnf("[syncapi] replacing %s", finalPath)
		if err := os.Remove(finalPath); err != nil {
			respondWithError(w, errors.NewInternalError("failed to replace file", err).WithRequestID(requestID))
			return
		}
	}

	// Either path: a row pointing at this filename is stale now.
	if err := h.res.Assets.DeleteByFilename(r.Context(), h.assetType, finalPath); err != nil && !errors.IsNotFound(err) {
		respondWithError(w, errors.NewDatabaseError("failed to clear old entry", err).WithRequestID(requestID))
		return
	}

	asset := &models.Asset{
		Type:       h.assetType,
		CameraID:   camera.ID,
		Filename:   finalPath,
		DayDate:    meta.DayDate,
		CreateDate: meta.createTime(),
		Night:      meta.Night,
		Success:    true,
		Metadata:   full,
	}
	if h.assetType.ImageLike() {
		asset.DayDate = dayDateFor(meta)
	}

	if err := h.res.Assets.Add(r.Context(), asset); err != nil {
		respondWithError(w, errors.NewDatabaseError("failed to record asset", err).WithRequestID(requestID))
		return
	}

	if err := h.res.Layout.Place(tmpFile, finalPath); err != nil {
		respondWithError(w, errors.NewInternalError("failed to place media", err).WithRequestID(requestID))
		return
	}

	nuts.L.Infof("[syncapi] stored %s %s", h.assetType, finalPath)
	respondWithJSON(w, http.StatusOK, map[string]any{
		"id":  asset.ID,
		"url": h.res.Layout.URL(finalPath),
	})
}

// Delete removes the asset row and file named by the metadata id.
func (h *SyncHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	meta, _, apiErr := h.parseRequest(r)
	if apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	camera, apiErr := h.getCamera(r, meta)
	if apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	asset, err := h.res.Assets.GetByCamera(r.Context(), h.assetType, camera.ID, meta.ID)
	if err != nil {
		respondWithError(w, errors.NewConflictError(errors.CodeFileMissing, err).WithRequestID(requestID))
		return
	}

	unlock := h.res.locks.Lock(asset.Filename)
	defer unlock()

	if err := os.Remove(asset.Filename); err != nil && !os.IsNotExist(err) {
		respondWithError(w, errors.NewInternalError("failed to delete file", err).WithRequestID(requestID))
		return
	}

	if err := h.res.Assets.Delete(r.Context(), asset.ID); err != nil {
		respondWithError(w, errors.NewDatabaseError("failed to delete entry", err).WithRequestID(requestID))
		return
	}

	nuts.L.Warnf("[syncapi] deleted %s %d (%s)", h.assetType, asset.ID, asset.Filename)
	respondWithJSON(w, http.StatusOK, map[string]any{})
}

// Fetch returns the id and local url of an existing asset.
func (h *SyncHandlers) Fetch(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	meta, _, apiErr := h.parseRequest(r)
	if apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	camera, apiErr := h.getCamera(r, meta)
	if apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	asset, err := h.res.Assets.GetByCamera(r.Context(), h.assetType, camera.ID, meta.ID)
	if err != nil {
		respondWithError(w, errors.NewConflictError(errors.CodeFileMissing, err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"id":  asset.ID,
		"url": h.res.Layout.URL(asset.Filename),
	})
}

// finalPath computes the canonical location for this upload.
func (h *SyncHandlers) finalPath(camera *models.Camera, meta *syncMetadata, ext string) (string, *errors.APIError) {
	var path string
	var err error

	if h.assetType.ImageLike() {
		path, err = h.res.Layout.ImagePath(camera, h.assetType, meta.createTime(), meta.Night, ext)
	} else {
		path, err = h.res.Layout.VideoPath(camera, h.assetType, meta.DayDate, meta.Night, ext)
	}
	if err != nil {
		return "", errors.NewInternalError("failed to resolve asset path", err)
	}
	return path, nil
}

func dayDateFor(meta *syncMetadata) string {
	if meta.DayDate != "" {
		return meta.DayDate
	}
	// Image metadata may omit dayDate; derive it from capture time.
	t := meta.createTime()
	if meta.Night {
		t = t.Add(-12 * time.Hour)
	}
	return t.Format("20060102")
}
