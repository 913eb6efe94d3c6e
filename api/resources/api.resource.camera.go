// FilePath: api/resources/api.resource.camera.go
package resources

import (
	"encoding/json"
	"net/http"

	nuts "github.com/vaudience/go-nuts"

	"github.com/LowellObservatory/indi-allsky/api/middleware"
	"github.com/LowellObservatory/indi-allsky/internal/errors"
	"github.com/LowellObservatory/indi-allsky/internal/models"
)

// cameraMetadata is the camera document sent by a capture node.
type cameraMetadata struct {
	ID           int64  `json:"id"`
	UUID         string `json:"uuid"`
	Name         string `json:"name"`
	FriendlyName string `json:"friendlyName"`
	CameraUUID   string `json:"camera_uuid"` // set on fetch requests
}

// CameraHandlers serves camera registration. Cameras are matched by
// uuid so a node can re-register after a rename or a database reset
// without forking its identity on the hub.
type CameraHandlers struct {
	res *Resources
}

func NewCameraHandlers(res *Resources) *CameraHandlers {
	return &CameraHandlers{res: res}
}

func (h *CameraHandlers) parseRequest(r *http.Request) (*cameraMetadata, *errors.APIError) {
	syncReq := middleware.GetSyncRequest(r)
	if syncReq == nil {
		return nil, errors.NewAuthError(errors.CodeAuthFailed, nil)
	}

	var meta cameraMetadata
	if err := json.Unmarshal(syncReq.Metadata, &meta); err != nil {
		return nil, errors.NewValidationError("malformed metadata", err)
	}
	return &meta, nil
}

// Upsert creates or updates the camera named by uuid. Create and
// replace are the same operation for cameras.
func (h *CameraHandlers) Upsert(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	meta, apiErr := h.parseRequest(r)
	if apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	if meta.UUID == "" {
		respondWithError(w, errors.NewValidationError("camera uuid is required", nil).WithRequestID(requestID))
		return
	}

	camera, err := h.res.Cameras.UpsertByUUID(r.Context(), &models.Camera{
		UUID:         meta.UUID,
		Name:         meta.Name,
		FriendlyName: meta.FriendlyName,
	})
	if err != nil {
		respondWithError(w, errors.NewDatabaseError("failed to upsert camera", err).WithRequestID(requestID))
		return
	}

	nuts.L.Infof("[syncapi] updated camera %s", camera.UUID)
	respondWithJSON(w, http.StatusOK, map[string]any{"id": camera.ID})
}

// Fetch resolves a camera by both id and uuid; a match on only one of
// the two is answered as missing.
func (h *CameraHandlers) Fetch(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	meta, apiErr := h.parseRequest(r)
	if apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	uuid := meta.CameraUUID
	if uuid == "" {
		uuid = meta.UUID
	}

	camera, err := h.res.Cameras.GetByIDAndUUID(r.Context(), meta.ID, uuid)
	if err != nil {
		respondWithError(w, errors.NewConflictError("camera_missing", err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{"id": camera.ID})
}

// Delete is not part of the protocol; cameras are never removed
// remotely.
func (h *CameraHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, errors.NewValidationError(errors.CodeNotImplemented, nil))
}
