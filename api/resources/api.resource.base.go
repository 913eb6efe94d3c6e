// FilePath: api/resources/api.resource.base.go

// Package resources implements the sync API HTTP handlers. All
// protocol-level failures answer 400 with {"error": <code>}; remote
// nodes switch on the code, not the status.
package resources

import (
	"encoding/json"
	"net/http"
	"sync"

	nuts "github.com/vaudience/go-nuts"

	"github.com/LowellObservatory/indi-allsky/internal/config"
	"github.com/LowellObservatory/indi-allsky/internal/errors"
	"github.com/LowellObservatory/indi-allsky/internal/repository"
	"github.com/LowellObservatory/indi-allsky/internal/storage"
)

// Resources bundles the dependencies shared by all sync handlers.
type Resources struct {
	Cameras repository.CameraRepository
	Assets  repository.AssetRepository
	Users   repository.SyncUserRepository
	Layout  *storage.Layout
	Config  *config.Config

	locks *pathLocks
}

func NewResources(cameras repository.CameraRepository, assets repository.AssetRepository, users repository.SyncUserRepository, layout *storage.Layout, cfg *config.Config) *Resources {
	return &Resources{
		Cameras: cameras,
		Assets:  assets,
		Users:   users,
		Layout:  layout,
		Config:  cfg,
		locks:   newPathLocks(),
	}
}

// HealthCheck reports liveness.
func (res *Resources) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// pathLocks serializes create/replace/delete per target path, so two
// concurrent replace requests for the same file cannot interleave
// their exists-check with the other's unlink.
type pathLocks struct {
	mu    sync.Mutex
	paths map[string]*pathLock
}

type pathLock struct {
	mu   sync.Mutex
	refs int
}

func newPathLocks() *pathLocks {
	return &pathLocks{paths: make(map[string]*pathLock)}
}

// Lock acquires the lock for path and returns its release func.
func (l *pathLocks) Lock(path string) func() {
	l.mu.Lock()
	pl, ok := l.paths[path]
	if !ok {
		pl = &pathLock{}
		l.paths[path] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.mu.Lock()

	return func() {
		pl.mu.Unlock()

		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.paths, path)
		}
		l.mu.Unlock()
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		nuts.L.Errorf("[syncapi] failed to marshal response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, apiErr *errors.APIError) {
	nuts.L.Errorf("[syncapi] %s", apiErr.Error())

	body := map[string]any{"error": apiErr.Message}
	if apiErr.RequestID != "" {
		body["request_id"] = apiErr.RequestID
	}
	respondWithJSON(w, apiErr.Code, body)
}
