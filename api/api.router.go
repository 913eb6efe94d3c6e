// FilePath: api/api.router.go
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/LowellObservatory/indi-allsky/api/middleware"
	"github.com/LowellObservatory/indi-allsky/api/resources"
	"github.com/LowellObservatory/indi-allsky/internal/models"
)

type Router struct {
	router    *mux.Router
	auth      *middleware.SyncAuthMiddleware
	resources *resources.Resources
}

func NewRouter(res *resources.Resources) *Router {
	r := &Router{
		router:    mux.NewRouter(),
		auth:      middleware.NewSyncAuthMiddleware(res.Users),
		resources: res,
	}

	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	// Public routes
	r.router.HandleFunc("/health", r.resources.HealthCheck).Methods(http.MethodGet)

	// Every sync route authenticates via the signed metadata part
	sync := r.router.PathPrefix("/sync/v1").Subrouter()
	sync.Use(r.auth.Authenticate)

	cameras := resources.NewCameraHandlers(r.resources)
	sync.HandleFunc("/camera", cameras.Upsert).Methods(http.MethodPost, http.MethodPut)
	sync.HandleFunc("/camera", cameras.Fetch).Methods(http.MethodGet)
	sync.HandleFunc("/camera", cameras.Delete).Methods(http.MethodDelete)

	assetRoutes := map[string]models.AssetType{
		"/image":          models.AssetImage,
		"/video":          models.AssetVideo,
		"/keogram":        models.AssetKeogram,
		"/startrail":      models.AssetStarTrail,
		"/startrailvideo": models.AssetStarTrailVideo,
		"/rawimage":       models.AssetRawImage,
		"/fitsimage":      models.AssetFitsImage,
		"/panoramaimage":  models.AssetPanoramaImage,
		"/panoramavideo":  models.AssetPanoramaVideo,
	}

	for route, assetType := range assetRoutes {
		h := resources.NewSyncHandlers(r.resources, assetType)
		sync.HandleFunc(route, h.Create).Methods(http.MethodPost)
		sync.HandleFunc(route, h.Replace).Methods(http.MethodPut)
		sync.HandleFunc(route, h.Delete).Methods(http.MethodDelete)
		sync.HandleFunc(route, h.Fetch).Methods(http.MethodGet)
	}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
