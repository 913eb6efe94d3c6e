// FilePath: api/middleware/api.middleware.syncauth.go

// Package middleware carries the sync API request middleware. The
// authentication scheme is a shared-key HMAC over the raw metadata
// part; auth failures never reveal which check failed.
package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/LowellObservatory/indi-allsky/internal/errors"
	"github.com/LowellObservatory/indi-allsky/internal/repository"
	"github.com/LowellObservatory/indi-allsky/internal/syncauth"
)

// maxMultipartMemory bounds the in-memory portion of a parsed upload;
// larger media parts spill to temp files.
const maxMultipartMemory = 32 << 20

type contextKey string

const syncRequestKey contextKey = "sync_request"

// SyncRequest is what authentication leaves behind for the handlers:
// the verified account and the exact metadata bytes the signature
// covered.
type SyncRequest struct {
	Username string
	Metadata []byte
}

// GetSyncRequest returns the authenticated request info, or nil when
// the request did not pass through Authenticate.
func GetSyncRequest(r *http.Request) *SyncRequest {
	req, _ := r.Context().Value(syncRequestKey).(*SyncRequest)
	return req
}

// SyncAuthMiddleware verifies the HMAC on every sync request.
type SyncAuthMiddleware struct {
	users repository.SyncUserRepository
	now   func() time.Time
}

func NewSyncAuthMiddleware(users repository.SyncUserRepository) *SyncAuthMiddleware {
	return &SyncAuthMiddleware{users: users, now: time.Now}
}

// Authenticate parses the multipart body, verifies the signature over
// the raw metadata part and stashes the result in the context. Every
// failure path answers the same way.
func (m *SyncAuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, signature, err := syncauth.ParseHeader(r.Header.Get("Authorization"))
		if err != nil {
			m.reject(w, err)
			return
		}

		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			m.reject(w, err)
			return
		}

		metadataBytes, err := readMetadataPart(r)
		if err != nil {
			m.reject(w, err)
			return
		}

		user, err := m.users.GetByUsername(r.Context(), username)
		if err != nil {
			m.reject(w, err)
			return
		}

		if !syncauth.Verify(user.APIKey, m.now(), metadataBytes, signature) {
			m.reject(w, nil)
			return
		}

		syncReq := &SyncRequest{Username: username, Metadata: metadataBytes}
		ctx := context.WithValue(r.Context(), syncRequestKey, syncReq)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *SyncAuthMiddleware) reject(w http.ResponseWriter, err error) {
	handleError(w, errors.NewAuthError(errors.CodeAuthFailed, err))
}

func readMetadataPart(r *http.Request) ([]byte, error) {
	part, _, err := r.FormFile("metadata")
	if err != nil {
		return nil, err
	}
	defer part.Close()

	return io.ReadAll(part)
}

// handleError answers the protocol failure body {"error": <code>}.
func handleError(w http.ResponseWriter, apiErr *errors.APIError) {
	nuts.L.Errorf("[syncapi] %s", apiErr.Error())

	body, err := json.Marshal(map[string]any{"error": apiErr.Message})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Code)
	w.Write(body)
}
