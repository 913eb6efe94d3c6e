// FilePath: api/api.router_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LowellObservatory/indi-allsky/api/resources"
	"github.com/LowellObservatory/indi-allsky/internal/config"
	"github.com/LowellObservatory/indi-allsky/internal/database"
	"github.com/LowellObservatory/indi-allsky/internal/models"
	"github.com/LowellObservatory/indi-allsky/internal/repository/sqldb"
	"github.com/LowellObservatory/indi-allsky/internal/storage"
	"github.com/LowellObservatory/indi-allsky/internal/syncauth"
	"github.com/LowellObservatory/indi-allsky/internal/syncclient"
)

const (
	testUsername = "node1"
	testAPIKey   = "0123456789abcdef"
	testCamUUID  = "11111111-2222-3333-4444-555555555555"
)

type testHub struct {
	router  *Router
	baseDir string
	db      database.DB
}

func newTestHub(t *testing.T) *testHub {
	t.Helper()

	db, err := database.NewSQLiteDB(filepath.Join(t.TempDir(), "hub.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.InitSchema(db))

	require.NoError(t, sqldb.NewSyncUserRepository(db).Create(context.Background(), &models.SyncUser{
		Username: testUsername,
		APIKey:   testAPIKey,
	}))

	baseDir := t.TempDir()
	layout, err := storage.NewLayout(baseDir)
	require.NoError(t, err)

	res := resources.NewResources(
		sqldb.NewCameraRepository(db),
		sqldb.NewAssetRepository(db),
		sqldb.NewSyncUserRepository(db),
		layout,
		&config.Config{},
	)

	return &testHub{router: NewRouter(res), baseDir: baseDir, db: db}
}

// signedRequest builds a multipart request whose metadata part is
// signed the way a capture node signs it.
func signedRequest(t *testing.T, method, path string, metadata map[string]any, media []byte, mediaName string) *http.Request {
	t.Helper()

	metadataBytes, err := json.Marshal(metadata)
	require.NoError(t, err)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("metadata", "metadata.json")
	require.NoError(t, err)
	_, err = part.Write(metadataBytes)
	require.NoError(t, err)

	if media != nil {
		part, err = writer.CreateFormFile("media", mediaName)
		require.NoError(t, err)
		_, err = part.Write(media)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	signature := syncauth.Sign(testAPIKey, time.Now(), metadataBytes)
	req.Header.Set("Authorization", syncauth.Header(testUsername, signature))
	return req
}

func (h *testHub) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (h *testHub) registerCamera(t *testing.T) int64 {
	t.Helper()
	rec := h.do(signedRequest(t, http.MethodPost, "/sync/v1/camera", map[string]any{
		"uuid": testCamUUID,
		"name": "testcam",
	}, nil, ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return int64(decodeBody(t, rec)["id"].(float64))
}

var imageCapture = time.Date(2024, 3, 16, 3, 15, 42, 0, time.UTC)

func imageMetadata(id int64, size int) map[string]any {
	return map[string]any{
		"id":          id,
		"camera_uuid": testCamUUID,
		"file_size":   size,
		"createDate":  float64(imageCapture.Unix()),
		"night":       true,
	}
}

// expectedImagePath mirrors the hub layout for the test capture: the
// camera/day/night/hour tree keyed by the capture time in the server's
// local zone.
func expectedImagePath(baseDir string) string {
	local := time.Unix(imageCapture.Unix(), 0)
	return filepath.Join(baseDir,
		"ccd_"+testCamUUID,
		local.Add(-12*time.Hour).Format("20060102"),
		"night",
		local.Format("02_15"),
		"ccd1_"+local.Format("20060102_150405")+".jpg")
}

func TestHealthIsPublic(t *testing.T) {
	hub := newTestHub(t)
	rec := hub.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCameraUpsertAndFetch(t *testing.T) {
	hub := newTestHub(t)
	cameraID := hub.registerCamera(t)

	// re-registering by uuid keeps the id stable
	rec := hub.do(signedRequest(t, http.MethodPut, "/sync/v1/camera", map[string]any{
		"uuid": testCamUUID,
		"name": "renamed",
	}, nil, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(cameraID), decodeBody(t, rec)["id"])

	rec = hub.do(signedRequest(t, http.MethodGet, "/sync/v1/camera", map[string]any{
		"id":          cameraID,
		"camera_uuid": testCamUUID,
	}, nil, ""))
	require.Equal(t, http.StatusOK, rec.Code)

	// a fetch with mismatched identity answers camera_missing
	rec = hub.do(signedRequest(t, http.MethodGet, "/sync/v1/camera", map[string]any{
		"id":          cameraID,
		"camera_uuid": "other-uuid",
	}, nil, ""))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "camera_missing", decodeBody(t, rec)["error"])
}

func TestCameraDeleteIsNotImplemented(t *testing.T) {
	hub := newTestHub(t)
	hub.registerCamera(t)

	rec := hub.do(signedRequest(t, http.MethodDelete, "/sync/v1/camera", map[string]any{
		"uuid": testCamUUID,
	}, nil, ""))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "not_implemented", decodeBody(t, rec)["error"])
}

func TestImageCreatePlacesFile(t *testing.T) {
	hub := newTestHub(t)
	hub.registerCamera(t)

	media := []byte("jpeg bytes")
	rec := hub.do(signedRequest(t, http.MethodPost, "/sync/v1/image",
		imageMetadata(1, len(media)), media, "frame.jpg"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.NotZero(t, body["id"])

	// night capture at 03:15 files under the previous calendar day
	data, err := os.ReadFile(expectedImagePath(hub.baseDir))
	require.NoError(t, err)
	assert.Equal(t, media, data)
}

func TestImageCreateConflictThenReplace(t *testing.T) {
	hub := newTestHub(t)
	hub.registerCamera(t)

	media := []byte("first upload")
	rec := hub.do(signedRequest(t, http.MethodPost, "/sync/v1/image",
		imageMetadata(1, len(media)), media, "frame.jpg"))
	require.Equal(t, http.StatusOK, rec.Code)

	// the same capture posted again is refused
	rec = hub.do(signedRequest(t, http.MethodPost, "/sync/v1/image",
		imageMetadata(1, len(media)), media, "frame.jpg"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "file_exists", decodeBody(t, rec)["error"])

	// PUT overwrites bytes and row
	replacement := []byte("second upload!")
	rec = hub.do(signedRequest(t, http.MethodPut, "/sync/v1/image",
		imageMetadata(1, len(replacement)), replacement, "frame.jpg"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data, err := os.ReadFile(expectedImagePath(hub.baseDir))
	require.NoError(t, err)
	assert.Equal(t, replacement, data)
}

func TestMediaSizeMismatchIsAuthFailure(t *testing.T) {
	hub := newTestHub(t)
	hub.registerCamera(t)

	media := []byte("some bytes")
	rec := hub.do(signedRequest(t, http.MethodPost, "/sync/v1/image",
		imageMetadata(1, len(media)+5), media, "frame.jpg"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "authentication failed", decodeBody(t, rec)["error"])
}

func TestBadSignatureRejected(t *testing.T) {
	hub := newTestHub(t)
	hub.registerCamera(t)

	media := []byte("x")
	req := signedRequest(t, http.MethodPost, "/sync/v1/image",
		imageMetadata(1, len(media)), media, "frame.jpg")
	req.Header.Set("Authorization", syncauth.Header(testUsername, "deadbeef"))

	rec := hub.do(req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "authentication failed", decodeBody(t, rec)["error"])
}

func TestUnknownUserRejected(t *testing.T) {
	hub := newTestHub(t)
	hub.registerCamera(t)

	media := []byte("x")
	req := signedRequest(t, http.MethodPost, "/sync/v1/image",
		imageMetadata(1, len(media)), media, "frame.jpg")
	sig := syncauth.Sign(testAPIKey, time.Now(), []byte("{}"))
	req.Header.Set("Authorization", syncauth.Header("ghost", sig))

	rec := hub.do(req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "authentication failed", decodeBody(t, rec)["error"])
}

func TestUnknownCameraRejected(t *testing.T) {
	hub := newTestHub(t)

	media := []byte("x")
	rec := hub.do(signedRequest(t, http.MethodPost, "/sync/v1/image",
		imageMetadata(1, len(media)), media, "frame.jpg"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "camera not found", decodeBody(t, rec)["error"])
}

func TestVideoCreateUsesFlatDayFolder(t *testing.T) {
	hub := newTestHub(t)
	hub.registerCamera(t)

	media := []byte("mp4 bytes")
	rec := hub.do(signedRequest(t, http.MethodPost, "/sync/v1/video", map[string]any{
		"id":          1,
		"camera_uuid": testCamUUID,
		"file_size":   len(media),
		"createDate":  float64(time.Date(2024, 3, 16, 7, 0, 0, 0, time.UTC).Unix()),
		"dayDate":     "20240315",
		"night":       true,
	}, media, "timelapse.mp4"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	expected := filepath.Join(hub.baseDir,
		"ccd_"+testCamUUID, "20240315", "allsky-timelapse_ccd1_20240315_night.mp4")
	_, err := os.Stat(expected)
	require.NoError(t, err)
}

func TestMetadataOnlySync(t *testing.T) {
	hub := newTestHub(t)
	hub.registerCamera(t)

	// a zero-byte media part registers the asset without storing bytes
	rec := hub.do(signedRequest(t, http.MethodPost, "/sync/v1/image",
		imageMetadata(1, 0), []byte{}, "frame.jpg"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, err := os.Stat(expectedImagePath(hub.baseDir))
	assert.True(t, os.IsNotExist(err))
}

func TestEmptyFileModeSyncsMetadataOnly(t *testing.T) {
	hub := newTestHub(t)
	hub.registerCamera(t)

	srv := httptest.NewServer(hub.router)
	defer srv.Close()

	client := syncclient.New(config.SyncAPIConfig{
		BaseURL:   srv.URL,
		Username:  testUsername,
		APIKey:    testAPIKey,
		Timeout:   5 * time.Second,
		EmptyFile: true,
	})

	// the node-side capture has real bytes; its metadata carries the
	// real size, but empty-file mode ships (and signs) a zero-byte part
	media := []byte("jpeg bytes")
	local := filepath.Join(t.TempDir(), "frame.jpg")
	require.NoError(t, os.WriteFile(local, media, 0o644))

	resp, err := client.SyncAsset(context.Background(), models.AssetImage,
		models.JSONMap(imageMetadata(1, len(media))), local)
	require.NoError(t, err)
	assert.NotZero(t, resp.ID)

	// registered on the hub, no bytes stored
	_, err = os.Stat(expectedImagePath(hub.baseDir))
	assert.True(t, os.IsNotExist(err))
}

func TestMissingFileSizeRejected(t *testing.T) {
	hub := newTestHub(t)
	hub.registerCamera(t)

	meta := imageMetadata(1, 0)
	delete(meta, "file_size")

	rec := hub.do(signedRequest(t, http.MethodPost, "/sync/v1/image", meta, []byte{}, "frame.jpg"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "authentication failed", decodeBody(t, rec)["error"])
}

func TestFailedUploadLeavesNoTempFiles(t *testing.T) {
	hub := newTestHub(t)
	hub.registerCamera(t)

	spool := t.TempDir()
	t.Setenv("TMPDIR", spool)

	// a plain file where the camera directory belongs makes placement fail
	require.NoError(t, os.WriteFile(filepath.Join(hub.baseDir, "ccd_"+testCamUUID), []byte("x"), 0o644))

	media := []byte("jpeg bytes")
	rec := hub.do(signedRequest(t, http.MethodPost, "/sync/v1/image",
		imageMetadata(1, len(media)), media, "frame.jpg"))
	require.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())

	entries, err := os.ReadDir(spool)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAssetFetchAndDelete(t *testing.T) {
	hub := newTestHub(t)
	hub.registerCamera(t)

	media := []byte("jpeg bytes")
	rec := hub.do(signedRequest(t, http.MethodPost, "/sync/v1/image",
		imageMetadata(1, len(media)), media, "frame.jpg"))
	require.Equal(t, http.StatusOK, rec.Code)
	assetID := int64(decodeBody(t, rec)["id"].(float64))

	rec = hub.do(signedRequest(t, http.MethodGet, "/sync/v1/image", map[string]any{
		"id":          assetID,
		"camera_uuid": testCamUUID,
	}, nil, ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody(t, rec)["url"])

	rec = hub.do(signedRequest(t, http.MethodDelete, "/sync/v1/image", map[string]any{
		"id":          assetID,
		"camera_uuid": testCamUUID,
	}, nil, ""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, err := os.Stat(expectedImagePath(hub.baseDir))
	assert.True(t, os.IsNotExist(err))

	// a second delete finds nothing
	rec = hub.do(signedRequest(t, http.MethodDelete, "/sync/v1/image", map[string]any{
		"id":          assetID,
		"camera_uuid": testCamUUID,
	}, nil, ""))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "file_missing", decodeBody(t, rec)["error"])
}

func TestKeogramEndpointRoundtrip(t *testing.T) {
	hub := newTestHub(t)
	hub.registerCamera(t)

	media := []byte("keogram jpeg")
	rec := hub.do(signedRequest(t, http.MethodPost, "/sync/v1/keogram", map[string]any{
		"id":          2,
		"camera_uuid": testCamUUID,
		"file_size":   len(media),
		"createDate":  float64(time.Date(2024, 3, 16, 7, 0, 0, 0, time.UTC).Unix()),
		"dayDate":     "20240315",
		"night":       true,
	}, media, "keogram.jpg"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	expected := filepath.Join(hub.baseDir,
		"ccd_"+testCamUUID, "20240315", "allsky-keogram_ccd1_20240315_night.jpg")
	_, err := os.Stat(expected)
	require.NoError(t, err)
}
