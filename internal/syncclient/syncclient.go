// FilePath: internal/syncclient/syncclient.go

// Package syncclient is the outbound half of the sync API: it pushes
// asset files and their metadata from a capture node to a hub.
package syncclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	nuts "github.com/vaudience/go-nuts"

	"github.com/LowellObservatory/indi-allsky/internal/config"
	"github.com/LowellObservatory/indi-allsky/internal/models"
	"github.com/LowellObservatory/indi-allsky/internal/syncauth"
)

// endpoints maps an asset class to its resource path on the hub.
var endpoints = map[models.AssetType]string{
	models.AssetImage:          "/sync/v1/image",
	models.AssetVideo:          "/sync/v1/video",
	models.AssetKeogram:        "/sync/v1/keogram",
	models.AssetStarTrail:      "/sync/v1/startrail",
	models.AssetStarTrailVideo: "/sync/v1/startrailvideo",
	models.AssetRawImage:       "/sync/v1/rawimage",
	models.AssetFitsImage:      "/sync/v1/fitsimage",
	models.AssetPanoramaImage:  "/sync/v1/panoramaimage",
	models.AssetPanoramaVideo:  "/sync/v1/panoramavideo",
}

const cameraEndpoint = "/sync/v1/camera"

// Response is the hub's answer to a successful sync operation.
type Response struct {
	ID      int64  `json:"id"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message,omitempty"`
}

// errorResponse mirrors the hub's failure body {"error": <code>}.
type errorResponse struct {
	Error string `json:"error"`
}

// Client signs and ships sync requests. It is safe for use by a
// single worker; workers each build their own.
type Client struct {
	cfg  config.SyncAPIConfig
	rest *resty.Client
	now  func() time.Time
}

func New(cfg config.SyncAPIConfig) *Client {
	rest := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "indi-allsky-sync")

	if cfg.CertBypass {
		rest.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	return &Client{cfg: cfg, rest: rest, now: time.Now}
}

// SyncAsset creates the asset on the hub, replacing any existing file
// at the same location. The hub answers a create that collides with
// an existing path with a file_exists error; the client then retries
// the same payload as an update.
func (c *Client) SyncAsset(ctx context.Context, assetType models.AssetType, metadata models.JSONMap, localFile string) (*Response, error) {
	endpoint, ok := endpoints[assetType]
	if !ok {
		return nil, fmt.Errorf("no sync endpoint for asset type %q", assetType)
	}

	mediaFile := localFile
	if c.cfg.EmptyFile {
		// Metadata-only mode registers the asset on the hub without
		// shipping bytes, for installs that sync media some other way.
		// The hub checks the media byte count against the signed
		// file_size, so the signed value must describe the zero-byte
		// part, not the local file.
		clone := make(models.JSONMap, len(metadata))
		for k, v := range metadata {
			clone[k] = v
		}
		clone["file_size"] = 0
		metadata = clone

		empty, err := os.CreateTemp("", "sync_empty_*")
		if err != nil {
			return nil, fmt.Errorf("failed to create empty media file: %w", err)
		}
		empty.Close()
		defer os.Remove(empty.Name())
		mediaFile = empty.Name()
	}

	metadataBytes, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	resp, err := c.send(ctx, resty.MethodPost, endpoint, metadataBytes, mediaFile)
	if err != nil {
		return nil, err
	}

	if isFileExists(resp) {
		nuts.L.Infof("[syncapi] %s already exists on hub, replacing", filepath.Base(localFile))
		resp, err = c.send(ctx, resty.MethodPut, endpoint, metadataBytes, mediaFile)
		if err != nil {
			return nil, err
		}
	}

	return decodeResponse(resp)
}

// DeleteAsset removes the asset record and file from the hub.
func (c *Client) DeleteAsset(ctx context.Context, assetType models.AssetType, metadata models.JSONMap) (*Response, error) {
	endpoint, ok := endpoints[assetType]
	if !ok {
		return nil, fmt.Errorf("no sync endpoint for asset type %q", assetType)
	}

	metadataBytes, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	resp, err := c.send(ctx, resty.MethodDelete, endpoint, metadataBytes, "")
	if err != nil {
		return nil, err
	}
	return decodeResponse(resp)
}

// SyncCamera upserts the camera definition on the hub. Cameras are
// matched by uuid, so renames on the node propagate.
func (c *Client) SyncCamera(ctx context.Context, metadata models.JSONMap) (*Response, error) {
	metadataBytes, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}

	resp, err := c.send(ctx, resty.MethodPost, cameraEndpoint, metadataBytes, "")
	if err != nil {
		return nil, err
	}
	return decodeResponse(resp)
}

func (c *Client) send(ctx context.Context, method, endpoint string, metadataBytes []byte, mediaFile string) (*resty.Response, error) {
	signature := syncauth.Sign(c.cfg.APIKey, c.now(), metadataBytes)

	req := c.rest.R().
		SetContext(ctx).
		SetHeader("Authorization", syncauth.Header(c.cfg.Username, signature)).
		SetMultipartField("metadata", "metadata.json", "application/json", bytes.NewReader(metadataBytes))

	if mediaFile != "" {
		req.SetFile("media", mediaFile)
	}

	resp, err := req.Execute(method, endpoint)
	if err != nil {
		return nil, fmt.Errorf("sync request to %s failed: %w", endpoint, err)
	}
	return resp, nil
}

func isFileExists(resp *resty.Response) bool {
	if resp.IsSuccess() {
		return false
	}
	var errResp errorResponse
	if err := json.Unmarshal(resp.Body(), &errResp); err != nil {
		return false
	}
	return errResp.Error == "file_exists"
}

func decodeResponse(resp *resty.Response) (*Response, error) {
	if !resp.IsSuccess() {
		var errResp errorResponse
		if err := json.Unmarshal(resp.Body(), &errResp); err == nil && errResp.Error != "" {
			return nil, fmt.Errorf("hub rejected sync request (%d): %s", resp.StatusCode(), errResp.Error)
		}
		return nil, fmt.Errorf("hub rejected sync request (%d)", resp.StatusCode())
	}

	var out Response
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("failed to decode sync response: %w", err)
	}
	return &out, nil
}
