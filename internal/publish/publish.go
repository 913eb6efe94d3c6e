// FilePath: internal/publish/publish.go

// Package publish is the single entry point the capture pipeline uses
// to hand a finished asset to the upload plane. Each method decides
// whether the asset should go out at all (per-class enable flags,
// every-Nth throttling), renders the remote location, and enqueues a
// durable job for the workers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/LowellObservatory/indi-allsky/internal/config"
	"github.com/LowellObservatory/indi-allsky/internal/models"
	"github.com/LowellObservatory/indi-allsky/internal/pathtemplate"
	"github.com/LowellObservatory/indi-allsky/internal/repository"
)

// Notifier wakes up worker processes after an enqueue. A nil notifier
// is valid; workers then pick the job up on their next poll tick.
type Notifier interface {
	Notify(ctx context.Context)
}

type Publisher struct {
	cfg      *config.Config
	tasks    repository.TaskQueueRepository
	notifier Notifier
}

func New(cfg *config.Config, tasks repository.TaskQueueRepository, notifier Notifier) *Publisher {
	return &Publisher{cfg: cfg, tasks: tasks, notifier: notifier}
}

func (p *Publisher) enqueue(ctx context.Context, payload *models.JobPayload) error {
	id, err := p.tasks.Enqueue(ctx, models.QueueUpload, payload)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s job: %w", payload.Action, err)
	}

	nuts.L.Debugf("[publish] enqueued %s job %d", payload.Action, id)
	if p.notifier != nil {
		p.notifier.Notify(ctx)
	}
	return nil
}

// throttled reports whether an every-Nth gate holds this asset back.
// The remaining count and a wall-clock estimate are logged so an
// operator can tell throttling from a stall.
func (p *Publisher) throttled(label string, assetID int64, everyNth int) bool {
	if assetID%int64(everyNth) == 0 {
		return false
	}

	remaining := int64(everyNth) - assetID%int64(everyNth)
	eta := time.Duration(p.cfg.ExposurePeriod*float64(remaining)) * time.Second
	nuts.L.Infof("[publish] %s skipped, %d exposures until next (approx %s)", label, remaining, eta)
	return true
}

// UploadImage ships an image over the configured file transfer
// protocol. A zero every-Nth setting disables the image leg entirely.
func (p *Publisher) UploadImage(ctx context.Context, camera *models.Camera, asset *models.Asset) error {
	ft := p.cfg.FileTransfer
	if ft.UploadImage == 0 {
		nuts.L.Debugf("[publish] image file transfer disabled")
		return nil
	}
	if p.throttled("image upload", asset.ID, ft.UploadImage) {
		return nil
	}

	fields := pathtemplate.Fields{
		Timestamp:  asset.CreateDate,
		Ext:        filepath.Ext(asset.Filename),
		DayDate:    asset.DayDate,
		CameraUUID: camera.UUID,
	}
	remoteName, err := pathtemplate.Render(ft.RemoteImageName, fields)
	if err != nil {
		return err
	}
	remoteFolder, err := pathtemplate.Render(ft.RemoteImageFolder, fields)
	if err != nil {
		return err
	}

	return p.enqueue(ctx, &models.JobPayload{
		Action:     models.ActionUpload,
		Model:      asset.Type,
		ID:         asset.ID,
		AssetType:  asset.Type,
		RemoteFile: path.Join(remoteFolder, remoteName),
	})
}

// UploadMetadata writes the latest capture metadata to a temp file and
// ships it next to the latest image. The temp file is removed by the
// worker after the transfer.
func (p *Publisher) UploadMetadata(ctx context.Context, camera *models.Camera, metadata models.JSONMap) error {
	ft := p.cfg.FileTransfer
	if !ft.UploadMetadata {
		return nil
	}

	data, err := json.MarshalIndent(metadata, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	tmp, err := os.CreateTemp("", "metadata_*.json")
	if err != nil {
		return fmt.Errorf("failed to create metadata temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write metadata temp file: %w", err)
	}
	tmp.Close()

	fields := pathtemplate.Fields{
		Timestamp:  time.Now(),
		Ext:        ".json",
		CameraUUID: camera.UUID,
	}
	remoteName, err := pathtemplate.Render(ft.RemoteMetadataName, fields)
	if err != nil {
		return err
	}
	remoteFolder, err := pathtemplate.Render(ft.RemoteMetadataFolder, fields)
	if err != nil {
		return err
	}

	return p.enqueue(ctx, &models.JobPayload{
		Action:      models.ActionUpload,
		LocalFile:   tmp.Name(),
		RemoteFile:  path.Join(remoteFolder, remoteName),
		RemoveLocal: true,
	})
}

// uploadVideoLike ships a video-class asset when its enable flag is
// set. Video-class uploads keep their local filename.
func (p *Publisher) uploadVideoLike(ctx context.Context, camera *models.Camera, asset *models.Asset, enabled bool, folderTemplate string) error {
	if !enabled {
		nuts.L.Debugf("[publish] %s file transfer disabled", asset.Type)
		return nil
	}

	fields := pathtemplate.Fields{
		Timestamp:  asset.CreateDate,
		Ext:        filepath.Ext(asset.Filename),
		DayDate:    asset.DayDate,
		CameraUUID: camera.UUID,
	}
	remoteFolder, err := pathtemplate.Render(folderTemplate, fields)
	if err != nil {
		return err
	}

	return p.enqueue(ctx, &models.JobPayload{
		Action:     models.ActionUpload,
		Model:      asset.Type,
		ID:         asset.ID,
		AssetType:  asset.Type,
		RemoteFile: path.Join(remoteFolder, filepath.Base(asset.Filename)),
	})
}

func (p *Publisher) UploadVideo(ctx context.Context, camera *models.Camera, asset *models.Asset) error {
	return p.uploadVideoLike(ctx, camera, asset, p.cfg.FileTransfer.UploadVideo, p.cfg.FileTransfer.RemoteVideoFolder)
}

func (p *Publisher) UploadKeogram(ctx context.Context, camera *models.Camera, asset *models.Asset) error {
	return p.uploadVideoLike(ctx, camera, asset, p.cfg.FileTransfer.UploadKeogram, p.cfg.FileTransfer.RemoteKeogramFolder)
}

func (p *Publisher) UploadStarTrail(ctx context.Context, camera *models.Camera, asset *models.Asset) error {
	return p.uploadVideoLike(ctx, camera, asset, p.cfg.FileTransfer.UploadStarTrail, p.cfg.FileTransfer.RemoteStarTrailFolder)
}

func (p *Publisher) UploadStarTrailVideo(ctx context.Context, camera *models.Camera, asset *models.Asset) error {
	return p.uploadVideoLike(ctx, camera, asset, p.cfg.FileTransfer.UploadStarTrailVideo, p.cfg.FileTransfer.RemoteStarTrailVideoFolder)
}

// MQTTPublishImage pushes the latest image and metadata to the broker.
func (p *Publisher) MQTTPublishImage(ctx context.Context, localFile string, metadata models.JSONMap) error {
	if !p.cfg.MQTTPublish.Enable {
		return nil
	}

	return p.enqueue(ctx, &models.JobPayload{
		Action:    models.ActionMQTTPub,
		LocalFile: localFile,
		Metadata:  metadata,
	})
}

// S3UploadAsset pushes any asset class to the object store.
func (p *Publisher) S3UploadAsset(ctx context.Context, asset *models.Asset, metadata models.JSONMap) error {
	if !p.cfg.S3Upload.Enable {
		return nil
	}

	return p.enqueue(ctx, &models.JobPayload{
		Action:    models.ActionS3,
		Model:     asset.Type,
		ID:        asset.ID,
		AssetType: asset.Type,
		Metadata:  metadata,
	})
}

// Per-class S3 entry points; the capture pipeline calls these so the
// call sites read like the transfers they trigger.

func (p *Publisher) S3UploadImage(ctx context.Context, asset *models.Asset, metadata models.JSONMap) error {
	return p.S3UploadAsset(ctx, asset, metadata)
}

func (p *Publisher) S3UploadVideo(ctx context.Context, asset *models.Asset, metadata models.JSONMap) error {
	return p.S3UploadAsset(ctx, asset, metadata)
}

func (p *Publisher) S3UploadKeogram(ctx context.Context, asset *models.Asset, metadata models.JSONMap) error {
	return p.S3UploadAsset(ctx, asset, metadata)
}

func (p *Publisher) S3UploadStarTrail(ctx context.Context, asset *models.Asset, metadata models.JSONMap) error {
	return p.S3UploadAsset(ctx, asset, metadata)
}

// SyncAsset registers the asset on the configured hub. When post_s3
// is set and S3 is enabled, the sync leg is chained by the S3 job
// instead of being enqueued here, so the hub metadata can carry the
// final object URL.
func (p *Publisher) SyncAsset(ctx context.Context, asset *models.Asset, metadata models.JSONMap) error {
	if !p.cfg.SyncAPI.Enable {
		return nil
	}
	if p.cfg.SyncAPI.PostS3 && p.cfg.S3Upload.Enable {
		nuts.L.Debugf("[publish] sync for %s %d deferred until after s3 upload", asset.Type, asset.ID)
		return nil
	}

	if asset.Type == models.AssetImage && p.cfg.SyncAPI.UploadImage > 0 {
		if p.throttled("image sync", asset.ID, p.cfg.SyncAPI.UploadImage) {
			return nil
		}
	}

	return p.enqueue(ctx, &models.JobPayload{
		Action:    models.ActionSyncV1,
		Model:     asset.Type,
		ID:        asset.ID,
		AssetType: asset.Type,
		Metadata:  metadata,
	})
}

func (p *Publisher) SyncImage(ctx context.Context, asset *models.Asset, metadata models.JSONMap) error {
	return p.SyncAsset(ctx, asset, metadata)
}

func (p *Publisher) SyncVideo(ctx context.Context, asset *models.Asset, metadata models.JSONMap) error {
	return p.SyncAsset(ctx, asset, metadata)
}

func (p *Publisher) SyncKeogram(ctx context.Context, asset *models.Asset, metadata models.JSONMap) error {
	return p.SyncAsset(ctx, asset, metadata)
}

func (p *Publisher) SyncStarTrail(ctx context.Context, asset *models.Asset, metadata models.JSONMap) error {
	return p.SyncAsset(ctx, asset, metadata)
}
