// FilePath: internal/uploader/uploader.dispatch.go
package uploader

import (
	"context"
	"fmt"
	"os"
	"path"

	nuts "github.com/vaudience/go-nuts"

	"github.com/LowellObservatory/indi-allsky/internal/errors"
	"github.com/LowellObservatory/indi-allsky/internal/filetransfer"
	"github.com/LowellObservatory/indi-allsky/internal/models"
	"github.com/LowellObservatory/indi-allsky/internal/s3upload"
	"github.com/LowellObservatory/indi-allsky/internal/syncclient"
)

func (p *Pool) dispatch(ctx context.Context, payload *models.JobPayload) error {
	switch payload.Action {
	case models.ActionUpload:
		return p.handleUpload(ctx, payload)
	case models.ActionMQTTPub:
		return p.handleMQTTPub(ctx, payload)
	case models.ActionS3:
		return p.handleS3(ctx, payload)
	case models.ActionSyncV1:
		return p.handleSync(ctx, payload)
	default:
		// DecodeJobPayload already rejects unknown actions.
		return fmt.Errorf("unhandled job action %q", payload.Action)
	}
}

// resolveLocalFile returns the file a job operates on: an explicit
// path for record-less jobs (metadata files), otherwise the asset row
// named by Model+ID. A missing row is a permanent failure.
func (p *Pool) resolveLocalFile(ctx context.Context, payload *models.JobPayload) (string, *models.Asset, error) {
	if payload.LocalFile != "" {
		return payload.LocalFile, nil, nil
	}

	asset, err := p.assets.Get(ctx, payload.Model, payload.ID)
	if err != nil {
		if errors.IsNotFound(err) {
			return "", nil, fmt.Errorf("%s %d no longer exists", payload.Model, payload.ID)
		}
		return "", nil, err
	}
	return asset.Filename, asset, nil
}

func (p *Pool) handleUpload(ctx context.Context, payload *models.JobPayload) error {
	localFile, _, err := p.resolveLocalFile(ctx, payload)
	if err != nil {
		return err
	}

	client, err := filetransfer.New(p.cfg.FileTransfer)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Connect(ctx); err != nil {
		return err
	}

	remoteDir, remoteName := path.Split(payload.RemoteFile)
	remoteDir = path.Clean(remoteDir)
	if err := client.Put(ctx, localFile, remoteDir, remoteName); err != nil {
		nuts.L.Errorf("[uploader] %s failure uploading %s", filetransfer.KindOf(err), localFile)
		return err
	}

	if payload.RemoveLocal {
		if err := os.Remove(localFile); err != nil {
			nuts.L.Warnf("[uploader] failed to remove %s: %v", localFile, err)
		}
	}
	return nil
}

func (p *Pool) handleMQTTPub(ctx context.Context, payload *models.JobPayload) error {
	pub := filetransfer.NewMQTTPublisher(p.cfg.MQTTPublish)
	if err := pub.Connect(ctx); err != nil {
		return err
	}
	defer pub.Close()

	return pub.PublishImage(ctx, payload.LocalFile, payload.Metadata)
}

func (p *Pool) handleS3(ctx context.Context, payload *models.JobPayload) error {
	localFile, asset, err := p.resolveLocalFile(ctx, payload)
	if err != nil {
		return err
	}
	if asset == nil {
		return fmt.Errorf("s3 jobs require an asset record")
	}

	uploader, err := s3upload.New(p.cfg.S3Upload)
	if err != nil {
		return err
	}

	key := p.layout.Rel(localFile)
	url, err := uploader.Upload(ctx, localFile, key)
	if err != nil {
		return err
	}

	if err := p.assets.SetRemote(ctx, asset.ID, url, key); err != nil {
		return err
	}

	// The deferred sync leg runs after the object store upload so the
	// hub metadata carries the final public URL.
	if p.cfg.SyncAPI.Enable && p.cfg.SyncAPI.PostS3 {
		metadata := payload.Metadata
		if metadata == nil {
			metadata = models.JSONMap{}
		}
		metadata["remote_url"] = url
		metadata["s3_key"] = key

		if p.syncThrottled(payload) {
			return nil
		}

		_, err := p.tasks.Enqueue(ctx, models.QueueUpload, &models.JobPayload{
			Action:    models.ActionSyncV1,
			Model:     payload.Model,
			ID:        payload.ID,
			AssetType: payload.AssetType,
			Metadata:  metadata,
		})
		if err != nil {
			return fmt.Errorf("failed to chain sync job: %w", err)
		}
		p.notifier.Notify(ctx)
	}
	return nil
}

// syncThrottled applies the every-Nth image gate to chained sync jobs,
// matching the gate applied to directly published ones.
func (p *Pool) syncThrottled(payload *models.JobPayload) bool {
	if payload.AssetType != models.AssetImage || p.cfg.SyncAPI.UploadImage <= 0 {
		return false
	}
	return payload.ID%int64(p.cfg.SyncAPI.UploadImage) != 0
}

func (p *Pool) handleSync(ctx context.Context, payload *models.JobPayload) error {
	localFile, _, err := p.resolveLocalFile(ctx, payload)
	if err != nil {
		return err
	}

	client := syncclient.New(p.cfg.SyncAPI)
	resp, err := client.SyncAsset(ctx, payload.AssetType, payload.Metadata, localFile)
	if err != nil {
		return err
	}

	nuts.L.Infof("[uploader] synced %s %d to hub as id %d", payload.AssetType, payload.ID, resp.ID)
	return nil
}
