// FilePath: internal/cleanup/cleanup.go

// Package cleanup expires aged assets and finished queue entries.
// Image-class assets age out quickly; video-class assets are kept for
// much longer since a night compresses to a single file.
package cleanup

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	nuts "github.com/vaudience/go-nuts"

	"github.com/LowellObservatory/indi-allsky/internal/config"
	"github.com/LowellObservatory/indi-allsky/internal/models"
	"github.com/LowellObservatory/indi-allsky/internal/repository"
)

// imageClasses age out with the image retention setting.
var imageClasses = []models.AssetType{
	models.AssetImage,
	models.AssetRawImage,
	models.AssetFitsImage,
	models.AssetPanoramaImage,
}

// videoClasses age out with the video retention setting.
var videoClasses = []models.AssetType{
	models.AssetVideo,
	models.AssetKeogram,
	models.AssetStarTrail,
	models.AssetStarTrailVideo,
	models.AssetPanoramaVideo,
}

// CleanupService expires assets and queue entries on a schedule.
type CleanupService struct {
	cfg    config.RetentionConfig
	assets repository.AssetRepository
	tasks  repository.TaskQueueRepository
	events *nuts.EventEmitter
}

func New(cfg config.RetentionConfig, assets repository.AssetRepository, tasks repository.TaskQueueRepository) *CleanupService {
	return &CleanupService{
		cfg:    cfg,
		assets: assets,
		tasks:  tasks,
		events: nuts.NewEventEmitter(),
	}
}

// Run schedules expiry on the configured interval until ctx ends.
func (s *CleanupService) Run(ctx context.Context) {
	// One pass at startup so a long-stopped install catches up.
	if err := s.ExpireAll(ctx); err != nil {
		nuts.L.Errorf("[Cleanup] Expiry failed: %v", err)
	}

	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", s.cfg.Interval), func() {
		if err := s.ExpireAll(ctx); err != nil {
			nuts.L.Errorf("[Cleanup] Expiry failed: %v", err)
		}
	})
	if err != nil {
		nuts.L.Errorf("[Cleanup] Failed to schedule expiry: %v", err)
		return
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
}

// ExpireAll runs a full expiry pass: aged assets of every class, then
// finished task queue entries.
func (s *CleanupService) ExpireAll(ctx context.Context) error {
	now := time.Now()

	if s.cfg.ImageDays > 0 {
		cutoff := now.AddDate(0, 0, -s.cfg.ImageDays)
		for _, class := range imageClasses {
			if err := s.expireClass(ctx, class, cutoff); err != nil {
				return err
			}
		}
	}

	if s.cfg.VideoDays > 0 {
		cutoff := now.AddDate(0, 0, -s.cfg.VideoDays)
		for _, class := range videoClasses {
			if err := s.expireClass(ctx, class, cutoff); err != nil {
				return err
			}
		}
	}

	if s.cfg.TaskDays > 0 {
		pruned, err := s.tasks.PruneCompleted(ctx, now.AddDate(0, 0, -s.cfg.TaskDays))
		if err != nil {
			return fmt.Errorf("failed to prune task queue: %w", err)
		}
		if pruned > 0 {
			nuts.L.Infof("[Cleanup] Pruned %d finished queue entries", pruned)
		}
	}

	return nil
}

// expireClass removes the files and rows of one asset class older
// than cutoff. A file already gone is not an error; the row still
// needs to go.
func (s *CleanupService) expireClass(ctx context.Context, class models.AssetType, cutoff time.Time) error {
	aged, err := s.assets.ListOlderThan(ctx, class, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list aged %s assets: %w", class, err)
	}

	for _, asset := range aged {
		if err := os.Remove(asset.Filename); err != nil && !os.IsNotExist(err) {
			nuts.L.Warnf("[Cleanup] Failed to remove %s: %v", asset.Filename, err)
			continue
		}

		if err := s.assets.Delete(ctx, asset.ID); err != nil {
			return fmt.Errorf("failed to delete %s entry %d: %w", class, asset.ID, err)
		}

		s.events.Emit("asset.expired", asset.Filename)
	}

	if len(aged) > 0 {
		nuts.L.Infof("[Cleanup] Expired %d %s assets older than %s", len(aged), class, cutoff.Format("2006-01-02"))
	}
	return nil
}

// OnCleanup registers a callback for cleanup events
func (s *CleanupService) OnCleanup(event string, handler func(id string)) {
	s.events.On(event, "cleanup_handler", func(args ...interface{}) {
		if len(args) > 0 {
			if id, ok := args[0].(string); ok {
				handler(id)
			}
		}
	})
}
