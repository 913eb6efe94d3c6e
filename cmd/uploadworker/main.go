// FilePath: cmd/uploadworker/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	nuts "github.com/vaudience/go-nuts"

	"github.com/LowellObservatory/indi-allsky/internal/cleanup"
	"github.com/LowellObservatory/indi-allsky/internal/config"
	"github.com/LowellObservatory/indi-allsky/internal/database"
	"github.com/LowellObservatory/indi-allsky/internal/repository/sqldb"
	"github.com/LowellObservatory/indi-allsky/internal/storage"
	"github.com/LowellObservatory/indi-allsky/internal/uploader"
)

func main() {
	nuts.InitVersion()
	nuts.L.Infof("[Main] Starting AllSky upload workers v%s", nuts.GetVersion())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		nuts.L.Errorf("[Main] Database connection failed: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.InitSchema(db); err != nil {
		nuts.L.Errorf("[Main] Schema initialization failed: %v", err)
		os.Exit(1)
	}

	layout, err := storage.NewLayout(cfg.ImageFolder)
	if err != nil {
		nuts.L.Errorf("[Main] Image folder error: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier := buildNotifier(ctx, cfg)
	defer notifier.Close()

	tasks := sqldb.NewTaskQueueRepository(db)
	assets := sqldb.NewAssetRepository(db)

	retention := cleanup.New(cfg.Retention, assets, tasks)
	go retention.Run(ctx)

	pool := uploader.NewPool(cfg, tasks, assets, layout, notifier)
	pool.Run(ctx)

	nuts.L.Infof("[Main] Upload workers shut down")
}

// buildNotifier prefers redis pub/sub so enqueues in the server
// process wake these workers; without redis the poll tick carries the
// load.
func buildNotifier(ctx context.Context, cfg *config.Config) uploader.Notifier {
	if cfg.Redis.Enable {
		notifier, err := uploader.NewRedisNotifier(ctx, cfg.Redis)
		if err == nil {
			nuts.L.Infof("[Main] Using redis wakeups")
			return notifier
		}
		nuts.L.Warnf("[Main] Redis unavailable, falling back to polling: %v", err)
	}
	return uploader.NewLocalNotifier()
}
