// FilePath: internal/cleanup/cleanup_test.go
package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LowellObservatory/indi-allsky/internal/config"
	"github.com/LowellObservatory/indi-allsky/internal/database"
	"github.com/LowellObservatory/indi-allsky/internal/errors"
	"github.com/LowellObservatory/indi-allsky/internal/models"
	"github.com/LowellObservatory/indi-allsky/internal/repository/sqldb"
)

type fixture struct {
	db     database.DB
	assets *sqldb.AssetRepo
	tasks  *sqldb.TaskQueueRepo
	camera *models.Camera
	dir    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := database.NewSQLiteDB(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.InitSchema(db))

	camera := &models.Camera{UUID: "cam-uuid", Name: "cam"}
	require.NoError(t, sqldb.NewCameraRepository(db).Create(context.Background(), camera))

	return &fixture{
		db:     db,
		assets: sqldb.NewAssetRepository(db),
		tasks:  sqldb.NewTaskQueueRepository(db),
		camera: camera,
		dir:    t.TempDir(),
	}
}

// addAsset writes a real file and its database row with the given age.
func (f *fixture) addAsset(t *testing.T, class models.AssetType, name string, age time.Duration) *models.Asset {
	t.Helper()

	path := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	asset := &models.Asset{
		Type:       class,
		CameraID:   f.camera.ID,
		Filename:   path,
		CreateDate: time.Now().Add(-age),
	}
	require.NoError(t, f.assets.Add(context.Background(), asset))
	return asset
}

func day(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func TestExpireAllRemovesAgedImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := f.addAsset(t, models.AssetImage, "old.jpg", day(40))
	fresh := f.addAsset(t, models.AssetImage, "fresh.jpg", day(1))

	svc := New(config.RetentionConfig{ImageDays: 30}, f.assets, f.tasks)
	require.NoError(t, svc.ExpireAll(ctx))

	_, err := os.Stat(old.Filename)
	assert.True(t, os.IsNotExist(err))
	_, err = f.assets.Get(ctx, models.AssetImage, old.ID)
	assert.True(t, errors.IsNotFound(err))

	_, err = os.Stat(fresh.Filename)
	assert.NoError(t, err)
}

func TestExpireAllKeepsVideosLonger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 40 days is past the image horizon but well inside the video one
	video := f.addAsset(t, models.AssetKeogram, "keogram.jpg", day(40))

	svc := New(config.RetentionConfig{ImageDays: 30, VideoDays: 365}, f.assets, f.tasks)
	require.NoError(t, svc.ExpireAll(ctx))

	_, err := os.Stat(video.Filename)
	assert.NoError(t, err)
}

func TestExpireAllToleratesMissingFiles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := f.addAsset(t, models.AssetImage, "gone.jpg", day(40))
	require.NoError(t, os.Remove(old.Filename))

	svc := New(config.RetentionConfig{ImageDays: 30}, f.assets, f.tasks)
	require.NoError(t, svc.ExpireAll(ctx))

	// the orphan row is still cleaned up
	_, err := f.assets.Get(ctx, models.AssetImage, old.ID)
	assert.True(t, errors.IsNotFound(err))
}

func TestExpireAllZeroConfigIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := f.addAsset(t, models.AssetImage, "old.jpg", day(400))

	svc := New(config.RetentionConfig{}, f.assets, f.tasks)
	require.NoError(t, svc.ExpireAll(ctx))

	_, err := os.Stat(old.Filename)
	assert.NoError(t, err)
}

func TestExpireAllPrunesFinishedTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.tasks.Enqueue(ctx, models.QueueUpload, &models.JobPayload{Action: models.ActionUpload})
	require.NoError(t, err)
	_, err = f.tasks.Claim(ctx, id)
	require.NoError(t, err)
	require.NoError(t, f.tasks.Complete(ctx, id, true))

	// age the entry past the task horizon
	_, err = f.db.GetDB().ExecContext(ctx,
		`UPDATE task_queue SET updated_at = $1 WHERE id = $2`,
		time.Now().UTC().Add(-day(10)), id)
	require.NoError(t, err)

	svc := New(config.RetentionConfig{TaskDays: 3}, f.assets, f.tasks)
	require.NoError(t, svc.ExpireAll(ctx))

	_, err = f.tasks.Get(ctx, id)
	assert.True(t, errors.IsNotFound(err))
}
