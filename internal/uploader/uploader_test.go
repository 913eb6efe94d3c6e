// FilePath: internal/uploader/uploader_test.go
package uploader

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LowellObservatory/indi-allsky/internal/config"
	"github.com/LowellObservatory/indi-allsky/internal/database"
	"github.com/LowellObservatory/indi-allsky/internal/models"
	"github.com/LowellObservatory/indi-allsky/internal/repository/sqldb"
	"github.com/LowellObservatory/indi-allsky/internal/storage"
)

func TestLocalNotifierCoalescesWakeups(t *testing.T) {
	n := NewLocalNotifier()
	defer n.Close()

	ctx := context.Background()
	n.Notify(ctx)
	n.Notify(ctx)
	n.Notify(ctx)

	select {
	case <-n.Wakeups():
	default:
		t.Fatal("expected a pending wakeup")
	}

	// the burst collapsed into one wakeup
	select {
	case <-n.Wakeups():
		t.Fatal("expected wakeups to coalesce")
	default:
	}
}

// TestPoolFailsUnusablePayload runs a real pool against sqlite and
// checks that a corrupt task is finalized instead of wedging a worker.
func TestPoolFailsUnusablePayload(t *testing.T) {
	db, err := database.NewSQLiteDB(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, database.InitSchema(db))

	tasks := sqldb.NewTaskQueueRepository(db)
	assets := sqldb.NewAssetRepository(db)

	layout, err := storage.NewLayout(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()

	// a payload with an action the decoder rejects
	id, err := tasks.Enqueue(ctx, models.QueueUpload, &models.JobPayload{Action: models.ActionUpload})
	require.NoError(t, err)
	_, err = db.GetDB().ExecContext(ctx,
		`UPDATE task_queue SET data = $1 WHERE id = $2`, `{"action":"bogus"}`, id)
	require.NoError(t, err)

	cfg := &config.Config{UploadWorkers: 1}
	pool := NewPool(cfg, tasks, assets, layout, NewLocalNotifier())

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		pool.Run(runCtx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		entry, err := tasks.Get(ctx, id)
		return err == nil && entry.State == models.TaskFailed
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}

	entry, err := tasks.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.TaskFailed, entry.State)
}
