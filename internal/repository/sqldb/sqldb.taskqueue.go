// FilePath: internal/repository/sqldb/sqldb.taskqueue.go
package sqldb

import (
	"context"
	"database/sql"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/LowellObservatory/indi-allsky/internal/database"
	"github.com/LowellObservatory/indi-allsky/internal/errors"
	"github.com/LowellObservatory/indi-allsky/internal/models"
)

type TaskQueueRepo struct {
	SQLBaseRepo
}

func NewTaskQueueRepository(db database.DB) *TaskQueueRepo {
	return &TaskQueueRepo{SQLBaseRepo{db: db}}
}

// Enqueue persists a new QUEUED entry. The commit here is the source
// of truth; waking the worker pool is the caller's concern.
func (r *TaskQueueRepo) Enqueue(ctx context.Context, queue models.TaskQueueName, payload *models.JobPayload) (int64, error) {
	data, err := payload.Encode()
	if err != nil {
		return 0, errors.NewValidationError("failed to encode job payload", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO task_queue (queue, state, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	var id int64
	err = r.db.GetDB().QueryRowContext(ctx, query,
		queue, models.TaskQueued, string(data), now, now,
	).Scan(&id)
	if err != nil {
		return 0, errors.NewDatabaseError("failed to enqueue task", err)
	}
	return id, nil
}

func (r *TaskQueueRepo) Get(ctx context.Context, id int64) (*models.TaskQueueEntry, error) {
	entry := &models.TaskQueueEntry{}
	query := `SELECT * FROM task_queue WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, entry, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("task not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get task", err)
	}
	return entry, nil
}

// ClaimNext transitions the oldest QUEUED entry to RUNNING and returns
// it, or nil when the queue is empty. The conditional UPDATE with a
// rows-affected check makes the claim at-most-once under concurrent
// workers; a lost race simply retries on the next candidate.
func (r *TaskQueueRepo) ClaimNext(ctx context.Context, queue models.TaskQueueName) (*models.TaskQueueEntry, error) {
	for {
		var id int64
		query := `SELECT id FROM task_queue WHERE queue = $1 AND state = $2 ORDER BY id LIMIT 1`

		err := r.db.GetDB().GetContext(ctx, &id, query, queue, models.TaskQueued)
		if err != nil {
			if err == sql.ErrNoRows {
				return nil, nil
			}
			return nil, errors.NewDatabaseError("failed to find claimable task", err)
		}

		entry, err := r.Claim(ctx, id)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			return entry, nil
		}
		// another worker won the claim; try the next entry
	}
}

// Claim attempts to transition one specific entry QUEUED -> RUNNING.
// Returns nil (no error) if the entry was already claimed.
func (r *TaskQueueRepo) Claim(ctx context.Context, id int64) (*models.TaskQueueEntry, error) {
	now := time.Now().UTC()
	query := `
		UPDATE task_queue SET state = $1, started_at = $2, updated_at = $3
		WHERE id = $4 AND state = $5`

	result, err := r.db.GetDB().ExecContext(ctx, query,
		models.TaskRunning, now, now, id, models.TaskQueued)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to claim task", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, errors.NewDatabaseError("failed to get rows affected", err)
	}
	if rows == 0 {
		return nil, nil
	}

	return r.Get(ctx, id)
}

// Complete transitions RUNNING -> SUCCESS or FAILED. Failures are
// terminal; there is no retry count.
func (r *TaskQueueRepo) Complete(ctx context.Context, id int64, success bool) error {
	state := models.TaskSuccess
	if !success {
		state = models.TaskFailed
	}

	query := `
		UPDATE task_queue SET state = $1, updated_at = $2
		WHERE id = $3 AND state = $4`

	result, err := r.db.GetDB().ExecContext(ctx, query,
		state, time.Now().UTC(), id, models.TaskRunning)
	if err != nil {
		return errors.NewDatabaseError("failed to complete task", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}
	if rows == 0 {
		return errors.NewNotFoundError("task not running", nil)
	}
	return nil
}

// RequeueStale returns RUNNING entries whose claim lease expired back
// to QUEUED. Covers workers killed mid-job.
func (r *TaskQueueRepo) RequeueStale(ctx context.Context, queue models.TaskQueueName, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	query := `
		UPDATE task_queue SET state = $1, started_at = NULL, updated_at = $2
		WHERE queue = $3 AND state = $4 AND started_at < $5`

	result, err := r.db.GetDB().ExecContext(ctx, query,
		models.TaskQueued, time.Now().UTC(), queue, models.TaskRunning, cutoff)
	if err != nil {
		return 0, errors.NewDatabaseError("failed to requeue stale tasks", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewDatabaseError("failed to get rows affected", err)
	}
	if rows > 0 {
		nuts.L.Warnf("[TaskQueueRepo] Requeued %d stale RUNNING tasks", rows)
	}
	return rows, nil
}

// PruneCompleted removes SUCCESS/FAILED entries older than the cutoff.
func (r *TaskQueueRepo) PruneCompleted(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM task_queue
		WHERE state IN ($1, $2) AND updated_at < $3`

	result, err := r.db.GetDB().ExecContext(ctx, query,
		models.TaskSuccess, models.TaskFailed, before)
	if err != nil {
		return 0, errors.NewDatabaseError("failed to prune task queue", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewDatabaseError("failed to get rows affected", err)
	}
	return rows, nil
}
