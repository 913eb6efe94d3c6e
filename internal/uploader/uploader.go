// FilePath: internal/uploader/uploader.go

// Package uploader runs the worker pool that drains the upload task
// queue. Workers block on notifier wakeups and fall back to a poll
// tick, so a lost wakeup delays a job instead of losing it.
package uploader

import (
	"context"
	"sync"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/LowellObservatory/indi-allsky/internal/config"
	"github.com/LowellObservatory/indi-allsky/internal/models"
	"github.com/LowellObservatory/indi-allsky/internal/repository"
	"github.com/LowellObservatory/indi-allsky/internal/storage"
)

const (
	// pollInterval bounds how long a job can sit unnoticed when no
	// wakeup arrives.
	pollInterval = 15 * time.Second

	// staleAfter is the running-state lease. A worker that dies mid
	// job leaves the row RUNNING; the reaper requeues it after this.
	staleAfter   = 15 * time.Minute
	reapInterval = time.Minute
)

// Pool drains the upload queue with a fixed number of workers.
type Pool struct {
	cfg      *config.Config
	tasks    repository.TaskQueueRepository
	assets   repository.AssetRepository
	layout   *storage.Layout
	notifier Notifier

	wg sync.WaitGroup
}

func NewPool(cfg *config.Config, tasks repository.TaskQueueRepository, assets repository.AssetRepository, layout *storage.Layout, notifier Notifier) *Pool {
	return &Pool{
		cfg:      cfg,
		tasks:    tasks,
		assets:   assets,
		layout:   layout,
		notifier: notifier,
	}
}

// Run starts the workers and the reaper and blocks until ctx is
// cancelled and all workers have drained their current job.
func (p *Pool) Run(ctx context.Context) {
	nuts.L.Infof("[uploader] starting %d workers", p.cfg.UploadWorkers)

	for i := 0; i < p.cfg.UploadWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	p.wg.Add(1)
	go p.reaper(ctx)

	p.wg.Wait()
	nuts.L.Infof("[uploader] all workers stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	// Jobs enqueued before this worker started have no wakeup coming.
	p.drain(ctx, id)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.notifier.Wakeups():
			p.drain(ctx, id)
		case <-ticker.C:
			p.drain(ctx, id)
		}
	}
}

// drain claims and processes jobs until the queue is empty.
func (p *Pool) drain(ctx context.Context, workerID int) {
	for {
		if ctx.Err() != nil {
			return
		}

		entry, err := p.tasks.ClaimNext(ctx, models.QueueUpload)
		if err != nil {
			nuts.L.Errorf("[uploader] worker %d claim failed: %v", workerID, err)
			return
		}
		if entry == nil {
			return
		}

		p.process(ctx, workerID, entry)
	}
}

func (p *Pool) process(ctx context.Context, workerID int, entry *models.TaskQueueEntry) {
	payload, err := models.DecodeJobPayload(entry.Data)
	if err != nil {
		nuts.L.Errorf("[uploader] worker %d: task %d has unusable payload: %v", workerID, entry.ID, err)
		p.complete(ctx, entry.ID, false)
		return
	}

	nuts.L.Infof("[uploader] worker %d: task %d action=%s", workerID, entry.ID, payload.Action)

	start := time.Now()
	err = p.dispatch(ctx, payload)
	if err != nil {
		nuts.L.Errorf("[uploader] worker %d: task %d failed after %s: %v", workerID, entry.ID, time.Since(start).Round(time.Millisecond), err)
		p.complete(ctx, entry.ID, false)
		return
	}

	nuts.L.Infof("[uploader] worker %d: task %d done in %s", workerID, entry.ID, time.Since(start).Round(time.Millisecond))
	p.complete(ctx, entry.ID, true)
}

func (p *Pool) complete(ctx context.Context, id int64, success bool) {
	if err := p.tasks.Complete(ctx, id, success); err != nil {
		nuts.L.Errorf("[uploader] failed to finalize task %d: %v", id, err)
	}
}

// reaper requeues jobs whose worker died while they were running.
func (p *Pool) reaper(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.tasks.RequeueStale(ctx, models.QueueUpload, staleAfter)
			if err != nil {
				nuts.L.Errorf("[uploader] reaper failed: %v", err)
				continue
			}
			if n > 0 {
				nuts.L.Warnf("[uploader] requeued %d stale tasks", n)
			}
		}
	}
}
