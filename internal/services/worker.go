package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// requeueMinAge keeps the requeue pass from racing a job that was enqueued
// normally and is about to be claimed.
const requeueMinAge = 30 * time.Second

// Worker runs queued analysis jobs on a fixed pool of goroutines. Claiming
// happens in the coordinator, so enqueueing the same session twice is safe.
type Worker interface {
	Start(ctx context.Context)
	Stop()
	EnqueueJob(sessionID uuid.UUID)
}

type worker struct {
	coordinator JobCoordinator
	logger      *zap.Logger
	jobQueue    chan uuid.UUID
	concurrency int
	wg          sync.WaitGroup
	stopChan    chan struct{}
}

func NewWorker(coordinator JobCoordinator, concurrency int, logger *zap.Logger) Worker {
	return &worker{
		coordinator: coordinator,
		logger:      logger,
		jobQueue:    make(chan uuid.UUID, 100),
		concurrency: concurrency,
		stopChan:    make(chan struct{}),
	}
}

// Start implements Worker.
func (w *worker) Start(ctx context.Context) {
	w.logger.Info("starting workers", zap.Int("concurrency", w.concurrency))

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(ctx, i+1)
	}

	w.wg.Add(1)
	go w.requeuePendingJobs()
}

// Stop implements Worker.
func (w *worker) Stop() {
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("workers stopped")
}

// EnqueueJob implements Worker.
func (w *worker) EnqueueJob(sessionID uuid.UUID) {
	select {
	case w.jobQueue <- sessionID:
	case <-w.stopChan:
		w.logger.Warn("worker stopped, job not enqueued",
			zap.String("session_id", sessionID.String()))
	}
}

func (w *worker) processJobs(ctx context.Context, workerID int) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopChan:
			return
		case sessionID := <-w.jobQueue:
			w.logger.Info("worker picked up job",
				zap.Int("worker_id", workerID),
				zap.String("session_id", sessionID.String()))
			w.coordinator.Process(ctx, sessionID)
		}
	}
}

// requeuePendingJobs re-enqueues jobs that stayed queued, e.g. because the
// queue was full at submission time. The coordinator's claim makes a second
// enqueue of an already-running job a no-op.
func (w *worker) requeuePendingJobs() {
	defer w.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			pending := w.coordinator.PendingJobs(requeueMinAge, 10)
			if len(pending) == 0 {
				continue
			}

			w.logger.Info("requeueing stalled jobs", zap.Int("count", len(pending)))
			for _, sessionID := range pending {
				w.EnqueueJob(sessionID)
			}
		}
	}
}
