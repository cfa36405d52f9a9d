package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desafio-dunas/registration-api/internal/logging"
	"github.com/desafio-dunas/registration-api/internal/observability"
	"go.uber.org/zap"
)

// NotificationQueue delivers notifications asynchronously on a fixed pool of workers
type NotificationQueue struct {
	queue           chan Notification
	notifier        Notifier
	workers         int
	timeout         time.Duration
	wg              sync.WaitGroup
	closeOnce       sync.Once
	closed          bool
	processingStats *ProcessingStats
	mu              sync.RWMutex
	logger          *logging.SafeLogger
}

// ProcessingStats tracks queue performance metrics
type ProcessingStats struct {
	JobsEnqueued    int64         `json:"jobs_enqueued"`
	JobsProcessed   int64         `json:"jobs_processed"`
	JobsFailed      int64         `json:"jobs_failed"`
	JobsDropped     int64         `json:"jobs_dropped"`
	AverageWaitTime time.Duration `json:"average_wait_time"`
	QueueSize       int           `json:"queue_size"`
	ActiveWorkers   int           `json:"active_workers"`
}

// NewNotificationQueue creates the queue and starts its workers
func NewNotificationQueue(notifier Notifier, workers, queueSize int, timeout time.Duration, logger *logging.SafeLogger) *NotificationQueue {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	q := &NotificationQueue{
		queue:           make(chan Notification, queueSize),
		notifier:        notifier,
		workers:         workers,
		timeout:         timeout,
		processingStats: &ProcessingStats{},
		logger:          logger,
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	return q
}

func (q *NotificationQueue) worker(id int) {
	defer q.wg.Done()

	for n := range q.queue {
		observability.NotificationQueueDepth.Set(float64(len(q.queue)))
		q.process(n, id)
	}
}

func (q *NotificationQueue) process(n Notification, workerID int) {
	ctx := context.Background()
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	err := q.notifier.Send(ctx, n.To, n.Subject, n.Body)

	q.mu.Lock()
	q.processingStats.JobsProcessed++
	if err != nil {
		q.processingStats.JobsFailed++
	}
	wait := time.Since(n.CreatedAt)
	if q.processingStats.AverageWaitTime == 0 {
		q.processingStats.AverageWaitTime = wait
	} else {
		q.processingStats.AverageWaitTime = (q.processingStats.AverageWaitTime + wait) / 2
	}
	q.mu.Unlock()

	if err != nil {
		observability.NotificationsSent.WithLabelValues(n.Kind, "error").Inc()
		q.logger.Error("notification delivery failed",
			zap.Int("worker_id", workerID),
			zap.String("kind", n.Kind),
			zap.String("to", observability.MaskEmail(n.To)),
			zap.Error(err))
		return
	}

	observability.NotificationsSent.WithLabelValues(n.Kind, "success").Inc()
	q.logger.Debug("notification delivered",
		zap.Int("worker_id", workerID),
		zap.String("kind", n.Kind),
		zap.String("to", observability.MaskEmail(n.To)))
}

// Enqueue schedules n for delivery without blocking. It fails when the queue is full or stopped.
func (q *NotificationQueue) Enqueue(n Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.processingStats.JobsDropped++
		return fmt.Errorf("notification queue is stopped")
	}

	select {
	case q.queue <- n:
		q.processingStats.JobsEnqueued++
		observability.NotificationQueueDepth.Set(float64(len(q.queue)))
		return nil
	default:
		q.processingStats.JobsDropped++
		observability.NotificationsSent.WithLabelValues(n.Kind, "dropped").Inc()
		return fmt.Errorf("notification queue is full")
	}
}

// GetStats returns the current processing statistics
func (q *NotificationQueue) GetStats() ProcessingStats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	stats := *q.processingStats
	stats.QueueSize = len(q.queue)
	stats.ActiveWorkers = q.workers

	return stats
}

// Stop stops accepting notifications and waits for queued ones to be delivered
// or for ctx to end
func (q *NotificationQueue) Stop(ctx context.Context) error {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.queue)
		q.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		q.logger.Warn("notification queue stopped before draining",
			zap.Int("remaining", len(q.queue)))
		return ctx.Err()
	}
}

// IsHealthy checks if the queue is healthy
func (q *NotificationQueue) IsHealthy() bool {
	stats := q.GetStats()

	if stats.QueueSize >= cap(q.queue) {
		return false
	}

	return !(stats.JobsProcessed == 0 && stats.JobsEnqueued > int64(cap(q.queue)))
}
