package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"tablebook/internal/domain"
	"tablebook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskBookingSync = "booking_sync"
	TaskRangeExport = "range_export"

	queueKey      = "tablebook:sync_queue"
	deadLetterKey = "tablebook:sync_deadletter"
)

// Task is one unit of background work: mirroring a booking to the
// spreadsheet, or producing a report over a date range.
type Task struct {
	Type      string          `json:"type"`
	Booking   *models.Booking `json:"booking,omitempty"`
	Start     time.Time       `json:"start,omitempty"`
	End       time.Time       `json:"end,omitempty"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"created_at"`
}

// SyncWorker drains booking sync and export tasks. Redis backs the queue
// when available; otherwise tasks ride an in-memory channel and do not
// survive a restart.
type SyncWorker struct {
	repo        domain.Repository
	sheets      domain.SheetsWriter
	reports     domain.ReportWriter
	redis       *redis.Client
	retryPolicy RetryPolicy
	queue       chan Task
	exportPath  string
	logger      *zerolog.Logger
}

func NewSyncWorker(repo domain.Repository, sheets domain.SheetsWriter, reports domain.ReportWriter, redisClient *redis.Client, retry RetryPolicy, exportPath string, logger *zerolog.Logger) *SyncWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if exportPath == "" {
		exportPath = "exports"
	}

	return &SyncWorker{
		repo:        repo,
		sheets:      sheets,
		reports:     reports,
		redis:       redisClient,
		retryPolicy: retry,
		queue:       make(chan Task, models.WorkerQueueSize),
		exportPath:  exportPath,
		logger:      logger,
	}
}

// EnqueueBookingSync schedules a booking upsert into the spreadsheet mirror.
func (w *SyncWorker) EnqueueBookingSync(ctx context.Context, booking *models.Booking) error {
	if booking == nil || booking.ID == 0 {
		return errors.New("booking id is required")
	}
	return w.enqueue(ctx, Task{Type: TaskBookingSync, Booking: booking, CreatedAt: time.Now()})
}

// EnqueueRangeExport schedules a report plus full spreadsheet refresh for a
// date range.
func (w *SyncWorker) EnqueueRangeExport(ctx context.Context, start, end time.Time) error {
	if end.Before(start) {
		return fmt.Errorf("export range end %s precedes start %s", end.Format(models.DateLayout), start.Format(models.DateLayout))
	}
	return w.enqueue(ctx, Task{Type: TaskRangeExport, Start: start, End: end, CreatedAt: time.Now()})
}

func (w *SyncWorker) enqueue(ctx context.Context, task Task) error {
	if w.redis != nil {
		err := w.pushRedis(ctx, task)
		if err == nil {
			return nil
		}
		w.logger.Warn().Err(err).Str("task", task.Type).Msg("redis push failed, using memory queue")
	}

	select {
	case w.queue <- task:
		return nil
	default:
		return errors.New("sync queue is full")
	}
}

// Start runs the drain loop until ctx is cancelled.
func (w *SyncWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("sync worker started")
	defer w.logger.Info().Msg("sync worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case task := <-w.queue:
			w.process(ctx, task)
		default:
			if task, ok := w.popRedis(ctx); ok {
				w.process(ctx, task)
				continue
			}
			select {
			case <-ctx.Done():
				return
			case task := <-w.queue:
				w.process(ctx, task)
			case <-time.After(time.Second):
			}
		}
	}
}

func (w *SyncWorker) process(ctx context.Context, task Task) {
	var err error
	switch task.Type {
	case TaskBookingSync:
		err = w.syncBooking(ctx, task.Booking)
	case TaskRangeExport:
		err = w.exportRange(ctx, task.Start, task.End)
	default:
		w.logger.Error().Str("task", task.Type).Msg("unknown task type dropped")
		return
	}

	if err != nil {
		w.retryOrDrop(ctx, task, err)
	}
}

func (w *SyncWorker) syncBooking(ctx context.Context, booking *models.Booking) error {
	if booking == nil {
		return errors.New("booking payload missing")
	}
	if w.sheets == nil {
		return nil
	}
	return w.sheets.AppendBooking(ctx, booking)
}

func (w *SyncWorker) exportRange(ctx context.Context, start, end time.Time) error {
	daily, err := w.repo.GetDailyBookings(ctx, start, end)
	if err != nil {
		return fmt.Errorf("load bookings for export: %w", err)
	}

	if w.reports != nil {
		name := fmt.Sprintf("bookings_%s_%s.xlsx", start.Format(models.DateLayout), end.Format(models.DateLayout))
		if err := w.reports.WriteBookingsReport(filepath.Join(w.exportPath, name), daily); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	if w.sheets != nil {
		var flat []models.Booking
		for _, bookings := range daily {
			flat = append(flat, bookings...)
		}
		if err := w.sheets.ReplaceBookings(ctx, flat); err != nil {
			return fmt.Errorf("replace sheet rows: %w", err)
		}
	}

	return nil
}

func (w *SyncWorker) retryOrDrop(ctx context.Context, task Task, cause error) {
	task.Retries++
	if task.Retries >= w.retryPolicy.MaxRetries {
		w.logger.Error().Err(cause).Str("task", task.Type).Int("retries", task.Retries).Msg("task moved to dead letter")
		w.pushDeadLetter(ctx, task)
		return
	}

	delay := w.retryPolicy.NextDelay(task.Retries)
	w.logger.Warn().Err(cause).Str("task", task.Type).Int("retry", task.Retries).Dur("delay", delay).Msg("task retry scheduled")

	time.AfterFunc(delay, func() {
		select {
		case w.queue <- task:
		default:
			w.logger.Error().Str("task", task.Type).Msg("retry dropped, queue full")
		}
	})
}

func (w *SyncWorker) pushRedis(ctx context.Context, task Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, queueKey, data).Err()
}

func (w *SyncWorker) popRedis(ctx context.Context) (Task, bool) {
	if w.redis == nil {
		return Task{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, queueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			w.logger.Error().Err(err).Msg("redis BRPOP error")
		}
		return Task{}, false
	}
	if len(res) != 2 {
		return Task{}, false
	}
	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return Task{}, false
	}
	return task, true
}

func (w *SyncWorker) pushDeadLetter(ctx context.Context, task Task) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Msg("encode dead letter task")
		return
	}
	if err := w.redis.LPush(ctx, deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Msg("dead letter push failed")
	}
}
