// Package reminder dispatches scheduled check-in notifications through the
// SQLite job queue and reschedules them for the next day in the user's
// timezone.
package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/habitd/internal/profile"
	"github.com/kalambet/habitd/internal/storage"
)

const jobType = "reminder"

// JobStore abstracts the job queue operations.
type JobStore interface {
	EnqueueJob(job storage.Job) error
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
}

// Notifier delivers one outbound reminder message. Delivery is best-effort;
// a failed send is retried by the job queue's backoff.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// Worker processes reminder jobs from the job queue.
type Worker struct {
	store    JobStore
	profiles profile.Store
	notifier Notifier
	poll     time.Duration
	logger   *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 30s.
func NewWorker(store JobStore, profiles profile.Store, notifier Notifier, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &Worker{
		store:    store,
		profiles: profiles,
		notifier: notifier,
		poll:     pollInterval,
		logger:   slog.Default(),
	}
}

// Run polls for due reminders until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("reminder iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single reminder job. Returns true if a job
// was processed regardless of success.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{jobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("reminder job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark reminder job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

type payload struct {
	UserID int64 `json:"user_id"`
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var p payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	prof, err := w.profiles.Get(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("loading profile %d: %w", p.UserID, err)
	}

	// Reminders switched off since scheduling: drop without resubscribing.
	if !prof.ReminderEnabled || prof.ReminderTime == "" {
		return nil
	}

	text := "Time to log your day — /habits"
	if prof.Language == "ru" {
		text = "Пора записать день — /habits"
	}
	if err := w.notifier.Notify(ctx, p.UserID, text); err != nil {
		return fmt.Errorf("notifying user %d: %w", p.UserID, err)
	}

	if err := Schedule(w.store, prof, time.Now()); err != nil {
		return fmt.Errorf("rescheduling: %w", err)
	}
	return nil
}

// Scheduler binds Schedule to a job store so the conversation engine can
// enqueue without knowing about the queue.
type Scheduler struct {
	store JobStore
}

func NewScheduler(store JobStore) *Scheduler {
	return &Scheduler{store: store}
}

func (s *Scheduler) Schedule(prof *profile.Profile, now time.Time) error {
	return Schedule(s.store, prof, now)
}

// Schedule enqueues the user's next reminder at their configured HH:MM,
// interpreted in their timezone; a time already past today rolls to
// tomorrow.
func Schedule(store JobStore, prof *profile.Profile, now time.Time) error {
	if !prof.ReminderEnabled || prof.ReminderTime == "" {
		return nil
	}

	at, err := time.Parse("15:04", prof.ReminderTime)
	if err != nil {
		return fmt.Errorf("parsing reminder time %q: %w", prof.ReminderTime, err)
	}

	loc := prof.Location()
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), at.Hour(), at.Minute(), 0, 0, loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}

	encoded, err := json.Marshal(payload{UserID: prof.UserID})
	if err != nil {
		return err
	}
	return store.EnqueueJob(storage.Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		PayloadJSON: string(encoded),
		RunAfter:    next.UTC(),
	})
}
