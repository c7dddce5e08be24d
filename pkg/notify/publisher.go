// Package notify hands circulation notifications to the worker. Publishing
// happens after the originating transaction commits and never fails the
// caller: a notification that cannot be queued is logged and dropped.
package notify

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/robinjoseph08/golib/logger"
	"github.com/serenitylibrary/serenity/pkg/jobs"
	"github.com/serenitylibrary/serenity/pkg/models"
)

type Publisher interface {
	Publish(ctx context.Context, n models.Notification)
}

// Outbox queues each notification as a notify job.
type Outbox struct {
	jobService *jobs.Service
	clock      clockwork.Clock
}

func NewOutbox(jobService *jobs.Service, clock clockwork.Clock) *Outbox {
	return &Outbox{jobService, clock}
}

func (o *Outbox) Publish(ctx context.Context, n models.Notification) {
	if n.OccurredAt.IsZero() {
		n.OccurredAt = o.clock.Now().UTC()
	}

	job := &models.Job{
		Type:       models.JobTypeNotify,
		Status:     models.JobStatusPending,
		DataParsed: &n,
	}
	if err := o.jobService.CreateJob(ctx, job); err != nil {
		logger.FromContext(ctx).Err(err).Error("failed to queue notification", logger.Data{
			"type":    n.Type,
			"user_id": n.UserID,
			"book_id": n.BookID,
		})
	}
}

// Recorder keeps published notifications in memory.
type Recorder struct {
	mu            sync.Mutex
	Notifications []models.Notification
}

func (r *Recorder) Publish(_ context.Context, n models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notifications = append(r.Notifications, n)
}

// Types lists the types of the recorded notifications in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.Notifications))
	for _, n := range r.Notifications {
		types = append(types, n.Type)
	}
	return types
}
