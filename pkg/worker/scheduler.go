package worker

import (
	"context"
	"time"

	"github.com/robinjoseph08/golib/logger"
	"github.com/serenitylibrary/serenity/pkg/models"
)

// sweepPeriods is how often each sweep runs.
var sweepPeriods = []struct {
	jobType string
	period  time.Duration
}{
	{models.JobTypeFineAccrual, 24 * time.Hour},
	{models.JobTypePrebookingExpiry, 24 * time.Hour},
	{models.JobTypeOverdueReminder, 24 * time.Hour},
	{models.JobTypeReservationReminder, time.Hour},
}

func (w *Worker) schedule() {
	if w.config.SchedulerInterval <= 0 {
		<-w.shutdown
		w.doneScheduling <- struct{}{}
		return
	}

	ticker := time.NewTicker(w.config.SchedulerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.shutdown:
			w.doneScheduling <- struct{}{}
			return
		case <-ticker.C:
			ctx := w.log.WithContext(context.Background())
			if _, err := w.scheduleDue(ctx); err != nil {
				w.log.Err(err).Error("schedule sweeps error")
			}
		}
	}
}

// scheduleDue creates a job for every sweep whose period has elapsed since
// its last run and that is not already queued. It returns the created types.
func (w *Worker) scheduleDue(ctx context.Context) ([]string, error) {
	log := logger.FromContext(ctx)
	now := w.clock.Now().UTC()
	created := []string{}

	for _, sweep := range sweepPeriods {
		active, err := w.jobService.HasActiveJobByType(ctx, sweep.jobType)
		if err != nil {
			return created, err
		}
		if active {
			continue
		}

		latest, err := w.jobService.LatestJobByType(ctx, sweep.jobType)
		if err != nil {
			return created, err
		}
		if latest != nil && now.Sub(latest.CreatedAt) < sweep.period {
			continue
		}

		job := &models.Job{
			Type:       sweep.jobType,
			Status:     models.JobStatusPending,
			DataParsed: &models.JobSweepData{Trigger: "schedule"},
		}
		if err := w.jobService.CreateJob(ctx, job); err != nil {
			return created, err
		}
		log.Info("scheduled sweep", logger.Data{"type": sweep.jobType, "job_id": job.ID})
		created = append(created, sweep.jobType)
	}

	return created, nil
}
