package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

const (
	JobStatusPending    = "pending"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

const (
	// JobTypeNotify delivers one circulation notification.
	JobTypeNotify = "notify"

	// Periodic sweeps created by the scheduler.
	JobTypeFineAccrual         = "fine_accrual"
	JobTypePrebookingExpiry    = "prebooking_expiry"
	JobTypeOverdueReminder     = "overdue_reminder"
	JobTypeReservationReminder = "reservation_reminder"
)

type Job struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID         int         `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	Type       string      `bun:",nullzero" json:"type"`
	Status     string      `bun:",nullzero" json:"status"`
	Data       string      `bun:",nullzero" json:"-"`
	DataParsed interface{} `bun:"-" json:"data"`
	Progress   int         `json:"progress"`
	ProcessID  *string     `json:"process_id,omitempty"`
	Error      *string     `json:"error,omitempty"`
}

func (job *Job) UnmarshalData() error {
	switch job.Type {
	case JobTypeNotify:
		job.DataParsed = &Notification{}
	default:
		job.DataParsed = &JobSweepData{}
	}

	if job.Data == "" {
		return nil
	}

	err := json.Unmarshal([]byte(job.Data), job.DataParsed)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// JobSweepData is carried by the periodic sweep jobs.
type JobSweepData struct {
	// Trigger is "schedule" for scheduler-created jobs and "manual" otherwise.
	Trigger string `json:"trigger"`
}
