package joblogs

import (
	"context"

	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"github.com/serenitylibrary/serenity/pkg/models"
)

const maxDataValueLen = 512

// JobLogger writes to the process log and to the job_logs table at once.
// Persisting is best effort; a failed insert never fails the job.
type JobLogger struct {
	ctx     context.Context
	jobID   int
	log     logger.Logger
	service *Service
}

func (svc *Service) NewJobLogger(ctx context.Context, jobID int) *JobLogger {
	return &JobLogger{
		ctx:     ctx,
		jobID:   jobID,
		log:     logger.FromContext(ctx),
		service: svc,
	}
}

func (l *JobLogger) Info(msg string, data logger.Data) {
	l.log.Info(msg, data)
	l.persist(models.JobLogLevelInfo, msg, data)
}

func (l *JobLogger) Warn(msg string, data logger.Data) {
	l.log.Warn(msg, data)
	l.persist(models.JobLogLevelWarn, msg, data)
}

func (l *JobLogger) Error(msg string, err error, data logger.Data) {
	l.log.Err(err).Error(msg, data)
	if data == nil {
		data = logger.Data{}
	}
	if err != nil {
		data["error"] = err.Error()
	}
	l.persist(models.JobLogLevelError, msg, data)
}

func (l *JobLogger) persist(level, msg string, data logger.Data) {
	jobLog := &models.JobLog{
		JobID:   l.jobID,
		Level:   level,
		Message: msg,
		Data:    encodeData(data),
	}
	if err := l.service.CreateJobLog(l.ctx, jobLog); err != nil {
		l.log.Err(err).Warn("persist job log error")
	}
}

func encodeData(data logger.Data) *string {
	if len(data) == 0 {
		return nil
	}
	trimmed := make(logger.Data, len(data))
	for k, v := range data {
		if s, ok := v.(string); ok && len(s) > maxDataValueLen {
			v = truncateMiddle(s, maxDataValueLen)
		}
		trimmed[k] = v
	}
	b, err := json.Marshal(trimmed)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}

func truncateMiddle(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	half := (maxLen - 5) / 2
	return s[:half] + " ... " + s[len(s)-half:]
}
