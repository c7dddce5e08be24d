package worker

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/serenitylibrary/serenity/pkg/borrows"
	"github.com/serenitylibrary/serenity/pkg/config"
	"github.com/serenitylibrary/serenity/pkg/fines"
	"github.com/serenitylibrary/serenity/pkg/joblogs"
	"github.com/serenitylibrary/serenity/pkg/jobs"
	"github.com/serenitylibrary/serenity/pkg/mailer"
	"github.com/serenitylibrary/serenity/pkg/models"
	"github.com/serenitylibrary/serenity/pkg/notify"
	"github.com/serenitylibrary/serenity/pkg/prebookings"
	"github.com/serenitylibrary/serenity/pkg/receipts"
	"github.com/serenitylibrary/serenity/pkg/reservations"
	"github.com/uptrace/bun"
)

const pollInterval = 2 * time.Second

var processID = randStringBytes(8)

// Services are the domain services the worker drives.
type Services struct {
	Borrows      *borrows.Service
	Fines        *fines.Service
	Jobs         *jobs.Service
	Prebookings  *prebookings.Service
	Reservations *reservations.Service
	Publisher    notify.Publisher
}

type Worker struct {
	config *config.Config
	log    logger.Logger
	db     *bun.DB
	clock  clockwork.Clock

	processFuncs map[string]func(ctx context.Context, job *models.Job) error

	borrowService      *borrows.Service
	fineService        *fines.Service
	jobLogService      *joblogs.Service
	jobService         *jobs.Service
	prebookingService  *prebookings.Service
	reservationService *reservations.Service
	publisher          notify.Publisher
	sender             mailer.Sender
	receipts           receipts.Generator

	queue          chan *models.Job
	shutdown       chan struct{}
	doneFetching   chan struct{}
	doneProcessing chan struct{}
	doneScheduling chan struct{}
}

func New(cfg *config.Config, db *bun.DB, clock clockwork.Clock, svcs Services, sender mailer.Sender, generator receipts.Generator) *Worker {
	w := &Worker{
		config: cfg,
		log:    logger.New(),
		db:     db,
		clock:  clock,

		borrowService:      svcs.Borrows,
		fineService:        svcs.Fines,
		jobLogService:      joblogs.NewService(db, clock),
		jobService:         svcs.Jobs,
		prebookingService:  svcs.Prebookings,
		reservationService: svcs.Reservations,
		publisher:          svcs.Publisher,
		sender:             sender,
		receipts:           generator,

		queue:          make(chan *models.Job, cfg.WorkerProcesses),
		shutdown:       make(chan struct{}),
		doneFetching:   make(chan struct{}),
		doneProcessing: make(chan struct{}, cfg.WorkerProcesses),
		doneScheduling: make(chan struct{}),
	}

	w.processFuncs = map[string]func(ctx context.Context, job *models.Job) error{
		models.JobTypeNotify:              w.ProcessNotifyJob,
		models.JobTypeFineAccrual:         w.ProcessFineAccrualJob,
		models.JobTypePrebookingExpiry:    w.ProcessPrebookingExpiryJob,
		models.JobTypeOverdueReminder:     w.ProcessOverdueReminderJob,
		models.JobTypeReservationReminder: w.ProcessReservationReminderJob,
	}

	return w
}

func (w *Worker) Start() {
	go w.fetchJobs()
	go w.schedule()
	for i := 0; i < w.config.WorkerProcesses; i++ {
		go w.processJobs()
	}
}

func (w *Worker) fetchJobs() {
	timer := time.NewTimer(pollInterval)

	for {
		select {
		case <-w.shutdown:
			// We're shutting down, so stop adding more jobs to the queue.
			timer.Stop()
			w.doneFetching <- struct{}{}
			return
		case <-timer.C:
			j, err := w.jobService.ListJobs(context.Background(), jobs.ListJobsOptions{
				Limit:              pointerutil.Int(w.config.WorkerProcesses),
				Statuses:           []string{models.JobStatusPending, models.JobStatusInProgress},
				ProcessIDToExclude: &processID,
			})
			if err != nil {
				w.log.Err(err).Error("list jobs error")
				timer.Reset(pollInterval)
				continue
			}
			for _, job := range j {
				select {
				case w.queue <- job:
				case <-w.shutdown:
				}
			}
			timer.Reset(pollInterval)
		}
	}
}

func (w *Worker) processJobs() {
	for {
		select {
		case <-w.shutdown:
			w.doneProcessing <- struct{}{}
			return
		case job := <-w.queue:
			w.runJob(job)
		}
	}
}

// runJob claims the job, runs its process function and records the outcome.
func (w *Worker) runJob(job *models.Job) {
	// Prep the context to be passed down to the process function.
	id, err := uuid.NewRandom()
	if err != nil {
		w.log.Err(err).Error("new uuid error")
		return
	}
	log := w.log.ID(id.String()).Root(logger.Data{"job_id": job.ID, "type": job.Type, "process_id": processID})
	ctx := log.WithContext(context.Background())

	claimed, err := w.jobService.ClaimJob(ctx, job, processID)
	if err != nil {
		log.Err(err).Error("claim job error")
		return
	}
	if !claimed {
		return
	}

	jobLog := w.jobLogService.NewJobLogger(ctx, job.ID)

	fn, ok := w.processFuncs[job.Type]
	if !ok {
		jobLog.Error("can't find process function for type", errUnknownType, nil)
		w.finish(ctx, job, errUnknownType)
		return
	}

	jobLog.Info("job started", nil)
	err = fn(ctx, job)
	if err != nil {
		jobLog.Error("job failed", err, nil)
	} else {
		jobLog.Info("job completed", nil)
	}
	w.finish(ctx, job, err)
}

// finish marks the job completed, or failed with the error text.
func (w *Worker) finish(ctx context.Context, job *models.Job, jobErr error) {
	job.Status = models.JobStatusCompleted
	columns := []string{"status"}
	if jobErr != nil {
		job.Status = models.JobStatusFailed
		job.Error = pointerutil.String(jobErr.Error())
		columns = append(columns, "error")
	}

	err := w.jobService.UpdateJob(ctx, job, jobs.UpdateJobOptions{
		Columns: columns,
	})
	if err != nil {
		logger.FromContext(ctx).Err(err).Error("update job error")
	}
}

func (w *Worker) Shutdown() {
	close(w.shutdown)

	<-w.doneFetching
	<-w.doneScheduling
	for i := 0; i < w.config.WorkerProcesses; i++ {
		<-w.doneProcessing
	}
}

const letterBytes = "abcdef0123456789"

func randStringBytes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}
