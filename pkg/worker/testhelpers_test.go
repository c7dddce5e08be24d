package worker

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/serenitylibrary/serenity/pkg/borrows"
	"github.com/serenitylibrary/serenity/pkg/config"
	"github.com/serenitylibrary/serenity/pkg/fines"
	"github.com/serenitylibrary/serenity/pkg/inventory"
	"github.com/serenitylibrary/serenity/pkg/jobs"
	"github.com/serenitylibrary/serenity/pkg/mailer"
	"github.com/serenitylibrary/serenity/pkg/models"
	"github.com/serenitylibrary/serenity/pkg/notify"
	"github.com/serenitylibrary/serenity/pkg/prebookings"
	"github.com/serenitylibrary/serenity/pkg/receipts"
	"github.com/serenitylibrary/serenity/pkg/reservations"
	"github.com/serenitylibrary/serenity/pkg/testutils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

const day = 24 * time.Hour

// fakeReceipts writes an empty file per receipt, or fails with err.
type fakeReceipts struct {
	mu    sync.Mutex
	dir   string
	err   error
	paths []string
}

func (f *fakeReceipts) Generate(_ context.Context, d receipts.Details) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(f.dir, d.Email+".pdf")
	if err := os.WriteFile(path, []byte("%PDF"), 0o600); err != nil {
		return "", errors.WithStack(err)
	}
	f.paths = append(f.paths, path)
	return path, nil
}

type testContext struct {
	ctx        context.Context
	db         *bun.DB
	clock      *clockwork.FakeClock
	worker     *Worker
	sender     *mailer.Recorder
	receipts   *fakeReceipts
	jobService *jobs.Service
	borrows    *borrows.Service
	reserve    *reservations.Service
}

func newTestContext(t *testing.T) *testContext {
	t.Helper()

	db := testutils.NewTestDB(t)
	clock := clockwork.NewFakeClockAt(testutils.Epoch)
	cfg := config.NewForTest()
	cfg.WorkerProcesses = 1
	cfg.SchedulerInterval = 0

	jobService := jobs.NewService(db, clock)
	outbox := notify.NewOutbox(jobService, clock)
	ledger := inventory.NewLedger(clock)
	quota := inventory.NewQuota(clock, cfg.MaxBooksPerUser)
	loanPeriod := time.Duration(cfg.LoanPeriodDays) * day
	reservationService := reservations.NewService(db, clock, ledger, outbox)
	borrowService := borrows.NewService(db, clock, ledger, quota, reservationService, outbox, loanPeriod)

	sender := &mailer.Recorder{}
	generator := &fakeReceipts{dir: t.TempDir()}

	w := New(cfg, db, clock, Services{
		Borrows:      borrowService,
		Fines:        fines.NewService(db, clock, decimal.NewFromInt(5)),
		Jobs:         jobService,
		Prebookings:  prebookings.NewService(db, clock, ledger, quota, reservationService, outbox, loanPeriod, 2*day),
		Reservations: reservationService,
		Publisher:    outbox,
	}, sender, generator)

	return &testContext{
		ctx:        logger.New().WithContext(context.Background()),
		db:         db,
		clock:      clock,
		worker:     w,
		sender:     sender,
		receipts:   generator,
		jobService: jobService,
		borrows:    borrowService,
		reserve:    reservationService,
	}
}

// pendingJobs returns the queued jobs of the given type.
func (tc *testContext) pendingJobs(t *testing.T, jobType string) []*models.Job {
	t.Helper()
	list, err := tc.jobService.ListJobs(tc.ctx, jobs.ListJobsOptions{
		Type:     &jobType,
		Statuses: []string{models.JobStatusPending},
	})
	require.NoError(t, err)
	return list
}

// reload fetches the job's stored state.
func (tc *testContext) reload(t *testing.T, job *models.Job) *models.Job {
	t.Helper()
	got, err := tc.jobService.RetrieveJob(tc.ctx, jobs.RetrieveJobOptions{ID: &job.ID})
	require.NoError(t, err)
	return got
}
