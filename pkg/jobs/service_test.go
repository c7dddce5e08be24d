package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/serenitylibrary/serenity/pkg/models"
	"github.com/serenitylibrary/serenity/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_CreateAndRetrieve(t *testing.T) {
	t.Parallel()
	db := testutils.NewTestDB(t)
	ctx := context.Background()
	svc := NewService(db, clockwork.NewFakeClockAt(testutils.Epoch))

	job := &models.Job{
		Type:       models.JobTypeNotify,
		DataParsed: &models.Notification{Type: models.NotificationBorrowCreated, UserID: 3, BookID: 7},
	}
	require.NoError(t, svc.CreateJob(ctx, job))
	assert.NotZero(t, job.ID)
	assert.Equal(t, models.JobStatusPending, job.Status)

	got, err := svc.RetrieveJob(ctx, RetrieveJobOptions{ID: &job.ID})
	require.NoError(t, err)
	n, ok := got.DataParsed.(*models.Notification)
	require.True(t, ok)
	assert.Equal(t, models.NotificationBorrowCreated, n.Type)
	assert.Equal(t, 7, n.BookID)
}

func TestService_HasActiveJobByType(t *testing.T) {
	t.Parallel()
	db := testutils.NewTestDB(t)
	ctx := context.Background()
	svc := NewService(db, clockwork.NewFakeClockAt(testutils.Epoch))

	active, err := svc.HasActiveJobByType(ctx, models.JobTypeFineAccrual)
	require.NoError(t, err)
	assert.False(t, active)

	job := &models.Job{Type: models.JobTypeFineAccrual}
	require.NoError(t, svc.CreateJob(ctx, job))

	active, err = svc.HasActiveJobByType(ctx, models.JobTypeFineAccrual)
	require.NoError(t, err)
	assert.True(t, active)

	job.Status = models.JobStatusCompleted
	require.NoError(t, svc.UpdateJob(ctx, job, UpdateJobOptions{Columns: []string{"status"}}))

	active, err = svc.HasActiveJobByType(ctx, models.JobTypeFineAccrual)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestService_ListAndLatest(t *testing.T) {
	t.Parallel()
	db := testutils.NewTestDB(t)
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(testutils.Epoch)
	svc := NewService(db, clock)

	latest, err := svc.LatestJobByType(ctx, models.JobTypeOverdueReminder)
	require.NoError(t, err)
	assert.Nil(t, latest)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.CreateJob(ctx, &models.Job{Type: models.JobTypeOverdueReminder}))
		clock.Advance(time.Hour)
	}
	require.NoError(t, svc.CreateJob(ctx, &models.Job{Type: models.JobTypeFineAccrual}))

	jobType := models.JobTypeOverdueReminder
	list, total, err := svc.ListJobsWithTotal(ctx, ListJobsOptions{Type: &jobType})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, list, 3)

	latest, err = svc.LatestJobByType(ctx, models.JobTypeOverdueReminder)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.WithinDuration(t, testutils.Epoch.Add(2*time.Hour), latest.CreatedAt.UTC(), 0)
}

func TestService_ClaimJob(t *testing.T) {
	t.Parallel()
	db := testutils.NewTestDB(t)
	ctx := context.Background()
	svc := NewService(db, clockwork.NewFakeClockAt(testutils.Epoch))

	job := &models.Job{Type: models.JobTypeFineAccrual}
	require.NoError(t, svc.CreateJob(ctx, job))

	claimed, err := svc.ClaimJob(ctx, job, "aaaa")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, models.JobStatusInProgress, job.Status)

	claimed, err = svc.ClaimJob(ctx, job, "aaaa")
	require.NoError(t, err)
	assert.False(t, claimed)

	// A job left in progress by another process can be taken over.
	claimed, err = svc.ClaimJob(ctx, job, "bbbb")
	require.NoError(t, err)
	assert.True(t, claimed)

	job.Status = models.JobStatusCompleted
	require.NoError(t, svc.UpdateJob(ctx, job, UpdateJobOptions{Columns: []string{"status"}}))
	claimed, err = svc.ClaimJob(ctx, job, "cccc")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestService_RetryAndCount(t *testing.T) {
	t.Parallel()
	db := testutils.NewTestDB(t)
	ctx := context.Background()
	svc := NewService(db, clockwork.NewFakeClockAt(testutils.Epoch))

	failed := &models.Job{Type: models.JobTypeFineAccrual, Status: models.JobStatusFailed}
	require.NoError(t, svc.CreateJob(ctx, failed))
	failed.Error = pointerutil.String("smtp down")
	require.NoError(t, svc.UpdateJob(ctx, failed, UpdateJobOptions{Columns: []string{"error"}}))
	done := &models.Job{Type: models.JobTypeOverdueReminder, Status: models.JobStatusCompleted}
	require.NoError(t, svc.CreateJob(ctx, done))

	counts, err := svc.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"pending": 0, "in_progress": 0, "completed": 1, "failed": 1}, counts)

	job, err := svc.RetryJob(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Nil(t, job.Error)
	assert.Nil(t, job.ProcessID)

	_, err = svc.RetryJob(ctx, done.ID)
	assert.ErrorIs(t, err, errcodes.Precondition("Only failed jobs can be retried."))

	_, err = svc.RetryJob(ctx, 9999)
	assert.ErrorIs(t, err, errcodes.NotFound("Job"))
}

