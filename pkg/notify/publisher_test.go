package notify

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/serenitylibrary/serenity/pkg/jobs"
	"github.com/serenitylibrary/serenity/pkg/models"
	"github.com/serenitylibrary/serenity/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutbox_Publish(t *testing.T) {
	t.Parallel()
	db := testutils.NewTestDB(t)
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(testutils.Epoch)
	jobService := jobs.NewService(db, clock)

	NewOutbox(jobService, clock).Publish(ctx, models.Notification{
		Type:          models.NotificationReservationApproved,
		UserID:        4,
		BookID:        9,
		ReservationID: 2,
	})

	list, err := jobService.ListJobs(ctx, jobs.ListJobsOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.JobTypeNotify, list[0].Type)

	n, ok := list[0].DataParsed.(*models.Notification)
	require.True(t, ok)
	assert.Equal(t, models.NotificationReservationApproved, n.Type)
	assert.Equal(t, 2, n.ReservationID)
	assert.WithinDuration(t, testutils.Epoch, n.OccurredAt.UTC(), 0)
}

func TestOutbox_PublishFailureIsSwallowed(t *testing.T) {
	t.Parallel()
	db := testutils.NewTestDB(t)
	clock := clockwork.NewFakeClockAt(testutils.Epoch)
	outbox := NewOutbox(jobs.NewService(db, clock), clock)

	require.NoError(t, db.Close())
	assert.NotPanics(t, func() {
		outbox.Publish(context.Background(), models.Notification{Type: models.NotificationBorrowCreated, UserID: 1})
	})
}
