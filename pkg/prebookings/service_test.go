package prebookings

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/serenitylibrary/serenity/pkg/inventory"
	"github.com/serenitylibrary/serenity/pkg/models"
	"github.com/serenitylibrary/serenity/pkg/notify"
	"github.com/serenitylibrary/serenity/pkg/reservations"
	"github.com/serenitylibrary/serenity/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

const (
	day        = 24 * time.Hour
	loanPeriod = 10 * day
)

func newTestService(t *testing.T) (*Service, *bun.DB, *clockwork.FakeClock, *notify.Recorder) {
	t.Helper()
	db := testutils.NewTestDB(t)
	clock := clockwork.NewFakeClockAt(testutils.Epoch)
	recorder := &notify.Recorder{}
	ledger := inventory.NewLedger(clock)
	reservationService := reservations.NewService(db, clock, ledger, recorder)
	svc := NewService(db, clock, ledger, inventory.NewQuota(clock, 5), reservationService, recorder, loanPeriod, 2*day)
	return svc, db, clock, recorder
}

func TestPreBook(t *testing.T) {
	t.Parallel()
	svc, db, _, recorder := newTestService(t)
	ctx := context.Background()

	book := testutils.CreateBook(t, db, "Hold Me", 1)
	user := testutils.CreateUser(t, db, "Ada")

	record, err := svc.PreBook(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BorrowStatusBookingSuccess, record.Status)
	assert.WithinDuration(t, record.BorrowDate, record.DueDate, 0)
	assert.Equal(t, 0, testutils.ReloadBook(t, db, book.ID).AvailableCopies)
	assert.Equal(t, 1, testutils.ReloadUser(t, db, user.ID).BookCount)

	require.Len(t, recorder.Notifications, 1)
	n := recorder.Notifications[0]
	assert.Equal(t, models.NotificationPrebookingCreated, n.Type)
	require.NotNil(t, n.PickupDeadline)
	assert.WithinDuration(t, testutils.Epoch.Add(2*day), *n.PickupDeadline, 0)

	other := testutils.CreateUser(t, db, "Bob")
	_, err = svc.PreBook(ctx, other.ID, book.ID)
	var e *errcodes.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "capacity", e.Code)
}

func TestCancel(t *testing.T) {
	t.Parallel()
	svc, db, _, recorder := newTestService(t)
	ctx := context.Background()

	book := testutils.CreateBook(t, db, "Changed My Mind", 1)
	user := testutils.CreateUser(t, db, "Ada")

	_, err := svc.Cancel(ctx, user.ID, book.ID)
	assert.ErrorIs(t, err, errcodes.NotFound("Pre-booking"))

	_, err = svc.PreBook(ctx, user.ID, book.ID)
	require.NoError(t, err)

	record, err := svc.Cancel(ctx, user.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BorrowStatusCancelled, record.Status)
	assert.Equal(t, 1, testutils.ReloadBook(t, db, book.ID).AvailableCopies)
	assert.Equal(t, 0, testutils.ReloadUser(t, db, user.ID).BookCount)
	assert.Equal(t,
		[]string{models.NotificationPrebookingCreated, models.NotificationPrebookingCancelled},
		recorder.Types())
}

func TestCancel_PromotesWaitingReservation(t *testing.T) {
	t.Parallel()
	svc, db, clock, recorder := newTestService(t)
	ctx := context.Background()

	book := testutils.CreateBook(t, db, "Last Copy", 1)
	ada := testutils.CreateUser(t, db, "Ada")
	bob := testutils.CreateUser(t, db, "Bob")

	_, err := svc.PreBook(ctx, ada.ID, book.ID)
	require.NoError(t, err)
	waiting, err := svc.reservations.Enqueue(ctx, bob.ID, book.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, ada.ID, book.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, testutils.ReloadBook(t, db, book.ID).AvailableCopies)
	approved, err := svc.reservations.FindApproved(ctx, db, bob.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, waiting.ID, approved.ID)

	last := recorder.Notifications[len(recorder.Notifications)-1]
	assert.Equal(t, models.NotificationReservationApproved, last.Type)
	assert.Equal(t, bob.ID, last.UserID)

	// An expired hold goes to the queue the same way.
	carl := testutils.CreateUser(t, db, "Carl")
	other := testutils.CreateBook(t, db, "Forgotten Copy", 1)
	_, err = svc.PreBook(ctx, ada.ID, other.ID)
	require.NoError(t, err)
	_, err = svc.reservations.Enqueue(ctx, carl.ID, other.ID)
	require.NoError(t, err)

	clock.Advance(25 * time.Hour)
	expired, err := svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Equal(t, 0, testutils.ReloadBook(t, db, other.ID).AvailableCopies)
	_, err = svc.reservations.FindApproved(ctx, db, carl.ID, other.ID)
	require.NoError(t, err)
}

func TestApprove(t *testing.T) {
	t.Parallel()
	svc, db, clock, _ := newTestService(t)
	ctx := context.Background()

	book := testutils.CreateBook(t, db, "Collected", 1)
	user := testutils.CreateUser(t, db, "Ada")
	_, err := svc.PreBook(ctx, user.ID, book.ID)
	require.NoError(t, err)

	clock.Advance(6 * time.Hour)
	record, err := svc.Approve(ctx, user.ID, book.ID)
	require.NoError(t, err)

	pickedUp := testutils.Epoch.Add(6 * time.Hour)
	assert.Equal(t, models.BorrowStatusBookingAllocated, record.Status)
	assert.WithinDuration(t, pickedUp, record.BorrowDate, 0)
	assert.WithinDuration(t, pickedUp.Add(loanPeriod), record.DueDate, 0)
	assert.Equal(t, 0, testutils.ReloadBook(t, db, book.ID).AvailableCopies)
	assert.Equal(t, 1, testutils.ReloadUser(t, db, user.ID).BookCount)

	_, err = svc.Approve(ctx, user.ID, book.ID)
	assert.ErrorIs(t, err, errcodes.NotFound("Pre-booking"))
}

func TestExpireStale(t *testing.T) {
	t.Parallel()
	svc, db, clock, _ := newTestService(t)
	ctx := context.Background()

	stale := testutils.CreateBook(t, db, "Forgotten", 1)
	fresh := testutils.CreateBook(t, db, "Fresh", 1)
	collected := testutils.CreateBook(t, db, "Collected", 1)
	ada := testutils.CreateUser(t, db, "Ada")
	bob := testutils.CreateUser(t, db, "Bob")

	_, err := svc.PreBook(ctx, ada.ID, stale.ID)
	require.NoError(t, err)
	_, err = svc.PreBook(ctx, bob.ID, collected.ID)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, bob.ID, collected.ID)
	require.NoError(t, err)

	clock.Advance(13 * time.Hour)
	_, err = svc.PreBook(ctx, bob.ID, fresh.ID)
	require.NoError(t, err)

	expired, err := svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)

	clock.Advance(12 * time.Hour)
	expired, err = svc.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	assert.Equal(t, 1, testutils.ReloadBook(t, db, stale.ID).AvailableCopies)
	assert.Equal(t, 0, testutils.ReloadBook(t, db, fresh.ID).AvailableCopies)
	assert.Equal(t, 0, testutils.ReloadBook(t, db, collected.ID).AvailableCopies)
	assert.Equal(t, 0, testutils.ReloadUser(t, db, ada.ID).BookCount)
	assert.Equal(t, 2, testutils.ReloadUser(t, db, bob.ID).BookCount)

	holds, err := svc.ListHolds(ctx)
	require.NoError(t, err)
	require.Len(t, holds, 1)
	assert.Equal(t, fresh.ID, holds[0].BookID)

	emails, err := svc.PendingEmails(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{bob.Email}, emails)
}
