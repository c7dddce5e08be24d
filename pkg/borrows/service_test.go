package borrows

import (
	"context"
	"sync"
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

const loanPeriod = 10 * 24 * time.Hour

type fixture struct {
	db           *bun.DB
	clock        *clockwork.FakeClock
	recorder     *notify.Recorder
	borrows      *Service
	reservations *reservations.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutils.NewTestDB(t)
	clock := clockwork.NewFakeClockAt(testutils.Epoch)
	recorder := &notify.Recorder{}
	ledger := inventory.NewLedger(clock)
	reservationService := reservations.NewService(db, clock, ledger, recorder)
	return &fixture{
		db:           db,
		clock:        clock,
		recorder:     recorder,
		borrows:      NewService(db, clock, ledger, inventory.NewQuota(clock, 5), reservationService, recorder, loanPeriod),
		reservations: reservationService,
	}
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	var e *errcodes.Error
	require.True(t, errors.As(err, &e), "expected an errcodes.Error, got %v", err)
	return e.Code
}

func TestCreate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	book := testutils.CreateBook(t, f.db, "Middlemarch", 2)
	user := testutils.CreateUser(t, f.db, "Ada")

	record, err := f.borrows.Create(ctx, CreateBorrowOptions{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)

	assert.Equal(t, models.BorrowStatusOrdinary, record.Status)
	assert.Nil(t, record.ReturnDate)
	assert.WithinDuration(t, testutils.Epoch, record.BorrowDate, 0)
	assert.WithinDuration(t, testutils.Epoch.AddDate(0, 0, 10), record.DueDate, 0)
	assert.Equal(t, 1, testutils.ReloadBook(t, f.db, book.ID).AvailableCopies)
	assert.Equal(t, 1, testutils.ReloadUser(t, f.db, user.ID).BookCount)
	assert.Equal(t, []string{models.NotificationBorrowCreated}, f.recorder.Types())
	assert.Equal(t, record.ID, f.recorder.Notifications[0].BorrowRecordID)
}

func TestCreate_NoCopies(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	book := testutils.CreateBook(t, f.db, "Persuasion", 0)
	user := testutils.CreateUser(t, f.db, "Ada")

	_, err := f.borrows.Create(ctx, CreateBorrowOptions{UserID: user.ID, BookID: book.ID})
	assert.Equal(t, "capacity", errCode(t, err))
	assert.Equal(t, 0, testutils.ReloadUser(t, f.db, user.ID).BookCount)
	assert.Empty(t, f.recorder.Notifications)
}

func TestCreate_LimitRollsBackDecrement(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	user := testutils.CreateUser(t, f.db, "Greedy")
	stack := testutils.CreateBook(t, f.db, "Stack", 10)
	for i := 0; i < 5; i++ {
		_, err := f.borrows.Create(ctx, CreateBorrowOptions{UserID: user.ID, BookID: stack.ID})
		require.NoError(t, err)
	}

	other := testutils.CreateBook(t, f.db, "One More", 1)
	_, err := f.borrows.Create(ctx, CreateBorrowOptions{UserID: user.ID, BookID: other.ID})
	assert.Equal(t, "limit_exceeded", errCode(t, err))

	assert.Equal(t, 1, testutils.ReloadBook(t, f.db, other.ID).AvailableCopies)
	assert.Equal(t, 5, testutils.ReloadUser(t, f.db, user.ID).BookCount)
}

func TestCreate_MissingRecords(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	book := testutils.CreateBook(t, f.db, "Orphan", 1)
	user := testutils.CreateUser(t, f.db, "Ada")

	_, err := f.borrows.Create(ctx, CreateBorrowOptions{UserID: user.ID, BookID: 999})
	assert.ErrorIs(t, err, errcodes.NotFound("Book"))

	_, err = f.borrows.Create(ctx, CreateBorrowOptions{UserID: 999, BookID: book.ID})
	assert.ErrorIs(t, err, errcodes.NotFound("User"))
	assert.Equal(t, 1, testutils.ReloadBook(t, f.db, book.ID).AvailableCopies)
}

func TestCreate_ConcurrentLastCopy(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	book := testutils.CreateBook(t, f.db, "Last Copy", 1)
	users := make([]*models.User, 8)
	for i := range users {
		users[i] = testutils.CreateUser(t, f.db, "Racer")
	}

	var wg sync.WaitGroup
	results := make([]error, len(users))
	for i, user := range users {
		wg.Add(1)
		go func(i, userID int) {
			defer wg.Done()
			_, results[i] = f.borrows.Create(ctx, CreateBorrowOptions{UserID: userID, BookID: book.ID})
		}(i, user.ID)
	}
	wg.Wait()

	won := 0
	for _, err := range results {
		if err == nil {
			won++
			continue
		}
		assert.Equal(t, "capacity", errCode(t, err))
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 0, testutils.ReloadBook(t, f.db, book.ID).AvailableCopies)

	count, err := f.borrows.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReturn_NoQueue(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	book := testutils.CreateBook(t, f.db, "Walden", 1)
	user := testutils.CreateUser(t, f.db, "Ada")
	record, err := f.borrows.Create(ctx, CreateBorrowOptions{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)

	f.clock.Advance(3 * 24 * time.Hour)
	returned, err := f.borrows.Return(ctx, ReturnBorrowOptions{ID: &record.ID})
	require.NoError(t, err)
	require.NotNil(t, returned.ReturnDate)
	assert.WithinDuration(t, testutils.Epoch.Add(3*24*time.Hour), *returned.ReturnDate, 0)

	assert.Equal(t, 1, testutils.ReloadBook(t, f.db, book.ID).AvailableCopies)
	assert.Equal(t, 0, testutils.ReloadUser(t, f.db, user.ID).BookCount)

	_, err = f.borrows.Return(ctx, ReturnBorrowOptions{ID: &record.ID})
	assert.Equal(t, "precondition_failed", errCode(t, err))
	assert.Equal(t, 1, testutils.ReloadBook(t, f.db, book.ID).AvailableCopies)
}

func TestReturn_ByUserAndBook(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	book := testutils.CreateBook(t, f.db, "Ulysses", 1)
	user := testutils.CreateUser(t, f.db, "Ada")

	_, err := f.borrows.Return(ctx, ReturnBorrowOptions{UserID: &user.ID, BookID: &book.ID})
	assert.ErrorIs(t, err, errcodes.NotFound("Borrow record"))

	_, err = f.borrows.Create(ctx, CreateBorrowOptions{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)

	_, err = f.borrows.Return(ctx, ReturnBorrowOptions{UserID: &user.ID, BookID: &book.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, testutils.ReloadBook(t, f.db, book.ID).AvailableCopies)
}

// One copy, one borrower and two readers queued behind them.
func TestReturn_PromotesQueueHead(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	book := testutils.CreateBook(t, f.db, "Rebecca", 1)
	u1 := testutils.CreateUser(t, f.db, "U1")
	u2 := testutils.CreateUser(t, f.db, "U2")
	u3 := testutils.CreateUser(t, f.db, "U3")

	loan, err := f.borrows.Create(ctx, CreateBorrowOptions{UserID: u1.ID, BookID: book.ID})
	require.NoError(t, err)

	r2, err := f.reservations.Enqueue(ctx, u2.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, r2.QueuePosition)
	r3, err := f.reservations.Enqueue(ctx, u3.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, r3.QueuePosition)

	_, err = f.borrows.Return(ctx, ReturnBorrowOptions{ID: &loan.ID})
	require.NoError(t, err)

	assert.Equal(t, 0, testutils.ReloadBook(t, f.db, book.ID).AvailableCopies)
	got2, err := f.reservations.Retrieve(ctx, reservations.RetrieveReservationOptions{ID: &r2.ID})
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusApproved, got2.Status)
	got3, err := f.reservations.Retrieve(ctx, reservations.RetrieveReservationOptions{ID: &r3.ID})
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusActive, got3.Status)
	assert.Equal(t, 2, got3.QueuePosition)

	assert.Equal(t,
		[]string{models.NotificationBorrowCreated, models.NotificationReservationApproved},
		f.recorder.Types())
	assert.Equal(t, u2.ID, f.recorder.Notifications[1].UserID)

	record, err := f.borrows.BorrowReserved(ctx, u2.ID, book.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BorrowStatusOrdinary, record.Status)
	assert.Equal(t, 0, testutils.ReloadBook(t, f.db, book.ID).AvailableCopies)
	assert.Equal(t, 1, testutils.ReloadUser(t, f.db, u2.ID).BookCount)

	got2, err = f.reservations.Retrieve(ctx, reservations.RetrieveReservationOptions{ID: &r2.ID})
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusCompleted, got2.Status)
}

func TestBorrowReserved_RequiresApproval(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	book := testutils.CreateBook(t, f.db, "Beloved", 0)
	user := testutils.CreateUser(t, f.db, "Ada")
	_, err := f.reservations.Enqueue(ctx, user.ID, book.ID)
	require.NoError(t, err)

	_, err = f.borrows.BorrowReserved(ctx, user.ID, book.ID)
	assert.Equal(t, "precondition_failed", errCode(t, err))
	assert.Equal(t, 0, testutils.ReloadUser(t, f.db, user.ID).BookCount)
}

func TestDelete(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	book := testutils.CreateBook(t, f.db, "Nostromo", 1)
	user := testutils.CreateUser(t, f.db, "Ada")
	record, err := f.borrows.Create(ctx, CreateBorrowOptions{UserID: user.ID, BookID: book.ID})
	require.NoError(t, err)

	require.NoError(t, f.borrows.Delete(ctx, record.ID))
	assert.ErrorIs(t, f.borrows.Delete(ctx, record.ID), errcodes.NotFound("Borrow record"))
	assert.Equal(t, 0, testutils.ReloadBook(t, f.db, book.ID).AvailableCopies)
}

func TestQueries(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	book := testutils.CreateBook(t, f.db, "Kindred", 5)
	ada := testutils.CreateUser(t, f.db, "Ada")
	bob := testutils.CreateUser(t, f.db, "Bob")

	march := testutils.Epoch
	april := time.Date(2026, time.April, 15, 12, 0, 0, 0, time.UTC)

	first, err := f.borrows.Create(ctx, CreateBorrowOptions{UserID: ada.ID, BookID: book.ID, BorrowDate: &march})
	require.NoError(t, err)
	_, err = f.borrows.Create(ctx, CreateBorrowOptions{UserID: ada.ID, BookID: book.ID, BorrowDate: &april})
	require.NoError(t, err)
	_, err = f.borrows.Create(ctx, CreateBorrowOptions{UserID: bob.ID, BookID: book.ID, BorrowDate: &april})
	require.NoError(t, err)

	_, err = f.borrows.Return(ctx, ReturnBorrowOptions{ID: &first.ID})
	require.NoError(t, err)

	t.Run("by user", func(t *testing.T) {
		list, total, err := f.borrows.ListWithTotal(ctx, ListBorrowsOptions{UserID: &ada.ID})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, list, 2)
		assert.NotNil(t, list[0].Book)
	})

	t.Run("date range includes the end day", func(t *testing.T) {
		from := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2026, time.April, 15, 0, 0, 0, 0, time.UTC)
		list, err := f.borrows.List(ctx, ListBorrowsOptions{BorrowedFrom: &from, BorrowedTo: &to})
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("returned", func(t *testing.T) {
		returned := true
		list, err := f.borrows.List(ctx, ListBorrowsOptions{Returned: &returned})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, first.ID, list[0].ID)
	})

	t.Run("monthly counts", func(t *testing.T) {
		counts, err := f.borrows.MonthlyCounts(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, []MonthlyCount{{"2026-03", 1}, {"2026-04", 2}}, counts)

		counts, err = f.borrows.MonthlyCounts(ctx, &bob.ID)
		require.NoError(t, err)
		assert.Equal(t, []MonthlyCount{{"2026-04", 1}}, counts)
	})

	t.Run("active count and unreturned emails", func(t *testing.T) {
		count, err := f.borrows.CountActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		emails, err := f.borrows.UnreturnedEmails(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{ada.Email, bob.Email}, emails)
	})

	t.Run("overdue", func(t *testing.T) {
		f.clock.Advance(60 * 24 * time.Hour)
		overdue, err := f.borrows.Overdue(ctx)
		require.NoError(t, err)
		assert.Len(t, overdue, 2)
	})
}
