package prebookings

import (
	"context"
	"database/sql"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/serenitylibrary/serenity/pkg/inventory"
	"github.com/serenitylibrary/serenity/pkg/models"
	"github.com/serenitylibrary/serenity/pkg/notify"
	"github.com/serenitylibrary/serenity/pkg/reservations"
	"github.com/uptrace/bun"
)

// holdLifetime is how long an uncollected hold survives before the expiry
// sweep cancels it. It is separate from the pickup window quoted to readers.
const holdLifetime = 24 * time.Hour

type Service struct {
	db           *bun.DB
	clock        clockwork.Clock
	ledger       *inventory.Ledger
	quota        *inventory.Quota
	reservations *reservations.Service
	publisher    notify.Publisher
	loanPeriod   time.Duration
	pickupWindow time.Duration
}

func NewService(
	db *bun.DB,
	clock clockwork.Clock,
	ledger *inventory.Ledger,
	quota *inventory.Quota,
	reservationService *reservations.Service,
	publisher notify.Publisher,
	loanPeriod time.Duration,
	pickupWindow time.Duration,
) *Service {
	return &Service{db, clock, ledger, quota, reservationService, publisher, loanPeriod, pickupWindow}
}

// PreBook sets a copy aside for the user to collect. The copy leaves the
// shelf and counts against the user's limit straight away.
func (svc *Service) PreBook(ctx context.Context, userID, bookID int) (*models.BorrowRecord, error) {
	now := svc.clock.Now().UTC()
	record := &models.BorrowRecord{
		CreatedAt:  now,
		UpdatedAt:  now,
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: now,
		DueDate:    now,
		Status:     models.BorrowStatusBookingSuccess,
	}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := svc.ledger.Decrement(ctx, tx, bookID); err != nil {
			return err
		}
		if err := svc.quota.Take(ctx, tx, userID); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(record).Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, err
	}

	deadline := now.Add(svc.pickupWindow)
	svc.publisher.Publish(ctx, models.Notification{
		Type:           models.NotificationPrebookingCreated,
		UserID:         userID,
		BookID:         bookID,
		BorrowRecordID: record.ID,
		PickupDeadline: &deadline,
	})

	return record, nil
}

// Cancel releases the user's uncollected hold on the book.
func (svc *Service) Cancel(ctx context.Context, userID, bookID int) (*models.BorrowRecord, error) {
	record, err := svc.findHold(ctx, svc.db, userID, bookID)
	if err != nil {
		return nil, err
	}
	if err := svc.cancelHold(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// cancelHold gives the held copy to the head of the book's reservation queue,
// or back to the shelf when nobody is waiting.
func (svc *Service) cancelHold(ctx context.Context, record *models.BorrowRecord) error {
	var promoted *models.Reservation

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		moved, err := svc.transition(ctx, tx, record, models.BorrowStatusCancelled, record.BorrowDate, record.DueDate)
		if err != nil {
			return err
		}
		if !moved {
			return errcodes.NotFound("Pre-booking")
		}
		if err := svc.quota.Release(ctx, tx, record.UserID); err != nil {
			return err
		}
		promoted, err = svc.reservations.ReleaseCopy(ctx, tx, record.BookID)
		return err
	})
	if err != nil {
		return err
	}

	svc.publisher.Publish(ctx, models.Notification{
		Type:           models.NotificationPrebookingCancelled,
		UserID:         record.UserID,
		BookID:         record.BookID,
		BorrowRecordID: record.ID,
	})
	if promoted != nil {
		svc.publisher.Publish(ctx, models.Notification{
			Type:          models.NotificationReservationApproved,
			UserID:        promoted.UserID,
			BookID:        promoted.BookID,
			ReservationID: promoted.ID,
		})
	}
	return nil
}

// Approve hands the held copy over. The loan period starts now.
func (svc *Service) Approve(ctx context.Context, userID, bookID int) (*models.BorrowRecord, error) {
	var record *models.BorrowRecord

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		record, err = svc.findHold(ctx, tx, userID, bookID)
		if err != nil {
			return err
		}
		now := svc.clock.Now().UTC()
		moved, err := svc.transition(ctx, tx, record, models.BorrowStatusBookingAllocated, now, now.Add(svc.loanPeriod))
		if err != nil {
			return err
		}
		if !moved {
			return errcodes.NotFound("Pre-booking")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	svc.publisher.Publish(ctx, models.Notification{
		Type:           models.NotificationPrebookingApproved,
		UserID:         record.UserID,
		BookID:         record.BookID,
		BorrowRecordID: record.ID,
	})

	return record, nil
}

// ExpireStale cancels holds that were never collected. A hold qualifies while
// its borrow and due dates still fall on the same day and more than a day has
// passed since it was placed. Failures are logged and the sweep moves on.
func (svc *Service) ExpireStale(ctx context.Context) (int, error) {
	log := logger.FromContext(ctx)
	now := svc.clock.Now().UTC()

	holds, err := svc.ListHolds(ctx)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, hold := range holds {
		if !sameDay(hold.BorrowDate, hold.DueDate) || now.Sub(hold.BorrowDate) <= holdLifetime {
			continue
		}
		if err := svc.cancelHold(ctx, hold); err != nil {
			log.Err(err).Error("failed to expire pre-booking", logger.Data{
				"borrow_record_id": hold.ID,
				"user_id":          hold.UserID,
				"book_id":          hold.BookID,
			})
			continue
		}
		expired++
	}

	if expired > 0 {
		log.Info("expired stale pre-bookings", logger.Data{"count": expired})
	}
	return expired, nil
}

// ListHolds returns every uncollected hold, oldest first.
func (svc *Service) ListHolds(ctx context.Context) ([]*models.BorrowRecord, error) {
	holds := []*models.BorrowRecord{}
	err := svc.db.NewSelect().
		Model(&holds).
		Relation("User").
		Relation("Book").
		Where("br.status = ?", models.BorrowStatusBookingSuccess).
		Order("br.borrow_date ASC", "br.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return holds, nil
}

// PendingEmails returns the distinct emails of users with a hold waiting to
// be collected.
func (svc *Service) PendingEmails(ctx context.Context) ([]string, error) {
	emails := []string{}
	err := svc.db.NewSelect().
		Model((*models.BorrowRecord)(nil)).
		ColumnExpr("DISTINCT u.email").
		Join("JOIN users AS u ON u.id = br.user_id").
		Where("br.status = ?", models.BorrowStatusBookingSuccess).
		OrderExpr("u.email ASC").
		Scan(ctx, &emails)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return emails, nil
}

func (svc *Service) findHold(ctx context.Context, idb bun.IDB, userID, bookID int) (*models.BorrowRecord, error) {
	record := &models.BorrowRecord{}
	err := idb.NewSelect().
		Model(record).
		Where("br.user_id = ?", userID).
		Where("br.book_id = ?", bookID).
		Where("br.status = ?", models.BorrowStatusBookingSuccess).
		Order("br.borrow_date ASC", "br.id ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Pre-booking")
		}
		return nil, errors.WithStack(err)
	}
	return record, nil
}

// transition moves a hold out of booking_success. It reports false when the
// hold was already resolved by someone else.
func (svc *Service) transition(ctx context.Context, idb bun.IDB, record *models.BorrowRecord, status string, borrowDate, dueDate time.Time) (bool, error) {
	now := svc.clock.Now().UTC()
	res, err := idb.NewUpdate().
		Model((*models.BorrowRecord)(nil)).
		Set("status = ?", status).
		Set("borrow_date = ?", borrowDate).
		Set("due_date = ?", dueDate).
		Set("updated_at = ?", now).
		Where("id = ?", record.ID).
		Where("status = ?", models.BorrowStatusBookingSuccess).
		Exec(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.WithStack(err)
	}
	if n == 0 {
		return false, nil
	}
	record.Status = status
	record.BorrowDate = borrowDate
	record.DueDate = dueDate
	record.UpdatedAt = now
	return true, nil
}

func sameDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
