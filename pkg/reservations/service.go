package reservations

import (
	"context"
	"database/sql"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/serenitylibrary/serenity/pkg/database"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/serenitylibrary/serenity/pkg/inventory"
	"github.com/serenitylibrary/serenity/pkg/models"
	"github.com/serenitylibrary/serenity/pkg/notify"
	"github.com/uptrace/bun"
)

type RetrieveReservationOptions struct {
	ID *int
}

type ListReservationsOptions struct {
	UserID   *int
	BookID   *int
	Statuses []string
	Limit    *int
	Offset   *int

	includeTotal bool
}

type Service struct {
	db        *bun.DB
	clock     clockwork.Clock
	ledger    *inventory.Ledger
	publisher notify.Publisher
}

func NewService(db *bun.DB, clock clockwork.Clock, ledger *inventory.Ledger, publisher notify.Publisher) *Service {
	return &Service{db, clock, ledger, publisher}
}

// Enqueue puts the user at the back of the queue for a sold-out book.
func (svc *Service) Enqueue(ctx context.Context, userID, bookID int) (*models.Reservation, error) {
	var reservation *models.Reservation

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		book := &models.Book{}
		err := tx.NewSelect().Model(book).Where("b.id = ?", bookID).Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("Book")
			}
			return errors.WithStack(err)
		}

		userExists, err := tx.NewSelect().Model((*models.User)(nil)).Where("id = ?", userID).Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if !userExists {
			return errcodes.NotFound("User")
		}

		if book.AvailableCopies > 0 {
			return errcodes.Precondition("Reservation is only allowed when no copies are available.")
		}

		exists, err := tx.NewSelect().
			Model((*models.Reservation)(nil)).
			Where("user_id = ?", userID).
			Where("book_id = ?", bookID).
			Where("status = ?", models.ReservationStatusActive).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if exists {
			return errcodes.Duplicate("Reservation")
		}

		ahead, err := tx.NewSelect().
			Model((*models.Reservation)(nil)).
			Where("book_id = ?", bookID).
			Where("status = ?", models.ReservationStatusActive).
			Count(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		now := svc.clock.Now().UTC()
		reservation = &models.Reservation{
			CreatedAt:       now,
			UpdatedAt:       now,
			UserID:          userID,
			BookID:          bookID,
			ReservationDate: now,
			Status:          models.ReservationStatusActive,
			QueuePosition:   ahead + 1,
		}
		_, err = tx.NewInsert().Model(reservation).Exec(ctx)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return errcodes.Duplicate("Reservation")
			}
			return errors.WithStack(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return reservation, nil
}

// PromoteNext approves the active reservation at the head of the book's
// queue. It returns nil when nobody is waiting. Positions of the remaining
// reservations are left untouched.
func (svc *Service) PromoteNext(ctx context.Context, idb bun.IDB, bookID int) (*models.Reservation, error) {
	head := &models.Reservation{}
	err := idb.NewSelect().
		Model(head).
		Where("r.book_id = ?", bookID).
		Where("r.status = ?", models.ReservationStatusActive).
		Order("r.queue_position ASC", "r.id ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}

	moved, err := svc.transition(ctx, idb, head.ID, models.ReservationStatusActive, models.ReservationStatusApproved)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, errcodes.Precondition("Reservation is no longer active.")
	}
	head.Status = models.ReservationStatusApproved
	return head, nil
}

// ReleaseCopy hands a copy that just came back to the head of the queue, or
// puts it back on the shelf when nobody is waiting. Exactly one of the two
// happens.
func (svc *Service) ReleaseCopy(ctx context.Context, idb bun.IDB, bookID int) (*models.Reservation, error) {
	promoted, err := svc.PromoteNext(ctx, idb, bookID)
	if err != nil {
		return nil, err
	}
	if promoted != nil {
		return promoted, nil
	}
	return nil, svc.ledger.Increment(ctx, idb, bookID)
}

// FindApproved returns the user's approved reservation for the book.
func (svc *Service) FindApproved(ctx context.Context, idb bun.IDB, userID, bookID int) (*models.Reservation, error) {
	reservation := &models.Reservation{}
	err := idb.NewSelect().
		Model(reservation).
		Where("r.user_id = ?", userID).
		Where("r.book_id = ?", bookID).
		Where("r.status = ?", models.ReservationStatusApproved).
		Order("r.id ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.Precondition("No approved reservation for this book.")
		}
		return nil, errors.WithStack(err)
	}
	return reservation, nil
}

// Complete marks an approved reservation as fulfilled by a borrow.
func (svc *Service) Complete(ctx context.Context, idb bun.IDB, reservationID int) error {
	moved, err := svc.transition(ctx, idb, reservationID, models.ReservationStatusApproved, models.ReservationStatusCompleted)
	if err != nil {
		return err
	}
	if !moved {
		return errcodes.Precondition("Reservation is not approved.")
	}
	return nil
}

// CancelByTitle cancels the user's active reservation for the book with the
// given title.
func (svc *Service) CancelByTitle(ctx context.Context, userID int, bookTitle string) (*models.Reservation, error) {
	reservation := &models.Reservation{}
	err := svc.db.NewSelect().
		Model(reservation).
		Join("JOIN books AS b ON b.id = r.book_id").
		Where("r.user_id = ?", userID).
		Where("b.title = ? COLLATE NOCASE", bookTitle).
		Where("r.status = ?", models.ReservationStatusActive).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Reservation")
		}
		return nil, errors.WithStack(err)
	}

	moved, err := svc.transition(ctx, svc.db, reservation.ID, models.ReservationStatusActive, models.ReservationStatusCancelled)
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, errcodes.NotFound("Reservation")
	}
	reservation.Status = models.ReservationStatusCancelled
	return reservation, nil
}

// CancelByID cancels an active or approved reservation. An approved
// reservation is holding a copy, so the copy is released to the next reader
// in the queue or back to the shelf.
func (svc *Service) CancelByID(ctx context.Context, id int) (*models.Reservation, error) {
	var reservation *models.Reservation
	var promoted *models.Reservation

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		reservation, err = svc.retrieve(ctx, tx, id)
		if err != nil {
			return err
		}

		switch reservation.Status {
		case models.ReservationStatusActive, models.ReservationStatusApproved:
		default:
			return errcodes.Precondition("Reservation is already " + reservation.Status + ".")
		}

		moved, err := svc.transition(ctx, tx, id, reservation.Status, models.ReservationStatusCancelled)
		if err != nil {
			return err
		}
		if !moved {
			return errcodes.Precondition("Reservation changed while cancelling.")
		}

		if reservation.Status == models.ReservationStatusApproved {
			promoted, err = svc.ReleaseCopy(ctx, tx, reservation.BookID)
			if err != nil {
				return err
			}
		}
		reservation.Status = models.ReservationStatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}

	if promoted != nil {
		svc.publisher.Publish(ctx, models.Notification{
			Type:          models.NotificationReservationApproved,
			UserID:        promoted.UserID,
			BookID:        promoted.BookID,
			ReservationID: promoted.ID,
		})
	}

	return reservation, nil
}

func (svc *Service) Retrieve(ctx context.Context, opts RetrieveReservationOptions) (*models.Reservation, error) {
	if opts.ID == nil {
		return nil, errcodes.NotFound("Reservation")
	}
	return svc.retrieve(ctx, svc.db, *opts.ID)
}

func (svc *Service) retrieve(ctx context.Context, idb bun.IDB, id int) (*models.Reservation, error) {
	reservation := &models.Reservation{}
	err := idb.NewSelect().
		Model(reservation).
		Relation("User").
		Relation("Book").
		Where("r.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Reservation")
		}
		return nil, errors.WithStack(err)
	}
	return reservation, nil
}

func (svc *Service) List(ctx context.Context, opts ListReservationsOptions) ([]*models.Reservation, error) {
	r, _, err := svc.listWithTotal(ctx, opts)
	return r, errors.WithStack(err)
}

func (svc *Service) ListWithTotal(ctx context.Context, opts ListReservationsOptions) ([]*models.Reservation, int, error) {
	opts.includeTotal = true
	return svc.listWithTotal(ctx, opts)
}

func (svc *Service) listWithTotal(ctx context.Context, opts ListReservationsOptions) ([]*models.Reservation, int, error) {
	reservations := []*models.Reservation{}
	var total int
	var err error

	q := svc.db.NewSelect().
		Model(&reservations).
		Relation("User").
		Relation("Book").
		Order("r.id DESC")

	if opts.UserID != nil {
		q = q.Where("r.user_id = ?", *opts.UserID)
	}
	if opts.BookID != nil {
		q = q.Where("r.book_id = ?", *opts.BookID)
	}
	if len(opts.Statuses) > 0 {
		q = q.Where("r.status IN (?)", bun.In(opts.Statuses))
	}
	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return reservations, total, nil
}

// CountActive counts active reservations, optionally for one user.
func (svc *Service) CountActive(ctx context.Context, userID *int) (int, error) {
	q := svc.db.NewSelect().
		Model((*models.Reservation)(nil)).
		Where("status = ?", models.ReservationStatusActive)
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return count, nil
}

// ApprovedEmails returns the distinct emails of users whose reservation has
// been approved but not yet turned into a borrow.
func (svc *Service) ApprovedEmails(ctx context.Context) ([]string, error) {
	emails := []string{}
	err := svc.db.NewSelect().
		Model((*models.Reservation)(nil)).
		ColumnExpr("DISTINCT u.email").
		Join("JOIN users AS u ON u.id = r.user_id").
		Where("r.status = ?", models.ReservationStatusApproved).
		OrderExpr("u.email ASC").
		Scan(ctx, &emails)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return emails, nil
}

// transition moves a reservation between states only if it is still in the
// expected one.
func (svc *Service) transition(ctx context.Context, idb bun.IDB, id int, from, to string) (bool, error) {
	res, err := idb.NewUpdate().
		Model((*models.Reservation)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", svc.clock.Now().UTC()).
		Where("id = ?", id).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return false, errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.WithStack(err)
	}
	if n == 0 {
		logger.FromContext(ctx).Warn("reservation transition lost", logger.Data{"reservation_id": id, "from": from, "to": to})
	}
	return n == 1, nil
}
