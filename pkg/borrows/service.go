package borrows

import (
	"context"
	"database/sql"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/serenitylibrary/serenity/pkg/inventory"
	"github.com/serenitylibrary/serenity/pkg/models"
	"github.com/serenitylibrary/serenity/pkg/notify"
	"github.com/serenitylibrary/serenity/pkg/reservations"
	"github.com/uptrace/bun"
)

type CreateBorrowOptions struct {
	UserID     int
	BookID     int
	BorrowDate *time.Time
}

// ReturnBorrowOptions identifies the loan either by ID or by user and book.
type ReturnBorrowOptions struct {
	ID         *int
	UserID     *int
	BookID     *int
	ReturnDate *time.Time
}

type RetrieveBorrowOptions struct {
	ID *int
}

type ListBorrowsOptions struct {
	UserID   *int
	BookID   *int
	Statuses []string
	// BorrowedFrom and BorrowedTo bound borrow_date. BorrowedTo includes the
	// whole day it falls on.
	BorrowedFrom *time.Time
	BorrowedTo   *time.Time
	Returned     *bool
	OverdueAt    *time.Time
	Limit        *int
	Offset       *int

	includeTotal bool
}

type MonthlyCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

type Service struct {
	db           *bun.DB
	clock        clockwork.Clock
	ledger       *inventory.Ledger
	quota        *inventory.Quota
	reservations *reservations.Service
	publisher    notify.Publisher
	loanPeriod   time.Duration
}

func NewService(
	db *bun.DB,
	clock clockwork.Clock,
	ledger *inventory.Ledger,
	quota *inventory.Quota,
	reservationService *reservations.Service,
	publisher notify.Publisher,
	loanPeriod time.Duration,
) *Service {
	return &Service{db, clock, ledger, quota, reservationService, publisher, loanPeriod}
}

// LoanPeriod is how long a reader may keep a book.
func (svc *Service) LoanPeriod() time.Duration {
	return svc.loanPeriod
}

// Create lends a copy from the shelf. The book must have a copy available and
// the user must be under the borrow limit.
func (svc *Service) Create(ctx context.Context, opts CreateBorrowOptions) (*models.BorrowRecord, error) {
	now := svc.clock.Now().UTC()
	borrowDate := now
	if opts.BorrowDate != nil {
		borrowDate = opts.BorrowDate.UTC()
	}

	record := &models.BorrowRecord{
		CreatedAt:  now,
		UpdatedAt:  now,
		UserID:     opts.UserID,
		BookID:     opts.BookID,
		BorrowDate: borrowDate,
		DueDate:    borrowDate.Add(svc.loanPeriod),
		Status:     models.BorrowStatusOrdinary,
	}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := svc.ledger.Decrement(ctx, tx, opts.BookID); err != nil {
			return err
		}
		if err := svc.quota.Take(ctx, tx, opts.UserID); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(record).Exec(ctx)
		return errors.WithStack(err)
	})
	if err != nil {
		return nil, err
	}

	svc.publisher.Publish(ctx, models.Notification{
		Type:           models.NotificationBorrowCreated,
		UserID:         record.UserID,
		BookID:         record.BookID,
		BorrowRecordID: record.ID,
	})

	return record, nil
}

// BorrowReserved turns the user's approved reservation into a loan. The copy
// was set aside when the reservation was promoted, so the shelf count is not
// touched.
func (svc *Service) BorrowReserved(ctx context.Context, userID, bookID int) (*models.BorrowRecord, error) {
	now := svc.clock.Now().UTC()
	record := &models.BorrowRecord{
		CreatedAt:  now,
		UpdatedAt:  now,
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: now,
		DueDate:    now.Add(svc.loanPeriod),
		Status:     models.BorrowStatusOrdinary,
	}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		reservation, err := svc.reservations.FindApproved(ctx, tx, userID, bookID)
		if err != nil {
			return err
		}
		if err := svc.quota.Take(ctx, tx, userID); err != nil {
			return err
		}
		bookExists, err := tx.NewSelect().Model((*models.Book)(nil)).Where("id = ?", bookID).Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if !bookExists {
			return errcodes.NotFound("Book")
		}
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return errors.WithStack(err)
		}
		return svc.reservations.Complete(ctx, tx, reservation.ID)
	})
	if err != nil {
		return nil, err
	}

	svc.publisher.Publish(ctx, models.Notification{
		Type:           models.NotificationBorrowCreated,
		UserID:         record.UserID,
		BookID:         record.BookID,
		BorrowRecordID: record.ID,
	})

	return record, nil
}

// Return closes a loan. The copy goes to the head of the reservation queue
// if anyone is waiting, otherwise back on the shelf.
func (svc *Service) Return(ctx context.Context, opts ReturnBorrowOptions) (*models.BorrowRecord, error) {
	returnDate := svc.clock.Now().UTC()
	if opts.ReturnDate != nil {
		returnDate = opts.ReturnDate.UTC()
	}

	var record *models.BorrowRecord
	var promoted *models.Reservation

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var err error
		record, err = svc.findLoan(ctx, tx, opts)
		if err != nil {
			return err
		}

		record.ReturnDate = &returnDate
		record.UpdatedAt = svc.clock.Now().UTC()
		res, err := tx.NewUpdate().
			Model(record).
			Column("return_date", "updated_at").
			WherePK().
			Where("return_date IS NULL").
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return errors.WithStack(err)
		} else if n == 0 {
			return errcodes.Precondition("Book has already been returned.")
		}

		if err := svc.quota.Release(ctx, tx, record.UserID); err != nil {
			return err
		}

		promoted, err = svc.reservations.ReleaseCopy(ctx, tx, record.BookID)
		return err
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

	return record, nil
}

func (svc *Service) findLoan(ctx context.Context, idb bun.IDB, opts ReturnBorrowOptions) (*models.BorrowRecord, error) {
	record := &models.BorrowRecord{}

	if opts.ID != nil {
		err := idb.NewSelect().Model(record).Where("br.id = ?", *opts.ID).Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, errcodes.NotFound("Borrow record")
			}
			return nil, errors.WithStack(err)
		}
		if record.ReturnDate != nil {
			return nil, errcodes.Precondition("Book has already been returned.")
		}
		if !record.IsOnLoan() {
			return nil, errcodes.Precondition("Borrow record is not an active loan.")
		}
		return record, nil
	}

	if opts.UserID == nil || opts.BookID == nil {
		return nil, errcodes.ValidationError("Either id or user_id and book_id are required.")
	}

	err := idb.NewSelect().
		Model(record).
		Where("br.user_id = ?", *opts.UserID).
		Where("br.book_id = ?", *opts.BookID).
		Where("br.return_date IS NULL").
		Where("br.status IN (?)", bun.In(models.LoanStatuses)).
		Order("br.borrow_date ASC", "br.id ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Borrow record")
		}
		return nil, errors.WithStack(err)
	}
	return record, nil
}

// Delete removes a record without touching copies or counts.
func (svc *Service) Delete(ctx context.Context, id int) error {
	res, err := svc.db.NewDelete().
		Model((*models.BorrowRecord)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if n == 0 {
		return errcodes.NotFound("Borrow record")
	}
	return nil
}

func (svc *Service) Retrieve(ctx context.Context, opts RetrieveBorrowOptions) (*models.BorrowRecord, error) {
	record := &models.BorrowRecord{}

	q := svc.db.NewSelect().
		Model(record).
		Relation("User").
		Relation("Book")

	if opts.ID != nil {
		q = q.Where("br.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Borrow record")
		}
		return nil, errors.WithStack(err)
	}
	return record, nil
}

func (svc *Service) List(ctx context.Context, opts ListBorrowsOptions) ([]*models.BorrowRecord, error) {
	r, _, err := svc.listWithTotal(ctx, opts)
	return r, errors.WithStack(err)
}

func (svc *Service) ListWithTotal(ctx context.Context, opts ListBorrowsOptions) ([]*models.BorrowRecord, int, error) {
	opts.includeTotal = true
	return svc.listWithTotal(ctx, opts)
}

func (svc *Service) listWithTotal(ctx context.Context, opts ListBorrowsOptions) ([]*models.BorrowRecord, int, error) {
	records := []*models.BorrowRecord{}
	var total int
	var err error

	q := svc.db.NewSelect().
		Model(&records).
		Relation("User").
		Relation("Book").
		Order("br.id DESC")

	if opts.UserID != nil {
		q = q.Where("br.user_id = ?", *opts.UserID)
	}
	if opts.BookID != nil {
		q = q.Where("br.book_id = ?", *opts.BookID)
	}
	if len(opts.Statuses) > 0 {
		q = q.Where("br.status IN (?)", bun.In(opts.Statuses))
	}
	if opts.BorrowedFrom != nil {
		q = q.Where("br.borrow_date >= ?", startOfDay(*opts.BorrowedFrom))
	}
	if opts.BorrowedTo != nil {
		q = q.Where("br.borrow_date < ?", startOfDay(*opts.BorrowedTo).AddDate(0, 0, 1))
	}
	if opts.Returned != nil {
		if *opts.Returned {
			q = q.Where("br.return_date IS NOT NULL")
		} else {
			q = q.Where("br.return_date IS NULL")
		}
	}
	if opts.OverdueAt != nil {
		q = q.
			Where("br.due_date < ?", opts.OverdueAt.UTC()).
			Where("br.return_date IS NULL").
			Where("br.status IN (?)", bun.In(models.LoanStatuses))
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

	return records, total, nil
}

// Overdue lists unreturned loans past their due date.
func (svc *Service) Overdue(ctx context.Context) ([]*models.BorrowRecord, error) {
	now := svc.clock.Now().UTC()
	return svc.List(ctx, ListBorrowsOptions{OverdueAt: &now})
}

// CountActive counts the books currently on loan.
func (svc *Service) CountActive(ctx context.Context) (int, error) {
	count, err := svc.db.NewSelect().
		Model((*models.BorrowRecord)(nil)).
		Where("return_date IS NULL").
		Where("status IN (?)", bun.In(models.LoanStatuses)).
		Count(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return count, nil
}

// MonthlyCounts groups loans by the month they started in, optionally for a
// single user. Months are formatted as YYYY-MM.
func (svc *Service) MonthlyCounts(ctx context.Context, userID *int) ([]MonthlyCount, error) {
	counts := []MonthlyCount{}

	q := svc.db.NewSelect().
		Model((*models.BorrowRecord)(nil)).
		ColumnExpr("substr(br.borrow_date, 1, 7) AS month").
		ColumnExpr("COUNT(*) AS count").
		Where("br.status IN (?)", bun.In(models.LoanStatuses)).
		GroupExpr("month").
		OrderExpr("month ASC")
	if userID != nil {
		q = q.Where("br.user_id = ?", *userID)
	}

	if err := q.Scan(ctx, &counts); err != nil {
		return nil, errors.WithStack(err)
	}
	return counts, nil
}

// UnreturnedEmails returns the distinct emails of users holding at least one
// unreturned book.
func (svc *Service) UnreturnedEmails(ctx context.Context) ([]string, error) {
	emails := []string{}
	err := svc.db.NewSelect().
		Model((*models.BorrowRecord)(nil)).
		ColumnExpr("DISTINCT u.email").
		Join("JOIN users AS u ON u.id = br.user_id").
		Where("br.return_date IS NULL").
		Where("br.status IN (?)", bun.In(models.LoanStatuses)).
		OrderExpr("u.email ASC").
		Scan(ctx, &emails)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return emails, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
