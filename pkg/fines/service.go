package fines

import (
	"context"
	"database/sql"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/serenitylibrary/serenity/pkg/database"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/serenitylibrary/serenity/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type RetrieveFineOptions struct {
	ID *int
}

type ListFinesOptions struct {
	UserID     *int
	PaidStatus *string
	Limit      *int
	Offset     *int

	includeTotal bool
}

// AccrualResult summarises one accrual run.
type AccrualResult struct {
	Scanned int `json:"scanned"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

type Service struct {
	db    *bun.DB
	clock clockwork.Clock
	rate  decimal.Decimal
}

// NewService builds the fine service. rate is charged per whole day overdue.
func NewService(db *bun.DB, clock clockwork.Clock, rate decimal.Decimal) *Service {
	return &Service{db, clock, rate}
}

// ParseRate parses a per-day fine rate such as "5" or "2.50".
func ParseRate(s string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "invalid fine rate %q", s)
	}
	if rate.IsNegative() {
		return decimal.Zero, errors.Errorf("fine rate %q must not be negative", s)
	}
	return rate, nil
}

// Amount is the fine owed for a loan that is the given number of whole days
// overdue.
func (svc *Service) Amount(daysOverdue int) decimal.Decimal {
	return svc.rate.Mul(decimal.NewFromInt(int64(daysOverdue)))
}

// Accrue scans every unreturned loan past its due date. A loan without an
// unpaid fine gets one once it is at least a day overdue; an existing unpaid
// fine has its amount recomputed from the total days overdue. The whole run
// commits together. A record that fails is logged and skipped.
func (svc *Service) Accrue(ctx context.Context) (*AccrualResult, error) {
	log := logger.FromContext(ctx)
	now := svc.clock.Now().UTC()
	result := &AccrualResult{}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		overdue := []*models.BorrowRecord{}
		err := tx.NewSelect().
			Model(&overdue).
			Where("br.due_date < ?", now).
			Where("br.return_date IS NULL").
			Where("br.status IN (?)", bun.In(models.LoanStatuses)).
			Order("br.id ASC").
			Scan(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		for _, record := range overdue {
			result.Scanned++
			created, updated, err := svc.accrueOne(ctx, tx, record, now)
			if err != nil {
				result.Failed++
				log.Err(err).Error("failed to accrue fine", logger.Data{
					"borrow_record_id": record.ID,
					"user_id":          record.UserID,
					"book_id":          record.BookID,
				})
				continue
			}
			if created {
				result.Created++
			}
			if updated {
				result.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("fine accrual finished", logger.Data{
		"scanned": result.Scanned,
		"created": result.Created,
		"updated": result.Updated,
		"failed":  result.Failed,
	})
	return result, nil
}

func (svc *Service) accrueOne(ctx context.Context, idb bun.IDB, record *models.BorrowRecord, now time.Time) (bool, bool, error) {
	days := int(now.Sub(record.DueDate) / (24 * time.Hour))
	amount := svc.Amount(days)

	existing := &models.Fine{}
	err := idb.NewSelect().
		Model(existing).
		Where("f.user_id = ?", record.UserID).
		Where("f.book_id = ?", record.BookID).
		Where("f.paid_status = ?", models.FineStatusNotPaid).
		Limit(1).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, false, errors.WithStack(err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		if days <= 0 {
			return false, false, nil
		}
		fine := &models.Fine{
			CreatedAt:  now,
			UpdatedAt:  now,
			UserID:     record.UserID,
			BookID:     record.BookID,
			Amount:     amount,
			FineDate:   now,
			PaidStatus: models.FineStatusNotPaid,
		}
		_, err := idb.NewInsert().Model(fine).Exec(ctx)
		if err != nil {
			return false, false, errors.WithStack(err)
		}
		return true, false, nil
	}

	if existing.Amount.Equal(amount) {
		return false, false, nil
	}
	existing.Amount = amount
	existing.UpdatedAt = now
	_, err = idb.NewUpdate().
		Model(existing).
		Column("amount", "updated_at").
		WherePK().
		Where("paid_status = ?", models.FineStatusNotPaid).
		Exec(ctx)
	if err != nil {
		return false, false, errors.WithStack(err)
	}
	return false, true, nil
}

func (svc *Service) Retrieve(ctx context.Context, opts RetrieveFineOptions) (*models.Fine, error) {
	fine := &models.Fine{}

	q := svc.db.NewSelect().
		Model(fine).
		Relation("User").
		Relation("Book")

	if opts.ID != nil {
		q = q.Where("f.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Fine")
		}
		return nil, errors.WithStack(err)
	}
	return fine, nil
}

func (svc *Service) List(ctx context.Context, opts ListFinesOptions) ([]*models.Fine, error) {
	f, _, err := svc.listWithTotal(ctx, opts)
	return f, errors.WithStack(err)
}

func (svc *Service) ListWithTotal(ctx context.Context, opts ListFinesOptions) ([]*models.Fine, int, error) {
	opts.includeTotal = true
	return svc.listWithTotal(ctx, opts)
}

func (svc *Service) listWithTotal(ctx context.Context, opts ListFinesOptions) ([]*models.Fine, int, error) {
	fines := []*models.Fine{}
	var total int
	var err error

	q := svc.db.NewSelect().
		Model(&fines).
		Relation("User").
		Relation("Book").
		Order("f.id DESC")

	if opts.UserID != nil {
		q = q.Where("f.user_id = ?", *opts.UserID)
	}
	if opts.PaidStatus != nil {
		q = q.Where("f.paid_status = ?", *opts.PaidStatus)
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

	return fines, total, nil
}

// TotalUnpaid sums the unpaid fines, optionally for one user. Amounts are
// stored as text, so the sum is done here to stay exact.
func (svc *Service) TotalUnpaid(ctx context.Context, userID *int) (decimal.Decimal, error) {
	amounts := []string{}
	q := svc.db.NewSelect().
		Model((*models.Fine)(nil)).
		Column("amount").
		Where("paid_status = ?", models.FineStatusNotPaid)
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	if err := q.Scan(ctx, &amounts); err != nil {
		return decimal.Zero, errors.WithStack(err)
	}

	total := decimal.Zero
	for _, a := range amounts {
		d, err := decimal.NewFromString(a)
		if err != nil {
			return decimal.Zero, errors.Wrapf(err, "invalid fine amount %q", a)
		}
		total = total.Add(d)
	}
	return total, nil
}

// MarkAllPaid settles every unpaid fine of the user and returns how many were
// settled.
func (svc *Service) MarkAllPaid(ctx context.Context, userID int) (int, error) {
	res, err := svc.db.NewUpdate().
		Model((*models.Fine)(nil)).
		Set("paid_status = ?", models.FineStatusPaid).
		Set("updated_at = ?", svc.clock.Now().UTC()).
		Where("user_id = ?", userID).
		Where("paid_status = ?", models.FineStatusNotPaid).
		Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return int(n), nil
}

// UpdatePaidStatus changes the status of a single fine. Reopening a paid fine
// is refused while another unpaid fine exists for the same loan.
func (svc *Service) UpdatePaidStatus(ctx context.Context, id int, status string) (*models.Fine, error) {
	fine, err := svc.Retrieve(ctx, RetrieveFineOptions{ID: &id})
	if err != nil {
		return nil, err
	}
	if fine.PaidStatus == status {
		return fine, nil
	}

	fine.PaidStatus = status
	fine.UpdatedAt = svc.clock.Now().UTC()
	_, err = svc.db.NewUpdate().
		Model(fine).
		Column("paid_status", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errcodes.Duplicate("An unpaid fine for this loan")
		}
		return nil, errors.WithStack(err)
	}
	return fine, nil
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	res, err := svc.db.NewDelete().
		Model((*models.Fine)(nil)).
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
		return errcodes.NotFound("Fine")
	}
	return nil
}
