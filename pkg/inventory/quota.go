package inventory

import (
	"context"
	"database/sql"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/serenitylibrary/serenity/pkg/models"
	"github.com/uptrace/bun"
)

// Quota tracks users.book_count, the number of loan slots a reader holds.
type Quota struct {
	clock clockwork.Clock
	limit int
}

func NewQuota(clock clockwork.Clock, limit int) *Quota {
	return &Quota{clock, limit}
}

func (q *Quota) Limit() int {
	return q.limit
}

// Take claims one slot for the user, failing with errcodes.LimitExceeded when
// the user already holds the limit.
func (q *Quota) Take(ctx context.Context, idb bun.IDB, userID int) error {
	res, err := idb.NewUpdate().
		Model((*models.User)(nil)).
		Set("book_count = book_count + 1").
		Set("updated_at = ?", q.clock.Now().UTC()).
		Where("id = ?", userID).
		Where("book_count < ?", q.limit).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	updated, err := res.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if updated == 1 {
		return nil
	}

	if _, err := q.Held(ctx, idb, userID); err != nil {
		return err
	}
	return errcodes.LimitExceeded(q.limit)
}

// Release gives back one slot. Releasing from a user who holds none is logged
// and left at zero.
func (q *Quota) Release(ctx context.Context, idb bun.IDB, userID int) error {
	res, err := idb.NewUpdate().
		Model((*models.User)(nil)).
		Set("book_count = book_count - 1").
		Set("updated_at = ?", q.clock.Now().UTC()).
		Where("id = ?", userID).
		Where("book_count > 0").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	updated, err := res.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if updated == 0 {
		if _, err := q.Held(ctx, idb, userID); err != nil {
			return err
		}
		logger.FromContext(ctx).Warn("released a loan slot from a user holding none", logger.Data{"user_id": userID})
	}
	return nil
}

// Held returns the user's current book_count.
func (q *Quota) Held(ctx context.Context, idb bun.IDB, userID int) (int, error) {
	var held int
	err := idb.NewSelect().
		Model((*models.User)(nil)).
		Column("book_count").
		Where("id = ?", userID).
		Scan(ctx, &held)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, errcodes.NotFound("User")
		}
		return 0, errors.WithStack(err)
	}
	return held, nil
}
