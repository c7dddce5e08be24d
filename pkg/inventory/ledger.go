// Package inventory owns the copy counts of books. Every change to
// available_copies goes through a Ledger so the counts can only move by a
// guarded compare-and-swap inside the caller's transaction.
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

type Ledger struct {
	clock clockwork.Clock
}

func NewLedger(clock clockwork.Clock) *Ledger {
	return &Ledger{clock}
}

// Decrement takes one copy of the book off the shelf. It fails with
// errcodes.Capacity when no copy is available, including when a concurrent
// writer took the last one first.
func (l *Ledger) Decrement(ctx context.Context, idb bun.IDB, bookID int) error {
	res, err := idb.NewUpdate().
		Model((*models.Book)(nil)).
		Set("available_copies = available_copies - 1").
		Set("updated_at = ?", l.clock.Now().UTC()).
		Where("id = ?", bookID).
		Where("available_copies > 0").
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

	// Nothing changed, so either the book is gone or it is out of copies.
	if _, err := l.Available(ctx, idb, bookID); err != nil {
		return err
	}
	return errcodes.Capacity("Book")
}

// Increment puts one copy back on the shelf. A book that already has every
// copy on the shelf means the borrow records and the counts disagree, which is
// logged and returned as errcodes.InventoryDrift instead of being clamped.
func (l *Ledger) Increment(ctx context.Context, idb bun.IDB, bookID int) error {
	res, err := idb.NewUpdate().
		Model((*models.Book)(nil)).
		Set("available_copies = available_copies + 1").
		Set("updated_at = ?", l.clock.Now().UTC()).
		Where("id = ?", bookID).
		Where("available_copies < total_copies").
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

	if _, err := l.Available(ctx, idb, bookID); err != nil {
		return err
	}
	logger.FromContext(ctx).Error("inventory drift: copy returned to a full shelf", logger.Data{"book_id": bookID})
	return errcodes.InventoryDrift(bookID)
}

// Available returns the number of copies currently on the shelf.
func (l *Ledger) Available(ctx context.Context, idb bun.IDB, bookID int) (int, error) {
	var available int
	err := idb.NewSelect().
		Model((*models.Book)(nil)).
		Column("available_copies").
		Where("id = ?", bookID).
		Scan(ctx, &available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, errcodes.NotFound("Book")
		}
		return 0, errors.WithStack(err)
	}
	return available, nil
}
