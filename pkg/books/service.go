package books

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/serenitylibrary/serenity/pkg/database"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/serenitylibrary/serenity/pkg/models"
	"github.com/uptrace/bun"
)

type RetrieveBookOptions struct {
	ID    *int
	Title *string
}

type ListBooksOptions struct {
	Available *bool
	Genre     *string
	Author    *string
	Language  *string
	Publisher *string
	Title     *string
	Limit     *int
	Offset    *int

	includeTotal bool
}

type UpdateBookOptions struct {
	Columns []string
}

// Suggestion fields accepted by Suggestions.
var suggestionColumns = map[string]string{
	"title":     "b.title",
	"author":    "b.author",
	"language":  "b.language",
	"publisher": "b.publisher_name",
}

type Service struct {
	db    *bun.DB
	clock clockwork.Clock
}

func NewService(db *bun.DB, clock clockwork.Clock) *Service {
	return &Service{db, clock}
}

// CreateBook inserts a book with every copy on the shelf.
func (svc *Service) CreateBook(ctx context.Context, book *models.Book) error {
	if err := validateCopies(book.TotalCopies); err != nil {
		return err
	}

	now := svc.clock.Now().UTC()
	book.CreatedAt = now
	book.UpdatedAt = now
	book.AvailableCopies = book.TotalCopies

	_, err := svc.db.NewInsert().Model(book).Returning("*").Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return errcodes.Duplicate("A book with this title")
		}
		return errors.WithStack(err)
	}
	return nil
}

func (svc *Service) RetrieveBook(ctx context.Context, opts RetrieveBookOptions) (*models.Book, error) {
	book := &models.Book{}

	q := svc.db.NewSelect().
		Model(book).
		Relation("Genre")

	if opts.ID != nil {
		q = q.Where("b.id = ?", *opts.ID)
	}
	if opts.Title != nil {
		q = q.Where("b.title = ? COLLATE NOCASE", *opts.Title)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Book")
		}
		return nil, errors.WithStack(err)
	}

	return book, nil
}

func (svc *Service) ListBooks(ctx context.Context, opts ListBooksOptions) ([]*models.Book, error) {
	b, _, err := svc.listBooksWithTotal(ctx, opts)
	return b, errors.WithStack(err)
}

func (svc *Service) ListBooksWithTotal(ctx context.Context, opts ListBooksOptions) ([]*models.Book, int, error) {
	opts.includeTotal = true
	return svc.listBooksWithTotal(ctx, opts)
}

func (svc *Service) listBooksWithTotal(ctx context.Context, opts ListBooksOptions) ([]*models.Book, int, error) {
	books := []*models.Book{}
	var total int
	var err error

	q := svc.db.NewSelect().
		Model(&books).
		Relation("Genre").
		Order("b.title ASC")

	if opts.Available != nil {
		if *opts.Available {
			q = q.Where("b.available_copies > 0")
		} else {
			q = q.Where("b.available_copies = 0")
		}
	}
	if opts.Genre != nil {
		q = q.Where("genre.name = ? COLLATE NOCASE", *opts.Genre)
	}
	if opts.Author != nil {
		q = q.Where("b.author = ? COLLATE NOCASE", *opts.Author)
	}
	if opts.Language != nil {
		q = q.Where("b.language = ? COLLATE NOCASE", *opts.Language)
	}
	if opts.Publisher != nil {
		q = q.Where("b.publisher_name = ? COLLATE NOCASE", *opts.Publisher)
	}
	if opts.Title != nil {
		q = q.Where("b.title LIKE ? ESCAPE '\\'", "%"+escapeLike(*opts.Title)+"%")
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

	return books, total, nil
}

// UpdateBook persists the listed columns. Changing total_copies moves the
// shelf count by the same amount and fails when that would leave fewer copies
// than are currently out.
func (svc *Service) UpdateBook(ctx context.Context, book *models.Book, opts UpdateBookOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	book.UpdatedAt = svc.clock.Now().UTC()

	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		columns := make([]string, 0, len(opts.Columns)+1)
		for _, col := range opts.Columns {
			if col == "total_copies" {
				if err := svc.resize(ctx, tx, book); err != nil {
					return err
				}
				continue
			}
			columns = append(columns, col)
		}
		columns = append(columns, "updated_at")

		_, err := tx.NewUpdate().
			Model(book).
			Column(columns...).
			WherePK().
			Exec(ctx)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return errcodes.Duplicate("A book with this title")
			}
			return errors.WithStack(err)
		}

		return errors.WithStack(tx.NewSelect().Model(book).WherePK().Scan(ctx))
	})
}

func (svc *Service) resize(ctx context.Context, idb bun.IDB, book *models.Book) error {
	if err := validateCopies(book.TotalCopies); err != nil {
		return err
	}

	res, err := idb.NewUpdate().
		Model((*models.Book)(nil)).
		Set("available_copies = available_copies + (? - total_copies)", book.TotalCopies).
		Set("total_copies = ?", book.TotalCopies).
		Where("id = ?", book.ID).
		Where("available_copies + (? - total_copies) >= 0", book.TotalCopies).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if n == 0 {
		exists, err := idb.NewSelect().Model((*models.Book)(nil)).Where("id = ?", book.ID).Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if !exists {
			return errcodes.NotFound("Book")
		}
		return errcodes.Precondition("Total copies cannot drop below the copies currently out.")
	}
	return nil
}

// DeleteBook removes a book and its closed history. Books with copies out or
// with waiting or approved reservations are kept.
func (svc *Service) DeleteBook(ctx context.Context, id int) error {
	return svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		book := &models.Book{}
		err := tx.NewSelect().Model(book).Where("b.id = ?", id).Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("Book")
			}
			return errors.WithStack(err)
		}

		if book.AvailableCopies < book.TotalCopies {
			return errcodes.Precondition("Book still has copies out.")
		}

		reserved, err := tx.NewSelect().
			Model((*models.Reservation)(nil)).
			Where("book_id = ?", id).
			Where("status IN (?)", bun.In([]string{models.ReservationStatusActive, models.ReservationStatusApproved})).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if reserved {
			return errcodes.Precondition("Book still has open reservations.")
		}

		unpaid, err := tx.NewSelect().
			Model((*models.Fine)(nil)).
			Where("book_id = ?", id).
			Where("paid_status = ?", models.FineStatusNotPaid).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if unpaid {
			return errcodes.Precondition("Book still has unpaid fines.")
		}

		for _, model := range []interface{}{
			(*models.Fine)(nil),
			(*models.Reservation)(nil),
			(*models.BorrowRecord)(nil),
		} {
			_, err := tx.NewDelete().Model(model).Where("book_id = ?", id).Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		_, err = tx.NewDelete().Model((*models.Book)(nil)).Where("id = ?", id).Exec(ctx)
		return errors.WithStack(err)
	})
}

// TotalCopies sums the copies the library owns across all titles.
func (svc *Service) TotalCopies(ctx context.Context) (int, error) {
	var total int
	err := svc.db.NewSelect().
		Model((*models.Book)(nil)).
		ColumnExpr("COALESCE(SUM(total_copies), 0)").
		Scan(ctx, &total)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return total, nil
}

// Suggestions returns up to limit distinct values of field containing query.
func (svc *Service) Suggestions(ctx context.Context, field, query string, limit int) ([]string, error) {
	column, ok := suggestionColumns[strings.ToLower(field)]
	if !ok {
		return nil, errcodes.ValidationError("Unknown suggestion field " + field + ".")
	}
	suggestions := []string{}
	if strings.TrimSpace(query) == "" {
		return suggestions, nil
	}

	err := svc.db.NewSelect().
		Model((*models.Book)(nil)).
		ColumnExpr("DISTINCT ?", bun.Safe(column)).
		Where("? LIKE ? ESCAPE '\\'", bun.Safe(column), "%"+escapeLike(query)+"%").
		Where("? IS NOT NULL", bun.Safe(column)).
		OrderExpr("? ASC", bun.Safe(column)).
		Limit(limit).
		Scan(ctx, &suggestions)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return suggestions, nil
}

func validateCopies(total int) error {
	if total < 0 || total > models.MaxCopiesPerTitle {
		return errcodes.ValidationError("total_copies must be between 0 and 20.")
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// parseDate parses a YYYY-MM-DD string as midnight UTC.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, errcodes.ValidationError("publication_date must be a date formatted as YYYY-MM-DD.")
	}
	return &t, nil
}
