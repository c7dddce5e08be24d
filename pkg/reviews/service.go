package reviews

import (
	"context"
	"database/sql"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/serenitylibrary/serenity/pkg/models"
	"github.com/uptrace/bun"
)

type RetrieveReviewOptions struct {
	ID *int
}

type ListReviewsOptions struct {
	BookTitle *string
	UserName  *string
	BookID    *int
	Limit     *int
	Offset    *int

	includeTotal bool
}

type UpdateReviewOptions struct {
	Columns []string
}

// BookRating is the mean rating of one book across its reviews.
type BookRating struct {
	BookID        int     `bun:"book_id" json:"book_id"`
	AverageRating float64 `bun:"average_rating" json:"average_rating"`
	ReviewCount   int     `bun:"review_count" json:"review_count"`
}

type Service struct {
	db    *bun.DB
	clock clockwork.Clock
}

func NewService(db *bun.DB, clock clockwork.Clock) *Service {
	return &Service{db, clock}
}

func (svc *Service) CreateReview(ctx context.Context, review *models.Review) error {
	exists, err := svc.db.NewSelect().
		Model((*models.Book)(nil)).
		Where("id = ?", review.BookID).
		Exists(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if !exists {
		return errcodes.NotFound("Book")
	}

	now := svc.clock.Now().UTC()
	review.CreatedAt = now
	review.UpdatedAt = now
	review.ReviewDate = now

	_, err = svc.db.
		NewInsert().
		Model(review).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	return nil
}

func (svc *Service) RetrieveReview(ctx context.Context, opts RetrieveReviewOptions) (*models.Review, error) {
	review := &models.Review{}

	q := svc.db.
		NewSelect().
		Model(review).
		Relation("User").
		Relation("Book")

	if opts.ID != nil {
		q = q.Where("rv.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Review")
		}
		return nil, errors.WithStack(err)
	}

	return review, nil
}

func (svc *Service) ListReviews(ctx context.Context, opts ListReviewsOptions) ([]*models.Review, error) {
	r, _, err := svc.listReviewsWithTotal(ctx, opts)
	return r, errors.WithStack(err)
}

func (svc *Service) ListReviewsWithTotal(ctx context.Context, opts ListReviewsOptions) ([]*models.Review, int, error) {
	opts.includeTotal = true
	return svc.listReviewsWithTotal(ctx, opts)
}

func (svc *Service) listReviewsWithTotal(ctx context.Context, opts ListReviewsOptions) ([]*models.Review, int, error) {
	reviews := []*models.Review{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&reviews).
		Relation("User").
		Relation("Book").
		Order("rv.id DESC")

	if opts.BookTitle != nil {
		q = q.Where(`"book"."title" = ? COLLATE NOCASE`, *opts.BookTitle)
	}
	if opts.UserName != nil {
		q = q.Where(`"user"."name" = ? COLLATE NOCASE`, *opts.UserName)
	}
	if opts.BookID != nil {
		q = q.Where("rv.book_id = ?", *opts.BookID)
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

	return reviews, total, nil
}

func (svc *Service) UpdateReview(ctx context.Context, review *models.Review, opts UpdateReviewOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	review.UpdatedAt = svc.clock.Now().UTC()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(review).
		Column(columns...).
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) DeleteReview(ctx context.Context, id int) error {
	res, err := svc.db.
		NewDelete().
		Model((*models.Review)(nil)).
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
		return errcodes.NotFound("Review")
	}
	return nil
}

// AverageRatings returns one entry per reviewed book, ordered by book id.
func (svc *Service) AverageRatings(ctx context.Context) ([]BookRating, error) {
	ratings := []BookRating{}
	err := svc.db.NewSelect().
		Model((*models.Review)(nil)).
		Column("book_id").
		ColumnExpr("AVG(rating) AS average_rating").
		ColumnExpr("COUNT(*) AS review_count").
		Group("book_id").
		Order("book_id ASC").
		Scan(ctx, &ratings)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return ratings, nil
}
