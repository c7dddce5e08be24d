package users

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/serenitylibrary/serenity/pkg/auth"
	"github.com/serenitylibrary/serenity/pkg/database"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/serenitylibrary/serenity/pkg/models"
	"github.com/uptrace/bun"
)

// Service handles user operations.
type Service struct {
	db    *bun.DB
	clock clockwork.Clock
}

// NewService creates a new users service.
func NewService(db *bun.DB, clock clockwork.Clock) *Service {
	return &Service{db, clock}
}

// CreateUserOptions contains options for creating a user.
type CreateUserOptions struct {
	Name        string
	Email       string
	Password    string
	Address     *string
	PhoneNumber *string
	Role        string
}

// Create creates a new user.
func (s *Service) Create(ctx context.Context, opts CreateUserOptions) (*models.User, error) {
	exists, err := s.db.NewSelect().
		Model((*models.User)(nil)).
		Where("email = ? COLLATE NOCASE", opts.Email).
		Exists(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if exists {
		return nil, errcodes.Duplicate("A user with this email")
	}

	hashedPassword, err := auth.HashPassword(opts.Password)
	if err != nil {
		return nil, err
	}

	role := opts.Role
	if role == "" {
		role = models.RoleUser
	}

	now := s.clock.Now().UTC()
	user := &models.User{
		CreatedAt:        now,
		UpdatedAt:        now,
		Name:             opts.Name,
		Email:            strings.TrimSpace(opts.Email),
		PasswordHash:     hashedPassword,
		Address:          opts.Address,
		PhoneNumber:      opts.PhoneNumber,
		RegistrationDate: now,
		Role:             role,
	}

	_, err = s.db.NewInsert().Model(user).Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, errcodes.Duplicate("A user with this email")
		}
		return nil, errors.WithStack(err)
	}

	return user, nil
}

type RetrieveUserOptions struct {
	ID    *int
	Email *string
	Name  *string
}

// Retrieve gets a single user.
func (s *Service) Retrieve(ctx context.Context, opts RetrieveUserOptions) (*models.User, error) {
	user := &models.User{}
	q := s.db.NewSelect().Model(user)

	if opts.ID != nil {
		q = q.Where("u.id = ?", *opts.ID)
	}
	if opts.Email != nil {
		q = q.Where("u.email = ? COLLATE NOCASE", *opts.Email)
	}
	if opts.Name != nil {
		q = q.Where("u.name = ? COLLATE NOCASE", *opts.Name).Order("u.id ASC").Limit(1)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("User")
		}
		return nil, errors.WithStack(err)
	}
	return user, nil
}

// ListUsersOptions contains options for listing users.
type ListUsersOptions struct {
	Role   *string
	Limit  *int
	Offset *int

	includeTotal bool
}

func (s *Service) List(ctx context.Context, opts ListUsersOptions) ([]*models.User, error) {
	u, _, err := s.listWithTotal(ctx, opts)
	return u, errors.WithStack(err)
}

func (s *Service) ListWithTotal(ctx context.Context, opts ListUsersOptions) ([]*models.User, int, error) {
	opts.includeTotal = true
	return s.listWithTotal(ctx, opts)
}

func (s *Service) listWithTotal(ctx context.Context, opts ListUsersOptions) ([]*models.User, int, error) {
	users := []*models.User{}
	var total int
	var err error

	q := s.db.NewSelect().
		Model(&users).
		Order("u.id ASC")

	if opts.Role != nil {
		q = q.Where("u.role = ?", *opts.Role)
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

	return users, total, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	count, err := s.db.NewSelect().Model((*models.User)(nil)).Count(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return count, nil
}

// UpdateUserOptions lists the columns of the user to persist. A non-empty
// Password is hashed and stored as well.
type UpdateUserOptions struct {
	Columns  []string
	Password string
}

// Update updates a user.
func (s *Service) Update(ctx context.Context, user *models.User, opts UpdateUserOptions) error {
	columns := opts.Columns
	if opts.Password != "" {
		hash, err := auth.HashPassword(opts.Password)
		if err != nil {
			return err
		}
		user.PasswordHash = hash
		columns = append(columns, "password_hash")
	}
	if len(columns) == 0 {
		return nil
	}

	user.UpdatedAt = s.clock.Now().UTC()
	columns = append(columns, "updated_at")

	_, err := s.db.NewUpdate().
		Model(user).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return errcodes.Duplicate("A user with this email")
		}
		return errors.WithStack(err)
	}
	return nil
}

// Delete removes the account together with its closed history. Accounts with
// books on loan, waiting or approved reservations, or unpaid fines are kept.
func (s *Service) Delete(ctx context.Context, id int) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		user := &models.User{}
		err := tx.NewSelect().Model(user).Where("u.id = ?", id).Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errcodes.NotFound("User")
			}
			return errors.WithStack(err)
		}

		if user.BookCount > 0 {
			return errcodes.Precondition("User still has borrowed books.")
		}

		hasReservations, err := tx.NewSelect().
			Model((*models.Reservation)(nil)).
			Where("user_id = ?", id).
			Where("status IN (?)", bun.In([]string{models.ReservationStatusActive, models.ReservationStatusApproved})).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if hasReservations {
			return errcodes.Precondition("User still has open reservations.")
		}

		hasFines, err := tx.NewSelect().
			Model((*models.Fine)(nil)).
			Where("user_id = ?", id).
			Where("paid_status = ?", models.FineStatusNotPaid).
			Exists(ctx)
		if err != nil {
			return errors.WithStack(err)
		}
		if hasFines {
			return errcodes.Precondition("User still has unpaid fines.")
		}

		for _, model := range []interface{}{
			(*models.Fine)(nil),
			(*models.Reservation)(nil),
			(*models.BorrowRecord)(nil),
		} {
			_, err := tx.NewDelete().Model(model).Where("user_id = ?", id).Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}
		}

		_, err = tx.NewDelete().Model((*models.User)(nil)).Where("id = ?", id).Exec(ctx)
		return errors.WithStack(err)
	})
}
