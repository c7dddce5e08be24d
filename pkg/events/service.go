package events

import (
	"context"
	"database/sql"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/serenitylibrary/serenity/pkg/models"
	"github.com/uptrace/bun"
)

const (
	WhenUpcoming = "upcoming"
	WhenPast     = "past"
)

type ListEventsOptions struct {
	// When limits to events after now (upcoming, soonest first) or at or
	// before now (past, latest first).
	When        *string
	Name        *string
	Description *string
	// Date matches events on the same UTC calendar day.
	Date   *time.Time
	Limit  *int
	Offset *int

	includeTotal bool
}

type UpdateEventOptions struct {
	Columns []string
}

type Service struct {
	db    *bun.DB
	clock clockwork.Clock
}

func NewService(db *bun.DB, clock clockwork.Clock) *Service {
	return &Service{db, clock}
}

func (svc *Service) CreateEvent(ctx context.Context, event *models.Event) error {
	now := svc.clock.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now
	event.EventDate = event.EventDate.UTC()

	_, err := svc.db.
		NewInsert().
		Model(event).
		Returning("*").
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) RetrieveEvent(ctx context.Context, id int) (*models.Event, error) {
	event := &models.Event{}
	err := svc.db.
		NewSelect().
		Model(event).
		Where("e.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Event")
		}
		return nil, errors.WithStack(err)
	}
	return event, nil
}

func (svc *Service) ListEvents(ctx context.Context, opts ListEventsOptions) ([]*models.Event, error) {
	e, _, err := svc.listEventsWithTotal(ctx, opts)
	return e, errors.WithStack(err)
}

func (svc *Service) ListEventsWithTotal(ctx context.Context, opts ListEventsOptions) ([]*models.Event, int, error) {
	opts.includeTotal = true
	return svc.listEventsWithTotal(ctx, opts)
}

func (svc *Service) listEventsWithTotal(ctx context.Context, opts ListEventsOptions) ([]*models.Event, int, error) {
	events := []*models.Event{}
	var total int
	var err error
	now := svc.clock.Now().UTC()

	q := svc.db.
		NewSelect().
		Model(&events)

	switch {
	case opts.When != nil && *opts.When == WhenUpcoming:
		q = q.Where("e.event_date > ?", now).Order("e.event_date ASC")
	case opts.When != nil && *opts.When == WhenPast:
		q = q.Where("e.event_date <= ?", now).Order("e.event_date DESC")
	default:
		q = q.Order("e.event_date ASC")
	}

	if opts.Name != nil && *opts.Name != "" {
		q = q.Where("e.event_name LIKE ?", "%"+*opts.Name+"%")
	}
	if opts.Description != nil && *opts.Description != "" {
		q = q.Where("e.description LIKE ?", "%"+*opts.Description+"%")
	}
	if opts.Date != nil {
		day := time.Date(opts.Date.Year(), opts.Date.Month(), opts.Date.Day(), 0, 0, 0, 0, time.UTC)
		q = q.Where("e.event_date >= ? AND e.event_date < ?", day, day.AddDate(0, 0, 1))
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

	return events, total, nil
}

func (svc *Service) UpdateEvent(ctx context.Context, event *models.Event, opts UpdateEventOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	event.UpdatedAt = svc.clock.Now().UTC()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(event).
		Column(columns...).
		WherePK().
		Exec(ctx)
	return errors.WithStack(err)
}

func (svc *Service) DeleteEvent(ctx context.Context, id int) error {
	res, err := svc.db.
		NewDelete().
		Model((*models.Event)(nil)).
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
		return errcodes.NotFound("Event")
	}
	return nil
}

func (svc *Service) CountEvents(ctx context.Context) (int, error) {
	count, err := svc.db.NewSelect().Model((*models.Event)(nil)).Count(ctx)
	return count, errors.WithStack(err)
}
