package server

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/serenitylibrary/serenity/pkg/auth"
	"github.com/serenitylibrary/serenity/pkg/borrows"
	"github.com/serenitylibrary/serenity/pkg/config"
	"github.com/serenitylibrary/serenity/pkg/fines"
	"github.com/serenitylibrary/serenity/pkg/inventory"
	"github.com/serenitylibrary/serenity/pkg/jobs"
	"github.com/serenitylibrary/serenity/pkg/notify"
	"github.com/serenitylibrary/serenity/pkg/prebookings"
	"github.com/serenitylibrary/serenity/pkg/reservations"
	"github.com/serenitylibrary/serenity/pkg/worker"
	"github.com/uptrace/bun"
)

const day = 24 * time.Hour

// Services holds the circulation services shared by the HTTP server and the
// worker, wired to one ledger, one quota and one outbox.
type Services struct {
	Auth         *auth.Service
	Borrows      *borrows.Service
	Fines        *fines.Service
	Jobs         *jobs.Service
	Outbox       *notify.Outbox
	Prebookings  *prebookings.Service
	Reservations *reservations.Service
}

func NewServices(cfg *config.Config, db *bun.DB, clock clockwork.Clock) (*Services, error) {
	rate, err := fines.ParseRate(cfg.FineRatePerDay)
	if err != nil {
		return nil, err
	}

	loanPeriod := time.Duration(cfg.LoanPeriodDays) * day
	pickupWindow := time.Duration(cfg.PrebookingPickupDays) * day

	jobService := jobs.NewService(db, clock)
	outbox := notify.NewOutbox(jobService, clock)
	ledger := inventory.NewLedger(clock)
	quota := inventory.NewQuota(clock, cfg.MaxBooksPerUser)
	reservationService := reservations.NewService(db, clock, ledger, outbox)

	return &Services{
		Auth:         auth.NewService(db, clock, cfg.JWTSecret, cfg.TokenExpiry),
		Borrows:      borrows.NewService(db, clock, ledger, quota, reservationService, outbox, loanPeriod),
		Fines:        fines.NewService(db, clock, rate),
		Jobs:         jobService,
		Outbox:       outbox,
		Prebookings:  prebookings.NewService(db, clock, ledger, quota, reservationService, outbox, loanPeriod, pickupWindow),
		Reservations: reservationService,
	}, nil
}

// Worker returns the subset the background worker drives.
func (s *Services) Worker() worker.Services {
	return worker.Services{
		Borrows:      s.Borrows,
		Fines:        s.Fines,
		Jobs:         s.Jobs,
		Prebookings:  s.Prebookings,
		Reservations: s.Reservations,
		Publisher:    s.Outbox,
	}
}
