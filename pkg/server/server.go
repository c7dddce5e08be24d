package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/serenitylibrary/serenity/pkg/auth"
	"github.com/serenitylibrary/serenity/pkg/binder"
	"github.com/serenitylibrary/serenity/pkg/books"
	"github.com/serenitylibrary/serenity/pkg/borrows"
	"github.com/serenitylibrary/serenity/pkg/config"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/serenitylibrary/serenity/pkg/events"
	"github.com/serenitylibrary/serenity/pkg/fines"
	"github.com/serenitylibrary/serenity/pkg/genres"
	"github.com/serenitylibrary/serenity/pkg/joblogs"
	"github.com/serenitylibrary/serenity/pkg/jobs"
	"github.com/serenitylibrary/serenity/pkg/mailer"
	"github.com/serenitylibrary/serenity/pkg/otp"
	"github.com/serenitylibrary/serenity/pkg/prebookings"
	"github.com/serenitylibrary/serenity/pkg/reservations"
	"github.com/serenitylibrary/serenity/pkg/reviews"
	"github.com/serenitylibrary/serenity/pkg/users"
	"github.com/uptrace/bun"
)

func New(cfg *config.Config, db *bun.DB, clock clockwork.Clock, svcs *Services, otpStore *otp.Store, sender mailer.Sender) (*http.Server, error) {
	e, err := newEcho(cfg, db, clock, svcs, otpStore, sender)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func newEcho(cfg *config.Config, db *bun.DB, clock clockwork.Clock, svcs *Services, otpStore *otp.Store, sender mailer.Sender) (*echo.Echo, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)

	auth.RegisterRoutes(e, svcs.Auth, otpStore, sender)
	authMiddleware := auth.NewMiddleware(svcs.Auth)

	users.RegisterRoutes(e, db, clock, authMiddleware)

	registerProtectedRoutes(e, db, clock, svcs, authMiddleware)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	return e, nil
}

// registerProtectedRoutes registers every route group that needs a signed-in
// user. Admin-only routes are restricted inside each package.
func registerProtectedRoutes(e *echo.Echo, db *bun.DB, clock clockwork.Clock, svcs *Services, authMiddleware *auth.Middleware) {
	booksGroup := e.Group("/books")
	booksGroup.Use(authMiddleware.Authenticate)
	books.RegisterRoutesWithGroup(booksGroup, db, clock, authMiddleware)

	genresGroup := e.Group("/genres")
	genresGroup.Use(authMiddleware.Authenticate)
	genres.RegisterRoutesWithGroup(genresGroup, db, clock, authMiddleware)

	reviewsGroup := e.Group("/reviews")
	reviewsGroup.Use(authMiddleware.Authenticate)
	reviews.RegisterRoutesWithGroup(reviewsGroup, db, clock)

	eventsGroup := e.Group("/events")
	eventsGroup.Use(authMiddleware.Authenticate)
	events.RegisterRoutesWithGroup(eventsGroup, db, clock, authMiddleware)

	borrowsGroup := e.Group("/borrows")
	borrowsGroup.Use(authMiddleware.Authenticate)
	borrows.RegisterRoutesWithGroup(borrowsGroup, svcs.Borrows, authMiddleware)

	prebookingsGroup := e.Group("/prebookings")
	prebookingsGroup.Use(authMiddleware.Authenticate)
	prebookings.RegisterRoutesWithGroup(prebookingsGroup, svcs.Prebookings, authMiddleware)

	reservationsGroup := e.Group("/reservations")
	reservationsGroup.Use(authMiddleware.Authenticate)
	reservations.RegisterRoutesWithGroup(reservationsGroup, svcs.Reservations, authMiddleware)

	finesGroup := e.Group("/fines")
	finesGroup.Use(authMiddleware.Authenticate)
	fines.RegisterRoutesWithGroup(finesGroup, svcs.Fines, authMiddleware)

	jobsGroup := e.Group("/jobs")
	jobsGroup.Use(authMiddleware.Authenticate)
	jobs.RegisterRoutesWithGroup(jobsGroup, db, clock, authMiddleware)
	joblogs.RegisterRoutes(jobsGroup, db, clock)
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
