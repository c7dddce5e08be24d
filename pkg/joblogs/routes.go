package joblogs

import (
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/serenitylibrary/serenity/pkg/jobs"
	"github.com/uptrace/bun"
)

// RegisterRoutes adds GET /:id/logs to the already guarded jobs group.
func RegisterRoutes(jobsGroup *echo.Group, db *bun.DB, clock clockwork.Clock) {
	h := &handler{
		jobLogService: NewService(db, clock),
		jobService:    jobs.NewService(db, clock),
	}

	jobsGroup.GET("/:id/logs", h.list)
}
