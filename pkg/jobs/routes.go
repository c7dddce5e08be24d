package jobs

import (
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/serenitylibrary/serenity/pkg/auth"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers job routes on a pre-configured group.
// Jobs are an operator surface, so every route is admin only.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, clock clockwork.Clock, authMiddleware *auth.Middleware) {
	h := &handler{
		jobService: NewService(db, clock),
	}

	g.Use(authMiddleware.RequireAdmin)
	g.GET("", h.list)
	g.GET("/summary", h.summary)
	g.GET("/:id", h.retrieve)
	g.POST("", h.create)
	g.POST("/:id/retry", h.retry)
}
