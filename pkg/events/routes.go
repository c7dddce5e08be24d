package events

import (
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/serenitylibrary/serenity/pkg/auth"
	"github.com/uptrace/bun"
)

func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, clock clockwork.Clock, authMiddleware *auth.Middleware) {
	h := &handler{
		eventService: NewService(db, clock),
	}

	g.GET("", h.list)
	g.GET("/upcoming", h.listUpcoming)
	g.GET("/past", h.listPast)
	g.GET("/search", h.search)
	g.GET("/total", h.count)
	g.GET("/:id", h.retrieve)
	g.POST("", h.create, authMiddleware.RequireAdmin)
	g.PUT("/:id", h.update, authMiddleware.RequireAdmin)
	g.DELETE("/:id", h.delete, authMiddleware.RequireAdmin)
}
