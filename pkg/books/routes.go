package books

import (
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/serenitylibrary/serenity/pkg/auth"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers book routes on a pre-configured group.
// Reads are open to every authenticated user; writes need admin.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, clock clockwork.Clock, authMiddleware *auth.Middleware) {
	h := &handler{
		bookService: NewService(db, clock),
	}

	g.GET("", h.list)
	g.GET("/available", h.listAvailable)
	g.GET("/unavailable", h.listUnavailable)
	g.GET("/total", h.totalCopies)
	g.GET("/suggestions", h.suggestions)
	g.GET("/title/:title", h.retrieveByTitle)
	g.GET("/:id", h.retrieve)
	g.POST("", h.create, authMiddleware.RequireAdmin)
	g.PUT("/:id", h.update, authMiddleware.RequireAdmin)
	g.DELETE("/:id", h.delete, authMiddleware.RequireAdmin)
}
