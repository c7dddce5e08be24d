package genres

import (
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/serenitylibrary/serenity/pkg/auth"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers genre routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, clock clockwork.Clock, authMiddleware *auth.Middleware) {
	h := &handler{
		genreService: NewService(db, clock),
	}

	g.GET("", h.list)
	g.GET("/count", h.count)
	g.GET("/:id", h.retrieve)
	g.POST("", h.create, authMiddleware.RequireAdmin)
	g.PUT("/:id", h.update, authMiddleware.RequireAdmin)
	g.DELETE("/:id", h.delete, authMiddleware.RequireAdmin)
}
