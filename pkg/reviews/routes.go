package reviews

import (
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers review routes on an authenticated group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, clock clockwork.Clock) {
	h := &handler{
		reviewService: NewService(db, clock),
	}

	g.GET("", h.list)
	g.GET("/average-ratings", h.averageRatings)
	g.GET("/book/:title", h.listByTitle)
	g.GET("/user/:name", h.listByUserName)
	g.GET("/:id", h.retrieve)
	g.POST("", h.create)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
}
