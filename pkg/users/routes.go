package users

import (
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/serenitylibrary/serenity/pkg/auth"
	"github.com/uptrace/bun"
)

// RegisterRoutes registers all user routes. Registration is open; everything
// else needs a token, and reading or changing another account needs admin.
func RegisterRoutes(e *echo.Echo, db *bun.DB, clock clockwork.Clock, authMiddleware *auth.Middleware) *Service {
	userService := NewService(db, clock)

	h := &handler{
		userService: userService,
	}

	users := e.Group("/users")
	users.POST("", h.create, authMiddleware.AuthenticateOptional)

	self := []echo.MiddlewareFunc{authMiddleware.Authenticate, authMiddleware.RequireSelfOrAdmin("id")}
	users.GET("/:id", h.retrieve, self...)
	users.PUT("/:id", h.update, self...)

	admin := []echo.MiddlewareFunc{authMiddleware.Authenticate, authMiddleware.RequireAdmin}
	users.GET("", h.list, admin...)
	users.GET("/count", h.count, admin...)
	users.GET("/admins", h.listAdmins, admin...)
	users.GET("/readers", h.listReaders, admin...)
	users.GET("/email/:email", h.retrieveByEmail, admin...)
	users.GET("/name/:name", h.retrieveByName, admin...)
	users.DELETE("/:id", h.delete, admin...)

	return userService
}
