package reservations

import (
	"github.com/labstack/echo/v4"
	"github.com/serenitylibrary/serenity/pkg/auth"
)

func RegisterRoutesWithGroup(g *echo.Group, reservationService *Service, authMiddleware *auth.Middleware) {
	h := &handler{
		reservationService: reservationService,
	}

	self := authMiddleware.RequireSelfOrAdmin("userId")
	admin := authMiddleware.RequireAdmin

	g.POST("", h.create)
	g.POST("/cancel", h.cancel)
	g.DELETE("/:id", h.cancelByID)
	g.GET("/:id", h.retrieve)
	g.GET("/user/:userId", h.listByUser, self)
	g.GET("/status/:status/user/:userId", h.listByStatusAndUser, self)
	g.GET("/active/user/:userId", h.listActiveByUser, self)
	g.GET("/active/user/:userId/count", h.activeCountByUser, self)

	g.GET("", h.list, admin)
	g.GET("/status/:status", h.listByStatus, admin)
	g.GET("/active/count", h.activeCount, admin)
	g.GET("/approved/emails", h.approvedEmails, admin)
}
