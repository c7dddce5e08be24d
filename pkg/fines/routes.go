package fines

import (
	"github.com/labstack/echo/v4"
	"github.com/serenitylibrary/serenity/pkg/auth"
)

// RegisterRoutesWithGroup registers fine routes on an authenticated group.
// Paying off a balance is open to the reader it belongs to; everything that
// rewrites fines is admin only.
func RegisterRoutesWithGroup(g *echo.Group, fineService *Service, authMiddleware *auth.Middleware) {
	h := &handler{
		fineService: fineService,
	}

	self := authMiddleware.RequireSelfOrAdmin("userId")
	admin := authMiddleware.RequireAdmin

	g.GET("/:id", h.retrieve)
	g.GET("/user/:userId", h.listByUser, self)
	g.GET("/user/:userId/status/:status", h.listByUserAndStatus, self)
	g.GET("/total-unpaid/:userId", h.totalUnpaidByUser, self)
	g.POST("/pay-total/:userId", h.payTotal, self)

	g.GET("", h.list, admin)
	g.GET("/status/:status", h.listByStatus, admin)
	g.GET("/total-unpaid", h.totalUnpaid, admin)
	g.POST("/accrue", h.accrue, admin)
	g.PATCH("/:id", h.update, admin)
	g.DELETE("/:id", h.delete, admin)
}
