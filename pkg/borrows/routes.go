package borrows

import (
	"github.com/labstack/echo/v4"
	"github.com/serenitylibrary/serenity/pkg/auth"
)

// RegisterRoutesWithGroup registers loan routes on an authenticated group.
// Readers work on their own loans; reporting and deletion need admin.
func RegisterRoutesWithGroup(g *echo.Group, borrowService *Service, authMiddleware *auth.Middleware) {
	h := &handler{
		borrowService: borrowService,
	}

	self := authMiddleware.RequireSelfOrAdmin("userId")
	admin := authMiddleware.RequireAdmin

	g.POST("", h.create)
	g.POST("/return", h.returnBook)
	g.POST("/borrow-reserved", h.borrowReserved)
	g.GET("/user/:userId", h.listByUser, self)
	g.GET("/monthly-count/user/:userId", h.monthlyCountByUser, self)
	g.GET("/:id", h.retrieve)

	g.GET("", h.list, admin)
	g.GET("/book/:bookId", h.listByBook, admin)
	g.GET("/between", h.between, admin)
	g.GET("/overdue", h.overdue, admin)
	g.GET("/active/count", h.activeCount, admin)
	g.GET("/monthly-count", h.monthlyCount, admin)
	g.GET("/unreturned/emails", h.unreturnedEmails, admin)
	g.DELETE("/:id", h.delete, admin)
}
