package prebookings

import (
	"github.com/labstack/echo/v4"
	"github.com/serenitylibrary/serenity/pkg/auth"
)

func RegisterRoutesWithGroup(g *echo.Group, prebookingService *Service, authMiddleware *auth.Middleware) {
	h := &handler{
		prebookingService: prebookingService,
	}

	g.POST("", h.create)
	g.POST("/cancel", h.cancel)
	g.POST("/approve", h.approve, authMiddleware.RequireAdmin)
	g.GET("", h.list, authMiddleware.RequireAdmin)
	g.GET("/pending/emails", h.pendingEmails, authMiddleware.RequireAdmin)
}
