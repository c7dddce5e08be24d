package auth

import (
	"github.com/labstack/echo/v4"
	"github.com/serenitylibrary/serenity/pkg/mailer"
	"github.com/serenitylibrary/serenity/pkg/otp"
)

// RegisterRoutes registers all auth routes.
func RegisterRoutes(e *echo.Echo, authService *Service, otpStore *otp.Store, sender mailer.Sender) {
	h := &handler{
		authService: authService,
		otpStore:    otpStore,
		sender:      sender,
	}
	m := NewMiddleware(authService)

	auth := e.Group("/auth")
	auth.POST("/login", h.login)
	auth.POST("/request-otp", h.requestOTP)
	auth.POST("/verify-otp", h.verifyOTP)
	auth.POST("/reset-password", h.resetPassword)
	auth.GET("/me", h.me, m.Authenticate)
}
