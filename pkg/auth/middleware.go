package auth

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/serenitylibrary/serenity/pkg/models"
)

const bearerPrefix = "Bearer "

// Middleware provides authentication middleware.
type Middleware struct {
	authService *Service
}

// NewMiddleware creates a new auth middleware.
func NewMiddleware(authService *Service) *Middleware {
	return &Middleware{
		authService: authService,
	}
}

// Authenticate validates the bearer token and loads the user into the echo
// context. Requests without a valid token get a 401.
func (m *Middleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if !strings.HasPrefix(header, bearerPrefix) {
			return errcodes.Unauthorized("Authentication required.")
		}
		token := strings.TrimSpace(header[len(bearerPrefix):])
		if token == "" {
			return errcodes.Unauthorized("Authentication required.")
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			return errcodes.Unauthorized("Invalid or expired token.")
		}

		// The account may have been deleted since the token was issued.
		user, err := m.authService.GetUserByID(ctx, claims.UserID)
		if err != nil {
			return errcodes.Unauthorized("User not found.")
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)

		return next(c)
	}
}

// AuthenticateOptional loads the user when a valid bearer token is present and
// lets the request through either way.
func (m *Middleware) AuthenticateOptional(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if strings.HasPrefix(header, bearerPrefix) {
			claims, err := m.authService.ValidateToken(strings.TrimSpace(header[len(bearerPrefix):]))
			if err == nil {
				user, err := m.authService.GetUserByID(c.Request().Context(), claims.UserID)
				if err == nil {
					c.Set("user_id", user.ID)
					c.Set("user", user)
				}
			}
		}
		return next(c)
	}
}

// RequireAdmin rejects non-admin users. Must be used after Authenticate.
func (m *Middleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, ok := GetUserFromContext(c)
		if !ok {
			return errcodes.Unauthorized("Authentication required.")
		}
		if !user.IsAdmin() {
			return errcodes.Forbidden("This action")
		}
		return next(c)
	}
}

// RequireSelfOrAdmin lets a user through only when the route parameter names
// their own account, unless they are an admin.
func (m *Middleware) RequireSelfOrAdmin(paramName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user, ok := GetUserFromContext(c)
			if !ok {
				return errcodes.Unauthorized("Authentication required.")
			}
			if user.IsAdmin() {
				return next(c)
			}
			id, err := strconv.Atoi(c.Param(paramName))
			if err != nil || id != user.ID {
				return errcodes.Forbidden("Accessing another user's records")
			}
			return next(c)
		}
	}
}

// GetUserFromContext retrieves the authenticated user from the echo context.
func GetUserFromContext(c echo.Context) (*models.User, bool) {
	user, ok := c.Get("user").(*models.User)
	return user, ok
}

// GetUserIDFromContext retrieves the user ID from the echo context.
func GetUserIDFromContext(c echo.Context) (int, bool) {
	userID, ok := c.Get("user_id").(int)
	return userID, ok
}

// ActingUserID resolves which account a circulation request acts on. Readers
// may only act on themselves; admins may name anyone. A nil requested ID
// means the caller.
func ActingUserID(c echo.Context, requested *int) (int, error) {
	user, ok := GetUserFromContext(c)
	if !ok {
		return 0, errcodes.Unauthorized("Authentication required.")
	}
	if requested == nil || *requested == user.ID {
		return user.ID, nil
	}
	if !user.IsAdmin() {
		return 0, errcodes.Forbidden("Acting for another user")
	}
	return *requested, nil
}
