package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/serenitylibrary/serenity/pkg/mailer"
	"github.com/serenitylibrary/serenity/pkg/otp"
)

type handler struct {
	authService *Service
	otpStore    *otp.Store
	sender      mailer.Sender
}

func (h *handler) login(c echo.Context) error {
	ctx := c.Request().Context()

	params := LoginPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	user, err := h.authService.Authenticate(ctx, params.Email, params.Password)
	if err != nil {
		return err
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		return errors.WithStack(err)
	}

	return c.JSON(http.StatusOK, LoginResponse{Token: token, User: user})
}

func (h *handler) me(c echo.Context) error {
	user, ok := GetUserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required.")
	}
	return c.JSON(http.StatusOK, user)
}

// requestOTP mails a reset code. The response is the same whether or not the
// email belongs to an account.
func (h *handler) requestOTP(c echo.Context) error {
	ctx := c.Request().Context()
	log := logger.FromContext(ctx)

	params := RequestOTPPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	resp := map[string]string{"message": "If the account exists, a code has been sent."}

	user, err := h.authService.GetUserByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, errcodes.NotFound("User")) {
			return c.JSON(http.StatusOK, resp)
		}
		return err
	}

	code, err := h.otpStore.Issue(ctx, user.Email)
	if err != nil {
		return err
	}

	msg, err := mailer.Render(mailer.TemplatePasswordReset, user.Email, mailer.TemplateData{
		UserName:         user.Name,
		Code:             code,
		ExpiresInMinutes: int(h.otpStore.TTL().Minutes()),
	})
	if err != nil {
		return err
	}
	if err := h.sender.Send(ctx, msg); err != nil {
		log.Err(err).Error("failed to send reset code", logger.Data{"user_id": user.ID})
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *handler) verifyOTP(c echo.Context) error {
	ctx := c.Request().Context()

	params := VerifyOTPPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	err := h.otpStore.Verify(ctx, params.Email, params.Code)
	if errors.Is(err, otp.ErrInvalidCode) {
		return errcodes.Unauthorized("Invalid or expired code.")
	}
	if err != nil {
		return err
	}

	user, err := h.authService.GetUserByEmail(ctx, params.Email)
	if err != nil {
		return err
	}

	token, err := h.authService.GenerateResetToken(user)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, VerifyOTPResponse{ResetToken: token})
}

func (h *handler) resetPassword(c echo.Context) error {
	ctx := c.Request().Context()

	params := ResetPasswordPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	claims, err := h.authService.ValidateResetToken(params.ResetToken)
	if err != nil {
		return errcodes.Unauthorized("Invalid or expired reset token.")
	}

	if err := h.authService.SetPassword(ctx, claims.UserID, params.NewPassword); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Password reset successfully."})
}
