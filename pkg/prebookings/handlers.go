package prebookings

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/serenitylibrary/serenity/pkg/auth"
)

type handler struct {
	prebookingService *Service
}

func (h *handler) create(c echo.Context) error {
	params := HoldPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	userID, err := auth.ActingUserID(c, params.UserID)
	if err != nil {
		return err
	}

	record, err := h.prebookingService.PreBook(c.Request().Context(), userID, params.BookID)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusCreated, record))
}

func (h *handler) cancel(c echo.Context) error {
	params := HoldPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	userID, err := auth.ActingUserID(c, params.UserID)
	if err != nil {
		return err
	}

	record, err := h.prebookingService.Cancel(c.Request().Context(), userID, params.BookID)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, record))
}

// approve hands the held copy over at the desk, so only staff can do it.
func (h *handler) approve(c echo.Context) error {
	params := ApprovePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	record, err := h.prebookingService.Approve(c.Request().Context(), params.UserID, params.BookID)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, record))
}

func (h *handler) list(c echo.Context) error {
	holds, err := h.prebookingService.ListHolds(c.Request().Context())
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, holds))
}

func (h *handler) pendingEmails(c echo.Context) error {
	emails, err := h.prebookingService.PendingEmails(c.Request().Context())
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, emails))
}
