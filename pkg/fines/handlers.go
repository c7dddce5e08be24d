package fines

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/serenitylibrary/serenity/pkg/auth"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/serenitylibrary/serenity/pkg/models"
)

type handler struct {
	fineService *Service
}

type listResponse struct {
	Fines []*models.Fine `json:"fines"`
	Total int            `json:"total"`
}

func (h *handler) retrieve(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Fine")
	}

	fine, err := h.fineService.Retrieve(c.Request().Context(), RetrieveFineOptions{ID: &id})
	if err != nil {
		return err
	}
	if _, err := auth.ActingUserID(c, &fine.UserID); err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, fine))
}

func (h *handler) list(c echo.Context) error {
	return h.listFiltered(c, ListFinesOptions{})
}

func (h *handler) listByUser(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	return h.listFiltered(c, ListFinesOptions{UserID: &userID})
}

func (h *handler) listByStatus(c echo.Context) error {
	status, err := statusParam(c)
	if err != nil {
		return err
	}
	return h.listFiltered(c, ListFinesOptions{PaidStatus: &status})
}

func (h *handler) listByUserAndStatus(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	status, err := statusParam(c)
	if err != nil {
		return err
	}
	return h.listFiltered(c, ListFinesOptions{UserID: &userID, PaidStatus: &status})
}

func (h *handler) listFiltered(c echo.Context, opts ListFinesOptions) error {
	params := ListFinesQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}
	opts.Limit = &params.Limit
	opts.Offset = &params.Offset

	fines, total, err := h.fineService.ListWithTotal(c.Request().Context(), opts)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, listResponse{fines, total}))
}

func (h *handler) totalUnpaid(c echo.Context) error {
	total, err := h.fineService.TotalUnpaid(c.Request().Context(), nil)
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, TotalResponse{total.String()}))
}

func (h *handler) totalUnpaidByUser(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	total, err := h.fineService.TotalUnpaid(c.Request().Context(), &userID)
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, TotalResponse{total.String()}))
}

func (h *handler) payTotal(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	settled, err := h.fineService.MarkAllPaid(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, PayTotalResponse{settled}))
}

func (h *handler) update(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Fine")
	}

	params := UpdateFinePayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	fine, err := h.fineService.UpdatePaidStatus(c.Request().Context(), id, params.PaidStatus)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, fine))
}

func (h *handler) delete(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Fine")
	}

	if err := h.fineService.Delete(c.Request().Context(), id); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *handler) accrue(c echo.Context) error {
	result, err := h.fineService.Accrue(c.Request().Context())
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, result))
}

func statusParam(c echo.Context) (string, error) {
	status := c.Param("status")
	if status != models.FineStatusPaid && status != models.FineStatusNotPaid {
		return "", errcodes.ValidationError("status must be paid or not_paid.")
	}
	return status, nil
}

func userIDParam(c echo.Context) (int, error) {
	userID, err := strconv.Atoi(c.Param("userId"))
	if err != nil {
		return 0, errcodes.NotFound("User")
	}
	return userID, nil
}
