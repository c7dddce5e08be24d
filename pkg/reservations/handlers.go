package reservations

import (
	"net/http"
	"slices"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/serenitylibrary/serenity/pkg/auth"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/serenitylibrary/serenity/pkg/models"
)

var statuses = []string{
	models.ReservationStatusActive,
	models.ReservationStatusCancelled,
	models.ReservationStatusApproved,
	models.ReservationStatusCompleted,
}

type handler struct {
	reservationService *Service
}

type listResponse struct {
	Reservations []*models.Reservation `json:"reservations"`
	Total        int                   `json:"total"`
}

func (h *handler) create(c echo.Context) error {
	params := CreateReservationPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	userID, err := auth.ActingUserID(c, params.UserID)
	if err != nil {
		return err
	}

	reservation, err := h.reservationService.Enqueue(c.Request().Context(), userID, params.BookID)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusCreated, reservation))
}

func (h *handler) cancel(c echo.Context) error {
	params := CancelReservationPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	userID, err := auth.ActingUserID(c, params.UserID)
	if err != nil {
		return err
	}

	reservation, err := h.reservationService.CancelByTitle(c.Request().Context(), userID, params.BookTitle)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, reservation))
}

func (h *handler) cancelByID(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Reservation")
	}

	existing, err := h.reservationService.Retrieve(ctx, RetrieveReservationOptions{ID: &id})
	if err != nil {
		return err
	}
	if _, err := auth.ActingUserID(c, &existing.UserID); err != nil {
		return err
	}

	reservation, err := h.reservationService.CancelByID(ctx, id)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, reservation))
}

func (h *handler) retrieve(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Reservation")
	}

	reservation, err := h.reservationService.Retrieve(c.Request().Context(), RetrieveReservationOptions{ID: &id})
	if err != nil {
		return err
	}
	if _, err := auth.ActingUserID(c, &reservation.UserID); err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, reservation))
}

func (h *handler) list(c echo.Context) error {
	return h.listFiltered(c, ListReservationsOptions{})
}

func (h *handler) listByStatus(c echo.Context) error {
	status, err := statusParam(c)
	if err != nil {
		return err
	}
	return h.listFiltered(c, ListReservationsOptions{Statuses: []string{status}})
}

func (h *handler) listByStatusAndUser(c echo.Context) error {
	status, err := statusParam(c)
	if err != nil {
		return err
	}
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	return h.listFiltered(c, ListReservationsOptions{Statuses: []string{status}, UserID: &userID})
}

func (h *handler) listByUser(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	return h.listFiltered(c, ListReservationsOptions{UserID: &userID})
}

func (h *handler) listActiveByUser(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	return h.listFiltered(c, ListReservationsOptions{
		Statuses: []string{models.ReservationStatusActive},
		UserID:   &userID,
	})
}

func (h *handler) listFiltered(c echo.Context, opts ListReservationsOptions) error {
	params := ListReservationsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}
	opts.Limit = &params.Limit
	opts.Offset = &params.Offset

	reservations, total, err := h.reservationService.ListWithTotal(c.Request().Context(), opts)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, listResponse{reservations, total}))
}

func (h *handler) activeCount(c echo.Context) error {
	count, err := h.reservationService.CountActive(c.Request().Context(), nil)
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, map[string]int{"count": count}))
}

func (h *handler) activeCountByUser(c echo.Context) error {
	userID, err := userIDParam(c)
	if err != nil {
		return err
	}
	count, err := h.reservationService.CountActive(c.Request().Context(), &userID)
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, map[string]int{"count": count}))
}

func (h *handler) approvedEmails(c echo.Context) error {
	emails, err := h.reservationService.ApprovedEmails(c.Request().Context())
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, emails))
}

func statusParam(c echo.Context) (string, error) {
	status := c.Param("status")
	if !slices.Contains(statuses, status) {
		return "", errcodes.ValidationError("status must be one of active, cancelled, approved, completed.")
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
