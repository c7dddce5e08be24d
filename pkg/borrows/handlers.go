package borrows

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/serenitylibrary/serenity/pkg/auth"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/serenitylibrary/serenity/pkg/models"
)

type handler struct {
	borrowService *Service
}

type listResponse struct {
	BorrowRecords []*models.BorrowRecord `json:"borrow_records"`
	Total         int                    `json:"total"`
}

func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, errcodes.ValidationError(field + " must be a date (YYYY-MM-DD).")
	}
	return &t, nil
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateBorrowPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	userID, err := auth.ActingUserID(c, params.UserID)
	if err != nil {
		return err
	}
	borrowDate, err := parseDate("borrow_date", params.BorrowDate)
	if err != nil {
		return err
	}

	record, err := h.borrowService.Create(ctx, CreateBorrowOptions{
		UserID:     userID,
		BookID:     params.BookID,
		BorrowDate: borrowDate,
	})
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusCreated, record))
}

func (h *handler) borrowReserved(c echo.Context) error {
	params := BorrowReservedPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	userID, err := auth.ActingUserID(c, params.UserID)
	if err != nil {
		return err
	}

	record, err := h.borrowService.BorrowReserved(c.Request().Context(), userID, params.BookID)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusCreated, record))
}

func (h *handler) returnBook(c echo.Context) error {
	ctx := c.Request().Context()

	params := ReturnBorrowPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	returnDate, err := parseDate("return_date", params.ReturnDate)
	if err != nil {
		return err
	}
	opts := ReturnBorrowOptions{ReturnDate: returnDate}

	if params.ID != nil {
		record, err := h.borrowService.Retrieve(ctx, RetrieveBorrowOptions{ID: params.ID})
		if err != nil {
			return err
		}
		if _, err := auth.ActingUserID(c, &record.UserID); err != nil {
			return err
		}
		opts.ID = params.ID
	} else {
		userID, err := auth.ActingUserID(c, params.UserID)
		if err != nil {
			return err
		}
		opts.UserID = &userID
		opts.BookID = params.BookID
	}

	record, err := h.borrowService.Return(ctx, opts)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, record))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Borrow record")
	}

	record, err := h.borrowService.Retrieve(ctx, RetrieveBorrowOptions{ID: &id})
	if err != nil {
		return err
	}
	if _, err := auth.ActingUserID(c, &record.UserID); err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, record))
}

func (h *handler) list(c echo.Context) error {
	return h.listFiltered(c, ListBorrowsOptions{})
}

func (h *handler) listByUser(c echo.Context) error {
	userID, err := strconv.Atoi(c.Param("userId"))
	if err != nil {
		return errcodes.NotFound("User")
	}
	return h.listFiltered(c, ListBorrowsOptions{UserID: &userID})
}

func (h *handler) listByBook(c echo.Context) error {
	bookID, err := strconv.Atoi(c.Param("bookId"))
	if err != nil {
		return errcodes.NotFound("Book")
	}
	return h.listFiltered(c, ListBorrowsOptions{BookID: &bookID})
}

func (h *handler) listFiltered(c echo.Context, opts ListBorrowsOptions) error {
	params := ListBorrowsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}
	opts.Returned = params.Returned
	opts.Limit = &params.Limit
	opts.Offset = &params.Offset

	records, total, err := h.borrowService.ListWithTotal(c.Request().Context(), opts)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, listResponse{records, total}))
}

func (h *handler) between(c echo.Context) error {
	params := BetweenQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	from, err := parseDate("start_date", params.StartDate)
	if err != nil {
		return err
	}
	to, err := parseDate("end_date", params.EndDate)
	if err != nil {
		return err
	}
	if to.Before(*from) {
		return errcodes.ValidationError("end_date must not be before start_date.")
	}

	records, total, err := h.borrowService.ListWithTotal(c.Request().Context(), ListBorrowsOptions{
		BorrowedFrom: from,
		BorrowedTo:   to,
		Limit:        &params.Limit,
		Offset:       &params.Offset,
	})
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, listResponse{records, total}))
}

func (h *handler) overdue(c echo.Context) error {
	records, err := h.borrowService.Overdue(c.Request().Context())
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, listResponse{records, len(records)}))
}

func (h *handler) activeCount(c echo.Context) error {
	count, err := h.borrowService.CountActive(c.Request().Context())
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, map[string]int{"count": count}))
}

func (h *handler) monthlyCount(c echo.Context) error {
	counts, err := h.borrowService.MonthlyCounts(c.Request().Context(), nil)
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, counts))
}

func (h *handler) monthlyCountByUser(c echo.Context) error {
	userID, err := strconv.Atoi(c.Param("userId"))
	if err != nil {
		return errcodes.NotFound("User")
	}
	counts, err := h.borrowService.MonthlyCounts(c.Request().Context(), &userID)
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, counts))
}

func (h *handler) unreturnedEmails(c echo.Context) error {
	emails, err := h.borrowService.UnreturnedEmails(c.Request().Context())
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, emails))
}

func (h *handler) delete(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Borrow record")
	}

	if err := h.borrowService.Delete(c.Request().Context(), id); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
