package reviews

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
	reviewService *Service
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	user, ok := auth.GetUserFromContext(c)
	if !ok {
		return errcodes.Unauthorized("Authentication required.")
	}

	params := CreateReviewPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	review := &models.Review{
		BookID:      params.BookID,
		UserID:      user.ID,
		Rating:      params.Rating,
		Description: params.Description,
	}
	if err := h.reviewService.CreateReview(ctx, review); err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusCreated, review))
}

func (h *handler) retrieve(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Review")
	}

	review, err := h.reviewService.RetrieveReview(c.Request().Context(), RetrieveReviewOptions{ID: &id})
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, review))
}

func (h *handler) list(c echo.Context) error {
	return h.listFiltered(c, ListReviewsOptions{})
}

func (h *handler) listByTitle(c echo.Context) error {
	title := c.Param("title")
	return h.listFiltered(c, ListReviewsOptions{BookTitle: &title})
}

func (h *handler) listByUserName(c echo.Context) error {
	name := c.Param("name")
	return h.listFiltered(c, ListReviewsOptions{UserName: &name})
}

func (h *handler) listFiltered(c echo.Context, opts ListReviewsOptions) error {
	params := ListReviewsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}
	opts.BookID = params.BookID
	opts.Limit = &params.Limit
	opts.Offset = &params.Offset

	reviews, total, err := h.reviewService.ListReviewsWithTotal(c.Request().Context(), opts)
	if err != nil {
		return err
	}

	resp := struct {
		Reviews []*models.Review `json:"reviews"`
		Total   int              `json:"total"`
	}{reviews, total}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) averageRatings(c echo.Context) error {
	ratings, err := h.reviewService.AverageRatings(c.Request().Context())
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, ratings))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	review, err := h.ownedReview(c)
	if err != nil {
		return err
	}

	params := UpdateReviewPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	opts := UpdateReviewOptions{Columns: []string{}}
	if params.Rating != nil && *params.Rating != review.Rating {
		review.Rating = *params.Rating
		opts.Columns = append(opts.Columns, "rating")
	}
	if params.Description != nil {
		review.Description = params.Description
		opts.Columns = append(opts.Columns, "description")
	}

	if err := h.reviewService.UpdateReview(ctx, review, opts); err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, review))
}

func (h *handler) delete(c echo.Context) error {
	review, err := h.ownedReview(c)
	if err != nil {
		return err
	}

	if err := h.reviewService.DeleteReview(c.Request().Context(), review.ID); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// ownedReview loads the review named by the path and checks that the caller
// wrote it or is an admin.
func (h *handler) ownedReview(c echo.Context) (*models.Review, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, errcodes.NotFound("Review")
	}

	review, err := h.reviewService.RetrieveReview(c.Request().Context(), RetrieveReviewOptions{ID: &id})
	if err != nil {
		return nil, err
	}

	user, ok := auth.GetUserFromContext(c)
	if !ok {
		return nil, errcodes.Unauthorized("Authentication required.")
	}
	if review.UserID != user.ID && !user.IsAdmin() {
		return nil, errcodes.Forbidden("Changing another user's review")
	}

	return review, nil
}
