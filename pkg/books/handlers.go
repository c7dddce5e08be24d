package books

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/serenitylibrary/serenity/pkg/models"
)

type handler struct {
	bookService *Service
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateBookPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	published, err := parseDate(params.PublicationDate)
	if err != nil {
		return err
	}

	book := &models.Book{
		Title:           params.Title,
		Author:          params.Author,
		ISBN:            params.ISBN,
		GenreID:         params.GenreID,
		PublisherName:   params.PublisherName,
		PublicationDate: published,
		Language:        params.Language,
		Description:     params.Description,
		TotalCopies:     params.TotalCopies,
	}
	if err := h.bookService.CreateBook(ctx, book); err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusCreated, book))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	book, err := h.bookService.RetrieveBook(ctx, RetrieveBookOptions{ID: &id})
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) retrieveByTitle(c echo.Context) error {
	title := c.Param("title")
	book, err := h.bookService.RetrieveBook(c.Request().Context(), RetrieveBookOptions{Title: &title})
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) list(c echo.Context) error {
	return h.listFiltered(c, nil)
}

func (h *handler) listAvailable(c echo.Context) error {
	available := true
	return h.listFiltered(c, &available)
}

func (h *handler) listUnavailable(c echo.Context) error {
	available := false
	return h.listFiltered(c, &available)
}

func (h *handler) listFiltered(c echo.Context, available *bool) error {
	ctx := c.Request().Context()

	params := ListBooksQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	books, total, err := h.bookService.ListBooksWithTotal(ctx, ListBooksOptions{
		Available: available,
		Genre:     params.Genre,
		Author:    params.Author,
		Language:  params.Language,
		Publisher: params.Publisher,
		Title:     params.Title,
		Limit:     &params.Limit,
		Offset:    &params.Offset,
	})
	if err != nil {
		return err
	}

	resp := struct {
		Books []*models.Book `json:"books"`
		Total int            `json:"total"`
	}{books, total}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) totalCopies(c echo.Context) error {
	total, err := h.bookService.TotalCopies(c.Request().Context())
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, map[string]int{"total": total}))
}

func (h *handler) suggestions(c echo.Context) error {
	ctx := c.Request().Context()

	params := SuggestionsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	suggestions, err := h.bookService.Suggestions(ctx, params.Field, params.Query, params.Limit)
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, suggestions))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	params := UpdateBookPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	book, err := h.bookService.RetrieveBook(ctx, RetrieveBookOptions{ID: &id})
	if err != nil {
		return err
	}

	opts := UpdateBookOptions{Columns: []string{}}
	if params.Title != nil && *params.Title != book.Title {
		book.Title = *params.Title
		opts.Columns = append(opts.Columns, "title")
	}
	if params.Author != nil && *params.Author != book.Author {
		book.Author = *params.Author
		opts.Columns = append(opts.Columns, "author")
	}
	if params.ISBN != nil {
		book.ISBN = params.ISBN
		opts.Columns = append(opts.Columns, "isbn")
	}
	if params.GenreID != nil {
		book.GenreID = params.GenreID
		opts.Columns = append(opts.Columns, "genre_id")
	}
	if params.PublisherName != nil {
		book.PublisherName = params.PublisherName
		opts.Columns = append(opts.Columns, "publisher_name")
	}
	if params.PublicationDate != nil {
		published, err := parseDate(*params.PublicationDate)
		if err != nil {
			return err
		}
		book.PublicationDate = published
		opts.Columns = append(opts.Columns, "publication_date")
	}
	if params.Language != nil {
		book.Language = params.Language
		opts.Columns = append(opts.Columns, "language")
	}
	if params.Description != nil {
		book.Description = params.Description
		opts.Columns = append(opts.Columns, "description")
	}
	if params.TotalCopies != nil && *params.TotalCopies != book.TotalCopies {
		book.TotalCopies = *params.TotalCopies
		opts.Columns = append(opts.Columns, "total_copies")
	}

	if err := h.bookService.UpdateBook(ctx, book, opts); err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, book))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Book")
	}

	if err := h.bookService.DeleteBook(ctx, id); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
