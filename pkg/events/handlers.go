package events

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/serenitylibrary/serenity/pkg/errcodes"
	"github.com/serenitylibrary/serenity/pkg/models"
)

type handler struct {
	eventService *Service
}

type listResponse struct {
	Events []*models.Event `json:"events"`
	Total  int             `json:"total"`
}

func (h *handler) create(c echo.Context) error {
	params := CreateEventPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	event := &models.Event{
		EventDate:   params.EventDate,
		EventName:   params.EventName,
		Description: params.Description,
		Timing:      params.Timing,
	}
	if err := h.eventService.CreateEvent(c.Request().Context(), event); err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusCreated, event))
}

func (h *handler) retrieve(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Event")
	}

	event, err := h.eventService.RetrieveEvent(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, event))
}

func (h *handler) list(c echo.Context) error {
	return h.listWhen(c, nil)
}

func (h *handler) listUpcoming(c echo.Context) error {
	when := WhenUpcoming
	return h.listWhen(c, &when)
}

func (h *handler) listPast(c echo.Context) error {
	when := WhenPast
	return h.listWhen(c, &when)
}

func (h *handler) listWhen(c echo.Context, when *string) error {
	params := ListEventsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	events, total, err := h.eventService.ListEventsWithTotal(c.Request().Context(), ListEventsOptions{
		When:   when,
		Limit:  &params.Limit,
		Offset: &params.Offset,
	})
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, listResponse{events, total}))
}

func (h *handler) search(c echo.Context) error {
	params := SearchEventsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	opts := ListEventsOptions{
		Name:        params.EventName,
		Description: params.Description,
		Limit:       &params.Limit,
		Offset:      &params.Offset,
	}
	if params.EventDate != "" {
		day, err := time.Parse(time.DateOnly, params.EventDate)
		if err != nil {
			return errcodes.ValidationError("event_date must be a date (YYYY-MM-DD).")
		}
		opts.Date = &day
	}

	events, total, err := h.eventService.ListEventsWithTotal(c.Request().Context(), opts)
	if err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, listResponse{events, total}))
}

func (h *handler) count(c echo.Context) error {
	count, err := h.eventService.CountEvents(c.Request().Context())
	if err != nil {
		return err
	}
	return errors.WithStack(c.JSON(http.StatusOK, map[string]int{"total": count}))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Event")
	}

	params := UpdateEventPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	event, err := h.eventService.RetrieveEvent(ctx, id)
	if err != nil {
		return err
	}

	opts := UpdateEventOptions{Columns: []string{}}
	if params.EventDate != nil {
		event.EventDate = params.EventDate.UTC()
		opts.Columns = append(opts.Columns, "event_date")
	}
	if params.EventName != nil && *params.EventName != event.EventName {
		event.EventName = *params.EventName
		opts.Columns = append(opts.Columns, "event_name")
	}
	if params.Description != nil {
		event.Description = params.Description
		opts.Columns = append(opts.Columns, "description")
	}
	if params.Timing != nil {
		event.Timing = params.Timing
		opts.Columns = append(opts.Columns, "timing")
	}

	if err := h.eventService.UpdateEvent(ctx, event, opts); err != nil {
		return err
	}

	return errors.WithStack(c.JSON(http.StatusOK, event))
}

func (h *handler) delete(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Event")
	}

	if err := h.eventService.DeleteEvent(c.Request().Context(), id); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
