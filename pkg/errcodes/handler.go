package errcodes

import (
	"context"
	"fmt"
	"net/http"

	"github.com/iancoleman/strcase"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/errutils"
)

type errorBody struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
}

type errorPayload struct {
	Error errorBody `json:"error"`
}

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Handle renders err as {"error": {...}}. Anything that is not an *Error or
// an echo error is reported as a 500 and logged.
func (h *Handler) Handle(err error, c echo.Context) {
	log := logger.FromEchoContext(c)

	// context.DeadlineExceeded reports Timeout() so errutils would drop it.
	if !errors.Is(err, context.DeadlineExceeded) && errutils.IsIgnorableErr(err) {
		log.Err(err).Warn("broken pipe")
		return
	}

	body := classify(err)
	if body.StatusCode >= http.StatusInternalServerError {
		log.Err(err).Error("server error")
	}

	if c.Response().Committed {
		return
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(body.StatusCode)
	} else {
		err = c.JSON(body.StatusCode, errorPayload{body})
	}
	if err != nil {
		log.Err(errors.WithStack(err)).Error("error handler json error")
	}
}

func classify(err error) errorBody {
	var e *Error
	if errors.As(err, &e) {
		return errorBody{e.Code, e.Message, e.HTTPCode}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = fmt.Sprint(he.Message)
		}
		return errorBody{strcase.ToSnake(msg), msg, he.Code}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errorBody{"timeout", "The request timed out.", http.StatusServiceUnavailable}
	}

	return errorBody{"internal_server_error", "Internal Server Error", http.StatusInternalServerError}
}
