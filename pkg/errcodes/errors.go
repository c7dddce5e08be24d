package errcodes

import (
	"fmt"
	"net/http"
)

type Error struct {
	HTTPCode int
	Message  string
	Code     string
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	te.HTTPCode = err.HTTPCode
	te.Message = err.Message
	te.Code = err.Code
	return true
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.HTTPCode == err.HTTPCode &&
		te.Message == err.Message &&
		te.Code == err.Code
}

// Unauthorized returns a 401 error for missing or invalid credentials.
func Unauthorized(msg string) error {
	return &Error{
		http.StatusUnauthorized,
		msg,
		"unauthorized",
	}
}

// Forbidden returns a 403 error with a message indicating the action is
// forbidden.
func Forbidden(action string) error {
	return &Error{
		http.StatusForbidden,
		action + " is not allowed.",
		"forbidden",
	}
}

// NotFound returns a 404 error with a message indicating the given resource.
func NotFound(resource string) error {
	return &Error{
		http.StatusNotFound,
		resource + " not found.",
		"not_found",
	}
}

// Capacity is returned when a book has no copy left to hand out.
func Capacity(resource string) error {
	return &Error{
		http.StatusConflict,
		resource + " has no available copies.",
		"capacity",
	}
}

// LimitExceeded is returned when a user already holds the maximum number of
// books.
func LimitExceeded(limit int) error {
	return &Error{
		http.StatusConflict,
		fmt.Sprintf("Borrow limit of %d books reached.", limit),
		"limit_exceeded",
	}
}

// Precondition is returned when an operation is not allowed in the current
// state of a record.
func Precondition(msg string) error {
	return &Error{
		http.StatusPreconditionFailed,
		msg,
		"precondition_failed",
	}
}

// Duplicate is returned when an equivalent record already exists.
func Duplicate(resource string) error {
	return &Error{
		http.StatusConflict,
		resource + " already exists.",
		"duplicate",
	}
}

// InventoryDrift reports that the stored copy counts no longer agree with the
// borrow records. It is surfaced as a server error.
func InventoryDrift(bookID int) error {
	return &Error{
		http.StatusInternalServerError,
		fmt.Sprintf("Inventory for book %d is inconsistent.", bookID),
		"inventory_drift",
	}
}

func UnsupportedMediaType() error {
	return &Error{
		http.StatusUnsupportedMediaType,
		"Unsupported Media Type",
		"unsupported_media_type",
	}
}

func UnknownParameter(param string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		fmt.Sprintf("Unknown Parameter %q", param),
		"unknown_parameter",
	}
}

func ValidationTypeError(msg string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		msg,
		"validation_type_error",
	}
}

func ValidationError(msg string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		msg,
		"validation_error",
	}
}

func MalformedPayload() error {
	return &Error{
		http.StatusBadRequest,
		"Malformed Payload",
		"malformed_payload",
	}
}

func EmptyRequestBody() error {
	return &Error{
		http.StatusBadRequest,
		"Request body can't be empty.",
		"empty_request_body",
	}
}
