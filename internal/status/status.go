package status

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation            = errors.New("validation: invalid input")
	ErrNotFound              = errors.New("lookup: record not found")
	ErrUnauthorized          = errors.New("auth: missing or invalid credentials")
	ErrForbidden             = errors.New("auth: admin role required")
	ErrInsufficientInventory = errors.New("inventory: insufficient tickets")
	ErrOversold              = errors.New("inventory: ticket stock exhausted")
	ErrAlreadyBooked         = errors.New("stall: already booked")
	ErrHeld                  = errors.New("stall: held by another order")
	ErrAlreadyTerminal       = errors.New("booking: already cancelled or refunded")
	ErrGateway               = errors.New("gateway: payment gateway failure")
	ErrPersistence           = errors.New("store: persistence failure")
)

// Error pairs a sentinel kind with a message that is safe to return to
// clients. Err keeps the internal cause for logging.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind error, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// HTTPStatus maps an error onto the response code used by the handlers.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrAlreadyTerminal):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInsufficientInventory),
		errors.Is(err, ErrOversold),
		errors.Is(err, ErrAlreadyBooked),
		errors.Is(err, ErrHeld):
		return http.StatusConflict
	case errors.Is(err, ErrGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client facing text for err. Internal failures never
// expose their cause.
func Message(err error) string {
	code := HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		if code == http.StatusBadGateway {
			return "payment gateway unavailable"
		}
		return "internal server error"
	}

	var se *Error
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return err.Error()
}
