package delivery

import "errors"

var (
	ErrNotFound          = errors.New("delivery not found")
	ErrForbidden         = errors.New("not allowed to act on this delivery")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrAlreadyAssigned   = errors.New("delivery already assigned")
	ErrAlreadyCompleted  = errors.New("delivery already completed")
	ErrNotCompleted      = errors.New("delivery not completed")
	ErrPastTime          = errors.New("scheduled pickup must be in the future")
	ErrValidation        = errors.New("validation failed")
	// ErrConflict means a versioned write lost to a concurrent transition.
	ErrConflict = errors.New("delivery state conflict")
)

// ErrorKind is a stable label for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrAlreadyAssigned):
		return "already_assigned"
	case errors.Is(err, ErrAlreadyCompleted):
		return "already_completed"
	case errors.Is(err, ErrNotCompleted):
		return "not_completed"
	case errors.Is(err, ErrPastTime):
		return "past_time"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	}
	return "error"
}
