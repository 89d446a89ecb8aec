package api

import (
	"errors"
	"net/http"

	"autoservice/internal/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPastAppointment):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUnknownService),
		errors.Is(err, domain.ErrUnknownEntity),
		errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoAvailableWorker),
		errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func codeForError(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrPastAppointment):
		return codes.FailedPrecondition
	case errors.Is(err, domain.ErrUnknownService),
		errors.Is(err, domain.ErrUnknownEntity),
		errors.Is(err, domain.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrNoAvailableWorker),
		errors.Is(err, domain.ErrConflict):
		return codes.Aborted
	case errors.Is(err, domain.ErrStorageUnavailable):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// grpcError hides internal failures behind a generic message.
func grpcError(err error) error {
	code := codeForError(err)
	if code == codes.Internal {
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}
