package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"tablebook/internal/domain"
	"tablebook/internal/models"
)

const suggestedTimesTrailer = "x-suggested-times"

// errorCode is the machine readable "code" field of HTTP error bodies.
func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrNoFit):
		return "no_fit"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	default:
		return "internal"
	}
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnavailable),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrConcurrentModification),
		errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoFit):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func suggestionsOf(err error) []models.SlotSuggestion {
	var unavailable *domain.UnavailableError
	if errors.As(err, &unavailable) {
		return unavailable.Suggestions
	}
	return nil
}

// toStatus converts a service error into a gRPC status. Suggestions of an
// unavailable slot travel in the x-suggested-times trailer.
func toStatus(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var code codes.Code
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		code = codes.InvalidArgument
	case errors.Is(err, domain.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrConcurrentModification):
		code = codes.Aborted
	case errors.Is(err, domain.ErrNoFit),
		errors.Is(err, domain.ErrUnavailable),
		errors.Is(err, domain.ErrInvalidTransition):
		code = codes.FailedPrecondition
	default:
		return status.Error(codes.Internal, "internal error")
	}

	if suggestions := suggestionsOf(err); len(suggestions) > 0 {
		times := make([]string, 0, len(suggestions))
		for _, s := range suggestions {
			times = append(times, s.Time)
		}
		_ = grpc.SetTrailer(ctx, metadata.Pairs(suggestedTimesTrailer, strings.Join(times, ",")))
	}
	return status.Error(code, err.Error())
}
