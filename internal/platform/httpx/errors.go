// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the domain layer.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("data source unavailable")
	ErrTimeout      = errors.New("data source timed out")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in to continue")
	case errors.Is(err, ErrTimeout):
		Problem(w, http.StatusGatewayTimeout, "Query Timeout", "the data source did not answer in time")
	case errors.Is(err, ErrUnavailable):
		Problem(w, http.StatusServiceUnavailable, "Data Source Unavailable", "the data source could not be reached")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
