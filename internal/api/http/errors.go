package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/GriffinCanCode/sinkwatch/internal/analysis"
	"github.com/GriffinCanCode/sinkwatch/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/sinkwatch/internal/page"
	"github.com/GriffinCanCode/sinkwatch/internal/sandbox"
)

var errFetchDisabled = errors.New("url analysis is disabled")

// fetchError marks a failure to load the page under analysis
type fetchError struct {
	err error
}

func (e *fetchError) Error() string { return "fetch failed: " + e.err.Error() }
func (e *fetchError) Unwrap() error { return e.err }

func fetchStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return "rejected"
	}
	return "error"
}

// statusFor maps analysis and fetch errors to HTTP status codes
func statusFor(err error) int {
	var fe *fetchError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, errFetchDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, page.ErrUnsupportedScheme):
		return http.StatusBadRequest
	case errors.Is(err, page.ErrEmpty), errors.Is(err, page.ErrTooLarge), errors.Is(err, analysis.ErrUnsupportedInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	case errors.As(err, &fe):
		return http.StatusBadGateway
	case errors.Is(err, sandbox.ErrTimeout), errors.Is(err, sandbox.ErrPoolClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
