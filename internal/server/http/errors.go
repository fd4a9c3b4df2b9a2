package httpserver

import (
	"errors"
	"net/http"

	"github.com/helixir/paper-search-service/internal/domain"
)

// Error codes returned in the error envelope.
const (
	codeInvalidRequest     = "invalid_request"
	codeNotFound           = "not_found"
	codeMethodNotAllowed   = "method_not_allowed"
	codeRateLimited        = "rate_limited"
	codeNoResults          = "no_results_available"
	codeServiceUnavailable = "service_unavailable"
	codeTimeout            = "timeout"
	codeInternal           = "internal_error"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// writeError writes the JSON error envelope.
func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// writeDomainError maps a service error to a status code and error code.
// Internal details are never echoed for unclassified errors.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrNotFound):
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, codeNotFound, nf.Error())
		} else {
			writeError(w, http.StatusNotFound, codeNotFound, "resource not found")
		}
	case errors.Is(err, domain.ErrNoResultsAvailable):
		writeError(w, http.StatusServiceUnavailable, codeNoResults, "no paper sources returned results")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, codeRateLimited, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, codeServiceUnavailable, "service unavailable")
	case errors.Is(err, domain.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, codeTimeout, "request timed out")
	default:
		writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
	}
}
