// Package rest exposes the HTTP API: review submission, the review queue,
// recommendations and feedback, plus health and metrics endpoints.
package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/algoprep/algoprep-backend/internal/domain"
)

// errorBody is the uniform JSON error envelope.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Fields  []fieldError `json:"fields,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// respondError maps domain errors onto HTTP status codes.
func respondError(w http.ResponseWriter, err error) {
	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		fields := make([]fieldError, 0, len(vErr.Errors))
		for _, fe := range vErr.Errors {
			fields = append(fields, fieldError{Field: fe.Field, Message: fe.Message})
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
			Code: "VALIDATION_ERROR", Message: "invalid request", Fields: fields,
		}})
	case errors.Is(err, domain.ErrInvalidRating):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
			Code: "INVALID_RATING", Message: "rating must be between 1 and 4",
		}})
	case errors.Is(err, domain.ErrInvalidCard), errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{
			Code: "VALIDATION_ERROR", Message: err.Error(),
		}})
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{
			Code: "UNAUTHORIZED", Message: "authentication required",
		}})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: errorDetail{
			Code: "NOT_FOUND", Message: "resource not found",
		}})
	case errors.Is(err, domain.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody{Error: errorDetail{
			Code: "CONFLICT", Message: "resource already exists",
		}})
	default:
		// Includes domain.ErrCalculation: scheduling math failures are
		// server-side bugs, never the client's fault.
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
			Code: "INTERNAL", Message: "internal server error",
		}})
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.NewValidationError("body", "malformed JSON")
	}
	return nil
}
