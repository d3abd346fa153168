package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"workscope/batch"
	"workscope/hierarchy"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// decodeBody decodes and validates a JSON request body.
func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("Invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return errors.New("Invalid field: " + verrs[0].Field())
		}
		return err
	}
	return nil
}

// writeServiceError maps pipeline errors onto responses. Batched fetch failures and
// cancellations are retryable; the client should repeat the whole request.
func writeServiceError(w http.ResponseWriter, log *logrus.Entry, err error) {
	switch {
	case errors.Is(err, batch.ErrFetchFailed),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		log.WithError(err).Warn("report fetch failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"error":     "Failed to retrieve reports",
			"retryable": true,
		})
	case errors.Is(err, hierarchy.ErrNotAdmin), errors.Is(err, hierarchy.ErrInvalidLevel):
		writeError(w, "Insufficient permissions", http.StatusForbidden)
	default:
		log.WithError(err).Error("request failed")
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}
