package api

import (
	"encoding/json"
	"net/http"

	gwerrors "github.com/loggw/loggw/internal/errors"
	"github.com/rs/zerolog/log"
)

type errorBody struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response body.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeJSONError writes an error response carrying a short
// machine-readable reason. Internal detail never reaches the body.
func writeJSONError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, errorBody{Error: reason})
}

// writeRequestError maps a typed error to its status and reason.
func writeRequestError(w http.ResponseWriter, err error) {
	status, reason := gwerrors.StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Unclassified request failure")
	}
	writeJSONError(w, status, reason)
}
