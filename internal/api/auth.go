package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// authenticate validates the Authorization header against the configured
// gateway token. On failure it writes the 401 itself and no further
// handler logic runs.
func (r *Router) authenticate(w http.ResponseWriter, req *http.Request) bool {
	header := req.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		writeJSONError(w, http.StatusUnauthorized, "missing_bearer_token")
		return false
	}

	provided := strings.TrimSpace(header[len("bearer "):])
	if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(r.config.Token)) != 1 {
		log.Warn().
			Str("ip", req.RemoteAddr).
			Str("path", req.URL.Path).
			Msg("Unauthorized gateway access attempt")
		writeJSONError(w, http.StatusUnauthorized, "invalid_token")
		return false
	}
	return true
}
