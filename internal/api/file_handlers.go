package api

import (
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/loggw/loggw/internal/files"
	"github.com/rs/zerolog/log"
)

// Diagnostic headers on file responses.
const (
	HeaderPath      = "X-LogGateway-Path"
	HeaderTruncated = "X-LogGateway-Truncated"
)

// Inline file bodies are capped; download mode streams the whole file.
const maxInlineFileBytes = 2_000_000

// FileHandlers serves the /files/* allowlisted configuration endpoints.
type FileHandlers struct {
	resolver *files.Resolver
}

// NewFileHandlers creates the file-serving handlers.
func NewFileHandlers(resolver *files.Resolver) *FileHandlers {
	return &FileHandlers{resolver: resolver}
}

// ServeHTTP dispatches /files/ requests. Path segments are unescaped and
// validated here, one by one, so encoded traversal probes are judged on
// their decoded content.
func (h *FileHandlers) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.EscapedPath(), "/files/")
	rest = strings.TrimSuffix(rest, "/")
	if rest == "" {
		writeJSONError(w, http.StatusNotFound, "unknown_route")
		return
	}

	segments := strings.Split(rest, "/")
	for i, seg := range segments {
		decoded, err := url.PathUnescape(seg)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "malformed_path")
			return
		}
		if decoded == "" || decoded == "." || strings.Contains(decoded, "..") ||
			strings.ContainsAny(decoded, "/\\\x00") {
			writeJSONError(w, http.StatusForbidden, "file_not_allowed")
			return
		}
		segments[i] = decoded
	}

	switch {
	case len(segments) == 1 && segments[0] == files.CategoryZ2M:
		h.list(w, files.CategoryZ2M)
	case len(segments) == 2 && segments[0] == files.CategoryZ2M && segments[1] == "external_converters":
		h.list(w, files.CategoryZ2MConverters)
	case len(segments) == 3 && segments[0] == files.CategoryZ2M && segments[1] == "external_converters":
		h.fetch(w, r, files.CategoryZ2MConverters, segments[2])
	case len(segments) == 2 && segments[0] == files.CategoryZ2M:
		h.fetch(w, r, files.CategoryZ2M, segments[1])
	default:
		writeJSONError(w, http.StatusNotFound, "unknown_route")
	}
}

func (h *FileHandlers) list(w http.ResponseWriter, category string) {
	listing, err := h.resolver.List(category)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// fetch resolves and serves one allowlisted file. The download flag only
// changes Content-Disposition, never resolution or allowlist logic.
func (h *FileHandlers) fetch(w http.ResponseWriter, r *http.Request, category, name string) {
	download, err := boolParam(r, "download")
	if err != nil {
		writeRequestError(w, err)
		return
	}

	resolved, err := h.resolver.Resolve(category, name)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	f, err := os.Open(resolved.AbsolutePath)
	if err != nil {
		log.Error().Err(err).Str("path", resolved.AbsolutePath).Msg("Resolved file vanished before read")
		writeJSONError(w, http.StatusNotFound, "file_not_found")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", resolved.ContentType)
	w.Header().Set(HeaderPath, resolved.AbsolutePath)

	if download {
		w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(name))
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, f); err != nil {
			log.Warn().Err(err).Str("path", resolved.AbsolutePath).Msg("File download interrupted")
		}
		return
	}

	body, err := io.ReadAll(io.LimitReader(f, maxInlineFileBytes+1))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "file_read_failed")
		return
	}
	if len(body) > maxInlineFileBytes {
		body = body[:maxInlineFileBytes]
		w.Header().Set(HeaderTruncated, "true")
	}
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
