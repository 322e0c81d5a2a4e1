package api

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/loggw/loggw/internal/config"
	gwerrors "github.com/loggw/loggw/internal/errors"
	"github.com/loggw/loggw/internal/logmerge"
	"github.com/loggw/loggw/internal/supervisor"
)

// Diagnostic response headers.
const (
	HeaderWarning = "X-LogGateway-Warning"
	HeaderSource  = "X-LogGateway-Source"
)

// LogHandlers serves the /logs/* snapshot endpoints.
type LogHandlers struct {
	config *config.Config
	client supervisor.Client
	merger *logmerge.Merger
}

// NewLogHandlers creates the log snapshot handlers.
func NewLogHandlers(cfg *config.Config, client supervisor.Client) *LogHandlers {
	return &LogHandlers{
		config: cfg,
		client: client,
		merger: logmerge.NewMerger(cfg.Z2MFetchCap),
	}
}

// HandleSystem serves the host log snapshot.
func (h *LogHandlers) HandleSystem(w http.ResponseWriter, r *http.Request) {
	h.serveSingle(w, r, supervisor.LogKindHost)
}

// HandleSupervisor serves the Supervisor's own log snapshot.
func (h *LogHandlers) HandleSupervisor(w http.ResponseWriter, r *http.Request) {
	h.serveSingle(w, r, supervisor.LogKindSupervisor)
}

// HandleCore merges the core container log with the rotated local
// home-assistant.log files into one chronological snapshot.
func (h *LogHandlers) HandleCore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	lines, err := h.requestedLines(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	cfg := h.config.ConfigDir
	result, err := h.merger.Merge(r.Context(), logmerge.Request{
		Sources: []logmerge.Source{
			logmerge.NewUpstreamSource(h.client, supervisor.LogKindCore, ""),
			logmerge.NewFileSource(
				filepath.Join(cfg, "home-assistant.log"),
				filepath.Join(cfg, "home-assistant.log"),
				filepath.Join(cfg, "home-assistant.log.1"),
				filepath.Join(cfg, "home-assistant.log.2"),
			),
		},
		Lines:        lines,
		IncludeDebug: true,
	})
	if err != nil {
		writeRequestError(w, err)
		return
	}
	writeMergedResult(w, result)
}

// HandleZ2M serves the named add-on's log, with debug lines stripped
// unless include_debug is set.
func (h *LogHandlers) HandleZ2M(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	lines, err := h.requestedLines(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	includeDebug, err := boolParam(r, "include_debug")
	if err != nil {
		writeRequestError(w, err)
		return
	}

	result, err := h.merger.Merge(r.Context(), logmerge.Request{
		Sources: []logmerge.Source{
			logmerge.NewUpstreamSource(h.client, supervisor.LogKindAddon, h.config.Z2MSlug),
		},
		Lines:        lines,
		IncludeDebug: includeDebug,
	})
	if err != nil {
		writeRequestError(w, err)
		return
	}
	writeMergedResult(w, result)
}

func (h *LogHandlers) serveSingle(w http.ResponseWriter, r *http.Request, kind supervisor.LogKind) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	lines, err := h.requestedLines(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	result, err := h.merger.Merge(r.Context(), logmerge.Request{
		Sources:      []logmerge.Source{logmerge.NewUpstreamSource(h.client, kind, "")},
		Lines:        lines,
		IncludeDebug: true,
	})
	if err != nil {
		writeRequestError(w, err)
		return
	}
	writeMergedResult(w, result)
}

// requestedLines resolves the lines query parameter: absent means the
// configured default, anything outside [1, LinesMax] is a 400.
func (h *LogHandlers) requestedLines(r *http.Request) (int, error) {
	const op = "parse_lines"

	raw := r.URL.Query().Get("lines")
	if raw == "" {
		return h.config.LinesDefault, nil
	}
	lines, err := strconv.Atoi(raw)
	if err != nil || lines <= 0 {
		return 0, gwerrors.New(gwerrors.ErrorTypeValidation, op, "lines_must_be_positive_integer")
	}
	if lines > h.config.LinesMax {
		return 0, gwerrors.New(gwerrors.ErrorTypeValidation, op, "lines_exceeds_maximum")
	}
	return lines, nil
}

func boolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, gwerrors.New(gwerrors.ErrorTypeValidation, "parse_"+name, "invalid_"+name)
	}
	return v, nil
}

// writeMergedResult renders a merge as text/plain with the diagnostic
// headers. A partial merge is a 200 with a warning, never an error.
func writeMergedResult(w http.ResponseWriter, result logmerge.Result) {
	warnings := make([]string, 0, 2)
	if result.Warning != "" {
		warnings = append(warnings, result.Warning)
	}
	for _, failure := range result.Failures {
		warnings = append(warnings, "Source unavailable: "+failure.Path)
	}
	if len(warnings) > 0 {
		w.Header().Set(HeaderWarning, strings.Join(warnings, "; "))
	}
	if len(result.SourcePaths) > 0 {
		w.Header().Set(HeaderSource, strings.Join(result.SourcePaths, ", "))
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(strings.Join(result.Lines, "\n")))
}
