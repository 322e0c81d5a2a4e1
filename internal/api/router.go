// Package api is the gateway's HTTP surface: bearer-token gate, route
// dispatch, and translation of internal outcomes to statuses and headers.
package api

import (
	"net/http"
	"strings"

	"github.com/loggw/loggw/internal/config"
	"github.com/loggw/loggw/internal/files"
	"github.com/loggw/loggw/internal/supervisor"
)

// Router handles HTTP routing. Every route, health included, sits behind
// the bearer-token check.
type Router struct {
	mux          *http.ServeMux
	config       *config.Config
	logHandlers  *LogHandlers
	fileHandlers *FileHandlers
}

// NewRouter creates a router over the injected upstream client and file
// resolver.
func NewRouter(cfg *config.Config, client supervisor.Client, resolver *files.Resolver) *Router {
	r := &Router{
		mux:          http.NewServeMux(),
		config:       cfg,
		logHandlers:  NewLogHandlers(cfg, client),
		fileHandlers: NewFileHandlers(resolver),
	}
	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	r.mux.HandleFunc("/healthz", r.handleHealth)
	r.mux.HandleFunc("/logs/system", r.logHandlers.HandleSystem)
	r.mux.HandleFunc("/logs/core", r.logHandlers.HandleCore)
	r.mux.HandleFunc("/logs/supervisor", r.logHandlers.HandleSupervisor)
	r.mux.HandleFunc("/logs/z2m", r.logHandlers.HandleZ2M)
	r.mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		writeJSONError(w, http.StatusNotFound, "unknown_route")
	})
}

// Handler returns the full middleware chain.
func (r *Router) Handler() http.Handler {
	return withRequestLogging(r)
}

// ServeHTTP authenticates first, then dispatches. The token check runs
// before any upstream call or filesystem access can happen.
//
// File routes are dispatched off the escaped URL path ahead of the mux:
// ServeMux would clean-and-redirect traversal probes before a handler
// ever saw them, and the resolver's own defense must answer instead.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if !r.authenticate(w, req) {
		return
	}

	if strings.HasPrefix(req.URL.EscapedPath(), "/files/") {
		r.fileHandlers.ServeHTTP(w, req)
		return
	}
	r.mux.ServeHTTP(w, req)
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
