// Package files serves a closed allowlist of add-on configuration files.
// Absence of an allowlist match is always forbidden, never "try anyway",
// and rejection never reveals whether the name would have existed.
package files

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/loggw/loggw/internal/config"
	gwerrors "github.com/loggw/loggw/internal/errors"
)

// Category is one named entry of the closed file catalog: either a set of
// exact names with content types, or a single permitted extension pattern.
type Category struct {
	Name string

	// ExactNames maps allowed file names to their content type.
	ExactNames map[string]string

	// NamePattern allows names matching this pattern (e.g. "*.js"); used
	// when ExactNames is empty. PatternContentType applies to matches.
	NamePattern        *regexp.Regexp
	PatternContentType string

	// Roots are candidate directories in priority order; the first
	// existing match wins.
	Roots []string
}

// ResolvedFile is the outcome of a successful resolution.
type ResolvedFile struct {
	AbsolutePath string
	SourceRoot   string
	ContentType  string
}

// Entry describes one allowed file present on disk.
type Entry struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
	MTime       int64  `json:"mtime"`
}

// Location groups listed entries by the candidate root they live in.
type Location struct {
	Base  string  `json:"base"`
	Files []Entry `json:"files"`
}

// Listing is the JSON body of a category listing.
type Listing struct {
	Locations []Location `json:"locations"`
}

// Zigbee2MQTT stores JSON in database.db despite the extension.
var z2mAllowedFiles = map[string]string{
	"configuration.yaml":      "text/yaml; charset=utf-8",
	"configuration.yml":       "text/yaml; charset=utf-8",
	"devices.yaml":            "text/yaml; charset=utf-8",
	"devices.yml":             "text/yaml; charset=utf-8",
	"groups.yaml":             "text/yaml; charset=utf-8",
	"groups.yml":              "text/yaml; charset=utf-8",
	"coordinator_backup.json": "application/json; charset=utf-8",
	"database.db":             "application/json; charset=utf-8",
}

var jsNameRe = regexp.MustCompile(`^[A-Za-z0-9._-]+\.js$`)

// Category names served by the gateway.
const (
	CategoryZ2M           = "z2m"
	CategoryZ2MConverters = "z2m/external_converters"
)

// Resolver evaluates the file catalog. The catalog is static: it is built
// once from config at startup and shared read-only across requests.
type Resolver struct {
	categories map[string]Category
}

// NewResolver builds the catalog. The add-on's own config directory takes
// priority over the generic multi-addon-config mount; new add-ons or paths
// are added by extending these root lists.
func NewResolver(cfg *config.Config) *Resolver {
	z2mRoots := []string{
		filepath.Join(cfg.ConfigDir, "zigbee2mqtt"),
		filepath.Join(cfg.AllAddonConfigsDir, cfg.Z2MSlug),
	}
	converterRoots := make([]string, len(z2mRoots))
	for i, root := range z2mRoots {
		converterRoots[i] = filepath.Join(root, "external_converters")
	}

	return &Resolver{
		categories: map[string]Category{
			CategoryZ2M: {
				Name:       CategoryZ2M,
				ExactNames: z2mAllowedFiles,
				Roots:      z2mRoots,
			},
			CategoryZ2MConverters: {
				Name:               CategoryZ2MConverters,
				NamePattern:        jsNameRe,
				PatternContentType: "application/javascript; charset=utf-8",
				Roots:              converterRoots,
			},
		},
	}
}

// Resolve finds the first candidate root holding the named file.
// Disallowed or malformed names are forbidden before any filesystem
// lookup; an allowed name absent from every root is not found.
func (r *Resolver) Resolve(category, name string) (ResolvedFile, error) {
	const op = "resolve_file"

	cat, ok := r.categories[category]
	if !ok {
		return ResolvedFile{}, gwerrors.New(gwerrors.ErrorTypeNotFound, op, "unknown_category")
	}

	contentType, err := cat.allow(name)
	if err != nil {
		return ResolvedFile{}, err
	}

	for _, root := range cat.Roots {
		candidate := filepath.Join(root, name)
		info, err := os.Stat(candidate)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		return ResolvedFile{
			AbsolutePath: candidate,
			SourceRoot:   root,
			ContentType:  contentType,
		}, nil
	}
	return ResolvedFile{}, gwerrors.New(gwerrors.ErrorTypeNotFound, op, "file_not_found")
}

// List returns the allowed names actually present on disk, per root, so
// the allowlist never advertises files that do not exist.
func (r *Resolver) List(category string) (Listing, error) {
	const op = "list_files"

	cat, ok := r.categories[category]
	if !ok {
		return Listing{}, gwerrors.New(gwerrors.ErrorTypeNotFound, op, "unknown_category")
	}

	listing := Listing{Locations: []Location{}}
	for _, root := range cat.Roots {
		var entries []Entry
		for _, name := range cat.candidateNames(root) {
			info, err := os.Stat(filepath.Join(root, name))
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			contentType := cat.ExactNames[name]
			if contentType == "" {
				contentType = cat.PatternContentType
			}
			entries = append(entries, Entry{
				Name:        name,
				Size:        info.Size(),
				ContentType: contentType,
				MTime:       info.ModTime().Unix(),
			})
		}
		if len(entries) > 0 {
			listing.Locations = append(listing.Locations, Location{Base: root, Files: entries})
		}
	}
	return listing, nil
}

// allow validates a name against the category allowlist. Traversal
// defense runs first, regardless of downstream OS path semantics.
func (cat Category) allow(name string) (string, error) {
	const op = "resolve_file"

	if name == "" ||
		strings.ContainsAny(name, "/\\\x00") ||
		strings.Contains(name, "..") {
		return "", gwerrors.New(gwerrors.ErrorTypeForbidden, op, "file_not_allowed")
	}

	if len(cat.ExactNames) > 0 {
		contentType, ok := cat.ExactNames[name]
		if !ok {
			return "", gwerrors.New(gwerrors.ErrorTypeForbidden, op, "file_not_allowed")
		}
		return contentType, nil
	}
	if cat.NamePattern != nil && cat.NamePattern.MatchString(name) {
		return cat.PatternContentType, nil
	}
	return "", gwerrors.New(gwerrors.ErrorTypeForbidden, op, "file_not_allowed")
}

// candidateNames enumerates names to stat for a listing: the exact
// allowlist for closed sets, or a directory scan filtered by pattern.
func (cat Category) candidateNames(root string) []string {
	if len(cat.ExactNames) > 0 {
		names := make([]string, 0, len(cat.ExactNames))
		for name := range cat.ExactNames {
			names = append(names, name)
		}
		sort.Strings(names)
		return names
	}

	dirEntries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var names []string
	for _, de := range dirEntries {
		if de.IsDir() || cat.NamePattern == nil || !cat.NamePattern.MatchString(de.Name()) {
			continue
		}
		names = append(names, de.Name())
	}
	sort.Strings(names)
	return names
}
