package logmerge

import (
	"context"
	"os"

	"github.com/loggw/loggw/internal/supervisor"
)

// Source is one origin of raw log lines. Fetch returns up to the requested
// number of lines, oldest first.
type Source interface {
	Fetch(ctx context.Context, lines int) ([]string, error)
	// Path identifies the source for diagnostics.
	Path() string
}

// UpstreamSource reads a log snapshot from the Supervisor API.
type UpstreamSource struct {
	client supervisor.Client
	kind   supervisor.LogKind
	slug   string
}

// NewUpstreamSource wraps a Supervisor log endpoint as a Source.
func NewUpstreamSource(client supervisor.Client, kind supervisor.LogKind, slug string) *UpstreamSource {
	return &UpstreamSource{client: client, kind: kind, slug: slug}
}

func (s *UpstreamSource) Fetch(ctx context.Context, lines int) ([]string, error) {
	text, err := s.client.FetchLog(ctx, s.kind, supervisor.FetchOptions{
		AddonSlug: s.slug,
		Lines:     lines,
	})
	if err != nil {
		return nil, err
	}
	return splitLines(text), nil
}

func (s *UpstreamSource) Path() string {
	if s.kind == supervisor.LogKindAddon {
		return "supervisor:addons/" + s.slug
	}
	return "supervisor:" + string(s.kind)
}

// FileSource tails a local log file and its rotations. Paths are ordered
// newest first; older rotations only contribute when the newer files do
// not hold enough lines, and their lines are prepended so the sequence
// stays oldest first.
type FileSource struct {
	name  string
	paths []string
}

// NewFileSource creates a file source over the given rotation chain.
func NewFileSource(name string, paths ...string) *FileSource {
	return &FileSource{name: name, paths: paths}
}

func (s *FileSource) Fetch(ctx context.Context, lines int) ([]string, error) {
	remaining := lines
	var collected []string
	for _, path := range s.paths {
		if remaining <= 0 {
			break
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		chunk, err := TailLines(path, remaining)
		if err != nil {
			continue
		}
		if len(chunk) > 0 {
			collected = append(chunk, collected...)
			remaining = lines - len(collected)
		}
	}
	return collected, nil
}

func (s *FileSource) Path() string {
	return s.name
}
