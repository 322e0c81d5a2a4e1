// Package logmerge turns one or more raw log sources into a single
// ordered, line-bounded snapshot. Filtering happens before truncation so
// a requested line count always reflects the filtered view.
package logmerge

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Warning messages surfaced through the X-LogGateway-Warning header.
const (
	WarningMixedLines        = "Insufficient non-debug lines; returning mixed lines to satisfy target count."
	WarningInsufficientLines = "Insufficient lines available to satisfy target count."
)

const (
	overfetchMin    = 5000
	overfetchFactor = 5
)

var (
	// Timestamp prefix shared by Home Assistant core and journal logs.
	tsRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})[ T](\d{2}:\d{2}:\d{2})(?:\.(\d{1,6}))?`)

	// Debug marker: the level after an optional bracketed timestamp. The
	// match is case-sensitive and content-based, not position-based.
	debugRe = regexp.MustCompile(`^(?:\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\]\s+)?debug:`)
)

// Request describes one merge. Sources are ordered: the first is the
// primary and wins the concatenation fallback when timestamps are absent.
type Request struct {
	Sources      []Source
	Lines        int
	IncludeDebug bool
}

// SourceFailure records a source that could not be fetched.
type SourceFailure struct {
	Path string
	Err  error
}

// Result is the merged, filtered, truncated snapshot.
type Result struct {
	Lines       []string
	Truncated   bool
	SourcePaths []string
	Failures    []SourceFailure
	Warning     string
}

// Merger merges log sources. fetchCap bounds the raw over-fetch when
// debug filtering needs more input than the requested line count.
type Merger struct {
	fetchCap int
}

// NewMerger creates a merger with the given raw fetch ceiling.
func NewMerger(fetchCap int) *Merger {
	return &Merger{fetchCap: fetchCap}
}

type entry struct {
	ts    time.Time
	hasTS bool
	order int
	line  string
}

// Merge fetches every source, filters debug lines when asked, orders the
// combined sequence, and truncates to the last req.Lines lines.
//
// Ordering: lines with a parseable timestamp prefix interleave
// chronologically; lines without one keep arrival order after the stamped
// ones. When no line carries a timestamp this degrades to the documented
// fallback of primary-source lines before secondary-source lines.
func (m *Merger) Merge(ctx context.Context, req Request) (Result, error) {
	fetchN := req.Lines
	ceiling := req.Lines
	if !req.IncludeDebug {
		fetchN = max(overfetchMin, req.Lines*overfetchFactor)
		ceiling = max(fetchN, m.fetchCap)
	}

	for {
		entries, paths, failures, err := m.fetchAll(ctx, req.Sources, min(fetchN, ceiling))
		if err != nil {
			return Result{}, err
		}

		filtered := entries
		if !req.IncludeDebug {
			filtered = dropDebug(entries)
		}

		if !req.IncludeDebug && len(filtered) < req.Lines && fetchN < ceiling {
			fetchN = min(ceiling, fetchN*2)
			continue
		}

		result := Result{SourcePaths: paths, Failures: failures}

		if !req.IncludeDebug && len(filtered) < req.Lines {
			// Exhausted the fetch cap without enough non-debug lines.
			if len(entries) >= req.Lines {
				log.Debug().
					Int("requested", req.Lines).
					Int("non_debug", len(filtered)).
					Msg("Falling back to mixed lines after exhausting fetch cap")
				result.Lines = orderedLines(entries, req.Lines)
				result.Truncated = len(entries) > req.Lines
				result.Warning = WarningMixedLines
				return result, nil
			}
			result.Lines = orderedLines(filtered, req.Lines)
			result.Warning = WarningInsufficientLines
			return result, nil
		}

		result.Lines = orderedLines(filtered, req.Lines)
		result.Truncated = len(filtered) > req.Lines
		return result, nil
	}
}

// fetchAll fetches every source in order. A failed source among several is
// recorded and skipped; the merge only fails when no source succeeded.
func (m *Merger) fetchAll(ctx context.Context, sources []Source, lines int) ([]entry, []string, []SourceFailure, error) {
	var (
		entries  []entry
		paths    []string
		failures []SourceFailure
		firstErr error
	)
	order := 0
	for _, src := range sources {
		fetched, err := src.Fetch(ctx, lines)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			failures = append(failures, SourceFailure{Path: src.Path(), Err: err})
			log.Warn().Err(err).Str("source", src.Path()).Msg("Log source unavailable, continuing with remaining sources")
			continue
		}
		paths = append(paths, src.Path())
		for _, line := range fetched {
			ts, ok := parseTimestamp(line)
			entries = append(entries, entry{ts: ts, hasTS: ok, order: order, line: line})
			order++
		}
	}
	if len(paths) == 0 && firstErr != nil {
		return nil, nil, nil, firstErr
	}
	return entries, paths, failures, nil
}

func dropDebug(entries []entry) []entry {
	filtered := make([]entry, 0, len(entries))
	for _, e := range entries {
		if debugRe.MatchString(e.line) {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

// orderedLines sorts stamped entries chronologically (stable on arrival
// order for equal stamps), appends unstamped entries in arrival order,
// and returns the last n lines.
func orderedLines(entries []entry, n int) []string {
	stamped := make([]entry, 0, len(entries))
	unstamped := make([]entry, 0)
	for _, e := range entries {
		if e.hasTS {
			stamped = append(stamped, e)
		} else {
			unstamped = append(unstamped, e)
		}
	}
	sort.SliceStable(stamped, func(i, j int) bool {
		if stamped[i].ts.Equal(stamped[j].ts) {
			return stamped[i].order < stamped[j].order
		}
		return stamped[i].ts.Before(stamped[j].ts)
	})

	merged := append(stamped, unstamped...)
	if len(merged) > n {
		merged = merged[len(merged)-n:]
	}
	lines := make([]string, len(merged))
	for i, e := range merged {
		lines[i] = e.line
	}
	return lines
}

// parseTimestamp extracts the leading timestamp, if any.
func parseTimestamp(line string) (time.Time, bool) {
	m := tsRe.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, false
	}
	ts, err := time.Parse("2006-01-02T15:04:05", m[1]+"T"+m[2])
	if err != nil {
		return time.Time{}, false
	}
	if m[3] != "" {
		frac := m[3]
		for len(frac) < 6 {
			frac += "0"
		}
		micros, err := strconv.Atoi(frac)
		if err == nil {
			ts = ts.Add(time.Duration(micros) * time.Microsecond)
		}
	}
	return ts, true
}
