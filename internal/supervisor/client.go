// Package supervisor talks to the Home Assistant Supervisor API. The
// gateway never stores log data itself; every fetch is a bounded,
// idempotent GET against the Supervisor with the service token.
package supervisor

import (
	"context"
	"fmt"
)

// LogKind identifies one Supervisor log endpoint.
type LogKind string

const (
	LogKindHost       LogKind = "host"
	LogKindCore       LogKind = "core"
	LogKindSupervisor LogKind = "supervisor"
	LogKindAddon      LogKind = "addon"
)

// FetchOptions narrows a log fetch.
type FetchOptions struct {
	// AddonSlug selects the add-on for LogKindAddon; ignored otherwise.
	AddonSlug string
	// Lines is the raw line count requested from the Supervisor.
	Lines int
}

// Client is the upstream capability the gateway depends on. The HTTP
// adapter implements it in production; tests substitute a fake.
type Client interface {
	FetchLog(ctx context.Context, kind LogKind, opts FetchOptions) (string, error)
}

// endpointPath maps a log kind to its Supervisor API path.
func endpointPath(kind LogKind, slug string) (string, error) {
	switch kind {
	case LogKindHost:
		return "/host/logs", nil
	case LogKindCore:
		return "/core/logs", nil
	case LogKindSupervisor:
		return "/supervisor/logs", nil
	case LogKindAddon:
		if slug == "" {
			return "", fmt.Errorf("addon log fetch requires a slug")
		}
		return fmt.Sprintf("/addons/%s/logs", slug), nil
	default:
		return "", fmt.Errorf("unknown log kind %q", kind)
	}
}
