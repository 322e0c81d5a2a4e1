package supervisor

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gwerrors "github.com/loggw/loggw/internal/errors"
	"github.com/loggw/loggw/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	connectTimeout = 2 * time.Second
	requestTimeout = 8 * time.Second

	// Upstream error bodies are truncated before they reach a log line or
	// diagnostic field; they are never returned as the gateway body.
	maxErrorBodyBytes = 200
)

// HTTPClient is the production Client adapter. Log fetches are cheap,
// idempotent GETs, so a failure surfaces immediately instead of being
// retried and delaying the response.
type HTTPClient struct {
	baseURL    string
	token      string
	noColors   bool
	httpClient *http.Client
}

// NewHTTPClient creates a Supervisor API client authenticated with the
// service token.
func NewHTTPClient(baseURL, token string, noColors bool) *HTTPClient {
	return &HTTPClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		token:    token,
		noColors: noColors,
		httpClient: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: connectTimeout,
				}).DialContext,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 2,
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// FetchLog retrieves a raw log snapshot from the Supervisor.
func (c *HTTPClient) FetchLog(ctx context.Context, kind LogKind, opts FetchOptions) (string, error) {
	const op = "fetch_log"

	path, err := endpointPath(kind, opts.AddonSlug)
	if err != nil {
		return "", gwerrors.Wrap(gwerrors.ErrorTypeInternal, op, "internal_error", err)
	}

	params := url.Values{}
	params.Set("lines", strconv.Itoa(opts.Lines))
	if c.noColors {
		params.Set("no_colors", "1")
	}
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", gwerrors.Wrap(gwerrors.ErrorTypeInternal, op, "internal_error", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordUpstreamRequest(string(kind), "unreachable")
		log.Warn().Err(err).Str("kind", string(kind)).Msg("Supervisor request failed")
		return "", gwerrors.Wrap(gwerrors.ErrorTypeUpstream, op, "supervisor_unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordUpstreamRequest(string(kind), "error")
		return "", c.statusError(op, kind, resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordUpstreamRequest(string(kind), "error")
		return "", gwerrors.Wrap(gwerrors.ErrorTypeUpstream, op, "supervisor_read_failed", err)
	}
	metrics.RecordUpstreamRequest(string(kind), "ok")
	return string(body), nil
}

// statusError translates an upstream HTTP status into the gateway's error
// taxonomy, preserving the upstream status for operators.
func (c *HTTPClient) statusError(op string, kind LogKind, resp *http.Response) error {
	snippet := readErrorSnippet(resp.Body)
	log.Warn().
		Str("kind", string(kind)).
		Int("upstream_status", resp.StatusCode).
		Str("upstream_body", snippet).
		Msg("Supervisor returned an error")

	switch resp.StatusCode {
	case http.StatusForbidden:
		// Documented operational condition: the add-on lacks the required
		// Supervisor API role, not a gateway bug.
		err := &gwerrors.RequestError{
			Type:           gwerrors.ErrorTypeUpstream,
			Op:             op,
			Reason:         "supervisor_forbidden",
			Err:            fmt.Errorf("supervisor denied access (check the add-on's API role): %s", snippet),
			UpstreamStatus: resp.StatusCode,
		}
		return err
	case http.StatusNotFound:
		return &gwerrors.RequestError{
			Type:           gwerrors.ErrorTypeNotFound,
			Op:             op,
			Reason:         "unknown_upstream_target",
			Err:            fmt.Errorf("supervisor has no such log source: %s", snippet),
			UpstreamStatus: resp.StatusCode,
		}
	default:
		return &gwerrors.RequestError{
			Type:           gwerrors.ErrorTypeUpstream,
			Op:             op,
			Reason:         "supervisor_error",
			Err:            fmt.Errorf("supervisor returned %d: %s", resp.StatusCode, snippet),
			UpstreamStatus: resp.StatusCode,
		}
	}
}

func readErrorSnippet(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
