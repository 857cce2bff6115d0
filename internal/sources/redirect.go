package sources

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Resolver maps a grounding URI to the page it ultimately points at.
// Implementations return the input unchanged when they cannot resolve it.
type Resolver interface {
	Resolve(ctx context.Context, uri string) string
}

// UnwrapGoogleRedirect returns the target of a google.com/url?q=... style
// redirect wrapper, or raw unchanged when it is not one.
func UnwrapGoogleRedirect(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !isGoogleHost(u.Hostname()) || u.Path != "/url" {
		return raw
	}
	q := u.Query()
	for _, key := range []string{"q", "url"} {
		target := q.Get(key)
		if t, err := url.Parse(target); err == nil && (t.Scheme == "http" || t.Scheme == "https") && t.Host != "" {
			return target
		}
	}
	return raw
}

func isGoogleHost(host string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	return host == "google.com" || strings.HasPrefix(host, "google.")
}

const groundingRedirectHost = "vertexaisearch.cloud.google.com"

// IsGroundingRedirect reports whether uri is an opaque grounding-api
// redirect that needs a network round trip to resolve.
func IsGroundingRedirect(uri string) bool {
	u, err := url.Parse(uri)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), groundingRedirectHost) && strings.HasPrefix(u.Path, "/grounding-api-redirect/")
}

// HTTPRedirectResolver follows one hop of a grounding-api redirect with a
// HEAD request and reads the Location header. Any failure keeps the
// original URI.
type HTTPRedirectResolver struct {
	client *http.Client
	match  func(string) bool
}

// NewHTTPRedirectResolver creates a resolver. A nil client gets a default
// with a short timeout that never follows redirects.
func NewHTTPRedirectResolver(client *http.Client) *HTTPRedirectResolver {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &HTTPRedirectResolver{client: &c, match: IsGroundingRedirect}
}

// Resolve implements Resolver.
func (r *HTTPRedirectResolver) Resolve(ctx context.Context, uri string) string {
	if !r.match(uri) {
		return uri
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, uri, nil)
	if err != nil {
		return uri
	}
	resp, err := r.client.Do(req)
	if err != nil {
		zap.L().Debug("sources: redirect resolution failed", zap.String("uri", uri), zap.Error(err))
		return uri
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 300 || resp.StatusCode >= 400 {
		return uri
	}
	loc, err := resp.Location()
	if err != nil {
		return uri
	}
	return UnwrapGoogleRedirect(loc.String())
}
