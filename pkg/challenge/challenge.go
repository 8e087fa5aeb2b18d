// Package challenge detects anti-bot interstitials and obtains the
// clearance cookies that let plain HTTP requests through.
package challenge

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a solve when the challenge sets no timeout.
const DefaultTimeout = 30 * time.Second

// Spec identifies a site's challenge page by status code and Server header,
// and names the cookie whose presence proves the challenge was passed.
type Spec struct {
	Status  int
	Server  string
	Cookie  string
	Timeout time.Duration
}

// Cloudflare returns the common Cloudflare signature for the given status.
func Cloudflare(status int, timeout time.Duration) *Spec {
	return &Spec{Status: status, Server: "cloudflare", Cookie: "cf_clearance", Timeout: timeout}
}

// Matches reports whether resp carries this challenge signature.
func (s *Spec) Matches(resp *http.Response) bool {
	if s == nil || resp == nil || resp.StatusCode != s.Status {
		return false
	}
	if s.Server == "" {
		return true
	}
	return strings.Contains(strings.ToLower(resp.Header.Get("Server")), strings.ToLower(s.Server))
}

// Deadline returns the solve timeout, defaulting to DefaultTimeout.
func (s *Spec) Deadline() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultTimeout
}

// Solver obtains clearance for req and stores the resulting cookies in the
// shared cookie jar. A solver that fails or times out returns false; it never
// surfaces an error of its own.
type Solver interface {
	Solve(ctx context.Context, req *http.Request, spec *Spec) bool
}

// Chain tries each solver in order until one succeeds.
type Chain []Solver

// Solve implements Solver.
func (c Chain) Solve(ctx context.Context, req *http.Request, spec *Spec) bool {
	for _, s := range c {
		if s == nil {
			continue
		}
		if s.Solve(ctx, req, spec) {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
	}
	return false
}

// HasCookie reports whether jar holds a cookie called name for u's host.
func HasCookie(jar http.CookieJar, req *http.Request, name string) bool {
	if jar == nil {
		return false
	}
	for _, c := range jar.Cookies(req.URL) {
		if c.Name == name {
			return true
		}
	}
	return false
}
