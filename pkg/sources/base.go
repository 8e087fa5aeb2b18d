// Package sources provides the per-site content source implementations.
// Each source scrapes one third-party site and normalizes its listings,
// detail pages and player pages into the shared content model.
//
// To add a new source:
// 1. Create a new file (e.g., mysite.go)
// 2. Embed *BaseSource and implement HomeListing, Detail and ResolveVideoURL
// 3. Override the capability-gated operations the site supports
// 4. Register it in internal/app
package sources

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
	"github.com/zc310/headers"
	"golang.org/x/sync/errgroup"

	"media-source-go/pkg/challenge"
	"media-source-go/pkg/config"
	"media-source-go/pkg/httpclient"
	"media-source-go/pkg/logging"
	"media-source-go/pkg/sourceerr"
	"media-source-go/pkg/types"
	"media-source-go/pkg/urlutil"
)

// Options carries the collaborators shared by every source.
type Options struct {
	Client *httpclient.Client
	Log    *logging.Logger
	Solver challenge.Solver

	// BaseURL overrides the site's default host.
	BaseURL string
	// Hosts overrides secondary hosts (parser, player, api) by role.
	Hosts map[string]string
	// UserAgent is sent on every request; defaults to config.DefaultUserAgent.
	UserAgent string
}

// BaseSource provides request plumbing and default "unsupported" behavior
// for the capability-gated operations.
type BaseSource struct {
	id        string
	name      string
	baseURL   string
	hosts     map[string]string
	ua        string
	client    *httpclient.Client
	solver    challenge.Solver
	challenge *challenge.Spec
	log       *logging.Logger
}

// NewBaseSource creates a base for source id, using defaultBase unless
// opts overrides it.
func NewBaseSource(id, name, defaultBase string, opts Options) *BaseSource {
	base := defaultBase
	if opts.BaseURL != "" {
		base = opts.BaseURL
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}
	return &BaseSource{
		id:      id,
		name:    name,
		baseURL: strings.TrimRight(base, "/"),
		hosts:   opts.Hosts,
		ua:      ua,
		client:  opts.Client,
		solver:  opts.Solver,
		log:     log.WithSource(id),
	}
}

// ID returns the source identifier.
func (b *BaseSource) ID() string { return b.id }

// Name returns the display name.
func (b *BaseSource) Name() string { return b.name }

// BaseURL returns the site root without a trailing slash.
func (b *BaseSource) BaseURL() string { return b.baseURL }

// SupportsSearch reports false unless overridden.
func (b *BaseSource) SupportsSearch() bool { return false }

// SupportsCategory reports false unless overridden.
func (b *BaseSource) SupportsCategory() bool { return false }

// SupportsTimeline reports false unless overridden.
func (b *BaseSource) SupportsTimeline() bool { return false }

// Search is unsupported by default.
func (b *BaseSource) Search(context.Context, string, int) (*types.Page[types.ContentItem], error) {
	return nil, sourceerr.Unsupported(b.id, "search")
}

// CategoryGroups is unsupported by default.
func (b *BaseSource) CategoryGroups(context.Context) ([]types.CategoryGroup, error) {
	return nil, sourceerr.Unsupported(b.id, "category groups")
}

// QueryByCategory is unsupported by default.
func (b *BaseSource) QueryByCategory(context.Context, types.CategoryQuery, int) (*types.Page[types.ContentItem], error) {
	return nil, sourceerr.Unsupported(b.id, "category query")
}

// UpdateTimeline is unsupported by default.
func (b *BaseSource) UpdateTimeline(context.Context) (*types.Timeline, error) {
	return nil, sourceerr.Unsupported(b.id, "timeline")
}

// setChallenge declares the site's anti-bot signature.
func (b *BaseSource) setChallenge(spec *challenge.Spec) {
	b.challenge = spec
}

// host returns the override for role, or def.
func (b *BaseSource) host(role, def string) string {
	if h := b.hosts[role]; h != "" {
		return strings.TrimRight(h, "/")
	}
	return def
}

// url joins a site-relative path onto the base URL.
func (b *BaseSource) url(path string) string {
	return b.baseURL + path
}

// abs resolves an on-site href against the base URL.
func (b *BaseSource) abs(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	return urlutil.ResolveURL(href, b.baseURL+"/")
}

func (b *BaseSource) markup(expected string) error {
	return sourceerr.Markup(b.id, expected)
}

func (b *BaseSource) decode(step string, cause error) error {
	return sourceerr.Decode(b.id, step, cause)
}

// reqOption customizes an outgoing request.
type reqOption func(*http.Request)

func withReferer(ref string) reqOption {
	return func(r *http.Request) { r.Header.Set(headers.Referer, ref) }
}

func withOrigin(origin string) reqOption {
	return func(r *http.Request) { r.Header.Set(headers.Origin, origin) }
}

func withHeader(key, value string) reqOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// iframeHeaders mimic a browser navigating an embedded player frame.
func iframeHeaders(referer string) reqOption {
	return func(r *http.Request) {
		r.Header.Set(headers.Referer, referer)
		r.Header.Set("Sec-Fetch-Mode", "navigate")
		r.Header.Set("Sec-Fetch-Dest", "iframe")
		r.Header.Set("Sec-Fetch-Site", "cross-site")
	}
}

func (b *BaseSource) newRequest(ctx context.Context, method, target string, body io.Reader, opts ...reqOption) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, sourceerr.Network(b.id, target, 0, err)
	}
	req.Header.Set(headers.UserAgent, b.ua)
	for _, opt := range opts {
		opt(req)
	}
	return req, nil
}

// do sends req. A response carrying the site's challenge signature is
// handed to the solver, then the request is re-issued exactly once with
// whatever cookies it stored. A failed solve is not an error of its own:
// the challenged retry surfaces as a network error.
func (b *BaseSource) do(req *http.Request) (*http.Response, error) {
	target := req.URL.String()
	log := b.log.WithURL(target)
	log.Debug("fetching", "method", req.Method)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, sourceerr.Network(b.id, target, 0, err)
	}

	if b.challenge.Matches(resp) && b.solver != nil {
		resp.Body.Close()
		log.Info("challenge detected", "status", resp.StatusCode)

		solved := b.solver.Solve(req.Context(), req, b.challenge)
		retry := req.Clone(req.Context())
		if req.GetBody != nil {
			if retry.Body, err = req.GetBody(); err != nil {
				return nil, sourceerr.Network(b.id, target, 0, err)
			}
		}
		if !solved {
			log.Warn("challenge not solved")
		}
		if resp, err = b.client.Do(retry); err != nil {
			return nil, sourceerr.Network(b.id, target, 0, err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, sourceerr.Network(b.id, target, resp.StatusCode, nil)
	}
	return resp, nil
}

// fetch performs a request and returns the decoded body. Empty bodies are
// network errors.
func (b *BaseSource) fetch(ctx context.Context, method, target string, body io.Reader, opts ...reqOption) (string, error) {
	req, err := b.newRequest(ctx, method, target, body, opts...)
	if err != nil {
		return "", err
	}
	resp, err := b.do(req)
	if err != nil {
		return "", err
	}
	text, err := httpclient.ReadBody(resp)
	if err != nil {
		return "", sourceerr.Network(b.id, target, resp.StatusCode, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", sourceerr.Network(b.id, target, resp.StatusCode, errEmptyBody)
	}
	return text, nil
}

// getHTML fetches target as text.
func (b *BaseSource) getHTML(ctx context.Context, target string, opts ...reqOption) (string, error) {
	return b.fetch(ctx, http.MethodGet, target, nil, opts...)
}

// getDocument fetches and parses target.
func (b *BaseSource) getDocument(ctx context.Context, target string, opts ...reqOption) (*goquery.Document, error) {
	text, err := b.getHTML(ctx, target, opts...)
	if err != nil {
		return nil, err
	}
	return b.parseDocument(text)
}

func (b *BaseSource) parseDocument(text string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil, b.decode("parse html", err)
	}
	return doc, nil
}

// postForm submits form to target and returns the decoded body.
func (b *BaseSource) postForm(ctx context.Context, target string, form url.Values, opts ...reqOption) (string, error) {
	opts = append([]reqOption{withHeader(headers.ContentType, "application/x-www-form-urlencoded")}, opts...)
	return b.fetch(ctx, http.MethodPost, target, strings.NewReader(form.Encode()), opts...)
}

// getJSON fetches target and validates it as JSON.
func (b *BaseSource) getJSON(ctx context.Context, target string, opts ...reqOption) (gjson.Result, error) {
	text, err := b.getHTML(ctx, target, opts...)
	if err != nil {
		return gjson.Result{}, err
	}
	return b.parseJSON(text)
}

func (b *BaseSource) parseJSON(text string) (gjson.Result, error) {
	if !gjson.Valid(text) {
		return gjson.Result{}, b.decode("parse json", errInvalidJSON)
	}
	return gjson.Parse(text), nil
}

// fanOut runs fn for 0..n-1 concurrently and returns the results in index
// order. The first error cancels the rest.
func fanOut[T any](ctx context.Context, n int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	out := make([]T, n)
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			v, err := fn(ctx, i)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
