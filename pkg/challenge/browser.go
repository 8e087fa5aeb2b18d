package challenge

import (
	"context"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"media-source-go/pkg/logging"
)

// BrowserOptions configures the headless browser used by BrowserSolver.
type BrowserOptions struct {
	ExecPath     string
	Headless     bool
	PollInterval time.Duration
}

// BrowserSolver loads the challenged page in a real browser and waits until
// the clearance cookie appears, then copies the browser's cookies into jar.
type BrowserSolver struct {
	jar  http.CookieJar
	opts BrowserOptions
	log  *logging.Logger
}

// NewBrowserSolver creates a chromedp-backed solver writing into jar.
func NewBrowserSolver(jar http.CookieJar, opts BrowserOptions, log *logging.Logger) *BrowserSolver {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	return &BrowserSolver{
		jar:  jar,
		opts: opts,
		log:  log.WithComponent("browser-solver"),
	}
}

// Solve implements Solver.
func (b *BrowserSolver) Solve(ctx context.Context, req *http.Request, spec *Spec) bool {
	target := req.URL.String()
	start := time.Now()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.opts.Headless),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if ua := req.Header.Get("User-Agent"); ua != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(ua))
	}
	if b.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(b.opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	browserCtx, timeoutCancel := context.WithTimeout(browserCtx, spec.Deadline())
	defer timeoutCancel()

	var cookies []*network.Cookie
	err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.Navigate(target),
		chromedp.ActionFunc(func(ctx context.Context) error {
			ticker := time.NewTicker(b.opts.PollInterval)
			defer ticker.Stop()
			for {
				got, err := network.GetCookies().Do(ctx)
				if err != nil {
					return err
				}
				for _, c := range got {
					if c.Name == spec.Cookie {
						cookies = got
						return nil
					}
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
				}
			}
		}),
	)
	if err != nil {
		b.log.WithError(err).WithDuration(time.Since(start)).Warn("browser challenge not solved", "url", target, "cookie", spec.Cookie)
		return false
	}

	b.jar.SetCookies(req.URL, toHTTPCookies(cookies))
	b.log.WithDuration(time.Since(start)).Info("browser challenge solved", "url", target, "cookies", len(cookies))
	return true
}

func toHTTPCookies(cookies []*network.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			hc.Expires = time.Unix(int64(c.Expires), 0)
		}
		out = append(out, hc)
	}
	return out
}

var _ Solver = (*BrowserSolver)(nil)
