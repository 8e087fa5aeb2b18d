package sources

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"media-source-go/pkg/interfaces"
	"media-source-go/pkg/sourceerr"
	"media-source-go/pkg/types"
	"media-source-go/pkg/urlutil"
)

const dm84MaxRedirects = 5

// Dm84 scrapes a stui-theme anime site whose player URLs are redirectors.
type Dm84 struct {
	*BaseSource
}

// NewDm84 creates the dm84 source.
func NewDm84(opts Options) *Dm84 {
	return &Dm84{BaseSource: NewBaseSource("dm84", "动漫巴士", "https://dm84.net", opts)}
}

func (s *Dm84) SupportsSearch() bool { return true }

func (s *Dm84) HomeListing(ctx context.Context) ([]types.NamedGroup[types.ContentItem], error) {
	doc, err := s.getDocument(ctx, s.url("/"))
	if err != nil {
		return nil, err
	}
	groups := stuiTheme.sections(doc, s.abs)
	if len(groups) == 0 {
		return nil, s.markup("home .stui-pannel sections")
	}
	return groups, nil
}

func (s *Dm84) Detail(ctx context.Context, id string) (*types.ContentDetail, error) {
	doc, err := s.getDocument(ctx, s.url("/v/"+id+".html"))
	if err != nil {
		return nil, err
	}
	d, ok := stuiTheme.detail(doc, id, s.abs, urlutil.IDFromHref)
	if !ok {
		return nil, s.markup("detail title")
	}
	return d, nil
}

func (s *Dm84) Search(ctx context.Context, keyword string, page int) (*types.Page[types.ContentItem], error) {
	q := url.Values{"wd": {keyword}}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	doc, err := s.getDocument(ctx, s.url("/s----------.html?"+q.Encode()))
	if err != nil {
		return nil, err
	}
	return stuiTheme.page(doc, page, s.abs), nil
}

func (s *Dm84) ResolveVideoURL(ctx context.Context, contentID, episodeID string) (*types.VideoURLResult, error) {
	page, err := s.getHTML(ctx, s.url("/p/"+episodeID+".html"), withReferer(s.url("/v/"+contentID+".html")))
	if err != nil {
		return nil, err
	}
	cfg, err := s.parsePlayerConfig(page, playerMarker)
	if err != nil {
		return nil, err
	}
	u, err := s.decodedURL(cfg)
	if err != nil {
		return nil, err
	}
	final, err := s.followRedirects(ctx, s.abs(u))
	if err != nil {
		return nil, err
	}
	return &types.VideoURLResult{URL: final, Headers: map[string]string{"Referer": s.baseURL + "/"}}, nil
}

// followRedirects walks Location headers by hand, at most dm84MaxRedirects
// hops, and returns the last URL reached.
func (s *Dm84) followRedirects(ctx context.Context, target string) (string, error) {
	for hop := 0; hop < dm84MaxRedirects; hop++ {
		req, err := s.newRequest(ctx, http.MethodGet, target, nil, withReferer(s.baseURL+"/"))
		if err != nil {
			return "", err
		}
		resp, err := s.client.DoNoRedirect(req)
		if err != nil {
			return "", sourceerr.Network(s.id, target, 0, err)
		}
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()

		loc := resp.Header.Get("Location")
		if resp.StatusCode < 300 || resp.StatusCode > 399 || loc == "" {
			if resp.StatusCode >= 400 {
				return "", sourceerr.Network(s.id, target, resp.StatusCode, nil)
			}
			return target, nil
		}
		next := urlutil.ResolveURL(loc, target)
		s.log.Debug("redirect", "hop", hop+1, "from", target, "to", next)
		target = next
	}
	return target, nil
}

var _ interfaces.Source = (*Dm84)(nil)
