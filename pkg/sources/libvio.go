package sources

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"media-source-go/pkg/interfaces"
	"media-source-go/pkg/lazy"
	"media-source-go/pkg/textscan"
	"media-source-go/pkg/types"
	"media-source-go/pkg/urlutil"
)

// Libvio scrapes a module-theme film site that rotates domains. The live
// mirror is read from a publish page on first use unless a base URL is
// configured.
type Libvio struct {
	*BaseSource
	publish    string
	pinned     bool
	mirror     lazy.Value[string]
	categories lazy.Value[[]types.CategoryGroup]
}

// NewLibvio creates the libvio source.
func NewLibvio(opts Options) *Libvio {
	s := &Libvio{
		BaseSource: NewBaseSource("libvio", "LIBVIO", "https://www.libvio.site", opts),
		pinned:     opts.BaseURL != "",
	}
	s.publish = s.host("publish", "https://www.libvio.app")
	return s
}

func (s *Libvio) SupportsSearch() bool   { return true }
func (s *Libvio) SupportsCategory() bool { return true }

// site returns the mirror base URL without a trailing slash.
func (s *Libvio) site(ctx context.Context) (string, error) {
	if s.pinned {
		return s.baseURL, nil
	}
	return s.mirror.Get(ctx, func(ctx context.Context) (string, error) {
		doc, err := s.getDocument(ctx, s.publish)
		if err != nil {
			return "", err
		}
		href, ok := doc.Find(".content a").First().Attr("href")
		href = strings.TrimRight(strings.TrimSpace(href), "/")
		if !ok || urlutil.Origin(href) == "" {
			return "", s.markup("mirror link in publish page .content")
		}
		s.log.Info("mirror discovered", "url", href)
		return href, nil
	})
}

// onMirror joins path onto the mirror and returns a resolver for its hrefs.
func (s *Libvio) onMirror(ctx context.Context, path string) (string, func(string) string, error) {
	base, err := s.site(ctx)
	if err != nil {
		return "", nil, err
	}
	abs := func(href string) string {
		if strings.TrimSpace(href) == "" {
			return ""
		}
		return urlutil.ResolveURL(strings.TrimSpace(href), base+"/")
	}
	return base + path, abs, nil
}

func (s *Libvio) HomeListing(ctx context.Context) ([]types.NamedGroup[types.ContentItem], error) {
	target, abs, err := s.onMirror(ctx, "/")
	if err != nil {
		return nil, err
	}
	doc, err := s.getDocument(ctx, target)
	if err != nil {
		return nil, err
	}
	groups := moduleTheme.sections(doc, abs)
	if len(groups) == 0 {
		return nil, s.markup("home .module sections")
	}
	return groups, nil
}

func (s *Libvio) Detail(ctx context.Context, id string) (*types.ContentDetail, error) {
	target, abs, err := s.onMirror(ctx, "/detail/"+id+".html")
	if err != nil {
		return nil, err
	}
	doc, err := s.getDocument(ctx, target)
	if err != nil {
		return nil, err
	}
	d, ok := moduleTheme.detail(doc, id, abs, urlutil.IDFromHref)
	if !ok {
		return nil, s.markup("detail heading")
	}
	return d, nil
}

func (s *Libvio) Search(ctx context.Context, keyword string, page int) (*types.Page[types.ContentItem], error) {
	q := url.Values{"wd": {keyword}}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	target, abs, err := s.onMirror(ctx, "/search/-------------.html?"+q.Encode())
	if err != nil {
		return nil, err
	}
	doc, err := s.getDocument(ctx, target)
	if err != nil {
		return nil, err
	}
	return moduleTheme.page(doc, page, abs), nil
}

func (s *Libvio) CategoryGroups(ctx context.Context) ([]types.CategoryGroup, error) {
	return s.categories.Get(ctx, func(ctx context.Context) ([]types.CategoryGroup, error) {
		target, _, err := s.onMirror(ctx, "/show/1-----------.html")
		if err != nil {
			return nil, err
		}
		doc, err := s.getDocument(ctx, target)
		if err != nil {
			return nil, err
		}
		groups := slotFilters(doc, moduleTheme)
		if len(groups) == 0 {
			return nil, s.markup("filter rows .module-class-item")
		}
		return groups, nil
	})
}

func (s *Libvio) QueryByCategory(ctx context.Context, q types.CategoryQuery, page int) (*types.Page[types.ContentItem], error) {
	target, abs, err := s.onMirror(ctx, "/show/"+slotPath(q, 12, 8, page)+".html")
	if err != nil {
		return nil, err
	}
	doc, err := s.getDocument(ctx, target)
	if err != nil {
		return nil, err
	}
	return moduleTheme.page(doc, page, abs), nil
}

func (s *Libvio) ResolveVideoURL(ctx context.Context, contentID, episodeID string) (*types.VideoURLResult, error) {
	base, err := s.site(ctx)
	if err != nil {
		return nil, err
	}
	playURL := base + "/play/" + episodeID + ".html"
	page, err := s.getHTML(ctx, playURL, withReferer(base+"/detail/"+contentID+".html"))
	if err != nil {
		return nil, err
	}
	cfg, err := s.parsePlayerConfig(page, playerMarker)
	if err != nil {
		return nil, err
	}
	vid, err := s.decodedURL(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.From == "" {
		return nil, s.markup(playerMarker + ".from")
	}

	frame := base + "/vid/" + url.PathEscape(cfg.From) + ".php?" + url.Values{
		"url":  {vid},
		"next": {cfg.Next},
	}.Encode()
	s.log.Debug("following player frame", "url", frame)
	player, err := s.getHTML(ctx, frame, iframeHeaders(playURL))
	if err != nil {
		return nil, err
	}
	u, ok := textscan.QuotedAfter(player, "urls")
	if !ok || u == "" {
		return nil, s.markup("urls in player frame")
	}
	return &types.VideoURLResult{URL: u, Headers: map[string]string{"Referer": base + "/"}}, nil
}

var _ interfaces.Source = (*Libvio)(nil)
