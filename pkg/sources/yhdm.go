package sources

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"media-source-go/pkg/interfaces"
	"media-source-go/pkg/types"
	"media-source-go/pkg/urlutil"
)

// Yhdm scrapes a stui-theme anime site whose player hands the decoded
// blob URL to a JSON parser API.
type Yhdm struct {
	*BaseSource
	api string
	now func() time.Time
}

// NewYhdm creates the yhdm source.
func NewYhdm(opts Options) *Yhdm {
	s := &Yhdm{
		BaseSource: NewBaseSource("yhdm", "樱花动漫", "https://www.yhdmz2.com", opts),
		now:        time.Now,
	}
	s.api = s.host("api", "https://api.yhdmjx.com")
	return s
}

func (s *Yhdm) SupportsSearch() bool   { return true }
func (s *Yhdm) SupportsTimeline() bool { return true }

func (s *Yhdm) HomeListing(ctx context.Context) ([]types.NamedGroup[types.ContentItem], error) {
	doc, err := s.getDocument(ctx, s.url("/"))
	if err != nil {
		return nil, err
	}
	groups := stuiTheme.sections(doc, s.abs)
	if len(groups) == 0 {
		return nil, s.markup("home sections")
	}
	return groups, nil
}

func (s *Yhdm) Detail(ctx context.Context, id string) (*types.ContentDetail, error) {
	doc, err := s.getDocument(ctx, s.url("/showp/"+id+".html"))
	if err != nil {
		return nil, err
	}
	d, ok := stuiTheme.detail(doc, id, s.abs, urlutil.IDFromHref)
	if !ok {
		return nil, s.markup("detail title")
	}
	return d, nil
}

func (s *Yhdm) Search(ctx context.Context, keyword string, page int) (*types.Page[types.ContentItem], error) {
	q := url.Values{"wd": {keyword}}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	doc, err := s.getDocument(ctx, s.url("/s_all?"+q.Encode()))
	if err != nil {
		return nil, err
	}
	return stuiTheme.page(doc, page, s.abs), nil
}

// UpdateTimeline reads the weekly schedule. The site does not mark the
// current day, so it is taken from the local date with Monday as day 0.
func (s *Yhdm) UpdateTimeline(ctx context.Context) (*types.Timeline, error) {
	doc, err := s.getDocument(ctx, s.url("/"))
	if err != nil {
		return nil, err
	}
	days, _ := weekDays(doc, ".tag span", ".tlist ul", "li")
	if len(days) == 0 {
		return nil, s.markup("weekly schedule .tlist")
	}
	current := (int(s.now().Weekday()) + 6) % 7
	return &types.Timeline{Days: days, Current: min(current, len(days)-1)}, nil
}

func (s *Yhdm) ResolveVideoURL(ctx context.Context, contentID, episodeID string) (*types.VideoURLResult, error) {
	playURL := s.url("/playp/" + episodeID + ".html")
	page, err := s.getHTML(ctx, playURL, withReferer(s.url("/showp/"+contentID+".html")))
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

	apiURL := s.api + "/?" + url.Values{"url": {vid}}.Encode()
	s.log.Debug("requesting parser api", "url", apiURL)
	res, err := s.getJSON(ctx, apiURL, withReferer(playURL))
	if err != nil {
		return nil, err
	}
	u := res.Get("url").String()
	if u == "" {
		return nil, s.markup("parser api url")
	}
	return &types.VideoURLResult{
		URL:     urlutil.ResolveURL(u, apiURL),
		Headers: map[string]string{"Referer": s.baseURL + "/"},
	}, nil
}

var _ interfaces.Source = (*Yhdm)(nil)
