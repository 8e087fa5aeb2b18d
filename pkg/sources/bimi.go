package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"media-source-go/pkg/category"
	"media-source-go/pkg/interfaces"
	"media-source-go/pkg/lazy"
	"media-source-go/pkg/textscan"
	"media-source-go/pkg/types"
	"media-source-go/pkg/urlutil"
)

// bimiFrameHops bounds the player frames fetched while chasing iframes.
const bimiFrameHops = 2

// Bimi scrapes a stui-theme anime site. Related titles come from a JSON
// sidecar and the player is two frames deep.
type Bimi struct {
	*BaseSource
	danmu      string
	categories lazy.Value[[]types.CategoryGroup]
}

// NewBimi creates the bimi source.
func NewBimi(opts Options) *Bimi {
	s := &Bimi{BaseSource: NewBaseSource("bimi", "BIMI动漫", "https://www.bimiacg14.net", opts)}
	s.danmu = s.host("danmu", "https://danmu.bimiacg14.net")
	return s
}

func (s *Bimi) SupportsSearch() bool   { return true }
func (s *Bimi) SupportsCategory() bool { return true }

func (s *Bimi) HomeListing(ctx context.Context) ([]types.NamedGroup[types.ContentItem], error) {
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

// bimiEpisodeID maps "/bangumi/{id}/play/{line}/{ep}/" to "line-ep".
func bimiEpisodeID(href string) string {
	segs := urlutil.PathSegments(href)
	if len(segs) < 5 || segs[2] != "play" {
		return ""
	}
	return segs[3] + "-" + segs[4]
}

func (s *Bimi) playURL(contentID, episodeID string) (string, bool) {
	line, ep, ok := strings.Cut(episodeID, "-")
	if !ok || line == "" || ep == "" {
		return "", false
	}
	return s.url("/bangumi/" + contentID + "/play/" + line + "/" + ep + "/"), true
}

// Detail fetches the detail page and the recommendation sidecar together.
// A failed sidecar only loses the related titles.
func (s *Bimi) Detail(ctx context.Context, id string) (*types.ContentDetail, error) {
	var d *types.ContentDetail
	var related []types.ContentItem

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, err := s.getDocument(gctx, s.url("/bangumi/bi/"+id+"/"))
		if err != nil {
			return err
		}
		var ok bool
		if d, ok = stuiTheme.detail(doc, id, s.abs, bimiEpisodeID); !ok {
			return s.markup("detail title")
		}
		return nil
	})
	g.Go(func() error {
		items, err := s.recommend(gctx, id)
		if err != nil {
			return fmt.Errorf("recommendations: %w", err)
		}
		related = items
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(related) > 0 {
		d.Related = related
	}
	return d, nil
}

func (s *Bimi) recommend(ctx context.Context, id string) ([]types.ContentItem, error) {
	res, err := s.getJSON(ctx, s.url("/api/recommend?"+url.Values{"id": {id}}.Encode()))
	if err != nil {
		return nil, err
	}
	var items []types.ContentItem
	for _, r := range res.Get("data").Array() {
		item := types.ContentItem{
			ID:     r.Get("id").String(),
			Title:  cleanText(r.Get("title").String()),
			Status: cleanText(r.Get("remarks").String()),
		}
		if pic := r.Get("pic").String(); pic != "" {
			item.CoverURL = s.abs(pic)
		}
		if item.ID != "" {
			items = append(items, item)
		}
	}
	return items, nil
}

func (s *Bimi) Search(ctx context.Context, keyword string, page int) (*types.Page[types.ContentItem], error) {
	q := url.Values{"wd": {keyword}}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	doc, err := s.getDocument(ctx, s.url("/vod/search/?"+q.Encode()))
	if err != nil {
		return nil, err
	}
	return stuiTheme.page(doc, page, s.abs), nil
}

func (s *Bimi) CategoryGroups(ctx context.Context) ([]types.CategoryGroup, error) {
	return s.categories.Get(ctx, func(ctx context.Context) ([]types.CategoryGroup, error) {
		doc, err := s.getDocument(ctx, s.url("/vod/show/"))
		if err != nil {
			return nil, err
		}
		groups := paramFilters(doc, stuiTheme)
		if len(groups) == 0 {
			return nil, s.markup("filter rows .stui-screen__list")
		}
		return groups, nil
	})
}

func (s *Bimi) QueryByCategory(ctx context.Context, q types.CategoryQuery, page int) (*types.Page[types.ContentItem], error) {
	doc, err := s.getDocument(ctx, s.url("/vod/show/?"+category.Params(q, "page", page).Encode()))
	if err != nil {
		return nil, err
	}
	return stuiTheme.page(doc, page, s.abs), nil
}

// ResolveVideoURL hands the blob URL to the danmu player, follows the
// player's inner iframe when it has one and scans the last frame for the
// url variable.
func (s *Bimi) ResolveVideoURL(ctx context.Context, contentID, episodeID string) (*types.VideoURLResult, error) {
	playURL, ok := s.playURL(contentID, episodeID)
	if !ok {
		return nil, s.markup("episode id line-episode")
	}
	page, err := s.getHTML(ctx, playURL, withReferer(s.url("/bangumi/bi/"+contentID+"/")))
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

	frameURL := s.danmu + "/static/danmu/play.php?" + url.Values{"url": {vid}, "from": {cfg.From}}.Encode()
	referer := playURL
	frame := ""
	for hop := 1; ; hop++ {
		s.log.Debug("requesting player frame", "hop", hop, "url", frameURL)
		if frame, err = s.getHTML(ctx, frameURL, iframeHeaders(referer)); err != nil {
			return nil, err
		}
		if hop == bimiFrameHops {
			break
		}
		doc, err := s.parseDocument(frame)
		if err != nil {
			return nil, err
		}
		src, ok := doc.Find("iframe[src]").First().Attr("src")
		if !ok || src == "" {
			break
		}
		referer, frameURL = frameURL, urlutil.ResolveURL(src, frameURL)
	}

	u, ok := textscan.QuotedAfter(frame, "var url")
	if !ok || u == "" {
		return nil, s.markup("player var url")
	}
	return &types.VideoURLResult{
		URL:     urlutil.ResolveURL(textscan.UnescapeJS(u), frameURL),
		Headers: map[string]string{"Referer": urlutil.Origin(frameURL)},
	}, nil
}

var _ interfaces.Source = (*Bimi)(nil)
