package sources

import (
	"context"
	"net/url"
	"strconv"

	"media-source-go/pkg/crypto"
	"media-source-go/pkg/interfaces"
	"media-source-go/pkg/lazy"
	"media-source-go/pkg/textscan"
	"media-source-go/pkg/types"
	"media-source-go/pkg/urlutil"
)

const (
	ntdmSlots    = 12
	ntdmPageSlot = 8
)

var ntdmCipher = crypto.CipherSpec{Key: "57A891D97E332A9D", IVMarker: "bt_token"}

// Ntdm scrapes an anime site whose player pages hand off to an encrypted
// m3u8 parser.
type Ntdm struct {
	*BaseSource
	parser     string
	categories lazy.Value[[]types.CategoryGroup]
}

// NewNtdm creates the ntdm source.
func NewNtdm(opts Options) *Ntdm {
	s := &Ntdm{BaseSource: NewBaseSource("ntdm", "NT动漫", "https://www.ntdm9.com", opts)}
	s.parser = s.host("parser", "https://danmu.yhdmjx.com")
	return s
}

func (s *Ntdm) SupportsSearch() bool   { return true }
func (s *Ntdm) SupportsCategory() bool { return true }
func (s *Ntdm) SupportsTimeline() bool { return true }

func (s *Ntdm) HomeListing(ctx context.Context) ([]types.NamedGroup[types.ContentItem], error) {
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

func (s *Ntdm) Detail(ctx context.Context, id string) (*types.ContentDetail, error) {
	doc, err := s.getDocument(ctx, s.url("/video/"+id+".html"))
	if err != nil {
		return nil, err
	}
	d, ok := stuiTheme.detail(doc, id, s.abs, urlutil.IDFromHref)
	if !ok {
		return nil, s.markup("detail title")
	}
	return d, nil
}

func (s *Ntdm) Search(ctx context.Context, keyword string, page int) (*types.Page[types.ContentItem], error) {
	q := url.Values{"wd": {keyword}}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	doc, err := s.getDocument(ctx, s.url("/search/-------------.html?"+q.Encode()))
	if err != nil {
		return nil, err
	}
	return stuiTheme.page(doc, page, s.abs), nil
}

// CategoryGroups scrapes the filter rows once per process.
func (s *Ntdm) CategoryGroups(ctx context.Context) ([]types.CategoryGroup, error) {
	return s.categories.Get(ctx, func(ctx context.Context) ([]types.CategoryGroup, error) {
		doc, err := s.getDocument(ctx, s.url("/show/1-----------.html"))
		if err != nil {
			return nil, err
		}
		groups := slotFilters(doc, stuiTheme)
		if len(groups) == 0 {
			return nil, s.markup("filter rows")
		}
		s.log.Debug("category groups discovered", "count", len(groups))
		return groups, nil
	})
}

func (s *Ntdm) QueryByCategory(ctx context.Context, q types.CategoryQuery, page int) (*types.Page[types.ContentItem], error) {
	doc, err := s.getDocument(ctx, s.url("/show/"+slotPath(q, ntdmSlots, ntdmPageSlot, page)+".html"))
	if err != nil {
		return nil, err
	}
	return stuiTheme.page(doc, page, s.abs), nil
}

// UpdateTimeline reads the weekly schedule; the site marks today's tab.
func (s *Ntdm) UpdateTimeline(ctx context.Context) (*types.Timeline, error) {
	doc, err := s.getDocument(ctx, s.url("/"))
	if err != nil {
		return nil, err
	}
	days, current := weekDays(doc, ".week-tab li", ".week-list", "li")
	if len(days) == 0 {
		return nil, s.markup("weekly schedule")
	}
	if current < 0 {
		current = 0
	}
	return &types.Timeline{Days: days, Current: current}, nil
}

func (s *Ntdm) ResolveVideoURL(ctx context.Context, contentID, episodeID string) (*types.VideoURLResult, error) {
	playURL := s.url("/play/" + episodeID + ".html")
	page, err := s.getHTML(ctx, playURL, withReferer(s.url("/video/"+contentID+".html")))
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

	parserURL := s.parser + "/m3u8.php?url=" + url.QueryEscape(vid)
	s.log.Debug("requesting parser", "url", parserURL)
	parsed, err := s.getHTML(ctx, parserURL, withReferer(playURL))
	if err != nil {
		return nil, err
	}

	iv, err := ntdmCipher.IVFrom(parsed)
	if err != nil {
		return nil, s.decode("bt_token", err)
	}
	args, ok := textscan.CallArgs(parsed, "getVideoInfo")
	if !ok {
		return nil, s.markup("getVideoInfo call")
	}
	ct, _, ok := textscan.QuotedAt(args, 0)
	if !ok {
		return nil, s.markup("getVideoInfo ciphertext")
	}
	u, err := ntdmCipher.Decrypt(ct, iv)
	if err != nil {
		return nil, s.decode("getVideoInfo", err)
	}
	return &types.VideoURLResult{URL: u}, nil
}

var _ interfaces.Source = (*Ntdm)(nil)
