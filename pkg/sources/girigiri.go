package sources

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"media-source-go/pkg/category"
	"media-source-go/pkg/challenge"
	"media-source-go/pkg/crypto"
	"media-source-go/pkg/interfaces"
	"media-source-go/pkg/lazy"
	"media-source-go/pkg/textscan"
	"media-source-go/pkg/types"
	"media-source-go/pkg/urlutil"
)

var girigiriCipher = crypto.CipherSpec{Key: "A42EAC0C2B408472", IVMarker: "le_token"}

// Girigiri scrapes a module-theme anime site behind Cloudflare.
type Girigiri struct {
	*BaseSource
	player     string
	categories lazy.Value[[]types.CategoryGroup]
}

// NewGirigiri creates the girigiri source.
func NewGirigiri(opts Options) *Girigiri {
	s := &Girigiri{BaseSource: NewBaseSource("girigiri", "girigiri爱动漫", "https://anime.girigirilove.com", opts)}
	s.setChallenge(challenge.Cloudflare(503, 30*time.Second))
	s.player = s.host("player", "https://m3u8.girigirilove.com")
	return s
}

func (s *Girigiri) SupportsSearch() bool   { return true }
func (s *Girigiri) SupportsCategory() bool { return true }

func (s *Girigiri) HomeListing(ctx context.Context) ([]types.NamedGroup[types.ContentItem], error) {
	doc, err := s.getDocument(ctx, s.url("/"))
	if err != nil {
		return nil, err
	}
	groups := moduleTheme.sections(doc, s.abs)
	if len(groups) == 0 {
		return nil, s.markup("home .module sections")
	}
	return groups, nil
}

func (s *Girigiri) Detail(ctx context.Context, id string) (*types.ContentDetail, error) {
	doc, err := s.getDocument(ctx, s.url("/"+id+"/"))
	if err != nil {
		return nil, err
	}
	d, ok := moduleTheme.detail(doc, id, s.abs, urlutil.IDFromHref)
	if !ok {
		return nil, s.markup("detail heading")
	}
	return d, nil
}

func (s *Girigiri) Search(ctx context.Context, keyword string, page int) (*types.Page[types.ContentItem], error) {
	q := url.Values{"wd": {keyword}}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	doc, err := s.getDocument(ctx, s.url("/search/-------------/?"+q.Encode()))
	if err != nil {
		return nil, err
	}
	return moduleTheme.page(doc, page, s.abs), nil
}

func (s *Girigiri) CategoryGroups(ctx context.Context) ([]types.CategoryGroup, error) {
	return s.categories.Get(ctx, func(ctx context.Context) ([]types.CategoryGroup, error) {
		doc, err := s.getDocument(ctx, s.url("/show/"))
		if err != nil {
			return nil, err
		}
		groups := paramFilters(doc, moduleTheme)
		if len(groups) == 0 {
			return nil, s.markup("filter rows .module-class-item")
		}
		return groups, nil
	})
}

func (s *Girigiri) QueryByCategory(ctx context.Context, q types.CategoryQuery, page int) (*types.Page[types.ContentItem], error) {
	doc, err := s.getDocument(ctx, s.url("/show/?"+category.Params(q, "page", page).Encode()))
	if err != nil {
		return nil, err
	}
	return moduleTheme.page(doc, page, s.abs), nil
}

func (s *Girigiri) ResolveVideoURL(ctx context.Context, contentID, episodeID string) (*types.VideoURLResult, error) {
	playURL := s.url("/" + episodeID + "/")
	page, err := s.getHTML(ctx, playURL, withReferer(s.url("/"+contentID+"/")))
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

	playerURL := s.player + "/addons/aplyer/atom.php?key=0&url=" + url.QueryEscape(vid)
	s.log.Debug("requesting player", "url", playerURL, "from", cfg.From)
	player, err := s.getHTML(ctx, playerURL, iframeHeaders(playURL))
	if err != nil {
		return nil, err
	}

	iv, err := girigiriCipher.IVFrom(player)
	if err != nil {
		return nil, s.decode("le_token", err)
	}
	ct, ok := textscan.QuotedAfter(player, `"url":`)
	if !ok {
		return nil, s.markup(`player "url" ciphertext`)
	}
	u, err := girigiriCipher.Decrypt(ct, iv)
	if err != nil {
		return nil, s.decode("player url", err)
	}
	return &types.VideoURLResult{
		URL:     u,
		Headers: map[string]string{"Referer": urlutil.Origin(playerURL)},
	}, nil
}

var _ interfaces.Source = (*Girigiri)(nil)
