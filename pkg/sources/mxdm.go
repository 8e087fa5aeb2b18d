package sources

import (
	"context"
	"net/url"
	"strconv"

	"media-source-go/pkg/crypto"
	"media-source-go/pkg/interfaces"
	"media-source-go/pkg/lazy"
	"media-source-go/pkg/types"
	"media-source-go/pkg/urlutil"
)

const (
	mxdmAlphabet  = "PXhw7UT1B0a9kQDKZsjIASmOezxYG4CHo5Jyfg2b8FLpEvRr3WtVnlqMidu6cN+/"
	mxdmPrefixLen = 6
)

var mxdmDecoder = mustShuffled(mxdmAlphabet, mxdmPrefixLen)

func mustShuffled(alphabet string, prefixLen int) *crypto.ShuffledBase64 {
	d, err := crypto.NewShuffledBase64(alphabet, prefixLen)
	if err != nil {
		panic(err)
	}
	return d
}

// Mxdm scrapes a module-theme anime site that obfuscates player URLs with a
// shuffled base64 alphabet.
type Mxdm struct {
	*BaseSource
	categories lazy.Value[[]types.CategoryGroup]
}

// NewMxdm creates the mxdm source.
func NewMxdm(opts Options) *Mxdm {
	return &Mxdm{BaseSource: NewBaseSource("mxdm", "MX动漫", "https://www.mxdm.tv", opts)}
}

func (s *Mxdm) SupportsSearch() bool   { return true }
func (s *Mxdm) SupportsCategory() bool { return true }

func (s *Mxdm) HomeListing(ctx context.Context) ([]types.NamedGroup[types.ContentItem], error) {
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

func (s *Mxdm) Detail(ctx context.Context, id string) (*types.ContentDetail, error) {
	doc, err := s.getDocument(ctx, s.url("/dongman/"+id+".html"))
	if err != nil {
		return nil, err
	}
	d, ok := moduleTheme.detail(doc, id, s.abs, urlutil.IDFromHref)
	if !ok {
		return nil, s.markup("detail heading")
	}
	return d, nil
}

func (s *Mxdm) Search(ctx context.Context, keyword string, page int) (*types.Page[types.ContentItem], error) {
	q := url.Values{"wd": {keyword}}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	doc, err := s.getDocument(ctx, s.url("/search/-------------.html?"+q.Encode()))
	if err != nil {
		return nil, err
	}
	return moduleTheme.page(doc, page, s.abs), nil
}

func (s *Mxdm) CategoryGroups(ctx context.Context) ([]types.CategoryGroup, error) {
	return s.categories.Get(ctx, func(ctx context.Context) ([]types.CategoryGroup, error) {
		doc, err := s.getDocument(ctx, s.url("/show/riman-----------.html"))
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

func (s *Mxdm) QueryByCategory(ctx context.Context, q types.CategoryQuery, page int) (*types.Page[types.ContentItem], error) {
	doc, err := s.getDocument(ctx, s.url("/show/"+slotPath(q, 12, 8, page)+".html"))
	if err != nil {
		return nil, err
	}
	return moduleTheme.page(doc, page, s.abs), nil
}

// ResolveVideoURL decodes the player blob url directly; the encrypt mode
// field is not used by this site.
func (s *Mxdm) ResolveVideoURL(ctx context.Context, contentID, episodeID string) (*types.VideoURLResult, error) {
	page, err := s.getHTML(ctx, s.url("/dongmanplay/"+episodeID+".html"), withReferer(s.url("/dongman/"+contentID+".html")))
	if err != nil {
		return nil, err
	}
	cfg, err := s.parsePlayerConfig(page, playerMarker)
	if err != nil {
		return nil, err
	}
	u, err := mxdmDecoder.Decode(cfg.URL)
	if err != nil {
		return nil, s.decode("shuffled base64", err)
	}
	return &types.VideoURLResult{URL: u, Headers: map[string]string{"Referer": s.baseURL + "/"}}, nil
}

var _ interfaces.Source = (*Mxdm)(nil)
