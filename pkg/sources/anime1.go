package sources

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"media-source-go/pkg/interfaces"
	"media-source-go/pkg/types"
	"media-source-go/pkg/urlutil"
)

// anime1MaxPages bounds how many older-post pages a category detail follows.
const anime1MaxPages = 10

// anime1Cookies are the signed cookies the video CDN checks.
var anime1Cookies = []string{"e", "p", "h"}

// Anime1 scrapes a WordPress anime blog. Titles are categories and
// episodes are posts.
type Anime1 struct {
	*BaseSource
	index string
	api   string
}

// NewAnime1 creates the anime1 source.
func NewAnime1(opts Options) *Anime1 {
	s := &Anime1{BaseSource: NewBaseSource("anime1", "Anime1", "https://anime1.me", opts)}
	s.index = s.host("index", "https://d1zquzjgwo9yb.cloudfront.net")
	s.api = s.host("api", "https://v.anime1.me")
	return s
}

func (s *Anime1) SupportsSearch() bool { return true }

// HomeListing groups the JSON title index by season, keeping the index order.
// Index rows are [cat id, name, episodes, year, season, subtitle group].
func (s *Anime1) HomeListing(ctx context.Context) ([]types.NamedGroup[types.ContentItem], error) {
	res, err := s.getJSON(ctx, s.index+"/")
	if err != nil {
		return nil, err
	}
	if !res.IsArray() {
		return nil, s.markup("title index array")
	}

	var groups []types.NamedGroup[types.ContentItem]
	pos := make(map[string]int)
	for _, row := range res.Array() {
		cols := row.Array()
		if len(cols) < 5 || cols[0].Int() == 0 {
			continue
		}
		season := strings.TrimSpace(cols[3].String() + " " + cols[4].String())
		i, ok := pos[season]
		if !ok {
			i = len(groups)
			pos[season] = i
			groups = append(groups, types.NamedGroup[types.ContentItem]{Name: season})
		}
		item := types.ContentItem{
			ID:     cols[0].String(),
			Title:  stripTags(cols[1].String()),
			Status: cols[2].String(),
		}
		if len(cols) > 5 {
			item.Tag = cols[5].String()
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	if len(groups) == 0 {
		return nil, s.markup("title index rows")
	}
	return groups, nil
}

// Detail collects the category's episode posts across its older-post pages
// and returns them oldest first.
func (s *Anime1) Detail(ctx context.Context, id string) (*types.ContentDetail, error) {
	target := s.url("/?" + url.Values{"cat": {id}}.Encode())
	var d *types.ContentDetail
	var eps []types.Episode

	for page := 0; page < anime1MaxPages && target != ""; page++ {
		doc, err := s.getDocument(ctx, target)
		if err != nil {
			return nil, err
		}
		if d == nil {
			name := cleanText(doc.Find(".page-title").First().Text())
			if name == "" {
				return nil, s.markup("category .page-title")
			}
			d = &types.ContentDetail{ID: id, Name: name}
		}
		doc.Find("article").Each(func(_ int, a *goquery.Selection) {
			link := a.Find(".entry-title a").First()
			ep := anime1PostID(link.AttrOr("href", ""))
			if ep == "" {
				ep = strings.TrimPrefix(a.AttrOr("id", ""), "post-")
			}
			if ep == "" {
				return
			}
			eps = append(eps, types.Episode{ID: ep, Label: cleanText(link.Text())})
		})
		target = ""
		if older, ok := doc.Find(".nav-previous a").First().Attr("href"); ok {
			target = s.abs(older)
		}
	}

	if len(eps) == 0 {
		return d, nil
	}
	// Pages list the newest post first.
	for i := range eps {
		eps[i].Index = i
	}
	d.LatestEpisode = eps[0].Label
	d.PlayLists = []types.PlayList{{Name: "anime1", Episodes: eps, Default: true}}
	return d, nil
}

// anime1PostID extracts the post id from "/?p=123" or "/123" style links.
func anime1PostID(href string) string {
	if href == "" {
		return ""
	}
	if u, err := url.Parse(href); err == nil {
		if p := u.Query().Get("p"); p != "" {
			return p
		}
	}
	id := urlutil.IDFromHref(href)
	if _, err := strconv.Atoi(id); err != nil {
		return ""
	}
	return id
}

func (s *Anime1) Search(ctx context.Context, keyword string, page int) (*types.Page[types.ContentItem], error) {
	path := "/"
	if page > 1 {
		path = "/page/" + strconv.Itoa(page) + "/"
	}
	doc, err := s.getDocument(ctx, s.url(path+"?"+url.Values{"s": {keyword}}.Encode()))
	if err != nil {
		return nil, err
	}

	p := &types.Page[types.ContentItem]{Page: page, Items: []types.ContentItem{}}
	seen := make(map[string]bool)
	doc.Find("article .cat-links a").Each(func(_ int, a *goquery.Selection) {
		u, err := url.Parse(a.AttrOr("href", ""))
		if err != nil {
			return
		}
		cat := u.Query().Get("cat")
		if cat == "" || seen[cat] {
			return
		}
		seen[cat] = true
		p.Items = append(p.Items, types.ContentItem{ID: cat, Title: cleanText(a.Text())})
	})
	p.HasNext = doc.Find(".nav-previous a").Length() > 0
	return p, nil
}

// ResolveVideoURL posts the episode's apireq token to the video API. The
// stream only plays with the e, p and h cookies the API sets.
func (s *Anime1) ResolveVideoURL(ctx context.Context, contentID, episodeID string) (*types.VideoURLResult, error) {
	postURL := s.url("/?" + url.Values{"p": {episodeID}}.Encode())
	doc, err := s.getDocument(ctx, postURL)
	if err != nil {
		return nil, err
	}
	apireq, ok := doc.Find("video[data-apireq]").First().Attr("data-apireq")
	if !ok || apireq == "" {
		return nil, s.markup("video[data-apireq]")
	}
	if un, err := url.QueryUnescape(apireq); err == nil {
		apireq = un
	}

	apiURL := s.api + "/api"
	body, err := s.postForm(ctx, apiURL, url.Values{"d": {apireq}}, withReferer(s.baseURL+"/"), withOrigin(s.baseURL))
	if err != nil {
		return nil, err
	}
	res, err := s.parseJSON(body)
	if err != nil {
		return nil, err
	}
	src := res.Get("s.0.src").String()
	if src == "" {
		return nil, s.markup("s[0].src")
	}
	stream := urlutil.ResolveURL(src, apiURL)

	headers := map[string]string{"Referer": s.baseURL + "/"}
	if cookie := s.apiCookies(apiURL); cookie != "" {
		headers["Cookie"] = cookie
	}
	return &types.VideoURLResult{URL: stream, Headers: headers}, nil
}

func (s *Anime1) apiCookies(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil || s.client == nil {
		return ""
	}
	var parts []string
	cookies := s.client.Jar().Cookies(u)
	for _, name := range anime1Cookies {
		for _, c := range cookies {
			if c.Name == name {
				parts = append(parts, c.Name+"="+c.Value)
				break
			}
		}
	}
	return strings.Join(parts, "; ")
}

var _ interfaces.Source = (*Anime1)(nil)
