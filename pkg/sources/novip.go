package sources

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
	"golang.org/x/text/encoding/simplifiedchinese"

	"media-source-go/pkg/category"
	"media-source-go/pkg/crypto"
	"media-source-go/pkg/interfaces"
	"media-source-go/pkg/textscan"
	"media-source-go/pkg/types"
	"media-source-go/pkg/urlutil"
)

var novipSegments = []category.Segment{
	{Key: "type"},
	{Key: "region"},
}

// novipID joins the path elements of a post href, so
// "/tv/hongkong/12345.html" becomes "tv_hongkong_12345".
func novipID(href string) string {
	return strings.Join(urlutil.PathSegments(href), "_")
}

func novipPath(id string) string {
	return "/" + strings.ReplaceAll(id, "_", "/") + ".html"
}

var novipList = theme{
	Section:      ".video-section",
	SectionTitle: ".section-header h2",
	Item:         ".video-item",
	ItemLink:     ".item-thumbnail a",
	ItemTitle:    ".item-head h3 a",
	ItemCover:    ".item-thumbnail img",
	ItemStatus:   ".item-meta",
	ItemID:       novipID,
	PageLinks:    ".wp-pagenavi a",
	PageCurrent:  ".wp-pagenavi .current",
}

// Novip scrapes a WordPress drama site whose stream lists are signed by
// a packed script on its player host.
type Novip struct {
	*BaseSource
	player string
	api    string
}

// NewNovip creates the novip source.
func NewNovip(opts Options) *Novip {
	s := &Novip{BaseSource: NewBaseSource("novip", "NO视频", "https://www.novipnoad.net", opts)}
	s.player = s.host("player", "http://bonjour.sc2yun.com")
	s.api = s.host("api", "http://api.upos.noanob.com")
	return s
}

func (s *Novip) SupportsSearch() bool   { return true }
func (s *Novip) SupportsCategory() bool { return true }

func (s *Novip) HomeListing(ctx context.Context) ([]types.NamedGroup[types.ContentItem], error) {
	doc, err := s.getDocument(ctx, s.url("/"))
	if err != nil {
		return nil, err
	}
	groups := novipList.sections(doc, s.abs)
	if len(groups) == 0 {
		return nil, s.markup("home .video-section")
	}
	return groups, nil
}

func (s *Novip) Detail(ctx context.Context, id string) (*types.ContentDetail, error) {
	doc, err := s.getDocument(ctx, s.url(novipPath(id)))
	if err != nil {
		return nil, err
	}
	name := cleanText(doc.Find(".video-details h1, .item-title h1").First().Text())
	if name == "" {
		return nil, s.markup("post title")
	}
	d := &types.ContentDetail{
		ID:          id,
		Name:        name,
		Description: cleanText(doc.Find(".item-content p").First().Text()),
	}
	if c, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
		d.CoverURL = s.abs(c)
	}
	doc.Find(".item-info .meta").Each(func(_ int, m *goquery.Selection) {
		if line := cleanText(m.Text()); line != "" {
			d.Info = append(d.Info, line)
		}
	})

	var names []string
	doc.Find(`p[id^="linkhead"]`).Each(func(_ int, p *goquery.Selection) {
		names = append(names, cleanText(p.Text()))
	})
	var groups [][]types.Episode
	doc.Find("div.tm-multilink").Each(func(_ int, g *goquery.Selection) {
		var eps []types.Episode
		g.Find("a[onclick]").Each(func(_ int, a *goquery.Selection) {
			v, ok := textscan.QuotedAfter(a.AttrOr("onclick", ""), "(")
			if !ok || v == "" || v == "null" {
				return
			}
			eps = append(eps, types.Episode{ID: v, Label: cleanText(a.Text()), Index: len(eps)})
		})
		groups = append(groups, eps)
	})
	if len(names) == 0 && len(groups) == 1 {
		names = []string{"播放列表"}
	}
	d.PlayLists = zipPlayLists(names, groups)
	d.Related = novipList.items(doc.Find(".related-posts .video-item"), s.abs)
	return d, nil
}

// searchKeyword accepts a keyword in either UTF-8 or GBK bytes.
func searchKeyword(kw string) string {
	if utf8.ValidString(kw) {
		return kw
	}
	if dec, err := simplifiedchinese.GBK.NewDecoder().String(kw); err == nil {
		return dec
	}
	return kw
}

func (s *Novip) Search(ctx context.Context, keyword string, page int) (*types.Page[types.ContentItem], error) {
	path := "/"
	if page > 1 {
		path = "/page/" + strconv.Itoa(page) + "/"
	}
	doc, err := s.getDocument(ctx, s.url(path+"?"+url.Values{"s": {searchKeyword(keyword)}}.Encode()))
	if err != nil {
		return nil, err
	}
	return novipList.page(doc, page, s.abs), nil
}

func (s *Novip) CategoryGroups(context.Context) ([]types.CategoryGroup, error) {
	return []types.CategoryGroup{
		category.Static("type", "分类",
			category.Opt("剧集", "tv"),
			category.Opt("电影", "movie"),
			category.Opt("动画", "anime"),
			category.Opt("综艺", "shows"),
			category.Opt("音乐", "music"),
		),
		category.Static("region", "地区",
			category.Opt("全部", ""),
			category.Opt("港剧", "hongkong"),
			category.Opt("台剧", "taiwan"),
			category.Opt("欧美", "western"),
			category.Opt("日剧", "japan"),
			category.Opt("韩剧", "korea"),
			category.Opt("泰剧", "thailand"),
		),
	}, nil
}

func (s *Novip) QueryByCategory(ctx context.Context, q types.CategoryQuery, page int) (*types.Page[types.ContentItem], error) {
	if q["type"] == "" {
		q = q.Clone()
		q["type"] = "tv"
	}
	doc, err := s.getDocument(ctx, s.url(category.SegmentPath(novipSegments, q, page)+"/"))
	if err != nil {
		return nil, err
	}
	return novipList.page(doc, page, s.abs), nil
}

// novipRC4Key decrypts stream lists served as JSON.decrypt("...").
const novipRC4Key = "5c571074"

// ResolveVideoURL takes two hops. The post page carries $pkey; the player
// page answers with a packed script holding ckey, ref, ip and time, which
// sign the request for the stream list at {api}/{a}/{b}.js.
func (s *Novip) ResolveVideoURL(ctx context.Context, contentID, episodeID string) (*types.VideoURLResult, error) {
	a, b, ok := strings.Cut(episodeID, "-")
	if !ok || a == "" || b == "" {
		return nil, s.markup("episode id a-b, got " + episodeID)
	}
	b, _, _ = strings.Cut(b, "-")

	postURL := s.url(novipPath(contentID))
	page, err := s.getHTML(ctx, postURL)
	if err != nil {
		return nil, err
	}
	idx := strings.LastIndex(page, "$pkey")
	if idx < 0 {
		return nil, s.markup("$pkey on post page")
	}
	pkey, ok := textscan.QuotedAfter(page[idx:], "$pkey")
	if !ok || pkey == "" {
		return nil, s.markup("$pkey value")
	}
	s.log.Debug("player key found", "pkey", pkey)

	playerURL := s.player + "/v1/?" + url.Values{
		"url":  {episodeID},
		"pkey": {pkey},
		"ref":  {novipPath(contentID)},
	}.Encode()
	playerPage, err := s.getHTML(ctx, playerURL, withReferer(postURL))
	if err != nil {
		return nil, err
	}
	script, err := textscan.Unpack(playerPage)
	if err != nil {
		return nil, s.decode("player script", err)
	}
	params, err := s.signParams(script)
	if err != nil {
		return nil, err
	}

	listURL := s.api + "/" + a + "/" + b + ".js?" + params.Encode()
	body, err := s.getHTML(ctx, listURL, withReferer(playerURL))
	if err != nil {
		return nil, err
	}
	info, err := s.videoInfo(body)
	if err != nil {
		return nil, err
	}

	qualities := info.Get("quality").Array()
	if len(qualities) == 0 {
		return nil, s.markup("quality list")
	}
	q := int(info.Get("defaultQuality").Int())
	if q < 0 || q >= len(qualities) {
		q = 0
	}
	u := qualities[q].Get("url").String()
	if u == "" {
		return nil, s.markup("quality url")
	}
	return &types.VideoURLResult{URL: u, Headers: map[string]string{"Referer": urlutil.Origin(playerURL)}}, nil
}

// signParams reads the object literal in the unpacked player script, e.g.
// {ckey:"ab12",ref:"/tv/x.html",ip:"1.2.3.4",time:"1700"}.
func (s *Novip) signParams(script string) (url.Values, error) {
	obj, ok := textscan.Between(script, "{", "}")
	if !ok {
		return nil, s.markup("player params object")
	}
	obj = strings.NewReplacer(`"`, "", "+", "").Replace(obj)
	fields := map[string]string{}
	for _, kv := range strings.Split(obj, ",") {
		if k, v, ok := strings.Cut(kv, ":"); ok {
			fields[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	if fields["ckey"] == "" {
		return nil, s.markup("player params ckey")
	}
	return url.Values{
		"ckey": {strings.ToUpper(fields["ckey"])},
		"ref":  {fields["ref"]},
		"ip":   {fields["ip"]},
		"time": {fields["time"]},
	}, nil
}

// videoInfo accepts either an RC4 JSON.decrypt("...") call or a script
// assigning a plain object.
func (s *Novip) videoInfo(body string) (gjson.Result, error) {
	var doc string
	if strings.Contains(body, "JSON.decrypt") {
		ct, ok := textscan.QuotedAfter(body, "JSON.decrypt")
		if !ok {
			return gjson.Result{}, s.markup("JSON.decrypt argument")
		}
		plain, err := crypto.DecryptRC4(ct, novipRC4Key)
		if err != nil {
			return gjson.Result{}, s.decode("rc4 stream list", err)
		}
		doc = plain
	} else {
		obj, ok := textscan.ObjectAfter(body, "=")
		if !ok {
			return gjson.Result{}, s.markup("video info object")
		}
		doc = obj
	}
	info, err := s.parseJSON(doc)
	if err != nil {
		return gjson.Result{}, err
	}
	if code := info.Get("code"); code.Exists() && code.Int() != 200 {
		return gjson.Result{}, s.markup("video info code 200, got " + code.String())
	}
	return info, nil
}

var _ interfaces.Source = (*Novip)(nil)
