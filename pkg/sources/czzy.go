package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dengsgo/math-engine/engine"
	"github.com/tidwall/gjson"

	"media-source-go/pkg/category"
	"media-source-go/pkg/challenge"
	"media-source-go/pkg/crypto"
	"media-source-go/pkg/interfaces"
	"media-source-go/pkg/textscan"
	"media-source-go/pkg/types"
	"media-source-go/pkg/urlutil"
)

const (
	czzyPlayerKey = "VFBTzdujpR9FWBhe"
	czzySaltLen   = 7
	czzyCaptcha   = "人机验证"
)

var czzySegments = []category.Segment{
	{Prefix: "movie_bt_series", Key: "series"},
	{Prefix: "movie_bt_tags", Key: "tag"},
	{Prefix: "year", Key: "year"},
}

// Czzy scrapes a Cloudflare-fronted WordPress film site.
type Czzy struct {
	*BaseSource
}

// NewCzzy creates the czzy source.
func NewCzzy(opts Options) *Czzy {
	s := &Czzy{BaseSource: NewBaseSource("czzy", "厂长资源", "https://www.czzy.top", opts)}
	s.setChallenge(challenge.Cloudflare(403, 60*time.Second))
	return s
}

var czzyList = theme{
	Section:      ".mi_btcon",
	SectionTitle: ".bt_tit",
	Item:         ".bt_img ul li",
	ItemLink:     "a",
	ItemTitle:    ".dytit a",
	ItemCover:    "img.thumb",
	ItemStatus:   ".jidi span",
	ItemDesc:     ".inzhuy",
	PageLinks:    ".pagenavi_txt a",
	PageCurrent:  ".pagenavi_txt .current",
}

func (s *Czzy) SupportsSearch() bool   { return true }
func (s *Czzy) SupportsCategory() bool { return true }

func (s *Czzy) HomeListing(ctx context.Context) ([]types.NamedGroup[types.ContentItem], error) {
	doc, err := s.getDocument(ctx, s.url("/"))
	if err != nil {
		return nil, err
	}
	groups := czzyList.sections(doc, s.abs)
	if len(groups) == 0 {
		return nil, s.markup("home sections .mi_btcon")
	}
	return groups, nil
}

func (s *Czzy) Detail(ctx context.Context, id string) (*types.ContentDetail, error) {
	doc, err := s.getDocument(ctx, s.url("/movie/"+id+".html"))
	if err != nil {
		return nil, err
	}
	name := cleanText(doc.Find(".moviedteail_tt h1").First().Text())
	if name == "" {
		return nil, s.markup("detail title .moviedteail_tt h1")
	}
	d := &types.ContentDetail{
		ID:          id,
		Name:        name,
		Description: cleanText(doc.Find(".yp_context").First().Text()),
		CoverURL:    s.abs(imageAttr(doc.Find(".dyimg img").First())),
	}
	doc.Find(".moviedteail_list li").Each(func(_ int, li *goquery.Selection) {
		if line := cleanText(li.Text()); line != "" {
			d.Info = append(d.Info, line)
		}
	})

	var names []string
	doc.Find(".mi_paly_box .ypxingq_t").Each(func(_ int, t *goquery.Selection) {
		names = append(names, cleanText(t.Text()))
	})
	var groups [][]types.Episode
	doc.Find(".paly_list_btn").Each(func(_ int, g *goquery.Selection) {
		groups = append(groups, episodes(g, urlutil.IDFromHref))
	})
	d.PlayLists = zipPlayLists(names, groups)
	d.Related = czzyList.items(doc.Find(".cai_list li"), s.abs)
	return d, nil
}

func (s *Czzy) Search(ctx context.Context, keyword string, page int) (*types.Page[types.ContentItem], error) {
	target := s.url("/daoyongjiekoshibushiyoubing?" + url.Values{
		"q": {keyword},
		"f": {"_all"},
		"p": {strconv.Itoa(page)},
	}.Encode())

	text, err := s.getHTML(ctx, target)
	if err != nil {
		return nil, err
	}
	doc, err := s.parseDocument(text)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.Find("title").Text()) == czzyCaptcha {
		if doc, err = s.passCaptcha(ctx, target, doc); err != nil {
			return nil, err
		}
	}

	return &types.Page[types.ContentItem]{
		Items:   czzyList.items(doc.Find(".search_list ul li"), s.abs),
		Page:    page,
		HasNext: hasNextPage(doc, czzyList.PageLinks, czzyList.PageCurrent, page),
	}, nil
}

// passCaptcha answers the arithmetic human check on the search page. The
// site only accepts the answer on the second identical submission.
func (s *Czzy) passCaptcha(ctx context.Context, target string, doc *goquery.Document) (*goquery.Document, error) {
	question := cleanText(doc.Find("form").Text())
	if i := strings.LastIndex(question, "="); i >= 0 {
		question = question[:i]
	}
	question = strings.TrimSpace(question)
	answer, err := engine.ParseAndExec(question)
	if err != nil {
		return nil, s.decode("search captcha "+strconv.Quote(question), err)
	}
	s.log.Debug("answering search captcha", "question", question, "answer", answer)

	form := url.Values{"result": {strconv.Itoa(int(answer))}}
	if _, err := s.postForm(ctx, target, form, withReferer(target)); err != nil {
		return nil, err
	}
	text, err := s.postForm(ctx, target, form, withReferer(target))
	if err != nil {
		return nil, err
	}
	return s.parseDocument(text)
}

func (s *Czzy) CategoryGroups(context.Context) ([]types.CategoryGroup, error) {
	return []types.CategoryGroup{
		category.Static("series", "类型",
			category.Opt("全部", ""),
			category.Opt("电影", "dyy"),
			category.Opt("电视剧", "dianshiju"),
			category.Opt("动画", "dohua"),
			category.Opt("国产剧", "gcj"),
			category.Opt("美剧", "mj"),
			category.Opt("韩剧", "hj"),
			category.Opt("日剧", "rj"),
		),
		category.Static("tag", "题材",
			category.Opt("全部", ""),
			category.Opt("动作", "dongzuo"),
			category.Opt("喜剧", "xiju"),
			category.Opt("爱情", "aiqing"),
			category.Opt("科幻", "kehuan"),
			category.Opt("悬疑", "xuanyi"),
			category.Opt("恐怖", "kongbu"),
		),
		category.Static("year", "年份",
			category.Opt("全部", ""),
			category.Opt("2025", "2025"),
			category.Opt("2024", "2024"),
			category.Opt("2023", "2023"),
			category.Opt("2022", "2022"),
		),
	}, nil
}

func (s *Czzy) QueryByCategory(ctx context.Context, q types.CategoryQuery, page int) (*types.Page[types.ContentItem], error) {
	path := category.SegmentPath(czzySegments, q, page)
	if path == "" || strings.HasPrefix(path, "/page/") {
		path = "/movie_bt" + path
	}
	doc, err := s.getDocument(ctx, s.url(path))
	if err != nil {
		return nil, err
	}
	return czzyList.page(doc, page, s.abs), nil
}

func (s *Czzy) ResolveVideoURL(ctx context.Context, contentID, episodeID string) (*types.VideoURLResult, error) {
	playURL := s.url("/v_play/" + episodeID + ".html")
	text, err := s.getHTML(ctx, playURL, withReferer(s.url("/movie/"+contentID+".html")))
	if err != nil {
		return nil, err
	}

	if line, ok := textscan.LineContaining(text, "md5.AES.decrypt"); ok {
		u, err := s.inlineAES(line)
		if err != nil {
			return nil, err
		}
		return &types.VideoURLResult{URL: u}, nil
	}

	doc, err := s.parseDocument(text)
	if err != nil {
		return nil, err
	}
	frame, ok := doc.Find(".videoplay iframe").Attr("src")
	if !ok || strings.TrimSpace(frame) == "" {
		return nil, s.markup("md5.AES.decrypt script or .videoplay iframe")
	}
	frame = s.abs(frame)
	s.log.Debug("following player iframe", "url", frame)

	page, err := s.getHTML(ctx, frame, iframeHeaders(playURL))
	if err != nil {
		return nil, err
	}
	u, err := s.framePlayer(page)
	if err != nil {
		return nil, err
	}
	return &types.VideoURLResult{
		URL:     urlutil.ResolveURL(u, frame),
		Headers: map[string]string{"Referer": urlutil.Origin(frame)},
	}, nil
}

// inlineAES decrypts the one-line player script:
//
//	var data="<b64>";var key=md5.enc.Utf8.parse("<key>");var iv=md5.enc.Utf8.parse("<iv>");...
func (s *Czzy) inlineAES(line string) (string, error) {
	parts := strings.Split(strings.TrimSpace(line), ";")
	if len(parts) < 3 {
		return "", s.markup("data;key;iv statements")
	}
	data, ok1 := textscan.QuotedAfter(parts[0], "=")
	key, ok2 := textscan.QuotedAfter(parts[1], "parse(")
	iv, ok3 := textscan.QuotedAfter(parts[2], "parse(")
	if !ok1 || !ok2 || !ok3 {
		return "", s.markup("quoted data, key and iv")
	}
	plain, err := crypto.CipherSpec{Key: key, IV: iv}.Decrypt(data, iv)
	if err != nil {
		return "", s.decode("inline aes", err)
	}
	u, ok := textscan.QuotedAfter(plain, "url:")
	if !ok {
		return "", s.markup("video url in decrypted script")
	}
	return u, nil
}

// framePlayer extracts the stream from one of the embedded player variants.
func (s *Czzy) framePlayer(page string) (string, error) {
	switch {
	case strings.Contains(page, "var result_v2"):
		blob, ok := textscan.ObjectAfter(page, "var result_v2")
		if !ok {
			return "", s.markup("result_v2 object")
		}
		data := gjson.Get(blob, "data").String()
		if data == "" {
			return "", s.markup("result_v2.data")
		}
		u, err := crypto.DecodeReversedHex(data, czzySaltLen)
		if err != nil {
			return "", s.decode("result_v2 hex", err)
		}
		return u, nil

	case strings.Contains(page, "var rand") && strings.Contains(page, "var player"):
		iv, ok1 := textscan.QuotedAfter(page, "var rand")
		data, ok2 := textscan.QuotedAfter(page, "var player")
		if !ok1 || !ok2 {
			return "", s.markup("rand and player literals")
		}
		plain, err := crypto.CipherSpec{Key: czzyPlayerKey}.Decrypt(data, iv)
		if err != nil {
			return "", s.decode("player aes", err)
		}
		u := gjson.Get(plain, "url").String()
		if u == "" {
			return "", s.markup("url in decrypted player")
		}
		return u, nil

	case strings.Contains(page, "sources:"):
		u, ok := textscan.QuotedAfter(page[strings.Index(page, "sources:"):], "src:")
		if !ok {
			return "", s.markup("sources src")
		}
		return u, nil
	}
	return "", s.markup(fmt.Sprintf("known player in iframe (%d bytes)", len(page)))
}

var _ interfaces.Source = (*Czzy)(nil)
