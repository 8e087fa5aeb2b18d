package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"media-source-go/pkg/category"
	"media-source-go/pkg/interfaces"
	"media-source-go/pkg/lazy"
	"media-source-go/pkg/types"
	"media-source-go/pkg/urlutil"
)

const lzzyAPI = "/api.php/provide/vod/"

// lzzyHomeTypes are the top-level types shown on the home listing, in order.
var lzzyHomeTypes = []struct {
	ID   string
	Name string
}{
	{"1", "电影"},
	{"2", "连续剧"},
	{"3", "综艺"},
	{"4", "动漫"},
}

type lzzyClass struct {
	ID     string
	Parent string
	Name   string
}

// Lzzy reads a MacCMS JSON provide API.
type Lzzy struct {
	*BaseSource
	classes lazy.Value[[]lzzyClass]
}

// NewLzzy creates the lzzy source.
func NewLzzy(opts Options) *Lzzy {
	return &Lzzy{BaseSource: NewBaseSource("lzzy", "量子资源", "https://cj.lziapi.com", opts)}
}

func (s *Lzzy) SupportsSearch() bool   { return true }
func (s *Lzzy) SupportsCategory() bool { return true }

func (s *Lzzy) api(params url.Values) string {
	return s.url(lzzyAPI + "?" + params.Encode())
}

func (s *Lzzy) list(ctx context.Context, params url.Values, page int) (*types.Page[types.ContentItem], error) {
	if page < 1 {
		page = 1
	}
	params.Set("ac", "detail")
	params.Set("pg", strconv.Itoa(page))
	res, err := s.getJSON(ctx, s.api(params))
	if err != nil {
		return nil, err
	}
	if !res.Get("list").IsArray() {
		return nil, s.markup("list array")
	}
	p := &types.Page[types.ContentItem]{Page: page, Items: []types.ContentItem{}}
	for _, v := range res.Get("list").Array() {
		p.Items = append(p.Items, types.ContentItem{
			ID:          v.Get("vod_id").String(),
			Title:       strings.TrimSpace(v.Get("vod_name").String()),
			Status:      v.Get("vod_remarks").String(),
			CoverURL:    v.Get("vod_pic").String(),
			Description: stripTags(v.Get("vod_blurb").String()),
			Tag:         v.Get("type_name").String(),
		})
	}
	p.HasNext = int64(page) < res.Get("pagecount").Int()
	return p, nil
}

// HomeListing fetches the first page of each home type concurrently.
func (s *Lzzy) HomeListing(ctx context.Context) ([]types.NamedGroup[types.ContentItem], error) {
	return fanOut(ctx, len(lzzyHomeTypes), func(ctx context.Context, i int) (types.NamedGroup[types.ContentItem], error) {
		t := lzzyHomeTypes[i]
		p, err := s.list(ctx, url.Values{"t": {t.ID}}, 1)
		if err != nil {
			return types.NamedGroup[types.ContentItem]{}, err
		}
		return types.NamedGroup[types.ContentItem]{Name: t.Name, Items: p.Items}, nil
	})
}

func (s *Lzzy) vod(ctx context.Context, id string) (gjson.Result, error) {
	res, err := s.getJSON(ctx, s.api(url.Values{"ac": {"detail"}, "ids": {id}}))
	if err != nil {
		return gjson.Result{}, err
	}
	v := res.Get("list.0")
	if !v.Exists() {
		return gjson.Result{}, s.markup("list[0] for id " + id)
	}
	return v, nil
}

func (s *Lzzy) Detail(ctx context.Context, id string) (*types.ContentDetail, error) {
	v, err := s.vod(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &types.ContentDetail{
		ID:            id,
		Name:          strings.TrimSpace(v.Get("vod_name").String()),
		Description:   stripTags(v.Get("vod_content").String()),
		CoverURL:      v.Get("vod_pic").String(),
		LatestEpisode: v.Get("vod_remarks").String(),
	}
	if d.Name == "" {
		return nil, s.markup("vod_name")
	}
	for _, f := range []struct{ label, key string }{
		{"导演", "vod_director"},
		{"主演", "vod_actor"},
		{"地区", "vod_area"},
		{"年份", "vod_year"},
		{"语言", "vod_lang"},
	} {
		if val := strings.TrimSpace(v.Get(f.key).String()); val != "" {
			d.Info = append(d.Info, f.label+"："+val)
		}
	}

	names, labels, _ := splitPlayURLs(v.Get("vod_play_from").String(), v.Get("vod_play_url").String())
	groups := make([][]types.Episode, len(labels))
	for l, line := range labels {
		for e, label := range line {
			groups[l] = append(groups[l], types.Episode{ID: fmt.Sprintf("%d-%d", l, e), Label: label, Index: e})
		}
	}
	d.PlayLists = zipPlayLists(names, groups)
	return d, nil
}

func (s *Lzzy) Search(ctx context.Context, keyword string, page int) (*types.Page[types.ContentItem], error) {
	return s.list(ctx, url.Values{"wd": {keyword}}, page)
}

func (s *Lzzy) taxonomy(ctx context.Context) ([]lzzyClass, error) {
	return s.classes.Get(ctx, func(ctx context.Context) ([]lzzyClass, error) {
		res, err := s.getJSON(ctx, s.api(url.Values{"ac": {"list"}}))
		if err != nil {
			return nil, err
		}
		var out []lzzyClass
		for _, c := range res.Get("class").Array() {
			out = append(out, lzzyClass{
				ID:     c.Get("type_id").String(),
				Parent: c.Get("type_pid").String(),
				Name:   c.Get("type_name").String(),
			})
		}
		if len(out) == 0 {
			return nil, s.markup("class list")
		}
		return out, nil
	})
}

// CategoryGroups returns the top-level type group and a class group whose
// options depend on the selected type.
func (s *Lzzy) CategoryGroups(ctx context.Context) ([]types.CategoryGroup, error) {
	classes, err := s.taxonomy(ctx)
	if err != nil {
		return nil, err
	}
	var top []types.CategoryOption
	for _, c := range classes {
		if c.Parent == "0" || c.Parent == "" {
			top = append(top, category.Opt(c.Name, c.ID))
		}
	}
	if len(top) == 0 {
		return nil, s.markup("top-level classes")
	}
	return []types.CategoryGroup{
		category.Static("type", "类型", top...),
		category.Dynamic("class", "子类", []string{"type"}, func(ctx context.Context, sel types.CategoryQuery) ([]types.CategoryOption, error) {
			classes, err := s.taxonomy(ctx)
			if err != nil {
				return nil, err
			}
			opts := []types.CategoryOption{category.Opt("全部", "")}
			for _, c := range classes {
				if c.Parent == sel["type"] {
					opts = append(opts, category.Opt(c.Name, c.ID))
				}
			}
			return opts, nil
		}),
	}, nil
}

func (s *Lzzy) QueryByCategory(ctx context.Context, q types.CategoryQuery, page int) (*types.Page[types.ContentItem], error) {
	t := q.Get("class", q["type"])
	params := url.Values{}
	if t != "" {
		params.Set("t", t)
	}
	return s.list(ctx, params, page)
}

// ResolveVideoURL re-reads the detail record; episode ids are "list-episode"
// indexes into its play lines.
func (s *Lzzy) ResolveVideoURL(ctx context.Context, contentID, episodeID string) (*types.VideoURLResult, error) {
	ls, es, ok := strings.Cut(episodeID, "-")
	l, err1 := strconv.Atoi(ls)
	e, err2 := strconv.Atoi(es)
	if !ok || err1 != nil || err2 != nil {
		return nil, s.markup("episode id of the form list-episode, got " + strconv.Quote(episodeID))
	}

	v, err := s.vod(ctx, contentID)
	if err != nil {
		return nil, err
	}
	_, _, targets := splitPlayURLs(v.Get("vod_play_from").String(), v.Get("vod_play_url").String())
	if l < 0 || l >= len(targets) || e < 0 || e >= len(targets[l]) {
		return nil, s.markup("episode " + episodeID + " in play lines")
	}
	u := strings.TrimSpace(targets[l][e])
	if u == "" {
		return nil, s.markup("episode url")
	}
	return &types.VideoURLResult{URL: u, Headers: map[string]string{"Referer": urlutil.Origin(u)}}, nil
}

// stripTags returns the text content of an HTML fragment.
func stripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return cleanText(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return cleanText(s)
	}
	return cleanText(doc.Text())
}

var _ interfaces.Source = (*Lzzy)(nil)
