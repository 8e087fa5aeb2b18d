package sources

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-source-go/pkg/sourceerr"
	"media-source-go/pkg/types"
)

const ntdmHome = `<html><body>
<div class="stui-pannel"><div class="stui-pannel__head"><h3 class="title">新番连载</h3></div>
<ul class="stui-vodlist">
<li><a class="stui-vodlist__thumb" href="/video/7001.html" title="葬送的芙莉莲" data-original="/c/7001.jpg"><span class="pic-text">更新至20集</span></a>
<div class="stui-vodlist__detail"><h4 class="title"><a href="/video/7001.html">葬送的芙莉莲</a></h4></div></li>
<li><a class="stui-vodlist__thumb" href="/video/7002.html" title="药屋少女的呢喃" data-original="/c/7002.jpg"></a></li>
</ul></div>
<ul class="week-tab"><li>周一</li><li class="active">周二</li></ul>
<ul class="week-list"><li><a href="/video/8001.html" title="周一番">周一番</a><span>第3集</span></li></ul>
<ul class="week-list"><li><a href="/video/8002.html" title="周二番">周二番</a></li><li><a href="/video/8003.html">另一部</a></li></ul>
</body></html>`

const ntdmFilters = `<html><body>
<ul class="stui-screen__list"><li><span class="screen-label">类型：</span></li>
<li class="active"><a href="/show/1-----------.html">TV</a></li>
<li><a href="/show/2-----------.html">剧场版</a></li></ul>
<ul class="stui-screen__list"><li><span class="screen-label">地区：</span></li>
<li><a href="/show/1-----------.html">全部</a></li>
<li><a href="/show/1-%E6%97%A5%E6%9C%AC----------.html">日本</a></li></ul>
<ul class="stui-screen__list"><li><span class="screen-label">单个</span></li><li><a href="/show/1-----------.html">全部</a></li></ul>
</body></html>`

func TestNtdm_HomeListing(t *testing.T) {
	fs := newFixtureServer(t)
	fs.page("/", ntdmHome)
	src := NewNtdm(testOptions(fs))

	groups, err := src.HomeListing(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "新番连载", groups[0].Name)
	require.Len(t, groups[0].Items, 2)
	assert.Equal(t, "7001", groups[0].Items[0].ID)
	assert.Equal(t, "葬送的芙莉莲", groups[0].Items[0].Title)
	assert.Equal(t, "更新至20集", groups[0].Items[0].Status)
	assert.Equal(t, fs.URL+"/c/7001.jpg", groups[0].Items[0].CoverURL)
	assert.Equal(t, "药屋少女的呢喃", groups[0].Items[1].Title)
}

func TestNtdm_Detail(t *testing.T) {
	fs := newFixtureServer(t)
	fs.page("/video/abc123.html", stuiDetail("测试番剧", map[string][]string{
		"线路一": {`<li><a href="/play/abc123-1-1.html">第01集</a></li>`, `<li><a href="/play/abc123-1-2.html">第02集</a></li>`, `<li><a href="/play/abc123-1-3.html">第03集</a></li>`},
		"线路二": {
			`<li><a href="/play/abc123-2-1.html">1</a></li>`, `<li><a href="/play/abc123-2-2.html">2</a></li>`,
			`<li><a href="/play/abc123-2-3.html">3</a></li>`, `<li><a href="/play/abc123-2-4.html">4</a></li>`,
			`<li><a href="/play/abc123-2-5.html">5</a></li>`,
		},
	}, []string{"线路一", "线路二"}))
	src := NewNtdm(testOptions(fs))

	d, err := src.Detail(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "测试番剧", d.Name)
	assert.Equal(t, "简介内容", d.Description)
	assert.Equal(t, "更新至08集", d.LatestEpisode)
	assert.Len(t, d.Info, 2)
	require.Len(t, d.PlayLists, 2)
	assert.True(t, d.PlayLists[0].Default)
	assert.Len(t, d.PlayLists[0].Episodes, 3)
	assert.Len(t, d.PlayLists[1].Episodes, 5)
	assert.Equal(t, types.Episode{ID: "abc123-2-4", Label: "4", Index: 3}, d.PlayLists[1].Episodes[3])
	require.Len(t, d.Related, 1)
	assert.Equal(t, "rel1", d.Related[0].ID)
}

func TestNtdm_Search(t *testing.T) {
	fs := newFixtureServer(t)
	fs.handle("/search/-------------.html", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "芙莉莲", r.URL.Query().Get("wd"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		htmlPage(`<ul class="stui-vodlist"><li><a class="stui-vodlist__thumb" href="/video/7001.html" title="葬送的芙莉莲"></a></li></ul>
<ul class="stui-page"><li><a href="?page=1">1</a></li><li class="active"><a>2</a></li><li><a href="?page=3">3</a></li></ul>`)(w, r)
	})
	src := NewNtdm(testOptions(fs))

	p, err := src.Search(context.Background(), "芙莉莲", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Page)
	assert.True(t, p.HasNext)
	require.Len(t, p.Items, 1)
	assert.Equal(t, "7001", p.Items[0].ID)
}

func TestNtdm_CategoryGroupsCached(t *testing.T) {
	fs := newFixtureServer(t)
	fs.page("/show/1-----------.html", ntdmFilters)
	src := NewNtdm(testOptions(fs))

	groups, err := src.CategoryGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)

	assert.Equal(t, "0", groups[0].Key)
	assert.Equal(t, "类型", groups[0].Name)
	assert.Equal(t, "1", groups[0].Default)
	assert.Equal(t, []types.CategoryOption{{Label: "TV", Value: "1"}, {Label: "剧场版", Value: "2"}}, groups[0].Options)

	assert.Equal(t, "1", groups[1].Key)
	assert.Equal(t, "", groups[1].Default)
	assert.Equal(t, "日本", groups[1].Options[1].Value)

	_, err = src.CategoryGroups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fs.hitCount("/show/1-----------.html"))
}

func TestNtdm_QueryByCategory(t *testing.T) {
	fs := newFixtureServer(t)
	fs.page("/show/2-日本-------2---.html", `<ul class="stui-vodlist"><li><a class="stui-vodlist__thumb" href="/video/9.html" title="剧场版"></a></li></ul>`)
	src := NewNtdm(testOptions(fs))

	p, err := src.QueryByCategory(context.Background(), types.CategoryQuery{"0": "2", "1": "日本"}, 2)
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.Equal(t, "9", p.Items[0].ID)
	assert.False(t, p.HasNext)
}

func TestNtdm_UpdateTimeline(t *testing.T) {
	fs := newFixtureServer(t)
	fs.page("/", ntdmHome)
	src := NewNtdm(testOptions(fs))

	tl, err := src.UpdateTimeline(context.Background())
	require.NoError(t, err)
	require.Len(t, tl.Days, 2)
	assert.Equal(t, 1, tl.Current)
	assert.Equal(t, "周一", tl.Days[0].Name)
	assert.Equal(t, types.ContentItem{ID: "8001", Title: "周一番", Status: "第3集"}, tl.Days[0].Items[0])
	assert.Len(t, tl.Days[1].Items, 2)
	assert.Equal(t, "另一部", tl.Days[1].Items[1].Title)
}

func TestNtdm_ResolveVideoURL(t *testing.T) {
	const iv = "1234567890abcdef"
	fs := newFixtureServer(t)
	fs.page("/play/abc123-1-2.html", `<script>var player_aaaa={"url":"https:\/\/v.example\/x.m3u8","encrypt":"0","from":"ntyun"}</script>`)
	ct := mustEncrypt(t, "https://cdn.example/real.m3u8", ntdmCipher.Key, iv)
	fs.handle("/m3u8.php", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://v.example/x.m3u8", r.URL.Query().Get("url"))
		assert.Contains(t, r.Header.Get("Referer"), "/play/abc123-1-2.html")
		htmlPage(`<script>var bt_token = "` + iv + `";
var config = getVideoInfo("` + ct + `");</script>`)(w, r)
	})
	opts := testOptions(fs)
	opts.Hosts = map[string]string{"parser": fs.URL}
	src := NewNtdm(opts)

	res, err := src.ResolveVideoURL(context.Background(), "abc123", "abc123-1-2")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/real.m3u8", res.URL)
}

func TestNtdm_ResolveVideoURL_MissingToken(t *testing.T) {
	fs := newFixtureServer(t)
	fs.page("/play/e.html", `<script>var player_aaaa={"url":"https:\/\/v.example\/x.m3u8","encrypt":"0"}</script>`)
	fs.page("/m3u8.php", `<script>getVideoInfo("abc")</script>`)
	opts := testOptions(fs)
	opts.Hosts = map[string]string{"parser": fs.URL}

	_, err := NewNtdm(opts).ResolveVideoURL(context.Background(), "x", "e")
	assert.True(t, sourceerr.IsKind(err, sourceerr.KindDecode))
}
