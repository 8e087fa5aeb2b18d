package sources

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"media-source-go/pkg/crypto"
	"media-source-go/pkg/sourceerr"
	"media-source-go/pkg/types"
)

const novipPlayerPage = `<html><body><iframe src="/play.html" width="100%" height="100%"></iframe>
<script>eval(function(p,a,c,k,e,d){e=function(c){return c};if(!''.replace(/^/,String)){while(c--)d[c]=k[c]||c;k=[function(e){return d[e]}];e=function(){return'\\w+'};c=1};while(c--)if(k[c])p=p.replace(new RegExp('\\b'+e(c)+'\\b','g'),k[c]);return p}('0 1={2:"3",4:"5",6:"7",8:"9"};',62,10,'var|params|ckey|ab12|ref|/tv/china/abc123.html|ip|10.0.0.1|time|1700'.split('|'),0,{}))</script>
</body></html>`

const novipStreams = `{"code":200,"quality":[{"name":"480P","url":"https://a.example/480.m3u8"},{"name":"1080P","url":"https://a.example/1080.m3u8"}],"defaultQuality":1}`

const novipPost = `<html><head><meta property="og:image" content="/wp-content/cover.jpg"></head><body>
<div class="video-details"><h1>繁花</h1></div>
<div class="item-info"><span class="meta">导演：王家卫</span><span class="meta">地区：大陆</span></div>
<div class="item-content"><p>上海往事</p></div>
<p id="linkhead">国语</p><div class="tm-multilink">
<a onclick="pl('ftn-1-1')">01</a><a onclick="pl('ftn-1-2')">02</a><a onclick="pl('null')">坏链</a><a onclick="pl('ftn-1-3')">03</a></div>
<p id="linkhead1">粤语</p><div class="tm-multilink">
<a onclick="pl('ftn-2-1')">01</a><a onclick="pl('ftn-2-2')">02</a><a onclick="pl('ftn-2-3')">03</a><a onclick="pl('ftn-2-4')">04</a><a onclick="pl('ftn-2-5')">05</a></div>
<div class="related-posts"><div class="video-item"><div class="item-thumbnail"><a href="/movie/77.html" title="花样年华"><img src="/c/77.jpg"></a></div></div></div>
<script>var $pkey="stale";</script>
<script>window.$pkey="k9";</script>
</body></html>`

func TestNovip_IDMapping(t *testing.T) {
	assert.Equal(t, "tv_hongkong_12345", novipID("https://www.novipnoad.net/tv/hongkong/12345.html"))
	assert.Equal(t, "/tv/hongkong/12345.html", novipPath("tv_hongkong_12345"))
}

func TestNovip_HomeListing(t *testing.T) {
	fs := newFixtureServer(t)
	fs.page("/", `<html><body><div class="video-section"><div class="section-header"><h2>最新港剧</h2></div>
<div class="video-item"><div class="item-thumbnail"><a href="/tv/hongkong/12345.html"><img data-src="/c/1.jpg"></a></div>
<div class="item-head"><h3><a href="/tv/hongkong/12345.html">新闻女王</a></h3></div><div class="item-meta">更新至20集</div></div>
</div></body></html>`)

	groups, err := NewNovip(testOptions(fs)).HomeListing(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "最新港剧", groups[0].Name)
	assert.Equal(t, types.ContentItem{ID: "tv_hongkong_12345", Title: "新闻女王", Status: "更新至20集", CoverURL: fs.URL + "/c/1.jpg"}, groups[0].Items[0])
}

func TestNovip_Detail(t *testing.T) {
	fs := newFixtureServer(t)
	fs.page("/tv/china/abc123.html", novipPost)

	d, err := NewNovip(testOptions(fs)).Detail(context.Background(), "tv_china_abc123")
	require.NoError(t, err)
	assert.Equal(t, "繁花", d.Name)
	assert.Equal(t, "上海往事", d.Description)
	assert.Equal(t, fs.URL+"/wp-content/cover.jpg", d.CoverURL)
	assert.Equal(t, []string{"导演：王家卫", "地区：大陆"}, d.Info)
	require.Len(t, d.PlayLists, 2)
	assert.Equal(t, "国语", d.PlayLists[0].Name)
	assert.Len(t, d.PlayLists[0].Episodes, 3)
	assert.Equal(t, types.Episode{ID: "ftn-1-3", Label: "03", Index: 2}, d.PlayLists[0].Episodes[2])
	assert.Len(t, d.PlayLists[1].Episodes, 5)
	require.Len(t, d.Related, 1)
	assert.Equal(t, "movie_77", d.Related[0].ID)
}

func TestNovip_SearchAcceptsGBKKeyword(t *testing.T) {
	gbk, err := simplifiedchinese.GBK.NewEncoder().String("繁花")
	require.NoError(t, err)

	fs := newFixtureServer(t)
	fs.handle("/page/2/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "繁花", r.URL.Query().Get("s"))
		htmlPage(`<div class="video-item"><div class="item-thumbnail"><a href="/tv/china/9.html" title="繁花"></a></div></div>
<div class="wp-pagenavi"><a href="/page/1/">1</a><span class="current">2</span><a href="/page/3/">3</a></div>`)(w, r)
	})

	p, err := NewNovip(testOptions(fs)).Search(context.Background(), gbk, 2)
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.Equal(t, "tv_china_9", p.Items[0].ID)
	assert.True(t, p.HasNext)
}

func TestNovip_QueryByCategory(t *testing.T) {
	fs := newFixtureServer(t)
	fs.page("/tv/hongkong/page/3/", `<div class="video-item"><div class="item-thumbnail"><a href="/tv/hongkong/5.html" title="x"></a></div></div>`)
	fs.page("/tv/", `<div class="video-item"><div class="item-thumbnail"><a href="/tv/korea/6.html" title="y"></a></div></div>`)
	src := NewNovip(testOptions(fs))

	p, err := src.QueryByCategory(context.Background(), types.CategoryQuery{"type": "tv", "region": "hongkong"}, 3)
	require.NoError(t, err)
	assert.Equal(t, "tv_hongkong_5", p.Items[0].ID)

	p, err = src.QueryByCategory(context.Background(), types.CategoryQuery{}, 1)
	require.NoError(t, err)
	assert.Equal(t, "tv_korea_6", p.Items[0].ID)
}

// novipFixture serves the post, the player page and the stream list, with
// the stream list body supplied by streams.
func novipFixture(t *testing.T, streams http.HandlerFunc) (*fixtureServer, *Novip) {
	fs := newFixtureServer(t)
	fs.page("/tv/china/abc123.html", novipPost)
	fs.handle("/v1/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "ftn-1700000001", q.Get("url"))
		assert.Equal(t, "k9", q.Get("pkey"))
		assert.Equal(t, "/tv/china/abc123.html", q.Get("ref"))
		htmlPage(novipPlayerPage)(w, r)
	})
	fs.handle("/ftn/1700000001.js", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "AB12", q.Get("ckey"))
		assert.Equal(t, "/tv/china/abc123.html", q.Get("ref"))
		assert.Equal(t, "10.0.0.1", q.Get("ip"))
		assert.Equal(t, "1700", q.Get("time"))
		assert.Contains(t, r.Header.Get("Referer"), "/v1/?")
		streams(w, r)
	})
	opts := testOptions(fs)
	opts.Hosts = map[string]string{"player": fs.URL, "api": fs.URL}
	return fs, NewNovip(opts)
}

func TestNovip_ResolveVideoURL(t *testing.T) {
	_, src := novipFixture(t, htmlPage(`var videoInfo = `+novipStreams+`;`))

	res, err := src.ResolveVideoURL(context.Background(), "tv_china_abc123", "ftn-1700000001")
	require.NoError(t, err)
	assert.Equal(t, "https://a.example/1080.m3u8", res.URL)
}

func TestNovip_ResolveVideoURL_RC4StreamList(t *testing.T) {
	ct, err := crypto.EncryptRC4(novipStreams, novipRC4Key)
	require.NoError(t, err)
	_, src := novipFixture(t, htmlPage(`var videoInfo = JSON.decrypt("`+ct+`");`))

	res, err := src.ResolveVideoURL(context.Background(), "tv_china_abc123", "ftn-1700000001")
	require.NoError(t, err)
	assert.Equal(t, "https://a.example/1080.m3u8", res.URL)
}

func TestNovip_ResolveVideoURL_Failures(t *testing.T) {
	t.Run("no pkey on post", func(t *testing.T) {
		fs := newFixtureServer(t)
		fs.page("/plain/1.html", `<html><script>var a = 1;</script></html>`)
		_, err := NewNovip(testOptions(fs)).ResolveVideoURL(context.Background(), "plain_1", "ftn-1700000001")
		assert.True(t, sourceerr.IsKind(err, sourceerr.KindMarkup))
	})
	t.Run("episode id without separator", func(t *testing.T) {
		_, src := novipFixture(t, htmlPage(""))
		_, err := src.ResolveVideoURL(context.Background(), "tv_china_abc123", "null")
		assert.True(t, sourceerr.IsKind(err, sourceerr.KindMarkup))
	})
	t.Run("player page not packed", func(t *testing.T) {
		fs := newFixtureServer(t)
		fs.page("/tv/china/abc123.html", novipPost)
		fs.page("/v1/", `<html><script>var params = {};</script></html>`)
		opts := testOptions(fs)
		opts.Hosts = map[string]string{"player": fs.URL, "api": fs.URL}
		_, err := NewNovip(opts).ResolveVideoURL(context.Background(), "tv_china_abc123", "ftn-1700000001")
		assert.True(t, sourceerr.IsKind(err, sourceerr.KindDecode))
	})
	t.Run("stream list refused", func(t *testing.T) {
		_, src := novipFixture(t, htmlPage(`var videoInfo = {"code":403,"quality":[]};`))
		_, err := src.ResolveVideoURL(context.Background(), "tv_china_abc123", "ftn-1700000001")
		assert.True(t, sourceerr.IsKind(err, sourceerr.KindMarkup))
	})
	t.Run("undecryptable stream list", func(t *testing.T) {
		_, src := novipFixture(t, htmlPage(`JSON.decrypt("!!!")`))
		_, err := src.ResolveVideoURL(context.Background(), "tv_china_abc123", "ftn-1700000001")
		assert.True(t, sourceerr.IsKind(err, sourceerr.KindDecode))
	})
}

func TestNovip_DetailSkipsEmptyLinkGroup(t *testing.T) {
	fs := newFixtureServer(t)
	fs.page("/movie/1.html", `<div class="video-details"><h1>预告</h1></div>
<div class="tm-multilink"><a onclick="pl('null')">坏链</a></div>`)

	d, err := NewNovip(testOptions(fs)).Detail(context.Background(), "movie_1")
	require.NoError(t, err)
	assert.Equal(t, "预告", d.Name)
	assert.Empty(t, d.PlayLists)
}
