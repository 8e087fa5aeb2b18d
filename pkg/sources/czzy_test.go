package sources

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-source-go/pkg/challenge"
	"media-source-go/pkg/crypto"
	"media-source-go/pkg/sourceerr"
	"media-source-go/pkg/types"
)

const czzyHome = `<html><body>
<div class="mi_btcon"><div class="bt_tit"><h2>热门电影</h2></div>
<div class="bt_img"><ul>
<li><a href="https://www.czzy.top/movie/1001.html"><img class="thumb" data-original="https://img.example/1.jpg"></a>
<h3 class="dytit"><a href="https://www.czzy.top/movie/1001.html">沙丘2</a></h3><div class="jidi"><span>HD</span></div></li>
<li><a href="/movie/1002.html"><img class="thumb" data-original="/img/2.jpg"></a>
<h3 class="dytit"><a href="/movie/1002.html">奥本海默</a></h3></li>
</ul></div></div>
<div class="mi_btcon"><div class="bt_tit"><h2>热播剧集</h2></div>
<div class="bt_img"><ul>
<li><a href="/movie/2001.html"><img class="thumb" src="/img/3.jpg"></a><h3 class="dytit"><a href="/movie/2001.html">三体</a></h3></li>
</ul></div></div>
</body></html>`

const czzyDetail = `<html><body>
<div class="dyxingq"><div class="dyimg"><img src="/img/abc.jpg"></div>
<div class="moviedteail_tt"><h1>测试影片</h1></div>
<ul class="moviedteail_list"><li>地区：美国</li><li>年份：2024</li></ul></div>
<div class="yp_context"> 剧情 简介 </div>
<div class="mi_paly_box"><div class="ypxingq_t">Playlist 1</div><div class="ypxingq_t">Playlist 2</div>
<div class="paly_list_btn"><a href="/v_play/a1.html">第1集</a><a href="/v_play/a2.html">第2集</a><a href="/v_play/a3.html">第3集</a></div>
<div class="paly_list_btn"><a href="/v_play/b1.html">1</a><a href="/v_play/b2.html">2</a><a href="/v_play/b3.html">3</a><a href="/v_play/b4.html">4</a><a href="/v_play/b5.html">5</a></div>
</div></body></html>`

func TestCzzy_HomeListing(t *testing.T) {
	fs := newFixtureServer(t)
	fs.page("/", czzyHome)
	src := NewCzzy(testOptions(fs))

	groups, err := src.HomeListing(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "热门电影", groups[0].Name)
	require.Len(t, groups[0].Items, 2)
	assert.Equal(t, types.ContentItem{ID: "1001", Title: "沙丘2", CoverURL: "https://img.example/1.jpg", Status: "HD"}, groups[0].Items[0])
	assert.Equal(t, fs.URL+"/img/2.jpg", groups[0].Items[1].CoverURL)
	assert.Len(t, groups[1].Items, 1)

	again, err := src.HomeListing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, groups, again)
}

func TestCzzy_HomeListing_MissingMarkup(t *testing.T) {
	fs := newFixtureServer(t)
	fs.page("/", `<html><body><p>maintenance</p></body></html>`)

	_, err := NewCzzy(testOptions(fs)).HomeListing(context.Background())
	assert.True(t, sourceerr.IsKind(err, sourceerr.KindMarkup))
}

func TestCzzy_Detail(t *testing.T) {
	fs := newFixtureServer(t)
	fs.page("/movie/abc123.html", czzyDetail)

	d, err := NewCzzy(testOptions(fs)).Detail(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "测试影片", d.Name)
	assert.Equal(t, "剧情 简介", d.Description)
	assert.Equal(t, []string{"地区：美国", "年份：2024"}, d.Info)
	require.Len(t, d.PlayLists, 2)
	assert.Equal(t, "Playlist 1", d.PlayLists[0].Name)
	assert.Equal(t, "Playlist 2", d.PlayLists[1].Name)
	assert.Len(t, d.PlayLists[0].Episodes, 3)
	assert.Len(t, d.PlayLists[1].Episodes, 5)

	seen := map[string]bool{}
	for _, pl := range d.PlayLists {
		for _, ep := range pl.Episodes {
			assert.False(t, seen[ep.ID], ep.ID)
			seen[ep.ID] = true
		}
	}
	assert.Equal(t, "a1", d.PlayLists[0].Episodes[0].ID)
}

func TestCzzy_Search_AnswersCaptcha(t *testing.T) {
	fs := newFixtureServer(t)
	posts := 0
	fs.handle("/daoyongjiekoshibushiyoubing", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "沙丘", r.URL.Query().Get("q"))
		if r.Method == http.MethodGet {
			htmlPage(`<html><head><title>人机验证</title></head><body><form method="post">12 + 7 = <input name="result"><button>提交</button></form></body></html>`)(w, r)
			return
		}
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "19", r.PostForm.Get("result"))
		posts++
		htmlPage(`<html><head><title>搜索</title></head><body><div class="search_list"><ul>
<li><a href="/movie/1001.html"><img class="thumb" data-original="/1.jpg"></a><h3 class="dytit"><a href="/movie/1001.html">沙丘</a></h3></li>
</ul></div><div class="pagenavi_txt"><span class="current">1</span><a href="?p=2">2</a></div></body></html>`)(w, r)
	})

	page, err := NewCzzy(testOptions(fs)).Search(context.Background(), "沙丘", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, posts)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "1001", page.Items[0].ID)
	assert.True(t, page.HasNext)
}

func TestCzzy_QueryByCategory(t *testing.T) {
	fs := newFixtureServer(t)
	fs.page("/movie_bt_series/dyy/year/2024/page/2", `<html><body><div class="bt_img"><ul>
<li><a href="/movie/9.html"></a><h3 class="dytit"><a href="/movie/9.html">九</a></h3></li></ul></div>
<div class="pagenavi_txt"><a href="/1">1</a><span class="current">2</span></div></body></html>`)
	fs.page("/movie_bt", `<html><body><div class="bt_img"><ul>
<li><a href="/movie/1.html"></a><h3 class="dytit"><a href="/movie/1.html">一</a></h3></li></ul></div></body></html>`)
	src := NewCzzy(testOptions(fs))

	page, err := src.QueryByCategory(context.Background(), types.CategoryQuery{"series": "dyy", "year": "2024", "tag": ""}, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "9", page.Items[0].ID)
	assert.False(t, page.HasNext)

	page, err = src.QueryByCategory(context.Background(), types.CategoryQuery{}, 1)
	require.NoError(t, err)
	assert.Equal(t, "1", page.Items[0].ID)
}

func TestCzzy_ResolveVideoURL(t *testing.T) {
	const want = "https://cdn.example/v/index.m3u8"

	t.Run("inline aes", func(t *testing.T) {
		fs := newFixtureServer(t)
		data := mustEncrypt(t, `window.player={video: {url: "`+want+`",type:"hls"}}`, "1234567890abcdef", "abcdef1234567890")
		fs.page("/v_play/e1.html", fmt.Sprintf("<html><script>\nvar data=\"%s\";var key=md5.enc.Utf8.parse(\"1234567890abcdef\");var iv=md5.enc.Utf8.parse(\"abcdef1234567890\");var x=md5.AES.decrypt(data,key,{iv:iv});\n</script></html>", data))

		res, err := NewCzzy(testOptions(fs)).ResolveVideoURL(context.Background(), "abc", "e1")
		require.NoError(t, err)
		assert.Equal(t, want, res.URL)
	})

	frame := func(t *testing.T, player string) (*types.VideoURLResult, error) {
		fs := newFixtureServer(t)
		fs.page("/v_play/e1.html", `<html><div class="videoplay"><iframe src="/player/1"></iframe></div></html>`)
		fs.handle("/player/1", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "iframe", r.Header.Get("Sec-Fetch-Dest"))
			assert.Equal(t, fs.URL+"/v_play/e1.html", r.Header.Get("Referer"))
			htmlPage(player)(w, r)
		})
		return NewCzzy(testOptions(fs)).ResolveVideoURL(context.Background(), "abc", "e1")
	}

	t.Run("result_v2 hex reversal", func(t *testing.T) {
		data := crypto.EncodeReversedHex(want, "XXXXXXX")
		res, err := frame(t, `<script>var result_v2 = {"data":"`+data+`","type":"m3u8"};</script><script src="/js/player/index.min.js"></script>`)
		require.NoError(t, err)
		assert.Equal(t, want, res.URL)
		assert.NotEmpty(t, res.Headers["Referer"])
	})

	t.Run("rand player aes", func(t *testing.T) {
		iv := "0123456789abcdef"
		data := mustEncrypt(t, `{"url":"`+want+`","type":"hls"}`, czzyPlayerKey, iv)
		res, err := frame(t, `<script>var rand = "`+iv+`"; var player = "`+data+`";</script>`)
		require.NoError(t, err)
		assert.Equal(t, want, res.URL)
	})

	t.Run("sources src", func(t *testing.T) {
		res, err := frame(t, `<script>new Player({sources: [{ src: '/media/1.mp4', type: 'video/mp4' }]})</script>`)
		require.NoError(t, err)
		assert.Contains(t, res.URL, "/media/1.mp4")
	})

	t.Run("unknown player", func(t *testing.T) {
		_, err := frame(t, `<html>nothing here</html>`)
		assert.True(t, sourceerr.IsKind(err, sourceerr.KindMarkup))
	})
}

// cookieSolver stores a clearance cookie the way a real solver would.
type cookieSolver struct {
	jar   http.CookieJar
	calls int
	ok    bool
}

func (c *cookieSolver) Solve(_ context.Context, req *http.Request, spec *challenge.Spec) bool {
	c.calls++
	if c.ok {
		c.jar.SetCookies(req.URL, []*http.Cookie{{Name: spec.Cookie, Value: "cleared", Path: "/"}})
	}
	return c.ok
}

func TestCzzy_ChallengeSolvedThenRetried(t *testing.T) {
	fs := newFixtureServer(t)
	fs.handle("/", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("cf_clearance"); err != nil {
			w.Header().Set("Server", "cloudflare")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("Just a moment..."))
			return
		}
		htmlPage(czzyHome)(w, r)
	})

	opts := testOptions(fs)
	solver := &cookieSolver{jar: opts.Client.Jar(), ok: true}
	opts.Solver = solver

	groups, err := NewCzzy(opts).HomeListing(context.Background())
	require.NoError(t, err)
	assert.Len(t, groups, 2)
	assert.Equal(t, 1, solver.calls)
	assert.Equal(t, 2, fs.hitCount("/"))
}

func TestCzzy_ChallengeUnsolvedSurfacesNetworkError(t *testing.T) {
	fs := newFixtureServer(t)
	fs.handle("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusForbidden)
	})

	opts := testOptions(fs)
	solver := &cookieSolver{jar: opts.Client.Jar()}
	opts.Solver = solver

	_, err := NewCzzy(opts).HomeListing(context.Background())
	require.Error(t, err)
	var se *sourceerr.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, sourceerr.KindNetwork, se.Kind)
	assert.Equal(t, http.StatusForbidden, se.Status)
	assert.Equal(t, 1, solver.calls)
}

func TestCzzy_Capabilities(t *testing.T) {
	src := NewCzzy(Options{})
	assert.True(t, src.SupportsSearch())
	assert.True(t, src.SupportsCategory())
	assert.False(t, src.SupportsTimeline())
	_, err := src.UpdateTimeline(context.Background())
	assert.True(t, sourceerr.IsKind(err, sourceerr.KindUnsupported))

	groups, err := src.CategoryGroups(context.Background())
	require.NoError(t, err)
	assert.Len(t, groups, 3)
}
