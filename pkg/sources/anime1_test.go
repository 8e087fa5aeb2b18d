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

const anime1Index = `[[101,"葬送的芙莉莲","1-28","2023","秋",""],
[102,"<a href=\"https://example.org\">迷宫饭</a>","1-24","2024","冬","字幕组"],
[103,"药屋少女的呢喃","1-24","2023","秋",""],
[0,"外部链接","","","",""]]`

func anime1Server(t *testing.T) *fixtureServer {
	fs := newFixtureServer(t)
	fs.handle("/index/", jsonPage(anime1Index))
	fs.handle("GET /", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("cat") == "101" && q.Get("paged") == "":
			htmlPage(`<h1 class="page-title">葬送的芙莉莲</h1>
<article id="post-303"><h2 class="entry-title"><a href="/?p=303">葬送的芙莉莲 [03]</a></h2></article>
<article id="post-302"><h2 class="entry-title"><a href="/?p=302">葬送的芙莉莲 [02]</a></h2></article>
<div class="nav-previous"><a href="/?cat=101&paged=2">較舊的文章</a></div>`)(w, r)
		case q.Get("cat") == "104":
			htmlPage(`<h1 class="page-title">尚未上映</h1><p>沒有文章</p>`)(w, r)
		case q.Get("cat") == "101":
			htmlPage(`<h1 class="page-title">葬送的芙莉莲</h1>
<article id="post-301"><h2 class="entry-title"><a href="/301">葬送的芙莉莲 [01]</a></h2></article>`)(w, r)
		case q.Get("s") != "":
			htmlPage(`<article><span class="cat-links"><a href="/?cat=101">葬送的芙莉莲</a></span></article>
<article><span class="cat-links"><a href="/?cat=101">葬送的芙莉莲</a></span></article>
<article><span class="cat-links"><a href="/?cat=105">芙莉莲 特别篇</a></span></article>`)(w, r)
		case q.Get("p") == "301":
			htmlPage(`<article><video class="video-js" data-apireq="%7B%22c%22%3A%22101%22%2C%22e%22%3A%221%22%7D"></video></article>`)(w, r)
		default:
			http.NotFound(w, r)
		}
	})
	return fs
}

func anime1Options(fs *fixtureServer) Options {
	opts := testOptions(fs)
	opts.Hosts = map[string]string{"index": fs.URL + "/index", "api": fs.URL}
	return opts
}

func TestAnime1_HomeListingGroupsBySeason(t *testing.T) {
	groups, err := NewAnime1(anime1Options(anime1Server(t))).HomeListing(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "2023 秋", groups[0].Name)
	assert.Equal(t, []string{"101", "103"}, []string{groups[0].Items[0].ID, groups[0].Items[1].ID})
	assert.Equal(t, types.ContentItem{ID: "102", Title: "迷宫饭", Status: "1-24", Tag: "字幕组"}, groups[1].Items[0])
}

func TestAnime1_DetailFollowsOlderPages(t *testing.T) {
	d, err := NewAnime1(anime1Options(anime1Server(t))).Detail(context.Background(), "101")
	require.NoError(t, err)
	assert.Equal(t, "葬送的芙莉莲", d.Name)
	require.Len(t, d.PlayLists, 1)
	eps := d.PlayLists[0].Episodes
	require.Len(t, eps, 3)
	assert.Equal(t, types.Episode{ID: "303", Label: "葬送的芙莉莲 [03]", Index: 0}, eps[0])
	assert.Equal(t, []string{"303", "302", "301"}, []string{eps[0].ID, eps[1].ID, eps[2].ID})
	assert.Equal(t, types.Episode{ID: "301", Label: "葬送的芙莉莲 [01]", Index: 2}, eps[2])
	assert.Equal(t, "葬送的芙莉莲 [03]", d.LatestEpisode)
}

func TestAnime1_DetailWithoutPostsHasNoPlayLists(t *testing.T) {
	d, err := NewAnime1(anime1Options(anime1Server(t))).Detail(context.Background(), "104")
	require.NoError(t, err)
	assert.Equal(t, "尚未上映", d.Name)
	assert.Empty(t, d.PlayLists)
	assert.Empty(t, d.LatestEpisode)
}

func TestAnime1_SearchDeduplicatesCategories(t *testing.T) {
	p, err := NewAnime1(anime1Options(anime1Server(t))).Search(context.Background(), "芙莉莲", 1)
	require.NoError(t, err)
	require.Len(t, p.Items, 2)
	assert.Equal(t, "101", p.Items[0].ID)
	assert.Equal(t, "105", p.Items[1].ID)
	assert.False(t, p.HasNext)
}

func TestAnime1_ResolveVideoURL(t *testing.T) {
	fs := anime1Server(t)
	fs.handle("POST /api", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, `{"c":"101","e":"1"}`, r.PostForm.Get("d"))
		for _, c := range []*http.Cookie{{Name: "e", Value: "1700000000"}, {Name: "p", Value: "pp"}, {Name: "h", Value: "hh"}, {Name: "other", Value: "x"}} {
			c.Path = "/"
			http.SetCookie(w, c)
		}
		jsonPage(`{"s":[{"src":"//cdn.example/101/1.mp4","type":"video/mp4"}]}`)(w, r)
	})

	res, err := NewAnime1(anime1Options(fs)).ResolveVideoURL(context.Background(), "101", "301")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.example/101/1.mp4", res.URL)
	assert.Equal(t, "e=1700000000; p=pp; h=hh", res.Headers["Cookie"])
	assert.Equal(t, fs.URL+"/", res.Headers["Referer"])
}

func TestAnime1_ResolveVideoURL_NoPlayer(t *testing.T) {
	fs := anime1Server(t)
	fs.handle("GET /", htmlPage(`<article>removed</article>`))

	_, err := NewAnime1(anime1Options(fs)).ResolveVideoURL(context.Background(), "101", "999")
	assert.True(t, sourceerr.IsKind(err, sourceerr.KindMarkup))
}
