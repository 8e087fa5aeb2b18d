package sources

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"media-source-go/pkg/config"
	"media-source-go/pkg/crypto"
	"media-source-go/pkg/httpclient"
	"media-source-go/pkg/logging"
)

// fixtureServer serves canned pages keyed by "METHOD /path" or "/path".
type fixtureServer struct {
	*httptest.Server
	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	hits   map[string]int
}

func newFixtureServer(t *testing.T) *fixtureServer {
	t.Helper()
	fs := &fixtureServer{routes: make(map[string]http.HandlerFunc), hits: make(map[string]int)}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		h, ok := fs.routes[r.Method+" "+r.URL.Path]
		if !ok {
			h, ok = fs.routes[r.URL.Path]
		}
		fs.hits[r.URL.Path]++
		fs.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fixtureServer) handle(pattern string, h http.HandlerFunc) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.routes[pattern] = h
}

func (fs *fixtureServer) page(pattern, body string) {
	fs.handle(pattern, htmlPage(body))
}

func (fs *fixtureServer) hitCount(path string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.hits[path]
}

func htmlPage(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	}
}

func jsonPage(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func testOptions(fs *fixtureServer) Options {
	return Options{
		Client:  httpclient.New(&config.Config{}, logging.Discard()),
		Log:     logging.Discard(),
		BaseURL: fs.URL,
	}
}

func mustEncrypt(t *testing.T, plain, key, iv string) string {
	t.Helper()
	ct, err := crypto.EncryptCBC([]byte(plain), []byte(key), []byte(iv))
	require.NoError(t, err)
	return ct
}

// stuiDetail renders a stui detail page with one tab per playlist.
func stuiDetail(name string, lists map[string][]string, order []string) string {
	var tabs, groups strings.Builder
	for _, n := range order {
		tabs.WriteString(`<li><a href="#">` + n + `</a></li>`)
		groups.WriteString(`<ul class="stui-content__playlist">`)
		for _, ep := range lists[n] {
			groups.WriteString(ep)
		}
		groups.WriteString(`</ul>`)
	}
	return `<html><body>
<div class="stui-content__thumb"><img data-original="/cover/1.jpg"></div>
<div class="stui-content__detail"><h1 class="title">` + name + `</h1>
<p class="data">类型：动画 地区：日本</p><p class="data">年份：2024</p><span class="latest">更新至08集</span></div>
<div class="detail-content">简介内容</div>
<ul class="playlist-tab">` + tabs.String() + `</ul>` + groups.String() + `
<div class="stui-related"><ul class="stui-vodlist">
<li><a class="stui-vodlist__thumb" href="/v/rel1.html" title="Related One" data-original="/r1.jpg"></a></li>
</ul></div>
</body></html>`
}

// moduleDetail renders a module theme detail page.
func moduleDetail(name string, order []string, lists map[string][]string) string {
	var tabs, groups strings.Builder
	for _, n := range order {
		tabs.WriteString(`<div class="module-tab-item"><span>` + n + `</span></div>`)
		groups.WriteString(`<div class="module-play-list">`)
		for _, ep := range lists[n] {
			groups.WriteString(ep)
		}
		groups.WriteString(`</div>`)
	}
	return `<html><body>
<div class="module-info-poster"><img data-original="https://img.example/p.jpg"></div>
<div class="module-info-heading"><h1>` + name + `</h1></div>
<div class="module-info-item">导演：某人</div>
<div class="module-info-introduction-content"> 一段 简介 </div>
` + tabs.String() + groups.String() + `
</body></html>`
}
