package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-source-go/pkg/appctx"
	"media-source-go/pkg/category"
	"media-source-go/pkg/config"
	"media-source-go/pkg/logging"
	"media-source-go/pkg/registry"
	"media-source-go/pkg/services"
	"media-source-go/pkg/sourceerr"
	"media-source-go/pkg/sources/sourcetest"
	"media-source-go/pkg/types"
)

func newTestMux(t *testing.T, srcs ...*sourcetest.Fake) *http.ServeMux {
	t.Helper()
	log := logging.New("debug", false, io.Discard)
	reg := registry.NewSourceRegistry(log)
	for _, s := range srcs {
		require.NoError(t, reg.Register(s))
	}
	ctx := appctx.New(&config.Config{}, log).WithCatalog(services.NewCatalog(reg, log))
	mux := http.NewServeMux()
	NewHandlers(ctx).RegisterRoutes(mux)
	return mux
}

func get(t *testing.T, mux http.Handler, target string, out any) int {
	t.Helper()
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

func demoSource() *sourcetest.Fake {
	f := sourcetest.New("demo")
	f.SourceName = "Demo"
	f.CanSearch = true
	f.CanCategory = true
	f.HomeFn = func(context.Context) ([]types.NamedGroup[types.ContentItem], error) {
		return []types.NamedGroup[types.ContentItem]{{Name: "热门", Items: sourcetest.Items("h", 2)}}, nil
	}
	f.DetailFn = func(_ context.Context, id string) (*types.ContentDetail, error) {
		if id == "broken" {
			return nil, sourceerr.Markup("demo", "detail title")
		}
		return &types.ContentDetail{ID: id, Name: "Title " + id, PlayLists: []types.PlayList{{Name: "A", Default: true}}}, nil
	}
	f.SearchFn = func(_ context.Context, kw string, page int) (*types.Page[types.ContentItem], error) {
		return &types.Page[types.ContentItem]{Items: sourcetest.Items(kw, 1), Page: page, HasNext: page < 3}, nil
	}
	f.GroupsFn = func(context.Context) ([]types.CategoryGroup, error) {
		return []types.CategoryGroup{
			category.Static("type", "类型", category.Opt("电影", "1"), category.Opt("剧集", "2")),
			category.Dynamic("class", "分类", []string{"type"}, func(_ context.Context, sel types.CategoryQuery) ([]types.CategoryOption, error) {
				return []types.CategoryOption{category.Opt("全部", ""), category.Opt("sub", sel["type"]+"0")}, nil
			}),
		}, nil
	}
	f.QueryFn = func(_ context.Context, q types.CategoryQuery, page int) (*types.Page[types.ContentItem], error) {
		return &types.Page[types.ContentItem]{Items: sourcetest.Items(q["type"]+"-"+q["class"]+"-", 1), Page: page}, nil
	}
	f.ResolveFn = func(_ context.Context, content, ep string) (*types.VideoURLResult, error) {
		if ep == "down" {
			return nil, sourceerr.Network("demo", "https://demo/x", 503, nil)
		}
		return &types.VideoURLResult{URL: "https://cdn/" + content + "/" + ep + ".m3u8", Headers: map[string]string{"Referer": "https://demo/"}}, nil
	}
	return f
}

func TestHandlers_Sources(t *testing.T) {
	mux := newTestMux(t, demoSource(), sourcetest.New("bare"))

	var infos []types.SourceInfo
	require.Equal(t, http.StatusOK, get(t, mux, "/api/sources", &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, types.SourceInfo{ID: "demo", Name: "Demo", Capabilities: types.Capabilities{Search: true, Category: true}}, infos[0])

	var info map[string]any
	require.Equal(t, http.StatusOK, get(t, mux, "/api/info", &info))
	assert.Equal(t, float64(2), info["sources"])

	assert.Equal(t, http.StatusNotFound, get(t, mux, "/api/sources/nope", nil))
}

func TestHandlers_HomeAndDetail(t *testing.T) {
	mux := newTestMux(t, demoSource())

	var home []types.NamedGroup[types.ContentItem]
	require.Equal(t, http.StatusOK, get(t, mux, "/api/sources/demo/home", &home))
	assert.Equal(t, "热门", home[0].Name)

	var d types.ContentDetail
	require.Equal(t, http.StatusOK, get(t, mux, "/api/sources/demo/detail?id=42", &d))
	assert.Equal(t, "Title 42", d.Name)

	assert.Equal(t, http.StatusBadRequest, get(t, mux, "/api/sources/demo/detail", nil))

	var e map[string]string
	assert.Equal(t, http.StatusBadGateway, get(t, mux, "/api/sources/demo/detail?id=broken", &e))
	assert.Contains(t, e["error"], "expected detail title")
}

func TestHandlers_SearchReturnsPageKeys(t *testing.T) {
	mux := newTestMux(t, demoSource())

	var res struct {
		Items   []types.ContentItem `json:"items"`
		PrevKey *int                `json:"prev_key"`
		NextKey *int                `json:"next_key"`
	}
	require.Equal(t, http.StatusOK, get(t, mux, "/api/sources/demo/search?q=kw&page=2", &res))
	assert.Equal(t, "kw0", res.Items[0].ID)
	require.NotNil(t, res.PrevKey)
	require.NotNil(t, res.NextKey)
	assert.Equal(t, 1, *res.PrevKey)
	assert.Equal(t, 3, *res.NextKey)

	assert.Equal(t, http.StatusBadRequest, get(t, mux, "/api/sources/demo/search?q=", nil))
}

func TestHandlers_UnsupportedIs501(t *testing.T) {
	mux := newTestMux(t, demoSource())

	assert.Equal(t, http.StatusNotImplemented, get(t, mux, "/api/sources/demo/timeline", nil))
}

func TestHandlers_Categories(t *testing.T) {
	mux := newTestMux(t, demoSource())

	var groups []types.CategoryGroup
	require.Equal(t, http.StatusOK, get(t, mux, "/api/sources/demo/categories", &groups))
	require.Len(t, groups, 2)
	assert.Equal(t, "1", groups[0].Default)
	assert.Equal(t, []string{"type"}, groups[1].DependsOn)
	assert.Empty(t, groups[1].Options)

	var opts []types.CategoryOption
	require.Equal(t, http.StatusOK, get(t, mux, "/api/sources/demo/categories/class/options?type=2", &opts))
	assert.Equal(t, "20", opts[1].Value)

	assert.Equal(t, http.StatusBadRequest, get(t, mux, "/api/sources/demo/categories/class/options", nil))
	assert.Equal(t, http.StatusNotFound, get(t, mux, "/api/sources/demo/categories/nope/options", nil))

	var page struct {
		Items []types.ContentItem `json:"items"`
	}
	require.Equal(t, http.StatusOK, get(t, mux, "/api/sources/demo/category?class=10&page=1&api_password=x", &page))
	assert.Equal(t, "1-10-0", page.Items[0].ID)
}

func TestHandlers_Video(t *testing.T) {
	mux := newTestMux(t, demoSource())

	var res types.VideoURLResult
	require.Equal(t, http.StatusOK, get(t, mux, "/api/sources/demo/video?content=c&episode=e", &res))
	assert.Equal(t, "https://cdn/c/e.m3u8", res.URL)
	assert.Equal(t, "https://demo/", res.Headers["Referer"])

	assert.Equal(t, http.StatusBadRequest, get(t, mux, "/api/sources/demo/video?content=c", nil))
	assert.Equal(t, http.StatusBadGateway, get(t, mux, "/api/sources/demo/video?content=c&episode=down", nil))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{sourceerr.UnknownSource("x"), http.StatusNotFound},
		{sourceerr.Unsupported("x", "search"), http.StatusNotImplemented},
		{sourceerr.Markup("x", "y"), http.StatusBadGateway},
		{sourceerr.Decode("x", "y", nil), http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", sourceerr.Network("x", "u", 500, nil)), http.StatusBadGateway},
		{fmt.Errorf("x: %w", services.ErrUnknownGroup), http.StatusNotFound},
		{fmt.Errorf("x: %w", category.ErrDependencyUnselected), http.StatusBadRequest},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
