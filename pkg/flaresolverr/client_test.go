package flaresolverr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-source-go/pkg/challenge"
	"media-source-go/pkg/logging"
)

func newSolverServer(t *testing.T, resp Response, inspect func(Request)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "request.get", req.Cmd)
		if inspect != nil {
			inspect(req)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestClient_Get_Success(t *testing.T) {
	log := logging.New("error", false, nil)
	server := newSolverServer(t, Response{
		Status: "ok",
		Solution: Solution{
			URL:      "https://www.czzy.top/",
			Status:   200,
			Response: "<html><body>ok</body></html>",
			Cookies:  []Cookie{{Name: "cf_clearance", Value: "token", Domain: ".czzy.top"}},
		},
	}, func(req Request) {
		assert.Equal(t, "https://www.czzy.top/", req.URL)
		assert.Equal(t, 30000, req.MaxTimeout)
	})
	defer server.Close()

	client := NewClient(server.URL, 30*time.Second, nil, log)
	resp, err := client.Get(context.Background(), "https://www.czzy.top/", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Solution.Cookies, 1)
	assert.Equal(t, "cf_clearance", resp.Solution.Cookies[0].Name)
}

func TestClient_Get_Errors(t *testing.T) {
	log := logging.New("error", false, nil)

	t.Run("solver error status", func(t *testing.T) {
		server := newSolverServer(t, Response{Status: "error", Message: "Cloudflare challenge failed"}, nil)
		defer server.Close()

		_, err := NewClient(server.URL, time.Second, nil, log).Get(context.Background(), "https://example.com", nil)
		require.Error(t, err)
		assert.Equal(t, "FlareSolverr error: Cloudflare challenge failed", err.Error())
	})

	t.Run("http error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := NewClient(server.URL, time.Second, nil, log).Get(context.Background(), "https://example.com", nil)
		assert.Error(t, err)
	})
}

func TestClient_Solve_StoresCookiesInJar(t *testing.T) {
	log := logging.New("error", false, nil)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	target, _ := http.NewRequest(http.MethodGet, "https://anime.example.com/index.html", nil)
	jar.SetCookies(target.URL, []*http.Cookie{{Name: "PHPSESSID", Value: "s1", Path: "/"}})

	server := newSolverServer(t, Response{
		Status: "ok",
		Solution: Solution{
			Status:  200,
			Cookies: []Cookie{{Name: "cf_clearance", Value: "cleared", Path: "/"}},
		},
	}, func(req Request) {
		if assert.Len(t, req.Cookies, 1) {
			assert.Equal(t, "PHPSESSID", req.Cookies[0].Name)
		}
		assert.Equal(t, 5000, req.MaxTimeout)
	})
	defer server.Close()

	client := NewClient(server.URL, time.Minute, jar, log)
	ok := client.Solve(context.Background(), target, challenge.Cloudflare(503, 5*time.Second))
	require.True(t, ok)
	assert.True(t, challenge.HasCookie(jar, target, "cf_clearance"))
}

func TestClient_Solve_MissingCookie(t *testing.T) {
	log := logging.New("error", false, nil)
	jar, _ := cookiejar.New(nil)
	target, _ := http.NewRequest(http.MethodGet, "https://anime.example.com/", nil)

	server := newSolverServer(t, Response{Status: "ok", Solution: Solution{Status: 200}}, nil)
	defer server.Close()

	client := NewClient(server.URL, time.Minute, jar, log)
	assert.False(t, client.Solve(context.Background(), target, challenge.Cloudflare(503, time.Second)))
	assert.False(t, challenge.HasCookie(jar, target, "cf_clearance"))
}

func TestClient_Solve_NotConfigured(t *testing.T) {
	log := logging.New("error", false, nil)
	target, _ := http.NewRequest(http.MethodGet, "https://anime.example.com/", nil)

	client := NewClient("", time.Minute, nil, log)
	assert.False(t, client.IsConfigured())
	assert.False(t, client.Solve(context.Background(), target, challenge.Cloudflare(503, time.Second)))
}

func TestClient_ToHTTPCookies(t *testing.T) {
	log := logging.New("error", false, nil)
	client := NewClient("http://localhost:8191", 30*time.Second, nil, log)

	got := client.ToHTTPCookies([]Cookie{
		{Name: "cf_clearance", Value: "v", Domain: ".example.com", Path: "/", Secure: true, HTTPOnly: true, Expires: 1735689600},
		{Name: "session", Value: "abc123", Domain: "example.com"},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "cf_clearance", got[0].Name)
	assert.True(t, got[0].Secure)
	assert.True(t, got[0].HttpOnly)
	assert.False(t, got[0].Expires.IsZero())
	assert.True(t, got[1].Expires.IsZero())
}
