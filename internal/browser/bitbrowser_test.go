package browser

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehryarbajwa/regpool/pkg/models"
)

func newBitBrowserServer(t *testing.T, handler func(path string, body map[string]any) string) *BitBrowser {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(handler(r.URL.Path, body)))
	}))
	t.Cleanup(srv.Close)
	return NewBitBrowser(srv.URL, time.Second)
}

func TestBitBrowserLifecycle(t *testing.T) {
	var updateBody map[string]any
	bb := newBitBrowserServer(t, func(path string, body map[string]any) string {
		switch path {
		case "/browser/update":
			updateBody = body
			return `{"success":true,"data":{"id":"abc"}}`
		case "/browser/open":
			return `{"success":true,"data":{"ws":"ws://127.0.0.1:9222/devtools/browser/x"}}`
		case "/browser/detail":
			return `{"success":true,"data":{"id":"abc","name":"android_worker","seq":42}}`
		case "/browser/close", "/windowbounds/flexable":
			return `{"success":true}`
		}
		return `{"success":false,"msg":"unknown"}`
	})
	ctx := context.Background()

	id, err := bb.Create(ctx, models.CreateBrowserRequest{
		Proxy: &models.ProxyConfig{Host: "1.2.3.4", Port: 1080, User: "u", Password: "p"},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", id)
	assert.Equal(t, "android_worker", updateBody["name"])
	assert.Equal(t, "socks5", updateBody["proxyType"])
	assert.Equal(t, float64(1080), updateBody["port"])
	fp := updateBody["browserFingerPrint"].(map[string]any)
	assert.Equal(t, "Android", fp["ostype"])

	ws, err := bb.Open(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/x", ws)

	d, err := bb.Detail(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 42, d.Seq)

	require.NoError(t, bb.Arrange(ctx, 42))
	require.NoError(t, bb.Close(ctx, id))
}

func TestBitBrowserWithoutProxyOmitsProxyFields(t *testing.T) {
	var updateBody map[string]any
	bb := newBitBrowserServer(t, func(path string, body map[string]any) string {
		updateBody = body
		return `{"success":true,"data":{"id":"abc"}}`
	})

	_, err := bb.Create(context.Background(), models.CreateBrowserRequest{})
	require.NoError(t, err)
	_, has := updateBody["proxyType"]
	assert.False(t, has)
}

func TestBitBrowserRemoteFailure(t *testing.T) {
	bb := newBitBrowserServer(t, func(path string, body map[string]any) string {
		return `{"success":false,"msg":"window limit reached"}`
	})

	_, err := bb.Create(context.Background(), models.CreateBrowserRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRemote))
	assert.Contains(t, err.Error(), "window limit reached")
}

func TestBitBrowserUnreachable(t *testing.T) {
	bb := NewBitBrowser("http://127.0.0.1:1", time.Second)
	_, err := bb.Open(context.Background(), "abc")
	require.Error(t, err)
}

func TestParseProxy(t *testing.T) {
	p, err := ParseProxy("10.0.0.1:1080:user:pass")
	require.NoError(t, err)
	assert.Equal(t, &models.ProxyConfig{Host: "10.0.0.1", Port: 1080, User: "user", Password: "pass"}, p)

	_, err = ParseProxy("10.0.0.1:1080")
	require.Error(t, err)
	_, err = ParseProxy("10.0.0.1:port:user:pass")
	require.Error(t, err)
}

func TestFetchProxy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("10.0.0.2:2080:a:b\n"))
	}))
	defer srv.Close()

	p, err := FetchProxy(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 2080, p.Port)
}
