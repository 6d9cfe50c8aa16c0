package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiazeyu1987/hospitalscan/internal/fetch"
	"github.com/jiazeyu1987/hospitalscan/internal/logger"
)

func newFetcher() *fetch.PageFetcher {
	cfg := fetch.DefaultConfig()
	cfg.RateLimit = 0
	return fetch.New(cfg, logger.NewNoOp())
}

func TestFetchReturnsBody(t *testing.T) {
	var gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAgent = r.UserAgent()
		w.Write([]byte("<html><body>招标公告</body></html>"))
	}))
	defer server.Close()

	body, err := newFetcher().Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, body, "招标公告")
	assert.Contains(t, gotAgent, "Mozilla/5.0")
}

func TestFetchErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newFetcher().Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchUnreachableHost(t *testing.T) {
	_, err := newFetcher().Fetch(context.Background(), "http://127.0.0.1:1/nothing")
	require.Error(t, err)
}

func TestFetchRepeatedURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok page content"))
	}))
	defer server.Close()

	f := newFetcher()
	for range 2 {
		body, err := f.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, "ok page content", body)
	}
}
