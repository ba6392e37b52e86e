package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheme(t *testing.T) {
	tests := map[string]string{
		"https://service.pdok.nl/wfs": "https",
		"HTTP://example.com":          "http",
		"ftp://ftp.example.com/a.zip": "ftp",
		"file:///tmp/a.geojson":       "file",
		"/tmp/a.geojson":              "",
		"data/gemeenten.shp":          "",
		`C:\data\gemeenten.shp`:       "",
	}
	for ref, want := range tests {
		assert.Equal(t, want, Scheme(ref), ref)
	}
}

func TestLocalPath(t *testing.T) {
	assert.Equal(t, "/tmp/a.geojson", LocalPath("file:///tmp/a.geojson"))
	assert.Equal(t, "rel/a.geojson", LocalPath("rel/a.geojson"))
}

func TestRouter_OpenLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layer.geojson")
	require.NoError(t, os.WriteFile(path, []byte("local"), 0o644))

	rc, err := NewRouter(nil, nil).Open(context.Background(), path)
	require.NoError(t, err)
	defer rc.Close() //nolint:errcheck
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "local", string(data))
}

func TestRouter_OpenHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("remote"))
	}))
	defer srv.Close()

	r := NewRouter(newTestFetcher(1), nil)
	dest := filepath.Join(t.TempDir(), "copy")
	n, err := r.Fetch(context.Background(), srv.URL+"/layer", dest)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
}

func TestRouter_MissingFetcher(t *testing.T) {
	r := NewRouter(nil, nil)
	_, err := r.Open(context.Background(), "https://example.com/a")
	require.Error(t, err)
	_, err = r.Open(context.Background(), "ftp://example.com/a")
	require.Error(t, err)
	_, err = r.Open(context.Background(), "gopher://example.com/a")
	require.Error(t, err)
}

func TestRouter_MissingLocalFile(t *testing.T) {
	_, err := NewRouter(nil, nil).Open(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
