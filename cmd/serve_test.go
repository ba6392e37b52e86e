package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gemeenten.html"), []byte("<html>gemeenten</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "musea.html"), []byte("<html>musea</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	return dir
}

func TestHealthEndpoint(t *testing.T) {
	r := newMapRouter(t.TempDir())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestListMapsEndpoint(t *testing.T) {
	r := newMapRouter(mapDir(t))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/maps", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var maps []mapInfo
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&maps))
	require.Len(t, maps, 2)
	assert.Equal(t, "gemeenten", maps[0].Name)
	assert.Equal(t, "/maps/gemeenten.html", maps[0].URL)
	assert.Equal(t, "musea", maps[1].Name)
}

func TestListMapsEndpoint_MissingDir(t *testing.T) {
	r := newMapRouter(filepath.Join(t.TempDir(), "missing"))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/maps", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestServeMapFile(t *testing.T) {
	r := newMapRouter(mapDir(t))

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/maps/musea.html", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "musea")

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/maps/absent.html", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCORSHeaders(t *testing.T) {
	r := newMapRouter(mapDir(t))

	req := httptest.NewRequest(http.MethodGet, "/api/maps", nil)
	req.Header.Set("Origin", "https://example.org")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRootRedirects(t *testing.T) {
	r := newMapRouter(t.TempDir())
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/api/maps", rr.Header().Get("Location"))
}
