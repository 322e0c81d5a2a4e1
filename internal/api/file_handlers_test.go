package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/loggw/loggw/internal/files"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupZ2MDir(t *testing.T, configDir string) string {
	t.Helper()
	dir := filepath.Join(configDir, "zigbee2mqtt")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return dir
}

func TestFileFetch(t *testing.T) {
	router, cfg := testRouter(t, newFakeSupervisor())
	dir := setupZ2MDir(t, cfg.ConfigDir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configuration.yaml"), []byte("mqtt: {}\n"), 0o644))

	rec := doRequest(router, http.MethodGet, "/files/z2m/configuration.yaml", testToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mqtt: {}\n", rec.Body.String())
	assert.Equal(t, "text/yaml; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, filepath.Join(dir, "configuration.yaml"), rec.Header().Get(HeaderPath))
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestFileFetchDownloadOnlyChangesDisposition(t *testing.T) {
	router, cfg := testRouter(t, newFakeSupervisor())
	dir := setupZ2MDir(t, cfg.ConfigDir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "devices.yaml"), []byte("devices: {}\n"), 0o644))

	plain := doRequest(router, http.MethodGet, "/files/z2m/devices.yaml", testToken)
	download := doRequest(router, http.MethodGet, "/files/z2m/devices.yaml?download=true", testToken)

	require.Equal(t, http.StatusOK, plain.Code)
	require.Equal(t, http.StatusOK, download.Code)
	assert.Equal(t, plain.Body.String(), download.Body.String())
	assert.Contains(t, download.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, download.Header().Get("Content-Disposition"), "devices.yaml")
}

func TestFileFetchMissingIs404(t *testing.T) {
	router, _ := testRouter(t, newFakeSupervisor())

	rec := doRequest(router, http.MethodGet, "/files/z2m/groups.yaml", testToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"file_not_found"}`, rec.Body.String())
}

func TestFileFetchDisallowedIs403(t *testing.T) {
	router, cfg := testRouter(t, newFakeSupervisor())
	dir := setupZ2MDir(t, cfg.ConfigDir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secrets.yaml"), []byte("password: hunter2\n"), 0o644))

	rec := doRequest(router, http.MethodGet, "/files/z2m/secrets.yaml", testToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"file_not_allowed"}`, rec.Body.String())
}

func TestFileInlineBodyCapped(t *testing.T) {
	router, cfg := testRouter(t, newFakeSupervisor())
	dir := setupZ2MDir(t, cfg.ConfigDir)
	oversized := bytes.Repeat([]byte("x"), maxInlineFileBytes+100)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "database.db"), oversized, 0o644))

	inline := doRequest(router, http.MethodGet, "/files/z2m/database.db", testToken)
	require.Equal(t, http.StatusOK, inline.Code)
	assert.Equal(t, maxInlineFileBytes, inline.Body.Len())
	assert.Equal(t, "true", inline.Header().Get(HeaderTruncated))

	download := doRequest(router, http.MethodGet, "/files/z2m/database.db?download=1", testToken)
	require.Equal(t, http.StatusOK, download.Code)
	assert.Equal(t, len(oversized), download.Body.Len())
	assert.Empty(t, download.Header().Get(HeaderTruncated))
}

func TestFileSmallInlineBodyNotMarkedTruncated(t *testing.T) {
	router, cfg := testRouter(t, newFakeSupervisor())
	dir := setupZ2MDir(t, cfg.ConfigDir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "coordinator_backup.json"), []byte("{}"), 0o644))

	rec := doRequest(router, http.MethodGet, "/files/z2m/coordinator_backup.json", testToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(HeaderTruncated))
}

func TestFileTraversalIsForbidden(t *testing.T) {
	router, cfg := testRouter(t, newFakeSupervisor())
	setupZ2MDir(t, cfg.ConfigDir)

	for _, target := range []string{
		"/files/z2m/..%2Fsecrets.yaml",
		"/files/z2m/../../etc/passwd",
		"/files/z2m/..%2F..%2Fetc%2Fpasswd",
		"/files/z2m/%2e%2e%2fsecrets.yaml",
		"/files/z2m/external_converters/..%2F..%2Fconfiguration.yaml",
	} {
		rec := doRequest(router, http.MethodGet, target, testToken)
		assert.Equal(t, http.StatusForbidden, rec.Code, "target %s", target)
	}
}

func TestFileListing(t *testing.T) {
	router, cfg := testRouter(t, newFakeSupervisor())
	dir := setupZ2MDir(t, cfg.ConfigDir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configuration.yaml"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "database.db"), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unlisted.txt"), []byte("x"), 0o644))

	rec := doRequest(router, http.MethodGet, "/files/z2m", testToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing files.Listing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Len(t, listing.Locations, 1)
	require.Len(t, listing.Locations[0].Files, 2)
	assert.Equal(t, "configuration.yaml", listing.Locations[0].Files[0].Name)
	assert.Equal(t, "database.db", listing.Locations[0].Files[1].Name)
}

func TestFileListingTrailingSlash(t *testing.T) {
	router, _ := testRouter(t, newFakeSupervisor())

	rec := doRequest(router, http.MethodGet, "/files/z2m/", testToken)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConverterListingAndFetch(t *testing.T) {
	router, cfg := testRouter(t, newFakeSupervisor())
	dir := setupZ2MDir(t, cfg.ConfigDir)
	converters := filepath.Join(dir, "external_converters")
	require.NoError(t, os.MkdirAll(converters, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(converters, "lamp.js"), []byte("module.exports = {};\n"), 0o644))

	list := doRequest(router, http.MethodGet, "/files/z2m/external_converters", testToken)
	require.Equal(t, http.StatusOK, list.Code)

	var listing files.Listing
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &listing))
	require.Len(t, listing.Locations, 1)
	require.Len(t, listing.Locations[0].Files, 1)
	assert.Equal(t, "lamp.js", listing.Locations[0].Files[0].Name)

	fetch := doRequest(router, http.MethodGet, "/files/z2m/external_converters/lamp.js", testToken)
	require.Equal(t, http.StatusOK, fetch.Code)
	assert.Equal(t, "module.exports = {};\n", fetch.Body.String())
	assert.Equal(t, "application/javascript; charset=utf-8", fetch.Header().Get("Content-Type"))
	assert.NotEmpty(t, fetch.Header().Get(HeaderPath))
}

func TestConverterFetchNonJSIsForbidden(t *testing.T) {
	router, _ := testRouter(t, newFakeSupervisor())

	rec := doRequest(router, http.MethodGet, "/files/z2m/external_converters/notes.txt", testToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestFilesUnknownShapeIs404(t *testing.T) {
	router, _ := testRouter(t, newFakeSupervisor())

	for _, target := range []string{
		"/files/other",
		"/files/z2m/external_converters/sub/deep.js",
	} {
		rec := doRequest(router, http.MethodGet, target, testToken)
		assert.Equal(t, http.StatusNotFound, rec.Code, "target %s", target)
	}
}

func TestFileIdempotentFetch(t *testing.T) {
	router, cfg := testRouter(t, newFakeSupervisor())
	dir := setupZ2MDir(t, cfg.ConfigDir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "groups.yaml"), []byte("groups: {}\n"), 0o644))

	first := doRequest(router, http.MethodGet, "/files/z2m/groups.yaml", testToken)
	second := doRequest(router, http.MethodGet, "/files/z2m/groups.yaml", testToken)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
}
