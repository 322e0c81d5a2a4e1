package files

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/loggw/loggw/internal/config"
	gwerrors "github.com/loggw/loggw/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) (*config.Config, string, string) {
	t.Helper()
	configDir := t.TempDir()
	addonDir := t.TempDir()
	cfg := &config.Config{
		ConfigDir:          configDir,
		AllAddonConfigsDir: addonDir,
		Z2MSlug:            "45df7312_zigbee2mqtt",
	}
	primary := filepath.Join(configDir, "zigbee2mqtt")
	secondary := filepath.Join(addonDir, cfg.Z2MSlug)
	require.NoError(t, os.MkdirAll(primary, 0o755))
	require.NoError(t, os.MkdirAll(secondary, 0o755))
	return cfg, primary, secondary
}

func mustWrite(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestResolvePriorityOrder(t *testing.T) {
	cfg, primary, secondary := testConfig(t)
	mustWrite(t, primary, "configuration.yaml", "from primary")
	mustWrite(t, secondary, "configuration.yaml", "from secondary")

	r := NewResolver(cfg)
	resolved, err := r.Resolve(CategoryZ2M, "configuration.yaml")
	require.NoError(t, err)

	assert.Equal(t, primary, resolved.SourceRoot)
	assert.Equal(t, filepath.Join(primary, "configuration.yaml"), resolved.AbsolutePath)
	assert.Equal(t, "text/yaml; charset=utf-8", resolved.ContentType)
}

func TestResolveFallsBackToSecondRoot(t *testing.T) {
	cfg, _, secondary := testConfig(t)
	mustWrite(t, secondary, "devices.yaml", "devices")

	r := NewResolver(cfg)
	resolved, err := r.Resolve(CategoryZ2M, "devices.yaml")
	require.NoError(t, err)
	assert.Equal(t, secondary, resolved.SourceRoot)
}

func TestResolveAllowedButMissingIsNotFound(t *testing.T) {
	cfg, _, _ := testConfig(t)

	r := NewResolver(cfg)
	_, err := r.Resolve(CategoryZ2M, "groups.yaml")
	assert.True(t, errors.Is(err, gwerrors.ErrNotFound))
}

func TestResolveDisallowedNameIsForbidden(t *testing.T) {
	cfg, primary, _ := testConfig(t)
	// Present on disk but not allowlisted: rejection must not reveal it.
	mustWrite(t, primary, "secrets.yaml", "secret")

	r := NewResolver(cfg)
	_, err := r.Resolve(CategoryZ2M, "secrets.yaml")
	assert.True(t, errors.Is(err, gwerrors.ErrForbidden))
}

func TestResolveTraversalIsForbidden(t *testing.T) {
	cfg, _, _ := testConfig(t)
	r := NewResolver(cfg)

	for _, name := range []string{
		"../secrets.yaml",
		"..",
		"sub/configuration.yaml",
		"..\\configuration.yaml",
		"configuration.yaml\x00",
		"",
	} {
		_, err := r.Resolve(CategoryZ2M, name)
		assert.True(t, errors.Is(err, gwerrors.ErrForbidden), "name %q", name)
	}
}

func TestResolveDatabaseDBContentType(t *testing.T) {
	cfg, primary, _ := testConfig(t)
	mustWrite(t, primary, "database.db", `{"devices":[]}`)

	r := NewResolver(cfg)
	resolved, err := r.Resolve(CategoryZ2M, "database.db")
	require.NoError(t, err)
	assert.Equal(t, "application/json; charset=utf-8", resolved.ContentType)
}

func TestResolveConverter(t *testing.T) {
	cfg, primary, _ := testConfig(t)
	converters := filepath.Join(primary, "external_converters")
	require.NoError(t, os.MkdirAll(converters, 0o755))
	mustWrite(t, converters, "my-device.js", "module.exports = {}")

	r := NewResolver(cfg)
	resolved, err := r.Resolve(CategoryZ2MConverters, "my-device.js")
	require.NoError(t, err)
	assert.Equal(t, "application/javascript; charset=utf-8", resolved.ContentType)
}

func TestResolveConverterRejectsNonJS(t *testing.T) {
	cfg, primary, _ := testConfig(t)
	converters := filepath.Join(primary, "external_converters")
	require.NoError(t, os.MkdirAll(converters, 0o755))
	mustWrite(t, converters, "notes.txt", "not js")

	r := NewResolver(cfg)
	_, err := r.Resolve(CategoryZ2MConverters, "notes.txt")
	assert.True(t, errors.Is(err, gwerrors.ErrForbidden))
}

func TestResolveUnknownCategory(t *testing.T) {
	cfg, _, _ := testConfig(t)
	r := NewResolver(cfg)

	_, err := r.Resolve("nope", "configuration.yaml")
	assert.True(t, errors.Is(err, gwerrors.ErrNotFound))
}

func TestListExistenceFiltered(t *testing.T) {
	cfg, primary, secondary := testConfig(t)
	mustWrite(t, primary, "configuration.yaml", "cfg")
	mustWrite(t, secondary, "devices.yaml", "devices")
	// Not allowlisted, must never appear.
	mustWrite(t, primary, "secrets.yaml", "secret")

	r := NewResolver(cfg)
	listing, err := r.List(CategoryZ2M)
	require.NoError(t, err)

	require.Len(t, listing.Locations, 2)
	require.Len(t, listing.Locations[0].Files, 1)
	assert.Equal(t, "configuration.yaml", listing.Locations[0].Files[0].Name)
	assert.Equal(t, primary, listing.Locations[0].Base)
	require.Len(t, listing.Locations[1].Files, 1)
	assert.Equal(t, "devices.yaml", listing.Locations[1].Files[0].Name)
}

func TestListEmptyRootsOmitted(t *testing.T) {
	cfg, _, _ := testConfig(t)
	r := NewResolver(cfg)

	listing, err := r.List(CategoryZ2M)
	require.NoError(t, err)
	assert.Empty(t, listing.Locations)
}

func TestListConverters(t *testing.T) {
	cfg, primary, _ := testConfig(t)
	converters := filepath.Join(primary, "external_converters")
	require.NoError(t, os.MkdirAll(converters, 0o755))
	mustWrite(t, converters, "b.js", "b")
	mustWrite(t, converters, "a.js", "a")
	mustWrite(t, converters, "ignore.txt", "x")

	r := NewResolver(cfg)
	listing, err := r.List(CategoryZ2MConverters)
	require.NoError(t, err)

	require.Len(t, listing.Locations, 1)
	require.Len(t, listing.Locations[0].Files, 2)
	assert.Equal(t, "a.js", listing.Locations[0].Files[0].Name)
	assert.Equal(t, "b.js", listing.Locations[0].Files[1].Name)
}
