package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmoreale/lujan-meteo/internal/meteo"
	"github.com/nmoreale/lujan-meteo/internal/store"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "DATA", cfg.DataDir)
	assert.Equal(t, store.LedgerAppend, cfg.LedgerMode)
	assert.Equal(t, 5*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, time.Duration(0), cfg.FetchInterval)

	require.Len(t, cfg.Sites, 3)
	assert.Equal(t, meteo.BasinAlta, cfg.Sites[0].Basin)
	assert.Equal(t, "Pilar", cfg.Sites[0].Name)
	assert.Equal(t, "IPILAR8", cfg.Sites[0].StationID)
	assert.Equal(t, meteo.BasinMedia, cfg.Sites[1].Basin)
	assert.Equal(t, meteo.BasinBaja, cfg.Sites[2].Basin)
}

func TestLoadLedgerMode(t *testing.T) {
	t.Setenv("LEDGER_MODE", "rebuild")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, store.LedgerRebuild, cfg.LedgerMode)
}

func TestLoadRejectsInvalidLedgerMode(t *testing.T) {
	t.Setenv("LEDGER_MODE", "overwrite")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEDGER_MODE")
}

func TestLoadSiteOverrides(t *testing.T) {
	t.Setenv("BASIN_ALTA_STATION", "IPILAR99")
	t.Setenv("BASIN_MEDIA_LAT", "-34.4")
	t.Setenv("BASIN_MEDIA_LON", "-58.8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "IPILAR99", cfg.Sites[0].StationID)
	assert.Equal(t, -34.4, cfg.Sites[1].Lat)
	assert.Equal(t, -58.8, cfg.Sites[1].Lon)
}

func TestLoadNameOverrideClearsCoordinates(t *testing.T) {
	t.Setenv("BASIN_BAJA_NAME", "Campana")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Campana", cfg.Sites[2].Name)
	assert.Zero(t, cfg.Sites[2].Lat)
	assert.Zero(t, cfg.Sites[2].Lon)
}

func TestResolveCoordinatesRequiresKeyForUnknownSites(t *testing.T) {
	cfg := &Config{
		Sites: []meteo.Site{{Basin: meteo.BasinAlta, Name: "Pilar"}},
	}

	err := cfg.ResolveCoordinates()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_API_KEY")
}

func TestResolveCoordinatesNoopWhenAllSet(t *testing.T) {
	cfg := &Config{
		Sites: []meteo.Site{{Basin: meteo.BasinAlta, Name: "Pilar", Lat: -34.455, Lon: -58.859}},
	}

	require.NoError(t, cfg.ResolveCoordinates())
	assert.Equal(t, -34.455, cfg.Sites[0].Lat)
}
