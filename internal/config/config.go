package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelvins/geocoder"

	"github.com/nmoreale/lujan-meteo/internal/meteo"
	"github.com/nmoreale/lujan-meteo/internal/store"
)

// Config carries every setting the service needs. Components receive it (or
// the relevant slice of it) at construction; there is no ambient state.
type Config struct {
	Port string

	// DataDir holds the per-date snapshot logs and the manifest.
	DataDir string

	// LedgerFile is the historical CSV path; LedgerMode selects append or
	// rebuild lifecycle.
	LedgerFile string
	LedgerMode store.LedgerMode

	WundergroundAPIKey string
	GoogleAPIKey       string

	// ProviderTimeout bounds each outbound provider call.
	ProviderTimeout time.Duration

	// FetchInterval controls the periodic capture job; zero disables it
	// (captures then only happen through the HTTP trigger endpoints).
	FetchInterval time.Duration

	// Sites to sample, one per basin.
	Sites []meteo.Site
}

// defaultSites is the Luján river basin table: sampling point and
// Wunderground station per catchment.
func defaultSites() []meteo.Site {
	return []meteo.Site{
		{Basin: meteo.BasinAlta, Name: "Pilar", Lat: -34.455, Lon: -58.859, StationID: "IPILAR8"},
		{Basin: meteo.BasinMedia, Name: "Maschwitz", Lat: -34.386, Lon: -58.767, StationID: "IINGEN19"},
		{Basin: meteo.BasinBaja, Name: "Escobar", Lat: -34.336, Lon: -58.715, StationID: "IINGEN39"},
	}
}

// Load reads configuration from environment with sensible defaults.
func Load() (*Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := &Config{
		Port:               getenvDefault("PORT", "8080"),
		DataDir:            getenvDefault("DATA_DIR", "DATA"),
		WundergroundAPIKey: os.Getenv("WUNDERGROUND_API_KEY"),
		GoogleAPIKey:       os.Getenv("GOOGLE_API_KEY"),
	}

	cfg.LedgerFile = getenvDefault("LEDGER_FILE", filepath.Join(cfg.DataDir, "historico_meteo.csv"))

	mode, err := store.ParseLedgerMode(getenvDefault("LEDGER_MODE", string(store.LedgerAppend)))
	if err != nil {
		return nil, fmt.Errorf("invalid LEDGER_MODE: %w", err)
	}
	cfg.LedgerMode = mode

	timeoutStr := getenvDefault("PROVIDER_TIMEOUT", "5s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_TIMEOUT: %w", err)
	}
	cfg.ProviderTimeout = timeout

	intervalStr := getenvDefault("FETCH_INTERVAL", "0")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid FETCH_INTERVAL: %w", err)
	}
	cfg.FetchInterval = interval

	sites, err := loadSites()
	if err != nil {
		return nil, err
	}
	cfg.Sites = sites

	return cfg, nil
}

// loadSites starts from the default basin table and applies per-basin env
// overrides (BASIN_ALTA_NAME, BASIN_ALTA_LAT, BASIN_ALTA_LON,
// BASIN_ALTA_STATION and likewise for MEDIA and BAJA). Overriding the name
// without coordinates clears them, so they can be geocoded at startup.
func loadSites() ([]meteo.Site, error) {
	sites := defaultSites()

	for i := range sites {
		prefix := "BASIN_" + strings.ToUpper(string(sites[i].Basin)) + "_"

		if name := os.Getenv(prefix + "NAME"); name != "" {
			sites[i].Name = name
			sites[i].Lat = 0
			sites[i].Lon = 0
		}
		if station := os.Getenv(prefix + "STATION"); station != "" {
			sites[i].StationID = station
		}

		latStr := os.Getenv(prefix + "LAT")
		lonStr := os.Getenv(prefix + "LON")
		if latStr != "" || lonStr != "" {
			lat, err := strconv.ParseFloat(latStr, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid %sLAT: %q", prefix, latStr)
			}
			lon, err := strconv.ParseFloat(lonStr, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid %sLON: %q", prefix, lonStr)
			}
			sites[i].Lat = lat
			sites[i].Lon = lon
		}
	}

	return sites, nil
}

// ResolveCoordinates fills in missing site coordinates through the Google
// geocoding API. It is a no-op when every site already has coordinates.
func (c *Config) ResolveCoordinates() error {
	for i := range c.Sites {
		site := &c.Sites[i]
		if site.Lat != 0 || site.Lon != 0 {
			continue
		}
		if c.GoogleAPIKey == "" {
			return fmt.Errorf("site %s has no coordinates and GOOGLE_API_KEY is not set", site.Name)
		}

		geocoder.ApiKey = c.GoogleAPIKey
		location, err := geocoder.Geocoding(geocoder.Address{
			City:    site.Name,
			Country: "Argentina",
		})
		if err != nil {
			return fmt.Errorf("geocoding %s: %w", site.Name, err)
		}
		site.Lat = location.Latitude
		site.Lon = location.Longitude
	}
	return nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c *Config) ListenAddr() string {
	return ":" + c.Port
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
