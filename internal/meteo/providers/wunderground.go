package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nmoreale/lujan-meteo/internal/meteo"
)

// WundergroundProvider implements the meteo.Provider interface for the
// Weather Underground personal weather station API.
type WundergroundProvider struct {
	name    meteo.Service
	apiKey  string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewWundergroundProvider(client *http.Client, apiKey string) *WundergroundProvider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "wunderground",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &WundergroundProvider{
		name:    meteo.ServiceWunderground,
		apiKey:  apiKey,
		baseURL: "https://api.weather.com/v2/pws/observations/current",
		client:  client,
		circuit: cb,
	}
}

func (p *WundergroundProvider) Name() meteo.Service {
	return p.name
}

func (p *WundergroundProvider) Fetch(ctx context.Context, site meteo.Site) (meteo.Reading, error) {
	if p.apiKey == "" {
		return meteo.Reading{}, fmt.Errorf("wunderground api key is not configured")
	}
	if site.StationID == "" {
		return meteo.Reading{}, fmt.Errorf("no wunderground station configured for basin %s", site.Basin)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("stationId", site.StationID)
		values.Set("format", "json")
		values.Set("units", "m")
		values.Set("apiKey", p.apiKey)

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.client, p.circuit, buildRequest)
	if err != nil {
		return meteo.Reading{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Observations []struct {
			Metric struct {
				Temp        *float64 `json:"temp"`
				PrecipTotal *float64 `json:"precipTotal"`
				PrecipRate  *float64 `json:"precipRate"`
			} `json:"metric"`
		} `json:"observations"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return meteo.Reading{}, err
	}

	if len(payload.Observations) == 0 {
		return meteo.Reading{}, fmt.Errorf("wunderground response has no observations for station %s", site.StationID)
	}

	obs := payload.Observations[0].Metric
	if obs.Temp == nil {
		return meteo.Reading{}, fmt.Errorf("wunderground observation missing temperature")
	}

	// The station may omit precipitation fields; they default to zero.
	rain := 0.0
	if obs.PrecipTotal != nil {
		rain = *obs.PrecipTotal
	}
	rate := 0.0
	if obs.PrecipRate != nil {
		rate = *obs.PrecipRate
	}
	rain24h := round1(rate * 24)

	return meteo.Reading{
		Temp:    obs.Temp,
		Rain:    &rain,
		Rain24h: &rain24h,
	}, nil
}
