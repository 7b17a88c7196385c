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

// OpenMeteoProvider implements the meteo.Provider interface for Open-Meteo.
// It is the primary source: correction factors are computed against it.
type OpenMeteoProvider struct {
	name    meteo.Service
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &OpenMeteoProvider{
		name:    meteo.ServiceOpenMeteo,
		baseURL: "https://api.open-meteo.com/v1/forecast",
		client:  client,
		circuit: cb,
	}
}

func (p *OpenMeteoProvider) Name() meteo.Service {
	return p.name
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, site meteo.Site) (meteo.Reading, error) {
	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", site.Lat))
		values.Set("longitude", fmt.Sprintf("%f", site.Lon))
		values.Set("current", "temperature_2m,precipitation")
		values.Set("hourly", "precipitation")
		values.Set("timezone", "auto")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.client, p.circuit, buildRequest)
	if err != nil {
		return meteo.Reading{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Current struct {
			Temperature   *float64 `json:"temperature_2m"`
			Precipitation *float64 `json:"precipitation"`
		} `json:"current"`
		Hourly struct {
			Precipitation []float64 `json:"precipitation"`
		} `json:"hourly"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return meteo.Reading{}, err
	}

	if payload.Current.Temperature == nil || payload.Current.Precipitation == nil {
		return meteo.Reading{}, fmt.Errorf("openmeteo response missing current weather fields")
	}
	if len(payload.Hourly.Precipitation) == 0 {
		return meteo.Reading{}, fmt.Errorf("openmeteo response missing hourly precipitation")
	}

	// Accumulate the first 24 hourly values into the 24-hour rain total.
	hours := payload.Hourly.Precipitation
	if len(hours) > 24 {
		hours = hours[:24]
	}
	var sum float64
	for _, v := range hours {
		sum += v
	}
	rain24h := round1(sum)

	return meteo.Reading{
		Temp:    payload.Current.Temperature,
		Rain:    payload.Current.Precipitation,
		Rain24h: &rain24h,
	}, nil
}
