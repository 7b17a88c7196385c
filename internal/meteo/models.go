package meteo

import (
	"errors"
	"time"
)

// ErrMissingTimestamp is returned when a capture arrives without its
// timestamp field. The message is surfaced verbatim to API clients.
var ErrMissingTimestamp = errors.New("Falta el campo timestamp")

// Basin identifies one of the three monitored catchments of the Luján river.
type Basin string

const (
	BasinAlta  Basin = "alta"
	BasinMedia Basin = "media"
	BasinBaja  Basin = "baja"
)

// Basins lists all basins in canonical order. Ledger rows and report rows
// are always emitted in this order.
var Basins = []Basin{BasinAlta, BasinMedia, BasinBaja}

// Service tags the origin of a reading.
type Service string

const (
	ServiceOpenMeteo    Service = "openmeteo"
	ServiceWunderground Service = "wunderground"
	ServiceCorrected    Service = "corrected"
)

// Services lists all services in canonical order.
var Services = []Service{ServiceOpenMeteo, ServiceWunderground, ServiceCorrected}

// Site describes the physical location a basin is sampled at: coordinates
// for Open-Meteo and a personal weather station id for Wunderground.
type Site struct {
	Basin     Basin
	Name      string
	Lat       float64
	Lon       float64
	StationID string
}

// Reading is one normalized observation. Nil fields mean the provider call
// failed or the provider omitted the value; a reading with any nil field is
// excluded from reconciliation.
type Reading struct {
	Temp      *float64 `json:"temp"`
	Rain      *float64 `json:"rain"`
	Rain24h   *float64 `json:"rain24h"`
	Timestamp string   `json:"timestamp"`
}

// Complete reports whether every field carries a value.
func (r Reading) Complete() bool {
	return r.Temp != nil && r.Rain != nil && r.Rain24h != nil
}

// Unavailable returns the sentinel reading recorded when a provider call
// fails entirely.
func Unavailable(timestamp string) Reading {
	return Reading{Timestamp: timestamp}
}

// CorrectionFactor is the signed difference between the corrected reading
// and the primary (Open-Meteo) reading, per field.
type CorrectionFactor struct {
	Temp    float64 `json:"temp"`
	Rain    float64 `json:"rain"`
	Rain24h float64 `json:"rain24h"`
}

// Capture is one ingestion event covering all basins and services at a
// single timestamp. IDs are assigned when the capture is accepted for
// persistence.
type Capture struct {
	ID                string                          `json:"id,omitempty"`
	Timestamp         string                          `json:"timestamp" validate:"required"`
	HistoricalData    map[Basin]map[Service][]Reading `json:"historicalData"`
	CorrectionFactors map[Basin]CorrectionFactor      `json:"correctionFactors"`
}

// Time parses the capture timestamp.
func (c *Capture) Time() (time.Time, error) {
	if c.Timestamp == "" {
		return time.Time{}, ErrMissingTimestamp
	}
	return ParseTimestamp(c.Timestamp)
}

// timestampLayouts lists accepted wire formats: the naive ISO form captures
// have historically been stored with, and RFC3339.
var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999",
	time.RFC3339,
}

// ParseTimestamp parses a capture or reading timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	var err error
	for _, layout := range timestampLayouts {
		var ts time.Time
		if ts, err = time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, err
}

// FormatTimestamp renders a time in the wire format used across snapshot
// logs and the ledger.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05")
}
