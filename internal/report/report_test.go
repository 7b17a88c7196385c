package report

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmoreale/lujan-meteo/internal/meteo"
	"github.com/nmoreale/lujan-meteo/internal/store"
)

func fptr(v float64) *float64 {
	return &v
}

func singleBasinCapture(ts string) *meteo.Capture {
	corrected, factor := meteo.Reconcile(
		meteo.Reading{Temp: fptr(12.5), Rain: fptr(2.0), Rain24h: fptr(5.0), Timestamp: ts},
		meteo.Reading{Temp: fptr(13.0), Rain: fptr(2.2), Rain24h: fptr(5.3), Timestamp: ts},
		ts,
	)

	return &meteo.Capture{
		Timestamp: ts,
		HistoricalData: map[meteo.Basin]map[meteo.Service][]meteo.Reading{
			meteo.BasinAlta: {
				meteo.ServiceOpenMeteo:    {{Temp: fptr(12.5), Rain: fptr(2.0), Rain24h: fptr(5.0), Timestamp: ts}},
				meteo.ServiceWunderground: {{Temp: fptr(13.0), Rain: fptr(2.2), Rain24h: fptr(5.3), Timestamp: ts}},
				meteo.ServiceCorrected:    {*corrected},
			},
		},
		CorrectionFactors: map[meteo.Basin]meteo.CorrectionFactor{
			meteo.BasinAlta: *factor,
		},
	}
}

func newTestGenerator(t *testing.T) (*Generator, *store.Store) {
	t.Helper()
	s, err := store.New(t.TempDir(), nil, logrus.New())
	require.NoError(t, err)
	return NewGenerator(s, logrus.New()), s
}

func parseReport(t *testing.T, body []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCutoff(t *testing.T) {
	now := time.Date(2024, 5, 15, 13, 30, 0, 0, time.UTC)

	tests := []struct {
		keyword string
		want    time.Time
	}{
		{"last-hour", now.Add(-time.Hour)},
		{"today", time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)},
		{"last-week", now.AddDate(0, 0, -7)},
		{"last-month", now.AddDate(0, 0, -30)},
		{"last-3days", now.AddDate(0, 0, -3)},
		{"*", now.AddDate(0, 0, -365)},
		{"whatever", now.AddDate(0, 0, -365)},
	}

	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			assert.Equal(t, tt.want, Cutoff(tt.keyword, now))
		})
	}
}

func TestGenerateFiltersByWindow(t *testing.T) {
	g, s := newTestGenerator(t)

	now := time.Now()
	recent := meteo.FormatTimestamp(now.AddDate(0, 0, -2))
	old := meteo.FormatTimestamp(now.AddDate(0, 0, -10))

	require.NoError(t, s.Save(singleBasinCapture(recent)))
	require.NoError(t, s.Save(singleBasinCapture(old)))

	rows := parseReport(t, g.Generate("last-week", now))

	// Header plus the three rows of the capture two days ago; the ten-day
	// old capture is excluded.
	require.Len(t, rows, 4)
	assert.Equal(t, reportHeader, rows[0])

	wantDate, err := meteo.ParseTimestamp(recent)
	require.NoError(t, err)
	for _, row := range rows[1:] {
		assert.Equal(t, wantDate.Format("02/01/2006"), row[0])
	}
}

func TestGenerateRowLayout(t *testing.T) {
	g, s := newTestGenerator(t)

	now := time.Date(2024, 5, 15, 13, 30, 0, 0, time.UTC)
	require.NoError(t, s.Save(singleBasinCapture("2024-05-15T10:00:00")))

	rows := parseReport(t, g.Generate("today", now))
	require.Len(t, rows, 4)

	assert.Equal(t, []string{"15/05/2024", "10:00", "alta", "openmeteo", "12.5", "2", "5", "", "", ""}, rows[1])
	assert.Equal(t, []string{"15/05/2024", "10:00", "alta", "wunderground", "13", "2.2", "5.3", "", "", ""}, rows[2])
	assert.Equal(t, []string{"15/05/2024", "10:00", "alta", "corrected", "12.75", "2.1", "5.15", "0.25", "0.1", "0.15"}, rows[3])
}

func TestGenerateRendersAbsentFields(t *testing.T) {
	g, s := newTestGenerator(t)

	ts := "2024-05-15T10:00:00"
	capture := &meteo.Capture{
		Timestamp: ts,
		HistoricalData: map[meteo.Basin]map[meteo.Service][]meteo.Reading{
			meteo.BasinBaja: {
				meteo.ServiceOpenMeteo:    {meteo.Unavailable(ts)},
				meteo.ServiceWunderground: {{Temp: fptr(20.0), Timestamp: ts}},
				meteo.ServiceCorrected:    {},
			},
		},
	}
	require.NoError(t, s.Save(capture))

	now := time.Date(2024, 5, 15, 13, 30, 0, 0, time.UTC)
	rows := parseReport(t, g.Generate("today", now))
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"15/05/2024", "10:00", "baja", "openmeteo", "N/D", "N/D", "N/D", "", "", ""}, rows[1])
	assert.Equal(t, []string{"15/05/2024", "10:00", "baja", "wunderground", "20", "N/D", "N/D", "", "", ""}, rows[2])
}

func TestGenerateEmptyStoreIsHeaderOnly(t *testing.T) {
	g, _ := newTestGenerator(t)

	rows := parseReport(t, g.Generate("last-week", time.Now()))
	require.Len(t, rows, 1)
	assert.Equal(t, reportHeader, rows[0])
}

func TestGenerateErrorRendersAsBody(t *testing.T) {
	s, err := store.New(t.TempDir(), nil, logrus.New())
	require.NoError(t, err)
	g := NewGenerator(s, logrus.New())

	// A capture with an unparseable reading timestamp surfaces as an error
	// line in the body, not a Go error.
	capture := singleBasinCapture("2024-05-15T10:00:00")
	capture.HistoricalData[meteo.BasinAlta][meteo.ServiceOpenMeteo][0].Timestamp = "not-a-time"
	require.NoError(t, s.Save(capture))

	now := time.Date(2024, 5, 15, 13, 30, 0, 0, time.UTC)
	body := g.Generate("today", now)
	assert.Contains(t, string(body), "Error generando reporte")
}
