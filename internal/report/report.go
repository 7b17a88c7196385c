// Package report renders time-filtered CSV exports of the snapshot logs.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nmoreale/lujan-meteo/internal/meteo"
	"github.com/nmoreale/lujan-meteo/internal/store"
)

// reportHeader is the fixed column layout of report exports.
var reportHeader = []string{
	"Fecha", "Hora", "Cuenca", "Servicio",
	"Temperatura", "Lluvia Hoy", "Lluvia 24h",
	"Factor Temp", "Factor Lluvia", "Factor Lluvia24h",
}

const absentCell = "N/D"

// Cutoff translates a range keyword into the inclusive lower bound of the
// report window. Unrecognized keywords fall back to a 365-day window.
func Cutoff(rangeKeyword string, now time.Time) time.Time {
	switch rangeKeyword {
	case "last-hour":
		return now.Add(-time.Hour)
	case "today":
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case "last-week":
		return now.AddDate(0, 0, -7)
	case "last-month":
		return now.AddDate(0, 0, -30)
	case "last-3days":
		return now.AddDate(0, 0, -3)
	default:
		return now.AddDate(0, 0, -365)
	}
}

// Generator builds CSV reports over the snapshot store.
type Generator struct {
	store *store.Store
	log   logrus.FieldLogger
}

func NewGenerator(s *store.Store, log logrus.FieldLogger) *Generator {
	return &Generator{store: s, log: log}
}

// Generate renders all captures at or after the window cutoff as CSV bytes.
// Filtering happens in two stages: snapshot logs dated strictly before the
// cutoff's calendar date are skipped without being opened, then surviving
// captures are compared against the full cutoff instant. On failure the
// returned bytes hold a human-readable error line; callers inspect content
// rather than an error channel.
func (g *Generator) Generate(rangeKeyword string, now time.Time) []byte {
	body, err := g.generate(rangeKeyword, now)
	if err != nil {
		g.log.WithError(err).WithField("range", rangeKeyword).Error("report generation failed")
		return []byte(fmt.Sprintf("Error generando reporte: %v", err))
	}
	return body
}

func (g *Generator) generate(rangeKeyword string, now time.Time) ([]byte, error) {
	cutoff := Cutoff(rangeKeyword, now)
	cutoffDate := cutoff.Format("2006-01-02")

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(reportHeader); err != nil {
		return nil, err
	}

	dates, err := g.store.Dates()
	if err != nil {
		return nil, err
	}

	for _, date := range dates {
		// Coarse filter: the log's calendar date, without opening the file.
		if date < cutoffDate {
			continue
		}

		captures, err := g.store.ReadDay(date)
		if err != nil {
			return nil, err
		}

		for i := range captures {
			capture := &captures[i]

			ts, err := capture.Time()
			if err != nil {
				return nil, err
			}
			if ts.Before(cutoff) {
				continue
			}

			if err := writeCaptureRows(w, capture); err != nil {
				return nil, err
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCaptureRows(w *csv.Writer, capture *meteo.Capture) error {
	for _, basin := range meteo.Basins {
		services, ok := capture.HistoricalData[basin]
		if !ok {
			continue
		}
		factor, hasFactor := capture.CorrectionFactors[basin]

		for _, service := range meteo.Services {
			for _, reading := range services[service] {
				ts := reading.Timestamp
				if ts == "" {
					ts = capture.Timestamp
				}
				when, err := meteo.ParseTimestamp(ts)
				if err != nil {
					return err
				}

				row := []string{
					when.Format("02/01/2006"),
					when.Format("15:04"),
					string(basin),
					string(service),
					formatCell(reading.Temp),
					formatCell(reading.Rain),
					formatCell(reading.Rain24h),
					"", "", "",
				}
				if service == meteo.ServiceCorrected && hasFactor {
					row[7] = formatFloat(factor.Temp)
					row[8] = formatFloat(factor.Rain)
					row[9] = formatFloat(factor.Rain24h)
				}

				if err := w.Write(row); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func formatCell(v *float64) string {
	if v == nil {
		return absentCell
	}
	return formatFloat(*v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
