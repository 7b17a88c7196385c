package store

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nmoreale/lujan-meteo/internal/meteo"
)

// LedgerMode selects the ledger lifecycle policy. The two policies are
// mutually exclusive per deployment: rebuild-mode ledgers do not accumulate
// history across captures.
type LedgerMode string

const (
	// LedgerAppend adds rows for each capture to the end of the file,
	// writing the header once when the file is created.
	LedgerAppend LedgerMode = "append"
	// LedgerRebuild rewrites the entire file from a single capture,
	// discarding all previously recorded rows.
	LedgerRebuild LedgerMode = "rebuild"
)

// ParseLedgerMode validates a configured mode string.
func ParseLedgerMode(s string) (LedgerMode, error) {
	switch LedgerMode(s) {
	case LedgerAppend, LedgerRebuild:
		return LedgerMode(s), nil
	default:
		return "", fmt.Errorf("invalid ledger mode %q (expected %q or %q)", s, LedgerAppend, LedgerRebuild)
	}
}

// ledgerHeader is the fixed 9-column layout of the historical CSV.
var ledgerHeader = []string{
	"timestamp", "cuenca", "servicio",
	"temp", "rain", "rain24h",
	"factor_temp", "factor_rain", "factor_rain24h",
}

// factorService tags the per-basin factor rows a rebuild writes ahead of
// the reading rows.
const factorService = "factores"

// absentCell marks a reading field the provider did not deliver.
const absentCell = "N/D"

// Ledger maintains the flat CSV record of every observation and correction
// factor. Writes are serialized behind a dedicated mutex; header existence
// is checked under the same lock so concurrent captures cannot interleave a
// duplicate header.
type Ledger struct {
	path string
	mode LedgerMode
	log  logrus.FieldLogger

	mu sync.Mutex
}

func NewLedger(path string, mode LedgerMode, log logrus.FieldLogger) *Ledger {
	return &Ledger{path: path, mode: mode, log: log}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// Mode returns the active lifecycle policy.
func (l *Ledger) Mode() LedgerMode {
	return l.mode
}

// Record writes the capture to the ledger according to the configured mode.
func (l *Ledger) Record(capture *meteo.Capture) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.mode == LedgerRebuild {
		return l.rebuild(capture)
	}
	return l.append(capture)
}

func (l *Ledger) append(capture *meteo.Capture) error {
	needHeader := true
	if info, err := os.Stat(l.path); err == nil && info.Size() > 0 {
		needHeader = false
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if needHeader {
		if err := w.Write(ledgerHeader); err != nil {
			return fmt.Errorf("writing ledger header: %w", err)
		}
	}
	if err := writeReadingRows(w, capture); err != nil {
		return err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing ledger rows: %w", err)
	}
	return nil
}

// rebuild derives the whole ledger from the single capture and replaces the
// file. All prior history is discarded; this runs only when the deployment
// explicitly opted into LedgerRebuild.
func (l *Ledger) rebuild(capture *meteo.Capture) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(ledgerHeader); err != nil {
		return fmt.Errorf("writing ledger header: %w", err)
	}

	for _, basin := range meteo.Basins {
		factor := capture.CorrectionFactors[basin]
		row := []string{
			capture.Timestamp, string(basin), factorService,
			"", "", "",
			formatFloat(factor.Temp), formatFloat(factor.Rain), formatFloat(factor.Rain24h),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing factor row: %w", err)
		}
	}

	if err := writeReadingRows(w, capture); err != nil {
		return err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing ledger rows: %w", err)
	}

	tempPath := l.path + ".tmp"
	if err := os.WriteFile(tempPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := os.Rename(tempPath, l.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("replacing ledger: %w", err)
	}

	l.log.WithField("capture_id", capture.ID).Warn("ledger rebuilt from single capture; prior rows discarded")
	return nil
}

// writeReadingRows emits one row per (basin, service, reading) in canonical
// basin and service order. Factor cells are filled only on corrected rows.
func writeReadingRows(w *csv.Writer, capture *meteo.Capture) error {
	for _, basin := range meteo.Basins {
		services := capture.HistoricalData[basin]
		factor, hasFactor := capture.CorrectionFactors[basin]

		for _, service := range meteo.Services {
			for _, reading := range services[service] {
				ts := reading.Timestamp
				if ts == "" {
					ts = capture.Timestamp
				}

				row := []string{
					ts, string(basin), string(service),
					formatCell(reading.Temp), formatCell(reading.Rain), formatCell(reading.Rain24h),
					"", "", "",
				}
				if service == meteo.ServiceCorrected && hasFactor {
					row[6] = formatFloat(factor.Temp)
					row[7] = formatFloat(factor.Rain)
					row[8] = formatFloat(factor.Rain24h)
				}

				if err := w.Write(row); err != nil {
					return fmt.Errorf("writing reading row: %w", err)
				}
			}
		}
	}
	return nil
}

// LedgerStats describes the ledger file for the verification endpoint.
type LedgerStats struct {
	Exists       bool    `json:"exists"`
	SizeKB       float64 `json:"size_kb"`
	LastModified string  `json:"last_modified"`
	Lines        int     `json:"lines"`
	Mode         string  `json:"mode"`
}

// Stats reports file-level details of the ledger.
func (l *Ledger) Stats() (LedgerStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := LedgerStats{Mode: string(l.mode)}

	info, err := os.Stat(l.path)
	if os.IsNotExist(err) {
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("stat ledger: %w", err)
	}

	stats.Exists = true
	stats.SizeKB = meteo.Round2(float64(info.Size()) / 1024)
	stats.LastModified = info.ModTime().UTC().Format(time.RFC3339)

	data, err := os.ReadFile(l.path)
	if err != nil {
		return stats, fmt.Errorf("reading ledger: %w", err)
	}
	stats.Lines = bytes.Count(data, []byte("\n"))

	return stats, nil
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
