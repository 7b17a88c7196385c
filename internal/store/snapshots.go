// Package store persists captures as per-date JSON snapshot logs plus a
// flat CSV historical ledger, and rebuilds aggregate views from them.
//
// Snapshot writes are read-modify-write over a whole day's log, serialized
// per date so concurrent captures landing on the same day cannot drop each
// other's data. Files are replaced atomically (write to a temp file, then
// rename).
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nmoreale/lujan-meteo/internal/meteo"
)

var (
	// ErrPersistence is returned when a snapshot log or the manifest cannot
	// be read or written.
	ErrPersistence = errors.New("persistence failure")
)

const (
	snapshotPrefix = "meteo_"
	snapshotSuffix = ".json"
	manifestFile   = "manifest.json"
)

// manifest indexes the calendar dates that have a snapshot log, so reads
// never depend on directory-listing order.
type manifest struct {
	Dates []string `json:"dates"`
}

// Store owns the data directory holding snapshot logs and the manifest.
type Store struct {
	dataDir string
	ledger  *Ledger
	log     logrus.FieldLogger

	mu        sync.Mutex // guards dateLocks and manifest updates
	dateLocks map[string]*sync.Mutex
}

// New creates the data directory if needed and returns a Store. The ledger
// may be nil, in which case captures are only written to snapshot logs.
func New(dataDir string, ledger *Ledger, log logrus.FieldLogger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating data dir: %v", ErrPersistence, err)
	}
	return &Store{
		dataDir:   dataDir,
		ledger:    ledger,
		log:       log,
		dateLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Save appends the capture to the snapshot log of its calendar date,
// creating the log and registering the date in the manifest on first use.
// The ledger write that follows is best-effort: a ledger failure is logged
// but never fails an accepted capture.
func (s *Store) Save(capture *meteo.Capture) error {
	ts, err := capture.Time()
	if err != nil {
		return err
	}
	if capture.ID == "" {
		capture.ID = uuid.NewString()
	}

	date := ts.Format("2006-01-02")

	lock := s.lockFor(date)
	lock.Lock()
	defer lock.Unlock()

	captures, err := s.ReadDay(date)
	if err != nil {
		return err
	}
	captures = append(captures, *capture)

	if err := writeJSONAtomic(s.dayPath(date), captures); err != nil {
		return fmt.Errorf("%w: writing snapshot log %s: %v", ErrPersistence, date, err)
	}

	if err := s.registerDate(date); err != nil {
		return err
	}

	if s.ledger != nil {
		if err := s.ledger.Record(capture); err != nil {
			s.log.WithError(err).WithField("capture_id", capture.ID).Error("ledger write failed")
		}
	}

	return nil
}

// Dates returns every known snapshot date in ascending order. When the
// manifest is missing (data dirs written before it existed), it falls back
// to scanning the directory and rebuilds the manifest from what it finds.
func (s *Store) Dates() ([]string, error) {
	m, err := s.readManifest()
	if err != nil {
		return nil, err
	}
	if m != nil {
		sort.Strings(m.Dates)
		return m.Dates, nil
	}

	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("%w: listing data dir: %v", ErrPersistence, err)
	}

	var dates []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, snapshotPrefix) && strings.HasSuffix(name, snapshotSuffix) {
			dates = append(dates, strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotSuffix))
		}
	}
	sort.Strings(dates)

	if len(dates) > 0 {
		if err := writeJSONAtomic(s.manifestPath(), manifest{Dates: dates}); err != nil {
			s.log.WithError(err).Warn("could not rebuild manifest from directory scan")
		}
	}
	return dates, nil
}

// ReadDay loads the capture list for one date. A missing log is an empty
// day, not an error.
func (s *Store) ReadDay(date string) ([]meteo.Capture, error) {
	data, err := os.ReadFile(s.dayPath(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: reading snapshot log %s: %v", ErrPersistence, date, err)
	}

	var captures []meteo.Capture
	if err := json.Unmarshal(data, &captures); err != nil {
		return nil, fmt.Errorf("%w: snapshot log %s is corrupt: %v", ErrPersistence, date, err)
	}
	return captures, nil
}

func (s *Store) dayPath(date string) string {
	return filepath.Join(s.dataDir, snapshotPrefix+date+snapshotSuffix)
}

func (s *Store) manifestPath() string {
	return filepath.Join(s.dataDir, manifestFile)
}

func (s *Store) lockFor(date string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.dateLocks[date]
	if !ok {
		lock = &sync.Mutex{}
		s.dateLocks[date] = lock
	}
	return lock
}

// readManifest returns nil with no error when the manifest does not exist.
func (s *Store) readManifest() (*manifest, error) {
	data, err := os.ReadFile(s.manifestPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: reading manifest: %v", ErrPersistence, err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest is corrupt: %v", ErrPersistence, err)
	}
	return &m, nil
}

func (s *Store) registerDate(date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.readManifest()
	if err != nil {
		return err
	}
	if m == nil {
		m = &manifest{}
	}
	for _, known := range m.Dates {
		if known == date {
			return nil
		}
	}

	m.Dates = append(m.Dates, date)
	sort.Strings(m.Dates)

	if err := writeJSONAtomic(s.manifestPath(), m); err != nil {
		return fmt.Errorf("%w: writing manifest: %v", ErrPersistence, err)
	}
	return nil
}

// writeJSONAtomic marshals v and replaces path atomically via a temp file.
func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return err
	}
	return nil
}
