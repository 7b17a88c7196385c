package store

import (
	"errors"
	"fmt"

	"github.com/nmoreale/lujan-meteo/internal/meteo"
)

// ErrAggregation is returned when any snapshot log cannot be read during a
// full historical load. The load is all-or-nothing: no partial aggregate is
// ever returned.
var ErrAggregation = errors.New("aggregation failure")

// Aggregate is the full historical view folded from every snapshot log:
// per-basin, per-service reading sequences in insertion order, plus the
// latest known correction factor per basin.
type Aggregate struct {
	HistoricalData    map[meteo.Basin]map[meteo.Service][]meteo.Reading `json:"historicalData"`
	CorrectionFactors map[meteo.Basin]meteo.CorrectionFactor            `json:"correctionFactors"`
}

// Load scans every snapshot log in date order and folds the captures into
// one aggregate. Reading sequences preserve insertion order and keep
// duplicates; correction factors are overwritten per basin as captures are
// replayed, so the factor of the most recent capture carrying one wins.
func (s *Store) Load() (*Aggregate, error) {
	agg := &Aggregate{
		HistoricalData:    make(map[meteo.Basin]map[meteo.Service][]meteo.Reading, len(meteo.Basins)),
		CorrectionFactors: make(map[meteo.Basin]meteo.CorrectionFactor, len(meteo.Basins)),
	}
	for _, basin := range meteo.Basins {
		services := make(map[meteo.Service][]meteo.Reading, len(meteo.Services))
		for _, service := range meteo.Services {
			services[service] = []meteo.Reading{}
		}
		agg.HistoricalData[basin] = services
		agg.CorrectionFactors[basin] = meteo.CorrectionFactor{}
	}

	dates, err := s.Dates()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAggregation, err)
	}

	for _, date := range dates {
		captures, err := s.ReadDay(date)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAggregation, err)
		}

		for i := range captures {
			capture := &captures[i]

			for _, basin := range meteo.Basins {
				services, ok := capture.HistoricalData[basin]
				if !ok {
					continue
				}
				for _, service := range meteo.Services {
					if readings, ok := services[service]; ok {
						agg.HistoricalData[basin][service] = append(agg.HistoricalData[basin][service], readings...)
					}
				}
			}

			for basin, factor := range capture.CorrectionFactors {
				agg.CorrectionFactors[basin] = factor
			}
		}
	}

	return agg, nil
}
