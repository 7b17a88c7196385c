package meteo

import "context"

// Provider abstracts one external weather data source.
type Provider interface {
	Name() Service
	Fetch(ctx context.Context, site Site) (Reading, error)
}

// Recorder is the contract the snapshot store must satisfy for the
// collector to persist captures.
type Recorder interface {
	Save(capture *Capture) error
}
