package meteo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Collector runs the fetch-reconcile-save cycle: it queries both providers
// for every configured site, reconciles the readings per basin, and hands
// the resulting capture to the snapshot store.
type Collector struct {
	primary   Provider
	secondary Provider
	recorder  Recorder
	sites     []Site
	timeout   time.Duration
	log       logrus.FieldLogger
}

// NewCollector creates a Collector. primary readings are the reference the
// correction factor is computed against.
func NewCollector(primary, secondary Provider, recorder Recorder, sites []Site, timeout time.Duration, log logrus.FieldLogger) *Collector {
	return &Collector{
		primary:   primary,
		secondary: secondary,
		recorder:  recorder,
		sites:     sites,
		timeout:   timeout,
		log:       log,
	}
}

// Capture fetches and reconciles readings for every site and returns the
// assembled capture. Provider failures degrade to unavailable readings and
// never fail the capture as a whole.
func (c *Collector) Capture(ctx context.Context) (*Capture, error) {
	if len(c.sites) == 0 {
		return nil, fmt.Errorf("no sites configured")
	}

	now := FormatTimestamp(time.Now())
	capture := &Capture{
		Timestamp:         now,
		HistoricalData:    make(map[Basin]map[Service][]Reading, len(c.sites)),
		CorrectionFactors: make(map[Basin]CorrectionFactor, len(c.sites)),
	}

	type basinResult struct {
		basin     Basin
		primary   Reading
		secondary Reading
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []basinResult
	)

	for _, site := range c.sites {
		site := site
		wg.Add(1)
		go func() {
			defer wg.Done()

			fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			res := basinResult{
				basin:     site.Basin,
				primary:   c.fetch(fetchCtx, c.primary, site, now),
				secondary: c.fetch(fetchCtx, c.secondary, site, now),
			}

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, res := range results {
		services := map[Service][]Reading{
			c.primary.Name():   {res.primary},
			c.secondary.Name(): {res.secondary},
			ServiceCorrected:   {},
		}

		corrected, factor := Reconcile(res.primary, res.secondary, now)
		if corrected != nil {
			services[ServiceCorrected] = []Reading{*corrected}
		}
		if factor != nil {
			capture.CorrectionFactors[res.basin] = *factor
		}

		capture.HistoricalData[res.basin] = services
	}

	return capture, nil
}

// Run performs a full cycle and persists the capture.
func (c *Collector) Run(ctx context.Context) (*Capture, error) {
	capture, err := c.Capture(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.recorder.Save(capture); err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"capture_id": capture.ID,
		"timestamp":  capture.Timestamp,
	}).Info("capture stored")

	return capture, nil
}

// fetch normalizes a provider call: any failure is logged and collapses to
// an unavailable reading so reconciliation can hold the last known factor.
func (c *Collector) fetch(ctx context.Context, p Provider, site Site, timestamp string) Reading {
	reading, err := p.Fetch(ctx, site)
	if err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"provider": p.Name(),
			"basin":    site.Basin,
		}).Warn("provider fetch failed")
		return Unavailable(timestamp)
	}
	reading.Timestamp = timestamp
	return reading
}
