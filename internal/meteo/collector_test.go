package meteo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name    Service
	reading Reading
	err     error
}

func (p *stubProvider) Name() Service { return p.name }

func (p *stubProvider) Fetch(_ context.Context, _ Site) (Reading, error) {
	return p.reading, p.err
}

type stubRecorder struct {
	saved []*Capture
	err   error
}

func (r *stubRecorder) Save(capture *Capture) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, capture)
	return nil
}

func testSites() []Site {
	return []Site{
		{Basin: BasinAlta, Name: "Pilar", Lat: -34.455, Lon: -58.859, StationID: "IPILAR8"},
		{Basin: BasinMedia, Name: "Maschwitz", Lat: -34.386, Lon: -58.767, StationID: "IINGEN19"},
		{Basin: BasinBaja, Name: "Escobar", Lat: -34.336, Lon: -58.715, StationID: "IINGEN39"},
	}
}

func TestCollectorCaptureReconcilesAllBasins(t *testing.T) {
	primary := &stubProvider{
		name:    ServiceOpenMeteo,
		reading: Reading{Temp: fptr(12.5), Rain: fptr(2.0), Rain24h: fptr(5.0)},
	}
	secondary := &stubProvider{
		name:    ServiceWunderground,
		reading: Reading{Temp: fptr(13.0), Rain: fptr(2.2), Rain24h: fptr(5.3)},
	}

	c := NewCollector(primary, secondary, &stubRecorder{}, testSites(), time.Second, logrus.New())

	capture, err := c.Capture(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, capture.Timestamp)

	for _, basin := range Basins {
		services := capture.HistoricalData[basin]
		require.Len(t, services[ServiceOpenMeteo], 1, basin)
		require.Len(t, services[ServiceWunderground], 1, basin)
		require.Len(t, services[ServiceCorrected], 1, basin)

		corrected := services[ServiceCorrected][0]
		assert.Equal(t, 12.75, *corrected.Temp)
		assert.Equal(t, capture.Timestamp, corrected.Timestamp)

		factor, ok := capture.CorrectionFactors[basin]
		require.True(t, ok, basin)
		assert.Equal(t, 0.25, factor.Temp)
	}
}

func TestCollectorCaptureHoldsFactorOnProviderFailure(t *testing.T) {
	primary := &stubProvider{
		name:    ServiceOpenMeteo,
		reading: Reading{Temp: fptr(12.5), Rain: fptr(2.0), Rain24h: fptr(5.0)},
	}
	secondary := &stubProvider{
		name: ServiceWunderground,
		err:  errors.New("station offline"),
	}

	c := NewCollector(primary, secondary, &stubRecorder{}, testSites(), time.Second, logrus.New())

	capture, err := c.Capture(context.Background())
	require.NoError(t, err)

	for _, basin := range Basins {
		services := capture.HistoricalData[basin]

		// The failed provider still records an unavailable reading.
		require.Len(t, services[ServiceWunderground], 1, basin)
		assert.False(t, services[ServiceWunderground][0].Complete())

		// No corrected reading and no factor update.
		assert.Empty(t, services[ServiceCorrected], basin)
		_, ok := capture.CorrectionFactors[basin]
		assert.False(t, ok, basin)
	}
}

func TestCollectorRunPersistsCapture(t *testing.T) {
	provider := &stubProvider{
		name:    ServiceOpenMeteo,
		reading: Reading{Temp: fptr(10.0), Rain: fptr(0.0), Rain24h: fptr(1.0)},
	}
	secondary := &stubProvider{
		name:    ServiceWunderground,
		reading: Reading{Temp: fptr(11.0), Rain: fptr(0.2), Rain24h: fptr(1.2)},
	}
	recorder := &stubRecorder{}

	c := NewCollector(provider, secondary, recorder, testSites(), time.Second, logrus.New())

	capture, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, recorder.saved, 1)
	assert.Same(t, capture, recorder.saved[0])
}

func TestCollectorRunSurfacesSaveFailure(t *testing.T) {
	provider := &stubProvider{
		name:    ServiceOpenMeteo,
		reading: Reading{Temp: fptr(10.0), Rain: fptr(0.0), Rain24h: fptr(1.0)},
	}
	secondary := &stubProvider{name: ServiceWunderground, err: errors.New("down")}
	recorder := &stubRecorder{err: errors.New("disk full")}

	c := NewCollector(provider, secondary, recorder, testSites(), time.Second, logrus.New())

	_, err := c.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestCollectorCaptureNoSites(t *testing.T) {
	c := NewCollector(&stubProvider{name: ServiceOpenMeteo}, &stubProvider{name: ServiceWunderground}, &stubRecorder{}, nil, time.Second, logrus.New())

	_, err := c.Capture(context.Background())
	require.Error(t, err)
}
