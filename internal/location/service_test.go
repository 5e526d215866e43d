package location

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/bassista/go_happyhour/internal/apperr"
	"github.com/bassista/go_happyhour/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sf = Coordinates{Latitude: 37.7749, Longitude: -122.4194}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// hangingProvider ignores ctx and answers only once released.
type hangingProvider struct {
	*StaticProvider
	release chan struct{}
}

func (p *hangingProvider) CurrentPosition(context.Context, Options) (Position, error) {
	<-p.release
	return Position{}, nil
}

func newService(t *testing.T) (*Service, *StaticProvider, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 6, 1, 17, 0, 0, 0, time.UTC)}
	p := NewStaticProvider(sf)
	return NewService(p, WithClock(clock.Now)), p, clock
}

func TestService_CurrentLocation(t *testing.T) {
	s, p, clock := newService(t)
	p.Move(Position{Coordinates: sf, Timestamp: clock.Now()})

	assert.Equal(t, state.PermissionNotRequested, s.Permission())

	res, err := s.CurrentLocation(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, sf, res.Coordinates)
	assert.Equal(t, SourceGPS, res.Source)
	assert.Equal(t, state.PermissionGranted, s.Permission())

	cached, ok := s.CachedLocation()
	require.True(t, ok)
	assert.Equal(t, res, cached)
}

func TestService_ReusesFreshFix(t *testing.T) {
	s, p, clock := newService(t)
	p.Move(Position{Coordinates: sf, Timestamp: clock.Now()})

	_, err := s.CurrentLocation(context.Background(), Options{})
	require.NoError(t, err)

	moved := Coordinates{Latitude: 40.7128, Longitude: -74.006}
	p.Move(Position{Coordinates: moved, Timestamp: clock.Now()})

	clock.Advance(30 * time.Second)
	res, err := s.CurrentLocation(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, SourceCached, res.Source)
	assert.Equal(t, sf, res.Coordinates)

	clock.Advance(31 * time.Second)
	res, err = s.CurrentLocation(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, SourceGPS, res.Source)
	assert.Equal(t, moved, res.Coordinates)
}

func TestService_PermissionDenied(t *testing.T) {
	s, p, _ := newService(t)
	p.SetPermission(false)

	_, err := s.CurrentLocation(context.Background(), Options{})
	assert.Equal(t, apperr.PermissionDenied, apperr.KindOf(err))
	assert.Equal(t, state.PermissionDenied, s.Permission())
	assert.False(t, s.IsLocationEnabled(context.Background()))
}

func TestService_ErrorCodes(t *testing.T) {
	tests := []struct {
		code int
		kind apperr.Kind
	}{
		{CodePermissionDenied, apperr.PermissionDenied},
		{CodePositionUnavailable, apperr.LocationUnavailable},
		{CodeTimeout, apperr.Timeout},
		{42, apperr.LocationUnavailable},
	}
	for _, tt := range tests {
		s, p, _ := newService(t)
		p.SetError(&PositionError{Code: tt.code, Message: "platform"})

		_, err := s.CurrentLocation(context.Background(), Options{})
		assert.Equal(t, tt.kind, apperr.KindOf(err), "code %d", tt.code)
	}
}

func TestService_UnknownProviderErrorIsUnavailable(t *testing.T) {
	s, p, _ := newService(t)
	p.SetError(errors.New("gps chip on fire"))

	_, err := s.CurrentLocation(context.Background(), Options{})
	assert.Equal(t, apperr.LocationUnavailable, apperr.KindOf(err))
}

func TestService_TimeoutWhenProviderHangs(t *testing.T) {
	p := &hangingProvider{StaticProvider: NewStaticProvider(sf), release: make(chan struct{})}
	t.Cleanup(func() { close(p.release) })
	s := NewService(p)

	start := time.Now()
	_, err := s.CurrentLocation(context.Background(), Options{Timeout: 20 * time.Millisecond})
	assert.Equal(t, apperr.Timeout, apperr.KindOf(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestService_WatchNotifiesAndIsolatesPanics(t *testing.T) {
	s, p, _ := newService(t)

	var got []Result
	first, err := s.Watch(func(Result) { panic("bad subscriber") })
	require.NoError(t, err)
	second, err := s.Watch(func(r Result) { got = append(got, r) })
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 1, p.ActiveWatches(), "one provider watch for all subscribers")

	moved := Coordinates{Latitude: 1, Longitude: 2}
	p.Move(Position{Coordinates: moved})

	require.Len(t, got, 1)
	assert.Equal(t, moved, got[0].Coordinates)
	cached, ok := s.CachedLocation()
	require.True(t, ok)
	assert.Equal(t, moved, cached.Coordinates)

	s.StopWatch(first)
	assert.Equal(t, 1, p.ActiveWatches())
	s.StopWatch(second)
	assert.Equal(t, 0, p.ActiveWatches())

	p.Move(Position{Coordinates: sf})
	assert.Len(t, got, 1)
}

// eagerProvider delivers the current position from inside Watch.
type eagerProvider struct {
	*StaticProvider
}

func (p eagerProvider) Watch(onPosition func(Position), onError func(error)) (int, error) {
	id, err := p.StaticProvider.Watch(onPosition, onError)
	if err == nil {
		onPosition(Position{Coordinates: sf})
	}
	return id, err
}

func TestService_WatchWithSynchronousFirstFix(t *testing.T) {
	p := eagerProvider{NewStaticProvider(sf)}
	s := NewService(p)

	got := make(chan Result, 1)
	done := make(chan error, 1)
	go func() {
		_, err := s.Watch(func(r Result) { got <- r })
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Watch did not return")
	}

	r := <-got
	assert.Equal(t, sf, r.Coordinates)
	cached, ok := s.CachedLocation()
	require.True(t, ok)
	assert.Equal(t, sf, cached.Coordinates)
	assert.Equal(t, 1, p.ActiveWatches())
}

func TestService_StopAllWatches(t *testing.T) {
	s, p, _ := newService(t)
	_, _ = s.Watch(func(Result) {})
	_, _ = s.Watch(func(Result) {})

	s.StopAllWatches()
	assert.Equal(t, 0, p.ActiveWatches())
}

func TestService_ClearCachedLocation(t *testing.T) {
	s, _, _ := newService(t)
	_, err := s.CurrentLocation(context.Background(), Options{})
	require.NoError(t, err)

	s.ClearCachedLocation()
	_, ok := s.CachedLocation()
	assert.False(t, ok)
}

func TestService_GeocodeWithoutGeocoder(t *testing.T) {
	s, _, _ := newService(t)
	_, err := s.Geocode(context.Background(), "1 Main St")
	assert.Equal(t, apperr.GeocodingFailed, apperr.KindOf(err))
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 0.0, Distance(sf, sf))

	la := Coordinates{Latitude: 34.0522, Longitude: -118.2437}
	d := Distance(sf, la)
	assert.InDelta(t, 559_000, d, 2_000)
	assert.InDelta(t, d, Distance(la, sf), 1e-6)

	// a quarter of the equator
	q := Distance(Coordinates{}, Coordinates{Longitude: 90})
	assert.InDelta(t, math.Pi/2*6371e3, q, 1e-6)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "37.774900, -122.419400", FormatCoordinates(sf))
	assert.True(t, ValidCoordinates(sf))
	assert.False(t, ValidCoordinates(Coordinates{Latitude: -90.5}))
	assert.InDelta(t, 1609.34, MilesToMeters(1), 1e-9)
	assert.InDelta(t, 0.621371, MetersToMiles(1000), 1e-9)
}
