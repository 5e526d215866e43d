package location

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/bassista/go_happyhour/internal/apperr"
	"github.com/bassista/go_happyhour/internal/logger"
	"github.com/bassista/go_happyhour/internal/state"
)

const (
	DefaultTimeout    = 15 * time.Second
	DefaultMaximumAge = time.Minute

	earthRadius   = 6371e3
	metersPerMile = 1609.34
	milesPerMeter = 0.000621371
)

// Callback receives location updates from a watch.
type Callback func(Result)

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithGeocoder sets the address lookup backend.
func WithGeocoder(g Geocoder) ServiceOption {
	return func(s *Service) { s.geocoder = g }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDefaults overrides the default request options.
func WithDefaults(o Options) ServiceOption {
	return func(s *Service) { s.defaults = s.merge(o) }
}

// Service owns the last known location, the permission status and the watch
// subscriptions. Construct one and pass it to its consumers.
type Service struct {
	provider Provider
	geocoder Geocoder
	now      func() time.Time
	defaults Options

	mu         sync.Mutex
	current    *Result
	permission state.LocationPermission
	callbacks  map[int]Callback
	nextID     int
	watchID    int
	watching   bool
	starting   bool
}

func NewService(p Provider, opts ...ServiceOption) *Service {
	s := &Service{
		provider:   p,
		now:        time.Now,
		defaults:   Options{Timeout: DefaultTimeout, MaximumAge: DefaultMaximumAge, EnableHighAccuracy: true},
		permission: state.PermissionNotRequested,
		callbacks:  map[int]Callback{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) merge(o Options) Options {
	out := s.defaults
	if o.Timeout > 0 {
		out.Timeout = o.Timeout
	}
	if o.MaximumAge > 0 {
		out.MaximumAge = o.MaximumAge
	}
	if o.EnableHighAccuracy {
		out.EnableHighAccuracy = true
	}
	return out
}

// RequestPermission asks the provider for access and records the outcome.
// Provider errors count as a denial.
func (s *Service) RequestPermission(ctx context.Context) bool {
	granted, err := s.provider.RequestPermission(ctx)
	if err != nil {
		logger.WithComponent("location").Warnf("permission request failed: %v", err)
		granted = false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if granted {
		s.permission = state.PermissionGranted
	} else {
		s.permission = state.PermissionDenied
	}
	return granted
}

// CurrentLocation returns a GPS fix. A cached fix younger than the maximum
// age is reused. The request fails with Timeout once the timeout elapses
// even if the provider never answers.
func (s *Service) CurrentLocation(ctx context.Context, opts Options) (Result, error) {
	log := logger.WithComponent("location")
	o := s.merge(opts)

	if !s.RequestPermission(ctx) {
		return Result{}, apperr.New(apperr.PermissionDenied)
	}

	if cached, ok := s.fresh(o.MaximumAge); ok {
		log.Debug("reusing cached location")
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	type fix struct {
		pos Position
		err error
	}
	ch := make(chan fix, 1)
	go func() {
		pos, err := s.provider.CurrentPosition(ctx, o)
		ch <- fix{pos, err}
	}()

	var f fix
	select {
	case f = <-ch:
	case <-ctx.Done():
		f.err = ctx.Err()
	}
	if f.err != nil {
		log.Warnf("position request failed: %v", f.err)
		return Result{}, mapPositionError(f.err)
	}

	res := s.resultFrom(f.pos)
	s.setCurrent(res)
	s.notify(res)
	return res, nil
}

func (s *Service) fresh(maxAge time.Duration) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.Source != SourceGPS {
		return Result{}, false
	}
	if s.now().Sub(s.current.Timestamp) > maxAge {
		return Result{}, false
	}
	r := *s.current
	r.Source = SourceCached
	return r, true
}

func (s *Service) resultFrom(p Position) Result {
	ts := p.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	return Result{Coordinates: p.Coordinates, Source: SourceGPS, Timestamp: ts}
}

func (s *Service) setCurrent(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &r
}

// Watch registers cb for location updates and starts the provider watch on
// the first subscription. The returned id is stable until StopWatch. The
// provider may deliver its first fix before Watch returns.
func (s *Service) Watch(cb Callback) (int, error) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.callbacks[id] = cb
	start := !s.watching && !s.starting
	s.starting = s.starting || start
	s.mu.Unlock()

	if !start {
		return id, nil
	}

	// The lock is not held here: providers may call back synchronously.
	watchID, err := s.provider.Watch(s.onWatchPosition, s.onWatchError)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starting = false
	if err != nil {
		delete(s.callbacks, id)
		return 0, fmt.Errorf("start watch: %w", mapPositionError(err))
	}
	s.watchID = watchID
	s.watching = true
	s.clearIfIdleLocked()
	return id, nil
}

// StopWatch removes one subscription. The provider watch is cleared once no
// subscriptions remain.
func (s *Service) StopWatch(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.callbacks, id)
	s.clearIfIdleLocked()
}

// StopAllWatches removes every subscription.
func (s *Service) StopAllWatches() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = map[int]Callback{}
	s.clearIfIdleLocked()
}

func (s *Service) clearIfIdleLocked() {
	if len(s.callbacks) == 0 && s.watching {
		s.provider.ClearWatch(s.watchID)
		s.watching = false
	}
}

func (s *Service) onWatchPosition(p Position) {
	res := s.resultFrom(p)
	s.setCurrent(res)
	s.notify(res)
}

func (s *Service) onWatchError(err error) {
	logger.WithComponent("location").Warnf("watch position error: %v", err)
}

// notify calls every subscriber in subscription order. A panicking callback
// is logged and does not stop the others.
func (s *Service) notify(r Result) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.callbacks))
	for id := range s.callbacks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	cbs := make([]Callback, 0, len(ids))
	for _, id := range ids {
		cbs = append(cbs, s.callbacks[id])
	}
	s.mu.Unlock()

	for _, cb := range cbs {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithComponent("location").Errorf("location callback panicked: %v\n%s", rec, debug.Stack())
				}
			}()
			cb(r)
		}()
	}
}

// Geocode resolves an address and makes it the current location.
func (s *Service) Geocode(ctx context.Context, address string) (Result, error) {
	if s.geocoder == nil {
		return Result{}, apperr.New(apperr.GeocodingFailed)
	}
	res, err := s.geocoder.Forward(ctx, address)
	if err != nil {
		return Result{}, err
	}
	if res.Timestamp.IsZero() {
		res.Timestamp = s.now()
	}
	s.setCurrent(res)
	return res, nil
}

// ReverseGeocode looks up the address at c.
func (s *Service) ReverseGeocode(ctx context.Context, c Coordinates) (Address, error) {
	if s.geocoder == nil {
		return Address{}, apperr.New(apperr.GeocodingFailed)
	}
	return s.geocoder.Reverse(ctx, c)
}

// CachedLocation returns the last known location, if any.
func (s *Service) CachedLocation() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return Result{}, false
	}
	return *s.current, true
}

func (s *Service) ClearCachedLocation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

func (s *Service) Permission() state.LocationPermission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission
}

// IsLocationEnabled reports whether location access is currently granted.
func (s *Service) IsLocationEnabled(ctx context.Context) bool {
	return s.RequestPermission(ctx)
}

// mapPositionError maps provider failures onto the taxonomy.
func mapPositionError(err error) error {
	var pe *PositionError
	if errors.As(err, &pe) {
		switch pe.Code {
		case CodePermissionDenied:
			return apperr.Wrap(apperr.PermissionDenied, err)
		case CodeTimeout:
			return apperr.Wrap(apperr.Timeout, err)
		default:
			return apperr.Wrap(apperr.LocationUnavailable, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.Timeout, err)
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Wrap(apperr.LocationUnavailable, err)
}

// Distance is the great-circle distance between a and b in metres.
func Distance(a, b Coordinates) float64 {
	phi1 := a.Latitude * math.Pi / 180
	phi2 := b.Latitude * math.Pi / 180
	dPhi := (b.Latitude - a.Latitude) * math.Pi / 180
	dLambda := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadius * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func ValidCoordinates(c Coordinates) bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// FormatCoordinates renders c with six decimals, e.g. "37.774900, -122.419400".
func FormatCoordinates(c Coordinates) string {
	return fmt.Sprintf("%.6f, %.6f", c.Latitude, c.Longitude)
}

func MetersToMiles(m float64) float64 { return m * milesPerMeter }
func MilesToMeters(mi float64) float64 { return mi * metersPerMile }
