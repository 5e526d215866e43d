package service

import (
	"context"

	"github.com/bassista/go_happyhour/internal/apperr"
	"github.com/bassista/go_happyhour/internal/location"
	"github.com/bassista/go_happyhour/internal/state"
)

// Locator resolves the device position.
type Locator interface {
	CurrentLocation(ctx context.Context, opts location.Options) (location.Result, error)
	Permission() state.LocationPermission
}

// WithLocator enables Locate.
func WithLocator(l Locator) Option {
	return func(s *Services) { s.locator = l }
}

// Locate resolves the current position and stores it as the search location.
// The permission outcome is recorded even when the lookup fails.
func (s *Services) Locate(ctx context.Context) (state.SearchLocation, error) {
	if s.locator == nil {
		return state.SearchLocation{}, apperr.New(apperr.LocationUnavailable)
	}

	s.store.Dispatch(state.Action{Type: state.SearchSetLocationLoading, Payload: true})
	defer s.store.Dispatch(state.Action{Type: state.SearchSetLocationLoading, Payload: false})

	res, err := s.locator.CurrentLocation(ctx, location.Options{})
	s.store.Dispatch(state.Action{Type: state.SearchSetLocationPermission, Payload: s.locator.Permission()})
	if err != nil {
		return state.SearchLocation{}, err
	}

	loc := state.SearchLocation{
		Latitude:  res.Coordinates.Latitude,
		Longitude: res.Coordinates.Longitude,
	}
	if res.Address != nil {
		loc.Address = res.Address.Address
		loc.City = res.Address.City
		loc.State = res.Address.State
	}
	s.store.Dispatch(state.Action{Type: state.SearchSetLocation, Payload: loc})
	return loc, nil
}
