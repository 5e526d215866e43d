// Package service implements the asynchronous operations of the app. Each
// operation runs through pipeline.Store.Run, so state only ever changes via
// its pending, fulfilled and rejected actions.
package service

import (
	"context"
	"time"

	"github.com/bassista/go_happyhour/internal/apperr"
	"github.com/bassista/go_happyhour/internal/pipeline"
	"github.com/bassista/go_happyhour/internal/state"
	"github.com/bassista/go_happyhour/internal/yelp"
	"github.com/go-playground/validator/v10"
)

// SearchAPI is the business search backend.
type SearchAPI interface {
	Search(ctx context.Context, params state.SearchParams) (*yelp.SearchResponse, error)
	GetDetails(ctx context.Context, id string) (*yelp.BusinessDetails, error)
	GetReviews(ctx context.Context, id string) (*yelp.ReviewsResponse, error)
	GetPhotos(ctx context.Context, id string) (*yelp.PhotosResponse, error)
}

// Backend is the account and happy-hour data backend.
type Backend interface {
	Login(ctx context.Context, creds state.Credentials) (state.Session, error)
	Register(ctx context.Context, reg state.Registration) (state.Session, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context, token string) (string, error)
	HappyHourSpecials(ctx context.Context, venueID string) ([]state.HappyHourSpecial, error)
	MenuItems(ctx context.Context, venueID string) ([]state.MenuItem, error)
	AddFavorite(ctx context.Context, venueID string) error
	RemoveFavorite(ctx context.Context, venueID string) error
	UpdatePreferences(ctx context.Context, patch state.PreferencesPatch) (state.PreferencesPatch, error)
	CheckIn(ctx context.Context, ci state.CheckIn) (state.CheckIn, error)
	Analytics(ctx context.Context) (state.Analytics, error)
}

// Option configures Services.
type Option func(*Services)

// WithClock replaces time.Now for generated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Services) {
		if now != nil {
			s.now = now
		}
	}
}

// Services groups the operations over one store.
type Services struct {
	store    *pipeline.Store
	search   SearchAPI
	backend  Backend
	locator  Locator
	validate *validator.Validate
	now      func() time.Time
}

func New(store *pipeline.Store, search SearchAPI, backend Backend, opts ...Option) *Services {
	s := &Services{
		store:    store,
		search:   search,
		backend:  backend,
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the store the operations dispatch to.
func (s *Services) Store() *pipeline.Store {
	return s.store
}

// validateForm checks v and reports failures as ValidationError.
func (s *Services) validateForm(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return apperr.Wrap(apperr.ValidationError, err)
	}
	return nil
}
