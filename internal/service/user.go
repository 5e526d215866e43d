package service

import (
	"context"

	"github.com/bassista/go_happyhour/internal/apperr"
	"github.com/bassista/go_happyhour/internal/pipeline"
	"github.com/bassista/go_happyhour/internal/state"
	"github.com/google/uuid"
)

const (
	msgPreferencesFailed = "Failed to update preferences"
	msgCheckInFailed     = "Failed to check in"
	msgAnalyticsFailed   = "Failed to load analytics"
)

// CheckInInput is what the user submits when checking in.
type CheckInInput struct {
	VenueID        string   `validate:"required"`
	VenueName      string   `validate:"required"`
	Rating         *float64 `validate:"omitempty,min=1,max=5"`
	Notes          string   `validate:"max=500"`
	HappyHourItems []string
	Photos         []string
}

// UpdatePreferences saves patch and applies it locally. Without a backend the
// patch is applied as is.
func (s *Services) UpdatePreferences(ctx context.Context, patch state.PreferencesPatch) (state.Preferences, error) {
	if err := s.validateForm(patch); err != nil {
		return state.Preferences{}, err
	}

	_, err := s.store.Run(ctx, pipeline.Op{Type: state.OpUpdatePreferences, Arg: patch, Fallback: msgPreferencesFailed},
		func(ctx context.Context, _ state.RootState) (any, error) {
			if s.backend == nil {
				return patch, nil
			}
			return s.backend.UpdatePreferences(ctx, patch)
		})
	if err != nil {
		return state.Preferences{}, err
	}

	prefs := s.store.State().User.Preferences
	s.store.Cache().CacheUserPreferences(prefs)
	return prefs, nil
}

// CheckIn records a visit to a venue.
func (s *Services) CheckIn(ctx context.Context, in CheckInInput) (state.CheckIn, error) {
	if err := s.validateForm(in); err != nil {
		return state.CheckIn{}, err
	}

	ci := state.CheckIn{
		ID:             uuid.NewString(),
		VenueID:        in.VenueID,
		VenueName:      in.VenueName,
		Timestamp:      s.now(),
		Rating:         in.Rating,
		Notes:          in.Notes,
		HappyHourItems: in.HappyHourItems,
		Photos:         in.Photos,
	}

	v, err := s.store.Run(ctx, pipeline.Op{Type: state.OpCheckIn, Arg: ci.VenueID, Fallback: msgCheckInFailed},
		func(ctx context.Context, _ state.RootState) (any, error) {
			if s.backend == nil {
				return ci, nil
			}
			saved, err := s.backend.CheckIn(ctx, ci)
			if err != nil {
				return nil, err
			}
			if saved.ID == "" {
				return ci, nil
			}
			return saved, nil
		})
	if err != nil {
		return state.CheckIn{}, err
	}
	return v.(state.CheckIn), nil
}

// LoadAnalytics fetches the user's totals and achievements.
func (s *Services) LoadAnalytics(ctx context.Context) (state.Analytics, error) {
	v, err := s.store.Run(ctx, pipeline.Op{Type: state.OpLoadAnalytics, Fallback: msgAnalyticsFailed},
		func(ctx context.Context, st state.RootState) (any, error) {
			if s.backend == nil {
				return nil, apperr.Newf(apperr.NetworkError, "Analytics are unavailable offline")
			}
			if !st.Auth.IsAuthenticated {
				return nil, apperr.Newf(apperr.Unauthorized, "Sign in to see your stats")
			}
			return s.backend.Analytics(ctx)
		})
	if err != nil {
		return state.Analytics{}, err
	}
	return v.(state.Analytics), nil
}
