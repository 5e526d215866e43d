package service

import (
	"context"
	"strings"

	"github.com/bassista/go_happyhour/internal/apperr"
	"github.com/bassista/go_happyhour/internal/cache"
	"github.com/bassista/go_happyhour/internal/logger"
	"github.com/bassista/go_happyhour/internal/pipeline"
	"github.com/bassista/go_happyhour/internal/state"
	"github.com/bassista/go_happyhour/internal/yelp"
	"golang.org/x/sync/errgroup"
)

const (
	msgSearchFailed   = "Search failed"
	msgDetailsFailed  = "Failed to get venue details"
	msgFavoriteFailed = "Failed to update favorite"
)

// SearchVenues runs a venue search. Results are served from the search cache
// when an identical search is still fresh; a non-empty term is recorded in
// the recent searches.
func (s *Services) SearchVenues(ctx context.Context, params state.SearchParams) (state.SearchResult, error) {
	key := cache.SearchKey(cache.SearchQuery{
		Latitude:   params.Latitude,
		Longitude:  params.Longitude,
		Radius:     params.Radius,
		Term:       params.Term,
		Categories: params.Categories,
		Price:      params.Price,
		SortBy:     params.SortBy,
		Limit:      params.Limit,
		OpenNow:    params.OpenNow,
	})
	op := pipeline.Op{
		Type:     state.OpSearchVenues,
		Arg:      params,
		Key:      pipeline.Key(state.OpSearchVenues, key),
		Fallback: msgSearchFailed,
	}

	v, err := s.store.Run(ctx, op, func(ctx context.Context, _ state.RootState) (any, error) {
		c := s.store.Cache()
		if hit, ok := cache.Get[state.SearchResult](c, cache.SearchResults, key); ok {
			logger.WithComponent("service").Debugf("search cache hit for %s", key)
			return hit, nil
		}
		if !yelp.ValidCoordinates(params.Latitude, params.Longitude) {
			return nil, apperr.Newf(apperr.ValidationError, "Invalid search location")
		}

		resp, err := s.search.Search(ctx, params)
		if err != nil {
			return nil, err
		}
		res := state.SearchResult{Venues: yelp.ToVenues(resp.Businesses), Params: params, Total: resp.Total}
		c.CacheSearchResults(key, res)
		return res, nil
	})
	if err != nil {
		return state.SearchResult{}, err
	}

	if term := strings.TrimSpace(params.Term); term != "" {
		s.store.Dispatch(state.AddRecentSearch(term, state.SearchLocation{
			Latitude:  params.Latitude,
			Longitude: params.Longitude,
		}))
	}
	return v.(state.SearchResult), nil
}

// GetVenueDetails loads a venue with its specials and menu. Concurrent calls
// for the same id share one fetch.
func (s *Services) GetVenueDetails(ctx context.Context, id string) (state.VenueDetailsResult, error) {
	return s.venueDetails(ctx, id, false)
}

// RefreshVenueDetails bypasses the cache and any fetch already in flight. An
// older fetch that completes afterwards is discarded.
func (s *Services) RefreshVenueDetails(ctx context.Context, id string) (state.VenueDetailsResult, error) {
	return s.venueDetails(ctx, id, true)
}

func (s *Services) venueDetails(ctx context.Context, id string, refresh bool) (state.VenueDetailsResult, error) {
	op := pipeline.Op{
		Type:     state.OpGetVenueDetails,
		Arg:      id,
		Key:      pipeline.Key(state.OpGetVenueDetails, id),
		Fallback: msgDetailsFailed,
		Refresh:  refresh,
	}

	v, err := s.store.Run(ctx, op, func(ctx context.Context, _ state.RootState) (any, error) {
		c := s.store.Cache()
		if !refresh {
			if hit, ok := cache.Get[state.VenueDetailsResult](c, cache.VenueDetails, id); ok {
				return hit, nil
			}
		}

		var res state.VenueDetailsResult
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			d, err := s.search.GetDetails(gctx, id)
			if err != nil {
				return err
			}
			res.Venue = yelp.ToVenueDetails(*d)
			return nil
		})
		if s.backend != nil {
			g.Go(func() error {
				specials, err := s.backend.HappyHourSpecials(gctx, id)
				if err != nil {
					return err
				}
				res.Specials = specials
				return nil
			})
			g.Go(func() error {
				items, err := s.backend.MenuItems(gctx, id)
				if err != nil {
					return err
				}
				res.MenuItems = items
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if res.Specials == nil {
			res.Specials = []state.HappyHourSpecial{}
		}
		if res.MenuItems == nil {
			res.MenuItems = []state.MenuItem{}
		}

		c.CacheVenueDetails(id, res)
		c.CacheMenuData(id, res.MenuItems)
		return res, nil
	})
	if err != nil {
		return state.VenueDetailsResult{}, err
	}
	return v.(state.VenueDetailsResult), nil
}

// ToggleFavorite flips id in the favorites list and mirrors the change to
// the backend.
func (s *Services) ToggleFavorite(ctx context.Context, id string) (state.FavoriteResult, error) {
	op := pipeline.Op{
		Type:     state.OpToggleFavorite,
		Arg:      id,
		Key:      pipeline.Key(state.OpToggleFavorite, id),
		Fallback: msgFavoriteFailed,
	}

	v, err := s.store.Run(ctx, op, func(ctx context.Context, st state.RootState) (any, error) {
		was := st.Venues.IsFavorite(id)
		if s.backend != nil {
			var err error
			if was {
				err = s.backend.RemoveFavorite(ctx, id)
			} else {
				err = s.backend.AddFavorite(ctx, id)
			}
			if err != nil {
				return nil, err
			}
		}
		return state.FavoriteResult{VenueID: id, IsFavorite: !was}, nil
	})
	if err != nil {
		return state.FavoriteResult{}, err
	}

	s.store.Cache().CacheFavorites(append([]string{}, s.store.State().Venues.Favorites...))
	return v.(state.FavoriteResult), nil
}

// Reviews returns a venue's review excerpts, cached per venue.
func (s *Services) Reviews(ctx context.Context, id string) ([]yelp.Review, error) {
	c := s.store.Cache()
	if hit, ok := cache.Get[[]yelp.Review](c, cache.Reviews, id); ok {
		return hit, nil
	}
	resp, err := s.search.GetReviews(ctx, id)
	if err != nil {
		return nil, err
	}
	c.CacheReviews(id, resp.Reviews)
	return resp.Reviews, nil
}

// Photos returns a venue's photo URLs, cached per venue.
func (s *Services) Photos(ctx context.Context, id string) ([]string, error) {
	c := s.store.Cache()
	if hit, ok := cache.Get[[]string](c, cache.Photos, id); ok {
		return hit, nil
	}
	resp, err := s.search.GetPhotos(ctx, id)
	if err != nil {
		return nil, err
	}
	c.CachePhotos(id, resp.Photos)
	return resp.Photos, nil
}
