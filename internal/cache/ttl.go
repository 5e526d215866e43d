package cache

import "time"

// TTLs holds the lifetime used by the typed helpers for each category.
type TTLs struct {
	SearchResults   time.Duration `mapstructure:"search_results"`
	VenueDetails    time.Duration `mapstructure:"venue_details"`
	Reviews         time.Duration `mapstructure:"reviews"`
	Photos          time.Duration `mapstructure:"photos"`
	MenuData        time.Duration `mapstructure:"menu_data"`
	UserPreferences time.Duration `mapstructure:"user_preferences"`
}

// DefaultTTLs returns the stock category lifetimes.
func DefaultTTLs() TTLs {
	return TTLs{
		SearchResults:   2 * time.Hour,
		VenueDetails:    24 * time.Hour,
		Reviews:         12 * time.Hour,
		Photos:          7 * 24 * time.Hour,
		MenuData:        24 * time.Hour,
		UserPreferences: 30 * 24 * time.Hour,
	}
}

// APIType selects which API response category a response belongs to.
type APIType string

const (
	APIYelp   APIType = "yelp"
	APICustom APIType = "custom"
)

func (s *Store) CacheVenueDetails(venueID string, data any) {
	s.Write(VenueDetails, venueID, data, s.ttls.VenueDetails)
}

func (s *Store) CacheSearchResults(searchKey string, data any) {
	s.Write(SearchResults, searchKey, data, s.ttls.SearchResults)
}

func (s *Store) CacheMenuData(venueID string, data any) {
	s.Write(MenuData, venueID, data, s.ttls.MenuData)
}

func (s *Store) CacheReviews(venueID string, data any) {
	s.Write(Reviews, venueID, data, s.ttls.Reviews)
}

func (s *Store) CachePhotos(venueID string, data any) {
	s.Write(Photos, venueID, data, s.ttls.Photos)
}

func (s *Store) CacheUserPreferences(data any) {
	s.Write(UserPreferences, singletonKey, data, s.ttls.UserPreferences)
}

// CacheFavorites shares the user preferences lifetime.
func (s *Store) CacheFavorites(data any) {
	s.Write(Favorites, singletonKey, data, s.ttls.UserPreferences)
}

// CacheAPIResponse stores a raw response under its endpoint with an explicit ttl.
func (s *Store) CacheAPIResponse(apiType APIType, endpoint string, data any, ttl time.Duration) {
	c := CustomAPI
	if apiType == APIYelp {
		c = YelpAPI
	}
	s.Write(c, endpoint, data, ttl)
}
