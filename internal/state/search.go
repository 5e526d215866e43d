package state

import (
	"time"

	"github.com/google/uuid"
)

// MaxRecentSearches bounds the recent search history.
const MaxRecentSearches = 10

// Synchronous search actions.
const (
	SearchSetQuery              = "search/setSearchQuery"
	SearchClearQuery            = "search/clearSearchQuery"
	SearchSetLocation           = "search/setSearchLocation"
	SearchClearLocation         = "search/clearSearchLocation"
	SearchSetLocationLoading    = "search/setLocationLoading"
	SearchSetLocationPermission = "search/setLocationPermission"
	SearchSetRadius             = "search/setSearchRadius"
	SearchUpdateFilters         = "search/updateFilters"
	SearchResetFilters          = "search/resetFilters"
	SearchToggleCategory        = "search/toggleCategory"
	SearchTogglePriceLevel      = "search/togglePriceLevel"
	SearchSetSortBy             = "search/setSortBy"
	SearchSetActive             = "search/setSearchActive"
	SearchToggleFilters         = "search/toggleFilters"
	SearchSetShowFilters        = "search/setShowFilters"
	SearchSetSuggestions        = "search/setSearchSuggestions"
	SearchClearSuggestions      = "search/clearSearchSuggestions"
	SearchAddRecentSearch       = "search/addRecentSearch"
	SearchRemoveRecentSearch    = "search/removeRecentSearch"
	SearchClearRecentSearches   = "search/clearRecentSearches"
	SearchUpdatePopularSearches = "search/updatePopularSearches"
	SearchSetQuickSearch        = "search/setQuickSearch"
	SearchNearbyHappyHour       = "search/searchNearbyHappyHour"
	SearchCraftBeer             = "search/searchCraftBeer"
	SearchCocktailBars          = "search/searchCocktailBars"
	SearchSportsBars            = "search/searchSportsBars"
	SearchReset                 = "search/resetSearch"
)

// SortKey orders search results.
type SortKey string

const (
	SortDistance    SortKey = "distance"
	SortRating      SortKey = "rating"
	SortReviewCount SortKey = "review_count"
	SortBestMatch   SortKey = "best_match"
)

// LocationPermission mirrors the platform permission state.
type LocationPermission string

const (
	PermissionGranted      LocationPermission = "granted"
	PermissionDenied       LocationPermission = "denied"
	PermissionNotRequested LocationPermission = "not_requested"
)

// SearchFilters narrow a search. Distance is in miles.
type SearchFilters struct {
	Categories   []string `json:"categories"`
	PriceLevel   []int    `json:"priceLevel"`
	Rating       *float64 `json:"rating"`
	OpenNow      bool     `json:"openNow"`
	HasHappyHour bool     `json:"hasHappyHour"`
	Distance     float64  `json:"distance"`
}

// FiltersPatch is a partial filter update; nil fields are left alone.
type FiltersPatch struct {
	Categories   []string
	PriceLevel   []int
	Rating       **float64
	OpenNow      *bool
	HasHappyHour *bool
	Distance     *float64
}

// SearchLocation is where the user wants to search.
type SearchLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
	City      string  `json:"city,omitempty"`
	State     string  `json:"state,omitempty"`
}

// RecentSearch is one entry of the search history.
type RecentSearch struct {
	ID        string         `json:"id"`
	Query     string         `json:"query"`
	Location  SearchLocation `json:"location"`
	Timestamp time.Time      `json:"timestamp"`
}

// PopularSearch is a suggested query with its usage count.
type PopularSearch struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// QuickSearch sets a query and optionally patches filters.
type QuickSearch struct {
	Query   string
	Filters *FiltersPatch
}

// SearchState is the search slice. It is never persisted.
type SearchState struct {
	Query              string             `json:"query"`
	Location           *SearchLocation    `json:"location"`
	Radius             float64            `json:"radius"`
	Filters            SearchFilters      `json:"filters"`
	SortBy             SortKey            `json:"sortBy"`
	RecentSearches     []RecentSearch     `json:"recentSearches"`
	PopularSearches    []PopularSearch    `json:"popularSearches"`
	IsSearchActive     bool               `json:"isSearchActive"`
	ShowFilters        bool               `json:"showFilters"`
	SearchSuggestions  []string           `json:"searchSuggestions"`
	LocationPermission LocationPermission `json:"locationPermission"`
	IsLocationLoading  bool               `json:"isLocationLoading"`
}

// DefaultFilters returns the filters a fresh search starts with.
func DefaultFilters() SearchFilters {
	return SearchFilters{
		Categories: []string{},
		PriceLevel: []int{1, 2, 3, 4},
		OpenNow:    true,
		Distance:   50,
	}
}

// DefaultPopularSearches is the static popular search list.
func DefaultPopularSearches() []PopularSearch {
	return []PopularSearch{
		{Query: "happy hour", Count: 1000},
		{Query: "craft beer", Count: 850},
		{Query: "cocktails", Count: 720},
		{Query: "wine bar", Count: 650},
		{Query: "sports bar", Count: 600},
	}
}

// InitialSearchState returns the default search slice.
func InitialSearchState() SearchState {
	return SearchState{
		Radius:             25,
		Filters:            DefaultFilters(),
		SortBy:             SortDistance,
		RecentSearches:     []RecentSearch{},
		PopularSearches:    DefaultPopularSearches(),
		SearchSuggestions:  []string{},
		LocationPermission: PermissionNotRequested,
	}
}

// AddRecentSearch builds an addRecentSearch action with a fresh id.
func AddRecentSearch(query string, loc SearchLocation) Action {
	return Action{
		Type:    SearchAddRecentSearch,
		Payload: RecentSearch{ID: uuid.NewString(), Query: query, Location: loc},
	}
}

// ReduceSearch applies a search action and returns the new slice.
func ReduceSearch(s SearchState, a Action) SearchState {
	switch a.Type {
	case SearchSetQuery:
		s.Query, _ = a.Payload.(string)
	case SearchClearQuery:
		s.Query = ""

	case SearchSetLocation:
		if loc, ok := a.Payload.(SearchLocation); ok {
			s.Location = &loc
		}
	case SearchClearLocation:
		s.Location = nil
	case SearchSetLocationLoading:
		s.IsLocationLoading, _ = a.Payload.(bool)
	case SearchSetLocationPermission:
		if p, ok := a.Payload.(LocationPermission); ok {
			s.LocationPermission = p
		}

	case SearchSetRadius:
		if r, ok := a.Payload.(float64); ok {
			s.Radius = r
		}

	case SearchUpdateFilters:
		if p, ok := a.Payload.(FiltersPatch); ok {
			s.Filters = applyFilters(s.Filters, p)
		}
	case SearchResetFilters:
		s.Filters = DefaultFilters()
	case SearchToggleCategory:
		if c, ok := a.Payload.(string); ok {
			s.Filters.Categories = toggle(s.Filters.Categories, c)
		}
	case SearchTogglePriceLevel:
		if p, ok := a.Payload.(int); ok {
			s.Filters.PriceLevel = toggle(s.Filters.PriceLevel, p)
		}

	case SearchSetSortBy:
		if k, ok := a.Payload.(SortKey); ok {
			s.SortBy = k
		}

	case SearchSetActive:
		s.IsSearchActive, _ = a.Payload.(bool)
	case SearchToggleFilters:
		s.ShowFilters = !s.ShowFilters
	case SearchSetShowFilters:
		s.ShowFilters, _ = a.Payload.(bool)

	case SearchSetSuggestions:
		if list, ok := a.Payload.([]string); ok {
			s.SearchSuggestions = append([]string{}, list...)
		}
	case SearchClearSuggestions:
		s.SearchSuggestions = []string{}

	case SearchAddRecentSearch:
		if r, ok := a.Payload.(RecentSearch); ok {
			s.RecentSearches = addRecentSearch(s.RecentSearches, r, a.Meta.At)
		}
	case SearchRemoveRecentSearch:
		if id, ok := a.Payload.(string); ok {
			kept := make([]RecentSearch, 0, len(s.RecentSearches))
			for _, r := range s.RecentSearches {
				if r.ID != id {
					kept = append(kept, r)
				}
			}
			s.RecentSearches = kept
		}
	case SearchClearRecentSearches:
		s.RecentSearches = []RecentSearch{}

	case SearchUpdatePopularSearches:
		if list, ok := a.Payload.([]PopularSearch); ok {
			s.PopularSearches = append([]PopularSearch{}, list...)
		}

	case SearchSetQuickSearch:
		if q, ok := a.Payload.(QuickSearch); ok {
			s.Query = q.Query
			if q.Filters != nil {
				s.Filters = applyFilters(s.Filters, *q.Filters)
			}
		}

	case SearchNearbyHappyHour:
		s.Query = "happy hour"
		s.Filters = DefaultFilters()
		s.Filters.HasHappyHour = true
		s.Filters.OpenNow = true
		s.SortBy = SortDistance
	case SearchCraftBeer:
		s.Query = "craft beer"
		s.Filters = DefaultFilters()
		s.Filters.Categories = []string{"breweries", "beerbar"}
	case SearchCocktailBars:
		s.Query = "cocktails"
		s.Filters = DefaultFilters()
		s.Filters.Categories = []string{"cocktailbars", "wine_bars"}
		s.Filters.PriceLevel = []int{2, 3, 4}
	case SearchSportsBars:
		s.Query = "sports"
		s.Filters = DefaultFilters()
		s.Filters.Categories = []string{"sportsbars", "pubs"}

	case SearchReset:
		s.Query = ""
		s.Filters = DefaultFilters()
		s.SortBy = SortDistance
		s.IsSearchActive = false
		s.ShowFilters = false
		s.SearchSuggestions = []string{}
	}
	return s
}

// addRecentSearch drops any entry with the same query and coordinates,
// prepends r and truncates to MaxRecentSearches.
func addRecentSearch(list []RecentSearch, r RecentSearch, at time.Time) []RecentSearch {
	if r.Timestamp.IsZero() {
		r.Timestamp = at
	}
	out := make([]RecentSearch, 0, len(list)+1)
	out = append(out, r)
	for _, existing := range list {
		if existing.Query == r.Query &&
			existing.Location.Latitude == r.Location.Latitude &&
			existing.Location.Longitude == r.Location.Longitude {
			continue
		}
		out = append(out, existing)
	}
	if len(out) > MaxRecentSearches {
		out = out[:MaxRecentSearches]
	}
	return out
}

func applyFilters(f SearchFilters, p FiltersPatch) SearchFilters {
	if p.Categories != nil {
		f.Categories = append([]string{}, p.Categories...)
	}
	if p.PriceLevel != nil {
		f.PriceLevel = append([]int{}, p.PriceLevel...)
	}
	if p.Rating != nil {
		f.Rating = *p.Rating
	}
	if p.OpenNow != nil {
		f.OpenNow = *p.OpenNow
	}
	if p.HasHappyHour != nil {
		f.HasHappyHour = *p.HasHappyHour
	}
	if p.Distance != nil {
		f.Distance = *p.Distance
	}
	return f
}
