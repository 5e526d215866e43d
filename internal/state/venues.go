package state

import "time"

// Synchronous venue actions.
const (
	VenuesClearError         = "venues/clearError"
	VenuesSetSelectedVenue   = "venues/setSelectedVenue"
	VenuesClearSearchResults = "venues/clearSearchResults"
	VenuesUpdateVenueRating  = "venues/updateVenueRating"
)

// VenueState is the venue slice. It is never persisted.
type VenueState struct {
	SearchResults      []Venue                       `json:"searchResults"`
	SelectedVenue      *Venue                        `json:"selectedVenue"`
	VenueDetails       map[string]Venue              `json:"venueDetails"`
	HappyHourSpecials  map[string][]HappyHourSpecial `json:"happyHourSpecials"`
	MenuItems          map[string][]MenuItem         `json:"menuItems"`
	Favorites          []string                      `json:"favorites"`
	IsLoading          bool                          `json:"isLoading"`
	IsLoadingDetails   bool                          `json:"isLoadingDetails"`
	Error              string                        `json:"error,omitempty"`
	LastSearchQuery    string                        `json:"lastSearchQuery,omitempty"`
	LastSearchLocation *LatLng                       `json:"lastSearchLocation"`
	LastUpdate         *time.Time                    `json:"lastUpdate"`
}

// SearchResult is the fulfilled payload of searchVenues.
type SearchResult struct {
	Venues []Venue
	Params SearchParams
	Total  int
}

// VenueDetailsResult is the fulfilled payload of getVenueDetails.
type VenueDetailsResult struct {
	Venue     Venue
	Specials  []HappyHourSpecial
	MenuItems []MenuItem
}

// FavoriteResult is the fulfilled payload of toggleFavorite.
type FavoriteResult struct {
	VenueID    string
	IsFavorite bool
}

// RatingUpdate is the payload of updateVenueRating.
type RatingUpdate struct {
	VenueID     string
	Rating      float64
	ReviewCount int
}

// InitialVenueState returns an empty venue slice.
func InitialVenueState() VenueState {
	return VenueState{
		SearchResults:     []Venue{},
		VenueDetails:      map[string]Venue{},
		HappyHourSpecials: map[string][]HappyHourSpecial{},
		MenuItems:         map[string][]MenuItem{},
		Favorites:         []string{},
	}
}

// IsFavorite reports whether id is in the favorites list.
func (s VenueState) IsFavorite(id string) bool {
	return contains(s.Favorites, id)
}

// ReduceVenues applies a venue action and returns the new slice. The input is
// never modified.
func ReduceVenues(s VenueState, a Action) VenueState {
	switch a.Type {
	case VenuesClearError:
		s.Error = ""

	case VenuesSetSelectedVenue:
		v, _ := a.Payload.(*Venue)
		s.SelectedVenue = cloneVenuePtr(v)

	case VenuesClearSearchResults:
		s.SearchResults = []Venue{}
		s.LastSearchQuery = ""
		s.LastSearchLocation = nil

	case VenuesUpdateVenueRating:
		if p, ok := a.Payload.(RatingUpdate); ok {
			s = updateVenueRating(s, p)
		}

	case Pending(OpSearchVenues):
		s.IsLoading = true
		s.Error = ""
	case Fulfilled(OpSearchVenues):
		s.IsLoading = false
		s.Error = ""
		if p, ok := a.Payload.(SearchResult); ok {
			s.SearchResults = append([]Venue{}, p.Venues...)
			s.LastSearchQuery = p.Params.Term
			s.LastSearchLocation = &LatLng{Lat: p.Params.Latitude, Lng: p.Params.Longitude}
			at := a.Meta.At
			s.LastUpdate = &at
		}
	case Rejected(OpSearchVenues):
		s.IsLoading = false
		s.Error = a.Error

	case Pending(OpGetVenueDetails):
		s.IsLoadingDetails = true
		s.Error = ""
	case Fulfilled(OpGetVenueDetails):
		s.IsLoadingDetails = false
		if a.Meta.Stale {
			break
		}
		s.Error = ""
		if p, ok := a.Payload.(VenueDetailsResult); ok {
			id := p.Venue.ID
			s.VenueDetails = copyMap(s.VenueDetails)
			s.VenueDetails[id] = p.Venue
			s.HappyHourSpecials = copyMap(s.HappyHourSpecials)
			s.HappyHourSpecials[id] = append([]HappyHourSpecial{}, p.Specials...)
			s.MenuItems = copyMap(s.MenuItems)
			s.MenuItems[id] = append([]MenuItem{}, p.MenuItems...)
			s.SelectedVenue = cloneVenuePtr(&p.Venue)
		}
	case Rejected(OpGetVenueDetails):
		s.IsLoadingDetails = false
		s.Error = a.Error

	case Fulfilled(OpToggleFavorite):
		if p, ok := a.Payload.(FavoriteResult); ok {
			s.Favorites = setMembership(s.Favorites, p.VenueID, p.IsFavorite)
		}
	case Rejected(OpToggleFavorite):
		s.Error = a.Error
	}
	return s
}

// updateVenueRating rewrites the venue in the search results, the details map
// and the selected venue together so no copy is left stale.
func updateVenueRating(s VenueState, p RatingUpdate) VenueState {
	for i := range s.SearchResults {
		if s.SearchResults[i].ID == p.VenueID {
			results := append([]Venue{}, s.SearchResults...)
			results[i].Rating = p.Rating
			results[i].ReviewCount = p.ReviewCount
			s.SearchResults = results
			break
		}
	}

	if v, ok := s.VenueDetails[p.VenueID]; ok {
		v.Rating = p.Rating
		v.ReviewCount = p.ReviewCount
		s.VenueDetails = copyMap(s.VenueDetails)
		s.VenueDetails[p.VenueID] = v
	}

	if s.SelectedVenue != nil && s.SelectedVenue.ID == p.VenueID {
		v := *s.SelectedVenue
		v.Rating = p.Rating
		v.ReviewCount = p.ReviewCount
		s.SelectedVenue = &v
	}
	return s
}

func cloneVenuePtr(v *Venue) *Venue {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
