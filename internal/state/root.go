package state

// RootState is the whole application state. Each slice is owned by its reducer.
type RootState struct {
	Auth   AuthState   `json:"auth"`
	Venues VenueState  `json:"venues"`
	Search SearchState `json:"search"`
	User   UserState   `json:"user"`
}

// InitialRootState returns the state of a fresh start.
func InitialRootState() RootState {
	return RootState{
		Auth:   InitialAuthState(),
		Venues: InitialVenueState(),
		Search: InitialSearchState(),
		User:   InitialUserState(),
	}
}

// Reduce routes a to the reducer owning its slice. Unknown slices leave the
// state unchanged.
func Reduce(s RootState, a Action) RootState {
	switch a.Slice() {
	case SliceAuth:
		s.Auth = ReduceAuth(s.Auth, a)
	case SliceVenues:
		s.Venues = ReduceVenues(s.Venues, a)
	case SliceSearch:
		s.Search = ReduceSearch(s.Search, a)
	case SliceUser:
		s.User = ReduceUser(s.User, a)
	}
	return s
}

// Persisted is the whitelisted subset that survives restarts.
type Persisted struct {
	Auth AuthState `json:"auth"`
	User UserState `json:"user"`
}

// Persist extracts the whitelisted slices from s.
func (s RootState) Persist() Persisted {
	return Persisted{Auth: s.Auth, User: s.User}
}

// Hydrate builds a fresh-start state from p. Transient slices are left at
// their defaults and in-progress flags are cleared.
func Hydrate(p Persisted) RootState {
	s := InitialRootState()
	s.Auth = p.Auth
	s.Auth.IsLoading = false
	s.User = p.User
	s.User.IsLoading = false
	if s.User.CheckIns == nil {
		s.User.CheckIns = []CheckIn{}
	}
	if s.User.VisitHistory == nil {
		s.User.VisitHistory = []Visit{}
	}
	if s.User.Achievements == nil {
		s.User.Achievements = []Achievement{}
	}
	if s.User.FavoriteCategories == nil {
		s.User.FavoriteCategories = []string{}
	}
	return s
}
