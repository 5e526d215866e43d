package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bassista/go_happyhour/internal/apperr"
	"github.com/bassista/go_happyhour/internal/cache"
	"github.com/bassista/go_happyhour/internal/location"
	"github.com/bassista/go_happyhour/internal/pipeline"
	"github.com/bassista/go_happyhour/internal/state"
	"github.com/bassista/go_happyhour/internal/yelp"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sf = state.SearchParams{Latitude: 37.7749, Longitude: -122.4194, Radius: 5, Term: "happy hour"}

type fakeSearch struct {
	mu          sync.Mutex
	searches    int
	details     int
	reviews     int
	searchErr   error
	rating      float64
	gate        chan struct{}
	gateEntered chan struct{}
}

func (f *fakeSearch) Search(_ context.Context, p state.SearchParams) (*yelp.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return &yelp.SearchResponse{
		Businesses: []yelp.Business{{ID: "v1", Name: "Tap Room", Price: "$$"}, {ID: "v2", Name: "The Local"}},
		Total:      2,
	}, nil
}

func (f *fakeSearch) GetDetails(_ context.Context, id string) (*yelp.BusinessDetails, error) {
	f.mu.Lock()
	f.details++
	call := f.details
	rating := f.rating
	gate := f.gate
	f.mu.Unlock()

	if gate != nil && call == 1 {
		close(f.gateEntered)
		<-gate
		rating = 3.0
	}
	return &yelp.BusinessDetails{Business: yelp.Business{ID: id, Name: "Tap Room", Rating: rating}}, nil
}

func (f *fakeSearch) GetReviews(_ context.Context, id string) (*yelp.ReviewsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews++
	return &yelp.ReviewsResponse{Reviews: []yelp.Review{{ID: "r1", Text: "great wings", Rating: 5}}}, nil
}

func (f *fakeSearch) GetPhotos(_ context.Context, id string) (*yelp.PhotosResponse, error) {
	return &yelp.PhotosResponse{Photos: []string{"https://img/" + id + ".jpg"}}, nil
}

type fakeBackend struct {
	mu        sync.Mutex
	token     string
	refreshed string
	logoutErr error
	added     []string
	removed   []string
	analytics state.Analytics
}

func (f *fakeBackend) Login(_ context.Context, c state.Credentials) (state.Session, error) {
	if c.Password != "hunter22" {
		return state.Session{}, apperr.New(apperr.Unauthorized)
	}
	return state.Session{User: state.User{ID: 7, Email: c.Email}, Token: f.token}, nil
}

func (f *fakeBackend) Register(_ context.Context, r state.Registration) (state.Session, error) {
	return state.Session{}, apperr.Newf(apperr.GenericError, "Email already registered")
}

func (f *fakeBackend) Logout(context.Context) error { return f.logoutErr }

func (f *fakeBackend) Refresh(_ context.Context, token string) (string, error) {
	return f.refreshed, nil
}

func (f *fakeBackend) HappyHourSpecials(_ context.Context, id string) ([]state.HappyHourSpecial, error) {
	return []state.HappyHourSpecial{{ID: 1, VenueID: id, Title: "$5 drafts", IsActive: true}}, nil
}

func (f *fakeBackend) MenuItems(_ context.Context, id string) ([]state.MenuItem, error) {
	return []state.MenuItem{{ID: 1, VenueID: id, Name: "Wings"}}, nil
}

func (f *fakeBackend) AddFavorite(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, id)
	return nil
}

func (f *fakeBackend) RemoveFavorite(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeBackend) UpdatePreferences(_ context.Context, p state.PreferencesPatch) (state.PreferencesPatch, error) {
	return p, nil
}

func (f *fakeBackend) CheckIn(_ context.Context, ci state.CheckIn) (state.CheckIn, error) {
	return ci, nil
}

func (f *fakeBackend) Analytics(context.Context) (state.Analytics, error) {
	return f.analytics, nil
}

func newServices(t *testing.T, search SearchAPI, b Backend) *Services {
	t.Helper()
	return New(pipeline.New(nil), search, b)
}

func TestSearchVenues_CachesAndRecordsRecentSearch(t *testing.T) {
	search := &fakeSearch{}
	s := newServices(t, search, nil)
	ctx := context.Background()

	res, err := s.SearchVenues(ctx, sf)
	require.NoError(t, err)
	assert.Len(t, res.Venues, 2)
	assert.Equal(t, 2, res.Venues[0].PriceLevel)

	_, err = s.SearchVenues(ctx, sf)
	require.NoError(t, err)
	assert.Equal(t, 1, search.searches)

	st := s.Store().State()
	assert.Len(t, st.Venues.SearchResults, 2)
	assert.Equal(t, "happy hour", st.Venues.LastSearchQuery)
	require.Len(t, st.Search.RecentSearches, 1)
	assert.Equal(t, "happy hour", st.Search.RecentSearches[0].Query)
	assert.False(t, st.Venues.IsLoading)
}

func TestSearchVenues_DifferentOptionsMissCache(t *testing.T) {
	search := &fakeSearch{}
	s := newServices(t, search, nil)
	ctx := context.Background()

	_, err := s.SearchVenues(ctx, sf)
	require.NoError(t, err)

	open := true
	p := sf
	p.OpenNow = &open
	p.SortBy = "rating"
	p.Limit = 5
	_, err = s.SearchVenues(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 2, search.searches)

	p.Categories = []string{"pubs", "bars"}
	_, err = s.SearchVenues(ctx, p)
	require.NoError(t, err)
	p.Categories = []string{"bars", "pubs"}
	_, err = s.SearchVenues(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 3, search.searches)
}

func TestSearchVenues_EmptyTermSkipsRecentSearch(t *testing.T) {
	s := newServices(t, &fakeSearch{}, nil)
	p := sf
	p.Term = "  "

	_, err := s.SearchVenues(context.Background(), p)
	require.NoError(t, err)
	assert.Empty(t, s.Store().State().Search.RecentSearches)
}

func TestSearchVenues_Failures(t *testing.T) {
	t.Run("invalid location", func(t *testing.T) {
		search := &fakeSearch{}
		s := newServices(t, search, nil)

		_, err := s.SearchVenues(context.Background(), state.SearchParams{Latitude: 120, Radius: 5})
		assert.Equal(t, apperr.ValidationError, apperr.KindOf(err))
		assert.Equal(t, "Invalid search location", s.Store().State().Venues.Error)
		assert.Zero(t, search.searches)
	})

	t.Run("foreign error", func(t *testing.T) {
		s := newServices(t, &fakeSearch{searchErr: errors.New("dial tcp: refused")}, nil)

		_, err := s.SearchVenues(context.Background(), sf)
		require.Error(t, err)
		st := s.Store().State()
		assert.Equal(t, "Search failed", st.Venues.Error)
		assert.False(t, st.Venues.IsLoading)
	})

	t.Run("api error", func(t *testing.T) {
		s := newServices(t, &fakeSearch{searchErr: apperr.New(apperr.RateLimited)}, nil)

		_, err := s.SearchVenues(context.Background(), sf)
		require.Error(t, err)
		assert.Equal(t, apperr.DefaultMessage(apperr.RateLimited), s.Store().State().Venues.Error)
	})
}

func TestGetVenueDetails_MergesBackendData(t *testing.T) {
	search := &fakeSearch{rating: 4.5}
	s := newServices(t, search, &fakeBackend{})
	ctx := context.Background()

	res, err := s.GetVenueDetails(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", res.Venue.ID)
	require.Len(t, res.Specials, 1)
	assert.Equal(t, "$5 drafts", res.Specials[0].Title)
	require.Len(t, res.MenuItems, 1)

	_, err = s.GetVenueDetails(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, 1, search.details)

	menu, ok := cache.Get[[]state.MenuItem](s.Store().Cache(), cache.MenuData, "v1")
	require.True(t, ok)
	assert.Equal(t, "Wings", menu[0].Name)

	st := s.Store().State()
	assert.Equal(t, 4.5, st.Venues.VenueDetails["v1"].Rating)
	assert.Len(t, st.Venues.HappyHourSpecials["v1"], 1)
	require.NotNil(t, st.Venues.SelectedVenue)
	assert.False(t, st.Venues.IsLoadingDetails)
}

func TestGetVenueDetails_Offline(t *testing.T) {
	s := newServices(t, &fakeSearch{}, nil)

	res, err := s.GetVenueDetails(context.Background(), "v1")
	require.NoError(t, err)
	assert.NotNil(t, res.Specials)
	assert.Empty(t, res.Specials)
	assert.NotNil(t, res.MenuItems)
}

func TestRefreshVenueDetails_DiscardsSupersededFetch(t *testing.T) {
	search := &fakeSearch{rating: 4.5, gate: make(chan struct{}), gateEntered: make(chan struct{})}
	s := newServices(t, search, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := s.GetVenueDetails(ctx, "v1")
		done <- err
	}()
	<-search.gateEntered

	fresh, err := s.RefreshVenueDetails(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, 4.5, fresh.Venue.Rating)

	close(search.gate)
	require.NoError(t, <-done)

	st := s.Store().State()
	assert.Equal(t, 4.5, st.Venues.VenueDetails["v1"].Rating)
	assert.False(t, st.Venues.IsLoadingDetails)
	assert.Equal(t, 2, search.details)
}

func TestToggleFavorite(t *testing.T) {
	b := &fakeBackend{}
	s := newServices(t, &fakeSearch{}, b)
	ctx := context.Background()

	res, err := s.ToggleFavorite(ctx, "v1")
	require.NoError(t, err)
	assert.True(t, res.IsFavorite)
	assert.True(t, s.Store().State().Venues.IsFavorite("v1"))

	favs, ok := cache.Get[[]string](s.Store().Cache(), cache.Favorites, "")
	require.True(t, ok)
	assert.Equal(t, []string{"v1"}, favs)

	res, err = s.ToggleFavorite(ctx, "v1")
	require.NoError(t, err)
	assert.False(t, res.IsFavorite)
	assert.False(t, s.Store().State().Venues.IsFavorite("v1"))

	assert.Equal(t, []string{"v1"}, b.added)
	assert.Equal(t, []string{"v1"}, b.removed)
}

func TestReviewsAndPhotos_AreCached(t *testing.T) {
	search := &fakeSearch{}
	s := newServices(t, search, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		reviews, err := s.Reviews(ctx, "v1")
		require.NoError(t, err)
		assert.Equal(t, "great wings", reviews[0].Text)
	}
	assert.Equal(t, 1, search.reviews)

	photos, err := s.Photos(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img/v1.jpg"}, photos)
	assert.Equal(t, 1, s.Store().Cache().Len(cache.Photos))
}

func TestLogin(t *testing.T) {
	s := newServices(t, &fakeSearch{}, &fakeBackend{token: "tok-1"})
	ctx := context.Background()

	_, err := s.Login(ctx, state.Credentials{Email: "not-an-email", Password: "x"})
	assert.Equal(t, apperr.ValidationError, apperr.KindOf(err))
	assert.False(t, s.Store().State().Auth.IsLoading)

	_, err = s.Login(ctx, state.Credentials{Email: "ann@example.com", Password: "wrong"})
	require.Error(t, err)
	st := s.Store().State()
	assert.Equal(t, apperr.DefaultMessage(apperr.Unauthorized), st.Auth.Error)
	assert.False(t, st.Auth.IsAuthenticated)

	sess, err := s.Login(ctx, state.Credentials{Email: "ann@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.Equal(t, "tok-1", sess.Token)

	st = s.Store().State()
	assert.True(t, st.Auth.IsAuthenticated)
	assert.Equal(t, "tok-1", s.Token())
	assert.Empty(t, st.Auth.Error)
}

func TestRegister(t *testing.T) {
	s := newServices(t, &fakeSearch{}, &fakeBackend{})
	ctx := context.Background()

	_, err := s.Register(ctx, state.Registration{Email: "ann@example.com", Password: "123", FirstName: "Ann", LastName: "Lee"})
	assert.Equal(t, apperr.ValidationError, apperr.KindOf(err))

	_, err = s.Register(ctx, state.Registration{Email: "ann@example.com", Password: "123456", FirstName: "Ann", LastName: "Lee"})
	require.Error(t, err)
	assert.Equal(t, "Email already registered", s.Store().State().Auth.Error)
}

func TestAccountOperations_Offline(t *testing.T) {
	s := newServices(t, &fakeSearch{}, nil)

	_, err := s.Login(context.Background(), state.Credentials{Email: "ann@example.com", Password: "hunter22"})
	require.Error(t, err)
	assert.Equal(t, "Login failed", s.Store().State().Auth.Error)
}

func TestLogout_SwallowsBackendError(t *testing.T) {
	b := &fakeBackend{token: "tok-1", logoutErr: apperr.New(apperr.ServerError)}
	s := newServices(t, &fakeSearch{}, b)
	ctx := context.Background()

	_, err := s.Login(ctx, state.Credentials{Email: "ann@example.com", Password: "hunter22"})
	require.NoError(t, err)
	s.Store().Cache().CacheFavorites([]string{"v1"})

	require.NoError(t, s.Logout(ctx))

	st := s.Store().State()
	assert.False(t, st.Auth.IsAuthenticated)
	assert.Nil(t, st.Auth.User)
	assert.Empty(t, st.Auth.Token)
	assert.Zero(t, s.Store().Cache().Len(cache.Favorites))
}

func TestRefreshToken(t *testing.T) {
	t.Run("no token", func(t *testing.T) {
		s := newServices(t, &fakeSearch{}, &fakeBackend{})

		_, err := s.RefreshToken(context.Background())
		assert.ErrorIs(t, err, ErrNoToken)
		assert.False(t, s.Store().State().Auth.IsAuthenticated)
	})

	t.Run("replaces token", func(t *testing.T) {
		s := newServices(t, &fakeSearch{}, &fakeBackend{token: "tok-1", refreshed: "tok-2"})
		ctx := context.Background()
		_, err := s.Login(ctx, state.Credentials{Email: "ann@example.com", Password: "hunter22"})
		require.NoError(t, err)

		tok, err := s.RefreshToken(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok-2", tok)
		assert.Equal(t, "tok-2", s.Store().State().Auth.Token)
		assert.True(t, s.Store().State().Auth.IsAuthenticated)
	})
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

func TestRefreshIfExpiring(t *testing.T) {
	now := time.Date(2024, 6, 1, 17, 0, 0, 0, time.UTC)
	ctx := context.Background()

	cases := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{"far from expiry", now.Add(2 * time.Hour), false},
		{"inside window", now.Add(2 * time.Minute), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := &fakeBackend{token: signedToken(t, tc.expires), refreshed: "tok-2"}
			s := New(pipeline.New(nil), &fakeSearch{}, b, WithClock(func() time.Time { return now }))
			_, err := s.Login(ctx, state.Credentials{Email: "ann@example.com", Password: "hunter22"})
			require.NoError(t, err)

			ran, err := s.RefreshIfExpiring(ctx, 5*time.Minute)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ran)
		})
	}
}

func TestUpdatePreferences(t *testing.T) {
	s := newServices(t, &fakeSearch{}, nil)
	ctx := context.Background()

	bad := "neon"
	_, err := s.UpdatePreferences(ctx, state.PreferencesPatch{Theme: &bad})
	assert.Equal(t, apperr.ValidationError, apperr.KindOf(err))

	dark := "dark"
	radius := 10.0
	prefs, err := s.UpdatePreferences(ctx, state.PreferencesPatch{Theme: &dark, DefaultRadius: &radius})
	require.NoError(t, err)
	assert.Equal(t, "dark", prefs.Theme)
	assert.Equal(t, 10.0, prefs.DefaultRadius)

	cached, ok := cache.Get[state.Preferences](s.Store().Cache(), cache.UserPreferences, "")
	require.True(t, ok)
	assert.Equal(t, prefs, cached)
}

func TestCheckIn(t *testing.T) {
	now := time.Date(2024, 6, 1, 17, 30, 0, 0, time.UTC)
	s := New(pipeline.New(nil), &fakeSearch{}, &fakeBackend{}, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := s.CheckIn(ctx, CheckInInput{VenueName: "Tap Room"})
	assert.Equal(t, apperr.ValidationError, apperr.KindOf(err))

	rating := 4.0
	ci, err := s.CheckIn(ctx, CheckInInput{VenueID: "v1", VenueName: "Tap Room", Rating: &rating})
	require.NoError(t, err)
	assert.NotEmpty(t, ci.ID)
	assert.Equal(t, now, ci.Timestamp)

	st := s.Store().State().User
	require.Len(t, st.CheckIns, 1)
	assert.Equal(t, ci.ID, st.CheckIns[0].ID)
	assert.Equal(t, 1, st.TotalCheckIns)
}

func TestLoadAnalytics(t *testing.T) {
	b := &fakeBackend{token: "tok-1", analytics: state.Analytics{TotalCheckIns: 12, AverageRating: 4.2}}
	s := newServices(t, &fakeSearch{}, b)
	ctx := context.Background()

	_, err := s.LoadAnalytics(ctx)
	assert.Equal(t, apperr.Unauthorized, apperr.KindOf(err))
	assert.Equal(t, "Sign in to see your stats", s.Store().State().User.Error)

	_, err = s.Login(ctx, state.Credentials{Email: "ann@example.com", Password: "hunter22"})
	require.NoError(t, err)

	an, err := s.LoadAnalytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, an.TotalCheckIns)

	st := s.Store().State().User
	assert.Equal(t, 12, st.TotalCheckIns)
	assert.Equal(t, 4.2, st.AverageRating)
	assert.False(t, st.IsLoading)
}

func TestLocate(t *testing.T) {
	ctx := context.Background()

	t.Run("granted", func(t *testing.T) {
		p := location.NewStaticProvider(location.Coordinates{Latitude: 37.7749, Longitude: -122.4194})
		s := New(pipeline.New(nil), &fakeSearch{}, nil, WithLocator(location.NewService(p)))

		loc, err := s.Locate(ctx)
		require.NoError(t, err)
		assert.Equal(t, 37.7749, loc.Latitude)

		st := s.Store().State().Search
		require.NotNil(t, st.Location)
		assert.Equal(t, loc, *st.Location)
		assert.Equal(t, state.PermissionGranted, st.LocationPermission)
		assert.False(t, st.IsLocationLoading)
	})

	t.Run("denied", func(t *testing.T) {
		p := location.NewStaticProvider(location.Coordinates{Latitude: 37.7749, Longitude: -122.4194})
		p.SetPermission(false)
		s := New(pipeline.New(nil), &fakeSearch{}, nil, WithLocator(location.NewService(p)))

		_, err := s.Locate(ctx)
		assert.Equal(t, apperr.PermissionDenied, apperr.KindOf(err))

		st := s.Store().State().Search
		assert.Nil(t, st.Location)
		assert.Equal(t, state.PermissionDenied, st.LocationPermission)
		assert.False(t, st.IsLocationLoading)
	})

	t.Run("no locator", func(t *testing.T) {
		s := newServices(t, &fakeSearch{}, nil)
		_, err := s.Locate(ctx)
		assert.Equal(t, apperr.LocationUnavailable, apperr.KindOf(err))
	})
}
