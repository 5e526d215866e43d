package state

import "time"

// Synchronous user actions.
const (
	UserSetPreferences          = "user/setPreferences"
	UserSetDefaultRadius        = "user/setDefaultRadius"
	UserSetHomeLocation         = "user/setHomeLocation"
	UserSetWorkLocation         = "user/setWorkLocation"
	UserTogglePreferredCategory = "user/togglePreferredCategory"
	UserToggleDrinkPreference   = "user/toggleDrinkPreference"
	UserUpdateNotificationPrefs = "user/updateNotificationPreferences"
	UserSetPreferredView        = "user/setPreferredView"
	UserSetDistanceUnit         = "user/setDistanceUnit"
	UserSetTheme                = "user/setTheme"
	UserAddCheckIn              = "user/addCheckIn"
	UserUpdateCheckIn           = "user/updateCheckIn"
	UserRemoveCheckIn           = "user/removeCheckIn"
	UserUnlockAchievement       = "user/unlockAchievement"
	UserUpdateAnalytics         = "user/updateAnalytics"
	UserClearData               = "user/clearUserData"
	UserClearError              = "user/clearError"
)

// UserState is the user slice. It is persisted.
type UserState struct {
	Preferences  Preferences `json:"preferences"`
	CheckIns     []CheckIn   `json:"checkIns"`
	VisitHistory []Visit     `json:"visitHistory"`

	TotalCheckIns      int      `json:"totalCheckIns"`
	TotalVenuesVisited int      `json:"totalVenuesVisited"`
	FavoriteCategories []string `json:"favoriteCategories"`
	AverageRating      float64  `json:"averageRating"`

	Achievements []Achievement `json:"achievements"`

	IsLoading bool   `json:"isLoading"`
	Error     string `json:"error,omitempty"`
}

// PreferencesPatch is a partial preferences update; nil fields are left alone.
type PreferencesPatch struct {
	DefaultRadius *float64       `json:"defaultRadius,omitempty" validate:"omitempty,gt=0"`
	HomeLocation  *SavedLocation `json:"homeLocation,omitempty"`
	WorkLocation  *SavedLocation `json:"workLocation,omitempty"`

	PreferredCategories  []string `json:"preferredCategories,omitempty"`
	PreferredPriceLevels []int    `json:"preferredPriceLevels,omitempty" validate:"omitempty,dive,min=1,max=4"`
	MinimumRating        *float64 `json:"minimumRating,omitempty" validate:"omitempty,min=0,max=5"`

	PreferredDays    []string     `json:"preferredDays,omitempty"`
	PreferredTimes   []TimeWindow `json:"preferredTimes,omitempty"`
	DrinkPreferences []string     `json:"drinkPreferences,omitempty"`
	FoodPreferences  []string     `json:"foodPreferences,omitempty"`

	PushNotificationsEnabled *bool `json:"pushNotificationsEnabled,omitempty"`
	LocationBasedAlerts      *bool `json:"locationBasedAlerts,omitempty"`
	TimeBasedAlerts          *bool `json:"timeBasedAlerts,omitempty"`
	FavoriteVenueAlerts      *bool `json:"favoriteVenueAlerts,omitempty"`
	NewVenueAlerts           *bool `json:"newVenueAlerts,omitempty"`
	PromotionalNotifications *bool `json:"promotionalNotifications,omitempty"`

	PreferredView *string `json:"preferredView,omitempty" validate:"omitempty,oneof=list map"`
	DistanceUnit  *string `json:"distanceUnit,omitempty" validate:"omitempty,oneof=miles kilometers"`
	Theme         *string `json:"theme,omitempty" validate:"omitempty,oneof=light dark auto"`
}

// CheckInPatch is the payload of updateCheckIn.
type CheckInPatch struct {
	ID             string
	Rating         *float64
	Notes          *string
	HappyHourItems []string
	Photos         []string
}

// AnalyticsUpdate is the payload of updateAnalytics; nil fields are left alone.
type AnalyticsUpdate struct {
	TotalCheckIns      *int
	TotalVenuesVisited *int
	FavoriteCategories []string
	AverageRating      *float64
}

// Analytics is the fulfilled payload of loadAnalytics.
type Analytics struct {
	TotalCheckIns      int           `json:"totalCheckIns"`
	TotalVenuesVisited int           `json:"totalVenuesVisited"`
	FavoriteCategories []string      `json:"favoriteCategories"`
	AverageRating      float64       `json:"averageRating"`
	Achievements       []Achievement `json:"achievements"`
}

// DefaultPreferences returns the settings of a new user.
func DefaultPreferences() Preferences {
	return Preferences{
		DefaultRadius:            25,
		PreferredCategories:      []string{},
		PreferredPriceLevels:     []int{1, 2, 3, 4},
		MinimumRating:            3.0,
		PreferredDays:            []string{"friday", "saturday"},
		PreferredTimes:           []TimeWindow{{Start: "16:00", End: "19:00"}},
		DrinkPreferences:         []string{},
		FoodPreferences:          []string{},
		PushNotificationsEnabled: true,
		LocationBasedAlerts:      true,
		TimeBasedAlerts:          true,
		FavoriteVenueAlerts:      true,
		NewVenueAlerts:           false,
		PromotionalNotifications: false,
		PreferredView:            "list",
		DistanceUnit:             "miles",
		Theme:                    "auto",
	}
}

// InitialUserState returns the default user slice.
func InitialUserState() UserState {
	return UserState{
		Preferences:        DefaultPreferences(),
		CheckIns:           []CheckIn{},
		VisitHistory:       []Visit{},
		FavoriteCategories: []string{},
		Achievements:       []Achievement{},
	}
}

// ReduceUser applies a user action and returns the new slice.
func ReduceUser(s UserState, a Action) UserState {
	switch a.Type {
	case UserSetPreferences, UserUpdateNotificationPrefs:
		if p, ok := a.Payload.(PreferencesPatch); ok {
			s.Preferences = ApplyPreferences(s.Preferences, p)
		}
	case UserSetDefaultRadius:
		if r, ok := a.Payload.(float64); ok {
			s.Preferences.DefaultRadius = r
		}
	case UserSetHomeLocation:
		loc, _ := a.Payload.(*SavedLocation)
		s.Preferences.HomeLocation = cloneLocation(loc)
	case UserSetWorkLocation:
		loc, _ := a.Payload.(*SavedLocation)
		s.Preferences.WorkLocation = cloneLocation(loc)
	case UserTogglePreferredCategory:
		if c, ok := a.Payload.(string); ok {
			s.Preferences.PreferredCategories = toggle(s.Preferences.PreferredCategories, c)
		}
	case UserToggleDrinkPreference:
		if d, ok := a.Payload.(string); ok {
			s.Preferences.DrinkPreferences = toggle(s.Preferences.DrinkPreferences, d)
		}
	case UserSetPreferredView:
		if v, ok := a.Payload.(string); ok {
			s.Preferences.PreferredView = v
		}
	case UserSetDistanceUnit:
		if u, ok := a.Payload.(string); ok {
			s.Preferences.DistanceUnit = u
		}
	case UserSetTheme:
		if t, ok := a.Payload.(string); ok {
			s.Preferences.Theme = t
		}

	case UserAddCheckIn:
		if c, ok := a.Payload.(CheckIn); ok {
			s = addCheckIn(s, c, a.Meta.At)
		}
	case UserUpdateCheckIn:
		if p, ok := a.Payload.(CheckInPatch); ok {
			s.CheckIns = updateCheckIn(s.CheckIns, p)
		}
	case UserRemoveCheckIn:
		if id, ok := a.Payload.(string); ok {
			kept := make([]CheckIn, 0, len(s.CheckIns))
			for _, c := range s.CheckIns {
				if c.ID != id {
					kept = append(kept, c)
				}
			}
			s.CheckIns = kept
			s.TotalCheckIns = max(0, s.TotalCheckIns-1)
		}

	case UserUnlockAchievement:
		if ach, ok := a.Payload.(Achievement); ok {
			s.Achievements = unlockAchievement(s.Achievements, ach, a.Meta.At)
		}

	case UserUpdateAnalytics:
		if u, ok := a.Payload.(AnalyticsUpdate); ok {
			if u.TotalCheckIns != nil {
				s.TotalCheckIns = *u.TotalCheckIns
			}
			if u.TotalVenuesVisited != nil {
				s.TotalVenuesVisited = *u.TotalVenuesVisited
			}
			if u.FavoriteCategories != nil {
				s.FavoriteCategories = append([]string{}, u.FavoriteCategories...)
			}
			if u.AverageRating != nil {
				s.AverageRating = *u.AverageRating
			}
		}

	case UserClearData:
		s.CheckIns = []CheckIn{}
		s.VisitHistory = []Visit{}
		s.TotalCheckIns = 0
		s.TotalVenuesVisited = 0
		s.FavoriteCategories = []string{}
		s.AverageRating = 0
		s.Achievements = []Achievement{}

	case UserClearError:
		s.Error = ""

	case Pending(OpUpdatePreferences), Pending(OpCheckIn), Pending(OpLoadAnalytics):
		s.IsLoading = true
		s.Error = ""
	case Rejected(OpUpdatePreferences), Rejected(OpCheckIn), Rejected(OpLoadAnalytics):
		s.IsLoading = false
		s.Error = a.Error

	case Fulfilled(OpUpdatePreferences):
		s.IsLoading = false
		if p, ok := a.Payload.(PreferencesPatch); ok {
			s.Preferences = ApplyPreferences(s.Preferences, p)
		}
	case Fulfilled(OpCheckIn):
		s.IsLoading = false
		if c, ok := a.Payload.(CheckIn); ok {
			s = addCheckIn(s, c, a.Meta.At)
		}
	case Fulfilled(OpLoadAnalytics):
		s.IsLoading = false
		if an, ok := a.Payload.(Analytics); ok {
			s.TotalCheckIns = an.TotalCheckIns
			s.TotalVenuesVisited = an.TotalVenuesVisited
			s.FavoriteCategories = append([]string{}, an.FavoriteCategories...)
			s.AverageRating = an.AverageRating
			s.Achievements = append([]Achievement{}, an.Achievements...)
		}
	}
	return s
}

// addCheckIn prepends c and folds it into the per-venue visit history.
func addCheckIn(s UserState, c CheckIn, at time.Time) UserState {
	if c.Timestamp.IsZero() {
		c.Timestamp = at
	}
	checkIns := make([]CheckIn, 0, len(s.CheckIns)+1)
	checkIns = append(checkIns, c)
	s.CheckIns = append(checkIns, s.CheckIns...)
	s.TotalCheckIns++

	history := append([]Visit{}, s.VisitHistory...)
	for i := range history {
		if history[i].VenueID == c.VenueID {
			history[i].LastVisited = c.Timestamp
			history[i].VisitCount++
			s.VisitHistory = history
			return s
		}
	}
	s.VisitHistory = append(history, Visit{
		VenueID:     c.VenueID,
		VenueName:   c.VenueName,
		LastVisited: c.Timestamp,
		VisitCount:  1,
	})
	s.TotalVenuesVisited++
	return s
}

func updateCheckIn(list []CheckIn, p CheckInPatch) []CheckIn {
	for i := range list {
		if list[i].ID != p.ID {
			continue
		}
		out := append([]CheckIn{}, list...)
		c := out[i]
		if p.Rating != nil {
			r := *p.Rating
			c.Rating = &r
		}
		if p.Notes != nil {
			c.Notes = *p.Notes
		}
		if p.HappyHourItems != nil {
			c.HappyHourItems = append([]string{}, p.HappyHourItems...)
		}
		if p.Photos != nil {
			c.Photos = append([]string{}, p.Photos...)
		}
		out[i] = c
		return out
	}
	return list
}

// unlockAchievement inserts ach unless an achievement with the same id exists.
func unlockAchievement(list []Achievement, ach Achievement, at time.Time) []Achievement {
	for _, existing := range list {
		if existing.ID == ach.ID {
			return list
		}
	}
	if ach.UnlockedAt.IsZero() {
		ach.UnlockedAt = at
	}
	out := make([]Achievement, 0, len(list)+1)
	out = append(out, list...)
	return append(out, ach)
}

// ApplyPreferences merges p over prefs.
func ApplyPreferences(prefs Preferences, p PreferencesPatch) Preferences {
	if p.DefaultRadius != nil {
		prefs.DefaultRadius = *p.DefaultRadius
	}
	if p.HomeLocation != nil {
		prefs.HomeLocation = cloneLocation(p.HomeLocation)
	}
	if p.WorkLocation != nil {
		prefs.WorkLocation = cloneLocation(p.WorkLocation)
	}
	if p.PreferredCategories != nil {
		prefs.PreferredCategories = append([]string{}, p.PreferredCategories...)
	}
	if p.PreferredPriceLevels != nil {
		prefs.PreferredPriceLevels = append([]int{}, p.PreferredPriceLevels...)
	}
	if p.MinimumRating != nil {
		prefs.MinimumRating = *p.MinimumRating
	}
	if p.PreferredDays != nil {
		prefs.PreferredDays = append([]string{}, p.PreferredDays...)
	}
	if p.PreferredTimes != nil {
		prefs.PreferredTimes = append([]TimeWindow{}, p.PreferredTimes...)
	}
	if p.DrinkPreferences != nil {
		prefs.DrinkPreferences = append([]string{}, p.DrinkPreferences...)
	}
	if p.FoodPreferences != nil {
		prefs.FoodPreferences = append([]string{}, p.FoodPreferences...)
	}
	setBool(&prefs.PushNotificationsEnabled, p.PushNotificationsEnabled)
	setBool(&prefs.LocationBasedAlerts, p.LocationBasedAlerts)
	setBool(&prefs.TimeBasedAlerts, p.TimeBasedAlerts)
	setBool(&prefs.FavoriteVenueAlerts, p.FavoriteVenueAlerts)
	setBool(&prefs.NewVenueAlerts, p.NewVenueAlerts)
	setBool(&prefs.PromotionalNotifications, p.PromotionalNotifications)
	if p.PreferredView != nil {
		prefs.PreferredView = *p.PreferredView
	}
	if p.DistanceUnit != nil {
		prefs.DistanceUnit = *p.DistanceUnit
	}
	if p.Theme != nil {
		prefs.Theme = *p.Theme
	}
	return prefs
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func cloneLocation(l *SavedLocation) *SavedLocation {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}
