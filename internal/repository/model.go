package repository

import (
	"encoding/json"
	"reflect"

	"github.com/bassista/go_happyhour/internal/state"
)

// Metadata holds versioning info for optimistic locking.
type Metadata struct {
	LastUpdate int64 `json:"lastUpdate"` // Unix timestamp in milliseconds
}

// DataDocument is the persisted JSON structure: the whitelisted auth and user
// slices. Venues, search and cache are never written.
type DataDocument struct {
	Metadata Metadata        `json:"metadata"`
	Auth     state.AuthState `json:"auth"`
	User     state.UserState `json:"user"`
}

// NewDataDocument returns the document of a fresh install. Decoding on top of
// it keeps defaults for fields missing from the file.
func NewDataDocument() DataDocument {
	return DataDocument{
		Auth: state.InitialAuthState(),
		User: state.InitialUserState(),
	}
}

// ApplyDefaults sets fallback values after decode.
func (d *DataDocument) ApplyDefaults() {
	d.Auth.IsLoading = false
	if d.Auth.User != nil && d.Auth.User.SubscriptionStatus == "" {
		d.Auth.User.SubscriptionStatus = state.SubscriptionFree
	}

	u := &d.User
	u.IsLoading = false
	if u.CheckIns == nil {
		u.CheckIns = []state.CheckIn{}
	}
	if u.VisitHistory == nil {
		u.VisitHistory = []state.Visit{}
	}
	if u.FavoriteCategories == nil {
		u.FavoriteCategories = []string{}
	}
	if u.Achievements == nil {
		u.Achievements = []state.Achievement{}
	}

	p := &u.Preferences
	defaults := state.DefaultPreferences()
	if p.DefaultRadius == 0 {
		p.DefaultRadius = defaults.DefaultRadius
	}
	if p.PreferredCategories == nil {
		p.PreferredCategories = []string{}
	}
	if p.PreferredPriceLevels == nil {
		p.PreferredPriceLevels = defaults.PreferredPriceLevels
	}
	if p.DrinkPreferences == nil {
		p.DrinkPreferences = []string{}
	}
	if p.FoodPreferences == nil {
		p.FoodPreferences = []string{}
	}
	if p.PreferredView == "" {
		p.PreferredView = defaults.PreferredView
	}
	if p.DistanceUnit == "" {
		p.DistanceUnit = defaults.DistanceUnit
	}
	if p.Theme == "" {
		p.Theme = defaults.Theme
	}
}

// AreDataDocumentsEqual compares two DataDocuments ignoring Metadata.
// Uses JSON serialization for flexible comparison (order-independent for object keys).
func AreDataDocumentsEqual(a, b *DataDocument) bool {
	if a == nil || b == nil {
		return a == b
	}

	aBytes, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bBytes, err := json.Marshal(b)
	if err != nil {
		return false
	}

	var aMap, bMap map[string]any
	if err := json.Unmarshal(aBytes, &aMap); err != nil {
		return false
	}
	if err := json.Unmarshal(bBytes, &bMap); err != nil {
		return false
	}

	delete(aMap, "metadata")
	delete(bMap, "metadata")

	return reflect.DeepEqual(aMap, bMap)
}
