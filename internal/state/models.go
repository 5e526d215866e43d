package state

import "time"

// Address is a venue's postal address.
type Address struct {
	Line1   string `json:"line1,omitempty"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
	Country string `json:"country,omitempty"`
}

// Category is a business category as the search API reports it.
type Category struct {
	Alias string `json:"alias"`
	Title string `json:"title"`
}

// OpenHours is one opening window; Start and End are "HHMM".
type OpenHours struct {
	Day         int    `json:"day"`
	Start       string `json:"start"`
	End         string `json:"end"`
	IsOvernight bool   `json:"isOvernight"`
}

// Venue is a business returned by search or details.
type Venue struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Alias        string      `json:"alias,omitempty"`
	ImageURL     string      `json:"imageUrl,omitempty"`
	URL          string      `json:"url,omitempty"`
	Rating       float64     `json:"rating"`
	ReviewCount  int         `json:"reviewCount"`
	PriceLevel   int         `json:"priceLevel,omitempty"`
	Latitude     float64     `json:"latitude"`
	Longitude    float64     `json:"longitude"`
	Address      Address     `json:"address"`
	Phone        string      `json:"phone,omitempty"`
	DisplayPhone string      `json:"displayPhone,omitempty"`
	Distance     float64     `json:"distance,omitempty"`
	Categories   []Category  `json:"categories"`
	Hours        []OpenHours `json:"hours,omitempty"`
	Transactions []string    `json:"transactions,omitempty"`
	IsClaimed    bool        `json:"isClaimed,omitempty"`
	IsClosed     bool        `json:"isClosed,omitempty"`
}

// HappyHourSpecial is a time-boxed discount offered by a venue.
type HappyHourSpecial struct {
	ID                 int      `json:"id"`
	VenueID            string   `json:"venueId"`
	DayOfWeek          string   `json:"dayOfWeek"`
	StartTime          string   `json:"startTime"`
	EndTime            string   `json:"endTime"`
	SpecialType        string   `json:"specialType"`
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	HappyHourPrice     *float64 `json:"happyHourPrice,omitempty"`
	RegularPrice       *float64 `json:"regularPrice,omitempty"`
	DiscountPercentage *float64 `json:"discountPercentage,omitempty"`
	SpecificItems      []string `json:"specificItems,omitempty"`
	IsActive           bool     `json:"isActive"`
}

// MenuItem is a drink or dish on a venue's menu.
type MenuItem struct {
	ID             int      `json:"id"`
	VenueID        string   `json:"venueId"`
	Category       string   `json:"category"`
	Name           string   `json:"name"`
	Description    string   `json:"description,omitempty"`
	ImageURL       string   `json:"imageUrl,omitempty"`
	RegularPrice   *float64 `json:"regularPrice,omitempty"`
	HappyHourPrice *float64 `json:"happyHourPrice,omitempty"`
	ABV            *float64 `json:"abv,omitempty"`
	BeerStyle      string   `json:"beerStyle,omitempty"`
	Brewery        string   `json:"brewery,omitempty"`
	IsAvailable    bool     `json:"isAvailable"`
	HappyHourOnly  bool     `json:"happyHourOnly"`
}

// LatLng is the location a search ran against.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SearchParams are the domain-level search inputs. Radius is in miles.
type SearchParams struct {
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Radius     float64  `json:"radius"`
	Term       string   `json:"term,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Price      []int    `json:"price,omitempty"`
	SortBy     string   `json:"sortBy,omitempty"`
	Limit      int      `json:"limit,omitempty"`
	OpenNow    *bool    `json:"openNow,omitempty"`
}

// SubscriptionStatus is the user's plan.
type SubscriptionStatus string

const (
	SubscriptionFree    SubscriptionStatus = "free"
	SubscriptionPremium SubscriptionStatus = "premium"
)

// User is the signed-in account.
type User struct {
	ID                    int                `json:"id" validate:"required"`
	Email                 string             `json:"email" validate:"required,email"`
	FirstName             string             `json:"firstName"`
	LastName              string             `json:"lastName"`
	Phone                 string             `json:"phone,omitempty"`
	ProfileImageURL       string             `json:"profileImageUrl,omitempty"`
	SubscriptionStatus    SubscriptionStatus `json:"subscriptionStatus" validate:"oneof=free premium"`
	SubscriptionExpiresAt *time.Time         `json:"subscriptionExpiresAt,omitempty"`
}

// SavedLocation is a named place such as home or work.
type SavedLocation struct {
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
	Address   string  `json:"address"`
}

// TimeWindow is a "HH:MM" to "HH:MM" range.
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Preferences are the user's saved settings.
type Preferences struct {
	DefaultRadius float64        `json:"defaultRadius" validate:"gt=0"`
	HomeLocation  *SavedLocation `json:"homeLocation,omitempty"`
	WorkLocation  *SavedLocation `json:"workLocation,omitempty"`

	PreferredCategories  []string `json:"preferredCategories"`
	PreferredPriceLevels []int    `json:"preferredPriceLevels" validate:"dive,min=1,max=4"`
	MinimumRating        float64  `json:"minimumRating" validate:"min=0,max=5"`

	PreferredDays    []string     `json:"preferredDays"`
	PreferredTimes   []TimeWindow `json:"preferredTimes"`
	DrinkPreferences []string     `json:"drinkPreferences"`
	FoodPreferences  []string     `json:"foodPreferences"`

	PushNotificationsEnabled bool `json:"pushNotificationsEnabled"`
	LocationBasedAlerts      bool `json:"locationBasedAlerts"`
	TimeBasedAlerts          bool `json:"timeBasedAlerts"`
	FavoriteVenueAlerts      bool `json:"favoriteVenueAlerts"`
	NewVenueAlerts           bool `json:"newVenueAlerts"`
	PromotionalNotifications bool `json:"promotionalNotifications"`

	PreferredView string `json:"preferredView" validate:"oneof=list map"`
	DistanceUnit  string `json:"distanceUnit" validate:"oneof=miles kilometers"`
	Theme         string `json:"theme" validate:"oneof=light dark auto"`
}

// CheckIn is one visit recorded by the user.
type CheckIn struct {
	ID             string    `json:"id"`
	VenueID        string    `json:"venueId"`
	VenueName      string    `json:"venueName"`
	Timestamp      time.Time `json:"timestamp"`
	Rating         *float64  `json:"rating,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	HappyHourItems []string  `json:"happyHourItems,omitempty"`
	Photos         []string  `json:"photos,omitempty"`
}

// Visit aggregates check-ins per venue.
type Visit struct {
	VenueID     string    `json:"venueId"`
	VenueName   string    `json:"venueName"`
	LastVisited time.Time `json:"lastVisited"`
	VisitCount  int       `json:"visitCount"`
}

// Achievement is an unlocked badge.
type Achievement struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UnlockedAt  time.Time `json:"unlockedAt"`
	Icon        string    `json:"icon"`
}
