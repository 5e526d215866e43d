package yelp

import (
	"strings"

	"github.com/bassista/go_happyhour/internal/location"
	"github.com/bassista/go_happyhour/internal/state"
)

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Location struct {
	Address1       string   `json:"address1"`
	Address2       string   `json:"address2"`
	Address3       string   `json:"address3"`
	City           string   `json:"city"`
	ZipCode        string   `json:"zip_code"`
	Country        string   `json:"country"`
	State          string   `json:"state"`
	DisplayAddress []string `json:"display_address"`
}

// Business is a search result entry.
type Business struct {
	ID           string           `json:"id"`
	Alias        string           `json:"alias"`
	Name         string           `json:"name"`
	ImageURL     string           `json:"image_url"`
	IsClosed     bool             `json:"is_closed"`
	URL          string           `json:"url"`
	ReviewCount  int              `json:"review_count"`
	Categories   []state.Category `json:"categories"`
	Rating       float64          `json:"rating"`
	Coordinates  Coordinates      `json:"coordinates"`
	Transactions []string         `json:"transactions"`
	Price        string           `json:"price"`
	Location     Location         `json:"location"`
	Phone        string           `json:"phone"`
	DisplayPhone string           `json:"display_phone"`
	// Distance from the search point in metres.
	Distance float64 `json:"distance"`
}

type Region struct {
	Center Coordinates `json:"center"`
}

type SearchResponse struct {
	Businesses []Business `json:"businesses"`
	Total      int        `json:"total"`
	Region     Region     `json:"region"`
}

type OpenWindow struct {
	IsOvernight bool   `json:"is_overnight"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Day         int    `json:"day"`
}

type Hours struct {
	Open      []OpenWindow `json:"open"`
	HoursType string       `json:"hours_type"`
	IsOpenNow bool         `json:"is_open_now"`
}

type SpecialHours struct {
	Date     string `json:"date"`
	IsClosed bool   `json:"is_closed"`
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`
}

// BusinessDetails is the full business record.
type BusinessDetails struct {
	Business
	IsClaimed    bool           `json:"is_claimed"`
	Photos       []string       `json:"photos"`
	Hours        []Hours        `json:"hours"`
	SpecialHours []SpecialHours `json:"special_hours"`
}

type ReviewUser struct {
	ID         string `json:"id"`
	ProfileURL string `json:"profile_url"`
	ImageURL   string `json:"image_url,omitempty"`
	Name       string `json:"name"`
}

type Review struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Text        string     `json:"text"`
	Rating      float64    `json:"rating"`
	TimeCreated string     `json:"time_created"`
	User        ReviewUser `json:"user"`
}

type ReviewsResponse struct {
	Reviews           []Review `json:"reviews"`
	Total             int      `json:"total"`
	PossibleLanguages []string `json:"possible_languages"`
}

type PhotosResponse struct {
	Photos []string `json:"photos"`
}

// ToVenue maps a search result to the domain venue.
func ToVenue(b Business) state.Venue {
	categories := b.Categories
	if categories == nil {
		categories = []state.Category{}
	}
	return state.Venue{
		ID:          b.ID,
		Name:        b.Name,
		Alias:       b.Alias,
		ImageURL:    b.ImageURL,
		URL:         b.URL,
		Rating:      b.Rating,
		ReviewCount: b.ReviewCount,
		PriceLevel:  ParsePriceLevel(b.Price),
		Latitude:    b.Coordinates.Latitude,
		Longitude:   b.Coordinates.Longitude,
		Address: state.Address{
			Line1:   b.Location.Address1,
			Line2:   b.Location.Address2,
			City:    b.Location.City,
			State:   b.Location.State,
			ZipCode: b.Location.ZipCode,
			Country: b.Location.Country,
		},
		Phone:        b.Phone,
		DisplayPhone: b.DisplayPhone,
		Distance:     b.Distance,
		Categories:   categories,
		Transactions: b.Transactions,
		IsClosed:     b.IsClosed,
	}
}

// ToVenueDetails maps a full business record, including its regular hours.
func ToVenueDetails(d BusinessDetails) state.Venue {
	v := ToVenue(d.Business)
	v.IsClaimed = d.IsClaimed
	for _, h := range d.Hours {
		if h.HoursType != "" && h.HoursType != "REGULAR" {
			continue
		}
		for _, w := range h.Open {
			v.Hours = append(v.Hours, state.OpenHours{
				Day:         w.Day,
				Start:       w.Start,
				End:         w.End,
				IsOvernight: w.IsOvernight,
			})
		}
	}
	return v
}

// ToVenues maps a whole result page.
func ToVenues(bs []Business) []state.Venue {
	out := make([]state.Venue, 0, len(bs))
	for _, b := range bs {
		out = append(out, ToVenue(b))
	}
	return out
}

func MilesToMeters(miles float64) float64 {
	return location.MilesToMeters(miles)
}

func MetersToMiles(meters float64) float64 {
	return location.MetersToMiles(meters)
}

// FormatPriceLevel renders levels as dollar signs, e.g. [1 3] -> "$,$$$".
func FormatPriceLevel(levels []int) string {
	out := make([]string, 0, len(levels))
	for _, l := range levels {
		out = append(out, strings.Repeat("$", max(l, 0)))
	}
	return strings.Join(out, ",")
}

// ParsePriceLevel turns "$$" into 2. Anything else is 0.
func ParsePriceLevel(price string) int {
	if price == "" || strings.Trim(price, "$") != "" {
		return 0
	}
	return len(price)
}

// ValidCoordinates reports whether lat/lng are inside the WGS84 range.
func ValidCoordinates(lat, lng float64) bool {
	return location.ValidCoordinates(location.Coordinates{Latitude: lat, Longitude: lng})
}
