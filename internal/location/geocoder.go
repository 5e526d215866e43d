package location

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bassista/go_happyhour/internal/apperr"
	"github.com/bassista/go_happyhour/internal/logger"
	"github.com/tidwall/gjson"
)

const DefaultGeocoderURL = "https://api.mapbox.com"

// Geocoder translates between addresses and coordinates.
type Geocoder interface {
	Forward(ctx context.Context, address string) (Result, error)
	Reverse(ctx context.Context, c Coordinates) (Address, error)
}

type GeocoderConfig struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

// MapboxGeocoder uses the Mapbox places endpoint.
type MapboxGeocoder struct {
	baseURL    string
	token      string
	httpClient *http.Client
	now        func() time.Time
}

func NewMapboxGeocoder(cfg GeocoderConfig) *MapboxGeocoder {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultGeocoderURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MapboxGeocoder{
		baseURL:    baseURL,
		token:      cfg.AccessToken,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// Forward resolves address to its best match.
func (g *MapboxGeocoder) Forward(ctx context.Context, address string) (Result, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Result{}, apperr.New(apperr.InvalidAddress)
	}

	feature, err := g.lookup(ctx, url.PathEscape(address))
	if err != nil {
		return Result{}, err
	}

	// center is [longitude, latitude]
	center := feature.Get("center").Array()
	if len(center) < 2 {
		return Result{}, apperr.Wrap(apperr.GeocodingFailed, fmt.Errorf("feature has no center"))
	}
	addr := parseAddress(feature)
	return Result{
		Coordinates: Coordinates{Latitude: center[1].Float(), Longitude: center[0].Float()},
		Address:     &addr,
		Source:      SourceManual,
		Timestamp:   g.now(),
	}, nil
}

// Reverse returns the address nearest to c.
func (g *MapboxGeocoder) Reverse(ctx context.Context, c Coordinates) (Address, error) {
	if !ValidCoordinates(c) {
		return Address{}, apperr.Wrap(apperr.GeocodingFailed, fmt.Errorf("invalid coordinates %s", FormatCoordinates(c)))
	}
	query := strconv.FormatFloat(c.Longitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Latitude, 'f', -1, 64)
	feature, err := g.lookup(ctx, query)
	if err != nil {
		return Address{}, err
	}
	return parseAddress(feature), nil
}

// lookup returns the first feature for query. Every failure is GeocodingFailed.
func (g *MapboxGeocoder) lookup(ctx context.Context, query string) (gjson.Result, error) {
	log := logger.WithComponent("geocoder")

	endpoint := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?%s", g.baseURL, query,
		url.Values{"access_token": {g.token}, "limit": {"1"}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return gjson.Result{}, apperr.Wrap(apperr.GeocodingFailed, err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		log.Warnf("geocoding request failed: %v", err)
		return gjson.Result{}, apperr.Wrap(apperr.GeocodingFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, apperr.Wrap(apperr.GeocodingFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Warnf("geocoding returned %d", resp.StatusCode)
		return gjson.Result{}, apperr.Wrap(apperr.GeocodingFailed, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	feature := gjson.GetBytes(body, "features.0")
	if !feature.Exists() {
		return gjson.Result{}, apperr.Wrap(apperr.GeocodingFailed, fmt.Errorf("no features for %q", query))
	}
	return feature, nil
}

// parseAddress reads the place name and context entries of a feature.
func parseAddress(feature gjson.Result) Address {
	addr := Address{Address: feature.Get("place_name").String()}
	feature.Get("context").ForEach(func(_, item gjson.Result) bool {
		id := item.Get("id").String()
		text := item.Get("text").String()
		switch {
		case strings.Contains(id, "place"):
			addr.City = text
		case strings.Contains(id, "region"):
			if code := item.Get("short_code").String(); code != "" {
				addr.State = code
			} else {
				addr.State = text
			}
		case strings.Contains(id, "postcode"):
			addr.ZipCode = text
		case strings.Contains(id, "country"):
			addr.Country = text
		}
		return true
	})
	return addr
}
