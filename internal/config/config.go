package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bassista/go_happyhour/internal/cache"
	"github.com/bassista/go_happyhour/internal/logger"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "HAPPYHOUR"

type Config struct {
	Yelp      YelpConfig
	Backend   BackendConfig
	Geocoding GeocodingConfig
	Location  LocationConfig
	Cache     CacheConfig
	Data      DataConfig
	Alerts    AlertsConfig
	Misc      MiscConfig
}

type YelpConfig struct {
	BaseURL           string        `validate:"required,url"`
	APIKey            string
	Timeout           time.Duration `validate:"gt=0"`
	RequestsPerSecond float64       `validate:"gte=0"`
	Burst             int           `validate:"gte=0"`
}

type BackendConfig struct {
	// BaseURL is optional; without it the app runs offline.
	BaseURL       string        `validate:"omitempty,url"`
	Timeout       time.Duration `validate:"gt=0"`
	RefreshWindow time.Duration `validate:"gte=0"`
}

type GeocodingConfig struct {
	BaseURL     string        `validate:"required,url"`
	AccessToken string
	Timeout     time.Duration `validate:"gt=0"`
}

type LocationConfig struct {
	Provider   string        `validate:"oneof=static disabled"`
	Latitude   float64       `validate:"gte=-90,lte=90"`
	Longitude  float64       `validate:"gte=-180,lte=180"`
	Timeout    time.Duration `validate:"gt=0"`
	MaximumAge time.Duration `validate:"gte=0"`
}

type CacheConfig struct {
	TTLs          cache.TTLs
	SweepInterval time.Duration `validate:"gte=0"`
	// BackgroundSweep is a cron schedule; empty keeps sweeping opportunistic only.
	BackgroundSweep string
	MaxImageBytes   int64 `validate:"gte=0"`
}

type DataConfig struct {
	FilePath        string        `validate:"required"`
	PersistInterval time.Duration `validate:"gt=0"`
	WatchFile       bool
}

type AlertsConfig struct {
	Enabled bool
	Poll    time.Duration `validate:"gt=0"`
	// Timezone is an IANA name; empty or "Local" uses the system zone.
	Timezone string
}

// Location resolves Timezone.
func (a AlertsConfig) Location() (*time.Location, error) {
	if a.Timezone == "" || a.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(a.Timezone)
}

type MiscConfig struct {
	LogLevel          string `validate:"oneof=trace debug info warn warning error fatal panic"`
	HoneybadgerAPIKey string
	Environment       string
	MetricsNamespace  string
}

// BindFlags registers the command line overrides and binds them into viper.
func BindFlags(fs *pflag.FlagSet) error {
	fs.String("config", "", "directory containing config.yaml")
	fs.String("log-level", "", "log level (trace, debug, info, warn, error)")
	fs.String("data-file", "", "path of the persisted state file")
	fs.String("yelp-api-key", "", "Yelp Fusion API key")
	fs.String("backend-url", "", "custom backend base URL")

	bindings := map[string]string{
		"config":       "config_path",
		"log-level":    "misc.log_level",
		"data-file":    "data.file_path",
		"yelp-api-key": "yelp.api_key",
		"backend-url":  "backend.base_url",
	}
	for flag, key := range bindings {
		if err := viper.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

func setDefaults() {
	ttls := cache.DefaultTTLs()

	viper.SetDefault("yelp.base_url", "https://api.yelp.com/v3")
	viper.SetDefault("yelp.api_key", "")
	viper.SetDefault("yelp.timeout", "10s")
	viper.SetDefault("yelp.requests_per_second", 5.0)
	viper.SetDefault("yelp.burst", 5)

	viper.SetDefault("backend.base_url", "")
	viper.SetDefault("backend.timeout", "10s")
	viper.SetDefault("backend.refresh_window", "5m")

	viper.SetDefault("geocoding.base_url", "https://api.mapbox.com")
	viper.SetDefault("geocoding.access_token", "")
	viper.SetDefault("geocoding.timeout", "10s")

	viper.SetDefault("location.provider", "static")
	viper.SetDefault("location.latitude", 37.7749)
	viper.SetDefault("location.longitude", -122.4194)
	viper.SetDefault("location.timeout", "15s")
	viper.SetDefault("location.maximum_age", "1m")

	viper.SetDefault("cache.ttl.search_results", ttls.SearchResults.String())
	viper.SetDefault("cache.ttl.venue_details", ttls.VenueDetails.String())
	viper.SetDefault("cache.ttl.reviews", ttls.Reviews.String())
	viper.SetDefault("cache.ttl.photos", ttls.Photos.String())
	viper.SetDefault("cache.ttl.menu_data", ttls.MenuData.String())
	viper.SetDefault("cache.ttl.user_preferences", ttls.UserPreferences.String())
	viper.SetDefault("cache.sweep_interval", "5m")
	viper.SetDefault("cache.background_sweep", "")
	viper.SetDefault("cache.max_image_bytes", 100*1024*1024)

	viper.SetDefault("data.file_path", "./data/state.json")
	viper.SetDefault("data.persist_interval", "5s")
	viper.SetDefault("data.watch_file", true)

	viper.SetDefault("alerts.enabled", true)
	viper.SetDefault("alerts.poll", "1m")
	viper.SetDefault("alerts.timezone", "Local")

	viper.SetDefault("misc.log_level", "info")
	viper.SetDefault("misc.honeybadger_api_key", "")
	viper.SetDefault("misc.environment", "development")
	viper.SetDefault("misc.metrics_namespace", "happyhour")
}

// LoadConfig reads config.yaml (if any), .env (if any), environment variables
// and bound flags, in increasing order of precedence. HAPPYHOUR_CACHE_SWEEP_INTERVAL
// overrides cache.sweep_interval.
func LoadConfig() (*Config, error) {
	log := logger.WithComponent("config")

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("cannot read .env file: %v", err)
	}

	setDefaults()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	if dir := getEnvOrDefault(envPrefix+"_CONFIG_PATH", viper.GetString("config_path")); dir != "" {
		viper.AddConfigPath(dir)
	}
	viper.AddConfigPath(".")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
		log.Debug("no config file found, using defaults and env vars")
	}

	cfg := &Config{
		Yelp: YelpConfig{
			BaseURL:           viper.GetString("yelp.base_url"),
			APIKey:            getEnvOrDefault("YELP_API_KEY", viper.GetString("yelp.api_key")),
			Timeout:           viper.GetDuration("yelp.timeout"),
			RequestsPerSecond: viper.GetFloat64("yelp.requests_per_second"),
			Burst:             viper.GetInt("yelp.burst"),
		},
		Backend: BackendConfig{
			BaseURL:       viper.GetString("backend.base_url"),
			Timeout:       viper.GetDuration("backend.timeout"),
			RefreshWindow: viper.GetDuration("backend.refresh_window"),
		},
		Geocoding: GeocodingConfig{
			BaseURL:     viper.GetString("geocoding.base_url"),
			AccessToken: getEnvOrDefault("MAPBOX_ACCESS_TOKEN", viper.GetString("geocoding.access_token")),
			Timeout:     viper.GetDuration("geocoding.timeout"),
		},
		Location: LocationConfig{
			Provider:   viper.GetString("location.provider"),
			Latitude:   viper.GetFloat64("location.latitude"),
			Longitude:  viper.GetFloat64("location.longitude"),
			Timeout:    viper.GetDuration("location.timeout"),
			MaximumAge: viper.GetDuration("location.maximum_age"),
		},
		Cache: CacheConfig{
			TTLs: cache.TTLs{
				SearchResults:   viper.GetDuration("cache.ttl.search_results"),
				VenueDetails:    viper.GetDuration("cache.ttl.venue_details"),
				Reviews:         viper.GetDuration("cache.ttl.reviews"),
				Photos:          viper.GetDuration("cache.ttl.photos"),
				MenuData:        viper.GetDuration("cache.ttl.menu_data"),
				UserPreferences: viper.GetDuration("cache.ttl.user_preferences"),
			},
			SweepInterval:   viper.GetDuration("cache.sweep_interval"),
			BackgroundSweep: viper.GetString("cache.background_sweep"),
			MaxImageBytes:   viper.GetInt64("cache.max_image_bytes"),
		},
		Data: DataConfig{
			FilePath:        viper.GetString("data.file_path"),
			PersistInterval: viper.GetDuration("data.persist_interval"),
			WatchFile:       viper.GetBool("data.watch_file"),
		},
		Alerts: AlertsConfig{
			Enabled:  viper.GetBool("alerts.enabled"),
			Poll:     viper.GetDuration("alerts.poll"),
			Timezone: viper.GetString("alerts.timezone"),
		},
		Misc: MiscConfig{
			LogLevel:          strings.ToLower(getEnvOrDefault("LOG_LEVEL", viper.GetString("misc.log_level"))),
			HoneybadgerAPIKey: getEnvOrDefault("HONEYBADGER_API_KEY", viper.GetString("misc.honeybadger_api_key")),
			Environment:       viper.GetString("misc.environment"),
			MetricsNamespace:  viper.GetString("misc.metrics_namespace"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ttls := []struct {
		name string
		d    time.Duration
	}{
		{"search_results", c.Cache.TTLs.SearchResults},
		{"venue_details", c.Cache.TTLs.VenueDetails},
		{"reviews", c.Cache.TTLs.Reviews},
		{"photos", c.Cache.TTLs.Photos},
		{"menu_data", c.Cache.TTLs.MenuData},
		{"user_preferences", c.Cache.TTLs.UserPreferences},
	}
	for _, ttl := range ttls {
		if ttl.d <= 0 {
			return fmt.Errorf("cache.ttl.%s must be > 0", ttl.name)
		}
	}

	if c.Cache.BackgroundSweep != "" {
		if _, err := cron.ParseStandard(c.Cache.BackgroundSweep); err != nil {
			return fmt.Errorf("cache.background_sweep: %w", err)
		}
	}

	if _, err := c.Alerts.Location(); err != nil {
		return fmt.Errorf("alerts.timezone: %w", err)
	}
	return nil
}

// getEnvOrDefault returns the environment variable value if set and non-empty,
// otherwise returns the default value.
func getEnvOrDefault(envKey, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultValue
}
