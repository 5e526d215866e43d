// Package location wraps a platform position provider and a geocoder behind
// an injectable Service. Every failure leaves the package as an apperr kind.
package location

import (
	"context"
	"fmt"
	"time"
)

// Platform error codes reported by position providers.
const (
	CodePermissionDenied    = 1
	CodePositionUnavailable = 2
	CodeTimeout             = 3
)

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	// Accuracy in metres; zero when unknown.
	Accuracy float64 `json:"accuracy,omitempty"`
}

type Address struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode,omitempty"`
	Country string `json:"country,omitempty"`
}

// Source tells where a Result came from.
type Source string

const (
	SourceGPS    Source = "gps"
	SourceManual Source = "manual"
	SourceCached Source = "cached"
)

type Result struct {
	Coordinates Coordinates `json:"coordinates"`
	Address     *Address    `json:"address,omitempty"`
	Source      Source      `json:"source"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Position is a raw fix from a provider.
type Position struct {
	Coordinates Coordinates
	Timestamp   time.Time
}

// PositionError is a provider failure carrying a platform error code.
type PositionError struct {
	Code    int
	Message string
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("position error %d: %s", e.Code, e.Message)
}

// Options tune a position request. Zero fields take the service defaults.
type Options struct {
	Timeout            time.Duration
	MaximumAge         time.Duration
	EnableHighAccuracy bool
}

// Provider is the platform geolocation capability.
type Provider interface {
	// RequestPermission asks for location access and reports whether it was
	// granted.
	RequestPermission(ctx context.Context) (bool, error)
	CurrentPosition(ctx context.Context, opts Options) (Position, error)
	// Watch starts continuous updates and returns a handle for ClearWatch.
	// onPosition may be called before Watch returns.
	Watch(onPosition func(Position), onError func(error)) (int, error)
	ClearWatch(id int)
}
