package location

import "fmt"

const (
	ProviderTypeStatic   = "static"
	ProviderTypeDisabled = "disabled"
)

// NewProviderFromConfig creates a Provider based on the provider type.
// "static" (the default) reports the configured coordinates; "disabled"
// denies permission so every request fails with PermissionDenied.
func NewProviderFromConfig(providerType string, latitude, longitude float64) (Provider, error) {
	switch providerType {
	case ProviderTypeStatic, "":
		c := Coordinates{Latitude: latitude, Longitude: longitude}
		if !ValidCoordinates(c) {
			return nil, fmt.Errorf("invalid static location %s", FormatCoordinates(c))
		}
		return NewStaticProvider(c), nil
	case ProviderTypeDisabled:
		p := NewStaticProvider(Coordinates{})
		p.SetPermission(false)
		return p, nil
	default:
		return nil, fmt.Errorf("unknown location provider: %s (supported: %s, %s)", providerType, ProviderTypeStatic, ProviderTypeDisabled)
	}
}
