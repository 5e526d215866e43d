package cache

import "time"

// Reader is the minimal cache API for callers that consult the cache before a
// network call.
type Reader interface {
	Read(c Category, key string) (any, bool)
}

// Writer is the cache API for callers that populate the cache after a fetch.
type Writer interface {
	Write(c Category, key string, data any, ttl time.Duration)
}

// Sweeper is the cache API needed by the maintenance interceptor and the
// background sweep.
type Sweeper interface {
	SweepExpired() int
	LastCleanup() time.Time
}

// ImageCache is the cache API for image bookkeeping.
type ImageCache interface {
	CacheImage(url, localPath string, size int64)
	RemoveImage(url string) bool
	LimitSize(maxBytes int64) int
}

// VenueCache is what the venue services need: typed writes plus reads.
type VenueCache interface {
	Reader
	CacheVenueDetails(venueID string, data any)
	CacheSearchResults(searchKey string, data any)
	CacheMenuData(venueID string, data any)
	CacheReviews(venueID string, data any)
	CachePhotos(venueID string, data any)
	CacheFavorites(data any)
	CacheUserPreferences(data any)
}

var (
	_ Reader     = (*Store)(nil)
	_ Writer     = (*Store)(nil)
	_ Sweeper    = (*Store)(nil)
	_ ImageCache = (*Store)(nil)
	_ VenueCache = (*Store)(nil)
)
