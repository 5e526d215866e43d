package cache

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bassista/go_happyhour/internal/logger"
)

// Category names one keyed section of the cache.
type Category string

const (
	VenueDetails    Category = "venueDetails"
	SearchResults   Category = "searchResultsCache"
	MenuData        Category = "menuDataCache"
	Reviews         Category = "reviewsCache"
	Photos          Category = "photosCache"
	UserPreferences Category = "userPreferencesCache"
	Favorites       Category = "favoritesCache"
	YelpAPI         Category = "yelpApiCache"
	CustomAPI       Category = "customApiCache"
	Images          Category = "imageCache"
)

// singletonKey is the only key used by the single-entry categories.
const singletonKey = ""

// Categories lists every keyed category in sweep order.
var Categories = []Category{
	VenueDetails, SearchResults, MenuData, Reviews, Photos, YelpAPI, CustomAPI,
	UserPreferences, Favorites,
}

func isSingleton(c Category) bool {
	return c == UserPreferences || c == Favorites
}

// Entry is a TTL-stamped cached value. ExpiresAt is always Timestamp + ttl.
type Entry struct {
	Data         any       `json:"data"`
	Timestamp    time.Time `json:"timestamp"`
	ExpiresAt    time.Time `json:"expiresAt"`
	AccessCount  int       `json:"accessCount"`
	LastAccessed time.Time `json:"lastAccessed"`
}

// Expired reports whether the entry is stale at now. An entry written with a
// non-positive ttl never had a lifetime and is stale from the start.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt) || !e.ExpiresAt.After(e.Timestamp)
}

// ImageEntry tracks a downloaded image. Images have no TTL; they leave the
// cache only through RemoveImage, LimitSize or a clear.
type ImageEntry struct {
	URL       string    `json:"url"`
	LocalPath string    `json:"localPath"`
	Size      int64     `json:"size"`
	CachedAt  time.Time `json:"cachedAt"`
}

// Stats is a point-in-time view of the aggregate counters.
type Stats struct {
	TotalCacheSize int64            `json:"totalCacheSize"`
	TotalHits      int64            `json:"totalHits"`
	TotalMisses    int64            `json:"totalMisses"`
	HitRate        float64          `json:"cacheHitRate"`
	LastCleanup    time.Time        `json:"lastCleanup"`
	Entries        map[Category]int `json:"entries"`
	Images         int              `json:"images"`
}

// Observer is notified of every lookup outcome.
type Observer interface {
	CacheHit(category Category)
	CacheMiss(category Category)
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithObserver registers a lookup observer.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// WithTTLs overrides the per-category TTLs used by the typed helpers.
func WithTTLs(ttls TTLs) Option {
	return func(s *Store) { s.ttls = ttls }
}

// Store keeps keyed, TTL-stamped entries per category, the image map and the
// aggregate counters. The aggregates are written only by Store methods.
type Store struct {
	mu sync.Mutex

	now      func() time.Time
	observer Observer
	ttls     TTLs

	entries map[Category]map[string]*Entry

	images     map[string]ImageEntry
	imageOrder []string // insertion order, oldest first

	totalSize   int64
	hits        int64
	misses      int64
	lastCleanup time.Time
}

// NewStore creates an empty cache store.
func NewStore(opts ...Option) *Store {
	s := &Store{now: time.Now, ttls: DefaultTTLs()}
	for _, opt := range opts {
		opt(s)
	}
	s.reset()
	return s
}

// reset restores the initial state. Caller must hold the lock or own s.
func (s *Store) reset() {
	s.entries = make(map[Category]map[string]*Entry, len(Categories))
	for _, c := range Categories {
		s.entries[c] = map[string]*Entry{}
	}
	s.images = map[string]ImageEntry{}
	s.imageOrder = nil
	s.totalSize = 0
	s.hits = 0
	s.misses = 0
	s.lastCleanup = s.now()
}

func (s *Store) category(c Category) map[string]*Entry {
	m, ok := s.entries[c]
	if !ok {
		m = map[string]*Entry{}
		s.entries[c] = m
	}
	return m
}

func normalizeKey(c Category, key string) string {
	if isSingleton(c) {
		return singletonKey
	}
	return key
}

// Write inserts or overwrites an entry. It always succeeds.
func (s *Store) Write(c Category, key string, data any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.category(c)[normalizeKey(c, key)] = &Entry{
		Data:         data,
		Timestamp:    now,
		ExpiresAt:    now.Add(ttl),
		AccessCount:  1,
		LastAccessed: now,
	}
	logger.WithComponent("cache").Tracef("cache write %s/%s ttl=%v", c, key, ttl)
}

// Read returns the cached data and true on a hit. A missing or expired entry
// counts as a miss; an expired entry is removed.
func (s *Store) Read(c Category, key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = normalizeKey(c, key)
	m := s.category(c)
	entry, ok := m[key]
	if !ok {
		s.recordMiss(c)
		logger.WithComponent("cache").Tracef("cache miss %s/%s", c, key)
		return nil, false
	}

	now := s.now()
	if entry.Expired(now) {
		delete(m, key)
		s.recordMiss(c)
		logger.WithComponent("cache").Tracef("cache expired %s/%s", c, key)
		return nil, false
	}

	entry.AccessCount++
	entry.LastAccessed = now
	s.recordHit(c)
	return entry.Data, true
}

// Peek returns a copy of an entry without touching access bookkeeping or stats.
func (s *Store) Peek(c Category, key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.category(c)[normalizeKey(c, key)]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Len returns the number of entries held in a category.
func (s *Store) Len(c Category) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c == Images {
		return len(s.images)
	}
	return len(s.entries[c])
}

func (s *Store) recordHit(c Category) {
	s.hits++
	if s.observer != nil {
		s.observer.CacheHit(c)
	}
}

func (s *Store) recordMiss(c Category) {
	s.misses++
	if s.observer != nil {
		s.observer.CacheMiss(c)
	}
}

// SweepExpired deletes every expired entry in all categories and returns the
// number removed. Calling it again right away removes nothing.
func (s *Store) SweepExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for c, m := range s.entries {
		for key, entry := range m {
			if entry.Expired(now) {
				delete(m, key)
				removed++
				logger.WithComponent("cache").Tracef("swept %s/%s", c, key)
			}
		}
	}
	s.lastCleanup = now
	if removed > 0 {
		logger.WithComponent("cache").Debugf("cache sweep removed %d expired entries", removed)
	}
	return removed
}

// LastCleanup returns the time of the last sweep.
func (s *Store) LastCleanup() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCleanup
}

// CacheImage records image metadata and grows the total size. Re-caching a
// URL replaces its previous size and moves it to the newest position.
func (s *Store) CacheImage(url, localPath string, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.images[url]; ok {
		s.dropImage(url)
	}
	s.images[url] = ImageEntry{URL: url, LocalPath: localPath, Size: size, CachedAt: s.now()}
	s.imageOrder = append(s.imageOrder, url)
	s.totalSize += size
}

// Image returns the metadata for a cached image.
func (s *Store) Image(url string) (ImageEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[url]
	return img, ok
}

// RemoveImage deletes an image and shrinks the total size by its stored size.
func (s *Store) RemoveImage(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.images[url]; !ok {
		return false
	}
	s.dropImage(url)
	return true
}

// dropImage removes url from the image map and order. Caller holds the lock.
func (s *Store) dropImage(url string) {
	img := s.images[url]
	s.totalSize -= img.Size
	if s.totalSize < 0 {
		logger.WithComponent("cache").Warnf("image size accounting drifted (%d), clamping to 0", s.totalSize)
		s.totalSize = 0
	}
	delete(s.images, url)
	for i, u := range s.imageOrder {
		if u == url {
			s.imageOrder = append(s.imageOrder[:i], s.imageOrder[i+1:]...)
			break
		}
	}
}

// LimitSize evicts images oldest first until the total size is at most
// maxBytes or no images remain. Equal timestamps evict in insertion order.
// It returns the number of images evicted.
func (s *Store) LimitSize(maxBytes int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.totalSize <= maxBytes {
		return 0
	}

	order := make([]string, len(s.imageOrder))
	copy(order, s.imageOrder)
	sort.SliceStable(order, func(i, j int) bool {
		return s.images[order[i]].CachedAt.Before(s.images[order[j]].CachedAt)
	})

	evicted := 0
	for _, url := range order {
		if s.totalSize <= maxBytes {
			break
		}
		s.dropImage(url)
		evicted++
	}
	logger.WithComponent("cache").Debugf("evicted %d images to fit %d bytes", evicted, maxBytes)
	return evicted
}

// SetTotalSize overrides the total size counter, e.g. after measuring the
// image directory on disk. Negative values clamp to 0.
func (s *Store) SetTotalSize(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 0 {
		n = 0
	}
	s.totalSize = n
}

// ResetStats zeroes the hit/miss counters and keeps all entries.
func (s *Store) ResetStats() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits = 0
	s.misses = 0
}

// ClearCategory empties one category. Clearing Images also zeroes the size.
func (s *Store) ClearCategory(c Category) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c == Images {
		s.images = map[string]ImageEntry{}
		s.imageOrder = nil
		s.totalSize = 0
		return
	}
	s.entries[c] = map[string]*Entry{}
}

// ClearAll resets every category, the image map and all counters.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	logger.WithComponent("cache").Info("cache cleared")
}

// Stats returns the aggregate counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make(map[Category]int, len(s.entries))
	for c, m := range s.entries {
		entries[c] = len(m)
	}
	var rate float64
	if total := s.hits + s.misses; total > 0 {
		rate = float64(s.hits) / float64(total)
	}
	return Stats{
		TotalCacheSize: s.totalSize,
		TotalHits:      s.hits,
		TotalMisses:    s.misses,
		HitRate:        rate,
		LastCleanup:    s.lastCleanup,
		Entries:        entries,
		Images:         len(s.images),
	}
}

// Get is a typed Read. A hit holding a value of another type counts as a hit
// but returns false.
func Get[T any](s *Store, c Category, key string) (T, bool) {
	var zero T
	v, ok := s.Read(c, key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// SearchQuery holds every search input that changes the result set.
type SearchQuery struct {
	Latitude   float64
	Longitude  float64
	Radius     float64
	Term       string
	Categories []string
	Price      []int
	SortBy     string
	Limit      int
	OpenNow    *bool
}

// SearchKey builds the composite key for a search results entry. Categories
// and price levels are order-insensitive.
func SearchKey(q SearchQuery) string {
	categories := append([]string(nil), q.Categories...)
	sort.Strings(categories)

	price := append([]int(nil), q.Price...)
	sort.Ints(price)
	prices := make([]string, len(price))
	for i, p := range price {
		prices[i] = fmt.Sprint(p)
	}

	open := ""
	if q.OpenNow != nil {
		open = fmt.Sprint(*q.OpenNow)
	}

	return fmt.Sprintf("%.4f,%.4f:%g:%s:%s:%s:%s:%d:%s",
		q.Latitude, q.Longitude, q.Radius,
		strings.ToLower(strings.TrimSpace(q.Term)),
		strings.Join(categories, ","),
		strings.Join(prices, ","),
		q.SortBy, q.Limit, open)
}
