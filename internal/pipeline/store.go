package pipeline

import (
	"reflect"
	"sync"
	"time"

	"github.com/bassista/go_happyhour/internal/cache"
	"github.com/bassista/go_happyhour/internal/logger"
	"github.com/bassista/go_happyhour/internal/repository"
	"github.com/bassista/go_happyhour/internal/state"
)

// RehydrateAction is delivered to listeners after persisted slices were
// replaced from disk.
const RehydrateAction = "persist/rehydrate"

// Listener is notified after every dispatch with the new state.
type Listener func(s state.RootState, a state.Action)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used to stamp actions and pace cache sweeps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTracker sets the analytics sink.
func WithTracker(t Tracker) Option {
	return func(s *Store) { s.tracker = t }
}

// WithReporter sets where stage panics are reported.
func WithReporter(r Reporter) Option {
	return func(s *Store) {
		if r != nil {
			s.reporter = r
		}
	}
}

// WithSweepInterval overrides how often the cache stage sweeps.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Store) { s.sweepInterval = d }
}

// WithInitialState starts the store from st instead of the defaults.
func WithInitialState(st state.RootState) Option {
	return func(s *Store) { s.state = st }
}

// Store owns the application state and the cache, and runs every dispatched
// action through lifecycle, cache, analytics and reducer stages in that order.
// Dispatches are serialised.
type Store struct {
	mu     sync.Mutex
	state  state.RootState
	stages []Stage

	cache    *cache.Store
	inflight *Inflight

	now           func() time.Time
	tracker       Tracker
	reporter      Reporter
	sweepInterval time.Duration

	listenersMu  sync.Mutex
	listeners    map[int]Listener
	nextListener int

	// persistence bookkeeping for the auth and user slices
	dirty      bool
	lastUpdate int64
}

// New creates a store around c. A nil cache gets a default one.
func New(c *cache.Store, opts ...Option) *Store {
	s := &Store{
		state:     state.InitialRootState(),
		now:       time.Now,
		tracker:   LogTracker{},
		reporter:  noopReporter{},
		listeners: map[int]Listener{},
		inflight:  NewInflight(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if c == nil {
		c = cache.NewStore(cache.WithClock(s.now))
	}
	s.cache = c
	s.stages = []Stage{
		Lifecycle(),
		CacheMaintenance(c, s.now, s.sweepInterval),
		Analytics(s.tracker),
		reducer(),
	}
	return s
}

// Dispatch runs a through the pipeline and returns the resulting state. Stage
// failures are logged and reported, never returned; the reducer always runs
// exactly once.
func (s *Store) Dispatch(a state.Action) state.RootState {
	if a.Meta.At.IsZero() {
		a.Meta.At = s.now()
	}

	s.mu.Lock()
	c := &Context{Action: a, store: s, prev: s.state, stages: s.stages, index: -1}
	c.Next()
	s.trackDirty(c.prev, s.state)
	next := s.state
	s.mu.Unlock()

	s.notify(next, a)
	return next
}

// State returns the current snapshot.
func (s *Store) State() state.RootState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cache returns the cache store shared with the services.
func (s *Store) Cache() *cache.Store {
	return s.cache
}

// Inflight returns the registry used to coalesce keyed operations.
func (s *Store) Inflight() *Inflight {
	return s.inflight
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify(st state.RootState, a state.Action) {
	s.listenersMu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithAction("pipeline", a.Type).Errorf("listener panicked: %v", rec)
				}
			}()
			fn(st, a)
		}()
	}
}

// trackDirty marks the store dirty when a persisted slice changed. Caller
// holds s.mu.
func (s *Store) trackDirty(prev, next state.RootState) {
	if s.dirty {
		return
	}
	if !reflect.DeepEqual(prev.Auth, next.Auth) || !reflect.DeepEqual(prev.User, next.User) {
		s.dirty = true
	}
}

// IsDirty reports whether persisted slices changed since the last save.
func (s *Store) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// ClearDirty is called before a snapshot is saved.
func (s *Store) ClearDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
}

// MarkDirty flags the persisted slices as unsaved again after a failed save.
func (s *Store) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
}

// GetLastUpdate returns the version of the last save or load, in Unix ms.
func (s *Store) GetLastUpdate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdate
}

// SetLastUpdate records the version written by the last save.
func (s *Store) SetLastUpdate(v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUpdate = v
}

// Snapshot returns the persisted slices as a document.
func (s *Store) Snapshot() (repository.DataDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return repository.DataDocument{
		Metadata: repository.Metadata{LastUpdate: s.lastUpdate},
		Auth:     s.state.Auth,
		User:     s.state.User,
	}, nil
}

// Replace swaps in persisted slices loaded from disk. Transient slices are
// kept as they are.
func (s *Store) Replace(doc repository.DataDocument) error {
	hydrated := state.Hydrate(state.Persisted{Auth: doc.Auth, User: doc.User})

	s.mu.Lock()
	s.state.Auth = hydrated.Auth
	s.state.User = hydrated.User
	s.lastUpdate = doc.Metadata.LastUpdate
	s.dirty = false
	next := s.state
	s.mu.Unlock()

	s.notify(next, state.Action{Type: RehydrateAction, Meta: state.Meta{At: s.now()}})
	return nil
}

var _ repository.StateStore = (*Store)(nil)
