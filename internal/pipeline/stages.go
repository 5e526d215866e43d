package pipeline

import (
	"time"

	"github.com/bassista/go_happyhour/internal/cache"
	"github.com/bassista/go_happyhour/internal/logger"
	"github.com/bassista/go_happyhour/internal/state"
)

// DefaultSweepInterval is how long the cache may go without an expiry sweep.
const DefaultSweepInterval = 5 * time.Minute

// Lifecycle logs the phase of async actions. It observes every action before
// anything else and never alters it.
func Lifecycle() Stage {
	return Stage{Name: "lifecycle", Handler: func(c *Context) {
		log := logger.WithAction("api", c.Action.Type)
		switch c.Action.Phase() {
		case state.PhasePending:
			log.Debug("starting request")
		case state.PhaseFulfilled:
			log.Debug("request successful")
		case state.PhaseRejected:
			log.WithField("error", c.Action.Error).Warn("request failed")
		}
		c.Next()
	}}
}

// CacheMaintenance sweeps expired cache entries once interval has passed since
// the last sweep. It runs after the reducer.
func CacheMaintenance(sweeper cache.Sweeper, now func() time.Time, interval time.Duration) Stage {
	if now == nil {
		now = time.Now
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return Stage{Name: "cache", Handler: func(c *Context) {
		c.Next()
		if sweeper == nil {
			return
		}
		if now().Sub(sweeper.LastCleanup()) < interval {
			return
		}
		removed := sweeper.SweepExpired()
		logger.WithAction("cache", c.Action.Type).Debugf("swept %d expired cache entries", removed)
	}}
}

// Analytics emits one event per tracked fulfilled action, after the reducer.
func Analytics(tracker Tracker) Stage {
	return Stage{Name: "analytics", Handler: func(c *Context) {
		c.Next()
		if tracker == nil {
			return
		}
		if ev, ok := EventFor(c.Action); ok {
			tracker.Track(ev)
		}
	}}
}

// reducer is the terminal stage.
func reducer() Stage {
	return Stage{Name: "reducer", Handler: func(c *Context) {
		if c.applied {
			return
		}
		c.applied = true
		c.store.state = state.Reduce(c.store.state, c.Action)
	}}
}
