package cache

import (
	"context"
	"fmt"

	"github.com/bassista/go_happyhour/internal/logger"
	"github.com/robfig/cron/v3"
)

// StartBackgroundSweep runs SweepExpired (and, when maxImageBytes > 0, LimitSize)
// on a cron schedule such as "@every 5m". Sweeping is otherwise opportunistic,
// driven by dispatched actions. Returns a channel closed once the scheduler has
// stopped after ctx is done.
func StartBackgroundSweep(ctx context.Context, sweeper Sweeper, images ImageCache, schedule string, maxImageBytes int64) (<-chan struct{}, error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		sweepOnce(sweeper, images, maxImageBytes)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	logger.WithComponent("sweep").Debugf("starting background cache sweep with schedule: %s", schedule)
	c.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		stopCtx := c.Stop()
		<-stopCtx.Done()
		logger.WithComponent("sweep").Info("background cache sweep stopped")
	}()
	return done, nil
}

// sweepOnce recovers from panics so a bad entry never kills the scheduler.
func sweepOnce(sweeper Sweeper, images ImageCache, maxImageBytes int64) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.WithComponent("sweep").Errorf("cache sweep panicked: %v", rec)
		}
	}()
	removed := sweeper.SweepExpired()
	evicted := 0
	if images != nil && maxImageBytes > 0 {
		evicted = images.LimitSize(maxImageBytes)
	}
	logger.WithComponent("sweep").Tracef("background sweep removed %d entries, evicted %d images", removed, evicted)
}
