package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bassista/go_happyhour/internal/logger"
	"github.com/bassista/go_happyhour/internal/state"
)

// StateSource is the read side of the store the scheduler polls.
type StateSource interface {
	State() state.RootState
}

// Alert announces that a special at a favorite venue has started.
type Alert struct {
	VenueID   string
	VenueName string
	Special   state.HappyHourSpecial
	At        time.Time
}

// Notifier delivers alerts. Notify must not block for long.
type Notifier interface {
	Notify(a Alert)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(a Alert)

func (f NotifierFunc) Notify(a Alert) { f(a) }

// AlertScheduler checks the specials of favorite venues on a fixed interval
// and notifies at most once per special per day (in the configured timezone).
//
// Alerts are only sent while push notifications, time based alerts and
// favorite venue alerts are all enabled in the user preferences.
//
// NOTE: Sent flags are in-memory only.
type AlertScheduler struct {
	source   StateSource
	notifier Notifier
	poll     time.Duration
	loc      *time.Location
	now      func() time.Time

	mu   sync.Mutex
	sent map[string]string
}

func NewAlertScheduler(source StateSource, notifier Notifier, poll time.Duration, loc *time.Location) *AlertScheduler {
	if loc == nil {
		loc = time.Local
	}

	return &AlertScheduler{
		source:   source,
		notifier: notifier,
		poll:     poll,
		loc:      loc,
		now:      time.Now,
		sent:     map[string]string{},
	}
}

// Start runs the polling loop until ctx is done. The returned channel is
// closed once the loop has exited.
func (s *AlertScheduler) Start(ctx context.Context) <-chan struct{} {
	logger.WithComponent("sched").Debugf("starting alert scheduler with interval: %v, timezone: %s", s.poll, s.loc.String())
	done := make(chan struct{})
	ticker := time.NewTicker(s.poll)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.WithComponent("sched").Info("alert scheduler stopped")
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
	return done
}

// Tick evaluates the current state once and returns the alerts it sent.
func (s *AlertScheduler) Tick(ctx context.Context) []Alert {
	log := logger.WithComponent("sched")
	st := s.source.State()

	prefs := st.User.Preferences
	if !prefs.PushNotificationsEnabled || !prefs.TimeBasedAlerts || !prefs.FavoriteVenueAlerts {
		log.Trace("alerts disabled in preferences, skipping tick")
		return nil
	}

	now := s.now().In(s.loc)
	todayKey := dayKey(now)

	favorites := append([]string{}, st.Venues.Favorites...)
	sort.Strings(favorites)

	var sent []Alert
	for _, venueID := range favorites {
		select {
		case <-ctx.Done():
			log.Debug("tick cancelled, exiting venue loop")
			return sent
		default:
		}

		for _, sp := range ActiveSpecials(st.Venues.HappyHourSpecials[venueID], now) {
			key := fmt.Sprintf("%s/%d", venueID, sp.ID)
			if s.sentOn(key) == todayKey {
				continue
			}

			a := Alert{VenueID: venueID, VenueName: venueName(st.Venues, venueID), Special: sp, At: now}
			s.deliver(a)
			s.markSent(key, todayKey)
			sent = append(sent, a)
			log.Infof("happy hour started at %s: %s", a.VenueName, sp.Title)
		}
	}
	return sent
}

// deliver isolates the scheduler from a panicking notifier.
func (s *AlertScheduler) deliver(a Alert) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.WithComponent("sched").Errorf("alert notifier panicked: %v", rec)
		}
	}()
	s.notifier.Notify(a)
}

func (s *AlertScheduler) sentOn(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[key]
}

func (s *AlertScheduler) markSent(key, day string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent[key] = day
}

func venueName(v state.VenueState, id string) string {
	if d, ok := v.VenueDetails[id]; ok && d.Name != "" {
		return d.Name
	}
	for _, r := range v.SearchResults {
		if r.ID == id {
			return r.Name
		}
	}
	return id
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// ActiveSpecials returns the specials running at now, in input order.
func ActiveSpecials(specials []state.HappyHourSpecial, now time.Time) []state.HappyHourSpecial {
	var out []state.HappyHourSpecial
	for _, sp := range specials {
		if IsSpecialActiveNow(sp, now) {
			out = append(out, sp)
		}
	}
	return out
}

// IsSpecialActiveNow reports whether sp runs at now. Windows whose end is not
// after their start run past midnight into the next day.
func IsSpecialActiveNow(sp state.HappyHourSpecial, now time.Time) bool {
	if !sp.IsActive {
		return false
	}
	startClock, err := time.Parse("15:04", sp.StartTime)
	if err != nil {
		return false
	}
	endClock, err := time.Parse("15:04", sp.EndTime)
	if err != nil {
		return false
	}

	// Check windows anchored to today and yesterday (handles cross-midnight).
	for _, dayOffset := range []int{0, -1} {
		base := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, dayOffset)
		if !runsOn(sp.DayOfWeek, base.Weekday()) {
			continue
		}

		start := time.Date(base.Year(), base.Month(), base.Day(), startClock.Hour(), startClock.Minute(), 0, 0, now.Location())
		end := time.Date(base.Year(), base.Month(), base.Day(), endClock.Hour(), endClock.Minute(), 0, 0, now.Location())
		if !end.After(start) {
			end = end.Add(24 * time.Hour)
		}

		if (now.Equal(start) || now.After(start)) && now.Before(end) {
			return true
		}
	}

	return false
}

// runsOn matches a day name such as "monday". "daily", "everyday" and
// "weekdays" are also accepted.
func runsOn(day string, wd time.Weekday) bool {
	switch d := strings.ToLower(strings.TrimSpace(day)); d {
	case "daily", "everyday", "every day":
		return true
	case "weekdays":
		return wd != time.Saturday && wd != time.Sunday
	case "weekends":
		return wd == time.Saturday || wd == time.Sunday
	default:
		return d == strings.ToLower(wd.String())
	}
}
