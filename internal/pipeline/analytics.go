package pipeline

import (
	"time"

	"github.com/bassista/go_happyhour/internal/logger"
	"github.com/bassista/go_happyhour/internal/state"
	"github.com/sirupsen/logrus"
)

// Analytics event names.
const (
	EventSearchPerformed = "search_performed"
	EventVenueViewed     = "venue_details_viewed"
	EventFavoriteToggled = "favorite_toggled"
	EventCheckIn         = "user_checked_in"
	EventLogin           = "user_logged_in"
	EventLogout          = "user_logged_out"
)

// Event is one analytics record derived from a fulfilled action.
type Event struct {
	Name      string
	Action    string
	Timestamp time.Time
	Fields    logrus.Fields
}

// Tracker receives analytics events.
type Tracker interface {
	Track(ev Event)
}

// TrackerFunc adapts a function to Tracker.
type TrackerFunc func(ev Event)

func (f TrackerFunc) Track(ev Event) { f(ev) }

// Trackers fans an event out to several trackers.
type Trackers []Tracker

func (ts Trackers) Track(ev Event) {
	for _, t := range ts {
		if t != nil {
			t.Track(ev)
		}
	}
}

// LogTracker writes events to the structured log.
type LogTracker struct{}

func (LogTracker) Track(ev Event) {
	logger.WithComponent("analytics").
		WithFields(ev.Fields).
		WithField("event", ev.Name).
		WithField("timestamp", ev.Timestamp.Format(time.RFC3339)).
		Info("analytics event")
}

// EventFor maps a tracked action to its event. Untracked actions and stale
// completions return false.
func EventFor(a state.Action) (Event, bool) {
	ev := Event{Action: a.Type, Timestamp: a.Meta.At, Fields: logrus.Fields{}}
	if a.Meta.Stale {
		return ev, false
	}

	switch a.Type {
	case state.Fulfilled(state.OpSearchVenues):
		p, ok := a.Payload.(state.SearchResult)
		if !ok {
			return ev, false
		}
		ev.Name = EventSearchPerformed
		ev.Fields["resultsCount"] = len(p.Venues)
	case state.Fulfilled(state.OpGetVenueDetails):
		p, ok := a.Payload.(state.VenueDetailsResult)
		if !ok {
			return ev, false
		}
		ev.Name = EventVenueViewed
		ev.Fields["venueId"] = p.Venue.ID
	case state.Fulfilled(state.OpToggleFavorite):
		p, ok := a.Payload.(state.FavoriteResult)
		if !ok {
			return ev, false
		}
		ev.Name = EventFavoriteToggled
		ev.Fields["venueId"] = p.VenueID
		ev.Fields["isFavorite"] = p.IsFavorite
	case state.Fulfilled(state.OpCheckIn):
		p, ok := a.Payload.(state.CheckIn)
		if !ok {
			return ev, false
		}
		ev.Name = EventCheckIn
		ev.Fields["venueId"] = p.VenueID
	case state.Fulfilled(state.OpLoginUser):
		p, ok := a.Payload.(state.Session)
		if !ok {
			return ev, false
		}
		ev.Name = EventLogin
		ev.Fields["userId"] = p.User.ID
	case state.Fulfilled(state.OpLogoutUser):
		ev.Name = EventLogout
	default:
		return ev, false
	}
	return ev, true
}
