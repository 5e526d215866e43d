package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bassista/go_happyhour/internal/state"
)

type fakeSource struct {
	mu sync.Mutex
	st state.RootState
}

func (f *fakeSource) State() state.RootState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st
}

type recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *recorder) Notify(a Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

func special(id int, day, start, end string) state.HappyHourSpecial {
	return state.HappyHourSpecial{ID: id, VenueID: "v1", DayOfWeek: day, StartTime: start, EndTime: end, Title: "Half price pints", IsActive: true}
}

func newState(specials ...state.HappyHourSpecial) state.RootState {
	st := state.InitialRootState()
	st.Venues.Favorites = []string{"v1"}
	st.Venues.VenueDetails["v1"] = state.Venue{ID: "v1", Name: "Tap Room"}
	st.Venues.HappyHourSpecials["v1"] = specials
	return st
}

// 2024-01-15 is a Monday.
func at(day, hour, minute int) time.Time {
	return time.Date(2024, 1, day, hour, minute, 0, 0, time.UTC)
}

func TestIsSpecialActiveNow(t *testing.T) {
	tests := []struct {
		name string
		sp   state.HappyHourSpecial
		now  time.Time
		want bool
	}{
		{"inside window", special(1, "monday", "16:00", "19:00"), at(15, 17, 30), true},
		{"at start", special(1, "monday", "16:00", "19:00"), at(15, 16, 0), true},
		{"at end", special(1, "monday", "16:00", "19:00"), at(15, 19, 0), false},
		{"before start", special(1, "monday", "16:00", "19:00"), at(15, 15, 59), false},
		{"wrong day", special(1, "tuesday", "16:00", "19:00"), at(15, 17, 0), false},
		{"day name is case insensitive", special(1, "Monday", "16:00", "19:00"), at(15, 17, 0), true},
		{"cross midnight same day", special(1, "monday", "22:00", "02:00"), at(15, 23, 0), true},
		{"cross midnight next day", special(1, "monday", "22:00", "02:00"), at(16, 1, 30), true},
		{"cross midnight after end", special(1, "monday", "22:00", "02:00"), at(16, 2, 30), false},
		{"daily", special(1, "daily", "16:00", "19:00"), at(20, 17, 0), true},
		{"weekdays on saturday", special(1, "weekdays", "16:00", "19:00"), at(20, 17, 0), false},
		{"weekends on saturday", special(1, "weekends", "16:00", "19:00"), at(20, 17, 0), true},
		{"invalid start", special(1, "monday", "4pm", "19:00"), at(15, 17, 0), false},
		{"invalid end", special(1, "monday", "16:00", ""), at(15, 17, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSpecialActiveNow(tt.sp, tt.now); got != tt.want {
				t.Errorf("IsSpecialActiveNow() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsSpecialActiveNow_Inactive(t *testing.T) {
	sp := special(1, "monday", "16:00", "19:00")
	sp.IsActive = false
	if IsSpecialActiveNow(sp, at(15, 17, 0)) {
		t.Error("inactive special should never run")
	}
}

func TestActiveSpecials(t *testing.T) {
	specials := []state.HappyHourSpecial{
		special(1, "monday", "16:00", "19:00"),
		special(2, "monday", "20:00", "22:00"),
		special(3, "monday", "17:00", "18:00"),
	}

	got := ActiveSpecials(specials, at(15, 17, 15))
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Errorf("expected specials 1 and 3, got %+v", got)
	}
	if ActiveSpecials(nil, at(15, 17, 15)) != nil {
		t.Error("expected nil for no specials")
	}
}

func TestTick_AlertsOncePerDay(t *testing.T) {
	src := &fakeSource{st: newState(special(1, "daily", "16:00", "19:00"))}
	rec := &recorder{}
	s := NewAlertScheduler(src, rec, time.Minute, time.UTC)

	s.now = func() time.Time { return at(15, 16, 30) }
	sent := s.Tick(context.Background())
	if len(sent) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(sent))
	}
	if sent[0].VenueName != "Tap Room" || sent[0].Special.ID != 1 {
		t.Errorf("unexpected alert: %+v", sent[0])
	}

	s.now = func() time.Time { return at(15, 17, 30) }
	if sent := s.Tick(context.Background()); len(sent) != 0 {
		t.Errorf("expected no repeat alert on the same day, got %d", len(sent))
	}

	s.now = func() time.Time { return at(16, 16, 30) }
	if sent := s.Tick(context.Background()); len(sent) != 1 {
		t.Errorf("expected a new alert on the next day, got %d", len(sent))
	}
	if rec.count() != 2 {
		t.Errorf("expected notifier to see 2 alerts, got %d", rec.count())
	}
}

func TestTick_PreferencesGateAlerts(t *testing.T) {
	tests := []struct {
		name  string
		apply func(p *state.Preferences)
	}{
		{"push disabled", func(p *state.Preferences) { p.PushNotificationsEnabled = false }},
		{"time alerts disabled", func(p *state.Preferences) { p.TimeBasedAlerts = false }},
		{"favorite alerts disabled", func(p *state.Preferences) { p.FavoriteVenueAlerts = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newState(special(1, "daily", "16:00", "19:00"))
			tt.apply(&st.User.Preferences)
			rec := &recorder{}
			s := NewAlertScheduler(&fakeSource{st: st}, rec, time.Minute, time.UTC)
			s.now = func() time.Time { return at(15, 17, 0) }

			if sent := s.Tick(context.Background()); len(sent) != 0 {
				t.Errorf("expected no alerts, got %d", len(sent))
			}
		})
	}
}

func TestTick_IgnoresNonFavorites(t *testing.T) {
	st := newState()
	st.Venues.HappyHourSpecials["v2"] = []state.HappyHourSpecial{special(9, "daily", "16:00", "19:00")}
	rec := &recorder{}
	s := NewAlertScheduler(&fakeSource{st: st}, rec, time.Minute, time.UTC)
	s.now = func() time.Time { return at(15, 17, 0) }

	if sent := s.Tick(context.Background()); len(sent) != 0 {
		t.Errorf("expected no alerts for non-favorite venues, got %d", len(sent))
	}
}

func TestTick_FallsBackToVenueID(t *testing.T) {
	st := newState(special(1, "daily", "16:00", "19:00"))
	delete(st.Venues.VenueDetails, "v1")
	s := NewAlertScheduler(&fakeSource{st: st}, &recorder{}, time.Minute, time.UTC)
	s.now = func() time.Time { return at(15, 17, 0) }

	sent := s.Tick(context.Background())
	if len(sent) != 1 || sent[0].VenueName != "v1" {
		t.Errorf("expected alert named after the venue id, got %+v", sent)
	}
}

func TestTick_UsesConfiguredTimezone(t *testing.T) {
	loc := time.FixedZone("PST", -8*60*60)
	s := NewAlertScheduler(&fakeSource{st: newState(special(1, "monday", "16:00", "19:00"))}, &recorder{}, time.Minute, loc)
	// 01:00 UTC on Tuesday is 17:00 on Monday in PST.
	s.now = func() time.Time { return at(16, 1, 0) }

	if sent := s.Tick(context.Background()); len(sent) != 1 {
		t.Errorf("expected alert in local time, got %d", len(sent))
	}
}

func TestTick_NotifierPanicIsRecovered(t *testing.T) {
	s := NewAlertScheduler(&fakeSource{st: newState(special(1, "daily", "16:00", "19:00"))},
		NotifierFunc(func(Alert) { panic("boom") }), time.Minute, time.UTC)
	s.now = func() time.Time { return at(15, 17, 0) }

	if sent := s.Tick(context.Background()); len(sent) != 1 {
		t.Errorf("expected alert to count as sent, got %d", len(sent))
	}
}

func TestTick_CancelledContext(t *testing.T) {
	s := NewAlertScheduler(&fakeSource{st: newState(special(1, "daily", "16:00", "19:00"))}, &recorder{}, time.Minute, time.UTC)
	s.now = func() time.Time { return at(15, 17, 0) }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sent := s.Tick(ctx); len(sent) != 0 {
		t.Errorf("expected no alerts after cancellation, got %d", len(sent))
	}
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	rec := &recorder{}
	s := NewAlertScheduler(&fakeSource{st: newState(special(1, "daily", "00:00", "00:00"))}, rec, 10*time.Millisecond, time.UTC)

	ctx, cancel := context.WithCancel(context.Background())
	done := s.Start(ctx)

	deadline := time.After(time.Second)
	for rec.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected an alert from the polling loop")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestNewAlertScheduler_DefaultsToLocal(t *testing.T) {
	s := NewAlertScheduler(&fakeSource{}, &recorder{}, time.Minute, nil)
	if s.loc != time.Local {
		t.Errorf("expected local timezone, got %v", s.loc)
	}
}
