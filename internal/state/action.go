package state

import (
	"strings"
	"time"
)

// Phase is the lifecycle stage of an asynchronous operation.
type Phase string

const (
	PhaseNone      Phase = ""
	PhasePending   Phase = "pending"
	PhaseFulfilled Phase = "fulfilled"
	PhaseRejected  Phase = "rejected"
)

// Meta carries dispatch bookkeeping alongside the payload.
type Meta struct {
	// RequestID ties the phases of one async operation together.
	RequestID string
	// Arg is the argument the async operation was started with.
	Arg any
	// Stale marks a completion superseded by a newer request for the same key.
	Stale bool
	// At is the dispatch time; reducers use it instead of reading a clock.
	At time.Time
}

// Action is a state transition request. Type is "<slice>/<name>" for
// synchronous actions and "<slice>/<name>/<phase>" for async phases.
type Action struct {
	Type    string
	Payload any
	// Error holds the message of a rejected operation.
	Error string
	Meta  Meta
}

// Phase classifies the action by its type suffix.
func (a Action) Phase() Phase {
	switch {
	case strings.HasSuffix(a.Type, "/"+string(PhasePending)):
		return PhasePending
	case strings.HasSuffix(a.Type, "/"+string(PhaseFulfilled)):
		return PhaseFulfilled
	case strings.HasSuffix(a.Type, "/"+string(PhaseRejected)):
		return PhaseRejected
	default:
		return PhaseNone
	}
}

// Slice returns the owning slice name, the part before the first slash.
func (a Action) Slice() string {
	if i := strings.IndexByte(a.Type, '/'); i >= 0 {
		return a.Type[:i]
	}
	return a.Type
}

// Pending, Fulfilled and Rejected build the phase action types of an operation.
func Pending(op string) string   { return op + "/" + string(PhasePending) }
func Fulfilled(op string) string { return op + "/" + string(PhaseFulfilled) }
func Rejected(op string) string  { return op + "/" + string(PhaseRejected) }

// Slice names.
const (
	SliceAuth   = "auth"
	SliceVenues = "venues"
	SliceSearch = "search"
	SliceUser   = "user"
)

// Async operations.
const (
	OpSearchVenues      = "venues/searchVenues"
	OpGetVenueDetails   = "venues/getVenueDetails"
	OpToggleFavorite    = "venues/toggleFavorite"
	OpLoginUser         = "auth/loginUser"
	OpRegisterUser      = "auth/registerUser"
	OpLogoutUser        = "auth/logoutUser"
	OpRefreshToken      = "auth/refreshToken"
	OpUpdatePreferences = "user/updatePreferences"
	OpCheckIn           = "user/checkIn"
	OpLoadAnalytics     = "user/loadAnalytics"
)
