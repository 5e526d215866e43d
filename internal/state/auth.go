package state

import "time"

// Synchronous auth actions.
const (
	AuthClearError          = "auth/clearError"
	AuthCompleteOnboarding  = "auth/completeOnboarding"
	AuthUpdateUser          = "auth/updateUser"
	AuthUpgradeSubscription = "auth/upgradeSubscription"
)

// AuthState is the auth slice. It is persisted.
type AuthState struct {
	User            *User  `json:"user"`
	Token           string `json:"token,omitempty"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	IsLoading       bool   `json:"isLoading"`
	Error           string `json:"error,omitempty"`
	IsFirstLaunch   bool   `json:"isFirstLaunch"`
}

// Credentials are the login form fields.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration are the sign-up form fields.
type Registration struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
}

// Session is the fulfilled payload of loginUser and registerUser.
type Session struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// UserPatch is the payload of updateUser; empty fields are left alone.
type UserPatch struct {
	Email           string
	FirstName       string
	LastName        string
	Phone           string
	ProfileImageURL string
}

// SubscriptionUpgrade is the payload of upgradeSubscription.
type SubscriptionUpgrade struct {
	Status    SubscriptionStatus
	ExpiresAt time.Time
}

// InitialAuthState returns the signed-out slice of a first launch.
func InitialAuthState() AuthState {
	return AuthState{IsFirstLaunch: true}
}

// ReduceAuth applies an auth action and returns the new slice.
func ReduceAuth(s AuthState, a Action) AuthState {
	switch a.Type {
	case AuthClearError:
		s.Error = ""
	case AuthCompleteOnboarding:
		s.IsFirstLaunch = false
	case AuthUpdateUser:
		if p, ok := a.Payload.(UserPatch); ok && s.User != nil {
			u := *s.User
			if p.Email != "" {
				u.Email = p.Email
			}
			if p.FirstName != "" {
				u.FirstName = p.FirstName
			}
			if p.LastName != "" {
				u.LastName = p.LastName
			}
			if p.Phone != "" {
				u.Phone = p.Phone
			}
			if p.ProfileImageURL != "" {
				u.ProfileImageURL = p.ProfileImageURL
			}
			s.User = &u
		}
	case AuthUpgradeSubscription:
		if p, ok := a.Payload.(SubscriptionUpgrade); ok && s.User != nil {
			u := *s.User
			u.SubscriptionStatus = p.Status
			exp := p.ExpiresAt
			u.SubscriptionExpiresAt = &exp
			s.User = &u
		}

	case Pending(OpLoginUser), Pending(OpRegisterUser):
		s.IsLoading = true
		s.Error = ""
	case Fulfilled(OpLoginUser), Fulfilled(OpRegisterUser):
		if sess, ok := a.Payload.(Session); ok {
			u := sess.User
			s.User = &u
			s.Token = sess.Token
			s.IsAuthenticated = true
		}
		s.IsLoading = false
		s.Error = ""
		if a.Type == Fulfilled(OpRegisterUser) {
			s.IsFirstLaunch = false
		}
	case Rejected(OpLoginUser), Rejected(OpRegisterUser):
		s.IsLoading = false
		s.Error = a.Error
		s.IsAuthenticated = false

	case Fulfilled(OpLogoutUser):
		s.User = nil
		s.Token = ""
		s.IsAuthenticated = false
		s.IsLoading = false
		s.Error = ""

	case Fulfilled(OpRefreshToken):
		if tok, ok := a.Payload.(string); ok {
			s.Token = tok
		}
	case Rejected(OpRefreshToken):
		s.User = nil
		s.Token = ""
		s.IsAuthenticated = false
	}
	return s
}
