package service

import (
	"context"
	"errors"
	"time"

	"github.com/bassista/go_happyhour/internal/backend"
	"github.com/bassista/go_happyhour/internal/cache"
	"github.com/bassista/go_happyhour/internal/logger"
	"github.com/bassista/go_happyhour/internal/pipeline"
	"github.com/bassista/go_happyhour/internal/state"
)

const (
	msgLoginFailed    = "Login failed"
	msgRegisterFailed = "Registration failed"
	msgRefreshFailed  = "Token refresh failed"
)

// ErrNoToken is returned by RefreshToken when no session is stored.
var ErrNoToken = errors.New("no token available")

// errOffline is returned by account operations when no backend is configured.
var errOffline = errors.New("backend not configured")

// Login validates creds and opens a session.
func (s *Services) Login(ctx context.Context, creds state.Credentials) (state.Session, error) {
	if err := s.validateForm(creds); err != nil {
		return state.Session{}, err
	}
	return s.session(ctx, pipeline.Op{Type: state.OpLoginUser, Arg: creds.Email, Fallback: msgLoginFailed},
		func(ctx context.Context) (state.Session, error) { return s.backend.Login(ctx, creds) })
}

// Register validates reg and creates an account.
func (s *Services) Register(ctx context.Context, reg state.Registration) (state.Session, error) {
	if err := s.validateForm(reg); err != nil {
		return state.Session{}, err
	}
	return s.session(ctx, pipeline.Op{Type: state.OpRegisterUser, Arg: reg.Email, Fallback: msgRegisterFailed},
		func(ctx context.Context) (state.Session, error) { return s.backend.Register(ctx, reg) })
}

func (s *Services) session(ctx context.Context, op pipeline.Op, call func(context.Context) (state.Session, error)) (state.Session, error) {
	v, err := s.store.Run(ctx, op, func(ctx context.Context, _ state.RootState) (any, error) {
		if s.backend == nil {
			return nil, errOffline
		}
		return call(ctx)
	})
	if err != nil {
		return state.Session{}, err
	}
	return v.(state.Session), nil
}

// Logout ends the session. A backend failure is logged and the local session
// is cleared anyway.
func (s *Services) Logout(ctx context.Context) error {
	_, err := s.store.Run(ctx, pipeline.Op{Type: state.OpLogoutUser}, func(ctx context.Context, _ state.RootState) (any, error) {
		if s.backend != nil {
			if err := s.backend.Logout(ctx); err != nil {
				logger.WithComponent("service").Warnf("backend logout failed: %v", err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	c := s.store.Cache()
	c.ClearCategory(cache.UserPreferences)
	c.ClearCategory(cache.Favorites)
	return nil
}

// RefreshToken exchanges the stored token for a new one. Any failure signs
// the user out.
func (s *Services) RefreshToken(ctx context.Context) (string, error) {
	v, err := s.store.Run(ctx, pipeline.Op{Type: state.OpRefreshToken, Fallback: msgRefreshFailed}, func(ctx context.Context, st state.RootState) (any, error) {
		if st.Auth.Token == "" {
			return nil, ErrNoToken
		}
		if s.backend == nil {
			return nil, errOffline
		}
		return s.backend.Refresh(ctx, st.Auth.Token)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// RefreshIfExpiring refreshes the token when it expires within window. It
// reports whether a refresh ran.
func (s *Services) RefreshIfExpiring(ctx context.Context, window time.Duration) (bool, error) {
	tok := s.store.State().Auth.Token
	if tok == "" || !backend.NeedsRefresh(tok, s.now(), window) {
		return false, nil
	}
	_, err := s.RefreshToken(ctx)
	return true, err
}

// Token returns the stored session token. It satisfies backend.TokenSource.
func (s *Services) Token() string {
	return s.store.State().Auth.Token
}
