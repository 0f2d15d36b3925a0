package service

import (
	"clouddb/internal/core"
	"clouddb/internal/logger"
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
	"go.uber.org/zap"
)

type AuthService struct {
	engine   *Engine
	sessions core.SessionStore
	hasher   *PasswordHasher
	clock    clock.Clock
}

// NewAuthService wires identity operations. sessions may be nil when the
// caller keeps sessions itself (the HTTP binding does).
func NewAuthService(engine *Engine, sessions core.SessionStore, hasher *PasswordHasher, clk clock.Clock) *AuthService {
	return &AuthService{
		engine:   engine,
		sessions: sessions,
		hasher:   hasher,
		clock:    clk,
	}
}

// SignUp creates a user and signs them in. The display name defaults to the
// local part of the email.
func (s *AuthService) SignUp(ctx context.Context, email, password, displayName string) (*core.Session, *core.User, error) {
	if email == "" || password == "" {
		return nil, nil, core.ErrMissingFields
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = localPart(email)
	}

	hashed, err := s.hasher.Hash(password)
	if err != nil {
		return nil, nil, err
	}

	var user core.User
	err = s.engine.Update(ctx, func(g *core.Graph) error {
		if g.UserByEmail(email) != nil {
			return core.ErrDuplicateEmail
		}
		user = core.User{
			ID:          uuid.NewString(),
			Email:       email,
			Password:    hashed,
			DisplayName: displayName,
			CreatedAt:   core.Stamp(s.clock.Now()),
		}
		g.Users = append(g.Users, user)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	logger.Log.Info("User signed up", zap.String("user_id", user.ID))
	session, err := s.establish(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return session, &user, nil
}

// SignIn checks the credential. An unknown email is core.ErrUserNotFound.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*core.Session, *core.User, error) {
	var user core.User
	err := s.engine.View(ctx, func(g *core.Graph) error {
		u := g.UserByEmail(email)
		if u == nil {
			return core.ErrUserNotFound
		}
		user = *u
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if !s.hasher.Verify(password, user.Password) {
		return nil, nil, core.ErrInvalidCredential
	}

	session, err := s.establish(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return session, &user, nil
}

// SignOut drops the persisted session pointer. Nothing in the graph changes.
func (s *AuthService) SignOut(ctx context.Context, _ *core.Session) error {
	if s.sessions == nil {
		return nil
	}
	return s.sessions.ClearPointer(ctx)
}

// Resume restores the persisted session. A pointer to a user that no longer
// exists yields an anonymous (nil) session.
func (s *AuthService) Resume(ctx context.Context) (*core.Session, error) {
	if s.sessions == nil {
		return nil, nil
	}
	userID, err := s.sessions.LoadPointer(ctx)
	if err != nil || userID == "" {
		return nil, err
	}

	var found bool
	err = s.engine.View(ctx, func(g *core.Graph) error {
		found = g.UserByID(userID) != nil
		return nil
	})
	if err != nil || !found {
		return nil, err
	}
	return &core.Session{UserID: userID}, nil
}

func (s *AuthService) CurrentUser(ctx context.Context, session *core.Session) (*core.User, error) {
	if session == nil {
		return nil, core.ErrNotAuthenticated
	}
	var user core.User
	err := s.engine.View(ctx, func(g *core.Graph) error {
		u := g.UserByID(session.UserID)
		if u == nil {
			return core.ErrUserNotFound
		}
		user = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile rewrites the display name and nothing else.
func (s *AuthService) UpdateProfile(ctx context.Context, session *core.Session, displayName string) (*core.User, error) {
	if session == nil {
		return nil, core.ErrNotAuthenticated
	}
	var user core.User
	err := s.engine.Update(ctx, func(g *core.Graph) error {
		u := g.UserByID(session.UserID)
		if u == nil {
			return core.ErrUserNotFound
		}
		u.DisplayName = displayName
		user = *u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) UpdatePassword(ctx context.Context, session *core.Session, newPassword string) error {
	if session == nil {
		return core.ErrNotAuthenticated
	}
	return s.setPassword(ctx, func(g *core.Graph) *core.User {
		return g.UserByID(session.UserID)
	}, newPassword)
}

// ResetPassword replaces a user's password by email, without a session.
func (s *AuthService) ResetPassword(ctx context.Context, email, newPassword string) error {
	err := s.setPassword(ctx, func(g *core.Graph) *core.User {
		return g.UserByEmail(email)
	}, newPassword)
	if err == nil {
		logger.Log.Info("Password reset", zap.String("email", email))
	}
	return err
}

func (s *AuthService) setPassword(ctx context.Context, find func(*core.Graph) *core.User, newPassword string) error {
	if newPassword == "" {
		return core.ErrMissingFields
	}
	hashed, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	return s.engine.Update(ctx, func(g *core.Graph) error {
		u := find(g)
		if u == nil {
			return core.ErrUserNotFound
		}
		u.Password = hashed
		return nil
	})
}

func (s *AuthService) establish(ctx context.Context, userID string) (*core.Session, error) {
	if s.sessions != nil {
		if err := s.sessions.SavePointer(ctx, userID); err != nil {
			return nil, err
		}
	}
	return &core.Session{UserID: userID}, nil
}

func localPart(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}
