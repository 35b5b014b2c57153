// Package session owns authenticated sessions: it signs users in through a
// Provider, persists a profile snapshot in a Cache and hands out signed
// tokens that carry the session id.
package session

import (
	"context"
	"fmt"
	"time"

	"civichero-be/apperr"
	"civichero-be/models"
	authUtils "civichero-be/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ErrNoSession means the session does not exist or has expired.
var ErrNoSession = apperr.Auth("Session expired or not found")

// Session is a signed-in user and their profile snapshot.
type Session struct {
	ID        string         `json:"id"`
	Profile   models.Profile `json:"profile"`
	IssuedAt  time.Time      `json:"issuedAt"`
	ExpiresAt time.Time      `json:"expiresAt"`

	// Token is only set on the session returned from Login/Register.
	Token string `json:"-"`
}

// Role returns the profile type the session was opened with.
func (s *Session) Role() models.ProfileType { return s.Profile.Type }

// XPWriter persists experience points on the durable profile. AddXP
// returns the new total.
type XPWriter interface {
	SetXP(ctx context.Context, id primitive.ObjectID, xp int) error
	AddXP(ctx context.Context, id primitive.ObjectID, delta int) (int, error)
}

type Config struct {
	JWTSecret string
	TTL       time.Duration
}

// Store is the single owner of session state.
type Store struct {
	provider Provider
	users    XPWriter
	cache    Cache
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

func NewStore(provider Provider, users XPWriter, cache Cache, cfg Config, logger *zap.Logger) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = 72 * time.Hour
	}
	return &Store{
		provider: provider,
		users:    users,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Login verifies credentials and opens a session.
func (s *Store) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, user)
}

// Register creates a profile with zero XP and opens a session for it.
func (s *Store) Register(ctx context.Context, email, password, name string, typ models.ProfileType) (*Session, error) {
	if !typ.Valid() {
		return nil, apperr.Validation("type must be citizen or ngo")
	}
	user, err := s.provider.SignUp(ctx, email, password, name, typ)
	if err != nil {
		return nil, err
	}
	sess, err := s.open(ctx, user)
	if err != nil {
		// A failed registration leaves no account behind.
		if werr := s.provider.Withdraw(context.WithoutCancel(ctx), user.ID); werr != nil {
			s.logger.Error("failed to withdraw account after session failure",
				zap.String("user_id", user.ID.Hex()), zap.Error(werr))
		}
		return nil, err
	}
	s.logger.Info("profile registered", zap.String("user_id", user.ID.Hex()), zap.String("type", string(typ)))
	return sess, nil
}

// open builds the session, persists it and only then returns it, so callers
// never see a profile whose session failed to persist.
func (s *Store) open(ctx context.Context, user *models.User) (*Session, error) {
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		Profile:   user.Profile(),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.cfg.TTL),
	}

	token, err := authUtils.GenerateToken(s.cfg.JWTSecret, sess.ID, user.ID.Hex(), string(user.Type), sess.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	if err := s.cache.Save(ctx, sess); err != nil {
		return nil, err
	}

	sess.Token = token
	return sess, nil
}

// Restore loads a persisted session.
func (s *Store) Restore(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNoSession
	}
	return s.cache.Load(ctx, id)
}

// Logout drops the session. Unknown or empty ids are not an error.
func (s *Store) Logout(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.cache.Delete(ctx, id)
}

// UpdateXP overwrites the session profile's XP, durably and in every
// snapshot of the user. The caller computes the new value.
func (s *Store) UpdateXP(ctx context.Context, sess *Session, xp int) error {
	if xp < 0 {
		return apperr.Validation("experience points cannot be negative")
	}
	if err := s.users.SetXP(ctx, sess.Profile.ID, xp); err != nil {
		return err
	}
	if err := s.refresh(ctx, sess, xp); err != nil {
		if rerr := s.users.SetXP(ctx, sess.Profile.ID, sess.Profile.XPPoints); rerr != nil {
			s.logger.Error("failed to restore experience points",
				zap.String("user_id", sess.Profile.ID.Hex()), zap.Error(rerr))
		}
		return err
	}
	sess.Profile.XPPoints = xp
	return nil
}

// AwardXP adds points to the durable profile in one atomic step, so
// concurrent awards to the same user all count.
func (s *Store) AwardXP(ctx context.Context, sess *Session, points int) error {
	if points < 0 {
		return apperr.Validation("experience points cannot be negative")
	}
	xp, err := s.users.AddXP(ctx, sess.Profile.ID, points)
	if err != nil {
		return err
	}
	if err := s.refresh(ctx, sess, xp); err != nil {
		if _, rerr := s.users.AddXP(context.WithoutCancel(ctx), sess.Profile.ID, -points); rerr != nil {
			s.logger.Error("failed to take back awarded experience points",
				zap.String("user_id", sess.Profile.ID.Hex()), zap.Error(rerr))
		}
		return err
	}
	sess.Profile.XPPoints = xp
	return nil
}

// refresh saves sess with the new total, then updates the user's other
// sessions. Only the first step can fail the call.
func (s *Store) refresh(ctx context.Context, sess *Session, xp int) error {
	updated := *sess
	updated.Profile.XPPoints = xp
	if err := s.cache.Save(ctx, &updated); err != nil {
		return err
	}
	if err := s.cache.SyncXP(ctx, sess.Profile.ID.Hex(), xp); err != nil {
		s.logger.Warn("other sessions keep stale experience points",
			zap.String("user_id", sess.Profile.ID.Hex()), zap.Error(err))
	}
	return nil
}
