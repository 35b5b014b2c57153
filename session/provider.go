package session

import (
	"context"
	"strings"
	"time"

	"civichero-be/apperr"
	"civichero-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrInvalidCredentials = apperr.Auth("Invalid credentials")
	ErrRegistrationFailed = apperr.Auth("Registration failed: email already in use")
)

// Provider verifies credentials and creates accounts.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*models.User, error)
	SignUp(ctx context.Context, email, password, name string, typ models.ProfileType) (*models.User, error)
	// Withdraw removes an account created by SignUp whose session never opened.
	Withdraw(ctx context.Context, id primitive.ObjectID) error
}

// UserStore is the account storage PasswordProvider works against.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Insert(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// PasswordProvider checks bcrypt password hashes kept in the user store.
type PasswordProvider struct {
	users UserStore
	now   func() time.Time
}

func NewPasswordProvider(users UserStore) *PasswordProvider {
	return &PasswordProvider{users: users, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (p *PasswordProvider) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	user, err := p.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.ComparePassword(password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (p *PasswordProvider) SignUp(ctx context.Context, email, password, name string, typ models.ProfileType) (*models.User, error) {
	now := p.now()
	user := &models.User{
		ID:        primitive.NewObjectID(),
		Name:      strings.TrimSpace(name),
		Email:     normalizeEmail(email),
		Password:  password,
		Type:      typ,
		XPPoints:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.HashPassword(); err != nil {
		return nil, err
	}
	if err := p.users.Insert(ctx, user); err != nil {
		if apperr.IsKind(err, apperr.KindConflict) {
			return nil, ErrRegistrationFailed
		}
		return nil, err
	}
	return user, nil
}

func (p *PasswordProvider) Withdraw(ctx context.Context, id primitive.ObjectID) error {
	return p.users.Delete(ctx, id)
}
