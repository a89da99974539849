package accounts

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired reset token")
)

type Repo interface {
	Create(ctx context.Context, user User) (User, error)
	UpsertExternal(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, userID string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	SetPassword(ctx context.Context, userID, hash string) error
	CreateReset(ctx context.Context, reset PasswordReset) error
	// ConsumeReset marks an unused, unexpired reset as used and returns its user.
	ConsumeReset(ctx context.Context, tokenHash string, now time.Time) (string, error)
}
