// Package accounts handles sign-up, login, password resets and Google
// sign-in. Every path ends with a signed session token.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"cv-backend/internal/shared/telemetry"
	"cv-backend/internal/shared/util"
)

const (
	minPasswordLen  = 8
	defaultResetTTL = time.Hour
)

// ErrWeakPassword is returned for passwords shorter than the minimum length.
var ErrWeakPassword = fmt.Errorf("password must be at least %d characters", minPasswordLen)

// ErrInvalidEmail is returned when an email address does not parse.
var ErrInvalidEmail = errors.New("invalid email address")

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Sign(subject, email, name string) (string, error)
}

type Service struct {
	Repo     Repo
	Tokens   TokenIssuer
	ResetTTL time.Duration
	cost     int
	now      func() time.Time
}

func NewService(repo Repo, tokens TokenIssuer) *Service {
	return &Service{
		Repo:     repo,
		Tokens:   tokens,
		ResetTTL: defaultResetTTL,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
	}
}

// Session is a user together with a freshly signed token.
type Session struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

func (s *Service) Signup(ctx context.Context, email, password, fullName string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	if len(password) < minPasswordLen {
		return Session{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.Repo.Create(ctx, User{
		ID:           uuid.NewString(),
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		Provider:     ProviderPassword,
		PasswordHash: string(hash),
	})
	if err != nil {
		return Session{}, err
	}
	telemetry.Info("accounts.signup", map[string]any{"user_id": user.ID})
	return s.issue(user)
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, ErrInvalidCredentials
	}
	user, err := s.Repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if user.PasswordHash == "" {
		return Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.issue(user)
}

// RequestPasswordReset creates a reset grant and returns the raw token for
// delivery. Unknown emails return an empty token and no error.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", nil
	}
	user, err := s.Repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	token := uuid.NewString()
	err = s.Repo.CreateReset(ctx, PasswordReset{
		TokenHash: util.HashKey(token),
		UserID:    user.ID,
		ExpiresAt: s.now().UTC().Add(s.ResetTTL),
	})
	if err != nil {
		return "", err
	}
	telemetry.Info("accounts.reset_requested", map[string]any{"user_id": user.ID})
	return token, nil
}

func (s *Service) ResetPassword(ctx context.Context, token, password string) (Session, error) {
	if strings.TrimSpace(token) == "" {
		return Session{}, ErrInvalidToken
	}
	if len(password) < minPasswordLen {
		return Session{}, ErrWeakPassword
	}
	userID, err := s.Repo.ConsumeReset(ctx, util.HashKey(token), s.now().UTC())
	if err != nil {
		return Session{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	if err := s.Repo.SetPassword(ctx, userID, string(hash)); err != nil {
		return Session{}, err
	}
	user, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issue(user)
}

// SignInExternal records an identity from an external provider and signs a token for it.
func (s *Service) SignInExternal(ctx context.Context, provider, subject, email, fullName string) (Session, error) {
	if strings.TrimSpace(subject) == "" {
		return Session{}, errors.New("external subject is required")
	}
	user, err := s.Repo.UpsertExternal(ctx, User{
		ID:       provider + ":" + subject,
		Email:    strings.ToLower(strings.TrimSpace(email)),
		FullName: strings.TrimSpace(fullName),
		Provider: provider,
	})
	if err != nil {
		return Session{}, err
	}
	return s.issue(user)
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if strings.TrimSpace(userID) == "" {
		return User{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, userID)
}

func (s *Service) issue(user User) (Session, error) {
	token, err := s.Tokens.Sign(user.ID, user.Email, user.FullName)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{User: user, Token: token}, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil || addr.Address != strings.TrimSpace(raw) {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}
