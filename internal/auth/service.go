package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/galeri/service/internal/config"
	"github.com/galeri/service/internal/user"
)

// ErrWrongPassword is returned when the password does not match the account.
var ErrWrongPassword = errors.New("wrong credentials")

// Service contains the business logic for email/password authentication.
type Service struct {
	users user.Repository
	cfg   *config.Config
}

// NewService creates a new auth Service.
func NewService(users user.Repository, cfg *config.Config) *Service {
	return &Service{users: users, cfg: cfg}
}

// Login verifies the email/password pair and issues a signed credential.
// Returns user.ErrNotFound for unknown emails and ErrWrongPassword for a
// failed password check.
func (s *Service) Login(ctx context.Context, email, password string) (string, *user.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrWrongPassword
	}

	token, err := IssueToken([]byte(s.cfg.JWTSecret), u.ID, s.cfg.TokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, u, nil
}

// Signup registers a new account and issues a signed credential.
// Returns user.ErrAlreadyExists when the email is taken.
func (s *Service) Signup(ctx context.Context, email, password string) (string, *user.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.Create(ctx, email, string(hash))
	if err != nil {
		return "", nil, err
	}

	token, err := IssueToken([]byte(s.cfg.JWTSecret), u.ID, s.cfg.TokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, u, nil
}
