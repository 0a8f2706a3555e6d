// users.go: registration, password authentication and user lookup.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/swap-mitra/city-vault/internal/auth"
	"github.com/swap-mitra/city-vault/internal/domain/model"
	"github.com/swap-mitra/city-vault/internal/repository"
)

// bcryptCost is the work factor of stored password hashes.
const bcryptCost = 10

// maxPasswordBytes is the bcrypt input limit.
const maxPasswordBytes = 72

// RegisterParams: registration input.
type RegisterParams struct {
	Name     *string
	Email    string
	Password string
}

// UserService manages vault users.
type UserService struct {
	users  repository.UserRepository
	cache  *UserCache
	cost   int
	logger *slog.Logger
}

// NewUserService creates the user service. cache may be nil.
func NewUserService(users repository.UserRepository, cache *UserCache, logger *slog.Logger) *UserService {
	return &UserService{
		users:  users,
		cache:  cache,
		cost:   bcryptCost,
		logger: logger.With(slog.String("component", "user_service")),
	}
}

// Register creates a user with a bcrypt-hashed password.
func (s *UserService) Register(ctx context.Context, p RegisterParams) (*model.User, error) {
	email := auth.NormalizeEmail(p.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}
	if p.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrValidation)
	}
	if len(p.Password) > maxPasswordBytes {
		return nil, fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, maxPasswordBytes)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("%w: user with this email already exists", ErrConflict)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
	}
	if p.Name != nil {
		if name := strings.TrimSpace(*p.Name); name != "" {
			u.Name = &name
		}
	}

	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: user with this email already exists", ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("User registered",
		slog.String("user_id", u.ID),
		slog.String("email", u.Email),
	)
	return u, nil
}

// Authenticate checks credentials. Unknown email and wrong password
// produce the same error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	email = auth.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug("Password mismatch", slog.String("user_id", u.ID))
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// GetByID returns a user by id.
func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	if s.cache != nil {
		if u, ok := s.cache.ByID(id); ok {
			return u, nil
		}
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.load(s.users.GetByID(ctx, id))
}

// GetByEmail returns a user by email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = auth.NormalizeEmail(email)
	if s.cache != nil {
		if u, ok := s.cache.ByEmail(email); ok {
			return u, nil
		}
	}
	return s.load(s.users.GetByEmail(ctx, email))
}

func (s *UserService) load(u *model.User, err error) (*model.User, error) {
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if s.cache != nil {
		s.cache.Set(u)
	}
	return u, nil
}
