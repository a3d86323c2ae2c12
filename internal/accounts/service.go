// Package accounts manages user registration and credential checks.
package accounts

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"example.com/carbon/internal/domain"
)

const minPasswordLength = 6

var (
	// ErrEmailTaken is returned when the (case-insensitive) email is registered.
	ErrEmailTaken = errors.New("email already taken")
	// ErrInvalidCredentials is returned for a failed login. It does not
	// distinguish unknown email from wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserNotFound is returned when a user id does not resolve.
	ErrUserNotFound = errors.New("user not found")
)

// User is a registered account.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// Repository captures user persistence. Create must enforce email
// uniqueness and return ErrEmailTaken on conflict.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, userID string) (*User, error)
}

// Service handles signup and login.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// SignupInput is the registration payload.
type SignupInput struct {
	Email    string
	Name     string
	Password string
}

// Signup validates the input, hashes the password and stores the user.
// Emails are lowercased before storage and lookup.
func (s *Service) Signup(ctx context.Context, input SignupInput) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	name := strings.TrimSpace(input.Name)

	v := domain.NewValidationError()
	if email == "" {
		v.Add("email", "is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		v.Add("email", "is invalid")
	}
	if name == "" {
		v.Add("name", "is required")
	}
	if len(input.Password) < minPasswordLength {
		v.Add("password", "is too short (minimum is 6 characters)")
	}
	if !v.Empty() {
		return nil, v
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login verifies the credentials and returns the account.
func (s *Service) Login(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Get resolves a user id, typically from verified token claims.
func (s *Service) Get(ctx context.Context, userID string) (*User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}
