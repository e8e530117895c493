package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/watchplus/watchplus/internal/accounts"
	"github.com/watchplus/watchplus/internal/shared"
)

// Registrar creates the account record during signup.
type Registrar interface {
	Register(ctx context.Context, email, displayName string) (*accounts.Account, error)
}

// DomainChecker rejects signups from blocked email domains.
type DomainChecker interface {
	IsBlocked(ctx context.Context, email string) (bool, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo      Repository
	registrar Registrar
	domains   DomainChecker
}

// NewService constructs a new Service.
func NewService(repo Repository, registrar Registrar, domains DomainChecker) *Service {
	return &Service{repo: repo, registrar: registrar, domains: domains}
}

// SignupInput carries the fields of a new registration.
type SignupInput struct {
	Email       string
	Password    string
	DisplayName string
}

// Signup registers a new account at the default tier. Blocked email
// domains are rejected before anything is written.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*accounts.Account, error) {
	blocked, err := s.domains.IsBlocked(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("check signup domain: %w", err)
	}
	if blocked {
		return nil, ErrDomainBlocked
	}
	if existing, err := s.repo.FindByEmail(ctx, in.Email); err == nil && existing != nil {
		return nil, ErrEmailTaken
	} else if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	account, err := s.registrar.Register(ctx, in.Email, in.DisplayName)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetPassword(ctx, account.UID, string(hash)); err != nil {
		return nil, err
	}
	return account, nil
}

// Authenticate validates email/password credentials and returns the
// account uid. Every failure mode collapses into the same error so
// responses do not leak which part was wrong.
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, error) {
	cred, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return "", shared.ErrInvalidCredentials
	}
	if !cred.IsActive || cred.PasswordHash == "" {
		return "", shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return "", shared.ErrInvalidCredentials
	}
	return cred.UID, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id, uid string, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, uid, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
