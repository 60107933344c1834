package services

import (
	"context"
	"errors"
	"fmt"

	"task-manager/api/internal/models"
	"task-manager/api/internal/repositories"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

type AuthService interface {
	LoginUser(ctx context.Context, email, password string) (*TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, int64, error)
}

type AuthServiceImpl struct {
	users  UserStore
	tokens *TokenManager
	// hashed once so unknown emails cost the same as wrong passwords
	dummyHash string
}

func NewAuthService(users UserStore, tokens *TokenManager) *AuthServiceImpl {
	dummy, _ := HashPassword("not-a-real-password")
	return &AuthServiceImpl{users: users, tokens: tokens, dummyHash: dummy}
}

func (s *AuthServiceImpl) LoginUser(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.users.FindUserByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			VerifyPassword(password, s.dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !VerifyPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	subject := user.ID.Hex()
	access, err := s.tokens.IssueAccess(subject)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(subject)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// RefreshToken mints a new access token; the refresh token itself is not rotated.
func (s *AuthServiceImpl) RefreshToken(ctx context.Context, refreshToken string) (string, int64, error) {
	subject, err := s.tokens.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		return "", 0, ErrInvalidToken
	}

	access, err := s.tokens.IssueAccess(subject)
	if err != nil {
		return "", 0, fmt.Errorf("failed to issue access token: %w", err)
	}

	return access, int64(s.tokens.AccessTTL().Seconds()), nil
}
