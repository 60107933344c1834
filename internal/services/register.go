package services

import (
	"context"
	"errors"
	"fmt"

	"task-manager/api/internal/models"
	"task-manager/api/internal/repositories"
)

var ErrEmailTaken = errors.New("email already registered")

type RegisterService interface {
	RegisterUser(ctx context.Context, req models.UserCreate) (*models.User, error)
}

type RegisterServiceImpl struct {
	users UserStore
}

func NewRegisterService(users UserStore) *RegisterServiceImpl {
	return &RegisterServiceImpl{users: users}
}

func (s *RegisterServiceImpl) RegisterUser(ctx context.Context, req models.UserCreate) (*models.User, error) {
	email := models.NormalizeEmail(req.Email)

	if _, err := s.users.FindUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
	}

	// the unique index catches a concurrent signup that slipped past the lookup
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}
