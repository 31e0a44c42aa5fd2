package service

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/avvvet/scratch-services/internal/scratchsvc/errs"
	"github.com/avvvet/scratch-services/internal/scratchsvc/models"
)

type UserStore interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	CreateUser(ctx context.Context, user models.User) (int64, error)
}

// UserService registers holders the first time the socket gateway sees them.
type UserService struct {
	userStore UserStore
}

func NewUserService(userStore UserStore) *UserService {
	return &UserService{
		userStore: userStore,
	}
}

// GetOrCreateUser returns the stored user, creating an active one if it is unknown.
// AgeVerified is the token claim the gateway stamps into every payload.
func (s *UserService) GetOrCreateUser(ctx context.Context, userInfo models.User) (*models.User, error) {
	existingUser, err := s.userStore.GetByID(ctx, userInfo.UserId)
	if err == nil {
		return existingUser, nil
	}
	if !errs.Is(err, errs.KindNotFound) {
		return nil, err
	}

	log.WithField("user", userInfo.UserId).Info("user not found, creating new user")

	userInfo.Status = models.UserStatusActive
	userId, err := s.userStore.CreateUser(ctx, userInfo)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	userInfo.UserId = userId
	return &userInfo, nil
}
