package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/staylink/internal/apperrors"
	"github.com/joshua-takyi/staylink/internal/helpers"
	"github.com/joshua-takyi/staylink/internal/models"
	"github.com/supabase-community/gotrue-go/types"
)

const (
	profileFetchAttempts = 3
	profileFetchBackoff  = time.Second
)

type UserService struct {
	userRepo models.UserRepo
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewUserService(userRepo models.UserRepo, logger *slog.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (us *UserService) CreateUser(ctx context.Context, user *models.User) (*types.SignupResponse, error) {
	if err := validate(user); err != nil {
		return nil, err
	}
	if !helpers.IsPasswordStrong(user.Password) {
		return nil, apperrors.Validation("password is not strong enough", nil)
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := us.userRepo.CreateUser(ctx, user)
	if err != nil {
		return nil, apperrors.Validation(err.Error(), nil)
	}
	return res, nil
}

func (us *UserService) AuthenticateUser(ctx context.Context, email, password string) (*types.TokenResponse, error) {
	if err := models.Validate.Var(email, "required,email"); err != nil {
		return nil, apperrors.Validation("invalid email format", nil)
	}
	if err := models.Validate.Var(password, "required,min=8"); err != nil {
		return nil, apperrors.Validation("invalid password format", nil)
	}
	response, err := us.userRepo.AuthenticateUser(ctx, email, password)
	if err != nil {
		us.logger.Info("authentication failed", "email", email, "error", err)
		return nil, apperrors.Unauthenticated("invalid email or password", err)
	}
	return response, nil
}

func (us *UserService) RefreshToken(ctx context.Context, refreshToken string) (*types.TokenResponse, error) {
	if refreshToken == "" {
		return nil, apperrors.AuthenticationRequired()
	}
	response, err := us.userRepo.RefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, apperrors.Unauthenticated("session expired, please sign in again", err)
	}
	return response, nil
}

func (us *UserService) GetUser(ctx context.Context, id uuid.UUID, accessToken string) (*models.User, error) {
	res, err := us.userRepo.GetUser(ctx, id, accessToken)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, apperrors.NotFound("user")
		}
		return nil, apperrors.RemoteOperation("get user", fmt.Errorf("failed to get user: %w", err))
	}
	return res, nil
}

// FetchUserProfile retries a few times with a fixed pause; a freshly signed-up
// profile row can lag behind the auth user.
func (us *UserService) FetchUserProfile(ctx context.Context, id uuid.UUID, accessToken string) (*models.User, error) {
	var lastErr error
	for attempt := 1; attempt <= profileFetchAttempts; attempt++ {
		user, err := us.userRepo.GetUser(ctx, id, accessToken)
		if err == nil {
			return user, nil
		}
		lastErr = err
		us.logger.Warn("profile fetch failed", "user_id", id, "attempt", attempt, "error", err)

		if attempt == profileFetchAttempts {
			break
		}
		if err := us.sleep(ctx, profileFetchBackoff); err != nil {
			lastErr = err
			break
		}
	}

	if errors.Is(lastErr, models.ErrUserNotFound) {
		return nil, apperrors.NotFound("user profile")
	}
	return nil, apperrors.RemoteOperation("fetch user profile", lastErr)
}
