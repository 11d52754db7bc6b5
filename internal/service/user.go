package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/auth"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
	"github.com/sakif/foodgram/internal/storage"
)

// RegisterInput is the body of POST /api/users/.
type RegisterInput struct {
	Email     string `json:"email"      validate:"required,email,max=254"`
	Username  string `json:"username"   validate:"required,max=150,username"`
	FirstName string `json:"first_name" validate:"required,max=150"`
	LastName  string `json:"last_name"  validate:"required,max=150"`
	Password  string `json:"password"   validate:"required,max=72"`
}

// SetPasswordInput is the body of POST /api/users/set_password/.
type SetPasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password"     validate:"required,max=72"`
}

// UserService handles registration, profiles, passwords and avatars.
type UserService struct {
	users     repository.UserRepository
	follows   repository.FollowRepository
	passwords *auth.PasswordService
	images    storage.Store
	logger    *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	follows repository.FollowRepository,
	passwords *auth.PasswordService,
	images storage.Store,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:     users,
		follows:   follows,
		passwords: passwords,
		images:    images,
		logger:    logger,
	}
}

// Register creates an account. The response never includes the password.
//
// Email and username availability is checked up front for a friendly error;
// the UNIQUE constraints still decide if two registrations race.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if strings.EqualFold(in.Username, "me") {
		return nil, apperror.ValidationFailed("username", `the username "me" is reserved`)
	}

	if _, err := s.users.GetUserByEmail(ctx, in.Email); err == nil {
		return nil, apperror.AlreadyExists("a user with this email already exists")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("checking email: %w", err)
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Email:        in.Email,
		Username:     in.Username,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		slog.Int64("id", user.ID),
		slog.String("username", user.Username),
	)
	return user, nil
}

// List returns one page of users as seen by viewerID.
func (s *UserService) List(ctx context.Context, viewerID int64, page PageRequest) (Page[model.Profile], error) {
	page = page.normalize()
	users, total, err := s.users.ListUsers(ctx, page.listOptions())
	if err != nil {
		s.logger.Error("failed to list users", slog.String("error", err.Error()))
		return Page[model.Profile]{}, fmt.Errorf("listing users: %w", err)
	}

	profiles := make([]model.Profile, 0, len(users))
	for i := range users {
		p, err := s.profileOf(ctx, viewerID, &users[i])
		if err != nil {
			return Page[model.Profile]{}, err
		}
		profiles = append(profiles, p)
	}
	return newPage(profiles, total, page), nil
}

// Profile returns user id as seen by viewerID.
func (s *UserService) Profile(ctx context.Context, viewerID, id int64) (*model.Profile, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := s.profileOf(ctx, viewerID, user)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Me returns the caller's own profile. Nobody follows themselves, so
// is_subscribed is always false here.
func (s *UserService) Me(ctx context.Context, userID int64) (*model.Profile, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := model.NewProfile(user, false)
	return &p, nil
}

// SetPassword replaces the caller's password after checking the current one.
func (s *UserService) SetPassword(ctx context.Context, userID int64, in SetPasswordInput) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if err := validateStruct(in); err != nil {
		return err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.passwords.Verify(user.PasswordHash, in.CurrentPassword); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return apperror.ValidationFailed("current_password", "current password is incorrect")
		}
		return fmt.Errorf("verifying password: %w", err)
	}

	hash, err := s.passwords.Hash(in.NewPassword)
	if err != nil {
		return apperror.ValidationFailed("new_password", err.Error())
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	s.logger.Info("password changed", slog.Int64("userID", userID))
	return nil
}

// SetAvatar stores a base64 data-URI image as the caller's avatar and
// returns its URL. The previous avatar file, if any, is removed.
func (s *UserService) SetAvatar(ctx context.Context, userID int64, dataURI string) (string, error) {
	if err := requireUser(userID); err != nil {
		return "", err
	}
	if strings.TrimSpace(dataURI) == "" {
		return "", apperror.ValidationFailed("avatar", "this field is required")
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}

	url, err := storage.SaveDataURI(ctx, s.images, "avatars", dataURI)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidImage) {
			return "", apperror.ValidationFailed("avatar", err.Error())
		}
		return "", fmt.Errorf("saving avatar: %w", err)
	}
	if err := s.users.UpdateAvatar(ctx, userID, url); err != nil {
		return "", fmt.Errorf("updating avatar: %w", err)
	}

	s.discardImage(ctx, user.Avatar)
	s.logger.Info("avatar updated", slog.Int64("userID", userID))
	return url, nil
}

// DeleteAvatar clears the caller's avatar.
func (s *UserService) DeleteAvatar(ctx context.Context, userID int64) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.users.UpdateAvatar(ctx, userID, ""); err != nil {
		return fmt.Errorf("clearing avatar: %w", err)
	}
	s.discardImage(ctx, user.Avatar)
	return nil
}

// discardImage removes a replaced image. A failure only leaves an orphaned
// file behind, so it is logged rather than returned.
func (s *UserService) discardImage(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := s.images.Delete(ctx, url); err != nil {
		s.logger.Warn("failed to remove old image",
			slog.String("url", url),
			slog.String("error", err.Error()),
		)
	}
}

func (s *UserService) profileOf(ctx context.Context, viewerID int64, user *model.User) (model.Profile, error) {
	subscribed := false
	if viewerID > 0 && viewerID != user.ID {
		ok, err := s.follows.FollowExists(ctx, viewerID, user.ID)
		if err != nil {
			return model.Profile{}, fmt.Errorf("checking subscription: %w", err)
		}
		subscribed = ok
	}
	return model.NewProfile(user, subscribed), nil
}
