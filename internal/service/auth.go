package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sakif/foodgram/internal/apperror"
	"github.com/sakif/foodgram/internal/auth"
	"github.com/sakif/foodgram/internal/model"
	"github.com/sakif/foodgram/internal/repository"
)

// LoginInput is the body of POST /api/auth/token/login/.
type LoginInput struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthService issues tokens for email/password logins and GitHub logins.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                                 ↘ TokenService (JWT)
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user and the issued JWT so the handler can respond
// (and, for OAuth, set the cookie) in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// errBadCredentials is the single answer for unknown email and wrong password,
// so the endpoint cannot be used to probe which emails are registered.
var errBadCredentials = apperror.ValidationFailed("non_field_errors", "unable to log in with provided credentials")

// Login checks email and password and issues a token.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}
	if err := s.passwords.Verify(user.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.Int64("userID", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// LoginOrRegisterGitHub handles the GitHub OAuth callback.
//
// The GitHub numeric ID is stable, so it is the lookup key: a known ID logs
// into its account, an unknown one creates a new account with no password.
// The GitHub login becomes the username; if that is already taken the ID is
// appended ("octocat-583231").
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user, err := s.users.GetUserByGitHubID(ctx, ghUser.ID)
	switch {
	case err == nil:
	case errors.Is(err, apperror.ErrNotFound):
		user, err = s.registerGitHub(ctx, ghUser)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("service/auth: looking up GitHub user %d: %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.Int64("userID", user.ID),
		slog.String("login", ghUser.Login),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) registerGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*model.User, error) {
	first, last := ghUser.FirstLastName()
	githubID := ghUser.ID
	user := &model.User{
		Email:     ghUser.ContactEmail(),
		Username:  ghUser.Login,
		FirstName: first,
		LastName:  last,
		GitHubID:  &githubID,
	}

	err := s.users.CreateUser(ctx, user)
	if errors.Is(err, apperror.ErrConflict) {
		// Most likely the username; a second attempt with the numeric suffix
		// is unique unless the email collides too.
		user.Username = ghUser.Login + "-" + strconv.FormatInt(ghUser.ID, 10)
		err = s.users.CreateUser(ctx, user)
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: creating GitHub user %d: %w", ghUser.ID, err)
	}
	return user, nil
}

// ValidateToken returns the user ID a token was issued to.
func (s *AuthService) ValidateToken(tokenStr string) (int64, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return 0, fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}
