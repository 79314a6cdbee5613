package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"timemate/internal/models"
	"timemate/internal/repositories"
	"timemate/internal/supabase"
)

// AuthProvider is the surface of the hosted auth service used here.
type AuthProvider interface {
	GetUser(ctx context.Context, accessToken string) (*models.User, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error)
	SignUp(ctx context.Context, email, password string) (*models.SignUpResult, error)
	SignOut(ctx context.Context, accessToken string) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdatePassword(ctx context.Context, accessToken, password string) (*models.User, error)
}

// ErrProfileNotSaved is returned next to a successful sign-up when the
// nickname could not be stored. Sign-in still works.
var ErrProfileNotSaved = errors.New("nickname was not saved, sign-in still works")

// AccountService wraps the auth provider with the sign-up and reset rules.
type AccountService struct {
	auth          AuthProvider
	profiles      repositories.ProfileRepository
	resetRedirect string
}

// NewAccountService constructs an AccountService.
func NewAccountService(auth AuthProvider, profiles repositories.ProfileRepository, resetRedirect string) *AccountService {
	return &AccountService{auth: auth, profiles: profiles, resetRedirect: resetRedirect}
}

// CurrentUser resolves the user behind an access token.
func (s *AccountService) CurrentUser(ctx context.Context, accessToken string) (*models.User, error) {
	if accessToken == "" {
		return nil, ErrNotSignedIn
	}
	user, err := s.auth.GetUser(ctx, accessToken)
	if err != nil {
		return nil, remote("get user", err)
	}
	return user, nil
}

// SignIn signs in with email and password.
func (s *AccountService) SignIn(ctx context.Context, email, password string) (*models.AuthSession, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	sess, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, remote("sign in", err)
	}
	return sess, nil
}

// SignUp registers a user and stores the nickname. A nickname failure is
// reported as ErrProfileNotSaved alongside the successful result.
func (s *AccountService) SignUp(ctx context.Context, email, password, nickname string) (*models.SignUpResult, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, ErrNicknameRequired
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmailRequired
	}

	result, err := s.auth.SignUp(ctx, email, password)
	if err != nil {
		return nil, remote("sign up", err)
	}

	if result.User.ID != "" && s.profiles != nil {
		pctx := ctx
		if result.Session != nil {
			pctx = supabase.WithAccessToken(ctx, result.Session.AccessToken)
		}
		if err := s.profiles.UpsertProfile(pctx, result.User.ID, nickname); err != nil {
			logrus.WithError(err).WithField("user_id", result.User.ID).Warn("profile upsert failed")
			return result, ErrProfileNotSaved
		}
	}
	return result, nil
}

// SignOut ends the session behind the access token.
func (s *AccountService) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return ErrNotSignedIn
	}
	return remote("sign out", s.auth.SignOut(ctx, accessToken))
}

// SendPasswordReset mails a reset link to the address.
func (s *AccountService) SendPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}
	return remote("send password reset", s.auth.ResetPasswordForEmail(ctx, email, s.resetRedirect))
}

// UpdatePassword sets a new password for the signed-in user.
func (s *AccountService) UpdatePassword(ctx context.Context, accessToken, password string) (*models.User, error) {
	if accessToken == "" {
		return nil, ErrNotSignedIn
	}
	if len(password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	user, err := s.auth.UpdatePassword(ctx, accessToken, password)
	if err != nil {
		return nil, remote("update password", err)
	}
	return user, nil
}
