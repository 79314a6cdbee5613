package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"timemate/internal/models"
)

// AuthEvent names an auth state transition.
type AuthEvent string

const (
	EventSignedIn         AuthEvent = "SIGNED_IN"
	EventSignedOut        AuthEvent = "SIGNED_OUT"
	EventUserUpdated      AuthEvent = "USER_UPDATED"
	EventPasswordRecovery AuthEvent = "PASSWORD_RECOVERY"
)

// AuthStateChange is delivered to listeners after a transition succeeds.
// Session is nil for transitions that do not produce one.
type AuthStateChange struct {
	Event   AuthEvent
	User    *models.User
	Session *models.AuthSession
	Email   string
}

// AuthListener observes auth state transitions.
type AuthListener func(ctx context.Context, change AuthStateChange)

var errInvalidToken = errors.New("invalid token")

// AuthClient calls the GoTrue endpoints of the project.
type AuthClient struct {
	client *Client

	mu        sync.RWMutex
	nextID    int
	listeners map[int]AuthListener
}

// NewAuthClient constructs an AuthClient.
func NewAuthClient(client *Client) *AuthClient {
	return &AuthClient{client: client, listeners: map[int]AuthListener{}}
}

// OnAuthStateChange registers a listener and returns a function that removes it.
func (a *AuthClient) OnAuthStateChange(listener AuthListener) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = listener
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func (a *AuthClient) notify(ctx context.Context, change AuthStateChange) {
	a.mu.RLock()
	listeners := make([]AuthListener, 0, len(a.listeners))
	for _, l := range a.listeners {
		listeners = append(listeners, l)
	}
	a.mu.RUnlock()

	for _, l := range listeners {
		l(ctx, change)
	}
}

// GetUser returns the user behind an access token.
func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	var user models.User
	if err := a.client.do(ctx, request{method: http.MethodGet, path: "/auth/v1/user", token: accessToken}, &user); err != nil {
		return nil, fmt.Errorf("supabase.GetUser: %w", err)
	}
	return &user, nil
}

// ValidateToken resolves the user id of an access token remotely.
func (a *AuthClient) ValidateToken(ctx context.Context, accessToken string) (string, error) {
	user, err := a.GetUser(ctx, accessToken)
	if err != nil {
		return "", err
	}
	if user.ID == "" {
		return "", errInvalidToken
	}
	return user.ID, nil
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInWithPassword exchanges email and password for a session.
func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error) {
	var sess models.AuthSession
	req := request{
		method: http.MethodPost,
		path:   "/auth/v1/token?grant_type=password",
		body:   credentials{Email: email, Password: password},
	}
	if err := a.client.do(ctx, req, &sess); err != nil {
		return nil, fmt.Errorf("supabase.SignInWithPassword: %w", err)
	}
	a.notify(ctx, AuthStateChange{Event: EventSignedIn, User: &sess.User, Session: &sess, Email: email})
	return &sess, nil
}

// signUpResponse is either a session (auto-confirmed projects) or a bare user.
type signUpResponse struct {
	models.AuthSession
	ID    string `json:"id"`
	Email string `json:"email"`
}

// SignUp registers a new user.
func (a *AuthClient) SignUp(ctx context.Context, email, password string) (*models.SignUpResult, error) {
	var resp signUpResponse
	req := request{method: http.MethodPost, path: "/auth/v1/signup", body: credentials{Email: email, Password: password}}
	if err := a.client.do(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("supabase.SignUp: %w", err)
	}

	result := &models.SignUpResult{User: models.User{ID: resp.ID, Email: resp.Email}}
	if resp.AccessToken != "" {
		sess := resp.AuthSession
		result.User = sess.User
		result.Session = &sess
		a.notify(ctx, AuthStateChange{Event: EventSignedIn, User: &result.User, Session: &sess, Email: email})
	}
	return result, nil
}

// SignOut revokes the session behind the access token.
func (a *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	if err := a.client.do(ctx, request{method: http.MethodPost, path: "/auth/v1/logout", token: accessToken}, nil); err != nil {
		return fmt.Errorf("supabase.SignOut: %w", err)
	}
	a.notify(ctx, AuthStateChange{Event: EventSignedOut})
	return nil
}

// ResetPasswordForEmail sends a password reset link.
func (a *AuthClient) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	path := "/auth/v1/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	req := request{method: http.MethodPost, path: path, body: map[string]string{"email": email}}
	if err := a.client.do(ctx, req, nil); err != nil {
		return fmt.Errorf("supabase.ResetPasswordForEmail: %w", err)
	}
	a.notify(ctx, AuthStateChange{Event: EventPasswordRecovery, Email: email})
	return nil
}

// UpdatePassword sets a new password for the signed-in user.
func (a *AuthClient) UpdatePassword(ctx context.Context, accessToken, password string) (*models.User, error) {
	var user models.User
	req := request{method: http.MethodPut, path: "/auth/v1/user", token: accessToken, body: map[string]string{"password": password}}
	if err := a.client.do(ctx, req, &user); err != nil {
		return nil, fmt.Errorf("supabase.UpdatePassword: %w", err)
	}
	a.notify(ctx, AuthStateChange{Event: EventUserUpdated, User: &user})
	return &user, nil
}
