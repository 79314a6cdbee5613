package models

// User is an authenticated identity issued by the auth provider.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AuthSession is a signed-in session returned by the auth provider.
type AuthSession struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// SignUpResult is the outcome of a sign-up. Session is nil when the provider
// requires the email address to be confirmed first.
type SignUpResult struct {
	User    User         `json:"user"`
	Session *AuthSession `json:"session,omitempty"`
}
