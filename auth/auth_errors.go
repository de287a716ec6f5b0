package auth

import (
	"github.com/pkg/errors"

	"github.com/mubarokah/id-server/oauth2"
)

var (
	ErrSessionExpired = errors.New("authorization session expired")
	ErrUserMismatch   = errors.New("session belongs to a different user")
)

// RedirectError carries an OAuth error that is safe to deliver via the
// already-validated redirect URI, together with the state to echo back.
// Errors not wrapped in RedirectError must be rendered directly.
type RedirectError struct {
	RedirectURI string
	State       string
	Err         *oauth2.Error
}

func (e *RedirectError) Error() string {
	return e.Err.Error()
}

func (e *RedirectError) Unwrap() error {
	return e.Err
}

func redirectErr(redirectURI, state string, err *oauth2.Error) *RedirectError {
	return &RedirectError{RedirectURI: redirectURI, State: state, Err: err}
}
