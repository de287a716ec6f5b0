package server

import (
	"net/http"

	"github.com/pkg/errors"
)

// ErrNoAuthenticatedUser is returned when a request carries no resolvable
// user identity.
var ErrNoAuthenticatedUser = errors.New("no authenticated user")

// Authenticator resolves the already-authenticated end user on an
// authorization request. Login itself is delegated to the account frontend;
// this server only consumes its result.
type Authenticator interface {
	UserFromRequest(r *http.Request) (userID string, err error)
}

// HeaderAuthenticator trusts a header set by the session frontend that
// proxies this server. Only safe when the header is stripped at the edge.
type HeaderAuthenticator struct {
	Header string
}

func (a *HeaderAuthenticator) UserFromRequest(r *http.Request) (string, error) {
	userID := r.Header.Get(a.Header)
	if userID == "" {
		return "", ErrNoAuthenticatedUser
	}
	return userID, nil
}
