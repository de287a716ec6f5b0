package token

import (
	"time"

	"github.com/pkg/errors"

	"github.com/mubarokah/id-server/scopes"
)

var (
	ErrNotFound = errors.New("token not found")
	ErrRevoked  = errors.New("token revoked")
)

// AccessRecord is the server-side record of an issued access token, keyed by
// the JWT's jti claim. The record is the source of truth for revocation: a
// signed JWT whose record is revoked is dead immediately, without waiting
// for the exp claim.
type AccessRecord struct {
	JTI       string
	ClientID  string
	UserID    string // empty for client_credentials tokens
	Scopes    scopes.Set
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// RefreshToken is the long-lived opaque credential paired with an access
// token. Bound to exactly one client; presenting it with a different
// client_id fails closed.
type RefreshToken struct {
	Token    string
	ClientID string
	UserID   string
	Scopes   scopes.Set
	IssuedAt time.Time
	Revoked  bool
}

type AccessTokenRepo interface {
	Store(record *AccessRecord) error
	Get(jti string) (*AccessRecord, error)
	Revoke(jti string) error
}

// RefreshTokenRepo stores refresh tokens. Replace is the rotation primitive
// and must be atomic in the same way grant consumption is: it revokes the
// old token and stores the replacement in one step, failing with ErrNotFound
// or ErrRevoked if the old token was already rotated or revoked.
type RefreshTokenRepo interface {
	Store(token *RefreshToken) error
	Get(token string) (*RefreshToken, error)
	Revoke(token string) error
	Replace(oldToken string, replacement *RefreshToken) error
}
