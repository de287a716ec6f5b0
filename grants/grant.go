package grants

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/pkg/errors"

	"github.com/mubarokah/id-server/oauth2"
	"github.com/mubarokah/id-server/scopes"
)

const codeGenerationLength = 32 // 256 bits of entropy

// Grant is a one-time-use authorization code and the request context it was
// minted under. A grant transitions consumed=false to true exactly once; a
// second exchange attempt fails.
type Grant struct {
	Code                string
	ClientID            string
	UserID              string
	RedirectURI         string // must match the exchange request exactly
	Scopes              scopes.Set
	CodeChallenge       string // empty when PKCE was not used
	CodeChallengeMethod oauth2.CodeMethodType
	IssuedAt            time.Time
	ExpiresAt           time.Time
	Consumed            bool
}

// Expired reports whether the grant's exchange window has passed.
func (g *Grant) Expired(now time.Time) bool {
	return now.After(g.ExpiresAt)
}

// NewCode mints a cryptographically random, URL-safe authorization code.
func NewCode() (string, error) {
	buf := make([]byte, codeGenerationLength)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "[NewCode] rand.Read")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
