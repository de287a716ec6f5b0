package clients

import (
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/mubarokah/id-server/oauth2"
	"github.com/mubarokah/id-server/scopes"
)

// ClientType distinguishes clients that can keep a secret from those that cannot.
type ClientType string

const (
	ClientTypeConfidential ClientType = "confidential" // Server-side apps, hold a secret
	ClientTypePublic       ClientType = "public"       // SPAs and mobile apps, PKCE only
)

var (
	ErrInvalidScope     = errors.New("scope not allowed for client")
	ErrInvalidSecret    = errors.New("invalid client secret")
	ErrGrantNotAllowed  = errors.New("grant type not allowed for client")
	ErrRedirectMismatch = errors.New("redirect uri not registered for client")
)

// Client is a registered application. Registration and mutation happen in an
// out-of-band admin process; this server only reads client records.
type Client struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        ClientType `json:"type"`
	SecretHash  []byte     `json:"-"` // bcrypt hash, never the raw secret

	// RedirectURIs are matched exactly, byte for byte. No wildcarding, no
	// normalisation: a trailing slash difference is a mismatch.
	RedirectURIs []string `json:"redirect_uris"`

	// AllowedGrantTypes restricts which token endpoint branches the client
	// may use.
	AllowedGrantTypes []oauth2.GrantType `json:"allowed_grant_types"`

	// AllowedScopes is the registration-time allow-list the client may
	// request. It may include elevated scopes the client is not yet
	// approved for.
	AllowedScopes scopes.Set `json:"allowed_scopes"`

	// ApprovedScopes is the subset of AllowedScopes that carries manual
	// administrative sign-off. Only consulted for elevated scopes, and only
	// at resource-access time, never at token issuance.
	ApprovedScopes scopes.Set `json:"approved_scopes"`
}

// IsPublic returns true if the client cannot hold a secret.
func (c *Client) IsPublic() bool {
	return c.Type == ClientTypePublic
}

// AllowsGrantType checks the grant type against the client's allow-list.
func (c *Client) AllowsGrantType(gt oauth2.GrantType) bool {
	for _, allowed := range c.AllowedGrantTypes {
		if allowed == gt {
			return true
		}
	}
	return false
}

// AllowsRedirectURI checks uri against the registered set, exact match only.
func (c *Client) AllowsRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if uri == registered {
			return true
		}
	}
	return false
}

// AllowsScope is the registration-time allow-list gate.
func (c *Client) AllowsScope(s scopes.Scope) bool {
	return c.AllowedScopes.Has(s)
}

// ApprovesScope is the administrative approval gate, independent of user
// consent and of AllowsScope.
func (c *Client) ApprovesScope(s scopes.Scope) bool {
	return c.ApprovedScopes.Has(s)
}

// ValidateRequestedScopes checks that every requested scope is on the
// client's allow-list. Approval is deliberately not checked here: an
// unapproved elevated scope is rejected at the resource layer, not at
// authorization or token issuance.
func (c *Client) ValidateRequestedScopes(requested scopes.Set) error {
	for _, s := range requested.List() {
		if !c.AllowsScope(s) {
			return errors.Wrapf(ErrInvalidScope, "%q", s)
		}
	}
	return nil
}

// VerifySecret compares a presented secret against the stored hash. bcrypt's
// comparison is constant-time; callers must surface the same invalid_client
// error for a bad secret as for an unknown client.
func (c *Client) VerifySecret(secret string) bool {
	if len(c.SecretHash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(c.SecretHash, []byte(secret)) == nil
}

// HashSecret produces the bcrypt hash stored on a client record.
func HashSecret(secret string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "[HashSecret] bcrypt.GenerateFromPassword")
	}
	return hash, nil
}
