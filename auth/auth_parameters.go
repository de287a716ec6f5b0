package auth

import (
	"strings"

	"github.com/mubarokah/id-server/clients"
	"github.com/mubarokah/id-server/oauth2"
)

// AuthorizeRequest holds the query parameters of a GET /oauth/authorize
// request, still unvalidated.
type AuthorizeRequest struct {
	// ResponseType must be "code"; this server implements only the
	// authorization code flow.
	ResponseType oauth2.ResponseType

	// ClientID identifies the requesting application.
	ClientID string

	// RedirectURI must exactly match one of the client's registered URIs.
	// Validated before anything is ever redirected.
	RedirectURI string

	// Scope is the raw space-separated scope request. Empty means the
	// server default.
	Scope string

	// State is opaque to the server and echoed back on every redirect.
	// Never validated beyond presence.
	State string

	// Prompt optionally forces re-consent ("consent") or
	// re-authentication ("login").
	Prompt oauth2.PromptType

	// CodeChallenge and CodeChallengeMethod carry the optional PKCE
	// binding. When present, the method must be S256.
	CodeChallenge       string
	CodeChallengeMethod oauth2.CodeMethodType
}

// validateClientBinding covers the checks that must pass before any
// redirect-based error is safe: a request with an unknown client or an
// unregistered redirect URI is rendered directly, never redirected, or the
// authorize endpoint becomes an open redirector.
func (r *AuthorizeRequest) validateClientBinding(client *clients.Client) *oauth2.Error {
	if strings.TrimSpace(r.RedirectURI) == "" {
		return oauth2.NewError(oauth2.ErrCodeInvalidRequest, "redirect_uri is required")
	}
	if !client.AllowsRedirectURI(r.RedirectURI) {
		return oauth2.NewError(oauth2.ErrCodeInvalidRequest, "redirect_uri is not registered for this client").
			WithHint("redirect URIs are matched exactly, including trailing slashes")
	}
	return nil
}

// validateShape covers the checks that are safe to report via redirect once
// the client binding has been validated.
func (r *AuthorizeRequest) validateShape() *oauth2.Error {
	if r.ResponseType != oauth2.CodeResponseType {
		return oauth2.NewError(oauth2.ErrCodeUnsupportedResponseType, "response_type must be \"code\"")
	}
	if r.CodeChallenge != "" && r.CodeChallengeMethod != oauth2.CodeMethodS256 {
		return oauth2.NewError(oauth2.ErrCodeInvalidRequest, "code_challenge_method must be S256")
	}
	if r.CodeChallenge == "" && r.CodeChallengeMethod != "" {
		return oauth2.NewError(oauth2.ErrCodeInvalidRequest, "code_challenge_method given without code_challenge")
	}
	return nil
}

// TokenRequest holds the form body of a POST /oauth/token request.
type TokenRequest struct {
	GrantType oauth2.GrantType

	// Client credentials, from HTTP Basic auth or the form body. Basic
	// takes precedence when both are present.
	ClientID     string
	ClientSecret string

	// authorization_code fields.
	Code         string
	RedirectURI  string
	CodeVerifier string

	// refresh_token fields.
	RefreshToken string

	// Scope optionally narrows the granted scopes (refresh_token) or
	// selects them (client_credentials).
	Scope string
}
