package oauth2

// ResponseType represents the OAuth 2.0 response type requested at the
// authorization endpoint.
type ResponseType string

const (
	// CodeResponseType indicates the authorization code flow, the only
	// response type this server supports.
	CodeResponseType ResponseType = "code"
)

// GrantType represents the OAuth 2.0 grant type presented at the token endpoint.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges a one-time authorization code for tokens.
	AuthorizationCodeGrant GrantType = "authorization_code"

	// RefreshTokenGrant exchanges a refresh token for a new access token.
	RefreshTokenGrant GrantType = "refresh_token"

	// ClientCredentialsGrant authenticates a client with no user context.
	// Never yields a refresh token.
	ClientCredentialsGrant GrantType = "client_credentials"
)

// Valid reports whether the grant type is one the token endpoint dispatches on.
func (g GrantType) Valid() bool {
	switch g {
	case AuthorizationCodeGrant, RefreshTokenGrant, ClientCredentialsGrant:
		return true
	}
	return false
}

// CodeMethodType represents the PKCE code challenge method.
type CodeMethodType string

const (
	// CodeMethodS256 is the SHA-256 challenge method. It is the only method
	// this server accepts: "plain" offers no protection against an attacker
	// who observed the authorization request.
	CodeMethodS256 CodeMethodType = "S256"
)

// PromptType controls re-consent behaviour at the authorization endpoint.
type PromptType string

const (
	// PromptConsent forces the consent step even when the user previously
	// approved the requested scopes.
	PromptConsent PromptType = "consent"

	// PromptLogin forces re-authentication of the user.
	PromptLogin PromptType = "login"
)
