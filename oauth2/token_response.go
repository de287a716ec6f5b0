package oauth2

// TokenResponse is the token endpoint success body as defined in RFC 6749 §5.1.
// Returned for all three supported grant types.
type TokenResponse struct {
	// AccessToken is the bearer credential for the resource endpoints.
	// Usage: "Authorization: Bearer <access_token>"
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in"`

	// RefreshToken is the opaque long-lived credential paired with the
	// access token. Absent for the client_credentials grant.
	RefreshToken string `json:"refresh_token,omitempty"`

	// Scope is the space-separated set of scopes actually granted. May be
	// narrower than requested.
	Scope string `json:"scope"`
}
