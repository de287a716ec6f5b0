package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mubarokah/id-server/auth/consent"
	"github.com/mubarokah/id-server/auth/sessions"
	"github.com/mubarokah/id-server/clients"
	"github.com/mubarokah/id-server/grants"
	"github.com/mubarokah/id-server/oauth2"
	"github.com/mubarokah/id-server/scopes"
	"github.com/mubarokah/id-server/token"
	"github.com/mubarokah/id-server/users"
)

const (
	defaultCodeTTL    = 10 * time.Minute
	defaultSessionTTL = 15 * time.Minute
)

// Repos holds all repository dependencies for the AuthorizationService.
type Repos struct {
	Clients  clients.Repo
	Grants   grants.Repo
	Users    users.Repo
	Sessions sessions.Repo
	Consents consent.Repo
}

// AuthorizationService implements the authorization and token endpoints:
// request validation, consent gating, code issuance and the three
// grant-type exchanges.
type AuthorizationService struct {
	repos         Repos
	tokenMinter   *token.Manager
	codeTTL       time.Duration
	sessionTTL    time.Duration
	defaultScopes scopes.Set
	nowTime       func() time.Time // injectable for testing
}

type AuthorizationServiceOption func(*AuthorizationService)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.nowTime = nowFunc
	}
}

// WithCodeTTL overrides the authorization code lifetime.
func WithCodeTTL(ttl time.Duration) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.codeTTL = ttl
	}
}

// WithDefaultScopes sets the scope set granted when a request omits scope.
func WithDefaultScopes(set scopes.Set) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.defaultScopes = set
	}
}

// NewAuthorizationService initializes a new AuthorizationService with its
// required dependencies.
func NewAuthorizationService(repos Repos, tokenMinter *token.Manager, options ...AuthorizationServiceOption) (*AuthorizationService, error) {
	if repos.Clients == nil {
		return nil, errors.New("[NewAuthorizationService] Clients repo is required")
	}
	if repos.Grants == nil {
		return nil, errors.New("[NewAuthorizationService] Grants repo is required")
	}
	if repos.Users == nil {
		return nil, errors.New("[NewAuthorizationService] Users repo is required")
	}
	if repos.Sessions == nil {
		return nil, errors.New("[NewAuthorizationService] Sessions repo is required")
	}
	if repos.Consents == nil {
		return nil, errors.New("[NewAuthorizationService] Consents repo is required")
	}
	if tokenMinter == nil {
		return nil, errors.New("[NewAuthorizationService] tokenMinter is required")
	}

	authService := &AuthorizationService{
		repos:         repos,
		tokenMinter:   tokenMinter,
		codeTTL:       defaultCodeTTL,
		sessionTTL:    defaultSessionTTL,
		defaultScopes: scopes.NewSet(scopes.ViewUser),
		nowTime:       time.Now,
	}

	for _, opt := range options {
		opt(authService)
	}

	return authService, nil
}

// AuthorizeResult is the outcome of a valid authorization request. Exactly
// one of Code or SessionID is set: Code when remembered consent let the
// request complete immediately, SessionID when a consent decision is still
// needed.
type AuthorizeResult struct {
	RedirectURI string
	State       string

	Code string

	SessionID string
	Scopes    scopes.Set // requested scopes, for the consent UI
}

// Authorize runs the /oauth/authorize algorithm for an already-authenticated
// user. Errors returned as *RedirectError are safe to deliver via the
// redirect URI; all other errors must be rendered directly.
func (as *AuthorizationService) Authorize(req *AuthorizeRequest, userID string) (*AuthorizeResult, error) {
	// Client and redirect URI first. Failures here render directly: the
	// redirect URI is not yet trusted.
	client, err := as.repos.Clients.Get(req.ClientID)
	if err != nil {
		return nil, oauth2.NewError(oauth2.ErrCodeInvalidRequest, "unknown client_id")
	}
	if oerr := req.validateClientBinding(client); oerr != nil {
		return nil, oerr
	}

	// From here the redirect URI is validated and errors go back to it.
	if oerr := req.validateShape(); oerr != nil {
		return nil, redirectErr(req.RedirectURI, req.State, oerr)
	}

	if client.IsPublic() && req.CodeChallenge == "" {
		return nil, redirectErr(req.RedirectURI, req.State,
			oauth2.NewError(oauth2.ErrCodeInvalidRequest, "PKCE is required for public clients"))
	}

	requested, err := as.requestedScopes(req.Scope)
	if err != nil {
		return nil, redirectErr(req.RedirectURI, req.State,
			oauth2.NewError(oauth2.ErrCodeInvalidScope, err.Error()))
	}
	if err := client.ValidateRequestedScopes(requested); err != nil {
		return nil, redirectErr(req.RedirectURI, req.State,
			oauth2.NewError(oauth2.ErrCodeInvalidScope, err.Error()))
	}

	// Remembered consent short-circuits the consent step unless the client
	// asked for a fresh decision.
	if req.Prompt != oauth2.PromptConsent {
		if record, err := as.repos.Consents.Get(userID, client.ID); err == nil && record.Covers(requested) {
			code, err := as.issueGrant(client.ID, userID, req.RedirectURI, requested, req.CodeChallenge, req.CodeChallengeMethod)
			if err != nil {
				return nil, errors.Wrap(err, "[Authorize] issueGrant")
			}
			return &AuthorizeResult{
				RedirectURI: req.RedirectURI,
				State:       req.State,
				Code:        code,
			}, nil
		}
	}

	session := &sessions.PendingAuthorization{
		ID:                  uuid.New().String(),
		ClientID:            client.ID,
		UserID:              userID,
		RedirectURI:         req.RedirectURI,
		Scopes:              requested,
		State:               req.State,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		CreatedAt:           as.nowTime(),
	}
	if err := as.repos.Sessions.Upsert(session); err != nil {
		return nil, errors.Wrap(err, "[Authorize] failed to create session")
	}

	return &AuthorizeResult{
		RedirectURI: req.RedirectURI,
		State:       req.State,
		SessionID:   session.ID,
		Scopes:      requested,
	}, nil
}

// Approve completes a pending authorization with user approval: consent is
// recorded and a single-use code is minted.
func (as *AuthorizationService) Approve(sessionID, userID string) (*AuthorizeResult, error) {
	session, err := as.takeSession(sessionID, userID)
	if err != nil {
		return nil, err
	}

	if err := as.repos.Consents.Upsert(&consent.Record{
		UserID:    userID,
		ClientID:  session.ClientID,
		Scopes:    session.Scopes,
		GrantedAt: as.nowTime(),
	}); err != nil {
		return nil, errors.Wrap(err, "[Approve] consent upsert")
	}

	code, err := as.issueGrant(session.ClientID, userID, session.RedirectURI, session.Scopes, session.CodeChallenge, session.CodeChallengeMethod)
	if err != nil {
		return nil, errors.Wrap(err, "[Approve] issueGrant")
	}

	return &AuthorizeResult{
		RedirectURI: session.RedirectURI,
		State:       session.State,
		Code:        code,
	}, nil
}

// Deny completes a pending authorization with user denial. The returned
// RedirectError carries access_denied back to the client.
func (as *AuthorizationService) Deny(sessionID, userID string) (*RedirectError, error) {
	session, err := as.takeSession(sessionID, userID)
	if err != nil {
		return nil, err
	}
	return redirectErr(session.RedirectURI, session.State,
		oauth2.NewError(oauth2.ErrCodeAccessDenied, "the user denied the authorization request")), nil
}

// Token runs the /oauth/token exchange, dispatching on grant_type.
func (as *AuthorizationService) Token(req *TokenRequest) (*oauth2.TokenResponse, error) {
	if !req.GrantType.Valid() {
		return nil, oauth2.NewError(oauth2.ErrCodeUnsupportedGrantType, "unsupported grant_type")
	}

	client, err := as.authenticateClient(req)
	if err != nil {
		return nil, err
	}
	if !client.AllowsGrantType(req.GrantType) {
		return nil, oauth2.NewError(oauth2.ErrCodeUnauthorizedClient, "client is not allowed this grant type")
	}

	switch req.GrantType {
	case oauth2.AuthorizationCodeGrant:
		return as.exchangeAuthorizationCode(client, req)
	case oauth2.RefreshTokenGrant:
		return as.exchangeRefreshToken(client, req)
	case oauth2.ClientCredentialsGrant:
		return as.exchangeClientCredentials(client, req)
	}
	return nil, oauth2.NewError(oauth2.ErrCodeUnsupportedGrantType, "unsupported grant_type")
}

// UserInfo resolves the user behind a validated token for the resource
// endpoints.
func (as *AuthorizationService) UserInfo(userID string) (*users.User, error) {
	user, err := as.repos.Users.GetByID(userID)
	if err != nil {
		return nil, errors.Wrap(err, "[UserInfo] users.GetByID")
	}
	return user, nil
}

// ValidateToken authenticates a bearer token for the resource gateway,
// mapping store-level failures onto the wire error taxonomy.
func (as *AuthorizationService) ValidateToken(rawToken string) (*token.Info, error) {
	info, err := as.tokenMinter.Validate(rawToken)
	switch {
	case err == nil:
		return info, nil
	case errors.Is(err, token.ErrExpired):
		return nil, oauth2.NewError(oauth2.ErrCodeTokenExpired, "the access token has expired")
	default:
		return nil, oauth2.NewError(oauth2.ErrCodeTokenInvalid, "the access token is invalid")
	}
}

// Revoke handles POST /oauth/revoke for an authenticated client. Revoking a
// token that is unknown or already dead is not an error (RFC 7009).
func (as *AuthorizationService) Revoke(req *TokenRequest, tokenValue, tokenTypeHint string) error {
	if _, err := as.authenticateClient(req); err != nil {
		return err
	}

	if tokenTypeHint == "refresh_token" {
		if err := as.tokenMinter.RevokeRefresh(tokenValue); err == nil {
			return nil
		}
		_ = as.tokenMinter.RevokeAccess(tokenValue)
		return nil
	}

	if err := as.tokenMinter.RevokeAccess(tokenValue); err == nil {
		return nil
	}
	_ = as.tokenMinter.RevokeRefresh(tokenValue)
	return nil
}

// Introspect handles POST /oauth/introspect for an authenticated client.
func (as *AuthorizationService) Introspect(req *TokenRequest, tokenValue string) (*token.Introspection, error) {
	if _, err := as.authenticateClient(req); err != nil {
		return nil, err
	}
	return as.tokenMinter.Introspect(tokenValue), nil
}

// ClientByID exposes the credential store to the resource gateway for the
// approval check.
func (as *AuthorizationService) ClientByID(clientID string) (*clients.Client, error) {
	return as.repos.Clients.Get(clientID)
}

func (as *AuthorizationService) exchangeAuthorizationCode(client *clients.Client, req *TokenRequest) (*oauth2.TokenResponse, error) {
	// Atomic check-and-set: with concurrent exchanges of one code, exactly
	// one caller gets the grant back.
	grant, err := as.repos.Grants.Consume(req.Code, as.nowTime())
	if err != nil {
		return nil, oauth2.NewError(oauth2.ErrCodeInvalidGrant, "the authorization code is invalid, expired or already used")
	}

	if grant.ClientID != client.ID {
		return nil, oauth2.NewError(oauth2.ErrCodeInvalidGrant, "the authorization code was issued to a different client")
	}
	if grant.RedirectURI != req.RedirectURI {
		return nil, oauth2.NewError(oauth2.ErrCodeInvalidGrant, "redirect_uri does not match the authorization request")
	}

	if grant.CodeChallenge != "" {
		if req.CodeVerifier == "" {
			return nil, oauth2.NewError(oauth2.ErrCodeInvalidGrant, "code_verifier is required")
		}
		if !verifyCodeChallenge(grant.CodeChallenge, req.CodeVerifier) {
			return nil, oauth2.NewError(oauth2.ErrCodeInvalidGrant, "code_verifier does not match code_challenge")
		}
	}

	withRefresh := client.AllowsGrantType(oauth2.RefreshTokenGrant)
	resp, err := as.tokenMinter.Issue(client.ID, grant.UserID, grant.Scopes, withRefresh)
	if err != nil {
		return nil, errors.Wrap(err, "[exchangeAuthorizationCode] tokenMinter.Issue")
	}
	return resp, nil
}

func (as *AuthorizationService) exchangeRefreshToken(client *clients.Client, req *TokenRequest) (*oauth2.TokenResponse, error) {
	if req.RefreshToken == "" {
		return nil, oauth2.NewError(oauth2.ErrCodeInvalidRequest, "refresh_token is required")
	}

	requested, err := as.parseScope(req.Scope)
	if err != nil {
		return nil, oauth2.NewError(oauth2.ErrCodeInvalidScope, err.Error())
	}

	resp, err := as.tokenMinter.Refresh(req.RefreshToken, client.ID, requested)
	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, token.ErrScopeNotSubset):
		return nil, oauth2.NewError(oauth2.ErrCodeInvalidScope, "requested scope exceeds the original grant")
	case errors.Is(err, token.ErrNotFound), errors.Is(err, token.ErrRevoked),
		errors.Is(err, token.ErrExpired), errors.Is(err, token.ErrClientMismatch):
		return nil, oauth2.NewError(oauth2.ErrCodeInvalidGrant, "the refresh token is invalid, expired or revoked")
	default:
		return nil, errors.Wrap(err, "[exchangeRefreshToken] tokenMinter.Refresh")
	}
}

func (as *AuthorizationService) exchangeClientCredentials(client *clients.Client, req *TokenRequest) (*oauth2.TokenResponse, error) {
	if client.IsPublic() {
		return nil, oauth2.NewError(oauth2.ErrCodeUnauthorizedClient, "public clients cannot use client_credentials")
	}

	granted := client.AllowedScopes
	if req.Scope != "" {
		requested, err := as.parseScope(req.Scope)
		if err != nil {
			return nil, oauth2.NewError(oauth2.ErrCodeInvalidScope, err.Error())
		}
		if err := client.ValidateRequestedScopes(requested); err != nil {
			return nil, oauth2.NewError(oauth2.ErrCodeInvalidScope, err.Error())
		}
		granted = requested
	}

	// No user, and never a refresh token: machine clients re-authenticate.
	resp, err := as.tokenMinter.Issue(client.ID, "", granted, false)
	if err != nil {
		return nil, errors.Wrap(err, "[exchangeClientCredentials] tokenMinter.Issue")
	}
	return resp, nil
}

// authenticateClient resolves and authenticates the client on a token
// endpoint request. Unknown client and wrong secret produce the identical
// invalid_client error; bcrypt comparison is constant-time, and the dummy
// comparison below keeps the unknown-client path on the same cost profile.
func (as *AuthorizationService) authenticateClient(req *TokenRequest) (*clients.Client, error) {
	invalidClient := oauth2.NewError(oauth2.ErrCodeInvalidClient, "client authentication failed")

	client, err := as.repos.Clients.Get(req.ClientID)
	if err != nil {
		var dummy clients.Client
		_ = dummy.VerifySecret(req.ClientSecret)
		return nil, invalidClient
	}

	if client.IsPublic() {
		// Public clients carry no secret; they authenticate the grant via
		// PKCE instead.
		return client, nil
	}
	if !client.VerifySecret(req.ClientSecret) {
		return nil, invalidClient
	}
	return client, nil
}

func (as *AuthorizationService) issueGrant(clientID, userID, redirectURI string, granted scopes.Set, codeChallenge string, codeMethod oauth2.CodeMethodType) (string, error) {
	code, err := grants.NewCode()
	if err != nil {
		return "", err
	}

	now := as.nowTime()
	if err := as.repos.Grants.Store(&grants.Grant{
		Code:                code,
		ClientID:            clientID,
		UserID:              userID,
		RedirectURI:         redirectURI,
		Scopes:              granted,
		CodeChallenge:       codeChallenge,
		CodeChallengeMethod: codeMethod,
		IssuedAt:            now,
		ExpiresAt:           now.Add(as.codeTTL),
	}); err != nil {
		return "", errors.Wrap(err, "grants.Store")
	}
	return code, nil
}

// takeSession fetches, validates and removes a pending authorization.
func (as *AuthorizationService) takeSession(sessionID, userID string) (*sessions.PendingAuthorization, error) {
	session, err := as.repos.Sessions.Get(sessionID)
	if err != nil {
		return nil, errors.Wrap(err, "[takeSession] sessions.Get")
	}
	if session.UserID != userID {
		return nil, ErrUserMismatch
	}
	if as.nowTime().Sub(session.CreatedAt) > as.sessionTTL {
		_ = as.repos.Sessions.Delete(sessionID)
		return nil, ErrSessionExpired
	}
	if err := as.repos.Sessions.Delete(sessionID); err != nil {
		return nil, errors.Wrap(err, "[takeSession] sessions.Delete")
	}
	return session, nil
}

func (as *AuthorizationService) requestedScopes(raw string) (scopes.Set, error) {
	if raw == "" {
		return as.defaultScopes, nil
	}
	return scopes.Parse(raw)
}

func (as *AuthorizationService) parseScope(raw string) (scopes.Set, error) {
	if raw == "" {
		return scopes.Set{}, nil
	}
	return scopes.Parse(raw)
}

// verifyCodeChallenge recomputes BASE64URL(SHA256(verifier)) and compares it
// byte-for-byte against the stored challenge.
func verifyCodeChallenge(storedChallenge, verifier string) bool {
	hash := sha256.Sum256([]byte(verifier))
	computed := base64.RawURLEncoding.EncodeToString(hash[:])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedChallenge)) == 1
}
