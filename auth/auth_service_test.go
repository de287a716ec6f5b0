package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mubarokah/id-server/auth"
	consentrepofake "github.com/mubarokah/id-server/auth/consent/repofake"
	sessionrepofake "github.com/mubarokah/id-server/auth/sessions/repofake"
	"github.com/mubarokah/id-server/clients"
	fakeclientrepo "github.com/mubarokah/id-server/clients/fakerepo"
	grantrepofake "github.com/mubarokah/id-server/grants/repofake"
	"github.com/mubarokah/id-server/oauth2"
	"github.com/mubarokah/id-server/scopes"
	"github.com/mubarokah/id-server/token"
	tokenrepofake "github.com/mubarokah/id-server/token/repofake"
	"github.com/mubarokah/id-server/users"
	fakeuserrepo "github.com/mubarokah/id-server/users/repofake"
)

const (
	secretStr        = "signing-secret-1234"
	issuer           = "https://id.mubarokah.test"
	audience         = "mubarokah-api"
	testClientID     = "client-1"
	testClientSecret = "client-secret-1"
	testUserID       = "user-1"
	testRedirectURI  = "https://app.example.com/callback"
	testState        = "random-state-value"

	// RFC 7636 appendix B test vector.
	testCodeChallenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
	testCodeVerifier  = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
)

type testFixture struct {
	clientRepo *fakeclientrepo.FakeClientRepo
	userRepo   *fakeuserrepo.FakeUserRepo
	service    *auth.AuthorizationService
}

func setupTestFixture(t *testing.T, opts ...auth.AuthorizationServiceOption) *testFixture {
	t.Helper()

	clientRepo := fakeclientrepo.NewFakeClientRepo()
	userRepo := fakeuserrepo.NewFakeUserRepo()

	userRepo.Upsert(&users.User{
		ID:       testUserID,
		Name:     "John Doe",
		Email:    "john.doe@example.com",
		Username: "johndoe",
	})

	secretHash, err := clients.HashSecret(testClientSecret)
	require.NoError(t, err)
	clientRepo.Upsert(&clients.Client{
		ID:           testClientID,
		Name:         "Test App",
		Type:         clients.ClientTypeConfidential,
		SecretHash:   secretHash,
		RedirectURIs: []string{testRedirectURI},
		AllowedGrantTypes: []oauth2.GrantType{
			oauth2.AuthorizationCodeGrant,
			oauth2.RefreshTokenGrant,
			oauth2.ClientCredentialsGrant,
		},
		AllowedScopes:  scopes.NewSet(scopes.ViewUser, scopes.DetailUser),
		ApprovedScopes: scopes.NewSet(scopes.DetailUser),
	})

	minter := token.New(
		tokenrepofake.NewFakeAccessTokenRepo(),
		tokenrepofake.NewFakeRefreshTokenRepo(),
		token.NewHMACSigner(secretStr),
		token.WithIssuer(issuer),
		token.WithAudience(audience),
	)

	service, err := auth.NewAuthorizationService(auth.Repos{
		Clients:  clientRepo,
		Grants:   grantrepofake.NewFakeGrantRepo(),
		Users:    userRepo,
		Sessions: sessionrepofake.NewFakeSessionRepo(),
		Consents: consentrepofake.NewFakeConsentRepo(),
	}, minter, opts...)
	require.NoError(t, err)

	return &testFixture{
		clientRepo: clientRepo,
		userRepo:   userRepo,
		service:    service,
	}
}

func authorizeRequest() *auth.AuthorizeRequest {
	return &auth.AuthorizeRequest{
		ResponseType:        oauth2.CodeResponseType,
		ClientID:            testClientID,
		RedirectURI:         testRedirectURI,
		Scope:               "view-user",
		State:               testState,
		CodeChallenge:       testCodeChallenge,
		CodeChallengeMethod: oauth2.CodeMethodS256,
	}
}

// approveAndGetCode runs authorize plus the consent decision and returns the
// issued code.
func approveAndGetCode(t *testing.T, f *testFixture, req *auth.AuthorizeRequest) string {
	t.Helper()

	result, err := f.service.Authorize(req, testUserID)
	require.NoError(t, err)
	require.NotEmpty(t, result.SessionID)
	require.Empty(t, result.Code)

	approved, err := f.service.Approve(result.SessionID, testUserID)
	require.NoError(t, err)
	require.NotEmpty(t, approved.Code)
	require.Equal(t, testState, approved.State)
	return approved.Code
}

func TestAuthorize_Validation(t *testing.T) {
	t.Run("unknown client renders directly", func(t *testing.T) {
		f := setupTestFixture(t)
		req := authorizeRequest()
		req.ClientID = "nope"

		_, err := f.service.Authorize(req, testUserID)
		require.Error(t, err)
		require.IsType(t, &oauth2.Error{}, err)
		require.Equal(t, oauth2.ErrCodeInvalidRequest, err.(*oauth2.Error).Code)
	})

	t.Run("unregistered redirect URI renders directly", func(t *testing.T) {
		f := setupTestFixture(t)
		req := authorizeRequest()
		req.RedirectURI = "https://evil.example.com/callback"

		_, err := f.service.Authorize(req, testUserID)
		require.Error(t, err)
		require.IsType(t, &oauth2.Error{}, err)
	})

	t.Run("trailing slash is a mismatch", func(t *testing.T) {
		f := setupTestFixture(t)
		req := authorizeRequest()
		req.RedirectURI = testRedirectURI + "/"

		_, err := f.service.Authorize(req, testUserID)
		require.Error(t, err)
		require.IsType(t, &oauth2.Error{}, err)
	})

	t.Run("bad response type redirects", func(t *testing.T) {
		f := setupTestFixture(t)
		req := authorizeRequest()
		req.ResponseType = "token"

		_, err := f.service.Authorize(req, testUserID)
		var redirect *auth.RedirectError
		require.ErrorAs(t, err, &redirect)
		require.Equal(t, oauth2.ErrCodeUnsupportedResponseType, redirect.Err.Code)
		require.Equal(t, testState, redirect.State)
	})

	t.Run("plain PKCE method is rejected", func(t *testing.T) {
		f := setupTestFixture(t)
		req := authorizeRequest()
		req.CodeChallengeMethod = "plain"

		_, err := f.service.Authorize(req, testUserID)
		var redirect *auth.RedirectError
		require.ErrorAs(t, err, &redirect)
		require.Equal(t, oauth2.ErrCodeInvalidRequest, redirect.Err.Code)
	})

	t.Run("unknown scope redirects with invalid_scope", func(t *testing.T) {
		f := setupTestFixture(t)
		req := authorizeRequest()
		req.Scope = "view-user admin"

		_, err := f.service.Authorize(req, testUserID)
		var redirect *auth.RedirectError
		require.ErrorAs(t, err, &redirect)
		require.Equal(t, oauth2.ErrCodeInvalidScope, redirect.Err.Code)
	})

	t.Run("scope outside the client allow-list redirects with invalid_scope", func(t *testing.T) {
		f := setupTestFixture(t)
		secretHash, err := clients.HashSecret("other-secret")
		require.NoError(t, err)
		f.clientRepo.Upsert(&clients.Client{
			ID:                "narrow-client",
			Type:              clients.ClientTypeConfidential,
			SecretHash:        secretHash,
			RedirectURIs:      []string{testRedirectURI},
			AllowedGrantTypes: []oauth2.GrantType{oauth2.AuthorizationCodeGrant},
			AllowedScopes:     scopes.NewSet(scopes.ViewUser),
		})

		req := authorizeRequest()
		req.ClientID = "narrow-client"
		req.Scope = "view-user detail-user"

		_, authErr := f.service.Authorize(req, testUserID)
		var redirect *auth.RedirectError
		require.ErrorAs(t, authErr, &redirect)
		require.Equal(t, oauth2.ErrCodeInvalidScope, redirect.Err.Code)
	})

	t.Run("empty scope falls back to the default", func(t *testing.T) {
		f := setupTestFixture(t)
		req := authorizeRequest()
		req.Scope = ""

		result, err := f.service.Authorize(req, testUserID)
		require.NoError(t, err)
		require.True(t, result.Scopes.Has(scopes.ViewUser))
		require.False(t, result.Scopes.Has(scopes.DetailUser))
	})

	t.Run("public client without PKCE is rejected", func(t *testing.T) {
		f := setupTestFixture(t)
		f.clientRepo.Upsert(&clients.Client{
			ID:                "spa-client",
			Type:              clients.ClientTypePublic,
			RedirectURIs:      []string{testRedirectURI},
			AllowedGrantTypes: []oauth2.GrantType{oauth2.AuthorizationCodeGrant},
			AllowedScopes:     scopes.NewSet(scopes.ViewUser),
		})

		req := authorizeRequest()
		req.ClientID = "spa-client"
		req.CodeChallenge = ""
		req.CodeChallengeMethod = ""

		_, err := f.service.Authorize(req, testUserID)
		var redirect *auth.RedirectError
		require.ErrorAs(t, err, &redirect)
		require.Equal(t, oauth2.ErrCodeInvalidRequest, redirect.Err.Code)
	})
}

func TestAuthorize_Consent(t *testing.T) {
	t.Run("deny returns access_denied via redirect", func(t *testing.T) {
		f := setupTestFixture(t)
		result, err := f.service.Authorize(authorizeRequest(), testUserID)
		require.NoError(t, err)

		denial, err := f.service.Deny(result.SessionID, testUserID)
		require.NoError(t, err)
		require.Equal(t, oauth2.ErrCodeAccessDenied, denial.Err.Code)
		require.Equal(t, testState, denial.State)
		require.Equal(t, testRedirectURI, denial.RedirectURI)
	})

	t.Run("remembered consent skips the consent step", func(t *testing.T) {
		f := setupTestFixture(t)
		approveAndGetCode(t, f, authorizeRequest())

		result, err := f.service.Authorize(authorizeRequest(), testUserID)
		require.NoError(t, err)
		require.NotEmpty(t, result.Code)
		require.Empty(t, result.SessionID)
	})

	t.Run("prompt=consent forces a fresh decision", func(t *testing.T) {
		f := setupTestFixture(t)
		approveAndGetCode(t, f, authorizeRequest())

		req := authorizeRequest()
		req.Prompt = oauth2.PromptConsent
		result, err := f.service.Authorize(req, testUserID)
		require.NoError(t, err)
		require.Empty(t, result.Code)
		require.NotEmpty(t, result.SessionID)
	})

	t.Run("broader request needs consent again", func(t *testing.T) {
		f := setupTestFixture(t)
		approveAndGetCode(t, f, authorizeRequest())

		req := authorizeRequest()
		req.Scope = "view-user detail-user"
		result, err := f.service.Authorize(req, testUserID)
		require.NoError(t, err)
		require.Empty(t, result.Code)
		require.NotEmpty(t, result.SessionID)
	})

	t.Run("session cannot be approved by a different user", func(t *testing.T) {
		f := setupTestFixture(t)
		result, err := f.service.Authorize(authorizeRequest(), testUserID)
		require.NoError(t, err)

		_, err = f.service.Approve(result.SessionID, "someone-else")
		require.ErrorIs(t, err, auth.ErrUserMismatch)
	})
}

func tokenRequest(code string) *auth.TokenRequest {
	return &auth.TokenRequest{
		GrantType:    oauth2.AuthorizationCodeGrant,
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		Code:         code,
		RedirectURI:  testRedirectURI,
		CodeVerifier: testCodeVerifier,
	}
}

func TestToken_AuthorizationCode(t *testing.T) {
	t.Run("full exchange", func(t *testing.T) {
		f := setupTestFixture(t)
		code := approveAndGetCode(t, f, authorizeRequest())

		resp, err := f.service.Token(tokenRequest(code))
		require.NoError(t, err)
		require.NotEmpty(t, resp.AccessToken)
		require.NotEmpty(t, resp.RefreshToken)
		require.Equal(t, "Bearer", resp.TokenType)
		require.Equal(t, "view-user", resp.Scope)

		info, err := f.service.ValidateToken(resp.AccessToken)
		require.NoError(t, err)
		require.Equal(t, testUserID, info.UserID)
		require.Equal(t, testClientID, info.ClientID)
		require.True(t, info.Scopes.Has(scopes.ViewUser))
	})

	t.Run("code is single use", func(t *testing.T) {
		f := setupTestFixture(t)
		code := approveAndGetCode(t, f, authorizeRequest())

		_, err := f.service.Token(tokenRequest(code))
		require.NoError(t, err)

		_, err = f.service.Token(tokenRequest(code))
		require.Error(t, err)
		require.Equal(t, oauth2.ErrCodeInvalidGrant, oauth2.AsError(err).Code)
	})

	t.Run("wrong code verifier", func(t *testing.T) {
		f := setupTestFixture(t)
		code := approveAndGetCode(t, f, authorizeRequest())

		req := tokenRequest(code)
		req.CodeVerifier = "wrong-verifier-wrong-verifier-wrong-verifier"
		_, err := f.service.Token(req)
		require.Error(t, err)
		require.Equal(t, oauth2.ErrCodeInvalidGrant, oauth2.AsError(err).Code)
	})

	t.Run("missing code verifier", func(t *testing.T) {
		f := setupTestFixture(t)
		code := approveAndGetCode(t, f, authorizeRequest())

		req := tokenRequest(code)
		req.CodeVerifier = ""
		_, err := f.service.Token(req)
		require.Error(t, err)
		require.Equal(t, oauth2.ErrCodeInvalidGrant, oauth2.AsError(err).Code)
	})

	t.Run("redirect URI must match the authorization request", func(t *testing.T) {
		f := setupTestFixture(t)
		code := approveAndGetCode(t, f, authorizeRequest())

		req := tokenRequest(code)
		req.RedirectURI = testRedirectURI + "/"
		_, err := f.service.Token(req)
		require.Error(t, err)
		require.Equal(t, oauth2.ErrCodeInvalidGrant, oauth2.AsError(err).Code)
	})

	t.Run("expired code", func(t *testing.T) {
		now := time.Now()
		f := setupTestFixture(t, auth.WithNowTime(func() time.Time { return now }))
		code := approveAndGetCode(t, f, authorizeRequest())

		now = now.Add(11 * time.Minute)
		_, err := f.service.Token(tokenRequest(code))
		require.Error(t, err)
		require.Equal(t, oauth2.ErrCodeInvalidGrant, oauth2.AsError(err).Code)
	})

	t.Run("unsupported grant type", func(t *testing.T) {
		f := setupTestFixture(t)
		req := tokenRequest("whatever")
		req.GrantType = "password"
		_, err := f.service.Token(req)
		require.Equal(t, oauth2.ErrCodeUnsupportedGrantType, oauth2.AsError(err).Code)
	})
}

func TestToken_ClientAuthentication(t *testing.T) {
	t.Run("unknown client and wrong secret are indistinguishable", func(t *testing.T) {
		f := setupTestFixture(t)

		unknown := tokenRequest("code")
		unknown.ClientID = "ghost"
		_, err1 := f.service.Token(unknown)

		badSecret := tokenRequest("code")
		badSecret.ClientSecret = "wrong"
		_, err2 := f.service.Token(badSecret)

		require.Error(t, err1)
		require.Error(t, err2)
		require.Equal(t, oauth2.ErrCodeInvalidClient, oauth2.AsError(err1).Code)
		require.Equal(t, oauth2.ErrCodeInvalidClient, oauth2.AsError(err2).Code)
		require.Equal(t, err1.Error(), err2.Error())
	})

	t.Run("disallowed grant type yields unauthorized_client", func(t *testing.T) {
		f := setupTestFixture(t)
		secretHash, err := clients.HashSecret("code-only-secret")
		require.NoError(t, err)
		f.clientRepo.Upsert(&clients.Client{
			ID:                "code-only",
			Type:              clients.ClientTypeConfidential,
			SecretHash:        secretHash,
			RedirectURIs:      []string{testRedirectURI},
			AllowedGrantTypes: []oauth2.GrantType{oauth2.AuthorizationCodeGrant},
			AllowedScopes:     scopes.NewSet(scopes.ViewUser),
		})

		_, tokenErr := f.service.Token(&auth.TokenRequest{
			GrantType:    oauth2.ClientCredentialsGrant,
			ClientID:     "code-only",
			ClientSecret: "code-only-secret",
		})
		require.Equal(t, oauth2.ErrCodeUnauthorizedClient, oauth2.AsError(tokenErr).Code)
	})
}

func TestToken_RefreshToken(t *testing.T) {
	refresh := func(f *testFixture, refreshToken, scope string) (*oauth2.TokenResponse, error) {
		return f.service.Token(&auth.TokenRequest{
			GrantType:    oauth2.RefreshTokenGrant,
			ClientID:     testClientID,
			ClientSecret: testClientSecret,
			RefreshToken: refreshToken,
			Scope:        scope,
		})
	}

	issue := func(t *testing.T, f *testFixture, scope string) *oauth2.TokenResponse {
		t.Helper()
		req := authorizeRequest()
		req.Scope = scope
		req.Prompt = oauth2.PromptConsent
		code := approveAndGetCode(t, f, req)
		resp, err := f.service.Token(tokenRequest(code))
		require.NoError(t, err)
		return resp
	}

	t.Run("rotation revokes the presented token", func(t *testing.T) {
		f := setupTestFixture(t)
		first := issue(t, f, "view-user")

		second, err := refresh(f, first.RefreshToken, "")
		require.NoError(t, err)
		require.NotEqual(t, first.RefreshToken, second.RefreshToken)

		_, err = refresh(f, first.RefreshToken, "")
		require.Error(t, err)
		require.Equal(t, oauth2.ErrCodeInvalidGrant, oauth2.AsError(err).Code)
	})

	t.Run("scope can narrow but not widen", func(t *testing.T) {
		f := setupTestFixture(t)
		resp := issue(t, f, "view-user detail-user")

		narrowed, err := refresh(f, resp.RefreshToken, "view-user")
		require.NoError(t, err)
		require.Equal(t, "view-user", narrowed.Scope)

		// The rotated token still carries the original grant, so widening
		// back past it must fail even after narrowing.
		viewOnly := issue(t, f, "view-user")
		_, err = refresh(f, viewOnly.RefreshToken, "view-user detail-user")
		require.Error(t, err)
		require.Equal(t, oauth2.ErrCodeInvalidScope, oauth2.AsError(err).Code)
	})

	t.Run("token from another client is rejected", func(t *testing.T) {
		f := setupTestFixture(t)
		resp := issue(t, f, "view-user")

		secretHash, err := clients.HashSecret("other-secret")
		require.NoError(t, err)
		f.clientRepo.Upsert(&clients.Client{
			ID:                "other-client",
			Type:              clients.ClientTypeConfidential,
			SecretHash:        secretHash,
			RedirectURIs:      []string{testRedirectURI},
			AllowedGrantTypes: []oauth2.GrantType{oauth2.RefreshTokenGrant},
			AllowedScopes:     scopes.NewSet(scopes.ViewUser),
		})

		_, refreshErr := f.service.Token(&auth.TokenRequest{
			GrantType:    oauth2.RefreshTokenGrant,
			ClientID:     "other-client",
			ClientSecret: "other-secret",
			RefreshToken: resp.RefreshToken,
		})
		require.Error(t, refreshErr)
		require.Equal(t, oauth2.ErrCodeInvalidGrant, oauth2.AsError(refreshErr).Code)
	})
}

func TestToken_ClientCredentials(t *testing.T) {
	t.Run("no user and no refresh token", func(t *testing.T) {
		f := setupTestFixture(t)
		resp, err := f.service.Token(&auth.TokenRequest{
			GrantType:    oauth2.ClientCredentialsGrant,
			ClientID:     testClientID,
			ClientSecret: testClientSecret,
		})
		require.NoError(t, err)
		require.NotEmpty(t, resp.AccessToken)
		require.Empty(t, resp.RefreshToken)

		info, err := f.service.ValidateToken(resp.AccessToken)
		require.NoError(t, err)
		require.Empty(t, info.UserID)
		require.Equal(t, testClientID, info.ClientID)
	})

	t.Run("scope selects within the allow-list", func(t *testing.T) {
		f := setupTestFixture(t)
		resp, err := f.service.Token(&auth.TokenRequest{
			GrantType:    oauth2.ClientCredentialsGrant,
			ClientID:     testClientID,
			ClientSecret: testClientSecret,
			Scope:        "view-user",
		})
		require.NoError(t, err)
		require.Equal(t, "view-user", resp.Scope)
	})

	t.Run("public client is rejected", func(t *testing.T) {
		f := setupTestFixture(t)
		f.clientRepo.Upsert(&clients.Client{
			ID:                "spa-client",
			Type:              clients.ClientTypePublic,
			RedirectURIs:      []string{testRedirectURI},
			AllowedGrantTypes: []oauth2.GrantType{oauth2.ClientCredentialsGrant},
			AllowedScopes:     scopes.NewSet(scopes.ViewUser),
		})

		_, err := f.service.Token(&auth.TokenRequest{
			GrantType: oauth2.ClientCredentialsGrant,
			ClientID:  "spa-client",
		})
		require.Equal(t, oauth2.ErrCodeUnauthorizedClient, oauth2.AsError(err).Code)
	})
}

func TestRevokeAndIntrospect(t *testing.T) {
	f := setupTestFixture(t)
	code := approveAndGetCode(t, f, authorizeRequest())
	resp, err := f.service.Token(tokenRequest(code))
	require.NoError(t, err)

	clientAuth := &auth.TokenRequest{ClientID: testClientID, ClientSecret: testClientSecret}

	introspection, err := f.service.Introspect(clientAuth, resp.AccessToken)
	require.NoError(t, err)
	require.True(t, introspection.Active)
	require.Equal(t, testUserID, introspection.Sub)

	require.NoError(t, f.service.Revoke(clientAuth, resp.AccessToken, ""))

	_, err = f.service.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	require.Equal(t, oauth2.ErrCodeTokenInvalid, oauth2.AsError(err).Code)

	introspection, err = f.service.Introspect(clientAuth, resp.AccessToken)
	require.NoError(t, err)
	require.False(t, introspection.Active)

	// Revoking an already-dead token is still a success (RFC 7009).
	require.NoError(t, f.service.Revoke(clientAuth, resp.AccessToken, ""))
}
