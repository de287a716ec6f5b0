package clients_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mubarokah/id-server/clients"
	"github.com/mubarokah/id-server/oauth2"
	"github.com/mubarokah/id-server/scopes"
)

func testClient(t *testing.T) *clients.Client {
	t.Helper()
	hash, err := clients.HashSecret("s3cret")
	require.NoError(t, err)
	return &clients.Client{
		ID:                "client-1",
		Type:              clients.ClientTypeConfidential,
		SecretHash:        hash,
		RedirectURIs:      []string{"https://app.example.com/callback"},
		AllowedGrantTypes: []oauth2.GrantType{oauth2.AuthorizationCodeGrant},
		AllowedScopes:     scopes.NewSet(scopes.ViewUser, scopes.DetailUser),
		ApprovedScopes:    scopes.NewSet(scopes.ViewUser),
	}
}

func TestClient_VerifySecret(t *testing.T) {
	c := testClient(t)
	require.True(t, c.VerifySecret("s3cret"))
	require.False(t, c.VerifySecret("wrong"))
	require.False(t, c.VerifySecret(""))
}

func TestClient_AllowsRedirectURI(t *testing.T) {
	c := testClient(t)

	require.True(t, c.AllowsRedirectURI("https://app.example.com/callback"))

	// Exact byte-for-byte matching, no normalisation.
	require.False(t, c.AllowsRedirectURI("https://app.example.com/callback/"))
	require.False(t, c.AllowsRedirectURI("https://app.example.com/Callback"))
	require.False(t, c.AllowsRedirectURI("http://app.example.com/callback"))
	require.False(t, c.AllowsRedirectURI(""))
}

func TestClient_ScopeGates(t *testing.T) {
	c := testClient(t)

	// detail-user is allowed (requestable) but not approved: the two gates
	// are independent.
	require.True(t, c.AllowsScope(scopes.DetailUser))
	require.False(t, c.ApprovesScope(scopes.DetailUser))

	require.True(t, c.AllowsScope(scopes.ViewUser))
	require.True(t, c.ApprovesScope(scopes.ViewUser))
}

func TestClient_ValidateRequestedScopes(t *testing.T) {
	c := testClient(t)

	require.NoError(t, c.ValidateRequestedScopes(scopes.NewSet(scopes.ViewUser)))
	require.NoError(t, c.ValidateRequestedScopes(scopes.NewSet(scopes.ViewUser, scopes.DetailUser)))

	c.AllowedScopes = scopes.NewSet(scopes.ViewUser)
	err := c.ValidateRequestedScopes(scopes.NewSet(scopes.DetailUser))
	require.ErrorIs(t, err, clients.ErrInvalidScope)
}
