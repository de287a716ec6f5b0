package token_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mubarokah/id-server/scopes"
	"github.com/mubarokah/id-server/token"
	tokenrepofake "github.com/mubarokah/id-server/token/repofake"
)

const signingSecret = "test-signing-secret"

func newManager(t *testing.T, opts ...token.ManagerOption) *token.Manager {
	t.Helper()
	return token.New(
		tokenrepofake.NewFakeAccessTokenRepo(),
		tokenrepofake.NewFakeRefreshTokenRepo(),
		token.NewHMACSigner(signingSecret),
		opts...,
	)
}

func TestManager_IssueAndValidate(t *testing.T) {
	m := newManager(t,
		token.WithIssuer("https://id.mubarokah.test"),
		token.WithAudience("mubarokah-api"),
	)

	granted := scopes.NewSet(scopes.ViewUser)
	resp, err := m.Issue("client-1", "user-1", granted, true)
	require.NoError(t, err)
	require.Equal(t, "Bearer", resp.TokenType)
	require.Equal(t, int((24 * time.Hour).Seconds()), resp.ExpiresIn)
	require.NotEmpty(t, resp.RefreshToken)

	info, err := m.Validate(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "client-1", info.ClientID)
	require.Equal(t, "user-1", info.UserID)
	require.True(t, info.Scopes.Has(scopes.ViewUser))
	require.NotEmpty(t, info.JTI)
}

func TestManager_Validate_Expiry(t *testing.T) {
	now := time.Now()
	m := newManager(t,
		token.WithTokenExpiry(time.Hour, 24*time.Hour),
		token.WithNowFunc(func() time.Time { return now }),
	)

	resp, err := m.Issue("client-1", "user-1", scopes.NewSet(scopes.ViewUser), false)
	require.NoError(t, err)

	t.Run("just inside the lifetime", func(t *testing.T) {
		now = now.Add(time.Hour - time.Second)
		_, err := m.Validate(resp.AccessToken)
		require.NoError(t, err)
	})

	t.Run("just past the lifetime", func(t *testing.T) {
		now = now.Add(2 * time.Second)
		_, err := m.Validate(resp.AccessToken)
		require.ErrorIs(t, err, token.ErrExpired)
	})
}

func TestManager_Validate_BadTokens(t *testing.T) {
	m := newManager(t)

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Validate("not-a-jwt")
		require.Error(t, err)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := newManager(t)
		resp, err := token.New(
			tokenrepofake.NewFakeAccessTokenRepo(),
			tokenrepofake.NewFakeRefreshTokenRepo(),
			token.NewHMACSigner("a-different-secret"),
		).Issue("client-1", "user-1", scopes.NewSet(scopes.ViewUser), false)
		require.NoError(t, err)

		_, err = other.Validate(resp.AccessToken)
		require.Error(t, err)
	})

	t.Run("revoked", func(t *testing.T) {
		resp, err := m.Issue("client-1", "user-1", scopes.NewSet(scopes.ViewUser), false)
		require.NoError(t, err)
		require.NoError(t, m.RevokeAccess(resp.AccessToken))

		_, err = m.Validate(resp.AccessToken)
		require.ErrorIs(t, err, token.ErrRevoked)
	})
}

func TestManager_Refresh(t *testing.T) {
	t.Run("rotation produces one winner under concurrency", func(t *testing.T) {
		m := newManager(t)
		resp, err := m.Issue("client-1", "user-1", scopes.NewSet(scopes.ViewUser), true)
		require.NoError(t, err)

		const attempts = 16
		var wg sync.WaitGroup
		errs := make([]error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = m.Refresh(resp.RefreshToken, "client-1", scopes.Set{})
			}(i)
		}
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
			}
		}
		require.Equal(t, 1, winners)
	})

	t.Run("rotation disabled keeps the token alive", func(t *testing.T) {
		m := newManager(t, token.WithRefreshRotation(false))
		resp, err := m.Issue("client-1", "user-1", scopes.NewSet(scopes.ViewUser), true)
		require.NoError(t, err)

		first, err := m.Refresh(resp.RefreshToken, "client-1", scopes.Set{})
		require.NoError(t, err)
		require.Equal(t, resp.RefreshToken, first.RefreshToken)

		_, err = m.Refresh(resp.RefreshToken, "client-1", scopes.Set{})
		require.NoError(t, err)
	})

	t.Run("expired refresh token", func(t *testing.T) {
		now := time.Now()
		m := newManager(t,
			token.WithTokenExpiry(time.Hour, 24*time.Hour),
			token.WithNowFunc(func() time.Time { return now }),
		)
		resp, err := m.Issue("client-1", "user-1", scopes.NewSet(scopes.ViewUser), true)
		require.NoError(t, err)

		now = now.Add(25 * time.Hour)
		_, err = m.Refresh(resp.RefreshToken, "client-1", scopes.Set{})
		require.ErrorIs(t, err, token.ErrExpired)
	})

	t.Run("client binding", func(t *testing.T) {
		m := newManager(t)
		resp, err := m.Issue("client-1", "user-1", scopes.NewSet(scopes.ViewUser), true)
		require.NoError(t, err)

		_, err = m.Refresh(resp.RefreshToken, "client-2", scopes.Set{})
		require.ErrorIs(t, err, token.ErrClientMismatch)
	})

	t.Run("scope wider than the grant", func(t *testing.T) {
		m := newManager(t)
		resp, err := m.Issue("client-1", "user-1", scopes.NewSet(scopes.ViewUser), true)
		require.NoError(t, err)

		_, err = m.Refresh(resp.RefreshToken, "client-1", scopes.NewSet(scopes.ViewUser, scopes.DetailUser))
		require.ErrorIs(t, err, token.ErrScopeNotSubset)
	})
}

func TestManager_Introspect(t *testing.T) {
	m := newManager(t)

	resp, err := m.Issue("client-1", "user-1", scopes.NewSet(scopes.ViewUser), false)
	require.NoError(t, err)

	introspection := m.Introspect(resp.AccessToken)
	require.True(t, introspection.Active)
	require.Equal(t, "user-1", introspection.Sub)
	require.Equal(t, "client-1", introspection.ClientID)
	require.Equal(t, "view-user", introspection.Scope)

	require.NoError(t, m.RevokeAccess(resp.AccessToken))
	require.False(t, m.Introspect(resp.AccessToken).Active)

	require.False(t, m.Introspect("garbage").Active)
}
