package token

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/mubarokah/id-server/oauth2"
	"github.com/mubarokah/id-server/scopes"
)

const refreshTokenLength = 32 // 256 bits

var (
	ErrExpired        = errors.New("token expired")
	ErrClientMismatch = errors.New("token bound to a different client")
	ErrScopeNotSubset = errors.New("requested scope exceeds original grant")
)

// Info is the resolved identity and authorization carried by a validated
// access token, taken from the server-side record rather than the JWT claims.
type Info struct {
	JTI       string
	ClientID  string
	UserID    string // empty for client_credentials tokens
	Scopes    scopes.Set
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Introspection is the RFC 7662 response body.
type Introspection struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Sub       string `json:"sub,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Iat       int64  `json:"iat,omitempty"`
	JTI       string `json:"jti,omitempty"`
}

// Manager mints, validates and revokes access and refresh tokens. Access
// tokens are HS256 JWTs tracked server-side by jti; refresh tokens are
// opaque random values held only in the store.
type Manager struct {
	accessRepo         AccessTokenRepo
	refreshRepo        RefreshTokenRepo
	signer             Signer
	issuer             string
	audience           string
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	rotateRefresh      bool
	nowFunc            func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessTokenExpiry, refreshTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
		m.refreshTokenExpiry = refreshTokenExpiry
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func WithAudience(audience string) ManagerOption {
	return func(m *Manager) {
		m.audience = audience
	}
}

// WithRefreshRotation controls whether a successful refresh_token grant
// invalidates the presented token and issues a replacement. On by default.
func WithRefreshRotation(rotate bool) ManagerOption {
	return func(m *Manager) {
		m.rotateRefresh = rotate
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func New(accessRepo AccessTokenRepo, refreshRepo RefreshTokenRepo, signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		accessRepo:    accessRepo,
		refreshRepo:   refreshRepo,
		signer:        signer,
		rotateRefresh: true,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = 24 * time.Hour
	}
	if m.refreshTokenExpiry == 0 {
		m.refreshTokenExpiry = 30 * 24 * time.Hour
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// Issue mints a token response for the given client, user and granted
// scopes. userID is empty for the client_credentials grant, and withRefresh
// must be false in that case: machine clients re-authenticate instead of
// refreshing.
func (m *Manager) Issue(clientID, userID string, granted scopes.Set, withRefresh bool) (*oauth2.TokenResponse, error) {
	accessToken, err := m.mintAccessToken(clientID, userID, granted)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Issue] mintAccessToken")
	}

	resp := &oauth2.TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(m.accessTokenExpiry.Seconds()),
		Scope:       granted.String(),
	}

	if withRefresh {
		refreshToken, err := m.mintRefreshToken(clientID, userID, granted)
		if err != nil {
			return nil, errors.Wrap(err, "[Manager.Issue] mintRefreshToken")
		}
		resp.RefreshToken = refreshToken.Token
	}

	return resp, nil
}

// Refresh handles the refresh_token grant. The presented token must exist,
// be unrevoked, be within its lifetime and be bound to clientID. requested
// may narrow the scope set; empty means the original scopes. With rotation
// enabled the presented token is atomically replaced and the new value is
// returned in the response.
func (m *Manager) Refresh(refreshValue, clientID string, requested scopes.Set) (*oauth2.TokenResponse, error) {
	rt, err := m.refreshRepo.Get(refreshValue)
	if err != nil {
		return nil, err
	}
	if rt.Revoked {
		return nil, ErrRevoked
	}
	if rt.ClientID != clientID {
		return nil, ErrClientMismatch
	}
	if m.nowFunc().Sub(rt.IssuedAt) > m.refreshTokenExpiry {
		_ = m.refreshRepo.Revoke(refreshValue)
		return nil, ErrExpired
	}

	granted := rt.Scopes
	if !requested.IsEmpty() {
		if !requested.SubsetOf(rt.Scopes) {
			return nil, ErrScopeNotSubset
		}
		granted = requested
	}

	accessToken, err := m.mintAccessToken(rt.ClientID, rt.UserID, granted)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Refresh] mintAccessToken")
	}

	resp := &oauth2.TokenResponse{
		AccessToken:  accessToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(m.accessTokenExpiry.Seconds()),
		RefreshToken: refreshValue,
		Scope:        granted.String(),
	}

	if m.rotateRefresh {
		replacement, err := m.newRefreshToken(rt.ClientID, rt.UserID, rt.Scopes)
		if err != nil {
			return nil, errors.Wrap(err, "[Manager.Refresh] newRefreshToken")
		}
		// Same atomic consume-and-replace discipline as authorization
		// codes: concurrent refreshes with one token produce one winner.
		if err := m.refreshRepo.Replace(refreshValue, replacement); err != nil {
			return nil, err
		}
		resp.RefreshToken = replacement.Token
	}

	return resp, nil
}

// Validate authenticates a bearer token for the resource gateway. The JWT
// signature proves the token was minted here; the stored record is then the
// authority on expiry and revocation.
func (m *Manager) Validate(rawToken string) (*Info, error) {
	record, err := m.lookupRecord(rawToken)
	if err != nil {
		return nil, err
	}
	if record.Revoked {
		return nil, ErrRevoked
	}
	if m.nowFunc().After(record.ExpiresAt) {
		return nil, ErrExpired
	}

	return &Info{
		JTI:       record.JTI,
		ClientID:  record.ClientID,
		UserID:    record.UserID,
		Scopes:    record.Scopes,
		IssuedAt:  record.IssuedAt,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// RevokeAccess marks the access token's record revoked. The token must be a
// validly signed JWT; expiry and prior revocation are not errors here, per
// RFC 7009 revoking a dead token is a no-op.
func (m *Manager) RevokeAccess(rawToken string) error {
	record, err := m.lookupRecord(rawToken)
	if err != nil {
		return err
	}
	return m.accessRepo.Revoke(record.JTI)
}

// RevokeRefresh marks a refresh token revoked.
func (m *Manager) RevokeRefresh(tokenValue string) error {
	return m.refreshRepo.Revoke(tokenValue)
}

// Introspect reports token metadata. Any validation failure yields
// active=false rather than an error, so the endpoint never reveals why a
// token is dead.
func (m *Manager) Introspect(rawToken string) *Introspection {
	info, err := m.Validate(rawToken)
	if err != nil {
		return &Introspection{Active: false}
	}

	sub := info.UserID
	if sub == "" {
		sub = info.ClientID
	}

	return &Introspection{
		Active:    true,
		Scope:     info.Scopes.String(),
		ClientID:  info.ClientID,
		Sub:       sub,
		TokenType: "Bearer",
		Exp:       info.ExpiresAt.Unix(),
		Iat:       info.IssuedAt.Unix(),
		JTI:       info.JTI,
	}
}

func (m *Manager) mintAccessToken(clientID, userID string, granted scopes.Set) (string, error) {
	now := m.nowFunc()
	expiresAt := now.Add(m.accessTokenExpiry)
	jti := uuid.New().String()

	sub := userID
	if sub == "" {
		sub = clientID
	}

	claims := jwt.MapClaims{
		"iss":       m.issuer,
		"sub":       sub,
		"aud":       m.audience,
		"client_id": clientID,
		"scope":     granted.String(),
		"iat":       now.Unix(),
		"exp":       expiresAt.Unix(),
		"jti":       jti,
	}

	signedToken, err := m.signer.Sign(claims)
	if err != nil {
		return "", err
	}

	if err := m.accessRepo.Store(&AccessRecord{
		JTI:       jti,
		ClientID:  clientID,
		UserID:    userID,
		Scopes:    granted,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}); err != nil {
		return "", errors.Wrap(err, "accessRepo.Store")
	}

	return signedToken, nil
}

func (m *Manager) mintRefreshToken(clientID, userID string, granted scopes.Set) (*RefreshToken, error) {
	rt, err := m.newRefreshToken(clientID, userID, granted)
	if err != nil {
		return nil, err
	}
	if err := m.refreshRepo.Store(rt); err != nil {
		return nil, errors.Wrap(err, "refreshRepo.Store")
	}
	return rt, nil
}

func (m *Manager) newRefreshToken(clientID, userID string, granted scopes.Set) (*RefreshToken, error) {
	buf := make([]byte, refreshTokenLength)
	if _, err := rand.Read(buf); err != nil {
		return nil, errors.Wrap(err, "rand.Read")
	}
	return &RefreshToken{
		Token:    hex.EncodeToString(buf),
		ClientID: clientID,
		UserID:   userID,
		Scopes:   granted,
		IssuedAt: m.nowFunc(),
	}, nil
}

// lookupRecord verifies the JWT signature and resolves the stored record.
// Claim validation is disabled in the parser: the record carries the
// authoritative expiry so the boundary is checked in exactly one place.
func (m *Manager) lookupRecord(rawToken string) (*AccessRecord, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, ErrNotFound
	}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	parsed, err := parser.Parse(rawToken, m.signer.GetVerificationKey)
	if err != nil || !parsed.Valid {
		return nil, ErrNotFound
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrNotFound
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil, ErrNotFound
	}

	return m.accessRepo.Get(jti)
}
