package gormstore

import (
	"strings"
	"time"

	"github.com/mubarokah/id-server/clients"
	"github.com/mubarokah/id-server/oauth2"
	"github.com/mubarokah/id-server/scopes"
)

// Scope sets and URI lists are persisted as space-separated strings and
// parsed back through the scopes boundary on read, so an unknown scope in
// the database surfaces as an error instead of leaking into the core.

type clientModel struct {
	ID                string `gorm:"primaryKey"`
	Name              string
	Type              string
	SecretHash        []byte
	RedirectURIs      string
	AllowedGrantTypes string
	AllowedScopes     string
	ApprovedScopes    string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (clientModel) TableName() string { return "oauth_clients" }

func (m *clientModel) toDomain() (*clients.Client, error) {
	allowed, err := scopes.Parse(m.AllowedScopes)
	if err != nil {
		return nil, err
	}
	approved, err := scopes.Parse(m.ApprovedScopes)
	if err != nil {
		return nil, err
	}

	var grantTypes []oauth2.GrantType
	for _, gt := range strings.Fields(m.AllowedGrantTypes) {
		grantTypes = append(grantTypes, oauth2.GrantType(gt))
	}

	return &clients.Client{
		ID:                m.ID,
		Name:              m.Name,
		Type:              clients.ClientType(m.Type),
		SecretHash:        m.SecretHash,
		RedirectURIs:      strings.Fields(m.RedirectURIs),
		AllowedGrantTypes: grantTypes,
		AllowedScopes:     allowed,
		ApprovedScopes:    approved,
	}, nil
}

type grantModel struct {
	Code                string `gorm:"primaryKey"`
	ClientID            string `gorm:"index"`
	UserID              string
	RedirectURI         string
	Scopes              string
	CodeChallenge       string
	CodeChallengeMethod string
	IssuedAt            time.Time
	ExpiresAt           time.Time
	Consumed            bool `gorm:"default:false"`
}

func (grantModel) TableName() string { return "oauth_grants" }

type userModel struct {
	ID             string `gorm:"primaryKey"`
	Name           string
	Email          string `gorm:"index"`
	Username       string
	ProfilePicture string
	Gender         string
	Bio            string
	PhoneNumber    string
	PlaceOfBirth   string
	DateOfBirth    string
	Address        string
}

func (userModel) TableName() string { return "users" }

type sessionModel struct {
	ID                  string `gorm:"primaryKey"`
	ClientID            string
	UserID              string
	RedirectURI         string
	Scopes              string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	CreatedAt           time.Time
}

func (sessionModel) TableName() string { return "oauth_pending_authorizations" }

type consentModel struct {
	UserID    string `gorm:"primaryKey"`
	ClientID  string `gorm:"primaryKey"`
	Scopes    string
	GrantedAt time.Time
}

func (consentModel) TableName() string { return "oauth_consents" }

type accessTokenModel struct {
	JTI       string `gorm:"primaryKey"`
	ClientID  string `gorm:"index"`
	UserID    string
	Scopes    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool `gorm:"default:false"`
}

func (accessTokenModel) TableName() string { return "oauth_access_tokens" }

type refreshTokenModel struct {
	Token    string `gorm:"primaryKey"`
	ClientID string `gorm:"index"`
	UserID   string
	Scopes   string
	IssuedAt time.Time
	Revoked  bool `gorm:"default:false"`
}

func (refreshTokenModel) TableName() string { return "oauth_refresh_tokens" }
