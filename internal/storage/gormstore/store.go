package gormstore

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/mubarokah/id-server/auth/consent"
	"github.com/mubarokah/id-server/auth/sessions"
	"github.com/mubarokah/id-server/clients"
	"github.com/mubarokah/id-server/grants"
	"github.com/mubarokah/id-server/oauth2"
	"github.com/mubarokah/id-server/scopes"
	"github.com/mubarokah/id-server/token"
	"github.com/mubarokah/id-server/users"
)

// Store bundles the Postgres-backed repositories.
type Store struct {
	Clients       *ClientStore
	Grants        *GrantStore
	Users         *UserStore
	Sessions      *SessionStore
	Consents      *ConsentStore
	AccessTokens  *AccessTokenStore
	RefreshTokens *RefreshTokenStore
}

func New(db *gorm.DB) *Store {
	return &Store{
		Clients:       &ClientStore{db: db},
		Grants:        &GrantStore{db: db},
		Users:         &UserStore{db: db},
		Sessions:      &SessionStore{db: db},
		Consents:      &ConsentStore{db: db},
		AccessTokens:  &AccessTokenStore{db: db},
		RefreshTokens: &RefreshTokenStore{db: db},
	}
}

type ClientStore struct{ db *gorm.DB }

var _ clients.Repo = (*ClientStore)(nil)

func (s *ClientStore) Get(clientID string) (*clients.Client, error) {
	var m clientModel
	if err := s.db.First(&m, "id = ?", clientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, clients.ErrNotFound
		}
		return nil, errors.Wrap(err, "[ClientStore.Get]")
	}
	return m.toDomain()
}

type GrantStore struct{ db *gorm.DB }

var _ grants.Repo = (*GrantStore)(nil)

func (s *GrantStore) Store(grant *grants.Grant) error {
	m := grantModel{
		Code:                grant.Code,
		ClientID:            grant.ClientID,
		UserID:              grant.UserID,
		RedirectURI:         grant.RedirectURI,
		Scopes:              grant.Scopes.String(),
		CodeChallenge:       grant.CodeChallenge,
		CodeChallengeMethod: string(grant.CodeChallengeMethod),
		IssuedAt:            grant.IssuedAt,
		ExpiresAt:           grant.ExpiresAt,
		Consumed:            grant.Consumed,
	}
	return errors.Wrap(s.db.Create(&m).Error, "[GrantStore.Store]")
}

// Consume flips the consumed flag with a conditional UPDATE, so two
// concurrent exchanges of one code resolve to exactly one winner at the
// database, with no broader locking.
func (s *GrantStore) Consume(code string, now time.Time) (*grants.Grant, error) {
	res := s.db.Model(&grantModel{}).
		Where("code = ? AND consumed = ?", code, false).
		Update("consumed", true)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "[GrantStore.Consume] update")
	}
	if res.RowsAffected == 0 {
		var m grantModel
		err := s.db.First(&m, "code = ?", code).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, grants.ErrNotFound
		}
		if err != nil {
			return nil, errors.Wrap(err, "[GrantStore.Consume] lookup")
		}
		return nil, grants.ErrConsumed
	}

	var m grantModel
	if err := s.db.First(&m, "code = ?", code).Error; err != nil {
		return nil, errors.Wrap(err, "[GrantStore.Consume] reload")
	}
	grant, err := m.toDomain()
	if err != nil {
		return nil, err
	}
	if grant.Expired(now) {
		return nil, grants.ErrExpired
	}
	return grant, nil
}

func (m *grantModel) toDomain() (*grants.Grant, error) {
	set, err := scopes.Parse(m.Scopes)
	if err != nil {
		return nil, err
	}
	return &grants.Grant{
		Code:                m.Code,
		ClientID:            m.ClientID,
		UserID:              m.UserID,
		RedirectURI:         m.RedirectURI,
		Scopes:              set,
		CodeChallenge:       m.CodeChallenge,
		CodeChallengeMethod: oauth2.CodeMethodType(m.CodeChallengeMethod),
		IssuedAt:            m.IssuedAt,
		ExpiresAt:           m.ExpiresAt,
		Consumed:            m.Consumed,
	}, nil
}

type UserStore struct{ db *gorm.DB }

var _ users.Repo = (*UserStore)(nil)

func (s *UserStore) GetByID(userID string) (*users.User, error) {
	var m userModel
	if err := s.db.First(&m, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, users.ErrNotFound
		}
		return nil, errors.Wrap(err, "[UserStore.GetByID]")
	}
	return &users.User{
		ID:             m.ID,
		Name:           m.Name,
		Email:          m.Email,
		Username:       m.Username,
		ProfilePicture: m.ProfilePicture,
		Gender:         m.Gender,
		Bio:            m.Bio,
		PhoneNumber:    m.PhoneNumber,
		PlaceOfBirth:   m.PlaceOfBirth,
		DateOfBirth:    m.DateOfBirth,
		Address:        m.Address,
	}, nil
}

type SessionStore struct{ db *gorm.DB }

var _ sessions.Repo = (*SessionStore)(nil)

func (s *SessionStore) Upsert(session *sessions.PendingAuthorization) error {
	m := sessionModel{
		ID:                  session.ID,
		ClientID:            session.ClientID,
		UserID:              session.UserID,
		RedirectURI:         session.RedirectURI,
		Scopes:              session.Scopes.String(),
		State:               session.State,
		CodeChallenge:       session.CodeChallenge,
		CodeChallengeMethod: string(session.CodeChallengeMethod),
		CreatedAt:           session.CreatedAt,
	}
	return errors.Wrap(s.db.Save(&m).Error, "[SessionStore.Upsert]")
}

func (s *SessionStore) Get(sessionID string) (*sessions.PendingAuthorization, error) {
	var m sessionModel
	if err := s.db.First(&m, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sessions.ErrNotFound
		}
		return nil, errors.Wrap(err, "[SessionStore.Get]")
	}
	set, err := scopes.Parse(m.Scopes)
	if err != nil {
		return nil, err
	}
	return &sessions.PendingAuthorization{
		ID:                  m.ID,
		ClientID:            m.ClientID,
		UserID:              m.UserID,
		RedirectURI:         m.RedirectURI,
		Scopes:              set,
		State:               m.State,
		CodeChallenge:       m.CodeChallenge,
		CodeChallengeMethod: oauth2.CodeMethodType(m.CodeChallengeMethod),
		CreatedAt:           m.CreatedAt,
	}, nil
}

func (s *SessionStore) Delete(sessionID string) error {
	return errors.Wrap(s.db.Delete(&sessionModel{}, "id = ?", sessionID).Error, "[SessionStore.Delete]")
}

type ConsentStore struct{ db *gorm.DB }

var _ consent.Repo = (*ConsentStore)(nil)

func (s *ConsentStore) Get(userID, clientID string) (*consent.Record, error) {
	var m consentModel
	if err := s.db.First(&m, "user_id = ? AND client_id = ?", userID, clientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, consent.ErrNotFound
		}
		return nil, errors.Wrap(err, "[ConsentStore.Get]")
	}
	set, err := scopes.Parse(m.Scopes)
	if err != nil {
		return nil, err
	}
	return &consent.Record{
		UserID:    m.UserID,
		ClientID:  m.ClientID,
		Scopes:    set,
		GrantedAt: m.GrantedAt,
	}, nil
}

func (s *ConsentStore) Upsert(record *consent.Record) error {
	m := consentModel{
		UserID:    record.UserID,
		ClientID:  record.ClientID,
		Scopes:    record.Scopes.String(),
		GrantedAt: record.GrantedAt,
	}
	return errors.Wrap(s.db.Save(&m).Error, "[ConsentStore.Upsert]")
}

func (s *ConsentStore) Delete(userID, clientID string) error {
	return errors.Wrap(
		s.db.Delete(&consentModel{}, "user_id = ? AND client_id = ?", userID, clientID).Error,
		"[ConsentStore.Delete]")
}

type AccessTokenStore struct{ db *gorm.DB }

var _ token.AccessTokenRepo = (*AccessTokenStore)(nil)

func (s *AccessTokenStore) Store(record *token.AccessRecord) error {
	m := accessTokenModel{
		JTI:       record.JTI,
		ClientID:  record.ClientID,
		UserID:    record.UserID,
		Scopes:    record.Scopes.String(),
		IssuedAt:  record.IssuedAt,
		ExpiresAt: record.ExpiresAt,
		Revoked:   record.Revoked,
	}
	return errors.Wrap(s.db.Create(&m).Error, "[AccessTokenStore.Store]")
}

func (s *AccessTokenStore) Get(jti string) (*token.AccessRecord, error) {
	var m accessTokenModel
	if err := s.db.First(&m, "jti = ?", jti).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, token.ErrNotFound
		}
		return nil, errors.Wrap(err, "[AccessTokenStore.Get]")
	}
	set, err := scopes.Parse(m.Scopes)
	if err != nil {
		return nil, err
	}
	return &token.AccessRecord{
		JTI:       m.JTI,
		ClientID:  m.ClientID,
		UserID:    m.UserID,
		Scopes:    set,
		IssuedAt:  m.IssuedAt,
		ExpiresAt: m.ExpiresAt,
		Revoked:   m.Revoked,
	}, nil
}

func (s *AccessTokenStore) Revoke(jti string) error {
	res := s.db.Model(&accessTokenModel{}).Where("jti = ?", jti).Update("revoked", true)
	if res.Error != nil {
		return errors.Wrap(res.Error, "[AccessTokenStore.Revoke]")
	}
	if res.RowsAffected == 0 {
		return token.ErrNotFound
	}
	return nil
}

type RefreshTokenStore struct{ db *gorm.DB }

var _ token.RefreshTokenRepo = (*RefreshTokenStore)(nil)

func (s *RefreshTokenStore) Store(rt *token.RefreshToken) error {
	return errors.Wrap(s.db.Create(refreshModelFrom(rt)).Error, "[RefreshTokenStore.Store]")
}

func (s *RefreshTokenStore) Get(tokenValue string) (*token.RefreshToken, error) {
	var m refreshTokenModel
	if err := s.db.First(&m, "token = ?", tokenValue).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, token.ErrNotFound
		}
		return nil, errors.Wrap(err, "[RefreshTokenStore.Get]")
	}
	set, err := scopes.Parse(m.Scopes)
	if err != nil {
		return nil, err
	}
	return &token.RefreshToken{
		Token:    m.Token,
		ClientID: m.ClientID,
		UserID:   m.UserID,
		Scopes:   set,
		IssuedAt: m.IssuedAt,
		Revoked:  m.Revoked,
	}, nil
}

func (s *RefreshTokenStore) Revoke(tokenValue string) error {
	res := s.db.Model(&refreshTokenModel{}).Where("token = ?", tokenValue).Update("revoked", true)
	if res.Error != nil {
		return errors.Wrap(res.Error, "[RefreshTokenStore.Revoke]")
	}
	if res.RowsAffected == 0 {
		return token.ErrNotFound
	}
	return nil
}

// Replace rotates a refresh token with the same conditional-UPDATE
// discipline as grant consumption: the old token is revoked and the
// replacement inserted in one transaction, and a token that was already
// rotated or revoked loses the race.
func (s *RefreshTokenStore) Replace(oldToken string, replacement *token.RefreshToken) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&refreshTokenModel{}).
			Where("token = ? AND revoked = ?", oldToken, false).
			Update("revoked", true)
		if res.Error != nil {
			return errors.Wrap(res.Error, "[RefreshTokenStore.Replace] revoke")
		}
		if res.RowsAffected == 0 {
			var m refreshTokenModel
			err := tx.First(&m, "token = ?", oldToken).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return token.ErrNotFound
			}
			if err != nil {
				return errors.Wrap(err, "[RefreshTokenStore.Replace] lookup")
			}
			return token.ErrRevoked
		}
		return errors.Wrap(tx.Create(refreshModelFrom(replacement)).Error, "[RefreshTokenStore.Replace] insert")
	})
}

func refreshModelFrom(rt *token.RefreshToken) *refreshTokenModel {
	return &refreshTokenModel{
		Token:    rt.Token,
		ClientID: rt.ClientID,
		UserID:   rt.UserID,
		Scopes:   strings.TrimSpace(rt.Scopes.String()),
		IssuedAt: rt.IssuedAt,
		Revoked:  rt.Revoked,
	}
}
