package tokenrepofake

import (
	"sync"

	"github.com/mubarokah/id-server/token"
)

var _ token.AccessTokenRepo = (*FakeAccessTokenRepo)(nil)

type FakeAccessTokenRepo struct {
	records map[string]*token.AccessRecord
	lock    sync.RWMutex
}

func NewFakeAccessTokenRepo() *FakeAccessTokenRepo {
	return &FakeAccessTokenRepo{
		records: make(map[string]*token.AccessRecord),
	}
}

func (r *FakeAccessTokenRepo) Store(record *token.AccessRecord) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	copied := *record
	r.records[record.JTI] = &copied
	return nil
}

func (r *FakeAccessTokenRepo) Get(jti string) (*token.AccessRecord, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	record, ok := r.records[jti]
	if !ok {
		return nil, token.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *FakeAccessTokenRepo) Revoke(jti string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	record, ok := r.records[jti]
	if !ok {
		return token.ErrNotFound
	}
	record.Revoked = true
	return nil
}

var _ token.RefreshTokenRepo = (*FakeRefreshTokenRepo)(nil)

type FakeRefreshTokenRepo struct {
	tokens map[string]*token.RefreshToken
	lock   sync.Mutex
}

func NewFakeRefreshTokenRepo() *FakeRefreshTokenRepo {
	return &FakeRefreshTokenRepo{
		tokens: make(map[string]*token.RefreshToken),
	}
}

func (r *FakeRefreshTokenRepo) Store(rt *token.RefreshToken) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	copied := *rt
	r.tokens[rt.Token] = &copied
	return nil
}

func (r *FakeRefreshTokenRepo) Get(tokenValue string) (*token.RefreshToken, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	rt, ok := r.tokens[tokenValue]
	if !ok {
		return nil, token.ErrNotFound
	}
	copied := *rt
	return &copied, nil
}

func (r *FakeRefreshTokenRepo) Revoke(tokenValue string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	rt, ok := r.tokens[tokenValue]
	if !ok {
		return token.ErrNotFound
	}
	rt.Revoked = true
	return nil
}

// Replace rotates under one lock: concurrent refresh attempts with the same
// token resolve to a single winner.
func (r *FakeRefreshTokenRepo) Replace(oldToken string, replacement *token.RefreshToken) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	old, ok := r.tokens[oldToken]
	if !ok {
		return token.ErrNotFound
	}
	if old.Revoked {
		return token.ErrRevoked
	}
	old.Revoked = true
	copied := *replacement
	r.tokens[replacement.Token] = &copied
	return nil
}
