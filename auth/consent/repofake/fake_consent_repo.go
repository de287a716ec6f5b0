package consentrepofake

import (
	"sync"

	"github.com/mubarokah/id-server/auth/consent"
)

var _ consent.Repo = (*FakeConsentRepo)(nil)

type FakeConsentRepo struct {
	records map[string]*consent.Record
	lock    sync.RWMutex
}

func NewFakeConsentRepo() *FakeConsentRepo {
	return &FakeConsentRepo{
		records: make(map[string]*consent.Record),
	}
}

func key(userID, clientID string) string {
	return userID + "\x00" + clientID
}

func (r *FakeConsentRepo) Get(userID, clientID string) (*consent.Record, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	record, ok := r.records[key(userID, clientID)]
	if !ok {
		return nil, consent.ErrNotFound
	}
	return record, nil
}

func (r *FakeConsentRepo) Upsert(record *consent.Record) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.records[key(record.UserID, record.ClientID)] = record
	return nil
}

func (r *FakeConsentRepo) Delete(userID, clientID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.records, key(userID, clientID))
	return nil
}
