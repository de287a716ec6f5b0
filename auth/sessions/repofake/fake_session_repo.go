package sessionrepofake

import (
	"sync"

	"github.com/mubarokah/id-server/auth/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

type FakeSessionRepo struct {
	sessions map[string]*sessions.PendingAuthorization
	lock     sync.RWMutex
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		sessions: make(map[string]*sessions.PendingAuthorization),
	}
}

func (r *FakeSessionRepo) Upsert(session *sessions.PendingAuthorization) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.sessions[session.ID] = session
	return nil
}

func (r *FakeSessionRepo) Get(sessionID string) (*sessions.PendingAuthorization, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	session, ok := r.sessions[sessionID]
	if !ok {
		return nil, sessions.ErrNotFound
	}
	return session, nil
}

func (r *FakeSessionRepo) Delete(sessionID string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.sessions, sessionID)
	return nil
}
