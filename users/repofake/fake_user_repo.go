package fakeuserrepo

import (
	"sync"

	"github.com/mubarokah/id-server/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	users map[string]*users.User
	lock  sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users: make(map[string]*users.User),
	}
}

func (r *FakeUserRepo) Upsert(user *users.User) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.users[user.ID] = user
}

func (r *FakeUserRepo) GetByID(userID string) (*users.User, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, users.ErrNotFound
	}
	return user, nil
}
