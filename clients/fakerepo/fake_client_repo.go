package fakeclientrepo

import (
	"sync"

	"github.com/mubarokah/id-server/clients"
)

var _ clients.Repo = (*FakeClientRepo)(nil)

type FakeClientRepo struct {
	clients map[string]*clients.Client
	lock    sync.RWMutex
}

func NewFakeClientRepo() *FakeClientRepo {
	return &FakeClientRepo{
		clients: make(map[string]*clients.Client),
	}
}

// Upsert seeds a client record. Test helper; production registration is out
// of scope.
func (r *FakeClientRepo) Upsert(client *clients.Client) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.clients[client.ID] = client
}

func (r *FakeClientRepo) Get(clientID string) (*clients.Client, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	client, ok := r.clients[clientID]
	if !ok {
		return nil, clients.ErrNotFound
	}
	return client, nil
}
