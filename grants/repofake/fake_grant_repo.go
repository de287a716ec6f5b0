package grantrepofake

import (
	"sync"
	"time"

	"github.com/mubarokah/id-server/grants"
)

var _ grants.Repo = (*FakeGrantRepo)(nil)

type FakeGrantRepo struct {
	grants map[string]*grants.Grant
	lock   sync.Mutex
}

func NewFakeGrantRepo() *FakeGrantRepo {
	return &FakeGrantRepo{
		grants: make(map[string]*grants.Grant),
	}
}

func (r *FakeGrantRepo) Store(grant *grants.Grant) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	copied := *grant
	r.grants[grant.Code] = &copied
	return nil
}

// Consume performs the check-and-set under a single lock so concurrent
// exchanges of the same code resolve to exactly one winner.
func (r *FakeGrantRepo) Consume(code string, now time.Time) (*grants.Grant, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	grant, ok := r.grants[code]
	if !ok {
		return nil, grants.ErrNotFound
	}
	if grant.Consumed {
		return nil, grants.ErrConsumed
	}
	grant.Consumed = true
	if grant.Expired(now) {
		return nil, grants.ErrExpired
	}
	copied := *grant
	return &copied, nil
}
