package consent

import (
	"time"

	"github.com/pkg/errors"

	"github.com/mubarokah/id-server/scopes"
)

var ErrNotFound = errors.New("consent record not found")

// Record remembers which scopes a user has granted a client, so a repeat
// authorization can skip the consent step unless prompt=consent forces it.
type Record struct {
	UserID    string
	ClientID  string
	Scopes    scopes.Set
	GrantedAt time.Time
}

// Covers reports whether the remembered grant includes every requested scope.
func (r *Record) Covers(requested scopes.Set) bool {
	return requested.SubsetOf(r.Scopes)
}

type Repo interface {
	Get(userID, clientID string) (*Record, error)
	Upsert(record *Record) error
	Delete(userID, clientID string) error
}
