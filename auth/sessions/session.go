package sessions

import (
	"time"

	"github.com/pkg/errors"

	"github.com/mubarokah/id-server/oauth2"
	"github.com/mubarokah/id-server/scopes"
)

var ErrNotFound = errors.New("authorization session not found")

// PendingAuthorization holds the validated /oauth/authorize request between
// the authorize call and the consent decision. Short-lived; a session that
// outlives the configured window is rejected at decision time.
type PendingAuthorization struct {
	ID                  string
	ClientID            string
	UserID              string
	RedirectURI         string
	Scopes              scopes.Set
	State               string
	CodeChallenge       string
	CodeChallengeMethod oauth2.CodeMethodType
	CreatedAt           time.Time
}

type Repo interface {
	Upsert(session *PendingAuthorization) error
	Get(sessionID string) (*PendingAuthorization, error)
	Delete(sessionID string) error
}
