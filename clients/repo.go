package clients

import "github.com/pkg/errors"

// ErrNotFound is returned when no client exists for an ID. Callers must map
// it to the same external error as a bad secret (invalid_client).
var ErrNotFound = errors.New("client not found")

// Repo is the read-only credential store contract. Client mutation happens
// in an out-of-scope admin process.
type Repo interface {
	Get(clientID string) (*Client, error)
}
