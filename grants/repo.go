package grants

import (
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned for a code that was never issued or has been
	// purged.
	ErrNotFound = errors.New("grant not found")

	// ErrConsumed is returned by Consume when the grant was already
	// exchanged. Under concurrent exchange attempts with the same code,
	// exactly one caller wins; all others receive this error.
	ErrConsumed = errors.New("grant already consumed")

	// ErrExpired is returned by Consume when the grant's window has passed.
	ErrExpired = errors.New("grant expired")
)

// Repo stores authorization grants. Consume must be an atomic check-and-set
// on the consumed flag, scoped to the single grant: implementations back it
// with a mutex (in memory) or a conditional UPDATE (SQL).
type Repo interface {
	Store(grant *Grant) error

	// Consume marks the grant consumed and returns it. It fails with
	// ErrNotFound, ErrConsumed or ErrExpired without changing state. An
	// expired grant is still marked consumed so a later replay cannot
	// distinguish expiry from prior use.
	Consume(code string, now time.Time) (*Grant, error)
}
