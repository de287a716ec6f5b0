package scopes

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Scope is a named permission unit. The set of scopes is closed: scope
// strings coming in over the wire are parsed once at the boundary and
// unknown tokens are rejected there rather than propagated.
type Scope string

const (
	// ViewUser grants read access to the basic user profile (/api/user).
	ViewUser Scope = "view-user"

	// DetailUser grants read access to the extended profile
	// (/api/user/details). Elevated: requires administrative approval for
	// the client in addition to user consent.
	DetailUser Scope = "detail-user"
)

// ErrUnknownScope is returned when a scope string is not in the registry.
var ErrUnknownScope = errors.New("unknown scope")

var registry = map[Scope]struct{}{
	ViewUser:   {},
	DetailUser: {},
}

// elevated scopes are gated behind per-client administrative approval,
// independent of user consent.
var elevated = map[Scope]struct{}{
	DetailUser: {},
}

// Known reports whether s is a registered scope.
func Known(s Scope) bool {
	_, ok := registry[s]
	return ok
}

// Elevated reports whether s additionally requires client approval.
func Elevated(s Scope) bool {
	_, ok := elevated[s]
	return ok
}

// Set is an immutable collection of validated scopes.
type Set map[Scope]struct{}

// Parse converts a space-separated scope string into a Set, rejecting
// unknown scope tokens. An empty string yields an empty Set.
func Parse(raw string) (Set, error) {
	set := Set{}
	for _, field := range strings.Fields(raw) {
		s := Scope(field)
		if !Known(s) {
			return nil, errors.Wrapf(ErrUnknownScope, "%q", field)
		}
		set[s] = struct{}{}
	}
	return set, nil
}

// MustParse is Parse for compile-time-known scope lists, mainly registration
// data and tests.
func MustParse(raw string) Set {
	set, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return set
}

// NewSet builds a Set from scopes already known to be valid.
func NewSet(ss ...Scope) Set {
	set := Set{}
	for _, s := range ss {
		set[s] = struct{}{}
	}
	return set
}

// Has reports whether the set contains s.
func (s Set) Has(scope Scope) bool {
	_, ok := s[scope]
	return ok
}

// SubsetOf reports whether every scope in s is also in other.
func (s Set) SubsetOf(other Set) bool {
	for scope := range s {
		if !other.Has(scope) {
			return false
		}
	}
	return true
}

// Intersect returns the scopes present in both sets.
func (s Set) Intersect(other Set) Set {
	out := Set{}
	for scope := range s {
		if other.Has(scope) {
			out[scope] = struct{}{}
		}
	}
	return out
}

// IsEmpty reports whether the set contains no scopes.
func (s Set) IsEmpty() bool {
	return len(s) == 0
}

// List returns the scopes in stable order.
func (s Set) List() []Scope {
	out := make([]Scope, 0, len(s))
	for scope := range s {
		out = append(out, scope)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String renders the set as the space-separated wire format.
func (s Set) String() string {
	list := s.List()
	parts := make([]string, 0, len(list))
	for _, scope := range list {
		parts = append(parts, string(scope))
	}
	return strings.Join(parts, " ")
}
