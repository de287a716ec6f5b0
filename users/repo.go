package users

import "github.com/pkg/errors"

var ErrNotFound = errors.New("user not found")

type Repo interface {
	GetByID(userID string) (*User, error)
}
