package storage

import (
	"context"
	"errors"

	"vitrine/internal/domain"
)

// ErrNoSession is returned when no user session has been stored.
var ErrNoSession = errors.New("no stored session")

// LikedStore is the persisted set of liked listing ids.
// Absence of an id means "not liked".
type LikedStore interface {
	IsLiked(ctx context.Context, annonceID string) (bool, error)
	Add(ctx context.Context, annonceID string) error
	Remove(ctx context.Context, annonceID string) error
	All(ctx context.Context) (map[string]bool, error)
}

// SessionStore keeps the credential and profile of the signed-in user.
type SessionStore interface {
	SaveSession(ctx context.Context, token string, user *domain.User) error
	// Token returns "" without error when nobody is signed in.
	Token(ctx context.Context) (string, error)
	User(ctx context.Context) (*domain.User, error)
	ClearSession(ctx context.Context) error
}
