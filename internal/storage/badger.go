package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"vitrine/internal/domain"
)

// Keys of the persisted client state.
const (
	likedKey    = "liked_annonces"
	tokenKey    = "userToken"
	userDataKey = "userData"
)

// BadgerRepository keeps the client's local state in BadgerDB.
type BadgerRepository struct {
	db  *badger.DB
	log logrus.FieldLogger
}

// NewBadgerRepository creates and initializes a new BadgerDB repository.
// It opens the database at the specified path.
func NewBadgerRepository(dbPath string, logger logrus.FieldLogger) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = &badgerLogger{logger.WithField("component", "badgerdb")}

	db, err := badger.Open(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to open BadgerDB")
		return nil, fmt.Errorf("failed to open badger db at %s: %w", dbPath, err)
	}
	logger.Info("BadgerDB opened successfully at path: ", dbPath)

	return &BadgerRepository{
		db:  db,
		log: logger.WithField("component", "repository"),
	}, nil
}

// Close closes the BadgerDB database connection.
func (r *BadgerRepository) Close() error {
	r.log.Info("Closing BadgerDB...")
	err := r.db.Close()
	if err != nil {
		r.log.WithError(err).Error("Error closing BadgerDB")
		return err
	}
	r.log.Info("BadgerDB closed.")
	return nil
}

// getJSON decodes the value under key into dest. It reports false when the
// key does not exist.
func (r *BadgerRepository) getJSON(key string, dest interface{}) (bool, error) {
	found := false
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dest)
		})
	})
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return found, nil
}

// LikedStore returns the liked set stored under "liked_annonces", prefixed
// with scope when one is given so several app instances can share the db.
func (r *BadgerRepository) LikedStore(scope string) *BadgerLikedStore {
	key := likedKey
	if scope != "" {
		key = scope + ":" + likedKey
	}
	return &BadgerLikedStore{
		repo: r,
		key:  []byte(key),
		log:  r.log.WithField("liked_key", key),
	}
}

// BadgerLikedStore implements LikedStore as one JSON object {id: true}.
type BadgerLikedStore struct {
	repo *BadgerRepository
	key  []byte
	log  logrus.FieldLogger
}

func (s *BadgerLikedStore) All(ctx context.Context) (map[string]bool, error) {
	liked := map[string]bool{}
	if _, err := s.repo.getJSON(string(s.key), &liked); err != nil {
		s.log.WithError(err).Error("Failed to load liked set")
		return nil, err
	}
	return liked, nil
}

func (s *BadgerLikedStore) IsLiked(ctx context.Context, annonceID string) (bool, error) {
	liked, err := s.All(ctx)
	if err != nil {
		return false, err
	}
	return liked[annonceID], nil
}

func (s *BadgerLikedStore) Add(ctx context.Context, annonceID string) error {
	return s.mutate(annonceID, func(liked map[string]bool) {
		liked[annonceID] = true
	})
}

func (s *BadgerLikedStore) Remove(ctx context.Context, annonceID string) error {
	return s.mutate(annonceID, func(liked map[string]bool) {
		delete(liked, annonceID)
	})
}

// maxConflictRetries bounds retries of a read-modify-write that lost a race
// against another writer of the same object.
const maxConflictRetries = 3

func (s *BadgerLikedStore) mutate(annonceID string, change func(map[string]bool)) error {
	log := s.log.WithField("annonce_id", annonceID)

	var err error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		err = s.update(change)
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
		log.WithField("attempt", attempt+1).Debug("Liked set write conflict, retrying")
	}
	if err != nil {
		log.WithError(err).Error("Failed to update liked set")
		return fmt.Errorf("failed to update liked set for %s: %w", annonceID, err)
	}
	log.Debug("Liked set updated")
	return nil
}

// update rewrites the whole object inside one transaction.
func (s *BadgerLikedStore) update(change func(map[string]bool)) error {
	return s.repo.db.Update(func(txn *badger.Txn) error {
		liked := map[string]bool{}
		item, err := txn.Get(s.key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &liked)
			}); err != nil {
				return err
			}
		}

		change(liked)

		data, err := json.Marshal(liked)
		if err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry(s.key, data))
	})
}

// SaveSession stores the token and profile together.
func (r *BadgerRepository) SaveSession(ctx context.Context, token string, user *domain.User) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(tokenKey), []byte(token)); err != nil {
			return err
		}
		if user == nil {
			return txn.Delete([]byte(userDataKey))
		}
		data, err := json.Marshal(user)
		if err != nil {
			return err
		}
		return txn.Set([]byte(userDataKey), data)
	})
	if err != nil {
		r.log.WithError(err).Error("Failed to save session")
		return fmt.Errorf("failed to save session: %w", err)
	}
	r.log.Info("Session saved")
	return nil
}

func (r *BadgerRepository) Token(ctx context.Context) (string, error) {
	var token string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(tokenKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		token = string(val)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to read session token: %w", err)
	}
	return token, nil
}

func (r *BadgerRepository) User(ctx context.Context) (*domain.User, error) {
	var user domain.User
	found, err := r.getJSON(userDataKey, &user)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNoSession
	}
	return &user, nil
}

// ClearSession removes token and profile. Clearing an empty session is a no-op.
func (r *BadgerRepository) ClearSession(ctx context.Context) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(tokenKey)); err != nil {
			return err
		}
		return txn.Delete([]byte(userDataKey))
	})
	if err != nil {
		r.log.WithError(err).Error("Failed to clear session")
		return fmt.Errorf("failed to clear session: %w", err)
	}
	r.log.Info("Session cleared")
	return nil
}

// RunGC reclaims value-log space every interval until ctx is cancelled.
func (r *BadgerRepository) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			err := r.db.RunValueLogGC(0.7)
			switch {
			case err == nil:
				r.log.Info("BadgerDB GC completed successfully")
			case errors.Is(err, badger.ErrNoRewrite):
				r.log.Debug("BadgerDB GC: No rewrite needed")
			case errors.Is(err, badger.ErrDBClosed):
				return
			default:
				r.log.WithError(err).Error("BadgerDB GC failed")
			}
		case <-ctx.Done():
			r.log.Info("Stopping BadgerDB GC routine due to context cancellation")
			return
		}
	}
}

// badgerLogger adapts logrus.FieldLogger to Badger's logger interface.
type badgerLogger struct {
	logger logrus.FieldLogger
}

func (l *badgerLogger) Errorf(f string, v ...interface{}) {
	l.logger.Errorf(f, v...)
}
func (l *badgerLogger) Warningf(f string, v ...interface{}) {
	l.logger.Warningf(f, v...)
}
func (l *badgerLogger) Infof(f string, v ...interface{}) {
	l.logger.Infof(f, v...)
}
func (l *badgerLogger) Debugf(f string, v ...interface{}) {
	l.logger.Debugf(f, v...)
}

var (
	_ LikedStore   = (*BadgerLikedStore)(nil)
	_ SessionStore = (*BadgerRepository)(nil)
)
