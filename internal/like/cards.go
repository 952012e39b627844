package like

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"vitrine/internal/domain"
	"vitrine/internal/storage"
)

// CardRegistry tracks the synchronizers of the listing cards currently
// shown by one app instance.
type CardRegistry struct {
	mu     sync.Mutex
	cards  map[string]*Synchronizer
	remote RemoteLiker
	store  storage.LikedStore
	log    logrus.FieldLogger
}

func NewCardRegistry(remote RemoteLiker, store storage.LikedStore, logger logrus.FieldLogger) *CardRegistry {
	return &CardRegistry{
		cards:  make(map[string]*Synchronizer),
		remote: remote,
		store:  store,
		log:    logger,
	}
}

// Mount returns the synchronizer for the listing, creating it on first
// mount. An already mounted card keeps its state. The liked set is read
// outside the registry lock; of two racing first mounts, the first inserted
// wins.
func (r *CardRegistry) Mount(ctx context.Context, annonce domain.Annonce) *Synchronizer {
	if s, ok := r.Get(annonce.ID); ok {
		return s
	}

	fresh := NewSynchronizer(ctx, annonce, r.remote, r.store, r.log)

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.cards[annonce.ID]; ok {
		return s
	}
	r.cards[annonce.ID] = fresh
	return fresh
}

// Unmount discards the card's state. An in-flight toggle still completes
// against the store.
func (r *CardRegistry) Unmount(annonceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cards, annonceID)
}

func (r *CardRegistry) Get(annonceID string) (*Synchronizer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.cards[annonceID]
	return s, ok
}

func (r *CardRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cards)
}
