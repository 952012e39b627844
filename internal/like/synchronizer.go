package like

import (
	"context"

	"github.com/sirupsen/logrus"

	"vitrine/internal/api"
	"vitrine/internal/domain"
	"vitrine/internal/storage"
)

// RemoteLiker is the part of the API client the synchronizer needs.
type RemoteLiker interface {
	Like(ctx context.Context, slug string) (*api.LikeResponse, error)
	Unlike(ctx context.Context, slug string) (*api.LikeResponse, error)
}

// Outcome reports what a Toggle call did.
type Outcome int

const (
	// Ignored means a toggle for this listing was already in flight.
	Ignored Outcome = iota
	Committed
	RolledBack
)

func (o Outcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled_back"
	default:
		return "ignored"
	}
}

// Synchronizer keeps the like state of one listing in step with the local
// liked set and the remote counter.
type Synchronizer struct {
	annonceID string
	slug      string
	remote    RemoteLiker
	store     storage.LikedStore
	state     *Optimistic[domain.LikeState]
	log       logrus.FieldLogger
}

// NewSynchronizer seeds the state from the server-provided count and the
// liked set. A failed store read counts as not liked.
func NewSynchronizer(ctx context.Context, annonce domain.Annonce, remote RemoteLiker, store storage.LikedStore, logger logrus.FieldLogger) *Synchronizer {
	log := logger.WithFields(logrus.Fields{
		"component":  "like_sync",
		"annonce_id": annonce.ID,
		"slug":       annonce.Slug,
	})

	liked, err := store.IsLiked(ctx, annonce.ID)
	if err != nil {
		log.WithError(err).Warn("Failed to read liked set, assuming not liked")
		liked = false
	}

	count := annonce.LikesCount
	if count < 0 {
		count = 0
	}

	return &Synchronizer{
		annonceID: annonce.ID,
		slug:      annonce.Slug,
		remote:    remote,
		store:     store,
		state:     NewOptimistic(domain.LikeState{IsLiked: liked, LikesCount: count}),
		log:       log,
	}
}

func (s *Synchronizer) AnnonceID() string { return s.annonceID }

func (s *Synchronizer) Slug() string { return s.slug }

func (s *Synchronizer) State() domain.LikeState {
	return s.state.Current()
}

// Loading reports whether a toggle is in flight.
func (s *Synchronizer) Loading() bool {
	return s.state.Phase() == PhasePending
}

// Toggle flips the like state optimistically, persists it and confirms it
// remotely. On remote failure memory and the liked set are both reverted.
// Errors are logged, never returned.
func (s *Synchronizer) Toggle(ctx context.Context) Outcome {
	previous, ok := s.state.Begin(domain.LikeState.Flipped)
	if !ok {
		s.log.Debug("Toggle ignored, previous toggle still in flight")
		return Ignored
	}

	// The captured state alone decides both the endpoint and the liked-set
	// change, so the two cannot disagree.
	wasLiked := previous.IsLiked
	s.persist(ctx, !wasLiked)

	var (
		resp *api.LikeResponse
		err  error
	)
	if wasLiked {
		resp, err = s.remote.Unlike(ctx, s.slug)
	} else {
		resp, err = s.remote.Like(ctx, s.slug)
	}

	if err != nil {
		restored := s.state.Rollback()
		s.persist(ctx, wasLiked)
		s.log.WithError(err).WithFields(logrus.Fields{
			"is_liked":    restored.IsLiked,
			"likes_count": restored.LikesCount,
		}).Warn("Like toggle failed, state rolled back")
		return RolledBack
	}

	final := s.state.Commit(func(st domain.LikeState) domain.LikeState {
		if resp != nil && resp.LikesCount != nil {
			st.LikesCount = max(0, *resp.LikesCount)
		}
		return st
	})
	s.log.WithFields(logrus.Fields{
		"is_liked":    final.IsLiked,
		"likes_count": final.LikesCount,
	}).Info("Like toggle committed")
	return Committed
}

// persist writes membership best-effort; a failed write never blocks the
// toggle.
func (s *Synchronizer) persist(ctx context.Context, liked bool) {
	var err error
	if liked {
		err = s.store.Add(ctx, s.annonceID)
	} else {
		err = s.store.Remove(ctx, s.annonceID)
	}
	if err != nil {
		s.log.WithError(err).WithField("liked", liked).Warn("Failed to persist liked set")
	}
}
