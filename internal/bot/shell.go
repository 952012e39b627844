package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"vitrine/internal/api"
	"vitrine/internal/deeplink"
	"vitrine/internal/domain"
	"vitrine/internal/like"
	"vitrine/internal/storage"
)

// ErrStaleButton is returned for a button whose listing the chat can no
// longer resolve, typically after a restart.
var ErrStaleButton = errors.New("button no longer resolvable, send the link again")

// Catalog is the read side of the marketplace API used to render screens.
type Catalog interface {
	GetAnnonce(ctx context.Context, slug string) (*domain.Annonce, error)
	GetVitrine(ctx context.Context, slug string) (*domain.Vitrine, error)
	Feed(ctx context.Context, page int) (*api.FeedPage, error)
}

// Messenger delivers screens to a chat.
type Messenger interface {
	SendScreen(ctx context.Context, chatID int64, screen Screen) error
	UpdateLikeButton(ctx context.Context, chatID int64, messageID int, button LikeButton) error
}

// LikedStores returns the liked set of one app instance.
type LikedStores func(scope string) storage.LikedStore

// ShellDeps groups what the shell is composed from.
type ShellDeps struct {
	Catalog        Catalog
	Remote         like.RemoteLiker
	LikedStores    LikedStores
	Messenger      Messenger
	Source         deeplink.URLSource
	InternalMarker string
	DispatchDelay  time.Duration
}

// Shell is the navigation shell: every chat is one app instance with its
// own processed-URL set, dispatcher and mounted listing cards.
type Shell struct {
	deps   ShellDeps
	router *deeplink.Router
	log    logrus.FieldLogger

	mu       sync.Mutex
	ready    bool
	sessions map[int64]*session
}

type session struct {
	chatID     int64
	processed  *deeplink.ProcessedSet
	dispatcher *deeplink.Dispatcher
	cards      *like.CardRegistry

	// slugs maps the ids of listings shown in the chat to their slugs, for
	// buttons whose callback data had no room for the slug.
	slugMu sync.Mutex
	slugs  map[string]string
}

func (sess *session) remember(annonces ...domain.Annonce) {
	sess.slugMu.Lock()
	defer sess.slugMu.Unlock()
	for _, a := range annonces {
		if a.ID != "" && a.Slug != "" {
			sess.slugs[a.ID] = a.Slug
		}
	}
}

func (sess *session) slugFor(annonceID string) (string, bool) {
	sess.slugMu.Lock()
	defer sess.slugMu.Unlock()
	slug, ok := sess.slugs[annonceID]
	return slug, ok
}

func NewShell(deps ShellDeps, logger logrus.FieldLogger) *Shell {
	return &Shell{
		deps:     deps,
		router:   deeplink.NewRouter(deps.Source, deps.InternalMarker, logger),
		log:      logger.WithField("component", "shell"),
		sessions: make(map[int64]*session),
	}
}

func (s *Shell) session(chatID int64) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[chatID]; ok {
		return sess
	}

	log := s.log.WithField("chat_id", chatID)
	sess := &session{
		chatID:    chatID,
		processed: deeplink.NewProcessedSet(),
		slugs:     make(map[string]string),
		cards:     like.NewCardRegistry(s.deps.Remote, s.deps.LikedStores(fmt.Sprintf("chat:%d", chatID)), log),
	}
	sess.dispatcher = deeplink.NewDispatcher(s.router, sess.processed, &chatNavigator{shell: s, sess: sess}, s.deps.DispatchDelay, log)
	if s.ready {
		sess.dispatcher.Ready()
	}
	s.sessions[chatID] = sess
	log.Debug("Chat session created")
	return sess
}

// Ready is signalled once the bot is receiving updates.
func (s *Shell) Ready() {
	s.mu.Lock()
	s.ready = true
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.dispatcher.Ready()
	}
}

// Wait blocks until every scheduled deep-link dispatch has fired.
func (s *Shell) Wait() {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.dispatcher.Wait()
	}
}

// HandleText feeds every link found in text to the chat's dispatcher and
// returns how many were scheduled.
func (s *Shell) HandleText(ctx context.Context, chatID int64, text string) int {
	sess := s.session(chatID)
	scheduled := 0
	for _, raw := range extractLinks(text) {
		if sess.dispatcher.Handle(ctx, raw) {
			scheduled++
		}
	}
	return scheduled
}

// Open navigates in-app, bypassing deep-link routing and deduplication.
func (s *Shell) Open(ctx context.Context, chatID int64, dest domain.RouteDestination) error {
	sess := s.session(chatID)
	nav := &chatNavigator{shell: s, sess: sess}
	return nav.Reset(ctx, domain.ResetStateFor(dest))
}

// ShowFeed sends the first page of the listing feed.
func (s *Shell) ShowFeed(ctx context.Context, chatID int64) error {
	feed, err := s.deps.Catalog.Feed(ctx, 1)
	if err != nil {
		return fmt.Errorf("failed to load feed: %w", err)
	}
	s.session(chatID).remember(feed.Results...)
	return s.deps.Messenger.SendScreen(ctx, chatID, feedScreen(feed.Results))
}

// OpenAnnonce opens the listing behind an in-app button. slug may be empty
// when the button only carried the id.
func (s *Shell) OpenAnnonce(ctx context.Context, chatID int64, annonceID, slug string) error {
	resolved, err := s.session(chatID).resolveSlug(annonceID, slug)
	if err != nil {
		return err
	}
	return s.Open(ctx, chatID, domain.AnnonceDestination(resolved))
}

// resolveSlug prefers the mounted card, then the slug shown in this chat,
// then the one the button carried.
func (sess *session) resolveSlug(annonceID, fallback string) (string, error) {
	if card, ok := sess.cards.Get(annonceID); ok {
		return card.Slug(), nil
	}
	if slug, ok := sess.slugFor(annonceID); ok {
		return slug, nil
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("unknown annonce %s: %w", annonceID, ErrStaleButton)
}

// ToggleLike toggles the card of annonceID, mounting it first when the chat
// has no live card for it (e.g. after a restart). slug may be empty when the
// button only carried the id.
func (s *Shell) ToggleLike(ctx context.Context, chatID int64, messageID int, annonceID, slug string) (like.Outcome, error) {
	sess := s.session(chatID)
	log := s.log.WithFields(logrus.Fields{
		"chat_id":    chatID,
		"annonce_id": annonceID,
	})

	card, ok := sess.cards.Get(annonceID)
	if !ok {
		resolved, err := sess.resolveSlug(annonceID, slug)
		if err != nil {
			return like.Ignored, err
		}
		annonce, err := s.deps.Catalog.GetAnnonce(ctx, resolved)
		if err != nil {
			return like.Ignored, fmt.Errorf("failed to mount card %s: %w", annonceID, err)
		}
		card = sess.cards.Mount(ctx, *annonce)
	}

	outcome := card.Toggle(ctx)
	if outcome == like.Ignored {
		return outcome, nil
	}

	button := LikeButton{AnnonceID: annonceID, Slug: card.Slug(), State: card.State()}
	if err := s.deps.Messenger.UpdateLikeButton(ctx, chatID, messageID, button); err != nil {
		log.WithError(err).Warn("Failed to refresh like button")
	}
	return outcome, nil
}

// chatNavigator renders the top of a reset stack into one chat.
type chatNavigator struct {
	shell *Shell
	sess  *session
}

func (n *chatNavigator) Reset(ctx context.Context, state domain.NavigationState) error {
	deps := n.shell.deps
	top := state.Top()

	var screen Screen
	switch top.Name {
	case domain.AnnonceDetail.String():
		annonce, err := deps.Catalog.GetAnnonce(ctx, top.Params["slug"])
		if err != nil {
			return err
		}
		n.sess.remember(*annonce)
		card := n.sess.cards.Mount(ctx, *annonce)
		screen = annonceScreen(annonce, card.State())
	case domain.VitrineDetail.String():
		vitrine, err := deps.Catalog.GetVitrine(ctx, top.Params["slug"])
		if err != nil {
			return err
		}
		n.sess.remember(vitrine.Annonces...)
		screen = vitrineScreen(vitrine)
	case domain.ScreenMain:
		feed, err := deps.Catalog.Feed(ctx, 1)
		if err != nil {
			return err
		}
		n.sess.remember(feed.Results...)
		screen = feedScreen(feed.Results)
	default:
		screen = namedScreen(domain.ScreenName(top.Name))
	}

	return deps.Messenger.SendScreen(ctx, n.sess.chatID, screen)
}

// extractLinks returns the whitespace-separated tokens that look like URLs.
func extractLinks(text string) []string {
	var links []string
	for _, token := range strings.Fields(text) {
		token = strings.TrimRight(token, ".,;!")
		if strings.Contains(token, "://") || strings.HasPrefix(token, "vitrine:") {
			links = append(links, token)
		}
	}
	return links
}
