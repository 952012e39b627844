package bot

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitrine/internal/api"
	"vitrine/internal/deeplink"
	"vitrine/internal/domain"
	"vitrine/internal/like"
	"vitrine/internal/storage"
)

// --- Fakes ---

type fakeCatalog struct {
	mu       sync.Mutex
	annonces map[string]domain.Annonce
	vitrines map[string]domain.Vitrine
	gets     int
}

func (c *fakeCatalog) GetAnnonce(_ context.Context, slug string) (*domain.Annonce, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	a, ok := c.annonces[slug]
	if !ok {
		return nil, &api.APIError{StatusCode: 404}
	}
	return &a, nil
}

func (c *fakeCatalog) GetVitrine(_ context.Context, slug string) (*domain.Vitrine, error) {
	v, ok := c.vitrines[slug]
	if !ok {
		return nil, &api.APIError{StatusCode: 404}
	}
	return &v, nil
}

func (c *fakeCatalog) Feed(context.Context, int) (*api.FeedPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	page := &api.FeedPage{}
	for _, a := range c.annonces {
		page.Results = append(page.Results, a)
	}
	page.Count = len(page.Results)
	return page, nil
}

type sentScreen struct {
	chatID int64
	screen Screen
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sentScreen
	updates []LikeButton
}

func (m *fakeMessenger) SendScreen(_ context.Context, chatID int64, screen Screen) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentScreen{chatID: chatID, screen: screen})
	return nil
}

func (m *fakeMessenger) UpdateLikeButton(_ context.Context, _ int64, _ int, button LikeButton) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, button)
	return nil
}

func (m *fakeMessenger) screens() []sentScreen {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentScreen(nil), m.sent...)
}

type fakeRemote struct {
	mu    sync.Mutex
	fail  bool
	likes map[string]int
	calls int
}

func (r *fakeRemote) respond(slug string, delta int) (*api.LikeResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.fail {
		return nil, errors.New("offline")
	}
	r.likes[slug] += delta
	n := r.likes[slug]
	return &api.LikeResponse{LikesCount: &n}, nil
}

func (r *fakeRemote) Like(_ context.Context, slug string) (*api.LikeResponse, error) {
	return r.respond(slug, 1)
}

func (r *fakeRemote) Unlike(_ context.Context, slug string) (*api.LikeResponse, error) {
	return r.respond(slug, -1)
}

type mapStore struct {
	mu    sync.Mutex
	liked map[string]bool
}

func (s *mapStore) IsLiked(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liked[id], nil
}
func (s *mapStore) Add(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liked[id] = true
	return nil
}
func (s *mapStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.liked, id)
	return nil
}
func (s *mapStore) All(context.Context) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]bool{}
	for k, v := range s.liked {
		out[k] = v
	}
	return out, nil
}

type testShell struct {
	*Shell
	catalog   *fakeCatalog
	messenger *fakeMessenger
	remote    *fakeRemote
	stores    map[string]*mapStore
}

func newTestShell(t *testing.T) *testShell {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	ts := &testShell{
		catalog: &fakeCatalog{
			annonces: map[string]domain.Annonce{
				"velo-rouge": {ID: "42", Slug: "velo-rouge", Title: "Vélo rouge", Price: 120, City: "Nantes", LikesCount: 3},
			},
			vitrines: map[string]domain.Vitrine{
				"chez-lea": {ID: "v1", Slug: "chez-lea", Name: "Chez Léa", AnnoncesCount: 1,
					Annonces: []domain.Annonce{{ID: "42", Slug: "velo-rouge", Title: "Vélo rouge"}}},
			},
		},
		messenger: &fakeMessenger{},
		remote:    &fakeRemote{likes: map[string]int{"velo-rouge": 3}},
		stores:    map[string]*mapStore{},
	}
	var storesMu sync.Mutex
	ts.Shell = NewShell(ShellDeps{
		Catalog:   ts.catalog,
		Remote:    ts.remote,
		Messenger: ts.messenger,
		LikedStores: func(scope string) storage.LikedStore {
			storesMu.Lock()
			defer storesMu.Unlock()
			if s, ok := ts.stores[scope]; ok {
				return s
			}
			s := &mapStore{liked: map[string]bool{}}
			ts.stores[scope] = s
			return s
		},
		Source:        deeplink.NativeSource{},
		DispatchDelay: 0,
	}, logger)
	return ts
}

// --- Tests ---

func TestShell_DeepLinkShowsAnnonceWithLikeButton(t *testing.T) {
	ts := newTestShell(t)
	ts.Ready()

	n := ts.HandleText(context.Background(), 1, "regarde ça https://vitrine.example/a/velo-rouge !")
	ts.Wait()

	assert.Equal(t, 1, n)
	screens := ts.messenger.screens()
	require.Len(t, screens, 1)
	assert.Equal(t, int64(1), screens[0].chatID)
	assert.Contains(t, screens[0].screen.Text, "Vélo rouge")
	require.NotNil(t, screens[0].screen.Like)
	assert.Equal(t, "42", screens[0].screen.Like.AnnonceID)
	assert.Equal(t, domain.LikeState{IsLiked: false, LikesCount: 3}, screens[0].screen.Like.State)
}

func TestShell_DuplicateLinkInSameChatNavigatesOnce(t *testing.T) {
	ts := newTestShell(t)
	ts.Ready()
	ctx := context.Background()

	ts.HandleText(ctx, 1, "https://vitrine.example/v/chez-lea")
	ts.Wait()
	ts.HandleText(ctx, 1, "https://vitrine.example/v/chez-lea")
	ts.Wait()
	// Another chat is another app instance
	ts.HandleText(ctx, 2, "https://vitrine.example/v/chez-lea")
	ts.Wait()

	screens := ts.messenger.screens()
	require.Len(t, screens, 2)
	assert.Equal(t, int64(1), screens[0].chatID)
	assert.Equal(t, int64(2), screens[1].chatID)
	require.Len(t, screens[0].screen.Links, 1)
	assert.Equal(t, "velo-rouge", screens[0].screen.Links[0].Slug)
}

func TestShell_LinksBeforeReadyAreHeld(t *testing.T) {
	ts := newTestShell(t)
	ctx := context.Background()

	assert.Equal(t, 1, ts.HandleText(ctx, 5, "vitrine://settings"))
	ts.Wait()
	assert.Empty(t, ts.messenger.screens())

	ts.Ready()
	ts.Wait()
	require.Len(t, ts.messenger.screens(), 1)
	assert.Contains(t, ts.messenger.screens()[0].screen.Text, "Paramètres")
}

func TestShell_UnroutableTextIsSilent(t *testing.T) {
	ts := newTestShell(t)
	ts.Ready()

	assert.Zero(t, ts.HandleText(context.Background(), 1, "bonjour https://vitrine.example/ https://vitrine.example/cart"))
	ts.Wait()
	assert.Empty(t, ts.messenger.screens())
}

func TestShell_MissingAnnonceCanBeRetried(t *testing.T) {
	ts := newTestShell(t)
	ts.Ready()
	ctx := context.Background()

	ts.HandleText(ctx, 1, "https://vitrine.example/a/table")
	ts.Wait()
	assert.Empty(t, ts.messenger.screens())

	ts.catalog.mu.Lock()
	ts.catalog.annonces["table"] = domain.Annonce{ID: "7", Slug: "table", Title: "Table"}
	ts.catalog.mu.Unlock()

	ts.HandleText(ctx, 1, "https://vitrine.example/a/table")
	ts.Wait()
	assert.Len(t, ts.messenger.screens(), 1, "A failed navigation does not mark the link processed")
}

func TestShell_ToggleLikeUpdatesButtonAndStore(t *testing.T) {
	ts := newTestShell(t)
	ts.Ready()
	ctx := context.Background()

	ts.HandleText(ctx, 1, "https://vitrine.example/a/velo-rouge")
	ts.Wait()

	outcome, err := ts.ToggleLike(ctx, 1, 100, "42", "velo-rouge")
	require.NoError(t, err)
	assert.Equal(t, like.Committed, outcome)

	require.Len(t, ts.messenger.updates, 1)
	assert.Equal(t, domain.LikeState{IsLiked: true, LikesCount: 4}, ts.messenger.updates[0].State)
	assert.True(t, ts.stores["chat:1"].liked["42"])

	ts.remote.mu.Lock()
	ts.remote.fail = true
	ts.remote.mu.Unlock()

	outcome, err = ts.ToggleLike(ctx, 1, 100, "42", "velo-rouge")
	require.NoError(t, err)
	assert.Equal(t, like.RolledBack, outcome)
	assert.Equal(t, domain.LikeState{IsLiked: true, LikesCount: 4}, ts.messenger.updates[1].State)
	assert.True(t, ts.stores["chat:1"].liked["42"], "Rollback keeps the liked set in step")
}

func TestShell_ToggleLikeMountsUnknownCard(t *testing.T) {
	ts := newTestShell(t)
	ts.Ready()
	ctx := context.Background()

	outcome, err := ts.ToggleLike(ctx, 9, 1, "42", "velo-rouge")
	require.NoError(t, err)
	assert.Equal(t, like.Committed, outcome)

	_, err = ts.ToggleLike(ctx, 9, 1, "404", "gone")
	assert.Error(t, err)
}

func TestShell_OpenBypassesDeduplication(t *testing.T) {
	ts := newTestShell(t)
	ctx := context.Background()

	require.NoError(t, ts.Open(ctx, 1, domain.AnnonceDestination("velo-rouge")))
	require.NoError(t, ts.Open(ctx, 1, domain.AnnonceDestination("velo-rouge")))
	assert.Len(t, ts.messenger.screens(), 2)
}

func TestShell_ShowFeed(t *testing.T) {
	ts := newTestShell(t)
	require.NoError(t, ts.ShowFeed(context.Background(), 3))

	screens := ts.messenger.screens()
	require.Len(t, screens, 1)
	require.Len(t, screens[0].screen.Links, 1)
	assert.Equal(t, "velo-rouge", screens[0].screen.Links[0].Slug)
	assert.Contains(t, screens[0].screen.Links[0].Label, "120.00 EUR")
}

func TestExtractLinks(t *testing.T) {
	got := extractLinks("voir https://h/a/x, et vitrine://v/y. rien ici")
	assert.Equal(t, []string{"https://h/a/x", "vitrine://v/y"}, got)
}

func TestParseCallback(t *testing.T) {
	data, ok := callbackData(likePrefix, "42", "velo-rouge")
	require.True(t, ok)
	id, slug, ok := parseCallback(likePrefix, data)
	assert.True(t, ok)
	assert.Equal(t, "42", id)
	assert.Equal(t, "velo-rouge", slug)

	id, slug, ok = parseCallback(likePrefix, "like:42")
	assert.True(t, ok, "The slug is optional")
	assert.Equal(t, "42", id)
	assert.Empty(t, slug)

	_, _, ok = parseCallback(likePrefix, "like:")
	assert.False(t, ok)
	_, _, ok = parseCallback(likePrefix, "open:42:velo")
	assert.False(t, ok)
}

func TestScreenKeyboard(t *testing.T) {
	assert.Nil(t, screenKeyboard(Screen{Text: "plain"}))

	kb := screenKeyboard(Screen{
		Like:  &LikeButton{AnnonceID: "42", Slug: "velo-rouge", State: domain.LikeState{IsLiked: true, LikesCount: 4}},
		Links: []LinkButton{{Label: "Table", AnnonceID: "7", Slug: "table"}},
	})
	require.NotNil(t, kb)
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, "♥ 4", kb.InlineKeyboard[0][0].Text)
	assert.Equal(t, "like:42:velo-rouge", kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "open:7:table", kb.InlineKeyboard[1][0].CallbackData)
}

func TestScreenKeyboard_CallbackDataFitsTelegramLimit(t *testing.T) {
	annonce := &domain.Annonce{
		ID:    "3f2b8c1e-9a4d-4e7f-b6a1-2c5d8e9f0a1b",
		Slug:  "velo-de-course-rouge-tres-bon-etat",
		Title: "Vélo de course",
	}
	screen := annonceScreen(annonce, domain.LikeState{})
	screen.Links = feedScreen([]domain.Annonce{*annonce}).Links

	kb := screenKeyboard(screen)
	require.NotNil(t, kb)
	require.Len(t, kb.InlineKeyboard, 2)
	for _, row := range kb.InlineKeyboard {
		assert.LessOrEqual(t, len(row[0].CallbackData), maxCallbackData)
	}
	assert.Equal(t, "like:"+annonce.ID, kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "open:"+annonce.ID, kb.InlineKeyboard[1][0].CallbackData)

	// An id too long for any callback leaves the button out
	kb = screenKeyboard(Screen{Links: []LinkButton{{Label: "x", AnnonceID: strings.Repeat("9", maxCallbackData)}}})
	assert.Nil(t, kb)
}

func TestShell_ToggleLikeWithoutSlugUsesShownListing(t *testing.T) {
	ts := newTestShell(t)
	ts.Ready()
	ctx := context.Background()

	ts.HandleText(ctx, 1, "https://vitrine.example/a/velo-rouge")
	ts.Wait()

	outcome, err := ts.ToggleLike(ctx, 1, 100, "42", "")
	require.NoError(t, err)
	assert.Equal(t, like.Committed, outcome)
	require.Len(t, ts.messenger.updates, 1)
	assert.Equal(t, "velo-rouge", ts.messenger.updates[0].Slug)
}

func TestShell_ToggleLikeUnknownIDWithoutSlugIsStale(t *testing.T) {
	ts := newTestShell(t)
	ts.Ready()

	outcome, err := ts.ToggleLike(context.Background(), 1, 100, "42", "")
	assert.ErrorIs(t, err, ErrStaleButton)
	assert.Equal(t, like.Ignored, outcome)
	assert.Empty(t, ts.messenger.updates)
}

func TestShell_OpenAnnonceResolvesFeedButton(t *testing.T) {
	ts := newTestShell(t)
	ctx := context.Background()

	require.NoError(t, ts.ShowFeed(ctx, 3))
	require.NoError(t, ts.OpenAnnonce(ctx, 3, "42", ""))

	screens := ts.messenger.screens()
	require.Len(t, screens, 2)
	assert.Contains(t, screens[1].screen.Text, "Vélo rouge")

	assert.ErrorIs(t, ts.OpenAnnonce(ctx, 4, "42", ""), ErrStaleButton, "Another chat never saw the feed")
}

func TestMessageFields_NoSender(t *testing.T) {
	fields := messageFields(&models.Message{Chat: models.Chat{ID: -100}})
	assert.Equal(t, int64(-100), fields["chat_id"])
	assert.NotContains(t, fields, "user_id")

	fields = messageFields(&models.Message{Chat: models.Chat{ID: 5}, From: &models.User{ID: 7}})
	assert.Equal(t, int64(7), fields["user_id"])
}
