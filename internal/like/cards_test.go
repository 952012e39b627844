package like

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitrine/internal/domain"
)

func TestCardRegistry_MountIsIdempotent(t *testing.T) {
	ctx := context.Background()
	reg := NewCardRegistry(new(MockRemote), newMemoryStore(), quietLogger())

	first := reg.Mount(ctx, veloRouge)
	updated := veloRouge
	updated.LikesCount = 99
	second := reg.Mount(ctx, updated)

	assert.Same(t, first, second)
	assert.Equal(t, 3, second.State().LikesCount, "Remount keeps the live state")
	assert.Equal(t, 1, reg.Len())

	got, ok := reg.Get("42")
	assert.True(t, ok)
	assert.Same(t, first, got)
}

func TestCardRegistry_UnmountDiscardsState(t *testing.T) {
	ctx := context.Background()
	reg := NewCardRegistry(new(MockRemote), newMemoryStore(), quietLogger())

	reg.Mount(ctx, veloRouge)
	reg.Unmount("42")

	_, ok := reg.Get("42")
	assert.False(t, ok)

	fresh := reg.Mount(ctx, domain.Annonce{ID: "42", Slug: "velo-rouge", LikesCount: 8})
	assert.Equal(t, 8, fresh.State().LikesCount, "A new mount seeds from the server count again")
}

// parkedStore blocks liked-set reads until released.
type parkedStore struct {
	*memoryStore
	reading chan struct{}
	release chan struct{}
}

func (s *parkedStore) IsLiked(ctx context.Context, id string) (bool, error) {
	s.reading <- struct{}{}
	<-s.release
	return s.memoryStore.IsLiked(ctx, id)
}

func TestCardRegistry_SlowMountDoesNotBlockLookups(t *testing.T) {
	ctx := context.Background()
	store := &parkedStore{memoryStore: newMemoryStore(), reading: make(chan struct{}, 2), release: make(chan struct{})}
	reg := NewCardRegistry(new(MockRemote), store, quietLogger())

	mounted := make(chan *Synchronizer, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mounted <- reg.Mount(ctx, veloRouge)
		}()
	}
	for i := 0; i < 2; i++ {
		select {
		case <-store.reading:
		case <-time.After(time.Second):
			t.Fatal("Mount never read the liked set")
		}
	}

	lookup := make(chan bool, 1)
	go func() {
		_, ok := reg.Get("42")
		lookup <- ok
	}()
	select {
	case ok := <-lookup:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Get blocked behind a mount reading the store")
	}

	close(store.release)
	wg.Wait()
	first, second := <-mounted, <-mounted
	require.NotNil(t, first)
	assert.Same(t, first, second, "Racing mounts agree on one card")
	assert.Equal(t, 1, reg.Len())
}
