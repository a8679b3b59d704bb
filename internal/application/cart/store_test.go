package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(events ...shared.DomainEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

// failingKV accepts reads and fails every write
type failingKV struct {
	*storage.MemoryKV
}

func (failingKV) Set(context.Context, string, []byte) error {
	return errors.New("quota exceeded")
}

func product(id string, price string) cart.ProductSnapshot {
	return cart.ProductSnapshot{
		ID:       id,
		Title:    "Product " + id,
		Price:    decimal.RequireFromString(price),
		ImageURL: "https://cdn/" + id + ".jpg",
		Handle:   "product-" + id,
	}
}

func variant(v string) *string {
	return &v
}

func newTestStore(t *testing.T, kv storage.KV, opts ...Option) *Store {
	t.Helper()
	s := NewStore("profile-1", kv, opts...)
	s.Restore(context.Background())
	return s
}

func TestStore_AddItem(t *testing.T) {
	ctx := context.Background()

	t.Run("add twice increments one line", func(t *testing.T) {
		s := newTestStore(t, storage.NewMemoryKV())

		require.True(t, s.AddItem(ctx, product("p1", "10"), 1, variant("M")).OK())
		require.True(t, s.AddItem(ctx, product("p1", "10"), 2, variant("M")).OK())

		items := s.Items()
		require.Len(t, items, 1)
		assert.Equal(t, 3, items[0].Quantity)
		assert.Equal(t, 3, s.Count())
		assert.True(t, decimal.NewFromInt(30).Equal(s.Total()))
	})

	t.Run("nil and empty variant are distinct lines", func(t *testing.T) {
		s := newTestStore(t, storage.NewMemoryKV())

		require.True(t, s.AddItem(ctx, product("p1", "5"), 1, nil).OK())
		require.True(t, s.AddItem(ctx, product("p1", "5"), 1, variant("")).OK())
		require.True(t, s.AddItem(ctx, product("p1", "5"), 1, variant("L")).OK())

		assert.Len(t, s.Items(), 3)
	})

	t.Run("existing line keeps its snapshot", func(t *testing.T) {
		s := newTestStore(t, storage.NewMemoryKV())

		require.True(t, s.AddItem(ctx, product("p1", "10"), 1, nil).OK())
		repriced := product("p1", "99")
		repriced.Title = "Renamed"
		require.True(t, s.AddItem(ctx, repriced, 1, nil).OK())

		item := s.Items()[0]
		assert.Equal(t, "Product p1", item.Title)
		assert.True(t, decimal.NewFromInt(10).Equal(item.UnitPrice))
		assert.True(t, decimal.NewFromInt(20).Equal(s.Total()))
	})

	t.Run("insertion order", func(t *testing.T) {
		s := newTestStore(t, storage.NewMemoryKV())
		for _, id := range []string{"c", "a", "b"} {
			require.True(t, s.AddItem(ctx, product(id, "1"), 1, nil).OK())
		}
		require.True(t, s.AddItem(ctx, product("a", "1"), 1, nil).OK())

		var ids []string
		for _, item := range s.Items() {
			ids = append(ids, item.ProductID)
		}
		assert.Equal(t, []string{"c", "a", "b"}, ids)
	})

	tests := []struct {
		name     string
		product  cart.ProductSnapshot
		quantity int
	}{
		{name: "zero quantity", product: product("p1", "10"), quantity: 0},
		{name: "negative quantity", product: product("p1", "10"), quantity: -2},
		{name: "negative price", product: product("p1", "-1"), quantity: 1},
		{name: "missing product id", product: cart.ProductSnapshot{Price: decimal.NewFromInt(1)}, quantity: 1},
	}
	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			kv := storage.NewMemoryKV()
			pub := &recordingPublisher{}
			s := newTestStore(t, kv, WithPublisher(pub))

			res := s.AddItem(ctx, tt.product, tt.quantity, nil)
			assert.False(t, res.OK())
			assert.True(t, errors.Is(res.Err(), shared.ErrValidation))
			assert.Empty(t, s.Items())
			assert.Empty(t, pub.types())
			_, err := kv.Get(ctx, StorageKey)
			assert.ErrorIs(t, err, storage.ErrNotFound)
		})
	}
}

func TestStore_SetQuantity(t *testing.T) {
	ctx := context.Background()

	for _, q := range []int{0, -3} {
		s := newTestStore(t, storage.NewMemoryKV())
		require.True(t, s.AddItem(ctx, product("p1", "10"), 2, nil).OK())

		require.True(t, s.SetQuantity(ctx, "p1", q, nil).OK())
		assert.Empty(t, s.Items(), "quantity %d removes the line", q)
		assert.True(t, s.Total().IsZero())
	}

	s := newTestStore(t, storage.NewMemoryKV())
	require.True(t, s.AddItem(ctx, product("p1", "10"), 2, variant("S")).OK())

	require.True(t, s.SetQuantity(ctx, "p1", 5, variant("S")).OK())
	assert.Equal(t, 5, s.Count())

	require.True(t, s.SetQuantity(ctx, "p1", 7, nil).OK(), "absent key is a no-op")
	assert.Equal(t, 5, s.Count())
}

func TestStore_RemoveThenTotal(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemoryKV())

	require.True(t, s.AddItem(ctx, product("A", "50"), 1, nil).OK())
	require.True(t, s.AddItem(ctx, product("B", "20"), 2, nil).OK())
	require.True(t, s.RemoveItem(ctx, "B", nil).OK())
	require.True(t, s.RemoveItem(ctx, "missing", nil).OK())

	view := s.Snapshot()
	assert.True(t, decimal.NewFromInt(50).Equal(view.Total))
	assert.Equal(t, 1, view.Count)
	assert.Len(t, view.Items, 1)
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	s := newTestStore(t, kv)

	require.True(t, s.AddItem(ctx, product("A", "50"), 1, nil).OK())
	require.True(t, s.Clear(ctx).OK())
	assert.Empty(t, s.Items())

	raw, err := kv.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))
}

func TestStore_PersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	s := newTestStore(t, kv)

	require.True(t, s.AddItem(ctx, product("p1", "12.50"), 2, variant("M")).OK())
	require.True(t, s.AddItem(ctx, product("p2", "3"), 1, nil).OK())
	require.True(t, s.SetQuantity(ctx, "p2", 4, nil).OK())

	reopened := newTestStore(t, kv)
	want, got := s.Items(), reopened.Items()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Key(), got[i].Key())
		assert.Equal(t, want[i].Title, got[i].Title)
		assert.Equal(t, want[i].ImageURL, got[i].ImageURL)
		assert.Equal(t, want[i].Handle, got[i].Handle)
		assert.Equal(t, want[i].Quantity, got[i].Quantity)
		assert.True(t, want[i].UnitPrice.Equal(got[i].UnitPrice))
	}
	assert.True(t, s.Total().Equal(reopened.Total()))

	raw, err := kv.Get(ctx, StorageKey)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"variant":"M"`)
	assert.Contains(t, string(raw), `"variant":null`)
	assert.Contains(t, string(raw), `"image":"https://cdn/p1.jpg"`)
}

func TestStore_RestoreCorruption(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `{{{`},
		{name: "null", raw: `null`},
		{name: "object instead of array", raw: `{"id":"p1"}`},
		{name: "zero quantity", raw: `[{"id":"p1","variant":null,"title":"x","price":"1","image":"","quantity":0}]`},
		{name: "duplicate key", raw: `[{"id":"p1","variant":"M","price":1,"quantity":1},{"id":"p1","variant":"M","price":1,"quantity":2}]`},
		{name: "bad price", raw: `[{"id":"p1","price":"ten","quantity":1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := storage.NewMemoryKV()
			require.NoError(t, kv.Set(ctx, StorageKey, []byte(tt.raw)))

			core, recorded := observer.New(zapcore.WarnLevel)
			s := newTestStore(t, kv, WithLogger(zap.New(core)))

			assert.Empty(t, s.Items())
			_, err := kv.Get(ctx, StorageKey)
			assert.ErrorIs(t, err, storage.ErrNotFound, "corrupt key is purged")
			assert.Equal(t, 1, recorded.FilterMessage("Discarding unreadable cart").Len())

			require.True(t, s.AddItem(ctx, product("p9", "1"), 1, nil).OK())
			assert.Len(t, s.Items(), 1)
		})
	}
}

func TestStore_RestoreAcceptsNumericPrices(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, StorageKey, []byte(
		`[{"id":"p1","variant":null,"title":"Kurta","price":1499.5,"image":"i.jpg","quantity":2,"handle":"kurta"}]`)))

	s := newTestStore(t, kv)
	require.Len(t, s.Items(), 1)
	assert.True(t, decimal.RequireFromString("2999").Equal(s.Total()))
}

func TestStore_LazyRestoreOnMutation(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	first := newTestStore(t, kv)
	require.True(t, first.AddItem(ctx, product("p1", "1"), 1, nil).OK())

	second := NewStore("profile-1", kv)
	require.True(t, second.AddItem(ctx, product("p2", "1"), 1, nil).OK())
	assert.Len(t, second.Items(), 2, "mutation before Restore must not overwrite stored items")
}

func TestStore_PersistFailureKeepsMemory(t *testing.T) {
	ctx := context.Background()
	core, recorded := observer.New(zapcore.ErrorLevel)
	s := newTestStore(t, failingKV{storage.NewMemoryKV()}, WithLogger(zap.New(core)))

	res := s.AddItem(ctx, product("p1", "1"), 1, nil)
	assert.True(t, res.OK())
	assert.Len(t, s.Items(), 1)
	assert.Equal(t, 1, recorded.FilterMessage("Failed to persist cart").Len())
}

func TestStore_Events(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	s := newTestStore(t, storage.NewMemoryKV(), WithPublisher(pub))

	s.AddItem(ctx, product("p1", "1"), 1, nil)
	s.SetQuantity(ctx, "p1", 3, nil)
	s.SetQuantity(ctx, "p1", 3, nil)
	s.RemoveItem(ctx, "p1", nil)
	s.RemoveItem(ctx, "p1", nil)
	s.Clear(ctx)

	assert.Equal(t, []string{
		cart.EventTypeItemAdded,
		cart.EventTypeQuantityChanged,
		cart.EventTypeItemRemoved,
		cart.EventTypeCleared,
	}, pub.types())
}

func TestStore_ConcurrentMutations(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	s := newTestStore(t, kv)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddItem(ctx, product("p1", "2"), 1, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Count())
	assert.True(t, decimal.NewFromInt(100).Equal(s.Total()))

	reopened := newTestStore(t, kv)
	assert.Equal(t, 50, reopened.Count())
}
