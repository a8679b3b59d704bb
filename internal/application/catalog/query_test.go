package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/commerce"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
	"github.com/storefront/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedFetcher blocks each fetch until its parameter's gate is released
type gatedFetcher struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	calls []string
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{gates: map[string]chan struct{}{}}
}

func (g *gatedFetcher) gate(param string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.gates[param] = ch
	return ch
}

func (g *gatedFetcher) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *gatedFetcher) fetch(ctx context.Context, param string) ([]string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, param)
	gate := g.gates[param]
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if param == "fail" {
		return nil, commerce.ErrNetwork.Wrap(errors.New("connection reset"))
	}
	return []string{param + "-result"}, nil
}

func emptyStrings() []string { return []string{} }

func TestQuery_Success(t *testing.T) {
	f := newGatedFetcher()
	q := NewQuery("test", f.fetch, emptyStrings)

	initial := q.State()
	assert.NotNil(t, initial.Data)
	assert.Empty(t, initial.Data)
	assert.False(t, initial.Loading)

	state, err := q.Fetch(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a-result"}, state.Data)
	assert.False(t, state.Loading)
	assert.NoError(t, state.Err)
	assert.Empty(t, state.Message)
	assert.Equal(t, uint64(1), state.Generation)
}

func TestQuery_FailureEmptiesData(t *testing.T) {
	f := newGatedFetcher()
	q := NewQuery("test", f.fetch, emptyStrings)
	_, err := q.Fetch(context.Background(), "a")
	require.NoError(t, err)

	state, err := q.Fetch(context.Background(), "fail")
	require.NoError(t, err)
	assert.NotNil(t, state.Data)
	assert.Empty(t, state.Data)
	assert.False(t, state.Loading)
	assert.ErrorIs(t, state.Err, commerce.ErrNetwork)
	assert.Equal(t, "commerce platform unreachable", state.Message)
}

func TestQuery_LoadingKeepsPreviousData(t *testing.T) {
	f := newGatedFetcher()
	q := NewQuery("test", f.fetch, emptyStrings)
	_, err := q.Fetch(context.Background(), "a")
	require.NoError(t, err)

	release := f.gate("b")
	q.Run(context.Background(), "b")

	state := q.State()
	assert.True(t, state.Loading)
	assert.Equal(t, []string{"a-result"}, state.Data)

	close(release)
	state, err = q.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b-result"}, state.Data)
}

func TestQuery_StaleResultDiscarded(t *testing.T) {
	f := newGatedFetcher()
	q := NewQuery("test", f.fetch, emptyStrings)
	releaseSlow := f.gate("slow")

	q.Run(context.Background(), "slow")
	require.Eventually(t, func() bool { return f.callCount() == 1 }, time.Second, time.Millisecond)

	state, err := q.Fetch(context.Background(), "fast")
	require.NoError(t, err)
	assert.Equal(t, []string{"fast-result"}, state.Data)

	close(releaseSlow)
	time.Sleep(20 * time.Millisecond)

	state = q.State()
	assert.Equal(t, []string{"fast-result"}, state.Data)
	assert.Equal(t, uint64(2), state.Generation)
	assert.Equal(t, "fast", q.Params())
}

// awaitAsync starts Await and gives it time to block on the current generation
func awaitAsync[T any](q *Query[string, T]) <-chan error {
	done := make(chan error, 1)
	go func() {
		_, err := q.Await(context.Background())
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	return done
}

func TestQuery_AwaitFollowsNewerRun(t *testing.T) {
	f := newGatedFetcher()
	q := NewQuery("test", f.fetch, emptyStrings)
	releaseFirst := f.gate("first")
	releaseSecond := f.gate("second")

	q.Run(context.Background(), "first")
	done := awaitAsync(q)

	q.Run(context.Background(), "second")
	close(releaseFirst)
	close(releaseSecond)

	select {
	case err := <-done:
		require.NoError(t, err)
		assert.Equal(t, []string{"second-result"}, q.State().Data)
	case <-time.After(time.Second):
		t.Fatal("Await did not return after a newer Run")
	}
}

func TestQuery_AwaitReturnsOnReset(t *testing.T) {
	f := newGatedFetcher()
	q := NewQuery("test", f.fetch, emptyStrings)
	release := f.gate("a")
	defer close(release)

	q.Run(context.Background(), "a")
	done := awaitAsync(q)
	q.Reset()

	select {
	case err := <-done:
		require.NoError(t, err)
		assert.False(t, q.State().Loading)
	case <-time.After(time.Second):
		t.Fatal("Await did not return after Reset")
	}
}

func TestQuery_AwaitReturnsOnClose(t *testing.T) {
	f := newGatedFetcher()
	q := NewQuery("test", f.fetch, emptyStrings)
	release := f.gate("a")
	defer close(release)

	q.Run(context.Background(), "a")
	done := awaitAsync(q)
	q.Close()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrQueryClosed)
	case <-time.After(time.Second):
		t.Fatal("Await did not return after Close")
	}
}

func TestQuery_AwaitHonoursContext(t *testing.T) {
	f := newGatedFetcher()
	q := NewQuery("test", f.fetch, emptyStrings)
	release := f.gate("a")
	defer close(release)
	q.Run(context.Background(), "a")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	state, err := q.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, state.Loading)
}

func TestQuery_CloseDropsResults(t *testing.T) {
	f := newGatedFetcher()
	q := NewQuery("test", f.fetch, emptyStrings)
	release := f.gate("a")
	q.Run(context.Background(), "a")

	q.Close()
	close(release)
	time.Sleep(20 * time.Millisecond)

	assert.Empty(t, q.State().Data)
	_, err := q.Await(context.Background())
	assert.ErrorIs(t, err, ErrQueryClosed)
	assert.Equal(t, uint64(0), q.Run(context.Background(), "b"))
}

func TestQuery_Timeout(t *testing.T) {
	slow := func(ctx context.Context, _ string) ([]string, error) {
		<-ctx.Done()
		return nil, commerce.ErrTimeout.Wrap(ctx.Err())
	}
	q := NewQuery("test", slow, emptyStrings, WithTimeout[string, []string](20*time.Millisecond))

	state, err := q.Fetch(context.Background(), "a")
	require.NoError(t, err)
	assert.ErrorIs(t, state.Err, commerce.ErrTimeout)
	assert.Equal(t, "commerce platform request timed out", state.Message)
}

func TestQuery_ObserverSeesOrderedStates(t *testing.T) {
	f := newGatedFetcher()
	var mu sync.Mutex
	var seen []State[[]string]
	q := NewQuery("test", f.fetch, emptyStrings, WithObserver[string, []string](func(s State[[]string]) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	}))

	_, err := q.Fetch(context.Background(), "a")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.True(t, seen[0].Loading)
	assert.False(t, seen[1].Loading)
	assert.Equal(t, []string{"a-result"}, seen[1].Data)
}

func TestQuery_Reset(t *testing.T) {
	f := newGatedFetcher()
	q := NewQuery("test", f.fetch, emptyStrings)
	release := f.gate("a")
	q.Run(context.Background(), "a")

	q.Reset()
	close(release)
	time.Sleep(20 * time.Millisecond)

	state := q.State()
	assert.False(t, state.Loading)
	assert.Empty(t, state.Data)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "", Describe(nil))
	assert.Equal(t, "Unidentified customer", Describe(commerce.ErrAuthFailed.WithMessage("Unidentified customer")))
	assert.Equal(t, "commerce platform request timed out", Describe(context.DeadlineExceeded))
	assert.Equal(t, "commerce platform unreachable", Describe(errors.New("dial tcp: refused")))
}

func testProduct(id, handle, title string) catalog.Product {
	return catalog.Product{
		ID:       id,
		Handle:   handle,
		Title:    title,
		MinPrice: valueobject.Zero(valueobject.DefaultCurrency),
		MaxPrice: valueobject.Zero(valueobject.DefaultCurrency),
	}
}

func TestService_Queries(t *testing.T) {
	ctx := context.Background()
	platform := testutil.NewFakePlatform()
	platform.Products = []catalog.Product{
		testProduct("1", "red-saree", "Red Saree"),
		testProduct("2", "blue-kurta", "Blue Kurta"),
		testProduct("3", "green-dupatta", "Green Dupatta"),
	}
	platform.CollectionList = []catalog.Collection{{ID: "c1", Handle: "festive", Title: "Festive"}}
	platform.Shop = &catalog.Shop{Name: "Demo", CurrencyCode: "INR"}
	svc := NewService(platform, Config{PageLimit: 2, MaxPages: 5}, nil)

	t.Run("products first page", func(t *testing.T) {
		state, err := svc.Products().Fetch(ctx, ProductsParams{})
		require.NoError(t, err)
		assert.Len(t, state.Data, 2)
	})

	t.Run("products all pages", func(t *testing.T) {
		state, err := svc.Products().Fetch(ctx, ProductsParams{AllPages: true})
		require.NoError(t, err)
		assert.Len(t, state.Data, 3)
	})

	t.Run("product by handle", func(t *testing.T) {
		state, err := svc.Product().Fetch(ctx, "blue-kurta")
		require.NoError(t, err)
		require.NotNil(t, state.Data)
		assert.Equal(t, "Blue Kurta", state.Data.Title)
	})

	t.Run("unknown product", func(t *testing.T) {
		state, err := svc.Product().Fetch(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, state.Data)
		assert.ErrorIs(t, state.Err, shared.ErrNotFound)
		assert.Equal(t, "product not found", state.Message)
	})

	t.Run("product reviews", func(t *testing.T) {
		platform.Metafields = map[string][]catalog.Metafield{
			"2": {{ID: "m1", Namespace: catalog.ReviewsNamespace, Key: "rating", Value: "5"}},
		}
		state, err := svc.ProductReviews().Fetch(ctx, "blue-kurta")
		require.NoError(t, err)
		require.Len(t, state.Data, 1)
		assert.Equal(t, "5", state.Data[0].Value)

		state, err = svc.ProductReviews().Fetch(ctx, "missing")
		require.NoError(t, err)
		assert.ErrorIs(t, state.Err, shared.ErrNotFound)
		assert.Equal(t, 1, platform.CallCount("ProductMetafields"), "unknown handles skip the metafield read")
	})

	t.Run("collection", func(t *testing.T) {
		state, err := svc.Collection().Fetch(ctx, CollectionParams{Handle: "festive"})
		require.NoError(t, err)
		assert.Equal(t, "Festive", state.Data.Title)

		state, err = svc.Collection().Fetch(ctx, CollectionParams{Handle: "nope"})
		require.NoError(t, err)
		assert.ErrorIs(t, state.Err, shared.ErrNotFound)
	})

	t.Run("collections never nil", func(t *testing.T) {
		empty := NewService(testutil.NewFakePlatform(), Config{}, nil)
		state, err := empty.Collections().Fetch(ctx, 0)
		require.NoError(t, err)
		assert.NotNil(t, state.Data)
		assert.Empty(t, state.Data)
	})

	t.Run("shop", func(t *testing.T) {
		state, err := svc.Shop().Fetch(ctx, struct{}{})
		require.NoError(t, err)
		assert.Equal(t, "INR", state.Data.CurrencyCode)
	})

	t.Run("orders default to any status", func(t *testing.T) {
		_, err := svc.Orders().Fetch(ctx, OrdersParams{})
		require.NoError(t, err)
		calls := platform.Calls()
		assert.Equal(t, string(catalog.OrderStatusAny), calls[len(calls)-1].Arg)
	})

	t.Run("customer orders need a token", func(t *testing.T) {
		state, err := svc.CustomerOrders().Fetch(ctx, "")
		require.NoError(t, err)
		assert.ErrorIs(t, state.Err, shared.ErrAuthRequired)
		assert.Empty(t, state.Data)
	})

	t.Run("search results", func(t *testing.T) {
		state, err := svc.SearchResults().Fetch(ctx, " kurta ")
		require.NoError(t, err)
		require.Len(t, state.Data, 1)
		assert.Equal(t, "Blue Kurta", state.Data[0].Title)

		calls := platform.CallCount("SearchProducts")
		state, err = svc.SearchResults().Fetch(ctx, "   ")
		require.NoError(t, err)
		assert.NotNil(t, state.Data)
		assert.Empty(t, state.Data)
		assert.Equal(t, calls, platform.CallCount("SearchProducts"))
	})

	t.Run("platform error becomes message", func(t *testing.T) {
		failing := testutil.NewFakePlatform()
		failing.SetError("Customers", commerce.ErrAPI.WithMessage("Access denied for customers field"))
		state, err := NewService(failing, Config{}, nil).Customers().Fetch(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, "Access denied for customers field", state.Message)
		assert.NotNil(t, state.Data)
	})
}
