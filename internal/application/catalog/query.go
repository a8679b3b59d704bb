// Package catalog adapts catalog, customer and order reads into observable
// query state: data, loading and error, one fetch per parameter set.
package catalog

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/storefront/backend/internal/domain/commerce"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ErrQueryClosed is returned by Await on a closed query
var ErrQueryClosed = errors.New("catalog: query closed")

// State is the observable result of a query. Data holds the empty value
// (never a nil slice) on failure and before the first success.
type State[T any] struct {
	Data       T      `json:"data"`
	Loading    bool   `json:"loading"`
	Err        error  `json:"-"`
	Message    string `json:"error,omitempty"`
	Generation uint64 `json:"generation"`
}

// Fetcher performs one fetch for a parameter set
type Fetcher[P comparable, T any] func(ctx context.Context, params P) (T, error)

// Query runs a Fetcher and tracks its state. Each Run starts a new
// generation and cancels the previous fetch; a fetch resolving after a newer
// generation was issued is discarded, so the state always belongs to the
// latest parameters.
type Query[P comparable, T any] struct {
	name  string
	fetch Fetcher[P, T]
	empty func() T

	mu         sync.Mutex
	state      State[T]
	params     P
	generation uint64
	cancel     context.CancelFunc
	settled    chan struct{}
	closed     bool

	observers []func(State[T])
	notifyMu  sync.Mutex
	delivered State[T]
	logger    *zap.Logger
	timeout   time.Duration
}

// QueryOption configures a Query
type QueryOption[P comparable, T any] func(*Query[P, T])

// WithObserver calls fn after every state change, outside the query lock.
// Calls never overlap and never go back to an older generation.
func WithObserver[P comparable, T any](fn func(State[T])) QueryOption[P, T] {
	return func(q *Query[P, T]) {
		q.observers = append(q.observers, fn)
	}
}

// WithQueryLogger sets the query logger
func WithQueryLogger[P comparable, T any](l *zap.Logger) QueryOption[P, T] {
	return func(q *Query[P, T]) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithTimeout bounds every fetch; zero leaves the platform's own deadline
func WithTimeout[P comparable, T any](d time.Duration) QueryOption[P, T] {
	return func(q *Query[P, T]) {
		q.timeout = d
	}
}

// NewQuery creates an idle query. empty produces the Data shown before the
// first success and after failures.
func NewQuery[P comparable, T any](name string, fetch Fetcher[P, T], empty func() T, opts ...QueryOption[P, T]) *Query[P, T] {
	q := &Query[P, T]{
		name:    name,
		fetch:   fetch,
		empty:   empty,
		settled: closedChan(),
		logger:  zap.NewNop(),
	}
	q.state.Data = empty()
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Run starts a fetch for params and returns its generation. Previous data
// stays visible while loading.
func (q *Query[P, T]) Run(ctx context.Context, params P) uint64 {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0
	}
	if q.cancel != nil {
		q.cancel()
	}
	q.generation++
	generation := q.generation
	q.params = params

	var (
		fetchCtx context.Context
		cancel   context.CancelFunc
	)
	if q.timeout > 0 {
		fetchCtx, cancel = context.WithTimeout(ctx, q.timeout)
	} else {
		fetchCtx, cancel = context.WithCancel(ctx)
	}
	q.cancel = cancel
	q.releaseLocked()
	q.settled = make(chan struct{})

	q.state.Loading = true
	q.state.Err = nil
	q.state.Message = ""
	q.state.Generation = generation
	snapshot := q.state
	q.mu.Unlock()

	q.notify(snapshot)
	go q.resolve(fetchCtx, cancel, generation, params)
	return generation
}

func (q *Query[P, T]) resolve(ctx context.Context, cancel context.CancelFunc, generation uint64, params P) {
	defer cancel()
	ctx, span := telemetry.StartSpan(ctx, "query."+q.name,
		telemetry.WithAttribute(telemetry.AttrGeneration, int64(generation)),
	)
	defer span.End()

	data, err := q.fetch(ctx, params)

	q.mu.Lock()
	if generation != q.generation || q.closed {
		q.mu.Unlock()
		telemetry.SetAttributes(span, telemetry.AttrStale, true)
		logger.WithLogger(ctx, q.logger).Debug("Discarding stale query result",
			zap.String("query", q.name),
			zap.Uint64("generation", generation),
		)
		return
	}
	if err != nil {
		q.state = State[T]{Data: q.empty(), Err: err, Message: Describe(err), Generation: generation}
		telemetry.RecordError(span, err)
		logger.WithLogger(ctx, q.logger).Warn("Query failed",
			zap.String("query", q.name),
			zap.Error(err),
		)
	} else {
		q.state = State[T]{Data: data, Generation: generation}
		telemetry.SetOK(span)
	}
	snapshot := q.state
	q.releaseLocked()
	q.mu.Unlock()

	q.notify(snapshot)
}

// Reset discards any fetch in flight and sets the idle empty state
func (q *Query[P, T]) Reset() {
	q.mu.Lock()
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	q.generation++
	var zero P
	q.params = zero
	q.state = State[T]{Data: q.empty(), Generation: q.generation}
	q.releaseLocked()
	snapshot := q.state
	q.mu.Unlock()

	q.notify(snapshot)
}

// State returns the current state
func (q *Query[P, T]) State() State[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Params returns the parameters of the latest Run
func (q *Query[P, T]) Params() P {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.params
}

// Await blocks until the latest generation settles, then returns the state.
// A Run issued while waiting is followed as well.
func (q *Query[P, T]) Await(ctx context.Context) (State[T], error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return State[T]{}, ErrQueryClosed
		}
		settled := q.settled
		generation := q.generation
		q.mu.Unlock()

		select {
		case <-settled:
		case <-ctx.Done():
			return q.State(), ctx.Err()
		}

		q.mu.Lock()
		current := q.generation
		state := q.state
		q.mu.Unlock()
		if current == generation {
			return state, nil
		}
	}
}

// Fetch runs params and waits for the result
func (q *Query[P, T]) Fetch(ctx context.Context, params P) (State[T], error) {
	q.Run(ctx, params)
	return q.Await(ctx)
}

// Close cancels the fetch in flight; later results are dropped and
// pending Await calls return ErrQueryClosed
func (q *Query[P, T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	if q.cancel != nil {
		q.cancel()
	}
	q.releaseLocked()
}

// releaseLocked wakes the waiters of the current generation. Await then
// re-reads the generation, so superseded waiters move on to the newer one.
func (q *Query[P, T]) releaseLocked() {
	select {
	case <-q.settled:
	default:
		close(q.settled)
	}
}

func (q *Query[P, T]) notify(state State[T]) {
	if len(q.observers) == 0 {
		return
	}
	q.notifyMu.Lock()
	defer q.notifyMu.Unlock()
	last := q.delivered
	if state.Generation < last.Generation ||
		(state.Generation == last.Generation && state.Loading && !last.Loading) {
		return
	}
	q.delivered = state
	for _, fn := range q.observers {
		fn(state)
	}
}

// Describe turns a failure into the message shown next to the empty result
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return commerce.Classify(err).Message
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
