package embedding

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/alchemorsel-v2/search/internal/models"
	"github.com/pageza/alchemorsel-v2/search/internal/testhelpers"
)

type countingEmbedder struct {
	calls atomic.Int32
	err   error
}

func (e *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	vec := make([]float32, Dimension)
	vec[int(e.calls.Load())%Dimension] = 1
	return vec, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(t *testing.T, embedder Embedder) (*CachedEmbedder, *GormStore, *clock) {
	t.Helper()
	db := testhelpers.NewSQLiteDB(t)
	store := NewGormStore(db)
	clk := &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewCachedEmbedder(store, embedder, WithClock(clk.Now)), store, clk
}

func TestGetOrComputeStoresOnMiss(t *testing.T) {
	emb := &countingEmbedder{}
	cache, store, clk := newTestCache(t, emb)
	ctx := context.Background()

	vec, err := cache.GetOrCompute(ctx, "  Tomato   EGG ")
	require.NoError(t, err)
	assert.Len(t, vec, Dimension)
	assert.EqualValues(t, 1, emb.calls.Load())

	entry, err := store.Get(ctx, "tomato egg")
	require.NoError(t, err)
	assert.Equal(t, vec, entry.Vector)
	assert.WithinDuration(t, clk.Now(), entry.CreatedAt, time.Second)
}

func TestGetOrComputeServesFreshEntries(t *testing.T) {
	emb := &countingEmbedder{}
	cache, _, clk := newTestCache(t, emb)
	ctx := context.Background()

	first, err := cache.GetOrCompute(ctx, "tomato egg")
	require.NoError(t, err)

	clk.Advance(FreshnessWindow - time.Minute)
	second, err := cache.GetOrCompute(ctx, "Tomato Egg")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, emb.calls.Load())
}

func TestGetOrComputeRecomputesStaleEntries(t *testing.T) {
	emb := &countingEmbedder{}
	cache, store, clk := newTestCache(t, emb)
	ctx := context.Background()

	first, err := cache.GetOrCompute(ctx, "tomato egg")
	require.NoError(t, err)

	clk.Advance(FreshnessWindow)
	second, err := cache.GetOrCompute(ctx, "tomato egg")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.EqualValues(t, 2, emb.calls.Load())

	// the upsert replaced the stale row
	entry, err := store.Get(ctx, "tomato egg")
	require.NoError(t, err)
	assert.Equal(t, second, entry.Vector)
	assert.WithinDuration(t, clk.Now(), entry.CreatedAt, time.Second)

	var rows int64
	require.NoError(t, store.db.Model(&models.QueryEmbedding{}).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}

func TestGetOrComputeRejectsEmptyText(t *testing.T) {
	emb := &countingEmbedder{}
	cache, _, _ := newTestCache(t, emb)

	_, err := cache.GetOrCompute(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Zero(t, emb.calls.Load())
}

func TestGetOrComputeDoesNotCacheFailures(t *testing.T) {
	emb := &countingEmbedder{err: errors.New("quota exceeded")}
	cache, store, _ := newTestCache(t, emb)
	ctx := context.Background()

	_, err := cache.GetOrCompute(ctx, "tomato egg")
	require.Error(t, err)

	_, err = store.Get(ctx, "tomato egg")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

type brokenStore struct {
	puts atomic.Int32
}

func (s *brokenStore) Get(ctx context.Context, text string) (*Entry, error) {
	return nil, errors.New("relation does not exist")
}

func (s *brokenStore) Put(ctx context.Context, entry Entry) error {
	s.puts.Add(1)
	return errors.New("read-only replica")
}

func TestGetOrComputeToleratesStoreFailures(t *testing.T) {
	emb := &countingEmbedder{}
	store := &brokenStore{}
	cache := NewCachedEmbedder(store, emb)

	vec, err := cache.GetOrCompute(context.Background(), "tomato egg")
	require.NoError(t, err)
	assert.Len(t, vec, Dimension)
	assert.EqualValues(t, 1, store.puts.Load())
}

func TestGormStoreConcurrentUpserts(t *testing.T) {
	db := testhelpers.NewSQLiteDB(t)
	store := NewGormStore(db)
	ctx := context.Background()
	now := time.Now().UTC()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vec := make([]float32, Dimension)
			vec[i] = 1
			errs <- store.Put(ctx, Entry{Text: "tomato egg", Vector: vec, CreatedAt: now})
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	var rows int64
	require.NoError(t, db.Model(&models.QueryEmbedding{}).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}

func TestGetOrComputeSharesConcurrentComputations(t *testing.T) {
	emb := &countingEmbedder{}
	cache, _, _ := newTestCache(t, emb)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.GetOrCompute(context.Background(), "tomato egg")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, emb.calls.Load(), int32(10))
	assert.GreaterOrEqual(t, emb.calls.Load(), int32(1))
}

func TestGormStorePrune(t *testing.T) {
	db := testhelpers.NewSQLiteDB(t)
	store := NewGormStore(db)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	vec := make([]float32, Dimension)
	vec[0] = 1
	require.NoError(t, store.Put(ctx, Entry{Text: "old", Vector: vec, CreatedAt: now.Add(-10 * 24 * time.Hour)}))
	require.NoError(t, store.Put(ctx, Entry{Text: "new", Vector: vec, CreatedAt: now}))

	n, err := store.Prune(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = store.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = store.Get(ctx, "new")
	assert.NoError(t, err)
}

type blockingEmbedder struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newBlockingEmbedder() *blockingEmbedder {
	return &blockingEmbedder{started: make(chan struct{}), release: make(chan struct{})}
}

func (e *blockingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.calls.Add(1) == 1 {
		close(e.started)
	}
	select {
	case <-e.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	vec := make([]float32, Dimension)
	vec[0] = 1
	return vec, nil
}

// signallingStore reports every finished Get on gets.
type signallingStore struct {
	Store
	gets chan struct{}
}

func (s *signallingStore) Get(ctx context.Context, text string) (*Entry, error) {
	entry, err := s.Store.Get(ctx, text)
	s.gets <- struct{}{}
	return entry, err
}

func TestGetOrComputeSurvivesCallerCancellation(t *testing.T) {
	emb := newBlockingEmbedder()
	store := &signallingStore{Store: NewGormStore(testhelpers.NewSQLiteDB(t)), gets: make(chan struct{}, 4)}
	cache := NewCachedEmbedder(store, emb)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, err := cache.GetOrCompute(ctxA, "tomato egg")
		errA <- err
	}()
	<-store.gets
	<-emb.started

	type result struct {
		vec []float32
		err error
	}
	resB := make(chan result, 1)
	go func() {
		vec, err := cache.GetOrCompute(context.Background(), "tomato egg")
		resB <- result{vec: vec, err: err}
	}()
	<-store.gets
	// let the second caller join the computation in flight
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(emb.release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Len(t, b.vec, Dimension)
	assert.EqualValues(t, 1, emb.calls.Load())

	entry, err := store.Get(context.Background(), "tomato egg")
	require.NoError(t, err)
	assert.Equal(t, b.vec, entry.Vector)
}

func TestGetOrComputeBoundsSharedComputation(t *testing.T) {
	emb := newBlockingEmbedder()
	store := NewGormStore(testhelpers.NewSQLiteDB(t))
	cache := NewCachedEmbedder(store, emb, WithComputeTimeout(20*time.Millisecond))

	_, err := cache.GetOrCompute(context.Background(), "tomato egg")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = store.Get(context.Background(), "tomato egg")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
