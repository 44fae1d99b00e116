package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"transit-console/internal/backup/adapter/persistence/memory"
	"transit-console/internal/backup/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowStore struct {
	*memory.DocumentStore
	inflight int32
	peak     int32
}

func (s *slowStore) GetDocument(ctx context.Context, path string) (model.DocumentData, error) {
	n := atomic.AddInt32(&s.inflight, 1)
	defer atomic.AddInt32(&s.inflight, -1)
	for {
		peak := atomic.LoadInt32(&s.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&s.peak, peak, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return s.DocumentStore.GetDocument(ctx, path)
}

func TestLimitedStore_BoundsConcurrentCalls(t *testing.T) {
	inner := &slowStore{DocumentStore: memory.NewDocumentStore()}
	store := NewLimitedStore(inner, 3)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.GetDocument(context.Background(), "routes/r1")
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&inner.peak), int32(3))
	assert.Greater(t, atomic.LoadInt32(&inner.peak), int32(0))
}

func TestLimitedStore_HonoursCancelledContext(t *testing.T) {
	store := NewLimitedStore(memory.NewDocumentStore(), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.ListCollection(ctx, "routes")
	require.ErrorIs(t, err, context.Canceled)
}
