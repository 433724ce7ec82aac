package core

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vovanwotkd/labels-britannika/internal/db"
	"github.com/Vovanwotkd/labels-britannika/internal/label"
)

func newSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	conn, err := db.Open(db.Config{Path: filepath.Join(t.TempDir(), "labels.db")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewSQLStore(conn)
}

func TestSQLStoreLifecycle(t *testing.T) {
	store := newSQLStore(t)
	now := time.Now().UTC()

	id, err := store.Enqueue(&Job{
		OrderItemRef: "order-1:item-1",
		Kind:         label.KindMain,
		DishJSON:     `{"name":"Суп","code":"1000001"}`,
		MaxRetries:   3,
	})
	require.NoError(t, err)

	job, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusQueued, job.Status)
	assert.Equal(t, label.KindMain, job.Kind)
	assert.Equal(t, `{"name":"Суп","code":"1000001"}`, job.DishJSON)

	claimed, err := store.DequeueBatch(now.Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, JobStatusPrinting, claimed[0].Status)

	require.NoError(t, store.MarkDone(id, now))

	job, err = store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusDone, job.Status)
	assert.NotNil(t, job.PrintedAt)
}

func TestSQLStoreRetryUntilFailed(t *testing.T) {
	store := newSQLStore(t)

	id, err := store.Enqueue(&Job{
		OrderItemRef: "order-1:item-1",
		Kind:         label.KindMain,
		DishJSON:     `{}`,
		MaxRetries:   2,
	})
	require.NoError(t, err)

	now := time.Now().UTC()

	claimed, err := store.DequeueBatch(now.Add(time.Minute), 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	status, err := store.MarkRetry(id, "timeout", now, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, JobStatusQueued, status)

	claimed, err = store.DequeueBatch(now.Add(time.Minute), 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	status, err = store.MarkRetry(id, "timeout again", now, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, status)

	job, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, 2, job.RetryCount)
	assert.Equal(t, "timeout again", job.ErrorMessage)
}

func TestSQLStoreRetryDelayKeepsJobOffTheQueue(t *testing.T) {
	store := newSQLStore(t)
	now := time.Now().UTC()

	id, err := store.Enqueue(&Job{OrderItemRef: "x", Kind: label.KindMain, DishJSON: `{}`, MaxRetries: 3})
	require.NoError(t, err)

	_, err = store.DequeueBatch(now.Add(time.Second), 1)
	require.NoError(t, err)

	_, err = store.MarkRetry(id, "timeout", now, time.Hour)
	require.NoError(t, err)

	early, err := store.DequeueBatch(now.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, early)

	due, err := store.DequeueBatch(now.Add(2*time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestSQLStoreConcurrentDequeueClaimsAreDisjoint(t *testing.T) {
	store := newSQLStore(t)
	now := time.Now().UTC()

	const total = 20
	for i := 0; i < total; i++ {
		_, err := store.Enqueue(&Job{
			OrderItemRef: fmt.Sprintf("order-1:item-%d", i),
			Kind:         label.KindMain,
			DishJSON:     `{}`,
			MaxRetries:   3,
		})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	batches := make([][]*Job, 2)
	for i := range batches {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			claimed, err := store.DequeueBatch(now.Add(time.Minute), total)
			assert.NoError(t, err)
			batches[i] = claimed
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, batch := range batches {
		for _, job := range batch {
			assert.False(t, seen[job.ID], "job %d claimed twice", job.ID)
			seen[job.ID] = true
		}
	}
	assert.Len(t, seen, total)
}

func TestSQLStoreCancelGuards(t *testing.T) {
	store := newSQLStore(t)
	now := time.Now().UTC()

	id, err := store.Enqueue(&Job{OrderItemRef: "x", Kind: label.KindMain, DishJSON: `{}`, MaxRetries: 3})
	require.NoError(t, err)

	require.NoError(t, store.Cancel(id))
	assert.ErrorIs(t, store.Cancel(id), ErrNotCancellable)

	job, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCancelled, job.Status)
	// A cancelled label was never printed.
	assert.Nil(t, job.PrintedAt)

	// A claimed job cannot be cancelled either.
	other, err := store.Enqueue(&Job{OrderItemRef: "y", Kind: label.KindMain, DishJSON: `{}`, MaxRetries: 3})
	require.NoError(t, err)
	_, err = store.DequeueBatch(now.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.ErrorIs(t, store.Cancel(other), ErrNotCancellable)
}

func TestSQLStoreRequeueResetsCounters(t *testing.T) {
	store := newSQLStore(t)
	now := time.Now().UTC()

	id, err := store.Enqueue(&Job{OrderItemRef: "x", Kind: label.KindMain, DishJSON: `{}`, MaxRetries: 3})
	require.NoError(t, err)

	assert.ErrorIs(t, store.Requeue(id, now), ErrNotRetryable)

	_, err = store.DequeueBatch(now.Add(time.Second), 1)
	require.NoError(t, err)
	require.NoError(t, store.MarkFailed(id, "bad payload", now))

	require.NoError(t, store.Requeue(id, now))

	job, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusQueued, job.Status)
	assert.Equal(t, 0, job.RetryCount)
	assert.Empty(t, job.ErrorMessage)
}

func TestSQLStoreRecoverStale(t *testing.T) {
	store := newSQLStore(t)
	now := time.Now().UTC()

	_, err := store.Enqueue(&Job{OrderItemRef: "x", Kind: label.KindMain, DishJSON: `{}`, MaxRetries: 3})
	require.NoError(t, err)
	_, err = store.Enqueue(&Job{OrderItemRef: "y", Kind: label.KindExtra, DishJSON: `{}`, MaxRetries: 3})
	require.NoError(t, err)

	claimed, err := store.DequeueBatch(now.Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	recovered, err := store.RecoverStale()
	require.NoError(t, err)
	assert.Equal(t, int64(2), recovered)

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Queued)
	assert.Equal(t, 0, stats.Printing)
	assert.Equal(t, 2, stats.Total)
}

func TestSQLStoreListFilters(t *testing.T) {
	store := newSQLStore(t)
	now := time.Now().UTC()

	a, err := store.Enqueue(&Job{OrderItemRef: "order-1:item-1", Kind: label.KindMain, DishJSON: `{}`, MaxRetries: 3})
	require.NoError(t, err)
	_, err = store.Enqueue(&Job{OrderItemRef: "order-2:item-1", Kind: label.KindMain, DishJSON: `{}`, MaxRetries: 3})
	require.NoError(t, err)

	_, err = store.DequeueBatch(now.Add(time.Second), 1)
	require.NoError(t, err)
	require.NoError(t, store.MarkDone(a, now))

	done, err := store.List(db.JobFilter{Status: "DONE"})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, a, done[0].ID)

	byRef, err := store.List(db.JobFilter{OrderItemRef: "order-2:item-1"})
	require.NoError(t, err)
	require.Len(t, byRef, 1)

	limited, err := store.List(db.JobFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
