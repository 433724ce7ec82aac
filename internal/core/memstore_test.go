package core

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vovanwotkd/labels-britannika/internal/db"
	"github.com/Vovanwotkd/labels-britannika/internal/label"
)

func enqueueTestJob(t *testing.T, store *MemStore, ref string) int64 {
	t.Helper()
	id, err := store.Enqueue(&Job{
		OrderItemRef: ref,
		Kind:         label.KindMain,
		DishJSON:     `{"name":"Суп","code":"1000001"}`,
		MaxRetries:   3,
	})
	require.NoError(t, err)
	return id
}

func TestEnqueueAndDequeue(t *testing.T) {
	store := NewMemStore()
	now := time.Now()

	id := enqueueTestJob(t, store, "order-1:item-1")

	job, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusQueued, job.Status)
	assert.Equal(t, 0, job.RetryCount)

	claimed, err := store.DequeueBatch(now.Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, JobStatusPrinting, claimed[0].Status)
	assert.NotNil(t, claimed[0].StartedAt)

	// A second claim sees nothing.
	again, err := store.DequeueBatch(now.Add(time.Second), 10)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestDequeueOrderAndLimit(t *testing.T) {
	store := NewMemStore()

	first := enqueueTestJob(t, store, "a")
	second := enqueueTestJob(t, store, "b")
	third := enqueueTestJob(t, store, "c")

	claimed, err := store.DequeueBatch(time.Now().Add(time.Second), 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, first, claimed[0].ID)
	assert.Equal(t, second, claimed[1].ID)

	rest, err := store.DequeueBatch(time.Now().Add(time.Second), 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, third, rest[0].ID)
}

func TestMarkRetryRequeuesWithDelay(t *testing.T) {
	store := NewMemStore()
	now := time.Now()

	id := enqueueTestJob(t, store, "order-1:item-1")
	_, err := store.DequeueBatch(now, 1)
	require.NoError(t, err)

	status, err := store.MarkRetry(id, "delivery failed (timeout): i/o timeout", now, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, JobStatusQueued, status)

	job, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 1, job.RetryCount)
	assert.Contains(t, job.ErrorMessage, "timeout")

	// Not due before the delay elapses.
	early, err := store.DequeueBatch(now.Add(time.Second), 10)
	require.NoError(t, err)
	assert.Empty(t, early)

	due, err := store.DequeueBatch(now.Add(6*time.Second), 10)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestMarkRetryExhaustsToFailed(t *testing.T) {
	store := NewMemStore()
	now := time.Now()

	id := enqueueTestJob(t, store, "order-1:item-1")

	for attempt := 1; attempt <= 3; attempt++ {
		claimed, err := store.DequeueBatch(now.Add(time.Duration(attempt)*time.Minute), 1)
		require.NoError(t, err)
		require.Len(t, claimed, 1, "attempt %d", attempt)

		status, err := store.MarkRetry(id, "printer unreachable", now.Add(time.Duration(attempt)*time.Minute), time.Second)
		require.NoError(t, err)
		if attempt < 3 {
			assert.Equal(t, JobStatusQueued, status)
		} else {
			assert.Equal(t, JobStatusFailed, status)
		}
	}

	job, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, 3, job.RetryCount)
	assert.Equal(t, "printer unreachable", job.ErrorMessage)
	assert.True(t, job.Status.Terminal())
}

func TestMarkFailedSpendsNoRetry(t *testing.T) {
	store := NewMemStore()
	now := time.Now()

	id := enqueueTestJob(t, store, "order-1:item-1")
	_, err := store.DequeueBatch(now, 1)
	require.NoError(t, err)

	require.NoError(t, store.MarkFailed(id, "barcode encoding failed", now))

	job, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, 0, job.RetryCount)
}

func TestConcurrentDequeueClaimsAreDisjoint(t *testing.T) {
	store := NewMemStore()
	now := time.Now()

	const total = 20
	for i := 0; i < total; i++ {
		enqueueTestJob(t, store, fmt.Sprintf("order-1:item-%d", i))
	}

	var wg sync.WaitGroup
	batches := make([][]*Job, 2)
	for i := range batches {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			claimed, err := store.DequeueBatch(now.Add(time.Second), total)
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

func TestCancelOnlyFromQueued(t *testing.T) {
	store := NewMemStore()
	now := time.Now()

	id := enqueueTestJob(t, store, "order-1:item-1")
	require.NoError(t, store.Cancel(id))

	job, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCancelled, job.Status)
	// A cancelled label was never printed.
	assert.Nil(t, job.PrintedAt)

	// Cancelling again, or cancelling a claimed job, is rejected.
	assert.ErrorIs(t, store.Cancel(id), ErrNotCancellable)

	other := enqueueTestJob(t, store, "order-1:item-2")
	_, err = store.DequeueBatch(now, 10)
	require.NoError(t, err)
	assert.ErrorIs(t, store.Cancel(other), ErrNotCancellable)
}

func TestRequeueResetsFailedJob(t *testing.T) {
	store := NewMemStore()
	now := time.Now()

	id := enqueueTestJob(t, store, "order-1:item-1")
	_, err := store.DequeueBatch(now, 1)
	require.NoError(t, err)
	require.NoError(t, store.MarkFailed(id, "boom", now))

	require.NoError(t, store.Requeue(id, now))

	job, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusQueued, job.Status)
	assert.Equal(t, 0, job.RetryCount)
	assert.Empty(t, job.ErrorMessage)
	assert.Nil(t, job.PrintedAt)

	// Only FAILED jobs can be requeued.
	assert.ErrorIs(t, store.Requeue(id, now), ErrNotRetryable)
}

func TestRecoverStale(t *testing.T) {
	store := NewMemStore()
	now := time.Now()

	enqueueTestJob(t, store, "a")
	enqueueTestJob(t, store, "b")
	claimed, err := store.DequeueBatch(now, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	recovered, err := store.RecoverStale()
	require.NoError(t, err)
	assert.Equal(t, int64(2), recovered)

	stats, err := store.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Queued)
	assert.Equal(t, 0, stats.Printing)
}

func TestListFilters(t *testing.T) {
	store := NewMemStore()
	now := time.Now()

	a := enqueueTestJob(t, store, "order-1:item-1")
	enqueueTestJob(t, store, "order-2:item-1")

	_, err := store.DequeueBatch(now, 1)
	require.NoError(t, err)
	require.NoError(t, store.MarkDone(a, now))

	done, err := store.List(db.JobFilter{Status: "DONE"})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, a, done[0].ID)

	byRef, err := store.List(db.JobFilter{OrderItemRef: "order-2:item-1"})
	require.NoError(t, err)
	require.Len(t, byRef, 1)
	assert.Equal(t, JobStatusQueued, byRef[0].Status)

	all, err := store.List(db.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetUnknownJob(t *testing.T) {
	store := NewMemStore()
	_, err := store.Get(42)
	assert.ErrorIs(t, err, ErrJobNotFound)
}
