package core

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Vovanwotkd/labels-britannika/internal/db"
)

// MemStore is an in-memory JobStore with the same transition guards as the
// sqlite store. Used by tests and by dev setups that do not want a database
// file on disk.
type MemStore struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[int64]*memJob
}

type memJob struct {
	Job
	nextAttemptAt time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{nextID: 1, jobs: make(map[int64]*memJob)}
}

func (m *MemStore) Enqueue(job *Job) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job.MaxRetries <= 0 {
		job.MaxRetries = 3
	}

	id := m.nextID
	m.nextID++

	stored := &memJob{Job: *job}
	stored.ID = id
	stored.Status = JobStatusQueued
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	stored.nextAttemptAt = stored.CreatedAt
	m.jobs[id] = stored

	job.ID = id
	job.Status = JobStatusQueued
	return id, nil
}

func (m *MemStore) DequeueBatch(now time.Time, limit int) ([]*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*memJob
	for _, j := range m.jobs {
		if j.Status == JobStatusQueued && !j.nextAttemptAt.After(now) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(a, b int) bool {
		if due[a].CreatedAt.Equal(due[b].CreatedAt) {
			return due[a].ID < due[b].ID
		}
		return due[a].CreatedAt.Before(due[b].CreatedAt)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	claimed := make([]*Job, 0, len(due))
	for _, j := range due {
		j.Status = JobStatusPrinting
		startedAt := now
		j.StartedAt = &startedAt
		claimed = append(claimed, snapshot(j))
	}
	return claimed, nil
}

func (m *MemStore) MarkDone(id int64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, err := m.printing(id)
	if err != nil {
		return err
	}
	j.Status = JobStatusDone
	j.ErrorMessage = ""
	printedAt := now
	j.PrintedAt = &printedAt
	return nil
}

func (m *MemStore) MarkRetry(id int64, errMsg string, now time.Time, delay time.Duration) (JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, err := m.printing(id)
	if err != nil {
		return "", err
	}

	j.RetryCount++
	j.ErrorMessage = errMsg
	if j.RetryCount >= j.MaxRetries {
		j.Status = JobStatusFailed
		printedAt := now
		j.PrintedAt = &printedAt
		return JobStatusFailed, nil
	}
	j.Status = JobStatusQueued
	j.nextAttemptAt = now.Add(delay)
	return JobStatusQueued, nil
}

func (m *MemStore) MarkFailed(id int64, errMsg string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, err := m.printing(id)
	if err != nil {
		return err
	}
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	printedAt := now
	j.PrintedAt = &printedAt
	return nil
}

func (m *MemStore) Cancel(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok || j.Status != JobStatusQueued {
		return ErrNotCancellable
	}
	j.Status = JobStatusCancelled
	return nil
}

func (m *MemStore) Requeue(id int64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok || j.Status != JobStatusFailed {
		return ErrNotRetryable
	}
	j.Status = JobStatusQueued
	j.RetryCount = 0
	j.ErrorMessage = ""
	j.StartedAt = nil
	j.PrintedAt = nil
	j.nextAttemptAt = now
	return nil
}

func (m *MemStore) Get(id int64) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrJobNotFound, id)
	}
	return snapshot(j), nil
}

func (m *MemStore) List(filter db.JobFilter) ([]*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []*memJob
	for _, j := range m.jobs {
		if filter.Status != "" && string(j.Status) != filter.Status {
			continue
		}
		if filter.OrderItemRef != "" && j.OrderItemRef != filter.OrderItemRef {
			continue
		}
		all = append(all, j)
	}
	sort.Slice(all, func(a, b int) bool {
		if all[a].CreatedAt.Equal(all[b].CreatedAt) {
			return all[a].ID > all[b].ID
		}
		return all[a].CreatedAt.After(all[b].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(all) {
			all = nil
		} else {
			all = all[filter.Offset:]
		}
	}
	if len(all) > limit {
		all = all[:limit]
	}

	jobs := make([]*Job, 0, len(all))
	for _, j := range all {
		jobs = append(jobs, snapshot(j))
	}
	return jobs, nil
}

func (m *MemStore) Stats() (*QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &QueueStats{}
	for _, j := range m.jobs {
		stats.Total++
		switch j.Status {
		case JobStatusQueued:
			stats.Queued++
		case JobStatusPrinting:
			stats.Printing++
		case JobStatusDone:
			stats.Done++
		case JobStatusFailed:
			stats.Failed++
		case JobStatusCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

func (m *MemStore) RecoverStale() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var recovered int64
	for _, j := range m.jobs {
		if j.Status == JobStatusPrinting {
			j.Status = JobStatusQueued
			j.StartedAt = nil
			recovered++
		}
	}
	return recovered, nil
}

func (m *MemStore) printing(id int64) (*memJob, error) {
	j, ok := m.jobs[id]
	if !ok || j.Status != JobStatusPrinting {
		return nil, fmt.Errorf("%w: job %d is not printing", ErrJobNotFound, id)
	}
	return j, nil
}

func snapshot(j *memJob) *Job {
	out := j.Job
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.PrintedAt != nil {
		t := *j.PrintedAt
		out.PrintedAt = &t
	}
	return &out
}
