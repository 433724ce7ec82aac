package core

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Vovanwotkd/labels-britannika/internal/db"
	"github.com/Vovanwotkd/labels-britannika/internal/label"
)

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrNotCancellable = errors.New("job cannot be cancelled (only queued jobs can)")
	ErrNotRetryable   = errors.New("job cannot be requeued (only failed jobs can)")
)

const defaultListLimit = 50

// SQLStore is the sqlite-backed JobStore. All transitions go through guarded
// UPDATEs that include the expected current status in the WHERE clause, so a
// transition raced by another writer simply affects zero rows.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(database *sql.DB) *SQLStore {
	return &SQLStore{db: database}
}

func (s *SQLStore) Enqueue(job *Job) (int64, error) {
	if job.MaxRetries <= 0 {
		job.MaxRetries = 3
	}

	result, err := s.db.Exec(db.InsertJob,
		job.OrderItemRef, string(job.Kind), job.TemplateID, job.DishJSON, job.MaxRetries,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert job: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get job id: %w", err)
	}

	job.ID = id
	job.Status = JobStatusQueued
	return id, nil
}

func (s *SQLStore) DequeueBatch(now time.Time, limit int) ([]*Job, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(db.SelectDueQueuedJobs, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due jobs: %w", err)
	}

	var candidates []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		candidates = append(candidates, job)
	}
	rows.Close()

	var claimed []*Job
	for _, job := range candidates {
		result, err := tx.Exec(db.ClaimJob, now, job.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to claim job %d: %w", job.ID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get affected rows: %w", err)
		}
		if affected == 0 {
			continue
		}
		job.Status = JobStatusPrinting
		startedAt := now
		job.StartedAt = &startedAt
		claimed = append(claimed, job)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return claimed, nil
}

func (s *SQLStore) MarkDone(id int64, now time.Time) error {
	result, err := s.db.Exec(db.MarkJobDone, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark job %d done: %w", id, err)
	}
	return requireTransition(result, id)
}

func (s *SQLStore) MarkRetry(id int64, errMsg string, now time.Time, delay time.Duration) (JobStatus, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var retryCount, maxRetries int
	err = tx.QueryRow(
		`SELECT retry_count, max_retries FROM print_jobs WHERE id = ? AND status = 'PRINTING'`, id,
	).Scan(&retryCount, &maxRetries)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: job %d is not printing", ErrJobNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to query job %d: %w", id, err)
	}

	status := JobStatusQueued
	if retryCount+1 >= maxRetries {
		status = JobStatusFailed
		_, err = tx.Exec(db.MarkJobFailedFinal, errMsg, now, id)
	} else {
		_, err = tx.Exec(db.MarkJobRetry, errMsg, now.Add(delay), id)
	}
	if err != nil {
		return "", fmt.Errorf("failed to record retry for job %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit retry: %w", err)
	}

	return status, nil
}

func (s *SQLStore) MarkFailed(id int64, errMsg string, now time.Time) error {
	result, err := s.db.Exec(db.MarkJobFailed, errMsg, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark job %d failed: %w", id, err)
	}
	return requireTransition(result, id)
}

func (s *SQLStore) Cancel(id int64) error {
	result, err := s.db.Exec(db.CancelJob, id)
	if err != nil {
		return fmt.Errorf("failed to cancel job %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotCancellable
	}
	return nil
}

func (s *SQLStore) Requeue(id int64, now time.Time) error {
	result, err := s.db.Exec(db.RequeueFailedJob, now, id)
	if err != nil {
		return fmt.Errorf("failed to requeue job %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotRetryable
	}
	return nil
}

func (s *SQLStore) Get(id int64) (*Job, error) {
	job, err := scanJob(s.db.QueryRow(db.GetJobByID, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %d", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *SQLStore) List(filter db.JobFilter) ([]*Job, error) {
	query := db.ListJobsBase
	var args []any

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.OrderItemRef != "" {
		query += " AND order_item_ref = ?"
		args = append(args, filter.OrderItemRef)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *SQLStore) Stats() (*QueueStats, error) {
	rows, err := s.db.Query(db.CountJobsByStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	stats := &QueueStats{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan job counts: %w", err)
		}
		stats.Total += count
		switch JobStatus(status) {
		case JobStatusQueued:
			stats.Queued = count
		case JobStatusPrinting:
			stats.Printing = count
		case JobStatusDone:
			stats.Done = count
		case JobStatusFailed:
			stats.Failed = count
		case JobStatusCancelled:
			stats.Cancelled = count
		}
	}
	return stats, rows.Err()
}

func (s *SQLStore) RecoverStale() (int64, error) {
	result, err := s.db.Exec(db.RecoverStaleJobs)
	if err != nil {
		return 0, fmt.Errorf("failed to recover stale jobs: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return affected, nil
}

func requireTransition(result sql.Result, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: job %d is not printing", ErrJobNotFound, id)
	}
	return nil
}

func labelKind(s string) label.LabelKind {
	if label.LabelKind(s) == label.KindExtra {
		return label.KindExtra
	}
	return label.KindMain
}

func scanJob(row interface{ Scan(dest ...any) error }) (*Job, error) {
	var job Job
	var kind string
	var startedAt, printedAt sql.NullTime
	err := row.Scan(
		&job.ID, &job.OrderItemRef, &kind, &job.TemplateID, &job.DishJSON,
		&job.Status, &job.RetryCount, &job.MaxRetries, &job.ErrorMessage,
		&job.CreatedAt, &startedAt, &printedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	job.Kind = labelKind(kind)
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if printedAt.Valid {
		job.PrintedAt = &printedAt.Time
	}
	return &job, nil
}
