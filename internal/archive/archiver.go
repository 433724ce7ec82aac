package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Vovanwotkd/labels-britannika/internal/db"
)

// Archiver periodically moves finished print jobs out of the live queue
// into monthly sqlite files, keeping the hot table small on long-running
// kitchen installs.
type Archiver struct {
	db            *sql.DB
	settings      *db.SettingsStore
	archivePath   string
	retentionDays int
	enabled       bool
	sweepInterval time.Duration
	stopCh        chan struct{}
	mu            sync.Mutex
}

type ArchiveFile struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Month     string    `json:"month"`
}

type SweepResult struct {
	ArchivedCount int    `json:"archived_count"`
	ArchiveFile   string `json:"archive_file,omitempty"`
}

type Config struct {
	Path          string
	RetentionDays int
	Enabled       bool
	SweepInterval time.Duration
}

func NewArchiver(conn *sql.DB, settings *db.SettingsStore, cfg Config) (*Archiver, error) {
	if cfg.Path == "" {
		cfg.Path = "./data/archive"
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 24 * time.Hour
	}

	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	return &Archiver{
		db:            conn,
		settings:      settings,
		archivePath:   cfg.Path,
		retentionDays: cfg.RetentionDays,
		enabled:       cfg.Enabled,
		sweepInterval: cfg.SweepInterval,
		stopCh:        make(chan struct{}),
	}, nil
}

func (a *Archiver) Start() {
	go a.run()
}

func (a *Archiver) Stop() {
	close(a.stopCh)
}

func (a *Archiver) run() {
	ticker := time.NewTicker(a.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			if _, err := a.RunSweep(context.Background()); err != nil {
				log.Printf("[archive] sweep failed: %v", err)
			}
		}
	}
}

// RunSweep archives every terminal job older than the retention window.
// Settings stored in the database override the configured defaults so the
// retention policy can be changed without a restart.
func (a *Archiver) RunSweep(ctx context.Context) (*SweepResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	days, enabled := a.effectivePolicy(ctx)
	if !enabled {
		return &SweepResult{}, nil
	}

	cutoff := time.Now().AddDate(0, 0, -days)

	jobs, err := a.jobsForArchival(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to select jobs for archival: %w", err)
	}
	if len(jobs) == 0 {
		return &SweepResult{}, nil
	}

	filename := fmt.Sprintf("archive_%s.db", time.Now().Format("2006_01"))
	archivePath := filepath.Join(a.archivePath, filename)

	archiveDB, err := a.openOrCreateArchiveDB(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}
	defer archiveDB.Close()

	tx, err := archiveDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin archive transaction: %w", err)
	}

	for _, job := range jobs {
		if err := insertArchivedJob(tx, job); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to insert archived job: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit archive transaction: %w", err)
	}

	if err := a.deleteArchivedJobs(ctx, jobs); err != nil {
		return nil, fmt.Errorf("failed to delete archived jobs: %w", err)
	}

	log.Printf("[archive] moved %d jobs to %s", len(jobs), filename)

	return &SweepResult{ArchivedCount: len(jobs), ArchiveFile: filename}, nil
}

func (a *Archiver) effectivePolicy(ctx context.Context) (days int, enabled bool) {
	days = a.retentionDays
	enabled = a.enabled

	if a.settings == nil {
		return days, enabled
	}

	if setting, err := a.settings.Get(ctx, "archive_days"); err == nil {
		if v, err := strconv.Atoi(setting.Value); err == nil && v > 0 {
			days = v
		}
	}
	if setting, err := a.settings.Get(ctx, "archive_enabled"); err == nil {
		enabled = setting.Value == "true"
	}
	return days, enabled
}

type archivedJob struct {
	ID           int64
	OrderItemRef string
	LabelKind    string
	TemplateID   int64
	DishJSON     string
	Status       string
	RetryCount   int
	MaxRetries   int
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    *time.Time
	PrintedAt    *time.Time
}

func (a *Archiver) jobsForArchival(ctx context.Context, cutoff time.Time) ([]*archivedJob, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, order_item_ref, label_kind, template_id, dish_json, status,
		       retry_count, max_retries, error_message, created_at, started_at, printed_at
		FROM print_jobs
		WHERE status IN ('DONE', 'FAILED', 'CANCELLED')
		AND COALESCE(printed_at, created_at) < ?
		ORDER BY created_at ASC
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*archivedJob
	for rows.Next() {
		job := &archivedJob{}
		var errMsg sql.NullString
		if err := rows.Scan(
			&job.ID, &job.OrderItemRef, &job.LabelKind, &job.TemplateID, &job.DishJSON,
			&job.Status, &job.RetryCount, &job.MaxRetries, &errMsg,
			&job.CreatedAt, &job.StartedAt, &job.PrintedAt,
		); err != nil {
			return nil, err
		}
		job.ErrorMessage = errMsg.String
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (a *Archiver) openOrCreateArchiveDB(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	_, err = conn.Exec(`
		CREATE TABLE IF NOT EXISTS print_jobs (
			id INTEGER PRIMARY KEY,
			order_item_ref TEXT NOT NULL,
			label_kind TEXT NOT NULL,
			template_id INTEGER,
			dish_json TEXT NOT NULL,
			status TEXT NOT NULL,
			retry_count INTEGER DEFAULT 0,
			max_retries INTEGER DEFAULT 3,
			error_message TEXT,
			created_at DATETIME,
			started_at DATETIME,
			printed_at DATETIME
		);

		CREATE INDEX IF NOT EXISTS idx_archive_jobs_created_at ON print_jobs(created_at);
		CREATE INDEX IF NOT EXISTS idx_archive_jobs_order_ref ON print_jobs(order_item_ref);
	`)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

func insertArchivedJob(tx *sql.Tx, job *archivedJob) error {
	_, err := tx.Exec(`
		INSERT OR REPLACE INTO print_jobs (id, order_item_ref, label_kind, template_id, dish_json,
			status, retry_count, max_retries, error_message, created_at, started_at, printed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.OrderItemRef, job.LabelKind, job.TemplateID, job.DishJSON,
		job.Status, job.RetryCount, job.MaxRetries, job.ErrorMessage,
		job.CreatedAt, job.StartedAt, job.PrintedAt)
	return err
}

func (a *Archiver) deleteArchivedJobs(ctx context.Context, jobs []*archivedJob) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if _, err := tx.Exec("DELETE FROM print_jobs WHERE id = ?", job.ID); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func (a *Archiver) ListArchives() ([]*ArchiveFile, error) {
	files, err := os.ReadDir(a.archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	var archives []*ArchiveFile
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".db") {
			continue
		}

		info, err := file.Info()
		if err != nil {
			continue
		}

		entry := &ArchiveFile{
			Filename:  file.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		}
		if strings.HasPrefix(file.Name(), "archive_") {
			entry.Month = strings.TrimSuffix(strings.TrimPrefix(file.Name(), "archive_"), ".db")
		}

		archives = append(archives, entry)
	}

	return archives, nil
}

func (a *Archiver) DeleteArchive(filename string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if filepath.Base(filename) != filename || !strings.HasSuffix(filename, ".db") {
		return fmt.Errorf("invalid archive filename")
	}

	filePath := filepath.Join(a.archivePath, filename)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return fmt.Errorf("archive not found")
	}

	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("failed to delete archive: %w", err)
	}
	return nil
}
