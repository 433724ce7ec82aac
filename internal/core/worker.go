package core

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Vovanwotkd/labels-britannika/internal/config"
	"github.com/Vovanwotkd/labels-britannika/internal/db"
	"github.com/Vovanwotkd/labels-britannika/internal/dish"
	"github.com/Vovanwotkd/labels-britannika/internal/label"
)

// TemplateSource resolves the layout a job should print with. Satisfied by
// db.TemplateStore.
type TemplateSource interface {
	GetByID(ctx context.Context, id int64) (*db.LabelTemplate, error)
	GetDefault(ctx context.Context) (*db.LabelTemplate, error)
}

// Worker is the single poll loop that drains the job queue. It is the only
// component that moves jobs out of QUEUED, and it sends one label at a time
// because thermal printers corrupt output when two streams interleave.
type Worker struct {
	store      JobStore
	transport  Transport
	templates  TemplateSource
	notifier   Notifier
	compositor *label.Compositor
	cfg        config.QueueConfig

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func NewWorker(store JobStore, transport Transport, templates TemplateSource, notifier Notifier, compositor *label.Compositor, cfg config.QueueConfig) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 10
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if compositor == nil {
		compositor = &label.Compositor{}
	}

	return &Worker{
		store:      store,
		transport:  transport,
		templates:  templates,
		notifier:   notifier,
		compositor: compositor,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
	}
}

// Start requeues jobs left PRINTING by an unclean shutdown, then launches
// the poll loop.
func (w *Worker) Start() error {
	recovered, err := w.store.RecoverStale()
	if err != nil {
		return fmt.Errorf("failed to recover stale jobs: %w", err)
	}
	if recovered > 0 {
		log.Printf("[worker] requeued %d jobs left printing by previous run", recovered)
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

func (w *Worker) Stop() {
	w.once.Do(func() {
		close(w.stopCh)
	})
	w.wg.Wait()
}

func (w *Worker) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.drainBatch()
		}
	}
}

func (w *Worker) drainBatch() {
	jobs, err := w.store.DequeueBatch(time.Now(), w.cfg.BatchSize)
	if err != nil {
		log.Printf("[worker] failed to dequeue batch: %v", err)
		return
	}

	for _, job := range jobs {
		select {
		case <-w.stopCh:
			// Leave the rest PRINTING; RecoverStale picks them up on the
			// next start.
			return
		default:
		}
		w.processJob(job)
	}
}

func (w *Worker) processJob(job *Job) {
	w.notify("job_started", job)

	payload, err := w.composePayload(job)
	if err != nil {
		// Composition errors do not get better on a retry.
		log.Printf("[worker] job %d composition failed: %v", job.ID, err)
		w.failPermanently(job, err)
		return
	}

	if err := w.transport.Send(payload); err != nil {
		w.handleDeliveryFailure(job, err)
		return
	}

	now := time.Now()
	if err := w.store.MarkDone(job.ID, now); err != nil {
		log.Printf("[worker] failed to mark job %d done: %v", job.ID, err)
		return
	}
	job.Status = JobStatusDone
	job.PrintedAt = &now
	log.Printf("[worker] job %d printed (%s, %d bytes)", job.ID, job.Kind, len(payload))
	w.notify("job_printed", job)
}

func (w *Worker) composePayload(job *Job) ([]byte, error) {
	tpl, err := w.resolveTemplate(job.TemplateID)
	if err != nil {
		return nil, err
	}

	var d *dish.DishData
	if job.DishJSON != "" {
		d = &dish.DishData{}
		if err := json.Unmarshal([]byte(job.DishJSON), d); err != nil {
			return nil, fmt.Errorf("failed to parse dish snapshot: %w", err)
		}
	}

	comp, err := w.compositor.Compose(tpl, d, job.Kind, time.Now())
	if err != nil {
		return nil, err
	}
	return comp.Encode(w.transport.Encoding())
}

func (w *Worker) resolveTemplate(id int64) (*label.Template, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		stored *db.LabelTemplate
		err    error
	)
	if id > 0 {
		stored, err = w.templates.GetByID(ctx, id)
	} else {
		stored, err = w.templates.GetDefault(ctx)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return label.DefaultTemplate(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load template %d: %w", id, err)
	}

	tpl, err := label.ParseTemplate(stored.SchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("template %d is invalid: %w", stored.ID, err)
	}
	if tpl.WidthMM == 0 {
		tpl.WidthMM = stored.WidthMM
	}
	if tpl.HeightMM == 0 {
		tpl.HeightMM = stored.HeightMM
	}
	return tpl, nil
}

func (w *Worker) handleDeliveryFailure(job *Job, sendErr error) {
	var dErr *DeliveryError
	if !errors.As(sendErr, &dErr) {
		dErr = &DeliveryError{Kind: DeliveryOther, Message: sendErr.Error()}
	}

	status, err := w.store.MarkRetry(job.ID, dErr.Error(), time.Now(), w.cfg.RetryDelay)
	if err != nil {
		log.Printf("[worker] failed to record retry for job %d: %v", job.ID, err)
		return
	}

	job.Status = status
	job.RetryCount++
	job.ErrorMessage = dErr.Error()

	if status == JobStatusFailed {
		log.Printf("[worker] job %d failed after %d attempts: %v", job.ID, job.RetryCount, dErr)
		w.notify("job_failed", job)
		return
	}
	log.Printf("[worker] job %d delivery failed (%s), retry %d/%d in %s",
		job.ID, dErr.Kind, job.RetryCount, job.MaxRetries, w.cfg.RetryDelay)
	w.notify("job_retried", job)
}

func (w *Worker) failPermanently(job *Job, cause error) {
	if err := w.store.MarkFailed(job.ID, cause.Error(), time.Now()); err != nil {
		log.Printf("[worker] failed to mark job %d failed: %v", job.ID, err)
		return
	}
	job.Status = JobStatusFailed
	job.ErrorMessage = cause.Error()
	w.notify("job_failed", job)
}

func (w *Worker) notify(event string, job *Job) {
	if w.notifier == nil {
		return
	}
	w.notifier.NotifyJobEvent(event, job)
}
