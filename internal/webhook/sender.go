package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Vovanwotkd/labels-britannika/internal/config"
	"github.com/Vovanwotkd/labels-britannika/internal/core"
	"github.com/Vovanwotkd/labels-britannika/internal/db"
)

type Event string

const (
	EventJobStarted  Event = "job_started"
	EventJobPrinted  Event = "job_printed"
	EventJobRetried  Event = "job_retried"
	EventJobFailed   Event = "job_failed"
	EventQueueStatus Event = "queue_status"
)

type Payload struct {
	DeliveryID string      `json:"delivery_id"`
	Event      string      `json:"event"`
	Timestamp  time.Time   `json:"timestamp"`
	Data       interface{} `json:"data"`
	Signature  string      `json:"signature,omitempty"`
}

// JobEventData is what a kitchen display subscribes to: enough to move a
// ticket's label across its status board without a follow-up query.
type JobEventData struct {
	JobID        int64  `json:"job_id"`
	OrderItemRef string `json:"order_item_ref"`
	LabelKind    string `json:"label_kind"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	RetryCount   int    `json:"retry_count,omitempty"`
	MaxRetries   int    `json:"max_retries,omitempty"`
}

type task struct {
	webhookID int64
	event     Event
	payload   *Payload
	attempt   int
}

// Sender delivers job lifecycle events to subscribed URLs. Deliveries go
// through a bounded queue and a small worker pool; when the queue is full
// events are dropped rather than backpressuring the print path.
type Sender struct {
	db          *sql.DB
	httpClient  *http.Client
	retryCount  int
	retryDelay  time.Duration
	workerCount int
	queue       chan *task
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

func NewSender(database *sql.DB, cfg config.WebhookConfig) *Sender {
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 3
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}

	return &Sender{
		db: database,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retryCount:  cfg.RetryCount,
		retryDelay:  cfg.RetryDelay,
		workerCount: cfg.WorkerCount,
		queue:       make(chan *task, cfg.QueueSize),
		stopCh:      make(chan struct{}),
	}
}

func (s *Sender) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *Sender) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// NotifyJobEvent implements core.Notifier.
func (s *Sender) NotifyJobEvent(event string, job *core.Job) {
	data := &JobEventData{
		JobID:        job.ID,
		OrderItemRef: job.OrderItemRef,
		LabelKind:    string(job.Kind),
		Status:       string(job.Status),
		ErrorMessage: job.ErrorMessage,
		RetryCount:   job.RetryCount,
		MaxRetries:   job.MaxRetries,
	}
	s.enqueue(Event(event), data)
}

func (s *Sender) NotifyQueueStatus(stats *core.QueueStats) {
	s.enqueue(EventQueueStatus, stats)
}

func (s *Sender) enqueue(event Event, data interface{}) {
	webhooks, err := s.subscribers(event)
	if err != nil {
		log.Printf("[webhook] failed to get webhooks for event %s: %v", event, err)
		return
	}

	for _, wh := range webhooks {
		t := &task{
			webhookID: wh.ID,
			event:     event,
			payload: &Payload{
				DeliveryID: uuid.NewString(),
				Event:      string(event),
				Timestamp:  time.Now(),
				Data:       data,
			},
		}

		select {
		case s.queue <- t:
		default:
			log.Printf("[webhook] queue full, dropping webhook %d for event %s", wh.ID, event)
		}
	}
}

func (s *Sender) subscribers(event Event) ([]*db.Webhook, error) {
	eventPattern := fmt.Sprintf("%%\"%s\"%%", event)

	rows, err := s.db.Query(db.ListEnabledWebhooksForEvent, eventPattern)
	if err != nil {
		return nil, fmt.Errorf("query webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []*db.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

func (s *Sender) getWebhookByID(id int64) (*db.Webhook, error) {
	w, err := scanWebhook(s.db.QueryRow(db.GetWebhookByID, id))
	if err != nil {
		return nil, fmt.Errorf("get webhook %d: %w", id, err)
	}
	return w, nil
}

func scanWebhook(row interface{ Scan(dest ...any) error }) (*db.Webhook, error) {
	w := &db.Webhook{}
	var enabled int
	err := row.Scan(&w.ID, &w.Name, &w.URL, &w.Secret, &w.EventsJSON, &enabled, &w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan webhook: %w", err)
	}
	w.Enabled = enabled == 1
	return w, nil
}

func (s *Sender) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopCh:
			return
		case t := <-s.queue:
			if err := s.sendWithRetry(t); err != nil {
				log.Printf("[webhook worker %d] failed to send webhook %d for event %s after %d attempts: %v",
					id, t.webhookID, t.event, t.attempt, err)
			}
		}
	}
}

func (s *Sender) sendWithRetry(t *task) error {
	wh, err := s.getWebhookByID(t.webhookID)
	if err != nil {
		return err
	}

	var lastErr error
	for t.attempt < s.retryCount {
		t.attempt++

		err := s.sendRequest(wh, t.payload)
		if err == nil {
			return nil
		}

		lastErr = err

		if isClientError(err) {
			log.Printf("[webhook] client error for webhook %d, not retrying: %v", wh.ID, err)
			return err
		}

		if t.attempt < s.retryCount {
			backoff := s.retryDelay * time.Duration(1<<(t.attempt-1))
			log.Printf("[webhook] retry %d/%d for webhook %d in %v: %v",
				t.attempt, s.retryCount, wh.ID, backoff, err)

			select {
			case <-s.stopCh:
				return fmt.Errorf("shutdown requested")
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (s *Sender) sendRequest(wh *db.Webhook, payload *Payload) error {
	dataBytes, err := json.Marshal(payload.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}

	if wh.Secret != "" {
		payload.Signature = signPayload(dataBytes, wh.Secret)
	}

	fullPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequest("POST", wh.URL, bytes.NewReader(fullPayload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Delivery", payload.DeliveryID)
	req.Header.Set("X-Webhook-Signature", payload.Signature)
	req.Header.Set("X-Webhook-Event", payload.Event)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("http error: %d", resp.StatusCode)
	}

	return nil
}

func signPayload(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func isClientError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "http error: 4")
}
