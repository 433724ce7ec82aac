package core

import (
	"time"

	"github.com/Vovanwotkd/labels-britannika/internal/db"
	"github.com/Vovanwotkd/labels-britannika/internal/label"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusPrinting  JobStatus = "PRINTING"
	JobStatusDone      JobStatus = "DONE"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusDone || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is one physical label to print. DishJSON is the snapshot of the dish
// taken at enqueue time, so later menu edits never change what an already
// queued label says.
type Job struct {
	ID           int64           `json:"id"`
	OrderItemRef string          `json:"order_item_ref"`
	Kind         label.LabelKind `json:"label_kind"`
	TemplateID   int64           `json:"template_id"`
	DishJSON     string          `json:"-"`
	Status       JobStatus       `json:"status"`
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	PrintedAt    *time.Time      `json:"printed_at,omitempty"`
}

type QueueStats struct {
	Queued    int `json:"queued"`
	Printing  int `json:"printing"`
	Done      int `json:"done"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
	Total     int `json:"total"`
}

// JobStore is the durable queue behind the worker. Every transition is atomic
// with respect to concurrent claims of the same job.
type JobStore interface {
	Enqueue(job *Job) (int64, error)

	// DequeueBatch claims up to limit QUEUED jobs whose next attempt is due,
	// oldest first, moving each to PRINTING. A job claimed here belongs to
	// the caller until it is marked done, retried or failed.
	DequeueBatch(now time.Time, limit int) ([]*Job, error)

	MarkDone(id int64, now time.Time) error

	// MarkRetry records a delivery failure. The store increments retry_count
	// and either requeues the job after delay or fails it permanently when
	// retries are exhausted. It returns the resulting status.
	MarkRetry(id int64, errMsg string, now time.Time, delay time.Duration) (JobStatus, error)

	// MarkFailed fails a PRINTING job without spending a retry. Used for
	// errors that cannot succeed on a second attempt.
	MarkFailed(id int64, errMsg string, now time.Time) error

	// Cancel withdraws a QUEUED job. A cancelled label was never printed,
	// so printed_at stays NULL.
	Cancel(id int64) error
	Requeue(id int64, now time.Time) error
	Get(id int64) (*Job, error)
	List(filter db.JobFilter) ([]*Job, error)
	Stats() (*QueueStats, error)

	// RecoverStale requeues jobs stuck in PRINTING after an unclean restart.
	RecoverStale() (int64, error)
}

// Transport delivers an encoded label payload to the printer. The two
// implementations (raw socket, host spooler) consume different encodings.
type Transport interface {
	Send(payload []byte) error
	Encoding() label.Encoding
}

// DeliveryErrorKind classifies transport failures for logging and the
// status board. All delivery failures are retryable.
type DeliveryErrorKind string

const (
	DeliveryTimeout           DeliveryErrorKind = "timeout"
	DeliveryConnectionRefused DeliveryErrorKind = "connection_refused"
	DeliveryUnreachable       DeliveryErrorKind = "unreachable"
	DeliveryOther             DeliveryErrorKind = "other"
)

type DeliveryError struct {
	Kind    DeliveryErrorKind
	Message string
}

func (e *DeliveryError) Error() string {
	return "delivery failed (" + string(e.Kind) + "): " + e.Message
}

// Notifier receives job lifecycle events. Implemented by the webhook sender;
// nil-safe at every call site so tests can run without one.
type Notifier interface {
	NotifyJobEvent(event string, job *Job)
}
