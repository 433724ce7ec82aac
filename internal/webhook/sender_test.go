package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vovanwotkd/labels-britannika/internal/config"
	"github.com/Vovanwotkd/labels-britannika/internal/core"
	"github.com/Vovanwotkd/labels-britannika/internal/db"
	"github.com/Vovanwotkd/labels-britannika/internal/label"
)

type delivery struct {
	event     string
	signature string
	body      []byte
}

func newReceiver() (*httptest.Server, func() []delivery) {
	var mu sync.Mutex
	var deliveries []delivery

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		deliveries = append(deliveries, delivery{
			event:     r.Header.Get("X-Webhook-Event"),
			signature: r.Header.Get("X-Webhook-Signature"),
			body:      body,
		})
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))

	return srv, func() []delivery {
		mu.Lock()
		defer mu.Unlock()
		return append([]delivery(nil), deliveries...)
	}
}

func newSenderWithDB(t *testing.T) (*Sender, *db.WebhookStore) {
	t.Helper()
	conn, err := db.Open(db.Config{Path: filepath.Join(t.TempDir(), "labels.db")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	sender := NewSender(conn, config.WebhookConfig{
		RetryCount:  2,
		RetryDelay:  10 * time.Millisecond,
		Timeout:     time.Second,
		WorkerCount: 2,
		QueueSize:   10,
	})
	sender.Start()
	t.Cleanup(sender.Stop)

	return sender, db.NewWebhookStore(conn)
}

func subscribe(t *testing.T, store *db.WebhookStore, url, secret string, events ...string) {
	t.Helper()
	eventsJSON, err := json.Marshal(events)
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), &db.Webhook{
		Name:       "board",
		URL:        url,
		Secret:     secret,
		EventsJSON: string(eventsJSON),
		Enabled:    true,
	}))
}

func sampleJob() *core.Job {
	return &core.Job{
		ID:           7,
		OrderItemRef: "order-1:item-1",
		Kind:         label.KindMain,
		Status:       core.JobStatusDone,
		MaxRetries:   3,
	}
}

func TestNotifyJobEventDelivers(t *testing.T) {
	srv, got := newReceiver()
	defer srv.Close()

	sender, store := newSenderWithDB(t)
	subscribe(t, store, srv.URL, "", "job_printed", "job_failed")

	sender.NotifyJobEvent("job_printed", sampleJob())

	require.Eventually(t, func() bool { return len(got()) == 1 }, 2*time.Second, 10*time.Millisecond)

	d := got()[0]
	assert.Equal(t, "job_printed", d.event)
	assert.Empty(t, d.signature)

	var payload Payload
	require.NoError(t, json.Unmarshal(d.body, &payload))
	assert.Equal(t, "job_printed", payload.Event)
}

func TestNotifyJobEventSkipsUnsubscribedEvent(t *testing.T) {
	srv, got := newReceiver()
	defer srv.Close()

	sender, store := newSenderWithDB(t)
	subscribe(t, store, srv.URL, "", "job_failed")

	sender.NotifyJobEvent("job_printed", sampleJob())

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, got())
}

func TestNotifyJobEventSignsPayload(t *testing.T) {
	srv, got := newReceiver()
	defer srv.Close()

	sender, store := newSenderWithDB(t)
	subscribe(t, store, srv.URL, "kitchen-secret", "job_printed")

	sender.NotifyJobEvent("job_printed", sampleJob())

	require.Eventually(t, func() bool { return len(got()) == 1 }, 2*time.Second, 10*time.Millisecond)

	d := got()[0]
	require.NotEmpty(t, d.signature)

	var payload Payload
	require.NoError(t, json.Unmarshal(d.body, &payload))
	dataBytes, err := json.Marshal(payload.Data)
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte("kitchen-secret"))
	mac.Write(dataBytes)
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), d.signature)
}

func TestSendRetriesOnServerError(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender, store := newSenderWithDB(t)
	subscribe(t, store, srv.URL, "", "job_failed")

	sender.NotifyJobEvent("job_failed", sampleJob())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSendDoesNotRetryClientError(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	sender, store := newSenderWithDB(t)
	subscribe(t, store, srv.URL, "", "job_failed")

	sender.NotifyJobEvent("job_failed", sampleJob())

	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, attempts)
}
