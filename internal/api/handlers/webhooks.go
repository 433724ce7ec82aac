package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Vovanwotkd/labels-britannika/internal/db"
)

var validWebhookEvents = map[string]bool{
	"job_started":  true,
	"job_printed":  true,
	"job_retried":  true,
	"job_failed":   true,
	"queue_status": true,
}

type CreateWebhookRequest struct {
	Name   string   `json:"name" binding:"required"`
	URL    string   `json:"url" binding:"required,url"`
	Secret string   `json:"secret"`
	Events []string `json:"events" binding:"required"`
}

type UpdateWebhookRequest struct {
	Name    string   `json:"name"`
	URL     string   `json:"url" binding:"omitempty,url"`
	Secret  *string  `json:"secret"`
	Events  []string `json:"events"`
	Enabled *bool    `json:"enabled"`
}

type WebhookResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

type WebhookHandler struct {
	store      *db.WebhookStore
	httpClient *http.Client
}

func NewWebhookHandler(store *db.WebhookStore) *WebhookHandler {
	return &WebhookHandler{
		store: store,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (h *WebhookHandler) ListWebhooks(c *gin.Context) {
	webhooks, err := h.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to retrieve webhooks"})
		return
	}

	responses := make([]WebhookResponse, 0, len(webhooks))
	for _, w := range webhooks {
		responses = append(responses, webhookToResponse(w))
	}

	c.JSON(http.StatusOK, responses)
}

func (h *WebhookHandler) CreateWebhook(c *gin.Context) {
	var req CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	if len(req.Events) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "At least one event must be specified"})
		return
	}
	for _, event := range req.Events {
		if !validWebhookEvents[event] {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_event", Message: fmt.Sprintf("Invalid event type: %s", event)})
			return
		}
	}

	eventsJSON, err := json.Marshal(req.Events)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "json_error", Message: "Failed to serialize events"})
		return
	}

	w := &db.Webhook{
		Name:       req.Name,
		URL:        req.URL,
		Secret:     req.Secret,
		EventsJSON: string(eventsJSON),
		Enabled:    true,
	}

	if err := h.store.Create(c.Request.Context(), w); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to create webhook"})
		return
	}

	c.JSON(http.StatusCreated, webhookToResponse(w))
}

func (h *WebhookHandler) GetWebhook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid webhook ID"})
		return
	}

	w, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Webhook not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to retrieve webhook"})
		return
	}

	c.JSON(http.StatusOK, webhookToResponse(w))
}

func (h *WebhookHandler) UpdateWebhook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid webhook ID"})
		return
	}

	w, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Webhook not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to retrieve webhook"})
		return
	}

	var req UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	if req.Name != "" {
		w.Name = req.Name
	}
	if req.URL != "" {
		w.URL = req.URL
	}
	if req.Secret != nil {
		w.Secret = *req.Secret
	}
	if req.Enabled != nil {
		w.Enabled = *req.Enabled
	}
	if len(req.Events) > 0 {
		for _, event := range req.Events {
			if !validWebhookEvents[event] {
				c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_event", Message: fmt.Sprintf("Invalid event type: %s", event)})
				return
			}
		}
		eventsJSON, err := json.Marshal(req.Events)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "json_error", Message: "Failed to serialize events"})
			return
		}
		w.EventsJSON = string(eventsJSON)
	}

	if err := h.store.Update(c.Request.Context(), w); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to update webhook"})
		return
	}

	c.JSON(http.StatusOK, webhookToResponse(w))
}

func (h *WebhookHandler) DeleteWebhook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid webhook ID"})
		return
	}

	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Webhook not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to delete webhook"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "webhook deleted"})
}

// TestWebhook sends a signed ping to the subscriber URL so a new endpoint
// can be verified before any real job events flow.
func (h *WebhookHandler) TestWebhook(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid webhook ID"})
		return
	}

	w, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Webhook not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to retrieve webhook"})
		return
	}

	deliveryID := uuid.NewString()
	payload := map[string]any{
		"delivery_id": deliveryID,
		"event":       "test",
		"timestamp":   time.Now(),
		"data":        gin.H{"message": "test delivery"},
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(c.Request.Context(), "POST", w.URL, bytes.NewReader(body))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "request_error", Message: err.Error()})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Delivery", deliveryID)
	req.Header.Set("X-Webhook-Event", "test")
	if w.Secret != "" {
		mac := hmac.New(sha256.New, []byte(w.Secret))
		mac.Write(body)
		req.Header.Set("X-Webhook-Signature", hex.EncodeToString(mac.Sum(nil)))
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": err.Error()})
		return
	}
	defer resp.Body.Close()

	c.JSON(http.StatusOK, gin.H{
		"success": resp.StatusCode < 400,
		"message": fmt.Sprintf("endpoint responded with %d", resp.StatusCode),
	})
}

func webhookToResponse(w *db.Webhook) WebhookResponse {
	var events []string
	if w.EventsJSON != "" {
		_ = json.Unmarshal([]byte(w.EventsJSON), &events)
	}
	return WebhookResponse{
		ID:        w.ID,
		Name:      w.Name,
		URL:       w.URL,
		Events:    events,
		Enabled:   w.Enabled,
		CreatedAt: w.CreatedAt,
	}
}

func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/webhooks", h.ListWebhooks)
	r.POST("/webhooks", h.CreateWebhook)
	r.GET("/webhooks/:id", h.GetWebhook)
	r.PUT("/webhooks/:id", h.UpdateWebhook)
	r.DELETE("/webhooks/:id", h.DeleteWebhook)
	r.POST("/webhooks/:id/test", h.TestWebhook)
}
