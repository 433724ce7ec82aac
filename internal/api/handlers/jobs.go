package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Vovanwotkd/labels-britannika/internal/core"
	"github.com/Vovanwotkd/labels-britannika/internal/db"
	"github.com/Vovanwotkd/labels-britannika/internal/dish"
)

type ListJobsQuery struct {
	Status       string `form:"status"`
	OrderItemRef string `form:"order_item_ref"`
	Limit        int    `form:"limit" binding:"max=100"`
	Offset       int    `form:"offset"`
}

type TestPrintRequest struct {
	TemplateID int64 `json:"template_id"`
}

type JobHandler struct {
	store   core.JobStore
	service *core.PrintService
}

func NewJobHandler(store core.JobStore, service *core.PrintService) *JobHandler {
	return &JobHandler{store: store, service: service}
}

// Print expands one ticket line into labels: quantity copies of the main
// dish label plus one label per extra per copy.
func (h *JobHandler) Print(c *gin.Context) {
	var item core.OrderItem
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	ids, err := h.service.EnqueueOrderItem(c.Request.Context(), item)
	if err != nil {
		if errors.Is(err, dish.ErrDishNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "dish_not_found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "enqueue_failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"job_ids": ids,
		"count":   len(ids),
	})
}

func (h *JobHandler) PrintTest(c *gin.Context) {
	var req TestPrintRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
			return
		}
	}

	id, err := h.service.EnqueueTestLabel(req.TemplateID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "enqueue_failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"job_id": id})
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	var query ListJobsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	if query.Limit <= 0 {
		query.Limit = 50
	}

	jobs, err := h.store.List(db.JobFilter{
		Status:       query.Status,
		OrderItemRef: query.OrderItemRef,
		Limit:        query.Limit,
		Offset:       query.Offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to list jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"jobs":   jobs,
		"limit":  query.Limit,
		"offset": query.Offset,
		"count":  len(jobs),
	})
}

func (h *JobHandler) GetJob(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid job ID"})
		return
	}

	job, err := h.store.Get(id)
	if err != nil {
		if errors.Is(err, core.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to get job"})
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) CancelJob(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid job ID"})
		return
	}

	if err := h.store.Cancel(id); err != nil {
		if errors.Is(err, core.ErrNotCancellable) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "not_cancellable", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to cancel job"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "job cancelled"})
}

func (h *JobHandler) RetryJob(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_id", Message: "Invalid job ID"})
		return
	}

	if err := h.store.Requeue(id, time.Now()); err != nil {
		if errors.Is(err, core.ErrNotRetryable) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: "not_retryable", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to retry job"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "job queued for retry"})
}

func (h *JobHandler) GetQueue(c *gin.Context) {
	stats, err := h.store.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to get queue stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *JobHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/print", h.Print)
	r.POST("/print/test", h.PrintTest)
	r.GET("/jobs", h.ListJobs)
	r.GET("/jobs/queue", h.GetQueue)
	r.GET("/jobs/:id", h.GetJob)
	r.POST("/jobs/:id/cancel", h.CancelJob)
	r.POST("/jobs/:id/retry", h.RetryJob)
}
