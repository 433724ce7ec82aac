package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Vovanwotkd/labels-britannika/internal/core"
)

type PrinterHandler struct {
	transport core.Transport
}

func NewPrinterHandler(transport core.Transport) *PrinterHandler {
	return &PrinterHandler{transport: transport}
}

// GetStatus probes the printer when the raw transport is in use. Behind a
// spooler the printer is not directly reachable, so only the configured
// queue name is reported.
func (h *PrinterHandler) GetStatus(c *gin.Context) {
	switch t := h.transport.(type) {
	case *core.RawSocketTransport:
		status, err := t.Probe()
		if err != nil {
			c.JSON(http.StatusOK, gin.H{
				"mode":    "raw",
				"address": t.Address,
				"status":  status,
				"error":   err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"mode":    "raw",
			"address": t.Address,
			"status":  status,
		})
	case *core.SpoolerTransport:
		c.JSON(http.StatusOK, gin.H{
			"mode":  "spooler",
			"queue": t.QueueName,
		})
	default:
		c.JSON(http.StatusOK, gin.H{"mode": "unknown"})
	}
}

func (h *PrinterHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/printer/status", h.GetStatus)
}
