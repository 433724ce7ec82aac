package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Vovanwotkd/labels-britannika/internal/config"
	"github.com/Vovanwotkd/labels-britannika/internal/db"
)

const (
	settingsKeyArchiveDays    = "archive_days"
	settingsKeyArchiveEnabled = "archive_enabled"
	settingsKeyShelfLife      = "shelf_life_hours"
)

type SettingsHandler struct {
	settings *db.SettingsStore
	config   *config.Config
}

type SettingsResponse struct {
	ArchiveDays    int  `json:"archive_days"`
	ArchiveEnabled bool `json:"archive_enabled"`
	ShelfLifeHours int  `json:"shelf_life_hours"`
}

type ServerConfigResponse struct {
	Port          int     `json:"port"`
	DatabasePath  string  `json:"database_path"`
	DishesPath    string  `json:"dishes_path"`
	PrinterMode   string  `json:"printer_mode"`
	LabelWidthMM  float64 `json:"label_width_mm"`
	LabelHeightMM float64 `json:"label_height_mm"`
	LabelDPI      int     `json:"label_dpi"`
	PollInterval  string  `json:"poll_interval"`
	MaxRetries    int     `json:"max_retries"`
	RetryDelay    string  `json:"retry_delay"`
	LogLevel      string  `json:"log_level"`
	LogFormat     string  `json:"log_format"`
}

type UpdateArchiveSettingsRequest struct {
	ArchiveDays    int  `json:"archive_days" binding:"min=0"`
	ArchiveEnabled bool `json:"archive_enabled"`
}

type UpdateShelfLifeRequest struct {
	ShelfLifeHours int `json:"shelf_life_hours" binding:"required,min=1"`
}

func NewSettingsHandler(settings *db.SettingsStore, cfg *config.Config) *SettingsHandler {
	return &SettingsHandler{settings: settings, config: cfg}
}

func (h *SettingsHandler) GetSettings(c *gin.Context) {
	ctx := c.Request.Context()
	resp := SettingsResponse{
		ArchiveDays:    h.config.Archive.RetentionDays,
		ArchiveEnabled: h.config.Archive.Enabled,
		ShelfLifeHours: h.config.Label.ShelfLifeHours,
	}

	if setting, err := h.settings.Get(ctx, settingsKeyArchiveDays); err == nil {
		if days, err := strconv.Atoi(setting.Value); err == nil && days > 0 {
			resp.ArchiveDays = days
		}
	}

	if setting, err := h.settings.Get(ctx, settingsKeyArchiveEnabled); err == nil {
		resp.ArchiveEnabled = setting.Value == "true"
	}

	if setting, err := h.settings.Get(ctx, settingsKeyShelfLife); err == nil {
		if hours, err := strconv.Atoi(setting.Value); err == nil && hours > 0 {
			resp.ShelfLifeHours = hours
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SettingsHandler) GetServerConfig(c *gin.Context) {
	resp := ServerConfigResponse{
		Port:          h.config.Server.Port,
		DatabasePath:  h.config.Database.Path,
		DishesPath:    h.config.Database.DishesPath,
		PrinterMode:   h.config.Printer.Mode,
		LabelWidthMM:  h.config.Label.WidthMM,
		LabelHeightMM: h.config.Label.HeightMM,
		LabelDPI:      h.config.Label.DPI,
		PollInterval:  h.config.Queue.PollInterval.String(),
		MaxRetries:    h.config.Queue.MaxRetries,
		RetryDelay:    h.config.Queue.RetryDelay.String(),
		LogLevel:      h.config.Logging.Level,
		LogFormat:     h.config.Logging.Format,
	}

	c.JSON(http.StatusOK, resp)
}

func (h *SettingsHandler) UpdateArchiveSettings(c *gin.Context) {
	var req UpdateArchiveSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	ctx := c.Request.Context()

	archiveDays := req.ArchiveDays
	if archiveDays <= 0 {
		archiveDays = h.config.Archive.RetentionDays
	}

	if err := h.settings.Set(ctx, settingsKeyArchiveDays, strconv.Itoa(archiveDays), false); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to update archive days"})
		return
	}

	if err := h.settings.Set(ctx, settingsKeyArchiveEnabled, strconv.FormatBool(req.ArchiveEnabled), false); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to update archive enabled setting"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"archive_days":    archiveDays,
		"archive_enabled": req.ArchiveEnabled,
	})
}

func (h *SettingsHandler) UpdateShelfLife(c *gin.Context) {
	var req UpdateShelfLifeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: err.Error()})
		return
	}

	if err := h.settings.Set(c.Request.Context(), settingsKeyShelfLife, strconv.Itoa(req.ShelfLifeHours), false); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "database_error", Message: "Failed to update shelf life"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"shelf_life_hours": req.ShelfLifeHours,
	})
}

func (h *SettingsHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/settings", h.GetSettings)
	r.GET("/settings/server", h.GetServerConfig)
	r.PUT("/settings/archive", h.UpdateArchiveSettings)
	r.PUT("/settings/shelf-life", h.UpdateShelfLife)
}
